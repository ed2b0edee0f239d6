package editor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Window is one text-delta window. A nil Window signals end-of-stream.
// The sender is expected to hand the already-reconstructed bytes for
// each window; svndiff-style copy/insert instruction decoding happens
// upstream of this package.
type Window struct {
	Data []byte
}

// WindowHandler consumes successive Windows for one file's
// apply-textdelta.
type WindowHandler func(window *Window) error

// OpenTextDelta may be invoked at most once per FileScope. It opens
// the pristine text-base for reading (unless isCheckout, where there
// is no base), opens a fresh tmp text-base for writing, and returns a
// handler that appends each window's bytes to
// the destination. On error or end-of-stream both streams are closed;
// on error the temporary text-base is removed. Close is best-effort:
// errors during cleanup are only surfaced if no earlier error exists.
func (f *FileScope) OpenTextDelta(basePath, tmpPath string, isCheckout bool) (WindowHandler, error) {
	if f.deltaApplied {
		return nil, fmt.Errorf("%w: apply-textdelta called twice on %s", ErrProtocol, f.name)
	}
	f.deltaApplied = true

	var base io.ReadCloser
	if !isCheckout {
		r, err := os.Open(basePath)
		if err != nil {
			return nil, fmt.Errorf("editor: opening text-base %s: %w", basePath, err)
		}
		base = r
	}
	if err := os.MkdirAll(filepath.Dir(tmpPath), 0755); err != nil {
		if base != nil {
			base.Close()
		}
		return nil, err
	}
	dst, err := os.Create(tmpPath)
	if err != nil {
		if base != nil {
			base.Close()
		}
		return nil, fmt.Errorf("editor: creating %s: %w", tmpPath, err)
	}

	closeStreams := func(firstErr error) error {
		var closeErr error
		if base != nil {
			if err := base.Close(); err != nil && closeErr == nil {
				closeErr = err
			}
		}
		if err := dst.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
		if firstErr != nil {
			return firstErr
		}
		return closeErr
	}

	return func(window *Window) error {
		if window == nil {
			if err := closeStreams(nil); err != nil {
				return fmt.Errorf("editor: closing delta streams for %s: %w", f.name, err)
			}
			f.textChanged = true
			f.newTextBasePath = tmpPath
			return nil
		}
		if _, err := dst.Write(window.Data); err != nil {
			closeStreams(err)
			os.Remove(tmpPath)
			return fmt.Errorf("editor: writing delta window for %s: %w", f.name, err)
		}
		return nil
	}, nil
}
