package installer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/fernvc/wcedit/wc"
)

// logApplier extends the admin area's base log applier with the two
// operations that need this package's tools: Cp, which applies
// EOL/keyword translation instead of a byte-for-byte copy, and RunCmd,
// which actually invokes the configured external diff/patch tool.
type logApplier struct {
	*wc.LogApplier
}

func newLogApplier(area *wc.AdminArea) *logApplier {
	return &logApplier{LogApplier: wc.NewLogApplier(area)}
}

func (a *logApplier) resolve(name string) string {
	return filepath.Join(a.Area.Dir(), name)
}

// Cp copies name to dest, translating EOLs and expanding/contracting
// keywords per attrs (the rendered form of journal.CpOptions).
func (a *logApplier) Cp(name, dest string, attrs map[string]string) error {
	data, err := os.ReadFile(a.resolve(name))
	if err != nil {
		return fmt.Errorf("installer: cp reading %s: %w", name, err)
	}

	if attrs["expand"] == "1" || attrs["eol-str"] != "" {
		data = NormalizeEOL(data)
		if attrs["expand"] == "1" {
			kw := Keywords{
				Revision: attrs["revision"],
				Date:     attrs["date"],
				Author:   attrs["author"],
				URL:      attrs["url"],
			}
			data = ExpandKeywords(data, kw)
		} else {
			data = ContractKeywords(data)
		}
		if attrs["eol-str"] != "" {
			data = ApplyEOL(data, EOLStyle(attrs["eol-str"]))
		}
	}

	dst := a.resolve(dest)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

// RunCmd invokes the named external tool with literal args, piping
// infile's content (if any) to its standard input. A non-zero exit
// with output is not an error: diff/patch tools routinely exit
// non-zero to report differences or unapplied hunks.
func (a *logApplier) RunCmd(name string, args []string, infile string) error {
	var stdin []byte
	if infile != "" {
		data, err := os.ReadFile(a.resolve(infile))
		if err != nil {
			return fmt.Errorf("installer: run-cmd reading infile %s: %w", infile, err)
		}
		stdin = data
	}
	cmd := exec.CommandContext(context.Background(), name, args...)
	cmd.Dir = a.Area.Dir()
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return nil
		}
		return fmt.Errorf("installer: run-cmd %s: %w (stderr: %s)", name, err, stderr.String())
	}
	return nil
}
