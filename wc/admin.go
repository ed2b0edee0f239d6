package wc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fernvc/wcedit/journal"
)

// AdminDirName is the versioned subdirectory holding one directory's
// admin area.
const AdminDirName = "admin"

// ErrLocked is returned by Lock when another operation already holds
// the directory's lock.
var ErrLocked = errors.New("wc: directory already locked")

// AdminArea is the on-disk admin area for one versioned working-copy
// directory: entries, text/prop bases, the pending log, and the
// advisory lock.
type AdminArea struct {
	dir string
}

// NewAdminArea returns the admin area rooted at the given versioned
// directory. It does not touch the filesystem; call Ensure before
// first use.
func NewAdminArea(dir string) *AdminArea { return &AdminArea{dir: dir} }

// Dir returns the versioned directory this admin area serves.
func (a *AdminArea) Dir() string { return a.dir }

func (a *AdminArea) adminPath(parts ...string) string {
	return filepath.Join(append([]string{a.dir, AdminDirName}, parts...)...)
}

// Ensure creates the admin area's subdirectories if absent.
func (a *AdminArea) Ensure() error {
	for _, sub := range []string{"text-base", filepath.Join("tmp", "text-base"), "prop-base", "props"} {
		if err := os.MkdirAll(a.adminPath(sub), 0755); err != nil {
			return fmt.Errorf("wc: creating admin area under %s: %w", a.dir, err)
		}
	}
	return nil
}

// TextBasePath is the pristine text-base for file name.
func (a *AdminArea) TextBasePath(name string) string {
	return a.adminPath("text-base", name+".svn-base")
}

// TmpTextBasePath is the staging slot for incoming bytes for file name.
func (a *AdminArea) TmpTextBasePath(name string) string {
	return a.adminPath("tmp", "text-base", name+".svn-base")
}

// PropBasePath is the pristine property list for name.
func (a *AdminArea) PropBasePath(name string) string {
	return a.adminPath("prop-base", name+".svn-base")
}

// PropsPath is the working property list for name.
func (a *AdminArea) PropsPath(name string) string {
	return a.adminPath("props", name)
}

// EntriesPath is the serialized entries file.
func (a *AdminArea) EntriesPath() string { return a.adminPath("entries") }

// DirPropsPath is the working property list for the directory itself
// (as opposed to PropsPath, which is per-child-name).
func (a *AdminArea) DirPropsPath() string { return a.adminPath("dir-props") }

// DirPropBasePath is the pristine property list for the directory
// itself.
func (a *AdminArea) DirPropBasePath() string { return a.adminPath("dir-prop-base") }

func (a *AdminArea) logDir() string { return a.adminPath() }

// ReadEntries loads the entries file, returning an empty map if none
// exists yet (a freshly created directory).
func (a *AdminArea) ReadEntries() (map[string]*Entry, error) {
	return loadEntries(a.EntriesPath())
}

// WriteEntries persists entries, overwriting the file in place.
func (a *AdminArea) WriteEntries(entries map[string]*Entry) error {
	return saveEntries(a.EntriesPath(), entries)
}

// Lock acquires the directory's exclusive advisory lock, returning a
// function that releases it. Lock fails with ErrLocked if another
// operation already holds it: no two update operations may hold the
// same directory's lock at once, and callers must not block waiting
// for it.
func (a *AdminArea) Lock() (func(), error) {
	path := a.adminPath("lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("wc: locking %s: %w", a.dir, err)
	}
	f.Close()
	return func() { os.Remove(path) }, nil
}

// Pending reports whether this directory has an unreplayed log.
func (a *AdminArea) Pending() bool { return journal.Pending(a.logDir()) }

// Replay runs this directory's pending log (if any) against applier.
// Callers must invoke this before any new mutation against the
// directory.
func (a *AdminArea) Replay(applier journal.Applier) error {
	return journal.Replay(a.logDir(), applier)
}

// NewJournal returns an empty Journal and the directory path Flush
// should target.
func (a *AdminArea) NewJournal() (*journal.Journal, string) {
	return journal.New(), a.logDir()
}

// WithLock acquires the directory's lock, replays any pending log
// against applier, runs fn, and releases the lock regardless of fn's
// outcome.
func (a *AdminArea) WithLock(applier journal.Applier, fn func() error) (err error) {
	unlock, err := a.Lock()
	if err != nil {
		return err
	}
	defer unlock()
	if err := a.Replay(applier); err != nil {
		return fmt.Errorf("wc: replaying pending log before locked operation: %w", err)
	}
	return fn()
}
