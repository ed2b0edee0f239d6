// Package journal implements the append-only, replayable log grammar
// that mutates one working-copy directory atomically. A Journal
// accumulates operations in memory exactly as the installer assembles
// them, then Flush writes them in one batch and fsyncs before any
// replay is attempted, so a crash before Flush leaves no partial log
// on disk.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
)

// LogFileName is the admin-area file holding a pending, unreplayed log.
const LogFileName = "log"

// Journal accumulates log tags for one directory edit. It is not safe
// for concurrent use; the per-directory lock is the
// serialization point, so only one Journal exists per directory at a
// time.
type Journal struct {
	ops []Op
}

// New returns an empty Journal.
func New() *Journal { return &Journal{} }

// Empty reports whether no operations have been appended yet.
func (j *Journal) Empty() bool { return len(j.ops) == 0 }

// DeleteEntry journals removal of a versioned entry.
func (j *Journal) DeleteEntry(name string) {
	j.ops = append(j.ops, newOp(OpDeleteEntry, map[string]string{"name": name}))
}

// ModifyEntry journals a mutation of an entry's attributes (kind,
// revision, text-time, prop-time, url, or any other entry attribute).
func (j *Journal) ModifyEntry(name string, attrs map[string]string) {
	merged := map[string]string{"name": name}
	for k, v := range attrs {
		merged[k] = v
	}
	j.ops = append(j.ops, newOp(OpModifyEntry, merged))
}

// Mv journals a rename of name to dest within the directory.
func (j *Journal) Mv(name, dest string) {
	j.ops = append(j.ops, newOp(OpMv, map[string]string{"name": name, "dest": dest}))
}

// CpOptions carries cp's optional translation/keyword-expansion
// attributes.
type CpOptions struct {
	EOLStyle string
	Repair   bool
	Revision string
	Date     string
	Author   string
	URL      string
	Expand   bool
}

// Cp journals a copy of name to dest, with optional translation.
func (j *Journal) Cp(name, dest string, opts CpOptions) {
	attrs := map[string]string{"name": name, "dest": dest}
	if opts.EOLStyle != "" {
		attrs["eol-str"] = opts.EOLStyle
	}
	if opts.Repair {
		attrs["repair"] = "1"
	}
	if opts.Revision != "" {
		attrs["revision"] = opts.Revision
	}
	if opts.Date != "" {
		attrs["date"] = opts.Date
	}
	if opts.Author != "" {
		attrs["author"] = opts.Author
	}
	if opts.URL != "" {
		attrs["url"] = opts.URL
	}
	if opts.Expand {
		attrs["expand"] = "1"
	}
	j.ops = append(j.ops, newOp(OpCp, attrs))
}

// Rm journals removal of a plain file (e.g. a stale tmp file), distinct
// from DeleteEntry which also removes versioning metadata.
func (j *Journal) Rm(name string) {
	j.ops = append(j.ops, newOp(OpRm, map[string]string{"name": name}))
}

// Readonly journals making a file read-only (used on text-bases).
func (j *Journal) Readonly(name string) {
	j.ops = append(j.ops, newOp(OpReadonly, map[string]string{"name": name}))
}

// RunCmd journals invocation of an external tool with literal
// arguments, optionally redirecting infile to its standard input.
func (j *Journal) RunCmd(name string, args []string, infile string) {
	attrs := map[string]string{"name": name}
	for i, a := range args {
		attrs[fmt.Sprintf("arg-%d", i+1)] = a
	}
	if infile != "" {
		attrs["infile"] = infile
	}
	j.ops = append(j.ops, newOp(OpRunCmd, attrs))
}

// DetectConflict journals the post-patch conflict check: if rejectFile
// is non-empty, the entry's conflicted flag is set; otherwise
// rejectFile is removed.
func (j *Journal) DetectConflict(name, rejectFile string) {
	j.ops = append(j.ops, newOp(OpDetectConflict, map[string]string{"name": name, "reject-file": rejectFile}))
}

// Render returns the accumulated operations as log-file text, one tag
// per line.
func (j *Journal) Render() string {
	var out string
	for _, op := range j.ops {
		out += op.Render() + "\n"
	}
	return out
}

// Flush appends the accumulated operations to dir's log file, fsyncs,
// and clears the in-memory buffer. The log file is created if absent,
// or appended to if a prior Flush's replay was interrupted before it
// could remove the file — this is what makes the overall install
// "append, sync, then replay" sequence crash-safe.
func (j *Journal) Flush(dir string) error {
	if j.Empty() {
		return nil
	}
	path := filepath.Join(dir, LogFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("journal: opening %s: %w", path, err)
	}
	if _, err := f.WriteString(j.Render()); err != nil {
		f.Close()
		return fmt.Errorf("journal: writing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("journal: syncing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("journal: closing %s: %w", path, err)
	}
	j.ops = nil
	return nil
}

// Pending reports whether dir has an unreplayed log file.
func Pending(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, LogFileName))
	return err == nil
}
