package wc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LogApplier applies replayed log tags against one directory's admin
// area and working files. It implements journal.Applier structurally
// (package journal does not need to be imported here to satisfy that
// interface) and is the base every package that replays logs against
// a working-copy directory builds on — the installer package embeds
// it and overrides RunCmd to actually invoke external tools.
type LogApplier struct {
	Area *AdminArea
}

// NewLogApplier returns a LogApplier bound to area.
func NewLogApplier(area *AdminArea) *LogApplier { return &LogApplier{Area: area} }

func (a *LogApplier) resolve(name string) string { return filepath.Join(a.Area.Dir(), name) }

// DeleteEntry removes name's working file (or directory tree) from disk
// and then removes name from the entries map. Re-running against an
// already-deleted name is a no-op, not an error.
func (a *LogApplier) DeleteEntry(name string) error {
	entries, err := a.Area.ReadEntries()
	if err != nil {
		return err
	}
	if _, ok := entries[name]; !ok {
		return nil
	}
	if name != ThisDir {
		if err := os.RemoveAll(a.resolve(name)); err != nil {
			return fmt.Errorf("wc: delete-entry removing %s: %w", name, err)
		}
	}
	delete(entries, name)
	return a.Area.WriteEntries(entries)
}

// ModifyEntry creates or updates name's entry record from attrs.
func (a *LogApplier) ModifyEntry(name string, attrs map[string]string) error {
	entries, err := a.Area.ReadEntries()
	if err != nil {
		return err
	}
	entry, ok := entries[name]
	if !ok {
		entry = &Entry{Name: name}
		entries[name] = entry
	}
	for k, v := range attrs {
		switch k {
		case "kind":
			if v == "dir" {
				entry.Kind = KindDir
			} else {
				entry.Kind = KindFile
			}
		case "revision":
			rev, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("wc: modify-entry %s: bad revision %q: %w", name, v, err)
			}
			entry.Revision = rev
		case "url":
			entry.URL = v
		case "schedule":
			switch v {
			case "add":
				entry.Schedule = ScheduleAdd
			case "delete":
				entry.Schedule = ScheduleDelete
			case "replace":
				entry.Schedule = ScheduleReplace
			default:
				entry.Schedule = ScheduleNormal
			}
		case "conflicted":
			entry.Conflicted = v == "1"
		case "text-reject-file":
			entry.TextRejectFile = v
		case "prop-reject-file":
			entry.PropRejectFile = v
		case "text-time":
			if v == "working" {
				entry.TextTime = time.Now()
			}
		case "prop-time":
			if v == "working" {
				entry.PropTime = time.Now()
			}
		default:
			if entry.Attrs == nil {
				entry.Attrs = map[string]string{}
			}
			entry.Attrs[k] = v
		}
	}
	return a.Area.WriteEntries(entries)
}

// Mv renames name to dest within the directory. A missing source with
// an already-present destination is treated as already applied.
func (a *LogApplier) Mv(name, dest string) error {
	src, dst := a.resolve(name), a.resolve(dest)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

// Cp copies name to dest. Translation (EOL/keyword) attrs are passed
// through unapplied here; package installer overrides Cp to perform
// the actual translation, since the base
// admin-area applier has no opinion on working-copy eol-style/keyword
// policy.
func (a *LogApplier) Cp(name, dest string, attrs map[string]string) error {
	data, err := os.ReadFile(a.resolve(name))
	if err != nil {
		return fmt.Errorf("wc: cp reading %s: %w", name, err)
	}
	dst := a.resolve(dest)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

// Rm removes name. Already-absent is not an error.
func (a *LogApplier) Rm(name string) error {
	err := os.Remove(a.resolve(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Readonly makes name read-only.
func (a *LogApplier) Readonly(name string) error {
	err := os.Chmod(a.resolve(name), 0444)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// RunCmd is not implemented by the base applier: invoking external
// tools is package installer's concern (installer/difftool), which
// embeds LogApplier and overrides this method.
func (a *LogApplier) RunCmd(name string, args []string, infile string) error {
	return fmt.Errorf("wc: run-cmd %q not supported by base admin-area applier", name)
}

// DetectConflict sets or clears the entry's conflicted flag based on
// the reject file: if reject-file names a file that exists and is
// non-empty, the entry is marked conflicted; otherwise any leftover
// empty reject file is removed and the flag cleared.
func (a *LogApplier) DetectConflict(name, rejectFile string) error {
	entries, err := a.Area.ReadEntries()
	if err != nil {
		return err
	}
	entry, ok := entries[name]
	if !ok {
		entry = &Entry{Name: name}
		entries[name] = entry
	}
	if rejectFile == "" {
		entry.Conflicted = false
		entry.TextRejectFile = ""
		return a.Area.WriteEntries(entries)
	}
	if info, err := os.Stat(a.resolve(rejectFile)); err == nil && info.Size() > 0 {
		entry.Conflicted = true
		entry.TextRejectFile = rejectFile
	} else {
		if err := os.Remove(a.resolve(rejectFile)); err != nil && !os.IsNotExist(err) {
			return err
		}
		entry.Conflicted = false
		entry.TextRejectFile = ""
	}
	return a.Area.WriteEntries(entries)
}
