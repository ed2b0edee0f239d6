package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Applier is the per-directory collaborator that actually performs each
// log tag's effect against the working copy's admin area and on-disk
// files. Every method must be safely re-appliable: Replay may be
// re-entered against a log whose previous run applied some prefix of
// its tags before crashing.
type Applier interface {
	DeleteEntry(name string) error
	ModifyEntry(name string, attrs map[string]string) error
	Mv(name, dest string) error
	Cp(name, dest string, attrs map[string]string) error
	Rm(name string) error
	Readonly(name string) error
	RunCmd(name string, args []string, infile string) error
	DetectConflict(name, rejectFile string) error
}

// Replay reads dir's pending log file (if any), applies every tag in
// order against applier, and removes the log file only once every tag
// has succeeded. If no log file exists, Replay is a no-op — this is
// what callers use on every directory access, so a log left behind by
// a crash is replayed to completion before any new work begins.
func Replay(dir string, applier Applier) error {
	path := filepath.Join(dir, LogFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("journal: reading %s: %w", path, err)
	}
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		op, err := ParseLine(line)
		if err != nil {
			return fmt.Errorf("journal: parsing %s: %w", path, err)
		}
		if err := apply(applier, op); err != nil {
			return fmt.Errorf("journal: replaying %s (%s): %w", path, op.Name, err)
		}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("journal: removing %s: %w", path, err)
	}
	return nil
}

func apply(applier Applier, op Op) error {
	switch op.Name {
	case OpDeleteEntry:
		return applier.DeleteEntry(op.Attrs["name"])
	case OpModifyEntry:
		return applier.ModifyEntry(op.Attrs["name"], without(op.Attrs, "name"))
	case OpMv:
		return applier.Mv(op.Attrs["name"], op.Attrs["dest"])
	case OpCp:
		return applier.Cp(op.Attrs["name"], op.Attrs["dest"], without(op.Attrs, "name", "dest"))
	case OpRm:
		return applier.Rm(op.Attrs["name"])
	case OpReadonly:
		return applier.Readonly(op.Attrs["name"])
	case OpRunCmd:
		return applier.RunCmd(op.Attrs["name"], extractArgs(op.Attrs), op.Attrs["infile"])
	case OpDetectConflict:
		return applier.DetectConflict(op.Attrs["name"], op.Attrs["reject-file"])
	default:
		return fmt.Errorf("unknown operation %q", op.Name)
	}
}

func without(attrs map[string]string, keys ...string) map[string]string {
	skip := make(map[string]bool, len(keys))
	for _, k := range keys {
		skip[k] = true
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		if !skip[k] {
			out[k] = v
		}
	}
	return out
}

// extractArgs gathers arg-1, arg-2, ... in numeric order, ignoring
// "name" and "infile".
func extractArgs(attrs map[string]string) []string {
	type indexed struct {
		i int
		v string
	}
	var found []indexed
	for k, v := range attrs {
		if !strings.HasPrefix(k, "arg-") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(k, "arg-"))
		if err != nil {
			continue
		}
		found = append(found, indexed{n, v})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].i < found[j].i })
	args := make([]string, len(found))
	for i, f := range found {
		args[i] = f.v
	}
	return args
}
