package editor

import (
	"github.com/fernvc/wcedit/journal"
	"github.com/fernvc/wcedit/wc"
)

// newLogApplier returns the admin area's base log applier. The editor
// only replays logs directly for entry deletes (DirScope.DeleteEntry);
// property merges go through the Installer, and run-cmd-bearing logs are replayed by package
// installer using its own applier that knows how to invoke external
// tools.
func newLogApplier(area *wc.AdminArea) journal.Applier {
	return wc.NewLogApplier(area)
}
