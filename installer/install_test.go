package installer_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernvc/wcedit/editor"
	"github.com/fernvc/wcedit/installer"
	"github.com/fernvc/wcedit/installer/difftool"
	"github.com/fernvc/wcedit/wc"
)

func lines(ls ...string) string { return strings.Join(ls, "\n") + "\n" }

func setupArea(t *testing.T) (*wc.AdminArea, string) {
	t.Helper()
	dir := t.TempDir()
	area := wc.NewAdminArea(dir)
	require.NoError(t, area.Ensure())
	entries := map[string]*wc.Entry{
		wc.ThisDir: {Kind: wc.KindDir, Revision: 1},
		"foo.txt":  {Kind: wc.KindFile, Revision: 1, URL: "file:///repo/foo.txt"},
	}
	require.NoError(t, area.WriteEntries(entries))
	require.NoError(t, os.WriteFile(area.TextBasePath("foo.txt"), []byte("old\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.txt"), []byte("old\n"), 0644))
	return area, dir
}

func newInstaller(admin *wc.AdminArea) *installer.Installer {
	resolve := func(string) *wc.AdminArea { return admin }
	return installer.New(resolve, difftool.Differ{Tool: difftool.Tool{Command: "diff -u {old} {new}"}}, difftool.Patcher{Tool: difftool.Tool{Command: "patch -r {reject} {target}"}}, nil)
}

func TestInstallFileNoLocalModsCopiesNewTextOver(t *testing.T) {
	area, dir := setupArea(t)
	inst := newInstaller(area)

	staged := filepath.Join(t.TempDir(), "staged")
	require.NoError(t, os.WriteFile(staged, []byte("new\n"), 0644))

	err := inst.InstallFile(editor.FileInstall{
		DirPath:         dir,
		Name:            "foo.txt",
		NewRevision:     2,
		NewTextBasePath: staged,
	})
	require.NoError(t, err)

	working, err := os.ReadFile(filepath.Join(dir, "foo.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(working))

	base, err := os.ReadFile(area.TextBasePath("foo.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(base))

	info, err := os.Stat(area.TextBasePath("foo.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0444), info.Mode().Perm())

	entries, err := area.ReadEntries()
	require.NoError(t, err)
	assert.Equal(t, int64(2), entries["foo.txt"].Revision)
}

func TestInstallFilePropertyMergeNoConflict(t *testing.T) {
	area, dir := setupArea(t)
	inst := newInstaller(area)

	value := "native"
	err := inst.InstallFile(editor.FileInstall{
		DirPath:         dir,
		Name:            "foo.txt",
		NewRevision:     2,
		NewTextBasePath: "",
		Props:           []editor.PropChange{{Name: "svn:eol-style", Value: &value}},
		PropsDefinitive: false,
	})
	require.NoError(t, err)

	entries, err := area.ReadEntries()
	require.NoError(t, err)
	assert.Equal(t, int64(2), entries["foo.txt"].Revision)
}

func TestInstallFileBinaryLocalModsRenamesWorkingFile(t *testing.T) {
	area, dir := setupArea(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.txt"), []byte("locally changed\n"), 0644))
	inst := newInstaller(area)

	staged := filepath.Join(t.TempDir(), "staged")
	require.NoError(t, os.WriteFile(staged, []byte{0x00, 0x01, 0x02, 0x03}, 0644))

	value := "application/octet-stream"
	err := inst.InstallFile(editor.FileInstall{
		DirPath:         dir,
		Name:            "foo.txt",
		NewRevision:     3,
		NewTextBasePath: staged,
		Props:           []editor.PropChange{{Name: "svn:mime-type", Value: &value}},
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "foo.txt.orig.3"))
	newWorking, err := os.ReadFile(filepath.Join(dir, "foo.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0x02, 0x03}, newWorking)
}

// S3 (locally-modified text, disjoint incoming edit): the working file
// diverges from its text-base on one line; the incoming text-base
// diverges on a different, distant line. The external patch finds
// matching context around the incoming hunk and applies cleanly,
// leaving the local edit intact alongside it.
func TestInstallFileScenarioS3LocallyModifiedMergesCleanly(t *testing.T) {
	dir := t.TempDir()
	area := wc.NewAdminArea(dir)
	require.NoError(t, area.Ensure())
	entries := map[string]*wc.Entry{
		wc.ThisDir: {Kind: wc.KindDir, Revision: 1},
		"f.txt":    {Kind: wc.KindFile, Revision: 1, URL: "file:///repo/f.txt"},
	}
	require.NoError(t, area.WriteEntries(entries))

	base := lines("l1", "l2", "l3", "l4", "l5", "l6", "l7", "l8", "l9", "l10")
	require.NoError(t, os.WriteFile(area.TextBasePath("f.txt"), []byte(base), 0644))

	working := lines("l1", "l2", "l3", "l4", "l5", "l6", "l7", "l8", "L9local", "l10")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte(working), 0644))

	incoming := lines("l1", "L2incoming", "l3", "l4", "l5", "l6", "l7", "l8", "l9", "l10")
	staged := filepath.Join(t.TempDir(), "staged")
	require.NoError(t, os.WriteFile(staged, []byte(incoming), 0644))

	inst := newInstaller(area)
	err := inst.InstallFile(editor.FileInstall{
		DirPath:         dir,
		Name:            "f.txt",
		NewRevision:     2,
		NewTextBasePath: staged,
	})
	require.NoError(t, err)

	merged, err := os.ReadFile(filepath.Join(dir, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, lines("l1", "L2incoming", "l3", "l4", "l5", "l6", "l7", "l8", "L9local", "l10"), string(merged))
	assert.NoFileExists(t, filepath.Join(dir, "f.txt.rej"))

	entriesAfter, err := area.ReadEntries()
	require.NoError(t, err)
	assert.False(t, entriesAfter["f.txt"].Conflicted)
	assert.NotZero(t, entriesAfter["f.txt"].PropTime, "no property conflicts: prop-time stamped")
}

// S4 (locally-modified text, colliding incoming edit): both the
// working file and the incoming text-base rewrite the same line with
// no surrounding context to disambiguate, so the external patch cannot
// apply and leaves a reject file.
func TestInstallFileScenarioS4LocallyModifiedConflicts(t *testing.T) {
	dir := t.TempDir()
	area := wc.NewAdminArea(dir)
	require.NoError(t, area.Ensure())
	entries := map[string]*wc.Entry{
		wc.ThisDir: {Kind: wc.KindDir, Revision: 1},
		"f.txt":    {Kind: wc.KindFile, Revision: 1, URL: "file:///repo/f.txt"},
	}
	require.NoError(t, area.WriteEntries(entries))

	require.NoError(t, os.WriteFile(area.TextBasePath("f.txt"), []byte("abc\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("aZc\n"), 0644))

	staged := filepath.Join(t.TempDir(), "staged")
	require.NoError(t, os.WriteFile(staged, []byte("aYc\n"), 0644))

	inst := newInstaller(area)
	err := inst.InstallFile(editor.FileInstall{
		DirPath:         dir,
		Name:            "f.txt",
		NewRevision:     2,
		NewTextBasePath: staged,
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "f.txt.rej"))

	entriesAfter, err := area.ReadEntries()
	require.NoError(t, err)
	assert.True(t, entriesAfter["f.txt"].Conflicted)
	assert.Equal(t, "f.txt.rej", entriesAfter["f.txt"].TextRejectFile)
}
