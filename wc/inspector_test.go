package wc_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernvc/wcedit/wc"
)

func TestFSInspectorTextModified(t *testing.T) {
	dir := t.TempDir()
	area := wc.NewAdminArea(dir)
	require.NoError(t, area.Ensure())
	insp := wc.FSInspector{Area: area}

	require.NoError(t, os.WriteFile(area.TextBasePath("foo.txt"), []byte("pristine"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.txt"), []byte("pristine"), 0644))
	modified, err := insp.TextModified("foo.txt")
	require.NoError(t, err)
	assert.False(t, modified)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.txt"), []byte("edited"), 0644))
	modified, err = insp.TextModified("foo.txt")
	require.NoError(t, err)
	assert.True(t, modified)
}

func TestFSInspectorHasPropFile(t *testing.T) {
	dir := t.TempDir()
	area := wc.NewAdminArea(dir)
	require.NoError(t, area.Ensure())
	insp := wc.FSInspector{Area: area}

	has, err := insp.HasPropFile("foo.txt")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, os.WriteFile(area.PropsPath("foo.txt"), []byte("k: v\n"), 0644))
	has, err = insp.HasPropFile("foo.txt")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestFSInspectorRejectFilesExist(t *testing.T) {
	dir := t.TempDir()
	area := wc.NewAdminArea(dir)
	require.NoError(t, area.Ensure())
	insp := wc.FSInspector{Area: area}

	entry := &wc.Entry{TextRejectFile: "foo.txt.rej"}
	textReject, propReject, err := insp.RejectFilesExist(entry)
	require.NoError(t, err)
	assert.False(t, textReject)
	assert.False(t, propReject)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.txt.rej"), []byte("conflict"), 0644))
	textReject, propReject, err = insp.RejectFilesExist(entry)
	require.NoError(t, err)
	assert.True(t, textReject)
	assert.False(t, propReject)
}
