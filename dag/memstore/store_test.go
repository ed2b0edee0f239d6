package memstore_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernvc/wcedit/dag"
	"github.com/fernvc/wcedit/dag/memstore"
)

func TestInitFSBootstrapsEmptyRoot(t *testing.T) {
	store := memstore.New()
	fs, root, err := dag.InitFS(store, store)
	require.NoError(t, err)
	require.False(t, root.Mutable())
	assert.Equal(t, int64(0), root.Revnum)

	node, err := dag.GetNode(fs, root)
	require.NoError(t, err)
	entries, err := dag.DirectoryEntries(fs, node)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteDataRoundTrips(t *testing.T) {
	store := memstore.New()
	key, size, checksum, err := store.WriteData(strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, int64(len("hello world")), size)
	assert.NotEmpty(t, checksum)

	r, err := store.OpenData(key)
	require.NoError(t, err)
	defer r.Close()
	buf := make([]byte, size)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf[:n]))
}

func TestCommitTxnRemapsEntries(t *testing.T) {
	store := memstore.New()
	fs, root, err := dag.InitFS(store, store)
	require.NoError(t, err)

	txn := store.Begin(root)
	txnRoot, err := dag.CloneRoot(fs, txn)
	require.NoError(t, err)
	_, err = dag.MakeFile(fs, txnRoot, "", "a", txn)
	require.NoError(t, err)

	revnum, committedRoot, err := dag.CommitTxn(fs, txn)
	require.NoError(t, err)
	assert.Equal(t, int64(1), revnum)
	assert.False(t, committedRoot.Mutable())

	node, err := dag.GetNode(fs, committedRoot)
	require.NoError(t, err)
	entries, err := dag.DirectoryEntries(fs, node)
	require.NoError(t, err)
	entry, ok := entries["a"]
	require.True(t, ok)
	assert.False(t, entry.ID.Mutable())
	assert.Equal(t, revnum, entry.ID.Revnum)
}
