package installer_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernvc/wcedit/dag"
	"github.com/fernvc/wcedit/dag/memstore"
	"github.com/fernvc/wcedit/installer"
)

func TestFinalizeBatchVerifiesEveryItem(t *testing.T) {
	store := memstore.New()
	fs, root, err := dag.InitFS(store, store)
	require.NoError(t, err)

	txn := store.Begin(root)
	rootNode, err := dag.CloneRoot(fs, txn)
	require.NoError(t, err)

	var batch []installer.BatchItem
	names := []string{"a.txt", "b.txt", "c.txt"}
	for _, name := range names {
		node, err := dag.MakeFile(fs, rootNode, "", name, txn)
		require.NoError(t, err)
		key, _, checksum, err := store.WriteData(strings.NewReader(name))
		require.NoError(t, err)
		require.NoError(t, dag.SetDataRep(fs, node, key, checksum))
		batch = append(batch, installer.BatchItem{Node: node, Checksum: checksum})
	}

	errs := installer.FinalizeBatch(fs, batch, 2)
	require.Len(t, errs, len(names))
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestFinalizeBatchReportsChecksumMismatch(t *testing.T) {
	store := memstore.New()
	fs, root, err := dag.InitFS(store, store)
	require.NoError(t, err)

	txn := store.Begin(root)
	rootNode, err := dag.CloneRoot(fs, txn)
	require.NoError(t, err)
	node, err := dag.MakeFile(fs, rootNode, "", "a.txt", txn)
	require.NoError(t, err)
	key, _, checksum, err := store.WriteData(strings.NewReader("a.txt"))
	require.NoError(t, err)
	require.NoError(t, dag.SetDataRep(fs, node, key, checksum))

	errs := installer.FinalizeBatch(fs, []installer.BatchItem{{Node: node, Checksum: "wrong"}}, 1)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], dag.ErrChecksumMismatch)
}

func TestFinalizeBatchDefaultsNonPositivePoolSize(t *testing.T) {
	store := memstore.New()
	fs, root, err := dag.InitFS(store, store)
	require.NoError(t, err)

	txn := store.Begin(root)
	rootNode, err := dag.CloneRoot(fs, txn)
	require.NoError(t, err)
	node, err := dag.MakeFile(fs, rootNode, "", "a.txt", txn)
	require.NoError(t, err)
	key, _, checksum, err := store.WriteData(strings.NewReader("a.txt"))
	require.NoError(t, err)
	require.NoError(t, dag.SetDataRep(fs, node, key, checksum))

	errs := installer.FinalizeBatch(fs, []installer.BatchItem{{Node: node, Checksum: checksum}}, 0)
	require.Len(t, errs, 1)
	assert.NoError(t, errs[0])
}
