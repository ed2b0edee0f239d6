package dag_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernvc/wcedit/dag"
	"github.com/fernvc/wcedit/dag/memstore"
)

func newEmptyRepo(t *testing.T) (*dag.DagFS, *memstore.Store, dag.NodeId) {
	t.Helper()
	store := memstore.New()
	fs, root, err := dag.InitFS(store, store)
	require.NoError(t, err)
	return fs, store, root
}

// S6 (DAG clone-child): start from committed node root@r with child
// dir/file@r. Open a transaction t, clone-child(root, "", "dir", …, t)
// then clone-child(dir', "dir", "file", …, t). Both returned handles
// must report check-mutable(txn=t) == true; parent entries updated;
// file's predecessor-id equals the pre-clone id.
func TestCloneChildScenarioS6(t *testing.T) {
	fs, store, rootID := newEmptyRepo(t)

	txn0 := store.Begin(rootID)
	root, err := dag.CloneRoot(fs, txn0)
	require.NoError(t, err)
	dirNode, err := dag.MakeDir(fs, root, "", "dir", txn0)
	require.NoError(t, err)
	fileNode, err := dag.MakeFile(fs, dirNode, "dir", "file", txn0)
	require.NoError(t, err)
	_, committedRoot, err := dag.CommitTxn(fs, txn0)
	require.NoError(t, err)

	committedFileID := mustEntry(t, fs, &committedRoot, "dir", "file")
	require.Equal(t, fileNode.ID().NodeID, committedFileID.NodeID)

	txn1 := store.Begin(committedRoot)
	root1, err := dag.CloneRoot(fs, txn1)
	require.NoError(t, err)
	dir1, err := dag.CloneChild(fs, root1, "", "dir", "c1", txn1)
	require.NoError(t, err)
	file1, err := dag.CloneChild(fs, dir1, "dir", "file", "c1", txn1)
	require.NoError(t, err)

	assert.True(t, dag.CheckMutable(dir1, txn1))
	assert.True(t, dag.CheckMutable(file1, txn1))

	rootEntries, err := dag.DirectoryEntries(fs, root1)
	require.NoError(t, err)
	assert.Equal(t, dir1.ID(), rootEntries["dir"].ID)

	dirEntries, err := dag.DirectoryEntries(fs, dir1)
	require.NoError(t, err)
	assert.Equal(t, file1.ID(), dirEntries["file"].ID)

	var predecessor *dag.NodeId
	err = dag.WalkPredecessors(fs, file1, func(current *dag.DagNode, done *bool) {
		if current != nil && predecessor == nil {
			id := current.ID()
			predecessor = &id
		}
		*done = true
	})
	require.NoError(t, err)
	require.NotNil(t, predecessor)
	assert.Equal(t, committedFileID, *predecessor)
}

func mustEntry(t *testing.T, fs *dag.DagFS, root *dag.NodeId, names ...string) dag.NodeId {
	t.Helper()
	node, err := dag.GetNode(fs, *root)
	require.NoError(t, err)
	var id dag.NodeId
	for _, name := range names {
		entries, err := dag.DirectoryEntries(fs, node)
		require.NoError(t, err)
		entry, ok := entries[name]
		require.True(t, ok, "missing entry %q", name)
		id = entry.ID
		node, err = dag.GetNode(fs, id)
		require.NoError(t, err)
	}
	return id
}

func TestMakeFileRejectsDuplicateName(t *testing.T) {
	fs, store, rootID := newEmptyRepo(t)
	txn := store.Begin(rootID)
	root, err := dag.CloneRoot(fs, txn)
	require.NoError(t, err)
	_, err = dag.MakeFile(fs, root, "", "x", txn)
	require.NoError(t, err)
	_, err = dag.MakeFile(fs, root, "", "x", txn)
	assert.ErrorIs(t, err, dag.ErrAlreadyExists)
}

func TestMakeFileRejectsBadName(t *testing.T) {
	fs, store, rootID := newEmptyRepo(t)
	txn := store.Begin(rootID)
	root, err := dag.CloneRoot(fs, txn)
	require.NoError(t, err)
	_, err = dag.MakeFile(fs, root, "", "a/b", txn)
	assert.ErrorIs(t, err, dag.ErrNotSinglePathComponent)
	_, err = dag.MakeFile(fs, root, "", "..", txn)
	assert.ErrorIs(t, err, dag.ErrNotSinglePathComponent)
}

func TestMakeFileRequiresMutableParent(t *testing.T) {
	fs, _, rootID := newEmptyRepo(t)
	root, err := dag.GetNode(fs, rootID)
	require.NoError(t, err)
	_, err = dag.MakeFile(fs, root, "", "x", "some-other-txn")
	assert.ErrorIs(t, err, dag.ErrNotMutable)
}

func TestIsAncestorAndIsParent(t *testing.T) {
	fs, store, rootID := newEmptyRepo(t)
	txn := store.Begin(rootID)
	root, err := dag.CloneRoot(fs, txn)
	require.NoError(t, err)
	_, err = dag.MakeFile(fs, root, "", "f", txn)
	require.NoError(t, err)
	_, committedRoot, err := dag.CommitTxn(fs, txn)
	require.NoError(t, err)
	fileV1ID := mustEntry(t, fs, &committedRoot, "f")
	fileV1, err := dag.GetNode(fs, fileV1ID)
	require.NoError(t, err)

	txn2 := store.Begin(committedRoot)
	root2, err := dag.CloneRoot(fs, txn2)
	require.NoError(t, err)
	fileV2, err := dag.CloneChild(fs, root2, "", "f", "0", txn2)
	require.NoError(t, err)

	isAncestor, err := dag.IsAncestor(fs, fileV1, fileV2)
	require.NoError(t, err)
	assert.True(t, isAncestor)

	isParent, err := dag.IsParent(fs, fileV1, fileV2)
	require.NoError(t, err)
	assert.True(t, isParent)

	unrelated, err := dag.MakeFile(fs, root2, "", "g", txn2)
	require.NoError(t, err)
	related, err := dag.IsAncestor(fs, unrelated, fileV2)
	require.NoError(t, err)
	assert.False(t, related)
}

func TestSetEntryRequiresSingleComponentAndMutability(t *testing.T) {
	fs, store, rootID := newEmptyRepo(t)
	txn := store.Begin(rootID)
	root, err := dag.CloneRoot(fs, txn)
	require.NoError(t, err)
	file, err := dag.MakeFile(fs, root, "", "f", txn)
	require.NoError(t, err)

	err = dag.SetEntry(fs, root, "bad/name", file.ID(), dag.KindFile, txn)
	assert.ErrorIs(t, err, dag.ErrNotSinglePathComponent)

	immutableRoot, err := dag.GetNode(fs, rootID)
	require.NoError(t, err)
	err = dag.SetEntry(fs, immutableRoot, "x", file.ID(), dag.KindFile, "other")
	assert.ErrorIs(t, err, dag.ErrNotMutable)
}

func TestDeleteRefusesNonEmptyDirectoryWhenRequired(t *testing.T) {
	fs, store, rootID := newEmptyRepo(t)
	txn := store.Begin(rootID)
	root, err := dag.CloneRoot(fs, txn)
	require.NoError(t, err)
	dir, err := dag.MakeDir(fs, root, "", "d", txn)
	require.NoError(t, err)
	_, err = dag.MakeFile(fs, dir, "d", "f", txn)
	require.NoError(t, err)

	err = dag.Delete(fs, root, "d", true)
	assert.ErrorIs(t, err, dag.ErrDirectoryNotEmpty)

	err = dag.Delete(fs, root, "d", false)
	require.NoError(t, err)
	entries, err := dag.DirectoryEntries(fs, root)
	require.NoError(t, err)
	_, stillThere := entries["d"]
	assert.False(t, stillThere)
}

func TestFinalizeEditsChecksumMismatch(t *testing.T) {
	fs, store, rootID := newEmptyRepo(t)
	txn := store.Begin(rootID)
	root, err := dag.CloneRoot(fs, txn)
	require.NoError(t, err)
	file, err := dag.MakeFile(fs, root, "", "f", txn)
	require.NoError(t, err)

	key, _, checksum, err := store.WriteData(strings.NewReader("hello\n"))
	require.NoError(t, err)
	require.NoError(t, dag.SetDataRep(fs, file, key, checksum))

	err = dag.FinalizeEdits(fs, file, "not-the-right-checksum")
	assert.ErrorIs(t, err, dag.ErrChecksumMismatch)

	err = dag.FinalizeEdits(fs, file, checksum)
	assert.NoError(t, err)
}
