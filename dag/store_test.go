package dag_test

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernvc/wcedit/dag"
	"github.com/fernvc/wcedit/dag/memstore"
)

func TestOpenDataReadsCommittedContent(t *testing.T) {
	store := memstore.New()
	fs, root, err := dag.InitFS(store, store)
	require.NoError(t, err)

	txn := store.Begin(root)
	rootNode, err := dag.CloneRoot(fs, txn)
	require.NoError(t, err)
	file, err := dag.MakeFile(fs, rootNode, "", "foo.txt", txn)
	require.NoError(t, err)

	key, _, checksum, err := store.WriteData(strings.NewReader("hello"))
	require.NoError(t, err)
	require.NoError(t, dag.SetDataRep(fs, file, key, checksum))

	r, err := dag.OpenData(fs, file)
	require.NoError(t, err)
	defer r.Close()
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestOpenDataOnNeverWrittenFileReadsEmpty(t *testing.T) {
	store := memstore.New()
	fs, root, err := dag.InitFS(store, store)
	require.NoError(t, err)

	txn := store.Begin(root)
	rootNode, err := dag.CloneRoot(fs, txn)
	require.NoError(t, err)
	file, err := dag.MakeFile(fs, rootNode, "", "empty.txt", txn)
	require.NoError(t, err)

	r, err := dag.OpenData(fs, file)
	require.NoError(t, err)
	defer r.Close()
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, content)
}
