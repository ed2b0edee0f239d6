package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fernvc/wcedit/config"
	"github.com/fernvc/wcedit/dag"
	"github.com/fernvc/wcedit/dag/memstore"
	"github.com/fernvc/wcedit/installer"
)

// demoFiles seeds a small tree so checkout/update/switch/dag-render
// have something to operate on without a real repository connection.
var demoFiles = map[string]string{
	"README.txt": "hello from wcedit\n",
	"src/main.go": "package main\n\nfunc main() {}\n",
}

// seedDemoRepo builds a tiny committed repository in an in-memory
// store: one transaction creating a directory and two files, their
// checksums verified concurrently through installer.FinalizeBatch
// before the transaction commits.
func seedDemoRepo(cfg *config.Config, log *logrus.Entry) (*dag.DagFS, dag.NodeId, error) {
	store := memstore.New()
	repo, root, err := dag.InitFS(store, store)
	if err != nil {
		return nil, dag.NodeId{}, fmt.Errorf("wcedit: initializing demo repository: %w", err)
	}

	txnID := store.Begin(root)
	rootNode, err := dag.CloneRoot(repo, txnID)
	if err != nil {
		return nil, dag.NodeId{}, err
	}
	srcDir, err := dag.MakeDir(repo, rootNode, "", "src", txnID)
	if err != nil {
		return nil, dag.NodeId{}, err
	}

	var batch []installer.BatchItem
	for relPath, content := range demoFiles {
		parent, parentPath, name := demoParent(rootNode, srcDir, relPath)
		node, err := dag.MakeFile(repo, parent, parentPath, name, txnID)
		if err != nil {
			return nil, dag.NodeId{}, err
		}
		key, _, checksum, err := store.WriteData(strings.NewReader(content))
		if err != nil {
			return nil, dag.NodeId{}, err
		}
		if err := dag.SetDataRep(repo, node, key, checksum); err != nil {
			return nil, dag.NodeId{}, err
		}
		batch = append(batch, installer.BatchItem{Node: node, Checksum: checksum})
	}

	for i, verifyErr := range installer.FinalizeBatch(repo, batch, cfg.WorkerPoolSize) {
		if verifyErr != nil {
			return nil, dag.NodeId{}, fmt.Errorf("wcedit: finalizing seeded node %d: %w", i, verifyErr)
		}
	}

	_, newRoot, err := dag.CommitTxn(repo, txnID)
	if err != nil {
		return nil, dag.NodeId{}, err
	}
	log.WithField("root", newRoot).Debug("seeded demo repository")
	return repo, newRoot, nil
}

// demoParent resolves relPath ("src/main.go") to the DagNode it
// belongs under, that node's created-path, and its basename.
func demoParent(root, srcDir *dag.DagNode, relPath string) (parent *dag.DagNode, parentPath, name string) {
	if i := strings.LastIndexByte(relPath, '/'); i >= 0 {
		return srcDir, relPath[:i], relPath[i+1:]
	}
	return root, "", relPath
}
