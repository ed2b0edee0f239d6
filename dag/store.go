package dag

import (
	"bytes"
	"io"
)

// TransactionStore is the external collaborator that maps
// transaction identifiers to their root NodeId and base-root NodeId,
// creates new nodes and successor nodes, and persists directory entry
// mutations. The DAG package never touches disk/network itself; every
// DagFS is built over one of these.
type TransactionStore interface {
	// Read fetches the committed or in-transaction NodeRevision for id.
	Read(id NodeId) (NodeRevision, error)

	// TxnRoots returns the transaction's current root NodeId and the
	// base-root NodeId it was opened against.
	TxnRoots(txnID string) (root, base NodeId, err error)

	// CreateNode allocates a brand new node-revision in txnID, sharing
	// copyID with its parent, and returns its fresh NodeId.
	CreateNode(txnID, copyID string, rev NodeRevision) (NodeId, error)

	// CreateSuccessor allocates a new node-revision that is a successor
	// of pred, under a (possibly different) copyID, inside txnID.
	CreateSuccessor(txnID, copyID string, pred NodeId, rev NodeRevision) (NodeId, error)

	// SetRoot replaces the transaction's root NodeId (used by
	// CloneRoot when the root must first be cloned from the base).
	SetRoot(txnID string, root NodeId) error

	// Write persists a mutated NodeRevision for an already-mutable id.
	Write(id NodeId, rev NodeRevision) error

	// CommitTxn atomically promotes every node created or modified in
	// txnID to a new committed revision and returns that revision's
	// number and root NodeId.
	CommitTxn(txnID string) (revnum int64, root NodeId, err error)
}

// RepresentationStore is the external collaborator resolving data/property
// representations to byte streams and proplists. The DAG
// layer stores only RepKey pointers; it never inspects representation
// content except through ThingsDifferent's pointer-equality comparison.
type RepresentationStore interface {
	OpenData(key RepKey) (io.ReadCloser, error)
	OpenProps(key RepKey) (map[string]string, error)

	// WriteData stores r as a new representation and returns its key
	// along with the number of bytes read and a content checksum
	// suitable for FinalizeEdits comparison.
	WriteData(r io.Reader) (key RepKey, size int64, checksum string, err error)
	WriteProps(props map[string]string) (RepKey, error)
}

// The operations below have no externally mandated contract; their
// behavior is fixed here so every caller in this repository can rely
// on them.

// Delete removes name from parent's entries. Preconditions: parent is a
// mutable directory. If requireEmpty is true and the named child is
// itself a non-empty directory, Delete refuses with ErrDirectoryNotEmpty.
func Delete(fs *DagFS, parent *DagNode, name string, requireEmpty bool) error {
	if parent.Kind() != KindDir {
		return ErrNotDirectory
	}
	if !parent.id.Mutable() {
		return ErrNotMutable
	}
	rev, err := parent.revision(fs)
	if err != nil {
		return err
	}
	entry, ok := rev.Entries[name]
	if !ok {
		return ErrNotFound
	}
	if requireEmpty && entry.Kind == KindDir {
		child, err := GetNode(fs, entry.ID)
		if err != nil {
			return err
		}
		childRev, err := child.revision(fs)
		if err != nil {
			return err
		}
		if len(childRev.Entries) > 0 {
			return ErrDirectoryNotEmpty
		}
	}
	next := rev.Clone()
	delete(next.Entries, name)
	if err := fs.store.Write(parent.id, next); err != nil {
		return err
	}
	parent.invalidate()
	return nil
}

// SetDataRep installs a newly written data representation on a mutable
// node and stashes the checksum the RepresentationStore computed while
// writing it. The stream stays "open" (EditKey set) until FinalizeEdits
// confirms the sender's checksum against it.
func SetDataRep(fs *DagFS, node *DagNode, key RepKey, computedChecksum string) error {
	if !node.id.Mutable() {
		return ErrNotMutable
	}
	rev, err := node.revision(fs)
	if err != nil {
		return err
	}
	next := rev.Clone()
	next.DataRep = &key
	next.EditKey = computedChecksum
	if err := fs.store.Write(node.id, next); err != nil {
		return err
	}
	node.invalidate()
	return nil
}

// FinalizeEdits validates the sender-supplied checksum against the
// node's running data hash captured by SetDataRep, closing its EditKey.
// It fails ErrChecksumMismatch on disagreement.
func FinalizeEdits(fs *DagFS, node *DagNode, checksum string) error {
	rev, err := node.revision(fs)
	if err != nil {
		return err
	}
	if rev.EditKey != "" && checksum != "" && rev.EditKey != checksum {
		return ErrChecksumMismatch
	}
	next := rev.Clone()
	next.EditKey = ""
	if err := fs.store.Write(node.id, next); err != nil {
		return err
	}
	node.invalidate()
	return nil
}

// CommitTxn atomically promotes all nodes of txnID to a new committed
// revision. Thin wrapper so callers go through DagFS rather than the
// raw TransactionStore.
func CommitTxn(fs *DagFS, txnID string) (int64, NodeId, error) {
	return fs.store.CommitTxn(txnID)
}

// Deltify is a required operation whose contract is representation
// compaction against a predecessor (storing the new representation as a
// diff against the old one to save space). Representation storage is
// external to this repository, so there is
// nothing here to compact against; this documents the contract without
// implementing storage-layer compression.
// TODO: wire a real delta-compaction RepresentationStore and call it here.
func Deltify(fs *DagFS, node *DagNode) error {
	return nil
}

// SetProplist replaces a node's property representation pointer within
// its transaction, refusing immutable nodes.
func SetProplist(fs *DagFS, node *DagNode, props map[string]string) error {
	if !node.id.Mutable() {
		return ErrNotMutable
	}
	rev, err := node.revision(fs)
	if err != nil {
		return err
	}
	key, err := fs.reps.WriteProps(props)
	if err != nil {
		return err
	}
	next := rev.Clone()
	next.PropRep = &key
	if err := fs.store.Write(node.id, next); err != nil {
		return err
	}
	node.invalidate()
	return nil
}

// InitFS bootstraps an empty repository: one committed revision 0 whose
// root is an empty directory, so a fresh DagFS has something to check
// out from.
func InitFS(store TransactionStore, reps RepresentationStore) (*DagFS, NodeId, error) {
	fs := NewDagFS(store, reps)
	root, err := store.CreateNode("", "0", NodeRevision{
		Kind:             KindDir,
		PredecessorCount: 0,
		CreatedPath:      "",
		Entries:          map[string]DirEntry{},
	})
	if err != nil {
		return nil, NodeId{}, err
	}
	// Passing an empty txnID asks the store to create the node already
	// committed: TxnID == "" and Revnum == 0, the repository's initial
	// empty revision.
	return fs, root, nil
}

// OpenData opens node's data representation for reading. A file node
// with no data representation yet (freshly created, never written to)
// reads back as empty.
func OpenData(fs *DagFS, node *DagNode) (io.ReadCloser, error) {
	rev, err := node.revision(fs)
	if err != nil {
		return nil, err
	}
	if rev.DataRep == nil {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	return fs.reps.OpenData(*rev.DataRep)
}
