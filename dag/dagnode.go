package dag

import "strings"

// DagFS is the read/write surface callers hold: a TransactionStore plus
// a RepresentationStore. It hands out DagNode handles.
type DagFS struct {
	store TransactionStore
	reps  RepresentationStore
}

func NewDagFS(store TransactionStore, reps RepresentationStore) *DagFS {
	return &DagFS{store: store, reps: reps}
}

// DagNode is a handle combining a NodeId with a cached NodeRevision and
// derived metadata. Lifetime is tied to the caller's scoped arena
//; a mutable handle must never be shared across
// transactions. The cache is invalidated whenever an operation mutates
// the underlying node, so callers always re-read fresh state.
type DagNode struct {
	id    NodeId
	cache *NodeRevision

	kind        Kind
	createdPath string
	kindLoaded  bool
}

// GetNode fetches the NodeRevision for id, populating a new handle.
// Fails ErrNotFound if the id is unknown.
func GetNode(fs *DagFS, id NodeId) (*DagNode, error) {
	rev, err := fs.store.Read(id)
	if err != nil {
		return nil, err
	}
	n := &DagNode{id: id}
	n.setCache(rev)
	return n, nil
}

func (n *DagNode) setCache(rev NodeRevision) {
	n.cache = &rev
	n.kind = rev.Kind
	n.createdPath = rev.CreatedPath
	n.kindLoaded = true
}

func (n *DagNode) invalidate() { n.cache = nil }

// ID returns the handle's NodeId.
func (n *DagNode) ID() NodeId { return n.id }

// Kind is available eagerly once the handle has been populated.
func (n *DagNode) Kind() Kind { return n.kind }

// CreatedPath is available eagerly once the handle has been populated.
func (n *DagNode) CreatedPath() string { return n.createdPath }

func (n *DagNode) revision(fs *DagFS) (NodeRevision, error) {
	if n.cache != nil {
		return *n.cache, nil
	}
	rev, err := fs.store.Read(n.id)
	if err != nil {
		return NodeRevision{}, err
	}
	n.setCache(rev)
	return rev, nil
}

// Revision returns node's full NodeRevision, fetching it if the
// handle's cache has been invalidated.
func (n *DagNode) Revision(fs *DagFS) (NodeRevision, error) {
	return n.revision(fs)
}

// CheckMutable reports whether node's id carries a txn-id. The value
// of txn-id is not currently required to match txnID — a known
// looseness, tracked as an open question.
func CheckMutable(node *DagNode, txnID string) bool {
	return node.id.TxnID != ""
}

// WalkPredecessors lazily traverses node's predecessor chain, newest to
// oldest; node itself is not visited. visit is invoked with each
// predecessor in turn; setting *done stops the traversal early. After
// the last real node, visit is called once more with a nil current to
// signal exhaustion.
func WalkPredecessors(fs *DagFS, node *DagNode, visit func(current *DagNode, done *bool)) error {
	rev, err := node.revision(fs)
	if err != nil {
		return err
	}
	done := false
	predID := rev.PredecessorID
	for predID != nil {
		current, err := GetNode(fs, *predID)
		if err != nil {
			return err
		}
		visit(current, &done)
		if done {
			return nil
		}
		curRev, err := current.revision(fs)
		if err != nil {
			return err
		}
		predID = curRev.PredecessorID
	}
	visit(nil, &done)
	return nil
}

// DirectoryEntries returns node's entry mapping. Fails ErrNotDirectory
// if node is not a directory.
func DirectoryEntries(fs *DagFS, node *DagNode) (map[string]DirEntry, error) {
	if node.Kind() != KindDir {
		return nil, ErrNotDirectory
	}
	rev, err := node.revision(fs)
	if err != nil {
		return nil, err
	}
	return rev.Entries, nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return ErrNotSinglePathComponent
	}
	return nil
}

// SetEntry mutates parent's entries, overwriting any existing entry for
// name. The caller must ensure id is not an ancestor of parent; SetEntry itself only validates mutability and name
// shape.
func SetEntry(fs *DagFS, parent *DagNode, name string, id NodeId, kind Kind, txnID string) error {
	if parent.Kind() != KindDir {
		return ErrNotDirectory
	}
	if err := validateName(name); err != nil {
		return err
	}
	if !CheckMutable(parent, txnID) {
		return ErrNotMutable
	}
	rev, err := parent.revision(fs)
	if err != nil {
		return err
	}
	next := rev.Clone()
	if next.Entries == nil {
		next.Entries = map[string]DirEntry{}
	}
	next.Entries[name] = DirEntry{ID: id, Kind: kind}
	if err := fs.store.Write(parent.id, next); err != nil {
		return err
	}
	parent.invalidate()
	return nil
}

func makeChild(fs *DagFS, parent *DagNode, parentPath, name string, txnID string, kind Kind) (*DagNode, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if parent.Kind() != KindDir {
		return nil, ErrNotDirectory
	}
	if !CheckMutable(parent, txnID) {
		return nil, ErrNotMutable
	}
	rev, err := parent.revision(fs)
	if err != nil {
		return nil, err
	}
	if _, exists := rev.Entries[name]; exists {
		return nil, ErrAlreadyExists
	}
	createdPath := joinPath(parentPath, name)
	var entries map[string]DirEntry
	if kind == KindDir {
		entries = map[string]DirEntry{}
	}
	childRev := NodeRevision{
		Kind:             kind,
		PredecessorCount: 0,
		CreatedPath:      createdPath,
		Entries:          entries,
	}
	childID, err := fs.store.CreateNode(txnID, parent.id.CopyID, childRev)
	if err != nil {
		return nil, err
	}
	if err := SetEntry(fs, parent, name, childID, kind, txnID); err != nil {
		return nil, err
	}
	child := &DagNode{id: childID}
	child.setCache(childRev)
	return child, nil
}

// MakeFile allocates a fresh file node under parent.
func MakeFile(fs *DagFS, parent *DagNode, parentPath, name string, txnID string) (*DagNode, error) {
	return makeChild(fs, parent, parentPath, name, txnID, KindFile)
}

// MakeDir allocates a fresh directory node under parent.
func MakeDir(fs *DagFS, parent *DagNode, parentPath, name string, txnID string) (*DagNode, error) {
	return makeChild(fs, parent, parentPath, name, txnID, KindDir)
}

// CloneChild obtains a mutable version of parent[name] in txnID. If the
// named child is already mutable in txnID, it is returned unchanged.
func CloneChild(fs *DagFS, parent *DagNode, parentPath, name, copyID, txnID string) (*DagNode, error) {
	rev, err := parent.revision(fs)
	if err != nil {
		return nil, err
	}
	entry, ok := rev.Entries[name]
	if !ok {
		return nil, ErrNotFound
	}
	child, err := GetNode(fs, entry.ID)
	if err != nil {
		return nil, err
	}
	if CheckMutable(child, txnID) {
		return child, nil
	}
	childRev, err := child.revision(fs)
	if err != nil {
		return nil, err
	}
	predID := child.id
	next := childRev.Clone()
	next.PredecessorID = &predID
	if next.PredecessorCount >= 0 {
		next.PredecessorCount++
	}
	next.CreatedPath = joinPath(parentPath, name)

	newID, err := fs.store.CreateSuccessor(txnID, copyID, child.id, next)
	if err != nil {
		return nil, err
	}
	if err := SetEntry(fs, parent, name, newID, entry.Kind, txnID); err != nil {
		return nil, err
	}
	successor := &DagNode{id: newID}
	successor.setCache(next)
	return successor, nil
}

// CloneRoot returns the transaction's mutable root, cloning it from the
// base-root first if the transaction has not yet diverged.
func CloneRoot(fs *DagFS, txnID string) (*DagNode, error) {
	root, base, err := fs.store.TxnRoots(txnID)
	if err != nil {
		return nil, err
	}
	if !root.Equal(base) {
		return GetNode(fs, root)
	}
	baseNode, err := GetNode(fs, base)
	if err != nil {
		return nil, err
	}
	baseRev, err := baseNode.revision(fs)
	if err != nil {
		return nil, err
	}
	predID := base
	next := baseRev.Clone()
	next.PredecessorID = &predID
	if next.PredecessorCount >= 0 {
		next.PredecessorCount++
	}
	newRoot, err := fs.store.CreateSuccessor(txnID, base.CopyID, base, next)
	if err != nil {
		return nil, err
	}
	if err := fs.store.SetRoot(txnID, newRoot); err != nil {
		return nil, err
	}
	n := &DagNode{id: newRoot}
	n.setCache(next)
	return n, nil
}

// Copy inserts entry -> fromNode.id into toNode. When preserveHistory is
// true, the new entry's node-revision records copyfrom-rev/path and a
// new copyroot; when false, the entry simply aliases fromNode (a "soft"
// copy with no copy provenance recorded).
func Copy(fs *DagFS, toNode *DagNode, entry string, fromNode *DagNode, preserveHistory bool, fromRev int64, fromPath string, txnID string) error {
	if !preserveHistory {
		return SetEntry(fs, toNode, entry, fromNode.id, fromNode.Kind(), txnID)
	}
	fromRevData, err := fromNode.revision(fs)
	if err != nil {
		return err
	}
	next := fromRevData.Clone()
	next.CopyfromPath = fromPath
	next.CopyfromRev = fromRev
	fromID := fromNode.id
	next.Copyroot = &fromID
	next.CreatedPath = joinPath(toNode.CreatedPath(), entry)

	newID, err := fs.store.CreateSuccessor(txnID, fromNode.id.CopyID, fromNode.id, next)
	if err != nil {
		return err
	}
	return SetEntry(fs, toNode, entry, newID, fromNode.Kind(), txnID)
}

// IsAncestor reports whether a is an ancestor of b by walking b's
// predecessor chain looking for a.
func IsAncestor(fs *DagFS, a, b *DagNode) (bool, error) {
	if !a.id.Related(b.id) {
		return false, nil
	}
	found := false
	err := WalkPredecessors(fs, b, func(current *DagNode, done *bool) {
		if current == nil {
			return
		}
		if current.id.Equal(a.id) {
			found = true
			*done = true
		}
	})
	return found, err
}

// IsParent reports whether a is b's immediate predecessor.
func IsParent(fs *DagFS, a, b *DagNode) (bool, error) {
	if !a.id.Related(b.id) {
		return false, nil
	}
	found := false
	err := WalkPredecessors(fs, b, func(current *DagNode, done *bool) {
		*done = true // only the immediate predecessor is checked
		if current != nil && current.id.Equal(a.id) {
			found = true
		}
	})
	return found, err
}

// ThingsDifferent compares representation keys of prop and data reps.
// Equal rep keys mean unchanged; this is a conservative pointer-level
// comparison, not a content comparison.
func ThingsDifferent(fs *DagFS, n1, n2 *DagNode) (propsChanged, contentsChanged bool, err error) {
	r1, err := n1.revision(fs)
	if err != nil {
		return false, false, err
	}
	r2, err := n2.revision(fs)
	if err != nil {
		return false, false, err
	}
	return !repKeyEqual(r1.PropRep, r2.PropRep), !repKeyEqual(r1.DataRep, r2.DataRep), nil
}

func repKeyEqual(a, b *RepKey) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
