package dag

import "fmt"

// NodeId is opaque identity for one node-revision. It carries node
// identity (preserved across successors), copy-lineage identity,
// transaction membership, and a committed revision number.
//
// Two NodeIds are related iff they share NodeID. Equality is structural
// across all four fields.
type NodeId struct {
	NodeID string
	CopyID string
	TxnID  string // non-empty iff the node is part of an uncommitted transaction
	Revnum int64  // committed revision; meaningful only when TxnID == ""
}

// Committed reports whether this id names a frozen, committed node-revision.
func (id NodeId) Committed() bool { return id.TxnID == "" }

// Mutable reports whether this id carries an open transaction. The
// looseness here is intentional: a NodeId is "mutable" in the sense
// used by CheckMutable based purely on TxnID being present, without
// verifying it names the caller's own transaction. See
// CheckMutable for the caller-facing check.
func (id NodeId) Mutable() bool { return id.TxnID != "" }

// Related reports whether a and b name revisions of the same node.
func (a NodeId) Related(b NodeId) bool { return a.NodeID == b.NodeID }

// Equal is structural equality across all four fields.
func (a NodeId) Equal(b NodeId) bool {
	return a.NodeID == b.NodeID && a.CopyID == b.CopyID && a.TxnID == b.TxnID && a.Revnum == b.Revnum
}

func (id NodeId) String() string {
	if id.TxnID != "" {
		return fmt.Sprintf("%s.%s-%s", id.NodeID, id.CopyID, id.TxnID)
	}
	return fmt.Sprintf("%s.%s@%d", id.NodeID, id.CopyID, id.Revnum)
}

// Kind distinguishes file nodes from directory nodes.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "dir"
	}
	return "file"
}

// RepKey identifies a representation (a byte stream of text or a
// proplist) inside the external RepresentationStore. Its shape is opaque
// to the DAG layer; it is compared only for equality.
type RepKey string
