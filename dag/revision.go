package dag

// NodeRevision is the immutable value a NodeId resolves to. Once
// committed it is never mutated again; a transaction instead produces a
// successor NodeRevision under a new (or the same) NodeId.
type NodeRevision struct {
	Kind Kind

	// PredecessorID, if set, names a node sharing NodeID whose
	// NodeRevision this one supersedes.
	PredecessorID *NodeId
	// PredecessorCount is the length of the predecessor chain, or -1 if
	// unknown.
	PredecessorCount int

	// Copyroot is the node-id that originated the current copy lineage,
	// or nil if this node begins its own lineage.
	Copyroot     *NodeId
	CopyfromPath string
	CopyfromRev  int64

	DataRep *RepKey
	PropRep *RepKey

	// EditKey is non-empty iff a mutable text stream is currently open
	// against this revision (within a transaction).
	EditKey string

	CreatedPath string

	// Entries holds this directory's name -> child mapping. Nil for
	// file kinds. Insertion order is irrelevant; names are unique.
	Entries map[string]DirEntry
}

// DirEntry names one child of a directory: its NodeId and Kind.
type DirEntry struct {
	ID   NodeId
	Kind Kind
}

// Clone returns a deep-enough copy suitable for mutating into a
// successor revision without aliasing the original's Entries map.
func (nr NodeRevision) Clone() NodeRevision {
	out := nr
	if nr.Entries != nil {
		out.Entries = make(map[string]DirEntry, len(nr.Entries))
		for k, v := range nr.Entries {
			out.Entries[k] = v
		}
	}
	return out
}
