// Package memstore is an in-memory reference implementation of
// dag.TransactionStore and dag.RepresentationStore. It backs the test
// suite and the wcedit checkout demo path; a real server swaps this for
// an on-disk backend without dag or editor needing to change.
package memstore

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/fernvc/wcedit/dag"
)

type record struct {
	id  dag.NodeId
	rev dag.NodeRevision
}

type txn struct {
	root, base dag.NodeId
}

// Store is a single in-memory repository: committed and in-progress
// node-revisions, transactions, and content-addressed representations.
type Store struct {
	mu       sync.Mutex
	nodes    map[string]record // key: encodeKey(id)
	txns     map[string]*txn
	nextNode int64
	nextTxn  int64
	nextRev  int64

	reps map[dag.RepKey][]byte
	prop map[dag.RepKey]map[string]string
}

func New() *Store {
	return &Store{
		nodes: map[string]record{},
		txns:  map[string]*txn{},
		reps:  map[dag.RepKey][]byte{},
		prop:  map[dag.RepKey]map[string]string{},
	}
}

func encodeKey(id dag.NodeId) string {
	return fmt.Sprintf("%s|%s|%s|%d", id.NodeID, id.CopyID, id.TxnID, id.Revnum)
}

func (s *Store) Read(id dag.NodeId) (dag.NodeRevision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.nodes[encodeKey(id)]
	if !ok {
		return dag.NodeRevision{}, dag.ErrNotFound
	}
	return rec.rev.Clone(), nil
}

func (s *Store) TxnRoots(txnID string) (root, base dag.NodeId, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txns[txnID]
	if !ok {
		return dag.NodeId{}, dag.NodeId{}, fmt.Errorf("memstore: unknown txn %q", txnID)
	}
	return t.root, t.base, nil
}

// Begin opens a new transaction rooted at base.
func (s *Store) Begin(base dag.NodeId) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTxn++
	txnID := fmt.Sprintf("t%d", s.nextTxn)
	s.txns[txnID] = &txn{root: base, base: base}
	return txnID
}

func (s *Store) nextNodeID() string {
	s.nextNode++
	return fmt.Sprintf("n%d", s.nextNode)
}

func (s *Store) CreateNode(txnID, copyID string, rev dag.NodeRevision) (dag.NodeId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := dag.NodeId{NodeID: s.nextNodeID(), CopyID: copyID, TxnID: txnID}
	s.nodes[encodeKey(id)] = record{id: id, rev: rev.Clone()}
	return id, nil
}

func (s *Store) CreateSuccessor(txnID, copyID string, pred dag.NodeId, rev dag.NodeRevision) (dag.NodeId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := dag.NodeId{NodeID: pred.NodeID, CopyID: copyID, TxnID: txnID}
	s.nodes[encodeKey(id)] = record{id: id, rev: rev.Clone()}
	return id, nil
}

func (s *Store) SetRoot(txnID string, root dag.NodeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txns[txnID]
	if !ok {
		return fmt.Errorf("memstore: unknown txn %q", txnID)
	}
	t.root = root
	return nil
}

func (s *Store) Write(id dag.NodeId, rev dag.NodeRevision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := encodeKey(id)
	if _, ok := s.nodes[key]; !ok {
		return dag.ErrNotFound
	}
	s.nodes[key] = record{id: id, rev: rev.Clone()}
	return nil
}

// CommitTxn atomically promotes every node bearing txnID to a new
// committed revision number, rewriting their ids' TxnID to "" and
// Revnum to the new revision, and fixing up every directory's entries
// to point at the newly committed ids.
func (s *Store) CommitTxn(txnID string) (int64, dag.NodeId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txns[txnID]
	if !ok {
		return 0, dag.NodeId{}, fmt.Errorf("memstore: unknown txn %q", txnID)
	}
	s.nextRev++
	rev := s.nextRev

	remap := map[string]dag.NodeId{} // old key -> committed id
	for key, rec := range s.nodes {
		if rec.id.TxnID != txnID {
			continue
		}
		committed := rec.id
		committed.TxnID = ""
		committed.Revnum = rev
		remap[key] = committed
		delete(s.nodes, key)
		s.nodes[encodeKey(committed)] = record{id: committed, rev: rec.rev}
	}
	for key, rec := range s.nodes {
		changed := false
		for name, entry := range rec.rev.Entries {
			if newID, ok := remap[encodeKey(entry.ID)]; ok {
				entry.ID = newID
				rec.rev.Entries[name] = entry
				changed = true
			}
		}
		if changed {
			s.nodes[key] = rec
		}
	}
	newRoot, ok := remap[encodeKey(t.root)]
	if !ok {
		// root wasn't touched in this txn (clone-root never ran); it is
		// already a committed id shared with base.
		newRoot = t.root
	}
	delete(s.txns, txnID)
	return rev, newRoot, nil
}

// --- RepresentationStore ---

func (s *Store) OpenData(key dag.RepKey) (io.ReadCloser, error) {
	s.mu.Lock()
	data, ok := s.reps[key]
	s.mu.Unlock()
	if !ok {
		return nil, dag.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) OpenProps(key dag.RepKey) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	props, ok := s.prop[key]
	if !ok {
		return nil, dag.ErrNotFound
	}
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out, nil
}

var repCounter int64

func (s *Store) WriteData(r io.Reader) (dag.RepKey, int64, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, "", err
	}
	sum := sha1.Sum(data)
	checksum := hex.EncodeToString(sum[:])
	key := dag.RepKey(fmt.Sprintf("rep-%d-%s", atomic.AddInt64(&repCounter, 1), checksum[:8]))
	s.mu.Lock()
	s.reps[key] = data
	s.mu.Unlock()
	return key, int64(len(data)), checksum, nil
}

func (s *Store) WriteProps(props map[string]string) (dag.RepKey, error) {
	key := dag.RepKey(fmt.Sprintf("propsrep-%d", atomic.AddInt64(&repCounter, 1)))
	cp := make(map[string]string, len(props))
	for k, v := range props {
		cp[k] = v
	}
	s.mu.Lock()
	s.prop[key] = cp
	s.mu.Unlock()
	return key, nil
}
