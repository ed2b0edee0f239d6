package installer

import (
	"github.com/alitto/pond"

	"github.com/fernvc/wcedit/dag"
)

// BatchItem pairs a node awaiting finalize-edits with the checksum its
// incoming content stream already announced.
type BatchItem struct {
	Node     *dag.DagNode
	Checksum string
}

// FinalizeBatch verifies every item's checksum against fs concurrently,
// bounded by poolSize workers.
// Verification order does not affect the on-disk result; running it
// concurrently is purely a scheduling optimization for a batch of
// files closing as part of one directory flush.
func FinalizeBatch(fs *dag.DagFS, items []BatchItem, poolSize int) []error {
	if poolSize <= 0 {
		poolSize = 1
	}
	pool := pond.New(poolSize, 0, pond.MinWorkers(1))
	errs := make([]error, len(items))
	for i, item := range items {
		i, item := i, item
		pool.Submit(func() {
			errs[i] = dag.FinalizeEdits(fs, item.Node, item.Checksum)
		})
	}
	pool.StopAndWait()
	return errs
}
