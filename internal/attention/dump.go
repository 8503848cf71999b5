package attention

import (
	"fmt"
	"strings"
)

// ProcSnapshot is a diagnostic view of one queued process.
type ProcSnapshot struct {
	Handle    Handle
	PID       uint64
	Attention float64
	Features  Vector
}

// BucketSnapshot is a diagnostic view of one attention bucket.
type BucketSnapshot struct {
	Index     int
	Threshold float64
	Count     int
	Procs     []ProcSnapshot
}

// StateSnapshot is a read-only diagnostic view of the whole allocator.
// Operator/test tooling only; no wire-format compatibility guarantee.
type StateSnapshot struct {
	Initialized  bool
	Emergency    bool
	TotalBudget  uint64
	LastUpdate   Tick
	ActiveProcs  int
	TensorCursor int
	TimeWindow   int
	Weights      Weights
	Buckets      []BucketSnapshot
	Metrics      MetricsSnapshot
}

// Snapshot traverses the allocator read-only, acquiring and releasing one
// lock at a time so diagnostics can never participate in a lock-order
// inversion. Populations may be momentarily stale; that is acceptable for
// a diagnostic view.
func (a *Allocator) Snapshot() StateSnapshot {
	snap := StateSnapshot{
		Initialized:  a.initialized.Load(),
		Emergency:    a.emergency.Load(),
		TotalBudget:  a.totalBudget,
		LastUpdate:   Tick(a.lastUpdate.Load()),
		ActiveProcs:  a.tensor.ActiveProcs(),
		TensorCursor: a.tensor.Cursor(),
		TimeWindow:   a.tensor.Window(),
		Weights:      a.CurrentWeights(),
		Metrics:      a.metrics.snapshot(),
	}

	scratch := make([]Handle, a.cfg.MaxProcs)
	for i := range a.queues.buckets {
		threshold, n := a.queues.snapshotBucket(i, scratch)
		bs := BucketSnapshot{Index: i, Threshold: threshold, Count: n}
		for _, h := range scratch[:n] {
			r := a.rec(h)
			if r == nil {
				continue
			}
			r.mu.Lock()
			bs.Procs = append(bs.Procs, ProcSnapshot{
				Handle:    h,
				PID:       r.pid,
				Attention: r.score,
				Features:  r.features,
			})
			r.mu.Unlock()
		}
		snap.Buckets = append(snap.Buckets, bs)
	}
	return snap
}

// DumpState renders the human-readable diagnostic dump.
func (a *Allocator) DumpState() string {
	if !a.initialized.Load() {
		return "Attention allocator not initialized\n"
	}
	snap := a.Snapshot()

	var b strings.Builder
	b.WriteString("Attention Allocator State:\n")
	fmt.Fprintf(&b, "Total attention: %d, Emergency mode: %v\n", snap.TotalBudget, snap.Emergency)
	fmt.Fprintf(&b, "Active processes in tensor: %d (cursor %d/%d, last update %d)\n",
		snap.ActiveProcs, snap.TensorCursor, snap.TimeWindow, snap.LastUpdate)
	fmt.Fprintf(&b, "Counters: %s\n", snap.Metrics)

	for _, bs := range snap.Buckets {
		if bs.Count == 0 {
			continue
		}
		fmt.Fprintf(&b, "Attention queue %d (threshold %.2f): %d processes\n",
			bs.Index, bs.Threshold, bs.Count)
		for _, p := range bs.Procs {
			fmt.Fprintf(&b, "  Process %d: attention=%.2f features=[%.2f,%.2f,%.2f,%.2f]\n",
				p.PID, p.Attention,
				p.Features[FeatureLoad], p.Features[FeatureMemory],
				p.Features[FeatureIO], p.Features[FeatureInteractive])
		}
	}
	return b.String()
}
