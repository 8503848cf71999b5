package attention

import (
	"sync"

	"cogsched/internal/logging"
)

// Handle is a stable index into the allocator's cognitive-record arena.
// Buckets reference processes by handle, never by pointer, so a released
// process can never leave a dangling link behind.
type Handle int32

// InvalidHandle is returned when no process is available.
const InvalidHandle Handle = -1

// removeResult distinguishes why a removal did or did not happen.
type removeResult int

const (
	removeOK removeResult = iota
	removeNotFound
	removeContended
)

// bucket is one FIFO attention queue with a static admission threshold.
// The ring is sized to the arena capacity, so admission can never overflow
// while bucket membership stays exclusive.
type bucket struct {
	mu        sync.Mutex
	threshold float64
	ring      []Handle
	head      int
	count     int
}

// pushLocked appends h at the tail. Caller holds mu.
func (b *bucket) pushLocked(h Handle) bool {
	if b.count >= len(b.ring) {
		return false
	}
	b.ring[(b.head+b.count)%len(b.ring)] = h
	b.count++
	return true
}

// popLocked removes and returns the head. Caller holds mu.
func (b *bucket) popLocked() (Handle, bool) {
	if b.count == 0 {
		return InvalidHandle, false
	}
	h := b.ring[b.head]
	b.head = (b.head + 1) % len(b.ring)
	b.count--
	return h, true
}

// removeLocked unlinks h wherever it sits, preserving FIFO order of the
// remaining entries. Linear scan; bucket populations are small. Caller
// holds mu.
func (b *bucket) removeLocked(h Handle) bool {
	for i := 0; i < b.count; i++ {
		pos := (b.head + i) % len(b.ring)
		if b.ring[pos] != h {
			continue
		}
		// shift the tail section down one slot
		for j := i; j < b.count-1; j++ {
			from := (b.head + j + 1) % len(b.ring)
			to := (b.head + j) % len(b.ring)
			b.ring[to] = b.ring[from]
		}
		b.count--
		return true
	}
	return false
}

// healthyLocked checks head/count consistency. Caller holds mu.
func (b *bucket) healthyLocked() bool {
	return b.head >= 0 && b.head < len(b.ring) && b.count >= 0 && b.count <= len(b.ring)
}

// resetLocked self-heals a corrupted bucket by emptying it. Losing queued
// processes is recoverable (they re-admit on their next ready event);
// propagating a fault to the host scheduler is not. Caller holds mu.
func (b *bucket) resetLocked() {
	b.head = 0
	b.count = 0
}

// queueSet is the fixed array of attention buckets, thresholds descending
// with index. The last bucket is the guaranteed catch-all.
type queueSet struct {
	buckets []bucket
	heals   func() // invoked after a self-heal, outside the bucket lock
}

// newQueueSet builds levels buckets with thresholds (levels-i)/levels and
// per-bucket rings of the given capacity.
func newQueueSet(levels, capacity int) *queueSet {
	q := &queueSet{buckets: make([]bucket, levels)}
	for i := range q.buckets {
		q.buckets[i].threshold = float64(levels-i) / float64(levels)
		q.buckets[i].ring = make([]Handle, capacity)
	}
	return q
}

// reset empties every bucket and restores thresholds. Idempotent.
func (q *queueSet) reset() {
	levels := len(q.buckets)
	for i := range q.buckets {
		b := &q.buckets[i]
		b.mu.Lock()
		b.threshold = float64(levels-i) / float64(levels)
		b.resetLocked()
		b.mu.Unlock()
	}
}

// admit places h in the first bucket whose threshold the score meets,
// falling through to the catch-all so no opted-in process is ever
// dropped. Returns the bucket index.
func (q *queueSet) admit(h Handle, score float64) int {
	idx := len(q.buckets) - 1
	for i := range q.buckets {
		if score >= q.buckets[i].threshold {
			idx = i
			break
		}
	}
	b := &q.buckets[idx]
	b.mu.Lock()
	healed := false
	if !b.healthyLocked() {
		b.resetLocked()
		healed = true
	}
	b.pushLocked(h)
	b.mu.Unlock()
	if healed {
		q.healed(idx)
	}
	return idx
}

// selectHighest scans buckets from highest to lowest threshold and pops
// the head of the first nonempty one. A contended bucket is skipped
// rather than waited on; selection must never block the host scheduler.
func (q *queueSet) selectHighest() (Handle, int, bool) {
	for i := range q.buckets {
		b := &q.buckets[i]
		if !b.mu.TryLock() {
			continue
		}
		if !b.healthyLocked() {
			b.resetLocked()
			b.mu.Unlock()
			q.healed(i)
			continue
		}
		h, ok := b.popLocked()
		b.mu.Unlock()
		if ok {
			return h, i, true
		}
	}
	return InvalidHandle, -1, false
}

// remove unlinks h from bucket idx. Best-effort: under lock contention it
// degrades to removeContended and the caller must tolerate the failure.
func (q *queueSet) remove(idx int, h Handle) removeResult {
	if idx < 0 || idx >= len(q.buckets) {
		return removeNotFound
	}
	b := &q.buckets[idx]
	if !b.mu.TryLock() {
		return removeContended
	}
	healed := false
	if !b.healthyLocked() {
		b.resetLocked()
		healed = true
	}
	found := b.removeLocked(h)
	b.mu.Unlock()
	if healed {
		q.healed(idx)
	}
	if !found {
		return removeNotFound
	}
	return removeOK
}

// unlink is the blocking form of remove, used on the process-termination
// path where the unlink must not be skipped.
func (q *queueSet) unlink(idx int, h Handle) bool {
	if idx < 0 || idx >= len(q.buckets) {
		return false
	}
	b := &q.buckets[idx]
	b.mu.Lock()
	healed := false
	if !b.healthyLocked() {
		b.resetLocked()
		healed = true
	}
	found := b.removeLocked(h)
	b.mu.Unlock()
	if healed {
		q.healed(idx)
	}
	return found
}

// size returns the population of bucket idx.
func (q *queueSet) size(idx int) int {
	if idx < 0 || idx >= len(q.buckets) {
		return 0
	}
	b := &q.buckets[idx]
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// snapshotBucket copies the FIFO-ordered handles of bucket idx.
func (q *queueSet) snapshotBucket(idx int, dst []Handle) (threshold float64, n int) {
	b := &q.buckets[idx]
	b.mu.Lock()
	threshold = b.threshold
	n = b.count
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = b.ring[(b.head+i)%len(b.ring)]
	}
	b.mu.Unlock()
	return threshold, n
}

func (q *queueSet) healed(idx int) {
	logging.QueueWarn("bucket %d inconsistent, reset", idx)
	if q.heals != nil {
		q.heals()
	}
}
