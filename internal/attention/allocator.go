// Package attention implements an attention-weighted admission and
// selection layer for a host priority scheduler. Opted-in processes are
// profiled into 8-dimensional feature vectors, scored against a
// configurable weight table, and queued into threshold buckets the host
// drains highest-first. The subsystem only reorders; it can never make a
// process unschedulable.
package attention

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"cogsched/internal/logging"
)

// =============================================================================
// ATTENTION ALLOCATOR - ADMISSION AND SELECTION COORDINATOR
// =============================================================================
//
// The Allocator owns the feature tensor, the attention queue set and the
// cognitive-record arena, and exposes the admission/selection/introspection
// contract the host scheduler calls at its hook points.
//
// Key properties:
// - One instance per host scheduler, created at boot, never torn down
// - Lazy idempotent initialization guarded by an atomic check-and-set
// - No allocation after Init; records live in a fixed arena, buckets link
//   by handle
// - Emergency mode cedes selection authority while tracking continues

var (
	// ErrCapacity is returned when the cognitive-record arena is full.
	ErrCapacity = errors.New("attention arena is full")

	// ErrInvalidHandle is returned for handles that name no live record.
	ErrInvalidHandle = errors.New("invalid process handle")
)

// Config tunes the allocator. Zero values are replaced with defaults at
// construction, so embedding callers can set only what they care about.
type Config struct {
	// MaxProcs bounds tracked processes: arena capacity and the tensor's
	// first dimension.
	MaxProcs int
	// AttentionLevels is the bucket count B; thresholds are (B-i)/B.
	AttentionLevels int
	// TimeWindow is the tensor history depth in time slots.
	TimeWindow int
	// Weights is the scoring weight table.
	Weights Weights
	// EmergentThreshold and EmergentBoost control the emergent-behavior
	// score multiplier.
	EmergentThreshold float64
	EmergentBoost     float64
	// RecencyTicks bounds the elapsed time under which a process counts
	// as interactive.
	RecencyTicks Tick
	// InteractiveBaseline is the interactive feature value for stale
	// processes.
	InteractiveBaseline float64
	// MemoryPlaceholder substitutes for an absent memory signal.
	MemoryPlaceholder float64
	// BaseAttentionUnits seeds the aggregate attention budget.
	BaseAttentionUnits uint64
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		MaxProcs:            64,
		AttentionLevels:     4,
		TimeWindow:          32,
		Weights:             DefaultWeights(),
		EmergentThreshold:   0.5,
		EmergentBoost:       1.2,
		RecencyTicks:        10,
		InteractiveBaseline: 0.1,
		MemoryPlaceholder:   0.5,
		BaseAttentionUnits:  1000,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxProcs <= 0 {
		c.MaxProcs = def.MaxProcs
	}
	if c.AttentionLevels <= 0 {
		c.AttentionLevels = def.AttentionLevels
	}
	if c.TimeWindow <= 0 {
		c.TimeWindow = def.TimeWindow
	}
	if c.Weights == (Weights{}) {
		c.Weights = def.Weights
	}
	if c.EmergentThreshold <= 0 {
		c.EmergentThreshold = def.EmergentThreshold
	}
	if c.EmergentBoost <= 0 {
		c.EmergentBoost = def.EmergentBoost
	}
	if c.RecencyTicks <= 0 {
		c.RecencyTicks = def.RecencyTicks
	}
	if c.InteractiveBaseline <= 0 {
		c.InteractiveBaseline = def.InteractiveBaseline
	}
	if c.MemoryPlaceholder <= 0 {
		c.MemoryPlaceholder = def.MemoryPlaceholder
	}
	if c.BaseAttentionUnits == 0 {
		c.BaseAttentionUnits = def.BaseAttentionUnits
	}
	return c
}

// record is the cognitive record attached 1:1 to a tracked process. The
// arena exclusively owns it; the bucket field is a non-owning index
// borrowed by at most one bucket at a time.
type record struct {
	mu sync.Mutex // protects features, score, lastRefresh

	pid         uint64
	inUse       bool
	optedIn     atomic.Bool
	features    Vector
	score       float64
	lastRefresh Tick

	// bucket is the index of the bucket currently holding this record,
	// or -1 when unlinked.
	bucket atomic.Int32
}

// Allocator is the top-level attention coordinator. See package banner.
type Allocator struct {
	cfg Config

	initialized atomic.Bool
	initMu      sync.Mutex
	emergency   atomic.Bool

	weights atomic.Pointer[Weights]

	tensor *Tensor
	queues *queueSet

	arenaMu sync.Mutex // protects records inUse/pid transitions
	records []record

	totalBudget uint64
	lastUpdate  atomic.Int64

	metrics Metrics
}

// New constructs an allocator. All storage is allocated here; Init only
// zeroes state, keeping the running subsystem allocation-free.
func New(cfg Config) *Allocator {
	cfg = cfg.withDefaults()
	a := &Allocator{
		cfg:     cfg,
		tensor:  NewTensor(cfg.MaxProcs, cfg.TimeWindow),
		queues:  newQueueSet(cfg.AttentionLevels, cfg.MaxProcs),
		records: make([]record, cfg.MaxProcs),
	}
	w := cfg.Weights.Sanitized()
	a.weights.Store(&w)
	a.queues.heals = func() { a.metrics.selfHeals.Add(1) }
	for i := range a.records {
		a.records[i].bucket.Store(int32(InvalidHandle))
	}
	return a
}

// Init transitions the allocator to Initialized. Safe to call redundantly
// and under concurrent first use; every public operation calls it lazily.
func (a *Allocator) Init() {
	if a.initialized.Load() {
		return
	}
	a.initMu.Lock()
	defer a.initMu.Unlock()
	if a.initialized.Load() {
		return
	}

	a.queues.reset()
	a.tensor.Initialize()
	a.totalBudget = a.cfg.BaseAttentionUnits
	a.lastUpdate.Store(0)
	a.emergency.Store(false)

	a.initialized.Store(true)
	logging.Boot("attention allocator initialized: levels=%d max_procs=%d window=%d",
		a.cfg.AttentionLevels, a.cfg.MaxProcs, a.cfg.TimeWindow)
}

// Initialized reports whether Init has run.
func (a *Allocator) Initialized() bool {
	return a.initialized.Load()
}

// Config returns the effective (default-filled) configuration.
func (a *Allocator) Config() Config {
	return a.cfg
}

// rec returns the live record for h, nil when the handle is stale.
func (a *Allocator) rec(h Handle) *record {
	if h < 0 || int(h) >= len(a.records) {
		return nil
	}
	r := &a.records[h]
	if !r.inUse {
		return nil
	}
	return r
}

// Register creates a cognitive record for a process with default features.
// Called by the process-lifecycle collaborator at process creation. The
// returned handle stays valid until Release.
func (a *Allocator) Register(pid uint64) (Handle, error) {
	a.Init()

	a.arenaMu.Lock()
	defer a.arenaMu.Unlock()

	for i := range a.records {
		r := &a.records[i]
		if r.inUse {
			continue
		}
		r.mu.Lock()
		r.pid = pid
		r.features = Vector{}
		r.score = 0
		r.lastRefresh = 0
		r.mu.Unlock()
		r.optedIn.Store(false)
		r.bucket.Store(int32(InvalidHandle))
		r.inUse = true
		a.tensor.AddActive(1)
		logging.SchedDebug("registered process %d as handle %d", pid, i)
		return Handle(i), nil
	}
	return InvalidHandle, ErrCapacity
}

// Release unlinks the process from any bucket it occupies and frees its
// record. The lifecycle collaborator must call this before reclaiming the
// process; the unlink here is blocking, not best-effort, because a missed
// unlink would leave the freed handle selectable.
func (a *Allocator) Release(h Handle) {
	r := a.rec(h)
	if r == nil {
		return
	}
	if idx := r.bucket.Load(); idx >= 0 {
		a.queues.unlink(int(idx), h)
		r.bucket.Store(int32(InvalidHandle))
	}

	a.arenaMu.Lock()
	r.inUse = false
	r.optedIn.Store(false)
	a.arenaMu.Unlock()
	a.tensor.AddActive(-1)
	logging.SchedDebug("released handle %d (pid %d)", h, r.pid)
}

// SetOptIn flags a process to participate in attention scheduling.
// Non-opted-in processes are invisible to this subsystem.
func (a *Allocator) SetOptIn(h Handle, opted bool) {
	if r := a.rec(h); r != nil {
		r.optedIn.Store(opted)
	}
}

// IsOptedIn reports whether the process participates.
func (a *Allocator) IsOptedIn(h Handle) bool {
	r := a.rec(h)
	return r != nil && r.optedIn.Load()
}

// Admit refreshes the process's features, scores it and places it in the
// matching attention bucket. Called by the host scheduler whenever an
// opted-in process becomes ready. No-op for non-opted-in processes.
// During emergency mode bookkeeping continues and the process is queued;
// only selection authority is ceded.
func (a *Allocator) Admit(h Handle, stats RuntimeStats, now Tick) {
	a.Init()

	r := a.rec(h)
	if r == nil || !r.optedIn.Load() {
		return
	}

	// Extraction is skipped within the same tick, but the score is always
	// recomputed from the current features so manual overrides take
	// effect on the next admission.
	score := a.resample(r, h, stats, now, true)

	// Exclusivity: if a previous admission is still queued, re-link only
	// if the stale entry can be removed. Under contention the process
	// simply stays where it is - it remains selectable either way.
	if prev := r.bucket.Load(); prev >= 0 {
		switch a.queues.remove(int(prev), h) {
		case removeContended:
			return
		case removeOK, removeNotFound:
		}
		r.bucket.Store(int32(InvalidHandle))
	}

	idx := a.queues.admit(h, score)
	r.bucket.Store(int32(idx))
	a.metrics.admitted.Add(1)
	logging.SchedDebug("admitted pid %d score=%.3f bucket=%d", r.pid, score, idx)
}

// SelectNext returns the next process the host should run, popping the
// head of the highest nonempty bucket. Returns (InvalidHandle, false)
// when uninitialized, in emergency mode, or when every bucket is empty;
// the caller must fall back to its own policy, never treat it as an error.
func (a *Allocator) SelectNext() (Handle, bool) {
	if !a.initialized.Load() || a.emergency.Load() {
		return InvalidHandle, false
	}

	h, _, ok := a.queues.selectHighest()
	if !ok {
		return InvalidHandle, false
	}
	if r := a.rec(h); r != nil {
		r.bucket.Store(int32(InvalidHandle))
	}
	a.metrics.selected.Add(1)
	return h, true
}

// RefreshFeatures recomputes the feature vector and cached score if at
// least one tick has elapsed since the previous refresh.
func (a *Allocator) RefreshFeatures(h Handle, stats RuntimeStats, now Tick) {
	a.Init()
	r := a.rec(h)
	if r == nil || !r.optedIn.Load() {
		return
	}
	a.resample(r, h, stats, now, false)
}

// resample runs feature extraction (skipped when no ticks have elapsed)
// and score computation under the record lock, then records the snapshot
// into the tensor after releasing it (one lock at a time). When rescore
// is set the score is recomputed even if extraction was skipped, which is
// the admission path's behavior. Returns the cached score.
func (a *Allocator) resample(r *record, h Handle, stats RuntimeStats, now Tick, rescore bool) float64 {
	w := a.weights.Load()
	ext := Extractor{
		RecencyTicks:        a.cfg.RecencyTicks,
		InteractiveBaseline: a.cfg.InteractiveBaseline,
		MemoryPlaceholder:   a.cfg.MemoryPlaceholder,
	}
	scorer := Scorer{
		Weights:           *w,
		EmergentThreshold: a.cfg.EmergentThreshold,
		EmergentBoost:     a.cfg.EmergentBoost,
	}

	r.mu.Lock()
	elapsed := now - r.lastRefresh
	sampled := elapsed != 0
	if sampled {
		r.features = ext.Sample(r.features, stats, elapsed)
		r.lastRefresh = now
	}
	if sampled || rescore {
		r.score = scorer.Score(r.features)
	}
	score := r.score
	vec := r.features
	r.mu.Unlock()

	if sampled {
		a.tensor.Record(int(h), vec, now)
		a.tensor.Advance(now)
		a.lastUpdate.Store(int64(now))
		a.metrics.refreshes.Add(1)
	}
	return score
}

// Attention returns the last cached attention score, 0.0 for a
// non-opted-in process. Never recomputes.
func (a *Allocator) Attention(h Handle) float64 {
	r := a.rec(h)
	if r == nil || !r.optedIn.Load() {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.score
}

// Features returns a copy of the process's current feature vector.
func (a *Allocator) Features(h Handle) Vector {
	r := a.rec(h)
	if r == nil {
		return Vector{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.features
}

// SetFeature manually overrides one feature dimension, clamped to [0,1].
// Ignored for an out-of-range index or a non-opted-in process. Does not
// trigger re-admission; the next refresh/admit cycle re-buckets.
func (a *Allocator) SetFeature(h Handle, kind FeatureKind, value float64) {
	if !kind.Valid() {
		return
	}
	r := a.rec(h)
	if r == nil || !r.optedIn.Load() {
		return
	}
	r.mu.Lock()
	r.features[kind] = clamp01(value)
	r.mu.Unlock()
}

// Remove unlinks the process from its bucket, best-effort. Under lock
// contention the removal silently fails and the caller must not assume
// success.
func (a *Allocator) Remove(h Handle) bool {
	r := a.rec(h)
	if r == nil {
		return false
	}
	idx := r.bucket.Load()
	if idx < 0 {
		return false
	}
	switch a.queues.remove(int(idx), h) {
	case removeOK:
		r.bucket.Store(int32(InvalidHandle))
		a.metrics.removals.Add(1)
		return true
	case removeNotFound:
		r.bucket.Store(int32(InvalidHandle))
		return false
	default:
		a.metrics.failedRemovals.Add(1)
		return false
	}
}

// SetEmergency toggles the emergency safety valve. While active,
// admission keeps updating bookkeeping but SelectNext always returns
// none, ceding selection to the traditional scheduler.
func (a *Allocator) SetEmergency(enable bool) {
	a.Init()
	if a.emergency.Swap(enable) != enable {
		a.metrics.emergencyToggles.Add(1)
		logging.Sched("emergency mode: %v", enable)
	}
}

// EmergencyActive reports the safety-valve state.
func (a *Allocator) EmergencyActive() bool {
	return a.emergency.Load()
}

// SetWeights swaps the scoring weight table at runtime. Negative entries
// are zeroed. Cached scores are not recomputed; the new table applies
// from the next refresh.
func (a *Allocator) SetWeights(w Weights) {
	sanitized := w.Sanitized()
	a.weights.Store(&sanitized)
	logging.Sched("weight table updated (sum=%.4f)", sanitized.Sum())
}

// CurrentWeights returns the active weight table.
func (a *Allocator) CurrentWeights() Weights {
	return *a.weights.Load()
}

// Metrics returns a snapshot of the aggregate counters.
func (a *Allocator) Metrics() MetricsSnapshot {
	return a.metrics.snapshot()
}

// =============================================================================
// METRICS
// =============================================================================

// Metrics holds the allocator's aggregate counters. Atomic so hot paths
// never take a lock to count.
type Metrics struct {
	admitted         atomic.Int64
	selected         atomic.Int64
	refreshes        atomic.Int64
	removals         atomic.Int64
	failedRemovals   atomic.Int64
	emergencyToggles atomic.Int64
	selfHeals        atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Admitted         int64
	Selected         int64
	Refreshes        int64
	Removals         int64
	FailedRemovals   int64
	EmergencyToggles int64
	SelfHeals        int64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Admitted:         m.admitted.Load(),
		Selected:         m.selected.Load(),
		Refreshes:        m.refreshes.Load(),
		Removals:         m.removals.Load(),
		FailedRemovals:   m.failedRemovals.Load(),
		EmergencyToggles: m.emergencyToggles.Load(),
		SelfHeals:        m.selfHeals.Load(),
	}
}

// String returns a human-readable summary.
func (s MetricsSnapshot) String() string {
	return fmt.Sprintf("admitted=%d selected=%d refreshes=%d removals=%d failed_removals=%d emergency_toggles=%d self_heals=%d",
		s.Admitted, s.Selected, s.Refreshes, s.Removals, s.FailedRemovals, s.EmergencyToggles, s.SelfHeals)
}
