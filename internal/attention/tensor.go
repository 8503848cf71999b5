package attention

import "sync"

// Tensor is a bounded rolling history of per-process feature snapshots,
// shape [maxProcs x NumFeatures x window]. A single monotonically advancing
// cursor selects the current time slot; each slot carries the tick it was
// stamped with. The tensor is diagnostic/historical infrastructure - no
// selection decision reads from it.
//
// Writes are infrequent and O(NumFeatures), so one coarse lock covers the
// whole structure. All storage is allocated at construction; Initialize
// only zeroes it.
type Tensor struct {
	mu sync.Mutex

	maxProcs int
	window   int

	// data is the flattened [proc][feature][time] cube.
	data       []float64
	timestamps []Tick
	cursor     int
	active     int
}

// NewTensor allocates a tensor for maxProcs processes over a window of
// time slots. The storage is reused for the life of the allocator.
func NewTensor(maxProcs, window int) *Tensor {
	if maxProcs <= 0 {
		maxProcs = 1
	}
	if window <= 0 {
		window = 1
	}
	return &Tensor{
		maxProcs:   maxProcs,
		window:     window,
		data:       make([]float64, maxProcs*NumFeatures*window),
		timestamps: make([]Tick, window),
	}
}

// Initialize zeroes all feature cells and timestamps and resets the cursor
// and active-process counter. Idempotent.
func (t *Tensor) Initialize() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.data {
		t.data[i] = 0
	}
	for i := range t.timestamps {
		t.timestamps[i] = 0
	}
	t.cursor = 0
	t.active = 0
}

func (t *Tensor) index(slot int, feature FeatureKind, step int) int {
	return (slot*NumFeatures+int(feature))*t.window + step
}

// Record persists a feature snapshot for the process slot at the current
// time slot. Out-of-range slots are ignored.
func (t *Tensor) Record(slot int, v Vector, now Tick) {
	if slot < 0 || slot >= t.maxProcs {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	for f := FeatureKind(0); f < NumFeatures; f++ {
		t.data[t.index(slot, f, t.cursor)] = v[f]
	}
	t.timestamps[t.cursor] = now
}

// Advance moves the cursor to the next time slot modulo the window and
// stamps it with now.
func (t *Tensor) Advance(now Tick) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cursor = (t.cursor + 1) % t.window
	t.timestamps[t.cursor] = now
}

// Cursor returns the current time-slot index.
func (t *Tensor) Cursor() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor
}

// Window returns the time-window depth.
func (t *Tensor) Window() int {
	return t.window
}

// ActiveProcs returns the tracked active-process count.
func (t *Tensor) ActiveProcs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// AddActive adjusts the active-process counter by delta, clamped at zero.
func (t *Tensor) AddActive(delta int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active += delta
	if t.active < 0 {
		t.active = 0
	}
}

// At returns the recorded value for one cell. steps counts backwards from
// the current cursor: 0 is the current slot, 1 the previous, and so on.
// Returns 0 for out-of-range coordinates.
func (t *Tensor) At(slot int, feature FeatureKind, steps int) float64 {
	if slot < 0 || slot >= t.maxProcs || !feature.Valid() || steps < 0 || steps >= t.window {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	step := ((t.cursor-steps)%t.window + t.window) % t.window
	return t.data[t.index(slot, feature, step)]
}

// TimestampAt returns the tick stamped on the slot steps behind the
// cursor, 0 for out-of-range.
func (t *Tensor) TimestampAt(steps int) Tick {
	if steps < 0 || steps >= t.window {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	step := ((t.cursor-steps)%t.window + t.window) % t.window
	return t.timestamps[step]
}

// History copies the recorded window for one feature of one process,
// ordered oldest to newest, into dst. Returns the number of entries
// copied. Diagnostic use only.
func (t *Tensor) History(slot int, feature FeatureKind, dst []float64) int {
	if slot < 0 || slot >= t.maxProcs || !feature.Valid() {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.window
	if len(dst) < n {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		// oldest first: walk forward from the slot after the cursor
		step := (t.cursor + 1 + (t.window - n) + i) % t.window
		dst[i] = t.data[t.index(slot, feature, step)]
	}
	return n
}
