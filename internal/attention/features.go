package attention

import "fmt"

// Tick is a monotonic time reading supplied by the host scheduler.
// The attention layer never reads a clock of its own; every operation
// that needs time takes a Tick from the caller.
type Tick int64

// NumFeatures is the fixed dimensionality of a cognitive feature vector.
const NumFeatures = 8

// FeatureKind identifies one dimension of the cognitive feature vector.
type FeatureKind int

const (
	FeatureLoad        FeatureKind = iota // CPU load pattern
	FeatureMemory                         // Memory access pattern
	FeatureIO                             // I/O activity pattern
	FeatureInteractive                    // Interactive response pattern
	FeatureRealtime                       // Real-time requirement pattern
	FeatureNetwork                        // Network activity pattern
	FeaturePriority                       // Traditional priority influence
	FeatureEmergent                       // Emergent behavioral pattern
)

func (k FeatureKind) String() string {
	switch k {
	case FeatureLoad:
		return "load"
	case FeatureMemory:
		return "memory"
	case FeatureIO:
		return "io"
	case FeatureInteractive:
		return "interactive"
	case FeatureRealtime:
		return "realtime"
	case FeatureNetwork:
		return "network"
	case FeaturePriority:
		return "priority"
	case FeatureEmergent:
		return "emergent"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Valid reports whether k addresses one of the 8 feature dimensions.
func (k FeatureKind) Valid() bool {
	return k >= 0 && k < NumFeatures
}

// Vector is a normalized 8-dimensional cognitive profile. Every element
// stays in [0,1]; writers clamp before storing.
type Vector [NumFeatures]float64

// Clamped returns a copy of v with every element clamped to [0,1].
func (v Vector) Clamped() Vector {
	for i := range v {
		v[i] = clamp01(v[i])
	}
	return v
}

func clamp01(f float64) float64 {
	if f > 1.0 {
		return 1.0
	}
	if f < 0.0 {
		return 0.0
	}
	return f
}

// RuntimeStats carries the raw runtime signals the stats collaborator
// samples for a process. Ratio fields are fractions in [0,1]; a negative
// value means the collaborator has no signal for that dimension and the
// extractor leaves the previous (or manually set) value in place.
type RuntimeStats struct {
	CPUShare      float64 // recent CPU usage fraction
	Priority      int     // traditional priority level
	MaxPriority   int     // number of traditional priority levels
	MemoryRatio   float64 // negative: use the fixed placeholder
	IORatio       float64
	NetworkRatio  float64
	RealtimeRatio float64
}

// NoSignal marks a ratio dimension as unsampled.
const NoSignal = -1.0

// Extractor maps runtime signals onto feature dimensions. It is a pure
// value; Sample has no side effects.
type Extractor struct {
	// RecencyTicks is the elapsed-tick bound below which a process counts
	// as interactive. Binary heuristic, not a continuous decay.
	RecencyTicks Tick
	// InteractiveBaseline is the interactive value for stale processes.
	InteractiveBaseline float64
	// MemoryPlaceholder substitutes for a missing memory signal.
	MemoryPlaceholder float64
}

// Sample derives the next feature vector from the previous one and fresh
// runtime signals. Dimensions with no signal keep their previous value,
// so manual overrides survive refreshes. The emergent dimension is never
// touched here; it is manual-only.
func (e Extractor) Sample(prev Vector, stats RuntimeStats, elapsed Tick) Vector {
	next := prev

	next[FeatureLoad] = clamp01(stats.CPUShare)

	mem := e.MemoryPlaceholder
	if stats.MemoryRatio >= 0 {
		mem = stats.MemoryRatio
	}
	next[FeatureMemory] = clamp01(mem)

	if stats.IORatio >= 0 {
		next[FeatureIO] = clamp01(stats.IORatio)
	}
	if stats.NetworkRatio >= 0 {
		next[FeatureNetwork] = clamp01(stats.NetworkRatio)
	}
	if stats.RealtimeRatio >= 0 {
		next[FeatureRealtime] = clamp01(stats.RealtimeRatio)
	}

	if elapsed >= 0 && elapsed < e.RecencyTicks {
		next[FeatureInteractive] = 1.0
	} else {
		next[FeatureInteractive] = clamp01(e.InteractiveBaseline)
	}

	if stats.MaxPriority > 0 {
		next[FeaturePriority] = clamp01(float64(stats.Priority) / float64(stats.MaxPriority))
	}

	return next
}
