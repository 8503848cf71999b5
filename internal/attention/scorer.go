package attention

// Weights is the per-dimension weight table for attention scoring.
// Entries are non-negative so the score is monotone in every dimension.
type Weights [NumFeatures]float64

// DefaultWeights returns the stock weight table. The entries sum to 1.0.
func DefaultWeights() Weights {
	return Weights{
		FeatureLoad:        0.20,
		FeatureMemory:      0.15,
		FeatureIO:          0.10,
		FeatureInteractive: 0.25,
		FeatureRealtime:    0.15,
		FeatureNetwork:     0.05,
		FeaturePriority:    0.05,
		FeatureEmergent:    0.05,
	}
}

// Sum returns the total of all weight entries.
func (w Weights) Sum() float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}

// Sanitized returns a copy of w with negative entries zeroed. Negative
// weights would break score monotonicity, so they are never stored.
func (w Weights) Sanitized() Weights {
	for i, v := range w {
		if v < 0 {
			w[i] = 0
		}
	}
	return w
}

// Scorer computes an attention score from a feature vector. Deterministic,
// side-effect-free, O(NumFeatures).
type Scorer struct {
	Weights Weights
	// EmergentThreshold is the emergent-dimension level above which the
	// boost multiplier applies.
	EmergentThreshold float64
	// EmergentBoost multiplies the weighted sum for emergent processes.
	EmergentBoost float64
}

// Score returns the clamped weighted sum of v under the scorer's table.
func (s Scorer) Score(v Vector) float64 {
	var sum float64
	for i := 0; i < NumFeatures; i++ {
		sum += v[i] * s.Weights[i]
	}
	if v[FeatureEmergent] > s.EmergentThreshold {
		sum *= s.EmergentBoost
	}
	return clamp01(sum)
}
