package attention

import (
	"math"
	"testing"
)

func defaultScorer() Scorer {
	return Scorer{
		Weights:           DefaultWeights(),
		EmergentThreshold: 0.5,
		EmergentBoost:     1.2,
	}
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	sum := DefaultWeights().Sum()
	if math.Abs(sum-1.0) > 1e-6 {
		t.Fatalf("default weights sum = %v, want 1.0", sum)
	}
}

func TestScoreStaysInRange(t *testing.T) {
	s := defaultScorer()
	vectors := []Vector{
		{},
		{1, 1, 1, 1, 1, 1, 1, 1},
		{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5},
		{0, 0, 0, 0, 0, 0, 0, 1},   // boosted
		{1, 1, 1, 1, 1, 1, 1, 0.9}, // boosted near the top
	}
	for _, v := range vectors {
		got := s.Score(v)
		if got < 0 || got > 1 {
			t.Fatalf("score(%v) = %v, out of [0,1]", v, got)
		}
	}
}

func TestScoreMonotonePerDimension(t *testing.T) {
	s := defaultScorer()
	base := Vector{0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2}
	baseScore := s.Score(base)
	for k := FeatureKind(0); k < NumFeatures; k++ {
		bumped := base
		bumped[k] = 0.9
		if got := s.Score(bumped); got < baseScore {
			t.Fatalf("raising %s lowered score: %v -> %v", k, baseScore, got)
		}
	}
}

func TestEmergentBoostNeverLowersScore(t *testing.T) {
	s := defaultScorer()
	flat := s
	flat.EmergentBoost = 1.0

	v := Vector{0.4, 0.1, 0, 0.7, 0, 0, 0.3, 0.8}
	boosted := s.Score(v)
	unboosted := flat.Score(v)
	if boosted < unboosted {
		t.Fatalf("boosted score %v < unboosted %v", boosted, unboosted)
	}
}

func TestScoreKnownVector(t *testing.T) {
	// load 0.3, interactive 0.8, emergent 0.6:
	// 0.3*0.20 + 0.8*0.25 + 0.6*0.05 = 0.29, boosted to 0.348
	s := defaultScorer()
	v := Vector{0.3, 0, 0, 0.8, 0, 0, 0, 0.6}
	got := s.Score(v)
	if math.Abs(got-0.348) > 1e-9 {
		t.Fatalf("score = %v, want 0.348", got)
	}
}

func TestScoreZeroVector(t *testing.T) {
	if got := defaultScorer().Score(Vector{}); got != 0 {
		t.Fatalf("score of zero vector = %v, want 0", got)
	}
}

func TestSanitizedZeroesNegativeWeights(t *testing.T) {
	w := Weights{-0.5, 0.2, -1, 0.1}
	got := w.Sanitized()
	for i, v := range got {
		if v < 0 {
			t.Fatalf("entry %d still negative: %v", i, v)
		}
	}
	if got[1] != 0.2 || got[3] != 0.1 {
		t.Fatalf("positive entries changed: %v", got)
	}
}
