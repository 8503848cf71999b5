package attention

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testExtractor() Extractor {
	return Extractor{
		RecencyTicks:        10,
		InteractiveBaseline: 0.1,
		MemoryPlaceholder:   0.5,
	}
}

func TestSampleBasicMapping(t *testing.T) {
	e := testExtractor()
	stats := RuntimeStats{
		CPUShare:      0.42,
		Priority:      10,
		MaxPriority:   20,
		MemoryRatio:   NoSignal,
		IORatio:       NoSignal,
		NetworkRatio:  NoSignal,
		RealtimeRatio: NoSignal,
	}
	got := e.Sample(Vector{}, stats, 50)

	want := Vector{}
	want[FeatureLoad] = 0.42
	want[FeatureMemory] = 0.5 // placeholder
	want[FeatureInteractive] = 0.1
	want[FeaturePriority] = 0.5

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sample mismatch (-want +got):\n%s", diff)
	}
}

func TestSampleRecencyIsBinary(t *testing.T) {
	e := testExtractor()
	stats := RuntimeStats{MemoryRatio: NoSignal, IORatio: NoSignal, NetworkRatio: NoSignal, RealtimeRatio: NoSignal}

	recent := e.Sample(Vector{}, stats, 3)
	if recent[FeatureInteractive] != 1.0 {
		t.Fatalf("elapsed below recency bound should be fully interactive, got %v", recent[FeatureInteractive])
	}
	stale := e.Sample(Vector{}, stats, 10)
	if stale[FeatureInteractive] != 0.1 {
		t.Fatalf("stale process should sit at baseline, got %v", stale[FeatureInteractive])
	}
}

func TestSampleClampsOutOfRangeSignals(t *testing.T) {
	e := testExtractor()
	stats := RuntimeStats{
		CPUShare:      3.2,
		Priority:      50,
		MaxPriority:   20,
		MemoryRatio:   1.8,
		IORatio:       1.5,
		NetworkRatio:  NoSignal,
		RealtimeRatio: NoSignal,
	}
	got := e.Sample(Vector{}, stats, 100)
	for k := FeatureKind(0); k < NumFeatures; k++ {
		if got[k] < 0 || got[k] > 1 {
			t.Fatalf("%s = %v, out of [0,1]", k, got[k])
		}
	}
}

func TestSamplePreservesManualDimensions(t *testing.T) {
	e := testExtractor()
	prev := Vector{}
	prev[FeatureEmergent] = 0.7
	prev[FeatureIO] = 0.3
	prev[FeatureNetwork] = 0.2

	stats := RuntimeStats{MemoryRatio: NoSignal, IORatio: NoSignal, NetworkRatio: NoSignal, RealtimeRatio: NoSignal}
	got := e.Sample(prev, stats, 100)

	if got[FeatureEmergent] != 0.7 {
		t.Fatalf("emergent dimension is manual-only, extractor wrote %v", got[FeatureEmergent])
	}
	if got[FeatureIO] != 0.3 || got[FeatureNetwork] != 0.2 {
		t.Fatalf("unsampled dimensions should survive: io=%v network=%v", got[FeatureIO], got[FeatureNetwork])
	}
}

func TestSampleUsesSuppliedRatios(t *testing.T) {
	e := testExtractor()
	stats := RuntimeStats{
		MemoryRatio:   0.25,
		IORatio:       0.6,
		NetworkRatio:  0.4,
		RealtimeRatio: 0.9,
	}
	got := e.Sample(Vector{}, stats, 100)
	if got[FeatureMemory] != 0.25 {
		t.Fatalf("memory = %v, want supplied 0.25", got[FeatureMemory])
	}
	if got[FeatureIO] != 0.6 || got[FeatureNetwork] != 0.4 || got[FeatureRealtime] != 0.9 {
		t.Fatalf("supplied ratios not applied: %v", got)
	}
}

func TestFeatureKindStrings(t *testing.T) {
	cases := map[FeatureKind]string{
		FeatureLoad:     "load",
		FeatureEmergent: "emergent",
		FeatureKind(9):  "unknown(9)",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Fatalf("String(%d) = %q, want %q", int(k), got, want)
		}
	}
}

func TestVectorClamped(t *testing.T) {
	v := Vector{-0.5, 1.5, 0.3}
	got := v.Clamped()
	want := Vector{0, 1, 0.3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("clamp mismatch (-want +got):\n%s", diff)
	}
}
