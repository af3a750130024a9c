package regime

import (
	"testing"

	"github.com/aristath/inarbit/internal/domain"
)

func TestConsecutiveReturns(t *testing.T) {
	got := consecutiveReturns([]float64{100, 110, 99})
	want := []float64{0.1, (99.0 - 110.0) / 110.0}
	if len(got) != len(want) {
		t.Fatalf("expected %d returns, got %d", len(want), len(got))
	}
	for i := range want {
		if diff := got[i] - want[i]; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("return %d: want %v got %v", i, want[i], got[i])
		}
	}
}

func TestConsecutiveReturnsNeedsAtLeastTwoPoints(t *testing.T) {
	if got := consecutiveReturns([]float64{100}); got != nil {
		t.Fatalf("expected nil for a single point, got %v", got)
	}
	if got := consecutiveReturns(nil); got != nil {
		t.Fatalf("expected nil for no points, got %v", got)
	}
}

func defaultThresholds() Thresholds {
	return Thresholds{
		StressSpread:   0.01,
		StressVol:      0.02,
		TrendThreshold: 0.01,
		HighVol:        0.005,
		MaxDataAgeMs:   5000,
		MinPoints:      2,
	}
}

func TestClassifyStressOnStaleData(t *testing.T) {
	snap := Snapshot{AvgDataAgeMs: 10000}
	if got := classify(snap, defaultThresholds()); got != domain.RegimeStress {
		t.Fatalf("stale data should classify as stress, got %v", got)
	}
}

func TestClassifyStressOnWideSpread(t *testing.T) {
	snap := Snapshot{AvgSpreadRate: 0.05}
	if got := classify(snap, defaultThresholds()); got != domain.RegimeStress {
		t.Fatalf("wide spread should classify as stress, got %v", got)
	}
}

func TestClassifyStressOnHighVolatility(t *testing.T) {
	snap := Snapshot{Volatility: 0.03}
	if got := classify(snap, defaultThresholds()); got != domain.RegimeStress {
		t.Fatalf("volatility above StressVol should classify as stress, got %v", got)
	}
}

func TestClassifyUptrendOnPositiveReturnAboveThresholds(t *testing.T) {
	snap := Snapshot{AvgReturn: 0.02, Volatility: 0.006}
	if got := classify(snap, defaultThresholds()); got != domain.RegimeUptrend {
		t.Fatalf("expected uptrend, got %v", got)
	}
}

func TestClassifyDowntrendOnNegativeReturnAboveThresholds(t *testing.T) {
	snap := Snapshot{AvgReturn: -0.02, Volatility: 0.006}
	if got := classify(snap, defaultThresholds()); got != domain.RegimeDowntrend {
		t.Fatalf("expected downtrend, got %v", got)
	}
}

func TestClassifyRangeWhenBelowTrendThresholds(t *testing.T) {
	snap := Snapshot{AvgReturn: 0.001, Volatility: 0.001}
	if got := classify(snap, defaultThresholds()); got != domain.RegimeRange {
		t.Fatalf("expected range, got %v", got)
	}
}

func TestRingBufferEvictsOldestPastCapacity(t *testing.T) {
	r := newRingBuffer(3)
	r.push(1)
	r.push(2)
	r.push(3)
	r.push(4)
	want := []float64{2, 3, 4}
	if len(r.points) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(r.points))
	}
	for i := range want {
		if r.points[i] != want[i] {
			t.Fatalf("point %d: want %v got %v", i, want[i], r.points[i])
		}
	}
}
