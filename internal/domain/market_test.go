package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMarketSnapshotStale(t *testing.T) {
	snap := MarketSnapshot{IngestTimestampMs: 1000}
	if !snap.Stale(7000, 5000) {
		t.Fatal("6000ms old data should be stale at a 5000ms max age")
	}
	if snap.Stale(3000, 5000) {
		t.Fatal("2000ms old data should not be stale at a 5000ms max age")
	}
}

func TestMarketSnapshotMidFallsBackToLast(t *testing.T) {
	snap := MarketSnapshot{Last: decimal.NewFromInt(42)}
	if !snap.Mid().Equal(decimal.NewFromInt(42)) {
		t.Fatalf("expected fallback to Last, got %s", snap.Mid())
	}

	snap = MarketSnapshot{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(101)}
	if !snap.Mid().Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected midpoint 100, got %s", snap.Mid())
	}
}

func TestMarketSnapshotSpreadRateZeroWithoutBidAsk(t *testing.T) {
	snap := MarketSnapshot{Last: decimal.NewFromInt(100)}
	if !snap.SpreadRate().IsZero() {
		t.Fatalf("expected zero spread without bid/ask, got %s", snap.SpreadRate())
	}
}

func TestMarketSnapshotSpreadRateComputed(t *testing.T) {
	snap := MarketSnapshot{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(101)}
	want := decimal.NewFromInt(2).Div(decimal.NewFromInt(100))
	if !snap.SpreadRate().Equal(want) {
		t.Fatalf("expected spread rate %s, got %s", want, snap.SpreadRate())
	}
}

func TestBestBidAskMidFallsBackToLast(t *testing.T) {
	b := BestBidAsk{Last: decimal.NewFromInt(7)}
	if !b.Mid().Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected fallback to Last, got %s", b.Mid())
	}
}

func TestFundingInfoWithinSpikeCeiling(t *testing.T) {
	f := FundingInfo{Rate: decimal.NewFromFloat(-0.004)}
	if !f.WithinSpikeCeiling(decimal.NewFromFloat(0.005)) {
		t.Fatal("rate within ceiling should report true")
	}
	if f.WithinSpikeCeiling(decimal.NewFromFloat(0.003)) {
		t.Fatal("rate beyond ceiling should report false")
	}
}
