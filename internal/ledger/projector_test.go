package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNextAverageOpensFromFlat(t *testing.T) {
	got := nextAverage(decimal.Zero, nil, dec("1"), dec("100"), dec("1"))
	if got == nil || !got.Equal(dec("100")) {
		t.Fatalf("opening a flat position should set avg to the fill price, got %v", got)
	}
}

func TestNextAverageClosesToNil(t *testing.T) {
	oldAvg := dec("100")
	got := nextAverage(dec("1"), &oldAvg, dec("-1"), dec("110"), decimal.Zero)
	if got != nil {
		t.Fatalf("closing a position entirely should leave average_entry_price nil, got %v", *got)
	}
}

func TestNextAverageWeightedOnAdd(t *testing.T) {
	oldAvg := dec("100")
	// add 1 unit at 200 to an existing 1 unit at 100 -> weighted avg 150
	got := nextAverage(dec("1"), &oldAvg, dec("1"), dec("200"), dec("2"))
	if got == nil || !got.Equal(dec("150")) {
		t.Fatalf("same-signed add should weight-average, got %v", got)
	}
}

func TestNextAverageUnchangedOnPartialReduction(t *testing.T) {
	oldAvg := dec("100")
	got := nextAverage(dec("2"), &oldAvg, dec("-1"), dec("150"), dec("1"))
	if got == nil || !got.Equal(dec("100")) {
		t.Fatalf("a net reduction without a flip should keep the old average, got %v", got)
	}
}

func TestNextAverageResetsOnFlip(t *testing.T) {
	oldAvg := dec("100")
	// long 1 unit, sell 2 -> net short 1 at the fill price
	got := nextAverage(dec("1"), &oldAvg, dec("-2"), dec("120"), dec("-1"))
	if got == nil || !got.Equal(dec("120")) {
		t.Fatalf("a sign flip should reset average to the fill price, got %v", got)
	}
}
