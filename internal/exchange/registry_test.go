package exchange

import (
	"testing"

	"github.com/aristath/inarbit/internal/apperr"
	"github.com/shopspring/decimal"
)

func TestRegistryGetReturnsConfiguredAdapter(t *testing.T) {
	sim := NewSimExchange("paper", fixedLookup(decimal.Zero), decimal.Zero)
	reg := NewRegistry(sim)

	got, err := reg.Get("paper")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name() != "paper" {
		t.Fatalf("expected paper adapter, got %s", got.Name())
	}
}

func TestRegistryGetUnknownExchangeIsNotFound(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Get("binance")
	if !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestRegistryNamesListsEveryAdapter(t *testing.T) {
	a := NewSimExchange("paper", fixedLookup(decimal.Zero), decimal.Zero)
	reg := NewRegistry(a)

	names := reg.Names()
	if len(names) != 1 || names[0] != "paper" {
		t.Fatalf("expected [paper], got %v", names)
	}
}
