package exchange

import (
	"context"
	"testing"

	"github.com/aristath/inarbit/internal/apperr"
	"github.com/aristath/inarbit/internal/domain"
	"github.com/shopspring/decimal"
)

func fixedLookup(price decimal.Decimal) PriceLookup {
	return func(domain.AccountType, string) (decimal.Decimal, error) {
		return price, nil
	}
}

func TestSimExchangeCreateOrderFillsImmediatelyAtLookupPrice(t *testing.T) {
	sim := NewSimExchange("paper", fixedLookup(decimal.NewFromInt(100)), decimal.NewFromFloat(0.001))

	res, err := sim.CreateOrder(context.Background(), domain.AccountSpot, "BTC/USDT", domain.SideBuy, domain.OrderTypeMarket, decimal.NewFromInt(2), nil, "client-1")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if res.Status != domain.OrderFilled {
		t.Fatalf("expected filled status, got %v", res.Status)
	}
	if !res.AveragePrice.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected fill at lookup price 100, got %s", res.AveragePrice)
	}
	wantFee := decimal.NewFromInt(2).Mul(decimal.NewFromInt(100)).Mul(decimal.NewFromFloat(0.001))
	if !res.Fee.Equal(wantFee) {
		t.Fatalf("expected fee %s, got %s", wantFee, res.Fee)
	}
}

func TestSimExchangeLimitOrderUsesRequestedPrice(t *testing.T) {
	sim := NewSimExchange("paper", fixedLookup(decimal.NewFromInt(100)), decimal.Zero)
	limitPrice := decimal.NewFromInt(95)

	res, err := sim.CreateOrder(context.Background(), domain.AccountSpot, "BTC/USDT", domain.SideBuy, domain.OrderTypeLimit, decimal.NewFromInt(1), &limitPrice, "client-2")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if !res.AveragePrice.Equal(limitPrice) {
		t.Fatalf("limit order should fill at the requested price, got %s", res.AveragePrice)
	}
}

func TestSimExchangeFetchOrderAndFillsRoundTrip(t *testing.T) {
	sim := NewSimExchange("paper", fixedLookup(decimal.NewFromInt(50)), decimal.Zero)

	res, err := sim.CreateOrder(context.Background(), domain.AccountSpot, "ETH/USDT", domain.SideSell, domain.OrderTypeMarket, decimal.NewFromInt(3), nil, "client-3")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	state, err := sim.FetchOrder(context.Background(), domain.AccountSpot, "ETH/USDT", res.ExternalOrderID)
	if err != nil {
		t.Fatalf("fetch order: %v", err)
	}
	if state.Status != domain.OrderFilled || !state.FilledQuantity.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("unexpected order state: %+v", state)
	}

	fills, err := sim.FetchFillsForOrder(context.Background(), domain.AccountSpot, "ETH/USDT", res.ExternalOrderID)
	if err != nil {
		t.Fatalf("fetch fills: %v", err)
	}
	if len(fills) != 1 {
		t.Fatalf("expected exactly one synthetic fill, got %d", len(fills))
	}
	if fills[0].ExternalOrderID != res.ExternalOrderID {
		t.Fatalf("fill should reference the originating order")
	}
}

func TestSimExchangeFetchOrderUnknownIDIsNotFound(t *testing.T) {
	sim := NewSimExchange("paper", fixedLookup(decimal.Zero), decimal.Zero)

	_, err := sim.FetchOrder(context.Background(), domain.AccountSpot, "BTC/USDT", "does-not-exist")
	if !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestSimExchangeCreateOrderPropagatesLookupFailure(t *testing.T) {
	lookupErr := apperr.Transientf(nil, "no market data")
	sim := NewSimExchange("paper", func(domain.AccountType, string) (decimal.Decimal, error) {
		return decimal.Zero, lookupErr
	}, decimal.Zero)

	_, err := sim.CreateOrder(context.Background(), domain.AccountSpot, "BTC/USDT", domain.SideBuy, domain.OrderTypeMarket, decimal.NewFromInt(1), nil, "client-4")
	if !apperr.Is(err, apperr.Transient) {
		t.Fatalf("expected Transient error, got %v", err)
	}
}

func TestSyntheticExternalTradeIDIsDeterministic(t *testing.T) {
	price, qty, fee := decimal.NewFromInt(100), decimal.NewFromInt(1), decimal.NewFromFloat(0.1)
	a := SyntheticExternalTradeID("order-1", 0, price, qty, fee)
	b := SyntheticExternalTradeID("order-1", 0, price, qty, fee)
	if a != b {
		t.Fatal("same inputs must derive the same synthetic trade id")
	}
	c := SyntheticExternalTradeID("order-1", 1, price, qty, fee)
	if a == c {
		t.Fatal("different fill index must derive a different synthetic trade id")
	}
}
