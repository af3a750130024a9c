// Package exchange defines the broker-agnostic interface every trading
// venue is reduced to, mirroring the teacher's domain.BrokerClient /
// TradernetBrokerAdapter split: a thin domain-facing interface, one
// concrete adapter per venue, and a paper-trading double for tests and
// the paper trading mode (spec.md section 4.G).
package exchange

import (
	"context"
	"time"

	"github.com/aristath/inarbit/internal/domain"
	"github.com/shopspring/decimal"
)

// Ticker is the bid/ask/last/volume snapshot an adapter returns for one
// symbol on one account type.
type Ticker struct {
	Bid, Ask, Last, QuoteVolume decimal.Decimal
	ExchangeTimestampMs         *int64
}

// OrderBookLevel1 is the top-of-book snapshot an adapter returns.
type OrderBookLevel1 struct {
	BidPrice, BidSize, AskPrice, AskSize decimal.Decimal
}

// FundingRate is the perpetual funding snapshot an adapter returns.
type FundingRate struct {
	Rate              decimal.Decimal
	NextFundingTimeMs int64
	Mark, Index       *decimal.Decimal
}

// OrderResult is what an adapter returns immediately after placing an
// order - venues differ in how much they report synchronously, so every
// field past OrderID/Status is best-effort.
type OrderResult struct {
	ExternalOrderID string
	Status          domain.OrderStatus
	FilledQuantity  decimal.Decimal
	AveragePrice    decimal.Decimal
	Fee             decimal.Decimal
	FeeCurrency     string
}

// OrderState is what an adapter returns when asked to refresh a
// previously placed order.
type OrderState struct {
	Status         domain.OrderStatus
	FilledQuantity decimal.Decimal
	AveragePrice   decimal.Decimal
	Fee            decimal.Decimal
	FeeCurrency    string
}

// Fill is one execution report an adapter can surface for an order,
// carrying the venue's own trade identifier for dedup (spec.md I3).
type Fill struct {
	ExternalTradeID string
	ExternalOrderID string
	Price, Quantity decimal.Decimal
	Fee             decimal.Decimal
	FeeCurrency     string
	Raw             map[string]any
	CreatedAt       time.Time
}

// Adapter is the broker-agnostic interface the OMS and market-data
// ingestor depend on. A concrete adapter owns its venue's SDK/HTTP
// client internally, exactly as TradernetBrokerAdapter owns *Client.
type Adapter interface {
	Name() string

	// LoadMarkets primes any symbol/precision metadata the adapter needs.
	// Safe to call repeatedly; adapters should memoize internally.
	LoadMarkets(ctx context.Context) error

	FetchTicker(ctx context.Context, accountType domain.AccountType, symbol string) (Ticker, error)
	// FetchTickers batches FetchTicker for a symbol set; adapters that
	// lack a native batch endpoint may implement it as a bounded fan-out.
	FetchTickers(ctx context.Context, accountType domain.AccountType, symbols []string) (map[string]Ticker, error)
	FetchOrderBook(ctx context.Context, accountType domain.AccountType, symbol string) (OrderBookLevel1, error)
	FetchFundingRate(ctx context.Context, symbol string) (FundingRate, error)

	CreateOrder(ctx context.Context, accountType domain.AccountType, symbol string, side domain.Side, orderType domain.OrderType, quantity decimal.Decimal, price *decimal.Decimal, clientOrderID string) (OrderResult, error)
	FetchOrder(ctx context.Context, accountType domain.AccountType, symbol, externalOrderID string) (OrderState, error)
	CancelOrder(ctx context.Context, accountType domain.AccountType, symbol, externalOrderID string) error
	FetchFillsForOrder(ctx context.Context, accountType domain.AccountType, symbol, externalOrderID string) ([]Fill, error)
}

// StreamingAdapter describes adapters that support the optional
// push-based ingestion mode (spec.md section 4.B "watch_*"). No adapter
// in this package implements it and the ingestor does not check for it:
// ingestion is polling-only.
type StreamingAdapter interface {
	Adapter

	WatchTicker(ctx context.Context, accountType domain.AccountType, symbol string, onUpdate func(Ticker)) error
	WatchOrderBook(ctx context.Context, accountType domain.AccountType, symbol string, onUpdate func(OrderBookLevel1)) error
	WatchFundingRate(ctx context.Context, symbol string, onUpdate func(FundingRate)) error
}
