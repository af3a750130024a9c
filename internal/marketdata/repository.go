// Package marketdata is the read-through collaborator over the KV store
// that every scanner, the regime sampler, and the OMS use to read
// normalized market snapshots (spec.md section 4.A).
package marketdata

import (
	"context"
	"time"

	"github.com/aristath/inarbit/internal/domain"
	"github.com/aristath/inarbit/internal/kv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository reads ticker/orderbook/funding snapshots out of the KV
// store, parsing every field defensively: a missing or malformed field
// yields a zero value in that field only, never an error, matching
// spec.md section 4.A's "never throws on read" contract.
type Repository struct {
	store *kv.Store
	log   zerolog.Logger
}

func NewRepository(store *kv.Store, log zerolog.Logger) *Repository {
	return &Repository{store: store, log: log.With().Str("component", "marketdata-repository").Logger()}
}

// GetBestBidAsk reads ticker:{ex}:{sym} (or ticker_futures for perp).
func (r *Repository) GetBestBidAsk(ctx context.Context, exchange, symbol string, accountType domain.AccountType) (domain.BestBidAsk, bool, error) {
	key := kv.TickerKey(exchange, symbol)
	if accountType == domain.AccountPerp {
		key = kv.TickerFuturesKey(exchange, symbol)
	}
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domain.BestBidAsk{}, false, err
	}
	if len(fields) == 0 {
		return domain.BestBidAsk{}, false, nil
	}
	return domain.BestBidAsk{
		Exchange:          exchange,
		Symbol:            symbol,
		AccountType:       accountType,
		Bid:               kv.ParseDecimalField(fields, "bid"),
		Ask:               kv.ParseDecimalField(fields, "ask"),
		Last:              kv.ParseDecimalField(fields, "last"),
		QuoteVolume:       kv.ParseDecimalField(fields, "volume"),
		IngestTimestampMs: kv.ParseIntField(fields, "timestamp"),
	}, true, nil
}

// GetOrderBookTOB reads the top-of-book from the bids/asks sorted sets.
func (r *Repository) GetOrderBookTOB(ctx context.Context, exchange, symbol string) (domain.OrderBookTOB, bool, error) {
	bidZ, hasBid, err := r.store.ZTop1Desc(ctx, kv.OrderBookBidsKey(exchange, symbol))
	if err != nil {
		return domain.OrderBookTOB{}, false, err
	}
	askZ, hasAsk, err := r.store.ZTop1Asc(ctx, kv.OrderBookAsksKey(exchange, symbol))
	if err != nil {
		return domain.OrderBookTOB{}, false, err
	}
	if !hasBid && !hasAsk {
		return domain.OrderBookTOB{}, false, nil
	}

	tsFields, _ := r.store.HGetAll(ctx, kv.OrderBookTSKey(exchange, symbol))
	tob := domain.OrderBookTOB{
		Exchange:          exchange,
		Symbol:            symbol,
		IngestTimestampMs: kv.ParseIntField(tsFields, "timestamp"),
	}
	if hasBid {
		tob.BidPrice, tob.BidSize = kv.ParseOrderBookMember(bidZ.Member)
	}
	if hasAsk {
		tob.AskPrice, tob.AskSize = kv.ParseOrderBookMember(askZ.Member)
	}
	return tob, true, nil
}

// GetFunding reads funding:{ex}:{sym}.
func (r *Repository) GetFunding(ctx context.Context, exchange, symbol string) (domain.FundingInfo, bool, error) {
	fields, err := r.store.HGetAll(ctx, kv.FundingKey(exchange, symbol))
	if err != nil {
		return domain.FundingInfo{}, false, err
	}
	if len(fields) == 0 {
		return domain.FundingInfo{}, false, nil
	}
	return domain.FundingInfo{
		Exchange:          exchange,
		Symbol:            symbol,
		Rate:              kv.ParseDecimalField(fields, "rate"),
		NextFundingTimeMs: kv.ParseIntField(fields, "next_time"),
		IngestTimestampMs: kv.ParseIntField(fields, "timestamp"),
		Mark:              kv.ParseOptionalDecimalField(fields, "mark"),
		Index:             kv.ParseOptionalDecimalField(fields, "index"),
	}, true, nil
}

// GetMidPrice is the convenience read the OMS/sim exchange use to price
// paper fills: prefers the live order book mid, falls back to the
// ticker mid when no book has been ingested yet for that symbol.
func (r *Repository) GetMidPrice(ctx context.Context, exchange, symbol string, accountType domain.AccountType) (decimal.Decimal, bool, error) {
	if tob, ok, err := r.GetOrderBookTOB(ctx, exchange, symbol); err != nil {
		return decimal.Zero, false, err
	} else if ok && !tob.BidPrice.IsZero() && !tob.AskPrice.IsZero() {
		return tob.BidPrice.Add(tob.AskPrice).Div(decimal.NewFromInt(2)), true, nil
	}
	bba, ok, err := r.GetBestBidAsk(ctx, exchange, symbol, accountType)
	if err != nil {
		return decimal.Zero, false, err
	}
	if !ok {
		return decimal.Zero, false, nil
	}
	return bba.Mid(), true, nil
}

// Symbols reads the symbol index set written by the ingestor.
func (r *Repository) Symbols(ctx context.Context, namespace, exchange string) ([]string, error) {
	return r.store.SMembers(ctx, kv.SymbolsKey(namespace, exchange))
}

// Stale reports whether a timestamp is older than maxAge relative to now.
func Stale(timestampMs, nowMs, maxAgeMs int64) bool {
	if timestampMs == 0 {
		return true
	}
	return nowMs-timestampMs > maxAgeMs
}

// NowMs is the single place marketdata converts wall time to the
// millisecond epoch timestamps the KV layer stores.
func NowMs(t time.Time) int64 { return t.UnixMilli() }
