package domain

import "github.com/shopspring/decimal"

// MarketSnapshot is a spot or perpetual ticker keyed by (exchange, symbol,
// account_type). See spec.md section 3.
type MarketSnapshot struct {
	Exchange           string
	Symbol             string
	AccountType        AccountType
	Bid                decimal.Decimal
	Ask                decimal.Decimal
	Last               decimal.Decimal
	QuoteVolume        decimal.Decimal
	IngestTimestampMs  int64
	ExchangeTimestampMs *int64
}

// Stale reports whether the snapshot's ingest timestamp is older than
// maxAgeMs relative to nowMs (spec.md section 3 invariant).
func (m MarketSnapshot) Stale(nowMs, maxAgeMs int64) bool {
	return nowMs-m.IngestTimestampMs > maxAgeMs
}

// Mid returns the midpoint of bid/ask, falling back to Last if either side
// is zero (used by the regime sampler, section 4.E).
func (m MarketSnapshot) Mid() decimal.Decimal {
	if m.Bid.IsPositive() && m.Ask.IsPositive() {
		return m.Bid.Add(m.Ask).Div(decimal.NewFromInt(2))
	}
	return m.Last
}

// SpreadRate returns (ask-bid)/mid, or zero if bid/ask are unavailable.
func (m MarketSnapshot) SpreadRate() decimal.Decimal {
	mid := m.Mid()
	if !m.Bid.IsPositive() || !m.Ask.IsPositive() || mid.IsZero() {
		return decimal.Zero
	}
	return m.Ask.Sub(m.Bid).Div(mid)
}

// BestBidAsk is the minimal top-of-book view the Market Data Repository
// hands back for a ticker (spec.md section 4.A).
type BestBidAsk struct {
	Exchange    string
	Symbol      string
	AccountType AccountType
	Bid         decimal.Decimal
	Ask         decimal.Decimal
	Last        decimal.Decimal
	QuoteVolume decimal.Decimal
	IngestTimestampMs int64
}

// Mid returns the midpoint of bid/ask, falling back to Last if either
// side is zero.
func (b BestBidAsk) Mid() decimal.Decimal {
	if b.Bid.IsPositive() && b.Ask.IsPositive() {
		return b.Bid.Add(b.Ask).Div(decimal.NewFromInt(2))
	}
	return b.Last
}

// OrderBookTOB is top-of-book only (best bid/ask with size); deeper levels
// are not part of the core (spec.md section 3).
type OrderBookTOB struct {
	Exchange          string
	Symbol            string
	BidPrice          decimal.Decimal
	BidSize           decimal.Decimal
	AskPrice          decimal.Decimal
	AskSize           decimal.Decimal
	IngestTimestampMs int64
}

// FundingInfo is the funding-rate snapshot for a perpetual symbol.
type FundingInfo struct {
	Exchange          string
	Symbol            string
	Rate              decimal.Decimal
	NextFundingTimeMs int64
	IngestTimestampMs int64
	Mark              *decimal.Decimal
	Index             *decimal.Decimal
}

// WithinSpikeCeiling reports whether |rate| is within the configured spike
// ceiling (spec.md section 3 FundingInfo invariant).
func (f FundingInfo) WithinSpikeCeiling(ceiling decimal.Decimal) bool {
	return f.Rate.Abs().LessThanOrEqual(ceiling)
}
