package kv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// TickerFields builds the hash fields for ticker:{ex}:{sym} / ticker_futures:{ex}:{sym}.
func TickerFields(bid, ask, last, volume decimal.Decimal, timestampMs int64, exchangeTimestampMs *int64) map[string]any {
	f := map[string]any{
		"bid":       bid.String(),
		"ask":       ask.String(),
		"last":      last.String(),
		"volume":    volume.String(),
		"timestamp": timestampMs,
	}
	if exchangeTimestampMs != nil {
		f["exchange_timestamp"] = *exchangeTimestampMs
	}
	return f
}

// ParseDecimalField parses a hash field into a decimal, returning
// decimal.Zero (not an error) on a missing/unparseable field - spec.md
// section 4.A: "failure to parse a field yields null in that field only".
func ParseDecimalField(fields map[string]string, name string) decimal.Decimal {
	v, ok := fields[name]
	if !ok || v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseOptionalDecimalField parses a hash field into a *decimal.Decimal,
// returning nil if the field is absent/unparseable.
func ParseOptionalDecimalField(fields map[string]string, name string) *decimal.Decimal {
	v, ok := fields[name]
	if !ok || v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil
	}
	return &d
}

// ParseIntField parses a hash field into an int64, returning 0 on failure.
func ParseIntField(fields map[string]string, name string) int64 {
	v, ok := fields[name]
	if !ok || v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ParseOptionalIntField parses a hash field into *int64, nil on failure.
func ParseOptionalIntField(fields map[string]string, name string) *int64 {
	v, ok := fields[name]
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// OrderBookMember encodes one side's "{price}:{amount}" sorted-set member
// (spec.md section 6).
func OrderBookMember(price, amount decimal.Decimal) string {
	return fmt.Sprintf("%s:%s", price.String(), amount.String())
}

// ParseOrderBookMember decodes a "{price}:{amount}" member back into its
// price/amount decimals. Returns zero values if the member is malformed.
func ParseOrderBookMember(member string) (price, amount decimal.Decimal) {
	parts := strings.SplitN(member, ":", 2)
	if len(parts) != 2 {
		return decimal.Zero, decimal.Zero
	}
	p, err1 := decimal.NewFromString(parts[0])
	a, err2 := decimal.NewFromString(parts[1])
	if err1 != nil {
		p = decimal.Zero
	}
	if err2 != nil {
		a = decimal.Zero
	}
	return p, a
}

// FundingFields builds the hash fields for funding:{ex}:{sym}.
func FundingFields(rate decimal.Decimal, nextFundingMs, timestampMs int64, mark, index *decimal.Decimal) map[string]any {
	f := map[string]any{
		"rate":      rate.String(),
		"next_time": nextFundingMs,
		"timestamp": timestampMs,
	}
	if mark != nil {
		f["mark"] = mark.String()
	}
	if index != nil {
		f["index"] = index.String()
	}
	return f
}
