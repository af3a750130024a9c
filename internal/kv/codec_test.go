package kv

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderBookMemberRoundTrip(t *testing.T) {
	price := decimal.NewFromFloat(60000.12)
	amount := decimal.NewFromFloat(0.5)

	member := OrderBookMember(price, amount)
	gotPrice, gotAmount := ParseOrderBookMember(member)

	assert.True(t, price.Equal(gotPrice))
	assert.True(t, amount.Equal(gotAmount))
}

func TestParseOrderBookMember_Malformed(t *testing.T) {
	price, amount := ParseOrderBookMember("not-a-member")
	assert.True(t, price.IsZero())
	assert.True(t, amount.IsZero())
}

func TestParseDecimalField_MissingNeverErrors(t *testing.T) {
	fields := map[string]string{"bid": "not-a-number"}
	assert.True(t, ParseDecimalField(fields, "bid").IsZero())
	assert.True(t, ParseDecimalField(fields, "missing").IsZero())
}

func TestParseOptionalIntField(t *testing.T) {
	fields := map[string]string{"timestamp": "12345"}
	got := ParseOptionalIntField(fields, "timestamp")
	if assert.NotNil(t, got) {
		assert.Equal(t, int64(12345), *got)
	}
	assert.Nil(t, ParseOptionalIntField(fields, "missing"))
}
