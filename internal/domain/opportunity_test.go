package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTriangularOpportunityBaseAndPathString(t *testing.T) {
	o := TriangularOpportunity{Path: []string{"USDT", "BTC", "ETH", "USDT"}}
	if got := o.Base(); got != "USDT" {
		t.Fatalf("expected base USDT, got %s", got)
	}
	if got := o.PathString(); got != "USDT -> BTC -> ETH -> USDT" {
		t.Fatalf("unexpected path string: %s", got)
	}
}

func TestTriangularOpportunityBaseEmptyPath(t *testing.T) {
	if got := (TriangularOpportunity{}).Base(); got != "" {
		t.Fatalf("expected empty base for an empty path, got %s", got)
	}
}

func TestCashCarryOpportunityBase(t *testing.T) {
	o := CashCarryOpportunity{Symbol: "BTC/USDT"}
	if got := o.Base(); got != "BTC" {
		t.Fatalf("expected BTC, got %s", got)
	}
}

func TestOpportunityDispatchesToWrappedTriangular(t *testing.T) {
	o := Opportunity{Kind: StrategyTriangle, Triangular: &TriangularOpportunity{
		Exchange: "binance", Path: []string{"USDT", "BTC", "ETH", "USDT"},
		Symbols: []string{"BTC/USDT", "ETH/BTC", "ETH/USDT"}, ProfitRate: 0.002,
	}}
	if o.ProfitRate() != 0.002 {
		t.Fatalf("expected profit rate 0.002, got %v", o.ProfitRate())
	}
	if o.Exchange() != "binance" {
		t.Fatalf("expected binance, got %s", o.Exchange())
	}
	if o.PrimarySymbol() != "BTC/USDT" {
		t.Fatalf("expected first leg symbol, got %s", o.PrimarySymbol())
	}
	if o.Base() != "USDT" {
		t.Fatalf("expected USDT, got %s", o.Base())
	}
	if len(o.Symbols()) != 3 {
		t.Fatalf("expected 3 symbols, got %d", len(o.Symbols()))
	}
}

func TestOpportunityDispatchesToWrappedCashCarry(t *testing.T) {
	o := Opportunity{Kind: StrategyBasis, CashCarry: &CashCarryOpportunity{
		Exchange: "binance", Symbol: "ETH/USDT", ProfitRate: 0.003,
	}}
	if o.ProfitRate() != 0.003 {
		t.Fatalf("expected profit rate 0.003, got %v", o.ProfitRate())
	}
	if o.PrimarySymbol() != "ETH/USDT" {
		t.Fatalf("expected ETH/USDT, got %s", o.PrimarySymbol())
	}
	if o.Base() != "ETH" {
		t.Fatalf("expected ETH, got %s", o.Base())
	}
	if got := o.Symbols(); len(got) != 1 || got[0] != "ETH/USDT" {
		t.Fatalf("expected [ETH/USDT], got %v", got)
	}
}

func TestOpportunityEmptyWhenNeitherVariantSet(t *testing.T) {
	var o Opportunity
	if o.ProfitRate() != 0 || o.Exchange() != "" || o.PrimarySymbol() != "" || o.Base() != "" || o.Symbols() != nil {
		t.Fatal("an empty Opportunity should return zero values across every accessor")
	}
}

func TestQuoteCurrencyAndBaseCurrency(t *testing.T) {
	if got := QuoteCurrency("BTC/USDT"); got != "USDT" {
		t.Fatalf("expected USDT, got %s", got)
	}
	if got := QuoteCurrency("no-separator"); got != "" {
		t.Fatalf("expected empty string without a separator, got %s", got)
	}
	if got := BaseCurrency("BTC/USDT"); got != "BTC" {
		t.Fatalf("expected BTC, got %s", got)
	}
}

func TestCashCarryOpportunityHoldsDecimalPrices(t *testing.T) {
	o := CashCarryOpportunity{SpotPrice: decimal.NewFromInt(100), PerpPrice: decimal.NewFromInt(101)}
	if !o.PerpPrice.Sub(o.SpotPrice).Equal(decimal.NewFromInt(1)) {
		t.Fatal("expected basis of 1")
	}
}
