package oms

import (
	"testing"

	"github.com/aristath/inarbit/internal/domain"
	"github.com/shopspring/decimal"
)

func TestLegSide(t *testing.T) {
	side, ok := legSide("USDT", "BTC", "BTC", "USDT")
	if !ok || side != domain.SideBuy {
		t.Errorf("USDT->BTC over BTC/USDT should be a buy, got %v, ok=%v", side, ok)
	}
	side, ok = legSide("BTC", "USDT", "BTC", "USDT")
	if !ok || side != domain.SideSell {
		t.Errorf("BTC->USDT over BTC/USDT should be a sell, got %v, ok=%v", side, ok)
	}
	if _, ok := legSide("ETH", "BTC", "BTC", "USDT"); ok {
		t.Error("ETH->BTC does not traverse BTC/USDT, expected ok=false")
	}
}

func TestExecutablePrice(t *testing.T) {
	tob := domain.OrderBookTOB{
		BidPrice: decimal.NewFromInt(100),
		AskPrice: decimal.NewFromInt(101),
	}
	if got := executablePrice(tob, domain.SideBuy); !got.Equal(decimal.NewFromInt(101)) {
		t.Errorf("buy should pick the ask, got %s", got)
	}
	if got := executablePrice(tob, domain.SideSell); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("sell should pick the bid, got %s", got)
	}
}
