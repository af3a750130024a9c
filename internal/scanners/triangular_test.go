package scanners

import (
	"testing"

	"github.com/aristath/inarbit/internal/domain"
	"github.com/shopspring/decimal"
)

func TestEnumerateTrianglesFindsThreeCycle(t *testing.T) {
	graph := map[string][]edge{
		"USDT": {{from: "USDT", to: "BTC", rate: decimal.NewFromFloat(0.00002)}},
		"BTC":  {{from: "BTC", to: "ETH", rate: decimal.NewFromInt(15)}},
		"ETH":  {{from: "ETH", to: "USDT", rate: decimal.NewFromInt(3500)}},
	}

	cycles := enumerateTriangles(graph)
	if len(cycles) != 1 {
		t.Fatalf("expected exactly one 3-cycle, got %d", len(cycles))
	}
	cycle := cycles[0]
	if cycle[0].from != "USDT" || cycle[1].from != "BTC" || cycle[2].from != "ETH" {
		t.Fatalf("unexpected cycle order: %+v", cycle)
	}
}

func TestEnumerateTrianglesIgnoresTwoCycles(t *testing.T) {
	graph := map[string][]edge{
		"USDT": {{from: "USDT", to: "BTC", rate: decimal.NewFromFloat(0.00002)}},
		"BTC":  {{from: "BTC", to: "USDT", rate: decimal.NewFromInt(50000)}},
	}

	if cycles := enumerateTriangles(graph); len(cycles) != 0 {
		t.Fatalf("a 2-cycle is not a triangle, expected none, got %d", len(cycles))
	}
}

func TestEnumerateTrianglesNoCyclesWithoutAPath(t *testing.T) {
	graph := map[string][]edge{
		"USDT": {{from: "USDT", to: "BTC", rate: decimal.NewFromFloat(0.00002)}},
	}

	if cycles := enumerateTriangles(graph); len(cycles) != 0 {
		t.Fatalf("expected no cycles, got %d", len(cycles))
	}
}

func TestSortOpportunitiesByProfitDescOrdersHighestFirst(t *testing.T) {
	opps := []domain.TriangularOpportunity{
		{ProfitRate: 0.001},
		{ProfitRate: 0.01},
		{ProfitRate: 0.005},
	}
	sortOpportunitiesByProfitDesc(opps)

	want := []float64{0.01, 0.005, 0.001}
	for i, w := range want {
		if opps[i].ProfitRate != w {
			t.Fatalf("position %d: want %v got %v", i, w, opps[i].ProfitRate)
		}
	}
}
