package decision

import (
	"encoding/json"
	"time"

	"github.com/aristath/inarbit/internal/domain"
	"github.com/shopspring/decimal"
)

// These wire shapes mirror internal/scanners' encode.go exactly - the
// decision service is the only consumer of the opportunity streams the
// scanners publish, so keeping both sides of the JSON contract typed
// (rather than sharing a package) matches spec.md section 6's "readers
// and writers just need to agree on the JSON shape" framing.

type wireTriangularIn struct {
	Exchange   string   `json:"exchange"`
	Path       []string `json:"path"`
	Symbols    []string `json:"symbols"`
	ProfitRate float64  `json:"profit_rate"`
	CreatedAt  int64    `json:"created_at"`
}

func decodeTriangular(member string) (domain.Opportunity, bool) {
	var w wireTriangularIn
	if err := json.Unmarshal([]byte(member), &w); err != nil {
		return domain.Opportunity{}, false
	}
	t := domain.TriangularOpportunity{
		Exchange:   w.Exchange,
		Path:       w.Path,
		Symbols:    w.Symbols,
		ProfitRate: w.ProfitRate,
		CreatedAt:  time.UnixMilli(w.CreatedAt),
	}
	return domain.Opportunity{Kind: domain.StrategyTriangle, Triangular: &t}, true
}

type wireCashCarryIn struct {
	Exchange            string  `json:"exchange"`
	Symbol              string  `json:"symbol"`
	Direction           string  `json:"direction"`
	SpotPrice           string  `json:"spot_price"`
	PerpPrice           string  `json:"perp_price"`
	BasisRate           float64 `json:"basis_rate"`
	FundingContribution float64 `json:"funding_contribution"`
	ProfitRate          float64 `json:"profit_rate"`
	CreatedAt           int64   `json:"created_at"`
}

func decodeCashCarry(member string) (domain.Opportunity, bool) {
	var w wireCashCarryIn
	if err := json.Unmarshal([]byte(member), &w); err != nil {
		return domain.Opportunity{}, false
	}
	spot, err1 := decimal.NewFromString(w.SpotPrice)
	perp, err2 := decimal.NewFromString(w.PerpPrice)
	if err1 != nil || err2 != nil {
		return domain.Opportunity{}, false
	}
	c := domain.CashCarryOpportunity{
		Exchange:            w.Exchange,
		Symbol:              w.Symbol,
		Direction:           domain.CashCarryDirection(w.Direction),
		SpotPrice:           spot,
		PerpPrice:           perp,
		BasisRate:           w.BasisRate,
		FundingContribution: w.FundingContribution,
		ProfitRate:          w.ProfitRate,
		CreatedAt:           time.UnixMilli(w.CreatedAt),
	}
	return domain.Opportunity{Kind: domain.StrategyBasis, CashCarry: &c}, true
}
