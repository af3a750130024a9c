package scanners

import (
	"encoding/json"

	"github.com/aristath/inarbit/internal/domain"
)

// wireTriangular (and wireCashCarry below) is the JSON shape persisted as a sorted-set member for
// opportunities:triangular / opportunities:cashcarry (spec.md section 6);
// it is intentionally flat so any reader can parse it without knowing
// about the discriminated-union Opportunity type internal callers use.
type wireTriangular struct {
	Exchange   string   `json:"exchange"`
	Path       []string `json:"path"`
	Symbols    []string `json:"symbols"`
	ProfitRate float64  `json:"profit_rate"`
	CreatedAt  int64    `json:"created_at"`
}

func marshalTriangular(o domain.TriangularOpportunity) ([]byte, error) {
	return json.Marshal(wireTriangular{
		Exchange:   o.Exchange,
		Path:       o.Path,
		Symbols:    o.Symbols,
		ProfitRate: o.ProfitRate,
		CreatedAt:  o.CreatedAt.UnixMilli(),
	})
}

type wireCashCarry struct {
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

func marshalCashCarry(o domain.CashCarryOpportunity) ([]byte, error) {
	return json.Marshal(wireCashCarry{
		Exchange:            o.Exchange,
		Symbol:              o.Symbol,
		Direction:           string(o.Direction),
		SpotPrice:           o.SpotPrice.String(),
		PerpPrice:           o.PerpPrice.String(),
		BasisRate:           o.BasisRate,
		FundingContribution: o.FundingContribution,
		ProfitRate:          o.ProfitRate,
		CreatedAt:           o.CreatedAt.UnixMilli(),
	})
}
