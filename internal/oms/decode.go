package oms

import (
	"encoding/json"
	"time"

	"github.com/aristath/inarbit/internal/domain"
	"github.com/shopspring/decimal"
)

// wireDecisionIn mirrors internal/decision's wireDecision shape exactly
// (same pattern as internal/decision/decode.go mirroring internal/scanners):
// the OMS is the only consumer of decisions:latest besides the publisher,
// so keeping both sides typed against the agreed JSON shape is simpler
// than sharing a package.
type wireDecisionIn struct {
	Strategy           string  `json:"strategy"`
	Exchange           string  `json:"exchange"`
	MainSymbol         string  `json:"main_symbol"`
	Direction          string  `json:"direction"`
	ExpectedProfitRate float64 `json:"expected_profit_rate"`
	EstimatedExposure  float64 `json:"estimated_exposure"`
	RiskScore          float64 `json:"risk_score"`
	Confidence         float64 `json:"confidence"`
	RegimeLabel        string  `json:"regime_label"`
	RoutingWeight      float64 `json:"routing_weight"`
	Timestamp          int64   `json:"timestamp"`

	TrianglePath    []string `json:"triangle_path,omitempty"`
	TriangleSymbols []string `json:"triangle_symbols,omitempty"`

	CashCarrySymbol    string `json:"cashcarry_symbol,omitempty"`
	CashCarryDirection string `json:"cashcarry_direction,omitempty"`
	CashCarrySpotPrice string `json:"cashcarry_spot_price,omitempty"`
	CashCarryPerpPrice string `json:"cashcarry_perp_price,omitempty"`
}

func decodeDecision(member string) (domain.Decision, bool) {
	var w wireDecisionIn
	if err := json.Unmarshal([]byte(member), &w); err != nil {
		return domain.Decision{}, false
	}
	d := domain.Decision{
		Strategy:           domain.StrategyKind(w.Strategy),
		Exchange:           w.Exchange,
		MainSymbol:         w.MainSymbol,
		Direction:          w.Direction,
		ExpectedProfitRate: w.ExpectedProfitRate,
		EstimatedExposure:  w.EstimatedExposure,
		RiskScore:          w.RiskScore,
		Confidence:         w.Confidence,
		RegimeLabel:        domain.RegimeLabel(w.RegimeLabel),
		RoutingWeight:      w.RoutingWeight,
		Timestamp:          time.UnixMilli(w.Timestamp),
	}
	switch d.Strategy {
	case domain.StrategyTriangle:
		if len(w.TrianglePath) != 4 || len(w.TriangleSymbols) != 3 {
			return domain.Decision{}, false
		}
		d.Opportunity = domain.Opportunity{
			Kind: domain.StrategyTriangle,
			Triangular: &domain.TriangularOpportunity{
				Exchange:   w.Exchange,
				Path:       w.TrianglePath,
				Symbols:    w.TriangleSymbols,
				ProfitRate: w.ExpectedProfitRate,
				CreatedAt:  d.Timestamp,
			},
		}
	case domain.StrategyBasis:
		spot, err1 := decimal.NewFromString(w.CashCarrySpotPrice)
		perp, err2 := decimal.NewFromString(w.CashCarryPerpPrice)
		if err1 != nil || err2 != nil || w.CashCarrySymbol == "" {
			return domain.Decision{}, false
		}
		d.Opportunity = domain.Opportunity{
			Kind: domain.StrategyBasis,
			CashCarry: &domain.CashCarryOpportunity{
				Exchange:   w.Exchange,
				Symbol:     w.CashCarrySymbol,
				Direction:  domain.CashCarryDirection(w.CashCarryDirection),
				SpotPrice:  spot,
				PerpPrice:  perp,
				ProfitRate: w.ExpectedProfitRate,
				CreatedAt:  d.Timestamp,
			},
		}
	default:
		return domain.Decision{}, false
	}
	return d, true
}
