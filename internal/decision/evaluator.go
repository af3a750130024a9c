package decision

import (
	"context"
	"time"

	"github.com/aristath/inarbit/internal/domain"
	"github.com/aristath/inarbit/internal/marketdata"
)

// nominalExposure is the fixed notional spec.md section 4.F.4 evaluates
// every candidate opportunity against ("a nominal estimated_exposure =
// 1000 quote-currency units").
const nominalExposure = 1000

// evaluate implements spec.md section 4.F.4: blacklist/whitelist,
// min-profit-rate, exposure cap, confidence, market/funding safety, then
// risk score. Routing (section 4.F.5) is not applied here; applyRouting
// does that separately. Returns (decision, ok) - ok is false if the
// opportunity is rejected at any gate.
func (s *Service) evaluate(ctx context.Context, opp domain.Opportunity, effective domain.EffectiveConstraints, snap marketDataStats) (domain.Decision, bool) {
	base := opp.Base()
	if effective.Blacklist[base] {
		return domain.Decision{}, false
	}
	if len(effective.Whitelist) > 0 && !effective.Whitelist[base] {
		return domain.Decision{}, false
	}

	effectiveMinProfit := effective.MinProfitRate
	if opp.ProfitRate() < effectiveMinProfit {
		return domain.Decision{}, false
	}

	effectiveMaxExposure := effective.MaxExposurePerSymbol
	if nominalExposure > effectiveMaxExposure {
		return domain.Decision{}, false
	}

	freshness := 0.0
	if snap.avgDataAgeMs >= 0 {
		freshness = 1 - snap.avgDataAgeMs/30000
		if freshness < 0 {
			freshness = 0
		}
	}
	profitConfidence := opp.ProfitRate() * 100
	if profitConfidence > 1 {
		profitConfidence = 1
	}
	confidence := 0.7*freshness + 0.3*profitConfidence
	if confidence < effective.MinConfidence {
		return domain.Decision{}, false
	}

	if float64(snap.dataAgeMs) > float64(effective.MaxDataAgeMs) && effective.MaxDataAgeMs > 0 {
		return domain.Decision{}, false
	}
	if snap.spreadRate > effective.MaxSpreadRate {
		return domain.Decision{}, false
	}
	if snap.liquidityScore < effective.MinLiquidityScore {
		return domain.Decision{}, false
	}

	if opp.Kind == domain.StrategyBasis && opp.CashCarry != nil {
		if absF(fundingRateOf(opp)) > effective.MaxAbsFundingRate {
			return domain.Decision{}, false
		}
	}

	volatilityProxy := 0.0
	if snap.mid > 0 {
		volatilityProxy = snap.spreadRate
	}
	liquidityTerm := 1 - snap.liquidityScore
	exposureTerm := nominalExposure / maxF(effective.MaxExposurePerSymbol, 1)
	profitTerm := 1 - opp.ProfitRate()
	riskScore := 0.4*volatilityProxy + 0.3*liquidityTerm + 0.2*exposureTerm + 0.1*profitTerm

	direction := ""
	if opp.CashCarry != nil {
		direction = string(opp.CashCarry.Direction)
	}

	return domain.Decision{
		Strategy:           opp.Kind,
		Exchange:           opp.Exchange(),
		MainSymbol:         opp.PrimarySymbol(),
		Direction:          direction,
		ExpectedProfitRate: opp.ProfitRate(),
		EstimatedExposure:  nominalExposure,
		RiskScore:          riskScore,
		Confidence:         confidence,
		Timestamp:          time.Now(),
		Opportunity:        opp,
		RegimeLabel:        effective.RegimeLabel,
	}, true
}

// applyRouting implements spec.md section 4.F.5: require allow_short for
// short directions, drop zero-weight regimes, divide risk by weight.
func applyRouting(d domain.Decision, routing domain.StrategyRouting) (domain.Decision, bool) {
	if !routing.IsEnabled {
		return domain.Decision{}, false
	}
	if containsShort(d.Direction) && !routing.AllowShort {
		return domain.Decision{}, false
	}
	w := routing.RegimeWeights.Weight(d.RegimeLabel)
	if w <= 0 {
		return domain.Decision{}, false
	}
	d.RiskScore = d.RiskScore / w
	d.RoutingWeight = w
	return d, true
}

func containsShort(direction string) bool {
	for i := 0; i+5 <= len(direction); i++ {
		if direction[i:i+5] == "short" {
			return true
		}
	}
	return false
}

func fundingRateOf(opp domain.Opportunity) float64 {
	if opp.CashCarry == nil {
		return 0
	}
	return opp.CashCarry.FundingContribution
}

func absF(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// marketDataStats is the per-opportunity freshness/spread/liquidity read
// evaluate needs from the market data repository.
type marketDataStats struct {
	avgDataAgeMs   float64
	dataAgeMs      int64
	spreadRate     float64
	liquidityScore float64
	mid            float64
}

// statsFor reads the repository for the primary symbol of an
// opportunity, computing a simple liquidity score from quote volume.
func statsFor(ctx context.Context, repo *marketdata.Repository, exchange, symbol string) marketDataStats {
	bba, ok, err := repo.GetBestBidAsk(ctx, exchange, symbol, domain.AccountSpot)
	if err != nil || !ok {
		return marketDataStats{avgDataAgeMs: 1 << 30, dataAgeMs: 1 << 30}
	}
	nowMs := marketdata.NowMs(time.Now())
	age := nowMs - bba.IngestTimestampMs
	mid := bba.Mid()
	midF, _ := mid.Float64()
	spread := 0.0
	if mid.IsPositive() && bba.Bid.IsPositive() && bba.Ask.IsPositive() {
		spread, _ = bba.Ask.Sub(bba.Bid).Div(mid).Float64()
	}
	volF, _ := bba.QuoteVolume.Float64()
	liquidity := volF / 1e8
	if liquidity > 1 {
		liquidity = 1
	}
	return marketDataStats{
		avgDataAgeMs:   float64(age),
		dataAgeMs:      age,
		spreadRate:     spread,
		liquidityScore: liquidity,
		mid:            midF,
	}
}
