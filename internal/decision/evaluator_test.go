package decision

import (
	"context"
	"testing"

	"github.com/aristath/inarbit/internal/domain"
)

func goodConstraints() domain.EffectiveConstraints {
	return domain.EffectiveConstraints{
		MinProfitRate:        0.0005,
		MaxExposurePerSymbol: 5000,
		Blacklist:            map[string]bool{},
		Whitelist:            map[string]bool{},
		MaxSpreadRate:        0.01,
		MaxDataAgeMs:         5000,
		MinConfidence:        0.1,
		MaxAbsFundingRate:    0.01,
		MinLiquidityScore:    0.0,
		RegimeLabel:          domain.RegimeRange,
	}
}

func goodStats() marketDataStats {
	return marketDataStats{
		avgDataAgeMs:   100,
		dataAgeMs:      100,
		spreadRate:     0.001,
		liquidityScore: 0.5,
		mid:            100,
	}
}

func triangularOpp(profitRate float64) domain.Opportunity {
	return domain.Opportunity{
		Kind: domain.StrategyTriangle,
		Triangular: &domain.TriangularOpportunity{
			Exchange:   "binance",
			Path:       []string{"USDT", "BTC", "ETH", "USDT"},
			Symbols:    []string{"BTC/USDT", "ETH/BTC", "ETH/USDT"},
			ProfitRate: profitRate,
		},
	}
}

func TestEvaluateAcceptsOpportunityAboveMinProfit(t *testing.T) {
	d, ok := evaluateFixture(t, triangularOpp(0.002), goodConstraints(), goodStats())
	if !ok {
		t.Fatal("expected the opportunity to be accepted")
	}
	if d.Strategy != domain.StrategyTriangle {
		t.Fatalf("unexpected strategy: %v", d.Strategy)
	}
	if d.EstimatedExposure != nominalExposure {
		t.Fatalf("expected nominal exposure %v, got %v", nominalExposure, d.EstimatedExposure)
	}
}

func TestEvaluateRejectsBelowMinProfitRate(t *testing.T) {
	_, ok := evaluateFixture(t, triangularOpp(0.0001), goodConstraints(), goodStats())
	if ok {
		t.Fatal("opportunity below min profit rate must be rejected")
	}
}

func TestEvaluateRejectsBlacklistedBase(t *testing.T) {
	c := goodConstraints()
	c.Blacklist = map[string]bool{"USDT": true}
	_, ok := evaluateFixture(t, triangularOpp(0.002), c, goodStats())
	if ok {
		t.Fatal("opportunity with a blacklisted base must be rejected")
	}
}

func TestEvaluateRejectsSymbolNotInWhitelist(t *testing.T) {
	c := goodConstraints()
	c.Whitelist = map[string]bool{"ETH": true}
	_, ok := evaluateFixture(t, triangularOpp(0.002), c, goodStats())
	if ok {
		t.Fatal("opportunity whose base is absent from a non-empty whitelist must be rejected")
	}
}

func TestEvaluateRejectsStaleData(t *testing.T) {
	c := goodConstraints()
	c.MaxDataAgeMs = 50
	s := goodStats()
	s.dataAgeMs = 10000
	_, ok := evaluateFixture(t, triangularOpp(0.002), c, s)
	if ok {
		t.Fatal("stale market data must be rejected")
	}
}

func TestEvaluateRejectsWideSpread(t *testing.T) {
	c := goodConstraints()
	s := goodStats()
	s.spreadRate = 0.5
	_, ok := evaluateFixture(t, triangularOpp(0.002), c, s)
	if ok {
		t.Fatal("spread above MaxSpreadRate must be rejected")
	}
}

func TestEvaluateRejectsLowLiquidity(t *testing.T) {
	c := goodConstraints()
	c.MinLiquidityScore = 0.9
	_, ok := evaluateFixture(t, triangularOpp(0.002), c, goodStats())
	if ok {
		t.Fatal("liquidity below MinLiquidityScore must be rejected")
	}
}

func TestEvaluateRejectsFundingBeyondMaxAbs(t *testing.T) {
	opp := domain.Opportunity{
		Kind: domain.StrategyBasis,
		CashCarry: &domain.CashCarryOpportunity{
			Exchange: "binance", Symbol: "BTC/USDT",
			ProfitRate: 0.01, FundingContribution: 0.5,
		},
	}
	_, ok := evaluateFixture(t, opp, goodConstraints(), goodStats())
	if ok {
		t.Fatal("funding contribution beyond MaxAbsFundingRate must be rejected")
	}
}

func TestApplyRoutingRequiresEnabled(t *testing.T) {
	d := domain.Decision{RegimeLabel: domain.RegimeRange}
	routing := domain.StrategyRouting{IsEnabled: false, RegimeWeights: domain.RegimeWeights{Range: 1}}
	if _, ok := applyRouting(d, routing); ok {
		t.Fatal("disabled routing must reject every decision")
	}
}

func TestApplyRoutingRejectsShortWithoutAllowShort(t *testing.T) {
	d := domain.Decision{Direction: "short_spot_long_perp", RegimeLabel: domain.RegimeRange}
	routing := domain.StrategyRouting{IsEnabled: true, AllowShort: false, RegimeWeights: domain.RegimeWeights{Range: 1}}
	if _, ok := applyRouting(d, routing); ok {
		t.Fatal("short direction without AllowShort must be rejected")
	}
}

func TestApplyRoutingRejectsZeroWeightRegime(t *testing.T) {
	d := domain.Decision{RegimeLabel: domain.RegimeStress}
	routing := domain.StrategyRouting{IsEnabled: true, RegimeWeights: domain.RegimeWeights{Stress: 0}}
	if _, ok := applyRouting(d, routing); ok {
		t.Fatal("zero-weight regime must be rejected")
	}
}

func TestApplyRoutingDividesRiskScoreByWeight(t *testing.T) {
	d := domain.Decision{RiskScore: 0.4, RegimeLabel: domain.RegimeRange}
	routing := domain.StrategyRouting{IsEnabled: true, RegimeWeights: domain.RegimeWeights{Range: 0.5}}
	got, ok := applyRouting(d, routing)
	if !ok {
		t.Fatal("expected routing to accept the decision")
	}
	if got.RiskScore != 0.8 {
		t.Fatalf("expected risk score 0.8, got %v", got.RiskScore)
	}
	if got.RoutingWeight != 0.5 {
		t.Fatalf("expected routing weight 0.5, got %v", got.RoutingWeight)
	}
}

// evaluateFixture calls the unexported evaluate method via a Service
// whose only fields evaluate reads are the ones passed in explicitly.
func evaluateFixture(t *testing.T, opp domain.Opportunity, c domain.EffectiveConstraints, s marketDataStats) (domain.Decision, bool) {
	t.Helper()
	svc := &Service{}
	return svc.evaluate(context.Background(), opp, c, s)
}
