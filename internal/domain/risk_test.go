package domain

import "testing"

func TestEffectiveMergesBlacklistsAndAppliesOverlay(t *testing.T) {
	base := RiskConstraints{
		MaxExposurePerSymbol: 1000,
		MinProfitRate:        0.001,
		Blacklist:            map[string]bool{"XRP": true},
	}
	overlay := AutoOverlay{
		MinProfitRateBoost: 0.0005,
		ExposureMultiplier: 0.5,
		DynamicBlacklist:   map[string]bool{"DOGE": true},
		RegimeLabel:        RegimeStress,
	}

	eff := Effective(base, overlay)

	if eff.MinProfitRate != 0.0015 {
		t.Fatalf("expected boosted min profit rate 0.0015, got %v", eff.MinProfitRate)
	}
	if eff.MaxExposurePerSymbol != 500 {
		t.Fatalf("expected halved exposure cap 500, got %v", eff.MaxExposurePerSymbol)
	}
	if !eff.Blacklist["XRP"] || !eff.Blacklist["DOGE"] {
		t.Fatalf("expected both static and dynamic blacklist entries merged, got %v", eff.Blacklist)
	}
	if eff.RegimeLabel != RegimeStress {
		t.Fatalf("expected regime label carried through, got %v", eff.RegimeLabel)
	}
}

func TestRegimeWeightsWeightPerLabel(t *testing.T) {
	w := RegimeWeights{Range: 1, Downtrend: 0.5, Uptrend: 0.8, Stress: 0}
	cases := map[RegimeLabel]float64{
		RegimeRange:     1,
		RegimeDowntrend: 0.5,
		RegimeUptrend:   0.8,
		RegimeStress:    0,
	}
	for label, want := range cases {
		if got := w.Weight(label); got != want {
			t.Errorf("weight for %v: want %v got %v", label, want, got)
		}
	}
}

func TestRegimeWeightsUnknownLabelIsZero(t *testing.T) {
	w := RegimeWeights{Range: 1, Downtrend: 1, Uptrend: 1, Stress: 1}
	if got := w.Weight(RegimeLabel("unknown")); got != 0 {
		t.Fatalf("expected zero weight for an unrecognized label, got %v", got)
	}
}

func TestStrategyKindRoutingStrategyKey(t *testing.T) {
	if got := StrategyTriangle.RoutingStrategyKey(); got != "triangle" {
		t.Fatalf("expected triangle, got %s", got)
	}
	if got := StrategyBasis.RoutingStrategyKey(); got != "funding_rate" {
		t.Fatalf("expected funding_rate, got %s", got)
	}
}
