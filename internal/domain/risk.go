package domain

import "time"

// RiskConstraints are human-configured (spec.md section 3/4.F). All rate
// fields (MinProfitRate, MaxSpreadRate, MaxAbsFundingRate) are fractional
// (0.001 == 0.1%).
type RiskConstraints struct {
	MaxExposurePerSymbol float64
	MaxTotalExposure     float64
	MinProfitRate        float64
	MaxPositions         int
	Blacklist            map[string]bool
	Whitelist            map[string]bool
	MaxDrawdownPerSymbol float64
	MinLiquidityScore    float64
	MaxSpreadRate        float64
	MaxDataAgeMs         int64
	MinConfidence        float64
	MaxAbsFundingRate    float64
}

// DefaultRiskConstraints returns a conservative default constraint set.
func DefaultRiskConstraints() RiskConstraints {
	return RiskConstraints{
		MaxExposurePerSymbol: 5000,
		MaxTotalExposure:     50000,
		MinProfitRate:        0.0005,
		MaxPositions:         10,
		Blacklist:            map[string]bool{},
		Whitelist:            map[string]bool{},
		MaxDrawdownPerSymbol: 0.1,
		MinLiquidityScore:    0.1,
		MaxSpreadRate:        0.01,
		MaxDataAgeMs:         5000,
		MinConfidence:        0.3,
		MaxAbsFundingRate:    0.01,
	}
}

// AutoOverlay is machine-derived each decision scan (spec.md section 3/4.F.2).
type AutoOverlay struct {
	Timestamp            time.Time
	MinProfitRateBoost   float64
	ExposureMultiplier   float64 // in (0, 1]
	DynamicBlacklist     map[string]bool
	RegimeLabel          RegimeLabel
	RegimeMetrics        map[string]float64
}

// EffectiveConstraints combines human RiskConstraints with an AutoOverlay,
// as section 4.F.2 describes ("effective constraints per scan").
type EffectiveConstraints struct {
	MinProfitRate        float64
	MaxExposurePerSymbol float64
	Blacklist            map[string]bool
	Whitelist            map[string]bool
	MaxSpreadRate        float64
	MaxDataAgeMs         int64
	MinConfidence        float64
	MaxAbsFundingRate    float64
	MinLiquidityScore    float64
	MaxPositions         int
	RegimeLabel          RegimeLabel
}

// Effective merges constraints and overlay per section 4.F.2/4.F.4.
func Effective(c RiskConstraints, o AutoOverlay) EffectiveConstraints {
	merged := map[string]bool{}
	for k := range c.Blacklist {
		merged[k] = true
	}
	for k := range o.DynamicBlacklist {
		merged[k] = true
	}
	return EffectiveConstraints{
		MinProfitRate:        c.MinProfitRate + o.MinProfitRateBoost,
		MaxExposurePerSymbol: c.MaxExposurePerSymbol * o.ExposureMultiplier,
		Blacklist:            merged,
		Whitelist:            c.Whitelist,
		MaxSpreadRate:        c.MaxSpreadRate,
		MaxDataAgeMs:         c.MaxDataAgeMs,
		MinConfidence:        c.MinConfidence,
		MaxAbsFundingRate:    c.MaxAbsFundingRate,
		MinLiquidityScore:    c.MinLiquidityScore,
		MaxPositions:         c.MaxPositions,
		RegimeLabel:          o.RegimeLabel,
	}
}

// RegimeWeights maps a RegimeLabel to a per-strategy routing weight
// (spec.md section 4.F.3).
type RegimeWeights struct {
	Range     float64
	Downtrend float64
	Uptrend   float64
	Stress    float64
}

// Weight returns the configured weight for the given regime.
func (w RegimeWeights) Weight(r RegimeLabel) float64 {
	switch r {
	case RegimeRange:
		return w.Range
	case RegimeDowntrend:
		return w.Downtrend
	case RegimeUptrend:
		return w.Uptrend
	case RegimeStress:
		return w.Stress
	default:
		return 0
	}
}

// StrategyRouting is a per-strategy-type routing configuration
// (spec.md section 4.F.3).
type StrategyRouting struct {
	StrategyKey   string
	AllowShort    bool
	MaxLeverage   float64
	RegimeWeights RegimeWeights
	IsEnabled     bool
}

// Decision is a ranked, routed, risk-scored candidate for execution
// (spec.md section 3/4.F).
type Decision struct {
	Strategy          StrategyKind
	Exchange          string
	MainSymbol        string
	Direction         string
	ExpectedProfitRate float64
	EstimatedExposure float64
	RiskScore         float64 // in [0,1], lower is better
	Confidence        float64 // in [0,1]
	Timestamp         time.Time
	Opportunity       Opportunity
	RegimeLabel       RegimeLabel
	RoutingWeight     float64
}
