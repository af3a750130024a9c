// Package decision is the periodic scan that reads both opportunity
// streams, applies human constraints plus a derived auto-overlay,
// per-strategy routing weights, deduplicates per base currency, and
// emits the ranked decisions:latest stream (spec.md section 4.F).
package decision

import (
	"context"
	"time"

	"github.com/aristath/inarbit/internal/domain"
	"github.com/aristath/inarbit/internal/marketdata"
)

// candidateStats is the aggregate the auto-overlay refresh needs across
// the first ~30 symbols of both opportunity streams.
type candidateStats struct {
	avgDataAgeMs  float64
	avgSpreadRate float64
	lowLiquidity  map[string]bool // base currencies with quote_volume/1e8 < 0.05
}

// refreshAutoOverlay recomputes min_profit_rate_boost/exposure_multiplier
// cumulatively per spec.md section 4.F.2, consulting a regime snapshot
// and the market data repository for liquidity/freshness stats.
func (s *Service) refreshAutoOverlay(ctx context.Context, symbols []string) domain.AutoOverlay {
	now := time.Now()
	if s.lastOverlay != nil && now.Sub(s.lastOverlayAt) < s.cfg.AutoOverlayInterval {
		return *s.lastOverlay
	}

	stats := s.gatherCandidateStats(ctx, symbols)
	snap := s.classifier.Refresh(ctx, symbols)

	boost := 0.0
	mult := 1.0
	minProfit := s.cfg.Constraints.MinProfitRate
	maxDataAge := float64(s.cfg.Constraints.MaxDataAgeMs)
	maxSpread := s.cfg.Constraints.MaxSpreadRate

	if maxDataAge > 0 && stats.avgDataAgeMs > maxDataAge {
		boost += minProfit
		mult = minF(mult, 0.5)
	} else if maxDataAge > 0 && stats.avgDataAgeMs > 0.7*maxDataAge {
		boost += 0.5 * minProfit
	}
	if stats.avgSpreadRate > maxSpread {
		boost += minProfit
		mult = minF(mult, 0.5)
	} else if stats.avgSpreadRate > 0.7*maxSpread {
		boost += 0.5 * minProfit
	}
	switch snap.Label {
	case domain.RegimeStress:
		boost += minProfit
		mult = minF(mult, 0.3)
	case domain.RegimeDowntrend:
		boost += 0.5 * minProfit
		mult = minF(mult, 0.6)
	case domain.RegimeUptrend:
		boost += 0.2 * minProfit
		mult = minF(mult, 0.8)
	}

	overlay := domain.AutoOverlay{
		Timestamp:          now,
		MinProfitRateBoost: boost,
		ExposureMultiplier: mult,
		DynamicBlacklist:   stats.lowLiquidity,
		RegimeLabel:        snap.Label,
		RegimeMetrics: map[string]float64{
			"avg_return":      snap.AvgReturn,
			"volatility":      snap.Volatility,
			"avg_spread_rate": snap.AvgSpreadRate,
			"avg_data_age_ms": snap.AvgDataAgeMs,
		},
	}
	s.lastOverlay = &overlay
	s.lastOverlayAt = now
	return overlay
}

func (s *Service) gatherCandidateStats(ctx context.Context, symbols []string) candidateStats {
	stats := candidateStats{lowLiquidity: make(map[string]bool)}
	nowMs := marketdata.NowMs(time.Now())
	var ageSum, spreadSum float64
	var n int

	for _, symbol := range symbols {
		bba, ok, err := s.repo.GetBestBidAsk(ctx, s.exchange, symbol, domain.AccountSpot)
		if err != nil || !ok {
			continue
		}
		ageSum += float64(nowMs - bba.IngestTimestampMs)
		mid := bba.Mid()
		if mid.IsPositive() && bba.Bid.IsPositive() && bba.Ask.IsPositive() {
			spreadRate, _ := bba.Ask.Sub(bba.Bid).Div(mid).Float64()
			spreadSum += spreadRate
		}
		n++

		volF, _ := bba.QuoteVolume.Float64()
		if volF/1e8 < 0.05 {
			stats.lowLiquidity[domain.BaseCurrency(symbol)] = true
		}
	}
	if n > 0 {
		stats.avgDataAgeMs = ageSum / float64(n)
		stats.avgSpreadRate = spreadSum / float64(n)
	}
	return stats
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
