package scanners

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/inarbit/internal/domain"
	"github.com/aristath/inarbit/internal/kv"
	"github.com/aristath/inarbit/internal/marketdata"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CashCarryScanner periodically computes the spot/perpetual basis and
// funding-carry for every configured symbol on an exchange, in both
// directions, and replaces the opportunities:cashcarry sorted set
// atomically (spec.md section 4.D).
type CashCarryScanner struct {
	repo     *marketdata.Repository
	store    *kv.Store
	log      zerolog.Logger
	exchange string
	symbols  []string

	spotFee           decimal.Decimal
	perpFee            decimal.Decimal
	fundingIntervals   int
	minProfit          float64
	maxResults         int
	interval           time.Duration
	fundingSpikeCeiling decimal.Decimal

	ticker    *time.Ticker
	stopChan  chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
}

// CashCarryConfig configures one CashCarryScanner instance.
type CashCarryConfig struct {
	Exchange            string
	Symbols              []string
	SpotFee              decimal.Decimal
	PerpFee               decimal.Decimal
	FundingIntervals      int
	MinProfitRate         float64
	MaxResults            int
	Interval              time.Duration
	FundingSpikeCeiling   decimal.Decimal
}

func NewCashCarryScanner(repo *marketdata.Repository, store *kv.Store, cfg CashCarryConfig, log zerolog.Logger) *CashCarryScanner {
	if cfg.FundingIntervals <= 0 {
		cfg.FundingIntervals = 3
	}
	return &CashCarryScanner{
		repo: repo, store: store,
		log:                 log.With().Str("component", "cashcarry-scanner").Str("exchange", cfg.Exchange).Logger(),
		exchange:            cfg.Exchange,
		symbols:             cfg.Symbols,
		spotFee:             cfg.SpotFee,
		perpFee:             cfg.PerpFee,
		fundingIntervals:    cfg.FundingIntervals,
		minProfit:           cfg.MinProfitRate,
		maxResults:          cfg.MaxResults,
		interval:            cfg.Interval,
		fundingSpikeCeiling: cfg.FundingSpikeCeiling,
		stopChan:            make(chan struct{}),
	}
}

func (s *CashCarryScanner) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.ticker = time.NewTicker(s.interval)
		s.scanOnce(ctx)
		go s.run(ctx)
	})
}

func (s *CashCarryScanner) Stop() {
	s.stopOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopChan)
	})
}

func (s *CashCarryScanner) run(ctx context.Context) {
	for {
		select {
		case <-s.ticker.C:
			s.scanOnce(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *CashCarryScanner) scanOnce(ctx context.Context) {
	opportunities := make([]domain.CashCarryOpportunity, 0, len(s.symbols)*2)
	for _, symbol := range s.symbols {
		opps, err := s.evaluateSymbol(ctx, symbol)
		if err != nil {
			s.log.Debug().Err(err).Str("symbol", symbol).Msg("skip symbol")
			continue
		}
		opportunities = append(opportunities, opps...)
	}
	s.publish(ctx, opportunities)
}

// evaluateSymbol computes the profit rate for both long-spot/short-perp
// and short-spot/long-perp directions, guarding against missing or
// outlier funding (spec.md section 4.D).
func (s *CashCarryScanner) evaluateSymbol(ctx context.Context, symbol string) ([]domain.CashCarryOpportunity, error) {
	spot, okSpot, err := s.repo.GetBestBidAsk(ctx, s.exchange, symbol, domain.AccountSpot)
	if err != nil {
		return nil, err
	}
	perp, okPerp, err := s.repo.GetBestBidAsk(ctx, s.exchange, symbol, domain.AccountPerp)
	if err != nil {
		return nil, err
	}
	if !okSpot || !okPerp || !spot.Mid().IsPositive() || !perp.Mid().IsPositive() {
		return nil, nil
	}

	funding, okFunding, err := s.repo.GetFunding(ctx, s.exchange, symbol)
	if err != nil {
		return nil, err
	}
	fundingRate := decimal.Zero
	if okFunding {
		if !s.fundingSpikeCeiling.IsZero() && !funding.WithinSpikeCeiling(s.fundingSpikeCeiling) {
			return nil, nil
		}
		fundingRate = funding.Rate
	}

	spotPrice := spot.Mid()
	perpPrice := perp.Mid()
	basisRate, _ := perpPrice.Sub(spotPrice).Div(spotPrice).Float64()
	fundingContribution, _ := fundingRate.Mul(decimal.NewFromInt(int64(s.fundingIntervals))).Float64()
	roundTripFee, _ := s.spotFee.Add(s.perpFee).Float64()

	now := time.Now()
	longSpotShortPerp := basisRate + fundingContribution - roundTripFee
	shortSpotLongPerp := -basisRate - fundingContribution - roundTripFee

	var out []domain.CashCarryOpportunity
	if longSpotShortPerp >= s.minProfit {
		out = append(out, domain.CashCarryOpportunity{
			Exchange: s.exchange, Symbol: symbol, Direction: domain.DirectionLongSpotShortPerp,
			SpotPrice: spotPrice, PerpPrice: perpPrice, BasisRate: basisRate,
			FundingContribution: fundingContribution, ProfitRate: longSpotShortPerp, CreatedAt: now,
		})
	}
	if shortSpotLongPerp >= s.minProfit {
		out = append(out, domain.CashCarryOpportunity{
			Exchange: s.exchange, Symbol: symbol, Direction: domain.DirectionShortSpotLongPerp,
			SpotPrice: spotPrice, PerpPrice: perpPrice, BasisRate: -basisRate,
			FundingContribution: -fundingContribution, ProfitRate: shortSpotLongPerp, CreatedAt: now,
		})
	}
	return out, nil
}

func (s *CashCarryScanner) publish(ctx context.Context, opportunities []domain.CashCarryOpportunity) {
	if s.maxResults > 0 && len(opportunities) > s.maxResults {
		for i := 1; i < len(opportunities); i++ {
			for j := i; j > 0 && opportunities[j].ProfitRate > opportunities[j-1].ProfitRate; j-- {
				opportunities[j], opportunities[j-1] = opportunities[j-1], opportunities[j]
			}
		}
		opportunities = opportunities[:s.maxResults]
	}

	members := make([]kv.ZMember, 0, len(opportunities))
	for _, o := range opportunities {
		payload, err := marshalCashCarry(o)
		if err != nil {
			continue
		}
		members = append(members, kv.ZMember{Score: o.ProfitRate, Member: string(payload)})
	}
	if err := s.store.ReplaceSortedSet(ctx, kv.CashCarryOpportunitiesKey, members, kv.OpportunityTTL); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish cashcarry opportunities")
		return
	}
	if err := s.store.HSetWithTTL(ctx, kv.MetricsKey("cashcarry_scanner"), map[string]any{
		"opportunity_count": len(opportunities),
		"scanned_at":        time.Now().UnixMilli(),
	}, kv.OpportunityTTL*6); err != nil {
		s.log.Debug().Err(err).Msg("failed to publish scanner metrics")
	}
}
