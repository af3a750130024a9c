package di

import (
	"github.com/aristath/inarbit/internal/config"
	"github.com/aristath/inarbit/internal/decision"
	"github.com/aristath/inarbit/internal/domain"
	"github.com/aristath/inarbit/internal/events"
	"github.com/aristath/inarbit/internal/marketdata"
	"github.com/aristath/inarbit/internal/oms"
	"github.com/aristath/inarbit/internal/regime"
	"github.com/aristath/inarbit/internal/scanners"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// InitializeServices builds the ingestor, the two opportunity scanners,
// the regime classifier, the decision service and the OMS - every
// component SPEC_FULL.md names past the storage/repository layer.
func InitializeServices(c *Container, cfg *config.Config, log zerolog.Logger) error {
	c.Events = events.NewManager(log)

	c.Ingestor = marketdata.NewIngestor(c.Exchanges, c.KV, marketdata.Config{
		Symbols:     map[string][]string{cfg.Exchange: cfg.Symbols},
		PerpSymbols: map[string][]string{cfg.Exchange: cfg.PerpSymbols},
		Concurrency: cfg.MarketDataFetchConcurrency,
		Interval:    cfg.MarketDataPollInterval,
	}, log)

	c.Triangular = scanners.NewTriangularScanner(c.MarketData, c.KV, scanners.Config{
		Exchange:      cfg.Exchange,
		Symbols:       cfg.Symbols,
		Concurrency:   cfg.TriangularConcurrency,
		TakerFee:      decimal.NewFromFloat(cfg.TriangularTakerFee),
		MinProfitRate: cfg.TriangularMinProfitRate,
		MaxResults:    cfg.TriangularMaxOpportunities,
		Interval:      cfg.TriangularRefreshInterval,
	}, log)

	c.CashCarry = scanners.NewCashCarryScanner(c.MarketData, c.KV, scanners.CashCarryConfig{
		Exchange:          cfg.Exchange,
		Symbols:           cfg.PerpSymbols,
		SpotFee:           decimal.NewFromFloat(cfg.CashCarrySpotFee),
		PerpFee:           decimal.NewFromFloat(cfg.CashCarryPerpFee),
		FundingIntervals:  cfg.CashCarryFundingIntervals,
		MinProfitRate:     cfg.CashCarryMinProfitRate,
		MaxResults:        cfg.CashCarryMaxOpportunities,
		Interval:          cfg.CashCarryRefreshInterval,
	}, log)

	c.Regime = regime.NewClassifier(c.MarketData, c.KV, regime.Config{
		Exchange: cfg.Exchange,
		Thresholds: regime.Thresholds{
			StressSpread:   cfg.MarketRegimeStressSpread,
			StressVol:      cfg.MarketRegimeStressVol,
			TrendThreshold: cfg.MarketRegimeTrendThreshold,
			HighVol:        cfg.MarketRegimeHighVol,
			MaxDataAgeMs:   cfg.MarketRegimeMaxDataAge.Milliseconds(),
			MinPoints:      cfg.MarketRegimeMinPoints,
		},
		RingCapacity:       cfg.MarketRegimeWindow,
		SampleInterval:     cfg.MarketRegimeSampleInterval,
		MinRefreshInterval: cfg.MarketRegimeSampleInterval,
	}, log)

	c.Decision = decision.NewService(c.KV, c.MarketData, c.Regime, newKVRoutingProvider(c.KV), c.Events, decision.Config{
		Exchange:            cfg.Exchange,
		Interval:            cfg.DecisionRefreshInterval,
		AutoOverlayInterval: cfg.DecisionAutoOverlayInterval,
		RoutingCacheTTL:     cfg.DecisionRoutingCacheTTL,
		Constraints:         domain.DefaultRiskConstraints(),
	}, log)

	c.OMS = oms.NewService(
		c.KV,
		c.MarketData,
		c.Exchanges,
		c.SimAdapter,
		c.PaperRepo, c.LiveRepo,
		c.PaperLedger, c.LiveLedger,
		nil, // UserSymbolProvider: AllowAllSymbols default
		nil, // RiskGate: no process-wide gate wired yet
		c.Events,
		oms.Config{
			EnableLive:        cfg.EnableLiveOMS,
			PaperFeeRate:      decimal.NewFromFloat(cfg.TriangularTakerFee),
			SimulationQuote:   cfg.SimulationQuote,
			PostExecMaxRounds: cfg.OMSPostExecPollMaxRounds,
			PostExecSleep:     cfg.OMSPostExecPollSleep,
			IdempotencyTTL:    cfg.OMSDedupeTTL,
		},
		log,
	)

	log.Info().Msg("services initialized")
	return nil
}
