package di

import (
	"context"

	"github.com/aristath/inarbit/internal/config"
	"github.com/aristath/inarbit/internal/domain"
	"github.com/aristath/inarbit/internal/exchange"
	"github.com/aristath/inarbit/internal/ledger"
	"github.com/aristath/inarbit/internal/marketdata"
	"github.com/aristath/inarbit/internal/oms"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// InitializeRepositories builds the market-data read path, the two
// mode-scoped OMS repositories and their ledger projectors, and the
// exchange registry (one REST adapter per configured venue plus the
// always-present paper-trading simulator, spec.md section 9's paper/live
// purity split).
func InitializeRepositories(c *Container, cfg *config.Config, log zerolog.Logger) error {
	c.MarketData = marketdata.NewRepository(c.KV, log)

	c.PaperRepo = oms.NewRepository(c.OrdersDB.Conn(), domain.ModePaper)
	c.LiveRepo = oms.NewRepository(c.OrdersDB.Conn(), domain.ModeLive)

	c.PaperLedger = ledger.NewProjector(domain.ModePaper, cfg.SimulationQuote)
	c.LiveLedger = ledger.NewProjector(domain.ModeLive, cfg.SimulationQuote)

	c.SimAdapter = exchange.NewSimExchange("paper", paperPriceLookup(c.MarketData, cfg.Exchange), decimal.Zero)

	live := exchange.NewRESTAdapter(exchange.RESTAdapterConfig{
		Name:        cfg.Exchange,
		BaseURL:     cfg.ExchangeBaseURL,
		APIKey:      cfg.ExchangeAPIKey,
		APISecret:   cfg.ExchangeAPISecret,
		MinInterval: cfg.ExchangeMinInterval,
	}, log)
	c.Exchanges = exchange.NewRegistry(live)

	log.Info().Msg("repositories initialized")
	return nil
}

// paperPriceLookup adapts the market-data repository's mid-price read
// into the PriceLookup shape SimExchange needs, so paper fills track the
// real book instead of a fixed price.
func paperPriceLookup(repo *marketdata.Repository, exchangeName string) exchange.PriceLookup {
	return func(accountType domain.AccountType, symbol string) (decimal.Decimal, error) {
		price, _, err := repo.GetMidPrice(context.Background(), exchangeName, symbol, accountType)
		return price, err
	}
}
