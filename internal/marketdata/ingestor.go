package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/inarbit/internal/domain"
	"github.com/aristath/inarbit/internal/exchange"
	"github.com/aristath/inarbit/internal/kv"
	"github.com/aristath/inarbit/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Ingestor is the long-running task that polls tickers, top-of-book, and
// funding from every configured exchange, normalizing and TTL-writing
// snapshots into the KV store (spec.md section 4.B). It only polls; the
// optional streaming mode is not implemented. It never aborts its loop on
// a single symbol's failure - each fetch failure is logged and skipped.
type Ingestor struct {
	registry    *exchange.Registry
	store       *kv.Store
	log         zerolog.Logger
	symbols     map[string][]string // exchange -> spot symbols to poll
	perpSymbols map[string][]string // exchange -> perp symbols to poll
	concurrency int
	interval    time.Duration

	ticker   *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once
	startOnce sync.Once
}

// Config configures one Ingestor instance.
type Config struct {
	Symbols     map[string][]string
	PerpSymbols map[string][]string
	Concurrency int
	Interval    time.Duration
}

func NewIngestor(registry *exchange.Registry, store *kv.Store, cfg Config, log zerolog.Logger) *Ingestor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Ingestor{
		registry:    registry,
		store:       store,
		log:         log.With().Str("component", "marketdata-ingestor").Logger(),
		symbols:     cfg.Symbols,
		perpSymbols: cfg.PerpSymbols,
		concurrency: cfg.Concurrency,
		interval:    cfg.Interval,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the periodic polling loop. Safe to call multiple times.
func (ing *Ingestor) Start(ctx context.Context) {
	ing.startOnce.Do(func() {
		ing.ticker = time.NewTicker(ing.interval)
		ing.pollOnce(ctx)
		go ing.run(ctx)
	})
}

// Stop halts the polling loop. Safe to call multiple times.
func (ing *Ingestor) Stop() {
	ing.stopOnce.Do(func() {
		if ing.ticker != nil {
			ing.ticker.Stop()
		}
		close(ing.stopChan)
	})
}

func (ing *Ingestor) run(ctx context.Context) {
	for {
		select {
		case <-ing.ticker.C:
			ing.pollOnce(ctx)
		case <-ing.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (ing *Ingestor) pollOnce(ctx context.Context) {
	timer := utils.NewTimer("marketdata-poll", ing.log)
	defer timer.Stop()

	sem := make(chan struct{}, ing.concurrency)
	var wg sync.WaitGroup

	for exName, symbols := range ing.symbols {
		for _, symbol := range symbols {
			wg.Add(1)
			sem <- struct{}{}
			go func(exName, symbol string) {
				defer wg.Done()
				defer func() { <-sem }()
				ing.ingestSpot(ctx, exName, symbol)
			}(exName, symbol)
		}
	}
	for exName, symbols := range ing.perpSymbols {
		for _, symbol := range symbols {
			wg.Add(1)
			sem <- struct{}{}
			go func(exName, symbol string) {
				defer wg.Done()
				defer func() { <-sem }()
				ing.ingestPerp(ctx, exName, symbol)
			}(exName, symbol)
		}
	}
	wg.Wait()

	for exName := range ing.symbols {
		ing.store.Publish(ctx, "marketdata:poll-complete", []byte(exName))
	}
}

func (ing *Ingestor) ingestSpot(ctx context.Context, exName, symbol string) {
	adapter, err := ing.registry.Get(exName)
	if err != nil {
		ing.log.Warn().Err(err).Str("exchange", exName).Msg("no adapter for exchange")
		return
	}

	ticker, err := adapter.FetchTicker(ctx, domain.AccountSpot, symbol)
	if err != nil {
		ing.log.Warn().Err(err).Str("exchange", exName).Str("symbol", symbol).Msg("fetch ticker failed")
		return
	}
	now := NowMs(time.Now())
	fields := kv.TickerFields(ticker.Bid, ticker.Ask, ticker.Last, ticker.QuoteVolume, now, ticker.ExchangeTimestampMs)
	if err := ing.store.HSetWithTTL(ctx, kv.TickerKey(exName, symbol), fields, kv.TickerTTL); err != nil {
		ing.log.Warn().Err(err).Str("exchange", exName).Str("symbol", symbol).Msg("write ticker failed")
	}

	tob, err := adapter.FetchOrderBook(ctx, domain.AccountSpot, symbol)
	if err != nil {
		ing.log.Debug().Err(err).Str("exchange", exName).Str("symbol", symbol).Msg("fetch order book failed")
	} else {
		ing.writeOrderBook(ctx, exName, symbol, tob, now)
	}

	if err := ing.store.SAdd(ctx, kv.SymbolsKey("spot", exName), symbol); err != nil {
		ing.log.Debug().Err(err).Msg("symbol index update failed")
	}
}

func (ing *Ingestor) ingestPerp(ctx context.Context, exName, symbol string) {
	adapter, err := ing.registry.Get(exName)
	if err != nil {
		ing.log.Warn().Err(err).Str("exchange", exName).Msg("no adapter for exchange")
		return
	}

	ticker, err := adapter.FetchTicker(ctx, domain.AccountPerp, symbol)
	if err != nil {
		ing.log.Warn().Err(err).Str("exchange", exName).Str("symbol", symbol).Msg("fetch perp ticker failed")
		return
	}
	now := NowMs(time.Now())
	fields := kv.TickerFields(ticker.Bid, ticker.Ask, ticker.Last, ticker.QuoteVolume, now, ticker.ExchangeTimestampMs)
	if err := ing.store.HSetWithTTL(ctx, kv.TickerFuturesKey(exName, symbol), fields, kv.TickerTTL); err != nil {
		ing.log.Warn().Err(err).Msg("write perp ticker failed")
	}

	funding, err := adapter.FetchFundingRate(ctx, symbol)
	if err != nil {
		ing.log.Debug().Err(err).Str("exchange", exName).Str("symbol", symbol).Msg("fetch funding failed")
	} else {
		ffields := kv.FundingFields(funding.Rate, funding.NextFundingTimeMs, now, funding.Mark, funding.Index)
		if err := ing.store.HSetWithTTL(ctx, kv.FundingKey(exName, symbol), ffields, kv.FundingTTL); err != nil {
			ing.log.Warn().Err(err).Msg("write funding failed")
		}
	}

	if err := ing.store.SAdd(ctx, kv.SymbolsKey("perp", exName), symbol); err != nil {
		ing.log.Debug().Err(err).Msg("symbol index update failed")
	}
}

func (ing *Ingestor) writeOrderBook(ctx context.Context, exName, symbol string, tob exchange.OrderBookLevel1, now int64) {
	bidMember := kv.OrderBookMember(tob.BidPrice, tob.BidSize)
	askMember := kv.OrderBookMember(tob.AskPrice, tob.AskSize)

	if err := ing.store.ReplaceSortedSet(ctx, kv.OrderBookBidsKey(exName, symbol), []kv.ZMember{{Score: scoreOf(tob.BidPrice), Member: bidMember}}, kv.OrderBookTTL); err != nil {
		ing.log.Warn().Err(err).Msg("write order book bids failed")
	}
	if err := ing.store.ReplaceSortedSet(ctx, kv.OrderBookAsksKey(exName, symbol), []kv.ZMember{{Score: scoreOf(tob.AskPrice), Member: askMember}}, kv.OrderBookTTL); err != nil {
		ing.log.Warn().Err(err).Msg("write order book asks failed")
	}
	if err := ing.store.HSetWithTTL(ctx, kv.OrderBookTSKey(exName, symbol), map[string]any{"timestamp": now}, kv.OrderBookTTL); err != nil {
		ing.log.Warn().Err(err).Msg("write order book timestamp failed")
	}
}

// scoreOf converts a price decimal into the float64 score a Redis sorted
// set member is ranked by; precision loss here affects only ordering,
// never the stored member string which keeps full decimal precision.
func scoreOf(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
