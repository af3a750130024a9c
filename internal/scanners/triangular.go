// Package scanners enumerates arbitrage opportunities from the market
// data repository and publishes them to the KV store's opportunity
// sorted sets (spec.md section 4.C/4.D).
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

// TriangularScanner periodically enumerates 3-cycles in the directed
// currency graph implied by every spot symbol's best bid/ask, computing
// a fee-adjusted profit rate for each cycle and replacing the
// opportunities:triangular sorted set atomically (spec.md section 4.C).
type TriangularScanner struct {
	repo        *marketdata.Repository
	store       *kv.Store
	log         zerolog.Logger
	exchange    string
	symbols     []string
	concurrency int
	takerFee    decimal.Decimal
	minProfit   float64
	maxResults  int
	interval    time.Duration

	ticker    *time.Ticker
	stopChan  chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
}

// Config configures one TriangularScanner instance.
type Config struct {
	Exchange    string
	Symbols     []string
	Concurrency int
	TakerFee    decimal.Decimal
	MinProfitRate float64
	MaxResults    int
	Interval      time.Duration
}

func NewTriangularScanner(repo *marketdata.Repository, store *kv.Store, cfg Config, log zerolog.Logger) *TriangularScanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &TriangularScanner{
		repo: repo, store: store,
		log:         log.With().Str("component", "triangular-scanner").Str("exchange", cfg.Exchange).Logger(),
		exchange:    cfg.Exchange,
		symbols:     cfg.Symbols,
		concurrency: cfg.Concurrency,
		takerFee:    cfg.TakerFee,
		minProfit:   cfg.MinProfitRate,
		maxResults:  cfg.MaxResults,
		interval:    cfg.Interval,
		stopChan:    make(chan struct{}),
	}
}

func (s *TriangularScanner) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.ticker = time.NewTicker(s.interval)
		s.scanOnce(ctx)
		go s.run(ctx)
	})
}

func (s *TriangularScanner) Stop() {
	s.stopOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopChan)
	})
}

func (s *TriangularScanner) run(ctx context.Context) {
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

// edge is one directed conversion: trading 1 unit of From yields Rate
// units of To after crossing the relevant side of the book.
type edge struct {
	from, to string
	rate     decimal.Decimal
}

func (s *TriangularScanner) scanOnce(ctx context.Context) {
	graph, err := s.buildGraph(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to build currency graph")
		return
	}

	cycles := enumerateTriangles(graph)
	opportunities := make([]domain.TriangularOpportunity, 0, len(cycles))
	now := time.Now()
	for _, cycle := range cycles {
		rate := decimal.NewFromInt(1)
		for _, leg := range cycle {
			rate = rate.Mul(leg.rate).Mul(decimal.NewFromInt(1).Sub(s.takerFee))
		}
		profitRate, _ := rate.Sub(decimal.NewFromInt(1)).Float64()
		if profitRate < s.minProfit {
			continue
		}
		path := make([]string, 0, len(cycle)+1)
		symbols := make([]string, 0, len(cycle))
		path = append(path, cycle[0].from)
		for _, leg := range cycle {
			path = append(path, leg.to)
			symbols = append(symbols, leg.from+leg.to)
		}
		opportunities = append(opportunities, domain.TriangularOpportunity{
			Exchange:   s.exchange,
			Path:       path,
			Symbols:    symbols,
			ProfitRate: profitRate,
			CreatedAt:  now,
		})
	}

	s.publish(ctx, opportunities)
}

func (s *TriangularScanner) buildGraph(ctx context.Context) (map[string][]edge, error) {
	graph := make(map[string][]edge)
	for _, symbol := range s.symbols {
		base, quote := domain.BaseCurrency(symbol), domain.QuoteCurrency(symbol)
		bba, ok, err := s.repo.GetBestBidAsk(ctx, s.exchange, symbol, domain.AccountSpot)
		if err != nil {
			return nil, err
		}
		if !ok || !bba.Bid.IsPositive() || !bba.Ask.IsPositive() {
			continue
		}
		// Sell base for quote at the bid.
		graph[base] = append(graph[base], edge{from: base, to: quote, rate: bba.Bid})
		// Buy base with quote at the ask (1/ask units of base per unit of quote).
		graph[quote] = append(graph[quote], edge{from: quote, to: base, rate: decimal.NewFromInt(1).Div(bba.Ask)})
	}
	return graph, nil
}

// enumerateTriangles finds every directed 3-cycle A->B->C->A in graph,
// the bound spec.md section 4.C fixes the search to (triangular paths
// only, no longer cycles).
func enumerateTriangles(graph map[string][]edge) [][]edge {
	var cycles [][]edge
	for a, aEdges := range graph {
		for _, ab := range aEdges {
			b := ab.to
			if b == a {
				continue
			}
			for _, bc := range graph[b] {
				c := bc.to
				if c == a || c == b {
					continue
				}
				for _, ca := range graph[c] {
					if ca.to == a {
						cycles = append(cycles, []edge{ab, bc, ca})
					}
				}
			}
		}
	}
	return cycles
}

func (s *TriangularScanner) publish(ctx context.Context, opportunities []domain.TriangularOpportunity) {
	if s.maxResults > 0 && len(opportunities) > s.maxResults {
		sortOpportunitiesByProfitDesc(opportunities)
		opportunities = opportunities[:s.maxResults]
	}

	members := make([]kv.ZMember, 0, len(opportunities))
	for _, o := range opportunities {
		payload, err := marshalTriangular(o)
		if err != nil {
			continue
		}
		members = append(members, kv.ZMember{Score: o.ProfitRate, Member: string(payload)})
	}
	if err := s.store.ReplaceSortedSet(ctx, kv.TriangularOpportunitiesKey, members, kv.OpportunityTTL); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish triangular opportunities")
		return
	}
	if err := s.store.HSetWithTTL(ctx, kv.MetricsKey("triangular_scanner"), map[string]any{
		"opportunity_count": len(opportunities),
		"scanned_at":        time.Now().UnixMilli(),
	}, kv.OpportunityTTL*6); err != nil {
		s.log.Debug().Err(err).Msg("failed to publish scanner metrics")
	}
}

func sortOpportunitiesByProfitDesc(o []domain.TriangularOpportunity) {
	for i := 1; i < len(o); i++ {
		for j := i; j > 0 && o[j].ProfitRate > o[j-1].ProfitRate; j-- {
			o[j], o[j-1] = o[j-1], o[j]
		}
	}
}
