package decision

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aristath/inarbit/internal/domain"
	"github.com/aristath/inarbit/internal/events"
	"github.com/aristath/inarbit/internal/kv"
	"github.com/aristath/inarbit/internal/marketdata"
	"github.com/aristath/inarbit/internal/regime"
	"github.com/rs/zerolog"
)

// Config configures one Service instance.
type Config struct {
	Exchange            string
	Interval            time.Duration
	AutoOverlayInterval time.Duration
	RoutingCacheTTL     time.Duration
	Constraints         domain.RiskConstraints
	MaxCandidateSymbols int // top-N symbols across both streams fed to the overlay/regime sampler
}

// Service is the periodic decision scan (spec.md section 4.F).
type Service struct {
	store      *kv.Store
	repo       *marketdata.Repository
	classifier *regime.Classifier
	routing    *routingCache
	events     *events.Manager
	log        zerolog.Logger
	cfg        Config
	exchange   string

	mu            sync.Mutex
	lastOverlay   *domain.AutoOverlay
	lastOverlayAt time.Time
	lastRegime    domain.RegimeLabel

	ticker    *time.Ticker
	stopChan  chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
}

func NewService(store *kv.Store, repo *marketdata.Repository, classifier *regime.Classifier, routingProvider RoutingProvider, evts *events.Manager, cfg Config, log zerolog.Logger) *Service {
	if cfg.MaxCandidateSymbols <= 0 {
		cfg.MaxCandidateSymbols = 30
	}
	return &Service{
		store:      store,
		repo:       repo,
		classifier: classifier,
		routing:    newRoutingCache(routingProvider, cfg.RoutingCacheTTL),
		events:     evts,
		log:        log.With().Str("component", "decision-service").Str("exchange", cfg.Exchange).Logger(),
		cfg:        cfg,
		exchange:   cfg.Exchange,
		stopChan:   make(chan struct{}),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.ticker = time.NewTicker(s.cfg.Interval)
		s.scanOnce(ctx)
		go s.run(ctx)
	})
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopChan)
	})
}

func (s *Service) run(ctx context.Context) {
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

func (s *Service) scanOnce(ctx context.Context) {
	triangular, err := s.store.ZRevRangeWithScores(ctx, kv.TriangularOpportunitiesKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read triangular opportunities")
		return
	}
	cashcarry, err := s.store.ZRevRangeWithScores(ctx, kv.CashCarryOpportunitiesKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read cashcarry opportunities")
		return
	}

	opportunities := make([]domain.Opportunity, 0, len(triangular)+len(cashcarry))
	for _, z := range triangular {
		if opp, ok := decodeTriangular(z.Member); ok {
			opportunities = append(opportunities, opp)
		}
	}
	for _, z := range cashcarry {
		if opp, ok := decodeCashCarry(z.Member); ok {
			opportunities = append(opportunities, opp)
		}
	}

	candidateSymbols := candidateSymbolSet(opportunities, s.cfg.MaxCandidateSymbols)
	overlay := s.refreshAutoOverlay(ctx, candidateSymbols)
	effective := domain.Effective(s.cfg.Constraints, overlay)
	s.emitRegimeChange(effective.RegimeLabel)

	decisions := make([]domain.Decision, 0, len(opportunities))
	for _, opp := range opportunities {
		stats := statsFor(ctx, s.repo, opp.Exchange(), opp.PrimarySymbol())
		decision, ok := s.evaluate(ctx, opp, effective, stats)
		if !ok {
			continue
		}
		routingKey := routingKeyFor(opp.Kind)
		routing, err := s.routing.get(ctx, routingKey)
		if err != nil {
			routing = DefaultStrategyRouting(routingKey)
		}
		decision, ok = applyRouting(decision, routing)
		if !ok {
			continue
		}
		decisions = append(decisions, decision)
	}

	decisions = dedupeByBaseKeepLowestRisk(decisions)
	sortByRiskThenProfit(decisions)
	if effective.MaxPositions > 0 && len(decisions) > effective.MaxPositions {
		decisions = decisions[:effective.MaxPositions]
	}

	s.publish(ctx, decisions, overlay, effective)
}

// emitRegimeChange emits a RegimeChanged event the first time the
// effective regime label differs from the last scan's.
func (s *Service) emitRegimeChange(label domain.RegimeLabel) {
	s.mu.Lock()
	changed := s.lastRegime != "" && s.lastRegime != label
	previous := s.lastRegime
	s.lastRegime = label
	s.mu.Unlock()

	if changed && s.events != nil {
		s.events.Emit(events.RegimeChanged, "decision", map[string]interface{}{
			"from": string(previous),
			"to":   string(label),
		})
	}
}

func routingKeyFor(kind domain.StrategyKind) string {
	return kind.RoutingStrategyKey()
}

func candidateSymbolSet(opportunities []domain.Opportunity, max int) []string {
	seen := make(map[string]bool)
	var symbols []string
	for _, opp := range opportunities {
		for _, symbol := range opp.Symbols() {
			if !seen[symbol] {
				seen[symbol] = true
				symbols = append(symbols, symbol)
				if len(symbols) >= max {
					return symbols
				}
			}
		}
	}
	return symbols
}

func dedupeByBaseKeepLowestRisk(decisions []domain.Decision) []domain.Decision {
	best := make(map[string]domain.Decision)
	for _, d := range decisions {
		base := d.Opportunity.Base()
		if existing, ok := best[base]; !ok || d.RiskScore < existing.RiskScore {
			best[base] = d
		}
	}
	out := make([]domain.Decision, 0, len(best))
	for _, d := range best {
		out = append(out, d)
	}
	return out
}

func sortByRiskThenProfit(decisions []domain.Decision) {
	for i := 1; i < len(decisions); i++ {
		for j := i; j > 0; j-- {
			a, b := decisions[j], decisions[j-1]
			if a.RiskScore < b.RiskScore || (a.RiskScore == b.RiskScore && a.ExpectedProfitRate > b.ExpectedProfitRate) {
				decisions[j], decisions[j-1] = decisions[j-1], decisions[j]
			} else {
				break
			}
		}
	}
}

func (s *Service) publish(ctx context.Context, decisions []domain.Decision, overlay domain.AutoOverlay, effective domain.EffectiveConstraints) {
	members := make([]kv.ZMember, 0, len(decisions))
	for _, d := range decisions {
		w := wireDecision{
			Strategy:           string(d.Strategy),
			Exchange:           d.Exchange,
			MainSymbol:         d.MainSymbol,
			Direction:          d.Direction,
			ExpectedProfitRate: d.ExpectedProfitRate,
			EstimatedExposure:  d.EstimatedExposure,
			RiskScore:          d.RiskScore,
			Confidence:         d.Confidence,
			RegimeLabel:        string(d.RegimeLabel),
			RoutingWeight:      d.RoutingWeight,
			Timestamp:          d.Timestamp.UnixMilli(),
		}
		if tri := d.Opportunity.Triangular; tri != nil {
			w.TrianglePath = tri.Path
			w.TriangleSymbols = tri.Symbols
		}
		if cc := d.Opportunity.CashCarry; cc != nil {
			w.CashCarrySymbol = cc.Symbol
			w.CashCarryDirection = string(cc.Direction)
			w.CashCarrySpotPrice = cc.SpotPrice.String()
			w.CashCarryPerpPrice = cc.PerpPrice.String()
		}
		payload, err := json.Marshal(w)
		if err != nil {
			continue
		}
		members = append(members, kv.ZMember{Score: d.RiskScore, Member: string(payload)})
	}
	if err := s.store.ReplaceSortedSet(ctx, kv.DecisionsLatestKey, members, kv.DecisionTTL); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish decisions")
	}
	if s.events != nil && len(decisions) > 0 {
		s.events.Emit(events.DecisionEmitted, "decision", map[string]interface{}{
			"count":    len(decisions),
			"exchange": s.exchange,
		})
	}

	if overlayPayload, err := json.Marshal(overlay); err == nil {
		_ = s.store.SetJSONWithTTL(ctx, kv.ConstraintsAutoKey, overlayPayload, kv.DecisionTTL*6)
	}
	if effectivePayload, err := json.Marshal(effective); err == nil {
		_ = s.store.SetJSONWithTTL(ctx, kv.ConstraintsEffectiveKey, effectivePayload, kv.DecisionTTL*6)
	}
}

// wireDecision is the decisions:latest wire shape. It carries just enough
// of the originating Opportunity (triangle path/symbols, or cash-carry
// symbol/direction/prices) for a downstream reader - the OMS - to
// reconstruct a dispatchable domain.Opportunity without re-scanning.
type wireDecision struct {
	Strategy           string  `json:"strategy"`
	Exchange           string  `json:"exchange"`
	MainSymbol         string  `json:"main_symbol"`
	Direction          string  `json:"direction"`
	ExpectedProfitRate float64 `json:"expected_profit_rate"`
	EstimatedExposure  float64 `json:"estimated_exposure"`
	RiskScore          float64 `json:"risk_score"`
	Confidence         float64 `json:"confidence"`
	RegimeLabel        string  `json:"regime_label"`
	RoutingWeight      float64 `json:"routing_weight"`
	Timestamp          int64   `json:"timestamp"`

	TrianglePath    []string `json:"triangle_path,omitempty"`
	TriangleSymbols []string `json:"triangle_symbols,omitempty"`

	CashCarrySymbol    string `json:"cashcarry_symbol,omitempty"`
	CashCarryDirection string `json:"cashcarry_direction,omitempty"`
	CashCarrySpotPrice string `json:"cashcarry_spot_price,omitempty"`
	CashCarryPerpPrice string `json:"cashcarry_perp_price,omitempty"`
}
