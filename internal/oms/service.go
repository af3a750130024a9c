package oms

import (
	"context"
	"time"

	"github.com/aristath/inarbit/internal/domain"
	"github.com/aristath/inarbit/internal/events"
	"github.com/aristath/inarbit/internal/exchange"
	"github.com/aristath/inarbit/internal/kv"
	"github.com/aristath/inarbit/internal/ledger"
	"github.com/aristath/inarbit/internal/marketdata"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// UserSymbolProvider resolves a user's enabled trading symbols (spec.md
// section 4.G.3's "symbols all in the user's enabled set" filter). A nil
// map from EnabledSymbols means "allow every symbol".
type UserSymbolProvider interface {
	EnabledSymbols(ctx context.Context, userID string) (map[string]bool, error)
}

// AllowAllSymbols is the permissive default UserSymbolProvider.
type AllowAllSymbols struct{}

func (AllowAllSymbols) EnabledSymbols(ctx context.Context, userID string) (map[string]bool, error) {
	return nil, nil
}

// RiskGate is the optional process-wide risk gate execute_latest may run
// before dispatching an opportunity (spec.md section 4.G.4).
type RiskGate interface {
	Allow(ctx context.Context, userID string, decision domain.Decision) error
}

// Config configures one Service instance.
type Config struct {
	EnableLive       bool // process-level live-trading enablement flag (spec.md section 9)
	PaperFeeRate     decimal.Decimal
	SimulationQuote  string // e.g. "USDT"; drives the paper balance side effect
	DefaultLimit     int
	MaxLimitFloor    int // spec.md section 4.G.1: "max(50, limit)"
	PostExecMaxRounds int
	PostExecSleep    time.Duration
	IdempotencyTTL   time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 10
	}
	if c.MaxLimitFloor <= 0 {
		c.MaxLimitFloor = 50
	}
	if c.PostExecMaxRounds <= 0 {
		c.PostExecMaxRounds = 3
	}
	if c.PostExecSleep <= 0 {
		c.PostExecSleep = 500 * time.Millisecond
	}
	if c.IdempotencyTTL <= 0 {
		c.IdempotencyTTL = 10 * time.Minute
	}
	return c
}

// modeContext bundles the per-trading-mode collaborators a given call
// needs, so every operation can stay mode-parametric without ever
// crossing table families (spec.md section 9's paper/live purity note).
type modeContext struct {
	mode      domain.TradingMode
	repo      *Repository
	projector *ledger.Projector
	adapter   exchange.Adapter
}

// Service implements the OMS operations of spec.md section 4.G.
type Service struct {
	store      *kv.Store
	marketdata *marketdata.Repository
	exchanges  *exchange.Registry
	sim        exchange.Adapter
	symbols    UserSymbolProvider
	riskGate   RiskGate
	events     *events.Manager

	paperRepo *Repository
	liveRepo  *Repository
	paperLedger *ledger.Projector
	liveLedger  *ledger.Projector

	log zerolog.Logger
	cfg Config
}

func NewService(
	store *kv.Store,
	md *marketdata.Repository,
	exchanges *exchange.Registry,
	sim exchange.Adapter,
	paperRepo, liveRepo *Repository,
	paperLedger, liveLedger *ledger.Projector,
	symbols UserSymbolProvider,
	riskGate RiskGate,
	evts *events.Manager,
	cfg Config,
	log zerolog.Logger,
) *Service {
	if symbols == nil {
		symbols = AllowAllSymbols{}
	}
	return &Service{
		store:       store,
		marketdata:  md,
		exchanges:   exchanges,
		sim:         sim,
		paperRepo:   paperRepo,
		liveRepo:    liveRepo,
		paperLedger: paperLedger,
		liveLedger:  liveLedger,
		symbols:     symbols,
		riskGate:    riskGate,
		events:      evts,
		cfg:         cfg.withDefaults(),
		log:         log.With().Str("component", "oms").Logger(),
	}
}

// repoFor returns the mode-scoped repository without resolving an
// exchange adapter, used when an order/plan must be loaded before its
// exchange name is known.
func (s *Service) repoFor(mode domain.TradingMode) (*Repository, error) {
	switch mode {
	case domain.ModePaper:
		return s.paperRepo, nil
	case domain.ModeLive:
		return s.liveRepo, nil
	default:
		return nil, invalidMode(mode)
	}
}

func (s *Service) modeCtx(mode domain.TradingMode, exchangeName string) (modeContext, error) {
	switch mode {
	case domain.ModePaper:
		return modeContext{mode: mode, repo: s.paperRepo, projector: s.paperLedger, adapter: s.sim}, nil
	case domain.ModeLive:
		adapter, err := s.exchanges.Get(exchangeName)
		if err != nil {
			return modeContext{}, err
		}
		return modeContext{mode: mode, repo: s.liveRepo, projector: s.liveLedger, adapter: adapter}, nil
	default:
		return modeContext{}, invalidMode(mode)
	}
}
