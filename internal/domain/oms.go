package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanLegKind tags the union of plan-leg record shapes (spec.md section 9
// design note): dynamic-typed JSON blobs in the source become an explicit
// discriminated variant here.
type PlanLegKind string

const (
	LegPlacedOrder           PlanLegKind = "placed_order"
	LegExecutionSummary      PlanLegKind = "execution_summary"
	LegReconcileSummary      PlanLegKind = "reconcile_summary"
	LegPnLSummary            PlanLegKind = "pnl_summary"
	LegFailureCompensation   PlanLegKind = "failure_compensation"
	LegPostExecPollSummary   PlanLegKind = "post_exec_poll_summary"
	LegReconcileSuggestedReq PlanLegKind = "reconcile_suggested_request"
)

// PlanLeg is one append-only entry in ExecutionPlan.Legs. Exactly one of
// the payload fields is populated, selected by Kind.
type PlanLeg struct {
	Kind      PlanLegKind
	Timestamp time.Time

	PlacedOrder         *PlacedOrderLeg         `json:",omitempty"`
	ExecutionSummary    *ExecutionSummaryLeg    `json:",omitempty"`
	ReconcileSummary    *ReconcileSummaryLeg    `json:",omitempty"`
	PnLSummary          *PnLSummaryLeg          `json:",omitempty"`
	FailureCompensation *FailureCompensationLeg `json:",omitempty"`
	PostExecPollSummary *PostExecPollSummaryLeg `json:",omitempty"`
	ReconcileSuggested  *ReconcileSuggestedLeg  `json:",omitempty"`
}

// PlacedOrderLeg records that an order was created for a plan leg.
type PlacedOrderLeg struct {
	LegID   LegID
	OrderID string
	Symbol  string
	Side    Side
}

// ExecutionSummaryLeg is appended after all legs are dispatched (section 4.G.8).
type ExecutionSummaryLeg struct {
	StatusCounts      map[OrderStatus]int
	SuggestedReconcile ReconcileRequest
}

// ReconcileRequest is a pre-built request a caller can replay to continue
// reconciling a plan (section 4.G.8/reconcile_plan).
type ReconcileRequest struct {
	PlanID       string
	MaxRounds    int
	SleepMs      int
	AutoCancel   bool
	MaxAgeSeconds int
}

// ReconcileRoundSummary is one round of the reconcile loop (section 4.G.reconcile_plan).
type ReconcileRoundSummary struct {
	Round         int
	StatusCounts  map[OrderStatus]int
	Terminal      bool
	Rejected      bool
}

// ReconcileSummaryLeg is the final reconcile_plan outcome appended to the plan.
type ReconcileSummaryLeg struct {
	Rounds              []ReconcileRoundSummary
	Terminal            bool
	Timeout             bool
	MaxRoundsExhausted  bool
	FinalStatusCounts   map[OrderStatus]int
	OrdersSummary       map[string]OrderStatus
	NextAction          NextAction
	AutoCancelAttempted bool
	AutoCancelSucceeded bool
	SuggestedRequest    *ReconcileRequest `json:",omitempty"`
}

// PnLSummaryLeg mirrors the PnLRecord recorded for the plan.
type PnLSummaryLeg struct {
	PnL PnLRecord
}

// FailureCompensationLeg records best-effort cancels attempted after a failed plan.
type FailureCompensationLeg struct {
	CancelledOrderIDs []string
	Errors            []string
}

// PostExecPollSummaryLeg records the post-execution polling rounds (section 4.G.9).
type PostExecPollSummaryLeg struct {
	Rounds       int
	FinalStatus  map[OrderStatus]int
	AllTerminal  bool
}

// ReconcileSuggestedLeg is appended on exception during execute_latest
// (section 4.G.12), carrying the error and a suggested reconcile call.
type ReconcileSuggestedLeg struct {
	Error            string
	SuggestedRequest ReconcileRequest
}

// ExecutionPlan is the root aggregate of one execute_latest success
// (spec.md section 3).
type ExecutionPlan struct {
	ID           string
	User         string
	Exchange     string
	Kind         StrategyKind
	Status       PlanStatus
	Legs         []PlanLeg
	StartedAt    time.Time
	FinishedAt   *time.Time
	ErrorMessage string
}

// Finished reports the section 8.I8 invariant: terminal iff FinishedAt set.
func (p ExecutionPlan) Finished() bool {
	return p.FinishedAt != nil
}

// Order is a single leg's order (spec.md section 3).
type Order struct {
	ID              string
	User            string
	PlanID          string
	LegID           LegID
	Exchange        string
	AccountType     AccountType
	Symbol          string
	Side            Side
	OrderType       OrderType
	Quantity        decimal.Decimal
	Price           *decimal.Decimal // nil for market orders
	Status          OrderStatus
	FilledQuantity  decimal.Decimal
	AveragePrice    decimal.Decimal
	Fee             decimal.Decimal
	FeeCurrency     string
	ClientOrderID   string // unique per user, idempotency key
	ExternalOrderID string
	Metadata        map[string]any
}

// Fill is one execution report against an Order (spec.md section 3).
type Fill struct {
	ID              string
	User            string
	OrderID         string
	Exchange        string
	AccountType     AccountType
	Symbol          string
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	Fee             decimal.Decimal
	FeeCurrency     string
	ExternalTradeID string // unique; synthesized deterministically if missing
	ExternalOrderID string
	Raw             map[string]any
	CreatedAt       time.Time
}

// Position is a per (user, exchange, account_type, instrument) aggregate
// (spec.md section 3/4.H).
type Position struct {
	User         string
	Exchange     string
	AccountType  AccountType
	Instrument   string
	Quantity     decimal.Decimal // signed
	AverageEntry *decimal.Decimal // nil iff Quantity is zero
}

// LedgerEntry is an append-only signed balance movement (spec.md section 3/4.H).
type LedgerEntry struct {
	ID          string
	User        string
	Exchange    string
	AccountType AccountType
	Asset       string
	SignedDelta decimal.Decimal
	RefType     LedgerRefType
	RefID       string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// PnLRecord is the realized result of one closed plan (spec.md section 3/4.G.PnL).
type PnLRecord struct {
	ID            string
	PlanID        string
	TradingMode   TradingMode
	Symbol        *string // nil if fills span more than one symbol
	QuoteCurrency *string // nil if fills don't share a quote currency
	Profit        decimal.Decimal
	ProfitRate    *float64 // nil unless total_abs_notional is positive
	TotalNotional decimal.Decimal
	TotalFee      decimal.Decimal
	Kind          StrategyKind
	CreatedAt     time.Time
}
