// Package domain provides the core data model of the arbitrage decision and
// execution pipeline: market snapshots, opportunities, decisions, plans,
// orders, fills, positions, ledger entries and PnL records.
//
// All monetary/quantity fields use shopspring/decimal so that fee, price,
// and PnL arithmetic never loses precision to floating point. Risk,
// confidence, and regime statistics remain float64, per spec.md section 9.
package domain

// TradingMode selects one of the two parallel order/fill/plan families.
// Core operations never cross modes.
type TradingMode string

const (
	ModePaper TradingMode = "paper"
	ModeLive  TradingMode = "live"
)

// Valid reports whether m is a known trading mode.
func (m TradingMode) Valid() bool {
	return m == ModePaper || m == ModeLive
}

// AccountType distinguishes spot from perpetual-futures legs.
type AccountType string

const (
	AccountSpot AccountType = "spot"
	AccountPerp AccountType = "perp"
)

// Side is the direction of an order or fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType distinguishes market from limit orders. The core only ever
// places market orders (section 4.G), limit is carried for completeness
// of the type and for test fixtures.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus is the order state machine of section 4.G:
//
//	pending -> {partially_filled, filled, cancelled, rejected}
//	partially_filled -> {filled, cancelled, rejected}
//
// Terminal statuses are absorbing.
type OrderStatus string

const (
	OrderPending         OrderStatus = "pending"
	OrderPartiallyFilled OrderStatus = "partially_filled"
	OrderFilled          OrderStatus = "filled"
	OrderCancelled       OrderStatus = "cancelled"
	OrderRejected        OrderStatus = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderRejected:
		return true
	default:
		return false
	}
}

// CanTransitionTo enforces the order state machine of section 4.G.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case OrderPending:
		switch next {
		case OrderPartiallyFilled, OrderFilled, OrderCancelled, OrderRejected, OrderPending:
			return true
		}
	case OrderPartiallyFilled:
		switch next {
		case OrderFilled, OrderCancelled, OrderRejected, OrderPartiallyFilled:
			return true
		}
	}
	return false
}

// PlanStatus is the plan state machine of section 4.G:
// running -> {completed, failed, cancelled}.
type PlanStatus string

const (
	PlanRunning   PlanStatus = "running"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
	PlanCancelled PlanStatus = "cancelled"
)

// Terminal reports whether the plan status is absorbing.
func (s PlanStatus) Terminal() bool {
	switch s {
	case PlanCompleted, PlanFailed, PlanCancelled:
		return true
	default:
		return false
	}
}

// StrategyKind distinguishes the two opportunity/strategy families.
type StrategyKind string

const (
	StrategyTriangle StrategyKind = "triangle"
	StrategyBasis    StrategyKind = "basis"
)

// RoutingStrategyKey maps a StrategyKind to the key used in per-strategy
// routing configuration (section 4.F.3): cashcarry opportunities route
// under the "funding_rate" strategy key.
func (k StrategyKind) RoutingStrategyKey() string {
	if k == StrategyBasis {
		return "funding_rate"
	}
	return string(k)
}

// CashCarryDirection is the direction of a cash-and-carry opportunity/decision.
type CashCarryDirection string

const (
	DirectionLongSpotShortPerp  CashCarryDirection = "long_spot_short_perp"
	DirectionShortSpotLongPerp CashCarryDirection = "short_spot_long_perp"
)

// IsShort reports whether the direction shorts the spot leg
// (short_spot_long_perp). The allow_short routing gate of section 4.F.5
// does not call it; it treats any direction containing "short" as short.
func (d CashCarryDirection) IsShort() bool {
	return d == DirectionShortSpotLongPerp
}

// RegimeLabel is the market regime classification of section 4.E.
type RegimeLabel string

const (
	RegimeRange      RegimeLabel = "RANGE"
	RegimeUptrend    RegimeLabel = "UPTREND"
	RegimeDowntrend  RegimeLabel = "DOWNTREND"
	RegimeStress     RegimeLabel = "STRESS"
)

// LegID identifies a leg within a plan (spot/perp for basis, leg1..leg3 for triangle).
type LegID string

const (
	LegSpot  LegID = "spot"
	LegPerp  LegID = "perp"
	LegOne   LegID = "leg1"
	LegTwo   LegID = "leg2"
	LegThree LegID = "leg3"
)

// LedgerRefType identifies the kind of event that produced a ledger entry.
type LedgerRefType string

const (
	RefTypeFill LedgerRefType = "fill"
	RefTypeFee  LedgerRefType = "fee"
)

// NextAction is the pure output of preview_next_action (section 4.G reconcile).
type NextAction string

const (
	ActionNone               NextAction = "none"
	ActionReconcileAgain     NextAction = "reconcile_again"
	ActionConsiderAutoCancel NextAction = "consider_auto_cancel"
	ActionWaitCancel         NextAction = "wait_cancel"
	ActionManualInvestigate  NextAction = "manual_investigate"
)
