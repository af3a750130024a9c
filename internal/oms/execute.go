package oms

import (
	"context"
	"database/sql"
	"time"

	"github.com/aristath/inarbit/internal/apperr"
	"github.com/aristath/inarbit/internal/domain"
	"github.com/aristath/inarbit/internal/events"
)

// ExecuteLatestRequest is execute_latest's argument bundle (spec.md
// section 4.G).
type ExecuteLatestRequest struct {
	UserID         string
	TradingMode    domain.TradingMode
	ConfirmLive    bool
	IdempotencyKey string
	Limit          int
}

// ExecuteLatestResult is returned on success and is also what gets cached
// under the idempotency key.
type ExecuteLatestResult struct {
	Decision domain.Decision
	Plan     *domain.ExecutionPlan
	Orders   []*domain.Order
}

// ExecuteLatest implements spec.md section 4.G's execute_latest.
func (s *Service) ExecuteLatest(ctx context.Context, req ExecuteLatestRequest) (*ExecuteLatestResult, error) {
	if !req.TradingMode.Valid() {
		return nil, invalidMode(req.TradingMode)
	}
	if req.TradingMode == domain.ModeLive {
		if !req.ConfirmLive {
			return nil, apperr.PermissionDeniedf("live execution requires confirm_live=true")
		}
		if !s.cfg.EnableLive {
			return nil, apperr.PermissionDeniedf("live trading is not enabled on this process")
		}
	}

	if req.IdempotencyKey != "" {
		if cached, ok, err := s.loadIdempotent(ctx, req.UserID, req.IdempotencyKey); err != nil {
			return nil, err
		} else if ok {
			return cached, nil
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit < s.cfg.MaxLimitFloor {
		limit = s.cfg.MaxLimitFloor
	}

	decision, ok, err := s.pickDecision(ctx, req.UserID, limit)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFoundf("no executable decision for user %s", req.UserID)
	}

	if s.riskGate != nil {
		if err := s.riskGate.Allow(ctx, req.UserID, decision); err != nil {
			return nil, err
		}
	}

	mc, err := s.modeCtx(req.TradingMode, decision.Exchange)
	if err != nil {
		return nil, err
	}

	plan := &domain.ExecutionPlan{
		User:      req.UserID,
		Exchange:  decision.Exchange,
		Kind:      decision.Strategy,
		Status:    domain.PlanRunning,
		StartedAt: time.Now(),
	}
	if err := mc.repo.CreatePlan(ctx, plan); err != nil {
		return nil, apperr.Fatalf(err, "create plan")
	}

	orders, dispatchErr := s.dispatch(ctx, plan, decision)
	if dispatchErr != nil {
		s.failPlan(ctx, mc, plan, dispatchErr, nil)
		return nil, dispatchErr
	}

	// A rejected leg is aborted immediately rather than placed alongside
	// its siblings: for a triangle/basis plan, continuing after the first
	// rejection would place real, unhedged orders for the remaining legs
	// (spec.md section 7 - abort on the first leg placement exception).
	for i, order := range orders {
		if err := s.placeOrder(ctx, mc, order); err != nil {
			s.failPlan(ctx, mc, plan, err, orders[:i+1])
			return nil, err
		}
		plan.Legs = append(plan.Legs, domain.PlanLeg{
			Kind:      domain.LegPlacedOrder,
			Timestamp: time.Now(),
			PlacedOrder: &domain.PlacedOrderLeg{
				LegID:   order.LegID,
				OrderID: order.ID,
				Symbol:  order.Symbol,
				Side:    order.Side,
			},
		})
	}

	plan.Legs = append(plan.Legs, domain.PlanLeg{
		Kind:      domain.LegExecutionSummary,
		Timestamp: time.Now(),
		ExecutionSummary: &domain.ExecutionSummaryLeg{
			StatusCounts: countStatuses(orders),
			SuggestedReconcile: domain.ReconcileRequest{
				PlanID:        plan.ID,
				MaxRounds:     5,
				SleepMs:       1000,
				AutoCancel:    false,
				MaxAgeSeconds: 60,
			},
		},
	})

	if req.TradingMode == domain.ModeLive && !allTerminal(orders) {
		rounds, final := s.postExecutionPoll(ctx, mc, orders)
		plan.Legs = append(plan.Legs, domain.PlanLeg{
			Kind:      domain.LegPostExecPollSummary,
			Timestamp: time.Now(),
			PostExecPollSummary: &domain.PostExecPollSummaryLeg{
				Rounds:      rounds,
				FinalStatus: countStatuses(final),
				AllTerminal: allTerminal(final),
			},
		})
		orders = final
	}

	finalizePlanStatus(plan, orders, req.TradingMode)
	if err := mc.repo.UpdatePlan(ctx, plan); err != nil {
		return nil, apperr.Fatalf(err, "persist plan")
	}
	s.emitPlanOutcome(plan)

	if plan.Status == domain.PlanCompleted {
		if err := s.recordPnL(ctx, mc, plan); err != nil {
			s.log.Warn().Err(err).Str("plan_id", plan.ID).Msg("pnl recording failed")
		}
		if err := mc.repo.UpdatePlan(ctx, plan); err != nil {
			s.log.Warn().Err(err).Str("plan_id", plan.ID).Msg("failed to persist pnl summary leg")
		}
	}

	result := &ExecuteLatestResult{Decision: decision, Plan: plan, Orders: orders}
	if req.IdempotencyKey != "" {
		s.cacheIdempotent(ctx, req.UserID, req.IdempotencyKey, result)
	}
	return result, nil
}

// emitPlanOutcome fires a PlanCompleted/PlanFailed event when a plan
// reaches a terminal status; ReconcilePlan calls this too, after it
// finalizes a still-running plan.
func (s *Service) emitPlanOutcome(plan *domain.ExecutionPlan) {
	if s.events == nil {
		return
	}
	data := map[string]interface{}{
		"plan_id": plan.ID,
		"user_id": plan.User,
		"kind":    string(plan.Kind),
	}
	switch plan.Status {
	case domain.PlanCompleted:
		s.events.Emit(events.PlanCompleted, "oms", data)
	case domain.PlanFailed:
		data["error"] = plan.ErrorMessage
		s.events.Emit(events.PlanFailed, "oms", data)
	}
}

// placeOrder executes one leg: create the order row, invoke the adapter,
// apply the uniform result, create fills and project ledger/position
// updates. Each fill insert shares one SQL transaction with its
// ledger/position projection (spec.md section 5); the order row writes
// are separate statements outside it.
func (s *Service) placeOrder(ctx context.Context, mc modeContext, order *domain.Order) error {
	created, err := mc.repo.CreateOrder(ctx, order)
	if err != nil {
		return apperr.Fatalf(err, "create order row")
	}
	if !created {
		// A row with this client_order_id already existed (spec.md section
		// 8.I3's duplicate client_order_id is a Conflict, resolved locally):
		// *order now holds the existing row, so just resync its fills.
		return s.createFillsAndProject(ctx, mc, order)
	}

	result, err := mc.adapter.CreateOrder(ctx, order.AccountType, order.Symbol, order.Side, order.OrderType, order.Quantity, order.Price, order.ClientOrderID)
	if err != nil {
		order.Status = domain.OrderRejected
		_ = mc.repo.UpdateOrderState(ctx, order)
		return apperr.Transientf(err, "create_market_order failed for %s", order.Symbol)
	}

	order.ExternalOrderID = result.ExternalOrderID
	order.Status = result.Status
	order.FilledQuantity = result.FilledQuantity
	order.AveragePrice = result.AveragePrice
	order.Fee = result.Fee
	order.FeeCurrency = result.FeeCurrency
	if err := mc.repo.UpdateOrderState(ctx, order); err != nil {
		return apperr.Fatalf(err, "persist order state")
	}

	return s.createFillsAndProject(ctx, mc, order)
}

// createFillsAndProject pulls every fill the adapter reports for order,
// deduped by external_trade_id, and projects each new one into the
// position/ledger tables within the same transaction.
func (s *Service) createFillsAndProject(ctx context.Context, mc modeContext, order *domain.Order) error {
	adapterFills, err := mc.adapter.FetchFillsForOrder(ctx, order.AccountType, order.Symbol, order.ExternalOrderID)
	if err != nil {
		return apperr.Transientf(err, "fetch fills for order %s", order.ID)
	}
	existing, err := mc.repo.ExistingExternalTradeIDs(ctx, order.ID)
	if err != nil {
		return apperr.Fatalf(err, "load existing fill ids")
	}

	for _, af := range adapterFills {
		if existing[af.ExternalTradeID] {
			continue
		}
		fill := &domain.Fill{
			User:            order.User,
			OrderID:         order.ID,
			Exchange:        order.Exchange,
			AccountType:     order.AccountType,
			Symbol:          order.Symbol,
			Price:           af.Price,
			Quantity:        af.Quantity,
			Fee:             af.Fee,
			FeeCurrency:     af.FeeCurrency,
			ExternalTradeID: af.ExternalTradeID,
			ExternalOrderID: af.ExternalOrderID,
			Raw:             af.Raw,
			CreatedAt:       af.CreatedAt,
		}
		if err := s.projectFill(ctx, mc, order, fill); err != nil {
			return err
		}
	}
	return nil
}

// projectFill creates one fill row and its ledger/position side effects
// within a single transaction (spec.md section 5's "same logical
// operation" requirement).
func (s *Service) projectFill(ctx context.Context, mc modeContext, order *domain.Order, fill *domain.Fill) error {
	return mc.repo.withTx(ctx, func(tx *sql.Tx) error {
		created, err := mc.repo.createFillTx(ctx, tx, fill)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		if order.AccountType == domain.AccountSpot {
			return mc.projector.ApplySpotFill(ctx, tx, order.User, order.Exchange, *fill, order.Side, order.Symbol)
		}
		return mc.projector.ApplyPerpFill(ctx, tx, order.User, order.Exchange, order.Symbol, *fill, order.Side)
	})
}

// postExecutionPoll implements spec.md section 4.G.9: poll up to
// PostExecMaxRounds refreshes with PostExecSleep spacing until every
// order is terminal.
func (s *Service) postExecutionPoll(ctx context.Context, mc modeContext, orders []*domain.Order) (int, []*domain.Order) {
	round := 0
	for round < s.cfg.PostExecMaxRounds && !allTerminal(orders) {
		round++
		time.Sleep(s.cfg.PostExecSleep)
		for _, order := range orders {
			if order.Status.Terminal() {
				continue
			}
			if err := s.refreshOneOrder(ctx, mc, order); err != nil {
				s.log.Warn().Err(err).Str("order_id", order.ID).Msg("post-exec refresh failed")
			}
		}
	}
	return round, orders
}

// failPlan appends a reconcile-suggested-request leg and marks the plan
// failed (spec.md section 4.G.12), optionally best-effort-cancelling any
// already-placed non-terminal orders.
func (s *Service) failPlan(ctx context.Context, mc modeContext, plan *domain.ExecutionPlan, cause error, orders []*domain.Order) {
	now := time.Now()
	plan.Status = domain.PlanFailed
	plan.ErrorMessage = cause.Error()
	plan.FinishedAt = &now
	plan.Legs = append(plan.Legs, domain.PlanLeg{
		Kind:      domain.LegReconcileSuggestedReq,
		Timestamp: now,
		ReconcileSuggested: &domain.ReconcileSuggestedLeg{
			Error: cause.Error(),
			SuggestedRequest: domain.ReconcileRequest{
				PlanID:    plan.ID,
				MaxRounds: 5,
				SleepMs:   1000,
			},
		},
	})

	var cancelled []string
	var errs []string
	if mc.mode == domain.ModeLive {
		for _, order := range orders {
			if order == nil || order.Status.Terminal() {
				continue
			}
			if err := s.cancelOneOrder(ctx, mc, order); err != nil {
				errs = append(errs, err.Error())
				continue
			}
			cancelled = append(cancelled, order.ID)
		}
		if len(orders) > 0 {
			plan.Legs = append(plan.Legs, domain.PlanLeg{
				Kind:      domain.LegFailureCompensation,
				Timestamp: time.Now(),
				FailureCompensation: &domain.FailureCompensationLeg{
					CancelledOrderIDs: cancelled,
					Errors:            errs,
				},
			})
		}
	}

	if err := mc.repo.UpdatePlan(ctx, plan); err != nil {
		s.log.Warn().Err(err).Str("plan_id", plan.ID).Msg("failed to persist failed plan")
	}
	s.emitPlanOutcome(plan)
}
