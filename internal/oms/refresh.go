package oms

import (
	"context"
	"time"

	"github.com/aristath/inarbit/internal/apperr"
	"github.com/aristath/inarbit/internal/domain"
)

// RefreshOrder implements spec.md section 4.G's refresh_order: paper is a
// no-op; live re-fetches the order and creates any unseen fills.
func (s *Service) RefreshOrder(ctx context.Context, userID, orderID string, mode domain.TradingMode) (*domain.Order, error) {
	repo, err := s.repoFor(mode)
	if err != nil {
		return nil, err
	}
	order, err := repo.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	mc, err := s.modeCtx(mode, order.Exchange)
	if err != nil {
		return nil, err
	}
	if err := s.refreshOneOrder(ctx, mc, order); err != nil {
		return nil, err
	}
	return order, nil
}

// refreshOneOrder is the mode-agnostic refresh body: paper orders never
// change state once placed (SimExchange fills synchronously), live orders
// are re-fetched and reconciled against the adapter's current view.
func (s *Service) refreshOneOrder(ctx context.Context, mc modeContext, order *domain.Order) error {
	if mc.mode == domain.ModePaper {
		return nil
	}
	if order.Status.Terminal() {
		return nil
	}
	state, err := mc.adapter.FetchOrder(ctx, order.AccountType, order.Symbol, order.ExternalOrderID)
	if err != nil {
		return apperr.Transientf(err, "fetch_order failed for %s", order.ExternalOrderID)
	}
	if order.Status.CanTransitionTo(state.Status) {
		order.Status = state.Status
	}
	order.FilledQuantity = state.FilledQuantity
	order.AveragePrice = state.AveragePrice
	order.Fee = state.Fee
	order.FeeCurrency = state.FeeCurrency
	if err := mc.repo.UpdateOrderState(ctx, order); err != nil {
		return apperr.Fatalf(err, "persist refreshed order state")
	}
	return s.createFillsAndProject(ctx, mc, order)
}

// CancelOrder implements spec.md section 4.G's cancel_order: paper sets
// status cancelled directly; live cancels then refreshes.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID string, mode domain.TradingMode) (*domain.Order, error) {
	repo, err := s.repoFor(mode)
	if err != nil {
		return nil, err
	}
	order, err := repo.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	mc, err := s.modeCtx(mode, order.Exchange)
	if err != nil {
		return nil, err
	}
	if err := s.cancelOneOrder(ctx, mc, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) cancelOneOrder(ctx context.Context, mc modeContext, order *domain.Order) error {
	if order.Status.Terminal() {
		return nil
	}
	if mc.mode == domain.ModePaper {
		order.Status = domain.OrderCancelled
		return mc.repo.UpdateOrderState(ctx, order)
	}
	if err := mc.adapter.CancelOrder(ctx, order.AccountType, order.Symbol, order.ExternalOrderID); err != nil {
		return apperr.Transientf(err, "cancel_order failed for %s", order.ExternalOrderID)
	}
	return s.refreshOneOrder(ctx, mc, order)
}

// PlanActionStats summarizes one refresh_plan/cancel_plan pass (spec.md
// section 4.G).
type PlanActionStats struct {
	Total   int
	OK      int
	Skipped int
	Failed  int
}

// PlanActionResult is one order's outcome within a refresh_plan/cancel_plan
// pass.
type PlanActionResult struct {
	OrderID string
	Status  domain.OrderStatus
	Skipped bool
	Error   string
}

// RefreshPlan implements spec.md section 4.G's refresh_plan: apply
// refresh to every non-terminal order in the plan.
func (s *Service) RefreshPlan(ctx context.Context, userID, planID string, mode domain.TradingMode) ([]*domain.Order, []PlanActionResult, PlanActionStats, error) {
	return s.applyToPlan(ctx, userID, planID, mode, s.refreshOneOrder)
}

// CancelPlan implements spec.md section 4.G's cancel_plan: cancel every
// non-terminal order, then mark the plan cancelled.
func (s *Service) CancelPlan(ctx context.Context, userID, planID string, mode domain.TradingMode) ([]*domain.Order, []PlanActionResult, PlanActionStats, error) {
	orders, results, stats, err := s.applyToPlan(ctx, userID, planID, mode, s.cancelOneOrder)
	if err != nil {
		return orders, results, stats, err
	}
	repo, err := s.repoFor(mode)
	if err != nil {
		return orders, results, stats, err
	}
	plan, err := repo.GetPlan(ctx, userID, planID)
	if err != nil {
		return orders, results, stats, err
	}
	if !plan.Status.Terminal() {
		plan.Status = domain.PlanCancelled
		now := time.Now()
		plan.FinishedAt = &now
		if err := repo.UpdatePlan(ctx, plan); err != nil {
			return orders, results, stats, apperr.Fatalf(err, "persist cancelled plan")
		}
	}
	return orders, results, stats, nil
}

func (s *Service) applyToPlan(ctx context.Context, userID, planID string, mode domain.TradingMode, action func(context.Context, modeContext, *domain.Order) error) ([]*domain.Order, []PlanActionResult, PlanActionStats, error) {
	repo, err := s.repoFor(mode)
	if err != nil {
		return nil, nil, PlanActionStats{}, err
	}
	plan, err := repo.GetPlan(ctx, userID, planID)
	if err != nil {
		return nil, nil, PlanActionStats{}, err
	}
	orders, err := repo.OrdersForPlan(ctx, plan.ID)
	if err != nil {
		return nil, nil, PlanActionStats{}, apperr.Fatalf(err, "load plan orders")
	}
	mc, err := s.modeCtx(mode, plan.Exchange)
	if err != nil {
		return nil, nil, PlanActionStats{}, err
	}

	stats := PlanActionStats{Total: len(orders)}
	results := make([]PlanActionResult, 0, len(orders))
	for _, order := range orders {
		if order.Status.Terminal() {
			stats.OK++
			stats.Skipped++
			results = append(results, PlanActionResult{OrderID: order.ID, Status: order.Status, Skipped: true})
			continue
		}
		if err := action(ctx, mc, order); err != nil {
			stats.Failed++
			results = append(results, PlanActionResult{OrderID: order.ID, Status: order.Status, Error: err.Error()})
			continue
		}
		stats.OK++
		results = append(results, PlanActionResult{OrderID: order.ID, Status: order.Status})
	}
	return orders, results, stats, nil
}
