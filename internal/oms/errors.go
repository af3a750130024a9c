package oms

import (
	"time"

	"github.com/aristath/inarbit/internal/apperr"
	"github.com/aristath/inarbit/internal/domain"
)

func invalidMode(mode domain.TradingMode) error {
	return apperr.InvalidArgumentf("invalid trading mode %q", mode)
}

func countStatuses(orders []*domain.Order) map[domain.OrderStatus]int {
	counts := make(map[domain.OrderStatus]int)
	for _, o := range orders {
		counts[o.Status]++
	}
	return counts
}

func allTerminal(orders []*domain.Order) bool {
	for _, o := range orders {
		if !o.Status.Terminal() {
			return false
		}
	}
	return true
}

func anyRejected(orders []*domain.Order) bool {
	for _, o := range orders {
		if o.Status == domain.OrderRejected {
			return true
		}
	}
	return false
}

// finalizePlanStatus implements spec.md section 4.G.10's terminal-status
// decision: all terminal & any rejected -> failed; all terminal, none
// rejected -> completed; else running (live) or completed (paper).
func finalizePlanStatus(plan *domain.ExecutionPlan, orders []*domain.Order, mode domain.TradingMode) {
	now := time.Now()
	switch {
	case allTerminal(orders) && anyRejected(orders):
		plan.Status = domain.PlanFailed
		plan.ErrorMessage = "one or more legs rejected"
		plan.FinishedAt = &now
	case allTerminal(orders):
		plan.Status = domain.PlanCompleted
		plan.FinishedAt = &now
	case mode == domain.ModePaper:
		plan.Status = domain.PlanCompleted
		plan.FinishedAt = &now
	default:
		plan.Status = domain.PlanRunning
	}
}
