package oms

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/inarbit/internal/apperr"
	"github.com/aristath/inarbit/internal/domain"
	"github.com/aristath/inarbit/internal/events"
)

// ReconcilePlanRequest is reconcile_plan's argument bundle (spec.md
// section 4.G).
type ReconcilePlanRequest struct {
	UserID        string
	PlanID        string
	TradingMode   domain.TradingMode
	MaxRounds     int
	SleepMs       int
	AutoCancel    bool
	MaxAgeSeconds int
}

// ReconcilePlanResult is reconcile_plan's return value.
type ReconcilePlanResult struct {
	Plan    *domain.ExecutionPlan
	Summary domain.ReconcileSummaryLeg
}

// preview_next_action is a pure function (spec.md section 4.G's
// "preview_next_action"), testable in isolation: it maps the reconcile
// loop's terminal/auto_cancel/timeout/exhausted flags and the last round's
// status counts to one of the five NextAction values.
func previewNextAction(terminal, autoCancel, timeout, maxRoundsExhausted bool, lastStatusCounts map[domain.OrderStatus]int) domain.NextAction {
	if terminal {
		return domain.ActionNone
	}
	if autoCancel {
		return domain.ActionWaitCancel
	}
	if timeout || maxRoundsExhausted {
		if hasOpenOrPartial(lastStatusCounts) {
			return domain.ActionConsiderAutoCancel
		}
		return domain.ActionReconcileAgain
	}
	if lastStatusCounts == nil {
		return domain.ActionManualInvestigate
	}
	return domain.ActionReconcileAgain
}

func hasOpenOrPartial(counts map[domain.OrderStatus]int) bool {
	return counts[domain.OrderPending] > 0 || counts[domain.OrderPartiallyFilled] > 0
}

// ReconcilePlan implements spec.md section 4.G's reconcile_plan
// convergence loop.
func (s *Service) ReconcilePlan(ctx context.Context, req ReconcilePlanRequest) (*ReconcilePlanResult, error) {
	if req.MaxRounds <= 0 {
		req.MaxRounds = 5
	}
	if req.SleepMs <= 0 {
		req.SleepMs = 1000
	}

	repo, err := s.repoFor(req.TradingMode)
	if err != nil {
		return nil, err
	}
	plan, err := repo.GetPlan(ctx, req.UserID, req.PlanID)
	if err != nil {
		return nil, err
	}

	// An already-terminal plan is an absorbing state: reconcile_plan reports
	// the current order states and returns in round 1 with terminal=true
	// without touching plan.Status, so a stray reconcile call (e.g. against
	// a user-cancelled plan) can never flip it back to completed.
	if plan.Status.Terminal() {
		orders, err := repo.OrdersForPlan(ctx, plan.ID)
		if err != nil {
			return nil, apperr.Fatalf(err, "load plan orders")
		}
		summary := domain.ReconcileSummaryLeg{
			Rounds: []domain.ReconcileRoundSummary{{
				Round:        1,
				StatusCounts: countStatuses(orders),
				Terminal:     true,
				Rejected:     anyRejected(orders),
			}},
			Terminal:          true,
			FinalStatusCounts: countStatuses(orders),
			OrdersSummary:     ordersSummary(orders),
			NextAction:        domain.ActionNone,
		}
		return &ReconcilePlanResult{Plan: plan, Summary: summary}, nil
	}

	var rounds []domain.ReconcileRoundSummary
	orders, _, stats, err := s.applyToPlan(ctx, req.UserID, req.PlanID, req.TradingMode, s.refreshOneOrder)
	if err != nil {
		return nil, err
	}
	round := 1
	rounds = append(rounds, domain.ReconcileRoundSummary{
		Round:        round,
		StatusCounts: countStatuses(orders),
		Terminal:     allTerminal(orders),
		Rejected:     anyRejected(orders),
	})

	timeout := false
	maxRoundsExhausted := false

	for !allTerminal(orders) && round < req.MaxRounds {
		if req.MaxAgeSeconds > 0 && time.Since(plan.StartedAt) >= time.Duration(req.MaxAgeSeconds)*time.Second {
			timeout = true
			orders, _, stats, err = s.applyToPlan(ctx, req.UserID, req.PlanID, req.TradingMode, s.refreshOneOrder)
			if err != nil {
				return nil, err
			}
			round++
			rounds = append(rounds, domain.ReconcileRoundSummary{Round: round, StatusCounts: countStatuses(orders), Terminal: allTerminal(orders), Rejected: anyRejected(orders)})
			break
		}
		time.Sleep(time.Duration(req.SleepMs) * time.Millisecond)
		orders, _, stats, err = s.applyToPlan(ctx, req.UserID, req.PlanID, req.TradingMode, s.refreshOneOrder)
		if err != nil {
			return nil, err
		}
		round++
		rounds = append(rounds, domain.ReconcileRoundSummary{Round: round, StatusCounts: countStatuses(orders), Terminal: allTerminal(orders), Rejected: anyRejected(orders)})
	}

	if !allTerminal(orders) && round >= req.MaxRounds && !timeout {
		maxRoundsExhausted = true
		orders, _, stats, err = s.applyToPlan(ctx, req.UserID, req.PlanID, req.TradingMode, s.refreshOneOrder)
		if err != nil {
			return nil, err
		}
		round++
		rounds = append(rounds, domain.ReconcileRoundSummary{Round: round, StatusCounts: countStatuses(orders), Terminal: allTerminal(orders), Rejected: anyRejected(orders)})
	}

	lastCounts := rounds[len(rounds)-1].StatusCounts
	terminal := allTerminal(orders)
	nextAction := previewNextAction(terminal, req.AutoCancel, timeout, maxRoundsExhausted, lastCounts)

	var suggested *domain.ReconcileRequest
	autoCancelAttempted, autoCancelSucceeded := false, false
	if req.AutoCancel && !terminal {
		autoCancelAttempted = true
		if _, _, _, err := s.CancelPlan(ctx, req.UserID, req.PlanID, req.TradingMode); err != nil {
			plan.Status = domain.PlanFailed
			plan.ErrorMessage = "auto_cancel failed: " + err.Error()
		} else {
			orders, _, stats, _ = s.applyToPlan(ctx, req.UserID, req.PlanID, req.TradingMode, s.refreshOneOrder)
			autoCancelSucceeded = true
			terminal = allTerminal(orders)
		}
	}

	if plan.Status != domain.PlanFailed {
		switch {
		case terminal && !anyRejected(orders):
			plan.Status = domain.PlanCompleted
		case terminal && anyRejected(orders):
			plan.Status = domain.PlanFailed
			plan.ErrorMessage = "one or more legs rejected"
		default:
			plan.Status = domain.PlanFailed
			switch {
			case timeout:
				plan.ErrorMessage = fmt.Sprintf("timeout (elapsed %.0fs >= max_age_seconds %ds)", time.Since(plan.StartedAt).Seconds(), req.MaxAgeSeconds)
			case maxRoundsExhausted:
				plan.ErrorMessage = fmt.Sprintf("max_rounds_exhausted (round %d >= max_rounds %d)", round, req.MaxRounds)
			default:
				plan.ErrorMessage = fmt.Sprintf("not_terminal (status_counts=%v)", lastCounts)
			}
		}
	}
	if plan.Status.Terminal() && plan.FinishedAt == nil {
		now := time.Now()
		plan.FinishedAt = &now
	}

	if req.MaxAgeSeconds > 0 || req.AutoCancel {
		suggested = &domain.ReconcileRequest{
			PlanID:        plan.ID,
			MaxRounds:     req.MaxRounds,
			SleepMs:       req.SleepMs,
			AutoCancel:    req.AutoCancel,
			MaxAgeSeconds: req.MaxAgeSeconds,
		}
	}

	summary := domain.ReconcileSummaryLeg{
		Rounds:              rounds,
		Terminal:            terminal,
		Timeout:             timeout,
		MaxRoundsExhausted:  maxRoundsExhausted,
		FinalStatusCounts:   countStatuses(orders),
		OrdersSummary:       ordersSummary(orders),
		NextAction:          nextAction,
		AutoCancelAttempted: autoCancelAttempted,
		AutoCancelSucceeded: autoCancelSucceeded,
		SuggestedRequest:    suggested,
	}
	plan.Legs = append(plan.Legs, domain.PlanLeg{
		Kind:             domain.LegReconcileSummary,
		Timestamp:        time.Now(),
		ReconcileSummary: &summary,
	})
	if s.events != nil {
		s.events.Emit(events.ReconcileCompleted, "oms", map[string]interface{}{
			"plan_id":  plan.ID,
			"rounds":   len(rounds),
			"terminal": terminal,
		})
	}

	if err := repo.UpdatePlan(ctx, plan); err != nil {
		return nil, apperr.Fatalf(err, "persist reconciled plan")
	}
	s.emitPlanOutcome(plan)

	if plan.Status == domain.PlanCompleted {
		mc, err := s.modeCtx(req.TradingMode, plan.Exchange)
		if err == nil {
			if err := s.recordPnL(ctx, mc, plan); err != nil {
				s.log.Warn().Err(err).Str("plan_id", plan.ID).Msg("pnl recording failed")
			}
			_ = repo.UpdatePlan(ctx, plan)
		}
	}

	_ = stats // per-round action stats are not reported; the rounds summary carries status counts only
	return &ReconcilePlanResult{Plan: plan, Summary: summary}, nil
}

func ordersSummary(orders []*domain.Order) map[string]domain.OrderStatus {
	out := make(map[string]domain.OrderStatus, len(orders))
	for _, o := range orders {
		out[o.ID] = o.Status
	}
	return out
}
