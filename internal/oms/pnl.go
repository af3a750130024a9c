package oms

import (
	"context"
	"time"

	"github.com/aristath/inarbit/internal/apperr"
	"github.com/aristath/inarbit/internal/domain"
	"github.com/aristath/inarbit/internal/events"
	"github.com/aristath/inarbit/internal/kv"
	"github.com/shopspring/decimal"
)

// recordPnL implements spec.md section 4.G's plan-level PnL recording:
// dedupe via a KV marker, aggregate every fill across the plan's orders,
// insert one PnL row, and append a pnl_summary leg.
func (s *Service) recordPnL(ctx context.Context, mc modeContext, plan *domain.ExecutionPlan) error {
	marker := kv.PnLPlanMarkerKey(string(mc.mode), plan.ID)
	won, err := s.store.SetNXWithTTL(ctx, marker, []byte("1"), kv.PnLMarkerTTL)
	if err != nil {
		return apperr.Fatalf(err, "pnl dedupe marker")
	}
	if !won {
		return nil
	}

	orders, err := mc.repo.OrdersForPlan(ctx, plan.ID)
	if err != nil {
		return apperr.Fatalf(err, "load plan orders for pnl")
	}

	netNotional := decimal.Zero
	totalAbsNotional := decimal.Zero
	totalFee := decimal.Zero
	symbols := map[string]bool{}
	quotes := map[string]bool{}

	for _, order := range orders {
		fills, err := mc.repo.FillsForOrder(ctx, order.ID)
		if err != nil {
			return apperr.Fatalf(err, "load fills for pnl")
		}
		symbols[order.Symbol] = true
		quotes[domain.QuoteCurrency(order.Symbol)] = true
		for _, fill := range fills {
			notional := fill.Price.Mul(fill.Quantity)
			if order.Side == domain.SideBuy {
				netNotional = netNotional.Sub(notional)
			} else {
				netNotional = netNotional.Add(notional)
			}
			totalAbsNotional = totalAbsNotional.Add(notional.Abs())
			totalFee = totalFee.Add(fill.Fee)
		}
	}

	profit := netNotional.Sub(totalFee)
	var profitRate *float64
	if totalAbsNotional.IsPositive() {
		rate, _ := profit.Div(totalAbsNotional).Float64()
		profitRate = &rate
	}

	var symbolPtr, quotePtr *string
	if len(symbols) == 1 {
		for sym := range symbols {
			symbol := sym
			symbolPtr = &symbol
		}
	}
	if len(quotes) == 1 {
		for q := range quotes {
			quote := q
			quotePtr = &quote
		}
	}

	record := &domain.PnLRecord{
		PlanID:        plan.ID,
		TradingMode:   mc.mode,
		Symbol:        symbolPtr,
		QuoteCurrency: quotePtr,
		Profit:        profit,
		ProfitRate:    profitRate,
		TotalNotional: totalAbsNotional,
		TotalFee:      totalFee,
		Kind:          plan.Kind,
		CreatedAt:     time.Now(),
	}
	if err := mc.repo.InsertPnL(ctx, record); err != nil {
		return apperr.Fatalf(err, "insert pnl row")
	}

	plan.Legs = append(plan.Legs, domain.PlanLeg{
		Kind:       domain.LegPnLSummary,
		Timestamp:  record.CreatedAt,
		PnLSummary: &domain.PnLSummaryLeg{PnL: *record},
	})
	if s.events != nil {
		profit, _ := record.Profit.Float64()
		s.events.Emit(events.PnLRecorded, "oms", map[string]interface{}{
			"plan_id": plan.ID,
			"profit":  profit,
		})
	}
	return nil
}
