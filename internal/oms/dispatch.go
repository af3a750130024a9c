package oms

import (
	"context"
	"fmt"

	"github.com/aristath/inarbit/internal/apperr"
	"github.com/aristath/inarbit/internal/domain"
	"github.com/shopspring/decimal"
)

// dispatch builds (but does not yet place) the orders for a decision's
// strategy, per spec.md section 4.G.6.
func (s *Service) dispatch(ctx context.Context, plan *domain.ExecutionPlan, decision domain.Decision) ([]*domain.Order, error) {
	switch decision.Strategy {
	case domain.StrategyBasis:
		return s.dispatchBasis(ctx, plan, decision)
	case domain.StrategyTriangle:
		return s.dispatchTriangle(ctx, plan, decision)
	default:
		return nil, apperr.InvalidArgumentf("unknown strategy %q", decision.Strategy)
	}
}

func (s *Service) dispatchBasis(ctx context.Context, plan *domain.ExecutionPlan, decision domain.Decision) ([]*domain.Order, error) {
	cc := decision.Opportunity.CashCarry
	if cc == nil {
		return nil, apperr.InvalidArgumentf("basis decision missing cash-carry opportunity")
	}

	var spotSide, perpSide domain.Side
	if cc.Direction == domain.DirectionLongSpotShortPerp {
		spotSide, perpSide = domain.SideBuy, domain.SideSell
	} else {
		spotSide, perpSide = domain.SideSell, domain.SideBuy
	}

	spotTOB, ok, err := s.marketdata.GetOrderBookTOB(ctx, decision.Exchange, cc.Symbol)
	if err != nil {
		return nil, apperr.Transientf(err, "read spot order book for %s", cc.Symbol)
	}
	if !ok {
		return nil, apperr.Transientf(nil, "no spot order book available for %s", cc.Symbol)
	}
	spotPrice := executablePrice(spotTOB, spotSide)
	if spotPrice.IsZero() {
		return nil, apperr.Transientf(nil, "no spot price available for %s", cc.Symbol)
	}

	exposure := decimal.NewFromFloat(decision.EstimatedExposure)
	quantity := exposure.Div(spotPrice)

	spotOrder := &domain.Order{
		User:          plan.User,
		PlanID:        plan.ID,
		LegID:         domain.LegSpot,
		Exchange:      decision.Exchange,
		AccountType:   domain.AccountSpot,
		Symbol:        cc.Symbol,
		Side:          spotSide,
		OrderType:     domain.OrderTypeMarket,
		Quantity:      quantity,
		Status:        domain.OrderPending,
		ClientOrderID: fmt.Sprintf("%s-spot", plan.ID),
	}
	perpOrder := &domain.Order{
		User:          plan.User,
		PlanID:        plan.ID,
		LegID:         domain.LegPerp,
		Exchange:      decision.Exchange,
		AccountType:   domain.AccountPerp,
		Symbol:        cc.Symbol,
		Side:          perpSide,
		OrderType:     domain.OrderTypeMarket,
		Quantity:      quantity,
		Status:        domain.OrderPending,
		ClientOrderID: fmt.Sprintf("%s-perp", plan.ID),
	}
	return []*domain.Order{spotOrder, perpOrder}, nil
}

func (s *Service) dispatchTriangle(ctx context.Context, plan *domain.ExecutionPlan, decision domain.Decision) ([]*domain.Order, error) {
	tri := decision.Opportunity.Triangular
	if tri == nil {
		return nil, apperr.InvalidArgumentf("triangle decision missing triangular opportunity")
	}
	if len(tri.Symbols) != 3 || len(tri.Path) != 4 {
		return nil, apperr.InvalidArgumentf("triangle requires exactly 3 symbols and a 4-node path, got %d symbols / %d nodes", len(tri.Symbols), len(tri.Path))
	}

	legIDs := []domain.LegID{domain.LegOne, domain.LegTwo, domain.LegThree}
	amount := decimal.NewFromFloat(decision.EstimatedExposure) // in Path[0] currency units

	orders := make([]*domain.Order, 0, 3)
	for i := 0; i < 3; i++ {
		symbol := tri.Symbols[i]
		from, to := tri.Path[i], tri.Path[i+1]
		base := domain.BaseCurrency(symbol)
		quote := domain.QuoteCurrency(symbol)

		side, ok := legSide(from, to, base, quote)
		if !ok {
			return nil, apperr.InvalidArgumentf("leg %d: symbol %s does not connect %s -> %s", i+1, symbol, from, to)
		}

		tob, ok, err := s.marketdata.GetOrderBookTOB(ctx, decision.Exchange, symbol)
		if err != nil {
			return nil, apperr.Transientf(err, "read order book for %s", symbol)
		}
		if !ok {
			return nil, apperr.Transientf(nil, "no order book available for %s", symbol)
		}
		price := executablePrice(tob, side)
		if price.IsZero() {
			return nil, apperr.Transientf(nil, "no price available for %s", symbol)
		}

		var quantity, forward decimal.Decimal
		if side == domain.SideBuy {
			quantity = amount.Div(price) // base units bought with `amount` of quote
			forward = quantity
		} else {
			quantity = amount // base units sold
			forward = amount.Mul(price)
		}

		orders = append(orders, &domain.Order{
			User:          plan.User,
			PlanID:        plan.ID,
			LegID:         legIDs[i],
			Exchange:      decision.Exchange,
			AccountType:   domain.AccountSpot,
			Symbol:        symbol,
			Side:          side,
			OrderType:     domain.OrderTypeMarket,
			Quantity:      quantity,
			Status:        domain.OrderPending,
			ClientOrderID: fmt.Sprintf("%s-%s", plan.ID, legIDs[i]),
		})
		amount = forward
	}
	return orders, nil
}

// legSide determines whether traversing from -> to across a BASE/QUOTE
// symbol is a buy (spending quote to acquire base) or a sell (spending
// base to acquire quote).
func legSide(from, to, base, quote string) (domain.Side, bool) {
	if from == quote && to == base {
		return domain.SideBuy, true
	}
	if from == base && to == quote {
		return domain.SideSell, true
	}
	return "", false
}

// executablePrice picks the ask for a buy and the bid for a sell
// (spec.md section 4.G.6's "pick executable price").
func executablePrice(tob domain.OrderBookTOB, side domain.Side) decimal.Decimal {
	if side == domain.SideBuy {
		return tob.AskPrice
	}
	return tob.BidPrice
}
