// Package ledger implements the position/ledger side effects spec.md
// section 4.H describes as triggered by every fill creation: weighted
// average position updates and append-only ledger entries per account
// type, plus the paper simulation balance update.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/inarbit/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Projector applies position/ledger updates within the same SQL
// transaction scope the caller opened for the fill insert (spec.md
// section 5: "position/ledger updates happen in the same logical
// operation as the fill insert").
type Projector struct {
	tablePrefix   string // "paper_" or "live_"
	isPaper       bool
	simulationQuote string // paper simulation balances track only this asset, e.g. "USDT"
}

func NewProjector(tradingMode domain.TradingMode, simulationQuote string) *Projector {
	prefix := "paper_"
	if tradingMode == domain.ModeLive {
		prefix = "live_"
	}
	return &Projector{tablePrefix: prefix, isPaper: tradingMode == domain.ModePaper, simulationQuote: simulationQuote}
}

// applySimulationBalance implements spec.md section 4.G's "If paper and
// quote matches the simulation's configured quote, apply the quote delta
// to simulation balance" rule.
func (p *Projector) applySimulationBalance(ctx context.Context, tx *sql.Tx, userID, asset string, delta decimal.Decimal) error {
	if !p.isPaper || asset != p.simulationQuote || p.simulationQuote == "" {
		return nil
	}
	row := tx.QueryRowContext(ctx, `SELECT balance FROM paper_balances WHERE user_id=? AND asset=?`, userID, asset)
	var balStr string
	current := decimal.Zero
	if err := row.Scan(&balStr); err == nil {
		current, _ = decimal.NewFromString(balStr)
	} else if err != sql.ErrNoRows {
		return err
	}
	next := current.Add(delta)
	_, err := tx.ExecContext(ctx, `INSERT INTO paper_balances (user_id, asset, balance) VALUES (?,?,?)
		ON CONFLICT(user_id, asset) DO UPDATE SET balance=excluded.balance`, userID, asset, next.String())
	return err
}

// ApplySpotFill implements the spot buy/sell ledger rules: base delta
// +/-qty, quote delta -/+notional, with a third ledger entry when the
// fee currency matches neither leg.
func (p *Projector) ApplySpotFill(ctx context.Context, tx *sql.Tx, userID, exchange string, fill domain.Fill, side domain.Side, symbol string) error {
	base := domain.BaseCurrency(symbol)
	quote := domain.QuoteCurrency(symbol)
	notional := fill.Price.Mul(fill.Quantity)

	var baseDelta, quoteDelta decimal.Decimal
	if side == domain.SideBuy {
		baseDelta = fill.Quantity
		quoteDelta = notional.Neg()
	} else {
		baseDelta = fill.Quantity.Neg()
		quoteDelta = notional
	}

	if !fill.Fee.IsZero() {
		switch fill.FeeCurrency {
		case base:
			baseDelta = baseDelta.Sub(fill.Fee)
		case quote:
			quoteDelta = quoteDelta.Sub(fill.Fee)
		default:
			if fill.FeeCurrency != "" {
				if err := p.insertLedgerEntry(ctx, tx, userID, exchange, domain.AccountSpot, fill.FeeCurrency, fill.Fee.Neg(), domain.RefTypeFee, fill.ID); err != nil {
					return err
				}
			}
		}
	}

	if err := p.insertLedgerEntry(ctx, tx, userID, exchange, domain.AccountSpot, base, baseDelta, domain.RefTypeFill, fill.ID); err != nil {
		return err
	}
	if err := p.insertLedgerEntry(ctx, tx, userID, exchange, domain.AccountSpot, quote, quoteDelta, domain.RefTypeFill, fill.ID); err != nil {
		return err
	}

	if err := p.updatePosition(ctx, tx, userID, exchange, domain.AccountSpot, base, baseDelta, fill.Price); err != nil {
		return err
	}
	return p.applySimulationBalance(ctx, tx, userID, quote, quoteDelta)
}

// ApplyPerpFill implements the perp ledger rule: the position instrument
// is the symbol itself; signed delta is +qty for buy, -qty for sell;
// only a fee ledger entry is recorded (no base/quote split).
func (p *Projector) ApplyPerpFill(ctx context.Context, tx *sql.Tx, userID, exchange, symbol string, fill domain.Fill, side domain.Side) error {
	delta := fill.Quantity
	if side == domain.SideSell {
		delta = delta.Neg()
	}
	if !fill.Fee.IsZero() && fill.FeeCurrency != "" {
		if err := p.insertLedgerEntry(ctx, tx, userID, exchange, domain.AccountPerp, fill.FeeCurrency, fill.Fee.Neg(), domain.RefTypeFee, fill.ID); err != nil {
			return err
		}
	}
	return p.updatePosition(ctx, tx, userID, exchange, domain.AccountPerp, symbol, delta, fill.Price)
}

func (p *Projector) insertLedgerEntry(ctx context.Context, tx *sql.Tx, userID, exchange string, accountType domain.AccountType, asset string, delta decimal.Decimal, refType domain.LedgerRefType, refID string) error {
	_, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %sledger_entries (id, user_id, exchange, account_type, asset, signed_delta, ref_type, ref_id, metadata, created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`, p.tablePrefix),
		uuid.NewString(), userID, exchange, string(accountType), asset, delta.String(), string(refType), refID, "{}", time.Now().UnixMilli(),
	)
	return err
}

// updatePosition implements the position update rules from spec.md
// section 4.G: new_qty = old_qty + delta; new_avg is null iff new_qty
// is zero, the fill price if old_qty was zero or the sign flipped, the
// weighted average if the sign is unchanged, and old_avg on a net
// reduction without a flip.
func (p *Projector) updatePosition(ctx context.Context, tx *sql.Tx, userID, exchange string, accountType domain.AccountType, instrument string, delta, price decimal.Decimal) error {
	row := tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT quantity, average_entry_price FROM %spositions WHERE user_id=? AND exchange=? AND account_type=? AND instrument=?`, p.tablePrefix),
		userID, exchange, string(accountType), instrument,
	)
	var qtyStr string
	var avgStr sql.NullString
	oldQty := decimal.Zero
	var oldAvg *decimal.Decimal
	if err := row.Scan(&qtyStr, &avgStr); err == nil {
		oldQty, _ = decimal.NewFromString(qtyStr)
		if avgStr.Valid {
			avg, _ := decimal.NewFromString(avgStr.String)
			oldAvg = &avg
		}
	} else if err != sql.ErrNoRows {
		return err
	}

	newQty := oldQty.Add(delta)
	newAvg := nextAverage(oldQty, oldAvg, delta, price, newQty)

	var avgValue any
	if newAvg != nil {
		avgValue = newAvg.String()
	}
	_, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %spositions (user_id, exchange, account_type, instrument, quantity, average_entry_price) VALUES (?,?,?,?,?,?)
			ON CONFLICT(user_id, exchange, account_type, instrument) DO UPDATE SET quantity=excluded.quantity, average_entry_price=excluded.average_entry_price`, p.tablePrefix),
		userID, exchange, string(accountType), instrument, newQty.String(), avgValue,
	)
	return err
}

func nextAverage(oldQty decimal.Decimal, oldAvg *decimal.Decimal, delta, price, newQty decimal.Decimal) *decimal.Decimal {
	if newQty.IsZero() {
		return nil
	}
	if oldQty.IsZero() {
		p := price
		return &p
	}
	flipped := oldQty.Sign() != newQty.Sign()
	if flipped {
		p := price
		return &p
	}
	sameSign := (oldQty.Sign() > 0) == (delta.Sign() > 0) || delta.IsZero()
	if sameSign {
		if oldAvg == nil {
			p := price
			return &p
		}
		weighted := oldQty.Abs().Mul(*oldAvg).Add(delta.Abs().Mul(price)).Div(newQty.Abs())
		return &weighted
	}
	// Net reduction without a flip: average entry is unchanged.
	return oldAvg
}
