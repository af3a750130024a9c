// Package oms implements the Order Management Service: translating a
// decision into a multi-leg execution plan, placing orders (paper or
// live), reconciling until terminal, and recording PnL (spec.md section
// 4.G). A single code path renders both trading modes, switching only
// the table-name prefix and the order sink (spec.md section 9).
package oms

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/inarbit/internal/apperr"
	"github.com/aristath/inarbit/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository is the relational-store collaborator for one trading mode;
// every method operates exclusively on that mode's table family.
type Repository struct {
	db     *sql.DB
	prefix string // "paper_" or "live_"
}

func NewRepository(db *sql.DB, tradingMode domain.TradingMode) *Repository {
	prefix := "paper_"
	if tradingMode == domain.ModeLive {
		prefix = "live_"
	}
	return &Repository{db: db, prefix: prefix}
}

func (r *Repository) table(name string) string { return r.prefix + name }

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error - the scope spec.md section 5 requires for a fill
// insert plus its position/ledger projection.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Fatalf(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Fatalf(err, "commit transaction")
	}
	return nil
}

// CreatePlan inserts a new execution plan in status=running.
func (r *Repository) CreatePlan(ctx context.Context, plan *domain.ExecutionPlan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	legsJSON, err := json.Marshal(plan.Legs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, user_id, exchange, kind, status, legs, started_at, finished_at, error_message) VALUES (?,?,?,?,?,?,?,?,?)`, r.table("execution_plans")),
		plan.ID, plan.User, plan.Exchange, string(plan.Kind), string(plan.Status), string(legsJSON), plan.StartedAt.UnixMilli(), nullTime(plan.FinishedAt), plan.ErrorMessage,
	)
	return err
}

// UpdatePlan persists status/legs/finished_at/error_message for an
// existing plan.
func (r *Repository) UpdatePlan(ctx context.Context, plan *domain.ExecutionPlan) error {
	legsJSON, err := json.Marshal(plan.Legs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET status=?, legs=?, finished_at=?, error_message=? WHERE id=?`, r.table("execution_plans")),
		string(plan.Status), string(legsJSON), nullTime(plan.FinishedAt), plan.ErrorMessage, plan.ID,
	)
	return err
}

// GetPlan loads a plan by id, scoped to user ownership.
func (r *Repository) GetPlan(ctx context.Context, userID, planID string) (*domain.ExecutionPlan, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, user_id, exchange, kind, status, legs, started_at, finished_at, error_message FROM %s WHERE id=? AND user_id=?`, r.table("execution_plans")),
		planID, userID,
	)
	var plan domain.ExecutionPlan
	var kind, status, legsJSON string
	var startedAt int64
	var finishedAt sql.NullInt64
	var errMsg sql.NullString
	if err := row.Scan(&plan.ID, &plan.User, &plan.Exchange, &kind, &status, &legsJSON, &startedAt, &finishedAt, &errMsg); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFoundf("plan %s not found", planID)
		}
		return nil, err
	}
	plan.Kind = domain.StrategyKind(kind)
	plan.Status = domain.PlanStatus(status)
	plan.StartedAt = time.UnixMilli(startedAt)
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64)
		plan.FinishedAt = &t
	}
	plan.ErrorMessage = errMsg.String
	if err := json.Unmarshal([]byte(legsJSON), &plan.Legs); err != nil {
		return nil, apperr.Fatalf(err, "decode plan legs for %s", planID)
	}
	return &plan, nil
}

// CreateOrder inserts an order, resolving the spec.md section 8.I3 /
// section 5 duplicate-client-order-id rule locally: if a row with the
// same (user_id, client_order_id) already exists, its id is returned
// instead of raising - this is a Conflict, never surfaced to the caller.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) (bool, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	metadataJSON, err := json.Marshal(order.Metadata)
	if err != nil {
		return false, err
	}
	_, err = r.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, user_id, plan_id, leg_id, exchange, account_type, symbol, side, order_type, quantity, price, status, filled_quantity, average_price, fee, fee_currency, client_order_id, external_order_id, metadata)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, r.table("orders")),
		order.ID, order.User, order.PlanID, string(order.LegID), order.Exchange, string(order.AccountType), order.Symbol, string(order.Side), string(order.OrderType),
		order.Quantity.String(), nullableDecimalString(order.Price), string(order.Status),
		order.FilledQuantity.String(), order.AveragePrice.String(), order.Fee.String(), order.FeeCurrency,
		order.ClientOrderID, order.ExternalOrderID, string(metadataJSON),
	)
	if err == nil {
		return true, nil
	}
	if isUniqueViolation(err) {
		existing, getErr := r.GetOrderByClientOrderID(ctx, order.User, order.ClientOrderID)
		if getErr != nil {
			return false, getErr
		}
		*order = *existing
		return false, nil
	}
	return false, err
}

func (r *Repository) GetOrderByClientOrderID(ctx context.Context, userID, clientOrderID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE user_id=? AND client_order_id=?`, orderColumns, r.table("orders")),
		userID, clientOrderID,
	)
	return scanOrder(row)
}

// GetOrder loads an order by id, scoped to user ownership.
func (r *Repository) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id=? AND user_id=?`, orderColumns, r.table("orders")),
		orderID, userID,
	)
	return scanOrder(row)
}

// OrdersForPlan loads every order belonging to a plan, ordered by
// insertion (leg placement order).
func (r *Repository) OrdersForPlan(ctx context.Context, planID string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE plan_id=? ORDER BY rowid`, orderColumns, r.table("orders")),
		planID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Order
	for rows.Next() {
		order, err := scanOrderRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

// UpdateOrderState persists a status/fill/fee update for an order.
func (r *Repository) UpdateOrderState(ctx context.Context, order *domain.Order) error {
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET status=?, filled_quantity=?, average_price=?, fee=?, fee_currency=?, external_order_id=? WHERE id=?`, r.table("orders")),
		string(order.Status), order.FilledQuantity.String(), order.AveragePrice.String(), order.Fee.String(), order.FeeCurrency, order.ExternalOrderID, order.ID,
	)
	return err
}

const orderColumns = `id, user_id, plan_id, leg_id, exchange, account_type, symbol, side, order_type, quantity, price, status, filled_quantity, average_price, fee, fee_currency, client_order_id, external_order_id, metadata`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row *sql.Row) (*domain.Order, error) {
	order, err := scanOrderGeneric(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("order not found")
	}
	return order, err
}

func scanOrderRows(rows *sql.Rows) (*domain.Order, error) {
	return scanOrderGeneric(rows)
}

func scanOrderGeneric(s rowScanner) (*domain.Order, error) {
	var o domain.Order
	var legID, accountType, side, orderType, status, metadataJSON string
	var priceStr, quantityStr, filledStr, avgStr, feeStr sql.NullString
	var feeCurrency, externalOrderID sql.NullString
	if err := s.Scan(&o.ID, &o.User, &o.PlanID, &legID, &o.Exchange, &accountType, &o.Symbol, &side, &orderType,
		&quantityStr, &priceStr, &status, &filledStr, &avgStr, &feeStr, &feeCurrency, &o.ClientOrderID, &externalOrderID, &metadataJSON); err != nil {
		return nil, err
	}
	o.LegID = domain.LegID(legID)
	o.AccountType = domain.AccountType(accountType)
	o.Side = domain.Side(side)
	o.OrderType = domain.OrderType(orderType)
	o.Status = domain.OrderStatus(status)
	o.Quantity = mustDecimal(quantityStr.String)
	if priceStr.Valid {
		p := mustDecimal(priceStr.String)
		o.Price = &p
	}
	o.FilledQuantity = mustDecimal(filledStr.String)
	o.AveragePrice = mustDecimal(avgStr.String)
	o.Fee = mustDecimal(feeStr.String)
	o.FeeCurrency = feeCurrency.String
	o.ExternalOrderID = externalOrderID.String
	_ = json.Unmarshal([]byte(metadataJSON), &o.Metadata)
	return &o, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx, letting createFill run
// either standalone or inside the caller's transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateFill inserts a fill outside any caller-managed transaction.
func (r *Repository) CreateFill(ctx context.Context, fill *domain.Fill) (bool, error) {
	return r.createFill(ctx, r.db, fill)
}

// createFillTx inserts a fill within tx, for use alongside a same-transaction
// ledger projection (spec.md section 5).
func (r *Repository) createFillTx(ctx context.Context, tx *sql.Tx, fill *domain.Fill) (bool, error) {
	return r.createFill(ctx, tx, fill)
}

// createFill inserts a fill, deduped by external_trade_id (spec.md section
// 8.I3): a unique-constraint violation is treated as "already recorded",
// not an error.
func (r *Repository) createFill(ctx context.Context, exec execer, fill *domain.Fill) (bool, error) {
	if fill.ID == "" {
		fill.ID = uuid.NewString()
	}
	rawJSON, err := json.Marshal(fill.Raw)
	if err != nil {
		return false, err
	}
	_, err = exec.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, user_id, order_id, exchange, account_type, symbol, price, quantity, fee, fee_currency, external_trade_id, external_order_id, raw, created_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, r.table("fills")),
		fill.ID, fill.User, fill.OrderID, fill.Exchange, string(fill.AccountType), fill.Symbol,
		fill.Price.String(), fill.Quantity.String(), fill.Fee.String(), fill.FeeCurrency,
		fill.ExternalTradeID, fill.ExternalOrderID, string(rawJSON), fill.CreatedAt.UnixMilli(),
	)
	if err == nil {
		return true, nil
	}
	if isUniqueViolation(err) {
		return false, nil
	}
	return false, err
}

// FillsForOrder loads every fill recorded for an order.
func (r *Repository) FillsForOrder(ctx context.Context, orderID string) ([]*domain.Fill, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, user_id, order_id, exchange, account_type, symbol, price, quantity, fee, fee_currency, external_trade_id, external_order_id, raw, created_at FROM %s WHERE order_id=?`, r.table("fills")),
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Fill
	for rows.Next() {
		var f domain.Fill
		var accountType, rawJSON string
		var priceStr, qtyStr, feeStr string
		var createdAt int64
		if err := rows.Scan(&f.ID, &f.User, &f.OrderID, &f.Exchange, &accountType, &f.Symbol, &priceStr, &qtyStr, &feeStr, &f.FeeCurrency, &f.ExternalTradeID, &f.ExternalOrderID, &rawJSON, &createdAt); err != nil {
			return nil, err
		}
		f.AccountType = domain.AccountType(accountType)
		f.Price = mustDecimal(priceStr)
		f.Quantity = mustDecimal(qtyStr)
		f.Fee = mustDecimal(feeStr)
		f.CreatedAt = time.UnixMilli(createdAt)
		_ = json.Unmarshal([]byte(rawJSON), &f.Raw)
		out = append(out, &f)
	}
	return out, rows.Err()
}

// ExistingExternalTradeIDs returns the set of already-recorded trade ids
// for an order, used to skip re-creating fills on refresh (spec.md
// section 4.G refresh_order: "create new fills for any unseen
// external_trade_id").
func (r *Repository) ExistingExternalTradeIDs(ctx context.Context, orderID string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT external_trade_id FROM %s WHERE order_id=?`, r.table("fills")), orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// InsertPnL inserts one PnL row, deduped by the caller via the
// pnl:plan:{mode}:{plan_id} KV marker (spec.md section 4.G.PnL step 1).
func (r *Repository) InsertPnL(ctx context.Context, pnl *domain.PnLRecord) error {
	if pnl.ID == "" {
		pnl.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, plan_id, symbol, quote_currency, profit, profit_rate, total_notional, total_fee, kind, created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`, r.table("pnl")),
		pnl.ID, pnl.PlanID, nullableString(pnl.Symbol), nullableString(pnl.QuoteCurrency), pnl.Profit.String(), nullableFloat(pnl.ProfitRate),
		pnl.TotalNotional.String(), pnl.TotalFee.String(), string(pnl.Kind), pnl.CreatedAt.UnixMilli(),
	)
	return err
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func nullableDecimalString(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func mustDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return containsAny(msg, "UNIQUE constraint failed", "constraint failed: UNIQUE")
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if len(s) >= len(sub) {
			for i := 0; i+len(sub) <= len(s); i++ {
				if s[i:i+len(sub)] == sub {
					return true
				}
			}
		}
	}
	return false
}
