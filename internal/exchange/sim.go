package exchange

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/aristath/inarbit/internal/apperr"
	"github.com/aristath/inarbit/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceLookup resolves the fill price a SimExchange uses for a market
// order - normally the OMS wires this to the market-data repository's
// mid-price read so paper fills track the real book.
type PriceLookup func(accountType domain.AccountType, symbol string) (decimal.Decimal, error)

// SimExchange is a deterministic paper-trading double: every market
// order fills immediately, in full, at the looked-up price, with a
// configurable taker fee rate. It implements Adapter so the OMS's paper
// path is the exact same code as its live path, switching only which
// Adapter gets wired in (spec.md section 9 "paper vs live purity").
type SimExchange struct {
	name    string
	lookup  PriceLookup
	feeRate decimal.Decimal

	mu     sync.Mutex
	orders map[string]*simOrder
}

type simOrder struct {
	accountType domain.AccountType
	symbol      string
	side        domain.Side
	quantity    decimal.Decimal
	price       decimal.Decimal
	fee         decimal.Decimal
	status      domain.OrderStatus
}

// NewSimExchange builds a paper adapter over a price source.
func NewSimExchange(name string, lookup PriceLookup, feeRate decimal.Decimal) *SimExchange {
	return &SimExchange{name: name, lookup: lookup, feeRate: feeRate, orders: make(map[string]*simOrder)}
}

func (s *SimExchange) Name() string { return s.name }

func (s *SimExchange) LoadMarkets(ctx context.Context) error { return nil }

func (s *SimExchange) FetchTicker(ctx context.Context, accountType domain.AccountType, symbol string) (Ticker, error) {
	price, err := s.lookup(accountType, symbol)
	if err != nil {
		return Ticker{}, err
	}
	return Ticker{Bid: price, Ask: price, Last: price}, nil
}

func (s *SimExchange) FetchTickers(ctx context.Context, accountType domain.AccountType, symbols []string) (map[string]Ticker, error) {
	out := make(map[string]Ticker, len(symbols))
	for _, sym := range symbols {
		t, err := s.FetchTicker(ctx, accountType, sym)
		if err != nil {
			continue
		}
		out[sym] = t
	}
	return out, nil
}

func (s *SimExchange) FetchOrderBook(ctx context.Context, accountType domain.AccountType, symbol string) (OrderBookLevel1, error) {
	price, err := s.lookup(accountType, symbol)
	if err != nil {
		return OrderBookLevel1{}, err
	}
	return OrderBookLevel1{BidPrice: price, AskPrice: price, BidSize: decimal.NewFromInt(1), AskSize: decimal.NewFromInt(1)}, nil
}

func (s *SimExchange) FetchFundingRate(ctx context.Context, symbol string) (FundingRate, error) {
	return FundingRate{Rate: decimal.Zero}, nil
}

// CreateOrder fills the order immediately and in full at the looked-up
// price (or at the requested price for a limit order that carries one),
// charging feeRate * notional in the quote currency.
func (s *SimExchange) CreateOrder(ctx context.Context, accountType domain.AccountType, symbol string, side domain.Side, orderType domain.OrderType, quantity decimal.Decimal, price *decimal.Decimal, clientOrderID string) (OrderResult, error) {
	fillPrice, err := s.lookup(accountType, symbol)
	if err != nil {
		return OrderResult{}, apperr.Transientf(err, "sim exchange %s: price lookup for %s", s.name, symbol)
	}
	if price != nil && orderType == domain.OrderTypeLimit {
		fillPrice = *price
	}
	fee := quantity.Mul(fillPrice).Mul(s.feeRate)

	externalID := uuid.NewString()
	s.mu.Lock()
	s.orders[externalID] = &simOrder{
		accountType: accountType, symbol: symbol, side: side,
		quantity: quantity, price: fillPrice, fee: fee, status: domain.OrderFilled,
	}
	s.mu.Unlock()

	return OrderResult{
		ExternalOrderID: externalID,
		Status:          domain.OrderFilled,
		FilledQuantity:  quantity,
		AveragePrice:    fillPrice,
		Fee:             fee,
		FeeCurrency:     domain.QuoteCurrency(symbol),
	}, nil
}

func (s *SimExchange) FetchOrder(ctx context.Context, accountType domain.AccountType, symbol, externalOrderID string) (OrderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[externalOrderID]
	if !ok {
		return OrderState{}, apperr.NotFoundf("sim exchange %s: unknown order %s", s.name, externalOrderID)
	}
	return OrderState{Status: o.status, FilledQuantity: o.quantity, AveragePrice: o.price, Fee: o.fee}, nil
}

// CancelOrder is a no-op success: simulated orders fill synchronously in
// CreateOrder, so by the time a cancel could race them they are terminal.
func (s *SimExchange) CancelOrder(ctx context.Context, accountType domain.AccountType, symbol, externalOrderID string) error {
	return nil
}

// FetchFillsForOrder synthesizes one deterministic fill per sim order,
// using the same external_trade_id derivation the live path uses when an
// exchange omits its own trade id (spec.md section 4.G).
func (s *SimExchange) FetchFillsForOrder(ctx context.Context, accountType domain.AccountType, symbol, externalOrderID string) ([]Fill, error) {
	s.mu.Lock()
	o, ok := s.orders[externalOrderID]
	s.mu.Unlock()
	if !ok {
		return nil, apperr.NotFoundf("sim exchange %s: unknown order %s", s.name, externalOrderID)
	}
	return []Fill{{
		ExternalTradeID: SyntheticExternalTradeID(externalOrderID, 0, o.price, o.quantity, o.fee),
		ExternalOrderID: externalOrderID,
		Price:           o.price,
		Quantity:        o.quantity,
		Fee:             o.fee,
		FeeCurrency:     domain.QuoteCurrency(symbol),
		Raw:             map[string]any{"simulated": true},
	}}, nil
}

// SyntheticExternalTradeID derives a deterministic trade id via
// SHA-256 over {external_order_id, index, price, qty, fee, ts=0} when a
// venue doesn't return one of its own, per spec.md section 4.G. ts is
// always 0: the function takes no timestamp, so sim fills and the REST
// adapter's id-less fills hash the same fixed value.
func SyntheticExternalTradeID(externalOrderID string, index int, price, qty, fee decimal.Decimal) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s|%s|%s|%d", externalOrderID, index, price.String(), qty.String(), fee.String(), 0)))
	return fmt.Sprintf("%x", h)
}
