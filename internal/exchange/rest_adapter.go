package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/aristath/inarbit/internal/apperr"
	"github.com/aristath/inarbit/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// restJob is one queued HTTP call, rate-limited the same way the
// teacher's tradernet SDK client serializes requests through a single
// worker goroutine rather than letting callers hit the venue directly.
type restJob struct {
	do       func() (any, error)
	resultCh chan restResult
}

type restResult struct {
	data any
	err  error
}

// RESTAdapter implements Adapter against a ccxt-shaped REST exchange:
// load_markets/fetch_ticker/fetch_order_book/fetch_funding_rate/
// create_market_order/fetch_order/cancel_order (spec.md section 9's
// exchange adapter contract), serialized through a rate-limiting worker.
type RESTAdapter struct {
	name       string
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	log        zerolog.Logger

	minInterval time.Duration
	queue       chan restJob
	stopChan    chan struct{}
	workerDone  chan struct{}
	once        sync.Once

	mu      sync.Mutex
	markets map[string]bool
}

// RESTAdapterConfig configures one venue's REST adapter.
type RESTAdapterConfig struct {
	Name        string
	BaseURL     string
	APIKey      string
	APISecret   string
	MinInterval time.Duration
}

// NewRESTAdapter builds a rate-limited REST adapter and starts its
// worker goroutine. Callers must eventually call Close.
func NewRESTAdapter(cfg RESTAdapterConfig, log zerolog.Logger) *RESTAdapter {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	a := &RESTAdapter{
		name:        cfg.Name,
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		apiSecret:   cfg.APISecret,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		log:         log.With().Str("component", "exchange").Str("exchange", cfg.Name).Logger(),
		minInterval: cfg.MinInterval,
		queue:       make(chan restJob, 256),
		stopChan:    make(chan struct{}),
		workerDone:  make(chan struct{}),
		markets:     make(map[string]bool),
	}
	go a.worker()
	return a
}

func (a *RESTAdapter) Name() string { return a.name }

// Close stops the rate-limiting worker, draining any in-flight jobs.
func (a *RESTAdapter) Close() {
	a.once.Do(func() {
		close(a.stopChan)
		close(a.queue)
		<-a.workerDone
	})
}

func (a *RESTAdapter) worker() {
	defer close(a.workerDone)
	var last time.Time
	first := true
	run := func(job restJob) {
		if !first {
			if elapsed := time.Since(last); elapsed < a.minInterval {
				time.Sleep(a.minInterval - elapsed)
			}
		}
		first = false
		data, err := job.do()
		last = time.Now()
		job.resultCh <- restResult{data: data, err: err}
	}
	for {
		select {
		case <-a.stopChan:
			for {
				select {
				case job, ok := <-a.queue:
					if !ok {
						return
					}
					run(job)
				default:
					return
				}
			}
		case job, ok := <-a.queue:
			if !ok {
				return
			}
			run(job)
		}
	}
}

func (a *RESTAdapter) call(ctx context.Context, do func() (any, error)) (any, error) {
	resultCh := make(chan restResult, 1)
	select {
	case a.queue <- restJob{do: do, resultCh: resultCh}:
	case <-a.stopChan:
		return nil, apperr.Fatalf(nil, "exchange %s: adapter closed", a.name)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case result := <-resultCh:
		return result.data, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolveSymbol applies the perp ":QUOTE" suffix convention spec.md
// section 9 calls out, trying the bare symbol first on spot.
func resolveSymbol(accountType domain.AccountType, symbol string) string {
	if accountType != domain.AccountPerp {
		return symbol
	}
	return symbol + ":" + domain.QuoteCurrency(symbol)
}

func (a *RESTAdapter) signedRequest(ctx context.Context, method, path string, query url.Values, body map[string]any) (map[string]any, error) {
	raw, err := a.call(ctx, func() (any, error) {
		reqURL := a.baseURL + path
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}
		var bodyReader io.Reader
		var payload []byte
		if body != nil {
			payload, _ = json.Marshal(body)
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if a.apiKey != "" {
			ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
			mac := hmac.New(sha256.New, []byte(a.apiSecret))
			mac.Write([]byte(ts + method + path + string(payload)))
			sig := hex.EncodeToString(mac.Sum(nil))
			req.Header.Set("X-API-KEY", a.apiKey)
			req.Header.Set("X-API-TIMESTAMP", ts)
			req.Header.Set("X-API-SIGNATURE", sig)
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, apperr.Transientf(err, "exchange %s: request %s %s", a.name, method, path)
		}
		defer resp.Body.Close()
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, apperr.Transientf(err, "exchange %s: read response", a.name)
		}
		if resp.StatusCode >= 500 {
			return nil, apperr.Transientf(fmt.Errorf("status %d", resp.StatusCode), "exchange %s: %s", a.name, string(respBody))
		}
		if resp.StatusCode >= 400 {
			return nil, apperr.InvalidArgumentf("exchange %s: status %d: %s", a.name, resp.StatusCode, string(respBody))
		}
		var decoded map[string]any
		if len(respBody) > 0 {
			if err := json.Unmarshal(respBody, &decoded); err != nil {
				return nil, apperr.Transientf(err, "exchange %s: decode response", a.name)
			}
		}
		return decoded, nil
	})
	if err != nil {
		return nil, err
	}
	m, _ := raw.(map[string]any)
	return m, nil
}

func (a *RESTAdapter) LoadMarkets(ctx context.Context) error {
	a.mu.Lock()
	loaded := len(a.markets) > 0
	a.mu.Unlock()
	if loaded {
		return nil
	}
	resp, err := a.signedRequest(ctx, http.MethodGet, "/markets", nil, nil)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if symbols, ok := resp["symbols"].([]any); ok {
		for _, s := range symbols {
			if name, ok := s.(string); ok {
				a.markets[name] = true
			}
		}
	}
	return nil
}

func decimalField(m map[string]any, key string) decimal.Decimal {
	v, ok := m[key]
	if !ok {
		return decimal.Zero
	}
	switch t := v.(type) {
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(t)
	default:
		return decimal.Zero
	}
}

func (a *RESTAdapter) FetchTicker(ctx context.Context, accountType domain.AccountType, symbol string) (Ticker, error) {
	resp, err := a.signedRequest(ctx, http.MethodGet, "/ticker", url.Values{"symbol": {resolveSymbol(accountType, symbol)}}, nil)
	if err != nil {
		return Ticker{}, err
	}
	return Ticker{
		Bid:          decimalField(resp, "bid"),
		Ask:          decimalField(resp, "ask"),
		Last:         decimalField(resp, "last"),
		QuoteVolume:  decimalField(resp, "quoteVolume"),
	}, nil
}

func (a *RESTAdapter) FetchTickers(ctx context.Context, accountType domain.AccountType, symbols []string) (map[string]Ticker, error) {
	out := make(map[string]Ticker, len(symbols))
	for _, sym := range symbols {
		t, err := a.FetchTicker(ctx, accountType, sym)
		if err != nil {
			a.log.Warn().Err(err).Str("symbol", sym).Msg("fetch ticker failed in batch")
			continue
		}
		out[sym] = t
	}
	return out, nil
}

func (a *RESTAdapter) FetchOrderBook(ctx context.Context, accountType domain.AccountType, symbol string) (OrderBookLevel1, error) {
	resp, err := a.signedRequest(ctx, http.MethodGet, "/orderbook", url.Values{"symbol": {resolveSymbol(accountType, symbol)}, "limit": {"1"}}, nil)
	if err != nil {
		return OrderBookLevel1{}, err
	}
	bids, _ := resp["bids"].([]any)
	asks, _ := resp["asks"].([]any)
	var tob OrderBookLevel1
	if len(bids) > 0 {
		if lvl, ok := bids[0].([]any); ok && len(lvl) == 2 {
			tob.BidPrice = toDecimal(lvl[0])
			tob.BidSize = toDecimal(lvl[1])
		}
	}
	if len(asks) > 0 {
		if lvl, ok := asks[0].([]any); ok && len(lvl) == 2 {
			tob.AskPrice = toDecimal(lvl[0])
			tob.AskSize = toDecimal(lvl[1])
		}
	}
	return tob, nil
}

func toDecimal(v any) decimal.Decimal {
	switch t := v.(type) {
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(t)
	default:
		return decimal.Zero
	}
}

func (a *RESTAdapter) FetchFundingRate(ctx context.Context, symbol string) (FundingRate, error) {
	resp, err := a.signedRequest(ctx, http.MethodGet, "/funding-rate", url.Values{"symbol": {resolveSymbol(domain.AccountPerp, symbol)}}, nil)
	if err != nil {
		return FundingRate{}, err
	}
	fr := FundingRate{
		Rate:              decimalField(resp, "fundingRate"),
		NextFundingTimeMs: int64(asFloat(resp["nextFundingTime"])),
	}
	if _, ok := resp["markPrice"]; ok {
		mark := decimalField(resp, "markPrice")
		fr.Mark = &mark
	}
	if _, ok := resp["indexPrice"]; ok {
		index := decimalField(resp, "indexPrice")
		fr.Index = &index
	}
	return fr, nil
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

func (a *RESTAdapter) CreateOrder(ctx context.Context, accountType domain.AccountType, symbol string, side domain.Side, orderType domain.OrderType, quantity decimal.Decimal, price *decimal.Decimal, clientOrderID string) (OrderResult, error) {
	body := map[string]any{
		"symbol":        resolveSymbol(accountType, symbol),
		"side":          string(side),
		"type":          string(orderType),
		"amount":        quantity.String(),
		"clientOrderId": clientOrderID,
	}
	if price != nil {
		body["price"] = price.String()
	}
	resp, err := a.signedRequest(ctx, http.MethodPost, "/order", nil, body)
	if err != nil {
		return OrderResult{}, err
	}
	status, err := parseOrderStatus(resp["status"])
	if err != nil {
		status = domain.OrderPending
	}
	return OrderResult{
		ExternalOrderID: fmt.Sprintf("%v", resp["id"]),
		Status:          status,
		FilledQuantity:  decimalField(resp, "filled"),
		AveragePrice:    extractAveragePrice(resp),
		Fee:             sumFees(resp),
		FeeCurrency:     singleFeeCurrency(resp),
	}, nil
}

func (a *RESTAdapter) FetchOrder(ctx context.Context, accountType domain.AccountType, symbol, externalOrderID string) (OrderState, error) {
	resp, err := a.signedRequest(ctx, http.MethodGet, "/order", url.Values{"id": {externalOrderID}, "symbol": {resolveSymbol(accountType, symbol)}}, nil)
	if err != nil {
		return OrderState{}, err
	}
	status, statusErr := parseOrderStatus(resp["status"])
	if statusErr != nil {
		return OrderState{}, statusErr
	}
	return OrderState{
		Status:         status,
		FilledQuantity: decimalField(resp, "filled"),
		AveragePrice:   extractAveragePrice(resp),
		Fee:            sumFees(resp),
		FeeCurrency:    singleFeeCurrency(resp),
	}, nil
}

func (a *RESTAdapter) CancelOrder(ctx context.Context, accountType domain.AccountType, symbol, externalOrderID string) error {
	_, err := a.signedRequest(ctx, http.MethodDelete, "/order", url.Values{"id": {externalOrderID}, "symbol": {resolveSymbol(accountType, symbol)}}, nil)
	return err
}

func (a *RESTAdapter) FetchFillsForOrder(ctx context.Context, accountType domain.AccountType, symbol, externalOrderID string) ([]Fill, error) {
	resp, err := a.signedRequest(ctx, http.MethodGet, "/fills", url.Values{"orderId": {externalOrderID}, "symbol": {resolveSymbol(accountType, symbol)}}, nil)
	if err != nil {
		return nil, err
	}
	rawFills, _ := resp["fills"].([]any)
	fills := make([]Fill, 0, len(rawFills))
	for i, rf := range rawFills {
		m, ok := rf.(map[string]any)
		if !ok {
			continue
		}
		price := decimalField(m, "price")
		qty := decimalField(m, "amount")
		fee := decimalField(m, "fee")
		tradeID := fmt.Sprintf("%v", m["id"])
		if tradeID == "" || tradeID == "<nil>" {
			tradeID = SyntheticExternalTradeID(externalOrderID, i, price, qty, fee)
		}
		raw := make(map[string]any, len(m))
		for k, v := range m {
			raw[k] = v
		}
		fills = append(fills, Fill{
			ExternalTradeID: tradeID,
			ExternalOrderID: externalOrderID,
			Price:           price,
			Quantity:        qty,
			Fee:             fee,
			FeeCurrency:     fmt.Sprintf("%v", m["feeCurrency"]),
			Raw:             raw,
			CreatedAt:       time.Now(),
		})
	}
	return fills, nil
}

func parseOrderStatus(v any) (domain.OrderStatus, error) {
	s, _ := v.(string)
	switch s {
	case "open", "new", "pending":
		return domain.OrderPending, nil
	case "partially_filled":
		return domain.OrderPartiallyFilled, nil
	case "closed", "filled":
		return domain.OrderFilled, nil
	case "canceled", "cancelled":
		return domain.OrderCancelled, nil
	case "rejected":
		return domain.OrderRejected, nil
	default:
		return "", apperr.InvalidArgumentf("unrecognized order status %q", s)
	}
}

// extractAveragePrice implements spec.md section 9's uniform extractor:
// VWAP from fills if present, else order.average, else cost/filled.
func extractAveragePrice(resp map[string]any) decimal.Decimal {
	if rawFills, ok := resp["fills"].([]any); ok && len(rawFills) > 0 {
		var notional, qty decimal.Decimal
		for _, rf := range rawFills {
			m, ok := rf.(map[string]any)
			if !ok {
				continue
			}
			p := decimalField(m, "price")
			q := decimalField(m, "amount")
			notional = notional.Add(p.Mul(q))
			qty = qty.Add(q)
		}
		if !qty.IsZero() {
			return notional.Div(qty)
		}
	}
	if avg, ok := resp["average"]; ok && avg != nil {
		return decimalField(resp, "average")
	}
	cost := decimalField(resp, "cost")
	filled := decimalField(resp, "filled")
	if filled.IsZero() {
		return decimal.Zero
	}
	return cost.Div(filled)
}

func sumFees(resp map[string]any) decimal.Decimal {
	if rawFills, ok := resp["fills"].([]any); ok && len(rawFills) > 0 {
		var total decimal.Decimal
		for _, rf := range rawFills {
			if m, ok := rf.(map[string]any); ok {
				total = total.Add(decimalField(m, "fee"))
			}
		}
		return total
	}
	return decimalField(resp, "fee")
}

func singleFeeCurrency(resp map[string]any) string {
	if c, ok := resp["feeCurrency"].(string); ok {
		return c
	}
	return ""
}
