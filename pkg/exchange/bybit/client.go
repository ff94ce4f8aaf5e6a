// Package bybit implements the signed v5 REST venue client for one account.
package bybit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"signal-bridge/pkg/exchange"
)

const (
	mainnetURL = "https://api.bybit.com"
	testnetURL = "https://api-testnet.bybit.com"

	// category for USDT perpetuals; the engine only trades linear contracts.
	categoryLinear = "linear"
)

// Config holds one account's credentials and environment.
type Config struct {
	APIKey     string
	APISecret  string
	Testnet    bool
	RecvWindow int64  // ms
	BaseURL    string // override for tests; empty derives from Testnet
}

// Client handles signed v5 REST calls for a single credential pair.
type Client struct {
	cfg         Config
	baseURL     string
	httpClient  *http.Client
	rateLimiter *exchange.RateLimiter

	mu          sync.Mutex
	instruments map[string]instrumentInfo
}

type instrumentInfo struct {
	qtyStep     decimal.Decimal
	minOrderQty decimal.Decimal
	tickSize    decimal.Decimal
}

// NewClient creates a venue client bound to one decrypted credential pair.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = mainnetURL
		if cfg.Testnet {
			base = testnetURL
		}
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	return &Client{
		cfg:         cfg,
		baseURL:     base,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		rateLimiter: exchange.NewRateLimiter(600, 5*time.Second),
		instruments: make(map[string]instrumentInfo),
	}
}

// PlaceOrder submits one order. Quantity and prices are rounded against
// instrument metadata before submission; without metadata the order is
// rejected rather than sent unrounded.
func (c *Client) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return exchange.OrderResult{}, errors.New("bybit: API key/secret required")
	}

	info, err := c.instrumentFor(ctx, req.Symbol)
	if err != nil {
		return exchange.OrderResult{}, fmt.Errorf("%w: instrument metadata unavailable: %v", exchange.ErrInvalidQuantity, err)
	}
	qty, err := roundQty(req.Qty, info)
	if err != nil {
		return exchange.OrderResult{}, err
	}

	body := orderCreateRequest{
		Category:    categoryLinear,
		Symbol:      req.Symbol,
		Side:        string(req.Side),
		OrderType:   string(req.Type),
		Qty:         qty,
		ReduceOnly:  req.ReduceOnly,
		TimeInForce: string(req.TimeInForce),
		OrderLinkID: req.ClientID,
	}
	if req.Type == exchange.OrderTypeLimit {
		body.Price = roundPrice(req.Price, info)
	}
	if req.TriggerPrice > 0 {
		body.TriggerPrice = roundPrice(req.TriggerPrice, info)
		// A protective sell triggers on falling price, a protective buy on rising.
		if req.Side == exchange.SideSell {
			body.TriggerDirection = 2
		} else {
			body.TriggerDirection = 1
		}
	}

	raw, err := c.doPost(ctx, "/v5/order/create", body)
	if err != nil {
		return exchange.OrderResult{}, err
	}
	var ack orderAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		return exchange.OrderResult{}, fmt.Errorf("decode order ack: %w", err)
	}
	return exchange.OrderResult{OrderID: ack.OrderID, ClientID: ack.OrderLinkID}, nil
}

// CancelOrder cancels one order by venue order ID.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	_, err := c.doPost(ctx, "/v5/order/cancel", orderCancelRequest{
		Category: categoryLinear,
		Symbol:   symbol,
		OrderID:  orderID,
	})
	return err
}

// GetPositions returns open positions; symbol empty lists all USDT-settled.
func (c *Client) GetPositions(ctx context.Context, symbol string) ([]exchange.Position, error) {
	params := url.Values{}
	params.Set("category", categoryLinear)
	if symbol != "" {
		params.Set("symbol", symbol)
	} else {
		params.Set("settleCoin", "USDT")
	}

	raw, err := c.doGet(ctx, "/v5/position/list", params)
	if err != nil {
		return nil, err
	}
	var list positionList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}

	var positions []exchange.Position
	for _, p := range list.List {
		size, _ := strconv.ParseFloat(p.Size, 64)
		if size == 0 || (p.Side != "Buy" && p.Side != "Sell") {
			continue
		}
		entry, _ := strconv.ParseFloat(p.AvgPrice, 64)
		positions = append(positions, exchange.Position{
			Symbol:     p.Symbol,
			Side:       exchange.Side(p.Side),
			Size:       size,
			EntryPrice: entry,
		})
	}
	return positions, nil
}

// ClosePosition flattens the position on one symbol with a reduce-only
// market order.
func (c *Client) ClosePosition(ctx context.Context, symbol string) error {
	positions, err := c.GetPositions(ctx, symbol)
	if err != nil {
		return err
	}
	for _, p := range positions {
		if _, err := c.PlaceOrder(ctx, exchange.OrderRequest{
			Symbol:     p.Symbol,
			Side:       p.Side.Opposite(),
			Type:       exchange.OrderTypeMarket,
			Qty:        p.Size,
			ReduceOnly: true,
		}); err != nil {
			return err
		}
	}
	return nil
}

// CloseAllPositions flattens every open position sequentially, collecting a
// per-position outcome instead of stopping at the first failure.
func (c *Client) CloseAllPositions(ctx context.Context) ([]exchange.CloseResult, error) {
	positions, err := c.GetPositions(ctx, "")
	if err != nil {
		return nil, err
	}

	results := make([]exchange.CloseResult, 0, len(positions))
	for _, p := range positions {
		res := exchange.CloseResult{Symbol: p.Symbol, Side: p.Side, Size: p.Size}
		_, err := c.PlaceOrder(ctx, exchange.OrderRequest{
			Symbol:     p.Symbol,
			Side:       p.Side.Opposite(),
			Type:       exchange.OrderTypeMarket,
			Qty:        p.Size,
			ReduceOnly: true,
		})
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Success = true
		}
		results = append(results, res)
	}
	return results, nil
}

// SetLeverage sets symmetric buy/sell leverage for a symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	lev := strconv.Itoa(leverage)
	_, err := c.doPost(ctx, "/v5/position/set-leverage", setLeverageRequest{
		Category:     categoryLinear,
		Symbol:       symbol,
		BuyLeverage:  lev,
		SellLeverage: lev,
	})
	return err
}

// instrumentFor fetches (and caches) lot-size and tick metadata for a symbol.
func (c *Client) instrumentFor(ctx context.Context, symbol string) (instrumentInfo, error) {
	c.mu.Lock()
	info, ok := c.instruments[symbol]
	c.mu.Unlock()
	if ok {
		return info, nil
	}

	params := url.Values{}
	params.Set("category", categoryLinear)
	params.Set("symbol", symbol)
	raw, err := c.doGet(ctx, "/v5/market/instruments-info", params)
	if err != nil {
		return instrumentInfo{}, err
	}
	var list instrumentList
	if err := json.Unmarshal(raw, &list); err != nil {
		return instrumentInfo{}, fmt.Errorf("decode instruments: %w", err)
	}
	if len(list.List) == 0 {
		return instrumentInfo{}, fmt.Errorf("no instrument metadata for %s", symbol)
	}

	entry := list.List[0]
	qtyStep, err := decimal.NewFromString(entry.LotSizeFilter.QtyStep)
	if err != nil || qtyStep.IsZero() {
		return instrumentInfo{}, fmt.Errorf("bad qtyStep %q for %s", entry.LotSizeFilter.QtyStep, symbol)
	}
	minQty, err := decimal.NewFromString(entry.LotSizeFilter.MinOrderQty)
	if err != nil {
		return instrumentInfo{}, fmt.Errorf("bad minOrderQty %q for %s", entry.LotSizeFilter.MinOrderQty, symbol)
	}
	tick, err := decimal.NewFromString(entry.PriceFilter.TickSize)
	if err != nil || tick.IsZero() {
		return instrumentInfo{}, fmt.Errorf("bad tickSize %q for %s", entry.PriceFilter.TickSize, symbol)
	}

	info = instrumentInfo{qtyStep: qtyStep, minOrderQty: minQty, tickSize: tick}
	c.mu.Lock()
	c.instruments[symbol] = info
	c.mu.Unlock()
	return info, nil
}

// roundQty truncates qty down to the instrument's qtyStep. Truncation, not
// rounding: sizing must never exceed the risk budget.
func roundQty(qty float64, info instrumentInfo) (string, error) {
	if qty <= 0 {
		return "", exchange.ErrInvalidQuantity
	}
	d := decimal.NewFromFloat(qty)
	stepped := d.Div(info.qtyStep).Floor().Mul(info.qtyStep)
	if stepped.IsZero() || stepped.LessThan(info.minOrderQty) {
		return "", fmt.Errorf("%w: %s below venue minimum %s", exchange.ErrInvalidQuantity, stepped, info.minOrderQty)
	}
	return stepped.String(), nil
}

func roundPrice(price float64, info instrumentInfo) string {
	d := decimal.NewFromFloat(price)
	return d.Div(info.tickSize).Round(0).Mul(info.tickSize).String()
}

// doGet sends a signed read request; the payload signed is the sorted
// key=value query string.
func (c *Client) doGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	query := params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return nil, err
	}
	c.signRequest(req, query)
	return c.send(req)
}

// doPost sends a signed write request; the payload signed is the raw JSON body.
func (c *Client) doPost(ctx context.Context, path string, body any) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.signRequest(req, string(encoded))
	return c.send(req)
}

func (c *Client) signRequest(req *http.Request, payload string) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	recvWindow := strconv.FormatInt(c.cfg.RecvWindow, 10)

	req.Header.Set("X-BAPI-API-KEY", c.cfg.APIKey)
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	req.Header.Set("X-BAPI-SIGN", sign(c.cfg.APISecret, timestamp, c.cfg.APIKey, recvWindow, payload))
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &exchange.VenueError{Transport: true, Message: err.Error()}
	}
	defer res.Body.Close()

	if c.rateLimiter != nil {
		c.rateLimiter.UpdateFromHeader(res.Header.Get("X-Bapi-Limit-Status"))
	}

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return nil, &exchange.VenueError{
			Transport: true,
			Message:   fmt.Sprintf("%s %s status %d: %s", req.Method, req.URL.Path, res.StatusCode, string(body)),
		}
	}

	var env response
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &exchange.VenueError{Transport: true, Message: fmt.Sprintf("decode envelope: %v", err)}
	}
	if env.RetCode != 0 {
		return nil, &exchange.VenueError{Code: env.RetCode, Message: env.RetMsg}
	}
	return env.Result, nil
}
