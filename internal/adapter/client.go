// Package adapter ships one concrete venue integration: a simulated-venue
// DataClient + ExecutionClient pair speaking a generic REST+WebSocket wire
// protocol. It is the thing that actually exercises the
// cache/dataengine/execution wiring end to end outside of a backtest: the
// REST half (Client) places and cancels orders and serves historical
// queries; the WebSocket half (Feed) streams quotes, trades, bars, and
// order lifecycle events over a single long-lived writer goroutine,
// reconnecting on a jittered exponential backoff.
//
// Every request is rate-limited via per-category TokenBuckets (tunable, see
// RateLimitConfig) and retried on 5xx errors.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nautilus-go/core/pkg/model"
)

// Client is the REST half of the simulated venue adapter.
type Client struct {
	venue  string
	http   *resty.Client
	rl     *RateLimiter
	logger *slog.Logger
}

// NewClient builds a REST client rooted at baseURL for venue. rlCfg's zero
// value uses RateLimitConfig's defaults.
func NewClient(venue, baseURL string, rlCfg RateLimitConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		venue:  venue,
		http:   httpClient,
		rl:     NewRateLimiter(rlCfg),
		logger: logger.With("component", "adapter_client", "venue", venue),
	}
}

// GetBook fetches the current L2 book snapshot for symbol.
func (c *Client) GetBook(ctx context.Context, symbol string) (*bookResponse, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}
	var result bookResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&result).
		Get("/book")
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get book: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// Venue reports the venue name this client routes orders to, satisfying
// execution.ExecutionClient.
func (c *Client) Venue() string { return c.venue }

// SubmitOrder sends a new order to the venue. The venue's acceptance or
// rejection arrives asynchronously on the order feed, not in this call's
// return value — a live REST ack only confirms the request was received.
func (c *Client) SubmitOrder(ctx context.Context, order *model.Order) error {
	if err := c.rl.Order.Wait(ctx); err != nil {
		return err
	}
	req := submitOrderRequest{
		ClientOrderId: order.ClientOrderId.String(),
		Symbol:        order.InstrumentId.Symbol.String(),
		Side:          order.Side.String(),
		Type:          order.Type.String(),
		TimeInForce:   order.TimeInForce.String(),
		Quantity:      order.Quantity.String(),
		ReduceOnly:    order.ReduceOnly,
	}
	if order.Price != nil {
		req.Price = order.Price.String()
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/orders")
	if err != nil {
		return fmt.Errorf("submit order: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("submit order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// ModifyOrder requests an in-place quantity/price change. A nil qty or
// price leaves that side unchanged.
func (c *Client) ModifyOrder(ctx context.Context, coi model.ClientOrderId, qty *model.Quantity, price *model.Price) error {
	if err := c.rl.Order.Wait(ctx); err != nil {
		return err
	}
	var req modifyOrderRequest
	if qty != nil {
		req.Quantity = qty.String()
	}
	if price != nil {
		req.Price = price.String()
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Patch("/orders/" + coi.String())
	if err != nil {
		return fmt.Errorf("modify order: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("modify order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// CancelOrder cancels a single working order by client order id.
func (c *Client) CancelOrder(ctx context.Context, coi model.ClientOrderId) error {
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		Delete("/orders/" + coi.String())
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// CancelAllOrders cancels every working order for one instrument.
func (c *Client) CancelAllOrders(ctx context.Context, instID model.InstrumentId) error {
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", instID.Symbol.String()).
		Delete("/orders")
	if err != nil {
		return fmt.Errorf("cancel all orders: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("cancel all orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// GenerateOrderStatusReports fetches the venue's current view of every
// order, used by the execution engine's Reconcile on startup.
func (c *Client) GenerateOrderStatusReports(ctx context.Context) ([]orderStatusReportWire, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}
	var result []orderStatusReportWire
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/reports/orders")
	if err != nil {
		return nil, fmt.Errorf("order status reports: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("order status reports: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// GeneratePositionStatusReports fetches the venue's current view of every
// open position.
func (c *Client) GeneratePositionStatusReports(ctx context.Context) ([]positionStatusReportWire, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}
	var result []positionStatusReportWire
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/reports/positions")
	if err != nil {
		return nil, fmt.Errorf("position status reports: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("position status reports: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// GenerateTradeReports fetches the venue's execution history, used to
// reconcile fills the adapter may have missed while disconnected.
func (c *Client) GenerateTradeReports(ctx context.Context) ([]tradeReportWire, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}
	var result []tradeReportWire
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/reports/trades")
	if err != nil {
		return nil, fmt.Errorf("trade reports: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("trade reports: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// getHistory fetches bars/quotes/trades in the from..to range, at most limit
// rows, from one of the venue's historical endpoints, used by Adapter.Request.
func (c *Client) getHistory(ctx context.Context, endpoint, symbol string, from, to time.Time, limit int) ([]byte, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"from":   from.UTC().Format(time.RFC3339),
			"to":     to.UTC().Format(time.RFC3339),
			"limit":  fmt.Sprintf("%d", limit),
		}).
		Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", endpoint, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %d: %s", endpoint, resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}

func decodeJSON[T any](body []byte) ([]T, error) {
	var out []T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
