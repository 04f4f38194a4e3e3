// Package square is the HTTP/JSON adapter for the commerce platform's
// Orders and Payments APIs. It is the only package that knows the wire
// format; everything it returns is normalized into commerce types.
package square

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/redstick-goods/storefront/internal/commerce"
)

const (
	sandboxBaseURL    = "https://connect.squareupsandbox.com"
	productionBaseURL = "https://connect.squareup.com"
)

// Config selects the environment and credentials explicitly. There is
// no module-level client; construct one in main and inject it.
type Config struct {
	// Environment is "sandbox" or "production".
	Environment string
	AccessToken string
	LocationID  string

	// TaxRate is the deployment's order-scope sales tax, e.g. 0.0975.
	// Attached to created orders and to calculate requests as an
	// ORDER-scope percentage tax rule.
	TaxRate decimal.Decimal

	// BaseURL overrides the environment-derived endpoint (tests).
	BaseURL string
}

// Client implements commerce.OrderAPI and commerce.PaymentAPI.
type Client struct {
	httpc   *http.Client
	baseURL string
	token   string
	cfg     Config
}

func New(cfg Config) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		switch cfg.Environment {
		case "production":
			base = productionBaseURL
		case "sandbox", "":
			base = sandboxBaseURL
		default:
			return nil, fmt.Errorf("square: unrecognized environment %q", cfg.Environment)
		}
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("square: access token is required")
	}
	return &Client{
		httpc:   &http.Client{Timeout: 30 * time.Second},
		baseURL: base,
		token:   cfg.AccessToken,
		cfg:     cfg,
	}, nil
}

var _ commerce.OrderAPI = (*Client)(nil)
var _ commerce.PaymentAPI = (*Client)(nil)

// GetOrder fetches the authoritative order record.
func (c *Client) GetOrder(ctx context.Context, id string) (*commerce.Order, error) {
	var resp orderEnvelope
	if err := c.do(ctx, http.MethodGet, "/v2/orders/"+id, nil, &resp); err != nil {
		return nil, fmt.Errorf("square: get order %s: %w", id, err)
	}
	if resp.Order == nil {
		return nil, fmt.Errorf("square: get order %s: empty order in response", id)
	}
	return mapWireOrder(resp.Order), nil
}

// CreateOrder creates a new order with the deployment's tax rule
// attached. The platform's idempotency contract guarantees a retried
// create with the same key does not produce a second order.
func (c *Client) CreateOrder(ctx context.Context, p commerce.CreateOrderParams) (*commerce.Order, error) {
	req := createOrderRequest{
		IdempotencyKey: p.IdempotencyKey,
		Order: wireOrderPatch{
			LocationID: p.LocationID,
			LineItems:  mapLineItemsToWire(p.LineItems),
			Taxes:      []wireTax{c.orderTax()},
		},
	}

	var resp orderEnvelope
	if err := c.do(ctx, http.MethodPost, "/v2/orders", req, &resp); err != nil {
		return nil, fmt.Errorf("square: create order: %w", err)
	}
	if resp.Order == nil {
		return nil, fmt.Errorf("square: create order: empty order in response")
	}
	return mapWireOrder(resp.Order), nil
}

// UpdateOrder applies a sparse patch carrying the caller's last-read
// version. A stale version surfaces as commerce.ErrVersionConflict.
func (c *Client) UpdateOrder(ctx context.Context, p commerce.UpdateOrderParams) (*commerce.Order, error) {
	patch := wireOrderPatch{
		LocationID: c.cfg.LocationID,
		Version:    p.Version,
		LineItems:  mapLineItemsToWire(p.LineItems),
	}
	if p.State != "" {
		patch.State = string(p.State)
	}
	req := updateOrderRequest{
		IdempotencyKey: p.IdempotencyKey,
		Order:          patch,
		FieldsToClear:  p.FieldsToClear,
	}

	var resp orderEnvelope
	if err := c.do(ctx, http.MethodPut, "/v2/orders/"+p.OrderID, req, &resp); err != nil {
		return nil, fmt.Errorf("square: update order %s: %w", p.OrderID, err)
	}
	if resp.Order == nil {
		return nil, fmt.Errorf("square: update order %s: empty order in response", p.OrderID)
	}
	return mapWireOrder(resp.Order), nil
}

// CalculateOrder re-prices the order under the configured tax rule.
// The stored order is not mutated; the platform prices a copy.
func (c *Client) CalculateOrder(ctx context.Context, order *commerce.Order) (commerce.Money, commerce.Money, error) {
	wire := mapOrderToWire(order)
	wire.Taxes = []wireTax{c.orderTax()}
	req := calculateOrderRequest{Order: *wire}

	var resp orderEnvelope
	if err := c.do(ctx, http.MethodPost, "/v2/orders/calculate", req, &resp); err != nil {
		return commerce.Money{}, commerce.Money{}, fmt.Errorf("square: calculate order: %w", err)
	}
	if resp.Order == nil {
		return commerce.Money{}, commerce.Money{}, fmt.Errorf("square: calculate order: empty order in response")
	}
	calc := mapWireOrder(resp.Order)
	return calc.TotalMoney, calc.TotalTaxMoney, nil
}

// orderTax renders the configured rate as the platform's ORDER-scope
// percentage tax rule, e.g. 0.0975 -> "9.75".
func (c *Client) orderTax() wireTax {
	pct := c.cfg.TaxRate.Mul(decimal.NewFromInt(100))
	return wireTax{
		UID:        "STATE-SALES-" + pct.String() + "-PCT",
		Name:       "State sales tax - " + pct.String() + "%",
		Percentage: pct.String(),
		Scope:      "ORDER",
	}
}

// do executes one JSON round trip and decodes either the expected
// response or the platform's error envelope.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return mapWireError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
