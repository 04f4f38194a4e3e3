// Package cart owns the client-visible order state. The Engine
// mediates every mutation against the versioned remote order resource,
// re-fetches after each successful mutation so the caller never sees a
// stale total, and persists a pointer to the current order so the cart
// survives restarts.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/redstick-goods/storefront/internal/commerce"
	"github.com/redstick-goods/storefront/internal/store"
)

// pointerKey is the single KV slot holding the live order pointer.
// At most one live pointer exists per deployment of the engine.
const pointerKey = "storefront:order_pointer"

// Config is the explicit engine configuration. TaxRate has no default:
// deployments have shipped with both 8.25% and 9.75%, so the rate must
// be stated, not assumed.
type Config struct {
	LocationID string
	Currency   string
	TaxRate    decimal.Decimal
}

// ItemInput is a mutation intent from the caller. VariationID must
// resolve to a catalog variation; items without one are rejected
// before any network call.
type ItemInput struct {
	VariationID string
	Name        string
}

// pointer is the JSON blob persisted in the KV store.
type pointer struct {
	OrderID string `json:"order_id"`
	Version int64  `json:"version"`
}

// Snapshot is a copy of the engine's last-known state, safe for the
// caller to hold across further mutations.
type Snapshot struct {
	OrderID     string
	Version     int64
	LineItems   []commerce.LineItem
	TotalItems  int64
	ServerTotal commerce.Money
	ServerTax   commerce.Money
	LastError   error
}

// Engine is the single source of truth for what is in the customer's
// order right now.
//
// The mutex serializes operations against the engine's own state; it
// does not queue overlapping mutation intents. Rapid double-submits
// are the caller's problem (disable the control while a mutation is in
// flight) — the second call will observe the refreshed version written
// by the first.
type Engine struct {
	api commerce.OrderAPI
	kv  store.KV
	cfg Config

	mu          sync.Mutex
	orderID     string
	version     int64
	items       []commerce.LineItem
	serverTotal commerce.Money
	serverTax   commerce.Money
	lastErr     error
}

func NewEngine(api commerce.OrderAPI, kv store.KV, cfg Config) *Engine {
	return &Engine{api: api, kv: kv, cfg: cfg}
}

// Resume loads a persisted order pointer, if any, and refreshes from
// the remote resource. An expired order is not an error at startup;
// the pointer is simply discarded.
func (e *Engine) Resume(ctx context.Context) error {
	raw, err := e.kv.Get(ctx, pointerKey)
	if err != nil {
		return fmt.Errorf("cart: load pointer: %w", err)
	}
	if raw == "" {
		return nil
	}

	var p pointer
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		// A corrupt pointer is unrecoverable; start fresh.
		slog.WarnContext(ctx, "discarding corrupt order pointer", "error", err)
		return e.kv.Delete(ctx, pointerKey)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.orderID = p.OrderID
	e.version = p.Version

	if err := e.refreshLocked(ctx); err != nil {
		if errors.Is(err, commerce.ErrOrderExpired) {
			return nil
		}
		return err
	}
	return nil
}

// EnsureOrder returns the current order id, creating a remote order
// seeded with firstItem (quantity 1) when no pointer exists. An
// existing pointer is returned unchanged without a network call.
func (e *Engine) EnsureOrder(ctx context.Context, firstItem ItemInput) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.orderID != "" {
		return e.orderID, nil
	}
	if firstItem.VariationID == "" {
		return "", e.fail(fmt.Errorf("ensure order: %w", commerce.ErrInvalidVariation))
	}
	if err := e.createLocked(ctx, firstItem); err != nil {
		return "", err
	}
	return e.orderID, nil
}

// AddItem appends one line item with quantity 1, creating the remote
// order first if no pointer exists. On a version conflict the order is
// re-fetched once to obtain the current version and a retryable error
// is surfaced; the mutation is never silently re-applied.
func (e *Engine) AddItem(ctx context.Context, item ItemInput) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if item.VariationID == "" {
		return e.fail(fmt.Errorf("add item: %w", commerce.ErrInvalidVariation))
	}

	if e.orderID == "" {
		return e.createLocked(ctx, item)
	}

	_, err := e.api.UpdateOrder(ctx, commerce.UpdateOrderParams{
		OrderID:        e.orderID,
		IdempotencyKey: uuid.NewString(),
		Version:        e.version,
		LineItems: []commerce.LineItem{{
			CatalogObjectID: item.VariationID,
			Name:            item.Name,
			Quantity:        1,
			ItemType:        commerce.ItemTypeCatalog,
		}},
	})
	if err != nil {
		return e.mutationFailed(ctx, "add item", err)
	}

	slog.InfoContext(ctx, "line item added", "order_id", e.orderID, "variation_id", item.VariationID)
	return e.finishMutation(ctx)
}

// SetQuantity sets the quantity on an existing line item. A quantity
// below 1 delegates to RemoveItem.
func (e *Engine) SetQuantity(ctx context.Context, lineItemUID string, quantity int64) error {
	if quantity < 1 {
		return e.RemoveItem(ctx, lineItemUID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.findLocked(lineItemUID); !ok {
		return e.fail(fmt.Errorf("set quantity on %q: %w", lineItemUID, commerce.ErrLineItemNotFound))
	}

	_, err := e.api.UpdateOrder(ctx, commerce.UpdateOrderParams{
		OrderID:        e.orderID,
		IdempotencyKey: uuid.NewString(),
		Version:        e.version,
		LineItems: []commerce.LineItem{{
			UID:      lineItemUID,
			Quantity: quantity,
		}},
	})
	if err != nil {
		return e.mutationFailed(ctx, "set quantity", err)
	}

	slog.InfoContext(ctx, "line item quantity updated", "order_id", e.orderID, "uid", lineItemUID, "quantity", quantity)
	return e.finishMutation(ctx)
}

// RemoveItem clears one line item's field path. Removing the last item
// leaves the order OPEN with an empty line-item collection; only Clear
// forgets the order itself.
func (e *Engine) RemoveItem(ctx context.Context, lineItemUID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.findLocked(lineItemUID); !ok {
		return e.fail(fmt.Errorf("remove %q: %w", lineItemUID, commerce.ErrLineItemNotFound))
	}

	_, err := e.api.UpdateOrder(ctx, commerce.UpdateOrderParams{
		OrderID:        e.orderID,
		IdempotencyKey: uuid.NewString(),
		Version:        e.version,
		FieldsToClear:  []string{fmt.Sprintf("line_items[%s]", lineItemUID)},
	})
	if err != nil {
		return e.mutationFailed(ctx, "remove item", err)
	}

	slog.InfoContext(ctx, "line item removed", "order_id", e.orderID, "uid", lineItemUID)
	return e.finishMutation(ctx)
}

// Clear empties the remote order and forgets the pointer entirely, so
// a subsequent add starts a new order with a fresh idempotency key.
// Calling Clear with no pointer is a no-op, not an error, and issues
// no network call.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.orderID == "" {
		return nil
	}

	_, err := e.api.UpdateOrder(ctx, commerce.UpdateOrderParams{
		OrderID:        e.orderID,
		IdempotencyKey: uuid.NewString(),
		Version:        e.version,
		FieldsToClear:  []string{"line_items"},
	})
	if err != nil {
		return e.mutationFailed(ctx, "clear order", err)
	}

	slog.InfoContext(ctx, "order cleared", "order_id", e.orderID)
	return e.forgetLocked(ctx)
}

// Cancel transitions the remote order to CANCELED and forgets the
// pointer. Like Clear, it is a no-op without a pointer.
func (e *Engine) Cancel(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.orderID == "" {
		return nil
	}

	_, err := e.api.UpdateOrder(ctx, commerce.UpdateOrderParams{
		OrderID:        e.orderID,
		IdempotencyKey: uuid.NewString(),
		Version:        e.version,
		State:          commerce.StateCanceled,
	})
	if err != nil {
		return e.mutationFailed(ctx, "cancel order", err)
	}

	slog.InfoContext(ctx, "order canceled", "order_id", e.orderID)
	return e.forgetLocked(ctx)
}

// Refresh re-fetches the authoritative order and the platform-computed
// totals. A missing remote order clears the pointer and surfaces
// commerce.ErrOrderExpired; any other failure preserves the last-known
// state.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.refreshLocked(ctx); err != nil {
		return e.fail(err)
	}
	return nil
}

// Snapshot returns a copy of the last-known state. The line-item slice
// is cloned so callers cannot alias engine internals.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	items := make([]commerce.LineItem, len(e.items))
	copy(items, e.items)

	var total int64
	for _, li := range items {
		if li.ItemType == commerce.ItemTypeCatalog {
			total += li.Quantity
		}
	}

	return Snapshot{
		OrderID:     e.orderID,
		Version:     e.version,
		LineItems:   items,
		TotalItems:  total,
		ServerTotal: e.serverTotal,
		ServerTax:   e.serverTax,
		LastError:   e.lastErr,
	}
}

// Totals computes the derived totals from the last-known line items
// and the given shipping cost, locally and without a round trip.
func (e *Engine) Totals(shippingCost int64) (DerivedTotals, error) {
	e.mu.Lock()
	items := make([]commerce.LineItem, len(e.items))
	copy(items, e.items)
	e.mu.Unlock()

	return ComputeTotals(items, shippingCost, e.cfg.TaxRate)
}

// createLocked seeds a brand-new remote order with the first item.
func (e *Engine) createLocked(ctx context.Context, item ItemInput) error {
	order, err := e.api.CreateOrder(ctx, commerce.CreateOrderParams{
		IdempotencyKey: uuid.NewString(),
		LocationID:     e.cfg.LocationID,
		LineItems: []commerce.LineItem{{
			CatalogObjectID: item.VariationID,
			Name:            item.Name,
			Quantity:        1,
			ItemType:        commerce.ItemTypeCatalog,
		}},
	})
	if err != nil {
		return e.fail(fmt.Errorf("create order: %w", err))
	}

	// Commit the pointer only after the platform confirmed the order.
	if err := e.commitLocked(ctx, order.ID, order.Version); err != nil {
		return e.fail(err)
	}

	slog.InfoContext(ctx, "order created", "order_id", order.ID)
	return e.finishMutation(ctx)
}

// finishMutation is the refresh-before-return step every successful
// mutation goes through, so the caller never observes the pre-mutation
// totals.
func (e *Engine) finishMutation(ctx context.Context) error {
	if err := e.refreshLocked(ctx); err != nil {
		return e.fail(err)
	}
	e.lastErr = nil
	return nil
}

// mutationFailed handles a rejected mutation. On a version conflict
// the order is re-fetched once so the caller can retry with current
// state; the stale mutation is never reissued here.
func (e *Engine) mutationFailed(ctx context.Context, op string, err error) error {
	if errors.Is(err, commerce.ErrVersionConflict) {
		slog.WarnContext(ctx, "version conflict, refreshing", "order_id", e.orderID, "op", op)
		if rerr := e.refreshLocked(ctx); rerr != nil {
			return e.fail(fmt.Errorf("%s: %w (refresh after conflict: %v)", op, commerce.ErrVersionConflict, rerr))
		}
		return e.fail(fmt.Errorf("%s: %w", op, commerce.ErrVersionConflict))
	}
	if errors.Is(err, commerce.ErrOrderNotFound) {
		e.forgetStateLocked()
		_ = e.kv.Delete(ctx, pointerKey)
		return e.fail(fmt.Errorf("%s: %w", op, commerce.ErrOrderExpired))
	}
	return e.fail(fmt.Errorf("%s: %w", op, err))
}

func (e *Engine) refreshLocked(ctx context.Context) error {
	if e.orderID == "" {
		return nil
	}

	order, err := e.api.GetOrder(ctx, e.orderID)
	if err != nil {
		if errors.Is(err, commerce.ErrOrderNotFound) {
			e.forgetStateLocked()
			_ = e.kv.Delete(ctx, pointerKey)
			return commerce.ErrOrderExpired
		}
		// Keep the stale-but-present state.
		return fmt.Errorf("refresh order: %w", err)
	}

	if err := e.commitLocked(ctx, order.ID, order.Version); err != nil {
		return err
	}
	e.items = order.LineItems

	total, tax, err := e.api.CalculateOrder(ctx, order)
	if err != nil {
		return fmt.Errorf("calculate order: %w", err)
	}
	e.serverTotal = total
	e.serverTax = tax
	return nil
}

// commitLocked persists the pointer, then updates the in-memory copy.
// Local state is only ever advanced after a confirmed remote round
// trip, never optimistically.
func (e *Engine) commitLocked(ctx context.Context, orderID string, version int64) error {
	raw, err := json.Marshal(pointer{OrderID: orderID, Version: version})
	if err != nil {
		return fmt.Errorf("encode pointer: %w", err)
	}
	if err := e.kv.Set(ctx, pointerKey, string(raw)); err != nil {
		return fmt.Errorf("persist pointer: %w", err)
	}
	e.orderID = orderID
	e.version = version
	return nil
}

func (e *Engine) forgetLocked(ctx context.Context) error {
	e.forgetStateLocked()
	if err := e.kv.Delete(ctx, pointerKey); err != nil {
		return e.fail(fmt.Errorf("clear pointer: %w", err))
	}
	e.lastErr = nil
	return nil
}

func (e *Engine) forgetStateLocked() {
	e.orderID = ""
	e.version = 0
	e.items = nil
	e.serverTotal = commerce.Money{}
	e.serverTax = commerce.Money{}
}

func (e *Engine) findLocked(uid string) (commerce.LineItem, bool) {
	for _, li := range e.items {
		if li.UID == uid {
			return li, true
		}
	}
	return commerce.LineItem{}, false
}

// fail records the error so Snapshot exposes it, and returns it.
func (e *Engine) fail(err error) error {
	e.lastErr = err
	return err
}
