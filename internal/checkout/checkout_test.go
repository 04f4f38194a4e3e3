package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redstick-goods/storefront/internal/cart"
	"github.com/redstick-goods/storefront/internal/commerce"
	"github.com/redstick-goods/storefront/internal/commerce/commercetest"
	"github.com/redstick-goods/storefront/internal/store"
)

type memReceipts struct {
	mu       sync.Mutex
	saved    []*Receipt
	failWith error
}

func (m *memReceipts) Save(_ context.Context, r *Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.saved = append(m.saved, r)
	return nil
}

func (m *memReceipts) Latest(_ context.Context) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil, nil
	}
	return m.saved[len(m.saved)-1], nil
}

func newTestCheckout(t *testing.T) (*Checkout, *cart.Engine, *commercetest.FakeAPI, *commercetest.FakePayments, *memReceipts) {
	t.Helper()
	api := commercetest.NewFakeAPI()
	api.Prices["V1"] = 2000
	engine := cart.NewEngine(api, store.NewMemory(), cart.Config{
		LocationID: "L1",
		Currency:   "USD",
		TaxRate:    decimal.RequireFromString("0.0975"),
	})
	payments := &commercetest.FakePayments{}
	receipts := &memReceipts{}
	return New(engine, payments, receipts, "USD"), engine, api, payments, receipts
}

func TestPrepareEmptyCart(t *testing.T) {
	co, _, _, _, _ := newTestCheckout(t)

	_, err := co.Prepare(context.Background(), Customer{Name: "Ada"}, 0)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPrepareBuildsIntent(t *testing.T) {
	co, engine, _, _, _ := newTestCheckout(t)
	ctx := context.Background()

	require.NoError(t, engine.AddItem(ctx, cart.ItemInput{VariationID: "V1"}))

	intent, err := co.Prepare(ctx, Customer{Name: "Ada", Email: "ada@example.com"}, 599)
	require.NoError(t, err)

	assert.NotEmpty(t, intent.IdempotencyKey)
	assert.Equal(t, engine.Snapshot().OrderID, intent.OrderID)
	assert.Equal(t, int64(2000), intent.Totals.Subtotal)
	assert.Equal(t, int64(599), intent.Totals.ShippingCost)
	assert.Equal(t, intent.Totals.GrandTotal, intent.Amount.Amount)
	assert.Equal(t, "USD", intent.Amount.Currency)

	// Two prepares never share a key; a retried confirm of either
	// cannot double-charge.
	second, err := co.Prepare(ctx, Customer{Name: "Ada"}, 599)
	require.NoError(t, err)
	assert.NotEqual(t, intent.IdempotencyKey, second.IdempotencyKey)
}

func TestConfirmChargesPersistsAndClears(t *testing.T) {
	co, engine, _, payments, receipts := newTestCheckout(t)
	ctx := context.Background()

	require.NoError(t, engine.AddItem(ctx, cart.ItemInput{VariationID: "V1"}))
	intent, err := co.Prepare(ctx, Customer{Name: "Ada", Email: "ada@example.com"}, 599)
	require.NoError(t, err)

	receipt, err := co.Confirm(ctx, "cnon:card-token", intent)
	require.NoError(t, err)

	require.Len(t, payments.Charges, 1)
	assert.Equal(t, intent.IdempotencyKey, payments.Charges[0].IdempotencyKey)
	assert.Equal(t, "cnon:card-token", payments.Charges[0].SourceID)
	assert.Equal(t, intent.Amount, payments.Charges[0].Amount)

	require.NotNil(t, receipt)
	assert.Equal(t, intent.OrderID, receipt.OrderID)
	assert.Equal(t, "Ada", receipt.Customer.Name)
	assert.Equal(t, intent.Totals, receipt.Totals)

	latest, err := receipts.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, receipt, latest)

	// Cart is forgotten; the next add starts a new order.
	assert.Empty(t, engine.Snapshot().OrderID)
}

func TestConfirmDeclinedPaymentLeavesCartIntact(t *testing.T) {
	co, engine, _, payments, receipts := newTestCheckout(t)
	ctx := context.Background()

	require.NoError(t, engine.AddItem(ctx, cart.ItemInput{VariationID: "V1"}))
	intent, err := co.Prepare(ctx, Customer{Name: "Ada"}, 0)
	require.NoError(t, err)

	payments.FailWith = commerce.ErrPaymentDeclined

	_, err = co.Confirm(ctx, "cnon:card-token", intent)
	require.ErrorIs(t, err, commerce.ErrPaymentDeclined)

	assert.Empty(t, payments.Refunds, "nothing charged, nothing to refund")
	latest, _ := receipts.Latest(ctx)
	assert.Nil(t, latest)
	assert.NotEmpty(t, engine.Snapshot().OrderID, "cart preserved after declined payment")
}

func TestConfirmRefundsWhenReceiptPersistFails(t *testing.T) {
	co, engine, _, payments, receipts := newTestCheckout(t)
	ctx := context.Background()

	require.NoError(t, engine.AddItem(ctx, cart.ItemInput{VariationID: "V1"}))
	intent, err := co.Prepare(ctx, Customer{Name: "Ada"}, 0)
	require.NoError(t, err)

	receipts.failWith = errors.New("disk full")

	_, err = co.Confirm(ctx, "cnon:card-token", intent)
	require.Error(t, err)

	require.Len(t, payments.Charges, 1)
	require.Len(t, payments.Refunds, 1, "charge compensated after downstream failure")
}

func TestConfirmRequiresIntentAndToken(t *testing.T) {
	co, _, _, _, _ := newTestCheckout(t)
	ctx := context.Background()

	_, err := co.Confirm(ctx, "cnon:token", nil)
	assert.ErrorIs(t, err, ErrNilIntent)

	_, err = co.Confirm(ctx, "", &PaymentIntent{OrderID: "order-1"})
	assert.Error(t, err)
}
