package square

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redstick-goods/storefront/internal/commerce"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		Environment: "sandbox",
		AccessToken: "test-token",
		LocationID:  "L1",
		TaxRate:     decimal.RequireFromString("0.0975"),
		BaseURL:     srv.URL,
	})
	require.NoError(t, err)
	return c
}

func TestGetOrderNormalizesWireShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/orders/order-1", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"order": {
				"id": "order-1",
				"location_id": "L1",
				"version": 4,
				"state": "OPEN",
				"line_items": [
					{"uid": "li-1", "catalog_object_id": "V1", "quantity": "3",
					 "item_type": "ITEM", "base_price_money": {"amount": 2000, "currency": "USD"}},
					{"uid": "li-2", "quantity": "1", "item_type": "CUSTOM_AMOUNT",
					 "base_price_money": {"amount": 599, "currency": "USD"}}
				],
				"total_money": {"amount": 7324, "currency": "USD"},
				"total_tax_money": {"amount": 714, "currency": "USD"}
			}
		}`))
	})

	o, err := c.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)

	assert.Equal(t, int64(4), o.Version)
	assert.Equal(t, commerce.StateOpen, o.State)
	require.Len(t, o.LineItems, 2)
	// String quantity normalized to an integer.
	assert.Equal(t, int64(3), o.LineItems[0].Quantity)
	assert.Equal(t, commerce.ItemTypeCatalog, o.LineItems[0].ItemType)
	assert.Equal(t, commerce.ItemTypeCustom, o.LineItems[1].ItemType)
	assert.Len(t, o.CatalogItems(), 1)
	assert.Equal(t, int64(7324), o.TotalMoney.Amount)
	assert.Equal(t, int64(714), o.TotalTaxMoney.Amount)
}

func TestCreateOrderSendsIdempotencyKeyAndTaxRule(t *testing.T) {
	var got createOrderRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"order": {"id": "order-1", "version": 1, "state": "OPEN"}}`))
	})

	_, err := c.CreateOrder(context.Background(), commerce.CreateOrderParams{
		IdempotencyKey: "key-1",
		LocationID:     "L1",
		LineItems: []commerce.LineItem{
			{CatalogObjectID: "V1", Quantity: 1, ItemType: commerce.ItemTypeCatalog},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "key-1", got.IdempotencyKey)
	assert.Equal(t, "L1", got.Order.LocationID)
	require.Len(t, got.Order.LineItems, 1)
	assert.Equal(t, "1", got.Order.LineItems[0].Quantity, "quantity travels as a string")
	assert.Nil(t, got.Order.LineItems[0].BasePriceMoney, "catalog items are priced by the platform")
	require.Len(t, got.Order.Taxes, 1)
	assert.Equal(t, "9.75", got.Order.Taxes[0].Percentage)
	assert.Equal(t, "ORDER", got.Order.Taxes[0].Scope)
}

func TestUpdateOrderMapsVersionMismatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors": [{"category": "INVALID_REQUEST_ERROR", "code": "VERSION_MISMATCH", "detail": "stale"}]}`))
	})

	_, err := c.UpdateOrder(context.Background(), commerce.UpdateOrderParams{
		OrderID: "order-1", IdempotencyKey: "key", Version: 2,
	})
	assert.ErrorIs(t, err, commerce.ErrVersionConflict)
}

func TestGetOrderMapsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors": [{"category": "INVALID_REQUEST_ERROR", "code": "NOT_FOUND"}]}`))
	})

	_, err := c.GetOrder(context.Background(), "gone")
	assert.ErrorIs(t, err, commerce.ErrOrderNotFound)
}

func TestRemoteErrorPreservesStatusAndCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"errors": [{"category": "API_ERROR", "code": "SERVICE_UNAVAILABLE", "detail": "try later"}]}`))
	})

	_, err := c.GetOrder(context.Background(), "order-1")
	var remote *commerce.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusServiceUnavailable, remote.Status)
	assert.Equal(t, "SERVICE_UNAVAILABLE", remote.Code)
}

func TestCreatePaymentDeclined(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"errors": [{"category": "PAYMENT_METHOD_ERROR", "code": "CARD_DECLINED"}]}`))
	})

	_, err := c.CreatePayment(context.Background(), commerce.PaymentParams{
		IdempotencyKey: "key",
		SourceID:       "cnon:token",
		Amount:         commerce.Money{Amount: 8038, Currency: "USD"},
	})
	assert.ErrorIs(t, err, commerce.ErrPaymentDeclined)
}

func TestUnrecognizedEnvironmentRejected(t *testing.T) {
	_, err := New(Config{Environment: "staging", AccessToken: "tok"})
	assert.Error(t, err)
}
