package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redstick-goods/storefront/internal/cart"
	"github.com/redstick-goods/storefront/internal/checkout"
	"github.com/redstick-goods/storefront/internal/commerce/commercetest"
	"github.com/redstick-goods/storefront/internal/pkg/cache"
	"github.com/redstick-goods/storefront/internal/shipping"
	"github.com/redstick-goods/storefront/internal/store"
)

type stubGeocoder struct{}

func (stubGeocoder) Search(context.Context, string) ([]shipping.LatLng, error) {
	// Downtown New Orleans, roughly 75 miles from the origin.
	return []shipping.LatLng{{Lat: 29.9511, Lng: -90.0715}}, nil
}

type memReceipts struct {
	mu    sync.Mutex
	saved []*checkout.Receipt
}

func (m *memReceipts) Save(_ context.Context, r *checkout.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, r)
	return nil
}

func (m *memReceipts) Latest(context.Context) (*checkout.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil, nil
	}
	return m.saved[len(m.saved)-1], nil
}

func newTestServer(t *testing.T) (*httptest.Server, *commercetest.FakeAPI) {
	t.Helper()

	api := commercetest.NewFakeAPI()
	api.Prices["V1"] = 2000

	engine := cart.NewEngine(api, store.NewMemory(), cart.Config{
		LocationID: "L1",
		Currency:   "USD",
		TaxRate:    decimal.RequireFromString("0.0975"),
	})
	estimator := shipping.NewEstimator(stubGeocoder{}, cache.NewMemoryCache("test"))
	receipts := &memReceipts{}
	co := checkout.New(engine, &commercetest.FakePayments{}, receipts, "USD")

	srv := httptest.NewServer(NewRouter(NewHandler(engine, estimator, co, receipts)))
	t.Cleanup(srv.Close)
	return srv, api
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAddItemAndGetCart(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/cart/items", AddItemRequest{VariationID: "V1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	added := decode[CartResponse](t, resp)
	require.Len(t, added.LineItems, 1)
	assert.Equal(t, int64(1), added.LineItems[0].Quantity)

	getResp, err := http.Get(srv.URL + "/cart")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	current := decode[CartResponse](t, getResp)
	assert.Equal(t, added.OrderID, current.OrderID)
	assert.Equal(t, int64(1), current.TotalItems)
}

func TestAddItemWithoutVariationIsUnprocessable(t *testing.T) {
	srv, api := newTestServer(t)

	resp := postJSON(t, srv.URL+"/cart/items", AddItemRequest{Name: "nameless"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "invalid_variation", body.Error)
	assert.Zero(t, api.Calls())
}

func TestClearCartIsIdempotent(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/cart", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestEstimateShipping(t *testing.T) {
	srv, _ := newTestServer(t)

	// Seed the cart so totals reflect a real subtotal.
	resp := postJSON(t, srv.URL+"/cart/items", AddItemRequest{VariationID: "V1"})
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/shipping/estimate", EstimateRequest{
		Street:   "123 Main St",
		City:     "New Orleans",
		State:    "LA",
		ZipCode:  "70112",
		Method:   "standard",
		Quantity: 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	est := decode[EstimateResponse](t, resp)

	assert.InDelta(t, 75, est.DistanceMiles, 2)
	// 599 base + 75/lb + ~75 miles at 1 cent.
	assert.Equal(t, est.Totals.ShippingCost, est.ShippingCost)
	assert.Equal(t, est.Totals.Subtotal+est.Totals.ShippingCost+est.Totals.Tax, est.Totals.GrandTotal)
}

func TestEstimateShippingUnknownMethod(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/shipping/estimate", EstimateRequest{
		Street: "123 Main St", City: "New Orleans", State: "LA", ZipCode: "70112",
		Method: "teleport", Quantity: 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "unknown_shipping_method", body.Error)
}

func TestCheckoutRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/cart/items", AddItemRequest{VariationID: "V1"})
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/checkout/prepare", PrepareRequest{
		Customer:     checkout.Customer{Name: "Ada", Email: "ada@example.com"},
		ShippingCost: 599,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	intent := decode[checkout.PaymentIntent](t, resp)
	assert.NotEmpty(t, intent.IdempotencyKey)

	resp = postJSON(t, srv.URL+"/checkout/confirm", ConfirmRequest{
		Token:  "cnon:card-token",
		Intent: &intent,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	receipt := decode[checkout.Receipt](t, resp)
	assert.Equal(t, intent.OrderID, receipt.OrderID)

	// The confirmation display can re-read the receipt.
	latestResp, err := http.Get(srv.URL + "/receipts/latest")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, latestResp.StatusCode)
	latest := decode[checkout.Receipt](t, latestResp)
	assert.Equal(t, receipt.PaymentID, latest.PaymentID)
}

func TestLatestReceiptEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/receipts/latest")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
