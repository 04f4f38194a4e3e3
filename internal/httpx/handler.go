package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/redstick-goods/storefront/internal/cart"
	"github.com/redstick-goods/storefront/internal/checkout"
	"github.com/redstick-goods/storefront/internal/commerce"
	"github.com/redstick-goods/storefront/internal/shipping"
)

// Handler exposes the cart engine, shipping estimator, and checkout
// flow to the UI layer.
//
// The engine does not queue overlapping mutations; the UI is expected
// to disable controls while a request is in flight. Rapid double
// submits surface as version conflicts (409), which the UI handles by
// re-reading the cart and retrying.
type Handler struct {
	engine    *cart.Engine
	estimator *shipping.Estimator
	checkout  *checkout.Checkout
	receipts  checkout.ReceiptStore
}

func NewHandler(
	engine *cart.Engine,
	estimator *shipping.Estimator,
	co *checkout.Checkout,
	receipts checkout.ReceiptStore,
) *Handler {
	return &Handler{
		engine:    engine,
		estimator: estimator,
		checkout:  co,
		receipts:  receipts,
	}
}

// GetCart refreshes from the platform and returns the current state.
// An expired order is reported as an empty cart, not an error.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Refresh(r.Context()); err != nil && !errors.Is(err, commerce.ErrOrderExpired) {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSnapshot(h.engine.Snapshot(), nil))
}

// AddItem appends one unit of a catalog variation to the cart,
// creating the order on first add.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	slog.InfoContext(r.Context(), "adding item", "variation_id", req.VariationID)

	if err := h.engine.AddItem(r.Context(), cart.ItemInput{
		VariationID: req.VariationID,
		Name:        req.Name,
	}); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSnapshot(h.engine.Snapshot(), nil))
}

// SetQuantity updates one line item; quantity 0 removes it.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		writeError(w, http.StatusBadRequest, "line_item_uid_required", "")
		return
	}

	var req SetQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if err := h.engine.SetQuantity(r.Context(), uid, req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSnapshot(h.engine.Snapshot(), nil))
}

// RemoveItem deletes one line item; the order stays OPEN even when the
// last item goes.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		writeError(w, http.StatusBadRequest, "line_item_uid_required", "")
		return
	}

	if err := h.engine.RemoveItem(r.Context(), uid); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSnapshot(h.engine.Snapshot(), nil))
}

// ClearCart empties the order and forgets it; idempotent.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Clear(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSnapshot(h.engine.Snapshot(), nil))
}

// CancelOrder transitions the remote order to CANCELED.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Cancel(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSnapshot(h.engine.Snapshot(), nil))
}

// EstimateShipping geocodes the destination (cached per address) and
// prices the method, returning the quote plus the cart totals it
// implies. Estimation failures never touch order state.
func (h *Handler) EstimateShipping(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Street == "" || req.City == "" || req.State == "" || req.ZipCode == "" {
		writeError(w, http.StatusBadRequest, "invalid_address", "street, city, state, and zip_code are required")
		return
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = h.engine.Snapshot().TotalItems
	}

	quote, err := h.estimator.Quote(r.Context(), shipping.Address{
		Street:  req.Street,
		City:    req.City,
		State:   req.State,
		ZipCode: req.ZipCode,
		Country: req.Country,
	}, shipping.Method(req.Method), quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	totals, err := h.engine.Totals(quote.Cost)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mapQuote(quote, totals))
}

// PrepareCheckout returns the payment intent descriptor the client
// passes back, with the card token, to ConfirmCheckout.
func (h *Handler) PrepareCheckout(w http.ResponseWriter, r *http.Request) {
	var req PrepareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	intent, err := h.checkout.Prepare(r.Context(), req.Customer, req.ShippingCost)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

// ConfirmCheckout charges the token and returns the receipt.
func (h *Handler) ConfirmCheckout(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	receipt, err := h.checkout.Confirm(r.Context(), req.Token, req.Intent)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// LatestReceipt serves the post-purchase confirmation display.
func (h *Handler) LatestReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.receipts.Latest(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "receipt_store_error", err.Error())
		return
	}
	if receipt == nil {
		writeError(w, http.StatusNotFound, "no_receipt", "no completed purchase yet")
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// writeDomainError maps the shared error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, commerce.ErrInvalidVariation):
		writeError(w, http.StatusUnprocessableEntity, "invalid_variation", err.Error())
	case errors.Is(err, commerce.ErrInvalidLineItem):
		writeError(w, http.StatusUnprocessableEntity, "invalid_line_item", err.Error())
	case errors.Is(err, commerce.ErrLineItemNotFound):
		writeError(w, http.StatusNotFound, "line_item_not_found", err.Error())
	case errors.Is(err, commerce.ErrVersionConflict):
		writeError(w, http.StatusConflict, "version_conflict", err.Error())
	case errors.Is(err, commerce.ErrOrderExpired):
		writeError(w, http.StatusGone, "order_expired", err.Error())
	case errors.Is(err, commerce.ErrAddressNotFound):
		writeError(w, http.StatusBadRequest, "address_not_found", err.Error())
	case errors.Is(err, commerce.ErrUnknownShippingMethod):
		writeError(w, http.StatusBadRequest, "unknown_shipping_method", err.Error())
	case errors.Is(err, commerce.ErrPaymentDeclined):
		writeError(w, http.StatusPaymentRequired, "payment_declined", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrNilIntent):
		writeError(w, http.StatusBadRequest, "missing_intent", err.Error())
	default:
		writeError(w, http.StatusBadGateway, "commerce_platform_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
