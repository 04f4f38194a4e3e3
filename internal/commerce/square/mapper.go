package square

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/redstick-goods/storefront/internal/commerce"
)

// Wire types mirror the platform's snake_case JSON. Quantities travel
// as strings on the wire; versions and amounts as numbers.

type orderEnvelope struct {
	Order *wireOrder `json:"order"`
}

type wireOrder struct {
	ID            string         `json:"id,omitempty"`
	LocationID    string         `json:"location_id,omitempty"`
	Version       int64          `json:"version,omitempty"`
	State         string         `json:"state,omitempty"`
	LineItems     []wireLineItem `json:"line_items,omitempty"`
	Taxes         []wireTax      `json:"taxes,omitempty"`
	TotalMoney    *wireMoney     `json:"total_money,omitempty"`
	TotalTaxMoney *wireMoney     `json:"total_tax_money,omitempty"`
}

// wireOrderPatch is the sparse order shape sent on create and update.
type wireOrderPatch struct {
	LocationID string         `json:"location_id,omitempty"`
	Version    int64          `json:"version,omitempty"`
	State      string         `json:"state,omitempty"`
	LineItems  []wireLineItem `json:"line_items,omitempty"`
	Taxes      []wireTax      `json:"taxes,omitempty"`
}

type wireLineItem struct {
	UID             string     `json:"uid,omitempty"`
	CatalogObjectID string     `json:"catalog_object_id,omitempty"`
	Name            string     `json:"name,omitempty"`
	Quantity        string     `json:"quantity,omitempty"`
	ItemType        string     `json:"item_type,omitempty"`
	BasePriceMoney  *wireMoney `json:"base_price_money,omitempty"`
}

type wireMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type wireTax struct {
	UID        string `json:"uid"`
	Name       string `json:"name"`
	Percentage string `json:"percentage"`
	Scope      string `json:"scope"`
}

type createOrderRequest struct {
	IdempotencyKey string         `json:"idempotency_key"`
	Order          wireOrderPatch `json:"order"`
}

type updateOrderRequest struct {
	IdempotencyKey string         `json:"idempotency_key"`
	Order          wireOrderPatch `json:"order"`
	FieldsToClear  []string       `json:"fields_to_clear,omitempty"`
}

type calculateOrderRequest struct {
	Order wireOrderPatch `json:"order"`
}

type errorEnvelope struct {
	Errors []wireError `json:"errors"`
}

type wireError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

// mapWireOrder normalizes one platform order. This is the single place
// where string quantities and optional fields are resolved; internal
// code never touches the wire shape.
func mapWireOrder(w *wireOrder) *commerce.Order {
	o := &commerce.Order{
		ID:         w.ID,
		LocationID: w.LocationID,
		Version:    w.Version,
		State:      commerce.OrderState(w.State),
		LineItems:  make([]commerce.LineItem, 0, len(w.LineItems)),
	}
	if o.State == "" {
		o.State = commerce.StateOpen
	}
	for _, wl := range w.LineItems {
		o.LineItems = append(o.LineItems, mapWireLineItem(wl))
	}
	if w.TotalMoney != nil {
		o.TotalMoney = commerce.Money{Amount: w.TotalMoney.Amount, Currency: w.TotalMoney.Currency}
	}
	if w.TotalTaxMoney != nil {
		o.TotalTaxMoney = commerce.Money{Amount: w.TotalTaxMoney.Amount, Currency: w.TotalTaxMoney.Currency}
	}
	return o
}

func mapWireLineItem(wl wireLineItem) commerce.LineItem {
	qty, _ := strconv.ParseInt(wl.Quantity, 10, 64)
	li := commerce.LineItem{
		UID:             wl.UID,
		CatalogObjectID: wl.CatalogObjectID,
		Name:            wl.Name,
		Quantity:        qty,
		ItemType:        commerce.LineItemType(wl.ItemType),
	}
	if li.ItemType == "" {
		li.ItemType = commerce.ItemTypeCatalog
	}
	if wl.BasePriceMoney != nil {
		li.BasePrice = commerce.Money{Amount: wl.BasePriceMoney.Amount, Currency: wl.BasePriceMoney.Currency}
	}
	return li
}

func mapOrderToWire(o *commerce.Order) *wireOrderPatch {
	return &wireOrderPatch{
		LocationID: o.LocationID,
		Version:    o.Version,
		State:      string(o.State),
		LineItems:  mapLineItemsToWire(o.LineItems),
	}
}

func mapLineItemsToWire(items []commerce.LineItem) []wireLineItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]wireLineItem, 0, len(items))
	for _, li := range items {
		wl := wireLineItem{
			UID:             li.UID,
			CatalogObjectID: li.CatalogObjectID,
			Name:            li.Name,
			Quantity:        strconv.FormatInt(li.Quantity, 10),
			ItemType:        string(li.ItemType),
		}
		// Catalog-referenced items are priced by the platform; only
		// custom charges carry an explicit base price.
		if li.CatalogObjectID == "" && (li.BasePrice.Amount != 0 || li.BasePrice.Currency != "") {
			wl.BasePriceMoney = &wireMoney{Amount: li.BasePrice.Amount, Currency: li.BasePrice.Currency}
		}
		out = append(out, wl)
	}
	return out
}

// mapWireError translates the platform's error envelope into the
// shared taxonomy.
func mapWireError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var env errorEnvelope
	_ = json.Unmarshal(body, &env)

	code, detail := "", ""
	if len(env.Errors) > 0 {
		code = env.Errors[0].Code
		detail = env.Errors[0].Detail
	}

	switch {
	case resp.StatusCode == http.StatusNotFound, code == "NOT_FOUND":
		return commerce.ErrOrderNotFound
	case code == "VERSION_MISMATCH", code == "CONFLICTING_PARAMETERS" && resp.StatusCode == http.StatusConflict:
		return commerce.ErrVersionConflict
	case code == "GENERIC_DECLINE", code == "CARD_DECLINED", code == "INSUFFICIENT_FUNDS":
		return commerce.ErrPaymentDeclined
	}
	return &commerce.RemoteError{Status: resp.StatusCode, Code: code, Detail: detail}
}
