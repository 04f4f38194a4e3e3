package httpx

import (
	"github.com/redstick-goods/storefront/internal/cart"
	"github.com/redstick-goods/storefront/internal/checkout"
	"github.com/redstick-goods/storefront/internal/commerce"
	"github.com/redstick-goods/storefront/internal/shipping"
)

type AddItemRequest struct {
	VariationID string `json:"variation_id"`
	Name        string `json:"name,omitempty"`
}

type SetQuantityRequest struct {
	Quantity int64 `json:"quantity"`
}

type CartResponse struct {
	OrderID     string              `json:"order_id,omitempty"`
	Version     int64               `json:"version,omitempty"`
	LineItems   []LineItemResponse  `json:"line_items"`
	TotalItems  int64               `json:"total_items"`
	ServerTotal commerce.Money      `json:"server_total"`
	ServerTax   commerce.Money      `json:"server_tax"`
	Totals      *cart.DerivedTotals `json:"totals,omitempty"`
}

type LineItemResponse struct {
	UID             string         `json:"uid"`
	CatalogObjectID string         `json:"catalog_object_id,omitempty"`
	Name            string         `json:"name,omitempty"`
	Quantity        int64          `json:"quantity"`
	BasePrice       commerce.Money `json:"base_price"`
	ItemType        string         `json:"item_type"`
}

type EstimateRequest struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zip_code"`
	Country  string `json:"country,omitempty"`
	Method   string `json:"method"`
	Quantity int64  `json:"quantity"`
}

type EstimateResponse struct {
	DistanceMiles int64              `json:"distance_miles"`
	ShippingCost  int64              `json:"shipping_cost"`
	Method        string             `json:"method"`
	Totals        cart.DerivedTotals `json:"totals"`
}

type PrepareRequest struct {
	Customer     checkout.Customer `json:"customer"`
	ShippingCost int64             `json:"shipping_cost"`
}

type ConfirmRequest struct {
	Token  string                  `json:"token"`
	Intent *checkout.PaymentIntent `json:"intent"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapSnapshot(s cart.Snapshot, totals *cart.DerivedTotals) CartResponse {
	items := make([]LineItemResponse, 0, len(s.LineItems))
	for _, li := range s.LineItems {
		items = append(items, LineItemResponse{
			UID:             li.UID,
			CatalogObjectID: li.CatalogObjectID,
			Name:            li.Name,
			Quantity:        li.Quantity,
			BasePrice:       li.BasePrice,
			ItemType:        string(li.ItemType),
		})
	}
	return CartResponse{
		OrderID:     s.OrderID,
		Version:     s.Version,
		LineItems:   items,
		TotalItems:  s.TotalItems,
		ServerTotal: s.ServerTotal,
		ServerTax:   s.ServerTax,
		Totals:      totals,
	}
}

func mapQuote(q shipping.Quote, totals cart.DerivedTotals) EstimateResponse {
	return EstimateResponse{
		DistanceMiles: q.DistanceMiles,
		ShippingCost:  q.Cost,
		Method:        string(q.Method),
		Totals:        totals,
	}
}
