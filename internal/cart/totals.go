package cart

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/redstick-goods/storefront/internal/commerce"
)

// DerivedTotals are recomputed from line items plus the shipping
// selection; they are never persisted independently of the order.
// All four fields are minor-currency units and Subtotal + ShippingCost
// + Tax always equals GrandTotal exactly.
type DerivedTotals struct {
	Subtotal     int64 `json:"subtotal"`
	ShippingCost int64 `json:"shipping_cost"`
	Tax          int64 `json:"tax"`
	GrandTotal   int64 `json:"grand_total"`
}

// ComputeTotals is a pure mapping from (line items, shipping cost,
// tax rate) to the derived totals.
//
// Tax is computed once from subtotal+shipping and rounded half-up to
// the nearest minor unit. Computing it per line item and summing would
// drift from the single-rounding result by a unit in edge cases, so it
// deliberately is not done that way.
//
// Negative quantities or prices are rejected with
// commerce.ErrInvalidLineItem, never clamped.
func ComputeTotals(items []commerce.LineItem, shippingCost int64, taxRate decimal.Decimal) (DerivedTotals, error) {
	if shippingCost < 0 {
		return DerivedTotals{}, fmt.Errorf("negative shipping cost %d: %w", shippingCost, commerce.ErrInvalidLineItem)
	}
	if taxRate.IsNegative() {
		return DerivedTotals{}, fmt.Errorf("negative tax rate %s: %w", taxRate, commerce.ErrInvalidLineItem)
	}

	var subtotal int64
	for _, li := range items {
		if li.Quantity < 0 || li.BasePrice.Amount < 0 {
			return DerivedTotals{}, fmt.Errorf("line item %q has negative quantity or price: %w", li.UID, commerce.ErrInvalidLineItem)
		}
		// Synthetic charges (a shipping line pushed to the platform)
		// are excluded; shipping enters through shippingCost.
		if li.ItemType != commerce.ItemTypeCatalog {
			continue
		}
		subtotal += li.ExtendedPrice()
	}

	taxable := decimal.NewFromInt(subtotal + shippingCost)
	// decimal.Round is round-half-away-from-zero, which for the
	// non-negative amounts here is exactly round-half-up.
	tax := taxRate.Mul(taxable).Round(0).IntPart()

	return DerivedTotals{
		Subtotal:     subtotal,
		ShippingCost: shippingCost,
		Tax:          tax,
		GrandTotal:   subtotal + shippingCost + tax,
	}, nil
}
