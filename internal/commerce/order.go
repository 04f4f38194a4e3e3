// Package commerce defines the normalized view of the remote order
// resource owned by the commerce platform, plus the ports the rest of
// the application depends on.
//
// The platform's wire format is inconsistent across endpoints (string
// quantities, optional discriminators, two spellings of the same money
// field). All of that is flattened by the square adapter at the
// boundary; internal code only ever sees the types in this package.
package commerce

// OrderState is the lifecycle state of a remote order.
// OPEN is the only state in which mutations are accepted.
type OrderState string

const (
	StateOpen      OrderState = "OPEN"
	StateCompleted OrderState = "COMPLETED"
	StateFulfilled OrderState = "FULFILLED"
	StateCanceled  OrderState = "CANCELED"
)

// Terminal reports whether the state admits no further mutations.
func (s OrderState) Terminal() bool {
	return s == StateCompleted || s == StateFulfilled || s == StateCanceled
}

// LineItemType discriminates catalog items from synthetic charges such
// as a shipping line.
type LineItemType string

const (
	ItemTypeCatalog LineItemType = "ITEM"
	ItemTypeCustom  LineItemType = "CUSTOM_AMOUNT"
)

// Money is an amount in minor currency units (cents for USD).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// LineItem is one priced entry within an order.
type LineItem struct {
	// UID is unique within the order and is the handle used for
	// quantity updates and removals.
	UID             string       `json:"uid"`
	CatalogObjectID string       `json:"catalog_object_id,omitempty"`
	Name            string       `json:"name,omitempty"`
	Quantity        int64        `json:"quantity"`
	BasePrice       Money        `json:"base_price"`
	ItemType        LineItemType `json:"item_type"`
}

// ExtendedPrice is unit price times quantity, in minor units.
func (li LineItem) ExtendedPrice() int64 {
	return li.BasePrice.Amount * li.Quantity
}

// Order is the server-owned aggregate. Version increases monotonically;
// every mutation must supply the version it read and the platform
// rejects stale ones.
type Order struct {
	ID         string
	LocationID string
	Version    int64
	State      OrderState
	LineItems  []LineItem

	// TotalMoney and TotalTaxMoney are platform-computed and only
	// populated after a get or calculate call.
	TotalMoney    Money
	TotalTaxMoney Money
}

// CatalogItems returns the line items of catalog type, preserving order.
// Synthetic charges (shipping lines) are excluded.
func (o *Order) CatalogItems() []LineItem {
	out := make([]LineItem, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		if li.ItemType == ItemTypeCatalog {
			out = append(out, li)
		}
	}
	return out
}

// FindLineItem returns the line item with the given uid, or false.
func (o *Order) FindLineItem(uid string) (LineItem, bool) {
	for _, li := range o.LineItems {
		if li.UID == uid {
			return li, true
		}
	}
	return LineItem{}, false
}
