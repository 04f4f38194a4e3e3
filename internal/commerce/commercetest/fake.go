// Package commercetest provides in-memory fakes of the commerce
// platform for tests: a versioned order store with the platform's
// optimistic-concurrency behavior, and a payments recorder.
package commercetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/redstick-goods/storefront/internal/commerce"
)

// FakeAPI implements commerce.OrderAPI against an in-memory map,
// rejecting stale versions the way the platform does and counting
// calls so tests can assert on network traffic.
type FakeAPI struct {
	mu sync.Mutex

	orders  map[string]*commerce.Order
	nextIDs int
	nextUID int

	// Prices maps catalog object ids to unit prices in minor units;
	// line items referencing an unknown id get price 0.
	Prices map[string]int64

	// TaxRate drives CalculateOrder; defaults to 9.75%.
	TaxRate decimal.Decimal

	// IdempotencyKeys records every key seen on create and update,
	// in call order.
	IdempotencyKeys []string

	// Call counters.
	GetCalls    int
	CreateCalls int
	UpdateCalls int
	CalcCalls   int

	// FailGetWith, when set, makes GetOrder return this error once.
	FailGetWith error

	// Deleted marks order ids the platform has forgotten; gets and
	// updates against them return commerce.ErrOrderNotFound.
	Deleted map[string]bool
}

func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		orders:  make(map[string]*commerce.Order),
		Prices:  make(map[string]int64),
		TaxRate: decimal.RequireFromString("0.0975"),
		Deleted: make(map[string]bool),
	}
}

var _ commerce.OrderAPI = (*FakeAPI)(nil)

func (f *FakeAPI) GetOrder(_ context.Context, id string) (*commerce.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls++

	if f.FailGetWith != nil {
		err := f.FailGetWith
		f.FailGetWith = nil
		return nil, err
	}

	o, ok := f.orders[id]
	if !ok || f.Deleted[id] {
		return nil, commerce.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (f *FakeAPI) CreateOrder(_ context.Context, p commerce.CreateOrderParams) (*commerce.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++
	f.IdempotencyKeys = append(f.IdempotencyKeys, p.IdempotencyKey)

	f.nextIDs++
	o := &commerce.Order{
		ID:         fmt.Sprintf("order-%d", f.nextIDs),
		LocationID: p.LocationID,
		Version:    1,
		State:      commerce.StateOpen,
	}
	for _, li := range p.LineItems {
		o.LineItems = append(o.LineItems, f.materialize(li))
	}
	f.orders[o.ID] = o
	return cloneOrder(o), nil
}

func (f *FakeAPI) UpdateOrder(_ context.Context, p commerce.UpdateOrderParams) (*commerce.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	f.IdempotencyKeys = append(f.IdempotencyKeys, p.IdempotencyKey)

	o, ok := f.orders[p.OrderID]
	if !ok || f.Deleted[p.OrderID] {
		return nil, commerce.ErrOrderNotFound
	}
	if p.Version != o.Version {
		return nil, commerce.ErrVersionConflict
	}

	for _, clear := range p.FieldsToClear {
		if clear == "line_items" {
			o.LineItems = nil
			continue
		}
		if strings.HasPrefix(clear, "line_items[") && strings.HasSuffix(clear, "]") {
			uid := clear[len("line_items[") : len(clear)-1]
			o.LineItems = removeByUID(o.LineItems, uid)
		}
	}

	for _, li := range p.LineItems {
		if li.UID == "" {
			o.LineItems = append(o.LineItems, f.materialize(li))
			continue
		}
		patched := false
		for i := range o.LineItems {
			if o.LineItems[i].UID == li.UID {
				o.LineItems[i].Quantity = li.Quantity
				patched = true
				break
			}
		}
		if !patched {
			return nil, commerce.ErrLineItemNotFound
		}
	}

	if p.State != "" {
		o.State = p.State
	}

	o.Version++
	return cloneOrder(o), nil
}

func (f *FakeAPI) CalculateOrder(_ context.Context, order *commerce.Order) (commerce.Money, commerce.Money, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CalcCalls++

	var subtotal int64
	for _, li := range order.LineItems {
		subtotal += li.ExtendedPrice()
	}
	tax := f.TaxRate.Mul(decimal.NewFromInt(subtotal)).Round(0).IntPart()

	currency := "USD"
	return commerce.Money{Amount: subtotal + tax, Currency: currency},
		commerce.Money{Amount: tax, Currency: currency}, nil
}

// Forget makes the platform lose an order, simulating expiry.
func (f *FakeAPI) Forget(orderID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted[orderID] = true
}

// Order returns the stored order for direct assertions.
func (f *FakeAPI) Order(orderID string) *commerce.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[orderID]; ok {
		return cloneOrder(o)
	}
	return nil
}

// Calls reports total mutation+read traffic.
func (f *FakeAPI) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.GetCalls + f.CreateCalls + f.UpdateCalls + f.CalcCalls
}

func (f *FakeAPI) materialize(li commerce.LineItem) commerce.LineItem {
	f.nextUID++
	li.UID = fmt.Sprintf("li-%d", f.nextUID)
	if li.ItemType == "" {
		li.ItemType = commerce.ItemTypeCatalog
	}
	if li.CatalogObjectID != "" {
		li.BasePrice = commerce.Money{Amount: f.Prices[li.CatalogObjectID], Currency: "USD"}
	}
	return li
}

func removeByUID(items []commerce.LineItem, uid string) []commerce.LineItem {
	out := items[:0]
	for _, li := range items {
		if li.UID != uid {
			out = append(out, li)
		}
	}
	return out
}

func cloneOrder(o *commerce.Order) *commerce.Order {
	c := *o
	c.LineItems = make([]commerce.LineItem, len(o.LineItems))
	copy(c.LineItems, o.LineItems)
	return &c
}

// FakePayments implements commerce.PaymentAPI, recording charges and
// refunds.
type FakePayments struct {
	mu sync.Mutex

	Charges []commerce.PaymentParams
	Refunds []string

	// FailWith makes CreatePayment fail.
	FailWith error
}

var _ commerce.PaymentAPI = (*FakePayments)(nil)

func (f *FakePayments) CreatePayment(_ context.Context, p commerce.PaymentParams) (*commerce.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWith != nil {
		return nil, f.FailWith
	}
	f.Charges = append(f.Charges, p)
	return &commerce.Payment{
		ID:        fmt.Sprintf("payment-%d", len(f.Charges)),
		OrderID:   p.OrderID,
		Amount:    p.Amount,
		ReceiptNo: fmt.Sprintf("R-%04d", len(f.Charges)),
	}, nil
}

func (f *FakePayments) RefundPayment(_ context.Context, paymentID string, _ commerce.Money) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Refunds = append(f.Refunds, paymentID)
	return nil
}
