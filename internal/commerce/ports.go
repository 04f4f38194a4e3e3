package commerce

import "context"

// CreateOrderParams seeds a brand-new remote order.
type CreateOrderParams struct {
	// IdempotencyKey guarantees a retried create is not applied twice.
	// A fresh key must be generated per cart lifecycle, never reused
	// from a stale order.
	IdempotencyKey string
	LocationID     string
	LineItems      []LineItem
}

// UpdateOrderParams is a sparse patch against a versioned order.
// Exactly one of LineItems / FieldsToClear / State is typically set,
// but the platform accepts combinations.
type UpdateOrderParams struct {
	OrderID        string
	IdempotencyKey string

	// Version is the version read by the most recent successful
	// refresh. The platform rejects the mutation if it is stale.
	Version int64

	// LineItems carries appended or modified line items. An entry with
	// a UID patches the existing item; without a UID it is appended.
	LineItems []LineItem

	// FieldsToClear names field paths to remove, e.g.
	// "line_items[<uid>]" for one item or "line_items" for all.
	FieldsToClear []string

	// State, when non-empty, transitions the order (e.g. CANCELED).
	State OrderState
}

// OrderAPI is the contract of the remote order resource. Implemented
// by the square adapter; faked in engine tests.
type OrderAPI interface {
	GetOrder(ctx context.Context, id string) (*Order, error)
	CreateOrder(ctx context.Context, p CreateOrderParams) (*Order, error)
	UpdateOrder(ctx context.Context, p UpdateOrderParams) (*Order, error)

	// CalculateOrder re-prices the order under the deployment's tax
	// rules and returns the platform-computed totals without mutating
	// the stored order.
	CalculateOrder(ctx context.Context, order *Order) (total, tax Money, err error)
}

// PaymentParams charges a tokenized payment source.
type PaymentParams struct {
	IdempotencyKey string
	SourceID       string
	Amount         Money
	OrderID        string
}

// Payment is the platform's record of a completed charge.
type Payment struct {
	ID        string
	OrderID   string
	Amount    Money
	ReceiptNo string
}

// PaymentAPI is the contract of the platform's payments surface.
type PaymentAPI interface {
	CreatePayment(ctx context.Context, p PaymentParams) (*Payment, error)

	// RefundPayment undoes a charge; used as the compensating action
	// when checkout fails after the charge succeeded.
	RefundPayment(ctx context.Context, paymentID string, amount Money) error
}
