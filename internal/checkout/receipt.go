package checkout

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/redstick-goods/storefront/internal/cart"
	"github.com/redstick-goods/storefront/internal/commerce"
)

// Receipt is the durable summary of a completed purchase, used by the
// post-purchase confirmation display.
type Receipt struct {
	PaymentID string             `json:"payment_id"`
	OrderID   string             `json:"order_id"`
	ReceiptNo string             `json:"receipt_no,omitempty"`
	Amount    commerce.Money     `json:"amount"`
	Totals    cart.DerivedTotals `json:"totals"`
	Customer  Customer           `json:"customer"`
	Items     []commerce.LineItem `json:"items"`

	// TraceID/SpanID come from the OTel span active when the payment
	// completed, so a receipt row can be joined with its trace.
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`

	CompletedAt time.Time `json:"completed_at"`
}

// ReceiptStore is the port for receipt persistence. The sqlite
// implementation lives in internal/store/sqlite.
type ReceiptStore interface {
	// Save appends a receipt; receipts are immutable once written.
	Save(ctx context.Context, r *Receipt) error

	// Latest returns the most recent receipt, or (nil, nil) when no
	// purchase has completed yet.
	Latest(ctx context.Context) (*Receipt, error)
}

func newReceipt(ctx context.Context, intent *PaymentIntent, payment *commerce.Payment) *Receipt {
	r := &Receipt{
		PaymentID:   payment.ID,
		OrderID:     intent.OrderID,
		ReceiptNo:   payment.ReceiptNo,
		Amount:      payment.Amount,
		Totals:      intent.Totals,
		Customer:    intent.Customer,
		Items:       intent.Items,
		CompletedAt: time.Now().UTC(),
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.TraceID = sc.TraceID().String()
		r.SpanID = sc.SpanID().String()
	}
	return r
}
