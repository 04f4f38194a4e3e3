package square

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/redstick-goods/storefront/internal/commerce"
)

type createPaymentRequest struct {
	IdempotencyKey string    `json:"idempotency_key"`
	SourceID       string    `json:"source_id"`
	AmountMoney    wireMoney `json:"amount_money"`
	OrderID        string    `json:"order_id,omitempty"`
	LocationID     string    `json:"location_id,omitempty"`
}

type paymentEnvelope struct {
	Payment *wirePayment `json:"payment"`
}

type wirePayment struct {
	ID            string     `json:"id"`
	OrderID       string     `json:"order_id"`
	AmountMoney   *wireMoney `json:"amount_money"`
	ReceiptNumber string     `json:"receipt_number"`
	Status        string     `json:"status"`
}

type createRefundRequest struct {
	IdempotencyKey string    `json:"idempotency_key"`
	PaymentID      string    `json:"payment_id"`
	AmountMoney    wireMoney `json:"amount_money"`
}

// CreatePayment charges a tokenized card source. The token comes from
// the platform's client-side tokenization widget; this side only ever
// sees the opaque source id.
func (c *Client) CreatePayment(ctx context.Context, p commerce.PaymentParams) (*commerce.Payment, error) {
	req := createPaymentRequest{
		IdempotencyKey: p.IdempotencyKey,
		SourceID:       p.SourceID,
		AmountMoney:    wireMoney{Amount: p.Amount.Amount, Currency: p.Amount.Currency},
		OrderID:        p.OrderID,
		LocationID:     c.cfg.LocationID,
	}

	var resp paymentEnvelope
	if err := c.do(ctx, http.MethodPost, "/v2/payments", req, &resp); err != nil {
		return nil, fmt.Errorf("square: create payment: %w", err)
	}
	if resp.Payment == nil {
		return nil, fmt.Errorf("square: create payment: empty payment in response")
	}
	if resp.Payment.Status == "FAILED" || resp.Payment.Status == "CANCELED" {
		return nil, commerce.ErrPaymentDeclined
	}

	out := &commerce.Payment{
		ID:        resp.Payment.ID,
		OrderID:   resp.Payment.OrderID,
		ReceiptNo: resp.Payment.ReceiptNumber,
	}
	if resp.Payment.AmountMoney != nil {
		out.Amount = commerce.Money{Amount: resp.Payment.AmountMoney.Amount, Currency: resp.Payment.AmountMoney.Currency}
	}
	return out, nil
}

// RefundPayment compensates a charge when checkout fails downstream of
// a successful payment.
func (c *Client) RefundPayment(ctx context.Context, paymentID string, amount commerce.Money) error {
	req := createRefundRequest{
		IdempotencyKey: uuid.NewString(),
		PaymentID:      paymentID,
		AmountMoney:    wireMoney{Amount: amount.Amount, Currency: amount.Currency},
	}
	if err := c.do(ctx, http.MethodPost, "/v2/refunds", req, nil); err != nil {
		return fmt.Errorf("square: refund payment %s: %w", paymentID, err)
	}
	return nil
}
