// Package checkout implements the two-phase payment protocol:
// Prepare builds a payment intent from the current cart, Confirm
// charges the tokenized source and finalizes the order. The engine is
// decoupled from any particular tokenization widget; only the opaque
// token crosses this boundary.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/redstick-goods/storefront/internal/cart"
	"github.com/redstick-goods/storefront/internal/commerce"
)

// Customer is the buyer identity captured on the checkout form. It is
// stored on the receipt for the confirmation display only and is not
// re-validated against the platform.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PaymentIntent is the descriptor produced by Prepare and consumed by
// Confirm. The idempotency key is minted at Prepare time so a retried
// Confirm does not double-charge.
type PaymentIntent struct {
	OrderID        string             `json:"order_id"`
	IdempotencyKey string             `json:"idempotency_key"`
	Amount         commerce.Money     `json:"amount"`
	Totals         cart.DerivedTotals `json:"totals"`
	Customer       Customer           `json:"customer"`
	Items          []commerce.LineItem `json:"items"`
	CreatedAt      time.Time          `json:"created_at"`
}

var (
	// ErrEmptyCart: Prepare was called with no order or no items.
	ErrEmptyCart = errors.New("checkout: cart is empty")

	// ErrNilIntent: Confirm was called without a Prepare descriptor.
	ErrNilIntent = errors.New("checkout: payment intent is required")
)

// Checkout orchestrates the confirm flow. If a downstream step fails
// after the charge succeeded, the charge is compensated with a refund,
// in LIFO order over the steps that completed.
type Checkout struct {
	engine   *cart.Engine
	payments commerce.PaymentAPI
	receipts ReceiptStore
	currency string
}

func New(engine *cart.Engine, payments commerce.PaymentAPI, receipts ReceiptStore, currency string) *Checkout {
	return &Checkout{
		engine:   engine,
		payments: payments,
		receipts: receipts,
		currency: currency,
	}
}

// Prepare refreshes the order, recomputes the derived totals for the
// chosen shipping cost, and returns the intent descriptor the caller
// must pass back to Confirm along with the card token.
func (c *Checkout) Prepare(ctx context.Context, customer Customer, shippingCost int64) (*PaymentIntent, error) {
	if err := c.engine.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("checkout: prepare: %w", err)
	}

	snap := c.engine.Snapshot()
	if snap.OrderID == "" || len(snap.LineItems) == 0 {
		return nil, ErrEmptyCart
	}

	totals, err := c.engine.Totals(shippingCost)
	if err != nil {
		return nil, fmt.Errorf("checkout: prepare: %w", err)
	}

	return &PaymentIntent{
		OrderID:        snap.OrderID,
		IdempotencyKey: uuid.NewString(),
		Amount:         commerce.Money{Amount: totals.GrandTotal, Currency: c.currency},
		Totals:         totals,
		Customer:       customer,
		Items:          snap.LineItems,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// Confirm charges the token against the intent, persists the receipt,
// and clears the cart. A failure after the charge triggers the
// compensating refund before the error is surfaced.
func (c *Checkout) Confirm(ctx context.Context, token string, intent *PaymentIntent) (*Receipt, error) {
	if intent == nil {
		return nil, ErrNilIntent
	}
	if token == "" {
		return nil, fmt.Errorf("checkout: confirm: payment token is required")
	}

	charge := &chargeStep{payments: c.payments, token: token, intent: intent}
	receipt := &receiptStep{receipts: c.receipts, charge: charge, intent: intent}
	clear := &clearCartStep{engine: c.engine}

	if err := runSteps(ctx, []step{charge, receipt, clear}); err != nil {
		return nil, err
	}
	return receipt.saved, nil
}

// chargeStep creates the payment. Its compensation is a full refund.
type chargeStep struct {
	payments commerce.PaymentAPI
	token    string
	intent   *PaymentIntent

	payment *commerce.Payment
}

func (s *chargeStep) name() string { return "charge_payment" }

func (s *chargeStep) execute(ctx context.Context) error {
	p, err := s.payments.CreatePayment(ctx, commerce.PaymentParams{
		IdempotencyKey: s.intent.IdempotencyKey,
		SourceID:       s.token,
		Amount:         s.intent.Amount,
		OrderID:        s.intent.OrderID,
	})
	if err != nil {
		return fmt.Errorf("charge payment: %w", err)
	}
	s.payment = p
	return nil
}

func (s *chargeStep) compensate(ctx context.Context) error {
	if s.payment == nil {
		return nil
	}
	return s.payments.RefundPayment(ctx, s.payment.ID, s.payment.Amount)
}

// receiptStep persists the durable completed-order summary.
type receiptStep struct {
	receipts ReceiptStore
	charge   *chargeStep
	intent   *PaymentIntent

	saved *Receipt
}

func (s *receiptStep) name() string { return "persist_receipt" }

func (s *receiptStep) execute(ctx context.Context) error {
	r := newReceipt(ctx, s.intent, s.charge.payment)
	if err := s.receipts.Save(ctx, r); err != nil {
		return fmt.Errorf("persist receipt: %w", err)
	}
	s.saved = r
	return nil
}

func (s *receiptStep) compensate(ctx context.Context) error { return nil }

// clearCartStep forgets the paid-for order so the next add starts a
// fresh cart. An expired order here is already the desired end state.
type clearCartStep struct {
	engine *cart.Engine
}

func (s *clearCartStep) name() string { return "clear_cart" }

func (s *clearCartStep) execute(ctx context.Context) error {
	if err := s.engine.Clear(ctx); err != nil && !errors.Is(err, commerce.ErrOrderExpired) {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *clearCartStep) compensate(ctx context.Context) error { return nil }

// step is one unit of the confirm flow with a compensating action.
type step interface {
	name() string
	execute(ctx context.Context) error
	compensate(ctx context.Context) error
}

// runSteps executes the steps sequentially. On failure it compensates
// the completed steps in LIFO order and returns the original error.
func runSteps(ctx context.Context, steps []step) error {
	var done []step
	for _, s := range steps {
		slog.InfoContext(ctx, "checkout step", "step", s.name())
		if err := s.execute(ctx); err != nil {
			slog.ErrorContext(ctx, "checkout step failed, compensating", "step", s.name(), "error", err)
			for i := len(done) - 1; i >= 0; i-- {
				if cerr := done[i].compensate(ctx); cerr != nil {
					slog.ErrorContext(ctx, "CRITICAL: compensation failed",
						"step", done[i].name(),
						"error", cerr,
					)
				}
			}
			return fmt.Errorf("checkout: %w", err)
		}
		done = append(done, s)
	}
	return nil
}
