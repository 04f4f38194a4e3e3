package commerce

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the failure taxonomy shared by the engine,
// the shipping estimator, and the HTTP layer. Adapters map platform
// error codes onto these; callers test with errors.Is.
var (
	// ErrInvalidVariation: caller passed an item with no resolvable
	// catalog variation id. Never retried, no network call is made.
	ErrInvalidVariation = errors.New("commerce: item has no resolvable catalog variation")

	// ErrInvalidLineItem: negative quantity or price reached the
	// totals calculator. Rejected, never clamped.
	ErrInvalidLineItem = errors.New("commerce: invalid line item")

	// ErrLineItemNotFound: the uid is not present in the last-known
	// line items.
	ErrLineItemNotFound = errors.New("commerce: line item not found")

	// ErrVersionConflict: the platform rejected a stale version.
	// The engine refreshes once and surfaces this; it never silently
	// re-applies the mutation.
	ErrVersionConflict = errors.New("commerce: order version conflict")

	// ErrOrderNotFound: the remote order no longer exists. The engine
	// translates this into ErrOrderExpired after clearing its pointer.
	ErrOrderNotFound = errors.New("commerce: order not found")

	// ErrOrderExpired: the local pointer referenced an order the
	// platform has forgotten. Not fatal; the next add starts fresh.
	ErrOrderExpired = errors.New("commerce: order expired")

	// ErrAddressNotFound: the geocoder returned no match for the
	// destination address.
	ErrAddressNotFound = errors.New("commerce: address not found")

	// ErrUnknownShippingMethod: method outside the closed enumeration.
	ErrUnknownShippingMethod = errors.New("commerce: unknown shipping method")

	// ErrPaymentDeclined: the platform refused the charge.
	ErrPaymentDeclined = errors.New("commerce: payment declined")
)

// RemoteError wraps any other failure reported by the platform,
// preserving the HTTP status and the platform's error code so the
// HTTP layer can relay something actionable.
type RemoteError struct {
	Status int
	Code   string
	Detail string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("commerce: remote service error (status %d, code %q): %s", e.Status, e.Code, e.Detail)
}
