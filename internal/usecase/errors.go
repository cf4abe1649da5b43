package usecase

import "errors"

var (
	// ErrValidation rejects a checkout request before any provider call is
	// made: unknown product, quantity < 1, empty cart.
	ErrValidation = errors.New("invalid checkout request")

	// ErrUpstream wraps a failed provider call during session creation.
	// No internal side effects have happened; the client may retry.
	ErrUpstream = errors.New("payment provider request failed")

	// ErrDataIntegrity marks a verified event whose contents cannot be
	// trusted into an order: missing or malformed metadata, or a line item
	// whose product vanished from the catalog. Logged loudly and surfaced
	// for manual reconciliation, never silently dropped.
	ErrDataIntegrity = errors.New("event data integrity violation")

	// ErrDuplicateOrder is the unique-index collision on the payment
	// identifier. It is the expected idempotent-replay path, not a fault.
	ErrDuplicateOrder = errors.New("order already exists for payment")

	ErrNotFound = errors.New("not found")
)
