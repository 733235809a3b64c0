package domain

import "errors"

var (
	// ErrInvalidSignature rejects a notification whose checksum does not
	// match; nothing downstream of verification may run.
	ErrInvalidSignature = errors.New("invalid gateway signature")

	// ErrOrderNotFound means the gateway reported a payment we have no local
	// record of. Alertable; never acknowledged as success to the gateway.
	ErrOrderNotFound = errors.New("order not found")

	// ErrAmountMismatch rejects a verified notification whose amount or
	// currency disagrees with the local order. Alertable; the order is left
	// untouched.
	ErrAmountMismatch = errors.New("notification amount does not match order")

	// ErrIllegalTransition marks an edge the state machine does not define.
	// Duplicate or out-of-order deliveries are not this case: they target a
	// legal edge and surface as applied=false.
	ErrIllegalTransition = errors.New("illegal payment status transition")

	ErrDuplicateOrder = errors.New("order id already exists")
)
