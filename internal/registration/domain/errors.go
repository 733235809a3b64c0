package domain

import "errors"

var (
	// ErrCodeExhausted reports a unique-code generation attempt that ran out
	// of retries. Repeated exhaustion signals a configuration problem
	// (alphabet too small or a large pre-existing collision set) and must be
	// surfaced, never swallowed.
	ErrCodeExhausted = errors.New("unique code generation exhausted retries")

	// ErrSnapshotMismatch means the registrations already present for a
	// payment neither match zero nor the full snapshot size. The transaction
	// guarantees all-or-nothing, so this should never happen; it is surfaced
	// for support tooling rather than repaired silently.
	ErrSnapshotMismatch = errors.New("registration count does not match cart snapshot")

	ErrEmptySnapshot = errors.New("payment has an empty cart item snapshot")

	ErrRegistrationNotFound = errors.New("registration not found")
)
