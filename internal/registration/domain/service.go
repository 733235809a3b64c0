package domain

import (
	"context"

	paymentdomain "github.com/craftlane/entrypay/internal/payment/domain"
)

// Materializer converts a COMPLETED payment's cart snapshot into one
// Registration per cart item, exactly once. Safe to call repeatedly: a
// payment that already carries its full set of registrations is a no-op.
type Materializer interface {
	Materialize(ctx context.Context, payment *paymentdomain.PaymentRecord) ([]Registration, error)
}
