package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *PaymentRecord) error
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*PaymentRecord, error)
	// Transition performs the atomic conditional status write
	// ("UPDATE ... WHERE order_id = ? AND status = ?") and reports whether
	// this caller won it. This is the sole serialization point of the
	// pipeline; it must stay a single round trip. Edges CanTransition does
	// not define return ErrIllegalTransition without touching the row.
	Transition(ctx context.Context, db *gorm.DB, orderID, from, to string, fields TransitionFields) (bool, error)
}
