package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrCartNotOpen  = errors.New("cart is not active")
	ErrCartExpired  = errors.New("cart has expired")
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Cart, error)
	FindItems(ctx context.Context, db *gorm.DB, cartID snowflake.ID) ([]CartItem, error)
	FindItemsByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]CartItem, error)
	// Complete transitions the cart ACTIVE -> COMPLETED; reports whether this
	// caller performed the write.
	Complete(ctx context.Context, db *gorm.DB, cartID snowflake.ID) (bool, error)
}
