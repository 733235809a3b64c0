package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reg *Registration) error
	CountByPaymentID(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (int64, error)
	FindByPaymentID(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) ([]Registration, error)
	FindByNumber(ctx context.Context, db *gorm.DB, number string) (*Registration, error)
	NumberExists(ctx context.Context, db *gorm.DB, number string) (bool, error)
	DisplayCodeExists(ctx context.Context, db *gorm.DB, competitionID snowflake.ID, year int, code string) (bool, error)
}
