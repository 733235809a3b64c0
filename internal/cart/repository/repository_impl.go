package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/craftlane/entrypay/internal/cart/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Cart, error) {
	var cart domain.Cart
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, status, expires_at, created_at, updated_at
		 FROM carts WHERE id = ?`,
		id,
	).Scan(&cart).Error
	if err != nil {
		return nil, err
	}
	if cart.ID == 0 {
		return nil, nil
	}
	return &cart, nil
}

func (r *repo) FindItems(ctx context.Context, db *gorm.DB, cartID snowflake.ID) ([]domain.CartItem, error) {
	var items []domain.CartItem
	err := db.WithContext(ctx).
		Model(&domain.CartItem{}).
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindItemsByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.CartItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.CartItem
	err := db.WithContext(ctx).
		Model(&domain.CartItem{}).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Complete(ctx context.Context, db *gorm.DB, cartID snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE carts
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.CartStatusCompleted,
		time.Now().UTC(),
		cartID,
		domain.CartStatusActive,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
