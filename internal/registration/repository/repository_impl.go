package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/craftlane/entrypay/internal/registration/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reg *domain.Registration) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO registrations (
			id, registration_number, display_code, competition_id, year,
			user_id, registration_type_id, payment_id, cart_item_id, team_name,
			amount_paid, currency, status, confirmed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reg.ID,
		reg.RegistrationNumber,
		reg.DisplayCode,
		reg.CompetitionID,
		reg.Year,
		reg.UserID,
		reg.RegistrationTypeID,
		reg.PaymentID,
		reg.CartItemID,
		reg.TeamName,
		reg.AmountPaid,
		reg.Currency,
		reg.Status,
		reg.ConfirmedAt,
		reg.CreatedAt,
	).Error
}

func (r *repo) CountByPaymentID(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Registration{}).
		Where("payment_id = ?", paymentID).
		Count(&count).Error
	return count, err
}

func (r *repo) FindByPaymentID(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) ([]domain.Registration, error) {
	var regs []domain.Registration
	err := db.WithContext(ctx).
		Model(&domain.Registration{}).
		Where("payment_id = ?", paymentID).
		Order("id asc").
		Find(&regs).Error
	if err != nil {
		return nil, err
	}
	return regs, nil
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, number string) (*domain.Registration, error) {
	var reg domain.Registration
	err := db.WithContext(ctx).
		Model(&domain.Registration{}).
		Where("registration_number = ?", number).
		Limit(1).
		Find(&reg).Error
	if err != nil {
		return nil, err
	}
	if reg.ID == 0 {
		return nil, nil
	}
	return &reg, nil
}

func (r *repo) NumberExists(ctx context.Context, db *gorm.DB, number string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Registration{}).
		Where("registration_number = ?", number).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) DisplayCodeExists(ctx context.Context, db *gorm.DB, competitionID snowflake.ID, year int, code string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Registration{}).
		Where("competition_id = ? AND year = ? AND display_code = ?", competitionID, year, code).
		Count(&count).Error
	return count > 0, err
}
