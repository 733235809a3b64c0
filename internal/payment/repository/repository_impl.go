package repository

import (
	"context"
	"time"

	"github.com/craftlane/entrypay/internal/payment/domain"
	pkgdb "github.com/craftlane/entrypay/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.PaymentRecord) error {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO payment_records (
			id, order_id, user_id, cart_id, item_ids, status, amount, currency,
			merchant_id, gateway_payment_id, gateway_status_code, gateway_signature,
			payment_method, card_holder_name, raw_gateway_response, error_message,
			completed_at, refunded_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.OrderID,
		payment.UserID,
		payment.CartID,
		payment.ItemIDs,
		payment.Status,
		payment.Amount,
		payment.Currency,
		payment.MerchantID,
		payment.GatewayPaymentID,
		payment.GatewayStatusCode,
		payment.GatewaySignature,
		payment.PaymentMethod,
		payment.CardHolderName,
		payment.RawGatewayResponse,
		payment.ErrorMessage,
		payment.CompletedAt,
		payment.RefundedAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
	if err != nil && pkgdb.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateOrder
	}
	return err
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.PaymentRecord, error) {
	var payment domain.PaymentRecord
	err := db.WithContext(ctx).
		Model(&domain.PaymentRecord{}).
		Where("order_id = ?", orderID).
		Limit(1).
		Find(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

// Transition is the check-and-write collapsed into one conditional UPDATE.
// Two concurrent callers cannot both see RowsAffected > 0.
func (r *repo) Transition(ctx context.Context, db *gorm.DB, orderID, from, to string, fields domain.TransitionFields) (bool, error) {
	if !domain.CanTransition(from, to) {
		return false, domain.ErrIllegalTransition
	}

	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if fields.GatewayPaymentID != "" {
		updates["gateway_payment_id"] = fields.GatewayPaymentID
	}
	if fields.GatewayStatusCode != 0 {
		updates["gateway_status_code"] = fields.GatewayStatusCode
	}
	if fields.GatewaySignature != "" {
		updates["gateway_signature"] = fields.GatewaySignature
	}
	if fields.PaymentMethod != "" {
		updates["payment_method"] = fields.PaymentMethod
	}
	if fields.CardHolderName != "" {
		updates["card_holder_name"] = fields.CardHolderName
	}
	if len(fields.RawResponse) > 0 {
		updates["raw_gateway_response"] = fields.RawResponse
	}
	if fields.ErrorMessage != "" {
		updates["error_message"] = fields.ErrorMessage
	}
	if fields.CompletedAt != nil {
		updates["completed_at"] = *fields.CompletedAt
	}
	if fields.RefundedAt != nil {
		updates["refunded_at"] = *fields.RefundedAt
	}

	res := db.WithContext(ctx).
		Model(&domain.PaymentRecord{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
