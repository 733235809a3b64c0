package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Payment statuses. PENDING moves exactly once into COMPLETED, FAILED or
// CANCELLED; REFUNDED is reachable only from COMPLETED (chargeback).
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
	StatusRefunded  = "REFUNDED"
)

// PaymentRecord is one checkout attempt, correlated with the gateway by
// OrderID. The ItemIDs snapshot taken at checkout is the authoritative input
// for materialization; the live cart is never re-read.
type PaymentRecord struct {
	ID                snowflake.ID   `json:"id" gorm:"primaryKey"`
	OrderID           string         `json:"order_id" gorm:"type:text;not null;uniqueIndex"`
	UserID            snowflake.ID   `json:"user_id" gorm:"not null;index"`
	CartID            snowflake.ID   `json:"cart_id" gorm:"not null;index"`
	ItemIDs           datatypes.JSON `json:"item_ids" gorm:"type:jsonb;not null"`
	Status            string         `json:"status" gorm:"type:text;not null;default:'PENDING';index"`
	Amount            float64        `json:"amount" gorm:"not null"`
	Currency          string         `json:"currency" gorm:"type:text;not null"`
	MerchantID        string         `json:"merchant_id" gorm:"type:text"`
	GatewayPaymentID  string         `json:"gateway_payment_id" gorm:"type:text"`
	GatewayStatusCode int            `json:"gateway_status_code"`
	GatewaySignature  string         `json:"gateway_signature" gorm:"type:text"`
	PaymentMethod     string         `json:"payment_method" gorm:"type:text"`
	CardHolderName    string         `json:"card_holder_name" gorm:"type:text"`
	RawGatewayResponse datatypes.JSON `json:"raw_gateway_response" gorm:"type:jsonb"`
	ErrorMessage      string         `json:"error_message" gorm:"type:text"`
	CompletedAt       *time.Time     `json:"completed_at"`
	RefundedAt        *time.Time     `json:"refunded_at"`
	CreatedAt         time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time      `json:"updated_at" gorm:"not null"`
}

func (PaymentRecord) TableName() string { return "payment_records" }

// CanTransition reports whether from -> to is a legal state-machine edge.
func CanTransition(from, to string) bool {
	switch to {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return from == StatusPending
	case StatusRefunded:
		return from == StatusCompleted
	default:
		return false
	}
}

// TransitionFields carries the gateway fields written alongside a status
// transition.
type TransitionFields struct {
	GatewayPaymentID  string
	GatewayStatusCode int
	GatewaySignature  string
	PaymentMethod     string
	CardHolderName    string
	RawResponse       datatypes.JSON
	ErrorMessage      string
	CompletedAt       *time.Time
	RefundedAt        *time.Time
}
