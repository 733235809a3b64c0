package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const StatusConfirmed = "CONFIRMED"

// Registration is the durable proof of one paid competition entry.
// RegistrationNumber is globally unique and semi-sensitive (emails, lookup);
// DisplayCode is unique per competition+year and safe for public display.
type Registration struct {
	ID                 snowflake.ID `json:"id" gorm:"primaryKey"`
	RegistrationNumber string       `json:"registration_number" gorm:"type:text;not null;uniqueIndex"`
	DisplayCode        string       `json:"display_code" gorm:"type:text;not null;uniqueIndex:idx_registrations_display_scope,priority:3"`
	CompetitionID      snowflake.ID `json:"competition_id" gorm:"not null;uniqueIndex:idx_registrations_display_scope,priority:1;index"`
	Year               int          `json:"year" gorm:"not null;uniqueIndex:idx_registrations_display_scope,priority:2"`
	UserID             snowflake.ID `json:"user_id" gorm:"not null;index"`
	RegistrationTypeID snowflake.ID `json:"registration_type_id" gorm:"not null"`
	PaymentID          snowflake.ID `json:"payment_id" gorm:"not null;index"`
	CartItemID         snowflake.ID `json:"cart_item_id" gorm:"not null;uniqueIndex"`
	TeamName           string       `json:"team_name" gorm:"type:text"`
	AmountPaid         float64      `json:"amount_paid" gorm:"not null"`
	Currency           string       `json:"currency" gorm:"type:text;not null"`
	Status             string       `json:"status" gorm:"type:text;not null"`
	ConfirmedAt        time.Time    `json:"confirmed_at" gorm:"not null"`
	CreatedAt          time.Time    `json:"created_at" gorm:"not null"`
}

func (Registration) TableName() string { return "registrations" }
