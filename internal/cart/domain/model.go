package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	CartStatusActive    = "ACTIVE"
	CartStatusCompleted = "COMPLETED"
	CartStatusExpired   = "EXPIRED"
)

type Cart struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    snowflake.ID `json:"user_id" gorm:"not null;index"`
	Status    string       `json:"status" gorm:"type:text;not null;default:'ACTIVE'"`
	ExpiresAt time.Time    `json:"expires_at" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Cart) TableName() string { return "carts" }

// CartItem is immutable once its ID is snapshotted into a payment record.
type CartItem struct {
	ID                 snowflake.ID   `json:"id" gorm:"primaryKey"`
	CartID             snowflake.ID   `json:"cart_id" gorm:"not null;index"`
	CompetitionID      snowflake.ID   `json:"competition_id" gorm:"not null;index"`
	CompetitionName    string         `json:"competition_name" gorm:"type:text;not null"`
	RegistrationTypeID snowflake.ID   `json:"registration_type_id" gorm:"not null"`
	Country            string         `json:"country" gorm:"type:text"`
	ParticipantType    string         `json:"participant_type" gorm:"type:text"`
	TeamName           string         `json:"team_name" gorm:"type:text"`
	Members            datatypes.JSON `json:"members" gorm:"type:jsonb"`
	Subtotal           float64        `json:"subtotal" gorm:"not null"`
	CreatedAt          time.Time      `json:"created_at" gorm:"not null"`
}

func (CartItem) TableName() string { return "cart_items" }

// Member is one participant entry inside CartItem.Members.
type Member struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}
