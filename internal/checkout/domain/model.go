package domain

import (
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrEmptyCart  = errors.New("cart has no items")
	ErrNotOwner   = errors.New("cart does not belong to user")
	ErrAmountZero = errors.New("checkout amount must be positive")
)

// CreateCheckoutRequest opens a payment attempt for one cart.
type CreateCheckoutRequest struct {
	UserID snowflake.ID `json:"user_id"`
	CartID snowflake.ID `json:"cart_id"`
}

// CheckoutSession carries everything the browser needs to post the PayHere
// checkout form. The hash binds merchant, order and amount so the client
// cannot alter what it pays.
type CheckoutSession struct {
	OrderID     string  `json:"order_id"`
	GatewayURL  string  `json:"gateway_url"`
	MerchantID  string  `json:"merchant_id"`
	ReturnURL   string  `json:"return_url"`
	CancelURL   string  `json:"cancel_url"`
	NotifyURL   string  `json:"notify_url"`
	Items       string  `json:"items"`
	Amount      string  `json:"amount"`
	Currency    string  `json:"currency"`
	Hash        string  `json:"hash"`
	Sandbox     bool    `json:"sandbox"`
	AmountValue float64 `json:"-"`
}
