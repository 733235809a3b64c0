package payhere

import "errors"

var (
	ErrMissingFields    = errors.New("payhere: notification missing required fields")
	ErrNotConfigured    = errors.New("payhere: retrieval client not configured")
	ErrTokenRequest     = errors.New("payhere: token request failed")
	ErrPaymentNotFound  = errors.New("payhere: payment not found")
	ErrRetrievalRequest = errors.New("payhere: payment retrieval failed")
)
