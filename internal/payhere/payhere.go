// Package payhere implements the PayHere gateway contract: the md5sig
// checksum on IPN notifications, the checkout hash, and the merchant
// retrieval API used for return-path reconciliation.
package payhere

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Gateway status codes carried in the status_code IPN field.
const (
	StatusCodeSuccess     = 2
	StatusCodePending     = 0
	StatusCodeCancelled   = -1
	StatusCodeFailed      = -2
	StatusCodeChargedback = -3
)

// Notification is a parsed IPN push. Raw form values are retained by the
// caller for audit; this struct only carries the typed fields.
type Notification struct {
	MerchantID     string
	OrderID        string
	PaymentID      string
	Amount         string
	Currency       string
	StatusCode     int
	MD5Sig         string
	Method         string
	StatusMessage  string
	CardHolderName string
	CardNo         string
	Custom1        string
	Custom2        string
}

// ParseNotification reads the form-encoded IPN fields. Amount is kept as the
// gateway-supplied string because the checksum is computed over it verbatim.
func ParseNotification(form url.Values) (*Notification, error) {
	n := &Notification{
		MerchantID:     strings.TrimSpace(form.Get("merchant_id")),
		OrderID:        strings.TrimSpace(form.Get("order_id")),
		PaymentID:      strings.TrimSpace(form.Get("payment_id")),
		Amount:         strings.TrimSpace(form.Get("payhere_amount")),
		Currency:       strings.TrimSpace(form.Get("payhere_currency")),
		MD5Sig:         strings.TrimSpace(form.Get("md5sig")),
		Method:         strings.TrimSpace(form.Get("method")),
		StatusMessage:  strings.TrimSpace(form.Get("status_message")),
		CardHolderName: strings.TrimSpace(form.Get("card_holder_name")),
		CardNo:         strings.TrimSpace(form.Get("card_no")),
		Custom1:        strings.TrimSpace(form.Get("custom_1")),
		Custom2:        strings.TrimSpace(form.Get("custom_2")),
	}
	if n.MerchantID == "" || n.OrderID == "" || n.Amount == "" || n.Currency == "" || n.MD5Sig == "" {
		return nil, ErrMissingFields
	}

	code, err := strconv.Atoi(strings.TrimSpace(form.Get("status_code")))
	if err != nil {
		return nil, ErrMissingFields
	}
	n.StatusCode = code

	return n, nil
}

// Verify recomputes the documented md5sig over the ordered field tuple and
// compares it in constant time against the supplied signature. Pure function.
func Verify(merchantID, orderID, amount, currency string, statusCode int, suppliedSig, merchantSecret string) bool {
	expected := Signature(merchantID, orderID, amount, currency, statusCode, merchantSecret)
	supplied := strings.ToUpper(strings.TrimSpace(suppliedSig))
	return hmac.Equal([]byte(expected), []byte(supplied))
}

// Signature computes the gateway's IPN checksum:
// UPPER(MD5(merchant_id + order_id + amount + currency + status_code + UPPER(MD5(secret)))).
func Signature(merchantID, orderID, amount, currency string, statusCode int, merchantSecret string) string {
	return md5Upper(
		merchantID +
			orderID +
			amount +
			currency +
			strconv.Itoa(statusCode) +
			md5Upper(merchantSecret),
	)
}

// CheckoutHash computes the hash PayHere requires on checkout creation:
// UPPER(MD5(merchant_id + order_id + amount + currency + UPPER(MD5(secret)))).
func CheckoutHash(merchantID, orderID string, amount float64, currency, merchantSecret string) string {
	return md5Upper(
		merchantID +
			orderID +
			FormatAmount(amount) +
			currency +
			md5Upper(merchantSecret),
	)
}

// FormatAmount renders an amount with exactly two decimals, the form the
// gateway hashes over.
func FormatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

func md5Upper(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
