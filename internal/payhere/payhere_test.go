package payhere

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Golden vectors computed from the gateway's documented checksum scheme:
// UPPER(MD5(merchant_id + order_id + amount + currency + status_code + UPPER(MD5(secret)))).
func TestSignatureGoldenVectors(t *testing.T) {
	cases := []struct {
		name       string
		merchantID string
		orderID    string
		amount     string
		currency   string
		statusCode int
		secret     string
		want       string
	}{
		{
			name:       "success notification",
			merchantID: "1211149",
			orderID:    "ORD-2024-0001",
			amount:     "8000.00",
			currency:   "LKR",
			statusCode: 2,
			secret:     "MS8431g6543Xab",
			want:       "4CCED6188EC5186B047CD2CC892E7114",
		},
		{
			name:       "failed notification",
			merchantID: "1211149",
			orderID:    "ORD-2024-0001",
			amount:     "8000.00",
			currency:   "LKR",
			statusCode: -2,
			secret:     "MS8431g6543Xab",
			want:       "77565CEB31D02BC28DFC91702E3864B4",
		},
		{
			name:       "second merchant",
			merchantID: "100100",
			orderID:    "order-77",
			amount:     "350.50",
			currency:   "LKR",
			statusCode: 2,
			secret:     "testsecret",
			want:       "540CF2E29B16324EECB7B5806E54853B",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Signature(tc.merchantID, tc.orderID, tc.amount, tc.currency, tc.statusCode, tc.secret)
			assert.Equal(t, tc.want, got)
			assert.True(t, Verify(tc.merchantID, tc.orderID, tc.amount, tc.currency, tc.statusCode, tc.want, tc.secret))
		})
	}
}

func TestVerifyAcceptsLowercaseSuppliedSignature(t *testing.T) {
	sig := Signature("1211149", "ORD-2024-0001", "8000.00", "LKR", 2, "MS8431g6543Xab")
	assert.True(t, Verify("1211149", "ORD-2024-0001", "8000.00", "LKR", 2,
		"4cced6188ec5186b047cd2cc892e7114", "MS8431g6543Xab"))
	assert.Equal(t, "4CCED6188EC5186B047CD2CC892E7114", sig)
}

func TestVerifyRejectsMutations(t *testing.T) {
	const (
		merchantID = "1211149"
		orderID    = "ORD-2024-0001"
		amount     = "8000.00"
		currency   = "LKR"
		secret     = "MS8431g6543Xab"
	)
	valid := Signature(merchantID, orderID, amount, currency, 2, secret)

	// single character flipped in the signature
	mutated := []byte(valid)
	if mutated[0] == 'A' {
		mutated[0] = 'B'
	} else {
		mutated[0] = 'A'
	}
	assert.False(t, Verify(merchantID, orderID, amount, currency, 2, string(mutated), secret))

	// amount tampered after signing
	assert.False(t, Verify(merchantID, orderID, "8000.01", currency, 2, valid, secret))

	// order id tampered after signing
	assert.False(t, Verify(merchantID, "ORD-2024-0002", amount, currency, 2, valid, secret))

	// status code substituted
	assert.False(t, Verify(merchantID, orderID, amount, currency, -2, valid, secret))

	// wrong secret
	assert.False(t, Verify(merchantID, orderID, amount, currency, 2, valid, "othersecret"))
}

func TestCheckoutHash(t *testing.T) {
	got := CheckoutHash("1211149", "ORD-2024-0001", 8000, "LKR", "MS8431g6543Xab")
	assert.Equal(t, "8849D755984B16A195324A7A6A7DDCD7", got)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "8000.00", FormatAmount(8000))
	assert.Equal(t, "350.50", FormatAmount(350.5))
	assert.Equal(t, "0.99", FormatAmount(0.99))
}

func TestParseNotification(t *testing.T) {
	form := url.Values{}
	form.Set("merchant_id", "1211149")
	form.Set("order_id", "ORD-2024-0001")
	form.Set("payment_id", "320025471")
	form.Set("payhere_amount", "8000.00")
	form.Set("payhere_currency", "LKR")
	form.Set("status_code", "2")
	form.Set("md5sig", "4CCED6188EC5186B047CD2CC892E7114")
	form.Set("method", "VISA")
	form.Set("status_message", "Successfully completed the payment.")
	form.Set("card_holder_name", "N*** P***")

	n, err := ParseNotification(form)
	assert.NoError(t, err)
	assert.Equal(t, "ORD-2024-0001", n.OrderID)
	assert.Equal(t, "8000.00", n.Amount)
	assert.Equal(t, 2, n.StatusCode)
	assert.Equal(t, "VISA", n.Method)
	assert.Equal(t, "320025471", n.PaymentID)
}

func TestParseNotificationMissingFields(t *testing.T) {
	form := url.Values{}
	form.Set("merchant_id", "1211149")
	form.Set("status_code", "2")

	_, err := ParseNotification(form)
	assert.ErrorIs(t, err, ErrMissingFields)

	form.Set("order_id", "ORD-1")
	form.Set("payhere_amount", "10.00")
	form.Set("payhere_currency", "LKR")
	form.Set("md5sig", "ABC")
	form.Del("status_code")
	_, err = ParseNotification(form)
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestPaymentDetailStatusCode(t *testing.T) {
	assert.Equal(t, StatusCodeSuccess, PaymentDetail{Status: PaymentReceived}.StatusCode())
	assert.Equal(t, StatusCodeCancelled, PaymentDetail{Status: PaymentCancelled}.StatusCode())
	assert.Equal(t, StatusCodeFailed, PaymentDetail{Status: PaymentFailed}.StatusCode())
	assert.Equal(t, StatusCodeChargedback, PaymentDetail{Status: PaymentChargedback}.StatusCode())
	assert.Equal(t, StatusCodePending, PaymentDetail{Status: PaymentPending}.StatusCode())
}
