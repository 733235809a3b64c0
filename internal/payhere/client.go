package payhere

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/craftlane/entrypay/internal/config"
	"go.uber.org/zap"
)

// PaymentStatus is the authoritative outcome reported by the retrieval API.
type PaymentStatus string

const (
	PaymentReceived    PaymentStatus = "RECEIVED"
	PaymentPending     PaymentStatus = "PENDING"
	PaymentCancelled   PaymentStatus = "CANCELED"
	PaymentFailed      PaymentStatus = "FAILED"
	PaymentChargedback PaymentStatus = "CHARGEDBACK"
)

// PaymentDetail is one payment returned by the retrieval API search.
type PaymentDetail struct {
	PaymentID string
	OrderID   string
	Status    PaymentStatus
	Amount    float64
	Currency  string
	Method    string
}

// StatusCode maps a retrieval-API status onto the IPN status_code scale so
// both reconciliation entry points drive the same transition mapping.
func (d PaymentDetail) StatusCode() int {
	switch d.Status {
	case PaymentReceived:
		return StatusCodeSuccess
	case PaymentCancelled:
		return StatusCodeCancelled
	case PaymentFailed:
		return StatusCodeFailed
	case PaymentChargedback:
		return StatusCodeChargedback
	default:
		return StatusCodePending
	}
}

// Client talks to the PayHere merchant retrieval API. It is used only by the
// return-path reconciliation when the IPN has not arrived yet.
type Client struct {
	baseURL    string
	appID      string
	appSecret  string
	httpClient *http.Client
	log        *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(cfg config.PayHereConfig, log *zap.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.Named("payhere.client"),
	}
}

// Configured reports whether retrieval-API credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.appID != "" && c.appSecret != ""
}

// SearchPayment queries the gateway for the payment belonging to orderID.
// Returns ErrPaymentNotFound when the gateway has no record of the order.
func (c *Client) SearchPayment(ctx context.Context, orderID string) (*PaymentDetail, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/merchant/v1/payment/search?order_id=%s", c.baseURL, url.QueryEscape(orderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrRetrievalRequest, resp.StatusCode)
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalRequest, err)
	}
	if payload.Status != 1 || len(payload.Data) == 0 {
		return nil, ErrPaymentNotFound
	}

	item := payload.Data[0]
	return &PaymentDetail{
		PaymentID: item.PaymentID.String(),
		OrderID:   orderID,
		Status:    PaymentStatus(strings.ToUpper(strings.TrimSpace(item.Status))),
		Amount:    item.AmountDetail.Gross,
		Currency:  strings.ToUpper(strings.TrimSpace(item.AmountDetail.Currency)),
		Method:    strings.TrimSpace(item.Method),
	}, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	endpoint := c.baseURL + "/merchant/v1/oauth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.appID + ":" + c.appSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrTokenRequest, resp.StatusCode)
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenRequest, err)
	}
	if payload.AccessToken == "" {
		return "", ErrTokenRequest
	}

	c.accessToken = payload.AccessToken
	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 600
	}
	// renew a minute early to avoid using a token at its expiry edge
	c.tokenExpiry = time.Now().Add(time.Duration(expiresIn-60) * time.Second)

	return c.accessToken, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type searchResponse struct {
	Status int          `json:"status"`
	Msg    string       `json:"msg"`
	Data   []searchItem `json:"data"`
}

type searchItem struct {
	PaymentID    json.Number  `json:"payment_id"`
	Status       string       `json:"status"`
	Method       string       `json:"method"`
	AmountDetail amountDetail `json:"amount_detail"`
}

type amountDetail struct {
	Currency string  `json:"currency"`
	Gross    float64 `json:"gross"`
	Fee      float64 `json:"fee"`
	Net      float64 `json:"net"`
}
