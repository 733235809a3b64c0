package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	cartdomain "github.com/craftlane/entrypay/internal/cart/domain"
	cartrepository "github.com/craftlane/entrypay/internal/cart/repository"
	"github.com/craftlane/entrypay/internal/clock"
	"github.com/craftlane/entrypay/internal/config"
	"github.com/craftlane/entrypay/internal/payhere"
	"github.com/craftlane/entrypay/internal/payment/domain"
	"github.com/craftlane/entrypay/internal/payment/repository"
	registrationdomain "github.com/craftlane/entrypay/internal/registration/domain"
	registrationrepository "github.com/craftlane/entrypay/internal/registration/repository"
	registrationservice "github.com/craftlane/entrypay/internal/registration/service"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

const (
	testMerchantID = "1211149"
	testSecret     = "MS8431g6543Xab"
)

type fixture struct {
	db      *gorm.DB
	svc     *Service
	genID   *snowflake.Node
	clock   *clock.FakeClock
	payment *domain.PaymentRecord
	cartID  snowflake.ID
}

func newFixture(t *testing.T, gatewayURL string) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&cartdomain.Cart{},
		&cartdomain.CartItem{},
		&domain.PaymentRecord{},
		&registrationdomain.Registration{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	userID := node.Generate()
	cart := cartdomain.Cart{
		ID:        node.Generate(),
		UserID:    userID,
		Status:    cartdomain.CartStatusActive,
		ExpiresAt: fake.Now().Add(time.Hour),
		CreatedAt: fake.Now(),
		UpdatedAt: fake.Now(),
	}
	require.NoError(t, db.Create(&cart).Error)

	item := cartdomain.CartItem{
		ID:                 node.Generate(),
		CartID:             cart.ID,
		CompetitionID:      node.Generate(),
		CompetitionName:    "Spring Robotics Open",
		RegistrationTypeID: node.Generate(),
		TeamName:           "Circuit Breakers",
		Members:            []byte(`[{"name":"Amara Silva","email":"amara@example.com"}]`),
		Subtotal:           8000,
		CreatedAt:          fake.Now(),
	}
	require.NoError(t, db.Create(&item).Error)

	snapshot, err := domain.EncodeItemIDs([]snowflake.ID{item.ID})
	require.NoError(t, err)

	payment := &domain.PaymentRecord{
		ID:        node.Generate(),
		OrderID:   "ORD-2024-0001",
		UserID:    userID,
		CartID:    cart.ID,
		ItemIDs:   snapshot,
		Status:    domain.StatusPending,
		Amount:    8000,
		Currency:  "LKR",
		CreatedAt: fake.Now(),
		UpdatedAt: fake.Now(),
	}
	require.NoError(t, db.Create(payment).Error)

	cfg := config.Config{
		PayHere: config.PayHereConfig{
			MerchantID:     testMerchantID,
			MerchantSecret: testSecret,
		},
	}
	var client *payhere.Client
	if gatewayURL != "" {
		client = payhere.NewClient(config.PayHereConfig{
			AppID:     "app-id",
			AppSecret: "app-secret",
			BaseURL:   gatewayURL,
		}, log)
	}

	regRepo := registrationrepository.Provide()
	materializer := registrationservice.NewService(registrationservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Repo:     regRepo,
		CartRepo: cartrepository.Provide(),
	})

	svc := NewService(Params{
		DB:           db,
		Log:          log,
		Clock:        fake,
		Cfg:          cfg,
		Repo:         repository.Provide(),
		RegRepo:      regRepo,
		Materializer: materializer,
		Client:       client,
	})

	return &fixture{
		db:      db,
		svc:     svc,
		genID:   node,
		clock:   fake,
		payment: payment,
		cartID:  cart.ID,
	}
}

func ipnForm(orderID, amount string, statusCode int) url.Values {
	form := url.Values{}
	form.Set("merchant_id", testMerchantID)
	form.Set("order_id", orderID)
	form.Set("payment_id", "320025768")
	form.Set("payhere_amount", amount)
	form.Set("payhere_currency", "LKR")
	form.Set("status_code", strconv.Itoa(statusCode))
	form.Set("method", "VISA")
	form.Set("md5sig", payhere.Signature(testMerchantID, orderID, amount, "LKR", statusCode, testSecret))
	return form
}

func (f *fixture) reload(t *testing.T) *domain.PaymentRecord {
	t.Helper()
	var payment domain.PaymentRecord
	require.NoError(t, f.db.First(&payment, "order_id = ?", f.payment.OrderID).Error)
	return &payment
}

func (f *fixture) registrationCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&registrationdomain.Registration{}).Count(&count).Error)
	return count
}

func TestHandleNotification_SuccessCompletesAndMaterializes(t *testing.T) {
	f := newFixture(t, "")

	err := f.svc.HandleNotification(context.Background(), ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodeSuccess))
	require.NoError(t, err)

	payment := f.reload(t)
	assert.Equal(t, domain.StatusCompleted, payment.Status)
	assert.Equal(t, "320025768", payment.GatewayPaymentID)
	assert.Equal(t, "VISA", payment.PaymentMethod)
	require.NotNil(t, payment.CompletedAt)
	assert.EqualValues(t, 1, f.registrationCount(t))

	var cart cartdomain.Cart
	require.NoError(t, f.db.First(&cart, "id = ?", f.cartID).Error)
	assert.Equal(t, cartdomain.CartStatusCompleted, cart.Status)
}

func TestHandleNotification_DuplicateDeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t, "")
	form := ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodeSuccess)

	require.NoError(t, f.svc.HandleNotification(context.Background(), form))
	require.NoError(t, f.svc.HandleNotification(context.Background(), form))

	assert.Equal(t, domain.StatusCompleted, f.reload(t).Status)
	assert.EqualValues(t, 1, f.registrationCount(t), "redelivery must not duplicate registrations")
}

func TestHandleNotification_InvalidSignature(t *testing.T) {
	f := newFixture(t, "")
	form := ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodeSuccess)
	form.Set("md5sig", "00000000000000000000000000000000")

	err := f.svc.HandleNotification(context.Background(), form)
	require.ErrorIs(t, err, domain.ErrInvalidSignature)

	assert.Equal(t, domain.StatusPending, f.reload(t).Status, "a rejected notification must not touch the payment")
	assert.Zero(t, f.registrationCount(t))
}

func TestHandleNotification_TamperedAmount(t *testing.T) {
	f := newFixture(t, "")
	form := ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodeSuccess)
	form.Set("payhere_amount", "1.00")

	err := f.svc.HandleNotification(context.Background(), form)
	require.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestHandleNotification_MismatchedAmountRejected(t *testing.T) {
	f := newFixture(t, "")

	// correctly signed, but over a figure that is not the order's
	form := ipnForm("ORD-2024-0001", "1.00", payhere.StatusCodeSuccess)

	err := f.svc.HandleNotification(context.Background(), form)
	require.ErrorIs(t, err, domain.ErrAmountMismatch)

	assert.Equal(t, domain.StatusPending, f.reload(t).Status, "a mismatched amount must not complete the payment")
	assert.Zero(t, f.registrationCount(t))
}

func TestHandleNotification_MismatchedCurrencyRejected(t *testing.T) {
	f := newFixture(t, "")

	form := ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodeSuccess)
	form.Set("payhere_currency", "USD")
	form.Set("md5sig", payhere.Signature(testMerchantID, "ORD-2024-0001", "8000.00", "USD", payhere.StatusCodeSuccess, testSecret))

	err := f.svc.HandleNotification(context.Background(), form)
	require.ErrorIs(t, err, domain.ErrAmountMismatch)

	assert.Equal(t, domain.StatusPending, f.reload(t).Status)
	assert.Zero(t, f.registrationCount(t))
}

func TestHandleNotification_UnknownOrder(t *testing.T) {
	f := newFixture(t, "")

	err := f.svc.HandleNotification(context.Background(), ipnForm("ORD-UNKNOWN", "8000.00", payhere.StatusCodeSuccess))
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestHandleNotification_MissingFields(t *testing.T) {
	f := newFixture(t, "")

	form := url.Values{}
	form.Set("order_id", "ORD-2024-0001")

	err := f.svc.HandleNotification(context.Background(), form)
	require.ErrorIs(t, err, payhere.ErrMissingFields)
}

func TestHandleNotification_FailureRecordsMessage(t *testing.T) {
	f := newFixture(t, "")
	form := ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodeFailed)
	form.Set("status_message", "Insufficient funds")

	require.NoError(t, f.svc.HandleNotification(context.Background(), form))

	payment := f.reload(t)
	assert.Equal(t, domain.StatusFailed, payment.Status)
	assert.Equal(t, "Insufficient funds", payment.ErrorMessage)
	assert.Zero(t, f.registrationCount(t))
}

func TestHandleNotification_Cancellation(t *testing.T) {
	f := newFixture(t, "")

	require.NoError(t, f.svc.HandleNotification(context.Background(), ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodeCancelled)))
	assert.Equal(t, domain.StatusCancelled, f.reload(t).Status)
}

func TestHandleNotification_PendingIsAcknowledged(t *testing.T) {
	f := newFixture(t, "")

	require.NoError(t, f.svc.HandleNotification(context.Background(), ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodePending)))
	assert.Equal(t, domain.StatusPending, f.reload(t).Status)
}

func TestHandleNotification_TerminalAfterSuccessIsNoOp(t *testing.T) {
	f := newFixture(t, "")

	require.NoError(t, f.svc.HandleNotification(context.Background(), ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodeSuccess)))
	require.NoError(t, f.svc.HandleNotification(context.Background(), ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodeCancelled)))

	assert.Equal(t, domain.StatusCompleted, f.reload(t).Status, "a late cancellation must not unwind a completed payment")
	assert.EqualValues(t, 1, f.registrationCount(t))
}

func TestHandleNotification_LateFailureLogsCurrentStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	f := newFixture(t, "")
	f.svc.log = zap.New(core)

	require.NoError(t, f.svc.HandleNotification(context.Background(), ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodeSuccess)))
	require.NoError(t, f.svc.HandleNotification(context.Background(), ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodeFailed)))

	assert.Equal(t, domain.StatusCompleted, f.reload(t).Status)

	entries := logs.FilterMessage("terminal notification for payment no longer pending").All()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.StatusCompleted, entries[0].ContextMap()["status"], "the no-op log must carry the state that won, not the one read before the write")
}

func TestHandleNotification_Chargeback(t *testing.T) {
	f := newFixture(t, "")

	require.NoError(t, f.svc.HandleNotification(context.Background(), ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodeSuccess)))
	require.NoError(t, f.svc.HandleNotification(context.Background(), ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodeChargedback)))

	payment := f.reload(t)
	assert.Equal(t, domain.StatusRefunded, payment.Status)
	require.NotNil(t, payment.RefundedAt)
	assert.EqualValues(t, 1, f.registrationCount(t), "chargeback leaves registrations for manual review")
}

func TestHandleNotification_ChargebackBeforeCompletionIsNoOp(t *testing.T) {
	f := newFixture(t, "")

	require.NoError(t, f.svc.HandleNotification(context.Background(), ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodeChargedback)))
	assert.Equal(t, domain.StatusPending, f.reload(t).Status)
}

func TestReconcileReturn_CompletedLocally(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.svc.HandleNotification(context.Background(), ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodeSuccess)))

	status, err := f.svc.ReconcileReturn(context.Background(), "ORD-2024-0001")
	require.NoError(t, err)
	assert.Equal(t, ReturnCompleted, status.State)
	assert.Equal(t, 8000.0, status.Amount)
	require.Len(t, status.Registrations, 1)
	assert.Regexp(t, `^REG-`, status.Registrations[0].RegistrationNumber)
}

func TestReconcileReturn_PendingWithoutRetrievalCredentials(t *testing.T) {
	f := newFixture(t, "")

	status, err := f.svc.ReconcileReturn(context.Background(), "ORD-2024-0001")
	require.NoError(t, err)
	assert.Equal(t, ReturnProcessing, status.State)
	assert.Empty(t, status.Registrations)
}

func TestReconcileReturn_UnknownOrder(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.svc.ReconcileReturn(context.Background(), "ORD-NOPE")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestReconcileReturn_PendingResolvedViaGateway(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/merchant/v1/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok-1","expires_in":600}`)
	})
	mux.HandleFunc("/merchant/v1/payment/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":1,"data":[{"payment_id":320025768,"status":"RECEIVED","method":"VISA","amount_detail":{"currency":"LKR","gross":8000.00,"fee":264.00,"net":7736.00}}]}`)
	})
	gateway := httptest.NewServer(mux)
	defer gateway.Close()

	f := newFixture(t, gateway.URL)

	status, err := f.svc.ReconcileReturn(context.Background(), "ORD-2024-0001")
	require.NoError(t, err)
	assert.Equal(t, ReturnCompleted, status.State)
	require.Len(t, status.Registrations, 1)

	payment := f.reload(t)
	assert.Equal(t, domain.StatusCompleted, payment.Status)
	assert.Equal(t, "320025768", payment.GatewayPaymentID)
}

func TestReconcileReturn_ThenLateWebhook(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/merchant/v1/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"tok-1","expires_in":600}`)
	})
	mux.HandleFunc("/merchant/v1/payment/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":1,"data":[{"payment_id":320025768,"status":"RECEIVED","method":"VISA","amount_detail":{"currency":"LKR","gross":8000.00,"fee":264.00,"net":7736.00}}]}`)
	})
	gateway := httptest.NewServer(mux)
	defer gateway.Close()

	f := newFixture(t, gateway.URL)

	// return path wins the race and materializes
	status, err := f.svc.ReconcileReturn(context.Background(), "ORD-2024-0001")
	require.NoError(t, err)
	require.Equal(t, ReturnCompleted, status.State)

	// the webhook arrives afterwards, loses the conditional write, adds nothing
	require.NoError(t, f.svc.HandleNotification(context.Background(), ipnForm("ORD-2024-0001", "8000.00", payhere.StatusCodeSuccess)))

	assert.EqualValues(t, 1, f.registrationCount(t))
	assert.Equal(t, domain.StatusCompleted, f.reload(t).Status)
}

func TestReconcileReturn_GatewayStillPending(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/merchant/v1/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"tok-1","expires_in":600}`)
	})
	mux.HandleFunc("/merchant/v1/payment/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":-1,"msg":"no payments found","data":[]}`)
	})
	gateway := httptest.NewServer(mux)
	defer gateway.Close()

	f := newFixture(t, gateway.URL)

	status, err := f.svc.ReconcileReturn(context.Background(), "ORD-2024-0001")
	require.NoError(t, err)
	assert.Equal(t, ReturnProcessing, status.State)
	assert.Equal(t, domain.StatusPending, f.reload(t).Status)
}
