package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	cartdomain "github.com/craftlane/entrypay/internal/cart/domain"
	cartrepository "github.com/craftlane/entrypay/internal/cart/repository"
	"github.com/craftlane/entrypay/internal/checkout/domain"
	"github.com/craftlane/entrypay/internal/clock"
	"github.com/craftlane/entrypay/internal/config"
	"github.com/craftlane/entrypay/internal/payhere"
	paymentdomain "github.com/craftlane/entrypay/internal/payment/domain"
	paymentrepository "github.com/craftlane/entrypay/internal/payment/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	svc    *Service
	genID  *snowflake.Node
	clock  *clock.FakeClock
	userID snowflake.ID
	cart   cartdomain.Cart
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&cartdomain.Cart{},
		&cartdomain.CartItem{},
		&paymentdomain.PaymentRecord{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))

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

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Cfg: config.Config{
			PayHere: config.PayHereConfig{
				MerchantID:     "1211149",
				MerchantSecret: "MS8431g6543Xab",
				Sandbox:        true,
				BaseURL:        "https://sandbox.payhere.lk",
				ReturnURL:      "https://entry.example.com/payments/return",
				CancelURL:      "https://entry.example.com/payments/cancel",
				NotifyURL:      "https://entry.example.com/webhooks/payhere",
			},
		},
		CartRepo:    cartrepository.Provide(),
		PaymentRepo: paymentrepository.Provide(),
	})

	return &fixture{db: db, svc: svc, genID: node, clock: fake, userID: userID, cart: cart}
}

func (f *fixture) addItem(t *testing.T, name string, subtotal float64) cartdomain.CartItem {
	t.Helper()
	item := cartdomain.CartItem{
		ID:              f.genID.Generate(),
		CartID:          f.cart.ID,
		CompetitionID:   f.genID.Generate(),
		CompetitionName: name,
		Subtotal:        subtotal,
		CreatedAt:       f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&item).Error)
	return item
}

func TestCreateCheckout(t *testing.T) {
	f := newFixture(t)
	itemA := f.addItem(t, "Spring Robotics Open", 5000)
	itemB := f.addItem(t, "Junior Coding Cup", 3000)

	session, err := f.svc.CreateCheckout(context.Background(), domain.CreateCheckoutRequest{
		UserID: f.userID,
		CartID: f.cart.ID,
	})
	require.NoError(t, err)

	assert.Regexp(t, `^ORD-[0-9a-f-]{36}$`, session.OrderID)
	assert.Equal(t, "8000.00", session.Amount)
	assert.Equal(t, "LKR", session.Currency)
	assert.Equal(t, "https://sandbox.payhere.lk/pay/checkout", session.GatewayURL)
	assert.Equal(t, "https://entry.example.com/webhooks/payhere", session.NotifyURL)
	assert.Equal(t,
		payhere.CheckoutHash("1211149", session.OrderID, 8000, "LKR", "MS8431g6543Xab"),
		session.Hash)

	var payment paymentdomain.PaymentRecord
	require.NoError(t, f.db.First(&payment, "order_id = ?", session.OrderID).Error)
	assert.Equal(t, paymentdomain.StatusPending, payment.Status)
	assert.Equal(t, 8000.0, payment.Amount)

	ids, err := paymentdomain.DecodeItemIDs(payment.ItemIDs)
	require.NoError(t, err)
	assert.ElementsMatch(t, []snowflake.ID{itemA.ID, itemB.ID}, ids)

	// cart stays open until the gateway confirms payment
	var cart cartdomain.Cart
	require.NoError(t, f.db.First(&cart, "id = ?", f.cart.ID).Error)
	assert.Equal(t, cartdomain.CartStatusActive, cart.Status)
}

func TestCreateCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateCheckout(context.Background(), domain.CreateCheckoutRequest{
		UserID: f.userID,
		CartID: f.cart.ID,
	})
	require.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestCreateCheckout_WrongOwner(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "Spring Robotics Open", 5000)

	_, err := f.svc.CreateCheckout(context.Background(), domain.CreateCheckoutRequest{
		UserID: f.genID.Generate(),
		CartID: f.cart.ID,
	})
	require.ErrorIs(t, err, domain.ErrNotOwner)
}

func TestCreateCheckout_ExpiredCart(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "Spring Robotics Open", 5000)
	f.clock.Advance(2 * time.Hour)

	_, err := f.svc.CreateCheckout(context.Background(), domain.CreateCheckoutRequest{
		UserID: f.userID,
		CartID: f.cart.ID,
	})
	require.ErrorIs(t, err, cartdomain.ErrCartExpired)
}

func TestCreateCheckout_CompletedCart(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "Spring Robotics Open", 5000)
	require.NoError(t, f.db.Model(&cartdomain.Cart{}).
		Where("id = ?", f.cart.ID).
		Update("status", cartdomain.CartStatusCompleted).Error)

	_, err := f.svc.CreateCheckout(context.Background(), domain.CreateCheckoutRequest{
		UserID: f.userID,
		CartID: f.cart.ID,
	})
	require.ErrorIs(t, err, cartdomain.ErrCartNotOpen)
}

func TestCreateCheckout_UnknownCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateCheckout(context.Background(), domain.CreateCheckoutRequest{
		UserID: f.userID,
		CartID: f.genID.Generate(),
	})
	require.ErrorIs(t, err, cartdomain.ErrCartNotFound)
}
