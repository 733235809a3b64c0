package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	cartdomain "github.com/craftlane/entrypay/internal/cart/domain"
	"github.com/craftlane/entrypay/internal/checkout/domain"
	"github.com/craftlane/entrypay/internal/clock"
	"github.com/craftlane/entrypay/internal/config"
	"github.com/craftlane/entrypay/internal/payhere"
	paymentdomain "github.com/craftlane/entrypay/internal/payment/domain"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultCurrency = "LKR"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Cfg         config.Config
	CartRepo    cartdomain.Repository
	PaymentRepo paymentdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	gateway     config.PayHereConfig
	cartRepo    cartdomain.Repository
	paymentRepo paymentdomain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("checkout.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		gateway:     p.Cfg.PayHere,
		cartRepo:    p.CartRepo,
		paymentRepo: p.PaymentRepo,
	}
}

// CreateCheckout freezes the cart's current items into a payment snapshot and
// returns the signed gateway form. The cart itself stays ACTIVE until a
// success notification completes it; abandoning the checkout costs nothing.
func (s *Service) CreateCheckout(ctx context.Context, req domain.CreateCheckoutRequest) (*domain.CheckoutSession, error) {
	cart, err := s.cartRepo.FindByID(ctx, s.db, req.CartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, cartdomain.ErrCartNotFound
	}
	if cart.UserID != req.UserID {
		return nil, domain.ErrNotOwner
	}
	if cart.Status != cartdomain.CartStatusActive {
		return nil, cartdomain.ErrCartNotOpen
	}
	if s.clock.Now().After(cart.ExpiresAt) {
		return nil, cartdomain.ErrCartExpired
	}

	items, err := s.cartRepo.FindItems(ctx, s.db, cart.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	var (
		total float64
		ids   []snowflake.ID
		names []string
	)
	for _, item := range items {
		total += item.Subtotal
		ids = append(ids, item.ID)
		names = append(names, item.CompetitionName)
	}
	if total <= 0 {
		return nil, domain.ErrAmountZero
	}

	snapshot, err := paymentdomain.EncodeItemIDs(ids)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	orderID := "ORD-" + uuid.NewString()
	payment := &paymentdomain.PaymentRecord{
		ID:         s.genID.Generate(),
		OrderID:    orderID,
		UserID:     cart.UserID,
		CartID:     cart.ID,
		ItemIDs:    snapshot,
		Status:     paymentdomain.StatusPending,
		Amount:     total,
		Currency:   defaultCurrency,
		MerchantID: s.gateway.MerchantID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.paymentRepo.Insert(ctx, s.db, payment); err != nil {
		return nil, err
	}

	s.log.Info("checkout created",
		zap.String("order_id", orderID),
		zap.Int64("cart_id", int64(cart.ID)),
		zap.Int("item_count", len(items)),
		zap.Float64("amount", total))

	return &domain.CheckoutSession{
		OrderID:     orderID,
		GatewayURL:  strings.TrimRight(s.gateway.BaseURL, "/") + "/pay/checkout",
		MerchantID:  s.gateway.MerchantID,
		ReturnURL:   s.gateway.ReturnURL,
		CancelURL:   s.gateway.CancelURL,
		NotifyURL:   s.gateway.NotifyURL,
		Items:       itemsDescription(names),
		Amount:      payhere.FormatAmount(total),
		Currency:    defaultCurrency,
		Hash:        payhere.CheckoutHash(s.gateway.MerchantID, orderID, total, defaultCurrency, s.gateway.MerchantSecret),
		Sandbox:     s.gateway.Sandbox,
		AmountValue: total,
	}, nil
}

func itemsDescription(names []string) string {
	if len(names) == 1 {
		return names[0] + " registration"
	}
	return fmt.Sprintf("%s and %d more registrations", names[0], len(names)-1)
}
