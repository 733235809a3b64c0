package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	cartdomain "github.com/craftlane/entrypay/internal/cart/domain"
	"github.com/craftlane/entrypay/internal/clock"
	"github.com/craftlane/entrypay/internal/notification"
	obsmetrics "github.com/craftlane/entrypay/internal/observability/metrics"
	paymentdomain "github.com/craftlane/entrypay/internal/payment/domain"
	"github.com/craftlane/entrypay/internal/registration/code"
	"github.com/craftlane/entrypay/internal/registration/domain"
	pkgdb "github.com/craftlane/entrypay/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	CartRepo   cartdomain.Repository
	Dispatcher *notification.Dispatcher `optional:"true"`
	ObsMetrics *obsmetrics.Metrics      `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	cartRepo   cartdomain.Repository
	dispatcher *notification.Dispatcher
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("registration.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		cartRepo:   p.CartRepo,
		dispatcher: p.Dispatcher,
		obsMetrics: p.ObsMetrics,
	}
}

var _ domain.Materializer = (*Service)(nil)

type notifyTask struct {
	reg             domain.Registration
	competitionName string
	recipient       notification.Recipient
}

// Materialize converts the payment's cart-item snapshot into registrations,
// one per item, inside a single transaction that also completes the cart.
// A payment that already carries its full set of registrations returns them
// unchanged; a partial failure rolls everything back, leaving the payment
// COMPLETED and the materialization retryable wholesale.
func (s *Service) Materialize(ctx context.Context, payment *paymentdomain.PaymentRecord) ([]domain.Registration, error) {
	if payment == nil {
		return nil, fmt.Errorf("materialize: nil payment")
	}
	if payment.Status != paymentdomain.StatusCompleted {
		return nil, fmt.Errorf("materialize: payment %s is %s, not %s",
			payment.OrderID, payment.Status, paymentdomain.StatusCompleted)
	}

	itemIDs, err := paymentdomain.DecodeItemIDs(payment.ItemIDs)
	if err != nil {
		return nil, fmt.Errorf("materialize: decode item snapshot: %w", err)
	}
	if len(itemIDs) == 0 {
		return nil, domain.ErrEmptySnapshot
	}

	var (
		created []domain.Registration
		tasks   []notifyTask
	)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := s.cartRepo.FindItemsByIDs(ctx, tx, itemIDs)
		if err != nil {
			return err
		}
		if len(items) != len(itemIDs) {
			return fmt.Errorf("%w: snapshot has %d items, store has %d",
				domain.ErrSnapshotMismatch, len(itemIDs), len(items))
		}

		count, err := s.repo.CountByPaymentID(ctx, tx, payment.ID)
		if err != nil {
			return err
		}
		if count == int64(len(items)) {
			// already fully materialized by a previous delivery
			created, err = s.repo.FindByPaymentID(ctx, tx, payment.ID)
			return err
		}
		if count != 0 {
			return fmt.Errorf("%w: payment %s has %d of %d registrations",
				domain.ErrSnapshotMismatch, payment.OrderID, count, len(items))
		}

		year := s.clock.Now().Year()
		for _, item := range items {
			reg, err := s.createRegistration(ctx, tx, payment, item, year)
			if err != nil {
				return err
			}
			created = append(created, *reg)
			tasks = append(tasks, notifyTask{
				reg:             *reg,
				competitionName: item.CompetitionName,
				recipient:       recipientFor(item),
			})
		}

		if _, err := s.cartRepo.Complete(ctx, tx, payment.CartID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		s.log.Error("materialization failed",
			zap.String("order_id", payment.OrderID),
			zap.Error(err))
		return nil, err
	}

	if s.obsMetrics != nil {
		for range tasks {
			s.obsMetrics.RecordRegistration()
		}
	}

	// best-effort side effects only after the transaction committed
	if s.dispatcher != nil {
		for _, task := range tasks {
			go s.dispatcher.SendRegistrationEmails(task.reg, task.competitionName, task.recipient)
		}
	}

	return created, nil
}

// createRegistration allocates both public codes and inserts the row. A
// unique-constraint violation on insert is a collision that slipped past the
// existence check; it consumes an attempt and retries with fresh codes.
func (s *Service) createRegistration(
	ctx context.Context,
	tx *gorm.DB,
	payment *paymentdomain.PaymentRecord,
	item cartdomain.CartItem,
	year int,
) (*domain.Registration, error) {

	numberExists := func(ctx context.Context, candidate string) (bool, error) {
		return s.repo.NumberExists(ctx, tx, candidate)
	}
	displayExists := func(ctx context.Context, candidate string) (bool, error) {
		return s.repo.DisplayCodeExists(ctx, tx, item.CompetitionID, year, candidate)
	}

	for attempt := 0; attempt < code.DefaultMaxAttempts; attempt++ {
		number, err := code.Generate(ctx, code.RegistrationNumberCandidate(), numberExists, code.DefaultMaxAttempts)
		if err != nil {
			return nil, s.codeErr(err)
		}
		display, err := code.Generate(ctx, code.DisplayCodeCandidate(), displayExists, code.DefaultMaxAttempts)
		if err != nil {
			return nil, s.codeErr(err)
		}

		now := s.clock.Now()
		reg := &domain.Registration{
			ID:                 s.genID.Generate(),
			RegistrationNumber: number,
			DisplayCode:        display,
			CompetitionID:      item.CompetitionID,
			Year:               year,
			UserID:             payment.UserID,
			RegistrationTypeID: item.RegistrationTypeID,
			PaymentID:          payment.ID,
			CartItemID:         item.ID,
			TeamName:           item.TeamName,
			AmountPaid:         item.Subtotal,
			Currency:           payment.Currency,
			Status:             domain.StatusConfirmed,
			ConfirmedAt:        now,
			CreatedAt:          now,
		}

		err = s.repo.Insert(ctx, tx, reg)
		if err == nil {
			return reg, nil
		}
		if pkgdb.IsDuplicateKeyErr(err) {
			s.log.Warn("registration code collision on insert, retrying",
				zap.String("order_id", payment.OrderID),
				zap.Int("attempt", attempt+1))
			continue
		}
		return nil, err
	}

	return nil, s.codeErr(fmt.Errorf("%w after %d insert attempts", domain.ErrCodeExhausted, code.DefaultMaxAttempts))
}

func (s *Service) codeErr(err error) error {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordCodeExhausted()
	}
	return err
}

// FindByNumber looks up one registration by its private number.
func (s *Service) FindByNumber(ctx context.Context, number string) (*domain.Registration, error) {
	reg, err := s.repo.FindByNumber(ctx, s.db, number)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, domain.ErrRegistrationNotFound
	}
	return reg, nil
}

// FindByPayment returns the registrations a payment produced.
func (s *Service) FindByPayment(ctx context.Context, paymentID snowflake.ID) ([]domain.Registration, error) {
	return s.repo.FindByPaymentID(ctx, s.db, paymentID)
}

func recipientFor(item cartdomain.CartItem) notification.Recipient {
	var members []cartdomain.Member
	if len(item.Members) > 0 {
		if err := json.Unmarshal(item.Members, &members); err != nil {
			return notification.Recipient{}
		}
	}
	if len(members) == 0 {
		return notification.Recipient{}
	}
	return notification.Recipient{
		Email: members[0].Email,
		Name:  members[0].Name,
	}
}
