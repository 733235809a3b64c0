package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/craftlane/entrypay/internal/clock"
	"github.com/craftlane/entrypay/internal/config"
	obsmetrics "github.com/craftlane/entrypay/internal/observability/metrics"
	"github.com/craftlane/entrypay/internal/payhere"
	"github.com/craftlane/entrypay/internal/payment/domain"
	registrationdomain "github.com/craftlane/entrypay/internal/registration/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Cfg          config.Config
	Repo         domain.Repository
	RegRepo      registrationdomain.Repository
	Materializer registrationdomain.Materializer
	Client       *payhere.Client     `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	gateway      config.PayHereConfig
	repo         domain.Repository
	regRepo      registrationdomain.Repository
	materializer registrationdomain.Materializer
	client       *payhere.Client
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("payment.service"),
		clock:        p.Clock,
		gateway:      p.Cfg.PayHere,
		repo:         p.Repo,
		regRepo:      p.RegRepo,
		materializer: p.Materializer,
		client:       p.Client,
		obsMetrics:   p.ObsMetrics,
	}
}

// Return-path states surfaced to the browser redirect. "processing" covers
// every case where the outcome is not yet known locally or at the gateway.
const (
	ReturnCompleted  = "completed"
	ReturnProcessing = "processing"
	ReturnFailed     = "failed"
	ReturnCancelled  = "cancelled"
	ReturnRefunded   = "refunded"
)

// ReturnStatus is the reconciliation outcome for one order.
type ReturnStatus struct {
	State         string                            `json:"state"`
	OrderID       string                            `json:"order_id"`
	Amount        float64                           `json:"amount"`
	Currency      string                            `json:"currency"`
	Registrations []registrationdomain.Registration `json:"registrations,omitempty"`
}

// HandleNotification processes one IPN delivery. Verification comes first and
// nothing runs past a failed checksum. The conditional transition decides
// a race between concurrent deliveries; the loser treats its delivery as a
// duplicate and succeeds without side effects.
func (s *Service) HandleNotification(ctx context.Context, form url.Values) error {
	n, err := payhere.ParseNotification(form)
	if err != nil {
		s.obsMetrics.RecordWebhook("malformed")
		return err
	}

	if n.MerchantID != s.gateway.MerchantID ||
		!payhere.Verify(n.MerchantID, n.OrderID, n.Amount, n.Currency, n.StatusCode, n.MD5Sig, s.gateway.MerchantSecret) {
		s.obsMetrics.RecordWebhook("invalid_signature")
		s.log.Warn("rejected notification with bad signature",
			zap.String("order_id", n.OrderID),
			zap.String("merchant_id", n.MerchantID))
		return domain.ErrInvalidSignature
	}

	payment, err := s.repo.FindByOrderID(ctx, s.db, n.OrderID)
	if err != nil {
		return err
	}
	if payment == nil {
		s.obsMetrics.RecordWebhook("unknown_order")
		s.log.Error("verified notification for unknown order",
			zap.String("order_id", n.OrderID),
			zap.Int("status_code", n.StatusCode))
		return domain.ErrOrderNotFound
	}

	// The checksum proves the sender knew the secret, not that the figures
	// match the order. PayHere's contract requires comparing both against the
	// local record before accepting any outcome.
	if n.Amount != payhere.FormatAmount(payment.Amount) || n.Currency != payment.Currency {
		s.obsMetrics.RecordWebhook("amount_mismatch")
		s.log.Error("verified notification disagrees with order amount",
			zap.String("order_id", n.OrderID),
			zap.String("reported_amount", n.Amount),
			zap.String("reported_currency", n.Currency),
			zap.Float64("order_amount", payment.Amount),
			zap.String("order_currency", payment.Currency))
		return domain.ErrAmountMismatch
	}

	raw := rawPayload(form)
	switch n.StatusCode {
	case payhere.StatusCodeSuccess:
		return s.confirm(ctx, n, raw)
	case payhere.StatusCodePending:
		// the gateway will push again with a final status
		s.obsMetrics.RecordWebhook("pending")
		s.log.Info("payment still pending at gateway", zap.String("order_id", n.OrderID))
		return nil
	case payhere.StatusCodeCancelled:
		return s.close(ctx, n, raw, domain.StatusCancelled)
	case payhere.StatusCodeFailed:
		return s.close(ctx, n, raw, domain.StatusFailed)
	case payhere.StatusCodeChargedback:
		return s.chargeback(ctx, n, raw)
	default:
		s.obsMetrics.RecordWebhook("unknown_status")
		s.log.Warn("notification with unrecognized status code",
			zap.String("order_id", n.OrderID),
			zap.Int("status_code", n.StatusCode))
		return nil
	}
}

// confirm applies PENDING -> COMPLETED and materializes registrations. When
// the transition was already applied by an earlier delivery, materialization
// still runs: it is idempotent, and re-running it repairs the window where a
// previous delivery committed the transition but crashed before materializing.
func (s *Service) confirm(ctx context.Context, n *payhere.Notification, raw datatypes.JSON) error {
	now := s.clock.Now()
	applied, err := s.repo.Transition(ctx, s.db, n.OrderID, domain.StatusPending, domain.StatusCompleted, domain.TransitionFields{
		GatewayPaymentID:  n.PaymentID,
		GatewayStatusCode: n.StatusCode,
		GatewaySignature:  n.MD5Sig,
		PaymentMethod:     n.Method,
		CardHolderName:    n.CardHolderName,
		RawResponse:       raw,
		CompletedAt:       &now,
	})
	if err != nil {
		return err
	}
	s.obsMetrics.RecordTransition(domain.StatusCompleted, applied)

	var payment *domain.PaymentRecord
	if !applied {
		current, err := s.repo.FindByOrderID(ctx, s.db, n.OrderID)
		if err != nil {
			return err
		}
		if current == nil || current.Status != domain.StatusCompleted {
			s.obsMetrics.RecordWebhook("illegal_transition")
			s.log.Info("success notification for payment no longer pending",
				zap.String("order_id", n.OrderID),
				zap.String("status", statusOf(current)))
			return nil
		}
		payment = current
		s.obsMetrics.RecordWebhook("duplicate")
		s.log.Info("duplicate success notification", zap.String("order_id", n.OrderID))
	} else {
		current, err := s.repo.FindByOrderID(ctx, s.db, n.OrderID)
		if err != nil {
			return err
		}
		payment = current
		s.obsMetrics.RecordWebhook("completed")
		s.log.Info("payment completed",
			zap.String("order_id", n.OrderID),
			zap.String("gateway_payment_id", n.PaymentID),
			zap.String("amount", n.Amount),
			zap.String("currency", n.Currency))
	}

	if _, err := s.materializer.Materialize(ctx, payment); err != nil {
		return fmt.Errorf("materialize registrations for %s: %w", n.OrderID, err)
	}
	return nil
}

// close applies PENDING -> FAILED or PENDING -> CANCELLED. A lost race or a
// repeat delivery is acknowledged without changes.
func (s *Service) close(ctx context.Context, n *payhere.Notification, raw datatypes.JSON, target string) error {
	applied, err := s.repo.Transition(ctx, s.db, n.OrderID, domain.StatusPending, target, domain.TransitionFields{
		GatewayPaymentID:  n.PaymentID,
		GatewayStatusCode: n.StatusCode,
		GatewaySignature:  n.MD5Sig,
		PaymentMethod:     n.Method,
		RawResponse:       raw,
		ErrorMessage:      n.StatusMessage,
	})
	if err != nil {
		return err
	}
	s.obsMetrics.RecordTransition(target, applied)
	if !applied {
		// re-read so the log reflects whichever state won, not the one seen
		// before the transition attempt
		current, err := s.repo.FindByOrderID(ctx, s.db, n.OrderID)
		if err != nil {
			return err
		}
		s.obsMetrics.RecordWebhook("duplicate")
		s.log.Info("terminal notification for payment no longer pending",
			zap.String("order_id", n.OrderID),
			zap.String("target", target),
			zap.String("status", statusOf(current)))
		return nil
	}
	s.obsMetrics.RecordWebhook("closed")
	s.log.Info("payment closed",
		zap.String("order_id", n.OrderID),
		zap.String("status", target),
		zap.String("status_message", n.StatusMessage))
	return nil
}

// chargeback applies COMPLETED -> REFUNDED. Registrations are deliberately
// left in place; revocation is a manual follow-up.
func (s *Service) chargeback(ctx context.Context, n *payhere.Notification, raw datatypes.JSON) error {
	now := s.clock.Now()
	applied, err := s.repo.Transition(ctx, s.db, n.OrderID, domain.StatusCompleted, domain.StatusRefunded, domain.TransitionFields{
		GatewayStatusCode: n.StatusCode,
		GatewaySignature:  n.MD5Sig,
		RawResponse:       raw,
		ErrorMessage:      n.StatusMessage,
		RefundedAt:        &now,
	})
	if err != nil {
		return err
	}
	s.obsMetrics.RecordTransition(domain.StatusRefunded, applied)
	if !applied {
		current, err := s.repo.FindByOrderID(ctx, s.db, n.OrderID)
		if err != nil {
			return err
		}
		s.obsMetrics.RecordWebhook("illegal_transition")
		s.log.Warn("chargeback for payment not in completed state",
			zap.String("order_id", n.OrderID),
			zap.String("status", statusOf(current)))
		return nil
	}
	s.obsMetrics.RecordWebhook("chargedback")
	s.log.Warn("payment charged back", zap.String("order_id", n.OrderID))
	return nil
}

// ReconcileReturn resolves the state shown to a browser arriving on the
// return URL. The redirect proves nothing about the outcome, so the local
// record decides first, and a still-pending payment falls back to the
// gateway retrieval API when credentials are configured.
func (s *Service) ReconcileReturn(ctx context.Context, orderID string) (*ReturnStatus, error) {
	payment, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrOrderNotFound
	}

	if payment.Status == domain.StatusPending {
		payment, err = s.reconcilePending(ctx, payment)
		if err != nil {
			return nil, err
		}
	}

	status := &ReturnStatus{
		OrderID:  payment.OrderID,
		Amount:   payment.Amount,
		Currency: payment.Currency,
	}
	switch payment.Status {
	case domain.StatusCompleted:
		status.State = ReturnCompleted
		regs, err := s.regRepo.FindByPaymentID(ctx, s.db, payment.ID)
		if err != nil {
			return nil, err
		}
		status.Registrations = regs
	case domain.StatusFailed:
		status.State = ReturnFailed
	case domain.StatusCancelled:
		status.State = ReturnCancelled
	case domain.StatusRefunded:
		status.State = ReturnRefunded
	default:
		status.State = ReturnProcessing
	}
	return status, nil
}

// reconcilePending asks the gateway for the authoritative outcome of a
// payment the IPN has not settled yet. Gateway unavailability or an unknown
// order leaves the payment pending; the IPN remains the path of record.
func (s *Service) reconcilePending(ctx context.Context, payment *domain.PaymentRecord) (*domain.PaymentRecord, error) {
	if !s.client.Configured() {
		return payment, nil
	}

	detail, err := s.client.SearchPayment(ctx, payment.OrderID)
	if err != nil {
		if errors.Is(err, payhere.ErrPaymentNotFound) {
			s.log.Info("gateway has no payment for order yet", zap.String("order_id", payment.OrderID))
		} else {
			s.log.Warn("gateway retrieval failed, leaving payment pending",
				zap.String("order_id", payment.OrderID),
				zap.Error(err))
		}
		return payment, nil
	}

	raw, _ := json.Marshal(detail)
	switch detail.StatusCode() {
	case payhere.StatusCodeSuccess:
		now := s.clock.Now()
		applied, err := s.repo.Transition(ctx, s.db, payment.OrderID, domain.StatusPending, domain.StatusCompleted, domain.TransitionFields{
			GatewayPaymentID:  detail.PaymentID,
			GatewayStatusCode: detail.StatusCode(),
			PaymentMethod:     detail.Method,
			RawResponse:       raw,
			CompletedAt:       &now,
		})
		if err != nil {
			return nil, err
		}
		s.obsMetrics.RecordTransition(domain.StatusCompleted, applied)

		current, err := s.repo.FindByOrderID(ctx, s.db, payment.OrderID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, domain.ErrOrderNotFound
		}
		if current.Status == domain.StatusCompleted {
			if _, err := s.materializer.Materialize(ctx, current); err != nil {
				return nil, fmt.Errorf("materialize registrations for %s: %w", payment.OrderID, err)
			}
		}
		return current, nil

	case payhere.StatusCodeCancelled, payhere.StatusCodeFailed:
		target := domain.StatusCancelled
		if detail.StatusCode() == payhere.StatusCodeFailed {
			target = domain.StatusFailed
		}
		applied, err := s.repo.Transition(ctx, s.db, payment.OrderID, domain.StatusPending, target, domain.TransitionFields{
			GatewayPaymentID:  detail.PaymentID,
			GatewayStatusCode: detail.StatusCode(),
			PaymentMethod:     detail.Method,
			RawResponse:       raw,
		})
		if err != nil {
			return nil, err
		}
		s.obsMetrics.RecordTransition(target, applied)
		current, err := s.repo.FindByOrderID(ctx, s.db, payment.OrderID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, domain.ErrOrderNotFound
		}
		return current, nil

	default:
		return payment, nil
	}
}

// FindByOrderID exposes the local record for handlers.
func (s *Service) FindByOrderID(ctx context.Context, orderID string) (*domain.PaymentRecord, error) {
	payment, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrOrderNotFound
	}
	return payment, nil
}

func rawPayload(form url.Values) datatypes.JSON {
	flat := make(map[string]string, len(form))
	for key := range form {
		if key == "card_no" {
			// masked by the gateway, but keep only the last four regardless
			no := form.Get(key)
			if len(no) > 4 {
				no = no[len(no)-4:]
			}
			flat[key] = no
			continue
		}
		flat[key] = form.Get(key)
	}
	raw, err := json.Marshal(flat)
	if err != nil {
		return nil
	}
	return raw
}

func statusOf(p *domain.PaymentRecord) string {
	if p == nil {
		return "missing"
	}
	return p.Status
}
