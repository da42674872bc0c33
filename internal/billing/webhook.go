package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/debt-recovery-backend/internal/policy"
	"github.com/aldoetobex/debt-recovery-backend/pkg/apperr"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
	"github.com/aldoetobex/debt-recovery-backend/pkg/utils"
)

const ProviderStripe = "stripe"

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventInvoicePaid      = "invoice.payment_succeeded"
)

// EventFilter narrows the inbound event log.
type EventFilter struct {
	FailedOnly bool   `query:"failed"`
	Type       string `query:"type"`
}

// Verify checks the gateway signature over the raw body.
func (s *Service) Verify(payload []byte, signature string) (stripe.Event, error) {
	if signature == "" {
		return stripe.Event{}, apperr.New(apperr.BadRequest, "missing signature")
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripe.Event{}, &apperr.Error{Kind: apperr.BadRequest, Message: "invalid signature", Err: err}
	}
	return ev, nil
}

// HandleWebhook verifies, records and processes one delivery. Processing
// failures are kept on the event row; only verification and storage errors
// are returned.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*models.WebhookEvent, error) {
	ev, err := s.Verify(payload, signature)
	if err != nil {
		return nil, err
	}

	row := models.WebhookEvent{
		Provider:        ProviderStripe,
		ProviderEventID: ev.ID,
		EventType:       string(ev.Type),
		Payload:         datatypes.JSON(payload),
		SignatureValid:  true,
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_event_id"}},
			DoNothing: true,
		}).
		Create(&row).Error; err != nil {
		return nil, err
	}

	return s.process(ctx, ev)
}

// process applies the event under a row lock on its log entry so concurrent
// deliveries of the same event run one at a time.
func (s *Service) process(ctx context.Context, ev stripe.Event) (*models.WebhookEvent, error) {
	var row models.WebhookEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "provider = ? AND provider_event_id = ?", ProviderStripe, ev.ID).Error; err != nil {
			return err
		}
		if row.ProcessedAt != nil && row.ProcessingError == "" {
			s.logger.Info("webhook event already processed", zap.String("event_id", ev.ID))
			return nil
		}

		applyErr := tx.Transaction(func(sp *gorm.DB) error { return s.apply(ctx, sp, ev) })

		now := s.now()
		updates := map[string]any{"attempts": gorm.Expr("attempts + 1")}
		if applyErr != nil {
			s.logger.Error("webhook processing failed",
				zap.String("event_id", ev.ID),
				zap.String("type", string(ev.Type)),
				zap.Error(applyErr))
			updates["processing_error"] = applyErr.Error()
			updates["processed_at"] = nil
		} else {
			updates["processing_error"] = ""
			updates["processed_at"] = now
		}
		if err := tx.Model(&row).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&row, "id = ?", row.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, ev stripe.Event) error {
	if ev.Data == nil {
		return errors.New("event has no data")
	}
	switch string(ev.Type) {
	case EventPaymentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return fmt.Errorf("decode payment intent: %w", err)
		}
		return s.paymentSucceeded(ctx, tx, pi.ID)
	case EventPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return fmt.Errorf("decode payment intent: %w", err)
		}
		return s.paymentFailed(ctx, tx, pi.ID)
	case EventInvoicePaid:
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		number := inv.Metadata["invoice_number"]
		if number == "" {
			number = inv.Number
		}
		return s.invoicePaid(tx, number, inv.AmountPaid, string(inv.Currency))
	}
	return nil
}

func (s *Service) lockPayment(tx *gorm.DB, stripeID string) (*models.Payment, error) {
	var pay models.Payment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&pay, "stripe_payment_id = ?", stripeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("webhook for unknown payment", zap.String("stripe_payment_id", stripeID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pay, nil
}

func (s *Service) paymentSucceeded(ctx context.Context, tx *gorm.DB, stripeID string) error {
	pay, err := s.lockPayment(tx, stripeID)
	if err != nil || pay == nil {
		return err
	}
	if pay.Status == models.PayCompleted {
		return nil
	}

	if err := tx.Model(pay).Updates(map[string]any{
		"status":         models.PayCompleted,
		"transaction_id": stripeID,
	}).Error; err != nil {
		return err
	}
	if pay.InvoiceID != nil {
		if err := tx.Model(&models.Invoice{}).Where("id = ?", *pay.InvoiceID).Updates(map[string]any{
			"status":      models.InvoicePaid,
			"paid_amount": pay.Amount,
		}).Error; err != nil {
			return err
		}
	}
	if pay.CaseID != nil {
		return utils.AppendTimeline(ctx, tx, *pay.CaseID, nil, models.EventPaymentReceived, "Payment Received",
			fmt.Sprintf("Payment of %s %s received successfully", pay.Currency, pay.Amount.StringFixed(2)))
	}
	return nil
}

func (s *Service) paymentFailed(ctx context.Context, tx *gorm.DB, stripeID string) error {
	pay, err := s.lockPayment(tx, stripeID)
	if err != nil || pay == nil {
		return err
	}
	if pay.Status == models.PayFailed {
		return nil
	}

	if err := tx.Model(pay).Update("status", models.PayFailed).Error; err != nil {
		return err
	}
	if pay.CaseID != nil {
		return utils.AppendTimeline(ctx, tx, *pay.CaseID, nil, models.EventPaymentFailed, "Payment Failed",
			fmt.Sprintf("Payment of %s %s failed", pay.Currency, pay.Amount.StringFixed(2)))
	}
	return nil
}

func (s *Service) invoicePaid(tx *gorm.DB, number string, amountPaid int64, currency string) error {
	if number == "" {
		return nil
	}
	var inv models.Invoice
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&inv, "invoice_number = ?", number).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("webhook for unknown invoice", zap.String("invoice_number", number))
		return nil
	}
	if err != nil {
		return err
	}
	if currency == "" {
		currency = inv.Currency
	}
	return tx.Model(&inv).Updates(map[string]any{
		"status":      models.InvoicePaid,
		"paid_amount": FromMinor(amountPaid, currency),
	}).Error
}

/* ============================ Event log ================================= */

// ListEvents pages the inbound event log, newest first.
func (s *Service) ListEvents(ctx context.Context, a policy.Actor, f EventFilter, p utils.Page) (utils.PageResult[models.WebhookEvent], error) {
	if err := policy.Authorize(policy.WebhookEvent, policy.List, a, policy.Owner{}); err != nil {
		return utils.PageResult[models.WebhookEvent]{}, err
	}
	q := s.db.WithContext(ctx).Model(&models.WebhookEvent{})
	if f.FailedOnly {
		q = q.Where("processed_at IS NULL")
	}
	if f.Type != "" {
		q = q.Where("event_type = ?", f.Type)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.PageResult[models.WebhookEvent]{}, err
	}
	var rows []models.WebhookEvent
	if err := q.Order("created_at DESC").Offset(p.Offset).Limit(p.Limit).Find(&rows).Error; err != nil {
		return utils.PageResult[models.WebhookEvent]{}, err
	}
	return utils.Result(rows, total, p), nil
}

// Replay re-runs a stored event that has not been processed successfully.
func (s *Service) Replay(ctx context.Context, a policy.Actor, id uuid.UUID) (*models.WebhookEvent, error) {
	if err := policy.Authorize(policy.WebhookEvent, policy.Replay, a, policy.Owner{}); err != nil {
		return nil, err
	}
	var row models.WebhookEvent
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("webhook event")
		}
		return nil, err
	}
	if row.ProcessedAt != nil && row.ProcessingError == "" {
		return nil, apperr.New(apperr.Conflict, "event already processed")
	}

	var ev stripe.Event
	if err := json.Unmarshal(row.Payload, &ev); err != nil {
		return nil, apperr.Wrap(err, "decode stored event")
	}
	s.logger.Info("replaying webhook event", zap.String("event_id", row.ProviderEventID))
	return s.process(ctx, ev)
}
