package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/debt-recovery-backend/internal/policy"
	"github.com/aldoetobex/debt-recovery-backend/pkg/apperr"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
)

// IntentRequest is what the gateway needs to open a payment.
type IntentRequest struct {
	Amount      int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// Intent is the gateway's answer.
type Intent struct {
	ID           string
	ClientSecret string
}

// IntentCreator opens a payment with the gateway.
type IntentCreator interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// StripeIntents creates PaymentIntents through the Stripe API.
type StripeIntents struct {
	client paymentintent.Client
}

func NewStripeIntents(secretKey string) *StripeIntents {
	return &StripeIntents{client: paymentintent.Client{
		B:   stripe.GetBackend(stripe.APIBackend),
		Key: secretKey,
	}}
}

func (s *StripeIntents) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.client.New(params)
	if err != nil {
		return nil, err
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// PaymentIntent is returned to the client to confirm the payment.
type PaymentIntent struct {
	Payment      models.Payment `json:"payment"`
	ClientSecret string         `json:"client_secret"`
}

func payable(st models.InvoiceStatus) bool {
	return st == models.InvoiceIssued || st == models.InvoiceOverdue
}

// Pay opens a gateway payment for a client's own invoice and records it as
// PENDING. Only webhook processing moves it on from there.
func (s *Service) Pay(ctx context.Context, a policy.Actor, invoiceID uuid.UUID) (*PaymentIntent, error) {
	if s.intents == nil {
		return nil, apperr.New(apperr.BadRequest, "payments are not configured")
	}

	var inv models.Invoice
	if err := s.db.WithContext(ctx).First(&inv, "id = ?", invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("invoice")
		}
		return nil, err
	}
	if err := policy.Authorize(policy.Invoice, policy.Pay, a, policy.Owner{ClientID: inv.ClientID}); err != nil {
		return nil, err
	}
	if !payable(inv.Status) {
		return nil, apperr.Newf(apperr.Conflict, "invoice is %s", inv.Status)
	}

	intent, err := s.intents.CreateIntent(ctx, IntentRequest{
		Amount:      ToMinor(inv.Amount, inv.Currency),
		Currency:    inv.Currency,
		Description: "Invoice " + inv.InvoiceNumber,
		Metadata: map[string]string{
			"invoice_id":     inv.ID.String(),
			"invoice_number": inv.InvoiceNumber,
			"case_id":        inv.CaseID.String(),
		},
	})
	if err != nil {
		s.logger.Error("create payment intent", zap.String("invoice_id", inv.ID.String()), zap.Error(err))
		return nil, apperr.Wrap(err, "payment gateway unavailable")
	}

	pay := models.Payment{
		ClientID:        inv.ClientID,
		CaseID:          &inv.CaseID,
		InvoiceID:       &inv.ID,
		Amount:          inv.Amount,
		Currency:        inv.Currency,
		Status:          models.PayPending,
		StripePaymentID: intent.ID,
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "stripe_payment_id"}}, DoNothing: true}).
		Create(&pay).Error; err != nil {
		return nil, err
	}
	return &PaymentIntent{Payment: pay, ClientSecret: intent.ClientSecret}, nil
}
