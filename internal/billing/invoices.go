package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aldoetobex/debt-recovery-backend/internal/cases"
	"github.com/aldoetobex/debt-recovery-backend/internal/policy"
	"github.com/aldoetobex/debt-recovery-backend/pkg/apperr"
	"github.com/aldoetobex/debt-recovery-backend/pkg/database"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
	"github.com/aldoetobex/debt-recovery-backend/pkg/utils"
	"github.com/aldoetobex/debt-recovery-backend/pkg/validation"
)

// ===== DTOs =====

type InvoiceInput struct {
	CaseID      string          `json:"case_id" validate:"required,uuid"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" validate:"omitempty,currency"`
	Description *string         `json:"description" validate:"omitempty,max=1000"`
	DueDate     time.Time       `json:"due_date"`
}

func (in InvoiceInput) validate() error {
	errs, err := validation.Validate(in)
	if err != nil {
		return apperr.Wrap(err, "validate invoice")
	}
	if !in.Amount.IsPositive() {
		errs = validation.Merge(errs, "amount", "Must be greater than 0")
	}
	if in.DueDate.IsZero() {
		errs = validation.Merge(errs, "due_date", "This field is required")
	}
	if errs != nil {
		return apperr.Validation(errs)
	}
	return nil
}

type InvoiceFilter struct {
	Status models.InvoiceStatus `query:"status" validate:"omitempty,oneof=ISSUED PAID OVERDUE CANCELLED"`
}

/* ============================== Service ================================= */

type Options struct {
	WebhookSecret string
	Attempts      int
}

// Service owns invoices, payments and gateway webhook processing.
type Service struct {
	db            *gorm.DB
	logger        *zap.Logger
	intents       IntentCreator
	webhookSecret string
	attempts      int
	now           func() time.Time
}

// NewService accepts a nil IntentCreator; payment intents are then rejected.
func NewService(db *gorm.DB, logger *zap.Logger, intents IntentCreator, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:            db,
		logger:        logger,
		intents:       intents,
		webhookSecret: opts.WebhookSecret,
		attempts:      opts.Attempts,
		now:           time.Now,
	}
}

func withRefs(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Client", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "email") }).
		Preload("Case", func(db *gorm.DB) *gorm.DB { return db.Select("id", "case_number", "title") })
}

// CreateInvoice bills the client of a case. The number is derived from the
// global invoice count, so the count and insert are retried together.
func (s *Service) CreateInvoice(ctx context.Context, a policy.Actor, in InvoiceInput) (*models.Invoice, error) {
	if err := policy.Authorize(policy.Invoice, policy.Create, a, policy.Owner{}); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	cs, err := cases.Find(ctx, s.db, uuid.MustParse(in.CaseID))
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = cs.Currency
	}

	var id uuid.UUID
	err = database.WithUniqueRetry(ctx, s.db, s.attempts, func(tx *gorm.DB) error {
		var issued int64
		if err := tx.Model(&models.Invoice{}).Count(&issued).Error; err != nil {
			return err
		}
		inv := models.Invoice{
			InvoiceNumber: InvoiceNumber(s.now(), issued),
			ClientID:      cs.ClientID,
			CaseID:        cs.ID,
			Amount:        in.Amount.Round(2),
			Currency:      currency,
			Description:   in.Description,
			Status:        models.InvoiceIssued,
			DueDate:       in.DueDate,
		}
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		id = inv.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out models.Invoice
	if err := s.db.WithContext(ctx).Scopes(withRefs).First(&out, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// ListInvoices pages invoices, newest first. Clients only see their own.
func (s *Service) ListInvoices(ctx context.Context, a policy.Actor, f InvoiceFilter, p utils.Page) (utils.PageResult[models.Invoice], error) {
	if err := validation.Check(f); err != nil {
		return utils.PageResult[models.Invoice]{}, err
	}
	q := s.db.WithContext(ctx).Model(&models.Invoice{}).Scopes(policy.ClientOwned("invoices", a))
	if f.Status != "" {
		q = q.Where("invoices.status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.PageResult[models.Invoice]{}, err
	}
	var rows []models.Invoice
	if err := q.Scopes(withRefs).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "invoice_id", "amount", "currency", "status", "created_at")
		}).
		Order("invoices.created_at DESC").
		Offset(p.Offset).Limit(p.Limit).
		Find(&rows).Error; err != nil {
		return utils.PageResult[models.Invoice]{}, err
	}
	return utils.Result(rows, total, p), nil
}

// GetInvoice returns one invoice with its payments.
func (s *Service) GetInvoice(ctx context.Context, a policy.Actor, id uuid.UUID) (*models.Invoice, error) {
	var inv models.Invoice
	if err := s.db.WithContext(ctx).Scopes(withRefs).Preload("Payments").First(&inv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("invoice")
		}
		return nil, err
	}
	if err := policy.Authorize(policy.Invoice, policy.Read, a, policy.Owner{ClientID: inv.ClientID}); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListPayments pages payments, newest first. Clients only see their own.
func (s *Service) ListPayments(ctx context.Context, a policy.Actor, p utils.Page) (utils.PageResult[models.Payment], error) {
	if err := policy.Authorize(policy.Payment, policy.Read, a, policy.Owner{ClientID: a.ID}); err != nil {
		return utils.PageResult[models.Payment]{}, err
	}
	q := s.db.WithContext(ctx).Model(&models.Payment{}).Scopes(policy.ClientOwned("payments", a))

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.PageResult[models.Payment]{}, err
	}
	var rows []models.Payment
	if err := q.Scopes(withRefs).
		Preload("Invoice", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "invoice_number", "amount", "currency")
		}).
		Order("payments.created_at DESC").
		Offset(p.Offset).Limit(p.Limit).
		Find(&rows).Error; err != nil {
		return utils.PageResult[models.Payment]{}, err
	}
	return utils.Result(rows, total, p), nil
}
