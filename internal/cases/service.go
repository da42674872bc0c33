package cases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/debt-recovery-backend/internal/cache"
	"github.com/aldoetobex/debt-recovery-backend/internal/policy"
	"github.com/aldoetobex/debt-recovery-backend/pkg/apperr"
	"github.com/aldoetobex/debt-recovery-backend/pkg/database"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
	"github.com/aldoetobex/debt-recovery-backend/pkg/sanitize"
	"github.com/aldoetobex/debt-recovery-backend/pkg/utils"
	"github.com/aldoetobex/debt-recovery-backend/pkg/validation"
)

const previewLen = 240

// ===== DTOs =====

// CreateInput is everything a client submits when filing a case.
type CreateInput struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Priority    models.Priority `json:"priority" validate:"omitempty,priority"`

	CreditorName          string  `json:"creditor_name" validate:"required,max=200"`
	CreditorRegNumber     *string `json:"creditor_reg_number" validate:"omitempty,max=60"`
	CreditorContactPerson *string `json:"creditor_contact_person" validate:"omitempty,max=120"`
	CreditorEmail         string  `json:"creditor_email" validate:"required,email,max=120"`
	CreditorPhone         string  `json:"creditor_phone" validate:"required,max=30"`
	CreditorAddress       string  `json:"creditor_address" validate:"required,max=300"`
	CreditorPostalAddress *string `json:"creditor_postal_address" validate:"omitempty,max=300"`

	DebtorName         string  `json:"debtor_name" validate:"required,max=200"`
	DebtorRegNumber    *string `json:"debtor_reg_number" validate:"omitempty,max=60"`
	DebtorAddress      string  `json:"debtor_address" validate:"required,max=300"`
	DebtorPhone        *string `json:"debtor_phone" validate:"omitempty,max=30"`
	DebtorEmail        *string `json:"debtor_email" validate:"omitempty,email,max=120"`
	DebtorBusinessType *string `json:"debtor_business_type" validate:"omitempty,max=80"`

	PrincipalAmount decimal.Decimal  `json:"principal_amount"`
	Currency        string           `json:"currency" validate:"omitempty,currency"`
	InterestRate    *decimal.Decimal `json:"interest_rate"`
	AccruedInterest *decimal.Decimal `json:"accrued_interest"`
	OriginalDueDate time.Time        `json:"original_due_date"`
	PaymentTerms    *string          `json:"payment_terms" validate:"omitempty,max=200"`
	DebtCategory    string           `json:"debt_category" validate:"required,max=80"`

	PreferredRecoveryMethod *string `json:"preferred_recovery_method" validate:"omitempty,max=80"`
	PreviousAttempts        *string `json:"previous_attempts" validate:"omitempty,max=5000"`
	SpecialInstructions     *string `json:"special_instructions" validate:"omitempty,max=5000"`
	PreferredCommunication  *string `json:"preferred_communication" validate:"omitempty,max=40"`
}

// validate runs tag rules plus the money/date checks tags cannot express.
func (in *CreateInput) validate() error {
	errs, err := validation.Validate(in)
	if err != nil {
		return apperr.Wrap(err, "validate case")
	}
	if !in.PrincipalAmount.IsPositive() {
		errs = validation.Merge(errs, "principal_amount", "Must be greater than 0")
	}
	if in.AccruedInterest != nil && in.AccruedInterest.IsNegative() {
		errs = validation.Merge(errs, "accrued_interest", "Must not be negative")
	}
	if in.InterestRate != nil && in.InterestRate.IsNegative() {
		errs = validation.Merge(errs, "interest_rate", "Must not be negative")
	}
	if in.OriginalDueDate.IsZero() {
		errs = validation.Merge(errs, "original_due_date", "This field is required")
	}
	if errs != nil {
		return apperr.Validation(errs)
	}
	return nil
}

// ListFilter narrows List beyond the role scope.
type ListFilter struct {
	Status   models.CaseStatus `query:"status" validate:"omitempty,casestatus"`
	Priority models.Priority   `query:"priority" validate:"omitempty,priority"`
}

// Counts are the aggregate child counts shown in lists.
type Counts struct {
	Documents int64 `json:"documents"`
	Messages  int64 `json:"messages"`
	Timeline  int64 `json:"timeline"`
}

type ListItem struct {
	ID             uuid.UUID         `json:"id"`
	CaseNumber     string            `json:"case_number"`
	Title          string            `json:"title"`
	Preview        string            `json:"preview"`
	Status         models.CaseStatus `json:"status"`
	Priority       models.Priority   `json:"priority"`
	DebtorName     string            `json:"debtor_name"`
	TotalAmountDue decimal.Decimal   `json:"total_amount_due"`
	Currency       string            `json:"currency"`
	Client         *models.UserRef   `json:"client,omitempty"`
	AssignedTo     *models.UserRef   `json:"assigned_to,omitempty"`
	Counts         Counts            `json:"_count"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

type Stats struct {
	Total      int64                       `json:"total"`
	Open       int64                       `json:"open"`
	ByStatus   map[models.CaseStatus]int64 `json:"by_status"`
	ByPriority map[models.Priority]int64   `json:"by_priority"`
}

/* ============================== Service ================================= */

type Options struct {
	Prefix   string
	Location *time.Location
	Attempts int
}

type Service struct {
	db       *gorm.DB
	logger   *zap.Logger
	cache    *cache.Cache
	prefix   string
	loc      *time.Location
	attempts int
	now      func() time.Time
}

func NewService(db *gorm.DB, logger *zap.Logger, c *cache.Cache, opts Options) *Service {
	if opts.Prefix == "" {
		opts.Prefix = "DMK"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       db,
		logger:   logger,
		cache:    c,
		prefix:   opts.Prefix,
		loc:      opts.Location,
		attempts: opts.Attempts,
		now:      time.Now,
	}
}

// Find loads a bare case or returns NOT_FOUND.
func Find(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Case, error) {
	var cs models.Case
	if err := db.WithContext(ctx).First(&cs, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("case")
		}
		return nil, err
	}
	return &cs, nil
}

// Authorized loads a case and checks act on it for the actor.
func Authorized(ctx context.Context, db *gorm.DB, a policy.Actor, act policy.Action, id uuid.UUID) (*models.Case, error) {
	cs, err := Find(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.Case, act, a, policy.CaseOwner(cs)); err != nil {
		return nil, err
	}
	return cs, nil
}

func (s *Service) withParties(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	var cs models.Case
	err := s.db.WithContext(ctx).
		Preload("Client").Preload("AssignedTo").
		First(&cs, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

/* =============================== Create ================================= */

// Create files a case for the calling client. Numbering, the assignee pick,
// the insert and the "Case Created" entry form one transaction that is
// re-run when another request takes the same number first.
func (s *Service) Create(ctx context.Context, a policy.Actor, in CreateInput) (*models.Case, error) {
	if err := policy.Authorize(policy.Case, policy.Create, a, policy.Owner{ClientID: a.ID}); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	accrued := decimal.Zero
	if in.AccruedInterest != nil {
		accrued = *in.AccruedInterest
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "GHS"
	}

	var (
		id       uuid.UUID
		assignee *uuid.UUID
	)
	err := database.WithUniqueRetry(ctx, s.db, s.attempts, func(tx *gorm.DB) error {
		now := s.now().In(s.loc)
		start, end := DayBounds(now, s.loc)

		var today int64
		if err := tx.Model(&models.Case{}).
			Where("created_at >= ? AND created_at < ?", start, end).
			Count(&today).Error; err != nil {
			return err
		}

		cs := models.Case{
			CaseNumber:  CaseNumber(s.prefix, now, today),
			Title:       strings.TrimSpace(in.Title),
			Description: strings.TrimSpace(in.Description),
			ClientID:    a.ID,
			Status:      models.CaseReceived,
			Priority:    priority,

			CreditorName:          in.CreditorName,
			CreditorRegNumber:     in.CreditorRegNumber,
			CreditorContactPerson: in.CreditorContactPerson,
			CreditorEmail:         strings.ToLower(strings.TrimSpace(in.CreditorEmail)),
			CreditorPhone:         in.CreditorPhone,
			CreditorAddress:       in.CreditorAddress,
			CreditorPostalAddress: in.CreditorPostalAddress,

			DebtorName:         in.DebtorName,
			DebtorRegNumber:    in.DebtorRegNumber,
			DebtorAddress:      in.DebtorAddress,
			DebtorPhone:        in.DebtorPhone,
			DebtorEmail:        in.DebtorEmail,
			DebtorBusinessType: in.DebtorBusinessType,

			PrincipalAmount: in.PrincipalAmount,
			Currency:        currency,
			InterestRate:    in.InterestRate,
			AccruedInterest: accrued,
			TotalAmountDue:  in.PrincipalAmount.Add(accrued),
			OriginalDueDate: in.OriginalDueDate,
			PaymentTerms:    in.PaymentTerms,
			DebtCategory:    in.DebtCategory,

			PreferredRecoveryMethod: in.PreferredRecoveryMethod,
			PreviousAttempts:        in.PreviousAttempts,
			SpecialInstructions:     in.SpecialInstructions,
			PreferredCommunication:  in.PreferredCommunication,

			CreatedAt: now,
			UpdatedAt: now,
		}

		loads, err := StaffLoads(ctx, tx, models.RoleStaff)
		if err != nil {
			return err
		}
		desc := fmt.Sprintf("Case %s has been filed and is awaiting assignment", cs.CaseNumber)
		if pick, ok := PickLeastLoaded(loads); ok {
			cs.AssignedToID = &pick.StaffID
			name := pick.Name
			if name == "" {
				name = "staff"
			}
			desc = fmt.Sprintf("Case %s has been filed and assigned to %s", cs.CaseNumber, name)
		}

		if err := tx.Create(&cs).Error; err != nil {
			return err
		}
		id, assignee = cs.ID, cs.AssignedToID
		return utils.AppendTimeline(ctx, tx, cs.ID, &a.ID, models.EventCaseCreated, "Case Created", desc)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, statsKeys(assignee)...)
	s.logger.Info("case created", zap.String("case_id", id.String()))
	return s.withParties(ctx, id)
}

/* ============================ Status & assign =========================== */

// UpdateStatus moves a case to any status value and records the change.
func (s *Service) UpdateStatus(ctx context.Context, a policy.Actor, id uuid.UUID, status models.CaseStatus, note *string) (*models.Case, error) {
	if errs, _ := validation.Validate(struct {
		Status models.CaseStatus `json:"status" validate:"required,casestatus"`
	}{status}); errs != nil {
		return nil, apperr.Validation(errs)
	}

	var assignee *uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cs models.Case
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cs, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("case")
			}
			return err
		}
		if err := policy.Authorize(policy.Case, policy.UpdateStatus, a, policy.CaseOwner(&cs)); err != nil {
			return err
		}
		assignee = cs.AssignedToID

		if err := tx.Model(&cs).Updates(map[string]any{
			"status":     status,
			"updated_at": s.now(),
		}).Error; err != nil {
			return err
		}

		desc := fmt.Sprintf("Case status changed to %s", status)
		if n := strings.TrimSpace(utils.Deref(note)); n != "" {
			desc += ". Note: " + n
		}
		return utils.AppendTimeline(ctx, tx, cs.ID, &a.ID, models.EventStatusChange, "Status Updated", desc)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, statsKeys(assignee)...)
	return s.withParties(ctx, id)
}

// Assign hands a case to a STAFF or LEGAL user.
func (s *Service) Assign(ctx context.Context, a policy.Actor, caseID, staffID uuid.UUID) (*models.Case, error) {
	if err := policy.Authorize(policy.Case, policy.Assign, a, policy.Owner{}); err != nil {
		return nil, err
	}

	var previous, next *uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cs models.Case
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cs, "id = ?", caseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("case")
			}
			return err
		}

		var staff models.User
		err := tx.Where("id = ? AND role IN ?", staffID, []models.Role{models.RoleStaff, models.RoleLegal}).
			First(&staff).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.BadRequest, "assignee must be an existing STAFF or LEGAL user")
		}
		if err != nil {
			return err
		}

		previous, next = cs.AssignedToID, &staff.ID
		if err := tx.Model(&cs).Updates(map[string]any{
			"assigned_to_id": staff.ID,
			"updated_at":     s.now(),
		}).Error; err != nil {
			return err
		}
		return utils.AppendTimeline(ctx, tx, cs.ID, &a.ID, models.EventAssignmentChanged,
			"Case Reassigned", "Case assigned to "+staff.Name)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, statsKeys(previous, next)...)
	return s.withParties(ctx, caseID)
}

/* ================================ Read ================================== */

func ref(u *models.User) *models.UserRef {
	if u == nil {
		return nil
	}
	return &models.UserRef{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

type countRow struct {
	CaseID uuid.UUID
	N      int64
}

func (s *Service) countBy(ctx context.Context, model any, scope policy.Scope, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	var rows []countRow
	err := s.db.WithContext(ctx).Model(model).
		Scopes(scope).
		Select("case_id, COUNT(*) AS n").
		Where("case_id IN ?", ids).
		Group("case_id").
		Scan(&rows).Error
	out := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		out[r.CaseID] = r.N
	}
	return out, err
}

// List returns the actor's cases, newest first, with child counts.
func (s *Service) List(ctx context.Context, a policy.Actor, f ListFilter, p utils.Page) (utils.PageResult[ListItem], error) {
	if errs, _ := validation.Validate(f); errs != nil {
		return utils.PageResult[ListItem]{}, apperr.Validation(errs)
	}

	q := s.db.WithContext(ctx).Model(&models.Case{}).Scopes(policy.Cases(a))
	if f.Status != "" {
		q = q.Where("cases.status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("cases.priority = ?", f.Priority)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.PageResult[ListItem]{}, err
	}

	var rows []models.Case
	if err := q.Preload("Client").Preload("AssignedTo").
		Order("cases.created_at DESC").
		Offset(p.Offset).Limit(p.Limit).
		Find(&rows).Error; err != nil {
		return utils.PageResult[ListItem]{}, err
	}

	items := make([]ListItem, 0, len(rows))
	if len(rows) > 0 {
		ids := make([]uuid.UUID, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		docs, err := s.countBy(ctx, &models.Document{}, policy.Documents(a), ids)
		if err != nil {
			return utils.PageResult[ListItem]{}, err
		}
		msgs, err := s.countBy(ctx, &models.Message{}, policy.Messages(a), ids)
		if err != nil {
			return utils.PageResult[ListItem]{}, err
		}
		tl, err := s.countBy(ctx, &models.CaseTimeline{}, func(db *gorm.DB) *gorm.DB { return db }, ids)
		if err != nil {
			return utils.PageResult[ListItem]{}, err
		}

		for _, r := range rows {
			items = append(items, ListItem{
				ID:             r.ID,
				CaseNumber:     r.CaseNumber,
				Title:          r.Title,
				Preview:        sanitize.Preview(r.Description, previewLen),
				Status:         r.Status,
				Priority:       r.Priority,
				DebtorName:     r.DebtorName,
				TotalAmountDue: r.TotalAmountDue,
				Currency:       r.Currency,
				Client:         ref(r.Client),
				AssignedTo:     ref(r.AssignedTo),
				Counts:         Counts{Documents: docs[r.ID], Messages: msgs[r.ID], Timeline: tl[r.ID]},
				CreatedAt:      r.CreatedAt,
				UpdatedAt:      r.UpdatedAt,
			})
		}
	}
	return utils.Result(items, total, p), nil
}

// Get returns a case with documents, messages and timeline. CLIENT callers
// only see documents and messages the policy lets them see.
func (s *Service) Get(ctx context.Context, a policy.Actor, id uuid.UUID) (*models.Case, error) {
	if _, err := Authorized(ctx, s.db, a, policy.Read, id); err != nil {
		return nil, err
	}

	var cs models.Case
	err := s.db.WithContext(ctx).
		Preload("Client").Preload("AssignedTo").
		Preload("Documents", func(db *gorm.DB) *gorm.DB {
			return db.Scopes(policy.Documents(a)).Order("documents.created_at DESC")
		}).
		Preload("Documents.UploadedBy").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Scopes(policy.Messages(a)).Order("messages.created_at ASC")
		}).
		Preload("Messages.Sender").Preload("Messages.Receiver").
		Preload("Timeline", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		First(&cs, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	// never send null collections
	if cs.Documents == nil {
		cs.Documents = []models.Document{}
	}
	if cs.Messages == nil {
		cs.Messages = []models.Message{}
	}
	if cs.Timeline == nil {
		cs.Timeline = []models.CaseTimeline{}
	}
	return &cs, nil
}

/* ================================ Stats ================================= */

const statsKeyAll = "case-stats:all"

func staffStatsKey(id uuid.UUID) string { return "case-stats:staff:" + id.String() }

func statsKey(a policy.Actor) string {
	if a.Role == models.RoleStaff {
		return staffStatsKey(a.ID)
	}
	return statsKeyAll
}

// statsKeys lists the cached stats a case write can change: the global
// view plus the per-staff view of each assignee involved.
func statsKeys(assignees ...*uuid.UUID) []string {
	keys := []string{statsKeyAll}
	seen := map[uuid.UUID]bool{}
	for _, id := range assignees {
		if id == nil || seen[*id] {
			continue
		}
		seen[*id] = true
		keys = append(keys, staffStatsKey(*id))
	}
	return keys
}

// Stats groups the visible cases by status and priority.
func (s *Service) Stats(ctx context.Context, a policy.Actor) (*Stats, error) {
	if err := policy.Authorize(policy.Case, policy.Stats, a, policy.Owner{}); err != nil {
		return nil, err
	}
	return cache.Remember(ctx, s.cache, statsKey(a), func() (*Stats, error) {
		return s.computeStats(ctx, a)
	})
}

func (s *Service) computeStats(ctx context.Context, a policy.Actor) (*Stats, error) {
	out := &Stats{
		ByStatus:   map[models.CaseStatus]int64{},
		ByPriority: map[models.Priority]int64{},
	}

	var byStatus []struct {
		Status models.CaseStatus
		N      int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Case{}).
		Scopes(policy.CaseStats(a)).
		Select("status, COUNT(*) AS n").Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, r := range byStatus {
		out.ByStatus[r.Status] = r.N
		out.Total += r.N
		if r.Status != models.CaseClosed && r.Status != models.CaseResolved {
			out.Open += r.N
		}
	}

	var byPriority []struct {
		Priority models.Priority
		N        int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Case{}).
		Scopes(policy.CaseStats(a)).
		Select("priority, COUNT(*) AS n").Group("priority").
		Scan(&byPriority).Error; err != nil {
		return nil, err
	}
	for _, r := range byPriority {
		out.ByPriority[r.Priority] = r.N
	}
	return out, nil
}
