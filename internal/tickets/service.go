package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/debt-recovery-backend/internal/cases"
	"github.com/aldoetobex/debt-recovery-backend/internal/policy"
	"github.com/aldoetobex/debt-recovery-backend/pkg/apperr"
	"github.com/aldoetobex/debt-recovery-backend/pkg/database"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
	"github.com/aldoetobex/debt-recovery-backend/pkg/utils"
	"github.com/aldoetobex/debt-recovery-backend/pkg/validation"
)

// TicketNumber formats TKT-YYYYMMDD-NNNN where NNNN is total+1.
func TicketNumber(day time.Time, total int64) string {
	return fmt.Sprintf("TKT-%04d%02d%02d-%04d", day.Year(), int(day.Month()), day.Day(), total+1)
}

// ===== DTOs =====

type CreateInput struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"required,max=10000"`
	Category    string          `json:"category" validate:"required,max=60"`
	Priority    models.Priority `json:"priority" validate:"omitempty,priority"`
	CaseID      *string         `json:"case_id" validate:"omitempty,uuid"`
}

// UpdateInput is a partial update. The opener may reword title and
// description; STAFF, LEGAL and ADMIN triage the rest.
type UpdateInput struct {
	Title        *string              `json:"title" validate:"omitempty,min=1,max=200"`
	Description  *string              `json:"description" validate:"omitempty,min=1,max=10000"`
	Category     *string              `json:"category" validate:"omitempty,min=1,max=60"`
	Status       *models.TicketStatus `json:"status" validate:"omitempty,oneof=OPEN IN_PROGRESS RESOLVED CLOSED"`
	Priority     *models.Priority     `json:"priority" validate:"omitempty,priority"`
	AssignedToID *string              `json:"assigned_to_id" validate:"omitempty,uuid"`
}

func (in UpdateInput) details() bool { return in.Title != nil || in.Description != nil }

func (in UpdateInput) triage() bool {
	return in.Category != nil || in.Status != nil || in.Priority != nil || in.AssignedToID != nil
}

type ListFilter struct {
	Status models.TicketStatus `query:"status" validate:"omitempty,oneof=OPEN IN_PROGRESS RESOLVED CLOSED"`
}

/* ============================== Service ================================= */

type Service struct {
	db       *gorm.DB
	logger   *zap.Logger
	loc      *time.Location
	attempts int
	now      func() time.Time
}

func NewService(db *gorm.DB, logger *zap.Logger, loc *time.Location) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{db: db, logger: logger, loc: loc, attempts: database.DefaultAttempts, now: time.Now}
}

func withCase(db *gorm.DB) *gorm.DB {
	return db.Preload("Case", func(db *gorm.DB) *gorm.DB { return db.Select("id", "case_number", "title") }).
		Preload("AssignedTo", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "email", "role") })
}

var openTicket = []models.TicketStatus{models.TicketOpen, models.TicketInProgress}

// ticketLoads snapshots active STAFF with their count of unresolved tickets,
// oldest account first.
func ticketLoads(ctx context.Context, db *gorm.DB) ([]cases.StaffLoad, error) {
	var loads []cases.StaffLoad
	err := db.WithContext(ctx).
		Table("users").
		Select(`users.id AS staff_id, users.name, users.email, users.role,
			COUNT(tickets.id) AS open_cases`).
		Joins("LEFT JOIN tickets ON tickets.assigned_to_id = users.id AND tickets.status IN ?", openTicket).
		Where("users.role = ? AND users.status = ?", models.RoleStaff, models.UserActive).
		Group("users.id").
		Order("users.created_at ASC, users.id ASC").
		Scan(&loads).Error
	return loads, err
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var t models.Ticket
	if err := s.db.WithContext(ctx).Scopes(withCase).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("ticket")
		}
		return nil, err
	}
	return &t, nil
}

// Create opens a ticket for any signed-in user. A linked case must exist and
// be readable by the caller.
func (s *Service) Create(ctx context.Context, a policy.Actor, in CreateInput) (*models.Ticket, error) {
	if err := policy.Authorize(policy.Ticket, policy.Create, a, policy.Owner{}); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if err := validation.Check(in); err != nil {
		return nil, err
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}

	var caseID *uuid.UUID
	if in.CaseID != nil && *in.CaseID != "" {
		id := uuid.MustParse(*in.CaseID)
		if _, err := cases.Authorized(ctx, s.db, a, policy.Read, id); err != nil {
			return nil, err
		}
		caseID = &id
	}

	// Unresolved load decides the assignee; no active STAFF leaves it unassigned.
	loads, err := ticketLoads(ctx, s.db)
	if err != nil {
		return nil, apperr.Wrap(err, "load staff ticket counts")
	}
	var assignee *uuid.UUID
	if pick, ok := cases.PickLeastLoaded(loads); ok {
		assignee = &pick.StaffID
	}

	var t models.Ticket
	err = database.WithUniqueRetry(ctx, s.db, s.attempts, func(tx *gorm.DB) error {
		var total int64
		if err := tx.Model(&models.Ticket{}).Count(&total).Error; err != nil {
			return err
		}
		t = models.Ticket{
			TicketNumber: TicketNumber(s.now().In(s.loc), total),
			Title:        in.Title,
			Description:  in.Description,
			Category:     in.Category,
			Priority:     in.Priority,
			Status:       models.TicketOpen,
			CaseID:       caseID,
			AssignedToID: assignee,
			CreatedByID:  a.ID,
		}
		return tx.Create(&t).Error
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.String("ticket_number", t.TicketNumber), zap.String("by", a.ID.String())}
	if assignee != nil {
		fields = append(fields, zap.String("assigned_to", assignee.String()))
	}
	s.logger.Info("ticket created", fields...)
	return s.load(ctx, t.ID)
}

// Get returns one ticket. Clients only see tickets they opened.
func (s *Service) Get(ctx context.Context, a policy.Actor, id uuid.UUID) (*models.Ticket, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.Ticket, policy.Read, a, policy.TicketOwner(t)); err != nil {
		return nil, err
	}
	return t, nil
}

// Update applies a partial update. Title and description belong to the
// opener; category, status, priority and assignee belong to STAFF, LEGAL
// and ADMIN. Moving to RESOLVED stamps resolved_at.
func (s *Service) Update(ctx context.Context, a policy.Actor, id uuid.UUID, in UpdateInput) (*models.Ticket, error) {
	trim := func(p *string) {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
	trim(in.Title)
	trim(in.Description)
	trim(in.Category)
	if err := validation.Check(in); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Ticket
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("ticket")
			}
			return err
		}
		owner := policy.TicketOwner(&t)
		if err := policy.Authorize(policy.Ticket, policy.Read, a, owner); err != nil {
			return err
		}
		if in.details() {
			if err := policy.Authorize(policy.Ticket, policy.EditDetails, a, owner); err != nil {
				return err
			}
		}
		if in.triage() {
			if err := policy.Authorize(policy.Ticket, policy.Triage, a, owner); err != nil {
				return err
			}
		}

		now := s.now()
		updates := map[string]any{"updated_at": now}
		if in.Title != nil {
			updates["title"] = *in.Title
		}
		if in.Description != nil {
			updates["description"] = *in.Description
		}
		if in.Category != nil {
			updates["category"] = *in.Category
		}
		if in.Priority != nil {
			updates["priority"] = *in.Priority
		}
		if in.Status != nil {
			updates["status"] = *in.Status
			if *in.Status == models.TicketResolved && t.Status != models.TicketResolved {
				updates["resolved_at"] = now
			}
		}
		if in.AssignedToID != nil {
			var staff models.User
			err := tx.Where("id = ? AND role IN ?", *in.AssignedToID, []models.Role{models.RoleStaff, models.RoleLegal}).
				First(&staff).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.BadRequest, "assignee must be an existing STAFF or LEGAL user")
			}
			if err != nil {
				return err
			}
			updates["assigned_to_id"] = staff.ID
		}
		return tx.Model(&t).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket updated", zap.String("ticket_id", id.String()), zap.String("by", a.ID.String()))
	return s.load(ctx, id)
}

// List pages tickets newest first. Clients get the tickets they opened.
func (s *Service) List(ctx context.Context, a policy.Actor, f ListFilter, p utils.Page) (utils.PageResult[models.Ticket], error) {
	if err := policy.Authorize(policy.Ticket, policy.List, a, policy.Owner{}); err != nil {
		return utils.PageResult[models.Ticket]{}, err
	}
	if err := validation.Check(f); err != nil {
		return utils.PageResult[models.Ticket]{}, err
	}

	q := s.db.WithContext(ctx).Model(&models.Ticket{}).Scopes(policy.Tickets(a))
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.PageResult[models.Ticket]{}, err
	}
	var rows []models.Ticket
	if err := q.Scopes(withCase).Order("created_at DESC").Offset(p.Offset).Limit(p.Limit).Find(&rows).Error; err != nil {
		return utils.PageResult[models.Ticket]{}, err
	}
	return utils.Result(rows, total, p), nil
}

// Queue lists tickets assigned to the caller plus unassigned ones.
func (s *Service) Queue(ctx context.Context, a policy.Actor) ([]models.Ticket, error) {
	if err := policy.Authorize(policy.Ticket, policy.Queue, a, policy.Owner{}); err != nil {
		return nil, err
	}
	rows := []models.Ticket{}
	err := s.db.WithContext(ctx).Scopes(withCase).
		Where("(assigned_to_id = ? OR assigned_to_id IS NULL)", a.ID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Wrap(err, "load ticket queue")
	}
	return rows, nil
}
