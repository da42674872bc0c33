package users

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aldoetobex/debt-recovery-backend/internal/auth"
	"github.com/aldoetobex/debt-recovery-backend/internal/cache"
	"github.com/aldoetobex/debt-recovery-backend/internal/cases"
	"github.com/aldoetobex/debt-recovery-backend/internal/policy"
	"github.com/aldoetobex/debt-recovery-backend/pkg/apperr"
	"github.com/aldoetobex/debt-recovery-backend/pkg/database"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
	"github.com/aldoetobex/debt-recovery-backend/pkg/utils"
	"github.com/aldoetobex/debt-recovery-backend/pkg/validation"
)

const (
	statsKey   = "user-stats"
	recentSize = 5
)

// ===== DTOs =====

type Counts struct {
	CasesAsClient     int64 `json:"cases_as_client"`
	CasesAsAssigned   int64 `json:"cases_as_assigned"`
	SentMessages      int64 `json:"sent_messages,omitempty"`
	UploadedDocuments int64 `json:"uploaded_documents,omitempty"`
}

// Profile is a user with their case counts.
type Profile struct {
	models.User
	Counts Counts `json:"_count"`
}

type CaseSummary struct {
	ID         uuid.UUID         `json:"id"`
	CaseNumber string            `json:"case_number"`
	Title      string            `json:"title"`
	Status     models.CaseStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Detail is the admin view of one user.
type Detail struct {
	Profile
	CasesAsClient   []CaseSummary `json:"cases_as_client"`
	CasesAsAssigned []CaseSummary `json:"cases_as_assigned"`
}

type ProfileInput struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=80"`
	Company       *string `json:"company" validate:"omitempty,max=120"`
	Phone         *string `json:"phone" validate:"omitempty,max=30"`
	Address       *string `json:"address" validate:"omitempty,max=300"`
	PostalAddress *string `json:"postal_address" validate:"omitempty,max=300"`
}

type CreateInput struct {
	Email         string      `json:"email" validate:"required,email,max=120"`
	Name          string      `json:"name" validate:"required,min=1,max=80"`
	Password      string      `json:"password" validate:"required,min=8,max=72"`
	Role          models.Role `json:"role" validate:"required,role"`
	Company       *string     `json:"company" validate:"omitempty,max=120"`
	Phone         *string     `json:"phone" validate:"omitempty,max=30"`
	Address       *string     `json:"address" validate:"omitempty,max=300"`
	PostalAddress *string     `json:"postal_address" validate:"omitempty,max=300"`
}

type ListFilter struct {
	Role   models.Role `query:"role" validate:"omitempty,role"`
	Search string      `query:"search" validate:"max=120"`
}

type RoleCount struct {
	Role  models.Role `json:"role"`
	Count int64       `json:"count"`
}

type Stats struct {
	Total  int64            `json:"total"`
	ByRole []RoleCount      `json:"by_role"`
	Recent []models.UserRef `json:"recent"`
}

/* ============================== Service ================================= */

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
	cache  *cache.Cache
}

func NewService(db *gorm.DB, logger *zap.Logger, c *cache.Cache) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger, cache: c}
}

func (s *Service) find(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("user")
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) caseCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Counts, error) {
	type row struct {
		UserID uuid.UUID
		N      int64
	}
	out := make(map[uuid.UUID]Counts, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var asClient, asAssigned []row
	if err := s.db.WithContext(ctx).Model(&models.Case{}).
		Select("client_id AS user_id, COUNT(*) AS n").
		Where("client_id IN ?", ids).Group("client_id").
		Scan(&asClient).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Case{}).
		Select("assigned_to_id AS user_id, COUNT(*) AS n").
		Where("assigned_to_id IN ?", ids).Group("assigned_to_id").
		Scan(&asAssigned).Error; err != nil {
		return nil, err
	}
	for _, r := range asClient {
		c := out[r.UserID]
		c.CasesAsClient = r.N
		out[r.UserID] = c
	}
	for _, r := range asAssigned {
		c := out[r.UserID]
		c.CasesAsAssigned = r.N
		out[r.UserID] = c
	}
	return out, nil
}

func (s *Service) profile(ctx context.Context, u *models.User) (*Profile, error) {
	counts, err := s.caseCounts(ctx, []uuid.UUID{u.ID})
	if err != nil {
		return nil, err
	}
	return &Profile{User: *u, Counts: counts[u.ID]}, nil
}

/* ================================ Self ================================== */

// Profile returns the caller's own account.
func (s *Service) Profile(ctx context.Context, a policy.Actor) (*Profile, error) {
	u, err := s.find(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, u)
}

// UpdateProfile changes the caller's contact details. Role and status are
// not editable here.
func (s *Service) UpdateProfile(ctx context.Context, a policy.Actor, in ProfileInput) (*Profile, error) {
	if err := validation.Check(in); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Field("name", "This field is required")
		}
		updates["name"] = name
	}
	for col, v := range map[string]*string{
		"company":        in.Company,
		"phone":          in.Phone,
		"address":        in.Address,
		"postal_address": in.PostalAddress,
	} {
		if v != nil {
			updates[col] = strings.TrimSpace(*v)
		}
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", a.ID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.Profile(ctx, a)
}

/* ================================ Admin ================================= */

// List pages users, newest first, filtered by role and a search over name,
// email and company.
func (s *Service) List(ctx context.Context, a policy.Actor, f ListFilter, p utils.Page) (utils.PageResult[Profile], error) {
	if err := policy.Authorize(policy.User, policy.List, a, policy.Owner{}); err != nil {
		return utils.PageResult[Profile]{}, err
	}
	if err := validation.Check(f); err != nil {
		return utils.PageResult[Profile]{}, err
	}

	q := s.db.WithContext(ctx).Model(&models.User{})
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + term + "%"
		q = q.Where("(name ILIKE ? OR email ILIKE ? OR company ILIKE ?)", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.PageResult[Profile]{}, err
	}
	var rows []models.User
	if err := q.Order("created_at DESC").Offset(p.Offset).Limit(p.Limit).Find(&rows).Error; err != nil {
		return utils.PageResult[Profile]{}, err
	}

	ids := make([]uuid.UUID, len(rows))
	for i, u := range rows {
		ids[i] = u.ID
	}
	counts, err := s.caseCounts(ctx, ids)
	if err != nil {
		return utils.PageResult[Profile]{}, err
	}
	items := make([]Profile, len(rows))
	for i, u := range rows {
		items[i] = Profile{User: u, Counts: counts[u.ID]}
	}
	return utils.Result(items, total, p), nil
}

func recentCases(db *gorm.DB, column string, id uuid.UUID) ([]CaseSummary, error) {
	out := []CaseSummary{}
	err := db.Model(&models.Case{}).
		Select("id, case_number, title, status, created_at").
		Where(column+" = ?", id).
		Order("created_at DESC").Limit(recentSize).
		Scan(&out).Error
	return out, err
}

// Get returns one user with recent cases and activity counts.
func (s *Service) Get(ctx context.Context, a policy.Actor, id uuid.UUID) (*Detail, error) {
	if err := policy.Authorize(policy.User, policy.Manage, a, policy.Owner{}); err != nil {
		return nil, err
	}
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.profile(ctx, u)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Message{}).Where("sender_id = ?", id).Count(&p.Counts.SentMessages).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Document{}).Where("uploaded_by_id = ?", id).Count(&p.Counts.UploadedDocuments).Error; err != nil {
		return nil, err
	}

	out := &Detail{Profile: *p}
	if out.CasesAsClient, err = recentCases(db, "client_id", id); err != nil {
		return nil, err
	}
	if out.CasesAsAssigned, err = recentCases(db, "assigned_to_id", id); err != nil {
		return nil, err
	}
	return out, nil
}

// Create adds an account of any role.
func (s *Service) Create(ctx context.Context, a policy.Actor, in CreateInput) (*models.User, error) {
	if err := policy.Authorize(policy.User, policy.Manage, a, policy.Owner{}); err != nil {
		return nil, err
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Check(in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Wrap(err, "hash password")
	}
	u := models.User{
		Email:         in.Email,
		PasswordHash:  hash,
		Name:          in.Name,
		Role:          in.Role,
		Company:       in.Company,
		Phone:         in.Phone,
		Address:       in.Address,
		PostalAddress: in.PostalAddress,
		Status:        models.UserActive,
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.New(apperr.Conflict, "User with this email already exists")
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, statsKey)
	s.logger.Info("user created", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))
	return &u, nil
}

// UpdateRole changes a user's role.
func (s *Service) UpdateRole(ctx context.Context, a policy.Actor, id uuid.UUID, role models.Role) (*models.User, error) {
	if err := policy.Authorize(policy.User, policy.Manage, a, policy.Owner{}); err != nil {
		return nil, err
	}
	if !slices.Contains(models.Roles, role) {
		return nil, apperr.Field("role", "Invalid role")
	}
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(u).Update("role", role).Error; err != nil {
		return nil, err
	}
	u.Role = role
	s.cache.Invalidate(ctx, statsKey)
	s.logger.Info("user role changed",
		zap.String("user_id", u.ID.String()),
		zap.String("role", string(role)),
		zap.String("by", a.ID.String()))
	return u, nil
}

// UpdateStatus suspends or reactivates an account. Admins cannot suspend
// themselves.
func (s *Service) UpdateStatus(ctx context.Context, a policy.Actor, id uuid.UUID, status models.UserStatus) (*models.User, error) {
	if err := policy.Authorize(policy.User, policy.Manage, a, policy.Owner{}); err != nil {
		return nil, err
	}
	if status != models.UserActive && status != models.UserSuspended {
		return nil, apperr.Field("status", "Invalid status")
	}
	if id == a.ID && status == models.UserSuspended {
		return nil, apperr.New(apperr.BadRequest, "you cannot suspend your own account")
	}
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(u).Update("status", status).Error; err != nil {
		return nil, err
	}
	u.Status = status
	return u, nil
}

// StaffRoster lists active STAFF and LEGAL users with their open case load,
// by name.
func (s *Service) StaffRoster(ctx context.Context, a policy.Actor) ([]cases.StaffLoad, error) {
	if err := policy.Authorize(policy.User, policy.List, a, policy.Owner{}); err != nil {
		return nil, err
	}
	loads, err := cases.StaffLoads(ctx, s.db, models.RoleStaff, models.RoleLegal)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(loads, func(x, y cases.StaffLoad) int {
		return strings.Compare(strings.ToLower(x.Name), strings.ToLower(y.Name))
	})
	if loads == nil {
		loads = []cases.StaffLoad{}
	}
	return loads, nil
}

// Stats counts users by role and lists the newest accounts.
func (s *Service) Stats(ctx context.Context, a policy.Actor) (*Stats, error) {
	if err := policy.Authorize(policy.User, policy.Stats, a, policy.Owner{}); err != nil {
		return nil, err
	}
	return cache.Remember(ctx, s.cache, statsKey, func() (*Stats, error) {
		out := &Stats{ByRole: []RoleCount{}, Recent: []models.UserRef{}}
		db := s.db.WithContext(ctx)

		if err := db.Model(&models.User{}).
			Select("role, COUNT(*) AS count").Group("role").Order("role").
			Scan(&out.ByRole).Error; err != nil {
			return nil, err
		}
		for _, r := range out.ByRole {
			out.Total += r.Count
		}

		var recent []models.User
		if err := db.Order("created_at DESC").Limit(recentSize).Find(&recent).Error; err != nil {
			return nil, err
		}
		for _, u := range recent {
			out.Recent = append(out.Recent, models.UserRef{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
		}
		return out, nil
	})
}
