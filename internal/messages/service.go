package messages

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/debt-recovery-backend/internal/cases"
	"github.com/aldoetobex/debt-recovery-backend/internal/policy"
	"github.com/aldoetobex/debt-recovery-backend/pkg/apperr"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
	"github.com/aldoetobex/debt-recovery-backend/pkg/utils"
	"github.com/aldoetobex/debt-recovery-backend/pkg/validation"
)

// inboxSize is how many recent messages a client's inbox shows.
const inboxSize = 20

// ===== DTOs =====

type SendInput struct {
	ReceiverID string             `json:"receiver_id" validate:"required,uuid"`
	Subject    *string            `json:"subject" validate:"omitempty,max=200"`
	Content    string             `json:"content" validate:"required,max=10000"`
	Type       models.MessageType `json:"type" validate:"omitempty,msgtype"`
}

type UnreadCount struct {
	UnreadCount int64 `json:"unread_count"`
}

/* ============================== Service ================================= */

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service { return &Service{db: db, now: time.Now} }

// parties preloads sender and receiver with the public fields only.
func parties(db *gorm.DB) *gorm.DB {
	pick := func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "email", "role") }
	return db.Preload("Sender", pick).Preload("Receiver", pick)
}

func (s *Service) reload(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var m models.Message
	if err := s.db.WithContext(ctx).Scopes(parties).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// Send posts a message on a case the actor can work on.
func (s *Service) Send(ctx context.Context, a policy.Actor, caseID uuid.UUID, in SendInput) (*models.Message, error) {
	if err := validation.Check(in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperr.Field("content", "This field is required")
	}
	if in.Type == "" {
		in.Type = models.MessageClientCommunication
	}

	cs, err := cases.Find(ctx, s.db, caseID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.Message, policy.Send, a, policy.CaseOwner(cs)); err != nil {
		return nil, err
	}

	var receiver models.User
	if err := s.db.WithContext(ctx).First(&receiver, "id = ?", in.ReceiverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("receiver")
		}
		return nil, err
	}

	msg := models.Message{
		CaseID:     cs.ID,
		SenderID:   a.ID,
		ReceiverID: receiver.ID,
		Subject:    in.Subject,
		Content:    in.Content,
		Type:       in.Type,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return utils.AppendTimeline(ctx, tx, cs.ID, &a.ID, models.EventMessageSent,
			"Message Sent", "Message sent to "+receiver.Name)
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, msg.ID)
}

// MarkAsRead flags a message read for its receiver and stamps readAt with
// the time of this call, including on a message that is already read.
func (s *Service) MarkAsRead(ctx context.Context, a policy.Actor, id uuid.UUID) (*models.Message, error) {
	var m models.Message
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("message")
		}
		return nil, err
	}
	if err := policy.Authorize(policy.Message, policy.MarkRead, a, policy.Owner{ReceiverID: m.ReceiverID}); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{"is_read": true, "read_at": s.now()}).Error; err != nil {
		return nil, err
	}
	return s.reload(ctx, m.ID)
}

// ListByCase pages through a case's messages, newest first.
func (s *Service) ListByCase(ctx context.Context, a policy.Actor, caseID uuid.UUID, p utils.Page) (utils.PageResult[models.Message], error) {
	if _, err := cases.Authorized(ctx, s.db, a, policy.Read, caseID); err != nil {
		return utils.PageResult[models.Message]{}, err
	}

	q := s.db.WithContext(ctx).Model(&models.Message{}).
		Scopes(policy.Messages(a)).
		Where("messages.case_id = ?", caseID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.PageResult[models.Message]{}, err
	}
	var rows []models.Message
	if err := q.Scopes(parties).
		Order("messages.created_at DESC").
		Offset(p.Offset).Limit(p.Limit).
		Find(&rows).Error; err != nil {
		return utils.PageResult[models.Message]{}, err
	}
	return utils.Result(rows, total, p), nil
}

// Conversation returns the messages exchanged between the actor and other
// on one case, in either direction.
func (s *Service) Conversation(ctx context.Context, a policy.Actor, caseID, other uuid.UUID, p utils.Page) ([]models.Message, error) {
	if _, err := cases.Authorized(ctx, s.db, a, policy.Read, caseID); err != nil {
		return nil, err
	}

	rows := []models.Message{}
	err := s.db.WithContext(ctx).
		Scopes(parties).
		Where("case_id = ?", caseID).
		Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))", a.ID, other, other, a.ID).
		Order("created_at DESC").
		Offset(p.Offset).Limit(p.Limit).
		Find(&rows).Error
	return rows, err
}

// Get returns one message when the actor may read it.
func (s *Service) Get(ctx context.Context, a policy.Actor, id uuid.UUID) (*models.Message, error) {
	var m models.Message
	if err := s.db.WithContext(ctx).Scopes(parties).Preload("Case").First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("message")
		}
		return nil, err
	}
	if m.Case == nil {
		return nil, apperr.NotFoundf("case")
	}
	if err := policy.Authorize(policy.Message, policy.Read, a, policy.MessageOwner(&m, m.Case)); err != nil {
		return nil, err
	}
	return &m, nil
}

// UnreadCount counts unread messages addressed to the actor.
func (s *Service) UnreadCount(ctx context.Context, a policy.Actor) (UnreadCount, error) {
	var out UnreadCount
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = ?", a.ID, false).
		Count(&out.UnreadCount).Error
	return out, err
}

// ClientInbox lists the client's most recent messages across all cases.
func (s *Service) ClientInbox(ctx context.Context, a policy.Actor) ([]models.Message, error) {
	if err := policy.Authorize(policy.Message, policy.List, a, policy.Owner{}); err != nil {
		return nil, err
	}
	rows := []models.Message{}
	err := s.db.WithContext(ctx).
		Scopes(parties, policy.Messages(a)).
		Preload("Case", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "case_number", "title", "status")
		}).
		Order("messages.created_at DESC").
		Limit(inboxSize).
		Find(&rows).Error
	return rows, err
}
