package utils

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
)

// AppendTimeline inserts one audit entry into case_timeline.
// Callers pass the transaction that carries the mutation so the entry and the
// change commit together.
func AppendTimeline(
	ctx context.Context,
	db *gorm.DB,
	caseID uuid.UUID,
	actorID *uuid.UUID,
	eventType models.TimelineEventType,
	event, description string,
) error {
	return db.WithContext(ctx).Create(&models.CaseTimeline{
		CaseID:      caseID,
		Event:       event,
		Description: description,
		EventType:   eventType,
		CreatedByID: actorID,
	}).Error
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// Deref returns *p or the zero value.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
