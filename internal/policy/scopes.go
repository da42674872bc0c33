package policy

import (
	"gorm.io/gorm"

	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
)

// LegalStatuses are the litigation-stage statuses LEGAL users work from.
var LegalStatuses = []models.CaseStatus{models.CaseLegalAction, models.CaseNegotiation}

// Scope narrows a list query so rows the actor may not see never appear.
type Scope func(*gorm.DB) *gorm.DB

func none() Scope { return func(db *gorm.DB) *gorm.DB { return db } }

func deny() Scope { return func(db *gorm.DB) *gorm.DB { return db.Where("1 = 0") } }

// Cases narrows queries on the cases table.
func Cases(a Actor) Scope {
	switch a.Role {
	case models.RoleClient:
		return func(db *gorm.DB) *gorm.DB { return db.Where("cases.client_id = ?", a.ID) }
	case models.RoleStaff:
		return func(db *gorm.DB) *gorm.DB { return db.Where("cases.assigned_to_id = ?", a.ID) }
	case models.RoleLegal:
		return func(db *gorm.DB) *gorm.DB { return db.Where("cases.status IN ?", LegalStatuses) }
	case models.RoleAdmin:
		return none()
	}
	return deny()
}

// CaseStats narrows case statistics: STAFF see only their own load.
func CaseStats(a Actor) Scope {
	if a.Role == models.RoleStaff {
		return func(db *gorm.DB) *gorm.DB { return db.Where("cases.assigned_to_id = ?", a.ID) }
	}
	return none()
}

// Documents narrows queries on the documents table for CLIENT callers.
func Documents(a Actor) Scope {
	if a.Role == models.RoleClient {
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("(documents.is_public = ? OR documents.uploaded_by_id = ?)", true, a.ID)
		}
	}
	return none()
}

// Messages narrows queries on the messages table for CLIENT callers.
func Messages(a Actor) Scope {
	if a.Role == models.RoleClient {
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("(messages.sender_id = ? OR messages.receiver_id = ?)", a.ID, a.ID)
		}
	}
	return none()
}

// ClientOwned narrows invoices and payments (tables with client_id).
func ClientOwned(table string, a Actor) Scope {
	if a.Role == models.RoleClient {
		return func(db *gorm.DB) *gorm.DB { return db.Where(table+".client_id = ?", a.ID) }
	}
	return none()
}

// Tickets narrows ticket lists: CLIENT callers see the tickets they opened.
func Tickets(a Actor) Scope {
	switch a.Role {
	case models.RoleClient:
		return func(db *gorm.DB) *gorm.DB { return db.Where("tickets.created_by_id = ?", a.ID) }
	case models.RoleStaff, models.RoleLegal, models.RoleAdmin:
		return none()
	}
	return deny()
}
