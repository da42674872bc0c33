// Package policy is the single authorization gate. Every rule lives in one
// table keyed by (resource, action, role); handlers never branch on roles.
package policy

import (
	"github.com/google/uuid"

	"github.com/aldoetobex/debt-recovery-backend/pkg/apperr"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
)

// Actor is the authenticated caller.
type Actor struct {
	ID   uuid.UUID
	Role models.Role
}

func (a Actor) Is(roles ...models.Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

type Resource string

const (
	Case         Resource = "case"
	Document     Resource = "document"
	Message      Resource = "message"
	Invoice      Resource = "invoice"
	Payment      Resource = "payment"
	Ticket       Resource = "ticket"
	User         Resource = "user"
	WebhookEvent Resource = "webhook_event"
)

type Action string

const (
	Read             Action = "read"
	Write            Action = "write"
	Create           Action = "create"
	List             Action = "list"
	UpdateStatus     Action = "update_status"
	Assign           Action = "assign"
	Stats            Action = "stats"
	Delete           Action = "delete"
	DeleteFromCase   Action = "delete_from_case"
	UpdateVisibility Action = "update_visibility"
	Send             Action = "send"
	MarkRead         Action = "mark_read"
	Pay              Action = "pay"
	Manage           Action = "manage"
	Replay           Action = "replay"
	ListLegal        Action = "list_legal"
	Queue            Action = "queue"
	EditDetails      Action = "edit_details"
	Triage           Action = "triage"
)

// Owner carries the ownership fields a rule may look at. Only the fields
// relevant to the resource need to be set.
type Owner struct {
	// case
	ClientID     uuid.UUID
	AssignedToID *uuid.UUID

	// document
	UploadedByID uuid.UUID
	IsPublic     bool
	Folder       models.DocumentFolder

	// message
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	// ticket
	CreatedByID uuid.UUID
}

// Predicate decides one (resource, action, role) cell.
type Predicate func(a Actor, o Owner) bool

type key struct {
	res  Resource
	act  Action
	role models.Role
}

/* ============================= Predicates ============================== */

func always(Actor, Owner) bool { return true }

func ownsCase(a Actor, o Owner) bool { return o.ClientID == a.ID }

func assignedToCase(a Actor, o Owner) bool {
	return o.AssignedToID != nil && *o.AssignedToID == a.ID
}

func uploadedDoc(a Actor, o Owner) bool { return o.UploadedByID == a.ID }

func isReceiver(a Actor, o Owner) bool { return o.ReceiverID == a.ID }

func openedTicket(a Actor, o Owner) bool { return o.CreatedByID == a.ID }

func all(ps ...Predicate) Predicate {
	return func(a Actor, o Owner) bool {
		for _, p := range ps {
			if !p(a, o) {
				return false
			}
		}
		return true
	}
}

func anyOf(ps ...Predicate) Predicate {
	return func(a Actor, o Owner) bool {
		for _, p := range ps {
			if p(a, o) {
				return true
			}
		}
		return false
	}
}

func visibleToClient(_ Actor, o Owner) bool { return o.IsPublic }

func clientFolder(_ Actor, o Owner) bool { return o.Folder == models.FolderClientUploads }

/* =============================== Table ================================= */

// rules is the whole access matrix. A missing cell denies.
var rules = map[key]Predicate{}

func allow(res Resource, act Action, p Predicate, roles ...models.Role) {
	for _, r := range roles {
		rules[key{res, act, r}] = p
	}
}

var (
	client = models.RoleClient
	staff  = models.RoleStaff
	legal  = models.RoleLegal
	admin  = models.RoleAdmin
)

func init() {
	// Cases
	for _, act := range []Action{Read, Write} {
		allow(Case, act, ownsCase, client)
		allow(Case, act, assignedToCase, staff)
		allow(Case, act, always, legal, admin)
	}
	allow(Case, Create, always, client)
	allow(Case, UpdateStatus, assignedToCase, staff)
	allow(Case, UpdateStatus, always, legal, admin)
	allow(Case, Assign, always, admin)
	allow(Case, Stats, always, staff, legal, admin)

	// Documents (owner carries both case and document fields)
	allow(Document, Read, all(ownsCase, anyOf(visibleToClient, uploadedDoc)), client)
	allow(Document, Read, assignedToCase, staff)
	allow(Document, Read, always, legal, admin)

	allow(Document, Create, all(ownsCase, clientFolder), client)
	allow(Document, Create, assignedToCase, staff)
	allow(Document, Create, always, legal, admin)

	allow(Document, Delete, uploadedDoc, client, staff)
	allow(Document, Delete, always, legal, admin)

	// The case-scoped delete path: staff only when assigned, uploaders always.
	allow(Document, DeleteFromCase, uploadedDoc, client)
	allow(Document, DeleteFromCase, anyOf(uploadedDoc, assignedToCase), staff)
	allow(Document, DeleteFromCase, always, legal, admin)

	allow(Document, UpdateVisibility, assignedToCase, staff)
	allow(Document, UpdateVisibility, always, legal, admin)
	allow(Document, List, always, client)
	allow(Document, ListLegal, always, legal, admin)

	// Messages (owner carries case fields plus sender/receiver)
	allow(Message, Send, ownsCase, client)
	allow(Message, Send, assignedToCase, staff)
	allow(Message, Send, always, legal, admin)
	allow(Message, Read, all(ownsCase, func(a Actor, o Owner) bool {
		return o.SenderID == a.ID || o.ReceiverID == a.ID
	}), client)
	allow(Message, Read, assignedToCase, staff)
	allow(Message, Read, always, legal, admin)
	allow(Message, MarkRead, isReceiver, client, staff, legal, admin)
	allow(Message, List, always, client)

	// Billing
	allow(Invoice, Create, always, staff, admin)
	allow(Invoice, Read, ownsCase, client)
	allow(Invoice, Read, always, staff, legal, admin)
	allow(Invoice, Pay, ownsCase, client)
	allow(Payment, Read, ownsCase, client)
	allow(Payment, Read, always, staff, legal, admin)
	allow(WebhookEvent, List, always, admin)
	allow(WebhookEvent, Replay, always, admin)

	// Tickets
	// Clients only ever touch tickets they opened, and only the wording.
	allow(Ticket, Create, always, client, staff, legal, admin)
	allow(Ticket, List, always, client, staff, legal, admin)
	allow(Ticket, Read, openedTicket, client)
	allow(Ticket, Read, always, staff, legal, admin)
	allow(Ticket, EditDetails, openedTicket, client)
	allow(Ticket, Triage, always, staff, legal, admin)
	allow(Ticket, Queue, always, staff, legal, admin)

	// Users
	allow(User, Manage, always, admin)
	allow(User, Stats, always, admin)
	allow(User, List, always, admin)
}

/* ================================ Gate ================================= */

// Allowed evaluates one cell of the table.
func Allowed(res Resource, act Action, a Actor, o Owner) bool {
	p, ok := rules[key{res, act, a.Role}]
	return ok && p(a, o)
}

// Authorize returns FORBIDDEN when the table denies.
func Authorize(res Resource, act Action, a Actor, o Owner) error {
	if Allowed(res, act, a, o) {
		return nil
	}
	return apperr.ForbiddenErr("")
}

/* =========================== Owner builders ============================ */

func TicketOwner(t *models.Ticket) Owner { return Owner{CreatedByID: t.CreatedByID} }

func CaseOwner(c *models.Case) Owner {
	return Owner{ClientID: c.ClientID, AssignedToID: c.AssignedToID}
}

// DocumentOwner merges the document's fields with its case.
func DocumentOwner(d *models.Document, c *models.Case) Owner {
	o := CaseOwner(c)
	o.UploadedByID = d.UploadedByID
	o.IsPublic = d.IsPublic
	o.Folder = d.Folder
	return o
}

// MessageOwner merges the message's fields with its case.
func MessageOwner(m *models.Message, c *models.Case) Owner {
	o := CaseOwner(c)
	o.SenderID = m.SenderID
	o.ReceiverID = m.ReceiverID
	return o
}
