package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

/* =============================== Enums ================================== */

// Role defines the type of user in the system.
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleStaff  Role = "STAFF"
	RoleLegal  Role = "LEGAL"
	RoleAdmin  Role = "ADMIN"
)

// Roles lists every role in display order.
var Roles = []Role{RoleClient, RoleStaff, RoleLegal, RoleAdmin}

// UserStatus marks whether an account may sign in.
type UserStatus string

const (
	UserActive    UserStatus = "ACTIVE"
	UserSuspended UserStatus = "SUSPENDED"
)

// CaseStatus defines lifecycle states for a recovery case.
type CaseStatus string

const (
	CaseReceived       CaseStatus = "RECEIVED"
	CaseUnderReview    CaseStatus = "UNDER_REVIEW"
	CaseInvestigation  CaseStatus = "INVESTIGATION"
	CaseActiveRecovery CaseStatus = "ACTIVE_RECOVERY"
	CaseNegotiation    CaseStatus = "NEGOTIATION"
	CaseLegalAction    CaseStatus = "LEGAL_ACTION"
	CaseResolved       CaseStatus = "RESOLVED"
	CaseClosed         CaseStatus = "CLOSED"
)

var CaseStatuses = []CaseStatus{
	CaseReceived, CaseUnderReview, CaseInvestigation, CaseActiveRecovery,
	CaseNegotiation, CaseLegalAction, CaseResolved, CaseClosed,
}

// Priority is shared by cases and tickets.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// DocumentFolder is the coarse category a document is filed under.
type DocumentFolder string

const (
	FolderClientUploads     DocumentFolder = "CLIENT_UPLOADS"
	FolderInternalDocuments DocumentFolder = "INTERNAL_DOCUMENTS"
	FolderLegalDocuments    DocumentFolder = "LEGAL_DOCUMENTS"
	FolderEvidenceFiles     DocumentFolder = "EVIDENCE_FILES"
	FolderContracts         DocumentFolder = "CONTRACTS"
	FolderInvoices          DocumentFolder = "INVOICES"
	FolderCorrespondence    DocumentFolder = "CORRESPONDENCE"
)

var Folders = []DocumentFolder{
	FolderClientUploads, FolderInternalDocuments, FolderLegalDocuments, FolderEvidenceFiles,
	FolderContracts, FolderInvoices, FolderCorrespondence,
}

// MessageType tags the channel a message belongs to.
type MessageType string

const (
	MessageInternal            MessageType = "INTERNAL"
	MessageClientCommunication MessageType = "CLIENT_COMMUNICATION"
	MessageEmail               MessageType = "EMAIL"
	MessageSMS                 MessageType = "SMS"
	MessageSystem              MessageType = "SYSTEM"
)

var MessageTypes = []MessageType{
	MessageInternal, MessageClientCommunication, MessageEmail, MessageSMS, MessageSystem,
}

// InvoiceStatus defines lifecycle states for an invoice.
type InvoiceStatus string

const (
	InvoiceIssued    InvoiceStatus = "ISSUED"
	InvoicePaid      InvoiceStatus = "PAID"
	InvoiceOverdue   InvoiceStatus = "OVERDUE"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

// PayStatus defines lifecycle states for a payment.
type PayStatus string

const (
	PayPending   PayStatus = "PENDING"
	PayCompleted PayStatus = "COMPLETED"
	PayFailed    PayStatus = "FAILED"
)

// TicketStatus defines lifecycle states for a support ticket.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "OPEN"
	TicketInProgress TicketStatus = "IN_PROGRESS"
	TicketResolved   TicketStatus = "RESOLVED"
	TicketClosed     TicketStatus = "CLOSED"
)

// TimelineEventType classifies case timeline entries.
type TimelineEventType string

const (
	EventCaseCreated       TimelineEventType = "CASE_CREATED"
	EventStatusChange      TimelineEventType = "STATUS_CHANGE"
	EventAssignmentChanged TimelineEventType = "ASSIGNMENT_CHANGED"
	EventDocumentUploaded  TimelineEventType = "DOCUMENT_UPLOADED"
	EventMessageSent       TimelineEventType = "MESSAGE_SENT"
	EventPaymentReceived   TimelineEventType = "PAYMENT_RECEIVED"
	EventPaymentFailed     TimelineEventType = "PAYMENT_FAILED"
)

/* =============================== Entities =============================== */

// User is any account: client, staff, legal counsel or administrator.
type User struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email         string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string     `gorm:"not null;default:''" json:"-"`
	Name          string     `gorm:"not null" json:"name"`
	Role          Role       `gorm:"type:varchar(20);not null;index" json:"role"`
	Company       *string    `json:"company,omitempty"`
	Phone         *string    `json:"phone,omitempty"`
	Address       *string    `json:"address,omitempty"`
	PostalAddress *string    `json:"postal_address,omitempty"`
	Status        UserStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// UserRef is the joined summary of a user embedded in other payloads.
type UserRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Role  Role      `json:"role,omitempty"`
}

// Case is a debt-recovery case filed by a client.
type Case struct {
	ID           uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CaseNumber   string      `gorm:"type:varchar(32);uniqueIndex;not null" json:"case_number"`
	Title        string      `gorm:"not null" json:"title"`
	Description  string      `gorm:"type:text" json:"description"`
	ClientID     uuid.UUID   `gorm:"type:uuid;not null;index" json:"client_id"`
	AssignedToID *uuid.UUID  `gorm:"type:uuid;index" json:"assigned_to_id"`
	Status       CaseStatus  `gorm:"type:varchar(20);not null;default:'RECEIVED';index" json:"status"`
	Priority     Priority    `gorm:"type:varchar(10);not null;default:'MEDIUM'" json:"priority"`

	// Creditor
	CreditorName          string  `gorm:"not null" json:"creditor_name"`
	CreditorRegNumber     *string `json:"creditor_reg_number,omitempty"`
	CreditorContactPerson *string `json:"creditor_contact_person,omitempty"`
	CreditorEmail         string  `gorm:"not null" json:"creditor_email"`
	CreditorPhone         string  `gorm:"not null" json:"creditor_phone"`
	CreditorAddress       string  `gorm:"not null" json:"creditor_address"`
	CreditorPostalAddress *string `json:"creditor_postal_address,omitempty"`

	// Debtor
	DebtorName         string  `gorm:"not null" json:"debtor_name"`
	DebtorRegNumber    *string `json:"debtor_reg_number,omitempty"`
	DebtorAddress      string  `gorm:"not null" json:"debtor_address"`
	DebtorPhone        *string `json:"debtor_phone,omitempty"`
	DebtorEmail        *string `json:"debtor_email,omitempty"`
	DebtorBusinessType *string `json:"debtor_business_type,omitempty"`

	// Debt. TotalAmountDue is fixed when the case is filed.
	PrincipalAmount decimal.Decimal  `gorm:"type:numeric(15,2);not null" json:"principal_amount"`
	Currency        string           `gorm:"type:varchar(3);not null;default:'GHS'" json:"currency"`
	InterestRate    *decimal.Decimal `gorm:"type:numeric(7,4)" json:"interest_rate,omitempty"`
	AccruedInterest decimal.Decimal  `gorm:"type:numeric(15,2);not null;default:0" json:"accrued_interest"`
	TotalAmountDue  decimal.Decimal  `gorm:"type:numeric(15,2);not null" json:"total_amount_due"`
	OriginalDueDate time.Time        `gorm:"not null" json:"original_due_date"`
	PaymentTerms    *string          `json:"payment_terms,omitempty"`
	DebtCategory    string           `gorm:"not null" json:"debt_category"`

	PreferredRecoveryMethod *string `json:"preferred_recovery_method,omitempty"`
	PreviousAttempts        *string `gorm:"type:text" json:"previous_attempts,omitempty"`
	SpecialInstructions     *string `gorm:"type:text" json:"special_instructions,omitempty"`
	PreferredCommunication  *string `json:"preferred_communication,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Client     *User          `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	AssignedTo *User          `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`
	Documents  []Document     `json:"documents,omitempty"`
	Messages   []Message      `json:"messages,omitempty"`
	Timeline   []CaseTimeline `json:"timeline,omitempty"`
}

// Document is metadata for a file stored by the upload service.
type Document struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CaseID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"case_id"`
	UploadedByID uuid.UUID      `gorm:"type:uuid;not null;index" json:"uploaded_by_id"`
	Filename     string         `gorm:"not null" json:"filename"`
	OriginalName string         `gorm:"not null" json:"original_name"`
	URL          string         `gorm:"not null" json:"url"`
	StorageKey   string         `json:"-"`
	Size         int64          `gorm:"not null" json:"size"`
	MimeType     string         `gorm:"not null" json:"mime_type"`
	Folder       DocumentFolder `gorm:"type:varchar(32);not null;index" json:"folder"`
	Description  *string        `json:"description,omitempty"`
	IsPublic     bool           `gorm:"not null;default:false" json:"is_public"`
	CreatedAt    time.Time      `json:"created_at"`

	Case       *Case `gorm:"foreignKey:CaseID" json:"case,omitempty"`
	UploadedBy *User `gorm:"foreignKey:UploadedByID" json:"uploaded_by,omitempty"`
}

// Message is a case-scoped note between two users.
type Message struct {
	ID         uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CaseID     uuid.UUID   `gorm:"type:uuid;not null;index" json:"case_id"`
	SenderID   uuid.UUID   `gorm:"type:uuid;not null;index" json:"sender_id"`
	ReceiverID uuid.UUID   `gorm:"type:uuid;not null;index" json:"receiver_id"`
	Subject    *string     `json:"subject,omitempty"`
	Content    string      `gorm:"type:text;not null" json:"content"`
	Type       MessageType `gorm:"type:varchar(32);not null;default:'CLIENT_COMMUNICATION'" json:"type"`
	IsRead     bool        `gorm:"not null;default:false" json:"is_read"`
	ReadAt     *time.Time  `json:"read_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`

	Sender   *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
	Case     *Case `gorm:"foreignKey:CaseID" json:"case,omitempty"`
}

// Invoice is a bill issued to a client for a case.
type Invoice struct {
	ID            uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	InvoiceNumber string           `gorm:"type:varchar(32);uniqueIndex;not null" json:"invoice_number"`
	ClientID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"client_id"`
	CaseID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"case_id"`
	Amount        decimal.Decimal  `gorm:"type:numeric(15,2);not null" json:"amount"`
	Currency      string           `gorm:"type:varchar(3);not null;default:'GHS'" json:"currency"`
	Description   *string          `json:"description,omitempty"`
	Status        InvoiceStatus    `gorm:"type:varchar(20);not null;default:'ISSUED';index" json:"status"`
	PaidAmount    *decimal.Decimal `gorm:"type:numeric(15,2)" json:"paid_amount,omitempty"`
	DueDate       time.Time        `gorm:"not null" json:"due_date"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`

	Client   *User     `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Case     *Case     `gorm:"foreignKey:CaseID" json:"case,omitempty"`
	Payments []Payment `json:"payments,omitempty"`
}

// Payment mirrors a gateway payment. Only webhook processing moves its status.
type Payment struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	CaseID          *uuid.UUID      `gorm:"type:uuid;index" json:"case_id,omitempty"`
	InvoiceID       *uuid.UUID      `gorm:"type:uuid;index" json:"invoice_id,omitempty"`
	Amount          decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	Currency        string          `gorm:"type:varchar(3);not null;default:'GHS'" json:"currency"`
	Status          PayStatus       `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	StripePaymentID string          `gorm:"uniqueIndex;not null" json:"stripe_payment_id"`
	TransactionID   *string         `json:"transaction_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Client  *User    `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Invoice *Invoice `gorm:"foreignKey:InvoiceID" json:"invoice,omitempty"`
	Case    *Case    `gorm:"foreignKey:CaseID" json:"case,omitempty"`
}

// CaseTimeline is an append-only audit entry for a case.
type CaseTimeline struct {
	ID          uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CaseID      uuid.UUID         `gorm:"type:uuid;not null;index" json:"case_id"`
	Event       string            `gorm:"type:varchar(80);not null" json:"event"`
	Description string            `gorm:"type:text" json:"description"`
	EventType   TimelineEventType `gorm:"type:varchar(32);not null" json:"event_type"`
	CreatedByID *uuid.UUID        `gorm:"type:uuid" json:"created_by_id,omitempty"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// TableName keeps the table name singular like the audit log it is.
func (CaseTimeline) TableName() string { return "case_timeline" }

// Ticket is a support request, optionally tied to a case.
type Ticket struct {
	ID           uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TicketNumber string       `gorm:"type:varchar(32);uniqueIndex;not null" json:"ticket_number"`
	Title        string       `gorm:"not null" json:"title"`
	Description  string       `gorm:"type:text;not null" json:"description"`
	Category     string       `gorm:"not null" json:"category"`
	Priority     Priority     `gorm:"type:varchar(10);not null;default:'MEDIUM'" json:"priority"`
	Status       TicketStatus `gorm:"type:varchar(20);not null;default:'OPEN';index" json:"status"`
	CaseID       *uuid.UUID   `gorm:"type:uuid;index" json:"case_id,omitempty"`
	AssignedToID *uuid.UUID   `gorm:"type:uuid;index" json:"assigned_to_id,omitempty"`
	CreatedByID  uuid.UUID    `gorm:"type:uuid;not null;index" json:"created_by_id"`
	ResolvedAt   *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`

	Case       *Case `gorm:"foreignKey:CaseID" json:"case,omitempty"`
	AssignedTo *User `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`
}

// WebhookEvent stores every verified gateway event with its processing outcome,
// so divergence between the gateway and local state can be found and replayed.
type WebhookEvent struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Provider        string         `gorm:"type:varchar(20);not null;index:ux_webhook_provider_event,unique,priority:1" json:"provider"`
	ProviderEventID string         `gorm:"type:varchar(191);not null;index:ux_webhook_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string         `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Payload         datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	SignatureValid  bool           `gorm:"not null;default:false" json:"signature_valid"`
	Attempts        int            `gorm:"not null;default:0" json:"attempts"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
	ProcessingError string         `gorm:"type:text" json:"processing_error,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&User{}, &Case{}, &Document{}, &Message{}, &Invoice{},
		&Payment{}, &CaseTimeline{}, &Ticket{}, &WebhookEvent{},
	}
}
