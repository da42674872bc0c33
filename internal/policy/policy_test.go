package policy

import (
	"testing"

	"github.com/google/uuid"

	"github.com/aldoetobex/debt-recovery-backend/pkg/apperr"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
)

func actor(role models.Role) Actor { return Actor{ID: uuid.New(), Role: role} }

func Test_Case_Read_ByRole(t *testing.T) {
	cl, st, other := actor(models.RoleClient), actor(models.RoleStaff), actor(models.RoleStaff)
	o := Owner{ClientID: cl.ID, AssignedToID: &st.ID}

	tests := []struct {
		name string
		a    Actor
		want bool
	}{
		{"owner client", cl, true},
		{"other client", actor(models.RoleClient), false},
		{"assigned staff", st, true},
		{"unassigned staff", other, false},
		{"legal", actor(models.RoleLegal), true},
		{"admin", actor(models.RoleAdmin), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allowed(Case, Read, tc.a, o); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func Test_Case_Read_UnassignedCase_StaffForbidden(t *testing.T) {
	st := actor(models.RoleStaff)
	err := Authorize(Case, Read, st, Owner{ClientID: uuid.New()})
	if !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("want FORBIDDEN, got %v", err)
	}
}

func Test_Case_AssignAdminOnly(t *testing.T) {
	for _, r := range []models.Role{models.RoleClient, models.RoleStaff, models.RoleLegal} {
		if Allowed(Case, Assign, actor(r), Owner{}) {
			t.Fatalf("%s must not assign", r)
		}
	}
	if !Allowed(Case, Assign, actor(models.RoleAdmin), Owner{}) {
		t.Fatal("admin must assign")
	}
}

func Test_Case_UpdateStatus(t *testing.T) {
	st := actor(models.RoleStaff)
	o := Owner{AssignedToID: &st.ID}
	if !Allowed(Case, UpdateStatus, st, o) {
		t.Fatal("assigned staff must update status")
	}
	if Allowed(Case, UpdateStatus, actor(models.RoleStaff), o) {
		t.Fatal("other staff must not update status")
	}
	if Allowed(Case, UpdateStatus, actor(models.RoleClient), Owner{}) {
		t.Fatal("client must not update status")
	}
}

func Test_Document_Create_ClientFolder(t *testing.T) {
	cl := actor(models.RoleClient)
	o := Owner{ClientID: cl.ID, Folder: models.FolderClientUploads}
	if !Allowed(Document, Create, cl, o) {
		t.Fatal("client must upload into CLIENT_UPLOADS on own case")
	}

	o.Folder = models.FolderLegalDocuments
	if err := Authorize(Document, Create, cl, o); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("want FORBIDDEN for non-client folder, got %v", err)
	}

	o = Owner{ClientID: uuid.New(), Folder: models.FolderClientUploads}
	if Allowed(Document, Create, cl, o) {
		t.Fatal("client must not upload to another client's case")
	}
}

func Test_Document_Read_ClientVisibility(t *testing.T) {
	cl := actor(models.RoleClient)
	base := Owner{ClientID: cl.ID, UploadedByID: uuid.New()}

	if Allowed(Document, Read, cl, base) {
		t.Fatal("private document of someone else must be hidden")
	}
	pub := base
	pub.IsPublic = true
	if !Allowed(Document, Read, cl, pub) {
		t.Fatal("public document must be visible")
	}
	own := base
	own.UploadedByID = cl.ID
	if !Allowed(Document, Read, cl, own) {
		t.Fatal("own upload must be visible")
	}
	foreign := pub
	foreign.ClientID = uuid.New()
	if Allowed(Document, Read, cl, foreign) {
		t.Fatal("public document on another client's case must be hidden")
	}
}

func Test_Document_Delete_TwoEntryPoints(t *testing.T) {
	st := actor(models.RoleStaff)
	o := Owner{ClientID: uuid.New(), AssignedToID: &st.ID, UploadedByID: uuid.New()}

	// by id: uploader / ADMIN / LEGAL
	if Allowed(Document, Delete, st, o) {
		t.Fatal("assigned staff must not delete others' documents by id")
	}
	if !Allowed(Document, Delete, actor(models.RoleLegal), o) || !Allowed(Document, Delete, actor(models.RoleAdmin), o) {
		t.Fatal("legal and admin must delete by id")
	}

	// case-scoped: uploader or assigned STAFF
	if !Allowed(Document, DeleteFromCase, st, o) {
		t.Fatal("assigned staff must delete through the case")
	}
	if Allowed(Document, DeleteFromCase, actor(models.RoleStaff), o) {
		t.Fatal("unassigned staff must not delete through the case")
	}

	up := o
	up.UploadedByID = st.ID
	up.AssignedToID = nil
	if !Allowed(Document, Delete, st, up) || !Allowed(Document, DeleteFromCase, st, up) {
		t.Fatal("uploader must delete on both paths")
	}
}

func Test_Message_MarkRead_ReceiverOnly(t *testing.T) {
	rcv, snd := actor(models.RoleClient), actor(models.RoleStaff)
	o := Owner{SenderID: snd.ID, ReceiverID: rcv.ID}
	if !Allowed(Message, MarkRead, rcv, o) {
		t.Fatal("receiver must mark read")
	}
	if Allowed(Message, MarkRead, snd, o) {
		t.Fatal("sender must not mark read")
	}
	if Allowed(Message, MarkRead, actor(models.RoleAdmin), o) {
		t.Fatal("admin is not the receiver")
	}
}

func Test_Message_Read_ClientThreadOnly(t *testing.T) {
	cl := actor(models.RoleClient)
	o := Owner{ClientID: cl.ID, SenderID: uuid.New(), ReceiverID: uuid.New()}
	if Allowed(Message, Read, cl, o) {
		t.Fatal("client must not read a staff-only thread on own case")
	}
	o.ReceiverID = cl.ID
	if !Allowed(Message, Read, cl, o) {
		t.Fatal("client must read messages addressed to them")
	}
}

func Test_Invoice_Create(t *testing.T) {
	if !Allowed(Invoice, Create, actor(models.RoleStaff), Owner{}) || !Allowed(Invoice, Create, actor(models.RoleAdmin), Owner{}) {
		t.Fatal("staff and admin create invoices")
	}
	if Allowed(Invoice, Create, actor(models.RoleClient), Owner{}) || Allowed(Invoice, Create, actor(models.RoleLegal), Owner{}) {
		t.Fatal("client and legal must not create invoices")
	}
}

func Test_UnknownRole_Denied(t *testing.T) {
	a := Actor{ID: uuid.New(), Role: "GUEST"}
	if Allowed(Case, Read, a, Owner{ClientID: a.ID}) {
		t.Fatal("unknown role must be denied")
	}
}

func Test_Ticket_ByRole(t *testing.T) {
	cl := actor(models.RoleClient)
	o := Owner{CreatedByID: cl.ID}

	tests := []struct {
		name   string
		a      Actor
		action Action
		want   bool
	}{
		{"opener reads", cl, Read, true},
		{"other client reads", actor(models.RoleClient), Read, false},
		{"staff reads", actor(models.RoleStaff), Read, true},
		{"opener rewords", cl, EditDetails, true},
		{"other client rewords", actor(models.RoleClient), EditDetails, false},
		{"staff rewords", actor(models.RoleStaff), EditDetails, false},
		{"opener triages", cl, Triage, false},
		{"staff triages", actor(models.RoleStaff), Triage, true},
		{"legal triages", actor(models.RoleLegal), Triage, true},
		{"admin triages", actor(models.RoleAdmin), Triage, true},
		{"client lists", cl, List, true},
		{"client queue", cl, Queue, false},
		{"staff queue", actor(models.RoleStaff), Queue, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allowed(Ticket, tc.action, tc.a, o); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}
