package messages

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aldoetobex/debt-recovery-backend/internal/auth"
	"github.com/aldoetobex/debt-recovery-backend/internal/policy"
	"github.com/aldoetobex/debt-recovery-backend/internal/testdb"
	"github.com/aldoetobex/debt-recovery-backend/pkg/apperr"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
	"github.com/aldoetobex/debt-recovery-backend/pkg/utils"
)

func as(u *models.User) policy.Actor { return policy.Actor{ID: u.ID, Role: u.Role} }

func to(u *models.User, content string) SendInput {
	return SendInput{ReceiverID: u.ID.String(), Content: content}
}

func injectAuth(userID uuid.UUID, role models.Role) fiber.Handler {
	id := userID.String()
	return func(c *fiber.Ctx) error {
		c.Locals("userID", id)
		c.Locals("role", string(role))
		return c.Next()
	}
}

func newTestApp(h *Handler, userID uuid.UUID, role models.Role) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.NewErrorHandler(zap.NewNop())})
	app.Use(injectAuth(userID, role))
	app.Get("/api/messages/unread-count", h.UnreadCount)
	app.Get("/api/messages/inbox", h.Inbox)
	app.Get("/api/messages/:id", h.Get)
	app.Patch("/api/messages/:id/read", h.MarkAsRead)
	app.Post("/api/cases/:caseId/messages", h.Send)
	app.Get("/api/cases/:caseId/messages", h.ListByCase)
	app.Get("/api/cases/:caseId/conversation/:userId", h.Conversation)
	return app
}

func Test_Send_WritesTimelineAndDefaultsType(t *testing.T) {
	db := testdb.Open(t)
	client := testdb.User(t, db, models.RoleClient, "Ama")
	staff := testdb.User(t, db, models.RoleStaff, "Kojo")
	cs := testdb.Case(t, db, client, staff)
	app := newTestApp(NewHandler(NewService(db)), client.ID, models.RoleClient)

	body, _ := json.Marshal(to(staff, "Debtor called me yesterday"))
	req := httptest.NewRequest("POST", "/api/cases/"+cs.ID.String()+"/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusCreated {
		t.Fatalf("send: %d", res.StatusCode)
	}
	var msg models.Message
	_ = json.NewDecoder(res.Body).Decode(&msg)
	if msg.Type != models.MessageClientCommunication || msg.IsRead {
		t.Fatalf("message = %+v", msg)
	}
	if msg.Receiver == nil || msg.Receiver.Name != "Kojo" {
		t.Fatalf("receiver not loaded: %+v", msg.Receiver)
	}

	var tl models.CaseTimeline
	if err := db.Where("case_id = ? AND event_type = ?", cs.ID, models.EventMessageSent).First(&tl).Error; err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if tl.Event != "Message Sent" || tl.Description != "Message sent to Kojo" {
		t.Fatalf("timeline = %+v", tl)
	}
}

func Test_Send_Rules(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	client := testdb.User(t, db, models.RoleClient, "cl")
	staff := testdb.User(t, db, models.RoleStaff, "st")
	other := testdb.User(t, db, models.RoleStaff, "other")
	cs := testdb.Case(t, db, client, staff)
	svc := NewService(db)

	if _, err := svc.Send(ctx, as(other), cs.ID, to(client, "hi")); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("unassigned staff: %v", err)
	}
	if _, err := svc.Send(ctx, as(client), cs.ID, SendInput{ReceiverID: uuid.NewString(), Content: "hi"}); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("missing receiver: %v", err)
	}
	if _, err := svc.Send(ctx, as(client), uuid.New(), to(staff, "hi")); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("missing case: %v", err)
	}
	if _, err := svc.Send(ctx, as(client), cs.ID, to(staff, "   ")); !apperr.Is(err, apperr.BadRequest) {
		t.Fatalf("blank content: %v", err)
	}
	bad := to(staff, "hi")
	bad.Type = "FAX"
	if _, err := svc.Send(ctx, as(client), cs.ID, bad); !apperr.Is(err, apperr.BadRequest) {
		t.Fatalf("bad type: %v", err)
	}
}

func Test_MarkAsRead_ReceiverOnlyAndRestamps(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	client := testdb.User(t, db, models.RoleClient, "cl")
	staff := testdb.User(t, db, models.RoleStaff, "st")
	cs := testdb.Case(t, db, client, staff)
	svc := NewService(db)

	msg, err := svc.Send(ctx, as(staff), cs.ID, to(client, "Please upload the contract"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.MarkAsRead(ctx, as(staff), msg.ID); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("sender marking read: %v", err)
	}

	first := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }
	got, err := svc.MarkAsRead(ctx, as(client), msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsRead || got.ReadAt == nil || !got.ReadAt.Equal(first) {
		t.Fatalf("first read = %+v", got)
	}

	later := first.Add(time.Hour)
	svc.now = func() time.Time { return later }
	again, err := svc.MarkAsRead(ctx, as(client), msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !again.IsRead || again.ReadAt == nil || !again.ReadAt.Equal(later) {
		t.Fatalf("read_at = %v, want %v", again.ReadAt, later)
	}

	n, _ := svc.UnreadCount(ctx, as(client))
	if n.UnreadCount != 0 {
		t.Fatalf("unread = %d", n.UnreadCount)
	}
}

func Test_ListByCase_ClientSeesOwnThreads(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	client := testdb.User(t, db, models.RoleClient, "cl")
	staff := testdb.User(t, db, models.RoleStaff, "st")
	legal := testdb.User(t, db, models.RoleLegal, "lg")
	cs := testdb.Case(t, db, client, staff)
	svc := NewService(db)

	for _, step := range []struct {
		from, to *models.User
	}{
		{client, staff}, {staff, client}, {staff, legal}, {legal, staff},
	} {
		if _, err := svc.Send(ctx, as(step.from), cs.ID, to(step.to, "update")); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	page, err := svc.ListByCase(ctx, as(client), cs.ID, utils.NewPage(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 {
		t.Fatalf("client sees %d messages", page.Total)
	}
	for _, m := range page.Items {
		if m.SenderID != client.ID && m.ReceiverID != client.ID {
			t.Fatalf("client saw internal thread %s", m.ID)
		}
	}

	page, _ = svc.ListByCase(ctx, as(staff), cs.ID, utils.NewPage(3, 0))
	if page.Total != 4 || len(page.Items) != 3 || !page.HasMore {
		t.Fatalf("staff page = total %d, items %d, more %v", page.Total, len(page.Items), page.HasMore)
	}

	conv, err := svc.Conversation(ctx, as(staff), cs.ID, legal.ID, utils.NewPage(0, 0))
	if err != nil || len(conv) != 2 {
		t.Fatalf("conversation = %d, %v", len(conv), err)
	}

	inbox, err := svc.ClientInbox(ctx, as(client))
	if err != nil || len(inbox) != 2 {
		t.Fatalf("inbox = %d, %v", len(inbox), err)
	}
	if _, err := svc.ClientInbox(ctx, as(staff)); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("staff inbox: %v", err)
	}
}

func Test_Get_ClientOutsideThread_Forbidden(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	client := testdb.User(t, db, models.RoleClient, "cl")
	staff := testdb.User(t, db, models.RoleStaff, "st")
	legal := testdb.User(t, db, models.RoleLegal, "lg")
	cs := testdb.Case(t, db, client, staff)
	h := NewHandler(NewService(db))

	internal, err := h.svc.Send(ctx, as(staff), cs.ID, SendInput{ReceiverID: legal.ID.String(), Content: "settle?", Type: models.MessageInternal})
	if err != nil {
		t.Fatal(err)
	}

	res, _ := newTestApp(h, client.ID, models.RoleClient).Test(httptest.NewRequest("GET", "/api/messages/"+internal.ID.String(), nil))
	if res.StatusCode != fiber.StatusForbidden {
		t.Fatalf("client read internal: %d", res.StatusCode)
	}
	res, _ = newTestApp(h, legal.ID, models.RoleLegal).Test(httptest.NewRequest("GET", "/api/messages/"+internal.ID.String(), nil))
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("legal read: %d", res.StatusCode)
	}

	res, _ = newTestApp(h, legal.ID, models.RoleLegal).Test(httptest.NewRequest("GET", "/api/messages/unread-count", nil))
	var n UnreadCount
	_ = json.NewDecoder(res.Body).Decode(&n)
	if n.UnreadCount != 1 {
		t.Fatalf("legal unread = %d", n.UnreadCount)
	}
}
