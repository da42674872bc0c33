package tickets

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
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
	app.Post("/api/tickets", h.Create)
	app.Get("/api/tickets", h.List)
	app.Get("/api/tickets/queue", h.Queue)
	app.Get("/api/tickets/:id", h.Get)
	app.Patch("/api/tickets/:id", h.Update)
	return app
}

func ticket(title string) CreateInput {
	return CreateInput{Title: title, Description: "Cannot download statement", Category: "TECHNICAL"}
}

func ptr[T any](v T) *T { return &v }

func Test_TicketNumber(t *testing.T) {
	day := time.Date(2026, 3, 7, 23, 0, 0, 0, time.UTC)
	if got := TicketNumber(day, 0); got != "TKT-20260307-0001" {
		t.Fatalf("got %s", got)
	}
	if got := TicketNumber(day, 41); got != "TKT-20260307-0042" {
		t.Fatalf("got %s", got)
	}
}

func Test_Create_NumbersAndDefaults(t *testing.T) {
	db := testdb.Open(t)
	client := testdb.User(t, db, models.RoleClient, "Ama")
	svc := NewService(db, nil, time.UTC)
	svc.now = func() time.Time { return time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC) }
	app := newTestApp(NewHandler(svc), client.ID, models.RoleClient)

	body, _ := json.Marshal(ticket("  Portal error  "))
	req := httptest.NewRequest("POST", "/api/tickets", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusCreated {
		t.Fatalf("create: %d", res.StatusCode)
	}
	var tk models.Ticket
	_ = json.NewDecoder(res.Body).Decode(&tk)
	if tk.TicketNumber != "TKT-20260502-0001" || tk.Title != "Portal error" {
		t.Fatalf("ticket = %+v", tk)
	}
	if tk.Priority != models.PriorityMedium || tk.Status != models.TicketOpen || tk.CreatedByID != client.ID {
		t.Fatalf("defaults = %+v", tk)
	}
	if tk.AssignedToID != nil {
		t.Fatalf("no staff on file, yet assigned to %v", tk.AssignedToID)
	}

	second, err := svc.Create(context.Background(), as(client), ticket("Another"))
	if err != nil {
		t.Fatal(err)
	}
	if second.TicketNumber != "TKT-20260502-0002" {
		t.Fatalf("second = %s", second.TicketNumber)
	}
}

func Test_Create_Validation(t *testing.T) {
	db := testdb.Open(t)
	client := testdb.User(t, db, models.RoleClient, "Ama")
	other := testdb.User(t, db, models.RoleClient, "Yaw")
	cs := testdb.Case(t, db, client, nil)
	svc := NewService(db, nil, nil)
	ctx := context.Background()

	in := ticket("   ")
	if _, err := svc.Create(ctx, as(client), in); !apperr.Is(err, apperr.BadRequest) {
		t.Fatalf("blank title: %v", err)
	}
	in = ticket("Wrong amount")
	in.Priority = "CRITICAL"
	if _, err := svc.Create(ctx, as(client), in); !apperr.Is(err, apperr.BadRequest) {
		t.Fatalf("bad priority: %v", err)
	}

	in = ticket("Wrong amount")
	missing := uuid.NewString()
	in.CaseID = &missing
	if _, err := svc.Create(ctx, as(client), in); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("missing case: %v", err)
	}

	id := cs.ID.String()
	in.CaseID = &id
	if _, err := svc.Create(ctx, as(other), in); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("other client's case: %v", err)
	}
	tk, err := svc.Create(ctx, as(client), in)
	if err != nil {
		t.Fatal(err)
	}
	if tk.Case == nil || tk.Case.CaseNumber != cs.CaseNumber {
		t.Fatalf("case not loaded: %+v", tk.Case)
	}
}

func Test_List_ClientSeesOwnStaffSeesAll(t *testing.T) {
	db := testdb.Open(t)
	client := testdb.User(t, db, models.RoleClient, "Ama")
	other := testdb.User(t, db, models.RoleClient, "Yaw")
	staff := testdb.User(t, db, models.RoleStaff, "Kojo")
	svc := NewService(db, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, as(client), ticket("Issue")); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Create(ctx, as(other), ticket("Yaw's issue")); err != nil {
		t.Fatal(err)
	}
	db.Model(&models.Ticket{}).Where("ticket_number LIKE ?", "%-0001").Update("status", models.TicketResolved)

	mine, err := svc.List(ctx, as(client), ListFilter{}, utils.NewPage(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if mine.Total != 3 {
		t.Fatalf("client total = %d", mine.Total)
	}
	for _, tk := range mine.Items {
		if tk.CreatedByID != client.ID {
			t.Fatalf("client sees %s opened by someone else", tk.TicketNumber)
		}
	}

	app := newTestApp(NewHandler(svc), other.ID, models.RoleClient)
	res, _ := app.Test(httptest.NewRequest("GET", "/api/tickets", nil))
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("client list: %d", res.StatusCode)
	}
	var otherPage PageTickets
	_ = json.NewDecoder(res.Body).Decode(&otherPage)
	if otherPage.Total != 1 || otherPage.Items[0].Title != "Yaw's issue" {
		t.Fatalf("other client page = %+v", otherPage)
	}

	page, err := svc.List(ctx, as(staff), ListFilter{}, utils.NewPage(2, 0))
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 4 || len(page.Items) != 2 || !page.HasMore {
		t.Fatalf("page = %+v", page)
	}
	page, err = svc.List(ctx, as(staff), ListFilter{Status: models.TicketResolved}, utils.NewPage(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || !strings.HasSuffix(page.Items[0].TicketNumber, "-0001") {
		t.Fatalf("resolved = %+v", page)
	}
	if _, err := svc.List(ctx, as(staff), ListFilter{Status: "LOST"}, utils.NewPage(0, 0)); !apperr.Is(err, apperr.BadRequest) {
		t.Fatalf("bad status: %v", err)
	}
}

func Test_Create_AssignsLeastLoadedActiveStaff(t *testing.T) {
	db := testdb.Open(t)
	client := testdb.User(t, db, models.RoleClient, "Ama")
	kojo := testdb.User(t, db, models.RoleStaff, "Kojo")
	esi := testdb.User(t, db, models.RoleStaff, "Esi")
	testdb.User(t, db, models.RoleLegal, "Adjoa")
	away := testdb.User(t, db, models.RoleStaff, "Kwesi")
	db.Model(away).Update("status", models.UserSuspended)
	svc := NewService(db, nil, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, as(client), ticket("First"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Create(ctx, as(client), ticket("Second"))
	if err != nil {
		t.Fatal(err)
	}
	if first.AssignedToID == nil || second.AssignedToID == nil {
		t.Fatalf("unassigned: %v %v", first.AssignedToID, second.AssignedToID)
	}
	if *first.AssignedToID == *second.AssignedToID {
		t.Fatalf("both tickets went to %s", *first.AssignedToID)
	}
	for _, id := range []uuid.UUID{*first.AssignedToID, *second.AssignedToID} {
		if id != kojo.ID && id != esi.ID {
			t.Fatalf("assigned to %s, want an active STAFF user", id)
		}
	}
	if first.AssignedTo == nil || first.AssignedTo.ID != *first.AssignedToID {
		t.Fatalf("assignee not loaded: %+v", first.AssignedTo)
	}

	// Resolved tickets no longer count against their assignee.
	db.Model(first).Update("status", models.TicketResolved)
	third, err := svc.Create(ctx, as(client), ticket("Third"))
	if err != nil {
		t.Fatal(err)
	}
	if *third.AssignedToID != *first.AssignedToID {
		t.Fatalf("third went to %s, want %s", *third.AssignedToID, *first.AssignedToID)
	}
}

func Test_Get_RoleRules(t *testing.T) {
	db := testdb.Open(t)
	client := testdb.User(t, db, models.RoleClient, "Ama")
	other := testdb.User(t, db, models.RoleClient, "Yaw")
	svc := NewService(db, nil, nil)
	ctx := context.Background()

	tk, err := svc.Create(ctx, as(client), ticket("Portal error"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		user *models.User
		want int
	}{
		{"opener", client, fiber.StatusOK},
		{"other client", other, fiber.StatusForbidden},
		{"staff", testdb.User(t, db, models.RoleStaff, "Kojo"), fiber.StatusOK},
		{"legal", testdb.User(t, db, models.RoleLegal, "Adjoa"), fiber.StatusOK},
		{"admin", testdb.User(t, db, models.RoleAdmin, "Efua"), fiber.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(NewHandler(svc), tc.user.ID, tc.user.Role)
			res, _ := app.Test(httptest.NewRequest("GET", "/api/tickets/"+tk.ID.String(), nil))
			if res.StatusCode != tc.want {
				t.Fatalf("status %d want %d", res.StatusCode, tc.want)
			}
		})
	}

	if _, err := svc.Get(ctx, as(client), uuid.New()); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("missing ticket: %v", err)
	}
}

func Test_Update_RoleRules(t *testing.T) {
	db := testdb.Open(t)
	client := testdb.User(t, db, models.RoleClient, "Ama")
	other := testdb.User(t, db, models.RoleClient, "Yaw")
	staff := testdb.User(t, db, models.RoleStaff, "Kojo")
	legal := testdb.User(t, db, models.RoleLegal, "Adjoa")
	svc := NewService(db, nil, nil)
	fixed := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()

	tk, err := svc.Create(ctx, as(client), ticket("Portal error"))
	if err != nil {
		t.Fatal(err)
	}

	// opener rewords
	got, err := svc.Update(ctx, as(client), tk.ID, UpdateInput{Title: ptr("  Portal error on login  ")})
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Portal error on login" || got.Description != tk.Description {
		t.Fatalf("reworded = %+v", got)
	}

	if _, err := svc.Update(ctx, as(client), tk.ID, UpdateInput{Status: ptr(models.TicketClosed)}); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("client status: %v", err)
	}
	if _, err := svc.Update(ctx, as(other), tk.ID, UpdateInput{Title: ptr("Mine now")}); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("other client: %v", err)
	}
	if _, err := svc.Update(ctx, as(staff), tk.ID, UpdateInput{Description: ptr("Rewritten")}); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("staff rewording: %v", err)
	}
	if _, err := svc.Update(ctx, as(client), tk.ID, UpdateInput{Title: ptr("   ")}); !apperr.Is(err, apperr.BadRequest) {
		t.Fatalf("blank title: %v", err)
	}

	// staff triage
	got, err = svc.Update(ctx, as(staff), tk.ID, UpdateInput{
		Status:       ptr(models.TicketResolved),
		Priority:     ptr(models.PriorityHigh),
		AssignedToID: ptr(legal.ID.String()),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.TicketResolved || got.Priority != models.PriorityHigh {
		t.Fatalf("triaged = %+v", got)
	}
	if got.ResolvedAt == nil || !got.ResolvedAt.Equal(fixed) {
		t.Fatalf("resolved_at = %v", got.ResolvedAt)
	}
	if got.AssignedTo == nil || got.AssignedTo.ID != legal.ID {
		t.Fatalf("assignee = %+v", got.AssignedTo)
	}

	if _, err := svc.Update(ctx, as(staff), tk.ID, UpdateInput{AssignedToID: ptr(other.ID.String())}); !apperr.Is(err, apperr.BadRequest) {
		t.Fatalf("client as assignee: %v", err)
	}
	if _, err := svc.Update(ctx, as(staff), tk.ID, UpdateInput{Status: ptr(models.TicketStatus("LOST"))}); !apperr.Is(err, apperr.BadRequest) {
		t.Fatalf("bad status: %v", err)
	}
	if _, err := svc.Update(ctx, as(staff), uuid.New(), UpdateInput{Priority: ptr(models.PriorityLow)}); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("missing ticket: %v", err)
	}

	app := newTestApp(NewHandler(svc), client.ID, models.RoleClient)
	req := httptest.NewRequest("PATCH", "/api/tickets/"+tk.ID.String(), bytes.NewReader([]byte(`{"priority":"LOW"}`)))
	req.Header.Set("Content-Type", "application/json")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusForbidden {
		t.Fatalf("client priority over http: %d", res.StatusCode)
	}
}

func Test_Queue_MineAndUnassigned(t *testing.T) {
	db := testdb.Open(t)
	client := testdb.User(t, db, models.RoleClient, "Ama")
	kojo := testdb.User(t, db, models.RoleStaff, "Kojo")
	esi := testdb.User(t, db, models.RoleStaff, "Esi")
	svc := NewService(db, nil, nil)
	ctx := context.Background()

	mine, _ := svc.Create(ctx, as(client), ticket("Mine"))
	theirs, _ := svc.Create(ctx, as(client), ticket("Theirs"))
	unassigned, _ := svc.Create(ctx, as(client), ticket("Open"))
	admin := testdb.User(t, db, models.RoleAdmin, "Efua")
	for tk, to := range map[*models.Ticket]*models.User{mine: kojo, theirs: esi} {
		if _, err := svc.Update(ctx, as(admin), tk.ID, UpdateInput{AssignedToID: ptr(to.ID.String())}); err != nil {
			t.Fatal(err)
		}
	}
	db.Model(unassigned).Update("assigned_to_id", nil)

	app := newTestApp(NewHandler(svc), kojo.ID, models.RoleStaff)
	res, _ := app.Test(httptest.NewRequest("GET", "/api/tickets/queue", nil))
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("queue: %d", res.StatusCode)
	}
	var rows []models.Ticket
	_ = json.NewDecoder(res.Body).Decode(&rows)
	if len(rows) != 2 {
		t.Fatalf("queue = %d tickets", len(rows))
	}
	seen := map[uuid.UUID]bool{}
	for _, r := range rows {
		seen[r.ID] = true
	}
	if !seen[mine.ID] || !seen[unassigned.ID] || seen[theirs.ID] {
		t.Fatalf("queue = %v", seen)
	}

	clientApp := newTestApp(NewHandler(svc), client.ID, models.RoleClient)
	res, _ = clientApp.Test(httptest.NewRequest("GET", "/api/tickets/queue", nil))
	if res.StatusCode != fiber.StatusForbidden {
		t.Fatalf("client queue: %d", res.StatusCode)
	}
}
