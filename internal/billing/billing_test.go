package billing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aldoetobex/debt-recovery-backend/internal/auth"
	"github.com/aldoetobex/debt-recovery-backend/internal/policy"
	"github.com/aldoetobex/debt-recovery-backend/internal/testdb"
	"github.com/aldoetobex/debt-recovery-backend/pkg/apperr"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
	"github.com/aldoetobex/debt-recovery-backend/pkg/utils"
)

const secret = "whsec_test_secret"

/* ============================================================================
   Helpers
   ============================================================================ */

type fakeIntents struct {
	n    int
	last IntentRequest
	err  error
}

func (f *fakeIntents) CreateIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.n++
	f.last = req
	return &Intent{ID: fmt.Sprintf("pi_test_%d", f.n), ClientSecret: "secret_" + uuid.NewString()}, nil
}

func as(u *models.User) policy.Actor { return policy.Actor{ID: u.ID, Role: u.Role} }

func newSvc(db *gorm.DB, intents IntentCreator) *Service {
	return NewService(db, zap.NewNop(), intents, Options{WebhookSecret: secret})
}

func sign(body string) ([]byte, string) {
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: []byte(body), Secret: secret})
	return sp.Payload, sp.Header
}

func intentEvent(eventID, typ, piID string) string {
	return fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":{"id":%q,"object":"payment_intent","amount":25000,"currency":"ghs"}}}`,
		eventID, typ, piID)
}

func webhookApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.NewErrorHandler(zap.NewNop())})
	app.Post("/api/webhooks/stripe", h.StripeWebhook)
	return app
}

func post(t *testing.T, app *fiber.App, payload []byte, header string) int {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return res.StatusCode
}

type fixture struct {
	db     *gorm.DB
	client *models.User
	staff  *models.User
	cs     *models.Case
	inv    *models.Invoice
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testdb.Open(t)
	f := &fixture{db: db}
	f.client = testdb.User(t, db, models.RoleClient, "cl")
	f.staff = testdb.User(t, db, models.RoleStaff, "st")
	f.cs = testdb.Case(t, db, f.client, f.staff)

	inv, err := newSvc(db, nil).CreateInvoice(context.Background(), as(f.staff), InvoiceInput{
		CaseID:  f.cs.ID.String(),
		Amount:  decimal.RequireFromString("250.00"),
		DueDate: time.Now().AddDate(0, 0, 14),
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	f.inv = inv
	return f
}

func (f *fixture) payment(t *testing.T, svc *Service) *models.Payment {
	t.Helper()
	out, err := svc.Pay(context.Background(), as(f.client), f.inv.ID)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	return &out.Payment
}

func (f *fixture) timeline(eventType models.TimelineEventType) []models.CaseTimeline {
	var rows []models.CaseTimeline
	f.db.Where("case_id = ? AND event_type = ?", f.cs.ID, eventType).Find(&rows)
	return rows
}

/* ============================================================================
   Pure
   ============================================================================ */

func Test_MinorUnits(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		minor    int64
	}{
		{"250.00", "GHS", 25000},
		{"19.995", "usd", 2000},
		{"1500", "JPY", 1500},
		{"0.10", "EUR", 10},
	}
	for _, c := range cases {
		got := ToMinor(decimal.RequireFromString(c.amount), c.currency)
		if got != c.minor {
			t.Errorf("ToMinor(%s %s) = %d, want %d", c.amount, c.currency, got, c.minor)
		}
	}
	if !FromMinor(12345, "GHS").Equal(decimal.RequireFromString("123.45")) {
		t.Fatal("FromMinor GHS")
	}
	if !FromMinor(500, "JPY").Equal(decimal.NewFromInt(500)) {
		t.Fatal("FromMinor JPY")
	}
}

func Test_InvoiceNumber(t *testing.T) {
	day := time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC)
	if got := InvoiceNumber(day, 0); got != "INV-202502-0001" {
		t.Fatalf("got %s", got)
	}
	if got := InvoiceNumber(day, 41); got != "INV-202502-0042" {
		t.Fatalf("got %s", got)
	}
}

func Test_Webhook_SignatureRequired(t *testing.T) {
	app := webhookApp(NewHandler(newSvc(nil, nil)))
	body := []byte(intentEvent("evt_1", EventPaymentSucceeded, "pi_1"))

	if code := post(t, app, body, ""); code != fiber.StatusBadRequest {
		t.Fatalf("missing signature: %d", code)
	}
	if code := post(t, app, body, "t=1,v1=deadbeef"); code != fiber.StatusBadRequest {
		t.Fatalf("bad signature: %d", code)
	}

	// signed with another secret
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: body, Secret: "whsec_other"})
	if code := post(t, app, sp.Payload, sp.Header); code != fiber.StatusBadRequest {
		t.Fatalf("wrong secret: %d", code)
	}
}

/* ============================================================================
   DB-backed
   ============================================================================ */

func Test_CreateInvoice_NumbersAndRoles(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := newSvc(f.db, nil)

	if f.inv.ClientID != f.client.ID || f.inv.Status != models.InvoiceIssued || f.inv.Currency != "GHS" {
		t.Fatalf("invoice = %+v", f.inv)
	}
	want := InvoiceNumber(time.Now(), 0)
	if f.inv.InvoiceNumber != want {
		t.Fatalf("number = %s, want %s", f.inv.InvoiceNumber, want)
	}

	second, err := svc.CreateInvoice(ctx, as(f.staff), InvoiceInput{
		CaseID: f.cs.ID.String(), Amount: decimal.NewFromInt(10), DueDate: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.InvoiceNumber != InvoiceNumber(time.Now(), 1) {
		t.Fatalf("second number = %s", second.InvoiceNumber)
	}

	_, err = svc.CreateInvoice(ctx, as(f.client), InvoiceInput{CaseID: f.cs.ID.String(), Amount: decimal.NewFromInt(1), DueDate: time.Now()})
	if !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("client create: %v", err)
	}
	_, err = svc.CreateInvoice(ctx, as(f.staff), InvoiceInput{CaseID: f.cs.ID.String(), Amount: decimal.Zero, DueDate: time.Now()})
	if !apperr.Is(err, apperr.BadRequest) {
		t.Fatalf("zero amount: %v", err)
	}

	other := testdb.User(t, f.db, models.RoleClient, "other")
	page, _ := svc.ListInvoices(ctx, as(other), InvoiceFilter{}, utils.NewPage(0, 0))
	if page.Total != 0 {
		t.Fatalf("other client sees %d invoices", page.Total)
	}
	page, _ = svc.ListInvoices(ctx, as(f.client), InvoiceFilter{Status: models.InvoiceIssued}, utils.NewPage(0, 0))
	if page.Total != 2 {
		t.Fatalf("client sees %d invoices", page.Total)
	}
	if _, err := svc.GetInvoice(ctx, as(other), f.inv.ID); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("other client get: %v", err)
	}
}

func Test_Pay_CreatesPendingPayment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	intents := &fakeIntents{}
	svc := newSvc(f.db, intents)

	out, err := svc.Pay(ctx, as(f.client), f.inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if out.Payment.Status != models.PayPending || out.Payment.StripePaymentID != "pi_test_1" || out.ClientSecret == "" {
		t.Fatalf("payment = %+v", out)
	}
	if intents.last.Amount != 25000 || intents.last.Metadata["invoice_number"] != f.inv.InvoiceNumber {
		t.Fatalf("intent request = %+v", intents.last)
	}

	other := testdb.User(t, f.db, models.RoleClient, "other")
	if _, err := svc.Pay(ctx, as(other), f.inv.ID); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("other client pay: %v", err)
	}
	if _, err := svc.Pay(ctx, as(f.staff), f.inv.ID); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("staff pay: %v", err)
	}

	f.db.Model(&models.Invoice{}).Where("id = ?", f.inv.ID).Update("status", models.InvoicePaid)
	if _, err := svc.Pay(ctx, as(f.client), f.inv.ID); !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("paid invoice: %v", err)
	}

	intents.err = errors.New("gateway down")
	f.db.Model(&models.Invoice{}).Where("id = ?", f.inv.ID).Update("status", models.InvoiceIssued)
	if _, err := svc.Pay(ctx, as(f.client), f.inv.ID); !apperr.Is(err, apperr.Internal) {
		t.Fatalf("gateway failure: %v", err)
	}
}

func Test_Webhook_PaymentSucceeded(t *testing.T) {
	f := setup(t)
	svc := newSvc(f.db, &fakeIntents{})
	pay := f.payment(t, svc)
	app := webhookApp(NewHandler(svc))

	payload, header := sign(intentEvent("evt_ok_1", EventPaymentSucceeded, pay.StripePaymentID))
	if code := post(t, app, payload, header); code != fiber.StatusOK {
		t.Fatalf("webhook: %d", code)
	}

	var got models.Payment
	f.db.First(&got, "id = ?", pay.ID)
	if got.Status != models.PayCompleted || got.TransactionID == nil || *got.TransactionID != pay.StripePaymentID {
		t.Fatalf("payment = %+v", got)
	}
	var inv models.Invoice
	f.db.First(&inv, "id = ?", f.inv.ID)
	if inv.Status != models.InvoicePaid || inv.PaidAmount == nil || !inv.PaidAmount.Equal(pay.Amount) {
		t.Fatalf("invoice = %+v", inv)
	}
	tl := f.timeline(models.EventPaymentReceived)
	if len(tl) != 1 || tl[0].Description != "Payment of GHS 250.00 received successfully" {
		t.Fatalf("timeline = %+v", tl)
	}

	// redelivery is acknowledged and not applied twice
	if code := post(t, app, payload, header); code != fiber.StatusOK {
		t.Fatalf("redelivery: %d", code)
	}
	if n := len(f.timeline(models.EventPaymentReceived)); n != 1 {
		t.Fatalf("timeline entries after redelivery = %d", n)
	}
	var ev models.WebhookEvent
	f.db.First(&ev, "provider_event_id = ?", "evt_ok_1")
	if ev.ProcessedAt == nil || ev.Attempts != 1 || !ev.SignatureValid {
		t.Fatalf("event row = %+v", ev)
	}
}

func Test_Webhook_PaymentFailed(t *testing.T) {
	f := setup(t)
	svc := newSvc(f.db, &fakeIntents{})
	pay := f.payment(t, svc)

	payload, header := sign(intentEvent("evt_fail_1", EventPaymentFailed, pay.StripePaymentID))
	if _, err := svc.HandleWebhook(context.Background(), payload, header); err != nil {
		t.Fatal(err)
	}

	var got models.Payment
	f.db.First(&got, "id = ?", pay.ID)
	if got.Status != models.PayFailed {
		t.Fatalf("status = %s", got.Status)
	}
	tl := f.timeline(models.EventPaymentFailed)
	if len(tl) != 1 || tl[0].Event != "Payment Failed" {
		t.Fatalf("timeline = %+v", tl)
	}
	var inv models.Invoice
	f.db.First(&inv, "id = ?", f.inv.ID)
	if inv.Status != models.InvoiceIssued {
		t.Fatalf("invoice moved to %s", inv.Status)
	}
}

func Test_Webhook_InvoicePaymentSucceeded(t *testing.T) {
	f := setup(t)
	svc := newSvc(f.db, nil)

	body := fmt.Sprintf(`{"id":"evt_inv_1","object":"event","type":%q,"data":{"object":{"id":"in_1","object":"invoice","number":%q,"amount_paid":12345,"currency":"ghs"}}}`,
		EventInvoicePaid, f.inv.InvoiceNumber)
	payload, header := sign(body)
	row, err := svc.HandleWebhook(context.Background(), payload, header)
	if err != nil {
		t.Fatal(err)
	}
	if row.ProcessedAt == nil {
		t.Fatalf("event not processed: %s", row.ProcessingError)
	}

	var inv models.Invoice
	f.db.First(&inv, "id = ?", f.inv.ID)
	if inv.Status != models.InvoicePaid || !inv.PaidAmount.Equal(decimal.RequireFromString("123.45")) {
		t.Fatalf("invoice = %s %v", inv.Status, inv.PaidAmount)
	}
}

func Test_Webhook_UnknownReferenceNoMutation(t *testing.T) {
	f := setup(t)
	svc := newSvc(f.db, &fakeIntents{})
	pay := f.payment(t, svc)

	payload, header := sign(intentEvent("evt_unknown", EventPaymentSucceeded, "pi_does_not_exist"))
	row, err := svc.HandleWebhook(context.Background(), payload, header)
	if err != nil {
		t.Fatal(err)
	}
	if row.ProcessedAt == nil || row.ProcessingError != "" {
		t.Fatalf("event row = %+v", row)
	}

	var got models.Payment
	f.db.First(&got, "id = ?", pay.ID)
	if got.Status != models.PayPending {
		t.Fatalf("payment moved to %s", got.Status)
	}
	if n := len(f.timeline(models.EventPaymentReceived)); n != 0 {
		t.Fatalf("timeline entries = %d", n)
	}
}

func Test_Webhook_FailureRecordedAndReplayable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := newSvc(f.db, nil)
	admin := testdb.User(t, f.db, models.RoleAdmin, "admin")
	app := webhookApp(NewHandler(svc))

	// the id has the wrong JSON type, so decoding the intent fails
	body := `{"id":"evt_bad","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":42,"object":"payment_intent"}}}`
	payload, header := sign(body)
	if code := post(t, app, payload, header); code != fiber.StatusOK {
		t.Fatalf("failing event must still be acknowledged: %d", code)
	}

	page, err := svc.ListEvents(ctx, as(admin), EventFilter{FailedOnly: true}, utils.NewPage(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Items[0].ProcessingError == "" {
		t.Fatalf("failed events = %+v", page.Items)
	}

	if _, err := svc.Replay(ctx, as(f.staff), page.Items[0].ID); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("staff replay: %v", err)
	}
	row, err := svc.Replay(ctx, as(admin), page.Items[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if row.Attempts != 2 || row.ProcessedAt != nil {
		t.Fatalf("replayed row = %+v", row)
	}

	okPayload, okHeader := sign(intentEvent("evt_ok", EventPaymentSucceeded, "pi_none"))
	done, err := svc.HandleWebhook(ctx, okPayload, okHeader)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Replay(ctx, as(admin), done.ID); !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("replay processed event: %v", err)
	}
}
