package main

import (
	"github.com/gofiber/fiber/v2"
	fiberSwagger "github.com/gofiber/swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/aldoetobex/debt-recovery-backend/docs"
	"github.com/aldoetobex/debt-recovery-backend/internal/auth"
	"github.com/aldoetobex/debt-recovery-backend/internal/billing"
	"github.com/aldoetobex/debt-recovery-backend/internal/cache"
	"github.com/aldoetobex/debt-recovery-backend/internal/cases"
	"github.com/aldoetobex/debt-recovery-backend/internal/config"
	"github.com/aldoetobex/debt-recovery-backend/internal/documents"
	"github.com/aldoetobex/debt-recovery-backend/internal/messages"
	"github.com/aldoetobex/debt-recovery-backend/internal/storage"
	"github.com/aldoetobex/debt-recovery-backend/internal/tickets"
	"github.com/aldoetobex/debt-recovery-backend/internal/users"
	"github.com/aldoetobex/debt-recovery-backend/pkg/database"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
)

type deps struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	cache   *cache.Cache
	store   storage.ObjectStore
	intents billing.IntentCreator
	tokens  *auth.Tokens
}

func registerRoutes(app *fiber.App, d deps) {
	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	loc := d.cfg.Numbering.Location()

	authH := auth.NewHandler(d.db, d.tokens)
	caseH := cases.NewHandler(cases.NewService(d.db, d.logger, d.cache, cases.Options{
		Prefix:   d.cfg.Numbering.CasePrefix,
		Location: loc,
		Attempts: database.DefaultAttempts,
	}))
	docH := documents.NewHandler(documents.NewService(d.db, d.logger, d.store, d.cfg.Storage.SignedURLTTL))
	msgH := messages.NewHandler(messages.NewService(d.db))
	billH := billing.NewHandler(billing.NewService(d.db, d.logger, d.intents, billing.Options{
		WebhookSecret: d.cfg.Stripe.WebhookSecret,
		Attempts:      database.DefaultAttempts,
	}))
	ticketH := tickets.NewHandler(tickets.NewService(d.db, d.logger, loc))
	userH := users.NewHandler(users.NewService(d.db, d.logger, d.cache))

	api := app.Group("/api")

	// Public
	api.Post("/signup", authH.Signup)
	api.Post("/login", authH.Login)
	api.Post("/webhooks/stripe", billH.StripeWebhook)

	// Every route below needs a valid token; the services check ownership.
	api.Use(d.tokens.RequireAuth())
	staff := auth.StaffOrAbove()
	admin := auth.AdminOnly()

	api.Get("/me", authH.Me)
	api.Get("/users/profile", userH.Profile)
	api.Patch("/users/profile", userH.UpdateProfile)

	// Cases
	api.Post("/cases", auth.RequireRole(models.RoleClient), caseH.Create)
	api.Get("/cases", caseH.List)
	api.Get("/cases/stats", staff, caseH.Stats)
	api.Get("/cases/:id", caseH.Get)
	api.Patch("/cases/:id/status", staff, caseH.UpdateStatus)
	api.Patch("/cases/:id/assign", admin, caseH.Assign)

	// Documents
	api.Post("/cases/:caseId/documents", docH.Register)
	api.Get("/cases/:caseId/documents", docH.ListByCase)
	api.Delete("/cases/:caseId/documents/:id", docH.DeleteFromCase)
	api.Get("/documents/mine", auth.RequireRole(models.RoleClient), docH.ListMine)
	api.Get("/documents/legal", auth.RequireRole(models.RoleLegal, models.RoleAdmin), docH.ListLegal)
	api.Delete("/documents/:id", docH.Delete)
	api.Patch("/documents/:id/visibility", staff, docH.UpdateVisibility)
	api.Get("/documents/:id/signed-url", docH.SignedURL)

	// Messages
	api.Post("/cases/:caseId/messages", msgH.Send)
	api.Get("/cases/:caseId/messages", msgH.ListByCase)
	api.Get("/cases/:caseId/conversation/:userId", msgH.Conversation)
	api.Get("/messages/unread-count", msgH.UnreadCount)
	api.Get("/messages/inbox", auth.RequireRole(models.RoleClient), msgH.Inbox)
	api.Get("/messages/:id", msgH.Get)
	api.Patch("/messages/:id/read", msgH.MarkAsRead)

	// Billing
	api.Post("/invoices", auth.RequireRole(models.RoleStaff, models.RoleAdmin), billH.CreateInvoice)
	api.Get("/invoices", billH.ListInvoices)
	api.Get("/invoices/:id", billH.GetInvoice)
	api.Post("/invoices/:id/pay", auth.RequireRole(models.RoleClient), billH.Pay)
	api.Get("/payments", billH.ListPayments)
	api.Get("/admin/webhook-events", admin, billH.ListEvents)
	api.Post("/admin/webhook-events/:id/replay", admin, billH.Replay)

	// Tickets
	api.Post("/tickets", ticketH.Create)
	api.Get("/tickets", ticketH.List)
	api.Get("/tickets/queue", staff, ticketH.Queue)
	api.Get("/tickets/:id", ticketH.Get)
	api.Patch("/tickets/:id", ticketH.Update)

	// Users (admin)
	api.Get("/users", admin, userH.List)
	api.Post("/users", admin, userH.Create)
	api.Get("/users/staff", admin, userH.StaffRoster)
	api.Get("/users/stats", admin, userH.Stats)
	api.Get("/users/:id", admin, userH.Get)
	api.Patch("/users/:id/role", admin, userH.UpdateRole)
	api.Patch("/users/:id/status", admin, userH.UpdateStatus)
}
