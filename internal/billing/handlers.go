package billing

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/debt-recovery-backend/internal/auth"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
	"github.com/aldoetobex/debt-recovery-backend/pkg/utils"
)

type (
	PageInvoices = utils.PageResult[models.Invoice]
	PagePayments = utils.PageResult[models.Payment]
	PageEvents   = utils.PageResult[models.WebhookEvent]
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// Create Invoice godoc
// @Summary      Issue invoice
// @Description  Staff or admin bills the client of a case. Number format INV-YYYYMM-NNNN.
// @Tags         billing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  InvoiceInput  true  "Invoice"
// @Success      201  {object}  models.Invoice
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /invoices [post]
func (h *Handler) CreateInvoice(c *fiber.Ctx) error {
	var in InvoiceInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.CreateInvoice(c.UserContext(), actor, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(inv)
}

// List Invoices godoc
// @Summary      List invoices
// @Description  Clients see their own invoices; staff, legal and admin see all
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        status  query string false "invoice status"
// @Param        limit   query int    false "limit"
// @Param        offset  query int    false "offset"
// @Success      200  {object}  PageInvoices
// @Router       /invoices [get]
func (h *Handler) ListInvoices(c *fiber.Ctx) error {
	var f InvoiceFilter
	if err := c.QueryParser(&f); err != nil {
		return fiber.ErrBadRequest
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListInvoices(c.UserContext(), actor, f, utils.ParsePage(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Get Invoice godoc
// @Summary      Invoice detail
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "invoice id (uuid)"
// @Success      200  {object}  models.Invoice
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /invoices/{id} [get]
func (h *Handler) GetInvoice(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.GetInvoice(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

// Pay Invoice godoc
// @Summary      Pay invoice
// @Description  Client opens a card payment for their own invoice; the payment stays PENDING until the gateway confirms it
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "invoice id (uuid)"
// @Success      201  {object}  PaymentIntent
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /invoices/{id}/pay [post]
func (h *Handler) Pay(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Pay(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List Payments godoc
// @Summary      List payments
// @Description  Clients see their own payments; staff, legal and admin see all
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        limit   query int false "limit"
// @Param        offset  query int false "offset"
// @Success      200  {object}  PagePayments
// @Router       /payments [get]
func (h *Handler) ListPayments(c *fiber.Ctx) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListPayments(c.UserContext(), actor, utils.ParsePage(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Stripe Webhook godoc
// @Summary      Payment gateway webhook
// @Description  Verifies the Stripe-Signature header, records the event and applies it. Processing errors are stored on the event and still answered with 200.
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature  header  string  true  "gateway signature"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  models.ErrorResponse
// @Router       /webhooks/stripe [post]
func (h *Handler) StripeWebhook(c *fiber.Ctx) error {
	// Body() is only valid during the handler; the service keeps a copy.
	payload := append([]byte(nil), c.Body()...)

	row, err := h.svc.HandleWebhook(c.UserContext(), payload, c.Get("Stripe-Signature"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"received":  true,
		"event_id":  row.ProviderEventID,
		"processed": row.ProcessedAt != nil,
	})
}

// List Webhook Events godoc
// @Summary      Inbound event log
// @Description  Admin inspects stored gateway events; failed=true lists unprocessed ones
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        failed  query bool   false "only unprocessed events"
// @Param        type    query string false "event type"
// @Param        limit   query int    false "limit"
// @Param        offset  query int    false "offset"
// @Success      200  {object}  PageEvents
// @Failure      403  {object}  models.ErrorResponse
// @Router       /admin/webhook-events [get]
func (h *Handler) ListEvents(c *fiber.Ctx) error {
	var f EventFilter
	if err := c.QueryParser(&f); err != nil {
		return fiber.ErrBadRequest
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListEvents(c.UserContext(), actor, f, utils.ParsePage(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Replay Webhook Event godoc
// @Summary      Replay event
// @Description  Admin re-runs a stored event that failed to process
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "event id (uuid)"
// @Success      200  {object}  models.WebhookEvent
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /admin/webhook-events/{id}/replay [post]
func (h *Handler) Replay(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	row, err := h.svc.Replay(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(row)
}
