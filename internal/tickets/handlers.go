package tickets

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/debt-recovery-backend/internal/auth"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
	"github.com/aldoetobex/debt-recovery-backend/pkg/utils"
)

type PageTickets = utils.PageResult[models.Ticket]

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// Create Ticket godoc
// @Summary      Open support ticket
// @Description  Any signed-in user; number format TKT-YYYYMMDD-NNNN
// @Tags         tickets
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateInput  true  "Ticket"
// @Success      201  {object}  models.Ticket
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /tickets [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	t, err := h.svc.Create(c.UserContext(), actor, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

// List Tickets godoc
// @Summary      List tickets
// @Description  Clients get the tickets they opened; other roles get all
// @Tags         tickets
// @Security     BearerAuth
// @Produce      json
// @Param        status  query string false "OPEN, IN_PROGRESS, RESOLVED or CLOSED"
// @Param        limit   query int    false "limit"
// @Param        offset  query int    false "offset"
// @Success      200  {object}  PageTickets
// @Failure      403  {object}  models.ErrorResponse
// @Router       /tickets [get]
func (h *Handler) List(c *fiber.Ctx) error {
	var f ListFilter
	if err := c.QueryParser(&f); err != nil {
		return fiber.ErrBadRequest
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	page, err := h.svc.List(c.UserContext(), actor, f, utils.ParsePage(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Ticket Queue godoc
// @Summary      My ticket queue
// @Description  Tickets assigned to the caller and unassigned ones
// @Tags         tickets
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   models.Ticket
// @Failure      403  {object}  models.ErrorResponse
// @Router       /tickets/queue [get]
func (h *Handler) Queue(c *fiber.Ctx) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	rows, err := h.svc.Queue(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

// Get Ticket godoc
// @Summary      Ticket detail
// @Description  Clients see only tickets they opened
// @Tags         tickets
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "ticket id (uuid)"
// @Success      200  {object}  models.Ticket
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /tickets/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	t, err := h.svc.Get(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(t)
}

// Update Ticket godoc
// @Summary      Update ticket
// @Description  The opener edits title and description; STAFF, LEGAL and ADMIN set category, status, priority and assignee
// @Tags         tickets
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string       true  "ticket id (uuid)"
// @Param        payload  body  UpdateInput  true  "Fields to change"
// @Success      200  {object}  models.Ticket
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /tickets/{id} [patch]
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	t, err := h.svc.Update(c.UserContext(), actor, id, in)
	if err != nil {
		return err
	}
	return c.JSON(t)
}
