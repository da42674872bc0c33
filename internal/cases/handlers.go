package cases

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aldoetobex/debt-recovery-backend/internal/auth"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
	"github.com/aldoetobex/debt-recovery-backend/pkg/utils"
	"github.com/aldoetobex/debt-recovery-backend/pkg/validation"
)

// ===== DTOs =====

type UpdateStatusRequest struct {
	Status models.CaseStatus `json:"status" validate:"required,casestatus"`
	Note   *string           `json:"note" validate:"omitempty,max=2000"`
}

type AssignRequest struct {
	StaffID string `json:"staff_id" validate:"required,uuid"`
}

type PageCases = utils.PageResult[ListItem]

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// Create Case godoc
// @Summary      File a case
// @Description  Client files a debt-recovery case; it is numbered and auto-assigned to the least-loaded staff member
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateInput  true  "Case payload"
// @Success      201  {object}  models.Case
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /cases [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}

	cs, err := h.svc.Create(c.UserContext(), actor, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(cs)
}

// List Cases godoc
// @Summary      List cases
// @Description  Clients see their own cases, staff their assigned cases, legal the litigation-stage cases, admins all
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        status    query string false "case status"
// @Param        priority  query string false "priority"
// @Param        limit     query int    false "limit"
// @Param        offset    query int    false "offset"
// @Success      200  {object}  PageCases
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /cases [get]
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

// Get case detail
// @Summary      Case detail
// @Description  Case with documents, messages and timeline visible to the caller
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Success      200  {object}  models.Case
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}

	cs, err := h.svc.Get(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(cs)
}

// Update status godoc
// @Summary      Update case status
// @Description  Assigned staff, legal or admin moves the case to any status
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string               true  "case id (uuid)"
// @Param        payload  body  UpdateStatusRequest  true  "Status payload"
// @Success      200  {object}  models.Case
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/status [patch]
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var in UpdateStatusRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}

	cs, err := h.svc.UpdateStatus(c.UserContext(), actor, id, in.Status, in.Note)
	if err != nil {
		return err
	}
	return c.JSON(cs)
}

// Assign godoc
// @Summary      Reassign case
// @Description  Admin assigns the case to a STAFF or LEGAL user
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string         true  "case id (uuid)"
// @Param        payload  body  AssignRequest  true  "Assignee"
// @Success      200  {object}  models.Case
// @Failure      400  {object}  models.ErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/assign [patch]
func (h *Handler) Assign(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var in AssignRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}

	cs, err := h.svc.Assign(c.UserContext(), actor, id, uuid.MustParse(in.StaffID))
	if err != nil {
		return err
	}
	return c.JSON(cs)
}

// Stats godoc
// @Summary      Case statistics
// @Description  Totals by status and priority; staff see their own cases only
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Stats
// @Failure      403  {object}  models.ErrorResponse
// @Router       /cases/stats [get]
func (h *Handler) Stats(c *fiber.Ctx) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Stats(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(st)
}
