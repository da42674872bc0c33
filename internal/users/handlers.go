package users

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/debt-recovery-backend/internal/auth"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
	"github.com/aldoetobex/debt-recovery-backend/pkg/utils"
)

type PageUsers = utils.PageResult[Profile]

// Request body for PATCH /users/{id}/role
type RoleRequest struct {
	Role models.Role `json:"role" validate:"required,role"`
}

// Request body for PATCH /users/{id}/status
type StatusRequest struct {
	Status models.UserStatus `json:"status" validate:"required,oneof=ACTIVE SUSPENDED"`
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

/* ================================ Self ================================== */

// Profile godoc
// @Summary      My profile
// @Description  The caller's account with case counts
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Profile
// @Failure      401  {object}  models.ErrorResponse
// @Router       /users/profile [get]
func (h *Handler) Profile(c *fiber.Ctx) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Profile(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// Update Profile godoc
// @Summary      Update my profile
// @Description  Contact details only; role and status are managed by admins
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  ProfileInput  true  "Profile fields"
// @Success      200  {object}  Profile
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /users/profile [patch]
func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	var in ProfileInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	p, err := h.svc.UpdateProfile(c.UserContext(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

/* ================================ Admin ================================= */

// List Users godoc
// @Summary      List users
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        role    query string false "role"
// @Param        search  query string false "name, email or company"
// @Param        limit   query int    false "limit"
// @Param        offset  query int    false "offset"
// @Success      200  {object}  PageUsers
// @Failure      403  {object}  models.ErrorResponse
// @Router       /users [get]
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

// Get User godoc
// @Summary      User detail
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "user id (uuid)"
// @Success      200  {object}  Detail
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /users/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Get(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(d)
}

// Create User godoc
// @Summary      Create user
// @Description  Admin creates an account of any role
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateInput  true  "Account"
// @Success      201  {object}  models.User
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /users [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	u, err := h.svc.Create(c.UserContext(), actor, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(u)
}

// Update Role godoc
// @Summary      Change role
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string       true  "user id (uuid)"
// @Param        payload  body  RoleRequest  true  "New role"
// @Success      200  {object}  models.User
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /users/{id}/role [patch]
func (h *Handler) UpdateRole(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var in RoleRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	u, err := h.svc.UpdateRole(c.UserContext(), actor, id, in.Role)
	if err != nil {
		return err
	}
	return c.JSON(u)
}

// Update Status godoc
// @Summary      Suspend or reactivate
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string         true  "user id (uuid)"
// @Param        payload  body  StatusRequest  true  "ACTIVE or SUSPENDED"
// @Success      200  {object}  models.User
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /users/{id}/status [patch]
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var in StatusRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	u, err := h.svc.UpdateStatus(c.UserContext(), actor, id, in.Status)
	if err != nil {
		return err
	}
	return c.JSON(u)
}

// Staff Roster godoc
// @Summary      Staff roster
// @Description  Active STAFF and LEGAL users with their open case load
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   cases.StaffLoad
// @Failure      403  {object}  models.ErrorResponse
// @Router       /users/staff [get]
func (h *Handler) StaffRoster(c *fiber.Ctx) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	loads, err := h.svc.StaffRoster(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(loads)
}

// User Stats godoc
// @Summary      User statistics
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Stats
// @Failure      403  {object}  models.ErrorResponse
// @Router       /users/stats [get]
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
