package messages

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/debt-recovery-backend/internal/auth"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
	"github.com/aldoetobex/debt-recovery-backend/pkg/utils"
)

type PageMessages = utils.PageResult[models.Message]

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// Send godoc
// @Summary      Send message
// @Description  Post a message on a case the caller can access; recorded on the case timeline
// @Tags         messages
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        caseId   path  string     true  "case id (uuid)"
// @Param        payload  body  SendInput  true  "Message"
// @Success      201  {object}  models.Message
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{caseId}/messages [post]
func (h *Handler) Send(c *fiber.Ctx) error {
	caseID, err := utils.ParamUUID(c, "caseId")
	if err != nil {
		return err
	}
	var in SendInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}

	msg, err := h.svc.Send(c.UserContext(), actor, caseID, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// ListByCase godoc
// @Summary      Case messages
// @Description  Messages on a case, newest first; clients only see threads they are part of
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        caseId  path  string true  "case id (uuid)"
// @Param        limit   query int    false "limit"
// @Param        offset  query int    false "offset"
// @Success      200  {object}  PageMessages
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{caseId}/messages [get]
func (h *Handler) ListByCase(c *fiber.Ctx) error {
	caseID, err := utils.ParamUUID(c, "caseId")
	if err != nil {
		return err
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListByCase(c.UserContext(), actor, caseID, utils.ParsePage(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Conversation godoc
// @Summary      Conversation
// @Description  Messages between the caller and another user on one case
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        caseId  path  string true  "case id (uuid)"
// @Param        userId  path  string true  "counterpart user id (uuid)"
// @Param        limit   query int    false "limit"
// @Param        offset  query int    false "offset"
// @Success      200  {array}   models.Message
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{caseId}/conversation/{userId} [get]
func (h *Handler) Conversation(c *fiber.Ctx) error {
	caseID, err := utils.ParamUUID(c, "caseId")
	if err != nil {
		return err
	}
	other, err := utils.ParamUUID(c, "userId")
	if err != nil {
		return err
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	rows, err := h.svc.Conversation(c.UserContext(), actor, caseID, other, utils.ParsePage(c))
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

// Get godoc
// @Summary      Message detail
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "message id (uuid)"
// @Success      200  {object}  models.Message
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /messages/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	msg, err := h.svc.Get(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(msg)
}

// MarkAsRead godoc
// @Summary      Mark message read
// @Description  Receiver marks a message read; repeating the call changes nothing
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "message id (uuid)"
// @Success      200  {object}  models.Message
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /messages/{id}/read [patch]
func (h *Handler) MarkAsRead(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	msg, err := h.svc.MarkAsRead(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(msg)
}

// UnreadCount godoc
// @Summary      Unread count
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  UnreadCount
// @Router       /messages/unread-count [get]
func (h *Handler) UnreadCount(c *fiber.Ctx) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	out, err := h.svc.UnreadCount(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Inbox godoc
// @Summary      Client inbox
// @Description  The client's 20 most recent messages across their cases
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   models.Message
// @Failure      403  {object}  models.ErrorResponse
// @Router       /messages/inbox [get]
func (h *Handler) Inbox(c *fiber.Ctx) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	rows, err := h.svc.ClientInbox(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(rows)
}
