package documents

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/debt-recovery-backend/internal/auth"
	"github.com/aldoetobex/debt-recovery-backend/pkg/utils"
)

type VisibilityRequest struct {
	IsPublic bool `json:"is_public"`
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// Register godoc
// @Summary      Register an uploaded document
// @Description  Records metadata for a file already stored by the upload service. Clients may only use CLIENT_UPLOADS on their own cases.
// @Tags         documents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        caseId   path  string         true  "case id (uuid)"
// @Param        payload  body  RegisterInput  true  "File metadata"
// @Success      201  {object}  models.Document
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{caseId}/documents [post]
func (h *Handler) Register(c *fiber.Ctx) error {
	caseID, err := utils.ParamUUID(c, "caseId")
	if err != nil {
		return err
	}
	var in RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}

	doc, err := h.svc.Register(c.UserContext(), actor, caseID, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// ListByCase godoc
// @Summary      Case documents
// @Description  Documents on a case visible to the caller, plus the same rows grouped by folder
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        caseId  path string true "case id (uuid)"
// @Success      200  {object}  CaseDocuments
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{caseId}/documents [get]
func (h *Handler) ListByCase(c *fiber.Ctx) error {
	caseID, err := utils.ParamUUID(c, "caseId")
	if err != nil {
		return err
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	out, err := h.svc.ListByCase(c.UserContext(), actor, caseID)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// ListMine godoc
// @Summary      Client documents
// @Description  Client's own uploads and public documents on their cases
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   models.Document
// @Failure      403  {object}  models.ErrorResponse
// @Router       /documents/mine [get]
func (h *Handler) ListMine(c *fiber.Ctx) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	docs, err := h.svc.ListForClient(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(docs)
}

// ListLegal godoc
// @Summary      Legal documents
// @Description  LEGAL_DOCUMENTS and CONTRACTS across all cases (legal, admin)
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        limit   query int false "limit"
// @Param        offset  query int false "offset"
// @Success      200  {object}  map[string]any
// @Failure      403  {object}  models.ErrorResponse
// @Router       /documents/legal [get]
func (h *Handler) ListLegal(c *fiber.Ctx) error {
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListLegal(c.UserContext(), actor, utils.ParsePage(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Delete godoc
// @Summary      Delete document
// @Description  Uploader, legal or admin removes a document
// @Tags         documents
// @Security     BearerAuth
// @Param        id  path string true "document id (uuid)"
// @Success      204
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /documents/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.UserContext(), actor, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteFromCase godoc
// @Summary      Delete case document
// @Description  Staff assigned to the case, the uploader, legal or admin removes a document from the case
// @Tags         documents
// @Security     BearerAuth
// @Param        caseId  path string true "case id (uuid)"
// @Param        id      path string true "document id (uuid)"
// @Success      204
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{caseId}/documents/{id} [delete]
func (h *Handler) DeleteFromCase(c *fiber.Ctx) error {
	caseID, err := utils.ParamUUID(c, "caseId")
	if err != nil {
		return err
	}
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteFromCase(c.UserContext(), actor, caseID, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UpdateVisibility godoc
// @Summary      Set document visibility
// @Description  Assigned staff, legal or admin shows or hides a document from the client
// @Tags         documents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string             true  "document id (uuid)"
// @Param        payload  body  VisibilityRequest  true  "Visibility"
// @Success      200  {object}  models.Document
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /documents/{id}/visibility [patch]
func (h *Handler) UpdateVisibility(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var in VisibilityRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.UpdateVisibility(c.UserContext(), actor, id, in.IsPublic)
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

// Signed Download URL godoc
// @Summary      Get signed URL
// @Description  Anyone who may read the document obtains a short-lived download URL
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "document id (uuid)"
// @Success      200  {object}  SignedURL
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /documents/{id}/signed-url [get]
func (h *Handler) SignedURL(c *fiber.Ctx) error {
	id, err := utils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	actor, err := auth.CurrentActor(c)
	if err != nil {
		return err
	}
	out, err := h.svc.SignedURL(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(out)
}
