package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aldoetobex/debt-recovery-backend/internal/logging"
	"github.com/aldoetobex/debt-recovery-backend/pkg/apperr"
	"github.com/aldoetobex/debt-recovery-backend/pkg/database"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
	"github.com/aldoetobex/debt-recovery-backend/pkg/validation"
)

/* =========================== Error Formatting =========================== */

// httpCodeToString converts an HTTP status code to a short, stable string.
func httpCodeToString(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusUnprocessableEntity:
		return "UNPROCESSABLE_ENTITY"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// NewErrorHandler returns the global Fiber error handler. Every error leaves
// the API as {error, message, code}; validation failures use the Laravel shape.
func NewErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "Internal Server Error"

		var fe *fiber.Error
		var ae *apperr.Error
		switch {
		case errors.As(err, &fe):
			code = fe.Code
			if strings.TrimSpace(fe.Message) != "" {
				msg = fe.Message
			} else {
				msg = fiber.NewError(code).Message
			}

		case errors.As(err, &ae):
			if ae.Fields != nil {
				return validation.Respond(c, ae.Fields)
			}
			code = ae.Status()
			msg = ae.Message
			if ae.Kind == apperr.Internal {
				msg = "Internal Server Error"
			}

		case errors.Is(err, gorm.ErrRecordNotFound):
			code = fiber.StatusNotFound
			msg = "Not Found"

		case database.IsUniqueViolation(err):
			code = fiber.StatusConflict
			msg = "Resource already exists"
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.Error(err),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("request_id", logging.RequestID(c)),
			)
		}

		return c.Status(code).JSON(models.ErrorResponse{
			Code:    httpCodeToString(code),
			Error:   true,
			Message: msg,
		})
	}
}
