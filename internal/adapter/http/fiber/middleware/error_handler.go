package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/electra-charge/ems/internal/domain"
)

// ErrorHandler maps domain errors onto HTTP statuses. Anything unmapped
// is a 500 and gets logged.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		switch {
		case errors.Is(err, domain.ErrUnknownCharger),
			errors.Is(err, domain.ErrUnknownConnector),
			errors.Is(err, domain.ErrSessionNotFound):
			code = fiber.StatusNotFound
		case errors.Is(err, domain.ErrConnectorBusy),
			errors.Is(err, domain.ErrStaleUpdate):
			code = fiber.StatusConflict
		case errors.Is(err, domain.ErrPersistence):
			code = fiber.StatusServiceUnavailable
		default:
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
		}

		if code == fiber.StatusInternalServerError {
			log.Error("internal server error", zap.Error(err), zap.String("path", c.Path()))
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
