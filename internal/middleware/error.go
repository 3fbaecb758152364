package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/driftwatch/driftwatch/internal/logging"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/services"
)

// ErrorHandler renders errors that escape the handler layer. Routing
// failures and body-limit rejections arrive as *fiber.Error; service
// errors returned without an explicit response keep their code and
// status. Everything leaves in the standard error envelope.
func ErrorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		detail := models.ErrorDetail{
			Code:    "ERROR",
			Message: "Internal Server Error",
			Path:    c.Path(),
		}

		var svcErr *services.ServiceError
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &svcErr):
			status = svcErr.HTTPStatus()
			detail.Code = svcErr.Code
			detail.Message = svcErr.Message
			detail.Details = svcErr.Details
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			detail.Message = fiberErr.Message
		}

		reqLog := logger.With("method", c.Method(), "path", c.Path(), "status", status)
		if status >= fiber.StatusInternalServerError {
			reqLog.Error("Request error", "error", err)
		} else {
			reqLog.Warn("Request rejected", "error", err)
		}

		return c.Status(status).JSON(models.ErrorResponse{Error: detail})
	}
}
