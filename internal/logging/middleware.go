package logging

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// FiberMiddleware logs every request and threads a request-scoped
// logger through the user context, so handlers and services log with
// the request ID attached.
func FiberMiddleware(logger *Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := ensureRequestID(c)

		c.SetUserContext(WithLogger(WithRequestID(c.UserContext(), requestID), logger))

		err := c.Next()

		status := c.Response().StatusCode()
		reqLog := logger.With(
			"method", c.Method(),
			"path", c.Path(),
			"ip", c.IP(),
			"status", status,
			"duration", time.Since(start),
			"request_id", requestID,
		)

		switch {
		case err != nil:
			reqLog.Error("Request failed", "error", err)
			return err
		case status >= fiber.StatusInternalServerError:
			reqLog.Error("Server error")
		case status >= fiber.StatusBadRequest:
			reqLog.Warn("Client error")
		default:
			reqLog.Info("Request completed")
		}
		return nil
	}
}

// ensureRequestID returns the client-supplied X-Request-ID, generating
// and echoing one when absent.
func ensureRequestID(c *fiber.Ctx) string {
	id := c.Get("X-Request-ID")
	if id == "" {
		id = uuid.New().String()
		c.Set("X-Request-ID", id)
	}
	return id
}
