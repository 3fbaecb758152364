package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/driftwatch/driftwatch/internal/analytics/outliers"
	"github.com/driftwatch/driftwatch/internal/models"
)

const version = "1.0.0"

// Health reports liveness, process uptime, and the detection methods
// this build carries. Load balancers poll it, so it touches no backend.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version,
		Uptime:    time.Since(h.started).Round(time.Millisecond).String(),
		Methods:   outliers.List(),
	})
}

// NotFound answers requests for routes the router does not know.
func (h *Handler) NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(models.NewErrorResponse("NOT_FOUND", "Route not found", c.Path()))
}
