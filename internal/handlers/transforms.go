package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/driftwatch/driftwatch/internal/models"
)

// ApplyTransform adds a derived feature column to a dataset
// POST /v1/datasets/:dataset/transforms
func (h *Handler) ApplyTransform(c *fiber.Ctx) error {
	var req models.TransformRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSONResponse(c, err)
	}

	resp, err := h.transformService.Execute(c.Context(), c.Params("dataset"), &req)
	if err != nil {
		return h.serviceErrorResponse(c, err)
	}
	return c.JSON(resp)
}
