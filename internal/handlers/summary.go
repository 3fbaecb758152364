package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// GetSummary returns per-segment statistics for a dataset column
// GET /v1/datasets/:dataset/summary
func (h *Handler) GetSummary(c *fiber.Ctx) error {
	column := c.Query("column", h.defaultColumn)

	resp, err := h.summaryService.Execute(c.Context(), c.Params("dataset"), column)
	if err != nil {
		return h.serviceErrorResponse(c, err)
	}
	return c.JSON(resp)
}
