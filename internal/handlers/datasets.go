package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/driftwatch/driftwatch/internal/models"
)

// CreateDataset uploads a new dataset
// POST /v1/datasets
func (h *Handler) CreateDataset(c *fiber.Ctx) error {
	var req models.CreateDatasetRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSONResponse(c, err)
	}

	resp, err := h.datasetService.Create(c.Context(), &req)
	if err != nil {
		return h.serviceErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// ListDatasets lists all registered datasets
// GET /v1/datasets
func (h *Handler) ListDatasets(c *fiber.Ctx) error {
	resp, err := h.datasetService.List(c.Context())
	if err != nil {
		return h.serviceErrorResponse(c, err)
	}
	return c.JSON(resp)
}

// GetDataset returns one dataset's metadata
// GET /v1/datasets/:dataset
func (h *Handler) GetDataset(c *fiber.Ctx) error {
	resp, err := h.datasetService.Get(c.Context(), c.Params("dataset"))
	if err != nil {
		return h.serviceErrorResponse(c, err)
	}
	return c.JSON(resp)
}

// DeleteDataset removes a dataset's snapshot and catalog entry
// DELETE /v1/datasets/:dataset
func (h *Handler) DeleteDataset(c *fiber.Ctx) error {
	if err := h.datasetService.Delete(c.Context(), c.Params("dataset")); err != nil {
		return h.serviceErrorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
