package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/driftwatch/driftwatch/internal/models"
)

// DetectOutliers runs outlier detection with query-parameter options
// GET /v1/datasets/:dataset/outliers
func (h *Handler) DetectOutliers(c *fiber.Ctx) error {
	req := &models.DetectRequest{
		Column:       c.Query("column"),
		Method:       c.Query("method"),
		WindowSize:   queryInt(c, "window_size"),
		DistanceCoef: queryFloat(c, "distance_coef"),
		NNeighbors:   queryInt(c, "n_neighbors"),
		GapPolicy:    c.Query("gap_policy"),
		Workers:      queryInt(c, "workers"),
	}
	return h.executeDetection(c, req)
}

// DetectOutliersPost runs outlier detection with a JSON body. An empty
// body runs with the configured defaults.
// POST /v1/datasets/:dataset/outliers
func (h *Handler) DetectOutliersPost(c *fiber.Ctx) error {
	req := &models.DetectRequest{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(req); err != nil {
			return invalidJSONResponse(c, err)
		}
	}
	return h.executeDetection(c, req)
}

// executeDetection executes the detection request
func (h *Handler) executeDetection(c *fiber.Ctx, req *models.DetectRequest) error {
	resp, err := h.detectionService.Execute(c.Context(), c.Params("dataset"), req)
	if err != nil {
		return h.serviceErrorResponse(c, err)
	}
	return c.JSON(resp)
}

// queryInt parses a positive integer query parameter; anything else
// means unset and falls back to the configured default.
func queryInt(c *fiber.Ctx, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return 0
	}
	return v
}

// queryFloat parses a positive float query parameter; anything else
// means unset.
func queryFloat(c *fiber.Ctx, key string) float64 {
	v, err := strconv.ParseFloat(c.Query(key), 64)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}
