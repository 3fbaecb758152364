package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/driftwatch/driftwatch/internal/analytics/outliers"
	"github.com/driftwatch/driftwatch/internal/catalog"
	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/events"
	"github.com/driftwatch/driftwatch/internal/logging"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/services"
	"github.com/driftwatch/driftwatch/internal/store"
)

// Handler contains all HTTP handlers
type Handler struct {
	logger        *logging.Logger
	defaultColumn string
	started       time.Time
	// Services
	datasetService   *services.DatasetService
	detectionService *services.DetectionService
	transformService *services.TransformService
	summaryService   *services.SummaryService
}

// New creates a new handler instance. publisher may be nil, which
// disables outlier event publishing.
func New(logger *logging.Logger, cat catalog.Catalog, st *store.Store,
	publisher events.Publisher, subject string, detection config.DetectionConfig,
) *Handler {
	defaultColumn := detection.Column
	if defaultColumn == "" {
		defaultColumn = outliers.DefaultColumn
	}

	return &Handler{
		logger:           logger,
		defaultColumn:    defaultColumn,
		started:          time.Now(),
		datasetService:   services.NewDatasetService(logger, cat, st),
		detectionService: services.NewDetectionService(logger, st, publisher, subject, detection),
		transformService: services.NewTransformService(logger, cat, st),
		summaryService:   services.NewSummaryService(logger, st),
	}
}

// serviceErrorResponse maps a service error onto the HTTP error envelope
func (h *Handler) serviceErrorResponse(c *fiber.Ctx, err error) error {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		resp := models.NewErrorResponse(svcErr.Code, svcErr.Message, c.Path())
		resp.Error.Details = svcErr.Details
		return c.Status(svcErr.HTTPStatus()).JSON(resp)
	}

	h.logger.Error("Unhandled service error", "error", err, "path", c.Path())
	return c.Status(fiber.StatusInternalServerError).JSON(
		models.NewErrorResponse("INTERNAL_ERROR", "Internal server error", c.Path()))
}

// invalidJSONResponse is the shared reply for unparseable request bodies
func invalidJSONResponse(c *fiber.Ctx, err error) error {
	resp := models.NewErrorResponse("INVALID_JSON", "Failed to parse JSON body", c.Path())
	resp.Error.Details = map[string]interface{}{"error": err.Error()}
	return c.Status(fiber.StatusBadRequest).JSON(resp)
}
