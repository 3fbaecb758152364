package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/driftwatch/driftwatch/internal/catalog"
	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/events"
	"github.com/driftwatch/driftwatch/internal/handlers"
	"github.com/driftwatch/driftwatch/internal/logging"
	"github.com/driftwatch/driftwatch/internal/middleware"
	"github.com/driftwatch/driftwatch/internal/store"
)

// Setup mounts the middleware stack and every API route on app, returning
// the handler so callers can reach it in tests.
func Setup(app *fiber.App, logger *logging.Logger, cat catalog.Catalog,
	st *store.Store, publisher events.Publisher, cfg config.Config,
) *handlers.Handler {
	h := handlers.New(logger, cat, st, publisher, cfg.Events.Subject, cfg.Detection)

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
		ExposeHeaders: "X-Request-ID",
	}))
	app.Use(logging.FiberMiddleware(logger))

	// Probes hit /health without credentials.
	app.Get("/health", h.Health)

	// Everything under /v1 requires an API key once auth is enabled.
	v1 := app.Group("/v1", middleware.APIKeyAuth(logger, cfg.Auth))

	// Dataset management
	v1.Post("/datasets", h.CreateDataset)
	v1.Get("/datasets", h.ListDatasets)
	v1.Get("/datasets/:dataset", h.GetDataset)
	v1.Delete("/datasets/:dataset", h.DeleteDataset)

	// Per-segment descriptive statistics
	v1.Get("/datasets/:dataset/summary", h.GetSummary)

	// Outlier detection
	v1.Get("/datasets/:dataset/outliers", h.DetectOutliers)
	v1.Post("/datasets/:dataset/outliers", h.DetectOutliersPost)

	// Feature transforms
	v1.Post("/datasets/:dataset/transforms", h.ApplyTransform)

	// Unmatched paths fall through to the JSON 404.
	app.Use(h.NotFound)

	return h
}

// New builds the Fiber app, installs the JSON error handler, and mounts
// all routes.
func New(logger *logging.Logger, cat catalog.Catalog, st *store.Store,
	publisher events.Publisher, cfg config.Config,
) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "DriftWatch API",
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	Setup(app, logger, cat, st, publisher, cfg)

	return app
}
