package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/logging"
	"github.com/driftwatch/driftwatch/internal/models"
)

// MinAPIKeyLength is the minimum accepted length for configured API keys.
const MinAPIKeyLength = 32

// ValidateAPIKey reports whether a configured key meets the length requirement.
func ValidateAPIKey(key string) bool {
	return len(key) >= MinAPIKeyLength && strings.TrimSpace(key) != ""
}

// APIKeyAuth creates an API key authentication middleware from the auth
// configuration. Keys shorter than MinAPIKeyLength are dropped at startup
// with a warning rather than silently accepted.
func APIKeyAuth(logger *logging.Logger, cfg config.AuthConfig) fiber.Handler {
	if !cfg.Enabled {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	keys := make(map[string]bool, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		if key == "" {
			continue
		}
		if !ValidateAPIKey(key) {
			logger.Warn("Dropping API key below minimum length",
				"key_prefix", maskAPIKey(key),
				"key_length", len(key),
				"min_length", MinAPIKeyLength,
			)
			continue
		}
		keys[key] = true
	}

	if len(keys) == 0 {
		logger.Error("Auth enabled but no valid API keys configured",
			"configured_keys", len(cfg.APIKeys),
			"min_length", MinAPIKeyLength,
		)
	}

	return func(c *fiber.Ctx) error {
		key := extractAPIKey(c)
		if keys[key] {
			return c.Next()
		}

		reqLog := logger.With("method", c.Method(), "path", c.Path(), "ip", c.IP())
		if key == "" {
			reqLog.Warn("Rejected request without API key")
			return unauthorized(c, "API key is required. Provide it via X-API-Key header or Authorization header.")
		}
		reqLog.Warn("Rejected request with unknown API key", "key_prefix", maskAPIKey(key))
		return unauthorized(c, "Invalid API key.")
	}
}

// extractAPIKey reads the key from X-API-Key, or from the Authorization
// header with or without a Bearer prefix.
func extractAPIKey(c *fiber.Ctx) string {
	if key := c.Get("X-API-Key"); key != "" {
		return key
	}
	authHeader := c.Get("Authorization")
	if after, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return after
	}
	return authHeader
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(models.NewErrorResponse("UNAUTHORIZED", message, c.Path()))
}

// maskAPIKey reduces a key to a loggable prefix.
func maskAPIKey(key string) string {
	const visible = 4
	if len(key) <= visible {
		return "****"
	}
	return key[:visible] + "****"
}
