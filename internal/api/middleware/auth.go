package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

const HeaderAPIKey = "X-API-Key"

// AuthConfig accepts either the plain key or its SHA-256 hash (see cmd/genkey)
type AuthConfig struct {
	Required bool
	APIKey   string
	KeyHash  string
	// AllowQuery also reads ?api_key= for websocket clients
	AllowQuery bool
}

// Auth checks X-API-Key (or a Bearer token) when Required is set
func Auth(cfg AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.Required {
			return c.Next()
		}

		key := c.Get(HeaderAPIKey)
		if key == "" {
			key = extractBearerToken(c)
		}
		if key == "" && cfg.AllowQuery {
			key = c.Query("api_key")
		}
		if key == "" {
			return domain.ErrUnauthorized.WithDetails(map[string]any{"reason": "missing API key"})
		}

		if !cfg.matches(key) {
			return domain.ErrUnauthorized
		}

		return c.Next()
	}
}

func (cfg AuthConfig) matches(key string) bool {
	if cfg.APIKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(cfg.APIKey)) == 1 {
		return true
	}
	return domain.MatchAPIKey(key, cfg.KeyHash)
}

// extractBearerToken extracts token from Authorization header
func extractBearerToken(c *fiber.Ctx) string {
	auth := c.Get("Authorization")
	if auth == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
