package middleware

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

func newAuthApp(cfg AuthConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil))),
	})
	app.Use(Auth(cfg))
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	return app
}

func TestAuth(t *testing.T) {
	const key = "vigia_live_abcdefghijklmnopqrstuvwxyz123456"

	tests := []struct {
		name           string
		cfg            AuthConfig
		headers        map[string]string
		query          string
		expectedStatus int
	}{
		{
			name:           "auth disabled",
			cfg:            AuthConfig{Required: false, APIKey: key},
			expectedStatus: fiber.StatusOK,
		},
		{
			name:           "valid X-API-Key",
			cfg:            AuthConfig{Required: true, APIKey: key},
			headers:        map[string]string{HeaderAPIKey: key},
			expectedStatus: fiber.StatusOK,
		},
		{
			name:           "valid bearer token",
			cfg:            AuthConfig{Required: true, APIKey: key},
			headers:        map[string]string{"Authorization": "Bearer " + key},
			expectedStatus: fiber.StatusOK,
		},
		{
			name:           "valid key against hash",
			cfg:            AuthConfig{Required: true, KeyHash: domain.HashAPIKey(key)},
			headers:        map[string]string{HeaderAPIKey: key},
			expectedStatus: fiber.StatusOK,
		},
		{
			name:           "missing key",
			cfg:            AuthConfig{Required: true, APIKey: key},
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:           "wrong key",
			cfg:            AuthConfig{Required: true, APIKey: key},
			headers:        map[string]string{HeaderAPIKey: "nope"},
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:           "basic auth scheme ignored",
			cfg:            AuthConfig{Required: true, APIKey: key},
			headers:        map[string]string{"Authorization": "Basic " + key},
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:           "query key when allowed",
			cfg:            AuthConfig{Required: true, APIKey: key, AllowQuery: true},
			query:          "?api_key=" + key,
			expectedStatus: fiber.StatusOK,
		},
		{
			name:           "query key ignored by default",
			cfg:            AuthConfig{Required: true, APIKey: key},
			query:          "?api_key=" + key,
			expectedStatus: fiber.StatusUnauthorized,
		},
		{
			name:           "wrong key against hash",
			cfg:            AuthConfig{Required: true, KeyHash: domain.HashAPIKey(key)},
			headers:        map[string]string{HeaderAPIKey: key + "x"},
			expectedStatus: fiber.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAuthApp(tt.cfg)

			req := httptest.NewRequest("GET", "/test"+tt.query, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestAuth_ErrorBody(t *testing.T) {
	app := newAuthApp(AuthConfig{Required: true, APIKey: "secret"})

	resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing API key","details":{"reason":"missing API key"}}}`, string(body))
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Token abc", ""},
		{"Bearer", ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			app := fiber.New()
			var got string
			app.Get("/", func(c *fiber.Ctx) error {
				got = extractBearerToken(c)
				return nil
			})

			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			_, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
