package api

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/vigia/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/vigia/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/vigia/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/vigia/internal/config"
	"github.com/saturnino-fabrica-de-software/vigia/internal/ws"
)

const bodyLimit = 50 * 1024 * 1024 // several 10MB images per enrollment

// Options is the HTTP-facing part of the configuration
type Options struct {
	BaseURL            string
	CORSOrigins        string
	SnapshotDir        string
	MaxSnapshotAgeDays int
	RateLimit          int
	Auth               middleware.AuthConfig
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:            cfg.BaseURL,
		CORSOrigins:        cfg.CORSOrigins,
		SnapshotDir:        cfg.SnapshotDir,
		MaxSnapshotAgeDays: cfg.MaxSnapshotAgeDays,
		RateLimit:          cfg.RateLimit,
		Auth: middleware.AuthConfig{
			Required: cfg.RequireAuth,
			APIKey:   cfg.APIKey,
			KeyHash:  cfg.APIKeyHash,
		},
	}
}

// Dependencies are the services behind the routes. Nil services leave their
// routes unregistered; Hub nil disables /ws.
type Dependencies struct {
	Identify handler.IdentifyService
	Enroll   handler.EnrollService
	Persons  handler.PersonService
	System   handler.SystemService
	Webhooks handler.WebhookService
	Hub      *ws.Hub
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	opts        Options
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
}

func NewRouter(logger *slog.Logger, opts Options, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Vigia API",
		BodyLimit:    bodyLimit,
	})

	if deps == nil {
		deps = &Dependencies{}
	}

	return &Router{
		app:    app,
		logger: logger,
		opts:   opts,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.opts.CORSOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key",
	}))

	// Swagger documentation (no auth required)
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	if r.opts.SnapshotDir != "" {
		r.app.Static("/snapshots", r.opts.SnapshotDir, fiber.Static{
			Browse: false,
			MaxAge: 3600,
		})
	}

	v1 := r.app.Group("/api/v1")

	var systemHandler *handler.SystemHandler
	if r.deps.System != nil {
		systemHandler = handler.NewSystemHandler(r.deps.System, r.opts.MaxSnapshotAgeDays, r.logger)
		// health antes do auth
		v1.Get("/health", systemHandler.Health)
	}

	auth := r.opts.Auth
	auth.AllowQuery = true
	v1.Use(middleware.Auth(auth))

	if systemHandler != nil {
		v1.Get("/status", systemHandler.Status)
		v1.Get("/threshold", systemHandler.Threshold)
		v1.Post("/threshold", systemHandler.SetThreshold)
		v1.Post("/cleanup_snapshots", systemHandler.Cleanup)
		v1.Post("/reload_persons", systemHandler.Reload)
		v1.Get("/detection_events", systemHandler.Events)
		v1.Get("/detection_events/latest", systemHandler.LatestEvent)
		v1.Get("/streams", systemHandler.Streams)
		v1.Get("/streams/:name", systemHandler.Stream)
	}

	if r.deps.Identify != nil {
		r.rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Max:    r.opts.RateLimit,
			Window: time.Minute,
		})
		identifyHandler := handler.NewIdentifyHandler(r.deps.Identify, r.opts.BaseURL, r.logger)
		v1.Post("/identify_image", r.rateLimiter.Handler(), identifyHandler.Identify)
	}

	if r.deps.Enroll != nil {
		enrollHandler := handler.NewEnrollHandler(r.deps.Enroll, r.logger)
		v1.Post("/enroll_person", enrollHandler.Enroll)
		v1.Post("/enroll_urls", enrollHandler.EnrollURLs)
	}

	if r.deps.Persons != nil {
		personHandler := handler.NewPersonHandler(r.deps.Persons, r.logger)
		v1.Get("/persons", personHandler.List)
		v1.Get("/person/:id", personHandler.Get)
		v1.Delete("/person/:id", personHandler.Delete)
	}

	if r.deps.Webhooks != nil {
		webhooksHandler := handler.NewWebhooksHandler(r.deps.Webhooks, r.logger)
		v1.Get("/webhooks", webhooksHandler.List)
		v1.Post("/webhooks", webhooksHandler.Create)
		v1.Delete("/webhooks/:id", webhooksHandler.Delete)
	}

	// WebSocket endpoint
	if r.deps.Hub != nil {
		v1.Get("/ws", ws.UpgradeMiddleware(), ws.Handler(r.deps.Hub))
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
