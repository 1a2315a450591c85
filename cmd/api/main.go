package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saturnino-fabrica-de-software/vigia/internal/api"
	"github.com/saturnino-fabrica-de-software/vigia/internal/audit"
	"github.com/saturnino-fabrica-de-software/vigia/internal/config"
	"github.com/saturnino-fabrica-de-software/vigia/internal/database"
	"github.com/saturnino-fabrica-de-software/vigia/internal/face"
	"github.com/saturnino-fabrica-de-software/vigia/internal/liveness"
	"github.com/saturnino-fabrica-de-software/vigia/internal/provider/opencv"
	"github.com/saturnino-fabrica-de-software/vigia/internal/recognition"
	"github.com/saturnino-fabrica-de-software/vigia/internal/repository"
	"github.com/saturnino-fabrica-de-software/vigia/internal/service"
	"github.com/saturnino-fabrica-de-software/vigia/internal/storage"
	"github.com/saturnino-fabrica-de-software/vigia/internal/stream"
	"github.com/saturnino-fabrica-de-software/vigia/internal/webhook"
	"github.com/saturnino-fabrica-de-software/vigia/internal/ws"
)

const (
	webhookWorkers  = 4
	cleanupInterval = 6 * time.Hour
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting Vigia API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("face_provider", cfg.FaceProvider),
		slog.String("anti_spoof_strategy", cfg.AntiSpoofStrategy),
	)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := database.NewPgxPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	persons := repository.NewPersonRepository(pool)
	events := repository.NewEventRepository(pool)
	auditLogger := audit.NewSlogLogger(logger)

	// Models
	models := opencv.NewModels(opencv.DefaultConfig().InDir(cfg.ModelsDir))
	defer func() { _ = models.Close() }()

	backends, err := face.NewBackends(ctx, cfg, models, auditLogger)
	if err != nil {
		return fmt.Errorf("failed to create face backends: %w", err)
	}

	detector := recognition.NewDetector(backends.Detector, recognition.DetectorConfig{
		DetectionConfidence: cfg.DetectionConfidence,
		MinFaceSize:         cfg.MinFaceSize,
	}, logger)
	embedder := recognition.NewEmbedder(backends.Embedder, logger)
	gallery := recognition.NewGallery(logger)
	checker := liveness.NewChecker(backends.Liveness, backends.Analyzer, cfg.LivenessThreshold, logger)

	var engineOpts []recognition.EngineOption
	if cfg.EnableLiveness {
		engineOpts = append(engineOpts, recognition.WithLiveness(checker))
	}
	engine := recognition.NewEngine(detector, embedder, gallery, recognition.EngineConfig{
		Threshold:       cfg.RecognitionThreshold,
		LivenessEnabled: cfg.EnableLiveness,
		DistanceGating:  cfg.DistanceGating,
		RealFaceWidthM:  cfg.RealFaceWidthM,
		FocalLengthPx:   cfg.FocalLengthPx,
		DistanceMinM:    cfg.DistanceMinM,
		DistanceMaxM:    cfg.DistanceMaxM,
		DistanceAlertM:  cfg.DistanceAlertM,
	}, logger, engineOpts...)

	deviceConfig := liveness.DefaultDeviceConfig()
	deviceConfig.Confidence = cfg.DeviceConfidence
	deviceConfig.Classes = cfg.DeviceClasses
	devices := liveness.NewDeviceDetector(backends.Devices, deviceConfig, logger)

	// Storage
	snapshots, err := storage.NewStore(cfg.SnapshotDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	attendance, err := storage.NewAttendanceLog(cfg.AttendanceLogDir)
	if err != nil {
		return fmt.Errorf("failed to open attendance log: %w", err)
	}

	// Event fan-out
	hub := ws.NewHub(logger)
	webhooks := webhook.NewService(pool)
	dispatcher := webhook.NewDispatcher(webhooks, webhookWorkers, logger)
	retries := webhook.NewWorker(pool, webhooks, logger)
	eventBus := service.NewEventBus(events, auditLogger, logger, hub, dispatcher)

	// Services
	reloader := service.NewGalleryReloader(gallery, persons, auditLogger, logger)
	identifySvc := service.NewIdentifyService(engine, eventBus, snapshots, logger)
	enrollSvc := service.NewEnrollService(persons, engine, snapshots, reloader, service.EnrollConfig{
		PersonIDPrefix:     cfg.PersonIDPrefix,
		ReuseDeletedIDs:    cfg.ReuseDeletedIDs,
		DuplicateThreshold: cfg.EnrollDuplicate,
	}, auditLogger, logger)
	personSvc := service.NewPersonService(persons, reloader, auditLogger, logger)

	// Streams
	sources, err := config.LoadCameras(cfg.CamerasFile, cfg.CameraDefaults())
	if err != nil {
		return fmt.Errorf("failed to load cameras: %w", err)
	}

	settings := stream.DefaultSettings()
	settings.Strategy = stream.Strategy(cfg.AntiSpoofStrategy)
	settings.OpenTimeout = cfg.StreamTimeout()
	settings.EventCooldown = time.Duration(cfg.EventCooldown) * time.Second
	settings.AttendanceCooldown = time.Duration(cfg.AttendanceCooldown) * time.Second
	settings.SpoofPenalty = time.Duration(cfg.SpoofPenalty) * time.Second
	settings.OverlapRatio = cfg.DeviceOverlap
	settings.EMAAlpha = cfg.DistanceEMAAlpha

	streamDeps := stream.Deps{
		Engine:     engine,
		Devices:    devices,
		Liveness:   checker,
		Opener:     opencv.NewCaptureOpener(),
		Events:     eventBus,
		Snapshots:  snapshots,
		Attendance: attendance,
	}
	manager := stream.NewManager(sources, func(source stream.SourceConfig) (*stream.Processor, error) {
		return stream.NewProcessor(source, settings, streamDeps, logger)
	}, logger)

	systemSvc := service.NewSystemService(service.SystemDeps{
		Persons:     persons,
		Events:      events,
		Engine:      engine,
		Gallery:     gallery,
		Reloader:    reloader,
		Snapshots:   snapshots,
		Streams:     manager,
		Strategy:    cfg.AntiSpoofStrategy,
		AuditLogger: auditLogger,
	}, logger)

	// Gallery
	loaded, err := reloader.Reload(ctx)
	if err != nil {
		return fmt.Errorf("failed to load gallery: %w", err)
	}
	logger.Info("gallery loaded", slog.Int("embeddings", loaded))

	// Background workers
	go hub.Run(ctx)
	go dispatcher.Run(ctx)
	go retries.Run(ctx)
	go cleanupSnapshots(ctx, snapshots, cfg.MaxSnapshotAgeDays, logger)

	started := manager.StartAll(ctx)
	logger.Info("stream processors started",
		slog.Int("started", started),
		slog.Int("configured", len(sources)),
	)

	// Setup router
	router := api.NewRouter(logger, api.OptionsFromConfig(cfg), &api.Dependencies{
		Identify: identifySvc,
		Enroll:   enrollSvc,
		Persons:  personSvc,
		System:   systemSvc,
		Webhooks: webhooks,
		Hub:      hub,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	var serverErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		serverErr = fmt.Errorf("server error: %w", err)
		stop()
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	done := make(chan struct{})
	go func() {
		defer close(done)
		manager.StopAll()
		if err := router.Shutdown(); err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out")
	}
	logger.Info("server stopped")

	return serverErr
}

// cleanupSnapshots removes old snapshots on startup and then periodically
func cleanupSnapshots(ctx context.Context, store *storage.Store, maxAgeDays int, logger *slog.Logger) {
	if maxAgeDays <= 0 {
		return
	}

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		removed, err := store.Cleanup(maxAgeDays)
		if err != nil {
			logger.Error("snapshot cleanup failed", slog.Any("error", err))
		} else if removed > 0 {
			logger.Info("snapshot cleanup", slog.Int("removed", removed))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
