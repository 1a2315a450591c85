package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/saturnino-fabrica-de-software/vigia/internal/audit"
	"github.com/saturnino-fabrica-de-software/vigia/internal/recognition"
)

// GalleryReloader rebuilds the in-memory gallery from the person store
type GalleryReloader struct {
	gallery     GalleryLoader
	source      recognition.PersonSource
	auditLogger audit.Logger
	logger      *slog.Logger
}

func NewGalleryReloader(gallery GalleryLoader, source recognition.PersonSource, auditLogger audit.Logger, logger *slog.Logger) *GalleryReloader {
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	return &GalleryReloader{
		gallery:     gallery,
		source:      source,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Reload returns the number of loaded persons. On error the previous gallery stays.
func (r *GalleryReloader) Reload(ctx context.Context) (int, error) {
	err := r.gallery.Load(ctx, r.source)

	e := audit.Event{
		EventType: audit.EventGalleryReloaded,
		Success:   err == nil,
		Metadata: map[string]string{
			"persons":    strconv.Itoa(r.gallery.PersonCount()),
			"embeddings": strconv.Itoa(r.gallery.Size()),
		},
	}
	if err != nil {
		e.Error = err.Error()
	}
	_ = r.auditLogger.Log(ctx, e)

	if err != nil {
		return 0, err
	}
	return r.gallery.PersonCount(), nil
}
