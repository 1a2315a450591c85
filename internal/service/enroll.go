package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/vigia/internal/audit"
	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

const (
	// RecommendedImages below this count only logs a warning
	RecommendedImages = 5

	maxDownloadBytes     = 10 << 20
	defaultFetchTimeout  = 10 * time.Second
	snapshotPrefixEnroll = "enroll"
	snapshotPrefixURL    = "enroll_url"
	extraInfoImageURLs   = "image_urls"
)

type EnrollConfig struct {
	PersonIDPrefix  string
	ReuseDeletedIDs bool
	// DuplicateThreshold rejects faces this similar to an active person; 0 disables it
	DuplicateThreshold float64
}

type EnrollRequest struct {
	PersonID   string
	Name       string
	Department string
	ExtraInfo  map[string]any
	Images     []image.Image
}

type EnrollURLRequest struct {
	PersonID   string         `json:"person_id"`
	Name       string         `json:"name"`
	Department string         `json:"department"`
	ExtraInfo  map[string]any `json:"metadata"`
	ImageURLs  []string       `json:"image_urls"`
}

type EnrollResponse struct {
	Status            string `json:"status"`
	PersonID          string `json:"person_id"`
	Name              string `json:"name"`
	Message           string `json:"message"`
	EmbeddingsCreated int    `json:"embeddings_created"`
	ImagesSkipped     int    `json:"images_skipped"`
	SnapshotSaved     bool   `json:"snapshot_saved"`
}

type EnrollService struct {
	persons     PersonRepositoryInterface
	engine      Identifier
	snapshots   SnapshotStore
	reloader    *GalleryReloader
	config      EnrollConfig
	client      *http.Client
	auditLogger audit.Logger
	logger      *slog.Logger
}

func NewEnrollService(
	persons PersonRepositoryInterface,
	engine Identifier,
	snapshots SnapshotStore,
	reloader *GalleryReloader,
	config EnrollConfig,
	auditLogger audit.Logger,
	logger *slog.Logger,
) *EnrollService {
	if config.PersonIDPrefix == "" {
		config.PersonIDPrefix = "P"
	}
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	return &EnrollService{
		persons:     persons,
		engine:      engine,
		snapshots:   snapshots,
		reloader:    reloader,
		config:      config,
		client:      &http.Client{Timeout: defaultFetchTimeout},
		auditLogger: auditLogger,
		logger:      logger.With("component", "enroll"),
	}
}

// WithHTTPClient replaces the client used by EnrollFromURLs
func (s *EnrollService) WithHTTPClient(c *http.Client) *EnrollService {
	s.client = c
	return s
}

// Enroll registers a person from uploaded images. A missing person_id is
// generated from the configured prefix.
func (s *EnrollService) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResponse, error) {
	if err := validateEnroll(req.Name, len(req.Images)); err != nil {
		return nil, err
	}

	personID := strings.TrimSpace(req.PersonID)
	if personID == "" {
		id, err := s.persons.NextPersonID(ctx, s.config.PersonIDPrefix, s.config.ReuseDeletedIDs)
		if err != nil {
			return nil, err
		}
		personID = id
		s.logger.Info("auto-generated person_id", slog.String("person_id", personID))
	}

	return s.enroll(ctx, &domain.Person{
		PersonID:   personID,
		Name:       strings.TrimSpace(req.Name),
		Department: req.Department,
		ExtraInfo:  req.ExtraInfo,
	}, req.Images, snapshotPrefixEnroll)
}

// EnrollFromURLs downloads each image once, skipping the ones that fail.
// A missing person_id becomes a UUID.
func (s *EnrollService) EnrollFromURLs(ctx context.Context, req EnrollURLRequest) (*EnrollResponse, error) {
	if err := validateEnroll(req.Name, len(req.ImageURLs)); err != nil {
		return nil, err
	}
	if len(req.ImageURLs) < RecommendedImages {
		s.logger.Warn("enrolling with fewer images than recommended",
			slog.String("name", req.Name),
			slog.Int("images", len(req.ImageURLs)),
			slog.Int("recommended", RecommendedImages),
		)
	}

	personID := strings.TrimSpace(req.PersonID)
	if personID == "" {
		personID = uuid.NewString()
		s.logger.Info("generated person_id", slog.String("person_id", personID))
	}

	images := make([]image.Image, 0, len(req.ImageURLs))
	for _, u := range req.ImageURLs {
		img, err := s.fetch(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Error("failed to download image", slog.String("url", u), slog.String("error", err.Error()))
			continue
		}
		images = append(images, img)
	}

	if len(images) == 0 {
		return nil, domain.ErrValidationFailed.WithDetails(map[string]any{
			"image_urls": "failed to fetch any valid images from provided URLs",
		})
	}
	if len(images) < RecommendedImages {
		s.logger.Warn("only some images fetched", slog.Int("fetched", len(images)))
	}

	extra := make(map[string]any, len(req.ExtraInfo)+1)
	for k, v := range req.ExtraInfo {
		extra[k] = v
	}
	extra[extraInfoImageURLs] = req.ImageURLs

	return s.enroll(ctx, &domain.Person{
		PersonID:   personID,
		Name:       strings.TrimSpace(req.Name),
		Department: req.Department,
		ExtraInfo:  extra,
	}, images, snapshotPrefixURL)
}

func (s *EnrollService) enroll(ctx context.Context, person *domain.Person, images []image.Image, prefix string) (*EnrollResponse, error) {
	exists, err := s.persons.Exists(ctx, person.PersonID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrPersonExists.WithDetails(map[string]any{"person_id": person.PersonID})
	}

	var embeddings []domain.Embedding
	var usable []image.Image
	for i, img := range images {
		emb, _, ok, err := s.engine.EmbedFirstFace(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("enroll %s image %d: %w", person.PersonID, i, err)
		}
		if !ok {
			s.logger.Warn("no usable face in enrollment image",
				slog.String("person_id", person.PersonID),
				slog.Int("image", i),
			)
			continue
		}
		embeddings = append(embeddings, emb)
		usable = append(usable, img)
	}

	if len(embeddings) == 0 {
		return nil, domain.ErrNoFaceDetected
	}

	if err := s.checkDuplicate(ctx, embeddings); err != nil {
		return nil, err
	}

	if len(embeddings) == 1 {
		person.Embeddings = domain.SingleEmbedding(embeddings[0])
	} else {
		person.Embeddings = domain.MultiEmbeddings(embeddings)
	}

	snapshotSaved := false
	for i, img := range usable {
		p := prefix
		if len(usable) > 1 {
			p = prefix + "_" + strconv.Itoa(i+1)
		}
		if saveSnapshot(s.snapshots, s.logger, img, domain.SnapshotEnrollments, p, person.PersonID, "") != "" {
			snapshotSaved = true
		}
	}

	if err := s.persons.Create(ctx, person); err != nil {
		if errors.Is(err, domain.ErrPersonExists) {
			return nil, domain.ErrPersonExists.WithDetails(map[string]any{"person_id": person.PersonID})
		}
		return nil, err
	}

	_ = s.auditLogger.Log(ctx, audit.Event{
		EventType: audit.EventPersonEnrolled,
		PersonID:  person.PersonID,
		Success:   true,
		Metadata: map[string]string{
			"embeddings": strconv.Itoa(len(embeddings)),
			"shape":      person.Embeddings.Shape().String(),
		},
	})

	if _, err := s.reloader.Reload(ctx); err != nil {
		s.logger.Error("gallery reload after enrollment failed", slog.String("error", err.Error()))
	}

	s.logger.Info("person enrolled",
		slog.String("person_id", person.PersonID),
		slog.String("name", person.Name),
		slog.Int("embeddings", len(embeddings)),
	)

	return &EnrollResponse{
		Status:            "ok",
		PersonID:          person.PersonID,
		Name:              person.Name,
		Message:           fmt.Sprintf("Successfully enrolled %s", person.Name),
		EmbeddingsCreated: len(embeddings),
		ImagesSkipped:     len(images) - len(embeddings),
		SnapshotSaved:     snapshotSaved,
	}, nil
}

// checkDuplicate rejects a face already enrolled under another active person
func (s *EnrollService) checkDuplicate(ctx context.Context, embeddings []domain.Embedding) error {
	if s.config.DuplicateThreshold <= 0 {
		return nil
	}

	for _, emb := range embeddings {
		matches, err := s.persons.FindSimilar(ctx, emb, 1)
		if err != nil {
			return err
		}
		if len(matches) > 0 && matches[0].Similarity >= s.config.DuplicateThreshold {
			return domain.ErrFaceBiometricExists.WithDetails(map[string]any{
				"person_id":  matches[0].PersonID,
				"similarity": matches[0].Similarity,
			})
		}
	}
	return nil
}

func (s *EnrollService) fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("get %s: HTTP %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return DecodeImage(data)
}

func validateEnroll(name string, images int) error {
	details := map[string]any{}
	if strings.TrimSpace(name) == "" {
		details["name"] = "is required"
	}
	if images == 0 {
		details["images"] = "at least one image is required"
	}
	if len(details) > 0 {
		return domain.ErrValidationFailed.WithDetails(details)
	}
	return nil
}
