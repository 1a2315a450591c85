package storage

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

const (
	DefaultJPEGQuality = 85
	DefaultMaxAgeDays  = 7

	dateLayout = "2006-01-02"
	fileLayout = "20060102_150405"
)

var ErrNilImage = errors.New("storage: nil image")

// criados no boot; spoofing e failed sob demanda
var rootCategories = []domain.SnapshotCategory{
	domain.SnapshotEvents,
	domain.SnapshotEnrollments,
	domain.SnapshotTemp,
}

// categorias sujeitas a limpeza por idade
var expiringCategories = []domain.SnapshotCategory{
	domain.SnapshotEvents,
	domain.SnapshotTemp,
}

// Stats summarises disk usage of the snapshot tree
type Stats struct {
	TotalSizeMB       float64 `json:"total_size_mb"`
	EventsSizeMB      float64 `json:"events_size_mb"`
	EnrollmentsSizeMB float64 `json:"enrollments_size_mb"`
	TempSizeMB        float64 `json:"temp_size_mb"`
	SnapshotsDir      string  `json:"snapshots_dir"`
}

// Store writes JPEG snapshots under root/{category}/YYYY-MM-DD/
type Store struct {
	root    string
	quality int
	now     func() time.Time
	logger  *slog.Logger
}

type Option func(*Store)

func WithQuality(q int) Option {
	return func(s *Store) {
		if q > 0 && q <= 100 {
			s.quality = q
		}
	}
}

// WithClock overrides time.Now, used for naming and cleanup
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(root string, logger *slog.Logger, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot dir %q: %w", root, err)
	}

	for _, c := range rootCategories {
		if err := os.MkdirAll(filepath.Join(abs, string(c)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create snapshot dir %q: %w", c, err)
		}
	}

	s := &Store{
		root:    abs,
		quality: DefaultJPEGQuality,
		now:     time.Now,
		logger:  logger.With("component", "snapshot_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Root() string {
	return s.root
}

// Save encodes img and returns its path relative to the root.
// Unknown categories are filed under temp.
func (s *Store) Save(img image.Image, category domain.SnapshotCategory, prefix, personID, cameraID string) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", ErrNilImage
	}
	if !category.Valid() {
		category = domain.SnapshotTemp
	}

	now := s.now()
	dir := filepath.Join(s.root, string(category), now.Format(dateLayout))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %q: %w", dir, err)
	}

	name := s.filename(img, now, prefix, personID, cameraID)
	full := filepath.Join(dir, name)

	if err := imaging.Save(img, full, imaging.JPEGQuality(s.quality)); err != nil {
		s.logger.Error("failed to save snapshot", "path", full, "error", err)
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}

	rel, err := filepath.Rel(s.root, full)
	if err != nil {
		return "", err
	}

	s.logger.Debug("snapshot saved", "path", rel)
	return filepath.ToSlash(rel), nil
}

func (s *Store) filename(img image.Image, now time.Time, prefix, personID, cameraID string) string {
	parts := []string{sanitize(prefix), now.Format(fileLayout)}
	if personID != "" {
		parts = append(parts, sanitize(personID))
	}
	if cameraID != "" {
		parts = append(parts, sanitize(cameraID))
	}
	parts = append(parts, pixelHash(img))
	return strings.Join(parts, "_") + ".jpg"
}

// primeiros 8 hex do md5 dos pixels NRGBA
func pixelHash(img image.Image) string {
	sum := md5.Sum(imaging.Clone(img).Pix)
	return hex.EncodeToString(sum[:])[:8]
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "snapshot"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, s)
}

// Path resolves a relative snapshot reference to an absolute file path,
// refusing anything that escapes the root.
func (s *Store) Path(rel string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(filepath.Clean(full), s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid snapshot path %q", rel)
	}
	return full, nil
}

// URL builds the public address served under /snapshots
func URL(baseURL, rel string) string {
	if rel == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/snapshots/" + strings.TrimLeft(rel, "/")
}

// Cleanup removes date directories older than maxAgeDays from events and
// temp. Returns how many directories were removed.
func (s *Store) Cleanup(maxAgeDays int) (int, error) {
	if maxAgeDays < 0 {
		return 0, fmt.Errorf("max age must be >= 0, got %d", maxAgeDays)
	}

	cutoff := s.now().AddDate(0, 0, -maxAgeDays)
	removed := 0
	var errs []error

	for _, c := range expiringCategories {
		base := filepath.Join(s.root, string(c))
		entries, err := os.ReadDir(base)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			errs = append(errs, err)
			continue
		}

		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			day, err := time.ParseInLocation(dateLayout, e.Name(), cutoff.Location())
			if err != nil {
				continue
			}
			if !day.Before(cutoff) {
				continue
			}
			if err := os.RemoveAll(filepath.Join(base, e.Name())); err != nil {
				errs = append(errs, err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("old snapshots removed", "dirs", removed, "max_age_days", maxAgeDays)
	}
	return removed, errors.Join(errs...)
}

func (s *Store) Stats() (Stats, error) {
	events, err := dirSize(filepath.Join(s.root, string(domain.SnapshotEvents)))
	if err != nil {
		return Stats{}, err
	}
	enrollments, err := dirSize(filepath.Join(s.root, string(domain.SnapshotEnrollments)))
	if err != nil {
		return Stats{}, err
	}
	temp, err := dirSize(filepath.Join(s.root, string(domain.SnapshotTemp)))
	if err != nil {
		return Stats{}, err
	}
	total, err := dirSize(s.root)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		TotalSizeMB:       toMB(total),
		EventsSizeMB:      toMB(events),
		EnrollmentsSizeMB: toMB(enrollments),
		TempSizeMB:        toMB(temp),
		SnapshotsDir:      s.root,
	}, nil
}

func dirSize(root string) (int64, error) {
	var size int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	return size, err
}

func toMB(b int64) float64 {
	return math.Round(float64(b)/(1024*1024)*100) / 100
}
