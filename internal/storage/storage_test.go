package storage

import (
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/vigia/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func solid(c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), discardLogger(), WithClock(fixedNow))
	require.NoError(t, err)
	return s
}

func TestNewStore_CreatesRootCategories(t *testing.T) {
	s := newTestStore(t)

	for _, c := range []string{"events", "enrollments", "temp"} {
		info, err := os.Stat(filepath.Join(s.Root(), c))
		require.NoError(t, err, c)
		assert.True(t, info.IsDir())
	}

	_, err := os.Stat(filepath.Join(s.Root(), "spoofing"))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_Save(t *testing.T) {
	s := newTestStore(t)
	img := solid(color.NRGBA{R: 200, A: 255})

	tests := []struct {
		name     string
		category domain.SnapshotCategory
		prefix   string
		person   string
		camera   string
		wantDir  string
		wantPart string
	}{
		{
			name:     "event with person and camera",
			category: domain.SnapshotEvents,
			prefix:   "webcam",
			person:   "P001",
			camera:   "cam_01",
			wantDir:  "events/2025-03-14/",
			wantPart: "webcam_20250314_092653_P001_cam-01_",
		},
		{
			name:     "spoofing created on demand",
			category: domain.SnapshotSpoofing,
			prefix:   "spoofed",
			camera:   "entrada",
			wantDir:  "spoofing/2025-03-14/",
			wantPart: "spoofed_20250314_092653_entrada_",
		},
		{
			name:     "unknown category falls back to temp",
			category: domain.SnapshotCategory("bogus"),
			prefix:   "api",
			wantDir:  "temp/2025-03-14/",
			wantPart: "api_20250314_092653_",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel, err := s.Save(img, tt.category, tt.prefix, tt.person, tt.camera)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(rel, tt.wantDir), rel)
			assert.Contains(t, rel, tt.wantPart)
			assert.True(t, strings.HasSuffix(rel, ".jpg"))

			base := filepath.Base(rel)
			hash := strings.TrimSuffix(base[strings.LastIndex(base, "_")+1:], ".jpg")
			assert.Len(t, hash, 8)

			full, err := s.Path(rel)
			require.NoError(t, err)
			_, err = os.Stat(full)
			assert.NoError(t, err)
		})
	}
}

func TestStore_Save_HashDependsOnPixels(t *testing.T) {
	s := newTestStore(t)

	a, err := s.Save(solid(color.NRGBA{R: 255, A: 255}), domain.SnapshotTemp, "x", "", "")
	require.NoError(t, err)
	b, err := s.Save(solid(color.NRGBA{B: 255, A: 255}), domain.SnapshotTemp, "x", "", "")
	require.NoError(t, err)
	c, err := s.Save(solid(color.NRGBA{R: 255, A: 255}), domain.SnapshotTemp, "x", "", "")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)
}

func TestStore_Save_RejectsEmptyImage(t *testing.T) {
	s := newTestStore(t)

	rel, err := s.Save(nil, domain.SnapshotEvents, "webcam", "", "")
	assert.ErrorIs(t, err, ErrNilImage)
	assert.Empty(t, rel)

	rel, err = s.Save(image.NewNRGBA(image.Rect(0, 0, 0, 0)), domain.SnapshotEvents, "webcam", "", "")
	assert.ErrorIs(t, err, ErrNilImage)
	assert.Empty(t, rel)
}

func TestStore_Path_RejectsEscape(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Path("../etc/passwd")
	assert.Error(t, err)

	_, err = s.Path("events/2025-03-14/a.jpg")
	assert.NoError(t, err)
}

func TestURL(t *testing.T) {
	assert.Equal(t, "http://host:8000/snapshots/events/a.jpg", URL("http://host:8000/", "events/a.jpg"))
	assert.Equal(t, "", URL("http://host:8000", ""))
}

func TestStore_Cleanup(t *testing.T) {
	s := newTestStore(t)

	mk := func(parts ...string) string {
		p := filepath.Join(append([]string{s.Root()}, parts...)...)
		require.NoError(t, os.MkdirAll(p, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(p, "f.jpg"), []byte("x"), 0644))
		return p
	}

	oldEvents := mk("events", "2025-03-01")
	recentEvents := mk("events", "2025-03-10")
	oldTemp := mk("temp", "2025-02-01")
	oldEnroll := mk("enrollments", "2025-01-01")
	notADate := mk("events", "misc")

	removed, err := s.Cleanup(7)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.NoDirExists(t, oldEvents)
	assert.NoDirExists(t, oldTemp)
	assert.DirExists(t, recentEvents)
	assert.DirExists(t, oldEnroll)
	assert.DirExists(t, notADate)

	_, err = s.Cleanup(-1)
	assert.Error(t, err)
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)

	p := filepath.Join(s.Root(), "events", "2025-03-14")
	require.NoError(t, os.MkdirAll(p, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(p, "a.bin"), make([]byte, 1024*1024), 0644))
	q := filepath.Join(s.Root(), "enrollments")
	require.NoError(t, os.WriteFile(filepath.Join(q, "b.bin"), make([]byte, 512*1024), 0644))

	st, err := s.Stats()
	require.NoError(t, err)

	assert.Equal(t, 1.0, st.EventsSizeMB)
	assert.Equal(t, 0.5, st.EnrollmentsSizeMB)
	assert.Equal(t, 0.0, st.TempSizeMB)
	assert.Equal(t, 1.5, st.TotalSizeMB)
	assert.Equal(t, s.Root(), st.SnapshotsDir)
}

func TestAttendanceLog_Append(t *testing.T) {
	dir := t.TempDir()
	log, err := NewAttendanceLog(dir)
	require.NoError(t, err)

	at := time.Date(2025, 3, 14, 8, 5, 9, 0, time.UTC)
	require.NoError(t, log.Append(at, "P001", "Alice", 0.953))
	require.NoError(t, log.Append(at.Add(time.Hour), "P002", "Bob", 0.81))
	require.NoError(t, log.Append(at.AddDate(0, 0, 1), "P001", "Alice", 0.9))

	data, err := os.ReadFile(filepath.Join(dir, "attendance_2025-03-14.txt"))
	require.NoError(t, err)
	assert.Equal(t,
		"2025-03-14 | 08:05:09 | P001 | Alice | 0.95\n"+
			"2025-03-14 | 09:05:09 | P002 | Bob | 0.81\n",
		string(data))

	assert.FileExists(t, log.FileFor(at.AddDate(0, 0, 1)))
}
