package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const camerasYAML = `
cameras:
  - name: portaria
    mjpeg_url: http://10.0.0.5:8080/video
    rtsp_url: rtsp://10.0.0.5:8554/live
    use_rtsp: true
    camera_id: cam_01
    location: Portaria
    fps_limit: 2
    reconnect_delay: 20
    fallback_enabled: true
    fallback_device: 0
  - name: recepcao
    enabled: false
    mjpeg_url: http://10.0.0.6:8080/video
    camera_id: cam_02
`

var testDefaults = CameraDefaults{FPS: 3, ReconnectDelay: 10 * time.Second}

func TestParseCameras(t *testing.T) {
	sources, err := ParseCameras([]byte(camerasYAML), testDefaults)
	require.NoError(t, err)
	require.Len(t, sources, 2)

	p := sources[0]
	assert.Equal(t, "portaria", p.Name)
	assert.True(t, p.Enabled)
	assert.Equal(t, "rtsp://10.0.0.5:8554/live", p.StreamURL())
	assert.Equal(t, 2, p.FPSLimit)
	assert.Equal(t, 20*time.Second, p.ReconnectDelay)
	assert.True(t, p.FallbackEnabled)

	r := sources[1]
	assert.False(t, r.Enabled)
	assert.Equal(t, "http://10.0.0.6:8080/video", r.StreamURL())
	assert.Equal(t, 3, r.FPSLimit)
	assert.Equal(t, 10*time.Second, r.ReconnectDelay)
}

func TestParseCameras_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "cameras:\n  - camera_id: x\n"},
		{"duplicate name", "cameras:\n  - name: a\n  - name: a\n"},
		{"negative fps", "cameras:\n  - name: a\n    fps_limit: -1\n"},
		{"not yaml", "cameras: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCameras([]byte(tt.yaml), testDefaults)
			assert.Error(t, err)
		})
	}
}

func TestLoadCameras(t *testing.T) {
	t.Run("missing file yields no sources", func(t *testing.T) {
		sources, err := LoadCameras(filepath.Join(t.TempDir(), "nope.yaml"), testDefaults)
		require.NoError(t, err)
		assert.Empty(t, sources)
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cameras.yaml")
		require.NoError(t, os.WriteFile(path, []byte(camerasYAML), 0644))

		sources, err := LoadCameras(path, testDefaults)
		require.NoError(t, err)
		assert.Len(t, sources, 2)
	})
}
