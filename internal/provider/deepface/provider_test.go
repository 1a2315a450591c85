package deepface

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewProvider(testConfig(server.URL, 0))
}

func TestProvider_DetectFaces(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ExtractResponse{Results: []ExtractResult{
			{FacialArea: FacialArea{X: 10, Y: 20, W: 100, H: 120}, Confidence: 0.93},
			{FacialArea: FacialArea{X: 5, Y: 5, W: 30, H: 30}},
			{FacialArea: FacialArea{X: 0, Y: 0, W: 0, H: 10}, Confidence: 0.9},
		}})
	})

	faces, err := p.DetectFaces(context.Background(), testImage())
	require.NoError(t, err)
	require.Len(t, faces, 2)

	assert.Equal(t, image.Rect(10, 20, 110, 140), faces[0].Box)
	assert.Equal(t, 0.93, faces[0].Confidence)

	// sem confiança no retorno: estimada pela área (900 px² < mínimo)
	assert.Equal(t, 0.5, faces[1].Confidence)
}

func TestProvider_DetectFaces_NoFaceIsEmpty(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Face could not be detected"}`))
	})

	faces, err := p.DetectFaces(context.Background(), testImage())
	require.NoError(t, err)
	assert.Empty(t, faces)
}

func TestProvider_DetectFaces_ServerError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := p.DetectFaces(context.Background(), testImage())
	assert.ErrorIs(t, err, ErrDeepFaceUnavailable)
}

func TestProvider_Embed(t *testing.T) {
	tests := []struct {
		name    string
		results []RepresentResult
		wantLen int
		wantNil bool
	}{
		{
			name:    "first result is used",
			results: []RepresentResult{{Embedding: make([]float64, 512)}, {Embedding: make([]float64, 3)}},
			wantLen: 512,
		},
		{
			name:    "no result yields nil",
			results: nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				var req RepresentRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, DetectorSkip, req.Detector)
				_ = json.NewEncoder(w).Encode(RepresentResponse{Results: tt.results})
			})

			emb, err := p.Embed(context.Background(), testImage())
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, emb)
				return
			}
			assert.Len(t, emb, tt.wantLen)
		})
	}
}

func TestProvider_Dimension(t *testing.T) {
	assert.Equal(t, 512, NewProvider(Config{}).Dimension())
	assert.Equal(t, 128, NewProvider(Config{Dimension: 128}).Dimension())
}

func TestCalculateConfidence(t *testing.T) {
	tests := []struct {
		name string
		area float64
		want float64
	}{
		{"tiny face", 100, 0.5},
		{"minimum area", minFaceArea, 0.7},
		{"maximum area", maxFaceArea, 0.99},
		{"above maximum", maxFaceArea * 4, 0.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calculateConfidence(tt.area), 1e-9)
		})
	}
}
