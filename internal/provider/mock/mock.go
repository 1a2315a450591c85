package mock

import (
	"context"
	"crypto/sha256"
	"image"
	"math"

	"github.com/saturnino-fabrica-de-software/vigia/internal/provider"
)

// naturalFrame pontua perto de zero na heurística de tela
var naturalFrame = provider.ArtifactFeatures{
	FreqRatio:         0.05,
	GrayMean:          120,
	GrayStd:           50,
	EdgeDensity:       0.02,
	LaplacianVariance: 400,
	ChannelStd:        40,
}

const (
	embeddingDimension = 512
	// minSide abaixo disso o mock não encontra face
	minSide = 32
)

// Provider implementa os contratos de provider para testes e desenvolvimento.
// Sem opções, encontra uma face centralizada ocupando 80% da imagem.
type Provider struct {
	faces         []provider.RawFace
	livenessScore float64
	objects       []provider.DetectedObject
	artifacts     provider.ArtifactFeatures
	loadErr       error
}

// Option configura o Provider
type Option func(*Provider)

// WithFaces fixa as faces retornadas por DetectFaces
func WithFaces(faces ...provider.RawFace) Option {
	return func(p *Provider) {
		p.faces = faces
	}
}

// WithLivenessScore fixa o score do modelo de liveness
func WithLivenessScore(score float64) Option {
	return func(p *Provider) {
		p.livenessScore = score
	}
}

// WithObjects fixa os objetos retornados pelo detector de dispositivos
func WithObjects(objects ...provider.DetectedObject) Option {
	return func(p *Provider) {
		p.objects = objects
	}
}

// WithArtifacts fixa as medidas devolvidas por Analyze
func WithArtifacts(f provider.ArtifactFeatures) Option {
	return func(p *Provider) {
		p.artifacts = f
	}
}

// WithLoadError faz Load falhar, simulando modelo ausente
func WithLoadError(err error) Option {
	return func(p *Provider) {
		p.loadErr = err
	}
}

// New cria uma nova instância do MockProvider
func New(opts ...Option) *Provider {
	p := &Provider{livenessScore: 0.95, artifacts: naturalFrame}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string {
	return "mock"
}

func (p *Provider) Load(ctx context.Context) error {
	return p.loadErr
}

// DetectFaces simula detecção de faces
func (p *Provider) DetectFaces(ctx context.Context, img image.Image) ([]provider.RawFace, error) {
	if p.faces != nil {
		return p.faces, nil
	}

	b := img.Bounds()
	if b.Dx() < minSide || b.Dy() < minSide {
		return nil, nil
	}

	mx, my := b.Dx()/10, b.Dy()/10
	return []provider.RawFace{{
		Box:        image.Rect(b.Min.X+mx, b.Min.Y+my, b.Max.X-mx, b.Max.Y-my),
		Confidence: 0.99,
	}}, nil
}

// Embed gera embedding determinístico baseado no hash dos pixels
func (p *Provider) Embed(ctx context.Context, crop image.Image) ([]float64, error) {
	b := crop.Bounds()
	if b.Empty() {
		return nil, nil
	}
	return generateEmbedding(pixelBytes(crop)), nil
}

func (p *Provider) Dimension() int {
	return embeddingDimension
}

// Score retorna o score fixo de liveness
func (p *Provider) Score(ctx context.Context, img image.Image, faces []provider.RawFace) (float64, error) {
	return p.livenessScore, nil
}

// DetectObjects retorna os objetos configurados
func (p *Provider) DetectObjects(ctx context.Context, img image.Image) ([]provider.DetectedObject, error) {
	return p.objects, nil
}

// Analyze retorna as medidas configuradas; por padrão, as de uma cena real
func (p *Provider) Analyze(img image.Image) (provider.ArtifactFeatures, error) {
	return p.artifacts, nil
}

func pixelBytes(img image.Image) []byte {
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out = append(out, byte(r>>8), byte(g>>8), byte(bl>>8))
		}
	}
	return out
}

// generateEmbedding gera embedding determinístico baseado no hash da imagem
func generateEmbedding(data []byte) []float64 {
	hash := sha256.Sum256(data)
	embedding := make([]float64, embeddingDimension)
	hashLen := len(hash)

	for i := 0; i < embeddingDimension; i++ {
		idx := i % hashLen
		//nolint:gosec // idx is always < hashLen due to modulo operation
		embedding[i] = (float64(hash[idx])/255.0)*2 - 1
	}

	norm := 0.0
	for _, v := range embedding {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	for i := range embedding {
		embedding[i] /= norm
	}

	return embedding
}

var (
	_ provider.FaceDetector     = (*Provider)(nil)
	_ provider.Embedder         = (*Provider)(nil)
	_ provider.LivenessModel    = (*Provider)(nil)
	_ provider.DeviceDetector   = (*Provider)(nil)
	_ provider.ArtifactAnalyzer = (*Provider)(nil)
)
