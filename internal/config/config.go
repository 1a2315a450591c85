package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`
	BaseURL     string `envconfig:"BASE_URL" default:"http://localhost:3000"`
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"*"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Security
	APIKey      string `envconfig:"API_KEY"`
	APIKeyHash  string `envconfig:"API_KEY_HASH"`
	RequireAuth bool   `envconfig:"REQUIRE_AUTH" default:"false"`
	RateLimit   int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`

	// Recognition
	RecognitionThreshold float64 `envconfig:"RECOGNITION_THRESHOLD" default:"0.6"`
	MinFaceSize          int     `envconfig:"MIN_FACE_SIZE" default:"60"`
	DetectionConfidence  float64 `envconfig:"DETECTION_CONFIDENCE" default:"0.7"`
	EnrollDuplicate      float64 `envconfig:"ENROLL_DUPLICATE_THRESHOLD" default:"0"`
	PersonIDPrefix       string  `envconfig:"PERSON_ID_PREFIX" default:"P"`
	ReuseDeletedIDs      bool    `envconfig:"REUSE_DELETED_IDS" default:"true"`

	// Distance
	DistanceGating   bool    `envconfig:"DISTANCE_GATING" default:"false"`
	RealFaceWidthM   float64 `envconfig:"REAL_FACE_WIDTH_M" default:"0.16"`
	FocalLengthPx    float64 `envconfig:"FOCAL_LENGTH_PX" default:"600"`
	DistanceMinM     float64 `envconfig:"DISTANCE_MIN_M" default:"0.3"`
	DistanceMaxM     float64 `envconfig:"DISTANCE_MAX_M" default:"3.0"`
	DistanceAlertM   float64 `envconfig:"DISTANCE_ALERT_M" default:"0.5"`
	DistanceEMAAlpha float64 `envconfig:"DISTANCE_EMA_ALPHA" default:"0.3"`

	// Liveness / anti-spoof
	EnableLiveness    bool    `envconfig:"ENABLE_LIVENESS" default:"false"`
	LivenessThreshold float64 `envconfig:"LIVENESS_THRESHOLD" default:"0.7"`
	AntiSpoofStrategy string  `envconfig:"ANTI_SPOOF_STRATEGY" default:"device"`
	DeviceConfidence  float64 `envconfig:"DEVICE_CONFIDENCE" default:"0.4"`
	DeviceOverlap     float64 `envconfig:"DEVICE_OVERLAP_RATIO" default:"0.85"`
	// COCO class ids treated as screens: 67 cell phone, 63 laptop
	DeviceClasses     []int   `envconfig:"DEVICE_CLASSES" default:"67,63"`

	// Providers
	FaceProvider   string `envconfig:"FACE_PROVIDER" default:"opencv"`
	DeviceProvider string `envconfig:"DEVICE_PROVIDER" default:"opencv"`
	DeepFaceURL    string `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	DeepFaceModel  string `envconfig:"DEEPFACE_MODEL" default:"ArcFace"`
	AWSRegion      string `envconfig:"AWS_REGION" default:"us-east-1"`
	ModelsDir      string `envconfig:"MODELS_DIR" default:"models"`

	// Streams
	ProcessFPS           int           `envconfig:"PROCESS_FPS" default:"3"`
	StreamReconnectDelay time.Duration `envconfig:"STREAM_RECONNECT_DELAY" default:"10s"`
	StreamTimeoutMS      int           `envconfig:"STREAM_TIMEOUT_MS" default:"5000"`
	EventCooldown        int           `envconfig:"EVENT_COOLDOWN_SECONDS" default:"30"`
	AttendanceCooldown   int           `envconfig:"ATTENDANCE_COOLDOWN_SECONDS" default:"300"`
	SpoofPenalty         int           `envconfig:"SPOOF_PENALTY_SECONDS" default:"60"`
	CamerasFile          string        `envconfig:"CAMERAS_FILE" default:"cameras.yaml"`

	// Storage
	SnapshotDir        string `envconfig:"SNAPSHOT_DIR" default:"snapshots"`
	AttendanceLogDir   string `envconfig:"ATTENDANCE_LOG_DIR" default:"logs"`
	MaxSnapshotAgeDays int    `envconfig:"MAX_SNAPSHOT_AGE_DAYS" default:"7"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges that envconfig cannot express
func (c *Config) Validate() error {
	var errs []error

	if c.RecognitionThreshold < 0 || c.RecognitionThreshold > 1 {
		errs = append(errs, fmt.Errorf("RECOGNITION_THRESHOLD must be in [0,1], got %v", c.RecognitionThreshold))
	}
	if c.LivenessThreshold < 0 || c.LivenessThreshold > 1 {
		errs = append(errs, fmt.Errorf("LIVENESS_THRESHOLD must be in [0,1], got %v", c.LivenessThreshold))
	}
	if c.DetectionConfidence < 0 || c.DetectionConfidence > 1 {
		errs = append(errs, fmt.Errorf("DETECTION_CONFIDENCE must be in [0,1], got %v", c.DetectionConfidence))
	}
	if c.EnrollDuplicate < 0 || c.EnrollDuplicate > 1 {
		errs = append(errs, fmt.Errorf("ENROLL_DUPLICATE_THRESHOLD must be in [0,1], got %v", c.EnrollDuplicate))
	}
	if c.MinFaceSize < 1 {
		errs = append(errs, fmt.Errorf("MIN_FACE_SIZE must be positive, got %d", c.MinFaceSize))
	}
	if c.ProcessFPS < 1 {
		errs = append(errs, fmt.Errorf("PROCESS_FPS must be positive, got %d", c.ProcessFPS))
	}
	if c.DistanceMinM >= c.DistanceMaxM {
		errs = append(errs, fmt.Errorf("DISTANCE_MIN_M (%v) must be below DISTANCE_MAX_M (%v)", c.DistanceMinM, c.DistanceMaxM))
	}
	if c.DistanceEMAAlpha <= 0 || c.DistanceEMAAlpha > 1 {
		errs = append(errs, fmt.Errorf("DISTANCE_EMA_ALPHA must be in (0,1], got %v", c.DistanceEMAAlpha))
	}
	if len(c.DeviceClasses) == 0 {
		errs = append(errs, errors.New("DEVICE_CLASSES must list at least one class id"))
	}
	if c.EventCooldown < 0 || c.AttendanceCooldown < 0 || c.SpoofPenalty < 0 {
		errs = append(errs, errors.New("cooldowns must be >= 0"))
	}
	if c.MaxSnapshotAgeDays < 0 {
		errs = append(errs, fmt.Errorf("MAX_SNAPSHOT_AGE_DAYS must be >= 0, got %d", c.MaxSnapshotAgeDays))
	}
	if c.PersonIDPrefix == "" {
		errs = append(errs, errors.New("PERSON_ID_PREFIX must not be empty"))
	}
	if c.RequireAuth && c.APIKey == "" && c.APIKeyHash == "" {
		errs = append(errs, errors.New("API_KEY or API_KEY_HASH is required when REQUIRE_AUTH is set"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be >= 0, got %d", c.RateLimit))
	}

	switch c.AntiSpoofStrategy {
	case "device", "liveness":
	default:
		errs = append(errs, fmt.Errorf("ANTI_SPOOF_STRATEGY must be device or liveness, got %q", c.AntiSpoofStrategy))
	}

	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) StreamTimeout() time.Duration {
	return time.Duration(c.StreamTimeoutMS) * time.Millisecond
}

func (c *Config) CameraDefaults() CameraDefaults {
	return CameraDefaults{
		FPS:            c.ProcessFPS,
		ReconnectDelay: c.StreamReconnectDelay,
	}
}
