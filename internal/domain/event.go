package domain

import "time"

const (
	RequestSourceAPI    = "api"
	RequestSourceWebcam = "webcam"
)

const (
	SpoofTypePrintOrScreen = "print_or_screen"
	SpoofTypeMobileDisplay = "mobile_display"
)

// DetectionEvent is an append-only audit row for one emitted identification
type DetectionEvent struct {
	ID                int64     `json:"id"`
	PersonID          *string   `json:"person_id"`
	PersonName        string    `json:"person_name,omitempty"`
	CameraID          string    `json:"camera_id"`
	Location          string    `json:"location,omitempty"`
	Confidence        float64   `json:"confidence"`
	EmbeddingDistance *float64  `json:"embedding_distance,omitempty"`
	SnapshotPath      string    `json:"snapshot_path,omitempty"`
	BoundingBox       *FaceBox  `json:"bounding_box,omitempty"`
	IsUnknown         bool      `json:"is_unknown"`
	Timestamp         time.Time `json:"timestamp"`
	ClientIP          string    `json:"client_ip,omitempty"`
	RequestSource     string    `json:"request_source"`
	SpoofingDetected  bool      `json:"spoofing_detected"`
	SpoofingReason    string    `json:"spoofing_reason,omitempty"`
	SpoofingType      string    `json:"spoofing_type,omitempty"`
	LivenessScore     *float64  `json:"liveness_score,omitempty"`
}

// EventFilter narrows detection event queries
type EventFilter struct {
	PersonID     string
	CameraID     string
	Location     string
	Since        time.Time
	KnownOnly    bool
	SpoofingOnly bool
	Limit        int
	Offset       int
}

// Event types published to websocket subscribers and webhooks
const (
	EventTypeDetection = "detection.created"
	EventTypeSpoofing  = "spoofing.detected"
)

func (e *DetectionEvent) Type() string {
	if e.SpoofingDetected {
		return EventTypeSpoofing
	}
	return EventTypeDetection
}
