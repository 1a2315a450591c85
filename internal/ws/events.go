package ws

import (
	"time"
)

// Event is the frame sent to subscribers. Type is one of
// domain.EventTypeDetection or domain.EventTypeSpoofing.
type Event struct {
	CameraID  string    `json:"camera_id"`
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}
