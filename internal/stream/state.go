package stream

import "fmt"

// State is the lifecycle of one processor
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of a processor
type Status struct {
	Name         string   `json:"name"`
	Running      bool     `json:"running"`
	CameraID     string   `json:"camera_id"`
	Location     string   `json:"location"`
	State        State    `json:"state"`
	ActiveSource string   `json:"active_source,omitempty"`
	// DistanceEMA is the smoothed distance of the first face, in meters
	DistanceEMA  *float64 `json:"distance_ema_m,omitempty"`
}
