package domain

// Identification is the outcome of matching one face against the gallery.
// PersonID is empty when the face was not recognised.
type Identification struct {
	PersonID            string          `json:"person_id,omitempty"`
	Name                string          `json:"name,omitempty"`
	Similarity          float64         `json:"confidence"`
	EmbeddingDistance   float64         `json:"embedding_distance"`
	Box                 *FaceBox        `json:"bounding_box,omitempty"`
	DistanceM           *float64        `json:"distance_m,omitempty"`
	DistanceWithinRange *bool           `json:"distance_within_range,omitempty"`
	DistanceAlert       *bool           `json:"distance_alert,omitempty"`
	Liveness            *LivenessResult `json:"liveness,omitempty"`
}

func (i *Identification) Known() bool {
	return i != nil && i.PersonID != ""
}

// LivenessResult describes a passive liveness check on a full frame
type LivenessResult struct {
	IsLive          bool    `json:"is_live"`
	Confidence      float64 `json:"confidence"`
	RawLiveness     float64 `json:"raw_liveness"`
	ScreenArtifacts float64 `json:"screen_artifacts"`
	Threshold       float64 `json:"threshold"`
	Model           string  `json:"model,omitempty"`
	NumFaces        int     `json:"num_faces"`
	Error           string  `json:"error,omitempty"`
}
