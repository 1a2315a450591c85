package deepface

// RepresentRequest for POST /represent
type RepresentRequest struct {
	Img      string `json:"img"`      // data URI, base64 JPEG
	Model    string `json:"model"`    // "ArcFace", "Facenet512", etc
	Detector string `json:"detector"` // "retinaface", "skip" for pre-cropped faces
	Align    bool   `json:"align"`
}

// RepresentResponse from POST /represent
type RepresentResponse struct {
	Results []RepresentResult `json:"results"`
}

type RepresentResult struct {
	Embedding      []float64  `json:"embedding"`
	FacialArea     FacialArea `json:"facial_area"`
	FaceConfidence float64    `json:"face_confidence"`
}

type FacialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// ExtractRequest for POST /extract_faces
type ExtractRequest struct {
	Img      string `json:"img"`
	Detector string `json:"detector"`
}

// ExtractResponse from POST /extract_faces
type ExtractResponse struct {
	Results []ExtractResult `json:"results"`
}

type ExtractResult struct {
	FacialArea FacialArea `json:"facial_area"`
	Confidence float64    `json:"confidence"`
}
