package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

type IdentificationData struct {
	PersonID          string  `json:"person_id,omitempty" example:"P001"`
	Name              string  `json:"name,omitempty" example:"Ana Souza"`
	Confidence        float64 `json:"confidence" example:"0.78"`
	EmbeddingDistance float64 `json:"embedding_distance" example:"0.22"`
}

type LivenessData struct {
	IsLive          bool    `json:"is_live" example:"true"`
	Confidence      float64 `json:"confidence" example:"0.91"`
	RawLiveness     float64 `json:"raw_liveness" example:"0.93"`
	ScreenArtifacts float64 `json:"screen_artifacts" example:"0.12"`
	Threshold       float64 `json:"threshold" example:"0.5"`
}

type IdentifyResponse struct {
	Status           string             `json:"status" example:"success"`
	Timestamp        string             `json:"timestamp" example:"2026-01-02T10:00:00Z"`
	CameraID         string             `json:"camera_id" example:"api_upload"`
	Identified       bool               `json:"identified" example:"true"`
	Result           IdentificationData `json:"result"`
	Liveness         *LivenessData      `json:"liveness,omitempty"`
	SnapshotURL      string             `json:"snapshot_url,omitempty" example:"http://localhost:3000/snapshots/events/2026-01-02/api.jpg"`
	EventID          int64              `json:"event_id,omitempty" example:"1042"`
	ProcessingTimeMs float64            `json:"processing_time_ms" example:"84.2"`
}

type EnrollResponse struct {
	Status            string `json:"status" example:"success"`
	PersonID          string `json:"person_id" example:"P001"`
	Name              string `json:"name" example:"Ana Souza"`
	Message           string `json:"message" example:"person enrolled"`
	EmbeddingsCreated int    `json:"embeddings_created" example:"3"`
	ImagesSkipped     int    `json:"images_skipped" example:"0"`
	SnapshotSaved     bool   `json:"snapshot_saved" example:"true"`
}

type PersonData struct {
	PersonID       string `json:"person_id" example:"P001"`
	Name           string `json:"name" example:"Ana Souza"`
	Department     string `json:"department,omitempty" example:"TI"`
	IsActive       bool   `json:"is_active" example:"true"`
	EmbeddingCount int    `json:"embedding_count" example:"3"`
	CreatedAt      string `json:"created_at" example:"2026-01-02T10:00:00Z"`
}

type PersonResponse struct {
	Status string     `json:"status" example:"success"`
	Person PersonData `json:"person"`
}

type PersonsResponse struct {
	Status  string       `json:"status" example:"success"`
	Total   int          `json:"total" example:"1"`
	Persons []PersonData `json:"persons"`
}

type HealthResponse struct {
	Status        string `json:"status" example:"healthy"`
	TotalPersons  int    `json:"total_persons" example:"120"`
	ActivePersons int    `json:"active_persons" example:"118"`
	GalleryRows   int    `json:"gallery_rows" example:"354"`
	WebcamActive  bool   `json:"webcam_active" example:"true"`
	APIVersion    string `json:"api_version" example:"1.0.0"`
}

type ThresholdResponse struct {
	Status       string  `json:"status" example:"success"`
	OldThreshold float64 `json:"old_threshold" example:"0.4"`
	NewThreshold float64 `json:"new_threshold" example:"0.5"`
}

type CleanupResponse struct {
	Status       string `json:"status" example:"success"`
	FilesRemoved int    `json:"files_removed" example:"37"`
	MaxAgeDays   int    `json:"max_age_days" example:"7"`
}

type ReloadResponse struct {
	Status      string `json:"status" example:"success"`
	TotalLoaded int    `json:"total_loaded" example:"118"`
}

type DetectionEventData struct {
	ID               int64   `json:"id" example:"1042"`
	PersonID         string  `json:"person_id" example:"P001"`
	PersonName       string  `json:"person_name,omitempty" example:"Ana Souza"`
	CameraID         string  `json:"camera_id" example:"cam-portaria"`
	Location         string  `json:"location,omitempty" example:"Portaria"`
	Confidence       float64 `json:"confidence" example:"0.78"`
	SnapshotPath     string  `json:"snapshot_path,omitempty" example:"events/2026-01-02/P001.jpg"`
	IsUnknown        bool    `json:"is_unknown" example:"false"`
	Timestamp        string  `json:"timestamp" example:"2026-01-02T10:00:00Z"`
	RequestSource    string  `json:"request_source" example:"webcam"`
	SpoofingDetected bool    `json:"spoofing_detected" example:"false"`
}

type EventsResponse struct {
	Status   string               `json:"status" example:"success"`
	Page     int                  `json:"page" example:"1"`
	PageSize int                  `json:"page_size" example:"50"`
	Count    int                  `json:"count" example:"1"`
	Events   []DetectionEventData `json:"events"`
}

type StreamData struct {
	Name         string `json:"name" example:"portaria"`
	Running      bool   `json:"running" example:"true"`
	CameraID     string `json:"camera_id" example:"cam-portaria"`
	Location     string `json:"location" example:"Portaria"`
	State        string `json:"state" example:"streaming"`
	ActiveSource string `json:"active_source,omitempty" example:"rtsp://10.0.0.5/stream1"`
}

type WebhookData struct {
	ID      string   `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name    string   `json:"name" example:"erp"`
	URL     string   `json:"url" example:"https://erp.example.com/hooks/vigia"`
	Events  []string `json:"events" example:"detection.created"`
	Enabled bool     `json:"enabled" example:"true"`
}

type CreateWebhookResponse struct {
	Webhook WebhookData `json:"webhook"`
	Secret  string      `json:"secret" example:"whsec_3f1c..."`
}

// EmptyResponse represents no content response (204)
type EmptyResponse struct{}

var (
	errUnauthorized = response.New(ErrorResponse{Code: "UNAUTHORIZED", Message: "Invalid or missing API key"}, "401", "Unauthorized")
	errInternal     = response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error")
	apiKeyAuth      = []map[string][]string{{"ApiKeyAuth": {}}}
)

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Vigia Face Identification API",
		Version:     "v1.0.0",
		Description: "Identifies enrolled people from uploaded images and live camera streams, with anti-spoofing",
		Host:        "localhost:3000",
		Path:        "/api/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /api/v1/identify_image
		endpoint.New(
			endpoint.POST,
			"/identify_image",
			endpoint.WithTags("Recognition"),
			endpoint.WithSummary("Identify the first face in an image"),
			endpoint.WithDescription("Accepts a multipart 'image' file or a base64 'image_b64' field. Unknown faces are a normal result. Rate limited per client IP."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("camera_id", parameter.Query, parameter.WithDescription("Camera identifier (form field; default: api_upload)")),
				parameter.StrParam("location", parameter.Query, parameter.WithDescription("Free-form location (form field)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(IdentifyResponse{}, "200", "Identification completed"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "SPOOFING_DETECTED", Message: "Liveness check failed, possible spoofing attempt"}, "403", "Forbidden"),
				response.New(ErrorResponse{Code: "NO_FACE_DETECTED", Message: "No face detected in the image"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded"}, "429", "Too Many Requests"),
				errInternal,
			}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// POST /api/v1/enroll_person
		endpoint.New(
			endpoint.POST,
			"/enroll_person",
			endpoint.WithTags("Persons"),
			endpoint.WithSummary("Enroll a person from one or more images"),
			endpoint.WithDescription("Form fields: name, person_id (optional, generated when empty), department, metadata (JSON). Repeat 'image' for multiple photos."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EnrollResponse{}, "201", "Person enrolled"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "PERSON_ALREADY_EXISTS", Message: "Person ID already exists"}, "400", "Bad Request"),
				errUnauthorized,
				response.New(ErrorResponse{Code: "FACE_BIOMETRIC_EXISTS", Message: "This face is already registered with another identity"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "NO_FACE_DETECTED", Message: "No face detected in the image"}, "422", "Unprocessable Entity"),
				errInternal,
			}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// POST /api/v1/enroll_urls
		endpoint.New(
			endpoint.POST,
			"/enroll_urls",
			endpoint.WithTags("Persons"),
			endpoint.WithSummary("Enroll a person from image URLs"),
			endpoint.WithDescription("JSON body with name, person_id, department, metadata and image_urls. Unreachable URLs are skipped."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EnrollResponse{}, "201", "Person enrolled"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
				errInternal,
			}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// GET /api/v1/person/{id}
		endpoint.New(
			endpoint.GET,
			"/person/{id}",
			endpoint.WithTags("Persons"),
			endpoint.WithSummary("Get a person"),
			endpoint.WithDescription("Returns the person and how many embeddings are stored. Vectors are never returned."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Person ID")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(PersonResponse{}, "200", "Person found"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "PERSON_NOT_FOUND", Message: "Person not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// GET /api/v1/persons
		endpoint.New(
			endpoint.GET,
			"/persons",
			endpoint.WithTags("Persons"),
			endpoint.WithSummary("List persons"),
			endpoint.WithDescription("Lists enrolled persons, active only unless active_only=false"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("active_only", parameter.Query, parameter.WithDescription("true|false (default: true)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(PersonsResponse{}, "200", "Persons listed"),
			}),
			endpoint.WithErrors([]response.Response{errUnauthorized, errInternal}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// DELETE /api/v1/person/{id}
		endpoint.New(
			endpoint.DELETE,
			"/person/{id}",
			endpoint.WithTags("Persons"),
			endpoint.WithSummary("Deactivate a person"),
			endpoint.WithDescription("Marks the person inactive and reloads the gallery. The record is kept."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Person ID")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EmptyResponse{}, "200", "Person deactivated"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "PERSON_NOT_FOUND", Message: "Person not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// GET /api/v1/health
		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("System"),
			endpoint.WithSummary("Health check"),
			endpoint.WithDescription("No authentication. Returns 503 when the database cannot be reached."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Healthy"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(HealthResponse{Status: "degraded"}, "503", "Service Unavailable"),
			}),
		),

		// GET /api/v1/status
		endpoint.New(
			endpoint.GET,
			"/status",
			endpoint.WithTags("System"),
			endpoint.WithSummary("Detailed system status"),
			endpoint.WithDescription("Database counts, gallery size, threshold, anti-spoof strategy, snapshot storage and camera streams"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Status"),
			}),
			endpoint.WithErrors([]response.Response{errUnauthorized, errInternal}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// POST /api/v1/threshold
		endpoint.New(
			endpoint.POST,
			"/threshold",
			endpoint.WithTags("System"),
			endpoint.WithSummary("Change the recognition threshold"),
			endpoint.WithDescription("Applies immediately to uploads and streams. Not persisted across restarts."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("threshold", parameter.Query, parameter.WithDescription("Similarity threshold between 0 and 1")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ThresholdResponse{}, "200", "Threshold changed"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "INVALID_THRESHOLD", Message: "Threshold must be between 0 and 1"}, "422", "Unprocessable Entity"),
			}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// POST /api/v1/cleanup_snapshots
		endpoint.New(
			endpoint.POST,
			"/cleanup_snapshots",
			endpoint.WithTags("System"),
			endpoint.WithSummary("Remove old snapshots"),
			endpoint.WithDescription("Deletes snapshot files older than max_age_days"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.IntParam("max_age_days", parameter.Query, parameter.WithDescription("Age in days (default: MAX_SNAPSHOT_AGE_DAYS)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CleanupResponse{}, "200", "Snapshots removed"),
			}),
			endpoint.WithErrors([]response.Response{errUnauthorized, errInternal}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// POST /api/v1/reload_persons
		endpoint.New(
			endpoint.POST,
			"/reload_persons",
			endpoint.WithTags("System"),
			endpoint.WithSummary("Reload the gallery"),
			endpoint.WithDescription("Rebuilds the in-memory gallery from active persons and swaps it atomically"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ReloadResponse{}, "200", "Gallery reloaded"),
			}),
			endpoint.WithErrors([]response.Response{errUnauthorized, errInternal}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// GET /api/v1/detection_events
		endpoint.New(
			endpoint.GET,
			"/detection_events",
			endpoint.WithTags("Events"),
			endpoint.WithSummary("List detection events"),
			endpoint.WithDescription("Newest first. Unknown faces are excluded unless include_unknown=true."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("person_id", parameter.Query, parameter.WithDescription("Filter by person")),
				parameter.StrParam("camera_id", parameter.Query, parameter.WithDescription("Filter by camera")),
				parameter.StrParam("location", parameter.Query, parameter.WithDescription("Filter by location")),
				parameter.IntParam("hours", parameter.Query, parameter.WithDescription("Look-back window in hours (1-720, default: 24)")),
				parameter.StrParam("include_unknown", parameter.Query, parameter.WithDescription("true|false (default: false)")),
				parameter.StrParam("spoofing_only", parameter.Query, parameter.WithDescription("true|false (default: false)")),
				parameter.IntParam("page", parameter.Query, parameter.WithDescription("Page number (default: 1)")),
				parameter.IntParam("page_size", parameter.Query, parameter.WithDescription("Page size (1-500, default: 50)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EventsResponse{}, "200", "Events listed"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
			}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// GET /api/v1/detection_events/latest
		endpoint.New(
			endpoint.GET,
			"/detection_events/latest",
			endpoint.WithTags("Events"),
			endpoint.WithSummary("Latest detection event"),
			endpoint.WithDescription("Newest event, optionally for one camera or person"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("camera_id", parameter.Query, parameter.WithDescription("Filter by camera")),
				parameter.StrParam("person_id", parameter.Query, parameter.WithDescription("Filter by person")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(DetectionEventData{}, "200", "Latest event"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "NOT_FOUND", Message: "Resource not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// GET /api/v1/streams
		endpoint.New(
			endpoint.GET,
			"/streams",
			endpoint.WithTags("Streams"),
			endpoint.WithSummary("Camera stream states"),
			endpoint.WithDescription("State of every configured camera stream keyed by name"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(StreamData{}, "200", "Streams"),
			}),
			endpoint.WithErrors([]response.Response{errUnauthorized}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// GET /api/v1/streams/{name}
		endpoint.New(
			endpoint.GET,
			"/streams/{name}",
			endpoint.WithTags("Streams"),
			endpoint.WithSummary("One camera stream"),
			endpoint.WithDescription("State of a single camera stream"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("name", parameter.Path, parameter.WithDescription("Stream name from the cameras file")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(StreamData{}, "200", "Stream"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "STREAM_NOT_FOUND", Message: "Stream not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// GET /api/v1/webhooks
		endpoint.New(
			endpoint.GET,
			"/webhooks",
			endpoint.WithTags("Webhooks"),
			endpoint.WithSummary("List webhooks"),
			endpoint.WithDescription("Secrets are never listed"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(WebhookData{}, "200", "Webhooks"),
			}),
			endpoint.WithErrors([]response.Response{errUnauthorized, errInternal}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// POST /api/v1/webhooks
		endpoint.New(
			endpoint.POST,
			"/webhooks",
			endpoint.WithTags("Webhooks"),
			endpoint.WithSummary("Create a webhook"),
			endpoint.WithDescription("Events: detection.created, spoofing.detected or *. The signing secret is returned only once."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CreateWebhookResponse{}, "201", "Webhook created"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity"),
			}),
			endpoint.WithSecurity(apiKeyAuth),
		),

		// DELETE /api/v1/webhooks/{id}
		endpoint.New(
			endpoint.DELETE,
			"/webhooks/{id}",
			endpoint.WithTags("Webhooks"),
			endpoint.WithSummary("Delete a webhook"),
			endpoint.WithDescription("Pending deliveries are dropped with it"),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Webhook UUID")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EmptyResponse{}, "204", "Webhook deleted"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "WEBHOOK_NOT_FOUND", Message: "Webhook not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity(apiKeyAuth),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
