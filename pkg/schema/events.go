// pkg/schema/events.go
package schema

type CompileStage string

const (
	StageReceived     CompileStage = "received"
	StagePreparing    CompileStage = "preparing"
	StageCompiling    CompileStage = "compiling"
	StageAligning     CompileStage = "aligning"
	StageRendering    CompileStage = "rendering"
	StageQrGenerating CompileStage = "qr_generating"
	StageSucceeded    CompileStage = "succeeded"
	StageFailed       CompileStage = "failed"
)

type FailureType string

const (
	FailureTypeRetryable  FailureType = "retryable"
	FailureTypePermanent  FailureType = "permanent"
	FailureTypeValidation FailureType = "validation"
)

// CompileLifecycleEvent is published to the bus at each stage boundary so
// operators can watch long compilations progress.
type CompileLifecycleEvent struct {
	JobID           string       `json:"job_id"`
	ProjectID       string       `json:"project_id"`
	Stage           CompileStage `json:"stage"`
	MarkersCount    int          `json:"markers_count,omitempty"`
	ProcessingStart int64        `json:"processing_start,omitempty"`
	ProcessingEnd   int64        `json:"processing_end,omitempty"`
	Error           string       `json:"error,omitempty"`
	FailureType     FailureType  `json:"failure_type,omitempty"`
	HappenedAt      int64        `json:"happened_at"`
}

// CompileDone is the terminal bus event for one job attempt.
type CompileDone struct {
	JobID             string      `json:"job_id"`
	ProjectID         string      `json:"project_id"`
	Success           bool        `json:"success"`
	CompilationTimeMs int64       `json:"compilation_time_ms"`
	MarkerMindURL     string      `json:"marker_mind_url,omitempty"`
	ViewerHTMLURL     string      `json:"viewer_html_url,omitempty"`
	QRCodeURL         string      `json:"qr_code_url,omitempty"`
	Error             string      `json:"error,omitempty"`
	FailureType       FailureType `json:"failure_type,omitempty"`
	HappenedAt        int64       `json:"happened_at"`
}

// Webhook event names consumed by the storefront backend.
const (
	EventCompilationComplete = "ar.compilation.complete"
	EventCompilationFailed   = "ar.compilation.failed"
)

// WebhookEnvelope wraps every webhook delivery.
type WebhookEnvelope struct {
	Event     string `json:"event"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// CompilationCompletePayload is sent when a project compiled successfully.
type CompilationCompletePayload struct {
	ProjectID string `json:"projectId"`
	ViewURL   string `json:"viewUrl"`
	QRCodeURL string `json:"qrCodeUrl"`
	Status    string `json:"status"` // always "ready"
}

// CompilationFailedPayload is sent when a project failed to compile.
type CompilationFailedPayload struct {
	ProjectID    string `json:"projectId"`
	ErrorMessage string `json:"errorMessage"`
	Status       string `json:"status"` // always "error"
}
