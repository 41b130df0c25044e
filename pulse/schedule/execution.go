package schedule

// Execution represents a single run of the payload.
//
// Each fire of the polling scheduler (and each manual `dawn fire`) records
// one Execution: timing, exit status, and a short preview of the output.
// The trigger date doubles as the double-fire guard across restarts.
type Execution struct {
	// Identity
	ID       string `json:"id" yaml:"id"` // PEX_{random}_{timestamp} format
	JobLabel string `json:"job_label" yaml:"job_label"`
	Trigger  string `json:"trigger" yaml:"trigger"` // "schedule" or "manual"

	Status string `json:"status" yaml:"status"` // "running", "completed", "failed"

	// Timing
	TriggerDate string  `json:"trigger_date" yaml:"trigger_date"`                     // local YYYY-MM-DD the trigger fired for
	StartedAt   string  `json:"started_at" yaml:"started_at"`                         // RFC3339 timestamp
	CompletedAt *string `json:"completed_at,omitempty" yaml:"completed_at,omitempty"` // RFC3339 timestamp (null if running)
	DurationMs  *int    `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`   // Milliseconds (null if running)

	// Outcome
	ExitCode      *int    `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	OutputPreview *string `json:"output_preview,omitempty" yaml:"output_preview,omitempty"` // first N chars of combined output
	ErrorMessage  *string `json:"error_message,omitempty" yaml:"error_message,omitempty"`

	// Metadata
	CreatedAt string `json:"created_at" yaml:"created_at"` // RFC3339 timestamp
	UpdatedAt string `json:"updated_at" yaml:"updated_at"` // RFC3339 timestamp
}

// Execution status constants for type safety
const (
	ExecutionStatusRunning   = "running"
	ExecutionStatusCompleted = "completed"
	ExecutionStatusFailed    = "failed"
)

// Trigger sources
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// TriggerDateLayout formats Execution.TriggerDate
const TriggerDateLayout = "2006-01-02"
