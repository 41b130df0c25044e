package logger

// Standard field names for consistent structured logging across dawn.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldJobLabel    = "job_label"
	FieldExecutionID = "execution_id"
	FieldInstanceID  = "instance_id"

	// Components
	FieldComponent = "component"
	FieldBackend   = "backend"

	// Processes
	FieldPID      = "pid"
	FieldExitCode = "exit_code"
	FieldSignal   = "signal"
	FieldCommand  = "command"

	// Timing
	FieldDurationMS  = "duration_ms"
	FieldTriggerTime = "trigger_time"
	FieldNextRun     = "next_run"

	// Errors
	FieldError = "error"

	// Status
	FieldStatus = "status"
	FieldState  = "state"

	// Files and paths
	FieldPath   = "path"
	FieldBinary = "binary"

	// Symbol glyph attached by the Add*Symbol helpers
	FieldSymbol = "symbol"
)
