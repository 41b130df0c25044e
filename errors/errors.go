// Package errors provides error handling for dawn.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints attached to errors
//
// Usage:
//
//	// Wrap with context
//	if err := os.MkdirAll(dir, 0755); err != nil {
//	    return errors.Wrap(errors.Mark(err, errors.ErrSetup), "create log directory")
//	}
//
//	// Add hints for users
//	return errors.WithHint(err, "run 'dawn install polling' to restart the scheduler")
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
	CombineErrors      = crdb.CombineErrors
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails

	GetReportableStackTrace = crdb.GetReportableStackTrace
)

// Sentinel errors for the job lifecycle.
// Mark or wrap these so callers can classify failures with errors.Is().
var (
	// ErrSetup indicates a required directory or file operation failed
	ErrSetup = New("setup failed")

	// ErrRegistration indicates the OS scheduler rejected a registration
	ErrRegistration = New("scheduler registration failed")

	// ErrNotAlive indicates a spawned process was not alive after its grace period
	ErrNotAlive = New("process not alive after grace period")

	// ErrStaleRecord indicates a PID record names a process that is no longer running
	ErrStaleRecord = New("stale process record")

	// ErrNotRegistered indicates the job is not known to the OS scheduler
	ErrNotRegistered = New("job not registered")

	// ErrInvalidConfig indicates the configuration cannot describe a runnable job
	ErrInvalidConfig = New("invalid configuration")
)

// IsSetupError checks if an error is or wraps ErrSetup
func IsSetupError(err error) bool {
	return err != nil && Is(err, ErrSetup)
}

// IsNotRegistered checks if an error is or wraps ErrNotRegistered
func IsNotRegistered(err error) bool {
	return err != nil && Is(err, ErrNotRegistered)
}

// Setupf creates a setup error with a formatted message, wrapping cause.
func Setupf(cause error, format string, args ...interface{}) error {
	return Wrapf(Mark(cause, ErrSetup), format, args...)
}
