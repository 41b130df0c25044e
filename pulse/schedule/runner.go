package schedule

import (
	"context"
	"io"
	"time"

	"github.com/teranos/vanity-id"
	"go.uber.org/zap"

	"github.com/teranos/dawn/db"
	"github.com/teranos/dawn/errors"
	"github.com/teranos/dawn/internal/util"
	"github.com/teranos/dawn/logger"
)

// DefaultOutputPreviewChars bounds the output kept in logs and history
const DefaultOutputPreviewChars = 500

// ExecutionBroadcaster receives execution lifecycle events (desktop notifications).
type ExecutionBroadcaster interface {
	BroadcastExecutionStarted(exec *Execution)
	BroadcastExecutionFinished(exec *Execution)
}

// RunnerConfig configures a Runner
type RunnerConfig struct {
	JobLabel     string
	Payload      Payload
	PreviewChars int       // 0 = DefaultOutputPreviewChars
	Output       io.Writer // receives live payload output; nil = discard
}

// Runner performs one Fire: run the payload, record the Execution, broadcast.
// Both the polling scheduler and `dawn fire` go through it.
type Runner struct {
	cfg         RunnerConfig
	store       *ExecutionStore // nil = history disabled
	broadcaster ExecutionBroadcaster
	pulseLog    *zap.SugaredLogger
	now         func() time.Time
}

// NewRunner creates a runner. store and broadcaster may be nil.
func NewRunner(cfg RunnerConfig, store *ExecutionStore, broadcaster ExecutionBroadcaster, log *zap.SugaredLogger) *Runner {
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = DefaultOutputPreviewChars
	}
	return &Runner{
		cfg:         cfg,
		store:       store,
		broadcaster: broadcaster,
		pulseLog:    logger.AddPulseSymbol(log),
		now:         time.Now,
	}
}

// Store returns the execution store, or nil when history is disabled.
func (r *Runner) Store() *ExecutionStore {
	return r.store
}

// JobLabel returns the job this runner fires.
func (r *Runner) JobLabel() string {
	return r.cfg.JobLabel
}

// Fire runs the payload once for the given trigger source and fire time.
// Returns the recorded execution; the error is non-nil when the payload
// failed to start, was cancelled, or exited non-zero.
func (r *Runner) Fire(ctx context.Context, source string, firedAt time.Time) (*Execution, error) {
	startTime := r.now()

	execution := &Execution{
		ID:          id.GenerateExecutionID(),
		JobLabel:    r.cfg.JobLabel,
		Trigger:     source,
		Status:      ExecutionStatusRunning,
		TriggerDate: firedAt.Format(TriggerDateLayout),
		StartedAt:   startTime.Format(time.RFC3339),
		CreatedAt:   startTime.Format(time.RFC3339),
		UpdatedAt:   startTime.Format(time.RFC3339),
	}

	r.pulseLog.Infow("Running payload",
		logger.FieldJobLabel, r.cfg.JobLabel,
		logger.FieldExecutionID, execution.ID,
		logger.FieldCommand, r.cfg.Payload.Argv,
		"trigger", source)

	if r.store != nil {
		if err := r.store.CreateExecution(execution); err != nil {
			// History is nice-to-have, the payload still runs
			r.historyError("Failed to create execution record", execution, err)
		}
	}

	if r.broadcaster != nil {
		r.broadcaster.BroadcastExecutionStarted(execution)
	}

	result, runErr := r.cfg.Payload.Run(ctx, r.cfg.Output)

	completedAt := r.now()
	durationMs := int(completedAt.Sub(startTime).Milliseconds())
	execution.CompletedAt = util.Ptr(completedAt.Format(time.RFC3339))
	execution.DurationMs = &durationMs
	execution.UpdatedAt = completedAt.Format(time.RFC3339)

	if result != nil {
		execution.ExitCode = util.Ptr(result.ExitCode)
		execution.OutputPreview = util.Ptr(util.Truncate(result.Output, r.cfg.PreviewChars))
	}

	var err error
	switch {
	case runErr != nil:
		err = runErr
	case !result.Succeeded():
		err = errors.Newf("payload exited with code %d", result.ExitCode)
	}

	if err != nil {
		execution.Status = ExecutionStatusFailed
		execution.ErrorMessage = util.Ptr(err.Error())

		r.pulseLog.Errorw("Payload FAILED",
			logger.FieldExecutionID, execution.ID,
			logger.FieldExitCode, execution.ExitCode,
			logger.FieldDurationMS, durationMs,
			"output", derefOr(execution.OutputPreview, ""),
			logger.FieldError, err)
	} else {
		execution.Status = ExecutionStatusCompleted

		r.pulseLog.Infow("Payload OK",
			logger.FieldExecutionID, execution.ID,
			logger.FieldExitCode, 0,
			logger.FieldDurationMS, durationMs,
			"output", derefOr(execution.OutputPreview, ""))
	}

	if r.store != nil {
		if uerr := r.store.UpdateExecution(execution); uerr != nil {
			r.historyError("Failed to update execution record", execution, uerr)
		}
	}

	if r.broadcaster != nil {
		r.broadcaster.BroadcastExecutionFinished(execution)
	}

	return execution, err
}

// historyError logs a failed history write. The scheduler closes the
// database on shutdown while an aborted payload may still be finishing,
// so a closed database is expected there and only warned about.
func (r *Runner) historyError(msg string, execution *Execution, err error) {
	if db.IsDatabaseClosed(err) {
		r.pulseLog.Warnw(msg+" (history closed during shutdown)",
			logger.FieldExecutionID, execution.ID,
			logger.FieldStatus, execution.Status)
		return
	}
	r.pulseLog.Errorw(msg,
		logger.FieldExecutionID, execution.ID,
		logger.FieldError, err)
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
