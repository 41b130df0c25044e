package commands

import (
	"database/sql"
	"io"

	"github.com/teranos/dawn/am"
	"github.com/teranos/dawn/db"
	"github.com/teranos/dawn/logger"
	"github.com/teranos/dawn/notify"
	"github.com/teranos/dawn/pulse/schedule"
)

// buildRunner wires the payload, the execution store, and notifications.
// History is best effort: when the database cannot be opened the runner
// still fires, it just records nothing. The returned close func is never nil.
func buildRunner(cfg *am.Config, output io.Writer) (*schedule.Runner, func(), error) {
	argv, err := cfg.PayloadArgv()
	if err != nil {
		return nil, func() {}, err
	}
	payload := schedule.Payload{Argv: argv, Dir: cfg.WorkingDir(), EnvFile: cfg.EnvFilePath()}

	var (
		store *schedule.ExecutionStore
		conn  *sql.DB
	)
	conn, err = db.OpenWithMigrations(cfg.DatabasePath(), logger.Logger)
	if err != nil {
		logger.AddDBSymbol(logger.Logger).Warnw("Execution history disabled",
			logger.FieldPath, cfg.DatabasePath(),
			logger.FieldError, err)
	} else {
		store = schedule.NewExecutionStore(conn)
	}

	var broadcaster schedule.ExecutionBroadcaster
	if cfg.Notify.Enabled {
		broadcaster = notify.NewExecutionNotifier(notify.NewDesktop(), notify.Policy{
			OnSuccess: cfg.Notify.OnSuccess,
			OnFailure: cfg.Notify.OnFailure,
		}, "")
	}

	runner := schedule.NewRunner(schedule.RunnerConfig{
		JobLabel:     cfg.Job.Label,
		Payload:      payload,
		PreviewChars: cfg.Polling.OutputPreviewChars,
		Output:       output,
	}, store, broadcaster, logger.Logger)

	closeFn := func() {
		if conn != nil {
			conn.Close()
		}
	}
	return runner, closeFn, nil
}
