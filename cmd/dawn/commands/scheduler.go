package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teranos/dawn/am"
	"github.com/teranos/dawn/errors"
	"github.com/teranos/dawn/logger"
	"github.com/teranos/dawn/proc"
	"github.com/teranos/dawn/pulse/schedule"
	"github.com/teranos/dawn/version"
)

// SchedulerCmd is the polling scheduler process spawned by 'dawn install polling'
var SchedulerCmd = &cobra.Command{
	Use:    "scheduler",
	Short:  "Run the polling scheduler in the foreground",
	Hidden: true,
	Long: `Run the polling scheduler in the foreground.

Every check interval the wall clock is compared with the trigger time. In the
trigger minute the payload runs once, at most once per calendar date.

The first SIGTERM or SIGINT lets a running payload finish, a second one
cancels it.`,
	Args: cobra.NoArgs,
	RunE: runScheduler,
}

func init() {
	SchedulerCmd.Flags().Bool("write-pid", false, "Record this process in the PID file (for foreground use)")
	SchedulerCmd.Flags().String("log-file", "", "Also append logs to this file")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if logFile, _ := cmd.Flags().GetString("log-file"); logFile != "" {
		level := logger.VerbosityToLevel(logger.VerbosityInfo)
		if err := logger.InitializeWithFile(cfg.Log.JSON, level, am.ExpandHome(logFile)); err != nil {
			return err
		}
	}
	log := logger.AddPulseOpenSymbol(logger.Logger)

	trigger, err := schedule.ParseTrigger(cfg.Job.TriggerTime)
	if err != nil {
		return errors.Mark(err, errors.ErrInvalidConfig)
	}

	runner, closeRunner, err := buildRunner(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer closeRunner()

	if writePID, _ := cmd.Flags().GetBool("write-pid"); writePID {
		records := proc.NewRecordStore(cfg.PIDPath())
		rec := &proc.Record{
			PID:        os.Getpid(),
			StartedAt:  time.Now(),
			Version:    version.Version,
			InstanceID: uuid.NewString(),
		}
		if err := records.Save(rec); err != nil {
			return err
		}
		defer removeOwnRecord(records, rec.PID)
	}

	watcher := watchConfig()
	if watcher != nil {
		defer watcher.Stop()
	}

	ticker := schedule.NewTicker(runner, schedule.TickerConfig{
		Trigger:  trigger,
		Interval: cfg.CheckInterval(),
	}, logger.Logger)
	ticker.Start()

	log.Infow("Polling scheduler running",
		logger.FieldPID, os.Getpid(),
		logger.FieldJobLabel, cfg.Job.Label)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	logger.AddPulseCloseSymbol(logger.Logger).Infow("Shutting down, waiting for a running payload", logger.FieldSignal, sig.String())

	stopped := make(chan struct{})
	go func() {
		ticker.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case sig := <-sigChan:
		logger.AddPulseCloseSymbol(logger.Logger).Warnw("Second signal, cancelling payload", logger.FieldSignal, sig.String())
		ticker.Abort()
		<-stopped
	}
	return nil
}

// watchConfig warns when the configuration changes under a running scheduler.
// The new settings apply only after reinstalling.
func watchConfig() *am.ConfigWatcher {
	var paths []string
	for _, src := range am.Sources() {
		if src.Exists {
			paths = append(paths, src.Path)
		}
	}
	if len(paths) == 0 {
		return nil
	}

	watcher, err := am.NewConfigWatcher(paths...)
	if err != nil {
		logger.Warnw("Config watcher unavailable", logger.FieldError, err)
		return nil
	}
	watcher.OnReload(func(cfg *am.Config) error {
		logger.Warnw("Configuration changed; run 'dawn install polling' to apply it",
			logger.FieldTriggerTime, cfg.Job.TriggerTime)
		return nil
	})
	am.SetGlobalWatcher(watcher)
	watcher.Start()
	return watcher
}

// removeOwnRecord removes the PID record unless another scheduler has replaced it
func removeOwnRecord(records *proc.RecordStore, pid int) {
	rec, err := records.Load()
	if err != nil || rec == nil || rec.PID != pid {
		return
	}
	if err := records.Remove(); err != nil {
		logger.Warnw("Failed to remove PID record", logger.FieldError, err)
	}
}
