package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/dawn/pulse/schedule"
	"github.com/teranos/dawn/sym"
)

// FireCmd runs the payload once, now, through the same path as a scheduled fire
var FireCmd = &cobra.Command{
	Use:   "fire",
	Short: sym.Fire + " Run the payload once now",
	Long: sym.Fire + ` Run the payload once in the foreground.

The run is recorded in the execution history as a manual run. Manual runs
do not count towards the once-per-day limit of the polling scheduler.`,
	Args: cobra.NoArgs,
	RunE: runFire,
}

func runFire(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForInstall(); err != nil {
		return err
	}

	runner, closeRunner, err := buildRunner(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeRunner()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec, err := runner.Fire(ctx, schedule.TriggerManual, time.Now())
	if exec != nil && exec.Status == schedule.ExecutionStatusCompleted {
		fmt.Fprint(cmd.OutOrStdout(), pterm.Success.Sprintfln("Payload completed in %dms", derefInt(exec.DurationMs)))
	}
	return err
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
