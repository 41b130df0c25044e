package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/dawn/lifecycle"
	"github.com/teranos/dawn/logger"
	"github.com/teranos/dawn/sym"
)

// UninstallCmd removes the job from a backend
var UninstallCmd = &cobra.Command{
	Use:       "uninstall {native|polling|all}",
	Short:     sym.Uninstall + " Remove the job from a backend",
	ValidArgs: []string{string(lifecycle.Native), string(lifecycle.Polling), string(lifecycle.All)},
	Long: sym.Uninstall + ` Remove the job from a backend.

native   unloads the launchd job and deletes its descriptor.
polling  stops the scheduler (SIGTERM, then SIGKILL after the grace period)
         and removes its PID record and launcher script.
all      does both; a failure in one does not stop the other.

Uninstalling something that is not installed succeeds.`,
	Args: backendArg(true),
	RunE: runUninstall,
}

func runUninstall(cmd *cobra.Command, args []string) error {
	backend, err := lifecycle.ParseBackend(args[0], true)
	if err != nil {
		return err
	}

	cfg, err := loadConfigLenient()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		if cfg.Job.Label == "" {
			return err
		}
		// Only the label and paths are needed to tear down
		logger.Warnw("Uninstalling despite invalid configuration", logger.FieldError, err)
	}

	result, err := newManager(cfg).Uninstall(cmd.Context(), backend)
	out := cmd.OutOrStdout()
	if result != nil {
		if result.NativeUnloaded {
			fmt.Fprintf(out, "  Unloaded %s from launchd\n", cfg.Job.Label)
		}
		if result.DescriptorRemoved {
			fmt.Fprintf(out, "  Removed %s\n", cfg.DescriptorPath())
		}
		if result.StoppedPID != 0 {
			how := "stopped"
			if result.Forced {
				how = "killed"
			}
			fmt.Fprintf(out, "  Scheduler PID %d %s\n", result.StoppedPID, how)
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprint(out, pterm.Success.Sprintfln("Uninstalled (%s)", backend))
	return nil
}
