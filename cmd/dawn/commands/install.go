package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/dawn/lifecycle"
	"github.com/teranos/dawn/sym"
)

// InstallCmd registers the daily job with a backend
var InstallCmd = &cobra.Command{
	Use:       "install {native|polling}",
	Short:     sym.Install + " Register the daily job with a backend",
	ValidArgs: []string{string(lifecycle.Native), string(lifecycle.Polling)},
	Long: sym.Install + ` Register the daily job with a backend.

native   writes a launchd descriptor to ~/Library/LaunchAgents and loads it.
polling  spawns a detached 'dawn scheduler' process and records its PID.

Reinstalling replaces the previous installation on the same backend.

Examples:
  dawn install native
  dawn install polling --launcher`,
	Args: backendArg(false),
	RunE: runInstall,
}

func init() {
	InstallCmd.Flags().Bool("launcher", false, "Also write ~/.dawn/run_scheduler.sh and start the scheduler through it (polling only)")
}

func runInstall(cmd *cobra.Command, args []string) error {
	backend, err := lifecycle.ParseBackend(args[0], false)
	if err != nil {
		return err
	}
	launcher, _ := cmd.Flags().GetBool("launcher")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	result, err := newManager(cfg).Install(cmd.Context(), backend, lifecycle.InstallOptions{Launcher: launcher})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch backend {
	case lifecycle.Native:
		fmt.Fprint(out, pterm.Success.Sprintfln("Installed %s with launchd", cfg.Job.Label))
		fmt.Fprintf(out, "  Descriptor: %s\n", result.DescriptorPath)
	case lifecycle.Polling:
		fmt.Fprint(out, pterm.Success.Sprintfln("Polling scheduler running (PID %d)", result.PID))
		if result.ReplacedPID != 0 {
			fmt.Fprintf(out, "  Replaced:   PID %d\n", result.ReplacedPID)
		}
	}
	fmt.Fprintf(out, "  Log:        %s\n", result.LogPath)
	fmt.Fprintf(out, "  Next run:   %s\n", result.NextRun)
	return nil
}
