// Package commands implements the dawn CLI.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/dawn/am"
	"github.com/teranos/dawn/errors"
	"github.com/teranos/dawn/lifecycle"
	"github.com/teranos/dawn/logger"
)

// RootCmd is the dawn command
var RootCmd = &cobra.Command{
	Use:   "dawn",
	Short: "dawn - schedule the daily morning briefing",
	Long: `dawn installs, inspects, and removes the daily schedule of the
morning briefing payload.

Two backends are supported:
  native   - a launchd user agent (macOS)
  polling  - a background dawn scheduler process

Available commands:
  install    - Register the daily job with a backend
  uninstall  - Remove the job from a backend
  status     - Show backend state, recent logs, and artifacts
  fire       - Run the payload once now
  logs       - Show or follow backend logs
  history    - List recorded executions
  am         - Manage dawn configuration ("I am")

Examples:
  dawn install polling      # Start the polling scheduler
  dawn status               # Inspect both backends
  dawn uninstall all        # Remove every trace of the job`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initialize,
}

func init() {
	RootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	RootCmd.PersistentFlags().String("config", "", "Use this configuration file instead of the cascade")
	RootCmd.PersistentFlags().Bool("json-log", false, "Emit logs as JSON")

	RootCmd.AddCommand(AmCmd)
	RootCmd.AddCommand(InstallCmd)
	RootCmd.AddCommand(UninstallCmd)
	RootCmd.AddCommand(StatusCmd)
	RootCmd.AddCommand(SchedulerCmd)
	RootCmd.AddCommand(FireCmd)
	RootCmd.AddCommand(LogsCmd)
	RootCmd.AddCommand(HistoryCmd)
	RootCmd.AddCommand(VersionCmd)
}

// Execute runs the CLI
func Execute() error {
	defer logger.Cleanup()
	return RootCmd.Execute()
}

// initialize pins the config file and sets up the global logger before any command runs
func initialize(cmd *cobra.Command, args []string) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		am.SetConfigFile(am.ExpandHome(path))
	}

	verbosity, _ := cmd.Flags().GetCount("verbose")
	jsonLog, _ := cmd.Flags().GetBool("json-log")
	if !cmd.Flags().Changed("json-log") {
		if cfg, err := am.Load(); err == nil {
			jsonLog = cfg.Log.JSON
		}
	}

	level := logger.VerbosityToLevel(verbosity)
	// The scheduler always logs progress: its output is the scheduler log
	if cmd == SchedulerCmd && verbosity < logger.VerbosityInfo {
		level = logger.VerbosityToLevel(logger.VerbosityInfo)
	}

	if err := logger.InitializeWithLevel(jsonLog, level); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	return nil
}

// loadConfig loads the configuration cascade and validates it
func loadConfig() (*am.Config, error) {
	cfg, err := loadConfigLenient()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigLenient loads the configuration cascade without validating it.
// status and uninstall must still work when a setting is invalid.
func loadConfigLenient() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	return cfg, nil
}

// newManager builds the lifecycle manager; tests replace it with fakes
var newManager = func(cfg *am.Config) *lifecycle.Manager {
	return lifecycle.New(cfg, lifecycle.Options{
		ConfigFile: am.ConfigFile(),
		Logger:     logger.Logger,
	})
}

// backendArg validates the single backend argument, printing usage when it is missing
func backendArg(allowAll bool) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			cmd.PrintErr(cmd.UsageString())
			return errors.Newf("%s requires exactly one backend argument", cmd.Name())
		}
		if _, err := lifecycle.ParseBackend(args[0], allowAll); err != nil {
			cmd.PrintErr(cmd.UsageString())
			return err
		}
		return nil
	}
}

// environ is os.Environ, replaceable in tests
var environ = os.Environ
