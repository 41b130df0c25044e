package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/dawn/am"
	"github.com/teranos/dawn/display"
	"github.com/teranos/dawn/errors"
	"github.com/teranos/dawn/sym"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: sym.AM + " Manage dawn configuration",
	Long: sym.AM + ` am - Manage dawn configuration ("I am")

Configuration sources (later overrides earlier):
1. Default values
2. System config (/etc/dawn/am.toml)
3. User config (~/.dawn/am.toml)
4. Project config (./am.toml, searching up directories)
5. Environment variables (DAWN_* prefix)

--config or DAWN_CONFIG replaces the file cascade with a single file.

Examples:
  dawn am show                          # Show current configuration
  dawn am show --format json            # Show configuration as JSON
  dawn am get job.trigger_time          # Get a single value
  dawn am set job.trigger_time 06:30    # Change a value in ~/.dawn/am.toml
  dawn am init                          # Write the default configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective dawn configuration from all sources",
	Args:  cobra.NoArgs,
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., job.trigger_time, polling.check_interval_seconds)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user config (or the --config file).

The previous file is kept as .back1 (up to three backups). The change is
validated before it is written. Installed jobs keep their old settings until
they are reinstalled.`,
	Args: cobra.ExactArgs(2),
	RunE: runAmSet,
}

var amInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Args:  cobra.NoArgs,
	RunE:  runAmInit,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate current configuration",
	Long: `Check that the trigger time parses and the payload command is set.

With a file argument, that file alone is checked over the defaults, without
the cascade or DAWN_* variables. Use it before copying a file into place.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade and which files were checked.

Lists all configuration sources in order of precedence, showing
which files exist and which are missing.`,
	Args: cobra.NoArgs,
	RunE: runAmWhere,
}

func init() {
	amShowCmd.Flags().String("format", "toml", "Output format: toml, json, yaml")
	amInitCmd.Flags().Bool("force", false, "Overwrite an existing file (a backup is kept)")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amInitCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	format, err := display.FormatFlag(cmd, display.TOML, display.JSON, display.YAML)
	if err != nil {
		return err
	}

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	if format != display.JSON {
		fmt.Fprintln(cmd.OutOrStdout(), "# dawn configuration")
	}
	return display.Write(cmd.OutOrStdout(), format, cfg)
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	value, ok := am.Get(key)
	if !ok {
		return errors.Newf("configuration key %q not found", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

// writableConfigPath is the file 'am set' and 'am init' write to
func writableConfigPath() string {
	if file := am.ConfigFile(); file != "" {
		return am.ExpandHome(file)
	}
	return am.UserConfigPath()
}

func runAmSet(cmd *cobra.Command, args []string) error {
	path := writableConfigPath()
	if err := am.SetValue(path, args[0], args[1]); err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), pterm.Success.Sprintfln("%s = %s (%s)", args[0], args[1], path))
	if strings.HasPrefix(args[0], "job.") || strings.HasPrefix(args[0], "polling.") {
		fmt.Fprintln(cmd.OutOrStdout(), "  Reinstall the job for the change to take effect")
	}
	return nil
}

func runAmInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	path := writableConfigPath()

	if err := am.WriteDefaults(path, force); err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), pterm.Success.Sprintfln("Wrote default configuration to %s", path))
	fmt.Fprintln(cmd.OutOrStdout(), "  Set job.payload_command before installing")
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	var cfg *am.Config
	var err error
	if len(args) == 1 {
		cfg, err = am.LoadFromFile(args[0])
	} else {
		cfg, err = am.Load()
	}
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	if err := cfg.ValidateForInstall(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(out, "  [DEFAULT]  Built-in defaults")
	for _, src := range am.Sources() {
		state := "missing"
		if src.Exists {
			state = "loaded"
		}
		fmt.Fprintf(out, "  [%-7s]  %s (%s)\n", strings.ToUpper(src.Scope), src.Path, state)
	}

	var envVars []string
	for _, kv := range environ() {
		if strings.HasPrefix(kv, "DAWN_") {
			envVars = append(envVars, kv)
		}
	}
	sort.Strings(envVars)
	fmt.Fprintln(out, "  [ENV]      DAWN_* environment variables")
	for _, kv := range envVars {
		fmt.Fprintf(out, "               %s\n", kv)
	}
	return nil
}
