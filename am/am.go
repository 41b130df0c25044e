// Package am holds dawn's configuration ("I am"): which payload to run, when,
// and where the lifecycle state lives on disk.
package am

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/dawn/errors"
)

// Config represents the dawn configuration
type Config struct {
	Job     JobConfig     `mapstructure:"job" toml:"job" json:"job" yaml:"job"`
	Paths   PathsConfig   `mapstructure:"paths" toml:"paths" json:"paths" yaml:"paths"`
	Polling PollingConfig `mapstructure:"polling" toml:"polling" json:"polling" yaml:"polling"`
	Status  StatusConfig  `mapstructure:"status" toml:"status" json:"status" yaml:"status"`
	Notify  NotifyConfig  `mapstructure:"notify" toml:"notify" json:"notify" yaml:"notify"`
	Log     LogConfig     `mapstructure:"log" toml:"log" json:"log" yaml:"log"`
}

// JobConfig describes the payload and when it fires
type JobConfig struct {
	Label          string   `mapstructure:"label" toml:"label" json:"label" yaml:"label"`                                         // launchd label, also the job name in history
	TriggerTime    string   `mapstructure:"trigger_time" toml:"trigger_time" json:"trigger_time" yaml:"trigger_time"`             // HH:MM, 24h, local time
	PayloadCommand string   `mapstructure:"payload_command" toml:"payload_command" json:"payload_command" yaml:"payload_command"` // shell-quoted command line
	PayloadArgs    []string `mapstructure:"payload_args" toml:"payload_args" json:"payload_args" yaml:"payload_args"`             // when set, payload_command is the bare executable
	WorkingDir     string   `mapstructure:"working_dir" toml:"working_dir" json:"working_dir" yaml:"working_dir"`
	EnvFile        string   `mapstructure:"env_file" toml:"env_file" json:"env_file" yaml:"env_file"` // dotenv file merged into the payload environment
}

// PathsConfig locates dawn's state on disk
type PathsConfig struct {
	Home            string `mapstructure:"home" toml:"home" json:"home" yaml:"home"` // state dir: PID record, logs, database
	LaunchAgents    string `mapstructure:"launch_agents" toml:"launch_agents" json:"launch_agents" yaml:"launch_agents"`
	Artifacts       string `mapstructure:"artifacts" toml:"artifacts" json:"artifacts" yaml:"artifacts"` // empty = job.working_dir
	ArtifactPattern string `mapstructure:"artifact_pattern" toml:"artifact_pattern" json:"artifact_pattern" yaml:"artifact_pattern"`
	Database        string `mapstructure:"database" toml:"database" json:"database" yaml:"database"` // empty = <home>/dawn.db
}

// PollingConfig configures the self-managed scheduler process
type PollingConfig struct {
	CheckIntervalSeconds int `mapstructure:"check_interval_seconds" toml:"check_interval_seconds" json:"check_interval_seconds" yaml:"check_interval_seconds"`
	StartGraceSeconds    int `mapstructure:"start_grace_seconds" toml:"start_grace_seconds" json:"start_grace_seconds" yaml:"start_grace_seconds"`
	StopGraceSeconds     int `mapstructure:"stop_grace_seconds" toml:"stop_grace_seconds" json:"stop_grace_seconds" yaml:"stop_grace_seconds"`
	OutputPreviewChars   int `mapstructure:"output_preview_chars" toml:"output_preview_chars" json:"output_preview_chars" yaml:"output_preview_chars"`
}

// StatusConfig configures how much the status report shows
type StatusConfig struct {
	LogLines      int `mapstructure:"log_lines" toml:"log_lines" json:"log_lines" yaml:"log_lines"`
	ArtifactCount int `mapstructure:"artifact_count" toml:"artifact_count" json:"artifact_count" yaml:"artifact_count"`
}

// NotifyConfig configures desktop notifications after each execution
type NotifyConfig struct {
	Enabled   bool `mapstructure:"enabled" toml:"enabled" json:"enabled" yaml:"enabled"`
	OnSuccess bool `mapstructure:"on_success" toml:"on_success" json:"on_success" yaml:"on_success"`
	OnFailure bool `mapstructure:"on_failure" toml:"on_failure" json:"on_failure" yaml:"on_failure"`
}

// LogConfig configures logger output
type LogConfig struct {
	JSON bool `mapstructure:"json" toml:"json" json:"json" yaml:"json"`
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
	ExecutablePermissions  = 0755 // Executable file permissions (rwxr-xr-x)
)

// Fixed file names inside the state directory
const (
	PIDFileName         = "scheduler.pid"
	LauncherFileName    = "run_scheduler.sh"
	DatabaseFileName    = "dawn.db"
	SchedulerLogName    = "scheduler.log"
	NativeStdoutLogName = "launchd.out.log"
	NativeStderrLogName = "launchd.err.log"
)

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// HomeDir returns the state directory (default ~/.dawn)
func (c *Config) HomeDir() string {
	if c.Paths.Home == "" {
		return ExpandHome("~/.dawn")
	}
	return ExpandHome(c.Paths.Home)
}

// LogDir returns the directory holding all fixed-name log files
func (c *Config) LogDir() string {
	return filepath.Join(c.HomeDir(), "logs")
}

// PIDPath returns the single-slot RunningProcessRecord file
func (c *Config) PIDPath() string {
	return filepath.Join(c.HomeDir(), PIDFileName)
}

// LauncherPath returns the generated launcher script for the polling scheduler
func (c *Config) LauncherPath() string {
	return filepath.Join(c.HomeDir(), LauncherFileName)
}

// DatabasePath returns the execution history database path
func (c *Config) DatabasePath() string {
	if c.Paths.Database != "" {
		return ExpandHome(c.Paths.Database)
	}
	return filepath.Join(c.HomeDir(), DatabaseFileName)
}

// SchedulerLogPath returns the polling scheduler's log file
func (c *Config) SchedulerLogPath() string {
	return filepath.Join(c.LogDir(), SchedulerLogName)
}

// NativeStdoutPath returns the file launchd redirects payload stdout into
func (c *Config) NativeStdoutPath() string {
	return filepath.Join(c.LogDir(), NativeStdoutLogName)
}

// NativeStderrPath returns the file launchd redirects payload stderr into
func (c *Config) NativeStderrPath() string {
	return filepath.Join(c.LogDir(), NativeStderrLogName)
}

// LaunchAgentsDir returns the directory launchd watches for user agents
func (c *Config) LaunchAgentsDir() string {
	if c.Paths.LaunchAgents == "" {
		return ExpandHome("~/Library/LaunchAgents")
	}
	return ExpandHome(c.Paths.LaunchAgents)
}

// DescriptorPath returns the launchd property list for the job
func (c *Config) DescriptorPath() string {
	return filepath.Join(c.LaunchAgentsDir(), c.Job.Label+".plist")
}

// ArtifactDir returns where the payload writes its dated output files
func (c *Config) ArtifactDir() string {
	if c.Paths.Artifacts != "" {
		return ExpandHome(c.Paths.Artifacts)
	}
	return c.WorkingDir()
}

// WorkingDir returns the directory the payload runs in.
// Defaults to the directory containing the payload executable.
func (c *Config) WorkingDir() string {
	if c.Job.WorkingDir != "" {
		return ExpandHome(c.Job.WorkingDir)
	}
	argv, err := c.PayloadArgv()
	if err == nil && len(argv) > 0 && filepath.IsAbs(argv[0]) {
		return filepath.Dir(argv[0])
	}
	return c.HomeDir()
}

// EnvFilePath returns the dotenv file for the payload, or "" when unset
func (c *Config) EnvFilePath() string {
	if c.Job.EnvFile == "" {
		return ""
	}
	path := ExpandHome(c.Job.EnvFile)
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.WorkingDir(), path)
	}
	return path
}

// PayloadArgv returns the payload as an argument vector.
// With payload_args set, payload_command is used verbatim as the executable;
// otherwise payload_command is split using shell quoting rules.
func (c *Config) PayloadArgv() ([]string, error) {
	if c.Job.PayloadCommand == "" {
		return nil, errors.Wrap(errors.ErrInvalidConfig, "job.payload_command is empty")
	}

	if len(c.Job.PayloadArgs) > 0 {
		argv := []string{ExpandHome(c.Job.PayloadCommand)}
		return append(argv, c.Job.PayloadArgs...), nil
	}

	argv, err := shellquote.Split(c.Job.PayloadCommand)
	if err != nil {
		return nil, errors.Wrapf(errors.Mark(err, errors.ErrInvalidConfig), "failed to parse job.payload_command %q", c.Job.PayloadCommand)
	}
	if len(argv) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidConfig, "job.payload_command is empty")
	}
	argv[0] = ExpandHome(argv[0])
	return argv, nil
}

// CheckInterval returns how often the polling scheduler compares the clock to the trigger
func (c *Config) CheckInterval() time.Duration {
	if c.Polling.CheckIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Polling.CheckIntervalSeconds) * time.Second
}

// StartGrace returns how long install waits before verifying the spawned scheduler
func (c *Config) StartGrace() time.Duration {
	return time.Duration(c.Polling.StartGraceSeconds) * time.Second
}

// StopGrace returns how long uninstall waits between SIGTERM and SIGKILL
func (c *Config) StopGrace() time.Duration {
	return time.Duration(c.Polling.StopGraceSeconds) * time.Second
}
