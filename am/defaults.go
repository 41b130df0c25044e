package am

import (
	"github.com/spf13/viper"
)

// Default values shared by SetDefaults and the accessors that tolerate zero values.
const (
	DefaultLabel           = "com.dawn.morning-briefing"
	DefaultTriggerTime     = "07:00"
	DefaultArtifactPattern = "morning_briefing_*.txt"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Job defaults
	v.SetDefault("job.label", DefaultLabel)
	v.SetDefault("job.trigger_time", DefaultTriggerTime)
	v.SetDefault("job.payload_command", "")
	v.SetDefault("job.payload_args", []string{})
	v.SetDefault("job.working_dir", "")
	v.SetDefault("job.env_file", ".env")

	// Paths defaults
	v.SetDefault("paths.home", "~/.dawn")
	v.SetDefault("paths.launch_agents", "~/Library/LaunchAgents")
	v.SetDefault("paths.artifacts", "")
	v.SetDefault("paths.artifact_pattern", DefaultArtifactPattern)
	v.SetDefault("paths.database", "")

	// Polling scheduler defaults
	v.SetDefault("polling.check_interval_seconds", 30) // Minute-granularity trigger, two checks per minute
	v.SetDefault("polling.start_grace_seconds", 2)
	v.SetDefault("polling.stop_grace_seconds", 2)
	v.SetDefault("polling.output_preview_chars", 500)

	// Status report defaults
	v.SetDefault("status.log_lines", 5)
	v.SetDefault("status.artifact_count", 5)

	// Notification defaults (opt-in)
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.on_success", true)
	v.SetDefault("notify.on_failure", true)

	v.SetDefault("log.json", false)
}

// BindEnvVars binds the short-form environment variables documented in the README
func BindEnvVars(v *viper.Viper) {
	v.BindEnv("job.payload_command", "DAWN_PAYLOAD")
	v.BindEnv("job.trigger_time", "DAWN_TRIGGER_TIME")
	v.BindEnv("paths.home", "DAWN_HOME")
}

// newDefaultsViper returns a viper holding only the defaults
func newDefaultsViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}
