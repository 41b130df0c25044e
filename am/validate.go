package am

import (
	"github.com/teranos/dawn/errors"
	"github.com/teranos/dawn/pulse/schedule"
)

// Validate checks that the configuration is valid.
// An empty payload command is allowed here (status and uninstall don't need it);
// ValidateForInstall adds the payload checks.
func (c *Config) Validate() error {
	if c.Job.Label == "" {
		return errors.Wrap(errors.ErrInvalidConfig, "job.label cannot be empty")
	}

	if _, err := schedule.ParseTrigger(c.Job.TriggerTime); err != nil {
		return errors.Wrap(errors.Mark(err, errors.ErrInvalidConfig), "job.trigger_time")
	}

	// Grace periods: 0 = check immediately, negative = invalid
	if c.Polling.StartGraceSeconds < 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "polling.start_grace_seconds must be >= 0, got %d", c.Polling.StartGraceSeconds)
	}
	if c.Polling.StopGraceSeconds < 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "polling.stop_grace_seconds must be >= 0, got %d", c.Polling.StopGraceSeconds)
	}

	// Check interval: 0 = default, above 60s could skip the trigger minute
	if c.Polling.CheckIntervalSeconds < 0 || c.Polling.CheckIntervalSeconds > 60 {
		return errors.Wrapf(errors.ErrInvalidConfig, "polling.check_interval_seconds must be between 0 and 60, got %d", c.Polling.CheckIntervalSeconds)
	}

	if c.Status.LogLines < 0 || c.Status.ArtifactCount < 0 {
		return errors.Wrap(errors.ErrInvalidConfig, "status.log_lines and status.artifact_count must be >= 0")
	}

	return nil
}

// ValidateForInstall checks everything Validate does plus a parseable payload
func (c *Config) ValidateForInstall() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if _, err := c.PayloadArgv(); err != nil {
		return errors.WithHint(err, "set job.payload_command in ~/.dawn/am.toml or DAWN_PAYLOAD")
	}
	return nil
}
