package lifecycle

import (
	"context"
	"os"
	"time"

	"github.com/teranos/dawn/db"
	"github.com/teranos/dawn/errors"
	"github.com/teranos/dawn/launchd"
	"github.com/teranos/dawn/proc"
	"github.com/teranos/dawn/pulse/schedule"
	"github.com/teranos/dawn/version"
)

// Backend states reported by Status
const (
	StateLoaded      = "loaded"
	StateNotLoaded   = "not_loaded"
	StateRunning     = "running"
	StateNotRunning  = "not_running"
	StateStale       = "stale"
	StateUnavailable = "unavailable"
)

// Report is the read-only status of the job across backends
type Report struct {
	JobLabel      string              `json:"job_label" yaml:"job_label"`
	TriggerTime   string              `json:"trigger_time" yaml:"trigger_time"`
	NextRun       *time.Time          `json:"next_run,omitempty" yaml:"next_run,omitempty"`
	Native        *NativeStatus       `json:"native,omitempty" yaml:"native,omitempty"`
	Polling       *PollingStatus      `json:"polling,omitempty" yaml:"polling,omitempty"`
	ArtifactDir   string              `json:"artifact_dir" yaml:"artifact_dir"`
	Artifacts     []Artifact          `json:"artifacts" yaml:"artifacts"`
	LastExecution *schedule.Execution `json:"last_execution,omitempty" yaml:"last_execution,omitempty"`
	Warnings      []string            `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NativeStatus reports the launchd registration
type NativeStatus struct {
	State            string                `json:"state" yaml:"state"`
	DescriptorPath   string                `json:"descriptor_path" yaml:"descriptor_path"`
	DescriptorExists bool                  `json:"descriptor_exists" yaml:"descriptor_exists"`
	InstalledTrigger string                `json:"installed_trigger,omitempty" yaml:"installed_trigger,omitempty"`
	Drift            string                `json:"drift,omitempty" yaml:"drift,omitempty"`
	Registration     *launchd.Registration `json:"registration,omitempty" yaml:"registration,omitempty"`
	Error            string                `json:"error,omitempty" yaml:"error,omitempty"`
	StdoutPath       string                `json:"stdout_path" yaml:"stdout_path"`
	StdoutTail       []string              `json:"stdout_tail,omitempty" yaml:"stdout_tail,omitempty"`
	StderrPath       string                `json:"stderr_path" yaml:"stderr_path"`
	StderrTail       []string              `json:"stderr_tail,omitempty" yaml:"stderr_tail,omitempty"`
}

// Active reports whether launchd has the job loaded
func (s *NativeStatus) Active() bool {
	return s != nil && s.State == StateLoaded
}

// PollingStatus reports the polling scheduler process
type PollingStatus struct {
	State       string        `json:"state" yaml:"state"`
	RecordPath  string        `json:"record_path" yaml:"record_path"`
	Record      *proc.Record  `json:"record,omitempty" yaml:"record,omitempty"`
	Process     *proc.Info    `json:"process,omitempty" yaml:"process,omitempty"`
	Uptime      time.Duration `json:"uptime_ns,omitempty" yaml:"uptime,omitempty"`
	VersionSkew string        `json:"version_skew,omitempty" yaml:"version_skew,omitempty"`
	Hint        string        `json:"hint,omitempty" yaml:"hint,omitempty"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
	LogPath     string        `json:"log_path" yaml:"log_path"`
	LogTail     []string      `json:"log_tail,omitempty" yaml:"log_tail,omitempty"`
}

// Running reports whether a live scheduler is recorded
func (s *PollingStatus) Running() bool {
	return s != nil && s.State == StateRunning
}

// DriftHint is the remediation shown when the installed descriptor is out of date
const DriftHint = "run 'dawn install native' to apply the configuration"

// StaleHint is the remediation shown for a record naming a dead process
const StaleHint = "run 'dawn install polling' to restart the scheduler"

// Status builds a report for the given backend (Both for both). It never
// fails: every state file may be absent and problems are reported inline.
func (m *Manager) Status(ctx context.Context, backend Backend) *Report {
	report := &Report{
		JobLabel:    m.cfg.Job.Label,
		TriggerTime: m.cfg.Job.TriggerTime,
		ArtifactDir: m.cfg.ArtifactDir(),
	}

	// Status runs on unvalidated configuration: problems become warnings
	if err := m.cfg.Validate(); err != nil {
		report.Warnings = append(report.Warnings, "invalid configuration: "+err.Error())
	}
	if trigger, err := schedule.ParseTrigger(m.cfg.Job.TriggerTime); err == nil {
		next := trigger.Next(m.now())
		report.NextRun = &next
	}

	if backend == Native || backend == Both {
		report.Native = m.nativeStatus(ctx)
	}
	if backend == Polling || backend == Both {
		report.Polling = m.pollingStatus()
	}

	artifacts, err := ListArtifacts(report.ArtifactDir, m.cfg.Paths.ArtifactPattern, m.cfg.Status.ArtifactCount)
	if err != nil {
		report.Warnings = append(report.Warnings, err.Error())
	}
	report.Artifacts = artifacts

	last, err := m.lastExecution()
	if err != nil {
		report.Warnings = append(report.Warnings, "execution history unavailable: "+err.Error())
	}
	report.LastExecution = last

	return report
}

func (m *Manager) nativeStatus(ctx context.Context) *NativeStatus {
	status := &NativeStatus{
		DescriptorPath: m.cfg.DescriptorPath(),
		StdoutPath:     m.cfg.NativeStdoutPath(),
		StderrPath:     m.cfg.NativeStderrPath(),
	}
	_, err := os.Stat(status.DescriptorPath)
	status.DescriptorExists = err == nil
	if status.DescriptorExists {
		m.checkDescriptor(status)
	}

	reg, err := m.native.IsRegistered(ctx, m.cfg.Job.Label)
	switch {
	case err != nil:
		status.State = StateUnavailable
		status.Error = err.Error()
	case reg != nil && reg.Loaded:
		status.State = StateLoaded
		status.Registration = reg
	default:
		status.State = StateNotLoaded
	}

	status.StdoutTail, _ = TailFile(status.StdoutPath, m.cfg.Status.LogLines)
	status.StderrTail, _ = TailFile(status.StderrPath, m.cfg.Status.LogLines)
	return status
}

// checkDescriptor compares the installed descriptor with the configuration.
// Changing am.toml does not touch an installed job until it is reinstalled.
func (m *Manager) checkDescriptor(status *NativeStatus) {
	desc, err := launchd.LoadDescriptor(status.DescriptorPath)
	if err != nil {
		status.Drift = err.Error()
		return
	}
	installed := desc.StartCalendarInterval.String()
	status.InstalledTrigger = installed

	trigger, err := schedule.ParseTrigger(m.cfg.Job.TriggerTime)
	if err != nil {
		return
	}
	switch {
	case desc.Label != m.cfg.Job.Label:
		status.Drift = "descriptor label " + desc.Label + " differs from configured " + m.cfg.Job.Label + "; " + DriftHint
	case installed != trigger.String():
		status.Drift = "installed job fires at " + installed + ", configuration says " + trigger.String() + "; " + DriftHint
	}
}

func (m *Manager) pollingStatus() *PollingStatus {
	status := &PollingStatus{
		State:      StateNotRunning,
		RecordPath: m.records.Path(),
		LogPath:    m.cfg.SchedulerLogPath(),
	}
	status.LogTail, _ = TailFile(status.LogPath, m.cfg.Status.LogLines)

	rec, err := m.records.Load()
	if err != nil {
		status.Error = err.Error()
		status.Hint = StaleHint
		return status
	}
	if rec == nil {
		return status
	}
	status.Record = rec

	info, err := m.recordedProcess(rec)
	if err != nil {
		// Reported, never auto-repaired
		status.State = StateStale
		status.Hint = StaleHint
		if errors.Is(err, errors.ErrStaleRecord) {
			status.Error = err.Error()
		}
		return status
	}

	status.State = StateRunning
	if info != nil {
		status.Process = info
		if !info.StartedAt.IsZero() {
			status.Uptime = m.now().Sub(info.StartedAt).Round(time.Second)
		}
	} else if !rec.StartedAt.IsZero() {
		status.Uptime = m.now().Sub(rec.StartedAt).Round(time.Second)
	}

	if version.IsOlder(rec.Version, m.version) {
		status.VersionSkew = "scheduler is running " + rec.Version + ", dawn is " + m.version + "; reinstall to upgrade"
	}
	return status
}

// lastExecution reads history without creating the database
func (m *Manager) lastExecution() (*schedule.Execution, error) {
	conn, err := db.OpenExisting(m.cfg.DatabasePath(), nil)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, nil
	}
	defer conn.Close()

	exec, err := schedule.NewExecutionStore(conn).LastExecution(m.cfg.Job.Label)
	if err != nil {
		return nil, errors.Wrap(err, "read last execution")
	}
	return exec, nil
}
