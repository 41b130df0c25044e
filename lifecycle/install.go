package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/dawn/am"
	"github.com/teranos/dawn/errors"
	"github.com/teranos/dawn/launchd"
	"github.com/teranos/dawn/logger"
	"github.com/teranos/dawn/proc"
	"github.com/teranos/dawn/pulse/schedule"
)

// InstallResult describes what install left behind
type InstallResult struct {
	Backend        Backend `json:"backend" yaml:"backend"`
	DescriptorPath string  `json:"descriptor_path,omitempty" yaml:"descriptor_path,omitempty"`
	PID            int     `json:"pid,omitempty" yaml:"pid,omitempty"`
	ReplacedPID    int     `json:"replaced_pid,omitempty" yaml:"replaced_pid,omitempty"`
	LogPath        string  `json:"log_path" yaml:"log_path"`
	NextRun        string  `json:"next_run" yaml:"next_run"`
}

// InstallOptions tweaks the polling install
type InstallOptions struct {
	// Launcher writes run_scheduler.sh and spawns the scheduler through it
	Launcher bool
}

// Install registers the job with the given backend
func (m *Manager) Install(ctx context.Context, backend Backend, opts InstallOptions) (*InstallResult, error) {
	if err := m.cfg.ValidateForInstall(); err != nil {
		return nil, err
	}

	switch backend {
	case Native:
		return m.installNative(ctx)
	case Polling:
		return m.installPolling(ctx, opts)
	}
	return nil, errors.Newf("cannot install to backend %q", backend)
}

func (m *Manager) payload() (schedule.Payload, error) {
	argv, err := m.cfg.PayloadArgv()
	if err != nil {
		return schedule.Payload{}, err
	}
	return schedule.Payload{Argv: argv, Dir: m.cfg.WorkingDir(), EnvFile: m.cfg.EnvFilePath()}, nil
}

// resolvePayload checks the payload executable is present and returns it
// with an absolute program path
func (m *Manager) resolvePayload() (schedule.Payload, error) {
	payload, err := m.payload()
	if err != nil {
		return payload, err
	}
	path, err := payload.ResolveExecutable()
	if err != nil {
		return payload, errors.Mark(err, errors.ErrSetup)
	}
	payload.Argv[0] = path
	return payload, nil
}

func (m *Manager) nextRun() string {
	trigger, err := schedule.ParseTrigger(m.cfg.Job.TriggerTime)
	if err != nil {
		return ""
	}
	return trigger.Next(m.now()).Format("Mon Jan 2 15:04")
}

func ensureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, am.DefaultDirPermissions); err != nil {
			return errors.Setupf(err, "create directory %s", dir)
		}
	}
	return nil
}

func (m *Manager) installNative(ctx context.Context) (*InstallResult, error) {
	log := logger.AddNativeSymbol(m.log)

	if err := ensureDirs(m.cfg.LogDir(), m.cfg.LaunchAgentsDir()); err != nil {
		return nil, err
	}

	payload, err := m.resolvePayload()
	if err != nil {
		return nil, err
	}
	env, err := schedule.LoadEnvFile(payload.EnvFile)
	if err != nil {
		return nil, err
	}
	trigger, err := schedule.ParseTrigger(m.cfg.Job.TriggerTime)
	if err != nil {
		return nil, errors.Mark(err, errors.ErrInvalidConfig)
	}

	descriptor := &launchd.Descriptor{
		Label:                 m.cfg.Job.Label,
		ProgramArguments:      payload.Argv,
		WorkingDirectory:      payload.Dir,
		StartCalendarInterval: launchd.CalendarInterval{Hour: trigger.Hour, Minute: trigger.Minute},
		StandardOutPath:       m.cfg.NativeStdoutPath(),
		StandardErrorPath:     m.cfg.NativeStderrPath(),
		EnvironmentVariables:  env,
	}

	path := m.cfg.DescriptorPath()

	// Reinstall replaces wholesale: launchd refuses to load a label twice
	if reg, err := m.native.IsRegistered(ctx, m.cfg.Job.Label); err == nil && reg.Loaded {
		if err := m.native.Unregister(ctx, m.cfg.Job.Label, path); err != nil && !errors.IsNotRegistered(err) {
			log.Warnw("Failed to unload previous registration", logger.FieldError, err)
		}
	}

	if err := descriptor.Write(path); err != nil {
		return nil, err
	}
	log.Infow("Wrote launchd descriptor", logger.FieldPath, path, logger.FieldTriggerTime, trigger.String())

	if err := m.native.Register(ctx, path); err != nil {
		return nil, errors.WithHint(err, "inspect the descriptor with 'plutil -lint "+path+"'")
	}
	log.Infow("Registered with launchd", logger.FieldJobLabel, m.cfg.Job.Label)

	return &InstallResult{
		Backend:        Native,
		DescriptorPath: path,
		LogPath:        m.cfg.NativeStdoutPath(),
		NextRun:        m.nextRun(),
	}, nil
}

// schedulerArgv is the command line of the polling scheduler process
func (m *Manager) schedulerArgv() ([]string, error) {
	exe := m.executable
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return nil, errors.Setupf(err, "locate dawn executable")
		}
	}
	argv := []string{exe, "scheduler"}
	if m.configFile != "" {
		argv = append(argv, "--config", m.configFile)
	}
	return argv, nil
}

// schedulerDir is the scheduler's working directory. Without a pinned file
// the scheduler rebuilds the cascade itself, so it must start where the
// project am.toml is found or it would never see it.
func (m *Manager) schedulerDir() string {
	if m.configFile == "" {
		if project, ok := am.ProjectSource(m.sources()); ok {
			return filepath.Dir(project.Path)
		}
	}
	return m.cfg.HomeDir()
}

// writeLauncher writes a shell script that execs argv, for starting the
// scheduler by hand or from a login item
func (m *Manager) writeLauncher(dir string, argv []string) error {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("# Generated by dawn install polling. Removed by dawn uninstall polling.\n")
	b.WriteString("cd " + shellquote.Join(dir) + " || exit 1\n")
	b.WriteString("exec " + shellquote.Join(argv...) + "\n")

	path := m.cfg.LauncherPath()
	if err := os.WriteFile(path, []byte(b.String()), am.ExecutablePermissions); err != nil {
		return errors.Setupf(err, "write launcher %s", path)
	}
	return nil
}

func (m *Manager) installPolling(ctx context.Context, opts InstallOptions) (*InstallResult, error) {
	log := logger.AddPulseOpenSymbol(m.log)

	if err := ensureDirs(m.cfg.HomeDir(), m.cfg.LogDir()); err != nil {
		return nil, err
	}
	if _, err := m.resolvePayload(); err != nil {
		return nil, err
	}

	result := &InstallResult{Backend: Polling, LogPath: m.cfg.SchedulerLogPath()}

	// Reinstall replaces a live scheduler
	if rec, err := m.records.Load(); err == nil && rec != nil && m.isRecordedScheduler(rec) {
		log.Infow("Stopping existing scheduler", logger.FieldPID, rec.PID)
		if _, err := m.procs.Terminate(ctx, rec.PID, m.cfg.StopGrace()); err != nil {
			return nil, errors.Wrapf(err, "failed to stop existing scheduler %d", rec.PID)
		}
		result.ReplacedPID = rec.PID
	}

	argv, err := m.schedulerArgv()
	if err != nil {
		return nil, err
	}
	dir := m.schedulerDir()
	if dir != m.cfg.HomeDir() {
		log.Infow("Scheduler will load the project configuration", logger.FieldPath, dir)
	}
	if opts.Launcher {
		if err := m.writeLauncher(dir, argv); err != nil {
			return nil, err
		}
		argv = []string{"/bin/sh", m.cfg.LauncherPath()}
	}

	pid, err := m.procs.Spawn(proc.SpawnSpec{
		Argv:    argv,
		Dir:     dir,
		LogPath: m.cfg.SchedulerLogPath(),
	})
	if err != nil {
		return nil, err
	}

	record := &proc.Record{
		PID:        pid,
		StartedAt:  m.now(),
		Version:    m.version,
		InstanceID: m.newID(),
	}
	if err := m.records.Save(record); err != nil {
		return nil, err
	}
	log.Infow("Spawned polling scheduler",
		logger.FieldPID, pid,
		logger.FieldInstanceID, record.InstanceID,
		logger.FieldPath, m.cfg.SchedulerLogPath())

	if !m.procs.WaitAlive(ctx, pid, m.cfg.StartGrace()) {
		return nil, errors.WithHint(
			errors.Wrapf(errors.ErrNotAlive, "scheduler %d exited within %s", pid, m.cfg.StartGrace()),
			"check "+m.cfg.SchedulerLogPath(),
		)
	}

	result.PID = pid
	result.NextRun = m.nextRun()
	return result, nil
}
