package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/dawn/am"
	"github.com/teranos/dawn/errors"
	"github.com/teranos/dawn/launchd"
	"github.com/teranos/dawn/proc"
)

// fakeLaunchd tracks loaded labels in memory
type fakeLaunchd struct {
	mu          sync.Mutex
	loaded      map[string]string // label -> descriptor path
	registerErr error
	unavailable bool
	calls       []string
}

func newFakeLaunchd() *fakeLaunchd {
	return &fakeLaunchd{loaded: make(map[string]string)}
}

func (f *fakeLaunchd) Register(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "register")
	if f.registerErr != nil {
		return f.registerErr
	}
	desc, err := launchd.LoadDescriptor(path)
	if err != nil {
		return errors.Mark(err, errors.ErrRegistration)
	}
	f.loaded[desc.Label] = path
	return nil
}

func (f *fakeLaunchd) Unregister(ctx context.Context, label, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "unregister")
	if f.unavailable {
		return errors.New("launchctl: executable file not found")
	}
	if _, ok := f.loaded[label]; !ok {
		return errors.Wrap(errors.ErrNotRegistered, label)
	}
	delete(f.loaded, label)
	return nil
}

func (f *fakeLaunchd) IsRegistered(ctx context.Context, label string) (*launchd.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, errors.New("launchctl: executable file not found")
	}
	_, ok := f.loaded[label]
	return &launchd.Registration{Loaded: ok}, nil
}

// fakeProcs simulates processes by PID
type fakeProcs struct {
	mu         sync.Mutex
	nextPID    int
	alive      map[int]bool
	dieOnSpawn bool
	terminated []int
	spawned    []proc.SpawnSpec
	spawnErr   error
	startedAt  time.Time
	ignoreTerm bool
}

func newFakeProcs() *fakeProcs {
	return &fakeProcs{nextPID: 4000, alive: make(map[int]bool)}
}

func (f *fakeProcs) Spawn(spec proc.SpawnSpec) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.spawnErr != nil {
		return 0, f.spawnErr
	}
	f.nextPID++
	f.spawned = append(f.spawned, spec)
	f.alive[f.nextPID] = !f.dieOnSpawn
	return f.nextPID, nil
}

func (f *fakeProcs) IsAlive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func (f *fakeProcs) WaitAlive(ctx context.Context, pid int, grace time.Duration) bool {
	return f.IsAlive(pid)
}

func (f *fakeProcs) Terminate(ctx context.Context, pid int, grace time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	f.alive[pid] = false
	return f.ignoreTerm, nil
}

func (f *fakeProcs) Inspect(pid int) (*proc.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.alive[pid] {
		return nil, errors.Newf("process %d not found", pid)
	}
	return &proc.Info{PID: pid, StartedAt: f.startedAt, RSSBytes: 1 << 20}, nil
}

type fixture struct {
	cfg     *am.Config
	native  *fakeLaunchd
	procs   *fakeProcs
	records *proc.RecordStore
	mgr     *Manager
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	home := t.TempDir()

	cfg := &am.Config{
		Job: am.JobConfig{
			Label:          am.DefaultLabel,
			TriggerTime:    "07:00",
			PayloadCommand: "/bin/sh -c true",
		},
		Paths: am.PathsConfig{
			Home:            filepath.Join(home, "state"),
			LaunchAgents:    filepath.Join(home, "LaunchAgents"),
			Artifacts:       filepath.Join(home, "artifacts"),
			ArtifactPattern: am.DefaultArtifactPattern,
		},
		Polling: am.PollingConfig{StartGraceSeconds: 0, StopGraceSeconds: 0},
		Status:  am.StatusConfig{LogLines: 5, ArtifactCount: 5},
	}

	f := &fixture{
		cfg:     cfg,
		native:  newFakeLaunchd(),
		procs:   newFakeProcs(),
		records: proc.NewRecordStore(cfg.PIDPath()),
		now:     time.Date(2026, 3, 4, 6, 30, 0, 0, time.Local),
	}
	f.procs.startedAt = f.now.Add(-90 * time.Minute)
	f.mgr = New(cfg, Options{
		Native:     f.native,
		Processes:  f.procs,
		Records:    f.records,
		Executable: "/usr/local/bin/dawn",
		Version:    "1.2.0",
		Sources:    func() []am.ConfigSource { return nil },
		Logger:     zap.NewNop().Sugar(),
	})
	f.mgr.now = func() time.Time { return f.now }
	f.mgr.newID = func() string { return "instance-1" }
	return f
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("Native", false)
	require.NoError(t, err)
	assert.Equal(t, Native, b)

	b, err = ParseBackend("all", true)
	require.NoError(t, err)
	assert.Equal(t, All, b)

	_, err = ParseBackend("all", false)
	assert.Error(t, err)

	_, err = ParseBackend("cron", true)
	assert.Error(t, err)
}

func TestInstallPolling_ThenStatusRunning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.mgr.Install(ctx, Polling, InstallOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4001, result.PID)
	assert.Zero(t, result.ReplacedPID)
	assert.NotEmpty(t, result.NextRun)

	require.Len(t, f.procs.spawned, 1)
	assert.Equal(t, []string{"/usr/local/bin/dawn", "scheduler"}, f.procs.spawned[0].Argv)
	assert.Equal(t, f.cfg.SchedulerLogPath(), f.procs.spawned[0].LogPath)
	assert.Equal(t, f.cfg.HomeDir(), f.procs.spawned[0].Dir)

	rec, err := f.records.Load()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 4001, rec.PID)
	assert.Equal(t, "1.2.0", rec.Version)
	assert.Equal(t, "instance-1", rec.InstanceID)

	report := f.mgr.Status(ctx, Polling)
	require.NotNil(t, report.Polling)
	assert.Nil(t, report.Native)
	assert.True(t, report.Polling.Running())
	assert.Equal(t, 4001, report.Polling.Process.PID)
	assert.Equal(t, 90*time.Minute, report.Polling.Uptime)
	assert.Empty(t, report.Polling.VersionSkew)
	assert.Empty(t, report.Polling.Hint)
}

func TestInstallPolling_ForwardsConfigFile(t *testing.T) {
	f := newFixture(t)
	f.mgr.configFile = "/etc/dawn/custom.toml"

	_, err := f.mgr.Install(context.Background(), Polling, InstallOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/local/bin/dawn", "scheduler", "--config", "/etc/dawn/custom.toml"}, f.procs.spawned[0].Argv)
}

func TestInstallPolling_StartsInProjectConfigDir(t *testing.T) {
	f := newFixture(t)
	project := t.TempDir()
	projectFile := filepath.Join(project, "am.toml")
	require.NoError(t, os.WriteFile(projectFile, []byte("[job]\npayload_command = \"/bin/true\"\n"), 0644))
	f.mgr.sources = func() []am.ConfigSource {
		return []am.ConfigSource{
			{Path: "/etc/dawn/am.toml", Scope: am.ScopeSystem},
			{Path: filepath.Join(f.cfg.HomeDir(), "am.toml"), Scope: am.ScopeUser},
			{Path: projectFile, Exists: true, Scope: am.ScopeProject},
		}
	}

	_, err := f.mgr.Install(context.Background(), Polling, InstallOptions{Launcher: true})
	require.NoError(t, err)

	// The scheduler walks up from its working directory to find am.toml
	require.Len(t, f.procs.spawned, 1)
	assert.Equal(t, project, f.procs.spawned[0].Dir)
	_, err = os.Stat(filepath.Join(f.procs.spawned[0].Dir, "am.toml"))
	assert.NoError(t, err)

	script, err := os.ReadFile(f.cfg.LauncherPath())
	require.NoError(t, err)
	assert.Contains(t, string(script), "cd "+project+" || exit 1")
}

func TestInstallPolling_PinnedFileIgnoresProjectDir(t *testing.T) {
	f := newFixture(t)
	f.mgr.configFile = "/etc/dawn/custom.toml"
	f.mgr.sources = func() []am.ConfigSource {
		return []am.ConfigSource{{Path: "/srv/briefing/am.toml", Exists: true, Scope: am.ScopeProject}}
	}

	_, err := f.mgr.Install(context.Background(), Polling, InstallOptions{})
	require.NoError(t, err)
	assert.Equal(t, f.cfg.HomeDir(), f.procs.spawned[0].Dir)
	assert.Contains(t, f.procs.spawned[0].Argv, "/etc/dawn/custom.toml")
}

func TestInstallPolling_ReplacesLiveScheduler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.mgr.Install(ctx, Polling, InstallOptions{})
	require.NoError(t, err)

	second, err := f.mgr.Install(ctx, Polling, InstallOptions{})
	require.NoError(t, err)

	assert.Equal(t, first.PID, second.ReplacedPID)
	assert.Equal(t, []int{first.PID}, f.procs.terminated)
	assert.False(t, f.procs.IsAlive(first.PID))

	rec, err := f.records.Load()
	require.NoError(t, err)
	assert.Equal(t, second.PID, rec.PID)
}

func TestInstallPolling_DeadAfterGrace(t *testing.T) {
	f := newFixture(t)
	f.procs.dieOnSpawn = true

	_, err := f.mgr.Install(context.Background(), Polling, InstallOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotAlive))

	hints := errors.GetAllHints(err)
	require.NotEmpty(t, hints)
	assert.Contains(t, hints[0], f.cfg.SchedulerLogPath())

	// The record is left for status to report as stale
	report := f.mgr.Status(context.Background(), Polling)
	assert.Equal(t, StateStale, report.Polling.State)
}

func TestInstallPolling_MissingPayload(t *testing.T) {
	f := newFixture(t)
	f.cfg.Job.PayloadCommand = "/nonexistent/briefing"

	_, err := f.mgr.Install(context.Background(), Polling, InstallOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsSetupError(err))
	assert.Empty(t, f.procs.spawned)
}

func TestInstall_RejectsInvalidConfig(t *testing.T) {
	f := newFixture(t)
	f.cfg.Job.PayloadCommand = ""

	_, err := f.mgr.Install(context.Background(), Native, InstallOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))

	_, err = os.Stat(f.cfg.DescriptorPath())
	assert.True(t, os.IsNotExist(err))
}

func TestInstallPolling_Launcher(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.Install(context.Background(), Polling, InstallOptions{Launcher: true})
	require.NoError(t, err)

	script, err := os.ReadFile(f.cfg.LauncherPath())
	require.NoError(t, err)
	assert.Contains(t, string(script), "#!/bin/sh")
	assert.Contains(t, string(script), "exec /usr/local/bin/dawn scheduler")
	assert.Equal(t, []string{"/bin/sh", f.cfg.LauncherPath()}, f.procs.spawned[0].Argv)
}

func TestStatus_NothingInstalled(t *testing.T) {
	f := newFixture(t)

	report := f.mgr.Status(context.Background(), Both)
	require.NotNil(t, report.Native)
	require.NotNil(t, report.Polling)

	assert.Equal(t, StateNotLoaded, report.Native.State)
	assert.False(t, report.Native.DescriptorExists)
	assert.Equal(t, StateNotRunning, report.Polling.State)
	assert.Nil(t, report.Polling.Record)
	assert.Empty(t, report.Artifacts)
	assert.Nil(t, report.LastExecution)
	assert.Empty(t, report.Warnings)

	require.NotNil(t, report.NextRun)
	assert.True(t, report.NextRun.Equal(time.Date(2026, 3, 4, 7, 0, 0, 0, time.Local)))
}

func TestStatus_InvalidTriggerIsWarning(t *testing.T) {
	f := newFixture(t)
	f.cfg.Job.TriggerTime = "7am"

	report := f.mgr.Status(context.Background(), Both)
	assert.Nil(t, report.NextRun)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "invalid configuration")
	assert.Contains(t, report.Warnings[0], "7am")
	assert.Equal(t, StateNotRunning, report.Polling.State)
}

func TestStatus_StaleRecord(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.records.Save(&proc.Record{PID: 999999, StartedAt: f.now, Version: "1.2.0"}))

	report := f.mgr.Status(context.Background(), Polling)
	assert.Equal(t, StateStale, report.Polling.State)
	assert.Equal(t, StaleHint, report.Polling.Hint)
	assert.False(t, report.Polling.Running())

	// Status never repairs state
	rec, err := f.records.Load()
	require.NoError(t, err)
	assert.Equal(t, 999999, rec.PID)
}

func TestStatus_ReusedPIDIsStale(t *testing.T) {
	f := newFixture(t)
	// The recorded scheduler died and PID 321 went to a process started later
	f.procs.alive[321] = true
	f.procs.startedAt = f.now.Add(-10 * time.Minute)
	require.NoError(t, f.records.Save(&proc.Record{PID: 321, StartedAt: f.now.Add(-2 * time.Hour), Version: "1.2.0"}))

	report := f.mgr.Status(context.Background(), Polling)
	assert.Equal(t, StateStale, report.Polling.State)
	assert.False(t, report.Polling.Running())
	assert.Equal(t, StaleHint, report.Polling.Hint)
	assert.Contains(t, report.Polling.Error, "PID 321")
	assert.Nil(t, report.Polling.Process)
}

func TestStatus_CreatedJustBeforeRecordIsRunning(t *testing.T) {
	f := newFixture(t)
	f.procs.alive[321] = true
	f.procs.startedAt = f.now.Add(-2*time.Hour - time.Second)
	require.NoError(t, f.records.Save(&proc.Record{PID: 321, StartedAt: f.now.Add(-2 * time.Hour)}))

	report := f.mgr.Status(context.Background(), Polling)
	assert.True(t, report.Polling.Running())
	assert.Equal(t, 2*time.Hour+time.Second, report.Polling.Uptime)
}

func TestStatus_VersionSkew(t *testing.T) {
	f := newFixture(t)
	f.procs.alive[321] = true
	require.NoError(t, f.records.Save(&proc.Record{PID: 321, StartedAt: f.now, Version: "1.0.0"}))

	report := f.mgr.Status(context.Background(), Polling)
	assert.True(t, report.Polling.Running())
	assert.Contains(t, report.Polling.VersionSkew, "1.0.0")
	assert.Contains(t, report.Polling.VersionSkew, "1.2.0")
}

func TestStatus_NativeUnavailable(t *testing.T) {
	f := newFixture(t)
	f.native.unavailable = true

	report := f.mgr.Status(context.Background(), Native)
	assert.Equal(t, StateUnavailable, report.Native.State)
	assert.NotEmpty(t, report.Native.Error)
	assert.False(t, report.Native.Active())
}

func TestStatus_ArtifactsAndLogTails(t *testing.T) {
	f := newFixture(t)
	dir := f.cfg.ArtifactDir()
	require.NoError(t, os.MkdirAll(dir, 0755))

	base := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	for i, name := range []string{"morning_briefing_20260301.txt", "morning_briefing_20260302.txt", "morning_briefing_20260303.txt"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("briefing"), 0644))
		mod := base.Add(time.Duration(i) * 24 * time.Hour)
		require.NoError(t, os.Chtimes(path, mod, mod))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	require.NoError(t, os.MkdirAll(f.cfg.LogDir(), 0755))
	require.NoError(t, os.WriteFile(f.cfg.NativeStdoutPath(), []byte("a\nb\nc\nd\ne\nf\ng\n"), 0644))

	f.cfg.Status.ArtifactCount = 2
	report := f.mgr.Status(context.Background(), Native)

	require.Len(t, report.Artifacts, 2)
	assert.Equal(t, "morning_briefing_20260303.txt", report.Artifacts[0].Name)
	assert.Equal(t, "morning_briefing_20260302.txt", report.Artifacts[1].Name)
	assert.Equal(t, int64(8), report.Artifacts[0].Size)

	assert.Equal(t, []string{"c", "d", "e", "f", "g"}, report.Native.StdoutTail)
	assert.Empty(t, report.Native.StderrTail)
}

func TestInstallNative_ThenStatusLoaded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.mgr.Install(ctx, Native, InstallOptions{})
	require.NoError(t, err)
	assert.Equal(t, f.cfg.DescriptorPath(), result.DescriptorPath)

	desc, err := launchd.LoadDescriptor(result.DescriptorPath)
	require.NoError(t, err)
	assert.Equal(t, am.DefaultLabel, desc.Label)
	assert.Equal(t, []string{"/bin/sh", "-c", "true"}, desc.ProgramArguments)
	assert.Equal(t, 7, desc.StartCalendarInterval.Hour)
	assert.Equal(t, 0, desc.StartCalendarInterval.Minute)
	assert.Equal(t, f.cfg.NativeStdoutPath(), desc.StandardOutPath)

	_, err = os.Stat(f.cfg.LogDir())
	assert.NoError(t, err, "log directory should be created")

	report := f.mgr.Status(ctx, Native)
	assert.True(t, report.Native.Active())
	assert.True(t, report.Native.DescriptorExists)
	assert.Equal(t, "07:00", report.Native.InstalledTrigger)
	assert.Empty(t, report.Native.Drift)
}

func TestStatus_NativeDescriptorDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mgr.Install(ctx, Native, InstallOptions{})
	require.NoError(t, err)

	// Editing the configuration leaves the installed job alone
	f.cfg.Job.TriggerTime = "06:15"
	report := f.mgr.Status(ctx, Native)
	assert.Equal(t, "07:00", report.Native.InstalledTrigger)
	assert.Contains(t, report.Native.Drift, "fires at 07:00")
	assert.Contains(t, report.Native.Drift, "06:15")
	assert.Contains(t, report.Native.Drift, DriftHint)

	_, err = f.mgr.Install(ctx, Native, InstallOptions{})
	require.NoError(t, err)
	report = f.mgr.Status(ctx, Native)
	assert.Equal(t, "06:15", report.Native.InstalledTrigger)
	assert.Empty(t, report.Native.Drift)
}

func TestStatus_NativeDescriptorUnreadable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.cfg.LaunchAgentsDir(), 0755))
	require.NoError(t, os.WriteFile(f.cfg.DescriptorPath(), []byte(`<?xml version="1.0" encoding="UTF-8"?><plist version="1.0"><dict><key>Label</key>`), 0644))

	report := f.mgr.Status(context.Background(), Native)
	assert.True(t, report.Native.DescriptorExists)
	assert.Empty(t, report.Native.InstalledTrigger)
	assert.Contains(t, report.Native.Drift, "decode")
	assert.Equal(t, StateNotLoaded, report.Native.State)
}

func TestInstallNative_ReinstallReplaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mgr.Install(ctx, Native, InstallOptions{})
	require.NoError(t, err)
	f.cfg.Job.TriggerTime = "06:45"
	_, err = f.mgr.Install(ctx, Native, InstallOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"register", "unregister", "register"}, f.native.calls)
	desc, err := launchd.LoadDescriptor(f.cfg.DescriptorPath())
	require.NoError(t, err)
	assert.Equal(t, 6, desc.StartCalendarInterval.Hour)
	assert.Equal(t, 45, desc.StartCalendarInterval.Minute)
}

func TestInstallNative_RegistrationFailure(t *testing.T) {
	f := newFixture(t)
	f.native.registerErr = errors.Wrap(errors.ErrRegistration, "Load failed: 5: Input/output error")

	_, err := f.mgr.Install(context.Background(), Native, InstallOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRegistration))
	assert.NotEmpty(t, errors.GetAllHints(err))

	// No rollback: the descriptor stays
	_, statErr := os.Stat(f.cfg.DescriptorPath())
	assert.NoError(t, statErr)
}

func TestUninstallPolling_KillsAndRemovesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	installed, err := f.mgr.Install(ctx, Polling, InstallOptions{Launcher: true})
	require.NoError(t, err)

	result, err := f.mgr.Uninstall(ctx, Polling)
	require.NoError(t, err)
	assert.Equal(t, installed.PID, result.StoppedPID)
	assert.True(t, result.RecordRemoved)
	assert.False(t, f.procs.IsAlive(installed.PID))

	rec, err := f.records.Load()
	require.NoError(t, err)
	assert.Nil(t, rec)
	_, err = os.Stat(f.cfg.LauncherPath())
	assert.True(t, os.IsNotExist(err))

	report := f.mgr.Status(ctx, Polling)
	assert.Equal(t, StateNotRunning, report.Polling.State)
}

func TestUninstallPolling_ReusedPIDNotSignalled(t *testing.T) {
	f := newFixture(t)
	f.procs.alive[321] = true
	f.procs.startedAt = f.now
	require.NoError(t, f.records.Save(&proc.Record{PID: 321, StartedAt: f.now.Add(-24 * time.Hour)}))

	result, err := f.mgr.Uninstall(context.Background(), Polling)
	require.NoError(t, err)
	assert.Zero(t, result.StoppedPID)
	assert.True(t, result.RecordRemoved)
	assert.Empty(t, f.procs.terminated, "an unrelated process must not be signalled")
	assert.True(t, f.procs.IsAlive(321))
}

func TestInstallPolling_ReusedPIDNotReplaced(t *testing.T) {
	f := newFixture(t)
	f.procs.alive[321] = true
	f.procs.startedAt = f.now
	require.NoError(t, f.records.Save(&proc.Record{PID: 321, StartedAt: f.now.Add(-24 * time.Hour)}))

	result, err := f.mgr.Install(context.Background(), Polling, InstallOptions{})
	require.NoError(t, err)
	assert.Zero(t, result.ReplacedPID)
	assert.Empty(t, f.procs.terminated)

	rec, err := f.records.Load()
	require.NoError(t, err)
	assert.Equal(t, result.PID, rec.PID)
}

func TestUninstallPolling_StaleRecordRemoved(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.records.Save(&proc.Record{PID: 999999}))

	result, err := f.mgr.Uninstall(context.Background(), Polling)
	require.NoError(t, err)
	assert.Zero(t, result.StoppedPID)
	assert.True(t, result.RecordRemoved)
	assert.Empty(t, f.procs.terminated)

	rec, err := f.records.Load()
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestUninstall_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mgr.Install(ctx, Native, InstallOptions{})
	require.NoError(t, err)
	_, err = f.mgr.Install(ctx, Polling, InstallOptions{})
	require.NoError(t, err)

	first, err := f.mgr.Uninstall(ctx, All)
	require.NoError(t, err)
	assert.True(t, first.NativeUnloaded)
	assert.True(t, first.DescriptorRemoved)
	assert.True(t, first.RecordRemoved)

	second, err := f.mgr.Uninstall(ctx, All)
	require.NoError(t, err)
	assert.False(t, second.NativeUnloaded)
	assert.False(t, second.DescriptorRemoved)
	assert.False(t, second.RecordRemoved)
	assert.Zero(t, second.StoppedPID)
}

func TestUninstallNative_LaunchctlUnavailableWithoutDescriptor(t *testing.T) {
	f := newFixture(t)
	f.native.unavailable = true

	_, err := f.mgr.Uninstall(context.Background(), Native)
	assert.NoError(t, err)
}

func TestUninstallAll_CollectsFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mgr.Install(ctx, Native, InstallOptions{})
	require.NoError(t, err)
	_, err = f.mgr.Install(ctx, Polling, InstallOptions{})
	require.NoError(t, err)

	// Native fails but polling cleanup still happens
	f.native.unavailable = true
	result, err := f.mgr.Uninstall(ctx, All)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unload native job")
	assert.True(t, result.RecordRemoved)
	assert.NotZero(t, result.StoppedPID)
}
