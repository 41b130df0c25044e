package proc

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/teranos/dawn/errors"
	"github.com/teranos/dawn/logger"
)

// SpawnSpec describes a detached background process
type SpawnSpec struct {
	Argv    []string
	Dir     string
	Env     []string // nil = inherit
	LogPath string   // stdout and stderr are appended here
}

// Info is a point-in-time view of a live process
type Info struct {
	PID       int       `json:"pid" yaml:"pid"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	RSSBytes  uint64    `json:"rss_bytes,omitempty" yaml:"rss_bytes,omitempty"`
	Cmdline   string    `json:"cmdline,omitempty" yaml:"cmdline,omitempty"`
}

// Manager spawns, inspects, and terminates processes by PID
type Manager struct {
	pollInterval time.Duration
}

// NewManager creates a process manager
func NewManager() *Manager {
	return &Manager{pollInterval: 50 * time.Millisecond}
}

// Spawn starts a process detached from the caller's session and returns its PID.
// The caller does not wait for it; the child is reaped in the background for
// as long as the caller lives.
func (m *Manager) Spawn(spec SpawnSpec) (int, error) {
	if len(spec.Argv) == 0 {
		return 0, errors.New("spawn requires a command")
	}

	if err := os.MkdirAll(filepath.Dir(spec.LogPath), 0755); err != nil {
		return 0, errors.Setupf(err, "create log directory %s", filepath.Dir(spec.LogPath))
	}
	logFile, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, errors.Setupf(err, "open log file %s", spec.LogPath)
	}
	defer logFile.Close() // the child holds its own descriptor

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return 0, errors.Setupf(err, "open %s", os.DevNull)
	}
	defer devNull.Close()

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdin = devNull
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return 0, errors.Wrapf(err, "failed to start %s", spec.Argv[0])
	}

	pid := cmd.Process.Pid
	go cmd.Wait() // reap

	logger.Debugw("Spawned detached process",
		logger.FieldPID, pid,
		logger.FieldCommand, spec.Argv,
		logger.FieldPath, spec.LogPath)
	return pid, nil
}

// IsAlive reports whether pid names a running (non-zombie) process
func (m *Manager) IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	if err != nil || !exists {
		return false
	}

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	status, err := p.Status()
	if err != nil {
		// Exists but unreadable (another user's process): treat as alive
		return true
	}
	for _, s := range status {
		if s == process.Zombie {
			return false
		}
	}
	return true
}

// Inspect returns start time, memory, and command line for a live process
func (m *Manager) Inspect(pid int) (*Info, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, errors.Wrapf(err, "process %d", pid)
	}

	info := &Info{PID: pid}
	if ms, err := p.CreateTime(); err == nil {
		info.StartedAt = time.UnixMilli(ms)
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		info.RSSBytes = mem.RSS
	}
	if cmdline, err := p.Cmdline(); err == nil {
		info.Cmdline = cmdline
	}
	return info, nil
}

// WaitAlive waits for grace and reports whether pid is still alive afterwards.
func (m *Manager) WaitAlive(ctx context.Context, pid int, grace time.Duration) bool {
	select {
	case <-ctx.Done():
	case <-time.After(grace):
	}
	return m.IsAlive(pid)
}

// Terminate requests graceful termination (SIGTERM), waits up to grace for the
// process to exit, then force-kills it (SIGKILL). Returns whether the kill was
// needed. A process that is already gone is not an error.
func (m *Manager) Terminate(ctx context.Context, pid int, grace time.Duration) (forced bool, err error) {
	if !m.IsAlive(pid) {
		return false, nil
	}

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false, nil
	}

	log := logger.Logger.With(logger.FieldPID, pid)
	log.Debugw("Sending SIGTERM", logger.FieldSignal, "SIGTERM")
	if err := p.TerminateWithContext(ctx); err != nil && m.IsAlive(pid) {
		return false, errors.Wrapf(err, "failed to signal process %d", pid)
	}

	if m.waitExit(ctx, pid, grace) {
		return false, nil
	}

	log.Warnw("Process ignored SIGTERM, sending SIGKILL", logger.FieldSignal, "SIGKILL", "grace", grace)
	if err := p.KillWithContext(ctx); err != nil && m.IsAlive(pid) {
		return true, errors.Wrapf(err, "failed to kill process %d", pid)
	}

	if !m.waitExit(ctx, pid, time.Second) {
		return true, errors.Newf("process %d still alive after SIGKILL", pid)
	}
	return true, nil
}

// waitExit polls until pid is gone or timeout elapses. Returns true if gone.
func (m *Manager) waitExit(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !m.IsAlive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return !m.IsAlive(pid)
		case <-time.After(m.pollInterval):
		}
	}
}
