// Package lifecycle installs, inspects, and removes the daily job on either
// backend. OS facilities are reached only through the interfaces below so the
// logic can be exercised against fakes.
package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/dawn/am"
	"github.com/teranos/dawn/errors"
	"github.com/teranos/dawn/launchd"
	"github.com/teranos/dawn/logger"
	"github.com/teranos/dawn/proc"
	"github.com/teranos/dawn/version"
)

// Backend selects where the job is scheduled
type Backend string

const (
	Native  Backend = "native"
	Polling Backend = "polling"
	All     Backend = "all" // uninstall only
	Both    Backend = ""    // status only: report both backends
)

// ParseBackend validates a CLI argument. allowAll admits "all".
func ParseBackend(s string, allowAll bool) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case Native, Polling:
		return b, nil
	case All:
		if allowAll {
			return b, nil
		}
	}
	return "", errors.Newf("unknown backend %q", s)
}

// NativeScheduler is the OS scheduling service capability
type NativeScheduler interface {
	Register(ctx context.Context, descriptorPath string) error
	Unregister(ctx context.Context, label, descriptorPath string) error
	IsRegistered(ctx context.Context, label string) (*launchd.Registration, error)
}

// ProcessManager is the process-management capability
type ProcessManager interface {
	Spawn(spec proc.SpawnSpec) (int, error)
	IsAlive(pid int) bool
	WaitAlive(ctx context.Context, pid int, grace time.Duration) bool
	Terminate(ctx context.Context, pid int, grace time.Duration) (forced bool, err error)
	Inspect(pid int) (*proc.Info, error)
}

// RecordStore persists the RunningProcessRecord
type RecordStore interface {
	Load() (*proc.Record, error)
	Save(rec *proc.Record) error
	Remove() error
	Path() string
}

// Options wires a Manager. Zero values select the real OS implementations.
type Options struct {
	Native     NativeScheduler
	Processes  ProcessManager
	Records    RecordStore
	Executable string // dawn binary spawned as the polling scheduler
	ConfigFile string // forwarded to the scheduler as --config when set
	Version    string
	Logger     *zap.SugaredLogger

	// Sources lists the config cascade the caller loaded. Defaults to am.Sources.
	Sources func() []am.ConfigSource
}

// Manager performs install, status, and uninstall for one configured job
type Manager struct {
	cfg        *am.Config
	native     NativeScheduler
	procs      ProcessManager
	records    RecordStore
	executable string
	configFile string
	sources    func() []am.ConfigSource
	version    string
	log        *zap.SugaredLogger
	now        func() time.Time
	newID      func() string
}

// New creates a lifecycle manager for cfg
func New(cfg *am.Config, opts Options) *Manager {
	m := &Manager{
		cfg:        cfg,
		native:     opts.Native,
		procs:      opts.Processes,
		records:    opts.Records,
		executable: opts.Executable,
		configFile: opts.ConfigFile,
		sources:    opts.Sources,
		version:    opts.Version,
		log:        opts.Logger,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
	if m.native == nil {
		m.native = launchd.NewLaunchctl()
	}
	if m.procs == nil {
		m.procs = proc.NewManager()
	}
	if m.records == nil {
		m.records = proc.NewRecordStore(cfg.PIDPath())
	}
	if m.sources == nil {
		m.sources = am.Sources
	}
	if m.version == "" {
		m.version = version.Version
	}
	if m.log == nil {
		m.log = logger.Logger
	}
	return m
}

// pidReuseTolerance absorbs the gap between a scheduler's creation and its
// record being written, which happens just after the spawn
const pidReuseTolerance = 5 * time.Second

// recordedProcess checks that rec still names the scheduler it was written
// for. A dead PID yields ErrNotAlive. A live process created well after the
// record was written is some other program that reused the PID, which yields
// ErrStaleRecord. The Info is nil when the process could not be inspected.
func (m *Manager) recordedProcess(rec *proc.Record) (*proc.Info, error) {
	if !m.procs.IsAlive(rec.PID) {
		return nil, errors.Wrapf(errors.ErrNotAlive, "scheduler %d", rec.PID)
	}
	info, err := m.procs.Inspect(rec.PID)
	if err != nil {
		return nil, nil
	}
	if !rec.StartedAt.IsZero() && !info.StartedAt.IsZero() &&
		info.StartedAt.After(rec.StartedAt.Add(pidReuseTolerance)) {
		return info, errors.Wrapf(errors.ErrStaleRecord,
			"PID %d now belongs to a process started %s, after the scheduler was recorded at %s",
			rec.PID, info.StartedAt.Format(time.RFC3339), rec.StartedAt.Format(time.RFC3339))
	}
	return info, nil
}

// isRecordedScheduler reports whether rec names a live scheduler that may be
// signalled. A reused PID is left alone.
func (m *Manager) isRecordedScheduler(rec *proc.Record) bool {
	_, err := m.recordedProcess(rec)
	if errors.Is(err, errors.ErrStaleRecord) {
		logger.AddPulseCloseSymbol(m.log).Warnw("Not signalling reused PID", logger.FieldPID, rec.PID, logger.FieldError, err)
	}
	return err == nil
}
