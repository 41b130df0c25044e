package lifecycle

import (
	"context"
	"os"

	"github.com/teranos/dawn/errors"
	"github.com/teranos/dawn/logger"
)

// UninstallResult describes what uninstall removed
type UninstallResult struct {
	NativeUnloaded    bool `json:"native_unloaded" yaml:"native_unloaded"`
	DescriptorRemoved bool `json:"descriptor_removed" yaml:"descriptor_removed"`
	StoppedPID        int  `json:"stopped_pid,omitempty" yaml:"stopped_pid,omitempty"`
	Forced            bool `json:"forced,omitempty" yaml:"forced,omitempty"`
	RecordRemoved     bool `json:"record_removed" yaml:"record_removed"`
}

// Uninstall removes the job from the backend. It is idempotent: absent
// state is success. With All, both backends are attempted and their
// failures combined.
func (m *Manager) Uninstall(ctx context.Context, backend Backend) (*UninstallResult, error) {
	result := &UninstallResult{}

	switch backend {
	case Native:
		return result, m.uninstallNative(ctx, result)
	case Polling:
		return result, m.uninstallPolling(ctx, result)
	case All:
		nativeErr := m.uninstallNative(ctx, result)
		pollingErr := m.uninstallPolling(ctx, result)
		return result, errors.CombineErrors(nativeErr, pollingErr)
	}
	return result, errors.Newf("cannot uninstall backend %q", backend)
}

func (m *Manager) uninstallNative(ctx context.Context, result *UninstallResult) error {
	log := logger.AddNativeSymbol(m.log)
	path := m.cfg.DescriptorPath()

	_, statErr := os.Stat(path)
	descriptorExists := statErr == nil

	unloadPath := ""
	if descriptorExists {
		unloadPath = path
	}

	err := m.native.Unregister(ctx, m.cfg.Job.Label, unloadPath)
	switch {
	case err == nil:
		result.NativeUnloaded = true
		log.Infow("Unloaded from launchd", logger.FieldJobLabel, m.cfg.Job.Label)
	case errors.IsNotRegistered(err):
		log.Debugw("Not registered with launchd", logger.FieldJobLabel, m.cfg.Job.Label)
	case !descriptorExists:
		// Nothing of ours is installed; an unusable launchctl changes nothing
		log.Debugw("launchctl unavailable, no descriptor present", logger.FieldError, err)
	default:
		return errors.Wrap(err, "failed to unload native job")
	}

	if descriptorExists {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Setupf(err, "remove descriptor %s", path)
		}
		result.DescriptorRemoved = true
		log.Infow("Removed descriptor", logger.FieldPath, path)
	}
	return nil
}

func (m *Manager) uninstallPolling(ctx context.Context, result *UninstallResult) error {
	log := logger.AddPulseCloseSymbol(m.log)
	var errs error

	rec, err := m.records.Load()
	if err != nil {
		// A corrupt record is removed below like any other
		log.Warnw("Unreadable process record", logger.FieldPath, m.records.Path(), logger.FieldError, err)
	}

	if rec != nil && m.isRecordedScheduler(rec) {
		forced, err := m.procs.Terminate(ctx, rec.PID, m.cfg.StopGrace())
		if err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "failed to stop scheduler %d", rec.PID))
		} else {
			result.StoppedPID = rec.PID
			result.Forced = forced
			log.Infow("Stopped polling scheduler", logger.FieldPID, rec.PID, "forced", forced)
		}
	}

	// Cleanup happens whether or not a process was found
	if rmErr := m.records.Remove(); rmErr != nil {
		errs = errors.CombineErrors(errs, rmErr)
	} else {
		result.RecordRemoved = rec != nil || err != nil
	}
	if rmErr := os.Remove(m.cfg.LauncherPath()); rmErr != nil && !os.IsNotExist(rmErr) {
		errs = errors.CombineErrors(errs, errors.Setupf(rmErr, "remove launcher %s", m.cfg.LauncherPath()))
	}

	return errs
}
