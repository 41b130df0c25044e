package launchd

import (
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/teranos/dawn/errors"
	"github.com/teranos/dawn/logger"
)

// CommandRunner runs an external command and returns its combined output
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Registration is what `launchctl list <label>` reports for a job
type Registration struct {
	Loaded         bool   `json:"loaded" yaml:"loaded"`
	PID            int    `json:"pid,omitempty" yaml:"pid,omitempty"` // set while the job is running
	LastExitStatus *int   `json:"last_exit_status,omitempty" yaml:"last_exit_status,omitempty"`
	Raw            string `json:"-" yaml:"-"`
}

// Launchctl drives the launchctl binary
type Launchctl struct {
	Bin string
	Run CommandRunner
}

// NewLaunchctl returns a Launchctl using the system binary
func NewLaunchctl() *Launchctl {
	return &Launchctl{Bin: "launchctl", Run: execRunner}
}

// Register loads the descriptor at path. Loading is the step that makes launchd
// honor the descriptor; a rejection is ErrRegistration.
func (l *Launchctl) Register(ctx context.Context, descriptorPath string) error {
	out, err := l.Run(ctx, l.Bin, "load", "-w", descriptorPath)
	output := strings.TrimSpace(string(out))
	if err != nil {
		return errors.WithDetail(
			errors.Wrapf(errors.Mark(err, errors.ErrRegistration), "launchctl load %s", descriptorPath),
			output,
		)
	}
	// launchctl load reports some failures on stdout with a zero exit
	if strings.Contains(output, "Load failed") || strings.Contains(output, "Invalid property list") {
		return errors.Wrapf(errors.ErrRegistration, "launchctl load %s: %s", descriptorPath, output)
	}

	logger.AddNativeSymbol(logger.Logger).Debugw("Registered with launchd", logger.FieldPath, descriptorPath)
	return nil
}

// Unregister unloads the descriptor, falling back to removing by label when
// the descriptor file is gone. Returns ErrNotRegistered when launchd has no
// such job.
func (l *Launchctl) Unregister(ctx context.Context, label, descriptorPath string) error {
	args := []string{"remove", label}
	if descriptorPath != "" {
		args = []string{"unload", descriptorPath}
	}

	out, err := l.Run(ctx, l.Bin, args...)
	output := strings.TrimSpace(string(out))
	if notRegistered(output) {
		return errors.Wrapf(errors.ErrNotRegistered, "launchctl %s", args[0])
	}
	if err != nil {
		return errors.WithDetail(errors.Wrapf(err, "launchctl %s", strings.Join(args, " ")), output)
	}
	return nil
}

// IsRegistered queries `launchctl list <label>`
func (l *Launchctl) IsRegistered(ctx context.Context, label string) (*Registration, error) {
	out, err := l.Run(ctx, l.Bin, "list", label)
	output := string(out)

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// launchctl missing or not runnable
		return nil, errors.Wrap(err, "launchctl list")
	}
	if err != nil || notRegistered(output) {
		return &Registration{Loaded: false, Raw: output}, nil
	}

	reg := &Registration{Loaded: true, Raw: output}
	if m := pidPattern.FindStringSubmatch(output); m != nil {
		reg.PID, _ = strconv.Atoi(m[1])
	}
	if m := exitPattern.FindStringSubmatch(output); m != nil {
		if code, err := strconv.Atoi(m[1]); err == nil {
			reg.LastExitStatus = &code
		}
	}
	return reg, nil
}

var (
	pidPattern  = regexp.MustCompile(`"PID"\s*=\s*(\d+);`)
	exitPattern = regexp.MustCompile(`"LastExitStatus"\s*=\s*(-?\d+);`)
)

func notRegistered(output string) bool {
	return strings.Contains(output, "Could not find specified service") ||
		strings.Contains(output, "No such process") ||
		strings.Contains(output, "not find")
}
