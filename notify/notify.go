// Package notify sends desktop notifications after payload executions.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/teranos/dawn/errors"
	"github.com/teranos/dawn/logger"
	"github.com/teranos/dawn/pulse/schedule"
)

// Urgency selects the icon prefixed to the title
type Urgency string

const (
	UrgencyInfo    Urgency = "info"
	UrgencyWarning Urgency = "warning"
	UrgencyError   Urgency = "error"
)

// Icon returns the title prefix for the urgency
func (u Urgency) Icon() string {
	switch u {
	case UrgencyWarning:
		return "⚠️"
	case UrgencyError:
		return "❌"
	default:
		return "✅"
	}
}

// Notifier delivers a single notification
type Notifier interface {
	Notify(ctx context.Context, title, message string, urgency Urgency) error
}

// Noop discards notifications
type Noop struct{}

// Notify implements Notifier
func (Noop) Notify(context.Context, string, string, Urgency) error { return nil }

// CommandRunner runs an external command; swapped out in tests
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Desktop shows native notifications: osascript on darwin, notify-send elsewhere.
type Desktop struct {
	GOOS string
	Run  CommandRunner
}

// NewDesktop creates a desktop notifier for the running OS
func NewDesktop() *Desktop {
	return &Desktop{GOOS: runtime.GOOS, Run: execRunner}
}

// Notify implements Notifier
func (d *Desktop) Notify(ctx context.Context, title, message string, urgency Urgency) error {
	title = urgency.Icon() + " " + title

	var name string
	var args []string
	if d.GOOS == "darwin" {
		script := fmt.Sprintf("display notification %s with title %s", appleScriptQuote(message), appleScriptQuote(title))
		name, args = "osascript", []string{"-e", script}
	} else {
		level := "normal"
		if urgency == UrgencyError {
			level = "critical"
		}
		name, args = "notify-send", []string{"--urgency", level, "--app-name", "dawn", title, message}
	}

	out, err := d.Run(ctx, name, args...)
	if err != nil {
		return errors.WithDetail(
			errors.Wrapf(err, "%s failed", name),
			strings.TrimSpace(string(out)),
		)
	}
	return nil
}

// appleScriptQuote returns s as an AppleScript string literal
func appleScriptQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// Policy selects which execution outcomes notify
type Policy struct {
	OnSuccess bool
	OnFailure bool
}

// ExecutionNotifier turns finished executions into notifications.
// It implements schedule.ExecutionBroadcaster.
type ExecutionNotifier struct {
	notifier Notifier
	policy   Policy
	title    string
}

// NewExecutionNotifier creates a broadcaster that notifies per policy
func NewExecutionNotifier(n Notifier, policy Policy, title string) *ExecutionNotifier {
	if n == nil {
		n = Noop{}
	}
	if title == "" {
		title = "Morning briefing"
	}
	return &ExecutionNotifier{notifier: n, policy: policy, title: title}
}

// BroadcastExecutionStarted implements schedule.ExecutionBroadcaster
func (e *ExecutionNotifier) BroadcastExecutionStarted(*schedule.Execution) {}

// BroadcastExecutionFinished implements schedule.ExecutionBroadcaster.
// Delivery failures are logged, never returned.
func (e *ExecutionNotifier) BroadcastExecutionFinished(exec *schedule.Execution) {
	title, message, urgency, ok := e.render(exec)
	if !ok {
		return
	}

	if err := e.notifier.Notify(context.Background(), title, message, urgency); err != nil {
		logger.Warnw("Notification failed",
			logger.FieldExecutionID, exec.ID,
			logger.FieldError, err)
	}
}

func (e *ExecutionNotifier) render(exec *schedule.Execution) (title, message string, urgency Urgency, ok bool) {
	switch exec.Status {
	case schedule.ExecutionStatusCompleted:
		if !e.policy.OnSuccess {
			return "", "", "", false
		}
		return e.title + " ready", "Your briefing for " + exec.TriggerDate + " is ready", UrgencyInfo, true

	case schedule.ExecutionStatusFailed:
		if !e.policy.OnFailure {
			return "", "", "", false
		}
		message = "Run failed"
		if exec.ErrorMessage != nil {
			message = *exec.ErrorMessage
		}
		return e.title + " failed", message + ". Run 'dawn status' for logs.", UrgencyError, true
	}
	return "", "", "", false
}
