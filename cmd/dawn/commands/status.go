package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/dawn/display"
	"github.com/teranos/dawn/lifecycle"
	"github.com/teranos/dawn/sym"
)

// StatusCmd reports the state of the job on each backend
var StatusCmd = &cobra.Command{
	Use:       "status [native|polling]",
	Short:     sym.Status + " Show backend state, recent logs, and artifacts",
	ValidArgs: []string{string(lifecycle.Native), string(lifecycle.Polling)},
	Long: sym.Status + ` Show the state of the daily job.

Without an argument both backends are reported. Status is read-only: a stale
PID record is reported, never cleaned up.

Examples:
  dawn status
  dawn status polling --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	StatusCmd.Flags().String("format", "text", "Output format: text, json, yaml")
}

func runStatus(cmd *cobra.Command, args []string) error {
	backend := lifecycle.Both
	if len(args) == 1 {
		b, err := lifecycle.ParseBackend(args[0], false)
		if err != nil {
			return err
		}
		backend = b
	}

	format, err := display.FormatFlag(cmd, display.Text, display.JSON, display.YAML)
	if err != nil {
		return err
	}

	cfg, err := loadConfigLenient()
	if err != nil {
		return err
	}

	report := newManager(cfg).Status(cmd.Context(), backend)
	if format != display.Text {
		return display.Write(cmd.OutOrStdout(), format, report)
	}
	renderStatus(cmd.OutOrStdout(), report)
	return nil
}

func renderStatus(w io.Writer, report *lifecycle.Report) {
	fmt.Fprintln(w, pterm.DefaultSection.Sprintf("%s %s", sym.Status, report.JobLabel))
	fmt.Fprintf(w, "Trigger:  daily at %s\n", report.TriggerTime)
	if report.NextRun != nil {
		fmt.Fprintf(w, "Next run: %s (in %s)\n", report.NextRun.Format("Mon Jan 2 15:04"), time.Until(*report.NextRun).Round(time.Minute))
	}

	if report.Native != nil {
		renderNative(w, report.Native)
	}
	if report.Polling != nil {
		renderPolling(w, report.Polling)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Recent artifacts in %s:\n", report.ArtifactDir)
	if len(report.Artifacts) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, a := range report.Artifacts {
		fmt.Fprintf(w, "  %-40s %8s  %s\n", a.Name, humanSize(a.Size), a.ModTime.Format("2006-01-02 15:04"))
	}

	if exec := report.LastExecution; exec != nil {
		fmt.Fprintln(w)
		line := fmt.Sprintf("Last execution: %s %s (%s)", exec.Status, exec.StartedAt, exec.Trigger)
		if exec.ExitCode != nil {
			line += fmt.Sprintf(" exit %d", *exec.ExitCode)
		}
		fmt.Fprintln(w, line)
	}

	for _, warning := range report.Warnings {
		fmt.Fprint(w, pterm.Warning.Sprintln(warning))
	}
}

func renderNative(w io.Writer, s *lifecycle.NativeStatus) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s Native (launchd)\n", sym.Native)
	switch s.State {
	case lifecycle.StateLoaded:
		fmt.Fprint(w, pterm.Success.Sprintln("LOADED and ACTIVE"))
		if s.Registration != nil && s.Registration.LastExitStatus != nil {
			fmt.Fprintf(w, "  Last exit status: %d\n", *s.Registration.LastExitStatus)
		}
	case lifecycle.StateUnavailable:
		fmt.Fprint(w, pterm.Warning.Sprintfln("launchctl unavailable: %s", s.Error))
	default:
		fmt.Fprint(w, pterm.Error.Sprintln("NOT loaded"))
	}
	if s.DescriptorExists {
		fmt.Fprintf(w, "  Descriptor: %s\n", s.DescriptorPath)
	}
	if s.InstalledTrigger != "" {
		fmt.Fprintf(w, "  Installed trigger: %s\n", s.InstalledTrigger)
	}
	if s.Drift != "" {
		fmt.Fprint(w, pterm.Warning.Sprintln(s.Drift))
	}
	renderTail(w, "stdout", s.StdoutPath, s.StdoutTail)
	renderTail(w, "stderr", s.StderrPath, s.StderrTail)
}

func renderPolling(w io.Writer, s *lifecycle.PollingStatus) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s Polling scheduler\n", sym.Pulse)
	switch s.State {
	case lifecycle.StateRunning:
		fmt.Fprint(w, pterm.Success.Sprintfln("RUNNING (PID %d)", s.Record.PID))
		if s.Uptime > 0 {
			fmt.Fprintf(w, "  Uptime:  %s\n", s.Uptime)
		}
		if s.Record.Version != "" {
			fmt.Fprintf(w, "  Version: %s\n", s.Record.Version)
		}
		if s.Process != nil && s.Process.RSSBytes > 0 {
			fmt.Fprintf(w, "  Memory:  %s\n", humanSize(int64(s.Process.RSSBytes)))
		}
		if s.VersionSkew != "" {
			fmt.Fprint(w, pterm.Warning.Sprintln(s.VersionSkew))
		}
	case lifecycle.StateStale:
		pid := 0
		if s.Record != nil {
			pid = s.Record.PID
		}
		fmt.Fprint(w, pterm.Error.Sprintfln("NOT running (stale record for PID %d)", pid))
		if s.Error != "" {
			fmt.Fprintf(w, "  %s\n", s.Error)
		}
		fmt.Fprintf(w, "  Hint: %s\n", s.Hint)
	default:
		fmt.Fprint(w, pterm.Error.Sprintln("NOT running"))
		if s.Error != "" {
			fmt.Fprintf(w, "  %s\n  Hint: %s\n", s.Error, s.Hint)
		}
	}
	renderTail(w, "log", s.LogPath, s.LogTail)
}

func renderTail(w io.Writer, name, path string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, "  Last %d %s lines (%s):\n", len(lines), name, path)
	for _, line := range lines {
		fmt.Fprintf(w, "    %s\n", strings.TrimRight(line, "\r"))
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
