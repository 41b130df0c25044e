package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/dawn/db"
	"github.com/teranos/dawn/display"
	"github.com/teranos/dawn/errors"
	"github.com/teranos/dawn/internal/util"
	"github.com/teranos/dawn/logger"
	"github.com/teranos/dawn/pulse/schedule"
	"github.com/teranos/dawn/sym"
)

// HistoryCmd lists recorded executions
var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: sym.History + " List recorded executions",
	Long: sym.History + ` List recorded executions of the payload, newest first.

Executions are recorded by the polling scheduler and by 'dawn fire'.
Runs started by launchd are not recorded.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

// historyPage is the structured form of 'dawn history'
type historyPage struct {
	Total      int                   `json:"total" yaml:"total"`
	Executions []*schedule.Execution `json:"executions" yaml:"executions"`
}

func init() {
	HistoryCmd.Flags().IntP("limit", "n", 10, "Number of executions to show")
	HistoryCmd.Flags().String("status", "", "Only show executions with this status (running, completed, failed)")
	HistoryCmd.Flags().String("format", "text", "Output format: text, json, yaml")
	HistoryCmd.Flags().Int("prune-days", 0, "Delete executions older than this many days before listing")
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	status, _ := cmd.Flags().GetString("status")
	pruneDays, _ := cmd.Flags().GetInt("prune-days")

	format, err := display.FormatFlag(cmd, display.Text, display.JSON, display.YAML)
	if err != nil {
		return err
	}

	switch status {
	case "", schedule.ExecutionStatusRunning, schedule.ExecutionStatusCompleted, schedule.ExecutionStatusFailed:
	default:
		return errors.Newf("unknown status %q", status)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	page := historyPage{Executions: []*schedule.Execution{}}
	conn, err := db.OpenExisting(cfg.DatabasePath(), logger.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to open execution history")
	}
	if conn != nil {
		defer conn.Close()
		store := schedule.NewExecutionStore(conn)

		if pruneDays > 0 {
			deleted, err := store.CleanupOldExecutions(pruneDays)
			if err != nil {
				return err
			}
			logger.WithSymbol(sym.History).Infow("Pruned execution history", "deleted", deleted, "days", pruneDays)
		}

		execs, total, err := store.ListExecutions(cfg.Job.Label, limit, 0, status)
		if err != nil {
			return err
		}
		page.Executions = execs
		page.Total = total
	}

	if format != display.Text {
		return display.Write(cmd.OutOrStdout(), format, page)
	}
	renderHistory(cmd.OutOrStdout(), page)
	return nil
}

func renderHistory(w io.Writer, page historyPage) {
	if len(page.Executions) == 0 {
		fmt.Fprintf(w, "%s No executions recorded\n", sym.History)
		return
	}

	data := pterm.TableData{{"ID", "STATUS", "SOURCE", "DATE", "STARTED", "DURATION", "EXIT", "OUTPUT"}}
	for _, exec := range page.Executions {
		started := exec.StartedAt
		if t, err := time.Parse(time.RFC3339, exec.StartedAt); err == nil {
			started = t.Local().Format("15:04:05")
		}
		duration := "-"
		if exec.DurationMs != nil {
			duration = (time.Duration(*exec.DurationMs) * time.Millisecond).String()
		}
		exit := "-"
		if exec.ExitCode != nil {
			exit = fmt.Sprintf("%d", *exec.ExitCode)
		}
		output := ""
		if exec.ErrorMessage != nil {
			output = *exec.ErrorMessage
		} else if exec.OutputPreview != nil {
			lines := util.LastLines(*exec.OutputPreview, 1)
			if len(lines) > 0 {
				output = lines[0]
			}
		}
		data = append(data, []string{
			exec.ID, exec.Status, exec.Trigger, exec.TriggerDate, started, duration, exit, util.Truncate(output, 40),
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		for _, row := range data {
			fmt.Fprintln(w, row)
		}
		return
	}
	fmt.Fprintln(w, table)
	fmt.Fprintf(w, "\nShowing %d of %d execution(s)\n", len(page.Executions), page.Total)
}
