package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/dawn/am"
	"github.com/teranos/dawn/lifecycle"
	"github.com/teranos/dawn/sym"
)

// LogsCmd prints or follows the backend log files
var LogsCmd = &cobra.Command{
	Use:       "logs [native|polling]",
	Short:     sym.Logs + " Show or follow backend logs",
	ValidArgs: []string{string(lifecycle.Native), string(lifecycle.Polling)},
	Long: sym.Logs + ` Show the last lines of the backend logs.

native   launchd stdout and stderr of the payload
polling  the scheduler log, including payload output

Examples:
  dawn logs polling -n 50
  dawn logs --follow`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

func init() {
	LogsCmd.Flags().IntP("lines", "n", 20, "Number of lines to show")
	LogsCmd.Flags().BoolP("follow", "f", false, "Keep printing lines as they are appended")
}

// logFiles lists the log files of a backend (Both for all of them)
func logFiles(cfg *am.Config, backend lifecycle.Backend) []string {
	var files []string
	if backend == lifecycle.Native || backend == lifecycle.Both {
		files = append(files, cfg.NativeStdoutPath(), cfg.NativeStderrPath())
	}
	if backend == lifecycle.Polling || backend == lifecycle.Both {
		files = append(files, cfg.SchedulerLogPath())
	}
	return files
}

func runLogs(cmd *cobra.Command, args []string) error {
	backend := lifecycle.Both
	if len(args) == 1 {
		b, err := lifecycle.ParseBackend(args[0], false)
		if err != nil {
			return err
		}
		backend = b
	}
	lines, _ := cmd.Flags().GetInt("lines")
	follow, _ := cmd.Flags().GetBool("follow")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	files := logFiles(cfg, backend)
	for _, path := range files {
		tail, err := lifecycle.TailFile(path, lines)
		if err != nil {
			return err
		}
		if len(files) > 1 {
			fmt.Fprintf(out, "==> %s <==\n", path)
		}
		for _, line := range tail {
			fmt.Fprintln(out, line)
		}
	}

	if !follow {
		return nil
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for _, path := range files {
		path := path
		g.Go(func() error {
			return lifecycle.Follow(ctx, path, out)
		})
	}
	return g.Wait()
}
