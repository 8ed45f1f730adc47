package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run background jobs until interrupted",
		Long: `Restore the last snapshot and run the periodic jobs (memory cleanup,
alert and decision expiry, delay refresh, analysis, persistence) plus the
rule file watcher when rules.watch is set. SIGINT or SIGTERM stops the
jobs and writes a final snapshot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(rootOpts, cmd)
		},
	}
}

func runRun(opts *RootOptions, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core, err := openCore(cmd, opts)
	if err != nil {
		return err
	}
	defer core.Close()

	formatterFor(cmd, opts).VerboseLog("running; press Ctrl-C to stop")
	if err := core.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "run", err)
	}
	return nil
}
