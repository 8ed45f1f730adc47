package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Detect patterns, retrain the learning model and generate insights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(rootOpts, cmd)
		},
	}
}

func runAnalyze(opts *RootOptions, cmd *cobra.Command) error {
	core, err := openCore(cmd, opts)
	if err != nil {
		return err
	}
	defer core.Close()

	report := core.Analyze(cmd.Context())
	if err := core.Persist(cmd.Context()); err != nil {
		return WrapExitError(ExitCommandError, "persist", err)
	}

	return formatterFor(cmd, opts).Success(report, func(w io.Writer) {
		fmt.Fprintf(w, "%d shipments, delivery rate %.1f%%, %d delayed, %d with issues\n",
			report.Shipments, report.Context.DeliveryRate, report.Context.Delayed, report.Context.WithIssues)
		if report.Trained {
			fmt.Fprintf(w, "learning model trained on %d samples\n", report.LearningSamples)
		} else {
			fmt.Fprintln(w, "learning model not trained yet (too few finished shipments)")
		}
		if len(report.Patterns) > 0 {
			fmt.Fprintln(w, "\nPatterns:")
			for _, p := range report.Patterns {
				fmt.Fprintf(w, "  [%s] %s (confidence %.0f)\n", p.Type, p.Description, p.Confidence)
			}
		}
		if len(report.Insights) > 0 {
			fmt.Fprintln(w, "\nInsights:")
			for _, in := range report.Insights {
				fmt.Fprintf(w, "  %s: %s\n", in.Title, in.Description)
			}
		}
	})
}
