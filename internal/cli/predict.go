package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

// NewPredictCommand creates the predict command.
func NewPredictCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "predict <shipment-id|tracking-number>",
		Short: "Predict delivery time and outcome for one shipment",
		Long: `Predict delivery days, delivery success and issue likelihood for one
shipment. The model is the one saved by the last analyze run; without it
the predictions fall back to priors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(rootOpts, args[0], cmd)
		},
	}
}

func runPredict(opts *RootOptions, id string, cmd *cobra.Command) error {
	core, err := openCore(cmd, opts)
	if err != nil {
		return err
	}
	defer core.Close()

	s, err := core.Shipment(id)
	if errors.Is(err, shipbrain.ErrNotFound) {
		return WrapExitError(ExitFailure, "predict", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "predict", err)
	}
	p, err := core.Predict(s.ID)
	if err != nil {
		return WrapExitError(ExitFailure, "predict", err)
	}

	return formatterFor(cmd, opts).Success(p, func(w io.Writer) {
		fmt.Fprintf(w, "shipment %s (%s)\n", s.ID, s.TrackingNumber)
		printPrediction(w, "delivery days", p.DeliveryDays, "%.1f")
		printPrediction(w, "success rate", p.SuccessRate, "%.0f%%")
		printPrediction(w, "issue rate", p.IssueRate, "%.0f%%")
		if !p.Trained {
			fmt.Fprintln(w, "(model not trained; run analyze first)")
		}
	})
}

func printPrediction(w io.Writer, label string, p model.Prediction, valueFmt string) {
	fmt.Fprintf(w, "  %-14s "+valueFmt+"  confidence %.0f  [%s]\n", label+":", p.Value, p.Confidence, p.ModelUsed)
	if len(p.Factors) > 0 {
		fmt.Fprintf(w, "  %-14s %s\n", "", strings.Join(p.Factors, "; "))
	}
}
