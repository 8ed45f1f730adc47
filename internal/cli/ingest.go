package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/alert"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

// Batch is the ingest file layout.
type Batch struct {
	Trackings []model.TrackingRecord `json:"trackings"`
	Orders    []model.OrderRecord    `json:"orders"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <batch.json>...",
		Short: "Merge tracking and order records into the registry",
		Long: `Read one or more JSON batch files of the form

  {"trackings": [...], "orders": [...]}

and merge them into the shipment registry. Use "-" to read stdin. Rules
run on the resulting lifecycle events; the new state is persisted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runIngest(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	var batch Batch
	for _, p := range paths {
		b, err := readBatch(cmd.InOrStdin(), p)
		if err != nil {
			return WrapExitError(ExitCommandError, "read "+p, err)
		}
		batch.Trackings = append(batch.Trackings, b.Trackings...)
		batch.Orders = append(batch.Orders, b.Orders...)
	}

	core, err := openCore(cmd, opts)
	if err != nil {
		return err
	}
	defer core.Close()

	res, err := core.Ingest(cmd.Context(), batch.Trackings, batch.Orders)
	if err != nil {
		return WrapExitError(ExitFailure, "ingest", err)
	}
	if err := core.Persist(cmd.Context()); err != nil {
		return WrapExitError(ExitCommandError, "persist", err)
	}

	alerts := len(core.ActiveAlerts(alert.Filter{}))
	return formatterFor(cmd, opts).Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "created %d, updated %d, unchanged %d shipments\n", res.Created, res.Updated, res.Unchanged)
		fmt.Fprintf(w, "matched %d orders, %d still pending\n", res.Matched, res.PendingOrders)
		fmt.Fprintf(w, "%d alerts raised\n", alerts)
	})
}

func readBatch(stdin io.Reader, path string) (Batch, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return Batch{}, err
		}
		defer f.Close()
		r = f
	}
	var b Batch
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return Batch{}, fmt.Errorf("decode batch: %w", err)
	}
	return b, nil
}
