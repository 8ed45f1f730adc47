package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the memory store as JSON",
		Long: `Write every live memory entry (shipments, facts and patterns) as a JSON
document. The output can be loaded into another store with Memory().Import.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, output, cmd)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func runExport(opts *RootOptions, output string, cmd *cobra.Command) error {
	core, err := openCore(cmd, opts)
	if err != nil {
		return err
	}
	defer core.Close()

	data, err := core.Memory().Export()
	if err != nil {
		return WrapExitError(ExitFailure, "export", err)
	}
	if output == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "write "+output, err)
	}
	formatterFor(cmd, opts).VerboseLog("wrote %d bytes to %s", len(data), output)
	return nil
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <export.json>",
		Short: "Load an export into the memory store",
		Long: `Merge the entries of an export file into the memory store and persist
it. Shipments among them are visible from the next command on.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], cmd)
		},
	}
}

func runImport(opts *RootOptions, path string, cmd *cobra.Command) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "read "+path, err)
	}

	core, err := openCore(cmd, opts)
	if err != nil {
		return err
	}
	defer core.Close()

	n, err := core.Memory().Import(data)
	if err != nil {
		return WrapExitError(ExitFailure, "import", err)
	}
	if err := core.Persist(cmd.Context()); err != nil {
		return WrapExitError(ExitCommandError, "persist", err)
	}
	return formatterFor(cmd, opts).Success(map[string]int{"imported": n}, func(w io.Writer) {
		fmt.Fprintf(w, "imported %d entries\n", n)
	})
}
