// Package cli implements the shipbrain command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	StorePath  string
	LogLevel   string
	Format     string // "json" | "text"
	Verbose    bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the shipbrain CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "shipbrain",
		Short: "Shipment intelligence core",
		Long: `shipbrain unifies carrier tracking and order feeds into one shipment
registry, evaluates rules on shipment lifecycle events, raises alerts and
learns delivery patterns over time.

State lives in the configured storage backend; pass --store to keep it in
a SQLite file between invocations.`,
		Version:       shipbrain.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "settings file (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&opts.StorePath, "store", "", "SQLite snapshot file (overrides storage settings)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewAnalyzeCommand(opts))
	cmd.AddCommand(NewPredictCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))

	return cmd
}

// loadSettings reads the settings file, the environment and the flag
// overrides, in that order.
func loadSettings(opts *RootOptions) (config.Settings, error) {
	s := config.Defaults()
	if opts.ConfigPath != "" {
		cfg, err := config.FromFile(opts.ConfigPath)
		if err != nil {
			return config.Settings{}, WrapExitError(ExitCommandError, "load settings", err)
		}
		s = config.FromConfig(cfg)
	}
	s.ApplyEnv(os.LookupEnv)
	if opts.StorePath != "" {
		s.Storage.Driver = "sqlite"
		s.Storage.Path = opts.StorePath
	}
	if opts.LogLevel != "" {
		s.Log.Level = opts.LogLevel
	}
	if err := s.Validate(); err != nil {
		return config.Settings{}, WrapExitError(ExitCommandError, "invalid settings", err)
	}
	return s, nil
}

// newLogger builds the log handler the settings ask for. Logs always go to
// w (stderr in practice) so JSON output on stdout stays clean.
func newLogger(s config.LogSettings, w io.Writer) *slog.Logger {
	level, err := config.ParseLevel(s.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}
	if s.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// openCore builds a core from the global flags and restores the last
// snapshot. Callers must Close it.
func openCore(cmd *cobra.Command, opts *RootOptions) (*shipbrain.Core, error) {
	settings, err := loadSettings(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(settings.Log, cmd.ErrOrStderr())

	core, err := shipbrain.New(settings, shipbrain.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "start core", err)
	}
	res, err := core.Restore(cmd.Context())
	if err != nil {
		_ = core.Close()
		return nil, WrapExitError(ExitCommandError, "restore snapshot", err)
	}
	formatterFor(cmd, opts).VerboseLog("restored %d shipments, %d memory entries", res.Shipments, res.MemoryEntries)
	return core, nil
}

func formatterFor(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
