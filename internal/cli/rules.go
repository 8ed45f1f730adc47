package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/rules"
)

// RulesValidation is the validate result.
type RulesValidation struct {
	Valid  bool     `json:"valid"`
	Rules  []string `json:"rules,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// NewRulesCommand creates the rules command group.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate decision rules",
	}
	cmd.AddCommand(newRulesValidateCommand(rootOpts))
	cmd.AddCommand(newRulesListCommand(rootOpts))
	return cmd
}

func newRulesValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rules.yaml>",
		Short: "Check a rule file without loading it",
		Long: `Parse a YAML rule file and compile every rule's condition. All
problems are reported at once. Exits 1 when the file is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesValidate(rootOpts, args[0], cmd)
		},
	}
}

func runRulesValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := formatterFor(cmd, opts)

	loaded, err := rules.LoadFile(path)
	if err != nil {
		res := RulesValidation{Errors: splitJoined(err)}
		if f.Format == "json" {
			_ = f.Error("rule file is invalid", res)
		} else {
			fmt.Fprintf(f.Writer, "✗ %s is invalid\n", path)
			for _, e := range res.Errors {
				fmt.Fprintf(f.Writer, "  %s\n", e)
			}
		}
		return WrapExitError(ExitFailure, "validate "+path, err)
	}

	res := RulesValidation{Valid: true}
	for _, r := range loaded {
		res.Rules = append(res.Rules, r.ID)
	}
	return f.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s is valid (%d rules)\n", path, len(res.Rules))
	})
}

// splitJoined flattens an errors.Join result into one message per line.
func splitJoined(err error) []string {
	var out []string
	for _, line := range strings.Split(err.Error(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func newRulesListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the rules a core would load",
		Long:  "List the default rules plus those from the configured rule file, in evaluation order.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(rootOpts)
			if err != nil {
				return err
			}
			m := rules.NewManager(rules.WithLogger(newLogger(settings.Log, cmd.ErrOrStderr())))
			if err := rules.LoadDefaults(m); err != nil {
				return WrapExitError(ExitFailure, "load default rules", err)
			}
			if settings.Rules.File != "" {
				loaded, err := rules.LoadFile(settings.Rules.File)
				if err != nil {
					return WrapExitError(ExitFailure, "load rule file", err)
				}
				if err := m.Replace(rules.OriginFile, loaded); err != nil {
					return WrapExitError(ExitFailure, "load rule file", err)
				}
			}
			list := m.List()
			return formatterFor(cmd, rootOpts).Success(list, func(w io.Writer) {
				for _, r := range list {
					state := "on "
					if !r.Enabled {
						state = "off"
					}
					mode := "approve"
					if r.AutoExecute {
						mode = "auto"
					}
					fmt.Fprintf(w, "%s  %-32s %-20s -> %-14s %3d  %s\n", state, r.ID, r.TriggerEvent, r.Action.Type, r.Priority, mode)
				}
			})
		},
	}
}
