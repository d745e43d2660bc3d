package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// formatter builds an OutputFormatter for cmd from the global flags.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// NewRootCommand creates the root command for the vcore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "vcore",
		Short: "vcore - virtual tree reconciliation core",
		Long: `Run component scenarios against the reconciliation runtime and inspect
the mutation passes it emits.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			configureLogging(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
