package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/vcore/internal/harness"
	"github.com/roach88/vcore/internal/journal"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// RunIDs allows overriding the run id generator (for testing).
	// If nil and --db is set, defaults to journal.UUIDv7Generator.
	RunIDs journal.RunIDGenerator
}

// RunOutput is the data payload of the run command.
type RunOutput struct {
	Scenario string         `json:"scenario"`
	Pass     bool           `json:"pass"`
	Halted   bool           `json:"halted,omitempty"`
	Codes    []string       `json:"codes,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
	Passes   []journal.Pass `json:"passes"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario and print its passes",
		Long: `Run a scenario file (YAML or CUE) against a fresh runtime and print
every pass with the mutations it emitted.

With --db the passes are also written to a SQLite journal under a new
UUIDv7 run id; read them back with "vcore trace".

Exit codes:
  0 - Scenario passed
  1 - An assertion failed
  2 - Command error (unreadable scenario, journal error)

Examples:
  vcore run ./scenarios/counter-sequence.yaml
  vcore run ./scenarios/switch-memo.yaml --db ./vcore.db
  vcore run ./scenarios/maybe-invariant.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeLoad, "failed to load scenario", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	hopts := harness.Options{Logger: slog.Default()}
	if opts.Database != "" {
		j, err := journal.Open(opts.Database)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeJournal, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()
		hopts.Journal = j
		hopts.RunIDs = opts.RunIDs
		if hopts.RunIDs == nil {
			hopts.RunIDs = journal.UUIDv7Generator{}
		}
		f.VerboseLog("journaling to %s", opts.Database)
	}

	result, err := harness.RunWith(ctx, scenario, hopts)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeExecution, "failed to run scenario", err)
	}

	out := RunOutput{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Halted:   result.Halted,
		Codes:    result.Codes,
		Errors:   result.Errors,
		Passes:   result.Passes,
	}

	if f.IsJSON() {
		resp := CLIResponse{Status: "ok", Data: out, RunID: result.RunID}
		if !result.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeTestFailed, Message: fmt.Sprintf("%d assertion(s) failed", len(result.Errors))}
		}
		if err := f.Response(resp); err != nil {
			return err
		}
	} else {
		writeRunText(f.Writer, result.RunID, out, opts.Verbose)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// writeRunText prints the passes and the assertion outcome.
func writeRunText(w io.Writer, runID string, out RunOutput, verbose bool) {
	fmt.Fprintf(w, "Scenario: %s\n", out.Scenario)
	fmt.Fprintf(w, "Run: %s\n", runID)
	fmt.Fprintln(w)
	writePasses(w, out.Passes, "", verbose)
	fmt.Fprintln(w)

	if out.Halted {
		fmt.Fprintln(w, "Halted by a fatal runtime error.")
	}
	if out.Pass {
		fmt.Fprintln(w, "✓ All assertions passed")
		return
	}
	fmt.Fprintf(w, "✗ %d assertion(s) failed\n", len(out.Errors))
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// writePasses prints one header line per pass and its mutations. An op
// filter hides other mutations; verbose adds pass ids.
func writePasses(w io.Writer, passes []journal.Pass, op string, verbose bool) {
	if len(passes) == 0 {
		fmt.Fprintln(w, "  (no passes)")
		return
	}
	for _, p := range passes {
		fmt.Fprintf(w, "  [%d] %s: %d mutation(s)", p.Seq, p.Kind, len(p.Mutations))
		if p.ErrorCode != "" {
			fmt.Fprintf(w, " (%s)", p.ErrorCode)
		}
		fmt.Fprintln(w)
		if verbose {
			fmt.Fprintf(w, "       ID: %s\n", truncateID(p.ID))
		}
		for _, m := range p.Mutations {
			if op != "" && string(m.Op) != op {
				continue
			}
			fmt.Fprintf(w, "       %s\n", m)
		}
	}
}
