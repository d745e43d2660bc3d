package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/vcore/internal/journal"
	"github.com/roach88/vcore/internal/vdom"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // defaults to the latest run
	Op       string // optional - filter mutations to one op
	List     bool   // list runs instead of tracing one
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID  string         `json:"run_id"`
	Root   string         `json:"root"`
	Passes []journal.Pass `json:"passes"`
	Stats  TraceStats     `json:"stats"`
}

// TraceStats holds summary statistics for the run.
type TraceStats struct {
	Passes    int            `json:"passes"`
	Mutations int            `json:"mutations"`
	ByOp      map[string]int `json:"by_op"`
	Errors    []string       `json:"errors,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Read recorded passes from a journal",
		Long: `Read the passes a run recorded in a SQLite journal.

Shows every pass in seq order with the mutations it emitted, followed by
per-op mutation counts and the error codes passes finished with.
Without --run the most recent run is traced.

Examples:
  vcore trace --db ./vcore.db --list
  vcore trace --db ./vcore.db
  vcore trace --db ./vcore.db --run 0190f3a4-... --op set_text
  vcore trace --db ./vcore.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace (default latest)")
	cmd.Flags().StringVar(&opts.Op, "op", "", "only show mutations with this op")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)

	if opts.Op != "" && !vdom.IsOp(opts.Op) {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown op %q", opts.Op))
	}

	j, err := journal.Open(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, "failed to open journal", err)
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			slog.Error("error closing journal", "error", closeErr)
		}
	}()

	if opts.List {
		return listRuns(ctx, f, j)
	}

	run, err := resolveRun(ctx, j, opts.RunID)
	if errors.Is(err, journal.ErrRunNotFound) {
		if opts.RunID == "" {
			if f.IsJSON() {
				return f.Success(TraceResult{Passes: []journal.Pass{}, Stats: TraceStats{ByOp: map[string]int{}}})
			}
			fmt.Fprintln(f.Writer, "No runs recorded.")
			return nil
		}
		return f.Fail(ExitCommandError, ErrCodeJournal, "failed to read run", err)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, "failed to read run", err)
	}

	result, err := buildTrace(ctx, j, run)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, "failed to build trace", err)
	}
	if opts.Op != "" {
		result.Passes = filterPasses(result.Passes, vdom.Op(opts.Op))
	}

	if f.IsJSON() {
		return f.Response(CLIResponse{Status: "ok", Data: result, RunID: result.RunID})
	}
	outputTraceText(f, result, opts.Op, opts.Verbose)
	return nil
}

// resolveRun finds the requested run, or the latest one when id is empty.
func resolveRun(ctx context.Context, j *journal.Journal, id string) (journal.Run, error) {
	if id == "" {
		return j.LatestRun(ctx)
	}
	runs, err := j.ListRuns(ctx)
	if err != nil {
		return journal.Run{}, err
	}
	idx := slices.IndexFunc(runs, func(r journal.Run) bool { return r.ID == id })
	if idx < 0 {
		return journal.Run{}, fmt.Errorf("%w: %s", journal.ErrRunNotFound, id)
	}
	return runs[idx], nil
}

func buildTrace(ctx context.Context, j *journal.Journal, run journal.Run) (TraceResult, error) {
	passes, err := j.ReadRun(ctx, run.ID)
	if err != nil {
		return TraceResult{}, err
	}
	counts, err := j.CountByOp(ctx, run.ID)
	if err != nil {
		return TraceResult{}, err
	}

	stats := TraceStats{Passes: len(passes), ByOp: make(map[string]int, len(counts))}
	for op, n := range counts {
		stats.ByOp[string(op)] = n
		stats.Mutations += n
	}
	for _, p := range passes {
		if p.ErrorCode != "" {
			stats.Errors = append(stats.Errors, p.ErrorCode)
		}
	}

	return TraceResult{RunID: run.ID, Root: run.Root, Passes: passes, Stats: stats}, nil
}

// filterPasses keeps every pass but only the mutations with the given op.
func filterPasses(passes []journal.Pass, op vdom.Op) []journal.Pass {
	out := make([]journal.Pass, len(passes))
	for i, p := range passes {
		p.Mutations = slices.DeleteFunc(slices.Clone(p.Mutations), func(m vdom.Mutation) bool {
			return m.Op != op
		})
		out[i] = p
	}
	return out
}

func listRuns(ctx context.Context, f *OutputFormatter, j *journal.Journal) error {
	runs, err := j.ListRuns(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, "failed to list runs", err)
	}
	if f.IsJSON() {
		return f.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(f.Writer, "%s  %s  %d pass(es)\n", r.ID, r.Root, r.Passes)
	}
	return nil
}

// outputTraceText outputs the trace result as human-readable text.
func outputTraceText(f *OutputFormatter, result TraceResult, op string, verbose bool) {
	w := f.Writer

	fmt.Fprintf(w, "Run: %s\n", result.RunID)
	fmt.Fprintf(w, "Root: %s\n", result.Root)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Passes:")
	writePasses(w, result.Passes, op, verbose)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Stats:")
	fmt.Fprintf(w, "  Passes:    %d\n", result.Stats.Passes)
	fmt.Fprintf(w, "  Mutations: %d\n", result.Stats.Mutations)
	ops := make([]string, 0, len(result.Stats.ByOp))
	for name := range result.Stats.ByOp {
		ops = append(ops, name)
	}
	slices.Sort(ops)
	for _, name := range ops {
		fmt.Fprintf(w, "    %-16s %d\n", name, result.Stats.ByOp[name])
	}
	if len(result.Stats.Errors) > 0 {
		fmt.Fprintf(w, "  Errors:    %v\n", result.Stats.Errors)
	}
}

// truncateID shortens a long id for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
