package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	cellpkg "github.com/roach88/vcore/internal/cell"
	"github.com/roach88/vcore/internal/journal"
	"github.com/roach88/vcore/internal/testutil"
	"github.com/roach88/vcore/internal/vdom"
)

// Options configures RunWith. The zero value records in memory only, under
// the scenario's fixed run id.
type Options struct {
	// Journal, if set, receives every pass.
	Journal *journal.Journal

	// RunIDs overrides the scenario's run id.
	RunIDs journal.RunIDGenerator

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Harness executes one scenario against a fresh runtime.
type Harness struct {
	rt     *vdom.Runtime
	rec    *journal.Recorder
	cat    *catalog
	logger *slog.Logger
}

// Run executes a scenario in memory with a deterministic clock and run id.
func Run(scenario *Scenario) (*Result, error) {
	return RunWith(context.Background(), scenario, Options{})
}

// RunWith executes a scenario and evaluates its assertions.
//
// Runtime errors do not fail the call: their codes are collected on the
// result (and on the pass they ended) so error_code assertions can check
// them. A fatal error halts the remaining steps. The returned error is for
// scenarios that cannot be executed at all.
func RunWith(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	gen := opts.RunIDs
	if gen == nil {
		gen = testutil.NewFixedRunIDGenerator(scenario.RunID)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cat := newCatalog()
	root, props, err := cat.root(scenario.Root, scenario.Props)
	if err != nil {
		return nil, fmt.Errorf("failed to build root: %w", err)
	}

	rec, err := journal.NewRecorder(ctx, opts.Journal, gen.Generate(), scenario.Root, testutil.NewScriptedSeq())
	if err != nil {
		return nil, fmt.Errorf("failed to start recorder: %w", err)
	}

	h := &Harness{
		rt:     vdom.New(root, props),
		rec:    rec,
		cat:    cat,
		logger: logger,
	}

	result := NewResult(rec.RunID())
	for i, st := range scenario.Steps {
		if err := h.execute(st, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, st.Action, err)
		}
		h.logger.Debug("scenario step completed",
			"scenario", scenario.Name,
			"step", i,
			"action", st.Action,
			"passes", len(rec.Passes()),
		)
		if result.Halted {
			h.logger.Info("scenario halted by fatal error", "scenario", scenario.Name, "step", i)
			break
		}
	}
	result.Passes = rec.Passes()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step. Only harness failures are returned.
func (h *Harness) execute(st Step, result *Result) error {
	before := len(h.rec.Passes())

	var err error
	switch st.Action {
	case StepRebuild:
		err = h.rt.Rebuild(h.rec)

	case StepFlush:
		err = h.rt.RenderImmediate(h.rec)

	case StepSet:
		c, lerr := h.cat.cells.lookup(st.Cell)
		if lerr != nil {
			return lerr
		}
		if serr := c.set(st.Value); serr != nil {
			return h.recordWriteError(serr, result)
		}
		return nil

	case StepPost:
		c, lerr := h.cat.cells.lookup(st.Cell)
		if lerr != nil {
			return lerr
		}
		var serr error
		if !h.rt.Post(c.scope, func() { serr = c.set(st.Value) }) {
			return fmt.Errorf("runtime stopped")
		}
		h.rec.SetKind(journal.PassEvent)
		err = h.rt.Step(h.rec)
		if err == nil && serr != nil {
			h.rec.SetKind(journal.PassFlush)
			return h.recordWriteError(serr, result)
		}

	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}

	if err != nil {
		if ferr := h.recordRuntimeError(err, before, result); ferr != nil {
			return ferr
		}
	}
	h.rec.SetKind(journal.PassFlush)
	return nil
}

// recordRuntimeError tags the pass the error ended. Fatal errors return
// before the runtime commits, so that pass is closed here first.
func (h *Harness) recordRuntimeError(err error, before int, result *Result) error {
	code := codeOf(err)
	if code == "" {
		return err
	}
	if len(h.rec.Passes()) == before {
		if cerr := h.rec.Commit(); cerr != nil {
			return cerr
		}
	}
	if terr := h.rec.TagLastError(code); terr != nil {
		return terr
	}
	result.Codes = append(result.Codes, code)
	if vdom.IsFatal(err) {
		result.Halted = true
	}
	h.logger.Debug("step finished with error", "code", code, "error", err)
	return nil
}

// recordWriteError notes a failed cell write. Writes belong to no pass.
func (h *Harness) recordWriteError(err error, result *Result) error {
	code := codeOf(err)
	if code == "" {
		return err
	}
	result.Codes = append(result.Codes, code)
	h.logger.Debug("cell write failed", "code", code, "error", err)
	return nil
}

// codeOf returns the runtime or storage error code carried by err.
func codeOf(err error) string {
	if c := vdom.Code(err); c != "" {
		return string(c)
	}
	var be *cellpkg.BorrowError
	if errors.As(err, &be) {
		return string(be.Code)
	}
	return ""
}
