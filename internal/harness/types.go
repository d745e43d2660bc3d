package harness

import (
	"github.com/roach88/vcore/internal/journal"
	"github.com/roach88/vcore/internal/vdom"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// RunID is the run the passes were recorded under.
	RunID string `json:"run_id"`

	// Passes are the recorded passes in commit order.
	Passes []journal.Pass `json:"passes"`

	// Codes are the error codes steps finished with, in step order.
	Codes []string `json:"codes,omitempty"`

	// Halted is set when a fatal runtime error stopped the scenario early.
	Halted bool `json:"halted,omitempty"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result for runID.
func NewResult(runID string) *Result {
	return &Result{
		Pass:   true,
		RunID:  runID,
		Passes: []journal.Pass{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Mutations flattens every pass into one list. When skipRebuild is set the
// first pass is left out.
func (r *Result) Mutations(skipRebuild bool) []vdom.Mutation {
	var out []vdom.Mutation
	for i, p := range r.Passes {
		if skipRebuild && i == 0 && p.Kind == journal.PassRebuild {
			continue
		}
		out = append(out, p.Mutations...)
	}
	return out
}
