package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/vcore/internal/canon"
)

// Snapshot is the golden form of a scenario run: every pass without its
// content hash, so a golden file reads as the mutations themselves.
type Snapshot struct {
	Scenario string
	Result   *Result
}

// NewSnapshot snapshots result under the scenario name.
func NewSnapshot(scenario string, result *Result) *Snapshot {
	return &Snapshot{Scenario: scenario, Result: result}
}

// toCanonicalMap converts the snapshot to plain maps for canon.Marshal.
// Pass ids are left out; they are a function of the rest.
func (s *Snapshot) toCanonicalMap() map[string]any {
	passes := make([]any, len(s.Result.Passes))
	for i, p := range s.Result.Passes {
		muts := make([]any, len(p.Mutations))
		for j, m := range p.Mutations {
			mm := map[string]any{
				"op": string(m.Op),
				"id": uint32(m.ID),
			}
			if m.Other != 0 {
				mm["other"] = uint32(m.Other)
			}
			if m.Tag != "" {
				mm["tag"] = m.Tag
			}
			if m.Name != "" {
				mm["name"] = m.Name
			}
			if m.Value != "" {
				mm["value"] = m.Value
			}
			muts[j] = mm
		}
		pm := map[string]any{
			"seq":       p.Seq,
			"kind":      string(p.Kind),
			"mutations": muts,
		}
		if p.ErrorCode != "" {
			pm["error_code"] = p.ErrorCode
		}
		passes[i] = pm
	}
	return map[string]any{
		"scenario": s.Scenario,
		"run_id":   s.Result.RunID,
		"passes":   passes,
	}
}

// Marshal returns the snapshot as canonical JSON.
func (s *Snapshot) Marshal() ([]byte, error) {
	return canon.Marshal(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its passes against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie) occurs
// if the passes don't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
