package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidYAML(t *testing.T) {
	path := writeScenario(t, "test.yaml", `
name: test_scenario
description: "Test scenario for validation"
root: counter
props:
  initial: 3
steps:
  - action: rebuild
  - action: set
    cell: count
    value: 4
  - action: flush
assertions:
  - type: mutation_count
    op: set_text
    count: 1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "counter", scenario.Root)
	assert.Equal(t, 3, scenario.Props["initial"])
	require.Len(t, scenario.Steps, 3)
	assert.Equal(t, Step{Action: StepSet, Cell: "count", Value: 4}, scenario.Steps[1])
	assert.Equal(t, Assertion{Type: AssertMutationCount, Op: "set_text", Count: 1}, scenario.Assertions[0])
}

func TestLoadScenario_ValidCUE(t *testing.T) {
	path := writeScenario(t, "test.cue", `
name:        "cue_scenario"
description: "Loaded through CUE"
root:        "maybe"
props: show: true
steps: [
	{action: "rebuild"},
	{action: "set", cell: "show", value: false},
]
assertions: [{type: "error_code", code: "INVARIANT_VIOLATION"}]
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "cue_scenario", scenario.Name)
	assert.Equal(t, true, scenario.Props["show"])
	assert.Equal(t, false, scenario.Steps[1].Value)
	assert.Equal(t, "INVARIANT_VIOLATION", scenario.Assertions[0].Code)
}

func TestLoadScenario_CUEMustBeConcrete(t *testing.T) {
	path := writeScenario(t, "test.cue", `
name:        string
description: "not concrete"
root:        "counter"
steps: [{action: "rebuild"}]
assertions: [{type: "no_structural"}]
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not concrete")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, "test.yaml", `
name: typo
description: "assertion instead of assertions"
root: counter
steps:
  - action: rebuild
assertion:
  - type: no_structural
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidateScenario(t *testing.T) {
	valid := func() *Scenario {
		return &Scenario{
			Name:        "s",
			Description: "d",
			Root:        CompCounter,
			Steps:       []Step{{Action: StepRebuild}, {Action: StepFlush}},
			Assertions:  []Assertion{{Type: AssertNoStructural}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *Scenario)
		wantErr string
	}{
		{"valid", func(*Scenario) {}, ""},
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"missing root", func(s *Scenario) { s.Root = "" }, "root is required"},
		{"unknown root", func(s *Scenario) { s.Root = "table" }, `unknown root component "table"`},
		{"no steps", func(s *Scenario) { s.Steps = nil }, "steps list is required"},
		{"rebuild not first", func(s *Scenario) { s.Steps = []Step{{Action: StepFlush}} }, "first step must be"},
		{"second rebuild", func(s *Scenario) { s.Steps = append(s.Steps, Step{Action: StepRebuild}) }, "only allowed as the first step"},
		{"set without cell", func(s *Scenario) { s.Steps = append(s.Steps, Step{Action: StepSet, Value: 1}) }, "cell is required for set"},
		{"post without value", func(s *Scenario) { s.Steps = append(s.Steps, Step{Action: StepPost, Cell: "count"}) }, "value is required for post"},
		{"unknown action", func(s *Scenario) { s.Steps = append(s.Steps, Step{Action: "click"}) }, `unknown action "click"`},
		{"no assertions", func(s *Scenario) { s.Assertions = nil }, "assertions list is required"},
		{"unknown assertion", func(s *Scenario) { s.Assertions = []Assertion{{Type: "trace_contains"}} }, `unknown assertion type "trace_contains"`},
		{"order without ops", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertMutationOrder}} }, "ops list is required"},
		{"negative count", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertMutationCount, Count: -1}} }, "must be non-negative"},
		{"texts missing", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTextSequence}} }, "texts list is required"},
		{"code missing", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertErrorCode}} }, "code is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateScenario(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarios_FilterAndOrder(t *testing.T) {
	all, err := LoadScenarios("testdata/scenarios", "")
	require.NoError(t, err)

	var names []string
	for _, s := range all {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"counter-post",
		"counter-sequence",
		"maybe-invariant",
		"switch-memo",
		"switcher-render-failure",
	}, names)

	counters, err := LoadScenarios("testdata/scenarios", "counter-*")
	require.NoError(t, err)
	assert.Len(t, counters, 2)

	_, err = LoadScenarios("testdata/scenarios", "[")
	assert.Error(t, err)
}

func TestIsScenarioFile(t *testing.T) {
	assert.True(t, IsScenarioFile("a.yaml"))
	assert.True(t, IsScenarioFile("a.YML"))
	assert.True(t, IsScenarioFile("a.cue"))
	assert.False(t, IsScenarioFile("a.golden"))
}
