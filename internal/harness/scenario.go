package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Scenario drives one runtime through a list of steps and checks the passes
// it records.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// Root is the catalog component mounted as the root.
	Root string `yaml:"root" json:"root"`

	// Props seeds the root component's cells (see Catalog).
	Props map[string]any `yaml:"props,omitempty" json:"props,omitempty"`

	// Steps run in order. The first must be a rebuild.
	Steps []Step `yaml:"steps" json:"steps"`

	// Assertions validate the recorded passes.
	Assertions []Assertion `yaml:"assertions" json:"assertions"`

	// RunID is an optional fixed run id. Defaults to testutil.DefaultRunID so
	// golden traces stay stable.
	RunID string `yaml:"run_id,omitempty" json:"run_id,omitempty"`
}

// Step is a single scenario action.
type Step struct {
	// Action is one of rebuild, set, flush, post.
	Action string `yaml:"action" json:"action"`

	// Cell names the cell written by set and post.
	Cell string `yaml:"cell,omitempty" json:"cell,omitempty"`

	// Value is the value written by set and post.
	Value any `yaml:"value,omitempty" json:"value,omitempty"`
}

// Step actions.
const (
	StepRebuild = "rebuild"
	StepSet     = "set"
	StepFlush   = "flush"
	StepPost    = "post"
)

// Assertion validates the recorded passes.
type Assertion struct {
	// Type specifies the assertion type:
	// - "mutation_count": exactly Count mutations, optionally only of Op
	// - "mutation_order": Ops appear in order (gaps allowed)
	// - "no_structural": passes after the rebuild carry only content updates
	// - "text_sequence": set_text values equal Texts, in order
	// - "error_code": some step finished with Code
	Type string `yaml:"type" json:"type"`

	Op    string   `yaml:"op,omitempty" json:"op,omitempty"`
	Count int      `yaml:"count,omitempty" json:"count,omitempty"`
	Ops   []string `yaml:"ops,omitempty" json:"ops,omitempty"`
	Texts []string `yaml:"texts,omitempty" json:"texts,omitempty"`
	Code  string   `yaml:"code,omitempty" json:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertMutationCount = "mutation_count"
	AssertMutationOrder = "mutation_order"
	AssertNoStructural  = "no_structural"
	AssertTextSequence  = "text_sequence"
	AssertErrorCode     = "error_code"
)

// LoadScenario reads a scenario file. Files ending in .cue are evaluated with
// CUE; anything else is parsed as YAML with unknown fields rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		scenario, err = parseCUE(path, data)
	} else {
		scenario, err = parseYAML(data)
	}
	if err != nil {
		return nil, err
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

func parseYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

func parseCUE(path string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("scenario is not concrete: %w", err)
	}
	var scenario Scenario
	if err := v.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every .yaml, .yml and .cue file in dir, sorted by name.
// Files whose base name does not match filter (a filepath.Match glob) are
// skipped; an empty filter matches everything.
func LoadScenarios(dir, filter string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var out []*Scenario
	for _, e := range entries {
		if e.IsDir() || !IsScenarioFile(e.Name()) {
			continue
		}
		if filter != "" {
			ok, err := filepath.Match(filter, e.Name())
			if err != nil {
				return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
			}
			if !ok {
				continue
			}
		}
		s, err := LoadScenario(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// IsScenarioFile reports whether name has a scenario file extension.
func IsScenarioFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Root == "" {
		return fmt.Errorf("root is required")
	}
	if !HasComponent(s.Root) {
		return fmt.Errorf("unknown root component %q (known: %s)", s.Root, strings.Join(ComponentNames(), ", "))
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Steps[0].Action != StepRebuild {
		return fmt.Errorf("steps[0]: first step must be %q, got %q", StepRebuild, s.Steps[0].Action)
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	switch st.Action {
	case StepRebuild:
		if index != 0 {
			return fmt.Errorf("steps[%d]: rebuild is only allowed as the first step", index)
		}
	case StepFlush:
	case StepSet, StepPost:
		if st.Cell == "" {
			return fmt.Errorf("steps[%d]: cell is required for %s", index, st.Action)
		}
		if st.Value == nil {
			return fmt.Errorf("steps[%d]: value is required for %s", index, st.Action)
		}
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, st.Action)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertMutationCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for mutation_count", index)
		}
	case AssertMutationOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for mutation_order", index)
		}
	case AssertNoStructural:
	case AssertTextSequence:
		if a.Texts == nil {
			return fmt.Errorf("assertions[%d]: texts list is required for text_sequence", index)
		}
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error_code", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
