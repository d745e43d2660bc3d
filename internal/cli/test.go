package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vcore/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // defaults to <scenarios-dir>/golden
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run every scenario in a directory",
		Long: `Run all scenario files (.yaml, .yml, .cue) under a directory, evaluate
their assertions and compare their passes against golden files.

A golden file is the canonical JSON snapshot of a scenario's passes,
stored as <golden-dir>/<scenario name>.golden. Scenarios without a
golden file are judged by their assertions alone.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  vcore test ./scenarios
  vcore test ./scenarios --filter "counter-*"
  vcore test ./scenarios --update
  vcore test ./testdata/scenarios --golden-dir ./testdata/golden --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "golden file directory (default <scenarios-dir>/golden)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}
	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(scenariosDir, "golden")
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	if len(scenarioFiles) == 0 {
		if f.IsJSON() {
			return outputTestJSON(f, result)
		}
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return nil
	}

	for _, scenarioFile := range scenarioFiles {
		scenResult := runScenario(scenarioFile, goldenDir, opts)
		if !f.IsJSON() {
			writeScenarioLine(f, scenResult)
		}
		result.Scenarios = append(result.Scenarios, scenResult)

		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if f.IsJSON() {
		return outputTestJSON(f, result)
	}
	return outputTestText(f, result)
}

// findScenarioFiles finds all scenario files under dir, skipping golden
// files. The filter is matched against the file name without extension.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		if !harness.IsScenarioFile(path) {
			return nil
		}

		if filter != "" {
			base := filepath.Base(path)
			name := strings.TrimSuffix(base, filepath.Ext(base))
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenario executes a single scenario and returns the result.
func runScenario(scenarioFile, goldenDir string, opts *TestOptions) ScenarioResult {
	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(scenarioFile),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	data, err := harness.NewSnapshot(scenario.Name, result).Marshal()
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("failed to snapshot passes: %v", err)},
		}
	}

	out := ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}
	goldenPath := goldenFilePath(goldenDir, scenario.Name)

	if opts.Update {
		if err := writeGoldenFile(goldenPath, data); err != nil {
			out.Pass = false
			out.Errors = append(out.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			return out
		}
		out.Golden = "updated"
		return out
	}

	want, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		out.Golden = "missing"
		return out
	}
	if err != nil {
		out.Pass = false
		out.Errors = append(out.Errors, fmt.Sprintf("failed to read golden file: %v", err))
		return out
	}
	if !bytes.Equal(want, data) {
		out.Pass = false
		out.Errors = append(out.Errors, "passes do not match golden file (run with --update to regenerate)")
		return out
	}
	out.Golden = "match"
	return out
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(goldenDir, scenarioName string) string {
	return filepath.Join(goldenDir, scenarioName+".golden")
}

// writeGoldenFile writes data, creating the golden directory if needed.
func writeGoldenFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func writeScenarioLine(f *OutputFormatter, r ScenarioResult) {
	mark := "✓"
	if !r.Pass {
		mark = "✗"
	}
	switch r.Golden {
	case "updated":
		fmt.Fprintf(f.Writer, "%s %s (golden updated)\n", mark, r.Name)
	case "missing":
		fmt.Fprintf(f.Writer, "%s %s (no golden file)\n", mark, r.Name)
	default:
		fmt.Fprintf(f.Writer, "%s %s\n", mark, r.Name)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(f.Writer, "  %s\n", e)
	}
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(f *OutputFormatter, result TestResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := f.Response(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(f *OutputFormatter, result TestResult) error {
	w := f.Writer

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
