package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vcore/internal/journal"
	"github.com/roach88/vcore/internal/testutil"
)

const scenariosDir = "../harness/testdata/scenarios"

func scenarioPath(name string) string {
	return filepath.Join(scenariosDir, name)
}

func TestRunMissingArgs(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestRunMissingScenario(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"/nonexistent/scenario.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestRunCounterSequenceText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{scenarioPath("counter-sequence.yaml")})

	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "Scenario: counter-sequence")
	assert.Contains(t, out, "Run: "+testutil.DefaultRunID)
	assert.Contains(t, out, "[1] rebuild: 4 mutation(s)")
	assert.Contains(t, out, "[5] flush: 1 mutation(s)")
	assert.Contains(t, out, `set_text #2 "High-Five counter: 3"`)
	assert.Contains(t, out, "✓ All assertions passed")
}

func TestRunInvariantScenarioText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{scenarioPath("maybe-invariant.cue")})

	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "[2] flush: 0 mutation(s) (INVARIANT_VIOLATION)")
	assert.Contains(t, out, "Halted by a fatal runtime error.")
}

func TestRunJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{scenarioPath("switch-memo.yaml")})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string    `json:"status"`
		RunID  string    `json:"run_id"`
		Data   RunOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, testutil.DefaultRunID, resp.RunID)
	assert.Equal(t, "switch-memo", resp.Data.Scenario)
	assert.True(t, resp.Data.Pass)
	assert.Len(t, resp.Data.Passes, 5)
}

func TestRunFailingAssertion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wrong-count.yaml")
	scenario := `name: wrong-count
description: expects too many writes
root: counter
steps:
  - action: rebuild
  - action: set
    cell: count
    value: 1
  - action: flush
assertions:
  - type: mutation_count
    op: set_text
    count: 5
`
	require.NoError(t, os.WriteFile(path, []byte(scenario), 0644))

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ 1 assertion(s) failed")
	assert.Contains(t, buf.String(), "Assertion failed: mutation_count")
}

func TestRunFailingAssertionJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wrong-text.yaml")
	scenario := `name: wrong-text
description: expects a text that is never written
root: counter
steps:
  - action: rebuild
assertions:
  - type: text_sequence
    texts: ["nope"]
`
	require.NoError(t, os.WriteFile(path, []byte(scenario), 0644))

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
}

func TestRunWithJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "vcore.db")

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    dbPath,
		RunIDs:      testutil.NewFixedRunIDGenerator("run-journal-1"),
	}
	cmd := NewRunCommand(opts.RootOptions)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)

	require.NoError(t, runScenarioFile(opts, scenarioPath("counter-sequence.yaml"), cmd))
	assert.Contains(t, buf.String(), "Run: run-journal-1")

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	passes, err := j.ReadRun(context.Background(), "run-journal-1")
	require.NoError(t, err)
	require.Len(t, passes, 5)
	assert.Equal(t, journal.PassRebuild, passes[0].Kind)
	assert.Equal(t, journal.PassFlush, passes[4].Kind)
}

func TestRunMissingScenarioJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/scenario.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeLoad, resp.Error.Code)
}
