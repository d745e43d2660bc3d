package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vcore/internal/harness"
	"github.com/roach88/vcore/internal/journal"
	"github.com/roach88/vcore/internal/testutil"
)

// seedJournal records the named scenarios under the given run ids.
func seedJournal(t *testing.T, runs map[string]string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "vcore.db")
	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	for runID, file := range runs {
		s, err := harness.LoadScenario(scenarioPath(file))
		require.NoError(t, err)
		_, err = harness.RunWith(context.Background(), s, harness.Options{
			Journal: j,
			RunIDs:  testutil.NewFixedRunIDGenerator(runID),
		})
		require.NoError(t, err)
	}
	return dbPath
}

func runTraceCmd(format string, args ...string) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, err := runTraceCmd("text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceEmptyJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	buf, err := runTraceCmd("text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No runs recorded.")

	buf, err = runTraceCmd("json", "--db", dbPath)
	require.NoError(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTraceUnknownRun(t *testing.T) {
	dbPath := seedJournal(t, map[string]string{"run-a": "counter-sequence.yaml"})

	_, err := runTraceCmd("text", "--db", dbPath, "--run", "run-missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, journal.ErrRunNotFound)
}

func TestTraceUnknownOp(t *testing.T) {
	dbPath := seedJournal(t, map[string]string{"run-a": "counter-sequence.yaml"})

	_, err := runTraceCmd("text", "--db", dbPath, "--op", "insert_before")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown op "insert_before"`)
}

func TestTraceLatestRunText(t *testing.T) {
	dbPath := seedJournal(t, map[string]string{
		"run-a": "counter-sequence.yaml",
		"run-b": "switch-memo.yaml",
	})

	buf, err := runTraceCmd("text", "--db", dbPath)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Run: run-b")
	assert.Contains(t, out, "Root: switcher")
	assert.Contains(t, out, "replace_node #2 -> #4")
	assert.Contains(t, out, "Passes:    5")
}

func TestTraceRunWithOpFilter(t *testing.T) {
	dbPath := seedJournal(t, map[string]string{"run-a": "counter-sequence.yaml"})

	buf, err := runTraceCmd("text", "--db", dbPath, "--run", "run-a", "--op", "set_text")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `set_text #2 "High-Five counter: 2"`)
	assert.NotContains(t, out, "create_element #1 <div>")
	assert.Contains(t, out, "Mutations: 8")
}

func TestTraceJSONStats(t *testing.T) {
	dbPath := seedJournal(t, map[string]string{"run-a": "maybe-invariant.cue"})

	buf, err := runTraceCmd("json", "--db", dbPath, "--run", "run-a")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		RunID  string      `json:"run_id"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "run-a", resp.RunID)
	assert.Equal(t, "maybe", resp.Data.Root)
	assert.Equal(t, 2, resp.Data.Stats.Passes)
	assert.Equal(t, 2, resp.Data.Stats.Mutations)
	assert.Equal(t, map[string]int{"create_text": 1, "append_child": 1}, resp.Data.Stats.ByOp)
	assert.Equal(t, []string{"INVARIANT_VIOLATION"}, resp.Data.Stats.Errors)
}

func TestTraceList(t *testing.T) {
	dbPath := seedJournal(t, map[string]string{
		"run-a": "counter-sequence.yaml",
		"run-b": "maybe-invariant.cue",
	})

	buf, err := runTraceCmd("text", "--db", dbPath, "--list")
	require.NoError(t, err)
	assert.Equal(t, "run-a  counter  5 pass(es)\nrun-b  maybe  2 pass(es)\n", buf.String())
}

func TestFilterPassesKeepsOriginal(t *testing.T) {
	s, err := harness.LoadScenario(scenarioPath("counter-sequence.yaml"))
	require.NoError(t, err)
	res, err := harness.Run(s)
	require.NoError(t, err)
	passes := res.Passes

	filtered := filterPasses(passes, "set_text")
	require.Len(t, filtered, len(passes))
	assert.Empty(t, filtered[0].Mutations)
	assert.Len(t, passes[0].Mutations, 4)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "01234567...89abcdef", truncateID("0123456789abcdef0123456789abcdef"))
}
