package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/regress/internal/store"
)

// recordRun runs the sample corpus with history and returns the run ID.
func recordRun(t *testing.T, root, db string) string {
	t.Helper()
	args := append([]string{"--format", "json", "run", "--history", db}, corpusArgs(root)...)
	out, _, err := executeCLI(t, args...)
	require.NoError(t, err)
	resp := decodeRun(t, out)
	require.NotEmpty(t, resp.RunID)
	return resp.RunID
}

func TestHistory_ListRuns(t *testing.T) {
	root := writeCorpus(t, sampleCorpus)
	db := filepath.Join(root, "regress.db")
	first := recordRun(t, root, db)
	second := recordRun(t, root, db)

	out, _, err := executeCLI(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, first)
	assert.Contains(t, out, second)
	assert.Contains(t, out, "passed")
}

func TestHistory_ListRunsJSON(t *testing.T) {
	root := writeCorpus(t, sampleCorpus)
	db := filepath.Join(root, "regress.db")
	first := recordRun(t, root, db)
	second := recordRun(t, root, db)

	out, _, err := executeCLI(t, "--format", "json", "history", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   []store.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	// Most recent first.
	assert.Equal(t, second, resp.Data[0].ID)
	assert.Equal(t, first, resp.Data[1].ID)
	assert.Equal(t, "mangle", resp.Data[0].Engine)
	assert.Equal(t, store.StatusPassed, resp.Data[0].Status)
	assert.Equal(t, 2, resp.Data[0].Total)
}

func TestHistory_ShowRun(t *testing.T) {
	root := writeCorpus(t, sampleCorpus)
	db := filepath.Join(root, "regress.db")
	id := recordRun(t, root, db)

	out, _, err := executeCLI(t, "history", "--db", db, id)
	require.NoError(t, err)
	assert.Contains(t, out, "Run "+id+" (mangle, per_test session)")
	assert.Contains(t, out, "Status:  passed, 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ facts")
	assert.Contains(t, out, "✓ rules")
}

func TestHistory_ShowUnknownRun(t *testing.T) {
	root := writeCorpus(t, sampleCorpus)
	db := filepath.Join(root, "regress.db")
	recordRun(t, root, db)

	out, _, err := executeCLI(t, "history", "--db", db, "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestHistory_TestAcrossRuns(t *testing.T) {
	root := writeCorpus(t, sampleCorpus)
	db := filepath.Join(root, "regress.db")
	first := recordRun(t, root, db)
	second := recordRun(t, root, db)

	out, _, err := executeCLI(t, "--format", "json", "history", "--db", db, "--test", "rules")
	require.NoError(t, err)

	var resp struct {
		Data []store.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, second, resp.Data[0].RunID)
	assert.Equal(t, first, resp.Data[1].RunID)
	for _, r := range resp.Data {
		assert.Equal(t, "rules", r.Name)
		assert.True(t, r.Passed)
	}
}

func TestHistory_MissingDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing.db")

	out, _, err := executeCLI(t, "history", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "history database not found")
	assert.NoFileExists(t, db)
}

func TestHistory_RequiresDB(t *testing.T) {
	_, _, err := executeCLI(t, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
