package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/regress/internal/report"
)

// sampleCorpus is a two-test corpus that passes against the mangle evaluator.
var sampleCorpus = map[string]string{
	"input/facts":    "color(/red).\ncolor(/blue).\n\\dump color\n",
	"expected/facts": "color(/blue).\ncolor(/red).\n",
	"input/rules":    "base(/x).\nderived(X) :- base(X).\n\\dump derived\n",
	"expected/rules": "derived(/x).\n",
}

// writeCorpus creates files under a fresh root and returns the root.
func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "input"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "expected"), 0755))
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func corpusArgs(root string) []string {
	return []string{
		"--input", filepath.Join(root, "input"),
		"--expected", filepath.Join(root, "expected"),
		"--output", filepath.Join(root, "output"),
		"--diff-file", filepath.Join(root, "regress.diffs"),
	}
}

// executeCLI runs the root command with args and returns stdout and stderr.
func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

type runResponse struct {
	Status string             `json:"status"`
	RunID  string             `json:"run_id"`
	Data   report.JSONSummary `json:"data"`
	Error  *CLIError          `json:"error"`
}

func decodeRun(t *testing.T, out string) runResponse {
	t.Helper()
	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRun_AllPass(t *testing.T) {
	root := writeCorpus(t, sampleCorpus)

	out, _, err := executeCLI(t, append([]string{"run"}, corpusArgs(root)...)...)
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, GetExitCode(err))

	assert.Contains(t, out, "✓ facts")
	assert.Contains(t, out, "✓ rules")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All tests passed")

	assert.Equal(t, "color(/blue).\ncolor(/red).\n", readFile(t, filepath.Join(root, "output", "facts")))
	assert.Equal(t, "derived(/x).\n", readFile(t, filepath.Join(root, "output", "rules")))
	assert.Empty(t, readFile(t, filepath.Join(root, "regress.diffs")))
}

func TestRun_FailureExitCode(t *testing.T) {
	files := map[string]string{}
	for k, v := range sampleCorpus {
		files[k] = v
	}
	files["expected/rules"] = "derived(/y).\n"
	root := writeCorpus(t, files)

	out, _, err := executeCLI(t, append([]string{"run"}, corpusArgs(root)...)...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✓ facts")
	assert.Contains(t, out, "✗ rules")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
	assert.Contains(t, out, "failed: rules")

	diffs := readFile(t, filepath.Join(root, "regress.diffs"))
	assert.Contains(t, diffs, "-derived(/y).")
	assert.Contains(t, diffs, "+derived(/x).")
}

func TestRun_JSONOutput(t *testing.T) {
	root := writeCorpus(t, sampleCorpus)

	out, _, err := executeCLI(t, append([]string{"--format", "json", "run"}, corpusArgs(root)...)...)
	require.NoError(t, err)

	resp := decodeRun(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.RunID)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "passed", resp.Data.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Passed)
	assert.Empty(t, resp.Data.Failing)
	require.Len(t, resp.Data.Results, 2)
	assert.Equal(t, "facts", resp.Data.Results[0].Name)
	assert.Equal(t, "rules", resp.Data.Results[1].Name)
}

func TestRun_JSONFailure(t *testing.T) {
	files := map[string]string{
		"input/broken":    "p(/a).\n\\dump missing_table\n",
		"expected/broken": "",
	}
	root := writeCorpus(t, files)

	out, _, err := executeCLI(t, append([]string{"--format", "json", "run"}, corpusArgs(root)...)...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeRun(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestsFailed, resp.Error.Code)
	assert.Equal(t, []string{"broken"}, resp.Data.Failing)
	require.Len(t, resp.Data.Results, 1)
	assert.Equal(t, "ENGINE_ERROR", resp.Data.Results[0].Kind)
}

func TestRun_SingleTest(t *testing.T) {
	root := writeCorpus(t, sampleCorpus)

	out, _, err := executeCLI(t, append([]string{"run", "rules"}, corpusArgs(root)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.NotContains(t, out, "facts")
}

func TestRun_MatchFlag(t *testing.T) {
	root := writeCorpus(t, sampleCorpus)

	out, _, err := executeCLI(t, append([]string{"run", "--match", "f*"}, corpusArgs(root)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ facts")
	assert.NotContains(t, out, "rules")
}

func TestRun_UpdateWritesGolden(t *testing.T) {
	files := map[string]string{
		"input/facts": sampleCorpus["input/facts"],
	}
	root := writeCorpus(t, files)

	out, _, err := executeCLI(t, append([]string{"run", "--update"}, corpusArgs(root)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ facts (golden updated)")
	assert.Equal(t, "color(/blue).\ncolor(/red).\n", readFile(t, filepath.Join(root, "expected", "facts")))

	// The updated golden file now passes without --update.
	_, _, err = executeCLI(t, append([]string{"run"}, corpusArgs(root)...)...)
	require.NoError(t, err)
}

func TestRun_MissingInputDir(t *testing.T) {
	root := t.TempDir()

	out, _, err := executeCLI(t, "--format", "json", "run",
		"--input", filepath.Join(root, "nope"),
		"--expected", filepath.Join(root, "expected"),
		"--output", filepath.Join(root, "output"),
		"--diff-file", filepath.Join(root, "regress.diffs"),
	)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeRun(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CORPUS_ERROR", resp.Error.Code)
}

func TestRun_UnwritableDiffFile(t *testing.T) {
	root := writeCorpus(t, sampleCorpus)

	out, _, err := executeCLI(t, "--format", "json", "run",
		"--input", filepath.Join(root, "input"),
		"--expected", filepath.Join(root, "expected"),
		"--output", filepath.Join(root, "output"),
		"--diff-file", filepath.Join(root, "missing", "regress.diffs"),
	)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeRun(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "REPORT_IO_ERROR", resp.Error.Code)
}

func TestRun_InvalidSession(t *testing.T) {
	root := writeCorpus(t, sampleCorpus)

	out, _, err := executeCLI(t, append([]string{"run", "--session", "pooled"}, corpusArgs(root)...)...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "CORPUS_ERROR")
	assert.Contains(t, out, "pooled")
}

func TestRun_InvalidPort(t *testing.T) {
	root := writeCorpus(t, sampleCorpus)

	out, _, err := executeCLI(t, append([]string{"run", "--port", "70000"}, corpusArgs(root)...)...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeConfig)
}

func TestRun_TooManyArgs(t *testing.T) {
	_, _, err := executeCLI(t, "run", "a", "b")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_TrailingError(t *testing.T) {
	files := map[string]string{
		"input/tail":    "p(/a).\n\\dump p\nq(/b).\n",
		"expected/tail": "p(/a).\n",
	}
	root := writeCorpus(t, files)

	_, _, err := executeCLI(t, append([]string{"run"}, corpusArgs(root)...)...)
	require.NoError(t, err, "trailing text only warns by default")

	out, _, err := executeCLI(t, append([]string{"run", "--trailing", "error"}, corpusArgs(root)...)...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "CORPUS_ERROR")
}

func TestRun_SharedSession(t *testing.T) {
	files := map[string]string{
		"input/a_install":    "seen(/first).\n\\dump seen\n",
		"expected/a_install": "seen(/first).\n",
		"input/b_observe":    "seen(/second).\n\\dump seen\n",
		"expected/b_observe": "seen(/first).\nseen(/second).\n",
	}
	root := writeCorpus(t, files)

	_, _, err := executeCLI(t, append([]string{"run", "--session", "shared"}, corpusArgs(root)...)...)
	require.NoError(t, err)

	// Per-test sessions do not see the earlier test's facts.
	out, _, err := executeCLI(t, append([]string{"run"}, corpusArgs(root)...)...)
	require.Error(t, err)
	assert.Contains(t, out, "✗ b_observe")
}

func TestRun_Preamble(t *testing.T) {
	files := map[string]string{
		"preamble.mg":   "base(/p).\n",
		"input/uses":    "derived(X) :- base(X).\n\\dump derived\n",
		"expected/uses": "derived(/p).\n",
	}
	root := writeCorpus(t, files)

	args := append([]string{"run", "--preamble", filepath.Join(root, "preamble.mg")}, corpusArgs(root)...)
	_, _, err := executeCLI(t, args...)
	require.NoError(t, err)
}

func TestRun_ConfigFile(t *testing.T) {
	root := writeCorpus(t, sampleCorpus)
	cfg := "input: input\nexpected: expected\noutput: output\ndiff_file: regress.diffs\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "regress.yaml"), []byte(cfg), 0644))

	out, _, err := executeCLI(t, "run", "--config", filepath.Join(root, "regress.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.FileExists(t, filepath.Join(root, "output", "facts"))
	assert.FileExists(t, filepath.Join(root, "regress.diffs"))
}

func TestRun_FlagsOverrideConfig(t *testing.T) {
	root := writeCorpus(t, sampleCorpus)
	cfg := "input: missing\nexpected: expected\noutput: output\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "regress.yaml"), []byte(cfg), 0644))

	args := append([]string{"run", "--config", filepath.Join(root, "regress.yaml")}, corpusArgs(root)...)
	_, _, err := executeCLI(t, args...)
	require.NoError(t, err)
}

func TestRun_BadConfigFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "regress.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session: sometimes\n"), 0644))

	out, _, err := executeCLI(t, "run", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeConfig)
}
