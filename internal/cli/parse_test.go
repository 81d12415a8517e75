package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "closure")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParse_Text(t *testing.T) {
	path := writeTestFile(t, "e(/a).\n\\dump e\n\n\\dump e\n")

	out, _, err := executeCLI(t, "parse", path)
	require.NoError(t, err)

	assert.Contains(t, out, "closure: 4 fragment(s), 2 dump(s)")
	assert.Contains(t, out, "dump     e")
	assert.Contains(t, out, "blank")
	assert.NotContains(t, out, "warning")
}

func TestParse_TrailingWarning(t *testing.T) {
	path := writeTestFile(t, "e(/a).\n\\dump e\nf(/b).\n")

	out, _, err := executeCLI(t, "parse", path)
	require.NoError(t, err)
	assert.Contains(t, out, "warning: program text from line 3 follows the last dump and is never installed")
}

func TestParse_JSON(t *testing.T) {
	path := writeTestFile(t, "e(/a).\n\\dump e\nf(/b).\n")

	out, _, err := executeCLI(t, "--format", "json", "parse", path)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   ParseResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "closure", resp.Data.Test)
	assert.Equal(t, 1, resp.Data.Commands)
	require.Len(t, resp.Data.Fragments, 2)
	assert.Equal(t, ParsedFragment{Kind: "program", Line: 1, Text: "e(/a).\n"}, resp.Data.Fragments[0])
	assert.Equal(t, ParsedFragment{Kind: "dump", Line: 2, Name: "e"}, resp.Data.Fragments[1])
	assert.Equal(t, "f(/b).\n", resp.Data.Trailing)
	assert.Equal(t, 3, resp.Data.TrailingLine)
}

func TestParse_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	out, _, err := executeCLI(t, "parse", missing)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestParse_RequiresFile(t *testing.T) {
	_, _, err := executeCLI(t, "parse")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "> a\n> b", indent("a\nb\n", "> "))
	assert.Equal(t, "> a", indent("a", "> "))
}
