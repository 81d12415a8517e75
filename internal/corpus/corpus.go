// Package corpus finds and loads regression tests on disk.
//
// A corpus is three directories: an input directory with one test file per
// test, an expected directory with one golden file per test name, and an
// output directory the harness fills with actual output. Test names are file
// names; hidden files are ignored.
package corpus

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/roach88/regress/internal/directive"
)

// Filter selects tests from the input directory.
type Filter struct {
	// Name runs exactly this test when set.
	Name string

	// Match keeps tests whose names match this doublestar pattern.
	Match string
}

// Selective reports whether the filter narrows the corpus.
func (f Filter) Selective() bool {
	return f.Name != "" || f.Match != ""
}

// TestCase is one parsed test file.
type TestCase struct {
	Name    string
	Path    string
	Program *directive.Program
}

// Discover lists test names in dir in directory-listing order.
//
// Hidden files and subdirectories are skipped. A Filter.Name is returned as
// the only test even if the file does not exist, so the missing file surfaces
// as a failure of that test rather than an empty run.
func Discover(dir string, f Filter) ([]string, error) {
	if f.Match != "" && !doublestar.ValidatePattern(f.Match) {
		return nil, fmt.Errorf("invalid match pattern %q", f.Match)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input directory: not a directory: %s", dir)
	}

	if f.Name != "" {
		return []string{f.Name}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list input directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || e.IsDir() {
			continue
		}
		if f.Match != "" {
			ok, err := doublestar.Match(f.Match, name)
			if err != nil {
				return nil, fmt.Errorf("invalid match pattern %q: %w", f.Match, err)
			}
			if !ok {
				continue
			}
		}
		names = append(names, name)
	}
	return names, nil
}

// Load reads and parses the test named name from dir.
func Load(dir, name string) (*TestCase, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, name)
	text, err := ReadText(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test file: %w", err)
	}
	return &TestCase{
		Name:    name,
		Path:    path,
		Program: directive.Parse(text),
	}, nil
}

// ReadText reads a corpus file as UTF-8 text.
//
// A UTF-8 byte order mark is stripped, UTF-16 files with a byte order mark
// are transcoded and CRLF line endings become LF, so files saved by different
// editors compare equal.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return DecodeText(data)
}

// DecodeText converts raw corpus bytes to UTF-8 text with LF line endings.
func DecodeText(data []byte) (string, error) {
	if hasBOM(data) {
		decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		out, _, err := transform.Bytes(decoder, data)
		if err != nil {
			return "", fmt.Errorf("decode text: %w", err)
		}
		data = out
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

var boms = [][]byte{
	{0xEF, 0xBB, 0xBF},
	{0xFE, 0xFF},
	{0xFF, 0xFE},
}

func hasBOM(data []byte) bool {
	for _, bom := range boms {
		if bytes.HasPrefix(data, bom) {
			return true
		}
	}
	return false
}

// PrepareOutput creates dir and removes any files left by a previous run.
func PrepareOutput(dir string) error {
	if err := checkOutputDir(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list output directory: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("failed to clear output directory: %w", err)
		}
	}
	return nil
}

// EnsureOutput creates dir without clearing it.
func EnsureOutput(dir string) error {
	if err := checkOutputDir(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// WriteOutput stores the actual output of one test.
func WriteOutput(dir, name, text string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// checkName rejects test names that would escape the corpus directories.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid test name %q", name)
	}
	return nil
}

func checkOutputDir(dir string) error {
	clean := filepath.Clean(dir)
	if dir == "" || clean == "." || clean == string(filepath.Separator) {
		return fmt.Errorf("refusing to use %q as output directory", dir)
	}
	return nil
}
