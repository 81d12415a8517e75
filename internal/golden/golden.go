// Package golden is the read-only store of expected test output.
//
// Golden files are authored once and treated as ground truth. The only writer
// is update mode, which replaces a golden file with the actual output of a
// run when a developer accepts a behavior change.
package golden

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/regress/internal/corpus"
)

// ErrMissing is wrapped by Load when a test has no golden file.
var ErrMissing = errors.New("golden file not found")

// Repository provides expected output by test name.
type Repository interface {
	Load(name string) (string, error)
}

// Dir is a Repository backed by one file per test in a directory.
type Dir struct {
	Path string
}

// NewDir returns a repository rooted at path.
func NewDir(path string) *Dir {
	return &Dir{Path: path}
}

// Load returns the golden text for name verbatim (byte order marks removed).
func (d *Dir) Load(name string) (string, error) {
	path, err := d.file(name)
	if err != nil {
		return "", err
	}
	text, err := corpus.ReadText(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrMissing, path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read golden file: %w", err)
	}
	return text, nil
}

// Update replaces the golden file for name, creating the directory if needed.
func (d *Dir) Update(name, text string) error {
	path, err := d.file(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.Path, 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// file returns the golden file path for name.
func (d *Dir) file(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid test name %q", name)
	}
	return filepath.Join(d.Path, name), nil
}
