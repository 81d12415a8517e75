// Package config loads harness configuration from regress.yaml.
//
// The file is decoded strictly (unknown keys are errors) and validated
// against an embedded CUE schema before use. Relative paths in the file are
// resolved against the file's directory. Command-line flags override file
// values; see the cli package.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/regress/internal/corpus"
	"github.com/roach88/regress/internal/harness"
)

//go:embed schema.cue
var schemaCUE string

// DefaultFile is the configuration file looked up in the working directory
// when no file is named.
const DefaultFile = "regress.yaml"

// Config is the harness configuration.
type Config struct {
	Input    string        `yaml:"input"`
	Expected string        `yaml:"expected"`
	Output   string        `yaml:"output"`
	DiffFile string        `yaml:"diff_file"`
	Session  string        `yaml:"session"`
	Port     int           `yaml:"port"`
	Timeout  time.Duration `yaml:"timeout"`
	Trailing string        `yaml:"trailing"`
	Preamble []string      `yaml:"preamble"`
	Match    string        `yaml:"match"`

	// History is the run-history database path. Empty disables history.
	History string `yaml:"history"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Input:    "input",
		Expected: "expected",
		Output:   "output",
		DiffFile: "regress.diffs",
		Session:  string(harness.PerTest),
		Trailing: string(harness.TrailingWarn),
	}
}

// Load reads the configuration file at path over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

// LoadDefault loads DefaultFile from dir if it exists, and the defaults
// otherwise.
func LoadDefault(dir string) (Config, error) {
	path := filepath.Join(dir, DefaultFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// Parse decodes and validates configuration data over the defaults. Paths
// are left as written.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// validate checks raw file values against the CUE schema.
func validate(raw map[string]any) error {
	if raw == nil {
		raw = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.Encode(raw)
	if err := value.Err(); err != nil {
		return err
	}
	return def.Unify(value).Validate(cue.Concrete(true))
}

// resolve makes relative paths relative to base.
func (c *Config) resolve(base string) {
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Input = join(c.Input)
	c.Expected = join(c.Expected)
	c.Output = join(c.Output)
	c.DiffFile = join(c.DiffFile)
	c.History = join(c.History)
	for i, p := range c.Preamble {
		c.Preamble[i] = join(p)
	}
}

// Options converts the configuration into runner options.
func (c Config) Options() harness.Options {
	return harness.Options{
		InputDir:    c.Input,
		ExpectedDir: c.Expected,
		OutputDir:   c.Output,
		DiffFile:    c.DiffFile,
		Session:     harness.SessionPolicy(c.Session),
		Port:        c.Port,
		Timeout:     c.Timeout,
		Trailing:    harness.TrailingPolicy(c.Trailing),
		Preamble:    append([]string(nil), c.Preamble...),
		Filter:      corpus.Filter{Match: c.Match},
	}
}
