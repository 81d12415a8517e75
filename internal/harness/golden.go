package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/regress/internal/corpus"
	"github.com/roach88/regress/internal/evaluator"
	"github.com/roach88/regress/internal/normalize"
)

// RunWithGolden executes one test file in a fresh session of ev and compares
// the normalized output against testdata/golden/{name}.golden, where name is
// the file's base name.
//
// To regenerate golden files, run the calling package's tests with -update.
//
// Returns an error if the file cannot be loaded or the engine fails. Test
// failure (via goldie) occurs if the output doesn't match the golden file.
func RunWithGolden(t *testing.T, ev evaluator.Evaluator, path string) error {
	t.Helper()

	tc, err := corpus.Load(filepath.Dir(path), filepath.Base(path))
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, err := ev.Create(ctx, 0)
	if err != nil {
		return err
	}
	defer s.Destroy()

	captured, err := NewExecutor(nil).Execute(ctx, s, tc.Program)
	if err != nil {
		return err
	}

	AssertGolden(t, tc.Name, captured)
	return nil
}

// AssertGolden compares captured output against a golden file without
// re-running anything.
func AssertGolden(t *testing.T, name string, captured *Captured) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(fileText(normalize.Text(captured.Text()))))
}
