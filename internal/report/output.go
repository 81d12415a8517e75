package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// WriteResult prints the one-line outcome of a test.
func WriteResult(w io.Writer, r ComparisonResult) {
	switch {
	case r.Updated:
		fmt.Fprintf(w, "✓ %s (golden updated)\n", r.Name)
	case r.Passed:
		fmt.Fprintf(w, "✓ %s\n", r.Name)
	case r.Err != nil:
		fmt.Fprintf(w, "✗ %s\n", r.Name)
		fmt.Fprintf(w, "  %s: %v\n", r.Kind, r.Err)
	default:
		fmt.Fprintf(w, "✗ %s\n", r.Name)
		fmt.Fprintln(w, "  output differs from golden file")
	}
}

// WriteSummary prints the run totals.
func WriteSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", s.Passed, s.Failed, s.Total)

	if s.SomeFailed() {
		for _, name := range s.Failing {
			fmt.Fprintf(w, "  failed: %s\n", name)
		}
		fmt.Fprintf(w, "✗ Tests failed; see %s\n", s.DiffFile)
		return
	}
	fmt.Fprintln(w, "✓ All tests passed")
}

// JSONResult is the machine-readable form of a ComparisonResult.
type JSONResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Updated bool   `json:"updated,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Error   string `json:"error,omitempty"`
	Diff    string `json:"diff,omitempty"`
}

// JSONSummary is the machine-readable form of a Summary.
type JSONSummary struct {
	RunID    string       `json:"run_id,omitempty"`
	Status   string       `json:"status"`
	DiffFile string       `json:"diff_file,omitempty"`
	Total    int          `json:"total"`
	Passed   int          `json:"passed"`
	Failed   int          `json:"failed"`
	Failing  []string     `json:"failing"`
	Results  []JSONResult `json:"results"`
}

// ToJSON converts a Summary for JSON output.
func ToJSON(s Summary) JSONSummary {
	out := JSONSummary{
		RunID:    s.RunID,
		Status:   s.Status(),
		DiffFile: s.DiffFile,
		Total:    s.Total,
		Passed:   s.Passed,
		Failed:   s.Failed,
		Failing:  append([]string{}, s.Failing...),
		Results:  make([]JSONResult, 0, len(s.Results)),
	}
	for _, r := range s.Results {
		jr := JSONResult{
			Name:    r.Name,
			Passed:  r.Passed,
			Updated: r.Updated,
			Kind:    r.Kind,
			Diff:    r.Diff,
		}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		}
		out.Results = append(out.Results, jr)
	}
	return out
}

// Canonical marshals v as RFC 8785 canonical JSON so identical runs produce
// byte-identical summaries.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	out, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize summary: %w", err)
	}
	return out, nil
}

// WriteJSON writes the summary as canonical JSON followed by a newline.
func WriteJSON(w io.Writer, s Summary) error {
	data, err := Canonical(ToJSON(s))
	if err != nil {
		return err
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
