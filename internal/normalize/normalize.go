// Package normalize canonicalizes dump output for order-independent comparison.
//
// Evaluators enumerate table contents in an engine-defined order. Sorting the
// lines of both the captured output and the golden file makes comparison
// deterministic at the cost of exact-order fidelity.
package normalize

import (
	"sort"
	"strings"
)

// Text splits s into newline-delimited lines, drops trailing empty lines,
// sorts the rest by byte order and joins them with a single newline.
//
// Empty lines before the last non-empty line are content and sort first.
// The result has no trailing newline. Text is idempotent and invariant under
// any permutation of the lines of a text without blank lines.
func Text(s string) string {
	return strings.Join(sortedLines(s), "\n")
}

func sortedLines(s string) []string {
	lines := strings.Split(s, "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	sort.Stable(sort.StringSlice(lines))
	return lines
}
