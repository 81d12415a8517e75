// Package directive splits regression test files into program fragments and
// embedded dump commands.
//
// # Test File Format
//
// A test file is program text for the evaluator interleaved with dump
// directives:
//
//	parent(/a, /b).
//	parent(/b, /c).
//	\dump parent
//	ancestor(X, Y) :- parent(X, Y).
//	\dump ancestor
//
// A line beginning with `\dump` followed by whitespace is a directive; the rest
// of the line names the table to dump. Every other line is program text.
// Program text seen before a directive is installed before the directive runs,
// so each directive observes everything installed so far.
//
// Program text after the last directive is reported as Program.Trailing. It is
// never installed because nothing would observe it.
//
// # Reconstruction
//
// Parsing is total and loses nothing: Program.Source returns the exact input,
// including trailing text and line terminators.
package directive
