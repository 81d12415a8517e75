package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/regress/internal/corpus"
	"github.com/roach88/regress/internal/directive"
)

// ParsedFragment is the JSON form of one fragment.
type ParsedFragment struct {
	Kind string `json:"kind"`
	Line int    `json:"line"`
	Name string `json:"name,omitempty"`
	Text string `json:"text,omitempty"`
}

// ParseResult is the JSON form of a parsed test file.
type ParseResult struct {
	Test         string           `json:"test"`
	Fragments    []ParsedFragment `json:"fragments"`
	Commands     int              `json:"commands"`
	Trailing     string           `json:"trailing,omitempty"`
	TrailingLine int              `json:"trailing_line,omitempty"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Show how a test file splits into program text and dump commands",
		Long: `Parse a test file and print its fragments in order.

Program text that follows the last \dump is never installed; parse
reports it so it can be fixed.

Examples:
  regress parse input/transitive_closure
  regress parse input/transitive_closure --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return parseFile(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func parseFile(cmd *cobra.Command, opts *RootOptions, path string) error {
	formatter := newFormatter(cmd, opts)

	text, err := corpus.ReadText(path)
	if err != nil {
		code := ErrCodeGeneric
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		return formatter.Fail(code, "failed to read test file", err)
	}

	prog := directive.Parse(text)
	result := toParseResult(filepath.Base(path), prog)

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: %d fragment(s), %d dump(s)\n", result.Test, len(result.Fragments), result.Commands)
	for _, f := range prog.Fragments {
		switch f.Kind {
		case directive.KindCommand:
			fmt.Fprintf(w, "  %4d  dump     %s\n", f.Line, f.Name)
		default:
			n := strings.Count(f.Text, "\n")
			if !strings.HasSuffix(f.Text, "\n") {
				n++
			}
			label := "program"
			if f.Blank() {
				label = "blank"
			}
			fmt.Fprintf(w, "  %4d  %-7s  %d line(s)\n", f.Line, label, n)
			if opts.Verbose {
				fmt.Fprintln(w, indent(f.Text, "          | "))
			}
		}
	}
	if prog.HasTrailing() {
		fmt.Fprintf(w, "warning: program text from line %d follows the last dump and is never installed\n", prog.TrailingLine)
	}
	return nil
}

func toParseResult(name string, prog *directive.Program) ParseResult {
	result := ParseResult{
		Test:      name,
		Fragments: make([]ParsedFragment, 0, len(prog.Fragments)),
		Commands:  len(prog.Commands()),
	}
	for _, f := range prog.Fragments {
		result.Fragments = append(result.Fragments, ParsedFragment{
			Kind: f.Kind.String(),
			Line: f.Line,
			Name: f.Name,
			Text: f.Text,
		})
	}
	if prog.HasTrailing() {
		result.Trailing = prog.Trailing
		result.TrailingLine = prog.TrailingLine
	}
	return result
}

// indent prefixes every line of text.
func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
