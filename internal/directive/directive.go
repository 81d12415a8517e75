package directive

import (
	"regexp"
	"strings"
)

// Kind identifies the type of a Fragment.
type Kind int

const (
	// KindProgram is a run of program text to install.
	KindProgram Kind = iota
	// KindCommand is a dump directive.
	KindCommand
)

// String returns the kind name used in parse listings.
func (k Kind) String() string {
	switch k {
	case KindProgram:
		return "program"
	case KindCommand:
		return "dump"
	default:
		return "unknown"
	}
}

// dumpPattern matches a dump directive. The table name is the remainder of
// the line after the separating whitespace.
var dumpPattern = regexp.MustCompile(`^\\dump[ \t]+(.+)$`)

// Fragment is one parsed unit of a test file.
type Fragment struct {
	Kind Kind

	// Text is the program text for KindProgram fragments.
	Text string

	// Name is the table name for KindCommand fragments.
	Name string

	// Raw is the exact source text the fragment was parsed from,
	// including line terminators.
	Raw string

	// Line is the 1-based line number where the fragment starts.
	Line int
}

// Blank reports whether a program fragment has nothing worth installing.
func (f Fragment) Blank() bool {
	return f.Kind == KindProgram && strings.TrimSpace(f.Text) == ""
}

// Program is the ordered fragment sequence of one test file.
type Program struct {
	Fragments []Fragment

	// Trailing holds program text that follows the last dump directive.
	// It is never installed.
	Trailing string

	// TrailingLine is the 1-based line where Trailing starts (0 if empty).
	TrailingLine int
}

// Commands returns the dump directive names in file order.
func (p *Program) Commands() []string {
	var names []string
	for _, f := range p.Fragments {
		if f.Kind == KindCommand {
			names = append(names, f.Name)
		}
	}
	return names
}

// HasTrailing reports whether uninstalled program text follows the last directive.
func (p *Program) HasTrailing() bool {
	return strings.TrimSpace(p.Trailing) != ""
}

// Source reassembles the original file text from the fragments.
func (p *Program) Source() string {
	var b strings.Builder
	for _, f := range p.Fragments {
		b.WriteString(f.Raw)
	}
	b.WriteString(p.Trailing)
	return b.String()
}

// Parse splits test file text into fragments.
//
// Program text accumulates until a dump directive closes it. An empty
// accumulation produces no fragment, so adjacent directives yield adjacent
// command fragments. Whitespace-only program fragments are kept (Source must
// reproduce them) and skipped at install time.
func Parse(text string) *Program {
	p := &Program{}

	var (
		pending   strings.Builder
		startLine int
	)
	flush := func() {
		if pending.Len() == 0 {
			return
		}
		s := pending.String()
		p.Fragments = append(p.Fragments, Fragment{
			Kind: KindProgram,
			Text: s,
			Raw:  s,
			Line: startLine,
		})
		pending.Reset()
	}

	lineNo := 0
	for _, line := range splitLines(text) {
		lineNo++
		if name, ok := matchDump(line); ok {
			flush()
			p.Fragments = append(p.Fragments, Fragment{
				Kind: KindCommand,
				Name: name,
				Raw:  line,
				Line: lineNo,
			})
			continue
		}
		if pending.Len() == 0 {
			startLine = lineNo
		}
		pending.WriteString(line)
	}

	if pending.Len() > 0 {
		p.Trailing = pending.String()
		p.TrailingLine = startLine
	}
	return p
}

// matchDump returns the table name if line is a dump directive.
func matchDump(line string) (string, bool) {
	body := strings.TrimRight(line, "\r\n")
	m := dumpPattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return "", false
	}
	return name, true
}

// splitLines splits text after each newline, keeping the terminators.
// A final line without a newline is returned as-is.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
