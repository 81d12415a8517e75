package harness

import (
	"fmt"
	"strings"
)

// Segment is the output of one dump command.
type Segment struct {
	Command string `json:"command"`
	Text    string `json:"text"`
}

// Captured is the engine output of one test, in command-issue order.
type Captured struct {
	Segments []Segment `json:"segments"`
}

// NewCaptured creates an empty capture.
func NewCaptured() *Captured {
	return &Captured{Segments: []Segment{}}
}

// Add appends the output of a dump command.
func (c *Captured) Add(command, text string) {
	c.Segments = append(c.Segments, Segment{Command: command, Text: text})
}

// Empty reports whether no dump command ran.
func (c *Captured) Empty() bool {
	return len(c.Segments) == 0
}

// Commands returns the dumped table names in issue order.
func (c *Captured) Commands() []string {
	names := make([]string, len(c.Segments))
	for i, s := range c.Segments {
		names[i] = s.Command
	}
	return names
}

// Text concatenates all segments in order. Each non-empty segment is
// newline-terminated so records of adjacent dumps never run together.
func (c *Captured) Text() string {
	var b strings.Builder
	for _, s := range c.Segments {
		b.WriteString(s.Text)
		if s.Text != "" && !strings.HasSuffix(s.Text, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Labeled renders each segment under a header naming its command. Used for
// verbose diagnostics; comparison always uses Text.
func (c *Captured) Labeled() string {
	var b strings.Builder
	for _, s := range c.Segments {
		fmt.Fprintf(&b, "**** \\dump %q ****\n", s.Command)
		b.WriteString(s.Text)
		if s.Text != "" && !strings.HasSuffix(s.Text, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
