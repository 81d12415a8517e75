package normalize

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText_SortsLines(t *testing.T) {
	assert.Equal(t, "fact(a).\nfact(b).", Text("fact(b).\nfact(a).\n"))
}

func TestText_GoldenAndEngineAgree(t *testing.T) {
	actual := Text("fact(b).\nfact(a).\n")
	expected := Text("fact(a).\nfact(b).\n")

	assert.Equal(t, "fact(a).\nfact(b).", actual)
	assert.Equal(t, expected, actual)
}

func TestText_PreservesDuplicates(t *testing.T) {
	assert.Equal(t, "a\na\nb", Text("b\na\na\n"))
}

func TestText_ByteOrder(t *testing.T) {
	// Uppercase sorts before lowercase; no locale collation.
	assert.Equal(t, "B\na\nb", Text("b\nB\na"))
	assert.Equal(t, "z\né", Text("é\nz"))
}

func TestText_DropsTrailingEmptyLines(t *testing.T) {
	assert.Equal(t, "a\nb", Text("b\na\n\n\n"))
	assert.Equal(t, "", Text("\n\n\n"))
	assert.Equal(t, "", Text(""))
}

func TestText_KeepsInnerEmptyLines(t *testing.T) {
	// Inner blank lines are content and sort before every other line.
	assert.Equal(t, "\n\na\nb", Text("a\n\n\nb\n"))
	assert.Equal(t, "\n\n\na\nb", Text("\n\nb\n\na\n\n"))
	assert.NotEqual(t, Text("b\na\n"), Text("a\n\n\nb\n"))
}

func TestText_KeepsWhitespaceLines(t *testing.T) {
	// Whitespace-only lines are content, never dropped.
	assert.Equal(t, " \na", Text("a\n \n"))
}

func TestText_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"\n",
		"a",
		"b\na\n",
		"\n\nb\n\na\n\n",
		"x(1).\r\nx(0).\r\n",
		"dup\ndup\n dup\n",
	}
	for _, in := range inputs {
		once := Text(in)
		assert.Equal(t, once, Text(once), "normalize must be idempotent for %q", in)
	}
}

func TestText_OrderInvariant(t *testing.T) {
	lines := []string{"c(3).", "a(1).", "b(2).", "a(1).", "q(\"x y\")."}
	want := Text(strings.Join(lines, "\n"))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		perm := append([]string(nil), lines...)
		rng.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })
		assert.Equal(t, want, Text(strings.Join(perm, "\n")))
		assert.Equal(t, want, Text(strings.Join(perm, "\n")+"\n"))
	}
}

func TestSortedLines(t *testing.T) {
	assert.Equal(t, []string{"", "a", "b"}, sortedLines("b\n\na\n"))
	assert.Empty(t, sortedLines(""))
	assert.Empty(t, sortedLines("\n"))
}
