package dragon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompileErrorErrorIncludesPosition(t *testing.T) {
	err := NewScanError("Unknown directive: #bogus", 3, Range{Start: 2, End: 5})
	assert.Contains(t, err.Error(), "Unknown directive: #bogus")
	assert.Contains(t, err.Error(), "3")
}

func TestRenderWithoutSourceFallsBackToMessage(t *testing.T) {
	err := NewParseError("Unexpected token", 1, Range{Start: 0, End: 1})
	assert.Equal(t, "Unexpected token", err.Render("foo.drgn", ""))
}

func TestRenderWithSourceProducesThreeLineDiagnostic(t *testing.T) {
	src := "def main() -> int {\n    return oops;\n}\n"
	err := NewResolveError("Undefined name: oops", 2, Range{Start: 11, End: 15})
	out := err.Render("foo.drgn", src)

	lines := splitLines(out)
	assert.Equal(t, "File: foo.drgn", lines[0])
	assert.Contains(t, lines[1], "return oops;")
	assert.Contains(t, lines[1], "2 | ")
	assert.Contains(t, lines[2], "^")
	assert.Equal(t, "Error: Undefined name: oops", lines[3])
}

func TestRenderClampsCaretWhenLineShorterThanPos(t *testing.T) {
	src := "x\n"
	err := NewCompileError("boom", 1, Range{Start: 10, End: 20})
	// Must not panic on an out-of-range caret span; the exact
	// rendering isn't load-bearing, just that it degrades gracefully.
	assert.NotPanics(t, func() {
		_ = err.Render("foo.drgn", src)
	})
}

func TestRenderReportsMessageWhenLineOutOfRange(t *testing.T) {
	src := "only one line\n"
	err := NewCompileError("boom", 99, Range{Start: 0, End: 1})
	assert.Equal(t, "boom", err.Render("foo.drgn", src))
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
