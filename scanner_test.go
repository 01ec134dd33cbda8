package dragon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanTokenTypes(t *testing.T) {
	for _, test := range []struct {
		Name     string
		Source   string
		Expected []Token
	}{
		{
			Name:   "Keywords and ident",
			Source: "class Foo",
			Expected: []Token{
				NewToken("class", "class", 1, 0),
				NewToken("ident", "Foo", 1, 6),
			},
		},
		{
			Name:   "Number",
			Source: "42 3.14",
			Expected: []Token{
				NewToken("num", "42", 1, 0),
				NewToken("num", "3.14", 1, 3),
			},
		},
		{
			Name:   "Hex literal",
			Source: "0x1F",
			Expected: []Token{
				NewToken("hex", "0x1F", 1, 0),
			},
		},
		{
			Name:   "String literal with escape",
			Source: `"a\"b"`,
			Expected: []Token{
				NewToken("str", `"a\"b"`, 1, 0),
			},
		},
		{
			Name:   "Operators longest match first",
			Source: "** * = ==",
			Expected: []Token{
				NewToken("**", "**", 1, 0),
				NewToken("*", "*", 1, 3),
				NewToken("=", "=", 1, 5),
				NewToken("==", "==", 1, 7),
			},
		},
		{
			Name:   "Line comment is skipped",
			Source: "var x: int; # trailing\nvar y: int;",
			Expected: []Token{
				NewToken("var", "var", 1, 0),
				NewToken("ident", "x", 1, 4),
				NewToken(":", ":", 1, 5),
				NewToken("ident", "int", 1, 7),
				NewToken(";", ";", 1, 10),
				NewToken("var", "var", 2, 0),
				NewToken("ident", "y", 2, 4),
				NewToken(":", ":", 2, 5),
				NewToken("ident", "int", 2, 7),
				NewToken(";", ";", 2, 10),
			},
		},
		{
			Name:   "Import directive",
			Source: "#import",
			Expected: []Token{
				NewToken("import", "import", 1, 0),
			},
		},
		{
			Name:   "Macro mode toggles macro operators",
			Source: "#macro $( )$ #endmacro",
			Expected: []Token{
				NewToken("macro", "macro", 1, 0),
				NewToken("$(", "$(", 1, 7),
				NewToken(")$", ")$", 1, 10),
				NewToken("endmacro", "endmacro", 1, 13),
			},
		},
	} {
		t.Run(test.Name, func(t *testing.T) {
			tokens, err := Scan(test.Source)
			require.NoError(t, err)
			require.Len(t, tokens, len(test.Expected))
			for i, tok := range tokens {
				assert.True(t, tok.Equal(test.Expected[i]), "token %d: got %s, want %s", i, tok, test.Expected[i])
			}
		})
	}
}

func TestScanErrors(t *testing.T) {
	for _, test := range []struct {
		Name    string
		Source  string
		Message string
	}{
		{Name: "Unterminated string", Source: `"abc`, Message: "Unterminated string literal"},
		{Name: "Malformed hex", Source: "0x", Message: "Malformed hex literal"},
		{Name: "Unknown directive", Source: "#bogus", Message: "Unknown directive: #bogus"},
		{Name: "Unscannable character", Source: "@", Message: "Cannot scan a token starting with @"},
	} {
		t.Run(test.Name, func(t *testing.T) {
			_, err := Scan(test.Source)
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.Message)
		})
	}
}

func TestScanMacroIdentOutsideMacroMode(t *testing.T) {
	// Without #macro active, `$` isn't a valid token start.
	_, err := Scan("$foo")
	require.Error(t, err)
	var scanErr ScanError
	require.ErrorAs(t, err, &scanErr)
}
