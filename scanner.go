package dragon

import (
	"sort"
	"strings"
	"unicode"
)

// basicTokens is the fixed operator/punctuation set recognized
// outside macro mode, longest-match-first so e.g. "**=" is tried
// before "*=" before "*". Grounded on dragon/passes/scanner.py's
// basic_tokens (sorted by len, reverse).
var basicTokens = sortedByLenDesc([]string{
	"=",
	"+=", "-=", "*=", "**=", "/=", "//=", "%=",
	"+", "-", "*", "**", "/", "//", "%",
	"<", ">", "<=", ">=", "==", "!=",
	"!", "~",
	"->",
	"(", ")", "[", "]", "{", "}", ".", ",", ";", ":",
})

// macroBasicTokens is the additional operator set recognized only
// while macro mode is active, grounded on spring/passes/scanner.py's
// macro_basic_tokens.
var macroBasicTokens = sortedByLenDesc([]string{
	"$(", "${",
	")$", "}$",
	"=>",
})

// keywords are identifiers the scanner emits as their own token type
// instead of "ident". Grounded on spring/passes/scanner.py's keyword
// list (which is dragon's plus "del", the spec's explicit DeleteStmt
// keyword).
var keywords = map[string]bool{
	"var": true, "del": true,
	"def": true, "class": true,
	"method": true, "attr": true, "new": true,
	"if": true, "else": true,
	"while": true,
	"return": true,
	"and": true, "or": true, "as": true,
}

func sortedByLenDesc(ss []string) []string {
	out := append([]string(nil), ss...)
	sort.Slice(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentCont(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// scanState is the scanner's mutable cursor, grounded on
// spring/passes/scanner.py's dataclass `State` (pos/line/line_pos).
type scanState struct {
	input   []rune
	pos     int
	line    int
	lineCol int
}

func (s *scanState) eof() bool { return s.pos >= len(s.input) }

func (s *scanState) at(offset int) rune {
	i := s.pos + offset
	if i < 0 || i >= len(s.input) {
		return 0
	}
	return s.input[i]
}

func (s *scanState) hasPrefix(lit string) bool {
	rs := []rune(lit)
	if s.pos+len(rs) > len(s.input) {
		return false
	}
	for i, r := range rs {
		if s.input[s.pos+i] != r {
			return false
		}
	}
	return true
}

func (s *scanState) advance(n int) {
	s.pos += n
	s.lineCol += n
}

func (s *scanState) advanceLine() {
	s.pos++
	s.line++
	s.lineCol = 0
}

// Scan turns Dragon/Spring source text into a token stream (spec.md
// §4.1). It is stateless aside from the cursor; macro mode (toggled
// by `#macro`/`#endmacro`) enables the `$(`/`)$`/`${`/`}$`/`=>`
// operator set and `$ident` tokens. Grounded on
// spring/passes/scanner.py's scan().
func Scan(text string) ([]Token, error) {
	var tokens []Token
	s := &scanState{input: []rune(text), line: 1}
	macroMode := false

	addIfMatch := func(set []string) bool {
		for _, lit := range set {
			if s.hasPrefix(lit) {
				tokens = append(tokens, NewToken(lit, lit, s.line, s.lineCol))
				s.advance(len([]rune(lit)))
				return true
			}
		}
		return false
	}

	for !s.eof() {
		switch {
		case macroMode && addIfMatch(macroBasicTokens):
			continue
		case addIfMatch(basicTokens):
			continue
		}

		c := s.at(0)
		switch {
		case s.hasPrefix("0x"):
			start := s.lineCol
			n := 2
			for isHexDigit(s.at(n)) {
				n++
			}
			if n == 2 {
				return nil, NewScanError("Malformed hex literal", s.line, NewRange(start, start+n))
			}
			text := string(s.input[s.pos : s.pos+n])
			tokens = append(tokens, NewToken("hex", text, s.line, start))
			s.advance(n)

		case unicode.IsDigit(c):
			start := s.lineCol
			n := 0
			for unicode.IsDigit(s.at(n)) {
				n++
			}
			if s.at(n) == '.' && unicode.IsDigit(s.at(n+1)) {
				n++
				for unicode.IsDigit(s.at(n)) {
					n++
				}
			}
			text := string(s.input[s.pos : s.pos+n])
			tokens = append(tokens, NewToken("num", text, s.line, start))
			s.advance(n)

		case c == '"':
			start := s.lineCol
			n := 1
			closed := false
			for s.at(n) != 0 || s.pos+n < len(s.input) {
				r := s.at(n)
				if r == 0 && s.pos+n >= len(s.input) {
					break
				}
				if r == '\\' {
					n += 2
					continue
				}
				if r == '"' {
					n++
					closed = true
					break
				}
				n++
			}
			if !closed {
				return nil, NewScanError("Unterminated string literal", s.line, NewRange(start, start+n))
			}
			text := string(s.input[s.pos : s.pos+n])
			tokens = append(tokens, NewToken("str", text, s.line, start))
			s.advance(n)

		case isIdentStart(c):
			start := s.lineCol
			n := 0
			for isIdentCont(s.at(n)) {
				n++
			}
			text := string(s.input[s.pos : s.pos+n])
			if keywords[text] {
				tokens = append(tokens, NewToken(text, text, s.line, start))
			} else {
				tokens = append(tokens, NewToken("ident", text, s.line, start))
			}
			s.advance(n)

		case c == ' ' || c == '\t' || c == '\r':
			s.advance(1)

		case c == '\n':
			s.advanceLine()

		case c == '#':
			start := s.lineCol
			rest := string(s.input[s.pos+1:])
			word := rest
			if idx := strings.IndexAny(rest, " \t\n"); idx >= 0 {
				word = rest[:idx]
			}
			s.advance(1)
			switch word {
			case "":
				for !s.eof() && s.at(0) != '\n' {
					s.advance(1)
				}
				if !s.eof() {
					s.advanceLine()
				}
			case "macro":
				macroMode = true
				tokens = append(tokens, NewToken("macro", "macro", s.line, start))
				s.advance(len("macro"))
			case "endmacro":
				macroMode = false
				tokens = append(tokens, NewToken("endmacro", "endmacro", s.line, start))
				s.advance(len("endmacro"))
			case "import":
				tokens = append(tokens, NewToken("import", "import", s.line, start))
				s.advance(len("import"))
			default:
				return nil, NewScanError("Unknown directive: #"+word, s.line, NewRange(start, start+1+len(word)))
			}

		case macroMode && c == '$' && isIdentStart(s.at(1)):
			start := s.lineCol
			n := 1
			for isIdentCont(s.at(n)) {
				n++
			}
			text := string(s.input[s.pos : s.pos+n])
			tokens = append(tokens, NewToken("$ident", text, s.line, start))
			s.advance(n)

		default:
			return nil, NewScanError("Cannot scan a token starting with "+string(c), s.line, NewRange(s.lineCol, s.lineCol+1))
		}
	}

	return tokens, nil
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
