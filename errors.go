package dragon

import (
	"fmt"
	"strings"
)

// compileError is the shared shape of all four diagnosable error
// kinds (spec.md §7): a message plus the (line, column-range) of the
// offending token, grounded on the original's DragonError base class
// (dragon_error.py) and on the teacher's ParsingError (errors.go).
type compileError struct {
	Message string
	Line    int
	Pos     Range
}

func (e compileError) Error() string {
	return fmt.Sprintf("%s @ %d:%s", e.Message, e.Line, e.Pos)
}

// Render reproduces the three-line diagnostic spec.md §6.4 describes:
// the file path, the offending source line with a caret span under
// it, then the error message. path is used only for display; src is
// the full original source text the error occurred in.
//
// Grounded on dragon_error.py's DragonError.finish, restructured as a
// pure function: the original calls sys.exit() itself, but fatal exit
// belongs to the driver shell (cmd/dragonc/main.go), not the compiler
// core.
func (e compileError) Render(path, src string) string {
	if src == "" || e.Line <= 0 {
		return e.Message
	}

	lines := strings.Split(src, "\n")
	if e.Line > len(lines) {
		return e.Message
	}
	offender := lines[e.Line-1]

	arrowSize := e.Pos.End - e.Pos.Start
	if arrowSize < 0 {
		arrowSize = 0
	}
	leftOver := len(offender) - e.Pos.End
	if leftOver < 0 {
		leftOver = 0
	}
	arrows := strings.Repeat(" ", e.Pos.Start) + strings.Repeat("^", arrowSize) + strings.Repeat(" ", leftOver)

	cutLen := len(offender) - len(strings.TrimLeft(offender, " \t"))
	if cutLen > len(arrows) {
		cutLen = len(arrows)
	}
	arrows = arrows[cutLen:]
	offender = strings.TrimLeft(offender, " \t")

	errStart := fmt.Sprintf("    %d | ", e.Line)

	out := []string{
		"File: " + path,
		errStart + offender,
		strings.Repeat(" ", len(errStart)) + arrows,
		"Error: " + e.Message,
	}
	return strings.Join(out, "\n")
}

// ScanError is raised by the scanner: an unknown directive, an
// unscannable character, or a malformed literal (spec.md §4.1, §7.1).
type ScanError struct{ compileError }

func NewScanError(message string, line int, pos Range) ScanError {
	return ScanError{compileError{Message: message, Line: line, Pos: pos}}
}

// ParseError is raised by the parser: an unexpected token, an
// assignment to a non-lvalue, a malformed macro declaration or
// placeholder, a stray class-body statement (spec.md §4.2, §7.2).
type ParseError struct{ compileError }

func NewParseError(message string, line int, pos Range) ParseError {
	return ParseError{compileError{Message: message, Line: line, Pos: pos}}
}

// ResolveError is raised by the resolver: an undefined name, a
// non-class receiver, a missing attribute/method, a non-function
// callee, an unsupported binary-operator operand pair, a generic
// applied to a non-generic type, or an overload call whose argument
// types match no overload, neither exactly nor by coercion (spec.md
// §4.3, §7.3).
type ResolveError struct{ compileError }

func NewResolveError(message string, line int, pos Range) ResolveError {
	return ResolveError{compileError{Message: message, Line: line, Pos: pos}}
}

// CompileError is raised by the code generator: an impossible
// coercion, a missing `main` in the entry unit, or a failure
// propagated up from the external C compiler invocation (spec.md
// §4.4, §7.4).
type CompileError struct{ compileError }

func NewCompileError(message string, line int, pos Range) CompileError {
	return CompileError{compileError{Message: message, Line: line, Pos: pos}}
}

// diagnostic is satisfied by every one of the four error kinds above;
// the driver shell uses it to render whichever one it receives
// without a type switch per kind.
type diagnostic interface {
	error
	Render(path, src string) string
}

// Diagnostic is the exported name a driver shell type-switches on to
// render any of the four error kinds uniformly.
type Diagnostic = diagnostic

var (
	_ diagnostic = ScanError{}
	_ diagnostic = ParseError{}
	_ diagnostic = ResolveError{}
	_ diagnostic = CompileError{}
)
