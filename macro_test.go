package dragon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseExprMacroExpandsPlaceholders covers an `expr`-place macro:
// declaring one registers it in the parser's macroRegistry, and every
// later occurrence of its call pattern expands to the replacement
// with $-placeholders bound to whatever was parsed at the call site.
func TestParseExprMacroExpandsPlaceholders(t *testing.T) {
	prog := mustParse(t, `
#macro $( double($x:expr) )$ => expr : $( $x + $x )$ #endmacro
def run() -> int {
    return double(21);
}
`)
	require.Len(t, prog.Decls, 1)
	fn, ok := prog.Decls[0].(*Function)
	require.True(t, ok, "expected *Function, got %T", prog.Decls[0])
	require.Len(t, fn.Body.Stmts, 1)

	ret, ok := fn.Body.Stmts[0].(*ReturnStmt)
	require.True(t, ok)
	bin, ok := ret.Value.(*BinOp)
	require.True(t, ok, "expected *BinOp, got %T", ret.Value)
	assert.Equal(t, "+", bin.Op)

	left, ok := bin.Left.(*Literal)
	require.True(t, ok, "expected *Literal, got %T", bin.Left)
	assert.Equal(t, "21", left.Value)
	right, ok := bin.Right.(*Literal)
	require.True(t, ok, "expected *Literal, got %T", bin.Right)
	assert.Equal(t, "21", right.Value)
}

// TestParseStmtMacroExpandsPlaceholders covers a `stmt`-place macro
// whose call pattern mixes an expr placeholder and a stmt placeholder.
func TestParseStmtMacroExpandsPlaceholders(t *testing.T) {
	prog := mustParse(t, `
#macro $( unless($cond:expr) $body:stmt )$ => stmt : $( if (!$cond) $body )$ #endmacro
def run(flag: bool) -> int {
    unless(flag) return 1;
    return 0;
}
`)
	require.Len(t, prog.Decls, 1)
	fn, ok := prog.Decls[0].(*Function)
	require.True(t, ok, "expected *Function, got %T", prog.Decls[0])
	require.Len(t, fn.Body.Stmts, 2)

	ifStmt, ok := fn.Body.Stmts[0].(*IfStmt)
	require.True(t, ok, "expected *IfStmt, got %T", fn.Body.Stmts[0])

	not, ok := ifStmt.Cond.(*Unary)
	require.True(t, ok, "expected *Unary, got %T", ifStmt.Cond)
	assert.Equal(t, "!", not.Op)
	cond, ok := not.Operand.(*GetVar)
	require.True(t, ok, "expected *GetVar, got %T", not.Operand)
	assert.Equal(t, "flag", cond.Name)

	then, ok := ifStmt.Then.(*ReturnStmt)
	require.True(t, ok, "expected *ReturnStmt, got %T", ifStmt.Then)
	lit, ok := then.Value.(*Literal)
	require.True(t, ok)
	assert.Equal(t, "1", lit.Value)
}

// TestApplyMacroStmtReplacementUsesFirstStatement confirms a stmt-place
// macro's replacement is parsed as a single statement even when the
// replacement token list has more behind it — parseStmt stops after
// the first statement it parses, the same as any other call site.
func TestApplyMacroStmtReplacementUsesFirstStatement(t *testing.T) {
	tokens, err := Scan(`
#macro $( wrap($body:stmt) )$ => stmt : $( $body $body )$ #endmacro
def run() -> int {
    wrap(return 1;)
}
`)
	require.NoError(t, err)
	prog, err := ParseProgram(tokens)
	require.NoError(t, err)

	fn, ok := prog.Decls[0].(*Function)
	require.True(t, ok)
	require.Len(t, fn.Body.Stmts, 1)
	ret, ok := fn.Body.Stmts[0].(*ReturnStmt)
	require.True(t, ok, "expected *ReturnStmt, got %T", fn.Body.Stmts[0])
	lit, ok := ret.Value.(*Literal)
	require.True(t, ok)
	assert.Equal(t, "1", lit.Value)
}

// TestApplyMacroCallPatternMismatchErrors confirms a call site whose
// literal tokens don't match the macro's declared call pattern
// surfaces a parse error rather than silently matching.
func TestApplyMacroCallPatternMismatchErrors(t *testing.T) {
	tokens, err := Scan(`
#macro $( double($x:expr) )$ => expr : $( $x + $x )$ #endmacro
def run() -> int {
    return double[21];
}
`)
	require.NoError(t, err)
	_, err = ParseProgram(tokens)
	require.Error(t, err)
}

// TestApplyMacroMalformedPlaceholderErrors confirms a call pattern
// declaring a placeholder without the required `:kind` suffix is
// rejected once the macro is actually invoked, not silently accepted.
func TestApplyMacroMalformedPlaceholderErrors(t *testing.T) {
	tokens, err := Scan(`
#macro $( broken($x:expr) $y )$ => expr : $( $x )$ #endmacro
def run() -> int {
    return broken(5);
}
`)
	require.NoError(t, err)
	_, err = ParseProgram(tokens)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be of form")
}
