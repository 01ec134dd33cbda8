package dragon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	tokens, err := Scan(src)
	require.NoError(t, err)
	prog, err := ParseProgram(tokens)
	require.NoError(t, err)
	return prog
}

func TestParseFunction(t *testing.T) {
	prog := mustParse(t, `
def add(a: int, b: int) -> int {
    return a + b;
}
`)
	require.Len(t, prog.Decls, 1)
	fn, ok := prog.Decls[0].(*Function)
	require.True(t, ok, "expected *Function, got %T", prog.Decls[0])
	assert.Equal(t, "add", fn.Name)
	assert.Len(t, fn.Params, 2)
	assert.Equal(t, "a", fn.Params[0].Name)
	assert.Len(t, fn.Body.Stmts, 1)

	ret, ok := fn.Body.Stmts[0].(*ReturnStmt)
	require.True(t, ok)
	bin, ok := ret.Value.(*BinOp)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
}

func TestParseOverloadedFunctionGrouping(t *testing.T) {
	prog := mustParse(t, `
def identity(a: int) -> int { return a; }
def identity(a: String) -> String { return a; }
`)
	require.Len(t, prog.Decls, 1)
	group, ok := prog.Decls[0].(*OverloadedFunction)
	require.True(t, ok, "expected *OverloadedFunction, got %T", prog.Decls[0])
	assert.Equal(t, "identity", group.Name)
	assert.Len(t, group.Overloads, 2)
}

func TestParseClassWithBasesAttrsAndMethods(t *testing.T) {
	prog := mustParse(t, `
class Animal {
    attr name: String;

    method speak() -> String {
        return self.name;
    }
}

class Dog(Animal) {
    new(name: String) {
        self.name = name;
    }
}
`)
	require.Len(t, prog.Decls, 2)

	animal, ok := prog.Decls[0].(*Class)
	require.True(t, ok)
	assert.Equal(t, "Animal", animal.Name)
	assert.Len(t, animal.Attrs, 1)
	assert.Equal(t, "name", animal.Attrs[0].Name)
	assert.Len(t, animal.Methods, 1)
	assert.Equal(t, "speak", animal.Methods[0].Name)

	dog, ok := prog.Decls[1].(*Class)
	require.True(t, ok)
	assert.Equal(t, "Dog", dog.Name)
	require.Len(t, dog.Bases, 1)
	assert.Equal(t, "Animal", dog.Bases[0].(*NameType).Value)
	require.NotNil(t, dog.Constructor)
	assert.Len(t, dog.Constructor.Params, 1)
}

func TestParseGenericClass(t *testing.T) {
	prog := mustParse(t, `
class Box<T> {
    attr value: T;
}
`)
	require.Len(t, prog.Decls, 1)
	box, ok := prog.Decls[0].(*GenericClass)
	require.True(t, ok, "expected *GenericClass, got %T", prog.Decls[0])
	assert.Equal(t, "Box", box.Name)
	assert.Equal(t, []string{"T"}, box.TypeVars)
}

func TestParseNewCastAndImport(t *testing.T) {
	prog := mustParse(t, `
#import "other.drgn"
def main() -> int {
    var x: Object = new Integer(1) as Object;
    return 0;
}
`)
	require.Len(t, prog.Decls, 2)

	imp, ok := prog.Decls[0].(*Import)
	require.True(t, ok)
	assert.Equal(t, "other.drgn", imp.Path)

	fn, ok := prog.Decls[1].(*Function)
	require.True(t, ok)
	varStmt, ok := fn.Body.Stmts[0].(*VarStmt)
	require.True(t, ok)
	cast, ok := varStmt.Value.(*Cast)
	require.True(t, ok)
	_, isNew := cast.Value.(*New)
	assert.True(t, isNew)
}

func TestParseErrorOnUnterminatedBlock(t *testing.T) {
	tokens, err := Scan("def f() { return 1;")
	require.NoError(t, err)
	_, err = ParseProgram(tokens)
	require.Error(t, err)
	var parseErr ParseError
	require.ErrorAs(t, err, &parseErr)
}
