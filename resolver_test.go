package dragon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustResolve(t *testing.T, src string) (*Program, *Scope) {
	t.Helper()
	prog := mustParse(t, src)
	scope, err := NewResolver(".").Resolve(prog)
	require.NoError(t, err)
	return prog, scope
}

func TestResolveFunctionAssignsCNameAndType(t *testing.T) {
	prog, _ := mustResolve(t, `
def add(a: int, b: int) -> int {
    return a + b;
}
`)
	fn := prog.Decls[0].(*Function)
	cName, ok := fn.Meta()["c_name"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, cName)

	ret := fn.Body.Stmts[0].(*ReturnStmt)
	retType, ok := ret.Meta()["type"].(CType)
	require.True(t, ok)
	assert.Same(t, IntType, retType)
}

func TestResolveFloorDivAndModuloYieldInt(t *testing.T) {
	prog, _ := mustResolve(t, `
def rem(a: int, b: int) -> int {
    return a // b + a % b;
}
`)
	fn := prog.Decls[0].(*Function)
	ret := fn.Body.Stmts[0].(*ReturnStmt)
	retType, ok := ret.Meta()["type"].(CType)
	require.True(t, ok)
	assert.Same(t, IntType, retType)

	sum := ret.Value.(*BinOp)
	assert.Equal(t, "+", sum.Op)
	floorDiv := sum.Left.(*BinOp)
	assert.Equal(t, "//", floorDiv.Op)
	mod := sum.Right.(*BinOp)
	assert.Equal(t, "%", mod.Op)
}

func TestResolveUndefinedNameIsResolveError(t *testing.T) {
	prog := mustParse(t, `
def f() -> int {
    return undefined_name;
}
`)
	_, err := NewResolver(".").Resolve(prog)
	require.Error(t, err)
	var resolveErr ResolveError
	require.ErrorAs(t, err, &resolveErr)
	assert.Contains(t, resolveErr.Message, "Undefined name")
}

func TestResolveOverloadedFunctionExactMatch(t *testing.T) {
	prog, _ := mustResolve(t, `
def identity(a: int) -> int { return a; }
def identity(a: String) -> String { return a; }

def main() -> int {
    var x: int = identity(1);
    return 0;
}
`)
	main := prog.Decls[1].(*Function)
	varStmt := main.Body.Stmts[0].(*VarStmt)
	call := varStmt.Value.(*Call)
	cName, ok := call.Meta()["c_name"].(string)
	require.True(t, ok)
	assert.Equal(t, "identity_0", cName)
}

func TestResolveClassWithInheritedMethodRedirect(t *testing.T) {
	_, scope := mustResolve(t, `
class Animal {
    method speak() -> int {
        return 1;
    }
}

class Dog(Animal) {
}
`)
	typ, ok := scope.GetType("Dog")
	require.True(t, ok)
	dog := typ.(*ClassType)

	require.Contains(t, dog.Methods, "speak")
	cName := dog.FuncNames["speak"]
	assert.Equal(t, dog.Name+"_redirect_speak", cName)
}

func TestResolveClassOverrideDoesNotRedirect(t *testing.T) {
	_, scope := mustResolve(t, `
class Animal {
    method speak() -> int {
        return 1;
    }
}

class Dog(Animal) {
    method speak() -> int {
        return 2;
    }
}
`)
	typ, ok := scope.GetType("Dog")
	require.True(t, ok)
	dog := typ.(*ClassType)
	assert.Equal(t, dog.Name+"_speak", dog.FuncNames["speak"])
}

func TestResolveConstructorArgumentCoercionBoxesInt(t *testing.T) {
	prog, _ := mustResolve(t, `
class Box {
    attr value: Object;

    new(value: Object) {
        self.value = value;
    }
}

def main() -> int {
    var b: Box = new Box(1);
    return 0;
}
`)
	main := prog.Decls[1].(*Function)
	varStmt := main.Body.Stmts[0].(*VarStmt)
	newExpr := varStmt.Value.(*New)

	expected, ok := newExpr.Meta()["expected_args"].([]CType)
	require.True(t, ok)
	require.Len(t, expected, 1)
	assert.True(t, IsClass(expected[0]))
}

func TestResolveCastDowncastPath(t *testing.T) {
	prog, scope := mustResolve(t, `
class Animal {
}

class Dog(Animal) {
}

def main() -> int {
    var a: Animal = new Dog() as Animal;
    var d: Dog = a as Dog;
    return 0;
}
`)
	main := prog.Decls[2].(*Function)
	cast := main.Body.Stmts[1].(*VarStmt).Value.(*Cast)
	castType, ok := cast.Meta()["type"].(CType)
	require.True(t, ok)
	cls, ok := castType.(*ClassType)
	require.True(t, ok)

	dogTyp, ok := scope.GetType("Dog")
	require.True(t, ok)
	assert.Same(t, dogTyp, cls)
}

func TestResolveGenericClassInstantiation(t *testing.T) {
	_, scope := mustResolve(t, `
class Box<T> {
    attr value: T;
}

def main() -> int {
    var b: Box<int> = new Box<int>();
    return 0;
}
`)
	typ, ok := scope.GetType("Box")
	require.True(t, ok)
	gct, ok := typ.(*GenericClassType)
	require.True(t, ok)
	assert.NotEmpty(t, gct.Instantiations)
}
