package dragon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, src string) string {
	t.Helper()
	out, _ := mustCompileWithScope(t, src)
	return out
}

func mustCompileWithScope(t *testing.T, src string) (string, *Scope) {
	t.Helper()
	prog, scope := mustResolve(t, src)
	out, err := NewCompiler().CompileProgram(prog, scope, true)
	require.NoError(t, err)
	return out, scope
}

// className looks up a class's minted C name (registerClass mangles
// every class name via s.Next, same as a function's) by its source
// name, for assertions that need to match generated C text without
// hardcoding the counter value.
func className(t *testing.T, scope *Scope, name string) string {
	t.Helper()
	typ, ok := scope.GetType(name)
	require.True(t, ok, "no such class %q", name)
	cls, ok := typ.(*ClassType)
	require.True(t, ok, "%q is not a class", name)
	return cls.Name
}

func TestCompileProgramEmitsRuntimeIncludeAndMain(t *testing.T) {
	out := mustCompile(t, `
def main() -> int {
    return 0;
}
`)
	assert.Contains(t, out, `#include "dragon.h"`)
	assert.Contains(t, out, "int main(void) {")
}

func TestGenBinOpRoutesFloorDivThroughRuntimeHelper(t *testing.T) {
	out := mustCompile(t, `
def main() -> int {
    var q: int = 7 // 2;
    var r: int = 7 % 2;
    return q + r;
}
`)
	// Not C's "/" — that truncates toward zero and would disagree with
	// "//" on mixed-sign operands; not literal "//" either, since that
	// would start a C line comment.
	assert.Contains(t, out, "drgn_floordiv(7, 2)")
	assert.Contains(t, out, "(7 % 2)")
	assert.NotContains(t, out, "//")
}

func TestCompileProgramWithoutMainIsCompileError(t *testing.T) {
	prog, scope := mustResolve(t, `
def f() -> int {
    return 1;
}
`)
	_, err := NewCompiler().CompileProgram(prog, scope, true)
	require.Error(t, err)
	var compileErr CompileError
	require.ErrorAs(t, err, &compileErr)
}

func TestGenClassEmitsStructLayout(t *testing.T) {
	out, scope := mustCompileWithScope(t, `
class Animal {
    attr name: String;

    method speak() -> int {
        return 1;
    }
}

class Dog(Animal) {
}

def main() -> int {
    return 0;
}
`)
	animalName := className(t, scope, "Animal")
	dogName := className(t, scope, "Dog")

	assert.Contains(t, out, "struct "+animalName+" {")
	assert.Contains(t, out, "BaseObject meta;")
	assert.Contains(t, out, "struct String* name;")
	assert.Contains(t, out, "struct "+dogName+" {")
	assert.Contains(t, out, "struct "+animalName+" parent_"+animalName+";")
	// Dog doesn't redeclare Animal's attrs at its own top level.
	dogIdx := indexOf(out, "struct "+dogName+" {")
	require.GreaterOrEqual(t, dogIdx, 0, "expected to find struct %s { in generated output", dogName)
	dogEnd := indexOf(out[dogIdx:], "};") + dogIdx
	assert.NotContains(t, out[dogIdx:dogEnd], "struct String* name;")
	// Dog gets a redirect thunk for the inherited, not overridden, method.
	assert.Contains(t, out, dogName+"_redirect_speak")
}

func TestGenCallThroughMethodFieldPreservesDispatch(t *testing.T) {
	out, scope := mustCompileWithScope(t, `
class Animal {
    method speak() -> int {
        return 1;
    }
}

def main() -> int {
    var a: Animal = new Animal();
    return a.speak();
}
`)
	animalName := className(t, scope, "Animal")

	// The call goes through the struct's method-pointer field, not a
	// hardcoded <ClassName>_speak(...) symbol substitution.
	assert.Contains(t, out, "->speak(")
	assert.NotContains(t, out, "return "+animalName+"_speak(")
}

func TestGenNewCoercesIntArgumentToObjectParam(t *testing.T) {
	out := mustCompile(t, `
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
	assert.Contains(t, out, "_new_Integer(1)")
}

func TestGenCastDowncastWalksMetaUp(t *testing.T) {
	out := mustCompile(t, `
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
	assert.Contains(t, out, "->meta.up")
}

func TestGenOverloadedFunctionEmitsOneSymbolPerOverload(t *testing.T) {
	out := mustCompile(t, `
def identity(a: int) -> int { return a; }
def identity(a: String) -> String { return a; }

def main() -> int {
    return identity(1);
}
`)
	assert.Contains(t, out, "identity_0(")
	assert.Contains(t, out, "identity_1(")
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
