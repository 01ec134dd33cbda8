package dragon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompileFileSharesOneResolutionAcrossImports guards against a
// once-real bug where an imported file was resolved twice — once
// inside the importer's own Resolve (the resolution whose c_names the
// importer's generated calls use), and again independently from a
// fresh root scope to produce that file's own generated source. Two
// independent resolutions can mint different C names for the same
// declaration, leaving the importer's calls pointed at a symbol the
// imported file's own unit never actually defines.
func TestCompileFileSharesOneResolutionAcrossImports(t *testing.T) {
	dir := t.TempDir()

	libPath := filepath.Join(dir, "lib.drgn")
	mainPath := filepath.Join(dir, "main.drgn")

	require.NoError(t, os.WriteFile(libPath, []byte(`
class Thing {
    attr value: int;
}
`), 0o644))

	require.NoError(t, os.WriteFile(mainPath, []byte(`
#import "lib.drgn"
def main() -> int {
    var t: lib.Thing = new lib.Thing();
    return 0;
}
`), 0o644))

	units, err := CompileFile(mainPath)
	require.NoError(t, err)
	require.Len(t, units, 2)

	var libUnit, mainUnit *Unit
	for _, u := range units {
		switch u.Path {
		case libPath:
			libUnit = u
		case mainPath:
			mainUnit = u
		}
	}
	require.NotNil(t, libUnit, "expected a unit for %s", libPath)
	require.NotNil(t, mainUnit, "expected a unit for %s", mainPath)

	// lib.drgn's own unit must define exactly the constructor symbol
	// main.drgn's unit calls. Thing is the first name the shared
	// counter mints, so its C name is Thing_0.
	assert.Contains(t, libUnit.Source, "Thing_0* Thing_0_new(void) {")
	assert.Contains(t, mainUnit.Source, "Thing_0_new()")
}

// TestResolveImportGraphReusesSameClassType confirms the importer's
// resolved type for an imported class is the very same *ClassType
// object recorded for that file's own top-level scope — i.e. one
// resolution, not two independent ones that happen to agree.
func TestResolveImportGraphReusesSameClassType(t *testing.T) {
	dir := t.TempDir()

	libPath := filepath.Join(dir, "lib.drgn")
	mainPath := filepath.Join(dir, "main.drgn")

	require.NoError(t, os.WriteFile(libPath, []byte(`
class Thing {
    attr value: int;
}
`), 0o644))

	require.NoError(t, os.WriteFile(mainPath, []byte(`
#import "lib.drgn"
def main() -> int {
    var t: lib.Thing = new lib.Thing();
    return 0;
}
`), 0o644))

	mainAbs, err := filepath.Abs(mainPath)
	require.NoError(t, err)
	libAbs, err := filepath.Abs(libPath)
	require.NoError(t, err)

	files, order, err := resolveImportGraph(mainAbs)
	require.NoError(t, err)
	require.Len(t, order, 2)

	libScope := files[libAbs].scope
	libThing, ok := libScope.GetType("Thing")
	require.True(t, ok)

	mainFn := files[mainAbs].prog.Decls[1].(*Function)
	varStmt := mainFn.Body.Stmts[0].(*VarStmt)
	mainThing, ok := varStmt.Type.Meta()["type"].(CType)
	require.True(t, ok)

	assert.Same(t, libThing, mainThing)
}
