package dragon

import (
	"os"
	"path/filepath"
	"strings"
)

// Unit is one compiled .drgn source file: its own header and source
// text, ready to be written to disk alongside the runtime. Named
// after original_source/dragon/passes/another_compiler.py's
// compile_drgn, which returns a cgen.Unit built from one cgen.Program
// per file in the import graph.
type Unit struct {
	Path   string // absolute path to the .drgn source
	Header string // .h contents
	Source string // .c contents
}

// HeaderPath and SourcePath are where Unit's Header/Source belong on
// disk, siblings of the original .drgn file.
func (u *Unit) HeaderPath() string { return withExt(u.Path, ".h") }
func (u *Unit) SourcePath() string { return withExt(u.Path, ".c") }

func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

type parsedFile struct {
	path   string
	prog   *Program
	scope  *Scope
	isMain bool
}

// CompileFile drives the whole pipeline for entryPath: scan, parse,
// resolve (which recursively resolves every import), then compile
// every file reached from entryPath — including entryPath itself —
// into its own Unit. Mirrors compile_drgn/visit_Program's recursion
// over ast.Import. Import discovery and codegen happen as two
// separate passes here instead of one combined visitor pass, but
// resolution itself happens exactly once per file: entryPath's own
// Resolver collects the (*Program, *Scope) pair registerImport
// already produces for each import it walks, instead of re-resolving
// imported files from scratch a second time.
func CompileFile(entryPath string) ([]*Unit, error) {
	entryPath, err := filepath.Abs(entryPath)
	if err != nil {
		return nil, err
	}

	files, order, err := resolveImportGraph(entryPath)
	if err != nil {
		return nil, err
	}

	units := make([]*Unit, 0, len(order))
	for _, path := range order {
		pf := files[path]

		headerCompiler := NewCompiler()
		header, err := headerCompiler.CompileHeader(pf.prog, pf.scope, guardFor(path))
		if err != nil {
			return nil, err
		}

		sourceCompiler := NewCompiler()
		source, err := sourceCompiler.CompileProgram(pf.prog, pf.scope, pf.isMain)
		if err != nil {
			return nil, err
		}

		units = append(units, &Unit{Path: path, Header: header, Source: source})
	}
	return units, nil
}

// resolveImportGraph scans, parses, and resolves entryPath, recording
// it and every file it transitively imports — each resolved exactly
// once — keyed by absolute path, plus an order: entryPath first, then
// each import in the order its resolution finished (so a file's own
// imports come before it).
// The entry file's Resolver is wired with files/order so that every
// registerImport call along the way (resolver.go) appends its result
// here instead of this function resolving imports independently.
func resolveImportGraph(entryPath string) (map[string]*parsedFile, []string, error) {
	src, err := os.ReadFile(entryPath)
	if err != nil {
		return nil, nil, NewResolveError("Cannot read "+entryPath+": "+err.Error(), 0, Range{})
	}
	tokens, err := Scan(string(src))
	if err != nil {
		return nil, nil, err
	}
	prog, err := ParseProgram(tokens)
	if err != nil {
		return nil, nil, err
	}

	files := map[string]*parsedFile{}
	order := []string{}

	resolver := NewResolver(filepath.Dir(entryPath))
	resolver.files = files
	resolver.order = &order
	scope, err := resolver.Resolve(prog)
	if err != nil {
		return nil, nil, err
	}

	files[entryPath] = &parsedFile{path: entryPath, prog: prog, scope: scope, isMain: true}
	order = append([]string{entryPath}, order...)

	return files, order, nil
}

func guardFor(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var b strings.Builder
	b.WriteString("DRAGON_")
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	b.WriteString("_H")
	return b.String()
}

// WriteUnits writes every unit's .h/.c pair plus the embedded runtime
// (dragon.h/dragon.c) into dir, ready to hand to a C compiler.
func WriteUnits(units []*Unit, dir string) error {
	header, err := RuntimeHeader()
	if err != nil {
		return err
	}
	source, err := RuntimeSource()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "dragon.h"), []byte(header), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "dragon.c"), []byte(source), 0o644); err != nil {
		return err
	}

	for _, u := range units {
		name := filepath.Base(u.Path)
		if err := os.WriteFile(filepath.Join(dir, withExt(name, ".h")), []byte(u.Header), 0o644); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, withExt(name, ".c")), []byte(u.Source), 0o644); err != nil {
			return err
		}
	}
	return nil
}
