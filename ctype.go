package dragon

import "fmt"

// CType is the closed set of C-level semantic types the resolver
// assigns to every typed AST node: primitives, class types (single
// and generic), and function types (single and overloaded).
// Grounded on spring_cgen.py's Type hierarchy.
type CType interface {
	CName() string
	isCType()
}

type primitiveType struct{ name, cName string }

func (p *primitiveType) CName() string { return p.cName }
func (*primitiveType) isCType()        {}
func (p *primitiveType) String() string { return p.name }

// Primitive types seeded into every resolver's root scope, grounded
// on spring_cgen.py's module-level Int/Void/VoidPtr/CInt/Bool/NullType.
var (
	IntType     = &primitiveType{name: "Int", cName: "int32_t"}
	BoolType    = &primitiveType{name: "Bool", cName: "bool"}
	VoidType    = &primitiveType{name: "Void", cName: "void"}
	VoidPtrType = &primitiveType{name: "VoidPtr", cName: "void*"}
	CIntType    = &primitiveType{name: "CInt", cName: "int"}
	NullTypeVal = &primitiveType{name: "NullType", cName: "int"}
	StringType  = &primitiveType{name: "StringType", cName: "const char*"}
)

// ClassType is the semantic type of a (possibly generic-instantiated)
// class: its C struct name, its base classes (for multiple
// inheritance and parent-pointer chasing), and three name tables —
// attrs, methods, and other (constructor/destructor/etc.) — each
// mapping a source name to its CType, plus funcNames mapping every
// one of those names to the C function/field name that implements
// it. Grounded field-for-field on spring_cgen.py's ClassType.
type ClassType struct {
	Name  string
	Bases []*ClassType

	Attrs   map[string]CType
	Methods map[string]CType
	Other   map[string]CType

	// FuncNames maps a method/other name to the C symbol that
	// implements it — distinct from Methods/Other, which map to the
	// *type* of the call. Separated because a class only overrides
	// entries here, never the type, when it inherits a method
	// unchanged.
	FuncNames map[string]string
}

func NewClassType(name string, bases []*ClassType) *ClassType {
	return &ClassType{
		Name: name, Bases: bases,
		Attrs: map[string]CType{}, Methods: map[string]CType{},
		Other: map[string]CType{}, FuncNames: map[string]string{},
	}
}

func (c *ClassType) CName() string { return "struct " + c.Name + "*" }
func (*ClassType) isCType()        {}

// HasName reports whether name is an attr, method, or other entry of
// c or any of its bases.
func (c *ClassType) HasName(name string) bool {
	if _, ok := c.Attrs[name]; ok {
		return true
	}
	if _, ok := c.Methods[name]; ok {
		return true
	}
	if _, ok := c.Other[name]; ok {
		return true
	}
	for _, base := range c.Bases {
		if base.HasName(name) {
			return true
		}
	}
	return false
}

// GetName returns the type of attribute/method name on c or an
// inherited base, walking bases depth-first like spring_cgen.py's
// ClassType.get_name.
func (c *ClassType) GetName(name string) (CType, bool) {
	if t, ok := c.Attrs[name]; ok {
		return t, true
	}
	if t, ok := c.Methods[name]; ok {
		return t, true
	}
	for _, base := range c.Bases {
		if t, ok := base.GetName(name); ok {
			return t, true
		}
	}
	return nil, false
}

// GetFuncName returns the C symbol implementing name on c or an
// inherited base.
func (c *ClassType) GetFuncName(name string) (string, bool) {
	if n, ok := c.FuncNames[name]; ok {
		return n, true
	}
	for _, base := range c.Bases {
		if n, ok := base.GetFuncName(name); ok {
			return n, true
		}
	}
	return "", false
}

// PathToParent returns the chain of ClassTypes from typ to c (typ
// first, c last), the sequence of `parent_X` hops codegen must emit to
// reach an ancestor's storage. Grounded on
// spring_cgen.py's ClassType.path_to_parent.
func (c *ClassType) PathToParent(typ *ClassType) ([]*ClassType, bool) {
	if typ == c {
		return []*ClassType{c}, true
	}
	for _, base := range c.Bases {
		if path, ok := base.PathToParent(typ); ok {
			return append(path, c), true
		}
	}
	return nil, false
}

// AllAttrs yields every (name, type) pair of c and its bases, most
// derived first. Struct layout in codegen uses ownAttrs instead.
func (c *ClassType) AllAttrs() []AttrEntry {
	var out []AttrEntry
	for name, t := range c.Attrs {
		out = append(out, AttrEntry{Name: name, Type: t})
	}
	for _, base := range c.Bases {
		out = append(out, base.AllAttrs()...)
	}
	return out
}

type AttrEntry struct {
	Name string
	Type CType
}

// AllMethods yields every method name reachable on c, most derived
// first, including inherited ones.
func (c *ClassType) AllMethods() []string {
	var out []string
	for name := range c.Methods {
		out = append(out, name)
	}
	for _, base := range c.Bases {
		out = append(out, base.AllMethods()...)
	}
	return out
}

func (c *ClassType) String() string { return fmt.Sprintf("ClassType(%s)", c.Name) }

// GenericClassType is the semantic type of an unapplied generic
// class declaration (e.g. `class Box<T>`); Instantiations caches the
// *ClassType monomorphized for each distinct tuple of type-argument C
// names seen so far, keyed the way the resolver mints generic
// instance names. Grounded on spring_cgen.py's GenericClassType.
type GenericClassType struct {
	Name     string
	TypeVars []string
	Node     *GenericClass

	// DefScope is the scope the generic was declared in — resolveGeneric
	// opens each instantiation's type-variable scope as a child of this,
	// never of the call site, so a generic can't accidentally see
	// call-site locals (spec.md §4.3.4; resolver.py's `type.scope`).
	DefScope *Scope

	Instantiations map[string]*ClassType
}

func NewGenericClassType(name string, typeVars []string, node *GenericClass, defScope *Scope) *GenericClassType {
	return &GenericClassType{Name: name, TypeVars: typeVars, Node: node, DefScope: defScope, Instantiations: map[string]*ClassType{}}
}

func (g *GenericClassType) CName() string { return "struct " + g.Name + "*" }
func (*GenericClassType) isCType()        {}

// SingleFuncType is the type of a non-overloaded function: an
// ordered parameter-type list, a return type, and the C symbol that
// implements it. Grounded on spring_cgen.py's SingleFuncType.
type SingleFuncType struct {
	Params []CType
	Ret    CType
	CFunc  string
}

func NewSingleFuncType(params []CType, ret CType, cFunc string) *SingleFuncType {
	return &SingleFuncType{Params: params, Ret: ret, CFunc: cFunc}
}

func (f *SingleFuncType) CName() string { return f.CFunc }
func (*SingleFuncType) isCType()        {}

// RetFor always returns Ret: a non-overloaded function's return type
// doesn't depend on the call's argument types (spec.md has the
// resolver coerce each argument expression to the declared parameter
// type at the call site instead). Grounded on spring_cgen.py's
// SingleFuncType.ret_for, which likewise ignores args.
func (f *SingleFuncType) RetFor(args []CType) (CType, bool) {
	return f.Ret, true
}

// overloadEntry is one (param-type tuple, return type) -> C symbol
// mapping inside an OverloadedFuncType, kept in declaration order so
// that `overloads[0]`/`overloads[1]` line up with the `_0`/`_1`
// suffixes the resolver assigns (spec.md §4.3.4 example).
type overloadEntry struct {
	Params []CType
	Ret    CType
	CFunc  string
}

// OverloadedFuncType groups every overload sharing one source name,
// selecting by exact argument-type-tuple match first and by
// assignability second (see find). Grounded on
// spring_cgen.py's OverloadedFuncType (there backed by an ordered
// MutableDict; here a plain ordered slice, since Go has no ordered
// map and the resolver only ever appends).
type OverloadedFuncType struct {
	Overloads []overloadEntry
}

func NewOverloadedFuncType() *OverloadedFuncType {
	return &OverloadedFuncType{}
}

func (o *OverloadedFuncType) Add(params []CType, ret CType, cFunc string) {
	o.Overloads = append(o.Overloads, overloadEntry{Params: params, Ret: ret, CFunc: cFunc})
}

func (o *OverloadedFuncType) CName() string { return "" }
func (*OverloadedFuncType) isCType()        {}

// find selects the overload matching args: an exact type-tuple match
// wins first (spec.md §3.3's "exact structural equality"); failing
// that, the first overload every argument is assignable to (spec.md
// §8.2's round-trip law: a String argument with no `f(String)`
// overload selects `f(Object)` via upcast coercion) wins. No match
// is a ResolveError at the call site.
func (o *OverloadedFuncType) find(args []CType) (overloadEntry, bool) {
	for _, entry := range o.Overloads {
		if typeTupleEqual(entry.Params, args) {
			return entry, true
		}
	}
	for _, entry := range o.Overloads {
		if assignableTuple(args, entry.Params) {
			return entry, true
		}
	}
	return overloadEntry{}, false
}

// assignableTuple reports whether every type in froms can be passed
// where the corresponding type in tos is expected.
func assignableTuple(froms, tos []CType) bool {
	if len(froms) != len(tos) {
		return false
	}
	for i := range froms {
		if !Assignable(froms[i], tos[i]) {
			return false
		}
	}
	return true
}

// Assignable reports whether a value of type from can be coerced to
// type to: identical types always; an Int boxes to Integer (and from
// there upcasts); a class type upcasts to any of its ancestors.
// Grounded on another_compiler.py's coerce_expr, which performs
// exactly these three coercions at codegen time.
func Assignable(from, to CType) bool {
	if from == to {
		return true
	}
	if from == IntType {
		from = IntegerClass
	}
	fromClass, fromOK := from.(*ClassType)
	toClass, toOK := to.(*ClassType)
	if fromOK && toOK {
		_, ok := fromClass.PathToParent(toClass)
		return ok
	}
	return false
}

// RetFor returns the return type of the overload find selects for
// args, reporting false (a ResolveError at the call site) when none
// matches.
func (o *OverloadedFuncType) RetFor(args []CType) (CType, bool) {
	e, ok := o.find(args)
	if !ok {
		return nil, false
	}
	return e.Ret, true
}

// CNameFor returns the C symbol of the overload matching args.
func (o *OverloadedFuncType) CNameFor(args []CType) (string, bool) {
	e, ok := o.find(args)
	if !ok {
		return "", false
	}
	return e.CFunc, true
}

// ParamsFor returns the declared parameter types of the overload
// matching args — the codegen needs these (not args' own types) to
// coerce each call argument to its declared slot, the same way a
// SingleFuncType call coerces to f.Params.
func (o *OverloadedFuncType) ParamsFor(args []CType) ([]CType, bool) {
	e, ok := o.find(args)
	if !ok {
		return nil, false
	}
	return e.Params, true
}

// typeTupleEqual is exact-match overload/call-site selection (spec.md
// §3.3, §4.3.3): every parameter type must be identical, no implicit
// widening or null-wildcard here. (Null's special-cased equality with
// any class type is a BinOp comparison rule, handled in
// resolver.go's resolveBinOp, not an overload-matching rule.)
func typeTupleEqual(a, b []CType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IsClass reports whether t is a concrete class type.
func IsClass(t CType) bool {
	_, ok := t.(*ClassType)
	return ok
}

// IsInt reports whether t is the Int primitive, the only type
// BinOp's arithmetic operators accept (spec.md §4.3.5).
func IsInt(t CType) bool { return t == IntType }

// IsVoid reports whether t is the Void primitive.
func IsVoid(t CType) bool { return t == VoidType }

// Builtin classes and their seeded methods, grounded verbatim on
// spring_cgen.py's module-level Object/Integer/String/C_Array
// construction (including the exact method/func-name entries).
var (
	ObjectClass  = NewClassType("Object", nil)
	IntegerClass = NewClassType("Integer", []*ClassType{ObjectClass})
	StringClass  = NewClassType("String", []*ClassType{ObjectClass})
	ArrayClass   = NewClassType("_Array", []*ClassType{ObjectClass})
)

func init() {
	ObjectClass.Methods["to_string"] = NewSingleFuncType([]CType{ObjectClass}, StringClass, "Object_to_string")
	ObjectClass.FuncNames["to_string"] = "Object_to_string"

	StringClass.Methods["get_item"] = NewSingleFuncType([]CType{StringClass, IntType}, StringClass, "String_get_item")
	StringClass.FuncNames["get_item"] = "String_get_item"

	ArrayClass.Methods["get_item"] = NewSingleFuncType([]CType{ArrayClass, IntType}, ObjectClass, "_Array_get_item")
	ArrayClass.Methods["set_item"] = NewSingleFuncType([]CType{ArrayClass, IntType, ObjectClass}, VoidType, "_Array_set_item")
	ArrayClass.Other["new"] = NewSingleFuncType([]CType{IntType}, ArrayClass, "new")
	ArrayClass.FuncNames["get_item"] = "_Array_get_item"
	ArrayClass.FuncNames["set_item"] = "_Array_set_item"
	ArrayClass.FuncNames["new"] = "new__Array"
}
