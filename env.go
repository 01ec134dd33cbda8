package dragon

import "fmt"

// VarMeta pairs a binding's mangled C name with its resolved type,
// the value a GetVar/SetVar's meta ultimately carries. Grounded on
// dragon/passes/resolver.py's VarMeta dataclass.
type VarMeta struct {
	CName string
	Type  CType
}

// ModuleScope is an immutable snapshot of an imported unit's globals
// scope, taken right after that unit finishes resolving: only its
// own vars/types, not the shared builtins layer above it. Grounded
// on resolver.py's Module class.
type ModuleScope struct {
	Vars  map[string]VarMeta
	Types map[string]CType
}

func snapshotModule(s *Scope) *ModuleScope {
	vars := make(map[string]VarMeta, len(s.vars))
	for k, v := range s.vars {
		vars[k] = v
	}
	types := make(map[string]CType, len(s.types))
	for k, v := range s.types {
		types[k] = v
	}
	return &ModuleScope{Vars: vars, Types: types}
}

// Scope is one level of the resolver's environment tree: its own
// vars/types/modules maps plus a parent pointer, sharing one
// monotonic fresh-name counter across the whole tree rooted at the
// same compilation unit. Grounded on dragon/passes/resolver.py's
// Environment class.
type Scope struct {
	name    string
	vars    map[string]VarMeta
	types   map[string]CType
	modules map[string]*ModuleScope
	parent  *Scope
	counter *int
}

// NewRootScope builds the root scope seeded with the builtins
// spec.md §4.3.1 names: types int/void/Object/Integer/String/_Array,
// and variables print/exit/is_null/clock/null.
func NewRootScope() *Scope {
	s := &Scope{
		name:    "root",
		vars:    map[string]VarMeta{},
		types:   map[string]CType{},
		modules: map[string]*ModuleScope{},
		counter: new(int),
	}

	s.types["int"] = IntType
	s.types["void"] = VoidType
	s.types["Object"] = ObjectClass
	s.types["Integer"] = IntegerClass
	s.types["String"] = StringClass
	s.types["_Array"] = ArrayClass

	s.NewBuiltinVar("print", NewSingleFuncType([]CType{ObjectClass}, VoidType, "print"), "print")
	s.NewBuiltinVar("exit", NewSingleFuncType([]CType{IntType}, VoidType, "exit"), "exit")
	s.NewBuiltinVar("is_null", NewSingleFuncType([]CType{ObjectClass}, BoolType, "is_null"), "is_null")
	s.NewBuiltinVar("clock", NewSingleFuncType(nil, IntType, "dragon_clock"), "dragon_clock")
	s.NewBuiltinVar("null", NullTypeVal, "NULL")

	return s
}

// Next mints a fresh `name_N` identifier, N drawn from the counter
// shared by the whole scope tree.
func (s *Scope) Next(name string) string {
	n := *s.counter
	*s.counter++
	return fmt.Sprintf("%s_%d", name, n)
}

// NewVar binds name to a freshly minted C name in this scope and
// returns that C name.
func (s *Scope) NewVar(name string, typ CType) string {
	cName := s.Next(name)
	s.vars[name] = VarMeta{CName: cName, Type: typ}
	return cName
}

// NewBuiltinVar binds name directly to cName (no mangling) — used
// only for the fixed builtin symbols seeded at the root.
func (s *Scope) NewBuiltinVar(name string, typ CType, cName string) string {
	s.vars[name] = VarMeta{CName: cName, Type: typ}
	return cName
}

func (s *Scope) NewType(name string, typ CType) {
	s.types[name] = typ
}

// NewScope opens a child scope under s, sharing its counter.
func (s *Scope) NewScope(name string) *Scope {
	return &Scope{
		name:    name,
		vars:    map[string]VarMeta{},
		types:   map[string]CType{},
		modules: map[string]*ModuleScope{},
		parent:  s,
		counter: s.counter,
	}
}

func (s *Scope) GetVar(name string) (VarMeta, bool) {
	if v, ok := s.vars[name]; ok {
		return v, true
	}
	if s.parent != nil {
		return s.parent.GetVar(name)
	}
	return VarMeta{}, false
}

func (s *Scope) GetType(name string) (CType, bool) {
	if t, ok := s.types[name]; ok {
		return t, true
	}
	if s.parent != nil {
		return s.parent.GetType(name)
	}
	return nil, false
}

func (s *Scope) GetModule(name string) (*ModuleScope, bool) {
	if m, ok := s.modules[name]; ok {
		return m, true
	}
	if s.parent != nil {
		return s.parent.GetModule(name)
	}
	return nil, false
}
