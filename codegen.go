package dragon

import (
	"fmt"
	"sort"
	"strings"
)

// Compiler walks a resolved Program and emits C source text directly
// — no intermediate C-AST layer, matching genc.go's own style (it
// writes generated-parser C straight through an outputWriter too,
// with no node tree in between). Grounded end to end on
// original_source/dragon/passes/another_compiler.py's Compiler
// (Visitor), re-expressed as direct text emission instead of porting
// its cgen.* IR-node constructors one for one.
type Compiler struct {
	out      *outputWriter
	mainFunc string
	// classes indexes every resolved *ClassType by name, populated as
	// classes are emitted, so nested/forward attribute types can look
	// up struct layouts while emitting a sibling class.
	classes map[string]*ClassType
}

func NewCompiler() *Compiler {
	return &Compiler{out: newOutputWriter(), classes: map[string]*ClassType{}}
}

// CompileProgram emits one compilation unit's C source, including the
// `dragon.h` runtime include every unit carries and,
// when isMain is true, the `int main(void)` wrapper that calls
// whichever top-level function is named `main`.
func (c *Compiler) CompileProgram(prog *Program, globals *Scope, isMain bool) (string, error) {
	c.out.writel("/* Generated by the Dragon compiler. Do not edit. */")
	c.out.writel("#include \"dragon.h\"")
	c.out.writel("")

	for _, d := range prog.Decls {
		if err := c.genTopLevel(globals, d); err != nil {
			return "", err
		}
	}

	if isMain {
		if c.mainFunc == "" {
			return "", NewCompileError("No main function", prog.Line(), prog.Pos())
		}
		c.out.writel("int main(void) {")
		c.out.indent()
		c.out.writeil(fmt.Sprintf("return (int)%s();", c.mainFunc))
		c.out.unindent()
		c.out.writel("}")
	}

	return c.out.String(), nil
}

func (c *Compiler) genTopLevel(s *Scope, d Node) error {
	switch n := d.(type) {
	case *Import:
		c.out.writeil(fmt.Sprintf("#include %q", importHeaderPath(n.Path)))
		return nil
	case *Class:
		typ, _ := s.GetType(n.Name)
		return c.genClass(n, typ.(*ClassType))
	case *GenericClass:
		for _, impl := range n.Implements {
			typ, _ := s.GetType(impl.Name)
			if err := c.genClass(impl, typ.(*ClassType)); err != nil {
				return err
			}
		}
		return nil
	case *Function:
		return c.genFunction(n)
	case *OverloadedFunction:
		for _, o := range n.Overloads {
			if err := c.genOverload(o); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// CompileHeader emits the .h half of a unit: an include guard, the
// runtime include, one include per import, a full struct definition
// per class (the inlined-parent layout needs the complete type, not
// just a forward declaration), and an extern prototype for every
// symbol another unit can call directly — class constructors and
// top-level functions/overloads. Method bodies live only in the .c
// file; they're reached through struct fields, never an extern
// prototype, mirroring genCall's GetAttr-dispatch rule.
func (c *Compiler) CompileHeader(prog *Program, globals *Scope, guardName string) (string, error) {
	c.out.writeil(fmt.Sprintf("#ifndef %s", guardName))
	c.out.writeil(fmt.Sprintf("#define %s", guardName))
	c.out.writel("#include \"dragon.h\"")
	c.out.writel("")

	for _, d := range prog.Decls {
		if err := c.genTopLevelHeader(globals, d); err != nil {
			return "", err
		}
	}

	c.out.writel("#endif")
	return c.out.String(), nil
}

func (c *Compiler) genTopLevelHeader(s *Scope, d Node) error {
	switch n := d.(type) {
	case *Import:
		c.out.writeil(fmt.Sprintf("#include %q", importHeaderPath(n.Path)))
	case *Class:
		typ, _ := s.GetType(n.Name)
		cls := typ.(*ClassType)
		c.genStructDecl(cls)
		c.genCtorPrototype(n.Constructor, cls)
	case *GenericClass:
		for _, impl := range n.Implements {
			typ, _ := s.GetType(impl.Name)
			cls := typ.(*ClassType)
			c.genStructDecl(cls)
			c.genCtorPrototype(impl.Constructor, cls)
		}
	case *Function:
		cName, _ := n.Meta()["c_name"].(string)
		c.out.writeil(fmt.Sprintf("%s %s(%s);", retCName(n.RetType), cName, cParamDeclList(n.Params)))
	case *OverloadedFunction:
		for _, o := range n.Overloads {
			cName, _ := o.Meta()["c_name"].(string)
			c.out.writeil(fmt.Sprintf("%s %s(%s);", retCName(o.RetType), cName, cParamDeclList(o.Params)))
		}
	}
	return nil
}

func (c *Compiler) genCtorPrototype(ctor *Constructor, cls *ClassType) {
	cName := newSymbol(cls)
	if ctor != nil {
		c.out.writeil(fmt.Sprintf("%s* %s(%s);", cls.Name, cName, cParamDeclList(ctor.Params)))
	} else {
		c.out.writeil(fmt.Sprintf("%s* %s(void);", cls.Name, cName))
	}
}

func importHeaderPath(path string) string {
	trimmed := strings.TrimSuffix(path, ".drgn")
	return trimmed + ".h"
}

// --- Classes ---

// genStructDecl emits the typedef+struct definition only — the part a
// header needs to give other units the complete type (required by the
// inlined-parent-substruct layout, which needs sizeof/offsets known at
// every call site, not just an opaque pointer).
func (c *Compiler) genStructDecl(cls *ClassType) {
	c.out.writeil(fmt.Sprintf("typedef struct %s %s;", cls.Name, cls.Name))
	c.out.writeil(fmt.Sprintf("struct %s {", cls.Name))
	c.out.indent()
	c.out.writeil("BaseObject meta;")
	for _, base := range sortedBases(cls.Bases) {
		c.out.writeil(fmt.Sprintf("struct %s parent_%s;", base.Name, base.Name))
	}
	for _, a := range sortedAttrEntries(ownAttrs(cls)) {
		c.out.writeil(fmt.Sprintf("%s;", cDecl(a.Type, a.Name)))
	}
	for _, name := range sortedMethodNames(cls) {
		mt := cls.Methods[name].(*SingleFuncType)
		c.out.writeil(fmt.Sprintf("%s;", cFuncPtrDecl(mt, name)))
	}
	c.out.unindent()
	c.out.writel("};")
	c.out.writel("")
}

// newSymbol returns the C symbol other units call to construct cls.
func newSymbol(cls *ClassType) string {
	if cName, ok := cls.FuncNames["new"]; ok && cName != "" {
		return cName
	}
	return cls.Name + "_new"
}

// genClass emits, in order: the struct definition (BaseObject header,
// inlined parent sub-structs, attrs, then method-pointer slots),
// new_empty_<C>, new_parent_<C>, a redirect thunk per inherited
// method, the class body's own methods and constructor, a default
// new_<C> when the class declares no constructor, and del_<C>.
// Grounded on another_compiler.py's visit_Class.
func (c *Compiler) genClass(n *Class, cls *ClassType) error {
	c.classes[cls.Name] = cls

	c.genStructDecl(cls)

	c.genNewEmpty(n, cls)
	c.genNewParent(cls)
	c.genRedirects(n, cls)

	for _, m := range n.Methods {
		if err := c.genMethod(m, cls); err != nil {
			return err
		}
	}
	if n.Constructor != nil {
		if err := c.genConstructor(n.Constructor, cls); err != nil {
			return err
		}
	} else {
		c.genDefaultNew(cls)
	}
	c.genDefaultDel(cls)

	return nil
}

func (c *Compiler) genNewEmpty(n *Class, cls *ClassType) {
	fn := "new_empty_" + cls.Name
	c.out.writeil(fmt.Sprintf("%s* %s(void) {", cls.Name, fn))
	c.out.indent()
	c.out.writeil(fmt.Sprintf("%s* obj = (%s*)malloc(sizeof(%s));", cls.Name, cls.Name, cls.Name))
	c.out.writeil("obj->meta.self = obj;")
	c.out.writeil("obj->meta.up = obj;")
	c.out.writeil("obj->meta.ref_count = 0;")
	c.out.writeil("obj->meta.ref_ptr = &(obj->meta.ref_count);")
	c.out.writeil(fmt.Sprintf("obj->meta.del = del_%s;", cls.Name))
	for _, base := range sortedBases(cls.Bases) {
		c.out.writeil(fmt.Sprintf("new_parent_%s(&obj->parent_%s, obj, obj);", base.Name, base.Name))
	}
	for _, a := range sortedAttrEntries(ownAttrs(cls)) {
		c.out.writeil(fmt.Sprintf("obj->%s = %s;", a.Name, defaultOf(a.Type)))
	}
	for _, name := range sortedMethodNames(cls) {
		c.out.writeil(fmt.Sprintf("obj->%s = %s;", name, cls.FuncNames[name]))
	}
	c.out.writeil("return obj;")
	c.out.unindent()
	c.out.writel("}")
	c.out.writel("")
}

// genNewParent emits new_parent_<C>, which stitches the back-pointers
// of an inlined base sub-struct: meta.self to the outermost (most
// derived) object and meta.up to the object that directly contains
// the sub-struct, recursing into each base's own bases. Grounded on another_compiler.py's new_parent function.
func (c *Compiler) genNewParent(cls *ClassType) {
	fn := "new_parent_" + cls.Name
	c.out.writeil(fmt.Sprintf("void %s(%s* parent_ptr, void* child_ptr, void* self_ptr) {", fn, cls.Name))
	c.out.indent()
	c.out.writeil("parent_ptr->meta.self = self_ptr;")
	c.out.writeil("parent_ptr->meta.up = child_ptr;")
	for _, base := range sortedBases(cls.Bases) {
		c.out.writeil(fmt.Sprintf("new_parent_%s(&parent_ptr->parent_%s, parent_ptr, self_ptr);", base.Name, base.Name))
	}
	c.out.unindent()
	c.out.writel("}")
	c.out.writel("")
}

// genRedirects emits one thunk per method inherited-but-not-overridden
// by cls: it casts `self` down to the base sub-struct holding the
// original implementation and forwards the call.
func (c *Compiler) genRedirects(n *Class, cls *ClassType) {
	inherited := map[string]bool{}
	for _, base := range cls.Bases {
		for name := range base.Methods {
			if _, overridden := methodDeclaredOn(n, name); !overridden {
				inherited[name] = true
			}
		}
	}
	for _, name := range sortedStrings(inherited) {
		mt := cls.Methods[name].(*SingleFuncType)
		redirectName := cls.FuncNames[name]
		original := baseFuncName(cls, name)

		c.out.writeil(fmt.Sprintf("%s %s(void* _self%s) {", mt.Ret.CName(), redirectName, cParamList(mt.Params[1:])))
		c.out.indent()
		c.out.writeil(fmt.Sprintf("%s* self = (%s*)_self;", cls.Name, cls.Name))
		path, _ := cls.PathToParent(methodOwner(cls, name))
		castedSelf := "self"
		for i := len(path) - 2; i >= 0; i-- {
			castedSelf = fmt.Sprintf("(&%s->parent_%s)", castedSelf, path[i].Name)
		}
		call := fmt.Sprintf("%s(%s%s)", original, castedSelf, cArgForwardList(mt.Params[1:]))
		if mt.Ret == VoidType {
			c.out.writeil(call + ";")
		} else {
			c.out.writeil("return " + call + ";")
		}
		c.out.unindent()
		c.out.writel("}")
		c.out.writel("")
	}
}

func methodOwner(cls *ClassType, name string) *ClassType {
	for _, base := range cls.Bases {
		if _, ok := base.Methods[name]; ok {
			if _, declaredHere := methodDeclaredOnType(base, name); declaredHere {
				return base
			}
			return methodOwner(base, name)
		}
	}
	return cls
}

func methodDeclaredOnType(cls *ClassType, name string) (string, bool) {
	cName, ok := cls.FuncNames[name]
	return cName, ok && !strings.Contains(cName, "_redirect_")
}

func baseFuncName(cls *ClassType, name string) string {
	owner := methodOwner(cls, name)
	return owner.FuncNames[name]
}

func methodDeclaredOn(n *Class, name string) (*Method, bool) {
	for _, m := range n.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

func (c *Compiler) genDefaultNew(cls *ClassType) {
	cName := cls.FuncNames["new"]
	if cName == "" {
		cName = cls.Name + "_new"
	}
	c.out.writeil(fmt.Sprintf("%s* %s(void) {", cls.Name, cName))
	c.out.indent()
	c.out.writeil(fmt.Sprintf("return new_empty_%s();", cls.Name))
	c.out.unindent()
	c.out.writel("}")
	c.out.writel("")
}

func (c *Compiler) genDefaultDel(cls *ClassType) {
	if _, ok := cls.FuncNames["del"]; ok {
		return
	}
	cName := "del_" + cls.Name
	cls.FuncNames["del"] = cName
	c.out.writeil(fmt.Sprintf("void %s(void* obj) {", cName))
	c.out.indent()
	c.out.writeil("free(obj);")
	c.out.unindent()
	c.out.writel("}")
	c.out.writel("")
}

// --- Methods, constructors, functions ---

func (c *Compiler) genMethod(m *Method, cls *ClassType) error {
	mt := cls.Methods[m.Name].(*SingleFuncType)
	cName, _ := m.Meta()["c_name"].(string)
	if cName == "" {
		cName = cls.FuncNames[m.Name]
	}

	c.out.writeil(fmt.Sprintf("%s %s(void* _self%s) {", mt.Ret.CName(), cName, cParamListNamed(mt.Params[1:], m.Params)))
	c.out.indent()
	c.out.writeil(fmt.Sprintf("%s* self = (%s*)_self;", cls.Name, cls.Name))
	for _, stmt := range m.Body.Stmts {
		if err := c.genStmt(stmt); err != nil {
			return err
		}
	}
	c.out.unindent()
	c.out.writel("}")
	c.out.writel("")
	return nil
}

func (c *Compiler) genConstructor(ctor *Constructor, cls *ClassType) error {
	cName := cls.FuncNames["new"]
	c.out.writeil(fmt.Sprintf("%s* %s(%s) {", cls.Name, cName, cParamDeclList(ctor.Params)))
	c.out.indent()
	c.out.writeil(fmt.Sprintf("%s* self = new_empty_%s();", cls.Name, cls.Name))
	for _, stmt := range ctor.Body.Stmts {
		if err := c.genStmt(stmt); err != nil {
			return err
		}
	}
	c.out.writeil("return self;")
	c.out.unindent()
	c.out.writel("}")
	c.out.writel("")
	return nil
}

func (c *Compiler) genFunction(f *Function) error {
	cName, _ := f.Meta()["c_name"].(string)
	isMain, _ := f.Meta()["is_main"].(bool)
	if isMain {
		c.mainFunc = cName
	}

	c.out.writeil(fmt.Sprintf("%s %s(%s) {", retCName(f.RetType), cName, cParamDeclList(f.Params)))
	c.out.indent()
	for _, stmt := range f.Body.Stmts {
		if err := c.genStmt(stmt); err != nil {
			return err
		}
	}
	c.out.unindent()
	c.out.writel("}")
	c.out.writel("")
	return nil
}

func (c *Compiler) genOverload(o *Overload) error {
	cName, _ := o.Meta()["c_name"].(string)
	c.out.writeil(fmt.Sprintf("%s %s(%s) {", retCName(o.RetType), cName, cParamDeclList(o.Params)))
	c.out.indent()
	for _, stmt := range o.Body.Stmts {
		if err := c.genStmt(stmt); err != nil {
			return err
		}
	}
	c.out.unindent()
	c.out.writel("}")
	c.out.writel("")
	return nil
}

func retCName(ret Node) string {
	if ret == nil {
		return "void"
	}
	if t, ok := ret.Meta()["type"].(CType); ok {
		return t.CName()
	}
	return "void"
}

// --- Statements ---

func (c *Compiler) genStmt(stmt Node) error {
	switch n := stmt.(type) {
	case *Block:
		for _, s := range n.Stmts {
			if err := c.genStmt(s); err != nil {
				return err
			}
		}
		return nil
	case *IfStmt:
		cond, err := c.genExpr(n.Cond)
		if err != nil {
			return err
		}
		c.out.writeil(fmt.Sprintf("if (%s) {", cond))
		c.out.indent()
		if err := c.genStmt(n.Then); err != nil {
			return err
		}
		c.out.unindent()
		if n.Else != nil {
			c.out.writeil("} else {")
			c.out.indent()
			if err := c.genStmt(n.Else); err != nil {
				return err
			}
			c.out.unindent()
		}
		c.out.writeil("}")
		return nil
	case *WhileStmt:
		cond, err := c.genExpr(n.Cond)
		if err != nil {
			return err
		}
		c.out.writeil(fmt.Sprintf("while (%s) {", cond))
		c.out.indent()
		if err := c.genStmt(n.Body); err != nil {
			return err
		}
		c.out.unindent()
		c.out.writeil("}")
		return nil
	case *VarStmt:
		return c.genVarStmt(n)
	case *DeleteStmt:
		return c.genDeleteStmt(n)
	case *ReturnStmt:
		return c.genReturnStmt(n)
	case *ExprStmt:
		e, err := c.genExpr(n.Value)
		if err != nil {
			return err
		}
		c.out.writeil(e + ";")
		return nil
	}
	return NewCompileError("Unsupported statement in codegen", stmt.Line(), stmt.Pos())
}

func (c *Compiler) genVarStmt(n *VarStmt) error {
	declared, _ := n.Meta()["type"].(CType)
	valType, _ := n.Value.Meta()["type"].(CType)
	valExpr, err := c.genExpr(n.Value)
	if err != nil {
		return err
	}
	coerced, err := c.coerce(valExpr, valType, declared, n.Value)
	if err != nil {
		return err
	}
	cName, _ := n.Meta()["c_name"].(string)
	c.out.writeil(fmt.Sprintf("%s = %s;", cDecl(declared, cName), coerced))
	if owns, _ := n.Meta()["owns_ref"].(bool); owns {
		c.out.writeil(fmt.Sprintf("DRGN_INCREF(%s);", cName))
	}
	return nil
}

func (c *Compiler) genDeleteStmt(n *DeleteStmt) error {
	valExpr, err := c.genExpr(n.Value)
	if err != nil {
		return err
	}
	c.out.writeil(fmt.Sprintf("{ BaseObject* _tmp = (%s)->meta.self; _tmp->del(_tmp); }", valExpr))
	return nil
}

// genReturnStmt emits the DRGN_DECREF teardown sequence for every
// class-typed local resolver.go recorded in meta["to_delete"], then
// the return itself. Grounded on another_compiler.py's
// visit_ReturnStmt.
func (c *Compiler) genReturnStmt(n *ReturnStmt) error {
	toDelete, _ := n.Meta()["to_delete"].([]VarMeta)
	for _, v := range toDelete {
		c.out.writeil(fmt.Sprintf("DRGN_DECREF(%s);", v.CName))
	}
	if n.Value == nil {
		c.out.writeil("return;")
		return nil
	}
	e, err := c.genExpr(n.Value)
	if err != nil {
		return err
	}
	c.out.writeil(fmt.Sprintf("return %s;", e))
	return nil
}

// --- Expressions ---

func (c *Compiler) genExpr(expr Node) (string, error) {
	switch n := expr.(type) {
	case *Literal:
		return c.genLiteral(n)
	case *Grouping:
		inner, err := c.genExpr(n.Inner)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case *GetVar:
		cName, _ := n.Meta()["c_name"].(string)
		return cName, nil
	case *SetVar:
		return c.genSetVar(n)
	case *GetAttr:
		return c.genGetAttr(n)
	case *SetAttr:
		return c.genSetAttr(n)
	case *Call:
		return c.genCall(n)
	case *New:
		return c.genNew(n)
	case *Cast:
		return c.genCastExpr(n)
	case *BinOp:
		return c.genBinOp(n)
	case *Unary:
		operand, err := c.genExpr(n.Operand)
		if err != nil {
			return "", err
		}
		return n.Op + operand, nil
	}
	return "", NewCompileError("Unsupported expression in codegen", expr.Line(), expr.Pos())
}

func (c *Compiler) genLiteral(n *Literal) (string, error) {
	switch n.Kind {
	case LiteralNum, LiteralHex:
		v, _ := n.Meta()["value"].(int32)
		return fmt.Sprintf("%d", v), nil
	case LiteralString:
		v, _ := n.Meta()["value"].(string)
		return fmt.Sprintf("_new_String(%q, %d)", v, len(v)), nil
	}
	return "", NewCompileError("Unknown literal kind", n.Line(), n.Pos())
}

func (c *Compiler) genSetVar(n *SetVar) (string, error) {
	declared, _ := n.Meta()["type"].(CType)
	valType, _ := n.Value.Meta()["type"].(CType)
	valExpr, err := c.genExpr(n.Value)
	if err != nil {
		return "", err
	}
	coerced, err := c.coerce(valExpr, valType, declared, n.Value)
	if err != nil {
		return "", err
	}
	cName, _ := n.Meta()["c_name"].(string)
	return fmt.Sprintf("(%s = %s)", cName, coerced), nil
}

func (c *Compiler) genGetAttr(n *GetAttr) (string, error) {
	objExpr, err := c.genExpr(n.Object)
	if err != nil {
		return "", err
	}
	objType, _ := n.Object.Meta()["type"].(CType)
	cls, ok := objType.(*ClassType)
	if !ok {
		return "", NewCompileError("Attribute access on a non-class value", n.Line(), n.Pos())
	}
	path, err := c.pathTo(cls, n.Name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s)->%s%s", objExpr, path, n.Name), nil
}

func (c *Compiler) genSetAttr(n *SetAttr) (string, error) {
	objExpr, err := c.genExpr(n.Object)
	if err != nil {
		return "", err
	}
	objType, _ := n.Object.Meta()["type"].(CType)
	cls, ok := objType.(*ClassType)
	if !ok {
		return "", NewCompileError("Attribute assignment on a non-class value", n.Line(), n.Pos())
	}
	attrType, _ := cls.GetName(n.Name)
	valType, _ := n.Value.Meta()["type"].(CType)
	valExpr, err := c.genExpr(n.Value)
	if err != nil {
		return "", err
	}
	coerced, err := c.coerce(valExpr, valType, attrType, n.Value)
	if err != nil {
		return "", err
	}
	path, err := c.pathTo(cls, n.Name)
	if err != nil {
		return "", err
	}
	lhs := fmt.Sprintf("(%s)->%s%s", objExpr, path, n.Name)
	if IsClass(attrType) {
		return fmt.Sprintf("(%s = drgn_inc_ref(%s))", lhs, coerced), nil
	}
	return fmt.Sprintf("(%s = %s)", lhs, coerced), nil
}

// pathTo returns the `parent_X.parent_Y.` prefix needed to reach the
// struct that physically declares name, walking cls's inlined base
// sub-structs. Empty when cls itself declares name.
func (c *Compiler) pathTo(cls *ClassType, name string) (string, error) {
	if cls.HasName(name) {
		if _, direct := cls.Attrs[name]; direct {
			return "", nil
		}
		if _, direct := cls.Methods[name]; direct {
			if !strings.Contains(cls.FuncNames[name], "_redirect_") {
				return "", nil
			}
		}
	}
	for _, base := range cls.Bases {
		if base.HasName(name) {
			prefix, err := c.pathTo(base, name)
			if err != nil {
				return "", err
			}
			return "parent_" + base.Name + "." + prefix, nil
		}
	}
	return "", nil
}

func (c *Compiler) genCall(n *Call) (string, error) {
	var args []string

	// A GetAttr callee is a method call: the struct's method-pointer
	// field IS the call target, so virtual dispatch (including
	// inherited-redirect thunks) happens through it — it must not be
	// replaced by a resolved static symbol. A GetVar callee naming an
	// overloaded top-level function, by contrast, resolves to a plain
	// source-name binding with no callable C symbol of its own; there
	// the specific overload's c_name (picked at resolve time and
	// stashed on the Call node) is the only thing that can be called.
	// Grounded on another_compiler.py's visit_Call, which always calls
	// through `self.visit(node.callee)` (the struct field for a
	// GetAttr, never a symbol substitution).
	getAttr, isMethodCall := n.Callee.(*GetAttr)

	calleeExpr, err := c.genExpr(n.Callee)
	if err != nil {
		return "", err
	}
	if !isMethodCall {
		if cName, ok := n.Meta()["c_name"].(string); ok && cName != "" {
			calleeExpr = cName
		}
	} else {
		objExpr, err := c.genExpr(getAttr.Object)
		if err != nil {
			return "", err
		}
		args = append(args, fmt.Sprintf("(%s)->meta.self", objExpr))
	}

	expected, _ := n.Meta()["expected_args"].([]CType)
	for i, a := range n.Args {
		aExpr, err := c.genExpr(a)
		if err != nil {
			return "", err
		}
		if i < len(expected) {
			argType, _ := a.Meta()["type"].(CType)
			aExpr, err = c.coerce(aExpr, argType, expected[i], a)
			if err != nil {
				return "", err
			}
		}
		args = append(args, aExpr)
	}

	return fmt.Sprintf("%s(%s)", calleeExpr, strings.Join(args, ", ")), nil
}

func (c *Compiler) genNew(n *New) (string, error) {
	cName, _ := n.Meta()["c_name"].(string)
	expected, _ := n.Meta()["expected_args"].([]CType)
	var args []string
	for i, a := range n.Args {
		aExpr, err := c.genExpr(a)
		if err != nil {
			return "", err
		}
		if i < len(expected) {
			argType, _ := a.Meta()["type"].(CType)
			aExpr, err = c.coerce(aExpr, argType, expected[i], a)
			if err != nil {
				return "", err
			}
		}
		args = append(args, aExpr)
	}
	return fmt.Sprintf("%s(%s)", cName, strings.Join(args, ", ")), nil
}

// genCastExpr implements spec.md §4.4.4: try coercion (an upcast)
// first; when the target is instead a subclass of the held static
// type, fall back to an unchecked downcast through the meta.up
// back-pointer chain.
func (c *Compiler) genCastExpr(n *Cast) (string, error) {
	from, _ := n.Value.Meta()["type"].(CType)
	to, _ := n.Meta()["type"].(CType)
	valExpr, err := c.genExpr(n.Value)
	if err != nil {
		return "", err
	}

	fromClass, fromOK := from.(*ClassType)
	toClass, toOK := to.(*ClassType)
	if fromOK && toOK {
		if path, ok := fromClass.PathToParent(toClass); ok {
			return classUpcastPath(valExpr, path), nil
		}
		if path, ok := toClass.PathToParent(fromClass); ok {
			expr := valExpr
			for i := 1; i < len(path); i++ {
				expr = fmt.Sprintf("((%s*)((%s)->meta.up))", path[i].Name, expr)
			}
			return expr, nil
		}
		return "", NewCompileError("No relationship between cast types", n.Line(), n.Pos())
	}

	return c.coerce(valExpr, from, to, n.Value)
}

func (c *Compiler) genBinOp(n *BinOp) (string, error) {
	left, err := c.genExpr(n.Left)
	if err != nil {
		return "", err
	}
	right, err := c.genExpr(n.Right)
	if err != nil {
		return "", err
	}
	// "//" has no C equivalent operator — emitted literally it would
	// start a line comment, silently truncating the statement — and
	// C's own "/" truncates toward zero rather than flooring, which
	// disagrees with "//" on any mixed-sign operands. Routed through
	// the runtime's drgn_floordiv instead of either.
	if n.Op == "//" {
		return fmt.Sprintf("drgn_floordiv(%s, %s)", left, right), nil
	}
	return fmt.Sprintf("(%s %s %s)", left, n.Op, right), nil
}

// --- Coercion ---

// coerce implements spec.md §4.4.3's coerce(expr, from, to) contract:
// identity; class-to-class via the inlined-parent field-access chain;
// Int boxed into a fresh Integer then, if needed, further upcast;
// anything else is a CompileError. Grounded on another_compiler.py's
// coerce_expr.
func (c *Compiler) coerce(expr string, from, to CType, n Node) (string, error) {
	if from == to {
		return expr, nil
	}

	if fromClass, ok := from.(*ClassType); ok {
		if toClass, ok2 := to.(*ClassType); ok2 {
			path, ok3 := fromClass.PathToParent(toClass)
			if !ok3 {
				return "", NewCompileError(fmt.Sprintf("Cannot coerce %s to %s", from.CName(), to.CName()), n.Line(), n.Pos())
			}
			return classUpcastPath(expr, path), nil
		}
		return "", NewCompileError(fmt.Sprintf("Cannot coerce %s to %s", from.CName(), to.CName()), n.Line(), n.Pos())
	}

	if IsClass(to) {
		if IsInt(from) {
			boxed := fmt.Sprintf("_new_Integer(%s)", expr)
			if to == IntegerClass {
				return boxed, nil
			}
			path, ok := IntegerClass.PathToParent(to.(*ClassType))
			if !ok {
				return "", NewCompileError(fmt.Sprintf("Cannot coerce Int to %s", to.CName()), n.Line(), n.Pos())
			}
			return classUpcastPath(boxed, path), nil
		}
		return "", NewCompileError(fmt.Sprintf("Cannot coerce %s to %s", from.CName(), to.CName()), n.Line(), n.Pos())
	}

	return "", NewCompileError(fmt.Sprintf("Cannot coerce %s to %s", from.CName(), to.CName()), n.Line(), n.Pos())
}

// classUpcastPath walks path (target-first, receiver-last, per
// ClassType.PathToParent's orientation) and builds the address-of
// `.parent_X` chain that reaches the target's inlined sub-struct.
func classUpcastPath(expr string, path []*ClassType) string {
	result := expr
	for i := len(path) - 2; i >= 0; i-- {
		result = fmt.Sprintf("(&(%s)->parent_%s)", result, path[i].Name)
	}
	return result
}

// --- C declaration helpers ---

func cDecl(t CType, name string) string {
	return fmt.Sprintf("%s %s", t.CName(), name)
}

func cFuncPtrDecl(f *SingleFuncType, name string) string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.CName()
	}
	return fmt.Sprintf("%s (*%s)(%s)", f.Ret.CName(), name, strings.Join(params, ", "))
}

func cParamList(params []CType) string {
	var b strings.Builder
	for i, p := range params {
		b.WriteString(fmt.Sprintf(", %s arg_%d", p.CName(), i))
	}
	return b.String()
}

func cArgForwardList(params []CType) string {
	var b strings.Builder
	for i := range params {
		b.WriteString(fmt.Sprintf(", arg_%d", i))
	}
	return b.String()
}

func cParamListNamed(cParams []CType, named []Param) string {
	var b strings.Builder
	for i, p := range cParams {
		name := fmt.Sprintf("arg_%d", i)
		if i < len(named) {
			name = named[i].Name
		}
		b.WriteString(fmt.Sprintf(", %s %s", p.CName(), name))
	}
	return b.String()
}

func cParamDeclList(params []Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		t, _ := p.Type.Meta()["type"].(CType)
		cname := t
		if cname == nil {
			cname = VoidPtrType
		}
		parts[i] = fmt.Sprintf("%s %s", cname.CName(), p.Name)
	}
	return strings.Join(parts, ", ")
}

func defaultOf(t CType) string {
	if IsInt(t) {
		return "0"
	}
	if t == BoolType {
		return "false"
	}
	return "NULL"
}

func sortedBases(bases []*ClassType) []*ClassType {
	out := append([]*ClassType(nil), bases...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ownAttrs returns only cls's directly declared attrs, not its
// ancestors' — an ancestor's attrs live inside that ancestor's inlined
// parent_X sub-struct (struct layout mirrors spec.md §4.4.1's
// "meta, parent subs, own attrs, own method slots" order) and are
// reached through pathTo's parent_X.parent_Y chain, not duplicated
// here. ClassType.AllAttrs, by contrast, is the flattened view some
// other consumer (e.g. a future debugger/printer) might want.
func ownAttrs(cls *ClassType) []AttrEntry {
	out := make([]AttrEntry, 0, len(cls.Attrs))
	for name, t := range cls.Attrs {
		out = append(out, AttrEntry{Name: name, Type: t})
	}
	return out
}

func sortedAttrEntries(attrs []AttrEntry) []AttrEntry {
	out := append([]AttrEntry(nil), attrs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// sortedMethodNames returns cls.Methods' keys sorted. Unlike
// ClassType.AllMethods (which recurses into bases for callers whose
// own Methods table doesn't already include inherited entries), this
// reads cls.Methods directly: registerClass already copies every
// inherited-but-not-overridden method into cls.Methods with a
// redirect-thunk FuncNames entry, so recursing here would double-list
// them and emit duplicate struct fields.
func sortedMethodNames(cls *ClassType) []string {
	names := make([]string, 0, len(cls.Methods))
	for name := range cls.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedStrings(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
