package dragon

// Node is implemented by every source AST type produced by the
// parser. Dispatch is by type switch in each pass (resolver.go,
// codegen.go), mirroring gen_go.go's visit(node AstNode) switch,
// rather than the teacher's full Accept/Visitor interface — this
// AST is closed and small enough that one exhaustive switch per
// pass is simpler than a visitor method per node type.
type Node interface {
	Line() int
	Pos() Range

	// Meta carries resolver-attached annotations (resolved CType,
	// mangled C name, and similar) keyed by name, filled in during
	// the resolve pass and read back during codegen. Grounded on
	// spring_ast.py's Node.meta dict.
	Meta() map[string]any
}

type nodeBase struct {
	line int
	pos  Range
	meta map[string]any
}

func (n *nodeBase) Line() int          { return n.line }
func (n *nodeBase) Pos() Range         { return n.pos }
func (n *nodeBase) Meta() map[string]any {
	if n.meta == nil {
		n.meta = map[string]any{}
	}
	return n.meta
}

func newNodeBase(line int, pos Range) nodeBase {
	return nodeBase{line: line, pos: pos}
}

// --- Types (spec.md §3.2 "Types") ---

// TypeNode is the subset of Node used in type position: Name,
// GetName (module-qualified) and Generic (Name applied to type
// arguments).
type TypeNode interface {
	Node
	isType()
}

type NameType struct {
	nodeBase
	Value string
}

func NewNameType(value string, line int, pos Range) *NameType {
	return &NameType{nodeBase: newNodeBase(line, pos), Value: value}
}
func (*NameType) isType() {}

// GetNameType is a module-qualified type reference, e.g. `mod.Thing`.
type GetNameType struct {
	nodeBase
	Module string
	Value  string
}

func NewGetNameType(module, value string, line int, pos Range) *GetNameType {
	return &GetNameType{nodeBase: newNodeBase(line, pos), Module: module, Value: value}
}
func (*GetNameType) isType() {}

// GenericType is a type constructor applied to type arguments, e.g.
// `List<Int>`. Grounded on spring_ast.py's Generic node.
type GenericType struct {
	nodeBase
	Name Node
	Args []Node
}

func NewGenericType(name Node, args []Node, line int, pos Range) *GenericType {
	return &GenericType{nodeBase: newNodeBase(line, pos), Name: name, Args: args}
}
func (*GenericType) isType() {}

// --- Expressions (spec.md §3.2 "Expressions") ---

type ExprNode interface {
	Node
	isExpr()
}

type BinOp struct {
	nodeBase
	Op    string
	Left  Node
	Right Node
}

func NewBinOp(op string, left, right Node, line int, pos Range) *BinOp {
	return &BinOp{nodeBase: newNodeBase(line, pos), Op: op, Left: left, Right: right}
}
func (*BinOp) isExpr() {}

type Unary struct {
	nodeBase
	Op      string
	Operand Node
}

func NewUnary(op string, operand Node, line int, pos Range) *Unary {
	return &Unary{nodeBase: newNodeBase(line, pos), Op: op, Operand: operand}
}
func (*Unary) isExpr() {}

type Call struct {
	nodeBase
	Callee Node
	Args   []Node
}

func NewCall(callee Node, args []Node, line int, pos Range) *Call {
	return &Call{nodeBase: newNodeBase(line, pos), Callee: callee, Args: args}
}
func (*Call) isExpr() {}

type Cast struct {
	nodeBase
	Value Node
	Type  Node
}

func NewCast(value, typ Node, line int, pos Range) *Cast {
	return &Cast{nodeBase: newNodeBase(line, pos), Value: value, Type: typ}
}
func (*Cast) isExpr() {}

// New is the `new ClassName(args...)` constructor-invocation
// expression (spec.md §3.2). Grounded on spring_ast.py's New node.
type New struct {
	nodeBase
	Type Node
	Args []Node
}

func NewNewExpr(typ Node, args []Node, line int, pos Range) *New {
	return &New{nodeBase: newNodeBase(line, pos), Type: typ, Args: args}
}
func (*New) isExpr() {}

type Grouping struct {
	nodeBase
	Inner Node
}

func NewGrouping(inner Node, line int, pos Range) *Grouping {
	return &Grouping{nodeBase: newNodeBase(line, pos), Inner: inner}
}
func (*Grouping) isExpr() {}

type GetVar struct {
	nodeBase
	Name string
}

func NewGetVar(name string, line int, pos Range) *GetVar {
	return &GetVar{nodeBase: newNodeBase(line, pos), Name: name}
}
func (*GetVar) isExpr() {}

type SetVar struct {
	nodeBase
	Name  string
	Value Node
}

func NewSetVar(name string, value Node, line int, pos Range) *SetVar {
	return &SetVar{nodeBase: newNodeBase(line, pos), Name: name, Value: value}
}
func (*SetVar) isExpr() {}

type GetAttr struct {
	nodeBase
	Object Node
	Name   string
}

func NewGetAttr(object Node, name string, line int, pos Range) *GetAttr {
	return &GetAttr{nodeBase: newNodeBase(line, pos), Object: object, Name: name}
}
func (*GetAttr) isExpr() {}

type SetAttr struct {
	nodeBase
	Object Node
	Name   string
	Value  Node
}

func NewSetAttr(object Node, name string, value Node, line int, pos Range) *SetAttr {
	return &SetAttr{nodeBase: newNodeBase(line, pos), Object: object, Name: name, Value: value}
}
func (*SetAttr) isExpr() {}

// LiteralKind mirrors the three scanner token types a Literal node
// can wrap (spec.md §3.2: `Literal(kind∈{num,hex,str}, raw_text)`).
// `null` is not a literal: it resolves through the builtin
// environment as an ordinary GetVar (spec.md §4.3.1).
type LiteralKind int

const (
	LiteralNum LiteralKind = iota
	LiteralHex
	LiteralString
)

type Literal struct {
	nodeBase
	Kind  LiteralKind
	Value string
}

func NewLiteral(kind LiteralKind, value string, line int, pos Range) *Literal {
	return &Literal{nodeBase: newNodeBase(line, pos), Kind: kind, Value: value}
}
func (*Literal) isExpr() {}

// --- Statements (spec.md §3.2 "Statements") ---

type StmtNode interface {
	Node
	isStmt()
}

type Block struct {
	nodeBase
	Stmts []Node
}

func NewBlock(stmts []Node, line int, pos Range) *Block {
	return &Block{nodeBase: newNodeBase(line, pos), Stmts: stmts}
}
func (*Block) isStmt() {}

type IfStmt struct {
	nodeBase
	Cond Node
	Then Node
	Else Node // nil when no else clause
}

func NewIfStmt(cond, then, els Node, line int, pos Range) *IfStmt {
	return &IfStmt{nodeBase: newNodeBase(line, pos), Cond: cond, Then: then, Else: els}
}
func (*IfStmt) isStmt() {}

type WhileStmt struct {
	nodeBase
	Cond Node
	Body Node
}

func NewWhileStmt(cond, body Node, line int, pos Range) *WhileStmt {
	return &WhileStmt{nodeBase: newNodeBase(line, pos), Cond: cond, Body: body}
}
func (*WhileStmt) isStmt() {}

type VarStmt struct {
	nodeBase
	Name  string
	Type  Node // nil when the type is inferred from Value
	Value Node
}

func NewVarStmt(name string, typ, value Node, line int, pos Range) *VarStmt {
	return &VarStmt{nodeBase: newNodeBase(line, pos), Name: name, Type: typ, Value: value}
}
func (*VarStmt) isStmt() {}

// DeleteStmt is the explicit `del expr` statement (spec.md §3.2, the
// reference-counted object model's only manual release point).
type DeleteStmt struct {
	nodeBase
	Value Node
}

func NewDeleteStmt(value Node, line int, pos Range) *DeleteStmt {
	return &DeleteStmt{nodeBase: newNodeBase(line, pos), Value: value}
}
func (*DeleteStmt) isStmt() {}

type ReturnStmt struct {
	nodeBase
	Value Node // nil for a bare `return`
}

func NewReturnStmt(value Node, line int, pos Range) *ReturnStmt {
	return &ReturnStmt{nodeBase: newNodeBase(line, pos), Value: value}
}
func (*ReturnStmt) isStmt() {}

type ExprStmt struct {
	nodeBase
	Value Node
}

func NewExprStmt(value Node, line int, pos Range) *ExprStmt {
	return &ExprStmt{nodeBase: newNodeBase(line, pos), Value: value}
}
func (*ExprStmt) isStmt() {}

// --- Class body (spec.md §3.2 "Class body") ---

type Attr struct {
	nodeBase
	Name    string
	Type    Node
	Default Node // nil when unset; the resolver and codegen never read it, so new_empty_<C> always assigns the type's zero value
}

func NewAttr(name string, typ, def Node, line int, pos Range) *Attr {
	return &Attr{nodeBase: newNodeBase(line, pos), Name: name, Type: typ, Default: def}
}

type Param struct {
	Name string
	Type Node
}

type Method struct {
	nodeBase
	Name    string
	Params  []Param
	RetType Node // nil for a void method
	Body    *Block
}

func NewMethod(name string, params []Param, ret Node, body *Block, line int, pos Range) *Method {
	return &Method{nodeBase: newNodeBase(line, pos), Name: name, Params: params, RetType: ret, Body: body}
}

type Constructor struct {
	nodeBase
	Params []Param
	Body   *Block
}

func NewConstructor(params []Param, body *Block, line int, pos Range) *Constructor {
	return &Constructor{nodeBase: newNodeBase(line, pos), Params: params, Body: body}
}

// --- Top level (spec.md §3.2 "Top level") ---

type TopLevel interface {
	Node
	isTopLevel()
}

type Function struct {
	nodeBase
	Name    string
	Params  []Param
	RetType Node
	Body    *Block
}

func NewFunction(name string, params []Param, ret Node, body *Block, line int, pos Range) *Function {
	return &Function{nodeBase: newNodeBase(line, pos), Name: name, Params: params, RetType: ret, Body: body}
}
func (*Function) isTopLevel() {}

type Class struct {
	nodeBase
	Name        string
	Bases       []Node
	Attrs       []*Attr
	Methods     []*Method
	Constructor *Constructor // nil when the class declares no explicit constructor
}

func NewClass(name string, bases []Node, attrs []*Attr, methods []*Method, ctor *Constructor, line int, pos Range) *Class {
	return &Class{nodeBase: newNodeBase(line, pos), Name: name, Bases: bases, Attrs: attrs, Methods: methods, Constructor: ctor}
}
func (*Class) isTopLevel() {}

// GenericClass is a class declaration parameterized by type
// variables, e.g. `class Box<T>`. Each distinct instantiation is
// monomorphized by the resolver into a synthesized *Class appended
// to Implements. Grounded on dragon/passes/resolver.py's visit_Generic.
type GenericClass struct {
	nodeBase
	Name       string
	TypeVars   []string
	Bases      []Node
	Attrs      []*Attr
	Methods    []*Method
	Constructor *Constructor

	// Implements accumulates the monomorphized *Class instances
	// synthesized for each distinct argument-type tuple this generic
	// is applied with. Populated by the resolver, read by codegen.
	Implements []*Class
}

func NewGenericClass(name string, typeVars []string, bases []Node, attrs []*Attr, methods []*Method, ctor *Constructor, line int, pos Range) *GenericClass {
	return &GenericClass{
		nodeBase: newNodeBase(line, pos), Name: name, TypeVars: typeVars,
		Bases: bases, Attrs: attrs, Methods: methods, Constructor: ctor,
	}
}
func (*GenericClass) isTopLevel() {}

// Overload is one arity/type-tuple variant of an overloaded
// top-level function declared with the same name more than once.
type Overload struct {
	nodeBase
	Params  []Param
	RetType Node
	Body    *Block
}

func NewOverload(params []Param, ret Node, body *Block, line int, pos Range) *Overload {
	return &Overload{nodeBase: newNodeBase(line, pos), Params: params, RetType: ret, Body: body}
}

// OverloadedFunction groups every Overload sharing one top-level
// name. Synthesized by the parser when it sees a second `def` with a
// name already declared in the current unit (spec.md §4.2.3).
type OverloadedFunction struct {
	nodeBase
	Name      string
	Overloads []*Overload
}

func NewOverloadedFunction(name string, line int, pos Range) *OverloadedFunction {
	return &OverloadedFunction{nodeBase: newNodeBase(line, pos), Name: name}
}
func (*OverloadedFunction) isTopLevel() {}

type Import struct {
	nodeBase
	Path string
}

func NewImport(path string, line int, pos Range) *Import {
	return &Import{nodeBase: newNodeBase(line, pos), Path: path}
}
func (*Import) isTopLevel() {}

// Program is the parser's top-level output: an ordered sequence of
// TopLevel declarations for one compilation unit.
type Program struct {
	nodeBase
	Decls []Node
}

func NewProgram(decls []Node, line int, pos Range) *Program {
	return &Program{nodeBase: newNodeBase(line, pos), Decls: decls}
}
