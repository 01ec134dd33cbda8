package dragon

import "fmt"

// Stream is an immutable view over a token slice plus the symbol
// bindings live while expanding a macro replacement. Advance never
// mutates the receiver; it returns a new Stream positioned one token
// further along, so a caller still holds the Stream it started from
// after a production returns.
//
// Grounded on dragon/passes/parser.py's Stream class.
type Stream struct {
	tokens  []Token
	symbols macroSymbols
}

// NewStream builds a Stream over tokens with no macro symbols bound,
// the state a fresh parse starts from.
func NewStream(tokens []Token) Stream {
	return Stream{tokens: tokens, symbols: newMacroSymbols()}
}

// Current returns the token at the head of the stream, or a sentinel
// EOF token once exhausted.
func (s Stream) Current() Token {
	if len(s.tokens) == 0 {
		return eofToken
	}
	return s.tokens[0]
}

// Advance returns a Stream missing the head token, and that token.
func (s Stream) Advance() (Stream, Token, error) {
	if len(s.tokens) == 0 {
		return s, eofToken, nil
	}
	return Stream{tokens: s.tokens[1:], symbols: s.symbols}, s.tokens[0], nil
}

// Expect advances past the current token if its type matches typ,
// else returns a ParseError.
func (s Stream) Expect(typ string) (Stream, Token, error) {
	if s.Current().Type != typ {
		return s, Token{}, s.Errorf("Expected a %q token, got a %q token instead", typ, s.Current().Type)
	}
	return s.Advance()
}

func (s Stream) IsEmpty() bool { return len(s.tokens) == 0 }

// Errorf builds a ParseError positioned at the stream's current
// token.
func (s Stream) Errorf(format string, args ...any) error {
	cur := s.Current()
	return NewParseError(fmt.Sprintf(format, args...), cur.Line, cur.Pos)
}

// Parser holds the macros declared so far in the current
// compilation unit; parsing methods are value receivers over Stream
// so every production threads Stream by return value, matching the
// original's free-function style translated into methods.
//
// Grounded on dragon/passes/parser.py's Parser class.
type Parser struct {
	macros *macroRegistry
}

func NewParser() *Parser {
	return &Parser{macros: newMacroRegistry()}
}

// ParseProgram parses an entire compilation unit: spec.md §4.2.1.
//
// The grammar lists `overload_group` as a top_level alternative
// without a dedicated production (unlike class/import/function,
// which get one): a function declaration is just a `function`, and
// becomes part of an overload group only in relation to earlier
// declarations sharing its name. So grouping happens here, as a
// post-parse fold over all top levels by name, rather than inside
// parseFunction itself.
func ParseProgram(tokens []Token) (*Program, error) {
	p := NewParser()
	s := NewStream(tokens)

	var decls []Node
	byName := map[string]*OverloadedFunction{}

	for !s.IsEmpty() {
		var (
			decl Node
			err  error
		)
		s, decl, err = p.parseTopLevel(s)
		if err != nil {
			return nil, err
		}
		if decl == nil {
			continue
		}

		fn, isFunc := decl.(*Function)
		if !isFunc {
			decls = append(decls, decl)
			continue
		}

		if group, seen := byName[fn.Name]; seen {
			group.Overloads = append(group.Overloads, NewOverload(fn.Params, fn.RetType, fn.Body, fn.Line(), fn.Pos()))
			continue
		}

		group := NewOverloadedFunction(fn.Name, fn.Line(), fn.Pos())
		group.Overloads = append(group.Overloads, NewOverload(fn.Params, fn.RetType, fn.Body, fn.Line(), fn.Pos()))
		byName[fn.Name] = group
		decls = append(decls, group)
	}

	// Functions declared exactly once stay as single-overload groups
	// in byName but must appear to the rest of the compiler as plain
	// Functions: unwrap here so the resolver only deals with a real
	// OverloadedFunction when there is more than one overload.
	for i, d := range decls {
		if group, ok := d.(*OverloadedFunction); ok && len(group.Overloads) == 1 {
			o := group.Overloads[0]
			decls[i] = NewFunction(group.Name, o.Params, o.RetType, o.Body, o.Line(), o.Pos())
		}
	}

	return NewProgram(decls, 0, NewRange(0, 0)), nil
}

func (p *Parser) parseTopLevel(s Stream) (Stream, Node, error) {
	switch s.Current().Type {
	case "class":
		return p.parseClass(s)
	case "def":
		return p.parseFunction(s)
	case "macro":
		s2, err := p.parseMacroDecl(s)
		return s2, nil, err
	case "import":
		return p.parseImport(s)
	default:
		return s, nil, s.Errorf("Cannot parse a top level statement from a %q token", s.Current().Type)
	}
}

func (p *Parser) parseImport(s Stream) (Stream, Node, error) {
	line, pos := s.Current().Line, s.Current().Pos
	var err error
	s, _, err = s.Expect("import")
	if err != nil {
		return s, nil, err
	}
	var file Token
	s, file, err = s.Expect("str")
	if err != nil {
		return s, nil, err
	}
	path := file.Text
	if len(path) >= 2 {
		path = path[1 : len(path)-1]
	}
	return s, NewImport(path, line, pos), nil
}

// parseMacroDecl parses one `#macro $( HEAD pattern )$ => place : $(
// replacement )$ #endmacro` declaration and registers it; it yields
// no AST node, matching spec.md §4.2.2.
func (p *Parser) parseMacroDecl(s Stream) (Stream, error) {
	var err error
	if s, _, err = s.Expect("macro"); err != nil {
		return s, err
	}

	var call []Token
	if s, _, err = s.Expect("$("); err != nil {
		return s, err
	}
	var start Token
	if s, start, err = s.Expect("ident"); err != nil {
		return s, err
	}
	call = append(call, start)
	for s.Current().Type != ")$" {
		if s.IsEmpty() {
			return s, s.Errorf("Unterminated macro declaration")
		}
		var tok Token
		s, tok, err = s.Advance()
		if err != nil {
			return s, err
		}
		call = append(call, tok)
	}
	if s, _, err = s.Expect(")$"); err != nil {
		return s, err
	}

	if s, _, err = s.Expect("=>"); err != nil {
		return s, err
	}
	var placeTok Token
	if s, placeTok, err = s.Expect("ident"); err != nil {
		return s, err
	}
	place := placeTok.Text
	if place != "stmt" && place != "expr" {
		return s, NewParseError("Macro place must be 'stmt' or 'expr', not "+place, placeTok.Line, placeTok.Pos)
	}
	if s, _, err = s.Expect(":"); err != nil {
		return s, err
	}

	var replace []Token
	if s, _, err = s.Expect("$("); err != nil {
		return s, err
	}
	for s.Current().Type != ")$" {
		if s.IsEmpty() {
			return s, s.Errorf("Unterminated macro replacement")
		}
		var tok Token
		s, tok, err = s.Advance()
		if err != nil {
			return s, err
		}
		replace = append(replace, tok)
	}
	if s, _, err = s.Expect(")$"); err != nil {
		return s, err
	}

	p.macros.register(place, &macro{start: start.Text, call: call, replace: replace})

	if s, _, err = s.Expect("endmacro"); err != nil {
		return s, err
	}
	return s, nil
}

// parameter parses one `name: type` parameter declaration, shared by
// functions, methods, and constructors.
func (p *Parser) parseParameter(s Stream) (Stream, Param, error) {
	var err error
	var nameTok Token
	if s, nameTok, err = s.Expect("ident"); err != nil {
		return s, Param{}, err
	}
	if s, _, err = s.Expect(":"); err != nil {
		return s, Param{}, err
	}
	var typ Node
	s, typ, err = p.parseType(s)
	if err != nil {
		return s, Param{}, err
	}
	return s, Param{Name: nameTok.Text, Type: typ}, nil
}

// arguments parses `start each (, each)* end`, e.g. a parenthesized
// call/parameter/type-argument list.
func (p *Parser) arguments(s Stream, start string, each func(Stream) (Stream, Node, error), end string) (Stream, []Node, error) {
	var args []Node
	var err error
	if s, _, err = s.Expect(start); err != nil {
		return s, nil, err
	}
	if s.Current().Type != end {
		for {
			var arg Node
			s, arg, err = each(s)
			if err != nil {
				return s, nil, err
			}
			args = append(args, arg)
			if s.Current().Type == "," {
				if s, _, err = s.Advance(); err != nil {
					return s, nil, err
				}
			} else {
				break
			}
		}
	}
	if s, _, err = s.Expect(end); err != nil {
		return s, nil, err
	}
	return s, args, nil
}

func (p *Parser) parseParams(s Stream) (Stream, []Param, error) {
	var err error
	var params []Param
	if s, _, err = s.Expect("("); err != nil {
		return s, nil, err
	}
	if s.Current().Type != ")" {
		for {
			var param Param
			s, param, err = p.parseParameter(s)
			if err != nil {
				return s, nil, err
			}
			params = append(params, param)
			if s.Current().Type == "," {
				if s, _, err = s.Advance(); err != nil {
					return s, nil, err
				}
			} else {
				break
			}
		}
	}
	if s, _, err = s.Expect(")"); err != nil {
		return s, nil, err
	}
	return s, params, nil
}

func (p *Parser) parseOptionalReturnType(s Stream) (Stream, Node, error) {
	if s.Current().Type != "->" {
		return s, nil, nil
	}
	var err error
	if s, _, err = s.Expect("->"); err != nil {
		return s, nil, err
	}
	return p.parseType(s)
}

func (p *Parser) parseBlockStmts(s Stream) (Stream, []Node, error) {
	var err error
	if s, _, err = s.Expect("{"); err != nil {
		return s, nil, err
	}
	var body []Node
	for s.Current().Type != "}" {
		if s.IsEmpty() {
			return s, nil, s.Errorf("Unterminated block")
		}
		var stmt Node
		s, stmt, err = p.parseStmt(s)
		if err != nil {
			return s, nil, err
		}
		body = append(body, stmt)
	}
	if s, _, err = s.Expect("}"); err != nil {
		return s, nil, err
	}
	return s, body, nil
}

func (p *Parser) parseFunction(s Stream) (Stream, Node, error) {
	line, pos := s.Current().Line, s.Current().Pos
	var err error
	if s, _, err = s.Expect("def"); err != nil {
		return s, nil, err
	}
	var name Token
	if s, name, err = s.Expect("ident"); err != nil {
		return s, nil, err
	}
	var params []Param
	s, params, err = p.parseParams(s)
	if err != nil {
		return s, nil, err
	}
	var ret Node
	s, ret, err = p.parseOptionalReturnType(s)
	if err != nil {
		return s, nil, err
	}
	var body []Node
	s, body, err = p.parseBlockStmts(s)
	if err != nil {
		return s, nil, err
	}
	return s, NewFunction(name.Text, params, ret, NewBlock(body, line, pos), line, pos), nil
}

func (p *Parser) parseClass(s Stream) (Stream, Node, error) {
	line, pos := s.Current().Line, s.Current().Pos
	var err error
	if s, _, err = s.Expect("class"); err != nil {
		return s, nil, err
	}
	var nameTok Token
	if s, nameTok, err = s.Expect("ident"); err != nil {
		return s, nil, err
	}
	name := nameTok.Text

	var typeVars []string
	if s.Current().Type == "<" {
		var args []Node
		s, args, err = p.arguments(s, "<", p.parseName, ">")
		if err != nil {
			return s, nil, err
		}
		for _, a := range args {
			typeVars = append(typeVars, a.(*NameType).Value)
		}
	}

	var bases []Node
	if s.Current().Type == "(" {
		s, bases, err = p.arguments(s, "(", p.parseType, ")")
		if err != nil {
			return s, nil, err
		}
	}

	var attrs []*Attr
	var methods []*Method
	var ctor *Constructor

	if s, _, err = s.Expect("{"); err != nil {
		return s, nil, err
	}
	for s.Current().Type != "}" {
		if s.IsEmpty() {
			return s, nil, s.Errorf("Unterminated class body")
		}
		switch s.Current().Type {
		case "attr":
			var a *Attr
			s, a, err = p.parseAttr(s)
			if err != nil {
				return s, nil, err
			}
			attrs = append(attrs, a)
		case "method":
			var m *Method
			s, m, err = p.parseMethod(s)
			if err != nil {
				return s, nil, err
			}
			methods = append(methods, m)
		case "new":
			s, ctor, err = p.parseConstructor(s)
			if err != nil {
				return s, nil, err
			}
		default:
			return s, nil, s.Errorf("Class body must contain only attrs, methods, and constructors")
		}
	}
	if s, _, err = s.Expect("}"); err != nil {
		return s, nil, err
	}

	if len(typeVars) > 0 {
		return s, NewGenericClass(name, typeVars, bases, attrs, methods, ctor, line, pos), nil
	}
	return s, NewClass(name, bases, attrs, methods, ctor, line, pos), nil
}

func (p *Parser) parseAttr(s Stream) (Stream, *Attr, error) {
	line, pos := s.Current().Line, s.Current().Pos
	var err error
	if s, _, err = s.Expect("attr"); err != nil {
		return s, nil, err
	}
	var nameTok Token
	if s, nameTok, err = s.Expect("ident"); err != nil {
		return s, nil, err
	}
	var typ Node
	if s.Current().Type == ":" {
		if s, _, err = s.Expect(":"); err != nil {
			return s, nil, err
		}
		s, typ, err = p.parseType(s)
		if err != nil {
			return s, nil, err
		}
	}
	var def Node
	if s.Current().Type == "=" {
		if s, _, err = s.Expect("="); err != nil {
			return s, nil, err
		}
		s, def, err = p.parseExpr(s)
		if err != nil {
			return s, nil, err
		}
	}
	if s, _, err = s.Expect(";"); err != nil {
		return s, nil, err
	}
	return s, NewAttr(nameTok.Text, typ, def, line, pos), nil
}

func (p *Parser) parseMethod(s Stream) (Stream, *Method, error) {
	line, pos := s.Current().Line, s.Current().Pos
	var err error
	if s, _, err = s.Expect("method"); err != nil {
		return s, nil, err
	}
	var name Token
	if s, name, err = s.Expect("ident"); err != nil {
		return s, nil, err
	}
	var params []Param
	s, params, err = p.parseParams(s)
	if err != nil {
		return s, nil, err
	}
	var ret Node
	s, ret, err = p.parseOptionalReturnType(s)
	if err != nil {
		return s, nil, err
	}
	var body []Node
	s, body, err = p.parseBlockStmts(s)
	if err != nil {
		return s, nil, err
	}
	return s, NewMethod(name.Text, params, ret, NewBlock(body, line, pos), line, pos), nil
}

func (p *Parser) parseConstructor(s Stream) (Stream, *Constructor, error) {
	line, pos := s.Current().Line, s.Current().Pos
	var err error
	if s, _, err = s.Expect("new"); err != nil {
		return s, nil, err
	}
	var params []Param
	s, params, err = p.parseParams(s)
	if err != nil {
		return s, nil, err
	}
	var body []Node
	s, body, err = p.parseBlockStmts(s)
	if err != nil {
		return s, nil, err
	}
	return s, NewConstructor(params, NewBlock(body, line, pos), line, pos), nil
}

// --- Types ---

func (p *Parser) parseType(s Stream) (Stream, Node, error) {
	return p.parseGeneric(s)
}

func (p *Parser) parseGeneric(s Stream) (Stream, Node, error) {
	line, pos := s.Current().Line, s.Current().Pos
	s, typ, err := p.parseDottedName(s)
	if err != nil {
		return s, nil, err
	}
	for s.Current().Type == "<" {
		var args []Node
		s, args, err = p.arguments(s, "<", p.parseType, ">")
		if err != nil {
			return s, nil, err
		}
		typ = NewGenericType(typ, args, line, pos)
	}
	return s, typ, nil
}

func (p *Parser) parseDottedName(s Stream) (Stream, Node, error) {
	line, pos := s.Current().Line, s.Current().Pos
	s, typ, err := p.parseName(s)
	if err != nil {
		return s, nil, err
	}
	for s.Current().Type == "." {
		var err error
		if s, _, err = s.Expect("."); err != nil {
			return s, nil, err
		}
		var attr Token
		if s, attr, err = s.Expect("ident"); err != nil {
			return s, nil, err
		}
		typ = NewGetNameType(typ.(*NameType).Value, attr.Text, line, pos)
	}
	return s, typ, nil
}

func (p *Parser) parseName(s Stream) (Stream, Node, error) {
	line, pos := s.Current().Line, s.Current().Pos
	s, name, err := s.Expect("ident")
	if err != nil {
		return s, nil, err
	}
	return s, NewNameType(name.Text, line, pos), nil
}

// --- Statements ---

func (p *Parser) parseStmt(s Stream) (Stream, Node, error) {
	cur := s.Current()
	switch {
	case cur.Type == "var":
		return p.parseVarStmt(s)
	case cur.Type == "return":
		return p.parseReturnStmt(s)
	case cur.Type == "if":
		return p.parseIfStmt(s)
	case cur.Type == "while":
		return p.parseWhileStmt(s)
	case cur.Type == "{":
		return p.parseBlock(s)
	case cur.Type == "del":
		return p.parseDeleteStmt(s)
	case cur.Type == "ident":
		if m, ok := p.macros.lookup("stmt", cur.Text); ok {
			news, replacement, err := applyMacro(p, s, m)
			if err != nil {
				return s, nil, err
			}
			_, node, err := p.parseStmt(replacement)
			return news, node, err
		}
		return p.parseExprStmt(s)
	case cur.Type == "$ident":
		if node, ok := s.symbols.lookup("stmt", cur.Text); ok {
			s, _, err := s.Advance()
			return s, node, err
		}
		return s, nil, s.Errorf("Statement meta-identifier %s is not defined", cur.Text)
	default:
		return p.parseExprStmt(s)
	}
}

func (p *Parser) parseDeleteStmt(s Stream) (Stream, Node, error) {
	line, pos := s.Current().Line, s.Current().Pos
	var err error
	if s, _, err = s.Expect("del"); err != nil {
		return s, nil, err
	}
	var obj Node
	s, obj, err = p.parseExpr(s)
	if err != nil {
		return s, nil, err
	}
	if s, _, err = s.Expect(";"); err != nil {
		return s, nil, err
	}
	return s, NewDeleteStmt(obj, line, pos), nil
}

func (p *Parser) parseBlock(s Stream) (Stream, Node, error) {
	line, pos := s.Current().Line, s.Current().Pos
	s, body, err := p.parseBlockStmts(s)
	if err != nil {
		return s, nil, err
	}
	return s, NewBlock(body, line, pos), nil
}

func (p *Parser) parseIfStmt(s Stream) (Stream, Node, error) {
	line, pos := s.Current().Line, s.Current().Pos
	var err error
	if s, _, err = s.Expect("if"); err != nil {
		return s, nil, err
	}
	if s, _, err = s.Expect("("); err != nil {
		return s, nil, err
	}
	var cond Node
	s, cond, err = p.parseExpr(s)
	if err != nil {
		return s, nil, err
	}
	if s, _, err = s.Expect(")"); err != nil {
		return s, nil, err
	}
	var thenDo Node
	s, thenDo, err = p.parseStmt(s)
	if err != nil {
		return s, nil, err
	}
	var elseDo Node
	if s.Current().Type == "else" {
		if s, _, err = s.Expect("else"); err != nil {
			return s, nil, err
		}
		s, elseDo, err = p.parseStmt(s)
		if err != nil {
			return s, nil, err
		}
	} else {
		elseDo = NewBlock(nil, line, pos)
	}
	return s, NewIfStmt(cond, thenDo, elseDo, line, pos), nil
}

func (p *Parser) parseWhileStmt(s Stream) (Stream, Node, error) {
	line, pos := s.Current().Line, s.Current().Pos
	var err error
	if s, _, err = s.Expect("while"); err != nil {
		return s, nil, err
	}
	if s, _, err = s.Expect("("); err != nil {
		return s, nil, err
	}
	var cond Node
	s, cond, err = p.parseExpr(s)
	if err != nil {
		return s, nil, err
	}
	if s, _, err = s.Expect(")"); err != nil {
		return s, nil, err
	}
	var body Node
	s, body, err = p.parseStmt(s)
	if err != nil {
		return s, nil, err
	}
	return s, NewWhileStmt(cond, body, line, pos), nil
}

func (p *Parser) parseVarStmt(s Stream) (Stream, Node, error) {
	line, pos := s.Current().Line, s.Current().Pos
	var err error
	if s, _, err = s.Expect("var"); err != nil {
		return s, nil, err
	}
	var nameTok Token
	if s, nameTok, err = s.Expect("ident"); err != nil {
		return s, nil, err
	}
	if s, _, err = s.Expect(":"); err != nil {
		return s, nil, err
	}
	var typ Node
	s, typ, err = p.parseType(s)
	if err != nil {
		return s, nil, err
	}
	var val Node
	if s.Current().Type == "=" {
		if s, _, err = s.Expect("="); err != nil {
			return s, nil, err
		}
		s, val, err = p.parseExpr(s)
		if err != nil {
			return s, nil, err
		}
	}
	if s, _, err = s.Expect(";"); err != nil {
		return s, nil, err
	}
	return s, NewVarStmt(nameTok.Text, typ, val, line, pos), nil
}

func (p *Parser) parseReturnStmt(s Stream) (Stream, Node, error) {
	line, pos := s.Current().Line, s.Current().Pos
	var err error
	if s, _, err = s.Expect("return"); err != nil {
		return s, nil, err
	}
	if s.Current().Type == ";" {
		if s, _, err = s.Expect(";"); err != nil {
			return s, nil, err
		}
		return s, NewReturnStmt(nil, line, pos), nil
	}
	var expr Node
	s, expr, err = p.parseExpr(s)
	if err != nil {
		return s, nil, err
	}
	if s, _, err = s.Expect(";"); err != nil {
		return s, nil, err
	}
	return s, NewReturnStmt(expr, line, pos), nil
}

func (p *Parser) parseExprStmt(s Stream) (Stream, Node, error) {
	line, pos := s.Current().Line, s.Current().Pos
	s, expr, err := p.parseExpr(s)
	if err != nil {
		return s, nil, err
	}
	if s, _, err = s.Expect(";"); err != nil {
		return s, nil, err
	}
	return s, NewExprStmt(expr, line, pos), nil
}

// --- Expressions ---

func (p *Parser) parseExpr(s Stream) (Stream, Node, error) {
	return p.parseAssignment(s)
}

func (p *Parser) parseAssignment(s Stream) (Stream, Node, error) {
	line, pos := s.Current().Line, s.Current().Pos
	s, expr, err := p.parseEquality(s)
	if err != nil {
		return s, nil, err
	}
	if s.Current().Type == "=" {
		switch lhs := expr.(type) {
		case *GetVar:
			if s, _, err = s.Expect("="); err != nil {
				return s, nil, err
			}
			var right Node
			s, right, err = p.parseAssignment(s)
			if err != nil {
				return s, nil, err
			}
			return s, NewSetVar(lhs.Name, right, line, pos), nil
		case *GetAttr:
			if s, _, err = s.Expect("="); err != nil {
				return s, nil, err
			}
			var right Node
			s, right, err = p.parseAssignment(s)
			if err != nil {
				return s, nil, err
			}
			return s, NewSetAttr(lhs.Object, lhs.Name, right, line, pos), nil
		default:
			return s, nil, s.Errorf("Left-hand side of an assignment must be a variable or attribute")
		}
	}
	return s, expr, nil
}

func (p *Parser) parseBinOp(s Stream, ops []string, lower func(Stream) (Stream, Node, error)) (Stream, Node, error) {
	s, expr, err := lower(s)
	if err != nil {
		return s, nil, err
	}
	for contains(ops, s.Current().Type) {
		line, pos := s.Current().Line, s.Current().Pos
		var op Token
		s, op, err = s.Advance()
		if err != nil {
			return s, nil, err
		}
		var right Node
		s, right, err = lower(s)
		if err != nil {
			return s, nil, err
		}
		expr = NewBinOp(op.Text, expr, right, line, pos)
	}
	return s, expr, nil
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

func (p *Parser) parseEquality(s Stream) (Stream, Node, error) {
	return p.parseBinOp(s, []string{"==", "!="}, p.parseComparison)
}

func (p *Parser) parseComparison(s Stream) (Stream, Node, error) {
	return p.parseBinOp(s, []string{"<", ">", "<=", ">="}, p.parseAddition)
}

func (p *Parser) parseAddition(s Stream) (Stream, Node, error) {
	return p.parseBinOp(s, []string{"+", "-"}, p.parseMultiplication)
}

func (p *Parser) parseMultiplication(s Stream) (Stream, Node, error) {
	return p.parseBinOp(s, []string{"*", "/", "//", "%"}, p.parseCast)
}

func (p *Parser) parseCast(s Stream) (Stream, Node, error) {
	s, expr, err := p.parseUnary(s)
	if err != nil {
		return s, nil, err
	}
	for s.Current().Type == "as" {
		line, pos := s.Current().Line, s.Current().Pos
		if s, _, err = s.Expect("as"); err != nil {
			return s, nil, err
		}
		var typ Node
		s, typ, err = p.parseType(s)
		if err != nil {
			return s, nil, err
		}
		expr = NewCast(expr, typ, line, pos)
	}
	return s, expr, nil
}

func (p *Parser) parseUnary(s Stream) (Stream, Node, error) {
	if s.Current().Type == "!" || s.Current().Type == "-" {
		line, pos := s.Current().Line, s.Current().Pos
		s, op, err := s.Advance()
		if err != nil {
			return s, nil, err
		}
		var right Node
		s, right, err = p.parseUnary(s)
		if err != nil {
			return s, nil, err
		}
		return s, NewUnary(op.Text, right, line, pos), nil
	}
	return p.parseCall(s)
}

func (p *Parser) parseCall(s Stream) (Stream, Node, error) {
	s, expr, err := p.parsePrimary(s)
	if err != nil {
		return s, nil, err
	}
	for !s.IsEmpty() {
		line, pos := s.Current().Line, s.Current().Pos
		switch s.Current().Type {
		case "(":
			var args []Node
			s, args, err = p.arguments(s, "(", p.parseExpr, ")")
			if err != nil {
				return s, nil, err
			}
			expr = NewCall(expr, args, line, pos)
		case ".":
			if s, _, err = s.Expect("."); err != nil {
				return s, nil, err
			}
			var attr Token
			if s, attr, err = s.Expect("ident"); err != nil {
				return s, nil, err
			}
			expr = NewGetAttr(expr, attr.Text, line, pos)
		default:
			return s, expr, nil
		}
	}
	return s, expr, nil
}

func (p *Parser) parsePrimary(s Stream) (Stream, Node, error) {
	line, pos := s.Current().Line, s.Current().Pos
	cur := s.Current()
	switch {
	case cur.Type == "ident":
		if m, ok := p.macros.lookup("expr", cur.Text); ok {
			news, replacement, err := applyMacro(p, s, m)
			if err != nil {
				return s, nil, err
			}
			_, node, err := p.parseExpr(replacement)
			return news, node, err
		}
		s, tok, err := s.Advance()
		if err != nil {
			return s, nil, err
		}
		return s, NewGetVar(tok.Text, line, pos), nil

	case cur.Type == "$ident":
		if node, ok := s.symbols.lookup("expr", cur.Text); ok {
			s, _, err := s.Advance()
			return s, node, err
		}
		return s, nil, s.Errorf("Expression meta-identifier %s is not defined", cur.Text)

	case cur.Type == "num":
		s, tok, err := s.Advance()
		return s, NewLiteral(LiteralNum, tok.Text, line, pos), err
	case cur.Type == "hex":
		s, tok, err := s.Advance()
		return s, NewLiteral(LiteralHex, tok.Text, line, pos), err
	case cur.Type == "str":
		s, tok, err := s.Advance()
		return s, NewLiteral(LiteralString, tok.Text, line, pos), err

	case cur.Type == "(":
		var err error
		if s, _, err = s.Expect("("); err != nil {
			return s, nil, err
		}
		var expr Node
		s, expr, err = p.parseExpr(s)
		if err != nil {
			return s, nil, err
		}
		if s, _, err = s.Expect(")"); err != nil {
			return s, nil, err
		}
		return s, NewGrouping(expr, line, pos), nil

	case cur.Type == "new":
		var err error
		if s, _, err = s.Expect("new"); err != nil {
			return s, nil, err
		}
		var cls Node
		s, cls, err = p.parseType(s)
		if err != nil {
			return s, nil, err
		}
		var args []Node
		s, args, err = p.arguments(s, "(", p.parseExpr, ")")
		if err != nil {
			return s, nil, err
		}
		return s, NewNewExpr(cls, args, line, pos), nil

	default:
		return s, nil, s.Errorf("Expected expression, got %q", cur.Type)
	}
}
