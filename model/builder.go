package model

import (
	"strings"

	"github.com/zooba/esdlc/ast"
	"github.com/zooba/esdlc/diag"
	"github.com/zooba/esdlc/lexer"
)

// NewSystem builds the semantic model for a parsed tree. Names are
// case-insensitive from here on: the first occurrence of a name defines its
// identity and every later spelling resolves to the same Variable. Function
// names used in USING clauses that the definition never defines are
// registered as implicit externals to be bound by the caller.
//
// A partial system is always returned; callers must check the result before
// executing it.
func NewSystem(tree *ast.Tree, externals map[string]any) (*System, *diag.Result) {
	b := &builder{
		tree:   tree,
		sys:    newSystem(externals),
		res:    &diag.Result{},
		consts: map[string]*Variable{},
	}
	b.read()
	return b.sys, b.res
}

type builder struct {
	tree   *ast.Tree
	sys    *System
	res    *diag.Result
	consts map[string]*Variable
}

func (b *builder) errorf(code string, id ast.NodeID, format string, args ...any) {
	b.res.Add(diag.New(code, b.pos(id), format, args...))
}

func (b *builder) pos(id ast.NodeID) diag.Pos {
	n := b.tree.Node(id)
	return diag.Pos{Line: n.Line, Col: n.Col}
}

// read partitions top-level statements into the implicit init block and the
// named blocks, then converts each.
func (b *builder) read() {
	type srcBlock struct {
		name  string
		stmts []ast.NodeID
	}
	blocks := []srcBlock{{name: InitBlockName}}
	inInit := true

	for _, id := range b.tree.Roots {
		n := b.tree.Node(id)
		if n.Category == ast.CatBlock && n.Tag == lexer.TagBegin {
			inInit = false
			blocks = append(blocks, srcBlock{
				name:  strings.ToLower(n.Value),
				stmts: n.Body,
			})
			continue
		}
		if inInit {
			blocks[0].stmts = append(blocks[0].stmts, id)
		}
	}

	for _, blk := range blocks {
		if _, dup := b.sys.Blocks[blk.name]; dup {
			b.res.Add(diag.New(diag.CodeAmbiguousBlockName, diag.Pos{},
				"block %q defined more than once", blk.name))
		} else {
			b.sys.BlockNames = append(b.sys.BlockNames, blk.name)
		}
		b.sys.Blocks[blk.name] = b.statements(blk.stmts)
	}
}

func (b *builder) statements(ids []ast.NodeID) []Stmt {
	var out []Stmt
	for _, id := range ids {
		if s := b.statement(id); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (b *builder) statement(id ast.NodeID) Stmt {
	n := b.tree.Node(id)
	switch n.Tag {
	case "=":
		return b.assign(id)

	case lexer.TagUsing:
		if n.Left == ast.None {
			b.errorf(diag.CodeInvalidSyntax, id, "invalid syntax")
			return nil
		}
		switch b.tree.Node(n.Left).Tag {
		case lexer.TagSelect:
			return b.storeStmt(id, false)
		case lexer.TagInto:
			return b.storeStmt(id, true)
		case lexer.TagEval:
			return b.evalStmt(id)
		}
		b.errorf(diag.CodeInvalidSyntax, id, "invalid syntax")
		return nil

	case lexer.TagSelect:
		return b.storeStmt(id, false)
	case lexer.TagInto:
		return b.storeStmt(id, true)
	case lexer.TagEval:
		return b.evalStmt(id)
	case lexer.TagYield:
		return b.yieldStmt(id)

	case lexer.TagRepeat:
		return b.repeatBlock(id)

	case lexer.TagPragma:
		return &Pragma{Text: n.Value, Pos: b.pos(id)}

	case lexer.TagFrom, lexer.TagJoin:
		// Caught by the syntax validator; nothing useful to build.
		return nil

	default:
		x := b.expression(id)
		if x == nil {
			return nil
		}
		return &ExprStmt{X: x}
	}
}

func (b *builder) repeatBlock(id ast.NodeID) Stmt {
	n := b.tree.Node(id)
	blk := &RepeatBlock{Statements: b.statements(n.Body)}
	if n.Data != ast.None {
		blk.Count = b.expression(n.Data)
	}
	return blk
}

func (b *builder) assign(id ast.NodeID) Stmt {
	n := b.tree.Node(id)
	if n.Left == ast.None || n.Right == ast.None {
		b.errorf(diag.CodeInvalidSyntax, id, "invalid syntax")
		return nil
	}
	dest := b.expression(n.Left)
	src := b.expression(n.Right)
	if dest == nil || src == nil {
		return nil
	}
	return &Assign{Dest: dest, Src: src, Pos: b.pos(id)}
}

func (b *builder) expression(id ast.NodeID) Expr {
	if id == ast.None {
		return nil
	}
	n := b.tree.Node(id)
	switch n.Tag {
	case lexer.TagNumber, lexer.TagConstant:
		return &VariableRef{Var: b.constant(id), Pos: b.pos(id)}

	case lexer.TagName:
		return &VariableRef{Var: b.variable(id), Pos: b.pos(id)}

	case "call":
		return b.call(id)

	case "index":
		return &GetIndex{
			Source: b.expression(n.Left),
			Index:  b.expression(n.Right),
			Pos:    b.pos(id),
		}

	case ".":
		return b.getAttrib(id)

	case "+", "-", "*", "/", "%", "^":
		if n.Unary {
			return &UnaryOp{Op: n.Tag, Right: b.expression(n.Right)}
		}
		return &BinaryOp{
			Left:  b.expression(n.Left),
			Op:    n.Tag,
			Right: b.expression(n.Right),
		}
	}
	b.errorf(diag.CodeInvalidSyntax, id, "invalid syntax")
	return nil
}

// constant returns the pooled Variable for a literal, so equal literals
// share one identity across the system.
func (b *builder) constant(id ast.NodeID) *Variable {
	n := b.tree.Node(id)
	var value any
	switch n.Tag {
	case lexer.TagNumber:
		value = n.Number
	default:
		switch n.Value {
		case "TRUE":
			value = true
		case "FALSE":
			value = false
		default: // NONE, NULL
			value = nil
		}
	}
	key := ConstName(value)
	if v, ok := b.consts[key]; ok {
		return v
	}
	v := &Variable{Name: key, Value: value, Constant: true}
	b.consts[key] = v
	b.sys.Constants = append(b.sys.Constants, v)
	return v
}

// variable resolves a name node against variables first, then externals,
// defining a new variable on first use.
func (b *builder) variable(id ast.NodeID) *Variable {
	n := b.tree.Node(id)
	name := strings.ToLower(n.Value)
	v := b.sys.Variables[name]
	if v == nil {
		v = b.sys.Externals[name]
	}
	if v == nil {
		v = &Variable{Name: name}
		b.sys.Variables[name] = v
	}
	v.References = append(v.References, b.pos(id))
	return v
}

// callee resolves the function position of a call. Bare names resolve
// against externals only, registering an implicit external when unknown.
func (b *builder) callee(id ast.NodeID) Expr {
	n := b.tree.Node(id)
	if n.Tag != lexer.TagName {
		return b.expression(id)
	}
	name := strings.ToLower(n.Value)
	v := b.sys.Externals[name]
	if v == nil {
		v = &Variable{Name: name, External: true}
		b.sys.Externals[name] = v
	}
	v.References = append(v.References, b.pos(id))
	return &VariableRef{Var: v, Pos: b.pos(id)}
}

func (b *builder) call(id ast.NodeID) *Call {
	n := b.tree.Node(id)
	if n.Left == ast.None {
		b.errorf(diag.CodeInvalidFunctionCall, id, "invalid function call")
		return nil
	}
	c := &Call{Fn: b.callee(n.Left), Pos: b.pos(id)}
	for _, arg := range b.tree.ListOf(n.Right) {
		a := b.tree.Node(arg)
		switch {
		case a.Tag == "=":
			if a.Left == ast.None {
				b.errorf(diag.CodeInvalidParamName, arg, "invalid parameter name")
				continue
			}
			nameNode := b.tree.Node(a.Left)
			if nameNode.Tag != lexer.TagName {
				b.errorf(diag.CodeInvalidParamName, arg, "invalid parameter name")
				continue
			}
			c.Params = append(c.Params, &Parameter{
				Name:  strings.ToLower(nameNode.Value),
				Value: b.expression(a.Right),
				Pos:   b.pos(arg),
			})
		case a.Tag == lexer.TagName:
			// Implicit parameter: value comes from the execution context.
			c.Params = append(c.Params, &Parameter{
				Name: strings.ToLower(a.Value),
				Pos:  b.pos(arg),
			})
		default:
			b.errorf(diag.CodeInvalidParamName, arg, "invalid parameter name")
		}
	}
	return c
}

func (b *builder) getAttrib(id ast.NodeID) Expr {
	n := b.tree.Node(id)
	if n.Left == ast.None || n.Right == ast.None ||
		b.tree.Node(n.Right).Tag != lexer.TagName {
		b.errorf(diag.CodeInvalidSyntax, id, "invalid syntax")
		return nil
	}
	return &GetAttrib{
		Source: b.expression(n.Left),
		Attrib: strings.ToLower(b.tree.Node(n.Right).Value),
		Pos:    b.pos(id),
	}
}

// usingFn converts one USING operand into a call. Bare names become
// zero-parameter calls of (possibly implicit) externals.
func (b *builder) usingFn(id ast.NodeID) *Call {
	n := b.tree.Node(id)
	switch n.Tag {
	case "call":
		return b.call(id)
	case lexer.TagName:
		return &Call{Fn: b.callee(id), Pos: b.pos(id)}
	case ".":
		x := b.getAttrib(id)
		if x == nil {
			return nil
		}
		return &Call{Fn: x, Pos: b.pos(id)}
	}
	b.errorf(diag.CodeInvalidFunctionCall, id, "invalid function call")
	return nil
}

// streamItem converts one FROM or JOIN source: a group reference, a
// generator call, or an external name treated as a zero-argument generator.
func (b *builder) streamItem(id ast.NodeID) StreamItem {
	n := b.tree.Node(id)
	switch n.Tag {
	case "call":
		return b.call(id)
	case lexer.TagName:
		v := b.variable(id)
		if v.External {
			return &Call{Fn: &VariableRef{Var: v, Pos: b.pos(id)}, Pos: b.pos(id)}
		}
		return &GroupRef{Group: v, Pos: b.pos(id)}
	}
	b.errorf(diag.CodeInvalidGroup, id, "invalid group")
	return nil
}

// destRef converts one SELECT or INTO destination. Destinations must be
// assignable groups; generators and externals cannot receive individuals.
func (b *builder) destRef(id ast.NodeID) *GroupRef {
	n := b.tree.Node(id)
	if n.Tag != lexer.TagName {
		b.errorf(diag.CodeGeneratorAsDest, id, "generator cannot be a destination")
		return nil
	}
	v := b.variable(id)
	if v.External {
		b.errorf(diag.CodeGeneratorAsDest, id, "%q cannot be a destination", v.Name)
		return nil
	}
	g := &GroupRef{Group: v, Pos: b.pos(id)}
	if n.Data != ast.None {
		g.Limit = b.expression(n.Data)
	}
	return g
}

// groupOnly converts one EVAL or YIELD operand, which must be a plain
// group.
func (b *builder) groupOnly(id ast.NodeID) *GroupRef {
	n := b.tree.Node(id)
	if n.Tag != lexer.TagName || n.Data != ast.None {
		b.errorf(diag.CodeInvalidGroup, id, "invalid group")
		return nil
	}
	v := b.variable(id)
	if v.External {
		b.errorf(diag.CodeInvalidGroup, id, "invalid group %q", v.Name)
		return nil
	}
	return &GroupRef{Group: v, Pos: b.pos(id)}
}

// storeStmt converts FROM-SELECT (merge) and JOIN-INTO (join) chains into
// a Store whose source applies the USING operators innermost first.
func (b *builder) storeStmt(id ast.NodeID, join bool) Stmt {
	n := b.tree.Node(id)
	var ops []*Call
	if n.Tag == lexer.TagUsing {
		for _, f := range b.tree.ListOf(n.Right) {
			if op := b.usingFn(f); op != nil {
				ops = append(ops, op)
			}
		}
		id = n.Left
		n = b.tree.Node(id)
	}

	wantSelect, wantFrom := lexer.TagSelect, lexer.TagFrom
	code := diag.CodeExpectedSelect
	if join {
		wantSelect, wantFrom = lexer.TagInto, lexer.TagJoin
		code = diag.CodeExpectedInto
	}
	if n.Tag != wantSelect || n.Left == ast.None ||
		b.tree.Node(n.Left).Tag != wantFrom {
		b.errorf(code, id, "incomplete %s statement", wantFrom)
		return nil
	}

	var dests []*GroupRef
	for _, d := range b.tree.ListOf(n.Right) {
		if g := b.destRef(d); g != nil {
			dests = append(dests, g)
		}
	}

	var srcs []StreamItem
	for _, s := range b.tree.ListOf(b.tree.Node(n.Left).Right) {
		if it := b.streamItem(s); it != nil {
			srcs = append(srcs, it)
		}
	}

	var gen StreamSource
	if join {
		gen = &Join{Sources: srcs}
	} else {
		gen = &Merge{Sources: srcs}
	}
	for _, op := range ops {
		gen = &Operator{Source: gen, Fn: op}
	}
	return &Store{Source: gen, Destinations: dests, Pos: b.pos(id)}
}

func (b *builder) evalStmt(id ast.NodeID) Stmt {
	n := b.tree.Node(id)
	var evals []Expr
	if n.Tag == lexer.TagUsing {
		for _, f := range b.tree.ListOf(n.Right) {
			fn := b.tree.Node(f)
			var x Expr
			if fn.Tag == "call" {
				x = b.call(f)
			} else {
				x = b.expression(f)
			}
			if x != nil {
				evals = append(evals, x)
			}
		}
		id = n.Left
		n = b.tree.Node(id)
	}
	if len(evals) > 1 {
		b.errorf(diag.CodeInvalidFunctionCall, id, "only one evaluator may be specified")
	}
	stmt := &EvalStmt{Evaluators: evals, Pos: b.pos(id)}
	for _, g := range b.tree.ListOf(n.Right) {
		if gr := b.groupOnly(g); gr != nil {
			stmt.Sources = append(stmt.Sources, gr)
		}
	}
	return stmt
}

func (b *builder) yieldStmt(id ast.NodeID) Stmt {
	n := b.tree.Node(id)
	stmt := &YieldStmt{Pos: b.pos(id)}
	for _, g := range b.tree.ListOf(n.Right) {
		if gr := b.groupOnly(g); gr != nil {
			stmt.Sources = append(stmt.Sources, gr)
		}
	}
	return stmt
}
