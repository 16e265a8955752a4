package ast

import (
	"strings"

	"github.com/zooba/esdlc/diag"
	"github.com/zooba/esdlc/lexer"
)

// Validate checks the structural rules the climb alone cannot enforce:
// command statements must be complete chains, destination lists must be
// plain or sized names without repeats, and call parameters must be
// well-formed. It does not resolve names; that is the semantic model's job.
func Validate(t *Tree) *diag.Result {
	v := &validator{t: t, res: &diag.Result{}}
	for _, id := range t.Roots {
		v.statement(id)
	}
	return v.res
}

type validator struct {
	t   *Tree
	res *diag.Result
}

func (v *validator) errorf(code string, id NodeID, format string, args ...any) {
	n := v.t.Node(id)
	v.res.Add(diag.New(code, diag.Pos{Line: n.Line, Col: n.Col}, format, args...))
}

func (v *validator) statement(id NodeID) {
	n := v.t.Node(id)
	switch n.Tag {
	case lexer.TagBegin, lexer.TagRepeat:
		if n.Tag == lexer.TagRepeat && n.Data != None {
			v.expr(n.Data)
		}
		for _, s := range n.Body {
			v.statement(s)
		}
	case lexer.TagPragma:
	case "=":
		v.assign(id)
	default:
		if IsCommand(n.Tag) {
			v.command(id)
		} else {
			v.expr(id)
		}
	}
}

func (v *validator) command(id NodeID) {
	cur := id
	if v.t.Node(cur).Tag == lexer.TagUsing {
		n := v.t.Node(cur)
		v.functionList(n.Right, cur)
		if n.Left == None {
			v.errorf(diag.CodeInvalidSyntax, cur, "invalid syntax")
			return
		}
		cur = n.Left
	}

	n := v.t.Node(cur)
	switch n.Tag {
	case lexer.TagSelect:
		if n.Left == None || v.t.Node(n.Left).Tag != lexer.TagFrom {
			v.errorf(diag.CodeExpectedSelect, cur, "SELECT without FROM")
		} else {
			v.sourceList(v.t.Node(n.Left).Right, n.Left, true)
		}
		v.destList(n.Right, cur)

	case lexer.TagFrom:
		v.errorf(diag.CodeExpectedSelect, cur, "FROM without SELECT")

	case lexer.TagInto:
		if n.Left == None || v.t.Node(n.Left).Tag != lexer.TagJoin {
			v.errorf(diag.CodeExpectedInto, cur, "INTO without JOIN")
		} else {
			v.sourceList(v.t.Node(n.Left).Right, n.Left, false)
		}
		v.destList(n.Right, cur)

	case lexer.TagJoin:
		v.errorf(diag.CodeExpectedInto, cur, "JOIN without INTO")

	case lexer.TagEval, lexer.TagYield:
		if n.Left != None {
			v.errorf(diag.CodeInvalidSyntax, cur, "invalid syntax")
		}
		v.groupList(n.Right, cur)

	default:
		v.errorf(diag.CodeInvalidSyntax, cur, "invalid syntax")
	}
}

// sourceList checks FROM or JOIN sources. Generator calls are only allowed
// after FROM; sized groups are never sources.
func (v *validator) sourceList(list, at NodeID, allowCalls bool) {
	items := v.t.ListOf(list)
	if len(items) == 0 {
		v.errorf(diag.CodeExpectedGroup, at, "expected group")
		return
	}
	for _, it := range items {
		n := v.t.Node(it)
		switch n.Tag {
		case lexer.TagName:
			if n.Data != None {
				v.errorf(diag.CodeUnexpectedGroupSize, it, "unexpected group size")
			}
		case "call":
			if !allowCalls {
				v.errorf(diag.CodeInvalidGroup, it, "invalid group")
				continue
			}
			v.call(it)
		case ".":
			v.expr(it)
		default:
			v.errorf(diag.CodeInvalidGroup, it, "invalid group")
		}
	}
}

// destList checks SELECT or INTO destinations: plain or sized names, no
// repeats, no generators.
func (v *validator) destList(list, at NodeID) {
	items := v.t.ListOf(list)
	if len(items) == 0 {
		v.errorf(diag.CodeExpectedGroup, at, "expected group")
		return
	}
	seen := map[string]bool{}
	for _, it := range items {
		n := v.t.Node(it)
		switch n.Tag {
		case lexer.TagName:
			key := strings.ToLower(n.Value)
			if seen[key] {
				v.errorf(diag.CodeRepeatedDest, it, "repeated destination %q", n.Value)
			}
			seen[key] = true
			if n.Data != None {
				v.expr(n.Data)
			}
		case "call":
			v.errorf(diag.CodeGeneratorAsDest, it, "generator cannot be a destination")
		default:
			v.errorf(diag.CodeInvalidGroup, it, "invalid group")
		}
	}
}

// groupList checks EVAL and YIELD operands: plain names, no repeats.
func (v *validator) groupList(list, at NodeID) {
	items := v.t.ListOf(list)
	if len(items) == 0 {
		v.errorf(diag.CodeExpectedGroup, at, "expected group")
		return
	}
	seen := map[string]bool{}
	for _, it := range items {
		n := v.t.Node(it)
		if n.Tag != lexer.TagName || n.Data != None {
			v.errorf(diag.CodeInvalidGroup, it, "invalid group")
			continue
		}
		key := strings.ToLower(n.Value)
		if seen[key] {
			v.errorf(diag.CodeRepeatedGroup, it, "repeated group %q", n.Value)
		}
		seen[key] = true
	}
}

// functionList checks USING operands: bare names or calls.
func (v *validator) functionList(list, at NodeID) {
	items := v.t.ListOf(list)
	if len(items) == 0 {
		v.errorf(diag.CodeInvalidFunctionCall, at, "expected function")
		return
	}
	for _, it := range items {
		n := v.t.Node(it)
		switch n.Tag {
		case lexer.TagName, ".":
		case "call":
			v.call(it)
		default:
			v.errorf(diag.CodeInvalidFunctionCall, it, "invalid function call")
		}
	}
}

func (v *validator) assign(id NodeID) {
	n := v.t.Node(id)
	if n.Left == None || !v.assignable(n.Left) {
		v.errorf(diag.CodeInvalidAssignTarget, id, "cannot assign to this expression")
	}
	if n.Right != None {
		v.expr(n.Right)
	}
}

// assignable reports whether a node can appear left of '='. Names, attribute
// accesses and index accesses qualify.
func (v *validator) assignable(id NodeID) bool {
	n := v.t.Node(id)
	switch n.Tag {
	case lexer.TagName:
		return n.Data == None
	case ".":
		return n.Left != None && v.assignable(n.Left) &&
			n.Right != None && v.t.Node(n.Right).Tag == lexer.TagName
	case "index":
		return n.Left != None && v.assignable(n.Left)
	}
	return false
}

// expr walks an expression checking every call's parameter list.
func (v *validator) expr(id NodeID) {
	if id == None {
		return
	}
	n := v.t.Node(id)
	if n.Tag == "call" {
		v.call(id)
		return
	}
	v.expr(n.Left)
	v.expr(n.Right)
	if n.Tag == lexer.TagName {
		v.expr(n.Data)
	}
}

// call checks one call node: parameters are plain values or name=value
// pairs with well-formed names.
func (v *validator) call(id NodeID) {
	n := v.t.Node(id)
	v.expr(n.Left)
	for _, arg := range v.t.ListOf(n.Right) {
		a := v.t.Node(arg)
		if a.Tag != "=" {
			v.expr(arg)
			continue
		}
		if a.Left == None || v.t.Node(a.Left).Tag != lexer.TagName {
			v.errorf(diag.CodeInvalidParamName, arg, "invalid parameter name")
		}
		if a.Right == None {
			v.errorf(diag.CodeExpectedParamValue, arg, "expected parameter value")
		} else {
			v.expr(a.Right)
		}
	}
}
