package model

import (
	"strings"

	"github.com/zooba/esdlc/diag"
)

// Validate checks a built system for semantic faults: assignments to
// constants or externals, destinations shadowed by an unlimited one, group
// names that clash with generators or blocks, and repeated or internal
// parameter names. Externals that are provided but never referenced are
// reported as warnings.
func Validate(sys *System) *diag.Result {
	v := &checker{sys: sys, res: &diag.Result{}, assigned: map[string]bool{}}
	for _, name := range sys.BlockNames {
		v.destinations(sys.Blocks[name])
	}
	for _, name := range sys.BlockNames {
		v.stmts(sys.Blocks[name])
	}
	for _, ext := range sys.Externals {
		if len(ext.References) == 0 {
			v.res.Add(diag.New(diag.CodeUnusedExternal, diag.Pos{},
				"external %q is never used", ext.Name))
		}
	}
	for name, va := range sys.Variables {
		if !va.Constant && !v.assigned[name] && len(va.References) > 0 {
			pos := va.References[0]
			v.res.Add(diag.New(diag.CodeUninitializedName, pos,
				"%q is never given a value", va.Name))
		}
	}
	return v.res
}

// destinations records every name the system assigns or stores into, so
// reads of never-assigned variables can be warned about.
func (c *checker) destinations(stmts []Stmt) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *RepeatBlock:
			c.destinations(s.Statements)
		case *Assign:
			if dest, ok := s.Dest.(*VariableRef); ok {
				c.assigned[dest.Var.Name] = true
			}
		case *Store:
			for _, d := range s.Destinations {
				c.assigned[d.Group.Name] = true
			}
		}
	}
}

type checker struct {
	sys      *System
	res      *diag.Result
	assigned map[string]bool
}

func (c *checker) errorf(code string, pos diag.Pos, format string, args ...any) {
	c.res.Add(diag.New(code, pos, format, args...))
}

func (c *checker) stmts(stmts []Stmt) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *RepeatBlock:
			c.expr(s.Count)
			c.stmts(s.Statements)
		case *Assign:
			c.assign(s)
		case *ExprStmt:
			c.expr(s.X)
		case *Store:
			c.store(s)
		case *EvalStmt:
			c.groups(s.Sources, diag.CodeRepeatedGroup)
			for _, e := range s.Evaluators {
				c.expr(e)
			}
		case *YieldStmt:
			c.groups(s.Sources, diag.CodeRepeatedGroup)
		case *Pragma:
		}
	}
}

func (c *checker) assign(s *Assign) {
	switch dest := s.Dest.(type) {
	case *VariableRef:
		if dest.Var.Constant || dest.Var.External {
			c.errorf(diag.CodeCannotAssign, s.Pos,
				"cannot assign to %q", dest.Var.Name)
		} else {
			c.variable(dest.Var, dest.Pos)
		}
	case *GetAttrib, *GetIndex:
		c.expr(s.Dest)
	default:
		c.errorf(diag.CodeInvalidAssignTarget, s.Pos,
			"cannot assign to this expression")
	}
	c.expr(s.Src)
}

func (c *checker) expr(x Expr) {
	switch x := x.(type) {
	case nil:
	case *VariableRef:
		c.variable(x.Var, x.Pos)
	case *UnaryOp:
		c.expr(x.Right)
	case *BinaryOp:
		c.expr(x.Left)
		c.expr(x.Right)
	case *Call:
		c.call(x)
	case *GetAttrib:
		c.expr(x.Source)
	case *GetIndex:
		c.expr(x.Source)
		c.expr(x.Index)
	}
}

func (c *checker) variable(v *Variable, pos diag.Pos) {
	if v.Constant {
		return
	}
	if strings.HasPrefix(v.Name, "_") {
		c.errorf(diag.CodeInternalName, pos,
			"%q is reserved for internal use", v.Name)
	}
	if _, clash := c.sys.Blocks[v.Name]; clash {
		c.errorf(diag.CodeAmbiguousBlockName, pos,
			"%q is both a variable and a block", v.Name)
	}
}

func (c *checker) call(x *Call) {
	c.expr(x.Fn)
	seen := map[string]bool{}
	for _, p := range x.Params {
		if seen[p.Name] {
			c.errorf(diag.CodeRepeatedParamName, p.Pos,
				"repeated parameter %q", p.Name)
		}
		seen[p.Name] = true
		if strings.HasPrefix(p.Name, "_") {
			c.errorf(diag.CodeInternalName, p.Pos,
				"parameter %q is reserved for internal use", p.Name)
		}
		c.expr(p.Value)
	}
}

func (c *checker) group(g *GroupRef) {
	if _, clash := c.sys.Externals[g.Group.Name]; clash {
		c.errorf(diag.CodeAmbiguousGroup, g.Pos,
			"%q is both a group and a generator", g.Group.Name)
	}
	c.variable(g.Group, g.Pos)
}

func (c *checker) groups(gs []*GroupRef, repeatCode string) {
	seen := map[string]bool{}
	for _, g := range gs {
		c.group(g)
		if seen[g.Group.Name] {
			c.errorf(repeatCode, g.Pos, "repeated group %q", g.Group.Name)
		}
		seen[g.Group.Name] = true
	}
}

func (c *checker) store(s *Store) {
	seen := map[string]bool{}
	unlimited := false
	for _, d := range s.Destinations {
		if unlimited {
			c.errorf(diag.CodeInaccessibleGroup, d.Pos,
				"%q can never receive any individuals", d.Group.Name)
		}
		if seen[d.Group.Name] {
			c.errorf(diag.CodeRepeatedDest, d.Pos,
				"repeated destination %q", d.Group.Name)
		}
		seen[d.Group.Name] = true
		unlimited = unlimited || d.Limit == nil
		c.expr(d.Limit)
		c.group(d)
	}
	c.source(s.Source)
}

func (c *checker) source(src StreamSource) {
	switch src := src.(type) {
	case *Operator:
		c.call(src.Fn)
		c.source(src.Source)
	case *Merge:
		c.items(src.Sources)
	case *Join:
		c.items(src.Sources)
	}
}

func (c *checker) items(items []StreamItem) {
	for _, it := range items {
		switch it := it.(type) {
		case *GroupRef:
			c.group(it)
		case *Call:
			c.call(it)
		}
	}
}
