// Package model holds the semantic model of a compiled system definition.
//
// The model is pure data. Every expression and statement is a small struct
// in a closed union; consumers dispatch with a type switch. Execution lives
// in the engine package, serialization back to source in definition.go.
package model

import (
	"strconv"

	"github.com/zooba/esdlc/diag"
)

// InitBlockName names the implicit block holding every statement that
// appears before the first named block.
const InitBlockName = "_init"

// Variable is a single named slot. Constants carry their value at compile
// time; externals are bound by the caller and cannot be assigned within the
// system. All other variables live in the execution context.
type Variable struct {
	Name     string
	Value    any
	External bool
	Constant bool

	// References collects every source position that mentions this
	// variable. Unreferenced externals are reported as warnings.
	References []diag.Pos
}

func (v *Variable) String() string { return v.Name }

// Expr is any expression node: VariableRef, UnaryOp, BinaryOp, Call,
// GetAttrib or GetIndex.
type Expr interface{ isExpr() }

// VariableRef is a use of a variable, constant or external.
type VariableRef struct {
	Var *Variable
	Pos diag.Pos
}

// UnaryOp is sign negation or identity applied to one operand.
type UnaryOp struct {
	Op    string
	Right Expr
}

// BinaryOp is one of + - * / % ^.
type BinaryOp struct {
	Left  Expr
	Op    string
	Right Expr
}

// Parameter is one argument in a call. A nil Value marks an implicit
// parameter: the callee receives the current binding of Name from the
// execution context.
type Parameter struct {
	Name  string
	Value Expr
	Pos   diag.Pos
}

// Call invokes Fn with named parameters.
type Call struct {
	Fn     Expr
	Params []*Parameter
	Pos    diag.Pos
}

// GetAttrib reads a named attribute from the result of Source.
type GetAttrib struct {
	Source Expr
	Attrib string
	Pos    diag.Pos
}

// GetIndex reads an integer index from the result of Source.
type GetIndex struct {
	Source Expr
	Index  Expr
	Pos    diag.Pos
}

func (*VariableRef) isExpr() {}
func (*UnaryOp) isExpr()     {}
func (*BinaryOp) isExpr()    {}
func (*Call) isExpr()        {}
func (*GetAttrib) isExpr()   {}
func (*GetIndex) isExpr()    {}

// StreamItem is one source of a Merge or Join: a group reference or a
// generator call.
type StreamItem interface{ isStreamItem() }

// GroupRef names a group, optionally with a size limit in destination
// position.
type GroupRef struct {
	Group *Variable
	Limit Expr
	Pos   diag.Pos
}

func (*GroupRef) isStreamItem() {}
func (*Call) isStreamItem()     {}

// StreamSource produces the individuals consumed by a Store.
type StreamSource interface{ isStreamSource() }

// Merge concatenates its sources into one stream.
type Merge struct {
	Sources []StreamItem
}

// Join passes its sources, unconcatenated, to a joining operator which
// decides how to combine them.
type Join struct {
	Sources []StreamItem
}

// Operator applies one transforming function to a stream.
type Operator struct {
	Source StreamSource
	Fn     *Call
}

func (*Merge) isStreamSource()    {}
func (*Join) isStreamSource()     {}
func (*Operator) isStreamSource() {}

// Stmt is any statement: Assign, ExprStmt, Store, EvalStmt, YieldStmt,
// RepeatBlock or Pragma.
type Stmt interface{ isStmt() }

// Assign stores the value of Src into Dest. Dest is a VariableRef,
// GetAttrib or GetIndex.
type Assign struct {
	Dest Expr
	Src  Expr
	Pos  diag.Pos
}

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	X Expr
}

// Store drains a stream into one or more destination groups, left to
// right. Limited destinations take at most their limit; an unlimited
// destination takes everything remaining.
type Store struct {
	Source       StreamSource
	Destinations []*GroupRef
	Pos          diag.Pos
}

// EvalStmt (re)evaluates the fitness of every individual in its groups.
type EvalStmt struct {
	Sources    []*GroupRef
	Evaluators []Expr
	Pos        diag.Pos
}

// YieldStmt reports each of its groups to the caller.
type YieldStmt struct {
	Sources []*GroupRef
	Pos     diag.Pos
}

// RepeatBlock executes its statements Count times. Count is evaluated
// fresh on every entry to the block.
type RepeatBlock struct {
	Count      Expr
	Statements []Stmt
}

// Pragma is a compiler directive carried through unchanged.
type Pragma struct {
	Text string
	Pos  diag.Pos
}

func (*Assign) isStmt()      {}
func (*ExprStmt) isStmt()    {}
func (*Store) isStmt()       {}
func (*EvalStmt) isStmt()    {}
func (*YieldStmt) isStmt()   {}
func (*RepeatBlock) isStmt() {}
func (*Pragma) isStmt()      {}

// System is a fully built semantic model.
type System struct {
	SourceName string

	// Variables maps lowercased names to their single Variable identity.
	// The first occurrence of a name defines it; every later mention
	// resolves to the same object.
	Variables map[string]*Variable

	// Externals are caller-provided bindings, including functions named
	// in USING clauses that the definition never assigns.
	Externals map[string]*Variable

	// Constants pools literal values so equal literals share identity.
	Constants []*Variable

	Blocks     map[string][]Stmt
	BlockNames []string
}

// NewSystem returns an empty system with the given externals bound.
func newSystem(externals map[string]any) *System {
	s := &System{
		Variables: map[string]*Variable{},
		Externals: map[string]*Variable{},
		Blocks:    map[string][]Stmt{},
	}
	for name, value := range externals {
		s.Externals[name] = &Variable{Name: name, Value: value, External: true}
	}
	return s
}

// ConstName renders a constant value the way definitions spell it.
func ConstName(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	}
	return ""
}
