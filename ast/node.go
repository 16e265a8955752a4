// Package ast parses ESDL source into a syntax tree and re-serializes it.
//
// Trees are arenas: nodes live in a flat slice and refer to each other by
// index, so a tree can be copied or discarded without chasing pointers.
package ast

import (
	"strconv"

	"github.com/zooba/esdlc/lexer"
)

// NodeID indexes a node within its Tree. None marks an absent child.
type NodeID int32

// None is the null node reference.
const None NodeID = -1

// Category classifies a node for dispatch.
type Category int

const (
	// CatExpr nodes are operands and operators inside expressions.
	CatExpr Category = iota
	// CatStatement nodes are statement roots (commands, assignments, pragmas).
	CatStatement
	// CatBlock nodes are BEGIN and REPEAT blocks with a Body.
	CatBlock
)

// Node is one syntax tree node. Which fields are meaningful depends on Tag:
// operands use Value/Number, operators use Left/Right, blocks use Body, and
// sized group names point at their limit expression through Data.
type Node struct {
	Tag      string
	Category Category

	Attack  int
	Defence int

	Left   NodeID
	Right  NodeID
	Parent NodeID

	// Data holds the limit expression of a sized group name, the count
	// expression of a REPEAT block, or the argument list of a call.
	Data NodeID

	// Close links an opening block node to its END statement position.
	Close NodeID

	// Body lists the statements of a block node in source order.
	Body []NodeID

	Value  string
	Number float64
	Unary  bool

	Line int
	Col  int
}

// Tree is a parsed ESDL definition. Roots lists top-level statements in
// source order.
type Tree struct {
	nodes []Node
	Roots []NodeID
}

// Node returns the node for id. id must be valid.
func (t *Tree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int { return len(t.nodes) }

func (t *Tree) add(n Node) NodeID {
	n.Left, n.Right, n.Parent, n.Data, n.Close = None, None, None, None, None
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

func (t *Tree) setLeft(parent, child NodeID) {
	t.nodes[parent].Left = child
	if child != None {
		t.nodes[child].Parent = parent
	}
}

func (t *Tree) setRight(parent, child NodeID) {
	t.nodes[parent].Right = child
	if child != None {
		t.nodes[child].Parent = parent
	}
}

// IsCommand reports whether tag is one of the statement command keywords.
func IsCommand(tag string) bool {
	switch tag {
	case lexer.TagFrom, lexer.TagSelect, lexer.TagUsing, lexer.TagJoin,
		lexer.TagInto, lexer.TagYield, lexer.TagEval:
		return true
	}
	return false
}

// ListOf flattens a comma chain into its elements in source order. A nil or
// non-comma node is a single-element list; None is empty.
func (t *Tree) ListOf(id NodeID) []NodeID {
	if id == None {
		return nil
	}
	n := t.Node(id)
	if n.Tag != "," {
		return []NodeID{id}
	}
	return append(t.ListOf(n.Left), t.ListOf(n.Right)...)
}

// NumberValue parses a number node's canonical text.
func (t *Tree) NumberValue(id NodeID) (float64, bool) {
	n := t.Node(id)
	if n.Tag != lexer.TagNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
