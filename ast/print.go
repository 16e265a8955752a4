package ast

import (
	"strings"

	"github.com/zooba/esdlc/lexer"
)

// Serialize renders the tree back to ESDL source. Expressions come out fully
// parenthesized, so serializing a parsed serialization is a fixed point.
func (t *Tree) Serialize() string {
	var b strings.Builder
	for _, id := range t.Roots {
		t.writeStatement(&b, id, 0)
	}
	return b.String()
}

// StatementString renders a single statement without trailing newline.
func (t *Tree) StatementString(id NodeID) string {
	var b strings.Builder
	t.writeStatement(&b, id, 0)
	return strings.TrimRight(b.String(), "\n")
}

func (t *Tree) writeStatement(b *strings.Builder, id NodeID, depth int) {
	indent := strings.Repeat("    ", depth)
	n := t.Node(id)
	switch n.Tag {
	case lexer.TagBegin:
		b.WriteString(indent + "BEGIN " + n.Value + "\n")
		for _, s := range n.Body {
			t.writeStatement(b, s, depth+1)
		}
		b.WriteString(indent + "END " + n.Value + "\n")
	case lexer.TagRepeat:
		count := ""
		if n.Data != None {
			count = t.ExprString(n.Data)
		}
		b.WriteString(indent + "REPEAT (" + count + ")\n")
		for _, s := range n.Body {
			t.writeStatement(b, s, depth+1)
		}
		b.WriteString(indent + "END REPEAT\n")
	case lexer.TagPragma:
		b.WriteString(indent + "`" + n.Value + "\n")
	case "=":
		b.WriteString(indent + t.ExprString(n.Left) + " = " + t.ExprString(n.Right) + "\n")
	default:
		b.WriteString(indent + t.ExprString(id) + "\n")
	}
}

// ExprString renders one expression subtree.
func (t *Tree) ExprString(id NodeID) string {
	if id == None {
		return ""
	}
	n := t.Node(id)
	switch n.Tag {
	case lexer.TagNumber, lexer.TagConstant, lexer.TagError:
		return n.Value
	case lexer.TagName:
		if n.Data != None {
			return "(" + t.ExprString(n.Data) + ") " + n.Value
		}
		return n.Value
	case "call":
		return t.ExprString(n.Left) + "(" + t.ExprString(n.Right) + ")"
	case "index":
		return t.ExprString(n.Left) + "[" + t.ExprString(n.Right) + "]"
	case ".":
		return t.ExprString(n.Left) + "." + t.ExprString(n.Right)
	case ",":
		return t.ExprString(n.Left) + ", " + t.ExprString(n.Right)
	case "=":
		return t.ExprString(n.Left) + "=" + t.ExprString(n.Right)
	case "+", "-":
		if n.Unary {
			return "(" + n.Tag + t.ExprString(n.Right) + ")"
		}
		return "(" + t.ExprString(n.Left) + n.Tag + t.ExprString(n.Right) + ")"
	case "*", "/", "%", "^":
		return "(" + t.ExprString(n.Left) + n.Tag + t.ExprString(n.Right) + ")"
	}
	if IsCommand(n.Tag) {
		out := n.Tag + " " + t.ExprString(n.Right)
		if n.Left != None {
			out = t.ExprString(n.Left) + " " + out
		}
		return out
	}
	return n.Value
}
