package model

import "strings"

// Definition renders the system back to canonical ESDL source. The output
// reflects the model rather than the original text: names are lowercased,
// literals canonical, and expressions fully parenthesized.
func (s *System) Definition() string {
	var b strings.Builder
	writeStmts(&b, s.Blocks[InitBlockName], "")
	for _, name := range s.BlockNames {
		if name == InitBlockName {
			continue
		}
		b.WriteString("\nBEGIN " + name + "\n")
		writeStmts(&b, s.Blocks[name], "    ")
		b.WriteString("END " + name + "\n")
	}
	return b.String()
}

func writeStmts(b *strings.Builder, stmts []Stmt, indent string) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *RepeatBlock:
			b.WriteString(indent + "REPEAT (" + ExprString(s.Count) + ")\n")
			writeStmts(b, s.Statements, indent+"    ")
			b.WriteString(indent + "END REPEAT\n")
		default:
			b.WriteString(indent + StmtString(s) + "\n")
		}
	}
}

// StmtString renders one statement as a single line. RepeatBlock bodies are
// not included; Definition handles their nesting.
func StmtString(s Stmt) string {
	switch s := s.(type) {
	case *Assign:
		return ExprString(s.Dest) + " = " + ExprString(s.Src)
	case *ExprStmt:
		return ExprString(s.X)
	case *Store:
		return storeString(s)
	case *EvalStmt:
		out := "EVAL " + groupsString(s.Sources)
		if len(s.Evaluators) > 0 {
			parts := make([]string, len(s.Evaluators))
			for i, e := range s.Evaluators {
				parts[i] = ExprString(e)
			}
			out += " USING " + strings.Join(parts, ", ")
		}
		return out
	case *YieldStmt:
		return "YIELD " + groupsString(s.Sources)
	case *RepeatBlock:
		return "REPEAT (" + ExprString(s.Count) + ")"
	case *Pragma:
		return "`" + s.Text
	}
	return ""
}

func storeString(s *Store) string {
	// Unwrap the operator chain; operators apply innermost first, so
	// unwrapping outside-in reverses them back to USING order.
	var ops []string
	src := s.Source
	for {
		op, ok := src.(*Operator)
		if !ok {
			break
		}
		ops = append(ops, ExprString(op.Fn))
		src = op.Source
	}
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}

	fromCmd, selectCmd := "FROM ", " SELECT "
	var items []StreamItem
	switch src := src.(type) {
	case *Join:
		fromCmd, selectCmd = "JOIN ", " INTO "
		items = src.Sources
	case *Merge:
		items = src.Sources
	}

	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = itemString(it)
	}

	out := fromCmd + strings.Join(parts, ", ") + selectCmd + groupsString(s.Destinations)
	if len(ops) > 0 {
		out += " USING " + strings.Join(ops, ", ")
	}
	return out
}

func itemString(it StreamItem) string {
	switch it := it.(type) {
	case *GroupRef:
		return groupString(it)
	case *Call:
		return ExprString(it)
	}
	return ""
}

func groupString(g *GroupRef) string {
	if g.Limit != nil {
		return "(" + ExprString(g.Limit) + ") " + g.Group.Name
	}
	return g.Group.Name
}

func groupsString(gs []*GroupRef) string {
	parts := make([]string, len(gs))
	for i, g := range gs {
		parts[i] = groupString(g)
	}
	return strings.Join(parts, ", ")
}

// ExprString renders one expression.
func ExprString(x Expr) string {
	switch x := x.(type) {
	case nil:
		return ""
	case *VariableRef:
		return x.Var.Name
	case *UnaryOp:
		return "(" + x.Op + ExprString(x.Right) + ")"
	case *BinaryOp:
		return "(" + ExprString(x.Left) + x.Op + ExprString(x.Right) + ")"
	case *Call:
		parts := make([]string, len(x.Params))
		for i, p := range x.Params {
			if p.Value != nil {
				parts[i] = p.Name + "=" + ExprString(p.Value)
			} else {
				parts[i] = p.Name
			}
		}
		return ExprString(x.Fn) + "(" + strings.Join(parts, ", ") + ")"
	case *GetAttrib:
		return ExprString(x.Source) + "." + x.Attrib
	case *GetIndex:
		return ExprString(x.Source) + "[" + ExprString(x.Index) + "]"
	}
	return ""
}
