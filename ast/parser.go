package ast

import (
	"strconv"
	"strings"

	"github.com/zooba/esdlc/diag"
	"github.com/zooba/esdlc/lexer"
)

// Operator strengths. Every operator carries an attack (how hard an incoming
// token fights for position) and a defence (how hard a placed node resists
// being climbed over). An incoming operator climbs the rightmost path of the
// tree past every node whose defence its attack exceeds, and becomes the
// right child of the first node that resists. Lower numbers bind tighter.
//
// Equal-strength pairs decide associativity: attack above defence gives left
// association (+ - * / %), attack below defence gives right association (^ =).
type strength struct {
	attack  int
	defence int
}

var strengths = map[string]strength{
	".": {16, 15},
	"^": {22, 23},
	"*": {31, 30},
	"/": {31, 30},
	"%": {31, 30},
	"+": {41, 40},
	"-": {41, 40},
	"=": {51, 52},
	",": {61, 60},

	lexer.TagUsing:  {94, 95},
	lexer.TagSelect: {92, 93},
	lexer.TagInto:   {92, 93},
	lexer.TagFrom:   {98, 91},
	lexer.TagJoin:   {98, 91},
	lexer.TagEval:   {98, 91},
	lexer.TagYield:  {98, 91},
}

const (
	// Call and index suffixes bind past '.' so a.b(x) calls a.b.
	suffixAttack = 16
	// Unary sign binds tighter than * / but looser than ^, so -2^2
	// negates the power while -2*2 negates the operand.
	unaryDefence = 25
)

// Parse tokenizes and parses source. It always returns a tree holding
// whatever could be recovered; check the result for errors before trusting
// the tree's shape.
func Parse(source string) (*Tree, *diag.Result) {
	p := &parser{
		toks: lexer.Tokenize(source),
		tree: &Tree{},
		res:  &diag.Result{},
	}
	p.parse()
	return p.tree, p.res
}

type parser struct {
	toks []lexer.Token
	pos  int
	tree *Tree
	res  *diag.Result
}

func (p *parser) errorf(code string, tok lexer.Token, format string, args ...any) {
	p.res.Add(diag.New(code, diag.Pos{Line: tok.Line, Col: tok.Col}, format, args...))
}

func (p *parser) peek() lexer.Token {
	for i := p.pos; i < len(p.toks); i++ {
		if p.toks[i].Tag != lexer.TagComment {
			return p.toks[i]
		}
	}
	return lexer.Token{Tag: lexer.TagEOS}
}

func (p *parser) next() lexer.Token {
	for p.pos < len(p.toks) {
		tok := p.toks[p.pos]
		p.pos++
		if tok.Tag != lexer.TagComment {
			return tok
		}
	}
	return lexer.Token{Tag: lexer.TagEOS}
}

// skipToEOS abandons the rest of the current statement.
func (p *parser) skipToEOS() {
	for p.pos < len(p.toks) && p.toks[p.pos].Tag != lexer.TagEOS {
		p.pos++
	}
}

func (p *parser) parse() {
	var open []NodeID

	appendStmt := func(id NodeID) {
		if id == None {
			return
		}
		if len(open) > 0 {
			top := open[len(open)-1]
			p.tree.nodes[top].Body = append(p.tree.nodes[top].Body, id)
		} else {
			p.tree.Roots = append(p.tree.Roots, id)
		}
	}

	for p.pos < len(p.toks) {
		tok := p.toks[p.pos]
		switch tok.Tag {
		case lexer.TagEOS, lexer.TagComment:
			p.pos++

		case lexer.TagError:
			p.errorf(diag.CodeUnknownCharacter, tok, "unknown character %q", tok.Value)
			p.pos++

		case lexer.TagPragma:
			p.pos++
			id := p.tree.add(Node{
				Tag: lexer.TagPragma, Category: CatStatement,
				Value: tok.Value, Line: tok.Line, Col: tok.Col,
			})
			appendStmt(id)

		case lexer.TagBegin:
			p.pos++
			name := p.peek()
			if name.Tag != lexer.TagName {
				p.errorf(diag.CodeExpectedBlockName, tok, "expected block name")
				p.skipToEOS()
				continue
			}
			p.next()
			id := p.tree.add(Node{
				Tag: lexer.TagBegin, Category: CatBlock,
				Value: name.Value, Line: tok.Line, Col: tok.Col,
			})
			appendStmt(id)
			open = append(open, id)

		case lexer.TagRepeat:
			p.pos++
			count := None
			if p.peek().Tag == "(" {
				p.next()
				count = p.parseExpr(")")
			}
			if count == None {
				p.errorf(diag.CodeExpectedRepeatCount, tok, "expected repeat count")
			}
			id := p.tree.add(Node{
				Tag: lexer.TagRepeat, Category: CatBlock,
				Line: tok.Line, Col: tok.Col,
			})
			if count != None {
				p.tree.nodes[id].Data = count
				p.tree.nodes[count].Parent = id
			}
			appendStmt(id)
			open = append(open, id)

		case lexer.TagEnd:
			p.pos++
			name := p.peek()
			if name.Tag != lexer.TagName && name.Tag != lexer.TagRepeat {
				p.errorf(diag.CodeExpectedBlockName, tok, "expected block name")
				p.skipToEOS()
				continue
			}
			p.next()
			if len(open) == 0 {
				p.errorf(diag.CodeUnmatchedEnd, tok, "unmatched END")
				continue
			}
			top := open[len(open)-1]
			topNode := p.tree.Node(top)
			switch {
			case name.Tag == lexer.TagRepeat && topNode.Tag != lexer.TagRepeat:
				p.errorf(diag.CodeBlockNesting, tok, "expected END %s", topNode.Value)
			case name.Tag == lexer.TagName && topNode.Tag == lexer.TagRepeat:
				p.errorf(diag.CodeBlockNesting, tok, "expected END REPEAT")
			case name.Tag == lexer.TagName && !strings.EqualFold(name.Value, topNode.Value):
				p.errorf(diag.CodeBlockNesting, tok, "expected END %s", topNode.Value)
			}
			end := p.tree.add(Node{Tag: lexer.TagEnd, Line: tok.Line, Col: tok.Col})
			p.tree.nodes[top].Close = end
			open = open[:len(open)-1]

		default:
			id := p.parseExpr("")
			if id != None {
				p.tree.nodes[id].Category = CatStatement
			}
			appendStmt(id)
		}
	}

	for _, id := range open {
		n := p.tree.Node(id)
		p.res.Add(diag.New(diag.CodeUnexpectedEnd,
			diag.Pos{Line: n.Line, Col: n.Col},
			"unexpected end of definition"))
	}
}

// parseExpr parses one expression with the attack/defence climb. closing
// names the bracket that terminates a subexpression, or is empty for a
// statement-level expression ending at end-of-statement. Returns None when
// nothing could be parsed.
func (p *parser) parseExpr(closing string) NodeID {
	root, cur := None, None
	expectOperand := true
	var last lexer.Token

	insertOperand := func(id NodeID) {
		if root == None {
			root = id
		} else {
			p.tree.setRight(cur, id)
		}
		cur = id
		expectOperand = false
	}

	insertOperator := func(id NodeID) {
		if root == None {
			root, cur = id, id
			expectOperand = true
			return
		}
		attack := p.tree.Node(id).Attack
		node, winner := cur, None
		for node != None {
			if attack > p.tree.Node(node).Defence {
				node = p.tree.Node(node).Parent
			} else {
				winner = node
				break
			}
		}
		if winner == None {
			p.tree.setLeft(id, root)
			p.tree.nodes[id].Parent = None
			root = id
		} else {
			displaced := p.tree.Node(winner).Right
			p.tree.setRight(winner, id)
			p.tree.setLeft(id, displaced)
		}
		cur = id
		expectOperand = true
	}

loop:
	for p.pos < len(p.toks) {
		tok := p.toks[p.pos]
		last = tok
		switch {
		case tok.Tag == lexer.TagComment:
			p.pos++

		case tok.Tag == lexer.TagEOS:
			if closing != "" {
				p.errorf(diag.CodeUnmatchedBracket, tok, "unmatched bracket")
			}
			break loop

		case tok.Tag == lexer.TagError:
			p.errorf(diag.CodeUnknownCharacter, tok, "unknown character %q", tok.Value)
			p.pos++

		case tok.Tag == closing:
			p.pos++
			break loop

		case tok.Tag == ")" || tok.Tag == "]":
			p.errorf(diag.CodeUnmatchedBracket, tok, "unmatched %q", tok.Tag)
			p.pos++
			break loop

		case tok.Tag == lexer.TagNumber:
			if !expectOperand {
				p.errorf(diag.CodeInvalidSyntax, tok, "invalid syntax")
				p.pos++
				continue
			}
			p.pos++
			f, err := strconv.ParseFloat(tok.Value, 64)
			if err != nil {
				p.errorf(diag.CodeInvalidNumber, tok, "invalid number %q", tok.Value)
				insertOperand(p.tree.add(Node{
					Tag: lexer.TagError, Value: tok.Value,
					Line: tok.Line, Col: tok.Col,
				}))
				continue
			}
			insertOperand(p.tree.add(Node{
				Tag: lexer.TagNumber, Value: tok.Value, Number: f,
				Line: tok.Line, Col: tok.Col,
			}))

		case tok.Tag == lexer.TagName || tok.Tag == lexer.TagConstant:
			if !expectOperand {
				p.errorf(diag.CodeInvalidSyntax, tok, "invalid syntax")
				p.pos++
				continue
			}
			p.pos++
			insertOperand(p.tree.add(Node{
				Tag: tok.Tag, Value: tok.Value,
				Line: tok.Line, Col: tok.Col,
			}))

		case tok.Tag == "(" && expectOperand:
			p.pos++
			sub := p.parseExpr(")")
			if sub == None {
				p.errorf(diag.CodeInvalidSyntax, tok, "invalid syntax")
				continue
			}
			if nxt := p.peek(); nxt.Tag == lexer.TagName {
				// "(expr) name" is a sized group destination.
				p.next()
				id := p.tree.add(Node{
					Tag: lexer.TagName, Value: nxt.Value,
					Line: nxt.Line, Col: nxt.Col,
				})
				p.tree.nodes[id].Data = sub
				p.tree.nodes[sub].Parent = id
				insertOperand(id)
				continue
			}
			// Parenthesized subexpressions are atomic to later operators.
			p.tree.nodes[sub].Attack = 0
			p.tree.nodes[sub].Defence = 0
			insertOperand(sub)

		case tok.Tag == "(":
			p.pos++
			id := p.tree.add(Node{
				Tag: "call", Attack: suffixAttack,
				Line: tok.Line, Col: tok.Col,
			})
			insertOperator(id)
			args := p.parseExpr(")")
			if args != None {
				p.tree.setRight(id, args)
			}
			cur = id
			expectOperand = false

		case tok.Tag == "[":
			if expectOperand {
				p.errorf(diag.CodeInvalidSyntax, tok, "invalid syntax")
				p.pos++
				continue
			}
			p.pos++
			id := p.tree.add(Node{
				Tag: "index", Attack: suffixAttack,
				Line: tok.Line, Col: tok.Col,
			})
			insertOperator(id)
			sub := p.parseExpr("]")
			if sub == None {
				p.errorf(diag.CodeExpectedIndex, tok, "expected index expression")
			} else {
				p.tree.setRight(id, sub)
			}
			cur = id
			expectOperand = false

		case (tok.Tag == "+" || tok.Tag == "-") && expectOperand:
			p.pos++
			id := p.tree.add(Node{
				Tag: tok.Tag, Unary: true, Defence: unaryDefence,
				Line: tok.Line, Col: tok.Col,
			})
			if root == None {
				root = id
			} else {
				p.tree.setRight(cur, id)
			}
			cur = id

		case tok.Tag == "{" || tok.Tag == "}":
			p.errorf(diag.CodeInvalidSyntax, tok, "invalid syntax")
			p.pos++

		default:
			s, ok := strengths[tok.Tag]
			if !ok || (expectOperand && !IsCommand(tok.Tag)) {
				p.errorf(diag.CodeInvalidSyntax, tok, "invalid syntax")
				p.pos++
				continue
			}
			p.pos++
			insertOperator(p.tree.add(Node{
				Tag: tok.Tag, Attack: s.attack, Defence: s.defence,
				Line: tok.Line, Col: tok.Col,
			}))
		}
	}

	// A trailing operator with no operand ends the statement early. Commands
	// with missing groups are reported by the validator instead.
	if expectOperand && cur != None && !IsCommand(p.tree.Node(cur).Tag) {
		p.errorf(diag.CodeUnexpectedEnd, last, "unexpected end of statement")
	}
	return root
}
