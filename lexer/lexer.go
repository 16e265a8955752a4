// Package lexer turns ESDL source text into a flat sequence of typed tokens.
//
// The lexer never fails: characters it does not recognise become tokens with
// the "error" tag, which the parser records as a diagnostic and skips. Every
// token sequence produced by Tokenize ends with an end-of-statement token.
package lexer

import (
	"strconv"
	"strings"
	"unicode"
)

// Token tags. Single-character operators use their own spelling as the tag,
// so a token's tag doubles as its symbol-table key.
const (
	TagNumber   = "number"
	TagName     = "name"
	TagConstant = "constant"
	TagComment  = "comment"
	TagPragma   = "pragma"
	TagContinue = "continue"
	TagEOS      = "eos"
	TagError    = "error"

	TagFrom   = "FROM"
	TagSelect = "SELECT"
	TagUsing  = "USING"
	TagJoin   = "JOIN"
	TagInto   = "INTO"
	TagYield  = "YIELD"
	TagEval   = "EVAL"
	TagBegin  = "BEGIN"
	TagRepeat = "REPEAT"
	TagEnd    = "END"
)

// Token is a single lexed token. Line and Col are 1-based positions into the
// original source. Tokens are immutable once produced.
type Token struct {
	Tag   string
	Value string
	Line  int
	Col   int
}

// Equal reports whether two tokens have the same tag and text, ignoring
// position.
func (t Token) Equal(o Token) bool {
	return t.Tag == o.Tag && t.Value == o.Value
}

// Before reports whether t appears before o in the source.
func (t Token) Before(o Token) bool {
	if t.Line != o.Line {
		return t.Line < o.Line
	}
	return t.Col < o.Col
}

func (t Token) String() string {
	if t.Tag == TagEOS {
		return "<eos>"
	}
	return t.Value
}

// keyword tags by upper-cased spelling. EVALUATE is an accepted alternative
// spelling of EVAL.
var keywords = map[string]string{
	"FROM": TagFrom, "SELECT": TagSelect, "USING": TagUsing,
	"JOIN": TagJoin, "INTO": TagInto, "YIELD": TagYield,
	"EVAL": TagEval, "EVALUATE": TagEval,
	"BEGIN": TagBegin, "REPEAT": TagRepeat, "END": TagEnd,
}

var constants = map[string]string{
	"TRUE": "TRUE", "FALSE": "FALSE", "NULL": "NULL", "NONE": "NONE",
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNamePart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Tokenize lexes source and returns its tokens with continuations folded and
// runs of blank lines collapsed into a single end-of-statement token. The
// result always ends with one TagEOS token.
func Tokenize(source string) []Token {
	raw := scan(source)

	var out []Token
	for i := 0; i < len(raw); i++ {
		tok := raw[i]
		switch tok.Tag {
		case TagContinue:
			// A backslash directly before the line break joins the two
			// lines into one statement.
			if i+1 < len(raw) && raw[i+1].Tag == TagEOS {
				i++
				continue
			}
			out = append(out, Token{Tag: TagError, Value: tok.Value, Line: tok.Line, Col: tok.Col})
		case TagEOS:
			if len(out) == 0 || out[len(out)-1].Tag == TagEOS {
				continue
			}
			out = append(out, tok)
		default:
			out = append(out, tok)
		}
	}

	last := Token{Tag: TagEOS, Value: "\n", Line: 1, Col: 1}
	if n := len(raw); n > 0 {
		t := raw[n-1]
		last.Line, last.Col = t.Line, t.Col
	}
	if len(out) == 0 || out[len(out)-1].Tag != TagEOS {
		out = append(out, last)
	}
	return out
}

// scan is the raw mode machine. It emits every token including continuation
// markers and one TagEOS per line break.
func scan(source string) []Token {
	src := []rune(strings.TrimSpace(source))
	var out []Token

	line, col := 1, 1
	i := 0
	emit := func(tag, value string, startCol int) {
		out = append(out, Token{Tag: tag, Value: value, Line: line, Col: startCol})
	}

	for i <= len(src) {
		var r rune
		if i < len(src) {
			r = src[i]
		}
		switch {
		case unicode.IsDigit(r):
			start, startCol := i, col
			for i < len(src) {
				c := src[i]
				if unicode.IsDigit(c) || c == '.' || c == 'e' || c == 'E' {
					i, col = i+1, col+1
					continue
				}
				if (c == '+' || c == '-') && (src[i-1] == 'e' || src[i-1] == 'E') {
					i, col = i+1, col+1
					continue
				}
				break
			}
			text := string(src[start:i])
			// Number tokens carry the canonical spelling of their value so
			// that "1e2" and "100" lex identically. Text that does not parse
			// is kept as written for the parser to report.
			if f, err := strconv.ParseFloat(text, 64); err == nil {
				text = strconv.FormatFloat(f, 'g', -1, 64)
			}
			emit(TagNumber, text, startCol)

		case isNameStart(r):
			start, startCol := i, col
			for i < len(src) && isNamePart(src[i]) {
				i, col = i+1, col+1
			}
			word := string(src[start:i])
			upper := strings.ToUpper(word)
			if tag, ok := keywords[upper]; ok {
				emit(tag, word, startCol)
			} else if canon, ok := constants[upper]; ok {
				emit(TagConstant, canon, startCol)
			} else {
				emit(TagName, word, startCol)
			}

		case strings.ContainsRune("()[]{}.,+-*%^=", r):
			emit(string(r), string(r), col)
			i, col = i+1, col+1

		case r == '/':
			if i+1 < len(src) && src[i+1] == '/' {
				start, startCol := i, col
				for i < len(src) && src[i] != '\n' && src[i] != '\r' {
					i, col = i+1, col+1
				}
				emit(TagComment, string(src[start:i]), startCol)
			} else {
				emit("/", "/", col)
				i, col = i+1, col+1
			}

		case r == '#' || r == ';':
			start, startCol := i, col
			for i < len(src) && src[i] != '\n' && src[i] != '\r' {
				i, col = i+1, col+1
			}
			emit(TagComment, string(src[start:i]), startCol)

		case r == '`':
			startCol := col
			i, col = i+1, col+1
			start := i
			for i < len(src) && src[i] != '\n' && src[i] != '\r' {
				i, col = i+1, col+1
			}
			emit(TagPragma, string(src[start:i]), startCol)

		case r == '\\':
			emit(TagContinue, "\\", col)
			i, col = i+1, col+1

		case r == '\r' || r == '\n':
			emit(TagEOS, "\n", col)
			if r == '\r' && i+1 < len(src) && src[i+1] == '\n' {
				i++
			}
			i++
			line, col = line+1, 1

		case r == ' ' || r == '\t' || r == '\v':
			i, col = i+1, col+1

		case i >= len(src):
			// end of input
			i++

		default:
			emit(TagError, string(r), col)
			i, col = i+1, col+1
		}
	}

	out = append(out, Token{Tag: TagEOS, Value: "\n", Line: line, Col: col})
	return out
}
