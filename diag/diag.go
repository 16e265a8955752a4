// Package diag collects the errors and warnings produced while compiling an
// ESDL definition.
//
// Compilation never aborts on a recoverable finding: each stage records what
// it found into a Result and carries on, so a single pass reports every
// problem in the definition. A Result gates execution; a system whose Result
// has errors must not be executed.
//
// Codes are stable identifiers. Codes beginning with "W" are warnings and do
// not invalidate a Result.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Pos is a 1-based line/column position in the original source text.
// The zero value means "position unknown".
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Error is a single compiler finding. It satisfies the error interface so
// individual findings can be returned through normal error paths.
type Error struct {
	Code    string
	Message string
	Pos     Pos
}

// New creates a finding with the given code at the given position.
func New(code string, pos Pos, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// IsWarning reports whether this finding is a warning rather than an error.
func (e *Error) IsWarning() bool {
	return strings.HasPrefix(e.Code, "W")
}

func (e *Error) Error() string {
	if e.Pos.Col > 0 {
		return fmt.Sprintf("[%s] %s (line %d, char %d)", e.Code, e.Message, e.Pos.Line, e.Pos.Col)
	}
	if e.Pos.Line > 0 {
		return fmt.Sprintf("[%s] %s (line %d)", e.Code, e.Message, e.Pos.Line)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Result accumulates findings from one or more compilation stages.
// The zero value is ready to use.
type Result struct {
	found []*Error
}

// Add records findings. Nil entries are ignored.
func (r *Result) Add(errs ...*Error) {
	for _, e := range errs {
		if e != nil {
			r.found = append(r.found, e)
		}
	}
}

// Merge moves every finding from other into r.
func (r *Result) Merge(other *Result) {
	if other != nil {
		r.found = append(r.found, other.found...)
	}
}

// Valid reports whether the result contains no errors. Warnings alone do not
// make a result invalid.
func (r *Result) Valid() bool {
	for _, e := range r.found {
		if !e.IsWarning() {
			return false
		}
	}
	return true
}

// Errors returns the recorded errors in reporting order.
func (r *Result) Errors() []*Error {
	var out []*Error
	for _, e := range r.sorted() {
		if !e.IsWarning() {
			out = append(out, e)
		}
	}
	return out
}

// Warnings returns the recorded warnings in reporting order.
func (r *Result) Warnings() []*Error {
	var out []*Error
	for _, e := range r.sorted() {
		if e.IsWarning() {
			out = append(out, e)
		}
	}
	return out
}

// All returns every finding, errors and warnings together, in reporting
// order: by line, then code, then message.
func (r *Result) All() []*Error {
	return r.sorted()
}

func (r *Result) sorted() []*Error {
	out := make([]*Error, len(r.found))
	copy(out, r.found)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line < b.Pos.Line
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Message < b.Message
	})
	return out
}

// String formats every finding, one per line.
func (r *Result) String() string {
	var sb strings.Builder
	for i, e := range r.sorted() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.Error())
	}
	return sb.String()
}

// Stable finding codes. The E0xxx range is produced by the parser, E1xxx by
// statement-level structure checks, E2xxx by the AST validator and E3xxx by
// the semantic model validator.
const (
	CodeInvalidSyntax       = "E0001"
	CodeUnexpectedEnd       = "E0002"
	CodeExpectedBlockName   = "E0004"
	CodeBlockNesting        = "E0005"
	CodeUnmatchedEnd        = "E0006"
	CodeInvalidFunctionCall = "E1001"
	CodeInvalidGroup        = "E1002"
	CodeExpectedSelect      = "E1003"
	CodeExpectedInto        = "E1005"
	CodeExpectedGroup       = "E1006"
	CodeInvalidNumber       = "E1007"
	CodeUnmatchedBracket    = "E1008"
	CodeExpectedParamValue  = "E1009"
	CodeInvalidParamName    = "E1010"
	CodeGeneratorAsDest     = "E1011"
	CodeExpectedIndex       = "E1012"
	CodeExpectedRepeatCount = "E1013"
	CodeUnexpectedGroupSize = "E1014"
	CodeRepeatedDest        = "E2001"
	CodeRepeatedGroup       = "E2002"
	CodeCannotAssign        = "E2003"
	CodeInvalidAssignTarget = "E2004"
	CodeRepeatedParamName   = "E2005"
	CodeInaccessibleGroup   = "E3002"
	CodeAmbiguousGroup      = "E3003"
	CodeUnknownCharacter    = "W0001"
	CodeUnusedExternal      = "W3001"
	CodeAmbiguousBlockName  = "W3002"
	CodeInternalName        = "W3003"
	CodeUninitializedName   = "W3004"
)
