package lexer

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tags(toks []Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Tag
	}
	return out
}

func TestTokenizeNumbers(t *testing.T) {
	toks := Tokenize("0 0.0 1. 1.2 1e2 2.e1 3.4e7 1e-4 1e+4 3.2e-2 4.4e+3")

	require.Len(t, toks, 12)
	for _, tok := range toks[:11] {
		assert.Equal(t, TagNumber, tok.Tag)
	}
	assert.Equal(t, TagEOS, toks[11].Tag)

	want := []float64{0, 0, 1, 1.2, 100, 20, 3.4e7, 1e-4, 1e4, 3.2e-2, 4.4e3}
	for i, tok := range toks[:11] {
		f, err := strconv.ParseFloat(tok.Value, 64)
		require.NoError(t, err, tok.Value)
		assert.Equal(t, want[i], f)
	}

	// Equal-valued spellings lex to the same canonical text.
	assert.Equal(t, toks[0].Value, toks[1].Value)
	assert.Equal(t, "100", toks[4].Value)
	assert.Equal(t, "20", toks[5].Value)
}

func TestTokenizeConstants(t *testing.T) {
	toks := Tokenize("true True TRUE false False FALSE none None NONE null Null NULL")

	require.Len(t, toks, 13)
	want := []string{
		"TRUE", "TRUE", "TRUE",
		"FALSE", "FALSE", "FALSE",
		"NONE", "NONE", "NONE",
		"NULL", "NULL", "NULL",
	}
	for i, tok := range toks[:12] {
		assert.Equal(t, TagConstant, tok.Tag)
		assert.Equal(t, want[i], tok.Value)
	}
}

func TestTokenizeOperatorRuns(t *testing.T) {
	toks := Tokenize("+-+")

	require.Len(t, toks, 4)
	assert.Equal(t, []string{"+", "-", "+", "eos"}, tags(toks))
}

func TestTokenizeKeywords(t *testing.T) {
	toks := Tokenize("FROM from From EVAL EVALUATE evaluate")

	require.Len(t, toks, 7)
	assert.Equal(t, []string{
		TagFrom, TagFrom, TagFrom, TagEval, TagEval, TagEval, TagEOS,
	}, tags(toks))
}

func TestTokenizeDotsSeparate(t *testing.T) {
	toks := Tokenize("a.b.c")

	require.Len(t, toks, 6)
	assert.Equal(t, []string{TagName, ".", TagName, ".", TagName, TagEOS}, tags(toks))
}

func TestTokenizeComments(t *testing.T) {
	for _, src := range []string{"a # rest", "a ; rest", "a // rest"} {
		toks := Tokenize(src)
		require.Len(t, toks, 3, src)
		assert.Equal(t, TagName, toks[0].Tag)
		assert.Equal(t, TagComment, toks[1].Tag)
		assert.Equal(t, TagEOS, toks[2].Tag)
	}

	// A single slash is division, not a comment.
	toks := Tokenize("a / b")
	require.Len(t, toks, 4)
	assert.Equal(t, []string{TagName, "/", TagName, TagEOS}, tags(toks))
}

func TestTokenizePragma(t *testing.T) {
	toks := Tokenize("`uses mutators\nx = 1")

	require.NotEmpty(t, toks)
	assert.Equal(t, TagPragma, toks[0].Tag)
	assert.Equal(t, "uses mutators", toks[0].Value)
	assert.Equal(t, TagEOS, toks[1].Tag)
}

func TestTokenizeContinuation(t *testing.T) {
	toks := Tokenize("FROM population \\\nSELECT parents")

	assert.Equal(t, []string{TagFrom, TagName, TagSelect, TagName, TagEOS}, tags(toks))
}

func TestTokenizeContinuationMidLine(t *testing.T) {
	// A backslash not at the end of a line is an error token.
	toks := Tokenize("a \\ b")

	require.Len(t, toks, 4)
	assert.Equal(t, TagError, toks[1].Tag)
}

func TestTokenizeCollapsesBlankLines(t *testing.T) {
	toks := Tokenize("a = 1\n\n\n\nb = 2")

	assert.Equal(t, []string{
		TagName, "=", TagNumber, TagEOS,
		TagName, "=", TagNumber, TagEOS,
	}, tags(toks))
}

func TestTokenizeAlwaysEndsWithEOS(t *testing.T) {
	for _, src := range []string{"", "   ", "a", "a\n", "a\n\n"} {
		toks := Tokenize(src)
		require.NotEmpty(t, toks, src)
		assert.Equal(t, TagEOS, toks[len(toks)-1].Tag, src)
	}
}

func TestTokenizeUnknownCharacter(t *testing.T) {
	toks := Tokenize("a ? b")

	require.Len(t, toks, 4)
	assert.Equal(t, TagError, toks[1].Tag)
	assert.Equal(t, "?", toks[1].Value)
}

func TestTokenPositions(t *testing.T) {
	toks := Tokenize("a = 1\nbb = 2")

	require.GreaterOrEqual(t, len(toks), 7)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 1, toks[0].Col)
	assert.Equal(t, 2, toks[4].Line)
	assert.Equal(t, 1, toks[4].Col)
	assert.Equal(t, 2, toks[5].Line)
	assert.Equal(t, 4, toks[5].Col)
}
