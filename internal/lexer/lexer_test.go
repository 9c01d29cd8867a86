package lexer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vikkkko/zinc/internal/token"
)

func lexAll(t *testing.T, src string) []token.Token {
	t.Helper()
	l, err := New("test.zn", strings.NewReader(src))
	require.NoError(t, err)
	var toks []token.Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func TestLexerSymbolsAndKeywords(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []token.Kind
	}{
		{"fn signature", "fn main(a: u8, b: u8) -> u8 {", []token.Kind{
			token.KW_FN, token.IDENT, token.LPAREN, token.IDENT, token.COLON, token.IDENT,
			token.COMMA, token.IDENT, token.COLON, token.IDENT, token.RPAREN, token.ARROW,
			token.IDENT, token.LBRACE, token.EOF,
		}},
		{"comparisons", "a == b != c <= d >= e", []token.Kind{
			token.IDENT, token.EQ_EQ, token.IDENT, token.BANG_EQ, token.IDENT, token.LE,
			token.IDENT, token.GE, token.IDENT, token.EOF,
		}},
		{"path and range", "std::crypto::sha256 0..10 0..=10", []token.Kind{
			token.IDENT, token.COLON_COLON, token.IDENT, token.COLON_COLON, token.IDENT,
			token.INT_LITERAL, token.DOT_DOT, token.INT_LITERAL,
			token.INT_LITERAL, token.DOT_DOT_EQ, token.INT_LITERAL, token.EOF,
		}},
		{"bools", "true false", []token.Kind{token.BOOL_LITERAL, token.BOOL_LITERAL, token.EOF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := lexAll(t, tt.src)
			got := make([]token.Kind, len(toks))
			for i, tok := range toks {
				got[i] = tok.Kind
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestLexerNumberLiterals(t *testing.T) {
	tests := []struct{ src, want string }{
		{"0x1F", "0x1F"},
		{"0b1010", "0b1010"},
		{"42u8", "42u8"},
		{"7field", "7field"},
	}
	for _, tt := range tests {
		toks := lexAll(t, tt.src)
		require.Equal(t, token.INT_LITERAL, toks[0].Kind)
		require.Equal(t, tt.want, toks[0].Lexeme)
	}
}

func TestLexerStringEscapes(t *testing.T) {
	toks := lexAll(t, `"line1\nline2\t\"quoted\""`)
	require.Equal(t, token.STRING_LITERAL, toks[0].Kind)
	require.Equal(t, "line1\nline2\t\"quoted\"", toks[0].Lexeme)
}

func TestLexerComments(t *testing.T) {
	toks := lexAll(t, "a // comment\n/* block /* nested */ still */ b")
	require.Equal(t, []token.Kind{token.IDENT, token.IDENT, token.EOF}, []token.Kind{toks[0].Kind, toks[1].Kind, toks[2].Kind})
}

func TestLexerUnterminatedBlockComment(t *testing.T) {
	l, err := New("test.zn", strings.NewReader("/* never closes"))
	require.NoError(t, err)
	_, err = l.Next()
	require.Error(t, err)
}

func TestLexerInvalidCharacter(t *testing.T) {
	l, err := New("test.zn", strings.NewReader("a $ b"))
	require.NoError(t, err)
	_, err = l.Next()
	require.NoError(t, err)
	_, err = l.Next()
	require.Error(t, err)
}

func TestPeekerLookahead(t *testing.T) {
	l, err := New("test.zn", strings.NewReader("a b"))
	require.NoError(t, err)
	p := NewPeeker(l)

	peeked, err := p.Peek()
	require.NoError(t, err)
	require.Equal(t, "a", peeked.Lexeme)

	peeked2, err := p.Peek()
	require.NoError(t, err)
	require.Equal(t, peeked, peeked2)

	next, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, "a", next.Lexeme)

	next2, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, "b", next2.Lexeme)
}
