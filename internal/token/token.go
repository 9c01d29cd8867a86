// Package token defines the lexical tokens produced by internal/lexer and
// consumed by internal/parser.
package token

import "github.com/vikkkko/zinc/internal/diag"

// Kind identifies the lexical category of a Token.
type Kind int

const (
	ILLEGAL Kind = iota
	EOF

	IDENT
	INT_LITERAL
	BOOL_LITERAL
	STRING_LITERAL

	// Keywords
	KW_LET
	KW_MUT
	KW_CONST
	KW_FN
	KW_STRUCT
	KW_ENUM
	KW_IMPL
	KW_TYPE
	KW_USE
	KW_MOD
	KW_CONTRACT
	KW_IF
	KW_ELSE
	KW_MATCH
	KW_FOR
	KW_WHILE
	KW_IN
	KW_RETURN
	KW_BREAK
	KW_CONTINUE
	KW_AS
	KW_SELF
	KW_SELF_TYPE
	KW_TRUE
	KW_FALSE

	// Symbols
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	AMP
	AMP_AMP
	PIPE
	PIPE_PIPE
	CARET
	CARET_CARET
	BANG
	TILDE
	SHL
	SHR
	EQ
	EQ_EQ
	BANG_EQ
	LT
	LE
	GT
	GE
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	LBRACKET
	RBRACKET
	COMMA
	SEMI
	COLON
	COLON_COLON
	DOT
	DOT_DOT
	DOT_DOT_EQ
	ARROW
	FAT_ARROW
)

var keywords = map[string]Kind{
	"let": KW_LET, "mut": KW_MUT, "const": KW_CONST, "fn": KW_FN,
	"struct": KW_STRUCT, "enum": KW_ENUM, "impl": KW_IMPL, "type": KW_TYPE,
	"use": KW_USE, "mod": KW_MOD, "contract": KW_CONTRACT, "if": KW_IF,
	"else": KW_ELSE, "match": KW_MATCH, "for": KW_FOR, "while": KW_WHILE,
	"in": KW_IN, "return": KW_RETURN, "break": KW_BREAK, "continue": KW_CONTINUE,
	"as": KW_AS, "self": KW_SELF, "Self": KW_SELF_TYPE,
	"true": KW_TRUE, "false": KW_FALSE,
}

// Lookup returns the keyword Kind for ident, or (IDENT, false) if it is a
// plain identifier.
func Lookup(ident string) (Kind, bool) {
	k, ok := keywords[ident]
	return k, ok
}

// Token is a single lexeme with its source location.
type Token struct {
	Kind   Kind
	Lexeme string
	Loc    diag.Location
}

func (t Token) String() string {
	return t.Lexeme
}
