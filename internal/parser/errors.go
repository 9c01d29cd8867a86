package parser

import (
	"fmt"
	"strings"

	"github.com/vikkkko/zinc/internal/diag"
	"github.com/vikkkko/zinc/internal/token"
)

// Error is a syntax error: an unexpected token together with the set of
// token kinds that would have been accepted (spec §7 "Syntax").
type Error struct {
	Diag     *diag.Diagnostic
	Got      token.Token
	Expected []string
}

func (e *Error) Error() string { return e.Diag.Error() }

func unexpected(got token.Token, expected ...string) *Error {
	msg := fmt.Sprintf("unexpected %s", describe(got))
	if len(expected) > 0 {
		msg += fmt.Sprintf(", expected one of: %s", strings.Join(expected, ", "))
	}
	return &Error{
		Diag:     diag.New(diag.KindSyntax, got.Loc, "%s", msg),
		Got:      got,
		Expected: expected,
	}
}

func unterminated(got token.Token, construct string) *Error {
	return &Error{
		Diag: diag.New(diag.KindSyntax, got.Loc, "unterminated %s, reached %s", construct, describe(got)),
		Got:  got,
	}
}

func describe(t token.Token) string {
	if t.Kind == token.EOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.Lexeme)
}
