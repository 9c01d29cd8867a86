// Package lexer turns Zinc source text into a stream of tokens.
//
// The scanner follows the teacher's ASCII-table-dispatch shape: cheap
// per-byte classification tables built once in init(), a single forward
// scan over the input with line/column tracking, and comments/whitespace
// consumed without emitting tokens.
package lexer

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vikkkko/zinc/internal/diag"
	"github.com/vikkkko/zinc/internal/token"
)

var (
	isIdentStart [128]bool
	isIdentPart  [128]bool
	isDigit      [128]bool
)

func init() {
	for i := 0; i < 128; i++ {
		ch := byte(i)
		isIdentStart[i] = ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
		isDigit[i] = '0' <= ch && ch <= '9'
		isIdentPart[i] = isIdentStart[i] || isDigit[i]
	}
}

var logger = func() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("ZINC_DEBUG_LEXER") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}()

// Error is a lexical error (spec §7 "Lexical").
type Error struct {
	Diag *diag.Diagnostic
}

func (e *Error) Error() string { return e.Diag.Error() }

// Lexer scans a complete input string into tokens. It is not safe to share
// across goroutines.
type Lexer struct {
	file   string
	input  string
	pos    int // byte offset of ch
	readPos int
	ch     byte
	line   int
	column int
}

// New reads all of r and returns a Lexer positioned before the first token.
// file is used only to annotate locations in diagnostics.
func New(file string, r io.Reader) (*Lexer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("lexer: reading input: %w", err)
	}
	l := &Lexer{file: file, input: string(data), line: 1, column: 0}
	l.advance()
	return l, nil
}

func (l *Lexer) loc() diag.Location {
	return diag.Location{File: l.file, Line: l.line, Column: l.column}
}

func (l *Lexer) advance() {
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = l.readPos
		l.column++
		l.readPos++
		return
	}
	ch := l.input[l.readPos]
	l.pos = l.readPos
	l.readPos++
	if ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
	l.ch = ch
}

func (l *Lexer) peekByte() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n':
			l.advance()
		case l.ch == '/' && l.peekByte() == '/':
			for l.ch != '\n' && l.ch != 0 {
				l.advance()
			}
		case l.ch == '/' && l.peekByte() == '*':
			if err := l.skipBlockComment(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (l *Lexer) skipBlockComment() error {
	start := l.loc()
	depth := 0
	for {
		if l.ch == 0 {
			return &Error{diag.New(diag.KindLexical, start, "unterminated block comment")}
		}
		if l.ch == '/' && l.peekByte() == '*' {
			depth++
			l.advance()
			l.advance()
			continue
		}
		if l.ch == '*' && l.peekByte() == '/' {
			depth--
			l.advance()
			l.advance()
			if depth == 0 {
				return nil
			}
			continue
		}
		l.advance()
	}
}

// Next scans and returns the next token, or a Token{Kind: token.EOF} at end
// of input.
func (l *Lexer) Next() (token.Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return token.Token{}, err
	}
	loc := l.loc()

	switch {
	case l.ch == 0:
		return token.Token{Kind: token.EOF, Loc: loc}, nil
	case isIdentStart[l.ch]:
		return l.scanIdentOrKeyword(loc), nil
	case isDigit[l.ch]:
		return l.scanNumber(loc)
	case l.ch == '"':
		return l.scanString(loc)
	default:
		return l.scanSymbol(loc)
	}
}

func (l *Lexer) scanIdentOrKeyword(loc diag.Location) token.Token {
	start := l.pos
	for isIdentPart[l.ch] {
		l.advance()
	}
	lexeme := l.input[start:l.pos]
	if kw, ok := token.Lookup(lexeme); ok {
		if kw == token.KW_TRUE || kw == token.KW_FALSE {
			return token.Token{Kind: token.BOOL_LITERAL, Lexeme: lexeme, Loc: loc}
		}
		return token.Token{Kind: kw, Lexeme: lexeme, Loc: loc}
	}
	return token.Token{Kind: token.IDENT, Lexeme: lexeme, Loc: loc}
}

// scanNumber scans decimal, 0x hex, and 0b binary integer literals with an
// optional trailing type suffix (u8, i32, field, ...), per spec §4.1.
func (l *Lexer) scanNumber(loc diag.Location) (token.Token, error) {
	start := l.pos
	if l.ch == '0' && (l.peekByte() == 'x' || l.peekByte() == 'X') {
		l.advance()
		l.advance()
		digitStart := l.pos
		for isHexDigit(l.ch) || l.ch == '_' {
			l.advance()
		}
		if l.pos == digitStart {
			return token.Token{}, &Error{diag.New(diag.KindLexical, loc, "malformed hexadecimal literal")}
		}
	} else if l.ch == '0' && (l.peekByte() == 'b' || l.peekByte() == 'B') {
		l.advance()
		l.advance()
		digitStart := l.pos
		for l.ch == '0' || l.ch == '1' || l.ch == '_' {
			l.advance()
		}
		if l.pos == digitStart {
			return token.Token{}, &Error{diag.New(diag.KindLexical, loc, "malformed binary literal")}
		}
	} else {
		for isDigit[l.ch] || l.ch == '_' {
			l.advance()
		}
	}
	// Optional type suffix: letters/digits immediately following, e.g. u8, i248, field.
	for isIdentPart[l.ch] {
		l.advance()
	}
	return token.Token{Kind: token.INT_LITERAL, Lexeme: l.input[start:l.pos], Loc: loc}, nil
}

func isHexDigit(ch byte) bool {
	return isDigit[ch] || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}

func (l *Lexer) scanString(loc diag.Location) (token.Token, error) {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		switch l.ch {
		case 0, '\n':
			return token.Token{}, &Error{diag.New(diag.KindLexical, loc, "unterminated string literal")}
		case '"':
			l.advance()
			return token.Token{Kind: token.STRING_LITERAL, Lexeme: sb.String(), Loc: loc}, nil
		case '\\':
			l.advance()
			switch l.ch {
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			default:
				return token.Token{}, &Error{diag.New(diag.KindLexical, l.loc(), "invalid escape sequence '\\%c'", l.ch)}
			}
			l.advance()
		default:
			sb.WriteByte(l.ch)
			l.advance()
		}
	}
}

func (l *Lexer) scanSymbol(loc diag.Location) (token.Token, error) {
	ch := l.ch
	two := func(next byte, kindTwo, kindOne token.Kind) token.Token {
		if l.peekByte() == next {
			l.advance()
			l.advance()
			return token.Token{Kind: kindTwo, Lexeme: string(ch) + string(next), Loc: loc}
		}
		l.advance()
		return token.Token{Kind: kindOne, Lexeme: string(ch), Loc: loc}
	}

	switch ch {
	case '+':
		l.advance()
		return token.Token{Kind: token.PLUS, Lexeme: "+", Loc: loc}, nil
	case '-':
		if l.peekByte() == '>' {
			l.advance()
			l.advance()
			return token.Token{Kind: token.ARROW, Lexeme: "->", Loc: loc}, nil
		}
		l.advance()
		return token.Token{Kind: token.MINUS, Lexeme: "-", Loc: loc}, nil
	case '*':
		l.advance()
		return token.Token{Kind: token.STAR, Lexeme: "*", Loc: loc}, nil
	case '/':
		l.advance()
		return token.Token{Kind: token.SLASH, Lexeme: "/", Loc: loc}, nil
	case '%':
		l.advance()
		return token.Token{Kind: token.PERCENT, Lexeme: "%", Loc: loc}, nil
	case '~':
		l.advance()
		return token.Token{Kind: token.TILDE, Lexeme: "~", Loc: loc}, nil
	case '!':
		return two('=', token.BANG_EQ, token.BANG), nil
	case '&':
		return two('&', token.AMP_AMP, token.AMP), nil
	case '|':
		return two('|', token.PIPE_PIPE, token.PIPE), nil
	case '^':
		return two('^', token.CARET_CARET, token.CARET), nil
	case '=':
		if l.peekByte() == '=' {
			l.advance()
			l.advance()
			return token.Token{Kind: token.EQ_EQ, Lexeme: "==", Loc: loc}, nil
		}
		if l.peekByte() == '>' {
			l.advance()
			l.advance()
			return token.Token{Kind: token.FAT_ARROW, Lexeme: "=>", Loc: loc}, nil
		}
		l.advance()
		return token.Token{Kind: token.EQ, Lexeme: "=", Loc: loc}, nil
	case '<':
		if l.peekByte() == '<' {
			l.advance()
			l.advance()
			return token.Token{Kind: token.SHL, Lexeme: "<<", Loc: loc}, nil
		}
		return two('=', token.LE, token.LT), nil
	case '>':
		if l.peekByte() == '>' {
			l.advance()
			l.advance()
			return token.Token{Kind: token.SHR, Lexeme: ">>", Loc: loc}, nil
		}
		return two('=', token.GE, token.GT), nil
	case '(':
		l.advance()
		return token.Token{Kind: token.LPAREN, Lexeme: "(", Loc: loc}, nil
	case ')':
		l.advance()
		return token.Token{Kind: token.RPAREN, Lexeme: ")", Loc: loc}, nil
	case '{':
		l.advance()
		return token.Token{Kind: token.LBRACE, Lexeme: "{", Loc: loc}, nil
	case '}':
		l.advance()
		return token.Token{Kind: token.RBRACE, Lexeme: "}", Loc: loc}, nil
	case '[':
		l.advance()
		return token.Token{Kind: token.LBRACKET, Lexeme: "[", Loc: loc}, nil
	case ']':
		l.advance()
		return token.Token{Kind: token.RBRACKET, Lexeme: "]", Loc: loc}, nil
	case ',':
		l.advance()
		return token.Token{Kind: token.COMMA, Lexeme: ",", Loc: loc}, nil
	case ';':
		l.advance()
		return token.Token{Kind: token.SEMI, Lexeme: ";", Loc: loc}, nil
	case ':':
		return two(':', token.COLON_COLON, token.COLON), nil
	case '.':
		if l.peekByte() == '.' {
			l.advance()
			l.advance()
			if l.ch == '=' {
				l.advance()
				return token.Token{Kind: token.DOT_DOT_EQ, Lexeme: "..=", Loc: loc}, nil
			}
			return token.Token{Kind: token.DOT_DOT, Lexeme: "..", Loc: loc}, nil
		}
		l.advance()
		return token.Token{Kind: token.DOT, Lexeme: ".", Loc: loc}, nil
	default:
		r := ch
		l.advance()
		return token.Token{}, &Error{diag.New(diag.KindLexical, loc, "invalid character %q", r)}
	}
}

// Peeker wraps a Lexer to expose one token of lookahead, as required by the
// parser's LL(1) grammar.
type Peeker struct {
	lex     *Lexer
	pending *token.Token
}

// NewPeeker wraps l.
func NewPeeker(l *Lexer) *Peeker {
	return &Peeker{lex: l}
}

// Peek returns the next token without consuming it.
func (p *Peeker) Peek() (token.Token, error) {
	if p.pending == nil {
		t, err := p.lex.Next()
		if err != nil {
			return token.Token{}, err
		}
		p.pending = &t
	}
	return *p.pending, nil
}

// Next consumes and returns the next token.
func (p *Peeker) Next() (token.Token, error) {
	if p.pending != nil {
		t := *p.pending
		p.pending = nil
		return t, nil
	}
	return p.lex.Next()
}
