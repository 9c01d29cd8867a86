// Package parser implements Zinc's syntax parser: recursive descent over
// statements and items, precedence climbing for expressions (spec §4.2).
// All ambiguity is resolved by the grammar alone; the parser never consults
// semantic information.
package parser

import (
	"strconv"

	"github.com/vikkkko/zinc/internal/ast"
	"github.com/vikkkko/zinc/internal/diag"
	"github.com/vikkkko/zinc/internal/lexer"
	"github.com/vikkkko/zinc/internal/token"
)

// Parser consumes a token stream and produces an *ast.File.
type Parser struct {
	p *lexer.Peeker
}

// New wraps a lexer in a Parser.
func New(l *lexer.Lexer) *Parser {
	return &Parser{p: lexer.NewPeeker(l)}
}

// Parse parses a complete source file.
func Parse(l *lexer.Lexer) (*ast.File, error) {
	return New(l).ParseFile()
}

func (p *Parser) peek() (token.Token, error) { return p.p.Peek() }
func (p *Parser) next() (token.Token, error) { return p.p.Next() }

func (p *Parser) expect(k token.Kind, name string) (token.Token, error) {
	t, err := p.next()
	if err != nil {
		return token.Token{}, err
	}
	if t.Kind != k {
		return token.Token{}, unexpected(t, name)
	}
	return t, nil
}

func (p *Parser) at(k token.Kind) bool {
	t, err := p.peek()
	return err == nil && t.Kind == k
}

// ParseFile parses every top-level item until EOF.
func (p *Parser) ParseFile() (*ast.File, error) {
	f := &ast.File{}
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.Kind == token.EOF {
			return f, nil
		}
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		f.Items = append(f.Items, item)
	}
}

func (p *Parser) parseItem() (ast.Item, error) {
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch t.Kind {
	case token.KW_LET:
		return p.parseLet()
	case token.KW_CONST:
		return p.parseConst()
	case token.KW_FN:
		return p.parseFn(false)
	case token.KW_STRUCT:
		return p.parseStruct()
	case token.KW_ENUM:
		return p.parseEnum()
	case token.KW_IMPL:
		return p.parseImpl()
	case token.KW_TYPE:
		return p.parseTypeAlias()
	case token.KW_USE:
		return p.parseUse()
	case token.KW_MOD:
		return p.parseMod()
	case token.KW_CONTRACT:
		return p.parseContract()
	default:
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.consumeOptional(token.SEMI)
		return &ast.ExprStmt{X: x}, nil
	}
}

func (p *Parser) consumeOptional(k token.Kind) bool {
	if p.at(k) {
		_, _ = p.next()
		return true
	}
	return false
}

func (p *Parser) parseIdentName() (string, diag.Location, error) {
	t, err := p.expect(token.IDENT, "identifier")
	if err != nil {
		return "", diag.Location{}, err
	}
	return t.Lexeme, t.Loc, nil
}

func (p *Parser) parseLet() (*ast.LetStmt, error) {
	kw, _ := p.next()
	mutable := p.consumeOptional(token.KW_MUT)
	name, _, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	var typ *ast.TypeExpr
	if p.consumeOptional(token.COLON) {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		typ = &t
	}
	if _, err := p.expect(token.EQ, "'='"); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.consumeOptional(token.SEMI)
	return &ast.LetStmt{base: base(kw), Name: name, Mutable: mutable, Type: typ, Value: val}, nil
}

func base(t token.Token) struct{ Loc diag.Location } { return struct{ Loc diag.Location }{t.Loc} }

func (p *Parser) parseConst() (*ast.ConstDecl, error) {
	kw, _ := p.next()
	name, _, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	var typ *ast.TypeExpr
	if p.consumeOptional(token.COLON) {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		typ = &t
	}
	if _, err := p.expect(token.EQ, "'='"); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.consumeOptional(token.SEMI)
	return &ast.ConstDecl{base: base(kw), Name: name, Type: typ, Value: val}, nil
}

func (p *Parser) parseGenerics() ([]string, error) {
	if !p.consumeOptional(token.LT) {
		return nil, nil
	}
	var names []string
	for {
		name, _, err := p.parseIdentName()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if p.consumeOptional(token.COMMA) {
			continue
		}
		break
	}
	if _, err := p.expect(token.GT, "'>'"); err != nil {
		return nil, err
	}
	return names, nil
}

func (p *Parser) parseFn(isMethod bool) (*ast.FnDecl, error) {
	kw, _ := p.next()
	isTest, ignored, panics := false, false, false
	_ = isMethod
	name, _, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	if name == "main" {
		// entry point, no special-casing needed beyond IR generation (spec §4.5)
	}
	generics, err := p.parseGenerics()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN, "'('"); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.at(token.RPAREN) {
		pt, _ := p.peek()
		if pt.Kind == token.KW_SELF {
			_, _ = p.next()
			params = append(params, ast.Param{base: base(pt), Name: "self"})
		} else {
			pname, ploc, err := p.parseIdentName()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.COLON, "':'"); err != nil {
				return nil, err
			}
			ptype, err := p.parseType()
			if err != nil {
				return nil, err
			}
			params = append(params, ast.Param{base: struct{ Loc diag.Location }{ploc}, Name: pname, Type: ptype})
		}
		if !p.consumeOptional(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.RPAREN, "')'"); err != nil {
		return nil, err
	}
	var ret *ast.TypeExpr
	if p.consumeOptional(token.ARROW) {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		ret = &t
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FnDecl{
		base: base(kw), Name: name, Generics: generics, Params: params, Ret: ret,
		Body: body, IsTest: isTest, Ignored: ignored, Panics: panics,
	}, nil
}

func (p *Parser) parseFieldList(closing token.Kind) ([]ast.FieldDecl, error) {
	var fields []ast.FieldDecl
	for !p.at(closing) {
		name, loc, err := p.parseIdentName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.COLON, "':'"); err != nil {
			return nil, err
		}
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.FieldDecl{base: struct{ Loc diag.Location }{loc}, Name: name, Type: typ})
		if !p.consumeOptional(token.COMMA) {
			break
		}
	}
	return fields, nil
}

func (p *Parser) parseStruct() (*ast.StructDecl, error) {
	kw, _ := p.next()
	name, _, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	generics, err := p.parseGenerics()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE, "'{'"); err != nil {
		return nil, err
	}
	fields, err := p.parseFieldList(token.RBRACE)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return &ast.StructDecl{base: base(kw), Name: name, Generics: generics, Fields: fields}, nil
}

func (p *Parser) parseContract() (*ast.ContractDecl, error) {
	kw, _ := p.next()
	name, _, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE, "'{'"); err != nil {
		return nil, err
	}
	fields, err := p.parseFieldList(token.RBRACE)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return &ast.ContractDecl{base: base(kw), Name: name, Fields: fields}, nil
}

func (p *Parser) parseEnum() (*ast.EnumDecl, error) {
	kw, _ := p.next()
	name, _, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	var base_ *ast.TypeExpr
	if p.consumeOptional(token.COLON) {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		base_ = &t
	}
	if _, err := p.expect(token.LBRACE, "'{'"); err != nil {
		return nil, err
	}
	var variants []ast.EnumVariant
	for !p.at(token.RBRACE) {
		vname, vloc, err := p.parseIdentName()
		if err != nil {
			return nil, err
		}
		var val ast.Expr
		if p.consumeOptional(token.EQ) {
			val, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		variants = append(variants, ast.EnumVariant{base: struct{ Loc diag.Location }{vloc}, Name: vname, Value: val})
		if !p.consumeOptional(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return &ast.EnumDecl{base: base(kw), Name: name, BaseType: base_, Variants: variants}, nil
}

func (p *Parser) parseImpl() (*ast.ImplDecl, error) {
	kw, _ := p.next()
	name, _, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE, "'{'"); err != nil {
		return nil, err
	}
	var methods []*ast.FnDecl
	for !p.at(token.RBRACE) {
		if !p.at(token.KW_FN) {
			t, _ := p.peek()
			return nil, unexpected(t, "'fn'")
		}
		m, err := p.parseFn(true)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	if _, err := p.expect(token.RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return &ast.ImplDecl{base: base(kw), TypeName: name, Methods: methods}, nil
}

func (p *Parser) parseTypeAlias() (*ast.TypeAlias, error) {
	kw, _ := p.next()
	name, _, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.EQ, "'='"); err != nil {
		return nil, err
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.consumeOptional(token.SEMI)
	return &ast.TypeAlias{base: base(kw), Name: name, Type: typ}, nil
}

func (p *Parser) parseUse() (*ast.UseDecl, error) {
	kw, _ := p.next()
	var segs []string
	for {
		name, _, err := p.parseIdentName()
		if err != nil {
			return nil, err
		}
		segs = append(segs, name)
		if p.consumeOptional(token.COLON_COLON) {
			continue
		}
		break
	}
	p.consumeOptional(token.SEMI)
	return &ast.UseDecl{base: base(kw), Path: segs}, nil
}

func (p *Parser) parseMod() (*ast.ModDecl, error) {
	kw, _ := p.next()
	name, _, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE, "'{'"); err != nil {
		return nil, err
	}
	var items []ast.Item
	for !p.at(token.RBRACE) {
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if _, err := p.expect(token.RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return &ast.ModDecl{base: base(kw), Name: name, Items: items}, nil
}

// ---- Types ----

func (p *Parser) parseType() (ast.TypeExpr, error) {
	t, err := p.peek()
	if err != nil {
		return ast.TypeExpr{}, err
	}
	switch t.Kind {
	case token.LBRACKET:
		_, _ = p.next()
		elem, err := p.parseType()
		if err != nil {
			return ast.TypeExpr{}, err
		}
		if _, err := p.expect(token.SEMI, "';'"); err != nil {
			return ast.TypeExpr{}, err
		}
		n, err := p.parseExpr()
		if err != nil {
			return ast.TypeExpr{}, err
		}
		if _, err := p.expect(token.RBRACKET, "']'"); err != nil {
			return ast.TypeExpr{}, err
		}
		return ast.TypeExpr{base: base(t), Elem: &elem, ArrayLen: n}, nil
	case token.LPAREN:
		_, _ = p.next()
		var elems []ast.TypeExpr
		for !p.at(token.RPAREN) {
			el, err := p.parseType()
			if err != nil {
				return ast.TypeExpr{}, err
			}
			elems = append(elems, el)
			if !p.consumeOptional(token.COMMA) {
				break
			}
		}
		if _, err := p.expect(token.RPAREN, "')'"); err != nil {
			return ast.TypeExpr{}, err
		}
		return ast.TypeExpr{base: base(t), Tuple: elems}, nil
	case token.IDENT, token.KW_SELF_TYPE:
		_, _ = p.next()
		name := t.Lexeme
		var generics []ast.TypeExpr
		if p.consumeOptional(token.LT) {
			for {
				g, err := p.parseType()
				if err != nil {
					return ast.TypeExpr{}, err
				}
				generics = append(generics, g)
				if p.consumeOptional(token.COMMA) {
					continue
				}
				break
			}
			if _, err := p.expect(token.GT, "'>'"); err != nil {
				return ast.TypeExpr{}, err
			}
		}
		for p.consumeOptional(token.COLON_COLON) {
			seg, _, err := p.parseIdentName()
			if err != nil {
				return ast.TypeExpr{}, err
			}
			name = name + "::" + seg
		}
		return ast.TypeExpr{base: base(t), Name: name, Generics: generics}, nil
	default:
		return ast.TypeExpr{}, unexpected(t, "type")
	}
}

// ---- Expressions: precedence climbing ----
//
// Levels, lowest to highest (spec §4.2):
//   or -> xor -> and -> comparison -> bitor -> bitxor -> bitand -> shift
//   -> addsub -> muldivrem -> as -> unary -> postfix -> atom

func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseAssign()
}

func (p *Parser) parseAssign() (ast.Expr, error) {
	lhs, err := p.parseRange()
	if err != nil {
		return nil, err
	}
	if p.at(token.EQ) {
		eq, _ := p.next()
		rhs, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		return &ast.AssignExpr{base: base(eq), Target: lhs, Value: rhs}, nil
	}
	return lhs, nil
}

// parseRange handles `a..b` / `a..=b` (spec §3 "Range / RangeInclusive");
// both endpoints must later be compile-time constants, checked by
// internal/semantic, not here.
func (p *Parser) parseRange() (ast.Expr, error) {
	lhs, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if t.Kind != token.DOT_DOT && t.Kind != token.DOT_DOT_EQ {
		return lhs, nil
	}
	_, _ = p.next()
	inclusive := t.Kind == token.DOT_DOT_EQ
	rhs, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	return &ast.RangeExpr{base: base(t), Low: lhs, High: rhs, Inclusive: inclusive}, nil
}

type binLevel struct {
	kinds map[token.Kind]ast.BinOp
	next  func(*Parser) (ast.Expr, error)
}

func (p *Parser) parseLeftAssoc(kinds map[token.Kind]ast.BinOp, next func(*Parser) (ast.Expr, error)) (ast.Expr, error) {
	lhs, err := next(p)
	if err != nil {
		return nil, err
	}
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		op, ok := kinds[t.Kind]
		if !ok {
			return lhs, nil
		}
		_, _ = p.next()
		rhs, err := next(p)
		if err != nil {
			return nil, err
		}
		lhs = &ast.BinaryExpr{base: base(t), Op: op, Left: lhs, Right: rhs}
	}
}

func (p *Parser) parseOr() (ast.Expr, error) {
	return p.parseLeftAssoc(map[token.Kind]ast.BinOp{token.PIPE_PIPE: ast.OpOr}, (*Parser).parseXor)
}
func (p *Parser) parseXor() (ast.Expr, error) {
	return p.parseLeftAssoc(map[token.Kind]ast.BinOp{token.CARET_CARET: ast.OpXor}, (*Parser).parseAnd)
}
func (p *Parser) parseAnd() (ast.Expr, error) {
	return p.parseLeftAssoc(map[token.Kind]ast.BinOp{token.AMP_AMP: ast.OpAnd}, (*Parser).parseComparison)
}
func (p *Parser) parseComparison() (ast.Expr, error) {
	return p.parseLeftAssoc(map[token.Kind]ast.BinOp{
		token.EQ_EQ: ast.OpEq, token.BANG_EQ: ast.OpNe, token.LT: ast.OpLt,
		token.LE: ast.OpLe, token.GT: ast.OpGt, token.GE: ast.OpGe,
	}, (*Parser).parseBitOr)
}
func (p *Parser) parseBitOr() (ast.Expr, error) {
	return p.parseLeftAssoc(map[token.Kind]ast.BinOp{token.PIPE: ast.OpBitOr}, (*Parser).parseBitXor)
}
func (p *Parser) parseBitXor() (ast.Expr, error) {
	return p.parseLeftAssoc(map[token.Kind]ast.BinOp{token.CARET: ast.OpBitXor}, (*Parser).parseBitAnd)
}
func (p *Parser) parseBitAnd() (ast.Expr, error) {
	return p.parseLeftAssoc(map[token.Kind]ast.BinOp{token.AMP: ast.OpBitAnd}, (*Parser).parseShift)
}
func (p *Parser) parseShift() (ast.Expr, error) {
	return p.parseLeftAssoc(map[token.Kind]ast.BinOp{token.SHL: ast.OpShl, token.SHR: ast.OpShr}, (*Parser).parseAddSub)
}
func (p *Parser) parseAddSub() (ast.Expr, error) {
	return p.parseLeftAssoc(map[token.Kind]ast.BinOp{token.PLUS: ast.OpAdd, token.MINUS: ast.OpSub}, (*Parser).parseMulDivRem)
}
func (p *Parser) parseMulDivRem() (ast.Expr, error) {
	return p.parseLeftAssoc(map[token.Kind]ast.BinOp{
		token.STAR: ast.OpMul, token.SLASH: ast.OpDiv, token.PERCENT: ast.OpRem,
	}, (*Parser).parseCast)
}

// parseCast handles "as", which is non-associative: a chain like `x as u8 as
// u16` is rejected, matching spec §4.2.
func (p *Parser) parseCast() (ast.Expr, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.at(token.KW_AS) {
		kw, _ := p.next()
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		cast := &ast.CastExpr{base: base(kw), X: x, Type: typ}
		if p.at(token.KW_AS) {
			t, _ := p.peek()
			return nil, unexpected(t, "non-'as' continuation (casts are non-associative)")
		}
		return cast, nil
	}
	return x, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	var op ast.UnaryOp
	switch t.Kind {
	case token.BANG:
		op = ast.OpNot
	case token.MINUS:
		op = ast.OpNeg
	case token.TILDE:
		op = ast.OpBitNot
	default:
		return p.parsePostfix()
	}
	_, _ = p.next()
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.UnaryExpr{base: base(t), Op: op, X: x}, nil
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	x, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch t.Kind {
		case token.LBRACKET:
			_, _ = p.next()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBRACKET, "']'"); err != nil {
				return nil, err
			}
			x = &ast.IndexExpr{base: base(t), X: x, Index: idx}
		case token.DOT:
			_, _ = p.next()
			ft, err := p.next()
			if err != nil {
				return nil, err
			}
			if ft.Kind == token.INT_LITERAL {
				n, err := strconv.Atoi(ft.Lexeme)
				if err != nil {
					return nil, unexpected(ft, "tuple index")
				}
				x = &ast.TupleIndexExpr{base: base(t), X: x, Index: n}
			} else if ft.Kind == token.IDENT {
				x = &ast.FieldExpr{base: base(t), X: x, Field: ft.Lexeme}
			} else {
				return nil, unexpected(ft, "field name or tuple index")
			}
		case token.LPAREN:
			_, _ = p.next()
			var args []ast.Expr
			for !p.at(token.RPAREN) {
				a, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if !p.consumeOptional(token.COMMA) {
					break
				}
			}
			if _, err := p.expect(token.RPAREN, "')'"); err != nil {
				return nil, err
			}
			x = &ast.CallExpr{base: base(t), Callee: x, Args: args}
		case token.COLON_COLON:
			ident, ok := x.(*ast.Ident)
			if !ok {
				path, ok := x.(*ast.PathExpr)
				if !ok {
					return x, nil
				}
				_, _ = p.next()
				seg, _, err := p.parseIdentName()
				if err != nil {
					return nil, err
				}
				x = &ast.PathExpr{base: path.base, Segments: append(append([]string{}, path.Segments...), seg)}
				continue
			}
			_, _ = p.next()
			seg, _, err := p.parseIdentName()
			if err != nil {
				return nil, err
			}
			x = &ast.PathExpr{base: ident.base, Segments: []string{ident.Name, seg}}
		default:
			return x, nil
		}
	}
}

func (p *Parser) parseAtom() (ast.Expr, error) {
	t, err := p.next()
	if err != nil {
		return nil, err
	}
	switch t.Kind {
	case token.INT_LITERAL:
		return &ast.IntLit{base: base(t), Lexeme: t.Lexeme}, nil
	case token.BOOL_LITERAL:
		return &ast.BoolLit{base: base(t), Value: t.Lexeme == "true"}, nil
	case token.STRING_LITERAL:
		return &ast.StringLit{base: base(t), Value: t.Lexeme}, nil
	case token.KW_SELF:
		return &ast.Ident{base: base(t), Name: "self"}, nil
	case token.IDENT:
		ident := &ast.Ident{base: base(t), Name: t.Lexeme}
		if p.at(token.LBRACE) && p.structLiteralAllowed() {
			return p.parseStructLiteral(ident)
		}
		return ident, nil
	case token.LPAREN:
		if p.at(token.RPAREN) {
			_, _ = p.next()
			return &ast.TupleExpr{base: base(t)}, nil
		}
		first, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.at(token.COMMA) {
			elems := []ast.Expr{first}
			for p.consumeOptional(token.COMMA) {
				if p.at(token.RPAREN) {
					break
				}
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				elems = append(elems, e)
			}
			if _, err := p.expect(token.RPAREN, "')'"); err != nil {
				return nil, err
			}
			return &ast.TupleExpr{base: base(t), Elems: elems}, nil
		}
		if _, err := p.expect(token.RPAREN, "')'"); err != nil {
			return nil, err
		}
		return first, nil
	case token.LBRACKET:
		var elems []ast.Expr
		for !p.at(token.RBRACKET) {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if !p.consumeOptional(token.COMMA) {
				break
			}
		}
		if _, err := p.expect(token.RBRACKET, "']'"); err != nil {
			return nil, err
		}
		return &ast.ArrayExpr{base: base(t), Elems: elems}, nil
	case token.KW_IF:
		return p.parseIfFrom(t)
	case token.KW_MATCH:
		return p.parseMatchFrom(t)
	case token.KW_FOR:
		return p.parseForFrom(t)
	case token.KW_WHILE:
		return p.parseWhileFrom(t)
	case token.KW_RETURN:
		if p.atExprEnd() {
			return &ast.ReturnExpr{base: base(t)}, nil
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.ReturnExpr{base: base(t), Value: v}, nil
	case token.LBRACE:
		return p.parseBlockFrom(t)
	default:
		return nil, unexpected(t, "expression")
	}
}

func (p *Parser) atExprEnd() bool {
	t, err := p.peek()
	if err != nil {
		return true
	}
	switch t.Kind {
	case token.SEMI, token.RBRACE, token.RPAREN, token.COMMA, token.EOF:
		return true
	default:
		return false
	}
}

// structLiteralAllowed disambiguates `Ident { ... }` as a struct literal vs.
// a following block (e.g. the condition of an `if`); callers in statement
// position that need a bare block instead should not call parseAtom directly
// on an ambiguous identifier. Here we always allow it except immediately
// after `if`/`while`/`for`, which never call parseAtom for their condition
// recursively with this ambiguity since the grammar parses the condition via
// parseExpr called from a dedicated context; to stay unambiguous, Zinc
// requires parenthesizing a condition that would otherwise start with an
// identifier immediately followed by '{' and a struct literal, so we simply
// always permit struct literals here.
func (p *Parser) structLiteralAllowed() bool { return true }

func (p *Parser) parseStructLiteral(name *ast.Ident) (ast.Expr, error) {
	_, _ = p.next() // '{'
	var fields []ast.StructLitField
	for !p.at(token.RBRACE) {
		fname, _, err := p.parseIdentName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.COLON, "':'"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.StructLitField{Name: fname, Value: val})
		if !p.consumeOptional(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return &ast.StructLitExpr{base: name.base, TypeName: name.Name, Fields: fields}, nil
}

func (p *Parser) parseBlock() (*ast.BlockExpr, error) {
	t, err := p.expect(token.LBRACE, "'{'")
	if err != nil {
		return nil, err
	}
	return p.parseBlockFrom(t)
}

func (p *Parser) parseBlockFrom(open token.Token) (*ast.BlockExpr, error) {
	blk := &ast.BlockExpr{base: base(open)}
	for !p.at(token.RBRACE) {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.Kind == token.EOF {
			return nil, unterminated(t, "block")
		}
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		if es, ok := item.(*ast.ExprStmt); ok && p.at(token.RBRACE) {
			blk.Result = es.X
			break
		}
		blk.Stmts = append(blk.Stmts, item)
	}
	if _, err := p.expect(token.RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return blk, nil
}

func (p *Parser) parseIfFrom(kw token.Token) (ast.Expr, error) {
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	ie := &ast.IfExpr{base: base(kw), Cond: cond, Then: then}
	if p.consumeOptional(token.KW_ELSE) {
		if p.at(token.KW_IF) {
			t, _ := p.next()
			elseIf, err := p.parseIfFrom(t)
			if err != nil {
				return nil, err
			}
			ie.Else = elseIf
		} else {
			elseBlk, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			ie.Else = elseBlk
		}
	}
	return ie, nil
}

func (p *Parser) parseMatchFrom(kw token.Token) (ast.Expr, error) {
	scrutinee, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE, "'{'"); err != nil {
		return nil, err
	}
	var arms []ast.MatchArm
	for !p.at(token.RBRACE) {
		pat, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.FAT_ARROW, "'=>'"); err != nil {
			return nil, err
		}
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		arms = append(arms, ast.MatchArm{Pattern: pat, Body: body})
		if !p.consumeOptional(token.COMMA) {
			break
		}
	}
	if _, err := p.expect(token.RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return &ast.MatchExpr{base: base(kw), Scrutinee: scrutinee, Arms: arms}, nil
}

func (p *Parser) parseForFrom(kw token.Token) (ast.Expr, error) {
	name, _, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KW_IN, "'in'"); err != nil {
		return nil, err
	}
	rangeExpr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ForExpr{base: base(kw), Var: name, Range: rangeExpr, Body: body}, nil
}

func (p *Parser) parseWhileFrom(kw token.Token) (ast.Expr, error) {
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.WhileExpr{base: base(kw), Cond: cond, Body: body}, nil
}
