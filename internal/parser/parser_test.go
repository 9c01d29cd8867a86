package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vikkkko/zinc/internal/ast"
	"github.com/vikkkko/zinc/internal/lexer"
)

func parseSrc(t *testing.T, src string) *ast.File {
	t.Helper()
	l, err := lexer.New("test.zn", strings.NewReader(src))
	require.NoError(t, err)
	f, err := Parse(l)
	require.NoError(t, err)
	return f
}

func TestParseFnDecl(t *testing.T) {
	f := parseSrc(t, `fn main(a: u8, b: u8) -> u8 { (a + b) * 2 }`)
	require.Len(t, f.Items, 1)
	fn, ok := f.Items[0].(*ast.FnDecl)
	require.True(t, ok)
	require.Equal(t, "main", fn.Name)
	require.Len(t, fn.Params, 2)
	require.NotNil(t, fn.Ret)
	require.Equal(t, "u8", fn.Ret.Name)
	require.NotNil(t, fn.Body.Result)
	bin, ok := fn.Body.Result.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, ast.OpMul, bin.Op)
}

func TestParseExpressionPrecedence(t *testing.T) {
	// `a + b * c` must parse as `a + (b * c)`.
	f := parseSrc(t, `fn f() -> u8 { a + b * c }`)
	fn := f.Items[0].(*ast.FnDecl)
	top := fn.Body.Result.(*ast.BinaryExpr)
	require.Equal(t, ast.OpAdd, top.Op)
	_, leftIsIdent := top.Left.(*ast.Ident)
	require.True(t, leftIsIdent)
	mul, ok := top.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, ast.OpMul, mul.Op)
}

func TestParseCastNonAssociative(t *testing.T) {
	_, err := func() (*ast.File, error) {
		l, _ := lexer.New("t.zn", strings.NewReader(`fn f() -> u8 { x as u8 as u16 }`))
		return Parse(l)
	}()
	require.Error(t, err)
}

func TestParseIfElse(t *testing.T) {
	f := parseSrc(t, `fn main(c: bool) -> u8 { let mut x = 1; if c { x = 10; } else { x = 20; } x }`)
	fn := f.Items[0].(*ast.FnDecl)
	require.Len(t, fn.Body.Stmts, 2)
	ifExpr, ok := fn.Body.Stmts[1].(*ast.ExprStmt).X.(*ast.IfExpr)
	require.True(t, ok)
	require.NotNil(t, ifExpr.Else)
	ident, ok := fn.Body.Result.(*ast.Ident)
	require.True(t, ok)
	require.Equal(t, "x", ident.Name)
}

func TestParseStructAndContract(t *testing.T) {
	f := parseSrc(t, `
		struct Point { x: field, y: field }
		contract Counter { counter: u64 }
		impl Counter { fn inc(self) -> u64 { self.counter = self.counter + 1; self.counter } }
	`)
	require.Len(t, f.Items, 3)
	_, ok := f.Items[0].(*ast.StructDecl)
	require.True(t, ok)
	_, ok = f.Items[1].(*ast.ContractDecl)
	require.True(t, ok)
	impl, ok := f.Items[2].(*ast.ImplDecl)
	require.True(t, ok)
	require.Equal(t, "Counter", impl.TypeName)
	require.Equal(t, "self", impl.Methods[0].Params[0].Name)
}

func TestParseForRange(t *testing.T) {
	f := parseSrc(t, `fn f() -> u8 { let mut s = 0; for i in 0..10 { s = s + i; } s }`)
	fn := f.Items[0].(*ast.FnDecl)
	forExpr := fn.Body.Stmts[1].(*ast.ExprStmt).X.(*ast.ForExpr)
	require.Equal(t, "i", forExpr.Var)
	rng, ok := forExpr.Range.(*ast.RangeExpr)
	require.True(t, ok)
	require.False(t, rng.Inclusive)
}

func TestParseUnexpectedTokenError(t *testing.T) {
	l, err := lexer.New("t.zn", strings.NewReader(`fn f( -> u8 { 0 }`))
	require.NoError(t, err)
	_, err = Parse(l)
	require.Error(t, err)
}
