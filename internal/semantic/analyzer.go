package semantic

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/vikkkko/zinc/internal/ast"
	"github.com/vikkkko/zinc/internal/diag"
	"github.com/vikkkko/zinc/internal/ir"
	"github.com/vikkkko/zinc/internal/scope"
	"github.com/vikkkko/zinc/internal/types"
)

// Config bounds analysis-time resources (SPEC_FULL.md §1.3).
type Config struct {
	Generator ir.GeneratorConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Generator: ir.DefaultGeneratorConfig()}
}

// Analyzer walks a parsed syntax tree, type-checks and constant-folds it,
// and lowers it to bytecode via an embedded ir.State (spec §4.4, fusing
// components D and E as described in the package doc).
type Analyzer struct {
	cfg Config

	registry *types.Registry
	arena    *scope.Arena
	root     *scope.Scope // intrinsic root scope (spec §3 "Scope")
	file     *scope.Scope // the single compilation unit's module scope

	gen *ir.State

	contract     *ast.ContractDecl
	contractType *types.Type
	structs      map[string]*ast.StructDecl
	enums        map[string]*ast.EnumDecl
	methods      map[string][]*ast.FnDecl // type name -> impl methods

	// curScope is the innermost active scope while lowering a function body;
	// a.file outside of any function.
	curScope *scope.Scope

	// curReturn is the declared return type of the function currently being
	// lowered, used to check `return` expressions and the trailing tail
	// expression of its body (spec §4.4 "Function").
	curReturn types.Type
	// curIsEntry marks a `main`/`#[test]` function or a contract method
	// (anything the host calls directly by address), which ends in OpExit
	// instead of OpReturn (spec §4.7).
	curIsEntry bool
}

// New creates an Analyzer with a fresh intrinsic scope populated per spec
// §3/§6 ("dbg, require, std::…, and zksync::…").
func New(cfg Config) *Analyzer {
	a := &Analyzer{
		cfg:      cfg,
		registry: types.NewRegistry(),
		arena:    scope.NewArena(),
		structs:  make(map[string]*ast.StructDecl),
		enums:    make(map[string]*ast.EnumDecl),
		methods:  make(map[string][]*ast.FnDecl),
	}
	a.root = scope.New("intrinsic", nil)
	a.root.IsBuiltIn = true
	installIntrinsics(a.root)
	a.file = scope.New("file", a.root)
	a.curScope = a.file
	a.gen = ir.NewState(cfg.Generator)
	return a
}

// installIntrinsics seeds the root scope with the stdlib namespace (spec
// §6). Each is declared Defined immediately: intrinsics have no body to
// lazily define.
func installIntrinsics(root *scope.Scope) {
	for _, name := range []string{
		"dbg", "require",
		"std", "zksync",
	} {
		root.DeclareResolved(name, scope.KindModule, nil)
	}
}

// AnalyzeFile runs two-phase resolution (spec §4.3) then lowers every item
// to bytecode, returning the finished ir.Program.
func (a *Analyzer) AnalyzeFile(file *ast.File) (*ir.Program, error) {
	if err := a.declarePass(file.Items, a.file); err != nil {
		return nil, err
	}
	return a.definePass()
}

// declarePass implements spec §4.3 pass 1: "walks every module and declares
// each item (type/const/fn/module) without evaluating it".
func (a *Analyzer) declarePass(items []ast.Item, into *scope.Scope) error {
	for _, item := range items {
		switch it := item.(type) {
		case *ast.FnDecl:
			if _, err := into.Declare(it.Name, scope.KindVariable, it.Location(), it); err != nil {
				return err
			}
		case *ast.ConstDecl:
			if _, err := into.Declare(it.Name, scope.KindConstant, it.Location(), it); err != nil {
				return err
			}
		case *ast.StructDecl:
			if _, err := into.Declare(it.Name, scope.KindType, it.Location(), it); err != nil {
				return err
			}
			a.structs[it.Name] = it
		case *ast.EnumDecl:
			if _, err := into.Declare(it.Name, scope.KindType, it.Location(), it); err != nil {
				return err
			}
			a.enums[it.Name] = it
		case *ast.ContractDecl:
			if a.contract != nil {
				return fmt.Errorf("%s: contract %q redeclared (only one contract per program is supported)", it.Location(), it.Name)
			}
			a.contract = it
			if _, err := into.Declare(it.Name, scope.KindType, it.Location(), it); err != nil {
				return err
			}
		case *ast.ImplDecl:
			a.methods[it.TypeName] = append(a.methods[it.TypeName], it.Methods...)
		case *ast.TypeAlias:
			if _, err := into.Declare(it.Name, scope.KindType, it.Location(), it); err != nil {
				return err
			}
		case *ast.UseDecl:
			// Name resolution only; nothing to declare locally.
		case *ast.ModDecl:
			modScope := scope.New(it.Name, into)
			modItem, err := into.Declare(it.Name, scope.KindModule, it.Location(), it)
			if err != nil {
				return err
			}
			modItem.OwnerScope = modScope
			modItem.State = scope.Defined
			modItem.Value = modScope
			if err := a.declarePass(it.Items, modScope); err != nil {
				return err
			}
		default:
			// Bare expressions at item position are only meaningful inside a
			// block; at file scope they are a no-op placeholder.
		}
	}
	return nil
}

// define lazily evaluates item, per spec §4.3 pass 2 and §9's
// Declared->Defining->Defined|Err state machine.
func (a *Analyzer) define(item *scope.Item, useSite diag.Location) error {
	if item.State == scope.Defined {
		return nil
	}
	if err := scope.BeginDefine(item, useSite); err != nil {
		return err
	}
	var value interface{}
	var err error
	switch stmt := item.Stmt.(type) {
	case *ast.StructDecl:
		value, err = a.defineStruct(stmt)
	case *ast.EnumDecl:
		value, err = a.defineEnum(stmt)
	case *ast.ContractDecl:
		value, err = a.defineContractType(stmt)
	case *ast.ConstDecl:
		value, err = a.defineConst(stmt)
	case *ast.TypeAlias:
		value, err = a.resolveType(stmt.Type)
	case *ast.FnDecl:
		// Functions are lowered to bytecode during definePass, not during
		// type resolution; marking Defined here just breaks resolution
		// cycles for recursive calls.
		value = stmt
	default:
		err = fmt.Errorf("%s: cannot define item %q", useSite, item.Name)
	}
	scope.FinishDefine(item, value, err)
	return err
}

func (a *Analyzer) defineStruct(d *ast.StructDecl) (types.Type, error) {
	id := a.registry.Next()
	t := types.Type{Kind: types.Struct, ID: id, Name: d.Name, Generics: d.Generics}
	fieldScope := scope.New(d.Name, a.root)
	a.arena.Set(id, fieldScope)
	seen := map[string]bool{}
	for _, f := range d.Fields {
		if seen[f.Name] {
			return types.Type{}, &DuplicateFieldError{Loc: f.Location(), Name: f.Name}
		}
		seen[f.Name] = true
		ft, err := a.resolveType(f.Type)
		if err != nil {
			return types.Type{}, err
		}
		t.Fields = append(t.Fields, types.Field{Name: f.Name, Type: &ft})
		fieldScope.DeclareResolved(f.Name, scope.KindField, ft)
	}
	for _, m := range a.methods[d.Name] {
		fieldScope.DeclareResolved(m.Name, scope.KindVariable, m)
	}
	return t, nil
}

func (a *Analyzer) defineEnum(d *ast.EnumDecl) (types.Type, error) {
	id := a.registry.Next()
	bitlen := 32
	if d.BaseType != nil {
		bt, err := a.resolveType(*d.BaseType)
		if err != nil {
			return types.Type{}, err
		}
		bitlen = bt.Bitlen
	}
	t := types.Type{Kind: types.Enum, ID: id, Name: d.Name, Bitlen: bitlen}
	variantScope := scope.New(d.Name, a.root)
	a.arena.Set(id, variantScope)
	next := int64(0)
	for _, v := range d.Variants {
		val := next
		if v.Value != nil {
			c, err := a.constEvalExpr(v.Value)
			if err != nil {
				return types.Type{}, err
			}
			val = c.Int.Int64()
		}
		next = val + 1
		t.Values = append(t.Values, types.EnumValue{Name: v.Name, Value: val})
		variantConst := types.Constant{Kind: types.UInt, Int: big.NewInt(val), Bitlen: bitlen, EnumType: &t}
		variantScope.DeclareResolved(v.Name, scope.KindVariant, variantConst)
	}
	return t, nil
}

func (a *Analyzer) defineContractType(d *ast.ContractDecl) (types.Type, error) {
	id := a.registry.Next()
	t := types.Type{Kind: types.Contract, ID: id, Name: d.Name}
	fieldScope := scope.New(d.Name, a.root)
	a.arena.Set(id, fieldScope)
	for i, f := range d.Fields {
		ft, err := a.resolveType(f.Type)
		if err != nil {
			return types.Type{}, err
		}
		t.Fields = append(t.Fields, types.Field{Name: f.Name, Type: &ft})
		fieldScope.DeclareResolved(f.Name, scope.KindField, Place{
			RootIdentifier: f.Name, Type: ft, IsMutable: true,
			Memory: MemContractStorage, StorageIndex: i,
		})
	}
	for _, m := range a.methods[d.Name] {
		fieldScope.DeclareResolved(m.Name, scope.KindVariable, m)
	}
	a.contractType = &t
	return t, nil
}

func (a *Analyzer) defineConst(d *ast.ConstDecl) (types.Constant, error) {
	c, err := a.constEvalExpr(d.Value)
	if err != nil {
		return types.Constant{}, err
	}
	if d.Type != nil {
		declared, err := a.resolveType(*d.Type)
		if err != nil {
			return types.Constant{}, err
		}
		if !types.Equal(declared, c.Type()) {
			return types.Constant{}, &TypeMismatchError{Loc: d.Location(), Op: "const", Left: declared, Right: c.Type()}
		}
	}
	return c, nil
}

// constEvalExpr folds a compile-time-constant expression (spec §4.4 "const
// resolved under Constant it is inlined", §3 "Constant").
func (a *Analyzer) constEvalExpr(e ast.Expr) (types.Constant, error) {
	switch x := e.(type) {
	case *ast.IntLit:
		return parseIntLiteral(x.Lexeme)
	case *ast.BoolLit:
		return types.Constant{Kind: types.Bool, Bool: x.Value}, nil
	case *ast.StringLit:
		return types.Constant{Kind: types.String, Str: x.Value}, nil
	case *ast.Ident:
		item, found := a.curScope.Lookup(x.Name)
		if item == nil || found == nil {
			return types.Constant{}, &UnresolvedConstError{Loc: x.Location(), Name: x.Name}
		}
		if c, ok := item.Value.(types.Constant); ok {
			return c, nil
		}
		if err := a.define(item, x.Location()); err != nil {
			return types.Constant{}, err
		}
		c, ok := item.Value.(types.Constant)
		if !ok {
			return types.Constant{}, &NotConstantError{Loc: x.Location(), What: x.Name}
		}
		return c, nil
	case *ast.UnaryExpr:
		operand, err := a.constEvalExpr(x.X)
		if err != nil {
			return types.Constant{}, err
		}
		return constEvalUnaryValue(x.Op, operand, x.Location())
	case *ast.BinaryExpr:
		l, err := a.constEvalExpr(x.Left)
		if err != nil {
			return types.Constant{}, err
		}
		r, err := a.constEvalExpr(x.Right)
		if err != nil {
			return types.Constant{}, err
		}
		return foldBinaryCoerced(x.Op, l, r, x.Location())
	case *ast.CastExpr:
		target, err := a.resolveType(x.Type)
		if err != nil {
			return types.Constant{}, err
		}
		c, err := a.constEvalExpr(x.X)
		if err != nil {
			return types.Constant{}, err
		}
		if !castPermitted(c.Type(), target) {
			return types.Constant{}, &CastNotPermittedError{Loc: x.Location(), From: c.Type(), To: target}
		}
		return foldCast(c, target)
	default:
		return types.Constant{}, &NotConstantError{Loc: e.Location(), What: "expression"}
	}
}

// UnresolvedConstError reports a name used in constant position that does
// not resolve.
type UnresolvedConstError struct {
	Loc  diag.Location
	Name string
}

func (e *UnresolvedConstError) Error() string {
	return fmt.Sprintf("%s: undeclared constant %q", e.Loc, e.Name)
}

func parseIntLiteral(lexeme string) (types.Constant, error) {
	digits, suffix := splitNumericSuffix(lexeme)
	base := 10
	body := digits
	switch {
	case strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X"):
		base, body = 16, digits[2:]
	case strings.HasPrefix(digits, "0b") || strings.HasPrefix(digits, "0B"):
		base, body = 2, digits[2:]
	}
	body = strings.ReplaceAll(body, "_", "")
	v, ok := new(big.Int).SetString(body, base)
	if !ok {
		return types.Constant{}, fmt.Errorf("malformed integer literal %q", lexeme)
	}
	signed, bitlen := false, 248
	switch {
	case suffix == "field":
		bitlen = 0
	case len(suffix) > 1 && suffix[0] == 'u':
		signed, bitlen = false, atoiMust(suffix[1:])
	case len(suffix) > 1 && suffix[0] == 'i':
		signed, bitlen = true, atoiMust(suffix[1:])
	case suffix == "":
		// Untyped literal: defaults to u248, the widest unsigned width, so it
		// folds against any narrower annotated type the surrounding context
		// requires without losing information.
		bitlen = 248
	}
	c, err := types.NewInteger(v, signed, bitlen)
	if err != nil {
		return types.Constant{}, err
	}
	c.Untyped = suffix == ""
	return c, nil
}

func splitNumericSuffix(lexeme string) (digits, suffix string) {
	i := 0
	if strings.HasPrefix(lexeme, "0x") || strings.HasPrefix(lexeme, "0X") || strings.HasPrefix(lexeme, "0b") || strings.HasPrefix(lexeme, "0B") {
		i = 2
	}
	for i < len(lexeme) && (isDigitByte(lexeme[i]) || lexeme[i] == '_' || isHexByte(lexeme[i])) {
		i++
	}
	return lexeme[:i], lexeme[i:]
}

func isDigitByte(b byte) bool { return b >= '0' && b <= '9' }
func isHexByte(b byte) bool {
	return (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func atoiMust(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}
