package semantic

import (
	"math/big"
	"strings"

	"github.com/vikkkko/zinc/internal/ast"
	"github.com/vikkkko/zinc/internal/diag"
	"github.com/vikkkko/zinc/internal/ir"
	"github.com/vikkkko/zinc/internal/scope"
	"github.com/vikkkko/zinc/internal/types"
)

// materialize ensures el's value is left on the runtime value stack,
// regardless of whether it started life as a fold-time Constant, a Place, or
// an already-emitted Value (spec §4.4: every operator "auto-loads a Place").
func (a *Analyzer) materialize(el Element) error {
	switch el.Kind {
	case ElemConstant:
		c := el.Const
		a.gen.Emit(ir.OpPush, ir.Operand{Type: c.Type(), Const: &c})
	case ElemPlace:
		a.loadPlace(el.Place)
	case ElemValue:
		// Already left on the stack by whatever produced it.
	default:
		return &NotEvaluableError{What: "this expression"}
	}
	return nil
}

func (a *Analyzer) loadPlace(p Place) {
	switch p.Memory {
	case MemStack:
		a.gen.Emit(ir.OpLoadLocal, ir.Operand{Int: int64(p.LocalSlot), Type: p.Type})
	case MemContractStorage:
		a.gen.Emit(ir.OpStorageLoad, ir.Operand{Int: int64(p.StorageIndex), Type: p.Type})
	case MemData:
		a.gen.Emit(ir.OpLoadGlobal, ir.Operand{Int: int64(p.LocalSlot), Type: p.Type})
	}
}

func (a *Analyzer) storePlace(p Place) {
	switch p.Memory {
	case MemStack:
		a.gen.Emit(ir.OpStoreLocal, ir.Operand{Int: int64(p.LocalSlot), Type: p.Type})
	case MemContractStorage:
		a.gen.Emit(ir.OpStorageStore, ir.Operand{Int: int64(p.StorageIndex), Type: p.Type})
	case MemData:
		a.gen.Emit(ir.OpStoreGlobal, ir.Operand{Int: int64(p.LocalSlot), Type: p.Type})
	}
}

// lowerExpr is the fused analyze-and-emit entry point (package doc). rule
// hints how an Ident/Path/field access should resolve (spec §4.4).
func (a *Analyzer) lowerExpr(rule Rule, e ast.Expr) (Element, error) {
	switch x := e.(type) {
	case *ast.IntLit:
		c, err := parseIntLiteral(x.Lexeme)
		if err != nil {
			return Element{}, err
		}
		return constElem(c), nil
	case *ast.BoolLit:
		return constElem(types.Constant{Kind: types.Bool, Bool: x.Value}), nil
	case *ast.StringLit:
		return constElem(types.Constant{Kind: types.String, Str: x.Value}), nil
	case *ast.Ident:
		return a.lowerIdent(rule, x)
	case *ast.PathExpr:
		return a.lowerPath(rule, x)
	case *ast.UnaryExpr:
		return a.lowerUnary(x)
	case *ast.BinaryExpr:
		return a.lowerBinary(x)
	case *ast.CastExpr:
		return a.lowerCast(x)
	case *ast.IndexExpr:
		return a.lowerIndex(x)
	case *ast.FieldExpr:
		return a.lowerField(rule, x)
	case *ast.TupleIndexExpr:
		return a.lowerTupleIndex(x)
	case *ast.CallExpr:
		return a.lowerCall(x)
	case *ast.ArrayExpr:
		return a.lowerArray(x)
	case *ast.TupleExpr:
		return a.lowerTuple(x)
	case *ast.StructLitExpr:
		return a.lowerStructLit(x)
	case *ast.RangeExpr:
		return a.lowerRange(x)
	case *ast.AssignExpr:
		return a.lowerAssign(x)
	case *ast.BlockExpr:
		return a.lowerBlock(x)
	case *ast.IfExpr:
		return a.lowerIf(x)
	case *ast.MatchExpr:
		return a.lowerMatch(x)
	case *ast.ForExpr:
		return a.lowerFor(x)
	case *ast.WhileExpr:
		return a.lowerWhile(x)
	case *ast.ReturnExpr:
		return a.lowerReturn(x)
	default:
		return Element{}, &NotEvaluableError{Loc: e.Location(), What: "unsupported expression form"}
	}
}

func (a *Analyzer) lowerIdent(rule Rule, x *ast.Ident) (Element, error) {
	item, scopeFound := a.curScope.Lookup(x.Name)
	if item == nil || scopeFound == nil {
		return Element{}, &scopeLookupError{Loc: x.Location(), Name: x.Name}
	}
	if p, ok := item.Value.(Place); ok {
		if rule == RulePlace {
			return placeElem(p), nil
		}
		el := placeElem(p)
		if err := a.materialize(el); err != nil {
			return Element{}, err
		}
		return valueElem(p.Type), nil
	}
	if rule == RulePath || rule == RuleType {
		return Element{Kind: ElemIdentifier, Ident: x.Name}, nil
	}
	if _, ok := item.Value.(*ast.FnDecl); ok {
		return Element{Kind: ElemIdentifier, Ident: x.Name}, nil
	}
	if err := a.define(item, x.Location()); err != nil {
		return Element{}, err
	}
	switch v := item.Value.(type) {
	case types.Constant:
		if rule == RuleConstant {
			return constElem(v), nil
		}
		el := constElem(v)
		if err := a.materialize(el); err != nil {
			return Element{}, err
		}
		return valueElem(v.Type()), nil
	case types.Type:
		return Element{Kind: ElemType, Typ: v}, nil
	case *ast.FnDecl:
		return Element{Kind: ElemIdentifier, Ident: x.Name}, nil
	default:
		return Element{}, &NotEvaluableError{Loc: x.Location(), What: x.Name}
	}
}

type scopeLookupError struct {
	Loc  diag.Location
	Name string
}

func (e *scopeLookupError) Error() string {
	return e.Loc.String() + ": undeclared identifier " + e.Name
}

// lowerPath resolves a `a::b::c` path to whatever it ultimately names (spec
// §4.3 resolve_path / §4.4 Path rule). Calls through a path are intercepted
// earlier, in lowerCall, before reaching here.
func (a *Analyzer) lowerPath(rule Rule, x *ast.PathExpr) (Element, error) {
	locs := make([]diag.Location, len(x.Segments))
	for i := range locs {
		locs[i] = x.Location()
	}
	item, err := scope.ResolvePath(a.curScope, a.arena, x.Segments, locs)
	if err != nil {
		return Element{}, err
	}
	if err := a.define(item, x.Location()); err != nil {
		return Element{}, err
	}
	if rule == RulePath || rule == RuleType {
		if t, ok := item.Value.(types.Type); ok {
			return Element{Kind: ElemType, Typ: t}, nil
		}
		return Element{Kind: ElemIdentifier, Ident: x.Segments[len(x.Segments)-1]}, nil
	}
	switch v := item.Value.(type) {
	case types.Constant:
		if rule == RuleConstant {
			return constElem(v), nil
		}
		el := constElem(v)
		if err := a.materialize(el); err != nil {
			return Element{}, err
		}
		return valueElem(v.Type()), nil
	case types.Type:
		return Element{Kind: ElemType, Typ: v}, nil
	default:
		return Element{}, &NotEvaluableError{Loc: x.Location(), What: strings.Join(x.Segments, "::")}
	}
}

func (a *Analyzer) lowerUnary(x *ast.UnaryExpr) (Element, error) {
	operand, err := a.lowerExpr(RuleValue, x.X)
	if err != nil {
		return Element{}, err
	}
	ot := TypeOf(operand)
	if operand.Kind == ElemConstant {
		c, err := constEvalUnaryValue(x.Op, operand.Const, x.Location())
		if err != nil {
			return Element{}, err
		}
		return constElem(c), nil
	}
	if err := a.materialize(operand); err != nil {
		return Element{}, err
	}
	switch x.Op {
	case ast.OpNeg:
		if ot.Kind != types.SInt && ot.Kind != types.Field {
			return Element{}, &TypeMismatchError{Loc: x.Location(), Op: "unary -", Left: ot}
		}
		a.gen.Emit(ir.OpNeg, ir.Operand{Type: ot})
	case ast.OpNot:
		if ot.Kind != types.Bool {
			return Element{}, &TypeMismatchError{Loc: x.Location(), Op: "unary !", Left: ot}
		}
		a.gen.Emit(ir.OpLogNot, ir.Operand{Type: ot})
	case ast.OpBitNot:
		if ot.Kind != types.UInt {
			return Element{}, &BitwiseForbiddenError{Loc: x.Location(), On: ot}
		}
		a.gen.Emit(ir.OpBitNot, ir.Operand{Type: ot})
	}
	return valueElem(ot), nil
}

func constEvalUnaryValue(op ast.UnaryOp, c types.Constant, loc diag.Location) (types.Constant, error) {
	switch op {
	case ast.OpNeg:
		if c.Kind != types.SInt && c.Kind != types.Field {
			return types.Constant{}, &TypeMismatchError{Loc: loc, Op: "unary -", Left: c.Type()}
		}
		return types.NewInteger(new(big.Int).Neg(c.Int), c.Signed, c.Bitlen)
	case ast.OpNot:
		if c.Kind != types.Bool {
			return types.Constant{}, &TypeMismatchError{Loc: loc, Op: "unary !", Left: c.Type()}
		}
		return types.Constant{Kind: types.Bool, Bool: !c.Bool}, nil
	case ast.OpBitNot:
		if c.Kind != types.UInt {
			return types.Constant{}, &BitwiseForbiddenError{Loc: loc, On: c.Type()}
		}
		mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(c.Bitlen)), big.NewInt(1))
		v := new(big.Int).Xor(c.Int, mask)
		return types.NewInteger(v, false, c.Bitlen)
	}
	return types.Constant{}, &NotEvaluableError{Loc: loc, What: "unary operator"}
}

// coerceElemTo retargets el to target when el is an untyped integer literal
// Constant (spec §4.5: it "folds against any narrower annotated type the
// surrounding context requires"). Anything else — a Value, Place, or a
// Constant with an explicit width suffix — passes through unchanged; a
// mismatch there is a genuine type error for the caller to report.
func coerceElemTo(el Element, target types.Type) (Element, error) {
	if el.Kind != ElemConstant || !el.Const.Untyped {
		return el, nil
	}
	if target.Kind != types.UInt && target.Kind != types.SInt && target.Kind != types.Field {
		return el, nil
	}
	c, err := el.Const.Retarget(target.Kind == types.SInt, target.Bitlen)
	if err != nil {
		return Element{}, err
	}
	return constElem(c), nil
}

func (a *Analyzer) lowerBinary(x *ast.BinaryExpr) (Element, error) {
	left, err := a.lowerExpr(RuleValue, x.Left)
	if err != nil {
		return Element{}, err
	}
	// Spec's Open Question on logical operators: both operands are always
	// evaluated, no short-circuiting (see DESIGN.md decision).
	right, err := a.lowerExpr(RuleValue, x.Right)
	if err != nil {
		return Element{}, err
	}
	// An untyped literal on either side retargets to the other operand's
	// type before any equality check runs.
	if left.Kind == ElemConstant && left.Const.Untyped && right.Kind != ElemConstant {
		if left, err = coerceElemTo(left, TypeOf(right)); err != nil {
			return Element{}, err
		}
	} else if right.Kind == ElemConstant && right.Const.Untyped && left.Kind != ElemConstant {
		if right, err = coerceElemTo(right, TypeOf(left)); err != nil {
			return Element{}, err
		}
	}
	if left.Kind == ElemConstant && right.Kind == ElemConstant {
		c, err := foldBinaryCoerced(x.Op, left.Const, right.Const, x.Location())
		if err != nil {
			return Element{}, err
		}
		return constElem(c), nil
	}
	lt, rt := TypeOf(left), TypeOf(right)
	if err := checkBinaryTypes(x.Op, lt, rt, x.Location()); err != nil {
		return Element{}, err
	}
	if err := a.materialize(left); err != nil {
		return Element{}, err
	}
	if isShift(x.Op) {
		if right.Kind != ElemConstant {
			return Element{}, &NonConstantShiftError{Loc: x.Location()}
		}
	}
	if err := a.materialize(right); err != nil {
		return Element{}, err
	}
	op, resultType := binaryOpcode(x.Op, lt)
	a.gen.Emit(op, ir.Operand{Type: lt})
	return valueElem(resultType), nil
}

func isShift(op ast.BinOp) bool { return op == ast.OpShl || op == ast.OpShr }

func isBitwise(op ast.BinOp) bool {
	switch op {
	case ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor, ast.OpShl, ast.OpShr:
		return true
	}
	return false
}

func isComparison(op ast.BinOp) bool {
	switch op {
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return true
	}
	return false
}

func isLogical(op ast.BinOp) bool {
	switch op {
	case ast.OpAnd, ast.OpOr, ast.OpXor:
		return true
	}
	return false
}

func checkBinaryTypes(op ast.BinOp, lt, rt types.Type, loc diag.Location) error {
	if isLogical(op) {
		if lt.Kind != types.Bool || rt.Kind != types.Bool {
			return &TypeMismatchError{Loc: loc, Op: string(op), Left: lt, Right: rt}
		}
		return nil
	}
	if isBitwise(op) {
		if lt.Kind == types.SInt || lt.Kind == types.Field {
			return &BitwiseForbiddenError{Loc: loc, On: lt}
		}
	}
	if op == ast.OpRem && lt.Kind == types.Field {
		return &FieldRemainderError{Loc: loc}
	}
	if !isShift(op) && !types.Equal(lt, rt) {
		return &TypeMismatchError{Loc: loc, Op: string(op), Left: lt, Right: rt}
	}
	return nil
}

func binaryOpcode(op ast.BinOp, lt types.Type) (ir.Opcode, types.Type) {
	switch op {
	case ast.OpAdd:
		return ir.OpAdd, lt
	case ast.OpSub:
		return ir.OpSub, lt
	case ast.OpMul:
		return ir.OpMul, lt
	case ast.OpDiv:
		return ir.OpDiv, lt
	case ast.OpRem:
		return ir.OpRem, lt
	case ast.OpBitAnd:
		return ir.OpBitAnd, lt
	case ast.OpBitOr:
		return ir.OpBitOr, lt
	case ast.OpBitXor:
		return ir.OpBitXor, lt
	case ast.OpShl:
		return ir.OpShl, lt
	case ast.OpShr:
		return ir.OpShr, lt
	case ast.OpEq:
		return ir.OpEq, types.TyBool
	case ast.OpNe:
		return ir.OpNe, types.TyBool
	case ast.OpLt:
		return ir.OpLt, types.TyBool
	case ast.OpLe:
		return ir.OpLe, types.TyBool
	case ast.OpGt:
		return ir.OpGt, types.TyBool
	case ast.OpGe:
		return ir.OpGe, types.TyBool
	case ast.OpAnd:
		return ir.OpLogAnd, types.TyBool
	case ast.OpOr:
		return ir.OpLogOr, types.TyBool
	case ast.OpXor:
		return ir.OpLogXor, types.TyBool
	}
	return ir.OpAdd, lt
}

// foldBinary constant-folds a binary operator over two Constants (spec §4.8
// for the arithmetic identities, §4.4 for type rules).
func foldBinary(op ast.BinOp, l, r types.Constant, loc diag.Location) (types.Constant, error) {
	if err := checkBinaryTypes(op, l.Type(), r.Type(), loc); err != nil {
		return types.Constant{}, err
	}
	if isComparison(op) {
		cmp := l.Int.Cmp(r.Int)
		var b bool
		switch op {
		case ast.OpEq:
			b = cmp == 0
		case ast.OpNe:
			b = cmp != 0
		case ast.OpLt:
			b = cmp < 0
		case ast.OpLe:
			b = cmp <= 0
		case ast.OpGt:
			b = cmp > 0
		case ast.OpGe:
			b = cmp >= 0
		}
		return types.Constant{Kind: types.Bool, Bool: b}, nil
	}
	if isLogical(op) {
		var b bool
		switch op {
		case ast.OpAnd:
			b = l.Bool && r.Bool
		case ast.OpOr:
			b = l.Bool || r.Bool
		case ast.OpXor:
			b = l.Bool != r.Bool
		}
		return types.Constant{Kind: types.Bool, Bool: b}, nil
	}
	signed, bitlen := l.Signed, l.Bitlen
	isField := l.Kind == types.Field
	var v *big.Int
	switch op {
	case ast.OpAdd:
		v = new(big.Int).Add(l.Int, r.Int)
	case ast.OpSub:
		v = new(big.Int).Sub(l.Int, r.Int)
	case ast.OpMul:
		v = new(big.Int).Mul(l.Int, r.Int)
	case ast.OpDiv:
		q, _, err := types.EuclidDivRem(l.Int, r.Int)
		if err != nil {
			return types.Constant{}, err
		}
		v = q
	case ast.OpRem:
		_, m, err := types.EuclidDivRem(l.Int, r.Int)
		if err != nil {
			return types.Constant{}, err
		}
		v = m
	case ast.OpBitAnd:
		v = new(big.Int).And(l.Int, r.Int)
	case ast.OpBitOr:
		v = new(big.Int).Or(l.Int, r.Int)
	case ast.OpBitXor:
		v = new(big.Int).Xor(l.Int, r.Int)
	case ast.OpShl:
		v = new(big.Int).Lsh(l.Int, uint(r.Int.Int64()))
	case ast.OpShr:
		v = new(big.Int).Rsh(l.Int, uint(r.Int.Int64()))
	default:
		return types.Constant{}, &NotEvaluableError{Loc: loc, What: "operator " + string(op)}
	}
	if isField {
		v.Mod(v, types.FieldModulus)
		return types.NewInteger(v, false, 0)
	}
	return types.NewInteger(v, signed, bitlen)
}

// foldBinaryCoerced is foldBinary plus the untyped-literal retargeting
// foldBinary itself doesn't do: when exactly one operand is an untyped
// integer literal, it is reinterpreted at the other operand's concrete width
// before folding (spec §4.5). The result stays Untyped only when both
// operands were.
func foldBinaryCoerced(op ast.BinOp, l, r types.Constant, loc diag.Location) (types.Constant, error) {
	if l.Untyped != r.Untyped {
		var err error
		if l.Untyped {
			if l, err = l.Retarget(r.Signed, r.Bitlen); err != nil {
				return types.Constant{}, err
			}
		} else {
			if r, err = r.Retarget(l.Signed, l.Bitlen); err != nil {
				return types.Constant{}, err
			}
		}
	}
	c, err := foldBinary(op, l, r, loc)
	if err != nil {
		return types.Constant{}, err
	}
	c.Untyped = l.Untyped && r.Untyped
	return c, nil
}

func (a *Analyzer) lowerCast(x *ast.CastExpr) (Element, error) {
	target, err := a.resolveType(x.Type)
	if err != nil {
		return Element{}, err
	}
	operand, err := a.lowerExpr(RuleValue, x.X)
	if err != nil {
		return Element{}, err
	}
	from := TypeOf(operand)
	if !castPermitted(from, target) {
		return Element{}, &CastNotPermittedError{Loc: x.Location(), From: from, To: target}
	}
	if operand.Kind == ElemConstant {
		c, err := foldCast(operand.Const, target)
		if err != nil {
			return Element{}, err
		}
		return constElem(c), nil
	}
	if err := a.materialize(operand); err != nil {
		return Element{}, err
	}
	a.gen.Emit(ir.OpCast, ir.Operand{Type: target, Int2: int64(target.Bitlen)})
	return valueElem(target), nil
}

func castPermitted(from, to types.Type) bool {
	if from.Kind == types.Bool {
		return to.Kind == types.UInt
	}
	if types.IsInteger(from) || from.Kind == types.Field {
		return types.IsInteger(to) || to.Kind == types.Field
	}
	return false
}

// foldCast truncates/sign-extends a folded integer constant into its target
// width (spec §4.4 "as-rules").
func foldCast(c types.Constant, target types.Type) (types.Constant, error) {
	if c.Kind == types.Bool {
		v := big.NewInt(0)
		if c.Bool {
			v = big.NewInt(1)
		}
		return types.NewInteger(v, false, target.Bitlen)
	}
	if target.Kind == types.Field {
		v := new(big.Int).Mod(c.Int, types.FieldModulus)
		return types.NewInteger(v, false, 0)
	}
	bitlen := target.Bitlen
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(bitlen)), big.NewInt(1))
	v := new(big.Int).And(c.Int, mask)
	if target.Kind == types.SInt {
		signBit := new(big.Int).Lsh(big.NewInt(1), uint(bitlen-1))
		if v.Cmp(signBit) >= 0 {
			v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(bitlen)))
		}
	}
	return types.NewInteger(v, target.Kind == types.SInt, bitlen)
}

func (a *Analyzer) lowerIndex(x *ast.IndexExpr) (Element, error) {
	base, err := a.lowerExpr(RulePlace, x.X)
	if err != nil {
		return Element{}, err
	}
	idx, err := a.lowerExpr(RuleValue, x.Index)
	if err != nil {
		return Element{}, err
	}
	bt := TypeOf(base)
	if bt.Kind != types.Array {
		return Element{}, &TypeMismatchError{Loc: x.Location(), Op: "index", Left: bt}
	}
	if err := a.materialize(idx); err != nil {
		return Element{}, err
	}
	a.gen.Emit(ir.OpIndex, ir.Operand{Type: *bt.Elem})
	return valueElem(*bt.Elem), nil
}

// lowerField resolves `x.field`, either to a method reference (spec §4.4
// "method resolution via field access"), a contract-storage Place, or a
// projection into a struct value at its field's flattened scalar offset
// (spec §3 "Size": a struct occupies the sum of its fields' sizes).
func (a *Analyzer) lowerField(rule Rule, x *ast.FieldExpr) (Element, error) {
	base, err := a.lowerExpr(RulePlace, x.X)
	if err != nil {
		return Element{}, err
	}
	bt := TypeOf(base)
	if bt.Kind != types.Struct && bt.Kind != types.Contract {
		return Element{}, &TypeMismatchError{Loc: x.Location(), Op: "field access", Left: bt}
	}
	if fieldScope := a.arena.Get(bt.ID); fieldScope != nil {
		if item, ok := fieldScope.LookupLocal(x.Field); ok {
			if fn, ok := asFnDecl(item); ok {
				return Element{Kind: ElemIdentifier, Ident: fn.Name}, nil
			}
			if p, ok := item.Value.(Place); ok {
				p.RootIdentifier = base.Place.RootIdentifier
				if rule == RulePlace {
					return placeElem(p), nil
				}
				el := placeElem(p)
				if err := a.materialize(el); err != nil {
					return Element{}, err
				}
				return valueElem(p.Type), nil
			}
		}
	}

	offset, ft, found := fieldOffset(bt, x.Field)
	if !found {
		return Element{}, &scopeLookupError{Loc: x.Location(), Name: x.Field}
	}
	if base.Kind == ElemPlace {
		p := base.Place
		switch p.Memory {
		case MemContractStorage:
			p.StorageIndex += offset
		default:
			p.LocalSlot += offset
		}
		p.Type = ft
		if rule == RulePlace {
			return placeElem(p), nil
		}
		el := placeElem(p)
		if err := a.materialize(el); err != nil {
			return Element{}, err
		}
		return valueElem(ft), nil
	}
	if err := a.materialize(base); err != nil {
		return Element{}, err
	}
	a.gen.Emit(ir.OpFieldGet, ir.Operand{Int: int64(offset), Type: ft})
	return valueElem(ft), nil
}

func asFnDecl(item *scope.Item) (*ast.FnDecl, bool) {
	if fn, ok := item.Stmt.(*ast.FnDecl); ok {
		return fn, true
	}
	if fn, ok := item.Value.(*ast.FnDecl); ok {
		return fn, true
	}
	return nil, false
}

// fieldOffset returns the flattened scalar-slot offset of name within t's
// fields, and its resolved type.
func fieldOffset(t types.Type, name string) (offset int, ft types.Type, found bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return offset, *f.Type, true
		}
		offset += types.Size(*f.Type)
	}
	return 0, types.Type{}, false
}

func (a *Analyzer) lowerTupleIndex(x *ast.TupleIndexExpr) (Element, error) {
	base, err := a.lowerExpr(RuleValue, x.X)
	if err != nil {
		return Element{}, err
	}
	bt := TypeOf(base)
	if bt.Kind != types.Tuple || x.Index >= len(bt.Elems) {
		return Element{}, &TypeMismatchError{Loc: x.Location(), Op: "tuple index", Left: bt}
	}
	a.gen.Emit(ir.OpFieldGet, ir.Operand{Int: int64(x.Index), Type: bt.Elems[x.Index]})
	return valueElem(bt.Elems[x.Index]), nil
}

func (a *Analyzer) lowerArray(x *ast.ArrayExpr) (Element, error) {
	if len(x.Elems) == 0 {
		return Element{}, &NotEvaluableError{Loc: x.Location(), What: "empty array literal"}
	}
	var elemType types.Type
	for i, e := range x.Elems {
		el, err := a.lowerExpr(RuleValue, e)
		if err != nil {
			return Element{}, err
		}
		if err := a.materialize(el); err != nil {
			return Element{}, err
		}
		if i == 0 {
			elemType = TypeOf(el)
		}
	}
	arrType := types.Type{Kind: types.Array, Elem: &elemType, Len: len(x.Elems)}
	a.gen.Emit(ir.OpMakeArray, ir.Operand{Int: int64(len(x.Elems)), Type: elemType})
	return valueElem(arrType), nil
}

func (a *Analyzer) lowerTuple(x *ast.TupleExpr) (Element, error) {
	elemTypes := make([]types.Type, len(x.Elems))
	for i, e := range x.Elems {
		el, err := a.lowerExpr(RuleValue, e)
		if err != nil {
			return Element{}, err
		}
		if err := a.materialize(el); err != nil {
			return Element{}, err
		}
		elemTypes[i] = TypeOf(el)
	}
	a.gen.Emit(ir.OpMakeTuple, ir.Operand{Int: int64(len(x.Elems))})
	return valueElem(types.Type{Kind: types.Tuple, Elems: elemTypes}), nil
}

func (a *Analyzer) lowerStructLit(x *ast.StructLitExpr) (Element, error) {
	item, sc := a.file.Lookup(x.TypeName)
	if item == nil || sc == nil {
		return Element{}, &UnresolvedTypeError{Loc: x.Location(), Name: x.TypeName}
	}
	if err := a.define(item, x.Location()); err != nil {
		return Element{}, err
	}
	st, ok := item.Value.(types.Type)
	if !ok {
		return Element{}, &UnresolvedTypeError{Loc: x.Location(), Name: x.TypeName}
	}
	given := map[string]ast.Expr{}
	seen := map[string]bool{}
	for _, f := range x.Fields {
		if seen[f.Name] {
			return Element{}, &DuplicateFieldError{Loc: x.Location(), Name: f.Name}
		}
		seen[f.Name] = true
		given[f.Name] = f.Value
	}
	var missing []string
	for _, f := range st.Fields {
		e, ok := given[f.Name]
		if !ok {
			missing = append(missing, f.Name)
			continue
		}
		el, err := a.lowerExpr(RuleValue, e)
		if err != nil {
			return Element{}, err
		}
		if el, err = coerceElemTo(el, *f.Type); err != nil {
			return Element{}, err
		}
		if !types.Equal(TypeOf(el), *f.Type) {
			return Element{}, &TypeMismatchError{Loc: x.Location(), Op: "struct field " + f.Name, Left: *f.Type, Right: TypeOf(el)}
		}
		if err := a.materialize(el); err != nil {
			return Element{}, err
		}
	}
	if len(missing) > 0 {
		return Element{}, &StructNotInitializedError{Loc: x.Location(), Missing: missing}
	}
	a.gen.Emit(ir.OpMakeTuple, ir.Operand{Int: int64(len(st.Fields)), Type: st})
	return valueElem(st), nil
}

func (a *Analyzer) lowerRange(x *ast.RangeExpr) (Element, error) {
	lo, err := a.constEvalExpr(x.Low)
	if err != nil {
		return Element{}, &NotConstantError{Loc: x.Location(), What: "range bound"}
	}
	hi, err := a.constEvalExpr(x.High)
	if err != nil {
		return Element{}, &NotConstantError{Loc: x.Location(), What: "range bound"}
	}
	kind := types.Range
	if x.Inclusive {
		kind = types.RangeInclusive
	}
	return constElem(types.Constant{Kind: kind, Low: lo.Int, High: hi.Int}), nil
}

func (a *Analyzer) lowerAssign(x *ast.AssignExpr) (Element, error) {
	target, err := a.lowerExpr(RulePlace, x.Target)
	if err != nil {
		return Element{}, err
	}
	if target.Kind != ElemPlace {
		return Element{}, &NotAPlaceError{Loc: x.Location()}
	}
	if !target.Place.IsMutable {
		return Element{}, &ImmutablePlaceError{Loc: x.Location(), Name: target.Place.RootIdentifier}
	}
	val, err := a.lowerExpr(RuleValue, x.Value)
	if err != nil {
		return Element{}, err
	}
	if val, err = coerceElemTo(val, target.Place.Type); err != nil {
		return Element{}, err
	}
	if !types.Equal(TypeOf(val), target.Place.Type) {
		return Element{}, &TypeMismatchError{Loc: x.Location(), Op: "=", Left: target.Place.Type, Right: TypeOf(val)}
	}
	if err := a.materialize(val); err != nil {
		return Element{}, err
	}
	a.storePlace(target.Place)
	return valueElem(types.TyUnit), nil
}
