package semantic

import (
	"fmt"
	"strings"

	"github.com/vikkkko/zinc/internal/ast"
	"github.com/vikkkko/zinc/internal/diag"
	"github.com/vikkkko/zinc/internal/ir"
	"github.com/vikkkko/zinc/internal/scope"
	"github.com/vikkkko/zinc/internal/stdlib"
	"github.com/vikkkko/zinc/internal/types"
)

// definePass implements spec §4.3 pass 2 over the whole file: resolve every
// type/const, then lower every function body (free functions, impl methods,
// and the contract's methods, if any) to bytecode.
func (a *Analyzer) definePass() (*ir.Program, error) {
	prog := &ir.Program{UnitTests: make(map[string]ir.UnitTest)}
	if a.contract != nil {
		prog.Kind = ir.KindContract
		prog.Methods = make(map[string]ir.Method)
	} else {
		prog.Kind = ir.KindCircuit
	}

	for _, item := range a.file.Items {
		if item.Kind == scope.KindType || item.Kind == scope.KindConstant {
			if err := a.define(item, item.Loc); err != nil {
				return nil, err
			}
		}
	}
	if a.contractType != nil {
		prog.StorageFields = a.contractType.Fields
	}

	if a.contract != nil {
		var ownerType types.Type
		if a.contractType != nil {
			ownerType = *a.contractType
		}
		for _, fn := range a.methods[a.contract.Name] {
			// Contract methods are invoked directly by address from the
			// host (spec §6 "Program boundary"), exactly like `main` for a
			// circuit, so each one ends in OpExit rather than OpReturn.
			addr, retType, err := a.lowerFn(fn, &ownerType, true)
			if err != nil {
				return nil, err
			}
			realParams := fn.Params
			if len(realParams) > 0 && realParams[0].Name == "self" {
				realParams = realParams[1:]
			}
			in, err := a.paramsType(realParams)
			if err != nil {
				return nil, err
			}
			prog.Methods[fn.Name] = ir.Method{
				Address: addr, Input: in, Output: retType, IsMutable: methodIsMutable(fn.Body),
			}
		}
	}
	for _, item := range a.file.Items {
		fn, ok := item.Stmt.(*ast.FnDecl)
		if !ok {
			continue
		}
		if isOwnedMethod(a, fn) {
			continue
		}
		addr, _, err := a.lowerFn(fn, nil, fn.Name == "main" || fn.IsTest)
		if err != nil {
			return nil, err
		}
		switch {
		case fn.IsTest:
			prog.UnitTests[fn.Name] = ir.UnitTest{Address: addr, IsIgnored: fn.Ignored, ShouldPanic: fn.Panics}
		case fn.Name == "main":
			in, err := a.paramsType(fn.Params)
			if err != nil {
				return nil, err
			}
			prog.InputType = in
			out := types.TyUnit
			if fn.Ret != nil {
				t, err := a.resolveType(*fn.Ret)
				if err != nil {
					return nil, err
				}
				out = t
			}
			prog.OutputType = out
		}
	}
	if err := a.gen.ResolvePendingCalls(); err != nil {
		return nil, err
	}
	prog.Instructions = a.gen.Instructions()
	return prog, nil
}

// paramsType folds a parameter list into the single Type the host-facing
// input_type header records (spec §3 "input_type"): Unit for none, that one
// type for exactly one, otherwise a Tuple in declaration order so a host
// can flatten/unflatten the whole argument list as one typed value.
func (a *Analyzer) paramsType(params []ast.Param) (types.Type, error) {
	switch len(params) {
	case 0:
		return types.TyUnit, nil
	case 1:
		return a.resolveType(params[0].Type)
	default:
		elems := make([]types.Type, len(params))
		for i, p := range params {
			t, err := a.resolveType(p.Type)
			if err != nil {
				return types.Type{}, err
			}
			elems[i] = t
		}
		return types.Type{Kind: types.Tuple, Elems: elems}, nil
	}
}

// isOwnedMethod reports whether fn was already lowered as part of an impl
// block (methods are recorded under a.methods and lowered above, but their
// FnDecl node is not itself a top-level file item, so in practice this is
// always false; kept so a future impl-inside-module layout doesn't silently
// double-lower a method).
func isOwnedMethod(a *Analyzer, fn *ast.FnDecl) bool {
	for _, fns := range a.methods {
		for _, m := range fns {
			if m == fn {
				return true
			}
		}
	}
	return false
}

// methodIsMutable reports whether a method's body ever assigns to a
// contract-storage Place, used to populate Method.IsMutable (spec §3
// "methods: ... is_mutable").
func methodIsMutable(body *ast.BlockExpr) bool {
	found := false
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		if found || n == nil {
			return
		}
		switch x := n.(type) {
		case *ast.AssignExpr:
			found = true
		case *ast.BlockExpr:
			for _, s := range x.Stmts {
				if e, ok := s.(ast.Expr); ok {
					walk(e)
				} else if l, ok := s.(*ast.LetStmt); ok {
					walk(l.Value)
				}
			}
			if x.Result != nil {
				walk(x.Result)
			}
		case *ast.ExprStmt:
			walk(x.X)
		case *ast.IfExpr:
			walk(x.Cond)
			walk(x.Then)
			walk(x.Else)
		case *ast.ForExpr:
			walk(x.Body)
		case *ast.WhileExpr:
			walk(x.Cond)
			walk(x.Body)
		}
	}
	walk(body)
	return found
}

// lowerFn lowers one function body to bytecode, returning its entry address
// and resolved return type. ownerType is non-nil when fn is a method, giving
// `self`'s type (spec §4.4 "a self parameter must be in position 0").
// isEntry marks a function the host calls directly by address (`main`,
// `#[test]` functions, and every contract method), which closes with
// OpExit instead of OpReturn (spec §4.5).
func (a *Analyzer) lowerFn(fn *ast.FnDecl, ownerType *types.Type, isEntry bool) (addr int, retType types.Type, err error) {
	for i, p := range fn.Params {
		if p.Name == "self" && i != 0 {
			return 0, types.Type{}, &SelfPositionError{Loc: p.Location()}
		}
	}

	addr = a.gen.Len()
	a.gen.EnterFunction(fn.Name)

	fnScope := scope.New(fn.Name, a.file)
	for i, p := range fn.Params {
		var t types.Type
		if p.Name == "self" && i == 0 && ownerType != nil {
			t = *ownerType
		} else {
			t, err = a.resolveType(p.Type)
			if err != nil {
				return 0, types.Type{}, err
			}
		}
		slot := a.gen.AllocLocal(p.Name, types.Size(t))
		fnScope.DeclareResolved(p.Name, scope.KindVariable, Place{
			RootIdentifier: p.Name, Type: t, IsMutable: false, Memory: MemStack, LocalSlot: slot,
		})
	}

	retType = types.TyUnit
	if fn.Ret != nil {
		retType, err = a.resolveType(*fn.Ret)
		if err != nil {
			return 0, types.Type{}, err
		}
	}

	prevScope, prevReturn, prevEntry := a.curScope, a.curReturn, a.curIsEntry
	a.curScope, a.curReturn, a.curIsEntry = fnScope, retType, isEntry
	defer func() { a.curScope, a.curReturn, a.curIsEntry = prevScope, prevReturn, prevEntry }()

	result, err := a.lowerBlock(fn.Body)
	if err != nil {
		return 0, types.Type{}, err
	}
	if result, err = coerceElemTo(result, retType); err != nil {
		return 0, types.Type{}, err
	}
	if !types.Equal(TypeOf(result), retType) {
		return 0, types.Type{}, &ReturnTypeMismatchError{Loc: fn.Body.Location(), Declared: retType, Actual: TypeOf(result)}
	}
	if err := a.materialize(result); err != nil {
		return 0, types.Type{}, err
	}
	if a.curIsEntry {
		a.gen.Emit(ir.OpExit, ir.Operand{Type: retType})
	} else {
		a.gen.Emit(ir.OpReturn, ir.Operand{Type: retType})
	}
	return addr, retType, nil
}

// lowerBlock opens a child scope, lowers every statement, and returns the
// Element of the trailing tail expression (Unit if absent, spec §3 "Block").
func (a *Analyzer) lowerBlock(b *ast.BlockExpr) (Element, error) {
	prev := a.curScope
	a.curScope = scope.New("block", prev)
	defer func() { a.curScope = prev }()

	for _, stmt := range b.Stmts {
		if err := a.lowerStmt(stmt); err != nil {
			return Element{}, err
		}
	}
	if b.Result == nil {
		return valueElem(types.TyUnit), nil
	}
	return a.lowerExpr(RuleValue, b.Result)
}

func (a *Analyzer) lowerStmt(item ast.Item) error {
	switch st := item.(type) {
	case *ast.LetStmt:
		val, err := a.lowerExpr(RuleValue, st.Value)
		if err != nil {
			return err
		}
		t := TypeOf(val)
		if st.Type != nil {
			declared, err := a.resolveType(*st.Type)
			if err != nil {
				return err
			}
			if val, err = coerceElemTo(val, declared); err != nil {
				return err
			}
			t = TypeOf(val)
			if !types.Equal(declared, t) {
				return &TypeMismatchError{Loc: st.Location(), Op: "let " + st.Name, Left: declared, Right: t}
			}
			t = declared
		}
		if err := a.materialize(val); err != nil {
			return err
		}
		if types.Size(t) == 0 {
			return nil
		}
		slot := a.gen.AllocLocal(st.Name, types.Size(t))
		a.curScope.DeclareResolved(st.Name, scope.KindVariable, Place{
			RootIdentifier: st.Name, Type: t, IsMutable: st.Mutable, Memory: MemStack, LocalSlot: slot,
		})
		a.gen.Emit(ir.OpStoreLocal, ir.Operand{Int: int64(slot), Type: t})
		return nil
	case *ast.ConstDecl:
		c, err := a.constEvalExpr(st.Value)
		if err != nil {
			return err
		}
		if st.Type != nil {
			declared, err := a.resolveType(*st.Type)
			if err != nil {
				return err
			}
			if c.Untyped && (declared.Kind == types.UInt || declared.Kind == types.SInt || declared.Kind == types.Field) {
				if c, err = c.Retarget(declared.Kind == types.SInt, declared.Bitlen); err != nil {
					return err
				}
			}
			if !types.Equal(declared, c.Type()) {
				return &TypeMismatchError{Loc: st.Location(), Op: "const " + st.Name, Left: declared, Right: c.Type()}
			}
		}
		a.curScope.DeclareResolved(st.Name, scope.KindConstant, c)
		return nil
	case *ast.ExprStmt:
		el, err := a.lowerExpr(RuleValue, st.X)
		if err != nil {
			return err
		}
		if TypeOf(el).Kind == types.Unit {
			return nil
		}
		if err := a.materialize(el); err != nil {
			return err
		}
		a.gen.Emit(ir.OpPop, ir.Operand{})
		return nil
	case *ast.BlockExpr:
		_, err := a.lowerBlock(st)
		return err
	default:
		return fmt.Errorf("%s: unsupported statement form", item.Location())
	}
}

func (a *Analyzer) lowerIf(x *ast.IfExpr) (Element, error) {
	cond, err := a.lowerExpr(RuleValue, x.Cond)
	if err != nil {
		return Element{}, err
	}
	if TypeOf(cond).Kind != types.Bool {
		return Element{}, &TypeMismatchError{Loc: x.Location(), Op: "if condition", Left: TypeOf(cond)}
	}
	if err := a.materialize(cond); err != nil {
		return Element{}, err
	}

	// Both arms execute unconditionally; the result is merged with a select
	// gadget at runtime (spec §4.7 "if/else ... both branches always
	// execute"), so the generator just brackets each side with markers.
	a.gen.Emit(ir.OpIf, ir.Operand{})
	thenVal, err := a.lowerBlock(x.Then)
	if err != nil {
		return Element{}, err
	}
	if err := a.materialize(thenVal); err != nil {
		return Element{}, err
	}
	a.gen.Emit(ir.OpElse, ir.Operand{})

	elseVal := valueElem(types.TyUnit)
	if x.Else != nil {
		elseVal, err = a.lowerExpr(RuleValue, x.Else)
		if err != nil {
			return Element{}, err
		}
		if err := a.materialize(elseVal); err != nil {
			return Element{}, err
		}
	}
	if !types.Equal(TypeOf(thenVal), TypeOf(elseVal)) {
		return Element{}, &TypeMismatchError{Loc: x.Location(), Op: "if/else arms", Left: TypeOf(thenVal), Right: TypeOf(elseVal)}
	}
	a.gen.Emit(ir.OpEndIf, ir.Operand{Type: TypeOf(thenVal)})
	return valueElem(TypeOf(thenVal)), nil
}

func isWildcardOrBinding(e ast.Expr) bool {
	_, ok := e.(*ast.Ident)
	return ok
}

// lowerMatch supports literal patterns plus a trailing wildcard/binding arm
// (spec §3 "Match"); it is desugared into nested OpIf/OpElse pairs keyed on
// an OpEq comparison against the scrutinee, the same merge-by-select
// machinery as `if`.
func (a *Analyzer) lowerMatch(x *ast.MatchExpr) (Element, error) {
	scrut, err := a.lowerExpr(RuleValue, x.Scrutinee)
	if err != nil {
		return Element{}, err
	}
	st := TypeOf(scrut)
	if err := a.materialize(scrut); err != nil {
		return Element{}, err
	}
	slot := a.gen.AllocLocal("$match", types.Size(st))
	a.gen.Emit(ir.OpStoreLocal, ir.Operand{Int: int64(slot), Type: st})
	return a.lowerMatchArms(x.Arms, slot, st, x.Location())
}

func (a *Analyzer) lowerMatchArms(arms []ast.MatchArm, slot int, st types.Type, loc diag.Location) (Element, error) {
	if len(arms) == 0 {
		return Element{}, fmt.Errorf("%s: match is not exhaustive", loc)
	}
	arm := arms[0]
	if isWildcardOrBinding(arm.Pattern) || len(arms) == 1 {
		return a.lowerExpr(RuleValue, arm.Body)
	}
	a.gen.Emit(ir.OpLoadLocal, ir.Operand{Int: int64(slot), Type: st})
	patEl, err := a.lowerExpr(RuleConstant, arm.Pattern)
	if err != nil {
		return Element{}, err
	}
	if err := a.materialize(patEl); err != nil {
		return Element{}, err
	}
	a.gen.Emit(ir.OpEq, ir.Operand{Type: st})
	a.gen.Emit(ir.OpIf, ir.Operand{})
	thenVal, err := a.lowerExpr(RuleValue, arm.Body)
	if err != nil {
		return Element{}, err
	}
	if err := a.materialize(thenVal); err != nil {
		return Element{}, err
	}
	a.gen.Emit(ir.OpElse, ir.Operand{})
	elseVal, err := a.lowerMatchArms(arms[1:], slot, st, loc)
	if err != nil {
		return Element{}, err
	}
	if err := a.materialize(elseVal); err != nil {
		return Element{}, err
	}
	if !types.Equal(TypeOf(thenVal), TypeOf(elseVal)) {
		return Element{}, &TypeMismatchError{Op: "match arms", Left: TypeOf(thenVal), Right: TypeOf(elseVal)}
	}
	a.gen.Emit(ir.OpEndIf, ir.Operand{Type: TypeOf(thenVal)})
	return valueElem(TypeOf(thenVal)), nil
}

// lowerFor lowers a bounded `for x in a..b` loop (spec §4.5 "loop counts
// bounded by a constant upper limit fixed at analysis time"). Both endpoints
// must be compile-time constants.
func (a *Analyzer) lowerFor(x *ast.ForExpr) (Element, error) {
	rangeExpr, ok := x.Range.(*ast.RangeExpr)
	if !ok {
		return Element{}, &NotConstantError{Loc: x.Location(), What: "for-loop range"}
	}
	loC, err := a.constEvalExpr(rangeExpr.Low)
	if err != nil {
		return Element{}, err
	}
	hiC, err := a.constEvalExpr(rangeExpr.High)
	if err != nil {
		return Element{}, err
	}
	elemType := loC.Type()
	lo, hi := loC.Int.Int64(), hiC.Int.Int64()
	count := hi - lo
	if rangeExpr.Inclusive {
		count++
	}
	if count < 0 {
		count = 0
	}
	if count > int64(a.cfg.Generator.MaxLoopIterations) {
		return Element{}, fmt.Errorf("%s: loop of %d iterations exceeds the configured bound of %d", x.Location(), count, a.cfg.Generator.MaxLoopIterations)
	}

	a.gen.Emit(ir.OpLoopBegin, ir.Operand{Int: count, Int2: lo, Type: elemType})
	prev := a.curScope
	a.curScope = scope.New("for", prev)
	slot := a.gen.AllocLocal(x.Var, types.Size(elemType))
	a.curScope.DeclareResolved(x.Var, scope.KindVariable, Place{
		RootIdentifier: x.Var, Type: elemType, IsMutable: false, Memory: MemStack, LocalSlot: slot,
	})
	// The loop body is emitted once; OpLoopVar supplies the per-iteration
	// index (offset by OpLoopBegin's Int2) each time the VM rewinds, so the
	// loop variable's slot is refreshed on every pass.
	a.gen.Emit(ir.OpLoopVar, ir.Operand{Type: elemType})
	a.gen.Emit(ir.OpStoreLocal, ir.Operand{Int: int64(slot), Type: elemType})
	_, err = a.lowerBlock(x.Body)
	a.curScope = prev
	if err != nil {
		return Element{}, err
	}
	a.gen.Emit(ir.OpLoopEnd, ir.Operand{})
	return valueElem(types.TyUnit), nil
}

// lowerWhile lowers a condition-controlled loop, capped at
// Config.Generator.MaxLoopIterations iterations (spec §4.5) since the
// condition itself need not be a compile-time constant.
func (a *Analyzer) lowerWhile(x *ast.WhileExpr) (Element, error) {
	a.gen.Emit(ir.OpLoopBegin, ir.Operand{Int: int64(a.cfg.Generator.MaxLoopIterations)})
	cond, err := a.lowerExpr(RuleValue, x.Cond)
	if err != nil {
		return Element{}, err
	}
	if TypeOf(cond).Kind != types.Bool {
		return Element{}, &TypeMismatchError{Loc: x.Location(), Op: "while condition", Left: TypeOf(cond)}
	}
	if err := a.materialize(cond); err != nil {
		return Element{}, err
	}
	a.gen.Emit(ir.OpIf, ir.Operand{})
	if _, err := a.lowerBlock(x.Body); err != nil {
		return Element{}, err
	}
	a.gen.Emit(ir.OpEndIf, ir.Operand{Type: types.TyUnit})
	a.gen.Emit(ir.OpLoopEnd, ir.Operand{})
	return valueElem(types.TyUnit), nil
}

func (a *Analyzer) lowerReturn(x *ast.ReturnExpr) (Element, error) {
	val := valueElem(types.TyUnit)
	if x.Value != nil {
		var err error
		val, err = a.lowerExpr(RuleValue, x.Value)
		if err != nil {
			return Element{}, err
		}
	}
	var err error
	if val, err = coerceElemTo(val, a.curReturn); err != nil {
		return Element{}, err
	}
	if !types.Equal(TypeOf(val), a.curReturn) {
		return Element{}, &ReturnTypeMismatchError{Loc: x.Location(), Declared: a.curReturn, Actual: TypeOf(val)}
	}
	if err := a.materialize(val); err != nil {
		return Element{}, err
	}
	if a.curIsEntry {
		a.gen.Emit(ir.OpExit, ir.Operand{Type: a.curReturn})
	} else {
		a.gen.Emit(ir.OpReturn, ir.Operand{Type: a.curReturn})
	}
	return valueElem(types.TyUnit), nil
}

// lowerCall handles free-function calls, method calls desugared from field
// access (spec §4.4: "method resolution via field access converts to a call
// with self bound"), and stdlib/library calls reached through a path
// (spec §6).
func (a *Analyzer) lowerCall(x *ast.CallExpr) (Element, error) {
	switch callee := x.Callee.(type) {
	case *ast.FieldExpr:
		return a.lowerMethodCall(callee, x.Args)
	case *ast.Ident:
		switch callee.Name {
		case "require":
			return a.lowerRequireCall(x)
		case "dbg":
			return a.lowerDbgCall(x)
		}
		item, sc := a.curScope.Lookup(callee.Name)
		if item == nil || sc == nil {
			return Element{}, &scopeLookupError{Loc: x.Location(), Name: callee.Name}
		}
		fn, ok := asFnDecl(item)
		if !ok {
			return Element{}, &NotEvaluableError{Loc: x.Location(), What: callee.Name}
		}
		return a.lowerDirectCall(fn, x.Args)
	case *ast.PathExpr:
		return a.lowerLibraryCall(strings.Join(callee.Segments, "::"), x.Args, x.Location())
	default:
		return Element{}, &NotEvaluableError{Loc: x.Location(), What: "call target"}
	}
}

func (a *Analyzer) lowerDirectCall(fn *ast.FnDecl, args []ast.Expr) (Element, error) {
	if len(args) != len(fn.Params) {
		return Element{}, fmt.Errorf("%s: %q expects %d argument(s), got %d", fn.Location(), fn.Name, len(fn.Params), len(args))
	}
	for i, argExpr := range args {
		argEl, err := a.lowerExpr(RuleValue, argExpr)
		if err != nil {
			return Element{}, err
		}
		pt, err := a.resolveType(fn.Params[i].Type)
		if err != nil {
			return Element{}, err
		}
		if argEl, err = coerceElemTo(argEl, pt); err != nil {
			return Element{}, err
		}
		if !types.Equal(TypeOf(argEl), pt) {
			return Element{}, &TypeMismatchError{Loc: argExpr.Location(), Op: "argument " + fn.Params[i].Name, Left: pt, Right: TypeOf(argEl)}
		}
		if err := a.materialize(argEl); err != nil {
			return Element{}, err
		}
	}
	a.gen.EmitCall(fn.Name, len(args))
	retType := types.TyUnit
	if fn.Ret != nil {
		t, err := a.resolveType(*fn.Ret)
		if err != nil {
			return Element{}, err
		}
		retType = t
	}
	return valueElem(retType), nil
}

func (a *Analyzer) lowerMethodCall(fe *ast.FieldExpr, args []ast.Expr) (Element, error) {
	self, err := a.lowerExpr(RulePlace, fe.X)
	if err != nil {
		return Element{}, err
	}
	bt := TypeOf(self)
	if bt.Kind != types.Struct && bt.Kind != types.Enum && bt.Kind != types.Contract {
		return Element{}, &TypeMismatchError{Loc: fe.Location(), Op: "method call", Left: bt}
	}
	fieldScope := a.arena.Get(bt.ID)
	if fieldScope == nil {
		return Element{}, &scopeLookupError{Loc: fe.Location(), Name: fe.Field}
	}
	item, ok := fieldScope.LookupLocal(fe.Field)
	if !ok {
		return Element{}, &scopeLookupError{Loc: fe.Location(), Name: fe.Field}
	}
	fn, ok := asFnDecl(item)
	if !ok {
		return Element{}, &NotEvaluableError{Loc: fe.Location(), What: fe.Field}
	}
	if err := a.materialize(self); err != nil {
		return Element{}, err
	}
	// fn.Params[0] is `self`; remaining params line up with args.
	params := fn.Params
	if len(params) > 0 && params[0].Name == "self" {
		params = params[1:]
	}
	if len(args) != len(params) {
		return Element{}, fmt.Errorf("%s: %q expects %d argument(s), got %d", fn.Location(), fn.Name, len(params), len(args))
	}
	for i, argExpr := range args {
		argEl, err := a.lowerExpr(RuleValue, argExpr)
		if err != nil {
			return Element{}, err
		}
		pt, err := a.resolveType(params[i].Type)
		if err != nil {
			return Element{}, err
		}
		if argEl, err = coerceElemTo(argEl, pt); err != nil {
			return Element{}, err
		}
		if !types.Equal(TypeOf(argEl), pt) {
			return Element{}, &TypeMismatchError{Loc: argExpr.Location(), Op: "argument " + params[i].Name, Left: pt, Right: TypeOf(argEl)}
		}
		if err := a.materialize(argEl); err != nil {
			return Element{}, err
		}
	}
	a.gen.EmitCall(fn.Name, len(args)+1)
	retType := types.TyUnit
	if fn.Ret != nil {
		t, err := a.resolveType(*fn.Ret)
		if err != nil {
			return Element{}, err
		}
		retType = t
	}
	return valueElem(retType), nil
}

func (a *Analyzer) lowerRequireCall(x *ast.CallExpr) (Element, error) {
	if len(x.Args) < 1 {
		return Element{}, fmt.Errorf("%s: require() needs a boolean condition argument", x.Location())
	}
	cond, err := a.lowerExpr(RuleValue, x.Args[0])
	if err != nil {
		return Element{}, err
	}
	if TypeOf(cond).Kind != types.Bool {
		return Element{}, &TypeMismatchError{Loc: x.Location(), Op: "require", Left: TypeOf(cond)}
	}
	if err := a.materialize(cond); err != nil {
		return Element{}, err
	}
	msg := ""
	if len(x.Args) > 1 {
		if lit, ok := x.Args[1].(*ast.StringLit); ok {
			msg = lit.Value
		}
	}
	a.gen.Emit(ir.OpRequire, ir.Operand{Str: msg})
	return valueElem(types.TyUnit), nil
}

func (a *Analyzer) lowerDbgCall(x *ast.CallExpr) (Element, error) {
	format := ""
	rest := x.Args
	if len(x.Args) > 0 {
		if lit, ok := x.Args[0].(*ast.StringLit); ok {
			format = lit.Value
			rest = x.Args[1:]
		}
	}
	for _, argExpr := range rest {
		el, err := a.lowerExpr(RuleValue, argExpr)
		if err != nil {
			return Element{}, err
		}
		if err := a.materialize(el); err != nil {
			return Element{}, err
		}
	}
	a.gen.Emit(ir.OpDbg, ir.Operand{Str: format, Int: int64(len(rest))})
	return valueElem(types.TyUnit), nil
}

// lowerLibraryCall handles a `std::...`/`zksync::...` path call (spec §6):
// arguments are pushed and OpCallLibrary names the binding; internal/stdlib
// supplies the concrete gadget and return type the VM resolves name against.
func (a *Analyzer) lowerLibraryCall(name string, args []ast.Expr, loc diag.Location) (Element, error) {
	binding, ok := stdlib.Lookup(name)
	if !ok {
		return Element{}, diag.NewWithSuggestions(diag.KindScope, loc, name, stdlib.Names(), "unknown library call %q", name)
	}
	for _, argExpr := range args {
		el, err := a.lowerExpr(RuleValue, argExpr)
		if err != nil {
			return Element{}, err
		}
		if err := a.materialize(el); err != nil {
			return Element{}, err
		}
	}
	a.gen.Emit(ir.OpCallLibrary, ir.Operand{Str: name, Int: int64(len(args))})
	return valueElem(binding.Result), nil
}
