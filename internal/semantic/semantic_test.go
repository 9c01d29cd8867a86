package semantic_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vikkkko/zinc/internal/ir"
	"github.com/vikkkko/zinc/internal/lexer"
	"github.com/vikkkko/zinc/internal/parser"
	"github.com/vikkkko/zinc/internal/semantic"
	"github.com/vikkkko/zinc/internal/vm"
)

func analyzeProgram(t *testing.T, src string) (*ir.Program, error) {
	t.Helper()
	l, err := lexer.New("test.zn", strings.NewReader(src))
	require.NoError(t, err)
	f, err := parser.Parse(l)
	require.NoError(t, err)
	a := semantic.New(semantic.DefaultConfig())
	return a.AnalyzeFile(f)
}

// TestConstantFoldOverflowIsRejected exercises scenario S1 (spec §8): an
// out-of-range constant expression must fail at analysis time, before any
// bytecode reaches the VM.
func TestConstantFoldOverflowIsRejected(t *testing.T) {
	_, err := analyzeProgram(t, `fn main() -> u8 { 250u8 + 10u8 }`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "overflow")
}

// TestIfElseBranchesCompileAndRun exercises scenario S3: a well-typed
// if/else expression compiles to a program the VM can run to the arm
// actually taken by the selection gadget.
func TestIfElseBranchesCompileAndRun(t *testing.T) {
	prog, err := analyzeProgram(t, `
fn main() -> u8 {
  if 20 > 10 { 1u8 } else { 0u8 }
}`)
	require.NoError(t, err)
	m := vm.New(prog, nil, nil, vm.Config{})
	res, err := m.Run()
	require.NoError(t, err)
	require.Len(t, res.Output, 1)
	require.Equal(t, big.NewInt(1), res.Output[0].Int)
}

// TestRequireMasksUnderFalsePredicate exercises scenario S4: a require
// inside an untaken if-branch must not fail the whole program, because its
// side effect is masked by the branch predicate.
func TestRequireMasksUnderFalsePredicate(t *testing.T) {
	prog, err := analyzeProgram(t, `
fn main() -> u8 {
  if false {
    require(false, "unreachable");
    1u8
  } else {
    2u8
  }
}`)
	require.NoError(t, err)
	m := vm.New(prog, nil, nil, vm.Config{})
	res, err := m.Run()
	require.NoError(t, err)
	require.Len(t, res.Output, 1)
	require.Equal(t, big.NewInt(2), res.Output[0].Int)
}

// TestFieldRemainderIsForbidden confirms the fold-time rule: Field has no
// remainder operator (spec §4.8 "Rem forbidden on Field").
func TestFieldRemainderIsForbidden(t *testing.T) {
	_, err := analyzeProgram(t, `fn main() -> field { (1 as field) % (2 as field) }`)
	require.Error(t, err)
}

// TestBitwiseForbiddenOnSIntAndField confirms bitwise operators are
// rejected for SInt/Field at analysis time.
func TestBitwiseForbiddenOnSIntAndField(t *testing.T) {
	_, err := analyzeProgram(t, `fn main() -> i8 { (1 as i8) & (2 as i8) }`)
	require.Error(t, err)
}
