package host_test

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vikkkko/zinc/internal/bytecode"
	"github.com/vikkkko/zinc/internal/host"
	"github.com/vikkkko/zinc/internal/ir"
	"github.com/vikkkko/zinc/internal/lexer"
	"github.com/vikkkko/zinc/internal/parser"
	"github.com/vikkkko/zinc/internal/semantic"
	"github.com/vikkkko/zinc/internal/vm"
)

func analyze(t *testing.T, src string) *ir.Program {
	t.Helper()
	l, err := lexer.New("test.zn", strings.NewReader(src))
	require.NoError(t, err)
	f, err := parser.Parse(l)
	require.NoError(t, err)
	a := semantic.New(semantic.DefaultConfig())
	prog, err := a.AnalyzeFile(f)
	require.NoError(t, err)
	return prog
}

// TestRunCircuitArithmetic exercises scenario S1's passing half end to end:
// source -> tokens -> syntax tree -> IR -> bytecode round trip (S6) -> VM,
// through the host boundary's Value <-> Constant conversion.
func TestRunCircuitArithmetic(t *testing.T) {
	prog := analyze(t, `fn main(a: u8, b: u8) -> u8 { (a + b) * 2 }`)

	var buf bytes.Buffer
	require.NoError(t, bytecode.Encode(&buf, prog))
	decoded, err := bytecode.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	in := bytecode.TupleValue([]bytecode.Value{bytecode.IntValue(big.NewInt(3)), bytecode.IntValue(big.NewInt(4))})
	out, _, err := host.RunCircuit(decoded, in, vm.Config{})
	require.NoError(t, err)
	require.Equal(t, 0, out.Int.Cmp(big.NewInt(14)))
}

// TestRunCircuitOverflowFails exercises scenario S1's failing half: a=200,
// b=100 overflows u8 at the add and must surface as an error.
func TestRunCircuitOverflowFails(t *testing.T) {
	prog := analyze(t, `fn main(a: u8, b: u8) -> u8 { (a + b) * 2 }`)

	in := bytecode.TupleValue([]bytecode.Value{bytecode.IntValue(big.NewInt(200)), bytecode.IntValue(big.NewInt(100))})
	_, _, err := host.RunCircuit(prog, in, vm.Config{})
	require.Error(t, err)
}

// TestRunContractMethod exercises scenario S5: a contract with storage
// {counter: u64} and a mutating method inc(self) -> u64 that increments and
// returns the new counter, driven through the host's ContractCallRequest.
func TestRunContractMethod(t *testing.T) {
	prog := analyze(t, `
contract Counter {
  counter: u64,
}

impl Counter {
  fn inc(self) -> u64 {
    self.counter = self.counter + 1;
    self.counter
  }
}
`)
	require.Contains(t, prog.Methods, "inc")
	require.True(t, prog.Methods["inc"].IsMutable)

	req := bytecode.ContractCallRequest{
		Method: "inc",
		Args:   bytecode.Value{Kind: "unit"},
		Storage: bytecode.StorageSnapshot{
			bytecode.ArrayLeaf([]bytecode.Value{bytecode.IntValue(big.NewInt(41))}),
		},
	}
	res, err := host.RunContractMethod(prog, req, vm.Config{})
	require.NoError(t, err)
	require.Equal(t, 0, res.Output.Int.Cmp(big.NewInt(42)))
	require.Len(t, res.Storage, 1)
	require.Len(t, res.Storage[0].Elems, 1)
	require.Equal(t, 0, res.Storage[0].Elems[0].Int.Cmp(big.NewInt(42)))
}
