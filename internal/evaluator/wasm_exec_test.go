package evaluator

import (
	"context"
	"testing"

	"github.com/opnet-core/indexer/internal/types"
	"github.com/opnet-core/indexer/pkg/errkind"
)

// fakeReader serves a fixed in-memory slot map, standing in for
// storage.StateSlotRepo in these evaluator-only tests.
type fakeReader struct {
	slots map[SlotKey]types.StateValue
}

func (r fakeReader) GetSlot(contract types.ContractAddress, pointer types.Pointer, atHeight uint64) (types.StateValue, bool, error) {
	v, ok := r.slots[SlotKey{Contract: contract, Pointer: pointer}]
	return v, ok, nil
}

// fakeCode serves a fixed contract address -> bytecode map, standing in
// for blockproc's contractCodeProvider adapter.
type fakeCode struct {
	bytecode map[types.ContractAddress][]byte
}

func (c fakeCode) GetBytecode(addr types.ContractAddress, atHeight uint64) ([]byte, bool, error) {
	b, ok := c.bytecode[addr]
	return b, ok, nil
}

func (c fakeCode) Exists(addr types.ContractAddress, atHeight uint64) (bool, error) {
	_, ok := c.bytecode[addr]
	return ok, nil
}

func testBlock() BlockContext { return BlockContext{Height: 1} }
func testTx() TxContext       { return TxContext{} }

func newTestEvaluator(t *testing.T) *ContractEvaluator {
	t.Helper()
	eval, err := NewContractEvaluator(Config{ReentrancyGuard: true})
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	return eval
}

func TestExecuteStorageWrite(t *testing.T) {
	eval := newTestEvaluator(t)
	reader := fakeReader{slots: map[SlotKey]types.StateValue{}}
	code := fakeCode{bytecode: map[types.ContractAddress][]byte{}}

	result, err := eval.Execute(context.Background(), wasmStorageWrite, "contract-a", nil, "caller",
		testTx(), testBlock(), nil, nil, reader, code, 1_000_000)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Outcome != OutcomeOK {
		t.Fatalf("outcome = %v, want OutcomeOK", result.Outcome)
	}
	if len(result.Writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(result.Writes))
	}
	if result.Writes[0].Contract != "contract-a" {
		t.Errorf("write contract = %q", result.Writes[0].Contract)
	}
	if result.GasUsed == 0 {
		t.Errorf("gas used = 0, want > 0")
	}
}

func TestExecuteRevertDiscardsNoWrites(t *testing.T) {
	eval := newTestEvaluator(t)
	reader := fakeReader{slots: map[SlotKey]types.StateValue{}}
	code := fakeCode{bytecode: map[types.ContractAddress][]byte{}}

	result, err := eval.Execute(context.Background(), wasmRevert, "contract-b", nil, "caller",
		testTx(), testBlock(), nil, nil, reader, code, 1_000_000)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Outcome != OutcomeRevert {
		t.Fatalf("outcome = %v, want OutcomeRevert", result.Outcome)
	}
	if result.RevertReason != "oops" {
		t.Errorf("revert reason = %q, want %q", result.RevertReason, "oops")
	}
	if len(result.Writes) != 0 {
		t.Errorf("writes = %d, want 0 on revert", len(result.Writes))
	}
}

func TestExecuteOutOfGasUsesFullLimit(t *testing.T) {
	eval := newTestEvaluator(t)
	reader := fakeReader{slots: map[SlotKey]types.StateValue{}}
	code := fakeCode{bytecode: map[types.ContractAddress][]byte{}}

	const limit = 1000
	result, err := eval.Execute(context.Background(), wasmOutOfGas, "contract-c", nil, "caller",
		testTx(), testBlock(), nil, nil, reader, code, limit)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Outcome != OutcomeOutOfGas {
		t.Fatalf("outcome = %v, want OutcomeOutOfGas", result.Outcome)
	}
	if result.GasUsed != limit {
		t.Errorf("gas used = %d, want %d (gas_used == gas_limit on OOG)", result.GasUsed, limit)
	}
}

func TestExecuteReentrantCallFails(t *testing.T) {
	eval := newTestEvaluator(t)
	reader := fakeReader{slots: map[SlotKey]types.StateValue{}}
	code := fakeCode{bytecode: map[types.ContractAddress][]byte{
		"A": wasmReentrantCall,
	}}

	result, err := eval.Execute(context.Background(), wasmReentrantCall, "A", nil, "caller",
		testTx(), testBlock(), nil, nil, reader, code, 1_000_000)
	if err == nil {
		t.Fatalf("execute: want error, got result %+v", result)
	}
	if !errkind.Is(err, errkind.Reentrancy) {
		t.Fatalf("err kind = %v, want Reentrancy", errkind.Of(err))
	}
}

func TestExecuteCallMergesChildWrites(t *testing.T) {
	eval := newTestEvaluator(t)
	reader := fakeReader{slots: map[SlotKey]types.StateValue{}}
	// wasmReentrantCall's data segment hardcodes its target contract
	// address as "A"; running it under a different top-level address with
	// "A" resolving to wasmStorageWrite exercises a non-reentrant nested
	// call whose writes must merge into the parent's result.
	code := fakeCode{bytecode: map[types.ContractAddress][]byte{
		"A": wasmStorageWrite,
	}}

	result, err := eval.Execute(context.Background(), wasmReentrantCall, "parent", nil, "caller",
		testTx(), testBlock(), nil, nil, reader, code, 1_000_000)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Outcome != OutcomeOK {
		t.Fatalf("outcome = %v, want OutcomeOK", result.Outcome)
	}
	if len(result.Writes) != 1 {
		t.Fatalf("writes = %d, want 1 merged from child", len(result.Writes))
	}
	if result.Writes[0].Contract != "A" {
		t.Errorf("write contract = %q, want %q (child's own contract)", result.Writes[0].Contract, "A")
	}
}
