package evaluator

import (
	"context"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/opnet-core/indexer/internal/types"
	"github.com/opnet-core/indexer/pkg/errkind"
)

// hostState is the mutable, per-call state host functions close over.
// Registered under the "env" import namespace, mirroring
// core/virtual_machine.go's registerHost/hostCtx shape.
type hostState struct {
	memory *wasmer.Memory
	gas    *GasMeter

	contract types.ContractAddress

	// working is the current in-memory working set, seeded from preload
	// and storage reads, and consulted by host_storage_read (§4.3 step 3/4).
	working map[SlotKey]types.StateValue
	reader  StorageReader
	height  uint64

	// required accumulates the slots the guest declares it needs this
	// iteration (§4.3 step 2/5): host_declare_slot appends to it.
	required map[SlotKey]struct{}

	writes []types.StateWrite
	events []types.Event

	returnData   []byte
	reverted     bool
	revertReason string

	// ctx, tx, block, code, eval and cs are only needed to service
	// host_call/host_deploy: a contract calling or deploying another
	// contract re-enters the evaluator with the same call state (§4.3
	// "External calls").
	ctx   context.Context
	tx    TxContext
	block BlockContext
	code  ContractCodeProvider
	eval  *ContractEvaluator
	cs    *callState

	// deployed accumulates contracts deployed by this call via host_deploy,
	// surfaced back to the caller as EvaluationResult.DeployedChildren.
	deployed []types.ContractInformation
}

func newHostState(
	ctx context.Context,
	contract types.ContractAddress,
	tx TxContext,
	block BlockContext,
	reader StorageReader,
	code ContractCodeProvider,
	eval *ContractEvaluator,
	cs *callState,
) *hostState {
	return &hostState{
		contract: contract,
		gas:      cs.gas,
		reader:   reader,
		height:   block.Height,
		working:  make(map[SlotKey]types.StateValue),
		required: make(map[SlotKey]struct{}),
		ctx:      ctx,
		tx:       tx,
		block:    block,
		code:     code,
		eval:     eval,
		cs:       cs,
	}
}

func (h *hostState) readMemory(offset, length int32) []byte {
	data := h.memory.Data()
	return data[offset : offset+length]
}

func (h *hostState) writeMemory(offset int32, src []byte) {
	data := h.memory.Data()
	copy(data[offset:], src)
}

// registerHost builds the "env" import object exposing the host functions a
// contract links against. Every host call except host_return and host_revert
// charges gas before doing work so an under-funded call fails fast.
func registerHost(store *wasmer.Store, mod *wasmer.Module, hs *hostState) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()

	consumeGas := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I64), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			amount := uint64(args[0].I64())
			if err := hs.gas.Consume(amount); err != nil {
				return nil, err
			}
			return []wasmer.Value{}, nil
		},
	)

	declareSlot := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := hs.gas.Consume(GasCost(OpHash)); err != nil {
				return nil, err
			}
			ptrOffset := args[0].I32()
			var pointer types.Pointer
			copy(pointer[:], hs.readMemory(ptrOffset, 32))
			hs.required[SlotKey{Contract: hs.contract, Pointer: pointer}] = struct{}{}
			return []wasmer.Value{}, nil
		},
	)

	storageRead := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes(wasmer.I32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := hs.gas.Consume(GasCost(OpStorageRead)); err != nil {
				return nil, err
			}
			ptrOffset := args[0].I32()
			outOffset := args[1].I32()
			var pointer types.Pointer
			copy(pointer[:], hs.readMemory(ptrOffset, 32))
			key := SlotKey{Contract: hs.contract, Pointer: pointer}
			value, ok := hs.working[key]
			if !ok {
				return []wasmer.Value{wasmer.NewI32(0)}, nil
			}
			hs.writeMemory(outOffset, value[:])
			return []wasmer.Value{wasmer.NewI32(1)}, nil
		},
	)

	storageWrite := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := hs.gas.Consume(StorageWriteCost(32)); err != nil {
				return nil, err
			}
			ptrOffset := args[0].I32()
			valOffset := args[1].I32()
			var pointer types.Pointer
			var value types.StateValue
			copy(pointer[:], hs.readMemory(ptrOffset, 32))
			copy(value[:], hs.readMemory(valOffset, 32))
			hs.working[SlotKey{Contract: hs.contract, Pointer: pointer}] = value
			hs.writes = append(hs.writes, types.StateWrite{Contract: hs.contract, Pointer: pointer, Value: value})
			return []wasmer.Value{}, nil
		},
	)

	logFn := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			topicOffset := args[0].I32()
			dataOffset := args[1].I32()
			dataLen := args[2].I32()
			_ = args[3] // reserved
			if err := hs.gas.Consume(LogCost(int(dataLen))); err != nil {
				return nil, err
			}
			var topic types.Hash
			copy(topic[:], hs.readMemory(topicOffset, 32))
			data := append([]byte{}, hs.readMemory(dataOffset, dataLen)...)
			hs.events = append(hs.events, types.Event{Contract: hs.contract, Topic: topic, Data: data})
			return []wasmer.Value{}, nil
		},
	)

	returnFn := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			offset := args[0].I32()
			length := args[1].I32()
			hs.returnData = append([]byte{}, hs.readMemory(offset, length)...)
			return []wasmer.Value{}, nil
		},
	)

	revertFn := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			offset := args[0].I32()
			length := args[1].I32()
			hs.reverted = true
			hs.revertReason = string(hs.readMemory(offset, length))
			return []wasmer.Value{}, nil
		},
	)

	// hostCall invokes another contract as a child evaluation, inheriting
	// gas, depth and call stack via hs.cs (§4.3 "External calls"). A genuine
	// Go error (reentrancy, depth exceeded, storage failure) traps and
	// propagates to the top-level call; OutOfGas is converted to a trap too
	// since it is "recoverable only at the top-level call"; a revert is a
	// normal status code back to the guest, since only the child's writes
	// are discarded (they are simply never merged below).
	hostCall := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32), wasmer.NewValueTypes(wasmer.I32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := hs.gas.Consume(GasCost(OpCall)); err != nil {
				return nil, err
			}
			contractOffset := args[0].I32()
			contractLen := args[1].I32()
			calldataOffset := args[2].I32()
			calldataLen := args[3].I32()
			outOffset := args[4].I32()
			outMaxLen := args[5].I32()

			target := types.ContractAddress(hs.readMemory(contractOffset, contractLen))
			calldata := append([]byte{}, hs.readMemory(calldataOffset, calldataLen)...)

			bytecode, ok, err := hs.code.GetBytecode(target, hs.height)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, errkind.New(errkind.MissingContract, "evaluator: host_call: unknown contract "+string(target))
			}

			result, err := hs.eval.ExecuteChild(hs.ctx, bytecode, target, calldata, hs.tx, hs.block, nil, nil, hs.reader, hs.code, hs.cs)
			if err != nil {
				return nil, err
			}
			if result.Outcome == OutcomeOutOfGas {
				return nil, OutOfGasError{}
			}
			if result.Outcome == OutcomeRevert {
				return []wasmer.Value{wasmer.NewI32(1)}, nil
			}

			for _, w := range result.Writes {
				hs.working[SlotKey{Contract: w.Contract, Pointer: w.Pointer}] = w.Value
			}
			hs.writes = append(hs.writes, result.Writes...)
			hs.events = append(hs.events, result.Events...)
			hs.deployed = append(hs.deployed, result.DeployedChildren...)

			n := int32(len(result.ReturnData))
			if n > outMaxLen {
				n = outMaxLen
			}
			if n > 0 {
				hs.writeMemory(outOffset, result.ReturnData[:n])
			}
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		},
	)

	// hostDeploy deploys a child contract from within a running contract,
	// inheriting deploy depth via hs.cs the same way hostCall inherits call
	// depth (§4.3 "Deployment").
	hostDeploy := wasmer.NewFunction(store,
		wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32), wasmer.NewValueTypes(wasmer.I32)),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := hs.gas.Consume(GasCost(OpDeploy)); err != nil {
				return nil, err
			}
			bytecodeOffset := args[0].I32()
			bytecodeLen := args[1].I32()
			pubkeyOffset := args[2].I32()
			pubkeyLen := args[3].I32()
			saltOffset := args[4].I32()
			seedOffset := args[5].I32()
			seedLen := args[6].I32()

			bytecode := append([]byte{}, hs.readMemory(bytecodeOffset, bytecodeLen)...)
			pubkey := append([]byte{}, hs.readMemory(pubkeyOffset, pubkeyLen)...)
			var saltHash types.Hash
			copy(saltHash[:], hs.readMemory(saltOffset, 32))
			seed := append([]byte{}, hs.readMemory(seedOffset, seedLen)...)

			exists := func(addr types.ContractAddress) (bool, error) {
				return hs.code.Exists(addr, hs.height)
			}

			info, err := hs.eval.DeployChild(hs.cs, bytecode, pubkey, saltHash, seed, hs.height, exists)
			if err != nil {
				return nil, err
			}
			hs.deployed = append(hs.deployed, *info)
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		},
	)

	imports.Register("env", map[string]wasmer.IntoExtern{
		"host_consume_gas":   consumeGas,
		"host_declare_slot":  declareSlot,
		"host_storage_read":  storageRead,
		"host_storage_write": storageWrite,
		"host_log":           logFn,
		"host_return":        returnFn,
		"host_revert":        revertFn,
		"host_call":          hostCall,
		"host_deploy":        hostDeploy,
	})
	return imports
}
