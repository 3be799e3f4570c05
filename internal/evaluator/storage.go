package evaluator

import (
	"github.com/opnet-core/indexer/internal/types"
)

// StorageReader is the narrow read contract the evaluator needs from the
// StorageEngine: a single slot lookup at a given height. Declared here
// (rather than depended on from internal/storage) to keep the evaluator
// decoupled from storage's persistence concerns.
type StorageReader interface {
	GetSlot(contract types.ContractAddress, pointer types.Pointer, atHeight uint64) (types.StateValue, bool, error)
}

// ContractCodeProvider resolves a target contract's bytecode for nested
// external calls and checks existence for nested deploys (§4.3 "External
// calls"/"Deployment"). Declared here for the same reason as StorageReader:
// it keeps the evaluator decoupled from internal/storage's persistence
// concerns, leaving the adaptation to whoever wires the evaluator up.
type ContractCodeProvider interface {
	GetBytecode(contract types.ContractAddress, atHeight uint64) ([]byte, bool, error)
	Exists(contract types.ContractAddress, atHeight uint64) (bool, error)
}
