package evaluator

import (
	"github.com/opnet-core/indexer/internal/types"
)

// TxContext carries the transaction-visible inputs to a single evaluation
// (§4.3: "tx_context: txid, transaction hash, origin address, inputs/
// outputs visible to the contract").
type TxContext struct {
	TxID    types.Hash
	TxHash  types.Hash
	Origin  types.Address
	Inputs  []types.TxInput
	Outputs []types.TxOutput
}

// BlockContext carries the block-visible inputs (§4.3).
type BlockContext struct {
	Height       uint64
	MedianTimeMS int64
	// EpochPreimage/EpochReward are populated only when the block closes an
	// epoch boundary.
	EpochPreimage []byte
	EpochReward   uint64
}

// SlotKey is a (contract, pointer) pair used as an access-list / preload key.
type SlotKey struct {
	Contract types.ContractAddress
	Pointer  types.Pointer
}

// AccessList is an optional declared (contract, pointer) set used as a
// cache-warming hint.
type AccessList []SlotKey

// PreloadedStorage holds values the caller asserts for specific slots; the
// evaluator treats these as the first answer to reads. Any pointer not
// listed is fetched from the StorageEngine.
type PreloadedStorage map[SlotKey]types.StateValue

// Outcome tags the terminal state of an evaluation.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeRevert
	OutcomeOutOfGas
)

// EvaluationResult is everything produced by one contract execution.
type EvaluationResult struct {
	ReturnData      []byte
	Events          []types.Event
	Writes          []types.StateWrite
	DeployedChildren []types.ContractInformation
	GasUsed         uint64
	Outcome         Outcome
	RevertReason    string
}
