package blockproc

import (
	"context"

	"github.com/opnet-core/indexer/internal/evaluator"
	"github.com/opnet-core/indexer/internal/merkle"
	"github.com/opnet-core/indexer/internal/storage"
	"github.com/opnet-core/indexer/internal/types"
	"github.com/opnet-core/indexer/pkg/errkind"
)

// Config controls block-processor-wide tuning.
type Config struct {
	GasPenaltyFactor uint64
}

// BlockProcessedData is the digest returned by Finalize, used both to drive
// hook notification and to let peers witness the same roots (§4.4 step 4).
type BlockProcessedData struct {
	Header          *types.BlockHeader
	DeployedContracts []*types.ContractInformation
	SpentUTXOs      []types.OutputKey
	NewUTXOs        []*types.UnspentOutput
}

// Processor is the BlockProcessor (§4.4): it orders a block's transactions,
// dispatches each to the evaluator, and accumulates state/receipt writes.
type Processor struct {
	cfg   Config
	eval  *evaluator.ContractEvaluator
	store *storage.StorageEngine
}

// NewProcessor constructs a Processor bound to the given evaluator and
// storage engine.
func NewProcessor(cfg Config, eval *evaluator.ContractEvaluator, store *storage.StorageEngine) *Processor {
	if cfg.GasPenaltyFactor == 0 {
		cfg.GasPenaltyFactor = DefaultGasPenaltyFactor
	}
	return &Processor{cfg: cfg, eval: eval, store: store}
}

// storageReader adapts StateSlotRepo to evaluator.StorageReader; defined
// here rather than exported from internal/storage since only the evaluator
// dispatch path in this package needs the adaptation.
type storageReader struct{ repo storage.StateSlotRepo }

func (r storageReader) GetSlot(contract types.ContractAddress, pointer types.Pointer, atHeight uint64) (types.StateValue, bool, error) {
	return r.repo.GetSlot(contract, pointer, atHeight)
}

// contractCodeProvider adapts ContractRepo to evaluator.ContractCodeProvider
// so host_call/host_deploy can resolve and check nested contracts without
// the evaluator package depending on internal/storage directly.
type contractCodeProvider struct{ repo storage.ContractRepo }

func (c contractCodeProvider) GetBytecode(addr types.ContractAddress, atHeight uint64) ([]byte, bool, error) {
	info, err := c.repo.Get(addr, atHeight)
	if err != nil {
		if errkind.Is(err, errkind.NotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return info.Bytecode, true, nil
}

func (c contractCodeProvider) Exists(addr types.ContractAddress, atHeight uint64) (bool, error) {
	_, err := c.repo.Get(addr, atHeight)
	if err == nil {
		return true, nil
	}
	if errkind.Is(err, errkind.NotFound) {
		return false, nil
	}
	return false, err
}

// ProcessBlock orders txs into ranked independence groups, dispatches each
// transaction in order, and accumulates writes into stateTree/receiptTree.
// It mutates each *types.Transaction in place with its Events/Receipt/
// RevertReason/GasUsed (§4.4 "Dispatch").
func (p *Processor) ProcessBlock(
	ctx context.Context,
	block evaluator.BlockContext,
	txs []*types.Transaction,
	stateTree *merkle.StateTree,
	receiptTree *merkle.ReceiptTree,
) ([]*types.ContractInformation, error) {
	groups := PartitionGroups(txs)
	OrderGroups(groups, p.cfg.GasPenaltyFactor)

	reader := storageReader{repo: p.store.StateSlots()}
	code := contractCodeProvider{repo: p.store.Contracts()}
	var deployed []*types.ContractInformation

	for _, g := range groups {
		for _, tx := range g.Txs {
			if err := ctx.Err(); err != nil {
				return nil, errkind.Wrap(errkind.Cancelled, err, "blockproc: cancelled at safepoint")
			}
			switch tx.Type {
			case types.TxGeneric, types.TxCoinbase:
				// Pure value movement: no evaluator dispatch, no state/receipt writes.
				continue
			case types.TxDeployment:
				info, err := p.dispatchDeploy(tx, block.Height)
				if err != nil {
					tx.RevertReason = string(errkind.Of(err))
					continue
				}
				deployed = append(deployed, info)
			case types.TxInteraction:
				deployed = append(deployed, p.dispatchInteraction(ctx, tx, block, reader, code, stateTree, receiptTree)...)
			}
		}
	}

	return deployed, nil
}

func (p *Processor) dispatchDeploy(tx *types.Transaction, height uint64) (*types.ContractInformation, error) {
	if tx.Interaction == nil {
		return nil, errkind.New(errkind.InvalidInput, "blockproc: deployment transaction missing interaction payload")
	}
	exists := func(addr types.ContractAddress) (bool, error) {
		_, err := p.store.Contracts().Get(addr, height)
		if err == nil {
			return true, nil
		}
		if errkind.Is(err, errkind.NotFound) {
			return false, nil
		}
		return false, err
	}
	return p.eval.Deploy(
		tx.Interaction.DeployBytecode,
		tx.Interaction.DeployerPubKey,
		tx.Interaction.SaltHash,
		tx.Interaction.Seed,
		height,
		tx.Interaction.GasLimit,
		exists,
	)
}

// dispatchInteraction runs a TxInteraction transaction to completion and
// returns any contracts the call deployed via host_deploy, which must still
// surface wherever top-level TxDeployment results are collected (§4.3
// "Deployment").
func (p *Processor) dispatchInteraction(
	ctx context.Context,
	tx *types.Transaction,
	block evaluator.BlockContext,
	reader storageReader,
	code contractCodeProvider,
	stateTree *merkle.StateTree,
	receiptTree *merkle.ReceiptTree,
) []*types.ContractInformation {
	if tx.Interaction == nil {
		tx.RevertReason = "blockproc: interaction transaction missing interaction payload"
		return nil
	}

	contract, err := p.store.Contracts().Get(tx.Interaction.Contract, block.Height)
	if err != nil {
		tx.RevertReason = string(errkind.Of(err))
		return nil
	}

	txCtx := evaluator.TxContext{
		TxID:    tx.ID,
		TxHash:  tx.Hash,
		Origin:  originOf(tx),
		Inputs:  tx.Inputs,
		Outputs: tx.Outputs,
	}

	result, err := p.eval.Execute(
		ctx,
		contract.Bytecode,
		tx.Interaction.Contract,
		tx.Interaction.Calldata,
		txCtx.Origin,
		txCtx,
		block,
		nil,
		nil,
		reader,
		code,
		tx.Interaction.GasLimit,
	)
	if err != nil {
		tx.RevertReason = string(errkind.Of(err))
		return nil
	}

	tx.GasUsed = result.GasUsed
	switch result.Outcome {
	case evaluator.OutcomeRevert:
		tx.RevertReason = result.RevertReason
		return nil
	case evaluator.OutcomeOutOfGas:
		tx.RevertReason = "out of gas"
		return nil
	}

	tx.Events = result.Events
	tx.Receipt = result.ReturnData

	writesByPointer := make(map[types.Pointer]types.StateValue, len(result.Writes))
	for _, w := range result.Writes {
		writesByPointer[w.Pointer] = w.Value
	}
	_ = stateTree.UpdateValues(tx.Interaction.Contract, writesByPointer)
	for _, ev := range result.Events {
		_ = receiptTree.UpdateValue(ev.Contract, ev.Topic, ev.Data)
	}

	deployed := make([]*types.ContractInformation, len(result.DeployedChildren))
	for i := range result.DeployedChildren {
		deployed[i] = &result.DeployedChildren[i]
	}
	return deployed
}

func originOf(tx *types.Transaction) types.Address {
	if len(tx.Outputs) > 0 {
		return tx.Outputs[0].Address
	}
	return ""
}
