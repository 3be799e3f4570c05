package indexing

import (
	"context"

	"github.com/opnet-core/indexer/internal/blockproc"
	"github.com/opnet-core/indexer/internal/evaluator"
	"github.com/opnet-core/indexer/internal/merkle"
	"github.com/opnet-core/indexer/internal/utxo"
	"github.com/opnet-core/indexer/pkg/errkind"
)

// Notifier is called after Finalize has committed the block and before the
// task moves to COMPLETE, carrying the digest that cmd/indexerd's wiring
// dispatches as a BlockPostProcess hook event (§4.4 step 4, §4.7).
type Notifier func(ctx context.Context, data *blockproc.BlockProcessedData) error

// Runner drives a single Task through EXECUTING and FINALIZING using a
// bound Processor, notifying on success. It is the glue between the task
// state machine (§4.5) and the BlockProcessor (§4.4); no teacher file
// combines these concerns directly, so the shape here follows the
// sequential step list in §4.4 itself ("Dispatch", then "Finalize").
type Runner struct {
	processor *blockproc.Processor
	notify    Notifier
}

// NewRunner builds a Runner bound to processor. notify may be nil, in which
// case COMPLETE is reached without any hook dispatch.
func NewRunner(processor *blockproc.Processor, notify Notifier) *Runner {
	return &Runner{processor: processor, notify: notify}
}

// Run executes the full READY -> ... -> COMPLETE/REVERTED/ABORTED path for
// a prefetched task. epochPreimage/epochReward are non-zero only when the
// block closes an epoch boundary (passed through to the evaluator's block
// context and Finalize's checksum preimage).
func (r *Runner) Run(ctx context.Context, t *Task, medianTimeMS int64, epochPreimage []byte, epochReward uint64) error {
	block := t.Block()
	if block == nil {
		t.Revert()
		return errkind.New(errkind.InvalidInput, "indexing: run called before task reached READY")
	}

	if err := t.BeginExecute(ctx); err != nil {
		return err
	}

	blockCtx := evaluator.BlockContext{
		Height:        block.Header.Height,
		MedianTimeMS:  medianTimeMS,
		EpochPreimage: epochPreimage,
		EpochReward:   epochReward,
	}

	stateTree := merkle.NewStateTree()
	receiptTree := merkle.NewReceiptTree()

	deployed, err := r.processor.ProcessBlock(ctx, blockCtx, block.Transactions, stateTree, receiptTree)
	if err != nil {
		if err := t.FinishExecute(ctx, true); err != nil {
			return err
		}
		return errkind.Wrap(errkind.Internal, err, "indexing: process block")
	}

	if err := t.FinishExecute(ctx, false); err != nil {
		return err
	}

	spent, created := utxo.DeriveChanges(block.Transactions, block.Header.Height)

	data, err := r.processor.Finalize(blockproc.FinalizeInput{
		Height:                block.Header.Height,
		BlockHash:             block.Header.Hash,
		PreviousHash:          block.Header.PreviousHash,
		PreviousBlockChecksum: block.Header.PreviousBlockChecksum,
		TimestampUnixMilli:    block.Header.TimestampUnixMilli,
		PowPreimage:           epochPreimage,
		Txs:                   block.Transactions,
		DeployedContracts:     deployed,
		SpentUTXOs:            spent,
		NewUTXOs:              created,
	}, stateTree, receiptTree)
	if err != nil {
		t.Revert()
		return errkind.Wrap(errkind.Internal, err, "indexing: finalize")
	}

	if r.notify != nil {
		if err := r.notify(ctx, data); err != nil {
			// The block is already durable; a hook failure does not roll it
			// back (§4.7: hooks observe committed state, they don't gate it).
			return errkind.Wrap(errkind.Internal, err, "indexing: notify hooks")
		}
	}

	return t.Complete()
}
