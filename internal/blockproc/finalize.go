package blockproc

import (
	"crypto/sha256"

	"github.com/opnet-core/indexer/internal/merkle"
	"github.com/opnet-core/indexer/internal/types"
	"github.com/opnet-core/indexer/pkg/errkind"
)

// FinalizeInput carries everything Finalize needs beyond what StateTree/
// ReceiptTree already accumulated during dispatch.
type FinalizeInput struct {
	Height                uint64
	BlockHash             types.Hash
	PreviousHash          types.Hash
	PreviousBlockChecksum types.Hash
	TimestampUnixMilli    int64
	PowPreimage           []byte

	Txs               []*types.Transaction
	DeployedContracts []*types.ContractInformation
	SpentUTXOs        []types.OutputKey
	NewUTXOs          []*types.UnspentOutput
}

// Finalize computes the StateTree/ReceiptTree roots, the block checksum,
// and persists the header, transactions, contracts, UTXO updates and state
// slots in a single transactional context (§4.4 "Finalize" steps 1-3).
func (p *Processor) Finalize(in FinalizeInput, stateTree *merkle.StateTree, receiptTree *merkle.ReceiptTree) (*BlockProcessedData, error) {
	stateTree.Freeze()
	receiptTree.Freeze()

	storageRoot := stateTree.Root()
	receiptRoot := receiptTree.Root()

	// PowPreimage is folded into the checksum as its sha256 digest since the
	// checksum tree's leaves are fixed at 32 bytes but the raw preimage is
	// not (§4.2). A zero-length preimage (no epoch boundary closed) is not
	// hashed: its leaf stays all-zero.
	var powHash types.Hash
	if len(in.PowPreimage) > 0 {
		powHash = sha256.Sum256(in.PowPreimage)
	}

	checksumRoot, proofs, err := merkle.ComputeChecksum(merkle.ChecksumInputs{
		PreviousBlockChecksum: in.PreviousBlockChecksum,
		BlockHash:             in.BlockHash,
		PreviousBlockHash:     in.PreviousHash,
		StorageRoot:           storageRoot,
		ReceiptRoot:           receiptRoot,
		PowPreimage:           powHash,
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, err, "blockproc: compute checksum")
	}

	header := &types.BlockHeader{
		Height:                in.Height,
		Hash:                  in.BlockHash,
		PreviousHash:          in.PreviousHash,
		PreviousBlockChecksum: in.PreviousBlockChecksum,
		StorageRoot:           storageRoot,
		ReceiptRoot:           receiptRoot,
		ChecksumRoot:          checksumRoot,
		ChecksumProofs:        proofs,
		TimestampUnixMilli:    in.TimestampUnixMilli,
		PowPreimage:           in.PowPreimage,
	}

	b := p.store.NewBatch()
	b.SaveBlockHeader(header)
	for _, tx := range in.Txs {
		b.SaveTransaction(tx)
	}
	for _, c := range in.DeployedContracts {
		b.InsertContract(c)
	}
	for _, u := range in.NewUTXOs {
		b.CreateUTXO(u)
	}
	if len(in.SpentUTXOs) > 0 {
		b.SpendUTXOs(in.SpentUTXOs, in.Height)
	}
	touched := make(map[types.ContractAddress]struct{})
	for _, tx := range in.Txs {
		if tx.Type != types.TxInteraction || tx.RevertReason != "" || tx.Interaction == nil {
			continue
		}
		touched[tx.Interaction.Contract] = struct{}{}
	}
	for contract := range touched {
		values, _, err := stateTree.GetValuesWithProofs(contract)
		if err != nil {
			continue
		}
		for pointer, value := range values {
			b.WriteSlot(contract, pointer, value, in.Height)
		}
	}

	if err := p.store.Commit(b); err != nil {
		return nil, err
	}

	return &BlockProcessedData{
		Header:            header,
		DeployedContracts: in.DeployedContracts,
		SpentUTXOs:        in.SpentUTXOs,
		NewUTXOs:          in.NewUTXOs,
	}, nil
}
