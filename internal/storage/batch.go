package storage

import (
	"encoding/json"

	"github.com/opnet-core/indexer/internal/types"
	"github.com/opnet-core/indexer/pkg/errkind"
)

// Batch is a transactional context: writes accumulate here and are not
// visible to readers until Commit applies them atomically (§4.1: "writes
// within one context are all-or-nothing... concurrent readers see either
// the pre- or post-image, never partial state").
type Batch struct {
	rec walRecord
}

// NewBatch starts a new transactional context.
func (e *StorageEngine) NewBatch() *Batch { return &Batch{} }

func (b *Batch) SaveBlockHeader(h *types.BlockHeader) {
	b.rec.Blocks = append(b.rec.Blocks, h)
}

func (b *Batch) SaveBlockHeaders(hs []*types.BlockHeader) {
	b.rec.Blocks = append(b.rec.Blocks, hs...)
}

func (b *Batch) SaveTransaction(tx *types.Transaction) {
	b.rec.Txs = append(b.rec.Txs, tx)
}

func (b *Batch) InsertContract(c *types.ContractInformation) {
	b.rec.Contracts = append(b.rec.Contracts, c)
}

// SpendUTXOs tombstones the given outputs at height.
func (b *Batch) SpendUTXOs(keys []types.OutputKey, height uint64) {
	b.rec.UTXOSpend = append(b.rec.UTXOSpend, keys...)
	b.rec.UTXOSpendHeight = height
}

func (b *Batch) CreateUTXO(u *types.UnspentOutput) {
	b.rec.UTXONew = append(b.rec.UTXONew, u)
}

// RestoreUTXOs clears the tombstone on the given outputs (reorg restoration).
func (b *Batch) RestoreUTXOs(keys []types.OutputKey) {
	b.rec.UTXORestore = append(b.rec.UTXORestore, keys...)
}

func (b *Batch) WriteSlot(contract types.ContractAddress, pointer types.Pointer, value types.StateValue, height uint64) {
	b.rec.StateWrites = append(b.rec.StateWrites, stateWriteRecord{Contract: contract, Pointer: pointer, Value: value, Height: height})
}

func (b *Batch) WriteSlotBatch(writes []types.StateSlot, height uint64) {
	for _, w := range writes {
		b.WriteSlot(w.Contract, w.Pointer, w.Value, height)
	}
}

func (b *Batch) SaveEpoch(ep *types.Epoch) {
	b.rec.Epochs = append(b.rec.Epochs, ep)
}

// DeleteFrom marks this batch as a rollback of every entity recorded at or
// above height (reorg or failed-block revert). Applied before any other
// writes in the same batch (see applyRecordLocked).
func (b *Batch) DeleteFrom(height uint64) {
	b.rec.DeleteFromHeight = &height
}

// Commit appends the batch as one WAL line, fsyncs, and applies it to the
// in-memory maps. Either the whole batch lands or none of it does.
func (e *StorageEngine) Commit(b *Batch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commitLocked(&b.rec)
}

// commitLocked is Commit's body for callers that already hold e.mu, so a
// check-then-insert (e.g. ContractRepo.Insert's duplicate-address guard)
// can happen atomically with the write instead of racing a separate lock
// acquisition.
func (e *StorageEngine) commitLocked(rec *walRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errkind.Wrap(errkind.Storage, err, "storage: marshal WAL record")
	}
	data = append(data, '\n')
	if _, err := e.walFile.Write(data); err != nil {
		return errkind.Wrap(errkind.Storage, err, "storage: append WAL")
	}
	if err := e.walFile.Sync(); err != nil {
		return errkind.Wrap(errkind.Storage, err, "storage: sync WAL")
	}

	e.applyRecordLocked(rec)
	e.commitsSinceSnapshot++
	if e.cfg.SnapshotEvery > 0 && e.commitsSinceSnapshot >= e.cfg.SnapshotEvery {
		if err := e.snapshotLocked(); err != nil {
			return err
		}
		e.commitsSinceSnapshot = 0
	}
	return nil
}
