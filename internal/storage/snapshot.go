package storage

import (
	"encoding/json"
	"os"

	"github.com/opnet-core/indexer/internal/types"
	"github.com/opnet-core/indexer/pkg/errkind"
)

// snapshotDoc is the on-disk compaction of every engine map, written by
// snapshotLocked and consumed by loadSnapshot, grounded on core/ledger.go's
// snapshot()/prune() gzip-archival pattern (here JSON rather than gob, kept
// consistent with the WAL's line-delimited JSON).
type snapshotDoc struct {
	Blocks []*types.BlockHeader `json:"blocks"`

	Txs []*types.Transaction `json:"txs"`

	Contracts []*types.ContractInformation `json:"contracts"`

	UTXOs []*types.UnspentOutput `json:"utxos"`

	StateWrites []stateWriteRecord `json:"state_writes"`

	Epochs []*types.Epoch `json:"epochs"`
}

// loadSnapshot populates the engine's in-memory maps from the last snapshot,
// if one exists. Absence of a snapshot file is not an error: a fresh engine
// simply replays its WAL from empty maps.
func (e *StorageEngine) loadSnapshot() error {
	data, err := os.ReadFile(e.snapPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errkind.Wrap(errkind.Storage, err, "storage: read snapshot")
	}

	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return errkind.Wrap(errkind.Storage, err, "storage: corrupt snapshot")
	}

	rec := walRecord{
		Blocks:    doc.Blocks,
		Txs:       doc.Txs,
		Contracts: doc.Contracts,
		UTXONew:   doc.UTXOs,
		StateWrites: doc.StateWrites,
		Epochs:    doc.Epochs,
	}
	e.applyRecordLocked(&rec)
	return nil
}

// snapshotLocked compacts the current in-memory state to snapPath and
// truncates the WAL, so a restart replays only the commits since the last
// snapshot instead of the whole history. Caller must hold e.mu.
func (e *StorageEngine) snapshotLocked() error {
	doc := snapshotDoc{
		Blocks:    make([]*types.BlockHeader, 0, len(e.blocksByHeight)),
		Txs:       make([]*types.Transaction, 0, len(e.txsByHash)),
		Contracts: make([]*types.ContractInformation, 0, len(e.contracts)),
		UTXOs:     make([]*types.UnspentOutput, 0, len(e.utxos)),
		Epochs:    make([]*types.Epoch, 0, len(e.epochsByNumber)),
	}
	for _, h := range e.blocksByHeight {
		doc.Blocks = append(doc.Blocks, h)
	}
	for _, tx := range e.txsByHash {
		doc.Txs = append(doc.Txs, tx)
	}
	for _, c := range e.contracts {
		doc.Contracts = append(doc.Contracts, c)
	}
	for _, u := range e.utxos {
		doc.UTXOs = append(doc.UTXOs, u)
	}
	for _, ep := range e.epochsByNumber {
		doc.Epochs = append(doc.Epochs, ep)
	}
	for k, versions := range e.stateHistory {
		for _, v := range versions {
			doc.StateWrites = append(doc.StateWrites, stateWriteRecord{
				Contract: k.Contract,
				Pointer:  k.Pointer,
				Value:    v.Value,
				Height:   v.Height,
			})
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return errkind.Wrap(errkind.Storage, err, "storage: marshal snapshot")
	}
	tmp := e.snapPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errkind.Wrap(errkind.Storage, err, "storage: write snapshot")
	}
	if err := os.Rename(tmp, e.snapPath); err != nil {
		return errkind.Wrap(errkind.Storage, err, "storage: install snapshot")
	}

	if e.walFile != nil {
		if err := e.walFile.Close(); err != nil {
			return errkind.Wrap(errkind.Storage, err, "storage: close WAL before truncate")
		}
	}
	f, err := os.OpenFile(e.walPath, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return errkind.Wrap(errkind.Storage, err, "storage: reopen WAL after truncate")
	}
	e.walFile = f
	return nil
}
