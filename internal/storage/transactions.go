package storage

import (
	"github.com/opnet-core/indexer/internal/types"
	"github.com/opnet-core/indexer/pkg/errkind"
)

// TxRepo is the typed accessor for transactions (§4.1).
type TxRepo struct{ e *StorageEngine }

// Transactions returns the transaction repository.
func (e *StorageEngine) Transactions() TxRepo { return TxRepo{e: e} }

// GetByHash returns a transaction by its indexing hash.
func (r TxRepo) GetByHash(hash types.Hash) (*types.Transaction, error) {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	tx, ok := r.e.txsByHash[hash]
	if !ok {
		return nil, errkind.New(errkind.NotFound, "storage: no transaction with that hash")
	}
	return tx, nil
}

// GetByBlockHeight returns every transaction confirmed at height, in no
// particular order (callers needing dispatch order should consult the
// BlockHeader's own transaction list, not this lookup).
func (r TxRepo) GetByBlockHeight(height uint64) []*types.Transaction {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	out := make([]*types.Transaction, 0)
	for _, tx := range r.e.txsByHash {
		if tx.BlockHeight == height {
			out = append(out, tx)
		}
	}
	return out
}

// GetPendingForAddresses returns every unconfirmed transaction touching any
// of the given addresses, as tracked incrementally by pendingTxs.
func (r TxRepo) GetPendingForAddresses(addrs []types.Address) []*types.Transaction {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	out := make([]*types.Transaction, 0)
	for _, a := range addrs {
		for _, hash := range r.e.pendingTxs[a] {
			if tx, ok := r.e.txsByHash[hash]; ok {
				out = append(out, tx)
			}
		}
	}
	return out
}

// Save persists a transaction in its own transactional context.
func (r TxRepo) Save(tx *types.Transaction) error {
	b := r.e.NewBatch()
	b.SaveTransaction(tx)
	return r.e.Commit(b)
}

// DeleteByIDs removes the named transactions outright (used when a mempool
// entry is replaced or a speculative indexing attempt is discarded, not for
// confirmed-block rollback which goes through DeleteFrom).
func (r TxRepo) DeleteByIDs(ids []types.Hash) {
	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	for _, id := range ids {
		delete(r.e.txsByHash, id)
	}
}
