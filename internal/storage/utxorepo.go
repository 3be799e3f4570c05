package storage

import (
	"github.com/opnet-core/indexer/internal/types"
)

// UTXORepo is the raw unspent-output accessor backing internal/utxo's
// ledger semantics (§4.1, §4.8). It deliberately stays mechanical: spend
// accounting, the retention window and balance aggregation belong to the
// UTXOLedger built on top of this repository.
type UTXORepo struct{ e *StorageEngine }

// UTXOs returns the raw UTXO repository.
func (e *StorageEngine) UTXOs() UTXORepo { return UTXORepo{e: e} }

// InsertOutputs records newly created outputs and tombstones the inputs
// they spend, in one transactional context (one block's worth of UTXO
// movement).
func (r UTXORepo) InsertOutputs(created []*types.UnspentOutput, spent []types.OutputKey, height uint64) error {
	b := r.e.NewBatch()
	for _, u := range created {
		b.CreateUTXO(u)
	}
	if len(spent) > 0 {
		b.SpendUTXOs(spent, height)
	}
	return r.e.Commit(b)
}

// DeleteFrom rolls back UTXO state recorded at or above height (reorg).
func (r UTXORepo) DeleteFrom(height uint64) error {
	b := r.e.NewBatch()
	b.DeleteFrom(height)
	return r.e.Commit(b)
}

// Restore lifts the tombstone on outputs whose spend is being undone
// (reorg restoration of an output spent by a now-orphaned block).
func (r UTXORepo) Restore(keys []types.OutputKey) error {
	b := r.e.NewBatch()
	b.RestoreUTXOs(keys)
	return r.e.Commit(b)
}

// PurgeSpentOlderThan permanently removes tombstoned outputs whose
// DeletedAtBlock is at or below tip - window, enforcing the
// retention/purge policy (§4.8). It does not go through the WAL: purge is a
// space-reclamation operation on already-dead data, not a logical write
// that needs replay.
func (r UTXORepo) PurgeSpentOlderThan(tip uint64, window uint64) int {
	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	if window > tip {
		return 0
	}
	threshold := tip - window
	purged := 0
	for key, u := range r.e.utxos {
		if u.DeletedAtBlock != nil && *u.DeletedAtBlock <= threshold {
			delete(r.e.utxos, key)
			purged++
		}
	}
	return purged
}

// BalanceOf sums the value of every live (non-tombstoned) output owned by
// addr.
func (r UTXORepo) BalanceOf(addr types.Address) uint64 {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	var total uint64
	for _, u := range r.e.utxos {
		if u.Address == addr && u.IsLive() {
			total += u.Value
		}
	}
	return total
}

// UnspentOf returns every live output owned by addr.
func (r UTXORepo) UnspentOf(addr types.Address) []*types.UnspentOutput {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	out := make([]*types.UnspentOutput, 0)
	for _, u := range r.e.utxos {
		if u.Address == addr && u.IsLive() {
			out = append(out, u)
		}
	}
	return out
}

// Get returns a single output by key, live or tombstoned.
func (r UTXORepo) Get(key types.OutputKey) (*types.UnspentOutput, bool) {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	u, ok := r.e.utxos[key]
	return u, ok
}
