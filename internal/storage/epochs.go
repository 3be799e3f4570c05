package storage

import (
	"github.com/opnet-core/indexer/internal/types"
	"github.com/opnet-core/indexer/pkg/errkind"
)

// EpochRepo is the typed accessor for proof-of-work epochs (§3, §4.1).
type EpochRepo struct{ e *StorageEngine }

// Epochs returns the epoch repository.
func (e *StorageEngine) Epochs() EpochRepo { return EpochRepo{e: e} }

// GetLatest returns the highest-numbered epoch.
func (r EpochRepo) GetLatest() (*types.Epoch, error) {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	var best *types.Epoch
	for _, ep := range r.e.epochsByNumber {
		if best == nil || ep.Number > best.Number {
			best = ep
		}
	}
	if best == nil {
		return nil, errkind.New(errkind.NotFound, "storage: no epochs indexed")
	}
	return best, nil
}

// GetByNumber returns the epoch with the given number.
func (r EpochRepo) GetByNumber(number uint64) (*types.Epoch, error) {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	ep, ok := r.e.epochsByNumber[number]
	if !ok {
		return nil, errkind.New(errkind.NotFound, "storage: no epoch with that number")
	}
	return ep, nil
}

// GetByBlockHeight returns the epoch whose window contains height.
func (r EpochRepo) GetByBlockHeight(height uint64) (*types.Epoch, error) {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	for _, ep := range r.e.epochsByNumber {
		if ep.StartBlock > height {
			continue
		}
		if ep.IsOpen() || uint64(ep.EndBlock) >= height {
			return ep, nil
		}
	}
	return nil, errkind.New(errkind.NotFound, "storage: no epoch contains that height")
}

// ActiveEpoch returns the currently open epoch, if any.
func (r EpochRepo) ActiveEpoch() (*types.Epoch, error) {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	if !r.e.haveActive {
		return nil, errkind.New(errkind.NotFound, "storage: no active epoch")
	}
	return r.e.epochsByNumber[r.e.activeEpoch], nil
}

// Save persists a new or updated epoch.
func (r EpochRepo) Save(ep *types.Epoch) error {
	b := r.e.NewBatch()
	b.SaveEpoch(ep)
	return r.e.Commit(b)
}

// UpdateEndBlock closes an epoch's window at endBlock.
func (r EpochRepo) UpdateEndBlock(number uint64, endBlock int64) error {
	r.e.mu.RLock()
	ep, ok := r.e.epochsByNumber[number]
	r.e.mu.RUnlock()
	if !ok {
		return errkind.New(errkind.NotFound, "storage: no epoch with that number")
	}
	updated := *ep
	updated.EndBlock = endBlock
	b := r.e.NewBatch()
	b.SaveEpoch(&updated)
	return r.e.Commit(b)
}

// DeleteFromNumber rolls back every epoch numbered at or above number.
// Epochs are not indexed by a dedicated delete-from-number WAL field since
// epoch number tracks block height monotonically; callers needing a reorg
// rollback should use DeleteFromBitcoinBlock instead.
func (r EpochRepo) DeleteFromNumber(number uint64) {
	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	for n := range r.e.epochsByNumber {
		if n >= number {
			delete(r.e.epochsByNumber, n)
		}
	}
	r.e.haveActive = false
	for n, ep := range r.e.epochsByNumber {
		if ep.IsOpen() && (!r.e.haveActive || n > r.e.activeEpoch) {
			r.e.activeEpoch = n
			r.e.haveActive = true
		}
	}
}

// DeleteFromBitcoinBlock rolls back every entity (blocks, transactions,
// contracts, UTXOs, state history and epochs) recorded at or above the
// given base-chain height, the storage-level primitive behind a reorg
// (§4.6).
func (r EpochRepo) DeleteFromBitcoinBlock(height uint64) error {
	b := r.e.NewBatch()
	b.DeleteFrom(height)
	return r.e.Commit(b)
}
