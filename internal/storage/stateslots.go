package storage

import (
	"sort"

	"github.com/opnet-core/indexer/internal/types"
)

// StateSlotRepo is the typed accessor for contract storage slots, and the
// concrete implementation of evaluator.StorageReader (§4.1, §4.3).
type StateSlotRepo struct{ e *StorageEngine }

// StateSlots returns the state slot repository.
func (e *StorageEngine) StateSlots() StateSlotRepo { return StateSlotRepo{e: e} }

// GetSlot returns the value last written at or before atHeight, implementing
// the height-versioned read invariant: "a read at height H observes the
// last write at height <= H" (§8 invariant 2).
func (r StateSlotRepo) GetSlot(contract types.ContractAddress, pointer types.Pointer, atHeight uint64) (types.StateValue, bool, error) {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	versions := r.e.stateHistory[stateKey{Contract: contract, Pointer: pointer}]
	if len(versions) == 0 {
		return types.StateValue{}, false, nil
	}
	// versions is append-ordered by commit, which is also height order
	// within a single engine instance; binary search for the last entry
	// at or before atHeight.
	idx := sort.Search(len(versions), func(i int) bool { return versions[i].Height > atHeight })
	if idx == 0 {
		return types.StateValue{}, false, nil
	}
	return versions[idx-1].Value, true, nil
}

// SetSlotBatch persists a set of state writes for one block in a single
// transactional context.
func (r StateSlotRepo) SetSlotBatch(writes []types.StateSlot, height uint64) error {
	b := r.e.NewBatch()
	b.WriteSlotBatch(writes, height)
	return r.e.Commit(b)
}
