package merkle

import (
	"sort"
	"sync"

	"github.com/opnet-core/indexer/internal/types"
	"github.com/opnet-core/indexer/pkg/errkind"
)

type entry struct {
	key      types.Hash
	contract types.ContractAddress
	pointer  types.Pointer
	value    types.StateValue
}

// StateTree is the (32-byte pointer, 32-byte value) Merkle tree backing
// contract storage commitments (§4.2). Roots are recomputed lazily on the
// first read after any write; a frozen tree rejects further writes.
type StateTree struct {
	mu      sync.Mutex
	leaves  map[types.Hash]*entry
	dirty   bool
	frozen  bool
	root    types.Hash
	built   [][]types.Hash
	order   []types.Hash // sorted leaf keys, rebuilt when dirty
}

// NewStateTree constructs an empty StateTree.
func NewStateTree() *StateTree {
	return &StateTree{leaves: make(map[types.Hash]*entry)}
}

// UpdateValue sets the value at (contract, pointer). Idempotent: if the
// value is unchanged, the dirty flag is left as-is (§4.2, round-trip
// property in §8).
func (t *StateTree) UpdateValue(contract types.ContractAddress, pointer types.Pointer, value types.StateValue) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return ErrFrozen
	}
	key := EncodeStateKey(contract, pointer)
	if existing, ok := t.leaves[key]; ok && existing.value == value {
		return nil
	}
	t.leaves[key] = &entry{key: key, contract: contract, pointer: pointer, value: value}
	t.dirty = true
	return nil
}

// UpdateValues applies a batch of (pointer -> value) writes for one contract.
func (t *StateTree) UpdateValues(contract types.ContractAddress, writes map[types.Pointer]types.StateValue) error {
	for p, v := range writes {
		if err := t.UpdateValue(contract, p, v); err != nil {
			return err
		}
	}
	return nil
}

// GetValue returns the current value at (contract, pointer).
func (t *StateTree) GetValue(contract types.ContractAddress, pointer types.Pointer) (types.StateValue, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := EncodeStateKey(contract, pointer)
	e, ok := t.leaves[key]
	if !ok {
		return types.StateValue{}, false
	}
	return e.value, true
}

// GetValueWithProof returns the value and a Merkle proof for (contract, pointer).
func (t *StateTree) GetValueWithProof(contract types.ContractAddress, pointer types.Pointer) (types.StateValue, Proof, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := EncodeStateKey(contract, pointer)
	e, ok := t.leaves[key]
	if !ok {
		return types.StateValue{}, Proof{}, errkind.New(errkind.NotFound, "merkle: slot not present")
	}
	t.recomputeLocked()
	idx := t.indexOf(key)
	proof, err := ProofFor(t.built, idx)
	return e.value, proof, err
}

// GetValuesWithProofs returns every slot and proof belonging to contract.
func (t *StateTree) GetValuesWithProofs(contract types.ContractAddress) (map[types.Pointer]types.StateValue, map[types.Pointer]Proof, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recomputeLocked()
	values := make(map[types.Pointer]types.StateValue)
	proofs := make(map[types.Pointer]Proof)
	for _, e := range t.leaves {
		if e.contract != contract {
			continue
		}
		idx := t.indexOf(e.key)
		proof, err := ProofFor(t.built, idx)
		if err != nil {
			return nil, nil, err
		}
		values[e.pointer] = e.value
		proofs[e.pointer] = proof
	}
	return values, proofs, nil
}

// Root returns the current root, recomputing lazily if dirty.
func (t *StateTree) Root() types.Hash {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recomputeLocked()
	return t.root
}

// Freeze permanently disallows further writes.
func (t *StateTree) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = true
}

func (t *StateTree) recomputeLocked() {
	if !t.dirty && t.built != nil {
		return
	}
	if len(t.leaves) == 0 {
		t.root = EmptyRoot()
		t.built = [][]types.Hash{{t.root}}
		t.order = nil
		t.dirty = false
		return
	}
	keys := make([]types.Hash, 0, len(t.leaves))
	for k := range t.leaves {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytesLess(keys[i][:], keys[j][:]) })
	leafBytes := make([][]byte, len(keys))
	for i, k := range keys {
		e := t.leaves[k]
		buf := make([]byte, 0, 64)
		buf = append(buf, e.key[:]...)
		buf = append(buf, e.value[:]...)
		leafBytes[i] = buf
	}
	tree, _ := BuildTree(leafBytes)
	t.built = tree
	t.order = keys
	t.root = Root(tree)
	t.dirty = false
}

func (t *StateTree) indexOf(key types.Hash) int {
	for i, k := range t.order {
		if k == key {
			return i
		}
	}
	return -1
}

func bytesLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
