package merkle

import (
	"sort"
	"sync"

	"github.com/opnet-core/indexer/internal/types"
	"github.com/opnet-core/indexer/pkg/errkind"
)

type receiptEntry struct {
	key      types.Hash
	contract types.ContractAddress
	topic    types.Hash
	data     []byte
}

// ReceiptTree is the same shape as StateTree but keyed by (contract,
// event-topic) instead of (contract, pointer); it commits the block's
// receipts/events (§4.2).
type ReceiptTree struct {
	mu     sync.Mutex
	leaves map[types.Hash]*receiptEntry
	dirty  bool
	frozen bool
	root   types.Hash
	built  [][]types.Hash
	order  []types.Hash
}

// NewReceiptTree constructs an empty ReceiptTree.
func NewReceiptTree() *ReceiptTree {
	return &ReceiptTree{leaves: make(map[types.Hash]*receiptEntry)}
}

// UpdateValue records (or idempotently replaces) the receipt data for
// (contract, topic).
func (t *ReceiptTree) UpdateValue(contract types.ContractAddress, topic types.Hash, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return ErrFrozen
	}
	key := EncodeReceiptKey(contract, topic)
	if existing, ok := t.leaves[key]; ok && string(existing.data) == string(data) {
		return nil
	}
	t.leaves[key] = &receiptEntry{key: key, contract: contract, topic: topic, data: data}
	t.dirty = true
	return nil
}

// GetValueWithProof returns the receipt data and proof for (contract, topic).
func (t *ReceiptTree) GetValueWithProof(contract types.ContractAddress, topic types.Hash) ([]byte, Proof, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := EncodeReceiptKey(contract, topic)
	e, ok := t.leaves[key]
	if !ok {
		return nil, Proof{}, errkind.New(errkind.NotFound, "merkle: receipt not present")
	}
	t.recomputeLocked()
	idx := t.indexOf(key)
	proof, err := ProofFor(t.built, idx)
	return e.data, proof, err
}

// Root returns the current root, recomputing lazily if dirty.
func (t *ReceiptTree) Root() types.Hash {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recomputeLocked()
	return t.root
}

// Freeze permanently disallows further writes.
func (t *ReceiptTree) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = true
}

func (t *ReceiptTree) recomputeLocked() {
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
		buf := make([]byte, 0, 32+len(e.data))
		buf = append(buf, e.key[:]...)
		buf = append(buf, e.data...)
		leafBytes[i] = buf
	}
	tree, _ := BuildTree(leafBytes)
	t.built = tree
	t.order = keys
	t.root = Root(tree)
	t.dirty = false
}

func (t *ReceiptTree) indexOf(key types.Hash) int {
	for i, k := range t.order {
		if k == key {
			return i
		}
	}
	return -1
}
