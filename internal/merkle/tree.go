// Package merkle implements the MerkleCommitmentEngine: a SHA-256
// ordered-pair Merkle tree over 32-byte leaves, specialised into StateTree
// and ReceiptTree, plus the per-block checksum and its six-entry proof list.
//
// Grounded on core/merkle_tree_operations.go's BuildMerkleTree/MerkleProof/
// VerifyMerklePath, generalised with freeze semantics and lazy root
// recompute that the teacher version does not have.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/opnet-core/indexer/internal/types"
	"github.com/opnet-core/indexer/pkg/errkind"
)

// BuildTree hashes each leaf and builds the full level-by-level tree,
// duplicating the last node of a level when its length is odd. The final
// level is a single-element slice holding the root.
func BuildTree(leaves [][]byte) ([][]types.Hash, error) {
	if len(leaves) == 0 {
		return [][]types.Hash{{EmptyRoot()}}, nil
	}
	level := make([]types.Hash, len(leaves))
	for i, l := range leaves {
		level[i] = sha256.Sum256(l)
	}
	tree := [][]types.Hash{level}
	for len(level) > 1 {
		next := make([]types.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, hashPair(left, right))
		}
		tree = append(tree, next)
		level = next
	}
	return tree, nil
}

// EmptyRoot is the sentinel root of a tree with no leaves (§8 boundary
// behaviour: "storage root equals the empty tree's sentinel root").
func EmptyRoot() types.Hash {
	return sha256.Sum256(nil)
}

func hashPair(left, right types.Hash) types.Hash {
	buf := make([]byte, 0, 64)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return sha256.Sum256(buf)
}

// Root returns the root of a built tree.
func Root(tree [][]types.Hash) types.Hash {
	top := tree[len(tree)-1]
	return top[0]
}

// Proof is the ordered list of sibling hashes from leaf to root.
type Proof struct {
	Index    int
	Siblings []types.Hash
}

// ProofFor derives the Merkle proof for the leaf at index from a built tree.
func ProofFor(tree [][]types.Hash, index int) (Proof, error) {
	if len(tree) == 0 || index < 0 || index >= len(tree[0]) {
		return Proof{}, errkind.New(errkind.InvalidInput, "merkle: index out of range")
	}
	p := Proof{Index: index}
	idx := index
	for level := 0; level < len(tree)-1; level++ {
		layer := tree[level]
		siblingIdx := idx ^ 1
		if siblingIdx >= len(layer) {
			siblingIdx = idx // duplicated last node
		}
		p.Siblings = append(p.Siblings, layer[siblingIdx])
		idx /= 2
	}
	return p, nil
}

// VerifyPath reconstructs the path from leaf to root using proof and checks
// it matches root.
func VerifyPath(root types.Hash, leaf []byte, proof Proof) bool {
	h := sha256.Sum256(leaf)
	idx := proof.Index
	for _, sibling := range proof.Siblings {
		if idx%2 == 0 {
			h = hashPair(h, sibling)
		} else {
			h = hashPair(sibling, h)
		}
		idx /= 2
	}
	return bytes.Equal(h[:], root[:])
}

// EncodeStateKey encodes a (contract, pointer) state-slot key as
// H(contract_address || pointer_bytes), per §4.2.
func EncodeStateKey(contract types.ContractAddress, pointer types.Pointer) types.Hash {
	buf := make([]byte, 0, len(contract)+len(pointer))
	buf = append(buf, []byte(contract)...)
	buf = append(buf, pointer[:]...)
	return sha256.Sum256(buf)
}

// EncodeReceiptKey encodes a (contract, event-topic) receipt key the same
// way EncodeStateKey encodes state keys.
func EncodeReceiptKey(contract types.ContractAddress, topic types.Hash) types.Hash {
	buf := make([]byte, 0, len(contract)+len(topic))
	buf = append(buf, []byte(contract)...)
	buf = append(buf, topic[:]...)
	return sha256.Sum256(buf)
}

// ErrFrozen is returned by any write attempted on a frozen tree.
var ErrFrozen = fmt.Errorf("merkle: %s", "frozen tree")
