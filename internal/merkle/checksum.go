package merkle

import (
	"github.com/opnet-core/indexer/internal/types"
)

// ChecksumInputs are the six fields committed into a block's checksum root
// (§3, §4.2). Missing fields (e.g. no proof-of-work preimage) are zero-32.
type ChecksumInputs struct {
	PreviousBlockChecksum types.Hash
	BlockHash             types.Hash
	PreviousBlockHash     types.Hash
	StorageRoot           types.Hash
	ReceiptRoot           types.Hash
	PowPreimage           types.Hash
}

// ComputeChecksum builds the 6-leaf Merkle tree over the checksum inputs and
// returns the checksum root plus one proof per leaf, ordered
// (previousChecksum, blockHash, previousHash, storageRoot, receiptRoot,
// powPreimage) so a light client can verify any single field against the
// root without holding the others.
func ComputeChecksum(in ChecksumInputs) (types.Hash, []types.ChecksumProofEntry, error) {
	leaves := [][]byte{
		in.PreviousBlockChecksum[:],
		in.BlockHash[:],
		in.PreviousBlockHash[:],
		in.StorageRoot[:],
		in.ReceiptRoot[:],
		in.PowPreimage[:],
	}
	tree, err := BuildTree(leaves)
	if err != nil {
		return types.Hash{}, nil, err
	}
	root := Root(tree)
	proofs := make([]types.ChecksumProofEntry, len(leaves))
	for i := range leaves {
		p, err := ProofFor(tree, i)
		if err != nil {
			return types.Hash{}, nil, err
		}
		proofs[i] = types.ChecksumProofEntry{Index: i, Siblings: p.Siblings}
	}
	return root, proofs, nil
}

// VerifyChecksumEntry verifies a single checksum-proof entry against root.
func VerifyChecksumEntry(root types.Hash, leaf types.Hash, entry types.ChecksumProofEntry) bool {
	return VerifyPath(root, leaf[:], Proof{Index: entry.Index, Siblings: entry.Siblings})
}
