package types

// ChecksumProofEntry is one of the six leaves re-encoded by the checksum
// proof list in §3/§4.2: it commits to one of (previousChecksum, blockHash,
// previousHash, storageRoot, receiptRoot, powPreimage).
type ChecksumProofEntry struct {
	Index     int
	Siblings  []Hash
}

// BlockHeader is the persisted, immutable-once-committed identity of a block.
type BlockHeader struct {
	Height                uint64
	Hash                  Hash
	PreviousHash          Hash
	PreviousBlockChecksum Hash
	StorageRoot           Hash
	ReceiptRoot           Hash
	ChecksumRoot          Hash
	ChecksumProofs        []ChecksumProofEntry
	TimestampUnixMilli    int64
	// PowPreimage is the proof-of-work preimage folded into the checksum
	// when the block closes an epoch; zero-length when not applicable.
	PowPreimage []byte
}

// Block pairs a header with its transaction list. A Block is created by
// prefetch, mutated only during execution, and becomes immutable once
// persisted with its final checksum (§3). It is destroyed only by a reorg
// covering its height.
type Block struct {
	Header       BlockHeader
	Transactions []*Transaction
}
