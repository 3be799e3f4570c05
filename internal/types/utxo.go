package types

// OutputKey is the unique key of an output: (transaction id, output index).
type OutputKey struct {
	TxID        Hash
	OutputIndex uint32
}

// UnspentOutput is an output tracked by the UTXO ledger. An output is "live"
// when DeletedAtBlock is nil; spent outputs are retained with a watermark
// until purged by a retention policy so a reorg can restore them (§4.8).
type UnspentOutput struct {
	Key          OutputKey
	Value        uint64 // satoshis
	ScriptPubKey []byte
	Address      Address
	BlockHeight  uint64

	// DeletedAtBlock is the tombstone watermark: the height at which the
	// output was spent. Nil means the output is live.
	DeletedAtBlock *uint64
}

// IsLive reports whether the output has not been tombstoned.
func (u *UnspentOutput) IsLive() bool { return u.DeletedAtBlock == nil }
