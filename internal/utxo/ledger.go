// Package utxo implements the UTXOLedger: derives spend/create sets from a
// block's transactions, enforces the tombstone retention/purge window, and
// answers balance/unspent-output queries (§4.8).
//
// Grounded on core/ledger.go's UTXO map and applyBlock spend/create
// handling, and core/common_structs.go's TxInput/TxOutput shapes. The
// teacher deletes spent outputs outright; the tombstone `DeletedAtBlock`
// watermark here is a novel addition layered on the same map-based shape,
// needed so a reorg can restore an output a now-orphaned block spent.
package utxo

import (
	"github.com/opnet-core/indexer/internal/storage"
	"github.com/opnet-core/indexer/internal/types"
)

// Ledger is the UTXOLedger, built atop StorageEngine's raw UTXO repository.
type Ledger struct {
	repo            storage.UTXORepo
	retentionWindow uint64
}

// NewLedger constructs a Ledger over store's UTXO repository. retentionWindow
// is the number of blocks a spent output is retained before it becomes
// eligible for purge (§4.8).
func NewLedger(store *storage.StorageEngine, retentionWindow uint64) *Ledger {
	return &Ledger{repo: store.UTXOs(), retentionWindow: retentionWindow}
}

// DeriveChanges computes the spent-output keys and newly created outputs
// for one block's worth of transactions, from each transaction's inputs
// (spends) and outputs (creates). Coinbase transactions have no inputs and
// so only contribute creates. A reverted Interaction still moves UTXOs: the
// base-chain transaction is final regardless of contract outcome, so input/
// output movement is read the same way whether or not RevertReason is set.
func DeriveChanges(txs []*types.Transaction, height uint64) (spent []types.OutputKey, created []*types.UnspentOutput) {
	for _, tx := range txs {
		for _, in := range tx.Inputs {
			spent = append(spent, types.OutputKey{TxID: in.OriginalTxID, OutputIndex: in.OutputIndex})
		}
		for i, out := range tx.Outputs {
			created = append(created, &types.UnspentOutput{
				Key:          types.OutputKey{TxID: tx.Hash, OutputIndex: uint32(i)},
				Value:        out.Value,
				ScriptPubKey: out.PubKeyHash,
				Address:      out.Address,
				BlockHeight:  height,
			})
		}
	}
	return spent, created
}

// BalanceOf sums every live output owned by addr.
func (l *Ledger) BalanceOf(addr types.Address) uint64 { return l.repo.BalanceOf(addr) }

// UnspentOf returns every live output owned by addr.
func (l *Ledger) UnspentOf(addr types.Address) []*types.UnspentOutput { return l.repo.UnspentOf(addr) }

// Get returns a single output, live or tombstoned.
func (l *Ledger) Get(key types.OutputKey) (*types.UnspentOutput, bool) { return l.repo.Get(key) }

// Restore lifts the tombstone on outputs whose spend is being undone by a
// reorg (§4.6, §4.8).
func (l *Ledger) Restore(keys []types.OutputKey) error { return l.repo.Restore(keys) }

// PurgeOlderThan enforces the retention window at the given chain tip,
// permanently removing tombstoned outputs spent retentionWindow or more
// blocks before tip. Returns the number of outputs purged.
func (l *Ledger) PurgeOlderThan(tip uint64) int {
	return l.repo.PurgeSpentOlderThan(tip, l.retentionWindow)
}
