package utxo

import (
	"testing"

	"github.com/opnet-core/indexer/internal/storage"
	"github.com/opnet-core/indexer/internal/testutil"
	"github.com/opnet-core/indexer/internal/types"
)

func newTestLedger(t *testing.T) (*Ledger, *storage.StorageEngine) {
	t.Helper()
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("new sandbox: %v", err)
	}
	t.Cleanup(func() { sb.Cleanup() })
	store, err := storage.NewStorageEngine(storage.Config{DataDir: sb.Root}, nil)
	if err != nil {
		t.Fatalf("new storage engine: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewLedger(store, 10), store
}

func TestDeriveChangesSpendsAndCreates(t *testing.T) {
	prior := types.Hash{9}
	tx := &types.Transaction{
		Hash: types.Hash{1},
		Inputs: []types.TxInput{
			{OriginalTxID: prior, OutputIndex: 0},
		},
		Outputs: []types.TxOutput{
			{Address: "addr1", Value: 500},
			{Address: "addr2", Value: 300},
		},
	}

	spent, created := DeriveChanges([]*types.Transaction{tx}, 7)
	if len(spent) != 1 || spent[0].TxID != prior || spent[0].OutputIndex != 0 {
		t.Fatalf("unexpected spent set: %+v", spent)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 created outputs, got %d", len(created))
	}
	if created[0].Key.TxID != tx.Hash || created[0].Key.OutputIndex != 0 || created[0].BlockHeight != 7 {
		t.Fatalf("unexpected first created output: %+v", created[0])
	}
	if created[1].Key.OutputIndex != 1 {
		t.Fatalf("expected second output index 1, got %d", created[1].Key.OutputIndex)
	}
}

func TestLedgerPurgeRespectsRetentionWindow(t *testing.T) {
	ledger, store := newTestLedger(t)
	key := types.OutputKey{TxID: types.Hash{1}, OutputIndex: 0}
	u := &types.UnspentOutput{Key: key, Value: 100, Address: "addr1", BlockHeight: 1}
	if err := store.UTXOs().InsertOutputs([]*types.UnspentOutput{u}, nil, 1); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.UTXOs().InsertOutputs(nil, []types.OutputKey{key}, 5); err != nil {
		t.Fatalf("spend: %v", err)
	}

	if n := ledger.PurgeOlderThan(10); n != 0 {
		t.Fatalf("expected no purge within retention window, purged %d", n)
	}
	if n := ledger.PurgeOlderThan(16); n != 1 {
		t.Fatalf("expected 1 purge past retention window, purged %d", n)
	}
	if _, ok := ledger.Get(key); ok {
		t.Fatalf("expected output to be gone after purge")
	}
}
