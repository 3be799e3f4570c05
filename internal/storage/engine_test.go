package storage

import (
	"testing"

	"github.com/opnet-core/indexer/internal/testutil"
	"github.com/opnet-core/indexer/internal/types"
)

func newTestEngine(t *testing.T) *StorageEngine {
	t.Helper()
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("new sandbox: %v", err)
	}
	t.Cleanup(func() { sb.Cleanup() })

	e, err := NewStorageEngine(Config{DataDir: sb.Root}, nil)
	if err != nil {
		t.Fatalf("new storage engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestSaveAndGetBlockHeader(t *testing.T) {
	e := newTestEngine(t)
	h := &types.BlockHeader{Height: 1, Hash: types.Hash{1}}
	if err := e.Blocks().SaveBlockHeader(h); err != nil {
		t.Fatalf("save header: %v", err)
	}
	got, err := e.Blocks().GetBlockHeader(1)
	if err != nil {
		t.Fatalf("get header: %v", err)
	}
	if got.Hash != h.Hash {
		t.Fatalf("hash mismatch")
	}
	latest, err := e.Blocks().GetLatestBlock()
	if err != nil || latest.Height != 1 {
		t.Fatalf("expected latest block at height 1, got %+v err=%v", latest, err)
	}
}

func TestWALReplayRestoresState(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("new sandbox: %v", err)
	}
	t.Cleanup(func() { sb.Cleanup() })

	e1, err := NewStorageEngine(Config{DataDir: sb.Root}, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	h := &types.BlockHeader{Height: 5, Hash: types.Hash{5}}
	if err := e1.Blocks().SaveBlockHeader(h); err != nil {
		t.Fatalf("save header: %v", err)
	}
	if err := e1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	e2, err := NewStorageEngine(Config{DataDir: sb.Root}, nil)
	if err != nil {
		t.Fatalf("reopen engine: %v", err)
	}
	defer e2.Close()
	got, err := e2.Blocks().GetBlockHeader(5)
	if err != nil {
		t.Fatalf("expected replayed header, got error: %v", err)
	}
	if got.Hash != h.Hash {
		t.Fatalf("hash mismatch after replay")
	}
}

func TestStateSlotHeightVersionedRead(t *testing.T) {
	e := newTestEngine(t)
	contract := types.ContractAddress("op1deadbeef")
	pointer := types.Pointer{1}

	v10 := types.StateValue{10}
	v20 := types.StateValue{20}
	if err := e.StateSlots().SetSlotBatch([]types.StateSlot{{Contract: contract, Pointer: pointer, Value: v10}}, 10); err != nil {
		t.Fatalf("write slot at 10: %v", err)
	}
	if err := e.StateSlots().SetSlotBatch([]types.StateSlot{{Contract: contract, Pointer: pointer, Value: v20}}, 20); err != nil {
		t.Fatalf("write slot at 20: %v", err)
	}

	v, found, err := e.StateSlots().GetSlot(contract, pointer, 15)
	if err != nil || !found || v != v10 {
		t.Fatalf("expected value at height 15 to be the write from height 10, got %v found=%v err=%v", v, found, err)
	}
	v, found, err = e.StateSlots().GetSlot(contract, pointer, 25)
	if err != nil || !found || v != v20 {
		t.Fatalf("expected value at height 25 to be the write from height 20, got %v found=%v err=%v", v, found, err)
	}
	_, found, err = e.StateSlots().GetSlot(contract, pointer, 5)
	if err != nil || found {
		t.Fatalf("expected no value before first write, found=%v err=%v", found, err)
	}
}

func TestContractInsertRejectsDuplicate(t *testing.T) {
	e := newTestEngine(t)
	c := &types.ContractInformation{Address: "op1aaaa", DeploymentBlock: 1, Bytecode: []byte("code")}
	if err := e.Contracts().Insert(c); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := e.Contracts().Insert(c); err == nil {
		t.Fatalf("expected AlreadyExists on duplicate insert")
	}
}

func TestUTXOSpendAndRestore(t *testing.T) {
	e := newTestEngine(t)
	key := types.OutputKey{TxID: types.Hash{1}, OutputIndex: 0}
	u := &types.UnspentOutput{Key: key, Value: 1000, Address: "addr1", BlockHeight: 1}
	if err := e.UTXOs().InsertOutputs([]*types.UnspentOutput{u}, nil, 1); err != nil {
		t.Fatalf("insert output: %v", err)
	}
	if bal := e.UTXOs().BalanceOf("addr1"); bal != 1000 {
		t.Fatalf("expected balance 1000, got %d", bal)
	}

	if err := e.UTXOs().InsertOutputs(nil, []types.OutputKey{key}, 2); err != nil {
		t.Fatalf("spend output: %v", err)
	}
	if bal := e.UTXOs().BalanceOf("addr1"); bal != 0 {
		t.Fatalf("expected balance 0 after spend, got %d", bal)
	}

	if err := e.UTXOs().Restore([]types.OutputKey{key}); err != nil {
		t.Fatalf("restore output: %v", err)
	}
	if bal := e.UTXOs().BalanceOf("addr1"); bal != 1000 {
		t.Fatalf("expected balance restored to 1000, got %d", bal)
	}
}

func TestDeleteFromRollsBackReorgedHeight(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Blocks().SaveBlockHeaders([]*types.BlockHeader{
		{Height: 1, Hash: types.Hash{1}},
		{Height: 2, Hash: types.Hash{2}},
		{Height: 3, Hash: types.Hash{3}},
	}); err != nil {
		t.Fatalf("save headers: %v", err)
	}

	if err := e.Blocks().DeleteBlockHeadersFrom(2); err != nil {
		t.Fatalf("delete from: %v", err)
	}

	if _, err := e.Blocks().GetBlockHeader(2); err == nil {
		t.Fatalf("expected height 2 to be rolled back")
	}
	if _, err := e.Blocks().GetBlockHeader(3); err == nil {
		t.Fatalf("expected height 3 to be rolled back")
	}
	h1, err := e.Blocks().GetBlockHeader(1)
	if err != nil || h1.Height != 1 {
		t.Fatalf("expected height 1 to survive rollback, got %+v err=%v", h1, err)
	}
	max, ok := e.Blocks().MaxBlockHeight()
	if !ok || max != 1 {
		t.Fatalf("expected max height to fall back to 1, got %d ok=%v", max, ok)
	}
}

func TestSnapshotTruncatesWAL(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("new sandbox: %v", err)
	}
	t.Cleanup(func() { sb.Cleanup() })

	e, err := NewStorageEngine(Config{DataDir: sb.Root, SnapshotEvery: 2}, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	for h := uint64(1); h <= 3; h++ {
		if err := e.Blocks().SaveBlockHeader(&types.BlockHeader{Height: h, Hash: types.Hash{byte(h)}}); err != nil {
			t.Fatalf("save header %d: %v", h, err)
		}
	}
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	e2, err := NewStorageEngine(Config{DataDir: sb.Root, SnapshotEvery: 2}, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer e2.Close()
	for h := uint64(1); h <= 3; h++ {
		if _, err := e2.Blocks().GetBlockHeader(h); err != nil {
			t.Fatalf("expected height %d to survive snapshot+replay, got err: %v", h, err)
		}
	}
}
