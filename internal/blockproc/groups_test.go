package blockproc

import (
	"testing"

	"github.com/opnet-core/indexer/internal/types"
)

func mkInteractionTx(id byte, contract types.ContractAddress, gasLimit, priorityFee uint64) *types.Transaction {
	return &types.Transaction{
		ID:           types.Hash{id},
		Hash:         types.Hash{id},
		IndexingHash: types.Hash{id},
		Type:         types.TxInteraction,
		Interaction: &types.InteractionPayload{
			Contract:       contract,
			GasLimit:       gasLimit,
			PriorityFeeSat: priorityFee,
		},
	}
}

func TestPartitionGroupsByContract(t *testing.T) {
	a := mkInteractionTx(1, "contractA", 100, 0)
	b := mkInteractionTx(2, "contractA", 100, 0)
	c := mkInteractionTx(3, "contractB", 100, 0)
	generic := &types.Transaction{ID: types.Hash{4}, IndexingHash: types.Hash{4}, Type: types.TxGeneric}

	groups := PartitionGroups([]*types.Transaction{a, b, c, generic})
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups (contractA, contractB, generic), got %d", len(groups))
	}
	var contractAGroup *Group
	for _, g := range groups {
		if len(g.Txs) == 2 {
			contractAGroup = g
		}
	}
	if contractAGroup == nil {
		t.Fatalf("expected a 2-tx group for contractA")
	}
}

func TestOrderGroupsLowerRankFirst(t *testing.T) {
	cheap := &Group{Txs: []*types.Transaction{mkInteractionTx(1, "c1", 10, 0)}}
	expensive := &Group{Txs: []*types.Transaction{mkInteractionTx(2, "c2", 1000, 0)}}
	groups := []*Group{expensive, cheap}

	OrderGroups(groups, DefaultGasPenaltyFactor)

	if groups[0] != cheap {
		t.Fatalf("expected cheaper (lower rank) group first")
	}
}

func TestOrderGroupsTieBreaksLexicographically(t *testing.T) {
	g1 := &Group{Txs: []*types.Transaction{mkInteractionTx(2, "c1", 10, 0)}}
	g2 := &Group{Txs: []*types.Transaction{mkInteractionTx(1, "c2", 10, 0)}}
	groups := []*Group{g1, g2}

	OrderGroups(groups, DefaultGasPenaltyFactor)

	if groups[0] != g2 {
		t.Fatalf("expected tie-break by lexicographically smaller indexing hash to sort first")
	}
}

func TestComputeRankClampsAtZero(t *testing.T) {
	g := &Group{Txs: []*types.Transaction{mkInteractionTx(1, "c1", 1, 1_000_000)}}
	rank := ComputeRank(g, DefaultGasPenaltyFactor)
	if !rank.IsZero() {
		t.Fatalf("expected zero-clamped rank when priority fee dominates, got %s", rank.String())
	}
}
