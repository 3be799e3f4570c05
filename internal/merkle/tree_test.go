package merkle

import (
	"testing"

	"github.com/opnet-core/indexer/internal/types"
)

func TestBuildTreeProofRoundTrip(t *testing.T) {
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	tree, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	root := Root(tree)
	for i, l := range leaves {
		proof, err := ProofFor(tree, i)
		if err != nil {
			t.Fatalf("ProofFor(%d): %v", i, err)
		}
		if !VerifyPath(root, l, proof) {
			t.Fatalf("VerifyPath failed for leaf %d", i)
		}
	}
	if VerifyPath(root, []byte("not-a-member"), Proof{Index: 0, Siblings: tree[0][1:]}) {
		t.Fatalf("VerifyPath should fail for a non-member leaf")
	}
}

func TestStateTreeIdempotentUpdate(t *testing.T) {
	tree := NewStateTree()
	contract := types.ContractAddress("op1deadbeef")
	var pointer types.Pointer
	pointer[0] = 0xAA
	var value types.StateValue
	value[0] = 0x01

	if err := tree.UpdateValue(contract, pointer, value); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	r1 := tree.Root()
	if err := tree.UpdateValue(contract, pointer, value); err != nil {
		t.Fatalf("UpdateValue (repeat): %v", err)
	}
	r2 := tree.Root()
	if r1 != r2 {
		t.Fatalf("root changed on idempotent update")
	}

	got, proof, err := tree.GetValueWithProof(contract, pointer)
	if err != nil {
		t.Fatalf("GetValueWithProof: %v", err)
	}
	if got != value {
		t.Fatalf("value mismatch")
	}
	leaf := append(append([]byte{}, EncodeStateKey(contract, pointer)[:]...), value[:]...)
	if !VerifyPath(r2, leaf, proof) {
		t.Fatalf("proof did not verify against root")
	}
}

func TestStateTreeFrozenRejectsWrites(t *testing.T) {
	tree := NewStateTree()
	tree.Freeze()
	var p types.Pointer
	var v types.StateValue
	if err := tree.UpdateValue("op1x", p, v); err != ErrFrozen {
		t.Fatalf("expected ErrFrozen, got %v", err)
	}
}

func TestEmptyTreeSentinelRoot(t *testing.T) {
	tree := NewStateTree()
	if tree.Root() != EmptyRoot() {
		t.Fatalf("empty StateTree root should equal the sentinel")
	}
}
