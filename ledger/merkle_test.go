package ledger

import "testing"

func TestMerkleRootEmptyIsZeroHash(t *testing.T) {
	if got := MerkleRoot(nil); got != ZeroHash {
		t.Errorf("empty merkle root: got %s want %s", got, ZeroHash)
	}
}

func TestMerkleRootOrderSensitive(t *testing.T) {
	txA := NewRewardTransaction("addrA", 1, 1000)
	txA.ID = txA.Hash()
	txB := NewRewardTransaction("addrB", 2, 2000)
	txB.ID = txB.Hash()

	r1 := MerkleRoot([]*Transaction{txA, txB})
	r2 := MerkleRoot([]*Transaction{txB, txA})
	if r1 == r2 {
		t.Error("permuting transactions should change the Merkle root")
	}
}
