package ledger

import (
	"testing"

	"github.com/aurum-chain/aurum/crypto"
	"github.com/aurum-chain/aurum/internal/testutil"
)

// TestForkResolutionSwitchesToLongerBranch builds a main-chain block at
// height 1 with a real transfer, then delivers a competing height-1 block
// from a different proposer followed by a block extending it. The second
// branch overtakes the main chain at height 2, so HandleReceivedBlock must
// rewind the original block, adopt the new branch, and re-pool the
// orphaned transfer (the orphaned reward must not be re-pooled).
func TestForkResolutionSwitchesToLongerBranch(t *testing.T) {
	store := testutil.NewMemBlockStore()
	params := DefaultChainParams("test-net", 0)
	pool := NewPool(0)
	l := New(store, params, pool)

	privA, pubA, _ := crypto.GenerateKeyPair()
	privB, pubB, _ := crypto.GenerateKeyPair()
	addrA, addrB := pubA.Address(), pubB.Address()
	const addrC = "recipient-addr"

	if err := l.InitGenesis(NewGenesisBlock(0), map[string]uint64{addrA: 1000}); err != nil {
		t.Fatalf("InitGenesis: %v", err)
	}
	genesisHash := l.Tip().Hash()

	transfer := NewTransaction(KindTransfer, addrA, addrC, 50, 0, 0, 1000, nil)
	transfer.ID = transfer.Hash()
	transfer.Sign(privA)
	rewardA := rewardAt(addrA, l.Params().BlockReward, 1000)
	blockA1 := NewBlock(1, genesisHash, 1000, addrA, []*Transaction{transfer, rewardA})
	blockA1.Sign(privA)
	if err := l.AppendBlock(blockA1); err != nil {
		t.Fatalf("append main-chain block A1: %v", err)
	}
	if got := l.GetAccount(addrA).Balance; got != 950+l.Params().BlockReward {
		t.Fatalf("A balance after A1: got %d want %d", got, 950+l.Params().BlockReward)
	}

	rewardB1 := rewardAt(addrB, l.Params().BlockReward, 1000)
	blockB1 := NewBlock(1, genesisHash, 1000, addrB, []*Transaction{rewardB1})
	blockB1.Sign(privB)
	accepted, err := l.HandleReceivedBlock(blockB1)
	if err != nil {
		t.Fatalf("buffer competing block B1: %v", err)
	}
	if accepted {
		t.Fatalf("equal-height side branch must not switch the tip yet")
	}
	if l.Height() != 1 || l.Tip().Hash() != blockA1.Hash() {
		t.Fatalf("main chain should still be at A1 before the reorg")
	}

	rewardB2 := rewardAt(addrB, l.Params().BlockReward, 2000)
	blockB2 := NewBlock(2, blockB1.Hash(), 2000, addrB, []*Transaction{rewardB2})
	blockB2.Sign(privB)
	accepted, err = l.HandleReceivedBlock(blockB2)
	if err != nil {
		t.Fatalf("deliver overtaking block B2: %v", err)
	}
	if !accepted {
		t.Fatalf("longer branch should have triggered a reorg")
	}

	if l.Height() != 2 {
		t.Fatalf("height after reorg: got %d want 2", l.Height())
	}
	if got := l.Tip().Hash(); got != blockB2.Hash() {
		t.Fatalf("tip after reorg: got %s want B2 %s", got, blockB2.Hash())
	}
	if _, err := l.GetBlockByHash(blockA1.Hash()); err == nil {
		t.Fatalf("orphaned block A1 should no longer be on the main chain")
	}

	if got := l.GetAccount(addrA).Balance; got != 1000 {
		t.Errorf("A balance after rewind: got %d want 1000 (transfer and reward undone)", got)
	}
	if got := l.GetAccount(addrC).Balance; got != 0 {
		t.Errorf("C balance after rewind: got %d want 0", got)
	}
	if got := l.GetAccount(addrB).Balance; got != 2*l.Params().BlockReward {
		t.Errorf("B balance: got %d want %d", got, 2*l.Params().BlockReward)
	}

	if !l.Pool().Has(transfer.ID) {
		t.Errorf("orphaned non-reward transaction should be re-pooled")
	}
	if l.Pool().Has(rewardA.ID) {
		t.Errorf("orphaned reward transaction must not be re-pooled")
	}
}

// TestForkResolutionEqualHeightKeepsFirstSeen pins down that a side branch
// implying the same height as the current tip is buffered but never
// switched to — only a strictly longer branch triggers a reorg.
func TestForkResolutionEqualHeightKeepsFirstSeen(t *testing.T) {
	l := newTestLedger(t)
	privA, pubA, _ := crypto.GenerateKeyPair()
	privB, pubB, _ := crypto.GenerateKeyPair()
	addrA, addrB := pubA.Address(), pubB.Address()
	genesisHash := l.Tip().Hash()

	blockA1 := NewBlock(1, genesisHash, 1000, addrA, []*Transaction{rewardAt(addrA, l.Params().BlockReward, 1000)})
	blockA1.Sign(privA)
	if err := l.AppendBlock(blockA1); err != nil {
		t.Fatalf("append A1: %v", err)
	}

	blockB1 := NewBlock(1, genesisHash, 1000, addrB, []*Transaction{rewardAt(addrB, l.Params().BlockReward, 1000)})
	blockB1.Sign(privB)
	accepted, err := l.HandleReceivedBlock(blockB1)
	if err != nil {
		t.Fatalf("buffer B1: %v", err)
	}
	if accepted || l.Tip().Hash() != blockA1.Hash() {
		t.Fatalf("equal-height competing block must not displace the existing tip")
	}
}
