package ledger

import (
	"fmt"
	"testing"

	"github.com/aurum-chain/aurum/crypto"
)

// stakeTwoValidators appends three blocks (one proposed by each of addrA
// and addrB, then one staking block) that bring the two genesis-funded
// addresses to active validator status with a 3:1 stake ratio between them.
func stakeTwoValidators(t *testing.T, l *Ledger, privA, privB crypto.PrivateKey, addrA, addrB string, stakeA, stakeB uint64) {
	t.Helper()
	rewardA := rewardAt(addrA, l.Params().BlockReward, 1000)
	blockA := NewBlock(1, l.Tip().Hash(), 1000, addrA, []*Transaction{rewardA})
	blockA.Sign(privA)
	if err := l.AppendBlock(blockA); err != nil {
		t.Fatalf("fund A: %v", err)
	}

	rewardB := rewardAt(addrB, l.Params().BlockReward, 2000)
	blockB := NewBlock(2, l.Tip().Hash(), 2000, addrB, []*Transaction{rewardB})
	blockB.Sign(privB)
	if err := l.AppendBlock(blockB); err != nil {
		t.Fatalf("fund B: %v", err)
	}

	stakeTxA := NewTransaction(KindStake, addrA, addrA, stakeA, 0, 0, 3000, nil)
	stakeTxA.ID = stakeTxA.Hash()
	stakeTxA.Sign(privA)
	stakeTxB := NewTransaction(KindStake, addrB, addrB, stakeB, 0, 0, 3000, nil)
	stakeTxB.ID = stakeTxB.Hash()
	stakeTxB.Sign(privB)
	block3 := NewBlock(3, l.Tip().Hash(), 3000, addrA,
		[]*Transaction{stakeTxA, stakeTxB, rewardAt(addrA, l.Params().BlockReward, 3000)})
	block3.Sign(privA)
	if err := l.AppendBlock(block3); err != nil {
		t.Fatalf("stake both validators: %v", err)
	}

	for _, addr := range []string{addrA, addrB} {
		v, ok := l.GetValidator(addr)
		if !ok || !v.Active {
			t.Fatalf("expected %s to be an active validator", addr)
		}
	}
}

// TestTwoValidatorElectionMatchesStakeWeight checks that, across many
// distinct prior-header hashes, each of two active validators is elected
// proportionally to its share of total stake, within a 10% tolerance.
func TestTwoValidatorElectionMatchesStakeWeight(t *testing.T) {
	privA, pubA, _ := crypto.GenerateKeyPair()
	privB, pubB, _ := crypto.GenerateKeyPair()
	addrA, addrB := pubA.Address(), pubB.Address()

	const stakeA, stakeB = uint64(750_000), uint64(250_000)
	l := newFundedTestLedger(t, map[string]uint64{addrA: stakeA, addrB: stakeB})
	stakeTwoValidators(t, l, privA, privB, addrA, addrB, stakeA, stakeB)

	const trials = 10_000
	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		hash := crypto.Hash([]byte(fmt.Sprintf("fork-seed-%d", i)))
		proposer, err := l.ElectProposer(hash)
		if err != nil {
			t.Fatalf("ElectProposer: %v", err)
		}
		counts[proposer]++
	}

	total := stakeA + stakeB
	wantA := float64(trials) * float64(stakeA) / float64(total)
	wantB := float64(trials) * float64(stakeB) / float64(total)

	gotA, gotB := float64(counts[addrA]), float64(counts[addrB])
	if tolerance := 0.10 * wantA; gotA < wantA-tolerance || gotA > wantA+tolerance {
		t.Errorf("A elected %v times, want within 10%% of %v (stake share %d/%d)", gotA, wantA, stakeA, total)
	}
	if tolerance := 0.10 * wantB; gotB < wantB-tolerance || gotB > wantB+tolerance {
		t.Errorf("B elected %v times, want within 10%% of %v (stake share %d/%d)", gotB, wantB, stakeB, total)
	}
	if counts[addrA]+counts[addrB] != trials {
		t.Errorf("unexpected proposer outside {A,B}: counts=%v", counts)
	}
}
