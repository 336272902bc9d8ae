package keystore

import (
	"testing"

	"github.com/aurum-chain/aurum/ledger"
)

type fakeSource struct {
	sequence uint64
}

func (f fakeSource) GetAccount(address string) ledger.Account {
	return ledger.Account{Address: address, Sequence: f.sequence}
}

func TestWalletTransferIsSignedAndSequenced(t *testing.T) {
	w, _, err := CreateWallet(t.TempDir(), "pw")
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}

	tx := w.Transfer(fakeSource{sequence: 3}, "recipient-address", 10, 1, 1000)
	if tx.Sequence != 3 {
		t.Errorf("sequence: got %d want 3", tx.Sequence)
	}
	if tx.Sender != w.Address() {
		t.Errorf("sender: got %s want %s", tx.Sender, w.Address())
	}
	if err := tx.VerifySignature(); err != nil {
		t.Errorf("VerifySignature: %v", err)
	}
}

func TestWalletStakeTargetsSelf(t *testing.T) {
	w, _, err := CreateWallet(t.TempDir(), "pw")
	if err != nil {
		t.Fatal(err)
	}
	tx := w.Stake(fakeSource{}, 1000, 0, 1000)
	if tx.Recipient != w.Address() {
		t.Errorf("stake recipient: got %s want self %s", tx.Recipient, w.Address())
	}
	if tx.Kind != ledger.KindStake {
		t.Errorf("kind: got %s want stake", tx.Kind)
	}
}
