package keystore

import (
	"encoding/json"
	"fmt"

	"github.com/aurum-chain/aurum/crypto"
	"github.com/aurum-chain/aurum/ledger"
)

// SequenceSource supplies the sender's current on-chain sequence number at
// signing time. ledger.Ledger satisfies this directly via GetAccount;
// kept as a narrow interface so wallet construction doesn't need the rest
// of Ledger's surface (SPEC_FULL.md §9 "Sequence-number source").
type SequenceSource interface {
	GetAccount(address string) ledger.Account
}

// Wallet wraps a single signing key pair and its derived address.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// NewWallet wraps an existing private key.
func NewWallet(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// CreateWallet generates a fresh key pair, encrypts it under password, and
// writes it to dir as one file per address.
func CreateWallet(dir, password string) (*Wallet, string, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, "", fmt.Errorf("generate key pair: %w", err)
	}
	path, err := SaveFile(dir, priv, password)
	if err != nil {
		return nil, "", err
	}
	return NewWallet(priv), path, nil
}

// ImportWallet encrypts an already-known private key and writes it to dir.
func ImportWallet(dir string, priv crypto.PrivateKey, password string) (*Wallet, string, error) {
	path, err := SaveFile(dir, priv, password)
	if err != nil {
		return nil, "", err
	}
	return NewWallet(priv), path, nil
}

// LoadWallet decrypts the keystore file for address under dir.
func LoadWallet(dir, address, password string) (*Wallet, error) {
	priv, err := LoadFile(dir, address, password)
	if err != nil {
		return nil, err
	}
	return NewWallet(priv), nil
}

// Address returns the wallet's derived address.
func (w *Wallet) Address() string { return w.pub.Address() }

// PublicKey returns the wallet's public key.
func (w *Wallet) PublicKey() crypto.PublicKey { return w.pub }

// CreateTransaction builds and signs a transaction, pulling the sender's
// current sequence number from src rather than trusting a caller-supplied
// nonce (§4.4, §9 "Sequence-number source for new transactions").
func (w *Wallet) CreateTransaction(src SequenceSource, kind ledger.Kind, recipient string, amount, fee uint64, timestamp int64, payload json.RawMessage) *ledger.Transaction {
	account := src.GetAccount(w.Address())
	tx := ledger.NewTransaction(kind, w.Address(), recipient, amount, fee, account.Sequence, timestamp, payload)
	tx.Sign(w.priv)
	return tx
}

// Transfer builds and signs a Transfer transaction.
func (w *Wallet) Transfer(src SequenceSource, recipient string, amount, fee uint64, timestamp int64) *ledger.Transaction {
	return w.CreateTransaction(src, ledger.KindTransfer, recipient, amount, fee, timestamp, nil)
}

// Stake builds and signs a Stake transaction. Recipient is the sender
// itself: staking locks the sender's own balance.
func (w *Wallet) Stake(src SequenceSource, amount, fee uint64, timestamp int64) *ledger.Transaction {
	return w.CreateTransaction(src, ledger.KindStake, w.Address(), amount, fee, timestamp, nil)
}

// Unstake builds and signs an Unstake transaction.
func (w *Wallet) Unstake(src SequenceSource, amount, fee uint64, timestamp int64) *ledger.Transaction {
	return w.CreateTransaction(src, ledger.KindUnstake, w.Address(), amount, fee, timestamp, nil)
}
