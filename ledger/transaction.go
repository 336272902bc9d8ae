package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/aurum-chain/aurum/crypto"
)

// Kind enumerates transaction kinds. ContractDeploy and ContractCall are
// reserved slots: the type exists so wire messages carrying them decode
// cleanly, but ledger.ValidateTransaction rejects both with
// UnsupportedTxKind since contract execution is out of scope.
type Kind string

const (
	KindTransfer        Kind = "transfer"
	KindReward          Kind = "reward"
	KindStake           Kind = "stake"
	KindUnstake         Kind = "unstake"
	KindContractDeploy  Kind = "contract_deploy"
	KindContractCall    Kind = "contract_call"
)

// Transaction is an immutable, signed record. ID is the content hash of
// every field below except Signature; it is recomputed, never trusted from
// the wire, whenever a transaction is about to enter the pool.
type Transaction struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Amount    uint64          `json:"amount"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Sequence  uint64          `json:"sequence"`
	Signature []byte          `json:"signature,omitempty"`
}

// signingBody is the canonical encoding used for both the transaction ID
// (leaf hash) and the signed message: every field in Transaction's declared
// order except ID and Signature.
type signingBody struct {
	Kind      Kind            `json:"kind"`
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Amount    uint64          `json:"amount"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Sequence  uint64          `json:"sequence"`
}

// CanonicalBytes returns the canonical encoding used for hashing and
// signing: a JSON object with keys in declared order, no insignificant
// whitespace, and the signature field omitted.
func (tx *Transaction) CanonicalBytes() []byte {
	body := signingBody{
		Kind:      tx.Kind,
		Sender:    tx.Sender,
		Recipient: tx.Recipient,
		Amount:    tx.Amount,
		Fee:       tx.Fee,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
		Sequence:  tx.Sequence,
	}
	b, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("ledger: marshal transaction body: %v", err))
	}
	return b
}

// Hash returns the content hash (transaction ID / Merkle leaf hash) over
// CanonicalBytes.
func (tx *Transaction) Hash() string {
	return crypto.Hash(tx.CanonicalBytes())
}

// NewTransaction builds an unsigned transaction with its ID already set.
func NewTransaction(kind Kind, sender, recipient string, amount, fee uint64, sequence uint64, timestamp int64, payload json.RawMessage) *Transaction {
	tx := &Transaction{
		Kind:      kind,
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Fee:       fee,
		Timestamp: timestamp,
		Payload:   payload,
		Sequence:  sequence,
	}
	tx.ID = tx.Hash()
	return tx
}

// NewRewardTransaction synthesizes the per-block Reward transaction. Reward
// transactions carry no signature and are exempt from signature checks.
func NewRewardTransaction(proposer string, amount uint64, timestamp int64) *Transaction {
	return NewTransaction(KindReward, NetworkAddress, proposer, amount, 0, 0, timestamp, nil)
}

// Sign signs the transaction's canonical bytes and sets Signature. It also
// refreshes ID, since ID is a pure function of the (now final) body.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	tx.ID = tx.Hash()
	tx.Signature = crypto.Sign(priv, tx.CanonicalBytes())
}

// VerifySignature checks the transaction's signature against the public key
// recovered from it, and that the recovered key's address equals Sender.
// Reward transactions are exempt and always pass.
func (tx *Transaction) VerifySignature() error {
	if tx.Kind == KindReward {
		return nil
	}
	if len(tx.Signature) != crypto.SignatureSize {
		return newErr(InvalidSignature, "signature must be %d bytes, got %d", crypto.SignatureSize, len(tx.Signature))
	}
	pub, err := crypto.RecoverPublic(tx.CanonicalBytes(), tx.Signature)
	if err != nil {
		return newErr(InvalidSignature, "recover public key: %w", err)
	}
	if pub.Address() != tx.Sender {
		return newErr(InvalidSignature, "recovered address %s does not match sender %s", pub.Address(), tx.Sender)
	}
	return nil
}
