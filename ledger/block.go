package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/aurum-chain/aurum/crypto"
)

// Header is a block header. Nonce is reserved for a future difficulty
// scheme and is not interpreted by this implementation.
type Header struct {
	Height     int64  `json:"height"`
	ParentHash string `json:"parentHash"`
	Timestamp  int64  `json:"timestamp"`
	MerkleRoot string `json:"merkleRoot"`
	Proposer   string `json:"proposer"`
	Nonce      uint32 `json:"nonce"`
}

// CanonicalBytes returns the canonical encoding of the header used for
// hashing and signing.
func (h *Header) CanonicalBytes() []byte {
	b, err := json.Marshal(h)
	if err != nil {
		panic(fmt.Sprintf("ledger: marshal header: %v", err))
	}
	return b
}

// Hash is the header's content hash, used as this block's identifier and
// as the next block's ParentHash.
func (h *Header) Hash() string {
	return crypto.Hash(h.CanonicalBytes())
}

// Block is a header, its ordered transactions, and the proposer's
// signature over the header's canonical bytes. Once appended a block is
// never mutated.
type Block struct {
	Header       Header         `json:"header"`
	Transactions []*Transaction `json:"transactions"`
	Signature    []byte         `json:"signature,omitempty"`
}

// Hash returns the block's identifier (its header's content hash).
func (b *Block) Hash() string {
	return b.Header.Hash()
}

// IsGenesis reports whether b is the height-0 genesis block.
func (b *Block) IsGenesis() bool {
	return b.Header.Height == 0
}

// Sign signs the header's canonical bytes.
func (b *Block) Sign(priv crypto.PrivateKey) {
	b.Signature = crypto.Sign(priv, b.Header.CanonicalBytes())
}

// VerifySignature recovers the signer's public key from the block's
// signature and checks that its derived address equals Header.Proposer.
// Genesis blocks are exempt per §3.
func (b *Block) VerifySignature() error {
	if b.IsGenesis() {
		return nil
	}
	if len(b.Signature) != crypto.SignatureSize {
		return newErr(InvalidSignature, "block signature must be %d bytes, got %d", crypto.SignatureSize, len(b.Signature))
	}
	pub, err := crypto.RecoverPublic(b.Header.CanonicalBytes(), b.Signature)
	if err != nil {
		return newErr(InvalidSignature, "recover proposer public key: %w", err)
	}
	if pub.Address() != b.Header.Proposer {
		return newErr(InvalidSignature, "recovered address %s does not match proposer %s", pub.Address(), b.Header.Proposer)
	}
	return nil
}

// VerifyMerkleRoot recomputes the Merkle root over Transactions and checks
// it against the header.
func (b *Block) VerifyMerkleRoot() error {
	if got := MerkleRoot(b.Transactions); got != b.Header.MerkleRoot {
		return newErr(InvalidMerkleRoot, "header has %s, computed %s", b.Header.MerkleRoot, got)
	}
	return nil
}

// NewGenesisBlock builds the height-0 block: all-zero parent hash, the
// well-known proposer literal, no transactions, and no signature.
func NewGenesisBlock(timestamp int64) *Block {
	h := Header{
		Height:     0,
		ParentHash: GenesisParentHash,
		Timestamp:  timestamp,
		MerkleRoot: ZeroHash,
		Proposer:   GenesisProposer,
		Nonce:      0,
	}
	return &Block{Header: h, Transactions: nil}
}

// NewBlock builds an unsigned block with its Merkle root already computed.
func NewBlock(height int64, parentHash string, timestamp int64, proposer string, txs []*Transaction) *Block {
	return &Block{
		Header: Header{
			Height:     height,
			ParentHash: parentHash,
			Timestamp:  timestamp,
			MerkleRoot: MerkleRoot(txs),
			Proposer:   proposer,
		},
		Transactions: txs,
	}
}
