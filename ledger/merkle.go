package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/aurum-chain/aurum/crypto"
)

// ZeroHash is the 64-character all-zero hash used as the Merkle root of an
// empty transaction list and as the genesis block's parent identifier.
var ZeroHash = strings.Repeat("0", 64)

// MerkleRoot computes the root over txs' leaf hashes (each transaction's
// content hash, per §4.2: "leaf hash = SHA-256 of the canonical transaction
// encoding without the signature field" — exactly Transaction.Hash). An
// odd level duplicates its last node before pairing.
func MerkleRoot(txs []*Transaction) string {
	if len(txs) == 0 {
		return ZeroHash
	}
	level := make([][]byte, len(txs))
	for i, tx := range txs {
		level[i] = crypto.HashBytes(tx.CanonicalBytes())
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			h := sha256.New()
			h.Write(level[i])
			h.Write(level[i+1])
			next = append(next, h.Sum(nil))
		}
		level = next
	}
	return hex.EncodeToString(level[0])
}
