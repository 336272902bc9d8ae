package crypto

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// AddressPrefix is prepended to every derived address.
const AddressPrefix = "aur1"

// AddressLength is the length in characters of a derived address
// (4-byte prefix + 40 hex characters of a RIPEMD-160 digest).
const AddressLength = len(AddressPrefix) + 2*20

// PrivateKey wraps a secp256k1 scalar.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey wraps a compressed secp256k1 point.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// GenerateKeyPair generates a new secp256k1 key pair. The private key is 32
// uniformly random bytes, rejection-sampled by the underlying library to be
// non-zero and less than the curve order.
func GenerateKeyPair() (PrivateKey, PublicKey, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return PrivateKey{}, PublicKey{}, fmt.Errorf("generate private key: %w", err)
	}
	return PrivateKey{key: priv}, PublicKey{key: priv.PubKey()}, nil
}

// Bytes returns the raw 32-byte private key.
func (priv PrivateKey) Bytes() []byte {
	return priv.key.Serialize()
}

// Hex returns the hex-encoded private key.
func (priv PrivateKey) Hex() string {
	return hex.EncodeToString(priv.Bytes())
}

// Public derives the compressed public key from the private key.
func (priv PrivateKey) Public() PublicKey {
	return PublicKey{key: priv.key.PubKey()}
}

// IsZero reports whether priv holds no key material.
func (priv PrivateKey) IsZero() bool {
	return priv.key == nil
}

// Bytes returns the 33-byte compressed point encoding of the public key.
func (pub PublicKey) Bytes() []byte {
	return pub.key.SerializeCompressed()
}

// Hex returns the hex-encoded compressed public key (66 characters).
func (pub PublicKey) Hex() string {
	return hex.EncodeToString(pub.Bytes())
}

// IsZero reports whether pub holds no key material.
func (pub PublicKey) IsZero() bool {
	return pub.key == nil
}

// Address derives the node address: "aur1" followed by the 40-character hex
// RIPEMD-160 digest of the SHA-256 hash of the compressed public key.
func (pub PublicKey) Address() string {
	shaSum := HashBytes(pub.Bytes())
	ripemd := Ripemd160(shaSum)
	return AddressPrefix + hex.EncodeToString(ripemd)
}

// DeriveAddress derives the address for a public key. Equivalent to
// pub.Address(); provided as a free function for call sites that only have
// a PublicKey value in hand from deserialization.
func DeriveAddress(pub PublicKey) string {
	return pub.Address()
}

// PubKeyFromHex decodes a hex-encoded compressed public key.
func PubKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid pubkey hex: %w", err)
	}
	return PubKeyFromBytes(b)
}

// PubKeyFromBytes parses a compressed public key from raw bytes.
func PubKeyFromBytes(b []byte) (PublicKey, error) {
	key, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid pubkey bytes: %w", err)
	}
	return PublicKey{key: key}, nil
}

// PrivKeyFromHex decodes a hex-encoded 32-byte private key.
func PrivKeyFromHex(s string) (PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("invalid privkey hex: %w", err)
	}
	return PrivKeyFromBytes(b)
}

// PrivKeyFromBytes parses a raw 32-byte private key.
func PrivKeyFromBytes(b []byte) (PrivateKey, error) {
	if len(b) != 32 {
		return PrivateKey{}, fmt.Errorf("privkey must be 32 bytes, got %d", len(b))
	}
	return PrivateKey{key: secp256k1.PrivKeyFromBytes(b)}, nil
}

// AddressFromPublicKey derives an address from a hex-encoded public key,
// validating the encoding along the way.
func AddressFromPublicKey(pubHex string) (string, error) {
	pub, err := PubKeyFromHex(pubHex)
	if err != nil {
		return "", err
	}
	return pub.Address(), nil
}
