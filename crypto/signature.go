package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// SignatureSize is the length in bytes of a recoverable signature:
// a 64-byte (R, S) pair followed by a single recovery byte.
const SignatureSize = 65

// Sign hashes message with SHA-256 and produces a 65-byte recoverable
// ECDSA signature: 32 bytes R, 32 bytes S, 1 recovery byte. The recovery
// byte lets RecoverPublic reconstruct the signer's public key from the
// signature alone, which is required because the ledger only stores
// addresses, not public keys (see DESIGN.md).
func Sign(priv PrivateKey, message []byte) []byte {
	digest := HashBytes(message)
	// dcrd's SignCompact returns [recoveryByte || R || S]; the wire format
	// this package exposes is [R || S || recoveryByte], matching spec.md §4.1.
	compact := ecdsa.SignCompact(priv.key, digest, true)
	out := make([]byte, SignatureSize)
	copy(out[:64], compact[1:])
	out[64] = compact[0]
	return out
}

// SignHex signs message and returns the hex-encoded signature.
func SignHex(priv PrivateKey, message []byte) string {
	return hex.EncodeToString(Sign(priv, message))
}

// Verify checks sig (65 bytes, as produced by Sign) against message and pub.
// Only R and S are used; the recovery byte must be present but its value is
// not examined.
func Verify(pub PublicKey, message, sig []byte) error {
	if len(sig) != SignatureSize {
		return fmt.Errorf("signature must be %d bytes, got %d", SignatureSize, len(sig))
	}
	var r, s secp256k1.ModNScalar
	if r.SetByteSlice(sig[:32]) || s.SetByteSlice(sig[32:64]) {
		return errors.New("signature verification failed")
	}
	if !ecdsa.NewSignature(&r, &s).Verify(HashBytes(message), pub.key) {
		return errors.New("signature verification failed")
	}
	return nil
}

// VerifyHex decodes a hex-encoded signature and verifies it.
func VerifyHex(pub PublicKey, message []byte, sigHex string) error {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	return Verify(pub, message, sig)
}

// RecoverPublic reconstructs the public key that produced sig over message.
func RecoverPublic(message, sig []byte) (PublicKey, error) {
	if len(sig) != SignatureSize {
		return PublicKey{}, fmt.Errorf("signature must be %d bytes, got %d", SignatureSize, len(sig))
	}
	compact := make([]byte, SignatureSize)
	compact[0] = sig[64]
	copy(compact[1:], sig[:64])

	digest := HashBytes(message)
	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return PublicKey{}, fmt.Errorf("recover public key: %w", err)
	}
	return PublicKey{key: pub}, nil
}

// RecoverPublicHex decodes a hex-encoded signature and recovers its signer.
func RecoverPublicHex(message []byte, sigHex string) (PublicKey, error) {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid signature hex: %w", err)
	}
	return RecoverPublic(message, sig)
}
