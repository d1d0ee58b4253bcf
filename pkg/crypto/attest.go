package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
)

// Algorithm tags the signature scheme of a verifier's registered key.
// Dispatch happens through this tag on the registry record, never by
// sniffing the signature bytes.
type Algorithm string

const (
	AlgSecp256k1 Algorithm = "secp256k1"
	AlgEd25519   Algorithm = "ed25519"
)

// AttestationDigest computes the canonical message a verifier signs to
// attest to an action: Keccak256(action_id || content_hash). Both sides
// (signer CLI, wallets, the engine) must derive it identically.
func AttestationDigest(actionID string, contentHash Digest) [32]byte {
	var out [32]byte
	h := ethCrypto.Keccak256([]byte(actionID), contentHash[:])
	copy(out[:], h)
	return out
}

// VerifyAttestation checks signature over the attestation message for
// (actionID, contentHash) against a registered public key of the given
// algorithm. For secp256k1 the key is a 20-byte address and verification
// is by recovery; for ed25519 the key is the 32-byte public key and the
// message signed is the digest itself.
func VerifyAttestation(alg Algorithm, publicKey []byte, actionID string, contentHash Digest, signature []byte) (bool, error) {
	digest := AttestationDigest(actionID, contentHash)

	switch alg {
	case AlgSecp256k1:
		if len(publicKey) != common.AddressLength {
			return false, fmt.Errorf("secp256k1 key must be a %d-byte address, got %d bytes", common.AddressLength, len(publicKey))
		}
		return VerifySecp256k1(common.BytesToAddress(publicKey), digest[:], signature), nil
	case AlgEd25519:
		return VerifyEd25519(publicKey, digest[:], signature), nil
	default:
		return false, fmt.Errorf("unsupported signature algorithm: %s", alg)
	}
}

// DecodeSignature decodes a hex-encoded signature (with or without 0x prefix)
func DecodeSignature(sig string) ([]byte, error) {
	sig = strings.TrimPrefix(sig, "0x")
	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}
	if len(sigBytes) == 0 {
		return nil, fmt.Errorf("empty signature")
	}
	return sigBytes, nil
}
