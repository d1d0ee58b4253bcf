package crypto

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/crypto/sha3"
)

// Digest is a 256-bit content hash.
type Digest [32]byte

func (d Digest) Hex() string { return hex.EncodeToString(d[:]) }

func (d Digest) IsZero() bool { return d == Digest{} }

// DigestFromHex parses a 64-char hex string into a Digest.
func DigestFromHex(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("invalid digest hex: %w", err)
	}
	if len(b) != 32 {
		return d, fmt.Errorf("digest must be 32 bytes, got %d", len(b))
	}
	copy(d[:], b)
	return d, nil
}

// HashPayload computes the canonical content hash of an action payload.
// JSON payloads are canonicalized per RFC 8785 (keys sorted, no insignificant
// whitespace) before hashing, so semantically identical payloads always
// produce the same digest. Non-JSON payloads are hashed as raw bytes.
func HashPayload(payload []byte) (Digest, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return Digest{}, err
	}
	return sha3.Sum256(canonical), nil
}

// Canonicalize returns the deterministic byte form of a payload. The result
// is what HashPayload actually digests; exposed so audit tooling can inspect
// the exact hashed bytes.
func Canonicalize(payload []byte) ([]byte, error) {
	if !json.Valid(payload) {
		return payload, nil
	}
	canonical, err := jcs.Transform(payload)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return canonical, nil
}
