package crypto

import (
	"bytes"
	"testing"
)

func TestAttestationSecp256k1(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	contentHash, err := HashPayload([]byte(`{"title":"x"}`))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	digest := AttestationDigest("A1", contentHash)
	sig, err := signer.Sign(digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	ok, err := VerifyAttestation(AlgSecp256k1, signer.Address().Bytes(), "A1", contentHash, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Error("valid signature rejected")
	}

	// Wrong action id must fail: the digest binds action_id and hash
	ok, err = VerifyAttestation(AlgSecp256k1, signer.Address().Bytes(), "A2", contentHash, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Error("signature over A1 accepted for A2")
	}

	// Wrong signer must fail
	other, _ := GenerateKey()
	ok, _ = VerifyAttestation(AlgSecp256k1, other.Address().Bytes(), "A1", contentHash, sig)
	if ok {
		t.Error("signature accepted for wrong address")
	}
}

func TestAttestationEd25519(t *testing.T) {
	signer, err := GenerateEd25519()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	contentHash, _ := HashPayload([]byte(`{"k":1}`))
	digest := AttestationDigest("A1", contentHash)
	sig := signer.Sign(digest[:])

	ok, err := VerifyAttestation(AlgEd25519, signer.PublicKey(), "A1", contentHash, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Error("valid ed25519 signature rejected")
	}

	// Tampered signature must fail
	bad := append([]byte(nil), sig...)
	bad[0] ^= 0xff
	ok, _ = VerifyAttestation(AlgEd25519, signer.PublicKey(), "A1", contentHash, bad)
	if ok {
		t.Error("tampered signature accepted")
	}
}

func TestAttestationUnsupportedAlgorithm(t *testing.T) {
	contentHash, _ := HashPayload([]byte(`{}`))
	if _, err := VerifyAttestation("dsa", nil, "A1", contentHash, []byte{1}); err == nil {
		t.Error("expected error for unsupported algorithm")
	}
}

func TestEd25519FromSeed(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)
	a, err := Ed25519FromSeed(seed)
	if err != nil {
		t.Fatalf("from seed: %v", err)
	}
	b, _ := Ed25519FromSeed(seed)
	if !bytes.Equal(a.PublicKey(), b.PublicKey()) {
		t.Error("same seed produced different keys")
	}

	if _, err := Ed25519FromSeed([]byte("short")); err == nil {
		t.Error("expected error for bad seed length")
	}
}

func TestDecodeSignature(t *testing.T) {
	tests := []struct {
		name    string
		sig     string
		wantErr bool
	}{
		{"with prefix", "0xdeadbeef", false},
		{"without prefix", "deadbeef", false},
		{"invalid hex", "0xzz", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSignature(tt.sig)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeSignature(%q) err=%v, wantErr=%v", tt.sig, err, tt.wantErr)
			}
		})
	}
}
