package ledger

import (
	"errors"
	"sync"
	"testing"

	"github.com/attestly/ledger/pkg/crypto"
)

// countingProvider wraps a StaticProvider and counts resolutions.
type countingProvider struct {
	*StaticProvider
	mu    sync.Mutex
	calls int
}

func (p *countingProvider) ResolvePublicKey(verifierID string) (*VerifierKey, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.StaticProvider.ResolvePublicKey(verifierID)
}

func (p *countingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestRegistry_CachesResolutions(t *testing.T) {
	provider := &countingProvider{StaticProvider: NewStaticProvider()}
	provider.Register(&VerifierKey{
		VerifierID: "v1",
		Algorithm:  crypto.AlgEd25519,
		PublicKey:  []byte("pub"),
	})
	registry := NewRegistry(provider)

	for i := 0; i < 5; i++ {
		key, err := registry.ResolveKey("v1")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if key.VerifierID != "v1" {
			t.Fatalf("resolved %s", key.VerifierID)
		}
	}
	if n := provider.callCount(); n != 1 {
		t.Errorf("provider consulted %d times, want 1", n)
	}
}

func TestRegistry_KeyRotated(t *testing.T) {
	provider := &countingProvider{StaticProvider: NewStaticProvider()}
	provider.Register(&VerifierKey{VerifierID: "v1", Algorithm: crypto.AlgEd25519, PublicKey: []byte("old")})
	registry := NewRegistry(provider)

	if _, err := registry.ResolveKey("v1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	provider.Register(&VerifierKey{VerifierID: "v1", Algorithm: crypto.AlgEd25519, PublicKey: []byte("new")})
	registry.KeyRotated("v1")

	key, err := registry.ResolveKey("v1")
	if err != nil {
		t.Fatalf("resolve after rotation: %v", err)
	}
	if string(key.PublicKey) != "new" {
		t.Errorf("got stale key %q after rotation", key.PublicKey)
	}
	if n := provider.callCount(); n != 2 {
		t.Errorf("provider consulted %d times, want 2", n)
	}
}

func TestRegistry_UnknownVerifier(t *testing.T) {
	registry := NewRegistry(NewStaticProvider())
	if _, err := registry.ResolveKey("ghost"); !errors.Is(err, ErrUnknownVerifier) {
		t.Errorf("got %v, want ErrUnknownVerifier", err)
	}
}

func TestVerifierKey_HasRole(t *testing.T) {
	key := &VerifierKey{VerifierID: "v1", Roles: []string{"auditor", RoleVerifier}}
	if !key.HasRole(RoleVerifier) {
		t.Error("role lookup missed an assigned role")
	}
	if key.HasRole("admin") {
		t.Error("role lookup matched an unassigned role")
	}
}

func TestNewChecker(t *testing.T) {
	tests := []struct {
		mode    string
		want    SignatureChecker
		wantErr bool
	}{
		{"", StrictChecker{}, false},
		{"strict", StrictChecker{}, false},
		{"insecure", InsecureAcceptAll{}, false},
		{"lenient", nil, true},
	}
	for _, tt := range tests {
		t.Run("mode "+tt.mode, func(t *testing.T) {
			got, err := NewChecker(tt.mode, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("got %T, want %T", got, tt.want)
			}
		})
	}
}

func TestInsecureAcceptAll(t *testing.T) {
	checker := InsecureAcceptAll{}
	ok, err := checker.Check(nil, "A1", crypto.Digest{}, []byte{1})
	if err != nil || !ok {
		t.Errorf("non-empty signature: ok=%v err=%v", ok, err)
	}
	ok, _ = checker.Check(nil, "A1", crypto.Digest{}, nil)
	if ok {
		t.Error("empty signature accepted")
	}
}
