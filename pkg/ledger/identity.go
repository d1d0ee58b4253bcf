package ledger

import (
	"sync"

	"github.com/attestly/ledger/pkg/crypto"
)

// RoleVerifier is the role an identity must hold to attest under an open
// quorum policy.
const RoleVerifier = "verifier"

// VerifierKey is the resolved identity record for a verifier: its public
// key material, the signature scheme it uses, and its role tags. The ledger
// never holds private key material.
type VerifierKey struct {
	VerifierID string
	Algorithm  crypto.Algorithm
	PublicKey  []byte // 20-byte address for secp256k1, 32-byte key for ed25519
	Roles      []string
}

func (k *VerifierKey) HasRole(role string) bool {
	for _, r := range k.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// KeyProvider is the external identity/key collaborator.
type KeyProvider interface {
	// ResolvePublicKey returns the key record for a verifier, or
	// ErrUnknownVerifier.
	ResolvePublicKey(verifierID string) (*VerifierKey, error)
}

// Registry is a read-through cache in front of a KeyProvider. Reads are
// unsynchronized-cheap (RWMutex read path); the provider is only consulted
// on a miss, and never while an action lock is held.
type Registry struct {
	mu       sync.RWMutex
	provider KeyProvider
	cache    map[string]*VerifierKey
}

func NewRegistry(provider KeyProvider) *Registry {
	return &Registry{
		provider: provider,
		cache:    make(map[string]*VerifierKey),
	}
}

// ResolveKey returns the cached key record for verifierID, consulting the
// provider on a miss.
func (r *Registry) ResolveKey(verifierID string) (*VerifierKey, error) {
	r.mu.RLock()
	key, ok := r.cache[verifierID]
	r.mu.RUnlock()
	if ok {
		return key, nil
	}

	key, err := r.provider.ResolvePublicKey(verifierID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[verifierID] = key
	r.mu.Unlock()
	return key, nil
}

// KeyRotated drops the cached entry for verifierID. Called from the
// provider's out-of-band rotation notification; the next resolve re-fetches.
func (r *Registry) KeyRotated(verifierID string) {
	r.mu.Lock()
	delete(r.cache, verifierID)
	r.mu.Unlock()
}

// StaticProvider is a map-backed KeyProvider for dev mode and tests.
type StaticProvider struct {
	mu   sync.RWMutex
	keys map[string]*VerifierKey
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{keys: make(map[string]*VerifierKey)}
}

func (p *StaticProvider) Register(key *VerifierKey) {
	p.mu.Lock()
	p.keys[key.VerifierID] = key
	p.mu.Unlock()
}

func (p *StaticProvider) ResolvePublicKey(verifierID string) (*VerifierKey, error) {
	p.mu.RLock()
	key, ok := p.keys[verifierID]
	p.mu.RUnlock()
	if !ok {
		return nil, errf(ErrUnknownVerifier, "no key registered for %q", verifierID)
	}
	return key, nil
}
