package ledger

import (
	"go.uber.org/zap"

	"github.com/attestly/ledger/pkg/crypto"
)

// SignatureChecker validates one attestation signature against a resolved
// verifier key.
type SignatureChecker interface {
	Check(key *VerifierKey, actionID string, contentHash crypto.Digest, signature []byte) (bool, error)
}

// StrictChecker verifies genuine signatures. This is the production path.
type StrictChecker struct{}

func (StrictChecker) Check(key *VerifierKey, actionID string, contentHash crypto.Digest, signature []byte) (bool, error) {
	return crypto.VerifyAttestation(key.Algorithm, key.PublicKey, actionID, contentHash, signature)
}

// InsecureAcceptAll accepts every non-empty signature. It exists for local
// development and tests only, is selected explicitly by configuration
// (SIGNATURE_MODE=insecure), and announces itself loudly. It is never a
// fallback for a missing key or config.
type InsecureAcceptAll struct{}

func (InsecureAcceptAll) Check(_ *VerifierKey, _ string, _ crypto.Digest, signature []byte) (bool, error) {
	return len(signature) > 0, nil
}

// NewChecker maps a configured signature mode to a checker. Unknown modes
// are an error rather than a silent downgrade.
func NewChecker(mode string, log *zap.SugaredLogger) (SignatureChecker, error) {
	switch mode {
	case "", "strict":
		return StrictChecker{}, nil
	case "insecure":
		if log != nil {
			log.Warnw("signature_verification_disabled", "mode", mode,
				"note", "InsecureAcceptAll accepts any signature; do not run in production")
		}
		return InsecureAcceptAll{}, nil
	default:
		return nil, errf(ErrInvalidPolicy, "unknown signature mode %q", mode)
	}
}
