package ledger

import (
	"time"

	"github.com/attestly/ledger/pkg/crypto"
)

// State is the lifecycle state of an Action. Transitions only move forward:
// recorded -> partially_verified* -> completed, or recorded/partially_verified
// -> rejected | expired.
type State string

const (
	StateRecorded          State = "recorded"
	StatePartiallyVerified State = "partially_verified"
	StateCompleted         State = "completed"
	StateRejected          State = "rejected"
	StateExpired           State = "expired"
)

// Terminal reports whether no further transition is allowed from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateRejected || s == StateExpired
}

// PolicyKind selects how verifications complete an action.
type PolicyKind string

const (
	// PolicyAllOf completes when every required verifier has attested.
	PolicyAllOf PolicyKind = "all"
	// PolicyKOfN completes when K of the required verifiers have attested.
	PolicyKOfN PolicyKind = "k-of-n"
	// PolicyKOfNOpen completes when K identities holding the verifier role
	// have attested, whether or not they appear in required_verifiers.
	PolicyKOfNOpen PolicyKind = "k-of-n-open"
)

type QuorumPolicy struct {
	Kind PolicyKind `json:"kind"`
	K    int        `json:"k,omitempty"` // ignored for PolicyAllOf
}

// Validate checks the policy against the size of the required verifier set.
func (p QuorumPolicy) Validate(required int) error {
	switch p.Kind {
	case PolicyAllOf:
		if required == 0 {
			return errf(ErrInvalidPolicy, "all-of policy requires at least one verifier")
		}
	case PolicyKOfN:
		if p.K < 1 || p.K > required {
			return errf(ErrInvalidPolicy, "k-of-n policy needs 1 <= k <= %d, got k=%d", required, p.K)
		}
	case PolicyKOfNOpen:
		if p.K < 1 {
			return errf(ErrInvalidPolicy, "k-of-n-open policy needs k >= 1, got k=%d", p.K)
		}
	default:
		return errf(ErrInvalidPolicy, "unknown policy kind %q", p.Kind)
	}
	return nil
}

// Met reports whether count accepted verifications satisfy the policy for a
// required set of the given size.
func (p QuorumPolicy) Met(count, required int) bool {
	switch p.Kind {
	case PolicyAllOf:
		return count >= required
	case PolicyKOfN, PolicyKOfNOpen:
		return count >= p.K
	}
	return false
}

// Open reports whether verifiers outside required_verifiers may attest.
func (p QuorumPolicy) Open() bool { return p.Kind == PolicyKOfNOpen }

// Verification is one verifier's accepted attestation over an action.
// The raw signature is retained for audit; it is never written to logs.
type Verification struct {
	SignatureHex string           `json:"signature"`
	Algorithm    crypto.Algorithm `json:"algorithm"`
	VerifiedAt   time.Time        `json:"verified_at"`
}

// Action is the append-only record of a unit of work under attestation.
type Action struct {
	ID                string                  `json:"action_id"`
	Type              string                  `json:"action_type"`
	ContentHash       string                  `json:"content_hash"` // hex SHA3-256 of canonical payload
	InitiatorID       string                  `json:"initiator_id"`
	RequiredVerifiers []string                `json:"required_verifiers"`
	Policy            QuorumPolicy            `json:"quorum_policy"`
	Verifications     map[string]Verification `json:"verifications"`
	State             State                   `json:"state"`
	RejectReason      string                  `json:"reject_reason,omitempty"`
	AchievementID     string                  `json:"achievement_id,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	CompletedAt       *time.Time              `json:"completed_at,omitempty"`
}

// Requires reports whether verifierID is in the required verifier set.
func (a *Action) Requires(verifierID string) bool {
	for _, v := range a.RequiredVerifiers {
		if v == verifierID {
			return true
		}
	}
	return false
}

// QuorumMet evaluates the action's policy against its current verifications.
func (a *Action) QuorumMet() bool {
	return a.Policy.Met(len(a.Verifications), len(a.RequiredVerifiers))
}

// Clone returns a deep copy. The engine hands out clones so callers can
// never mutate stored state.
func (a *Action) Clone() *Action {
	out := *a
	out.RequiredVerifiers = append([]string(nil), a.RequiredVerifiers...)
	out.Verifications = make(map[string]Verification, len(a.Verifications))
	for k, v := range a.Verifications {
		out.Verifications[k] = v
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// Contributor is one credited party and its share in basis points.
type Contributor struct {
	ContributorID string `json:"contributor_id"`
	ShareBps      int    `json:"share_bps"`
}

// Achievement is the immutable minted record of a completed action.
// Exactly one exists per action; share_bps always sum to 10000.
type Achievement struct {
	ID           string        `json:"achievement_id"`
	ActionID     string        `json:"action_id"`
	Contributors []Contributor `json:"contributors"`
	OwnerID      string        `json:"owner_id"`
	MetadataURI  string        `json:"metadata_uri"`
	CreatedAt    time.Time     `json:"created_at"`
}

// PayoutReceipt records a successful royalty transfer for one
// (achievement, contributor) pair. Written at most once per pair.
type PayoutReceipt struct {
	AchievementID string    `json:"achievement_id"`
	ContributorID string    `json:"contributor_id"`
	AmountBps     int       `json:"amount_bps"`
	TransferID    string    `json:"transfer_id"`
	PaidAt        time.Time `json:"paid_at"`
}

// Lifecycle event types published on the bus.
const (
	EventActionRecorded    = "action.recorded"
	EventActionVerified    = "action.verified"
	EventActionCompleted   = "action.completed"
	EventActionRejected    = "action.rejected"
	EventActionExpired     = "action.expired"
	EventAchievementMinted = "achievement.minted"
	EventRoyaltyPaid       = "royalty.paid"
)
