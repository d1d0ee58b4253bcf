package api

import "github.com/attestly/ledger/pkg/ledger"

// Request/response types for REST endpoints and WebSocket messages

// ==============================
// REST Request Types
// ==============================

// RecordActionRequest submits a new action for attestation.
type RecordActionRequest struct {
	ActionID          string              `json:"actionId"`
	ActionType        string              `json:"actionType"`
	Payload           map[string]any      `json:"payload"`
	InitiatorID       string              `json:"initiatorId"`
	RequiredVerifiers []string            `json:"requiredVerifiers"`
	Policy            ledger.QuorumPolicy `json:"quorumPolicy"`
}

// VerifyActionRequest submits one verifier's attestation signature.
type VerifyActionRequest struct {
	VerifierID string `json:"verifierId"`
	Signature  string `json:"signature"` // hex, 0x prefix optional
}

// RejectActionRequest moves an action to rejected.
type RejectActionRequest struct {
	Reason string `json:"reason"`
}

// AuditActionRequest re-submits a payload for hash comparison.
type AuditActionRequest struct {
	Payload map[string]any `json:"payload"`
}

// MintAchievementRequest mints the achievement for a completed action.
type MintAchievementRequest struct {
	ActionID       string   `json:"actionId"`
	OwnerID        string   `json:"ownerId"`
	ContributorIDs []string `json:"contributorIds"`
	Weights        []int64  `json:"weights,omitempty"`
	MetadataURI    string   `json:"metadataUri"`
}

// ==============================
// REST Response Types
// ==============================

// AuditResponse reports a verifyActionRecord check.
type AuditResponse struct {
	ActionID string `json:"actionId"`
	Match    bool   `json:"match"`
}

// PayoutResponse reports one payRoyalties run.
type PayoutResponse struct {
	AchievementID string                  `json:"achievementId"`
	Paid          []*ledger.PayoutReceipt `json:"paid"`
	Skipped       []string                `json:"skipped,omitempty"`
	Failed        map[string]string       `json:"failed,omitempty"`
}

// ErrorResponse is the JSON error body for non-2xx responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Types
// ==============================

// WSSubscribeRequest is the client -> server subscription message.
// Channels are event types ("action.recorded", ...); empty means all.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}
