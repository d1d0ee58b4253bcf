package ledger

import (
	"time"

	"go.uber.org/zap"

	"github.com/attestly/ledger/pkg/crypto"
	"github.com/attestly/ledger/pkg/events"
	"github.com/attestly/ledger/pkg/util"
)

// KeyResolver resolves verifier identities to key records. Usually a
// *Registry; tests may plug a provider in directly.
type KeyResolver interface {
	ResolveKey(verifierID string) (*VerifierKey, error)
}

// EngineConfig wires the verification engine's collaborators.
type EngineConfig struct {
	Store    ActionStore
	Resolver KeyResolver
	Checker  SignatureChecker
	Bus      *events.Bus
	Clock    util.Clock
	LockWait time.Duration
	Logger   *zap.SugaredLogger
}

// Engine drives the action attestation state machine:
// record -> verify (N of M) -> complete, or reject/expire. All mutations
// happen under the per-action lock; events are published before the lock is
// released so per-action event order matches transition order.
type Engine struct {
	store    ActionStore
	resolver KeyResolver
	checker  SignatureChecker
	bus      *events.Bus
	locks    *KeyLocks
	clock    util.Clock
	lockWait time.Duration
	log      *zap.SugaredLogger
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = util.RealClock{}
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Checker == nil {
		cfg.Checker = StrictChecker{}
	}
	return &Engine{
		store:    cfg.Store,
		resolver: cfg.Resolver,
		checker:  cfg.Checker,
		bus:      cfg.Bus,
		locks:    NewKeyLocks(cfg.Clock),
		clock:    cfg.Clock,
		lockWait: cfg.LockWait,
		log:      cfg.Logger,
	}
}

// Locks exposes the per-action locks so the minter shares the same
// exclusion domain.
func (e *Engine) Locks() *KeyLocks { return e.locks }

// LockWait returns the configured bound on lock acquisition.
func (e *Engine) LockWait() time.Duration { return e.lockWait }

// RecordInput carries the caller's submission for a new action.
type RecordInput struct {
	ActionID          string
	ActionType        string
	Payload           []byte
	InitiatorID       string
	RequiredVerifiers []string
	Policy            QuorumPolicy
}

// Record hashes the payload, persists the action in state recorded, and
// emits action.recorded. Re-recording an existing id is always
// ErrDuplicateAction, even with an identical payload: replays must fail.
func (e *Engine) Record(in RecordInput) (*Action, error) {
	if in.ActionID == "" {
		return nil, errf(ErrUnknownAction, "action id must not be empty")
	}
	if err := in.Policy.Validate(len(in.RequiredVerifiers)); err != nil {
		return nil, err
	}

	digest, err := crypto.HashPayload(in.Payload)
	if err != nil {
		return nil, err
	}

	release, err := e.locks.Acquire(in.ActionID, e.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	action := &Action{
		ID:                in.ActionID,
		Type:              in.ActionType,
		ContentHash:       digest.Hex(),
		InitiatorID:       in.InitiatorID,
		RequiredVerifiers: append([]string(nil), in.RequiredVerifiers...),
		Policy:            in.Policy,
		Verifications:     make(map[string]Verification),
		State:             StateRecorded,
		CreatedAt:         e.clock.Now().UTC(),
	}

	if err := e.store.PutAction(action); err != nil {
		return nil, err
	}

	e.log.Infow("action_recorded",
		"action_id", action.ID,
		"action_type", action.Type,
		"content_hash", action.ContentHash,
		"initiator", action.InitiatorID,
		"policy", action.Policy.Kind,
	)
	e.publish(EventActionRecorded, action)
	return action.Clone(), nil
}

// Verify validates one verifier's attestation and advances the state
// machine. A repeat attestation by the same verifier is an idempotent
// no-op returning the unchanged action.
func (e *Engine) Verify(actionID, verifierID, signatureHex string) (*Action, error) {
	sig, err := crypto.DecodeSignature(signatureHex)
	if err != nil {
		return nil, errf(ErrInvalidSignature, "action %s verifier %s: %v", actionID, verifierID, err)
	}

	// Resolve the key before taking the action lock: resolution may hit the
	// external provider and must not extend the critical section.
	key, err := e.resolver.ResolveKey(verifierID)
	if err != nil {
		return nil, err
	}

	release, err := e.locks.Acquire(actionID, e.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	action, version, err := e.store.GetAction(actionID)
	if err != nil {
		return nil, err
	}
	if action.State.Terminal() {
		return nil, stateErr(actionID, action.State)
	}

	if action.Policy.Open() {
		if !key.HasRole(RoleVerifier) {
			return nil, errf(ErrUnauthorized, "verifier %s lacks role %q for open-policy action %s", verifierID, RoleVerifier, actionID)
		}
	} else if !action.Requires(verifierID) {
		return nil, errf(ErrUnauthorized, "verifier %s not in required set for action %s", verifierID, actionID)
	}

	if _, dup := action.Verifications[verifierID]; dup {
		return action.Clone(), nil
	}

	contentHash, err := crypto.DigestFromHex(action.ContentHash)
	if err != nil {
		return nil, err
	}
	ok, err := e.checker.Check(key, actionID, contentHash, sig)
	if err != nil {
		return nil, errf(ErrInvalidSignature, "action %s verifier %s: %v", actionID, verifierID, err)
	}
	if !ok {
		e.log.Warnw("attestation_rejected",
			"action_id", actionID,
			"verifier", verifierID,
			"algorithm", key.Algorithm,
			"content_hash", action.ContentHash,
		)
		return nil, errf(ErrInvalidSignature, "signature by %s over action %s does not verify", verifierID, actionID)
	}

	action.Verifications[verifierID] = Verification{
		SignatureHex: signatureHex,
		Algorithm:    key.Algorithm,
		VerifiedAt:   e.clock.Now().UTC(),
	}

	eventType := EventActionVerified
	if action.QuorumMet() {
		now := e.clock.Now().UTC()
		action.State = StateCompleted
		action.CompletedAt = &now
		eventType = EventActionCompleted
	} else {
		action.State = StatePartiallyVerified
	}

	if err := e.store.UpdateAction(action, version); err != nil {
		return nil, err
	}

	e.log.Infow("action_verified",
		"action_id", actionID,
		"verifier", verifierID,
		"verifications", len(action.Verifications),
		"state", action.State,
	)
	e.publish(eventType, action)
	return action.Clone(), nil
}

// Reject moves a non-terminal action to rejected.
func (e *Engine) Reject(actionID, reason string) (*Action, error) {
	release, err := e.locks.Acquire(actionID, e.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	action, version, err := e.store.GetAction(actionID)
	if err != nil {
		return nil, err
	}
	if action.State.Terminal() {
		return nil, stateErr(actionID, action.State)
	}

	action.State = StateRejected
	action.RejectReason = reason
	if err := e.store.UpdateAction(action, version); err != nil {
		return nil, err
	}

	e.log.Infow("action_rejected", "action_id", actionID, "reason", reason)
	e.publish(EventActionRejected, action)
	return action.Clone(), nil
}

// Expire moves a non-terminal action to expired. Expiring an already
// terminal action is a no-op, not an error, so sweeps are idempotent.
func (e *Engine) Expire(actionID string) (*Action, error) {
	release, err := e.locks.Acquire(actionID, e.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	action, version, err := e.store.GetAction(actionID)
	if err != nil {
		return nil, err
	}
	if action.State.Terminal() {
		return action.Clone(), nil
	}

	action.State = StateExpired
	if err := e.store.UpdateAction(action, version); err != nil {
		return nil, err
	}

	e.log.Infow("action_expired", "action_id", actionID, "age", e.clock.Now().Sub(action.CreatedAt))
	e.publish(EventActionExpired, action)
	return action.Clone(), nil
}

// ExpireStale expires every non-terminal action older than ttl. Returns the
// ids it expired.
func (e *Engine) ExpireStale(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		return nil, nil
	}
	cutoff := e.clock.Now().Add(-ttl)

	var stale []string
	err := e.store.ScanActions(func(a *Action) bool {
		if !a.State.Terminal() && a.CreatedAt.Before(cutoff) {
			stale = append(stale, a.ID)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	var expired []string
	for _, id := range stale {
		if _, err := e.Expire(id); err != nil {
			e.log.Warnw("expire_failed", "action_id", id, "err", err)
			continue
		}
		expired = append(expired, id)
	}
	return expired, nil
}

// Get returns a copy of the action.
func (e *Engine) Get(actionID string) (*Action, error) {
	action, _, err := e.store.GetAction(actionID)
	if err != nil {
		return nil, err
	}
	return action.Clone(), nil
}

// VerifyActionRecord recomputes the hash of payload and compares it to the
// stored content hash. Pure audit check; no state change.
func (e *Engine) VerifyActionRecord(actionID string, payload []byte) (bool, error) {
	action, _, err := e.store.GetAction(actionID)
	if err != nil {
		return false, err
	}

	digest, err := crypto.HashPayload(payload)
	if err != nil {
		return false, err
	}
	if digest.Hex() != action.ContentHash {
		e.log.Warnw("audit_hash_mismatch",
			"action_id", actionID,
			"expected_hash", action.ContentHash,
			"actual_hash", digest.Hex(),
		)
		return false, nil
	}
	return true, nil
}

func (e *Engine) publish(eventType string, action *Action) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{
		Type: eventType,
		Key:  action.ID,
		At:   e.clock.Now().UTC(),
		Data: action.Clone(),
	})
}
