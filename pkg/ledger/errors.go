package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ledger. Callers match with errors.Is; call sites
// wrap with context via errf.
var (
	ErrDuplicateAction     = errors.New("duplicate action")
	ErrUnknownAction       = errors.New("unknown action")
	ErrInvalidState        = errors.New("invalid state for operation")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrUnknownVerifier     = errors.New("unknown verifier")
	ErrUnauthorized        = errors.New("verifier not authorized for action")
	ErrActionNotCompleted  = errors.New("action not completed")
	ErrAlreadyMinted       = errors.New("achievement already minted for action")
	ErrUnknownAchievement  = errors.New("unknown achievement")
	ErrEmptyContributorSet = errors.New("empty contributor set")
	ErrInvalidPolicy       = errors.New("invalid quorum policy")
	ErrBusy                = errors.New("action busy: lock wait timed out")
	ErrStorageUnavailable  = errors.New("storage unavailable")
)

// errf wraps a sentinel with formatted context, keeping errors.Is working.
func errf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// stateErr builds an ErrInvalidState that carries the current terminal
// state, so callers can tell "already completed" from "rejected" or
// "expired" without a separate read.
func stateErr(actionID string, current State) error {
	return fmt.Errorf("%w: action %s is %s", ErrInvalidState, actionID, current)
}
