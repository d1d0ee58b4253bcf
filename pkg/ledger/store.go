package ledger

// ActionStore is the durable, append-oriented store of Action records.
// Implementations must provide atomic put-if-absent and compare-and-set so
// the uniqueness and monotonicity invariants hold even across processes.
type ActionStore interface {
	// PutAction persists a new action. Fails with ErrDuplicateAction if the
	// id already exists (same or different content hash).
	PutAction(a *Action) error
	// GetAction returns the action and its storage version, or
	// ErrUnknownAction.
	GetAction(id string) (*Action, uint64, error)
	// UpdateAction replaces the action iff the stored version still equals
	// expectedVersion; otherwise it fails with ErrBusy.
	UpdateAction(a *Action, expectedVersion uint64) error
	// ScanActions visits every action until fn returns false.
	ScanActions(fn func(a *Action) bool) error
}

// AchievementStore persists minted achievements with the at-most-one-per-
// action invariant enforced by ClaimAction.
type AchievementStore interface {
	// ClaimAction atomically reserves actionID for achievementID. Returns
	// false if another achievement already claimed the action.
	ClaimAction(actionID, achievementID string) (bool, error)
	PutAchievement(a *Achievement) error
	GetAchievement(id string) (*Achievement, error)
	GetAchievementByAction(actionID string) (*Achievement, error)
}

// PayoutStore persists royalty payout receipts, at most one per
// (achievement, contributor) pair.
type PayoutStore interface {
	// PutReceipt stores the receipt if absent; returns false if a receipt
	// for the pair already exists.
	PutReceipt(r *PayoutReceipt) (bool, error)
	GetReceipt(achievementID, contributorID string) (*PayoutReceipt, error)
	ListReceipts(achievementID string) ([]*PayoutReceipt, error)
}
