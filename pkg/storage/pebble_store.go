package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/attestly/ledger/pkg/ledger"
)

// PebbleStore backs the action, achievement, and payout stores with a
// single Pebble database. The ledger assumes one authoritative writer per
// database, so a store-level mutex is enough to make put-if-absent and
// compare-and-set atomic.
type PebbleStore struct {
	mu sync.Mutex
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("%w: open pebble at %s: %v", ledger.ErrStorageUnavailable, path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) get(key []byte) ([]byte, bool, error) {
	val, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get: %v", ledger.ErrStorageUnavailable, err)
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (s *PebbleStore) set(key, val []byte) error {
	if err := s.db.Set(key, val, pebble.Sync); err != nil {
		return fmt.Errorf("%w: set: %v", ledger.ErrStorageUnavailable, err)
	}
	return nil
}

// ---- ledger.ActionStore ----

func (s *PebbleStore) PutAction(a *ledger.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := actionKey(a.ID)
	if _, exists, err := s.get(key); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("%w: action %s already recorded", ledger.ErrDuplicateAction, a.ID)
	}

	raw, err := encodeEnvelope(1, a)
	if err != nil {
		return fmt.Errorf("failed to marshal action: %w", err)
	}
	return s.set(key, raw)
}

func (s *PebbleStore) GetAction(id string) (*ledger.Action, uint64, error) {
	raw, exists, err := s.get(actionKey(id))
	if err != nil {
		return nil, 0, err
	}
	if !exists {
		return nil, 0, fmt.Errorf("%w: %s", ledger.ErrUnknownAction, id)
	}

	var a ledger.Action
	version, err := decodeEnvelope(raw, &a)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal action %s: %w", id, err)
	}
	if a.Verifications == nil {
		a.Verifications = make(map[string]ledger.Verification)
	}
	return &a, version, nil
}

func (s *PebbleStore) UpdateAction(a *ledger.Action, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, exists, err := s.get(actionKey(a.ID))
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ledger.ErrUnknownAction, a.ID)
	}

	var current ledger.Action
	version, err := decodeEnvelope(raw, &current)
	if err != nil {
		return fmt.Errorf("failed to unmarshal action %s: %w", a.ID, err)
	}
	if version != expectedVersion {
		return fmt.Errorf("%w: action %s version %d, expected %d", ledger.ErrBusy, a.ID, version, expectedVersion)
	}

	next, err := encodeEnvelope(expectedVersion+1, a)
	if err != nil {
		return fmt.Errorf("failed to marshal action: %w", err)
	}
	return s.set(actionKey(a.ID), next)
}

func (s *PebbleStore) ScanActions(fn func(a *ledger.Action) bool) error {
	prefix := []byte(prefixAction)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("%w: iter: %v", ledger.ErrStorageUnavailable, err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var a ledger.Action
		if _, err := decodeEnvelope(iter.Value(), &a); err != nil {
			continue // skip undecodable entries
		}
		if !fn(&a) {
			break
		}
	}
	return nil
}

// ---- ledger.AchievementStore ----

func (s *PebbleStore) ClaimAction(actionID, achievementID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := claimKey(actionID)
	if _, exists, err := s.get(key); err != nil {
		return false, err
	} else if exists {
		return false, nil
	}
	if err := s.set(key, []byte(achievementID)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PebbleStore) PutAchievement(a *ledger.Achievement) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal achievement: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(achievementKey(a.ID), data)
}

func (s *PebbleStore) GetAchievement(id string) (*ledger.Achievement, error) {
	raw, exists, err := s.get(achievementKey(id))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ledger.ErrUnknownAchievement, id)
	}

	var a ledger.Achievement
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal achievement %s: %w", id, err)
	}
	return &a, nil
}

func (s *PebbleStore) GetAchievementByAction(actionID string) (*ledger.Achievement, error) {
	raw, exists, err := s.get(claimKey(actionID))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: no achievement for action %s", ledger.ErrUnknownAchievement, actionID)
	}
	return s.GetAchievement(string(raw))
}

// ---- ledger.PayoutStore ----

func (s *PebbleStore) PutReceipt(r *ledger.PayoutReceipt) (bool, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("failed to marshal receipt: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := payoutKey(r.AchievementID, r.ContributorID)
	if _, exists, err := s.get(key); err != nil {
		return false, err
	} else if exists {
		return false, nil
	}
	if err := s.set(key, data); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PebbleStore) GetReceipt(achievementID, contributorID string) (*ledger.PayoutReceipt, error) {
	raw, exists, err := s.get(payoutKey(achievementID, contributorID))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	var r ledger.PayoutReceipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal receipt: %w", err)
	}
	return &r, nil
}

func (s *PebbleStore) ListReceipts(achievementID string) ([]*ledger.PayoutReceipt, error) {
	prefix := payoutPrefix(achievementID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: iter: %v", ledger.ErrStorageUnavailable, err)
	}
	defer iter.Close()

	var receipts []*ledger.PayoutReceipt
	for iter.First(); iter.Valid(); iter.Next() {
		var r ledger.PayoutReceipt
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			continue
		}
		receipts = append(receipts, &r)
	}
	return receipts, nil
}

var (
	_ ledger.ActionStore      = (*PebbleStore)(nil)
	_ ledger.AchievementStore = (*PebbleStore)(nil)
	_ ledger.PayoutStore      = (*PebbleStore)(nil)
)
