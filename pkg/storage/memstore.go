package storage

import (
	"fmt"
	"strings"
	"sync"

	"github.com/attestly/ledger/pkg/ledger"
)

// MemStore is the in-memory twin of PebbleStore, for tests and dev mode.
type MemStore struct {
	mu           sync.Mutex
	actions      map[string]*memAction
	achievements map[string]*ledger.Achievement
	claims       map[string]string // action_id -> achievement_id
	receipts     map[string]*ledger.PayoutReceipt
}

type memAction struct {
	version uint64
	action  *ledger.Action
}

func NewMemStore() *MemStore {
	return &MemStore{
		actions:      make(map[string]*memAction),
		achievements: make(map[string]*ledger.Achievement),
		claims:       make(map[string]string),
		receipts:     make(map[string]*ledger.PayoutReceipt),
	}
}

func (s *MemStore) PutAction(a *ledger.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.actions[a.ID]; exists {
		return fmt.Errorf("%w: action %s already recorded", ledger.ErrDuplicateAction, a.ID)
	}
	s.actions[a.ID] = &memAction{version: 1, action: a.Clone()}
	return nil
}

func (s *MemStore) GetAction(id string) (*ledger.Action, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.actions[id]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ledger.ErrUnknownAction, id)
	}
	return rec.action.Clone(), rec.version, nil
}

func (s *MemStore) UpdateAction(a *ledger.Action, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.actions[a.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrUnknownAction, a.ID)
	}
	if rec.version != expectedVersion {
		return fmt.Errorf("%w: action %s version %d, expected %d", ledger.ErrBusy, a.ID, rec.version, expectedVersion)
	}
	s.actions[a.ID] = &memAction{version: expectedVersion + 1, action: a.Clone()}
	return nil
}

func (s *MemStore) ScanActions(fn func(a *ledger.Action) bool) error {
	s.mu.Lock()
	snapshot := make([]*ledger.Action, 0, len(s.actions))
	for _, rec := range s.actions {
		snapshot = append(snapshot, rec.action.Clone())
	}
	s.mu.Unlock()

	for _, a := range snapshot {
		if !fn(a) {
			break
		}
	}
	return nil
}

func (s *MemStore) ClaimAction(actionID, achievementID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.claims[actionID]; exists {
		return false, nil
	}
	s.claims[actionID] = achievementID
	return true, nil
}

func (s *MemStore) PutAchievement(a *ledger.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	cp.Contributors = append([]ledger.Contributor(nil), a.Contributors...)
	s.achievements[a.ID] = &cp
	return nil
}

func (s *MemStore) GetAchievement(id string) (*ledger.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.achievements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrUnknownAchievement, id)
	}
	cp := *a
	cp.Contributors = append([]ledger.Contributor(nil), a.Contributors...)
	return &cp, nil
}

func (s *MemStore) GetAchievementByAction(actionID string) (*ledger.Achievement, error) {
	s.mu.Lock()
	id, ok := s.claims[actionID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: no achievement for action %s", ledger.ErrUnknownAchievement, actionID)
	}
	return s.GetAchievement(id)
}

func (s *MemStore) PutReceipt(r *ledger.PayoutReceipt) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.AchievementID + ":" + r.ContributorID
	if _, exists := s.receipts[key]; exists {
		return false, nil
	}
	cp := *r
	s.receipts[key] = &cp
	return true, nil
}

func (s *MemStore) GetReceipt(achievementID, contributorID string) (*ledger.PayoutReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[achievementID+":"+contributorID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *MemStore) ListReceipts(achievementID string) ([]*ledger.PayoutReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ledger.PayoutReceipt
	for key, r := range s.receipts {
		if strings.HasPrefix(key, achievementID+":") {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

var (
	_ ledger.ActionStore      = (*MemStore)(nil)
	_ ledger.AchievementStore = (*MemStore)(nil)
	_ ledger.PayoutStore      = (*MemStore)(nil)
)
