package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/attestly/ledger/pkg/events"
	"github.com/attestly/ledger/pkg/util"
)

// TransferReceipt is returned by the payment collaborator for one transfer.
type TransferReceipt struct {
	TransferID string
}

// Transferrer is the external value-transfer collaborator. Transfers must be
// idempotent on idempotencyKey so payout retries never double-pay.
type Transferrer interface {
	Transfer(to string, amountBps int, idempotencyKey string) (TransferReceipt, error)
}

// DevTransferrer fulfils transfers locally with generated ids. Dev mode
// stand-in for a payment processor.
type DevTransferrer struct{}

func (DevTransferrer) Transfer(string, int, string) (TransferReceipt, error) {
	return TransferReceipt{TransferID: uuid.NewString()}, nil
}

// MinterConfig wires the achievement minter's collaborators. Locks must be
// the engine's lock set so mint serializes with verify on the same action.
type MinterConfig struct {
	Actions      ActionStore
	Achievements AchievementStore
	Payouts      PayoutStore
	Transferrer  Transferrer
	Bus          *events.Bus
	Locks        *KeyLocks
	Clock        util.Clock
	LockWait     time.Duration
	Logger       *zap.SugaredLogger
}

// Minter creates exactly one Achievement per completed action and runs the
// retriable royalty payout.
type Minter struct {
	actions      ActionStore
	achievements AchievementStore
	payouts      PayoutStore
	transferrer  Transferrer
	bus          *events.Bus
	locks        *KeyLocks
	clock        util.Clock
	lockWait     time.Duration
	log          *zap.SugaredLogger
}

func NewMinter(cfg MinterConfig) *Minter {
	if cfg.Clock == nil {
		cfg.Clock = util.RealClock{}
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Locks == nil {
		cfg.Locks = NewKeyLocks(cfg.Clock)
	}
	if cfg.Transferrer == nil {
		cfg.Transferrer = DevTransferrer{}
	}
	return &Minter{
		actions:      cfg.Actions,
		achievements: cfg.Achievements,
		payouts:      cfg.Payouts,
		transferrer:  cfg.Transferrer,
		bus:          cfg.Bus,
		locks:        cfg.Locks,
		clock:        cfg.Clock,
		lockWait:     cfg.LockWait,
		log:          cfg.Logger,
	}
}

// MintInput carries the caller's mint request.
type MintInput struct {
	ActionID       string
	OwnerID        string
	ContributorIDs []string
	Weights        []int64 // optional; equal split when empty
	MetadataURI    string
}

// Mint creates the Achievement for a completed action. Exactly-once is
// enforced by an atomic claim on the action id in the achievement store,
// taken while holding the action's lock.
func (m *Minter) Mint(in MintInput) (*Achievement, error) {
	if len(in.ContributorIDs) == 0 {
		return nil, errf(ErrEmptyContributorSet, "mint for action %s", in.ActionID)
	}

	var contributors []Contributor
	var err error
	if len(in.Weights) > 0 {
		contributors, err = AllocateWeighted(in.ContributorIDs, in.Weights)
	} else {
		contributors, err = Allocate(in.ContributorIDs)
	}
	if err != nil {
		return nil, err
	}

	release, err := m.locks.Acquire(in.ActionID, m.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	action, version, err := m.actions.GetAction(in.ActionID)
	if err != nil {
		return nil, err
	}
	if action.State != StateCompleted {
		return nil, errf(ErrActionNotCompleted, "action %s is %s", in.ActionID, action.State)
	}
	if action.AchievementID != "" {
		return nil, errf(ErrAlreadyMinted, "action %s already minted achievement %s", in.ActionID, action.AchievementID)
	}

	achievement := &Achievement{
		ID:           uuid.NewString(),
		ActionID:     in.ActionID,
		Contributors: contributors,
		OwnerID:      in.OwnerID,
		MetadataURI:  in.MetadataURI,
		CreatedAt:    m.clock.Now().UTC(),
	}

	// The claim is the transactional guard: only one achievement id can
	// ever win the action's claim key, even across processes.
	claimed, err := m.achievements.ClaimAction(in.ActionID, achievement.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, errf(ErrAlreadyMinted, "action %s claimed by another mint", in.ActionID)
	}

	if err := m.achievements.PutAchievement(achievement); err != nil {
		return nil, err
	}

	action.AchievementID = achievement.ID
	if err := m.actions.UpdateAction(action, version); err != nil {
		return nil, err
	}

	m.log.Infow("achievement_minted",
		"achievement_id", achievement.ID,
		"action_id", in.ActionID,
		"owner", in.OwnerID,
		"contributors", len(contributors),
	)
	if m.bus != nil {
		m.bus.Publish(events.Event{
			Type: EventAchievementMinted,
			Key:  in.ActionID,
			At:   m.clock.Now().UTC(),
			Data: achievement,
		})
	}
	return achievement, nil
}

// GetAchievement returns a minted achievement by id.
func (m *Minter) GetAchievement(id string) (*Achievement, error) {
	return m.achievements.GetAchievement(id)
}

// PayoutResult reports one PayRoyalties run. Paid holds receipts written in
// this run; Skipped lists contributors already paid in earlier runs; Failed
// maps contributors to their transfer errors.
type PayoutResult struct {
	AchievementID string
	Paid          []*PayoutReceipt
	Skipped       []string
	Failed        map[string]error
}

// PayRoyalties distributes value to contributors proportional to share_bps.
// Retriable: pairs with an existing receipt are skipped, and one
// contributor's failure never blocks the others. A partial failure is
// reported alongside the successes.
func (m *Minter) PayRoyalties(achievementID string) (*PayoutResult, error) {
	achievement, err := m.achievements.GetAchievement(achievementID)
	if err != nil {
		return nil, err
	}

	result := &PayoutResult{
		AchievementID: achievementID,
		Failed:        make(map[string]error),
	}

	for _, c := range achievement.Contributors {
		existing, err := m.payouts.GetReceipt(achievementID, c.ContributorID)
		if err != nil {
			result.Failed[c.ContributorID] = err
			continue
		}
		if existing != nil {
			result.Skipped = append(result.Skipped, c.ContributorID)
			continue
		}

		idemKey := fmt.Sprintf("%s:%s", achievementID, c.ContributorID)
		receipt, err := m.transferrer.Transfer(c.ContributorID, c.ShareBps, idemKey)
		if err != nil {
			m.log.Warnw("royalty_transfer_failed",
				"achievement_id", achievementID,
				"contributor", c.ContributorID,
				"err", err,
			)
			result.Failed[c.ContributorID] = err
			continue
		}

		pr := &PayoutReceipt{
			AchievementID: achievementID,
			ContributorID: c.ContributorID,
			AmountBps:     c.ShareBps,
			TransferID:    receipt.TransferID,
			PaidAt:        m.clock.Now().UTC(),
		}
		stored, err := m.payouts.PutReceipt(pr)
		if err != nil {
			result.Failed[c.ContributorID] = err
			continue
		}
		if !stored {
			// Lost a race with a concurrent payout run; the pair is paid.
			result.Skipped = append(result.Skipped, c.ContributorID)
			continue
		}

		result.Paid = append(result.Paid, pr)
		m.log.Infow("royalty_paid",
			"achievement_id", achievementID,
			"contributor", c.ContributorID,
			"share_bps", c.ShareBps,
			"transfer_id", receipt.TransferID,
		)
		if m.bus != nil {
			m.bus.Publish(events.Event{
				Type: EventRoyaltyPaid,
				Key:  achievement.ActionID,
				At:   m.clock.Now().UTC(),
				Data: pr,
			})
		}
	}

	if len(result.Failed) > 0 {
		errs := make([]error, 0, len(result.Failed))
		for id, ferr := range result.Failed {
			errs = append(errs, fmt.Errorf("contributor %s: %w", id, ferr))
		}
		return result, fmt.Errorf("payout for %s incomplete: %w", achievementID, errors.Join(errs...))
	}
	return result, nil
}
