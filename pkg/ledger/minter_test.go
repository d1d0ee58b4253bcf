package ledger_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/attestly/ledger/pkg/ledger"
)

// flakyTransferrer fails configured contributors once, then succeeds, and
// counts every call per contributor.
type flakyTransferrer struct {
	mu       sync.Mutex
	calls    map[string]int
	failOnce map[string]bool
}

func newFlakyTransferrer(failOnce ...string) *flakyTransferrer {
	f := &flakyTransferrer{
		calls:    make(map[string]int),
		failOnce: make(map[string]bool),
	}
	for _, id := range failOnce {
		f.failOnce[id] = true
	}
	return f
}

func (f *flakyTransferrer) Transfer(to string, amountBps int, idemKey string) (ledger.TransferReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[to]++
	if f.failOnce[to] {
		f.failOnce[to] = false
		return ledger.TransferReceipt{}, errors.New("transfer backend unavailable")
	}
	return ledger.TransferReceipt{TransferID: "tx-" + idemKey}, nil
}

func (f *flakyTransferrer) callCount(to string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[to]
}

type minterFixture struct {
	*fixture
	minter      *ledger.Minter
	transferrer *flakyTransferrer
}

func newMinterFixture(t *testing.T, failOnce ...string) *minterFixture {
	t.Helper()
	f := newFixture(t)
	tr := newFlakyTransferrer(failOnce...)
	m := ledger.NewMinter(ledger.MinterConfig{
		Actions:      f.store,
		Achievements: f.store,
		Payouts:      f.store,
		Transferrer:  tr,
		Bus:          f.bus,
		Locks:        f.engine.Locks(),
		Clock:        f.clock,
	})
	return &minterFixture{fixture: f, minter: m, transferrer: tr}
}

// completeAction records and fully verifies an action so it is mintable.
func (f *minterFixture) completeAction(t *testing.T, id string) {
	t.Helper()
	f.registerVerifier(t, "v1")
	f.record(t, id, []string{"v1"}, ledger.QuorumPolicy{Kind: ledger.PolicyAllOf})
	if _, err := f.engine.Verify(id, "v1", f.sign(t, "v1", id)); err != nil {
		t.Fatalf("complete action %s: %v", id, err)
	}
}

func TestMint(t *testing.T) {
	f := newMinterFixture(t)
	f.completeAction(t, "A1")

	ach, err := f.minter.Mint(ledger.MintInput{
		ActionID:       "A1",
		OwnerID:        "user1",
		ContributorIDs: []string{"alice", "bob", "carol"},
		MetadataURI:    "ipfs://meta",
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if ach.ActionID != "A1" || ach.OwnerID != "user1" {
		t.Errorf("achievement %+v", ach)
	}

	sum := 0
	for _, c := range ach.Contributors {
		sum += c.ShareBps
	}
	if sum != ledger.TotalShareBps {
		t.Errorf("shares sum to %d, want %d", sum, ledger.TotalShareBps)
	}

	// Action now points back at the achievement
	action, err := f.engine.Get("A1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if action.AchievementID != ach.ID {
		t.Errorf("action achievement_id = %q, want %q", action.AchievementID, ach.ID)
	}

	got, err := f.minter.GetAchievement(ach.ID)
	if err != nil {
		t.Fatalf("get achievement: %v", err)
	}
	if got.ID != ach.ID {
		t.Errorf("lookup returned %s, want %s", got.ID, ach.ID)
	}
}

func TestMint_Weighted(t *testing.T) {
	f := newMinterFixture(t)
	f.completeAction(t, "A1")

	ach, err := f.minter.Mint(ledger.MintInput{
		ActionID:       "A1",
		OwnerID:        "user1",
		ContributorIDs: []string{"alice", "bob"},
		Weights:        []int64{3, 1},
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if ach.Contributors[0].ShareBps != 7500 || ach.Contributors[1].ShareBps != 2500 {
		t.Errorf("weighted shares = %+v, want 7500/2500", ach.Contributors)
	}
}

func TestMint_Errors(t *testing.T) {
	f := newMinterFixture(t)
	f.registerVerifier(t, "v1")
	f.record(t, "pending", []string{"v1"}, ledger.QuorumPolicy{Kind: ledger.PolicyAllOf})

	t.Run("not completed", func(t *testing.T) {
		_, err := f.minter.Mint(ledger.MintInput{
			ActionID:       "pending",
			OwnerID:        "user1",
			ContributorIDs: []string{"alice"},
		})
		if !errors.Is(err, ledger.ErrActionNotCompleted) {
			t.Errorf("got %v, want ErrActionNotCompleted", err)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		_, err := f.minter.Mint(ledger.MintInput{
			ActionID:       "nope",
			OwnerID:        "user1",
			ContributorIDs: []string{"alice"},
		})
		if !errors.Is(err, ledger.ErrUnknownAction) {
			t.Errorf("got %v, want ErrUnknownAction", err)
		}
	})

	t.Run("empty contributors", func(t *testing.T) {
		_, err := f.minter.Mint(ledger.MintInput{ActionID: "pending", OwnerID: "user1"})
		if !errors.Is(err, ledger.ErrEmptyContributorSet) {
			t.Errorf("got %v, want ErrEmptyContributorSet", err)
		}
	})
}

func TestMint_ExactlyOnce(t *testing.T) {
	f := newMinterFixture(t)
	f.completeAction(t, "A1")

	in := ledger.MintInput{
		ActionID:       "A1",
		OwnerID:        "user1",
		ContributorIDs: []string{"alice"},
	}
	if _, err := f.minter.Mint(in); err != nil {
		t.Fatalf("first mint: %v", err)
	}
	if _, err := f.minter.Mint(in); !errors.Is(err, ledger.ErrAlreadyMinted) {
		t.Errorf("second mint: got %v, want ErrAlreadyMinted", err)
	}
}

func TestMint_ConcurrentExactlyOnce(t *testing.T) {
	f := newMinterFixture(t)
	f.completeAction(t, "A1")

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.minter.Mint(ledger.MintInput{
				ActionID:       "A1",
				OwnerID:        "user1",
				ContributorIDs: []string{"alice", "bob"},
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ledger.ErrAlreadyMinted):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("%d mints succeeded, want exactly 1", wins)
	}
}

func TestPayRoyalties(t *testing.T) {
	f := newMinterFixture(t)
	f.completeAction(t, "A1")

	ach, err := f.minter.Mint(ledger.MintInput{
		ActionID:       "A1",
		OwnerID:        "user1",
		ContributorIDs: []string{"alice", "bob"},
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	result, err := f.minter.PayRoyalties(ach.ID)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if len(result.Paid) != 2 || len(result.Skipped) != 0 || len(result.Failed) != 0 {
		t.Fatalf("result = paid %d skipped %d failed %d", len(result.Paid), len(result.Skipped), len(result.Failed))
	}
	for _, r := range result.Paid {
		if r.AmountBps != 5000 {
			t.Errorf("receipt %s amount %d, want 5000", r.ContributorID, r.AmountBps)
		}
	}

	// Replay: everyone already has a receipt, nobody is paid again
	again, err := f.minter.PayRoyalties(ach.ID)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(again.Paid) != 0 || len(again.Skipped) != 2 {
		t.Errorf("replay = paid %d skipped %d", len(again.Paid), len(again.Skipped))
	}
	if n := f.transferrer.callCount("alice"); n != 1 {
		t.Errorf("alice transferred %d times, want 1", n)
	}
}

func TestPayRoyalties_PartialFailureThenRetry(t *testing.T) {
	f := newMinterFixture(t, "bob")
	f.completeAction(t, "A1")

	ach, err := f.minter.Mint(ledger.MintInput{
		ActionID:       "A1",
		OwnerID:        "user1",
		ContributorIDs: []string{"alice", "bob", "carol"},
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// First run: bob's transfer fails, alice and carol still get paid
	result, err := f.minter.PayRoyalties(ach.ID)
	if err == nil {
		t.Fatal("expected error for partial failure")
	}
	if len(result.Paid) != 2 {
		t.Errorf("paid %d, want 2", len(result.Paid))
	}
	if _, ok := result.Failed["bob"]; !ok {
		t.Errorf("failed = %v, want bob", result.Failed)
	}

	// Retry: only bob is paid, the others are skipped
	retry, err := f.minter.PayRoyalties(ach.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(retry.Paid) != 1 || retry.Paid[0].ContributorID != "bob" {
		t.Errorf("retry paid %+v, want just bob", retry.Paid)
	}
	if len(retry.Skipped) != 2 {
		t.Errorf("retry skipped %d, want 2", len(retry.Skipped))
	}
	if n := f.transferrer.callCount("alice"); n != 1 {
		t.Errorf("alice transferred %d times, want 1", n)
	}
	if n := f.transferrer.callCount("bob"); n != 2 {
		t.Errorf("bob transferred %d times, want 2", n)
	}
}

func TestPayRoyalties_UnknownAchievement(t *testing.T) {
	f := newMinterFixture(t)
	if _, err := f.minter.PayRoyalties("nope"); !errors.Is(err, ledger.ErrUnknownAchievement) {
		t.Errorf("got %v, want ErrUnknownAchievement", err)
	}
}

func TestMint_PublishesEvent(t *testing.T) {
	f := newMinterFixture(t)
	f.completeAction(t, "A1")

	sub := f.bus.Subscribe(ledger.EventAchievementMinted)
	defer sub.Unsubscribe()

	ach, err := f.minter.Mint(ledger.MintInput{
		ActionID:       "A1",
		OwnerID:        "user1",
		ContributorIDs: []string{"alice"},
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	select {
	case evt := <-sub.C:
		if evt.Key != "A1" {
			t.Errorf("event key = %s, want A1", evt.Key)
		}
		if got, ok := evt.Data.(*ledger.Achievement); !ok || got.ID != ach.ID {
			t.Errorf("event data = %+v", evt.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no achievement.minted event")
	}
}
