package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/attestly/ledger/pkg/events"
	"github.com/attestly/ledger/pkg/ledger"
	"github.com/attestly/ledger/pkg/storage"
	"github.com/attestly/ledger/pkg/util"
)

func TestSweeper_ExpiresStaleActions(t *testing.T) {
	store := storage.NewMemStore()
	provider := ledger.NewStaticProvider()
	bus := events.NewBus()
	engine := ledger.NewEngine(ledger.EngineConfig{
		Store:    store,
		Resolver: ledger.NewRegistry(provider),
		Bus:      bus,
	})

	if _, err := engine.Record(ledger.RecordInput{
		ActionID:          "A1",
		ActionType:        "publish",
		Payload:           []byte(`{}`),
		InitiatorID:       "user1",
		RequiredVerifiers: []string{"v1"},
		Policy:            ledger.QuorumPolicy{Kind: ledger.PolicyAllOf},
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	sub := bus.Subscribe(ledger.EventActionExpired)
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := ledger.NewSweeper(engine, 10*time.Millisecond, 10*time.Millisecond, util.RealClock{}, nil)
	go sweeper.Run(ctx)

	select {
	case evt := <-sub.C:
		if evt.Key != "A1" {
			t.Errorf("expired key = %s, want A1", evt.Key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never expired the action")
	}

	action, err := engine.Get("A1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if action.State != ledger.StateExpired {
		t.Errorf("state = %s, want expired", action.State)
	}
}

func TestSweeper_DisabledWithoutTTL(t *testing.T) {
	engine := ledger.NewEngine(ledger.EngineConfig{
		Store:    storage.NewMemStore(),
		Resolver: ledger.NewRegistry(ledger.NewStaticProvider()),
	})

	// Zero TTL: Run returns immediately instead of looping
	done := make(chan struct{})
	go func() {
		ledger.NewSweeper(engine, 0, time.Millisecond, util.RealClock{}, nil).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper with zero TTL did not return")
	}
}
