package params

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Ledger.LockWait != 2*time.Second {
		t.Errorf("lock wait = %s", cfg.Ledger.LockWait)
	}
	if cfg.Ledger.SignatureMode != "strict" {
		t.Errorf("signature mode = %q, want strict", cfg.Ledger.SignatureMode)
	}
	if cfg.Node.APIAddr != ":8080" {
		t.Errorf("api addr = %q", cfg.Node.APIAddr)
	}
	if cfg.Mirror.Enabled {
		t.Error("mirror enabled by default")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("LEDGER_LOCK_WAIT_MS", "500")
	t.Setenv("LEDGER_ACTION_TTL_MS", "60000")
	t.Setenv("SIGNATURE_MODE", "insecure")
	t.Setenv("LEDGER_DB_PATH", "/tmp/test-ledger")
	t.Setenv("LEDGER_IN_MEMORY", "true")
	t.Setenv("MIRROR_ENABLE", "true")
	t.Setenv("MIRROR_BOOTSTRAP", "/ip4/10.0.0.5/tcp/4001,/ip4/10.0.0.6/tcp/4001")

	cfg := LoadFromEnv("")
	if cfg.Ledger.LockWait != 500*time.Millisecond {
		t.Errorf("lock wait = %s, want 500ms", cfg.Ledger.LockWait)
	}
	if cfg.Ledger.ActionTTL != time.Minute {
		t.Errorf("ttl = %s, want 1m", cfg.Ledger.ActionTTL)
	}
	if cfg.Ledger.SignatureMode != "insecure" {
		t.Errorf("signature mode = %q", cfg.Ledger.SignatureMode)
	}
	if cfg.Node.DBPath != "/tmp/test-ledger" {
		t.Errorf("db path = %q", cfg.Node.DBPath)
	}
	if !cfg.Node.InMemory {
		t.Error("in-memory not set")
	}
	if !cfg.Mirror.Enabled || len(cfg.Mirror.Bootstrap) != 2 {
		t.Errorf("mirror = %+v", cfg.Mirror)
	}
}

func TestLoadFromEnv_BadNumbersKeepDefaults(t *testing.T) {
	t.Setenv("LEDGER_LOCK_WAIT_MS", "not-a-number")
	cfg := LoadFromEnv("")
	if cfg.Ledger.LockWait != Default().Ledger.LockWait {
		t.Errorf("lock wait = %s, want default", cfg.Ledger.LockWait)
	}
}
