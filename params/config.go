package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Ledger struct {
	// LockWait bounds how long a mutating call waits for the per-action
	// lock before failing with ErrBusy.
	LockWait time.Duration
	// ActionTTL is the age past which unquorumed actions are expired by
	// the sweeper. Zero disables expiry.
	ActionTTL time.Duration
	// SweepInterval is how often the sweeper scans for stale actions.
	SweepInterval time.Duration
	// SignatureMode is "strict" (default) or "insecure". Insecure mode
	// accepts any signature and exists only for local development; it is
	// selected here explicitly, never by fallback.
	SignatureMode string
}

type Node struct {
	DBPath   string
	APIAddr  string
	InMemory bool // dev mode: no Pebble, everything in-process
}

type Mirror struct {
	Enabled    bool
	ListenAddr string
	Bootstrap  []string
	Topic      string
}

type Config struct {
	Ledger Ledger
	Node   Node
	Mirror Mirror
}

func Default() Config {
	return Config{
		Ledger: Ledger{
			LockWait:      2 * time.Second,
			ActionTTL:     24 * time.Hour,
			SweepInterval: time.Minute,
			SignatureMode: "strict",
		},
		Node: Node{
			DBPath:  "data/ledger",
			APIAddr: ":8080",
		},
		Mirror: Mirror{
			Topic: "attest-ledger-events",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if v := os.Getenv("LEDGER_LOCK_WAIT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Ledger.LockWait = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("LEDGER_ACTION_TTL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Ledger.ActionTTL = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("LEDGER_SWEEP_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Ledger.SweepInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("SIGNATURE_MODE"); v != "" {
		cfg.Ledger.SignatureMode = v
	}

	cfg.Node.DBPath = getEnv("LEDGER_DB_PATH", cfg.Node.DBPath)
	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	if v := os.Getenv("LEDGER_IN_MEMORY"); v != "" {
		cfg.Node.InMemory = v == "true"
	}

	if v := os.Getenv("MIRROR_ENABLE"); v != "" {
		cfg.Mirror.Enabled = v == "true"
	}
	cfg.Mirror.ListenAddr = getEnv("MIRROR_LISTEN", cfg.Mirror.ListenAddr)
	cfg.Mirror.Topic = getEnv("MIRROR_TOPIC", cfg.Mirror.Topic)
	if v := os.Getenv("MIRROR_BOOTSTRAP"); v != "" {
		// Example: "/ip4/10.0.0.5/tcp/4001/p2p/Qm...,/ip4/10.0.0.6/..."
		cfg.Mirror.Bootstrap = strings.Split(v, ",")
	}

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
