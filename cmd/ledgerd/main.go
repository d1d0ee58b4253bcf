package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/attestly/ledger/params"
	"github.com/attestly/ledger/pkg/api"
	"github.com/attestly/ledger/pkg/events"
	"github.com/attestly/ledger/pkg/ledger"
	"github.com/attestly/ledger/pkg/mirror"
	"github.com/attestly/ledger/pkg/storage"
	"github.com/attestly/ledger/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/ledgerd.log"
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Storage ----
	var (
		actions      ledger.ActionStore
		achievements ledger.AchievementStore
		payouts      ledger.PayoutStore
	)
	if cfg.Node.InMemory {
		mem := storage.NewMemStore()
		actions, achievements, payouts = mem, mem, mem
		sugar.Warn("running with in-memory storage; nothing survives restart")
	} else {
		store, err := storage.NewPebbleStore(cfg.Node.DBPath)
		if err != nil {
			sugar.Fatalw("storage_init_failed", "path", cfg.Node.DBPath, "err", err)
		}
		defer store.Close()
		actions, achievements, payouts = store, store, store
		sugar.Infow("storage_ready", "path", cfg.Node.DBPath)
	}

	// ---- Identity / crypto ----
	// The static provider is the dev-mode identity source. A production
	// deployment swaps in a client for the real identity provider here.
	provider := ledger.NewStaticProvider()
	registry := ledger.NewRegistry(provider)

	checker, err := ledger.NewChecker(cfg.Ledger.SignatureMode, sugar)
	if err != nil {
		sugar.Fatalw("checker_init_failed", "mode", cfg.Ledger.SignatureMode, "err", err)
	}

	// ---- Core services ----
	bus := events.NewBus()

	engine := ledger.NewEngine(ledger.EngineConfig{
		Store:    actions,
		Resolver: registry,
		Checker:  checker,
		Bus:      bus,
		LockWait: cfg.Ledger.LockWait,
		Logger:   sugar,
	})

	minter := ledger.NewMinter(ledger.MinterConfig{
		Actions:      actions,
		Achievements: achievements,
		Payouts:      payouts,
		Transferrer:  ledger.DevTransferrer{},
		Bus:          bus,
		Locks:        engine.Locks(),
		LockWait:     cfg.Ledger.LockWait,
		Logger:       sugar,
	})

	// ---- Expiry sweeper ----
	sweeper := ledger.NewSweeper(engine, cfg.Ledger.ActionTTL, cfg.Ledger.SweepInterval, util.RealClock{}, sugar)
	go sweeper.Run(ctx)
	sugar.Infow("sweeper_config", "ttl", cfg.Ledger.ActionTTL, "interval", cfg.Ledger.SweepInterval)

	// ---- Gossip mirror (optional) ----
	if cfg.Mirror.Enabled {
		m, err := mirror.New(ctx, mirror.Config{
			ListenAddr: cfg.Mirror.ListenAddr,
			Bootstrap:  cfg.Mirror.Bootstrap,
			Topic:      cfg.Mirror.Topic,
			Logger:     sugar,
		})
		if err != nil {
			sugar.Fatalw("mirror_init_failed", "err", err)
		}
		defer m.Close()
		go m.Run(ctx, bus)
	}

	// ---- API ----
	server := api.NewServer(engine, minter, bus, sugar)
	go func() {
		if err := server.Start(ctx, cfg.Node.APIAddr); err != nil {
			sugar.Errorw("api_server_stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")
}
