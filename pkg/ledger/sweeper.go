package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/attestly/ledger/pkg/util"
)

// Sweeper periodically expires actions that have outlived the TTL without
// reaching quorum.
type Sweeper struct {
	engine   *Engine
	ttl      time.Duration
	interval time.Duration
	clock    util.Clock
	log      *zap.SugaredLogger
}

func NewSweeper(engine *Engine, ttl, interval time.Duration, clock util.Clock, log *zap.SugaredLogger) *Sweeper {
	if clock == nil {
		clock = util.RealClock{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Sweeper{engine: engine, ttl: ttl, interval: interval, clock: clock, log: log}
}

// Run blocks until ctx is cancelled, sweeping every interval. A TTL of zero
// disables sweeping entirely.
func (s *Sweeper) Run(ctx context.Context) {
	if s.ttl <= 0 || s.interval <= 0 {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.interval):
			expired, err := s.engine.ExpireStale(s.ttl)
			if err != nil {
				s.log.Warnw("sweep_failed", "err", err)
				continue
			}
			if len(expired) > 0 {
				s.log.Infow("sweep_expired_actions", "count", len(expired), "ids", expired)
			}
		}
	}
}
