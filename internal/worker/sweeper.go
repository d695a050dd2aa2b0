package worker

import (
	"context"
	"time"

	"github.com/yangwenmai/readtrack/internal/logger"
)

// SessionSweeper closes sessions the client abandoned without closing.
type SessionSweeper interface {
	Sweep(maxIdle time.Duration) int
}

// Sweeper evicts sessions idle for longer than maxIdle.
type Sweeper struct {
	sessions SessionSweeper
	maxIdle  time.Duration
	interval time.Duration
	log      logger.Logger
}

// NewSweeper checks for idle sessions every maxIdle/4, at least once a second.
func NewSweeper(sessions SessionSweeper, maxIdle time.Duration, log logger.Logger) *Sweeper {
	return &Sweeper{
		sessions: sessions,
		maxIdle:  maxIdle,
		interval: max(maxIdle/4, time.Second),
		log:      log,
	}
}

// Start blocks until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	for {
		sleep(ctx, s.interval)
		if ctx.Err() != nil {
			return
		}
		if n := s.sessions.Sweep(s.maxIdle); n > 0 {
			s.log.Info("idle sessions closed", logger.Int("count", n))
		}
	}
}
