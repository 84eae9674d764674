package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically evicts idle sessions.
type Sweeper struct {
	cron     *cron.Cron
	sessions *SessionStore
	idle     time.Duration
	logger   *log.Logger
}

// NewSweeper schedule uses cron syntax, e.g. "@every 5m".
func NewSweeper(sessions *SessionStore, idle time.Duration, schedule string, logger *log.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = log.Default()
	}
	s := &Sweeper{
		cron:     cron.New(),
		sessions: sessions,
		idle:     idle,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("failed to schedule session sweep %q: %w", schedule, err)
	}
	return s, nil
}

// Sweep runs one eviction pass.
func (s *Sweeper) Sweep() {
	if n := s.sessions.EvictIdle(s.idle); n > 0 {
		s.logger.Printf("[bot] evicted %d idle sessions, %d remain", n, s.sessions.Len())
	}
}

func (s *Sweeper) Start() {
	s.logger.Printf("[bot] session sweeper started (idle timeout %s)", s.idle)
	s.cron.Start()
}

func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}
