package poller

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler drives periodic status refreshes while a session is connected.
// At most one ticker loop is active at a time: Start stops any previous run
// before launching a new one.
type Scheduler struct {
	interval time.Duration
	logger   *logrus.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(interval time.Duration, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		logger:   logger,
	}
}

// Start begins firing tick on the fixed period. A failed tick is logged and
// the loop keeps running; only Stop halts it.
func (s *Scheduler) Start(tick func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	s.logger.Debugf("Starting poll scheduler with %s interval", s.interval)

	go func() {
		defer close(done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := tick(ctx); err != nil {
					s.logger.Warnf("Poll tick failed: %v", err)
				}
			}
		}
	}()
}

// Stop halts the ticker loop and waits for it to exit. Safe to call when
// the scheduler is idle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Running reports whether a ticker loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	s.logger.Debug("Poll scheduler stopped")
}
