// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// DefaultSweepInterval is how often idle conversations are looked for.
const DefaultSweepInterval = 15 * time.Minute

// IdleCompleter completes conversations that have not been updated since before.
type IdleCompleter interface {
	CompleteIdle(ctx context.Context, before time.Time) (int, error)
}

// Scheduler closes abandoned practice sessions in the background.
type Scheduler struct {
	scheduler   *gocron.Scheduler
	completer   IdleCompleter
	idleTimeout time.Duration
	interval    time.Duration
	now         func() time.Time
}

// New creates a scheduler; nothing runs until Start.
func New(completer IdleCompleter, idleTimeout, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Scheduler{
		scheduler:   gocron.NewScheduler(time.UTC),
		completer:   completer,
		idleTimeout: idleTimeout,
		interval:    interval,
		now:         time.Now,
	}
}

// Start schedules the idle sweep and returns immediately.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	log.Printf("[Scheduler] Idle sweep every %s (timeout %s)", s.interval, s.idleTimeout)
	return nil
}

// Stop terminates all scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Sweep completes every conversation idle for longer than the timeout.
func (s *Scheduler) Sweep(ctx context.Context) int {
	cutoff := s.now().UTC().Add(-s.idleTimeout)
	n, err := s.completer.CompleteIdle(ctx, cutoff)
	if err != nil {
		log.Printf("[Scheduler] Idle sweep failed after %d conversations: %v", n, err)
		return n
	}
	if n > 0 {
		log.Printf("[Scheduler] Completed %d idle conversations", n)
	}
	return n
}
