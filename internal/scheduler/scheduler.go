// Package scheduler drives the collection pipeline on a fixed interval.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/setevik/sentinel/internal/agent"
)

// State is the scheduler lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Runner is the pipeline pass the scheduler drives each tick.
type Runner interface {
	RunOnce(ctx context.Context, trigger string) (agent.ScanResult, error)
}

// Scheduler invokes the runner once per interval, indefinitely, until its
// context is cancelled. Ticks are strictly serialized: a slow tick delays
// the next one rather than overlapping it, and cancellation takes effect
// at tick boundaries only, never mid-collection.
type Scheduler struct {
	runner   Runner
	interval time.Duration

	state atomic.Int32
	done  chan struct{}
}

// New creates a scheduler driving runner every interval.
func New(runner Runner, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Done is closed once the scheduler has fully stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Run blocks, ticking until ctx is cancelled. A tick's internal errors are
// logged and never terminate the loop; only cancellation does.
func (s *Scheduler) Run(ctx context.Context) {
	s.state.Store(int32(StateRunning))
	defer func() {
		s.state.Store(int32(StateIdle))
		close(s.done)
	}()

	slog.Info("scheduler started", "interval", s.interval)

	// First tick immediately; the ticker covers the rest.
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			s.state.Store(int32(StateStopping))
			slog.Info("scheduler stopping")
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	// The tick must run to completion even if cancellation arrives while
	// it is in flight; a half-written tick is worse than a slightly late
	// shutdown.
	if _, err := s.runner.RunOnce(context.WithoutCancel(ctx), "scheduled"); err != nil {
		slog.Error("tick failed, continuing", "error", err)
	}
}
