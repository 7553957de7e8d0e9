package watchdog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// TickFunc is the work run on every scheduler tick. A non-nil error stops
// the scheduler and is delivered on Err.
type TickFunc func(ctx context.Context) error

// SchedulerConfig holds configuration for a Scheduler.
type SchedulerConfig struct {
	// Interval is the fixed time between ticks. Required.
	Interval time.Duration

	// State counts dropped ticks for the status API. Optional.
	State *State

	// Logger reports dropped ticks and tick failures. Optional.
	Logger Logger
}

// Scheduler fires a TickFunc on a fixed cadence.
//
// The first tick fires one interval after Start. A tick that arrives while
// the previous one is still running is dropped, never queued. Ticks run
// with a context detached from Start's cancellation, so stopping the
// scheduler lets an in-flight tick finish.
//
// Thread Safety:
//   - Start is called once; Stop, Release and Err may be called from any
//     goroutine, any number of times, except from inside a tick.
type Scheduler struct {
	interval time.Duration
	state    *State
	logger   Logger

	running *semaphore.Weighted
	dropped atomic.Int64

	started  atomic.Bool
	done     chan struct{}
	haltOnce sync.Once
	wg       sync.WaitGroup
	errCh    chan error
}

// NewScheduler creates a stopped scheduler.
//
// Returns:
//   - *Scheduler: Ready to Start
//   - error: ErrInvalidInterval if cfg.Interval is not positive
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		return nil, ErrInvalidInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Scheduler{
		interval: cfg.Interval,
		state:    cfg.State,
		logger:   logger,
		running:  semaphore.NewWeighted(1),
		done:     make(chan struct{}),
		errCh:    make(chan error, 1),
	}, nil
}

// Start begins firing tick every interval until Stop is called, ctx is
// cancelled, or tick returns an error.
//
// Parameters:
//   - ctx: Stops future ticks when cancelled; values are passed to ticks
//   - tick: Work to run on every tick
func (s *Scheduler) Start(ctx context.Context, tick TickFunc) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	s.wg.Add(1)
	go s.loop(ctx, tick)

	s.logger.Info("scheduler started", "interval", s.interval.String())
	return nil
}

// Err delivers the first error returned by a tick. The scheduler stops
// firing once an error has been delivered.
func (s *Scheduler) Err() <-chan error {
	return s.errCh
}

// Dropped returns how many ticks were skipped because a cycle was running.
func (s *Scheduler) Dropped() int64 {
	return s.dropped.Load()
}

// Stop prevents further ticks and waits for an in-flight tick to finish.
// No tick starts after Stop returns.
func (s *Scheduler) Stop() {
	s.halt()
	s.wg.Wait()
}

// Release implements shutdown.Releaser. It behaves like Stop but gives up
// waiting for an in-flight tick when ctx expires.
func (s *Scheduler) Release(ctx context.Context) error {
	s.halt()

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) halt() {
	s.haltOnce.Do(func() {
		close(s.done)
	})
}

func (s *Scheduler) loop(ctx context.Context, tick TickFunc) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	tickCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.fire(tickCtx, tick)
		}
	}
}

// fire runs tick in its own goroutine unless one is already running.
func (s *Scheduler) fire(ctx context.Context, tick TickFunc) {
	select {
	case <-s.done:
		return
	default:
	}

	if !s.running.TryAcquire(1) {
		s.dropped.Add(1)
		if s.state != nil {
			s.state.recordDroppedTick()
		}
		s.logger.Warn("previous check cycle still running, tick dropped",
			"dropped_total", s.dropped.Load())
		return
	}

	// A failing tick halts before it releases the semaphore.
	select {
	case <-s.done:
		s.running.Release(1)
		return
	default:
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Release(1)

		if err := tick(ctx); err != nil {
			s.logger.Error("tick failed, scheduler stopping", "error", err)
			s.halt()
			select {
			case s.errCh <- err:
			default:
			}
		}
	}()
}
