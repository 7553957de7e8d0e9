// Package shutdown releases the watchdog's resources in a fixed order and
// then terminates the process.
//
// Components that hold something worth releasing (the scheduler, mail and
// MQTT transports, the InfluxDB writer, log files) register with a single
// Coordinator created in main. Shutdown is one-way: once triggered, every
// registered component is released in registration order and the process
// exits with the requested code.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// defaultReleaseTimeout bounds each component's Release call.
const defaultReleaseTimeout = 30 * time.Second

// Releaser is implemented by components that must clean up before exit.
type Releaser interface {
	Release(ctx context.Context) error
}

// ReleaseFunc adapts a plain function to Releaser.
type ReleaseFunc func(ctx context.Context) error

// Release calls f(ctx).
func (f ReleaseFunc) Release(ctx context.Context) error {
	return f(ctx)
}

// Logger defines the logging interface for the coordinator.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type registration struct {
	name     string
	releaser Releaser
}

// Coordinator owns the ordered list of releasable components.
//
// Thread Safety:
//   - Register and Shutdown may be called from any goroutine.
//   - Concurrent Shutdown calls run the release sequence once; later callers
//     block until it has finished.
type Coordinator struct {
	mu         sync.Mutex
	components []registration
	started    bool

	once    sync.Once
	logger  Logger
	exit    func(code int)
	timeout time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithExit replaces os.Exit. Tests use this to observe the exit code.
func WithExit(exit func(code int)) Option {
	return func(c *Coordinator) {
		c.exit = exit
	}
}

// WithReleaseTimeout sets the per-component release deadline.
func WithReleaseTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithLogger sets the logger used to report release progress and failures.
func WithLogger(logger Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:  noopLogger{},
		exit:    os.Exit,
		timeout: defaultReleaseTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register appends a component to the release list.
// Components are released in the order they were registered.
//
// Returns:
//   - error: If shutdown has already begun
func (c *Coordinator) Register(name string, r Releaser) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return fmt.Errorf("registering %s: shutdown already in progress", name)
	}
	c.components = append(c.components, registration{name: name, releaser: r})
	return nil
}

// Shutdown releases every registered component and exits with code.
//
// Each Release is awaited before the next starts. A failing Release is
// logged and does not stop the sequence or change the exit code. With the
// default exit function Shutdown never returns.
func (c *Coordinator) Shutdown(code int) {
	c.once.Do(func() {
		c.mu.Lock()
		c.started = true
		components := append([]registration(nil), c.components...)
		c.mu.Unlock()

		c.logger.Info("shutting down", "exit_code", code, "components", len(components))

		failed := 0
		for _, comp := range components {
			if err := c.release(comp); err != nil {
				failed++
				c.logger.Error("release failed", "component", comp.name, "error", err)
				continue
			}
			c.logger.Info("released", "component", comp.name)
		}

		c.logger.Info("shutdown complete", "exit_code", code, "failed_releases", failed)
		c.exit(code)
	})
}

// release runs one Release under the per-component timeout and converts a
// panic into an error so the remaining components still run.
func (c *Coordinator) release(comp registration) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during release: %v", r)
		}
	}()

	return comp.releaser.Release(ctx)
}
