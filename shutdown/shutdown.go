// Package shutdown coordinates ordered teardown of worker resources.
//
// A worker holds resources with teardown ordering constraints: the
// receive loop must drain before the heartbeat stops announcing the
// worker, and both must finish before the bus and store connections
// close. The Coordinator runs registered handlers phase by phase,
// lowest phase first, with handlers in the same phase running
// concurrently.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Common errors.
var (
	// ErrAlreadyShutdown indicates Shutdown was called more than once.
	ErrAlreadyShutdown = errors.New("shutdown already initiated")

	// ErrTimeout indicates teardown did not finish within the deadline.
	ErrTimeout = errors.New("shutdown timeout exceeded")
)

// Conventional phases. Handlers in lower phases run first.
const (
	// PhaseDrain stops intake: receive loops and subscriptions.
	PhaseDrain = 10

	// PhaseAnnounce stops liveness reporting once no work remains.
	PhaseAnnounce = 20

	// PhaseClose releases connections and files.
	PhaseClose = 30
)

// Handler is implemented by components that need graceful teardown.
type Handler interface {
	OnShutdown(ctx context.Context) error
}

// Func adapts a plain function to the Handler interface.
type Func func(ctx context.Context) error

// OnShutdown implements Handler.
func (f Func) OnShutdown(ctx context.Context) error {
	return f(ctx)
}

type registration struct {
	name    string
	phase   int
	handler Handler
}

// Coordinator runs registered teardown handlers in phase order. A
// handler failure is collected, not fatal; later phases still run so a
// stuck subscription cannot keep a database open.
type Coordinator struct {
	mu       sync.Mutex
	handlers []registration
	started  bool
	done     chan struct{}
	err      error
}

// NewCoordinator returns an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		done: make(chan struct{}),
	}
}

// Register adds a named handler to a phase. Registration after
// Shutdown has started is ignored.
func (c *Coordinator) Register(name string, phase int, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.handlers = append(c.handlers, registration{name: name, phase: phase, handler: h})
}

// RegisterFunc is Register for plain functions.
func (c *Coordinator) RegisterFunc(name string, phase int, f func(ctx context.Context) error) {
	c.Register(name, phase, Func(f))
}

// Shutdown runs all handlers, lowest phase first, handlers within a
// phase concurrently. It returns the joined errors of all failed
// handlers, ErrTimeout if ctx expired before teardown finished, or
// ErrAlreadyShutdown on a second call.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyShutdown
	}
	c.started = true
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	defer close(c.done)

	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})

	var errs []error
	for start := 0; start < len(handlers); {
		end := start
		for end < len(handlers) && handlers[end].phase == handlers[start].phase {
			end++
		}

		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %d handlers skipped", ErrTimeout, len(handlers)-start))
			break
		}
		errs = append(errs, runPhase(ctx, handlers[start:end])...)
		start = end
	}

	joined := errors.Join(errs...)
	c.mu.Lock()
	c.err = joined
	c.mu.Unlock()
	return joined
}

// ShutdownWithTimeout is Shutdown bounded by a fresh deadline.
func (c *Coordinator) ShutdownWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// Done is closed once Shutdown has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the Shutdown result. Valid after Done is closed.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// runPhase executes one phase's handlers concurrently and waits for
// all of them, even past ctx expiry, so results are never lost.
func runPhase(ctx context.Context, regs []registration) []error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, reg := range regs {
		wg.Add(1)
		go func(reg registration) {
			defer wg.Done()
			if err := reg.handler.OnShutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", reg.name, err))
				mu.Unlock()
			}
		}(reg)
	}
	wg.Wait()
	return errs
}
