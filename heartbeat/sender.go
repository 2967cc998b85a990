package heartbeat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/taskwire/bus"
)

// SenderConfig configures a heartbeat sender.
type SenderConfig struct {
	// Bus is the message bus for publishing heartbeats.
	Bus bus.MessageBus

	// WorkerID is the unique identifier for this worker.
	WorkerID string

	// Interval between heartbeats.
	// Default: 5 seconds
	Interval time.Duration
}

// Validate checks the configuration.
func (c *SenderConfig) Validate() error {
	if c.Bus == nil {
		return ErrInvalidConfig
	}
	if c.WorkerID == "" {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultSenderConfig returns configuration with sensible defaults.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		Interval: 5 * time.Second,
	}
}

// Sender publishes periodic heartbeats for one worker.
type Sender struct {
	bus      bus.MessageBus
	workerID string
	interval time.Duration

	mu      sync.RWMutex
	status  string
	handled int

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSender creates a heartbeat sender.
func NewSender(cfg SenderConfig) (*Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSenderConfig().Interval
	}

	return &Sender{
		bus:      cfg.Bus,
		workerID: cfg.WorkerID,
		interval: interval,
		status:   StatusIdle,
	}, nil
}

// Start begins sending heartbeats at the configured interval.
// Returns ErrAlreadyStarted if already running.
func (s *Sender) Start(ctx context.Context) error {
	if s.running.Swap(true) {
		return ErrAlreadyStarted
	}

	if ctx == nil {
		ctx = context.Background()
	}

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.run(ctx)
	return nil
}

func (s *Sender) run(ctx context.Context) {
	defer close(s.doneCh)

	// First heartbeat goes out immediately so monitors see the worker
	// before a full interval elapses.
	s.send()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.running.Store(false)
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.send()
		}
	}
}

func (s *Sender) send() error {
	s.mu.RLock()
	hb := &Heartbeat{
		WorkerID:     s.workerID,
		Timestamp:    time.Now().UTC(),
		Status:       s.status,
		TasksHandled: s.handled,
	}
	s.mu.RUnlock()

	data, err := hb.Marshal()
	if err != nil {
		return err
	}
	return s.bus.Publish(hb.Subject(), data)
}

// SetStatus updates the status included in heartbeats.
func (s *Sender) SetStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// TaskHandled increments the terminal-task counter.
func (s *Sender) TaskHandled() {
	s.mu.Lock()
	s.handled++
	s.mu.Unlock()
}

// WorkerID returns the sender's worker ID.
func (s *Sender) WorkerID() string {
	return s.workerID
}

// Stop stops sending heartbeats.
// Returns ErrNotStarted if not running.
func (s *Sender) Stop() error {
	if !s.running.Swap(false) {
		return ErrNotStarted
	}
	close(s.stopCh)
	<-s.doneCh
	return nil
}
