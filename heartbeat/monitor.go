package heartbeat

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/taskwire/bus"
)

// MonitorConfig configures a heartbeat monitor.
type MonitorConfig struct {
	// Bus is the message bus for subscribing to heartbeats.
	Bus bus.MessageBus

	// Timeout for considering a worker dead.
	// Should be 2-3x the expected heartbeat interval.
	// Default: 15 seconds
	Timeout time.Duration

	// CheckInterval for the dead worker checker.
	// Default: 1 second
	CheckInterval time.Duration
}

// Validate checks the configuration.
func (c *MonitorConfig) Validate() error {
	if c.Bus == nil {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultMonitorConfig returns configuration with sensible defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Timeout:       15 * time.Second,
		CheckInterval: time.Second,
	}
}

// Monitor tracks worker heartbeats and detects dead workers.
type Monitor struct {
	bus           bus.MessageBus
	timeout       time.Duration
	checkInterval time.Duration

	mu       sync.RWMutex
	lastSeen map[string]*Heartbeat
	deadCBs  []func(workerID string)
	reported map[string]bool

	running atomic.Bool
	sub     bus.Subscription
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMonitor creates a heartbeat monitor.
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultMonitorConfig().Timeout
	}
	checkInterval := cfg.CheckInterval
	if checkInterval <= 0 {
		checkInterval = DefaultMonitorConfig().CheckInterval
	}

	return &Monitor{
		bus:           cfg.Bus,
		timeout:       timeout,
		checkInterval: checkInterval,
		lastSeen:      make(map[string]*Heartbeat),
		reported:      make(map[string]bool),
	}, nil
}

// Start subscribes to all worker heartbeats and begins dead-worker
// detection. Returns ErrAlreadyStarted if already running.
func (m *Monitor) Start() error {
	if m.running.Swap(true) {
		return ErrAlreadyStarted
	}

	sub, err := m.bus.Subscribe(SubjectPrefix + "*")
	if err != nil {
		m.running.Store(false)
		return err
	}
	m.sub = sub

	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	go m.run()
	return nil
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	checkTicker := time.NewTicker(m.checkInterval)
	defer checkTicker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case msg, ok := <-m.sub.Messages():
			if !ok {
				return
			}
			m.process(msg)
		case <-checkTicker.C:
			m.checkDead()
		}
	}
}

func (m *Monitor) process(msg *bus.Message) {
	hb, err := Unmarshal(msg.Data)
	if err != nil {
		return
	}

	// The subject carries the worker ID even if the payload lost it.
	if hb.WorkerID == "" && strings.HasPrefix(msg.Subject, SubjectPrefix) {
		hb.WorkerID = strings.TrimPrefix(msg.Subject, SubjectPrefix)
	}

	m.mu.Lock()
	m.lastSeen[hb.WorkerID] = hb
	delete(m.reported, hb.WorkerID)
	m.mu.Unlock()
}

func (m *Monitor) checkDead() {
	now := time.Now()
	var dead []string

	m.mu.RLock()
	for workerID, hb := range m.lastSeen {
		if now.Sub(hb.Timestamp) > m.timeout && !m.reported[workerID] {
			dead = append(dead, workerID)
		}
	}
	callbacks := make([]func(string), len(m.deadCBs))
	copy(callbacks, m.deadCBs)
	m.mu.RUnlock()

	if len(dead) == 0 {
		return
	}

	m.mu.Lock()
	for _, id := range dead {
		m.reported[id] = true
	}
	m.mu.Unlock()

	for _, workerID := range dead {
		for _, cb := range callbacks {
			cb(workerID)
		}
	}
}

// IsAlive checks if a worker has sent a heartbeat within timeout.
func (m *Monitor) IsAlive(workerID string, timeout time.Duration) bool {
	m.mu.RLock()
	hb, ok := m.lastSeen[workerID]
	m.mu.RUnlock()

	if !ok {
		return false
	}
	return time.Since(hb.Timestamp) <= timeout
}

// LastHeartbeat returns the last heartbeat from a worker, if any.
func (m *Monitor) LastHeartbeat(workerID string) *Heartbeat {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSeen[workerID]
}

// Workers returns the IDs of all workers seen so far.
func (m *Monitor) Workers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.lastSeen))
	for id := range m.lastSeen {
		ids = append(ids, id)
	}
	return ids
}

// OnDead registers a callback invoked once when a worker is presumed
// dead. A worker that resumes heartbeating is eligible to be reported
// again.
func (m *Monitor) OnDead(callback func(workerID string)) {
	m.mu.Lock()
	m.deadCBs = append(m.deadCBs, callback)
	m.mu.Unlock()
}

// Stop stops monitoring.
// Returns ErrNotStarted if not running.
func (m *Monitor) Stop() error {
	if !m.running.Swap(false) {
		return ErrNotStarted
	}

	if m.sub != nil {
		m.sub.Unsubscribe()
	}

	close(m.stopCh)
	<-m.doneCh
	return nil
}
