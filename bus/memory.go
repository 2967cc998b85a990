package bus

import (
	"sync"
	"sync/atomic"
)

// MemoryBus implements MessageBus using in-memory channels.
// Useful for testing and single-process scenarios.
type MemoryBus struct {
	config Config

	mu     sync.RWMutex
	subs   []*memorySub
	closed atomic.Bool
}

type memorySub struct {
	subject string
	queue   string
	ch      chan *Message
	closed  atomic.Bool
	bus     *MemoryBus
}

// NewMemoryBus creates a new in-memory message bus.
func NewMemoryBus(cfg Config) *MemoryBus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}

	return &MemoryBus{
		config: cfg,
	}
}

// Publish sends a message to all subscribers whose subscription subject
// matches, honoring wildcard subscriptions.
func (b *MemoryBus) Publish(subject string, data []byte) error {
	if err := ValidateSubject(subject); err != nil {
		return err
	}
	if b.closed.Load() {
		return ErrClosed
	}

	msg := &Message{
		Subject: subject,
		Data:    data,
	}

	b.mu.RLock()
	subs := make([]*memorySub, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	// Queue groups get the message once per (subject, queue) pair.
	delivered := make(map[string]bool)

	for _, sub := range subs {
		if sub.closed.Load() || !SubjectMatches(sub.subject, subject) {
			continue
		}
		if sub.queue != "" {
			key := sub.subject + "|" + sub.queue
			if delivered[key] {
				continue
			}
			if sub.deliver(msg) {
				delivered[key] = true
			}
			continue
		}
		sub.deliver(msg)
	}

	return nil
}

// deliver attempts a non-blocking send. Returns false if the buffer is full.
func (s *memorySub) deliver(msg *Message) bool {
	select {
	case s.ch <- msg:
		return true
	default:
		// Buffer full, drop message
		return false
	}
}

// Subscribe creates a subscription to a subject.
func (b *MemoryBus) Subscribe(subject string) (Subscription, error) {
	return b.subscribe(subject, "")
}

// QueueSubscribe creates a queue subscription.
func (b *MemoryBus) QueueSubscribe(subject, queue string) (Subscription, error) {
	if queue == "" {
		return nil, ErrInvalidSubject
	}
	return b.subscribe(subject, queue)
}

func (b *MemoryBus) subscribe(subject, queue string) (Subscription, error) {
	if err := ValidateSubject(subject); err != nil {
		return nil, err
	}
	if b.closed.Load() {
		return nil, ErrClosed
	}

	sub := &memorySub{
		subject: subject,
		queue:   queue,
		ch:      make(chan *Message, b.config.BufferSize),
		bus:     b,
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub, nil
}

// Close shuts down the bus.
func (b *MemoryBus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if !sub.closed.Swap(true) {
			close(sub.ch)
		}
	}
	b.subs = nil

	return nil
}

// Messages returns the message channel.
func (s *memorySub) Messages() <-chan *Message {
	return s.ch
}

// Unsubscribe cancels the subscription.
func (s *memorySub) Unsubscribe() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	for i, sub := range s.bus.subs {
		if sub == s {
			s.bus.subs = append(s.bus.subs[:i], s.bus.subs[i+1:]...)
			break
		}
	}

	close(s.ch)
	return nil
}
