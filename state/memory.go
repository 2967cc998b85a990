package state

import (
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore implements StateStore using in-memory storage.
// Useful for testing and single-process scenarios.
type MemoryStore struct {
	mu       sync.Mutex
	data     map[string]*entry
	revision uint64
	closed   atomic.Bool

	// For TTL cleanup
	cleanupTicker *time.Ticker
	done          chan struct{}
}

type entry struct {
	value    []byte
	revision uint64
	created  time.Time
	modified time.Time
	expires  time.Time // Zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// NewMemoryStore creates a new in-memory state store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		data:          make(map[string]*entry),
		cleanupTicker: time.NewTicker(time.Second),
		done:          make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// cleanupLoop removes expired entries periodically.
func (s *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanupExpired()
		case <-s.done:
			return
		}
	}
}

// cleanupExpired removes entries that have expired.
func (s *MemoryStore) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.data {
		if e.expired(now) {
			delete(s.data, key)
		}
	}
}

// Get retrieves a value by key.
func (s *MemoryStore) Get(key string) ([]byte, error) {
	e, err := s.GetEntry(key)
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

// GetEntry retrieves the full entry.
func (s *MemoryStore) GetEntry(key string) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok || e.expired(time.Now()) {
		return nil, ErrNotFound
	}

	// Return a copy to prevent mutation
	val := make([]byte, len(e.value))
	copy(val, e.value)

	return &Entry{
		Key:      key,
		Value:    val,
		Revision: e.revision,
		Created:  e.created,
		Modified: e.modified,
	}, nil
}

// Put stores a value with optional TTL, unconditionally.
func (s *MemoryStore) Put(key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ValidateTTL(ttl); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.write(key, value, ttl)
	return nil
}

// Create stores a value only if no live entry exists for the key.
func (s *MemoryStore) Create(key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ValidateTTL(ttl); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.data[key]; ok && !e.expired(time.Now()) {
		return ErrAlreadyExists
	}

	s.write(key, value, ttl)
	return nil
}

// Update stores a value only if the current revision matches.
func (s *MemoryStore) Update(key string, value []byte, revision uint64, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ValidateTTL(ttl); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return ErrNotFound
	}
	if e.revision != revision {
		return ErrRevisionMismatch
	}

	s.write(key, value, ttl)
	return nil
}

// write stores the value. Caller must hold the mutex.
func (s *MemoryStore) write(key string, value []byte, ttl time.Duration) {
	now := time.Now()
	s.revision++

	val := make([]byte, len(value))
	copy(val, value)

	var expires time.Time
	if ttl > 0 {
		expires = now.Add(ttl)
	}

	created := now
	if existing, ok := s.data[key]; ok && !existing.expired(now) {
		created = existing.created
	}

	s.data[key] = &entry{
		value:    val,
		revision: s.revision,
		created:  created,
		modified: now,
		expires:  expires,
	}
}

// Delete removes a key.
func (s *MemoryStore) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// DeleteRevision removes a key only if its revision matches.
func (s *MemoryStore) DeleteRevision(key string, revision uint64) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if e.revision != revision {
		return ErrRevisionMismatch
	}

	delete(s.data, key)
	return nil
}

// Keys returns all keys matching a pattern.
func (s *MemoryStore) Keys(pattern string) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var keys []string
	for key, e := range s.data {
		if e.expired(now) {
			continue
		}
		if MatchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Close shuts down the store.
func (s *MemoryStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)
	s.cleanupTicker.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil

	return nil
}
