package state

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSStore implements StateStore using NATS JetStream KV.
type NATSStore struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	kv     jetstream.KeyValue
	config NATSStoreConfig
	closed atomic.Bool
}

// NATSStoreConfig holds NATS KV store configuration.
type NATSStoreConfig struct {
	// Conn is the NATS connection to use.
	Conn *nats.Conn

	// Bucket is the KV bucket name.
	Bucket string

	// TTL is the bucket-level TTL for entries (0 = no expiry).
	// NATS KV has no per-key TTL; per-key expiry semantics (such as
	// lock leases) are encoded in the stored values by their owners.
	TTL time.Duration

	// MaxValueSize is the maximum value size in bytes.
	// Default: 1MB
	MaxValueSize int32

	// OpTimeout bounds individual KV operations.
	// Default: 5 seconds
	OpTimeout time.Duration
}

// DefaultNATSStoreConfig returns configuration with sensible defaults.
func DefaultNATSStoreConfig() NATSStoreConfig {
	return NATSStoreConfig{
		Bucket:       "taskwire-state",
		MaxValueSize: 1024 * 1024, // 1MB
		OpTimeout:    5 * time.Second,
	}
}

// NewNATSStore creates a new NATS JetStream KV store.
func NewNATSStore(cfg NATSStoreConfig) (*NATSStore, error) {
	if cfg.Conn == nil {
		return nil, fmt.Errorf("nats connection required")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultNATSStoreConfig().Bucket
	}
	if cfg.MaxValueSize <= 0 {
		cfg.MaxValueSize = DefaultNATSStoreConfig().MaxValueSize
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultNATSStoreConfig().OpTimeout
	}

	js, err := jetstream.New(cfg.Conn)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:       cfg.Bucket,
		TTL:          cfg.TTL,
		History:      1,
		MaxValueSize: cfg.MaxValueSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create kv bucket: %w", err)
	}

	return &NATSStore{
		conn:   cfg.Conn,
		js:     js,
		kv:     kv,
		config: cfg,
	}, nil
}

func (s *NATSStore) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.config.OpTimeout)
}

// Get retrieves a value by key.
func (s *NATSStore) Get(key string) ([]byte, error) {
	e, err := s.GetEntry(key)
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

// GetEntry retrieves the full entry.
func (s *NATSStore) GetEntry(key string) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kv get: %w", err)
	}

	return &Entry{
		Key:      entry.Key(),
		Value:    entry.Value(),
		Revision: entry.Revision(),
		Created:  entry.Created(),
		Modified: entry.Created(), // NATS KV records one timestamp per revision
	}, nil
}

// Put stores a value, unconditionally. The ttl argument is validated but
// expiry is governed by the bucket-level TTL.
func (s *NATSStore) Put(key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ValidateTTL(ttl); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	if _, err := s.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("kv put: %w", err)
	}
	return nil
}

// Create stores a value only if the key does not already exist.
func (s *NATSStore) Create(key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ValidateTTL(ttl); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	if _, err := s.kv.Create(ctx, key, value); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("kv create: %w", err)
	}
	return nil
}

// Update stores a value only if the current revision matches.
func (s *NATSStore) Update(key string, value []byte, revision uint64, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ValidateTTL(ttl); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	if _, err := s.kv.Update(ctx, key, value, revision); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return ErrNotFound
		}
		// JetStream reports a CAS failure as a wrong-last-sequence
		// API error; surface it uniformly.
		return ErrRevisionMismatch
	}
	return nil
}

// Delete removes a key.
func (s *NATSStore) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	if err := s.kv.Purge(ctx, key); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("kv purge: %w", err)
	}
	return nil
}

// DeleteRevision removes a key only if its revision matches.
func (s *NATSStore) DeleteRevision(key string, revision uint64) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	if err := s.kv.Delete(ctx, key, jetstream.LastRevision(revision)); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil
		}
		return ErrRevisionMismatch
	}
	return nil
}

// Keys returns all keys matching a pattern.
func (s *NATSStore) Keys(pattern string) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	all, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("kv keys: %w", err)
	}

	var keys []string
	for _, key := range all {
		if MatchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Close marks the store closed. The NATS connection is owned by the
// caller and is not closed here.
func (s *NATSStore) Close() error {
	s.closed.Store(true)
	return nil
}
