package state

import (
	"errors"
	"strings"
	"time"
)

// Common errors.
var (
	ErrNotFound         = errors.New("key not found")
	ErrClosed           = errors.New("store closed")
	ErrAlreadyExists    = errors.New("key already exists")
	ErrRevisionMismatch = errors.New("revision mismatch")
	ErrInvalidKey       = errors.New("invalid key")
	ErrInvalidTTL       = errors.New("invalid TTL")
)

// Entry represents a key-value entry with metadata.
type Entry struct {
	// Key is the entry key.
	Key string

	// Value is the entry value.
	Value []byte

	// Revision is a monotonic version number, incremented on every write
	// to the key. Conditional writes compare against it.
	Revision uint64

	// Created is when the key was first created.
	Created time.Time

	// Modified is when the key was last modified.
	Modified time.Time
}

// StateStore provides shared key-value storage with conditional writes.
//
// The conditional primitives (Create, Update, DeleteRevision) are the
// building blocks for lease-based mutual exclusion across processes: a
// Create that fails with ErrAlreadyExists means another holder got there
// first, and an Update or DeleteRevision that fails with
// ErrRevisionMismatch means the entry changed under the caller.
type StateStore interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key does not exist.
	Get(key string) ([]byte, error)

	// GetEntry retrieves the full entry including its revision.
	// Returns ErrNotFound if the key does not exist.
	GetEntry(key string) (*Entry, error)

	// Put stores a value with an optional TTL, unconditionally.
	// If ttl is 0, the key never expires.
	Put(key string, value []byte, ttl time.Duration) error

	// Create stores a value only if the key does not already exist
	// (or its previous entry has expired).
	// Returns ErrAlreadyExists if a live entry is present.
	Create(key string, value []byte, ttl time.Duration) error

	// Update stores a value only if the key's current revision matches.
	// Returns ErrRevisionMismatch if the entry changed, ErrNotFound if
	// the key does not exist.
	Update(key string, value []byte, revision uint64, ttl time.Duration) error

	// Delete removes a key.
	// Returns nil if the key does not exist.
	Delete(key string) error

	// DeleteRevision removes a key only if its current revision matches.
	// Returns ErrRevisionMismatch if the entry changed.
	DeleteRevision(key string, revision uint64) error

	// Keys returns all keys matching a pattern.
	// Pattern supports a * wildcard at the end (e.g., "tasks.*").
	Keys(pattern string) ([]string, error)

	// Close shuts down the store and releases resources.
	Close() error
}

// ValidateKey checks if a key is valid.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if strings.Contains(key, " ") {
		return ErrInvalidKey
	}
	if strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") {
		return ErrInvalidKey
	}
	if len(key) > 1024 {
		return ErrInvalidKey
	}
	return nil
}

// ValidateTTL checks if a TTL is valid.
func ValidateTTL(ttl time.Duration) error {
	if ttl < 0 {
		return ErrInvalidTTL
	}
	return nil
}

// MatchPattern checks if a key matches a pattern.
// Supports * wildcard at the end (e.g., "tasks.*" matches "tasks.foo").
func MatchPattern(pattern, key string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(key, prefix)
	}
	return pattern == key
}
