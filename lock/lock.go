package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vinayprograms/taskwire/state"
)

// Common errors.
var (
	ErrNotHeld       = errors.New("lock not held")
	ErrNotHolder     = errors.New("lock held by different holder")
	ErrExpired       = errors.New("lease expired")
	ErrInvalidHolder = errors.New("invalid holder id")
	ErrInvalidTTL    = errors.New("invalid TTL")
)

// keyPrefix namespaces lock records in the shared store.
const keyPrefix = "locks."

// Lease is the stored lock record. At most one non-expired lease exists
// per key at any instant.
type Lease struct {
	HolderID string    `json:"holder_id"`
	Expiry   time.Time `json:"lease_expiry"`
}

// Expired reports whether the lease has lapsed at the given instant.
func (l Lease) Expired(now time.Time) bool {
	return now.After(l.Expiry)
}

// Manager grants short-lived exclusive leases keyed by task identifier.
//
// Leases are lease-based conditional writes against the shared store, not
// language-level mutexes: holders span separate processes. A lease that
// expires mid-processing allows a second worker to start concurrently;
// callers bound that window with idempotent step design. The TTL must exceed worst-case single-step processing time.
type Manager struct {
	store state.StateStore
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a lock manager over the given store.
func NewManager(store state.StateStore, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TryAcquire attempts to take the lock for key on behalf of holderID.
// Returns true on success and false, without blocking, if a different live
// holder exists. Callers must not assume acquisition eventually succeeds;
// they poll or abandon. Acquiring a lock already held by the same holder
// extends the lease.
func (m *Manager) TryAcquire(key, holderID string, ttl time.Duration) (bool, error) {
	if holderID == "" {
		return false, ErrInvalidHolder
	}
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}

	lockKey := keyPrefix + key
	lease, err := marshalLease(holderID, m.now().Add(ttl))
	if err != nil {
		return false, err
	}

	entry, err := m.store.GetEntry(lockKey)
	switch {
	case errors.Is(err, state.ErrNotFound):
		// No lock on record; race for the conditional create.
		err := m.store.Create(lockKey, lease, ttl)
		if errors.Is(err, state.ErrAlreadyExists) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("create lease: %w", err)
		}
		return true, nil

	case err != nil:
		return false, fmt.Errorf("read lease: %w", err)
	}

	var current Lease
	if err := json.Unmarshal(entry.Value, &current); err != nil {
		return false, fmt.Errorf("decode lease: %w", err)
	}

	if current.HolderID != holderID && !current.Expired(m.now()) {
		// Live lock held elsewhere. Expected contention, not an error.
		return false, nil
	}

	// Either our own lease (extend) or an expired one (reclaim). The CAS
	// loses if any other worker touched the record in between.
	err = m.store.Update(lockKey, lease, entry.Revision, ttl)
	if errors.Is(err, state.ErrRevisionMismatch) || errors.Is(err, state.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("replace lease: %w", err)
	}
	return true, nil
}

// Release removes the lock only if holderID still holds it. A slow holder
// whose lease expired and was reclaimed by someone else gets ErrNotHolder
// instead of silently deleting the new holder's lock.
func (m *Manager) Release(key, holderID string) error {
	if holderID == "" {
		return ErrInvalidHolder
	}

	lockKey := keyPrefix + key

	entry, err := m.store.GetEntry(lockKey)
	if errors.Is(err, state.ErrNotFound) {
		return ErrNotHeld
	}
	if err != nil {
		return fmt.Errorf("read lease: %w", err)
	}

	var current Lease
	if err := json.Unmarshal(entry.Value, &current); err != nil {
		return fmt.Errorf("decode lease: %w", err)
	}
	if current.HolderID != holderID {
		return ErrNotHolder
	}

	err = m.store.DeleteRevision(lockKey, entry.Revision)
	if errors.Is(err, state.ErrRevisionMismatch) {
		return ErrNotHolder
	}
	return err
}

// Renew extends the lease if holderID still holds a live lock. Used by
// long-running executors to avoid losing the lock mid-task.
func (m *Manager) Renew(key, holderID string, ttl time.Duration) error {
	if holderID == "" {
		return ErrInvalidHolder
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	lockKey := keyPrefix + key

	entry, err := m.store.GetEntry(lockKey)
	if errors.Is(err, state.ErrNotFound) {
		return ErrNotHeld
	}
	if err != nil {
		return fmt.Errorf("read lease: %w", err)
	}

	var current Lease
	if err := json.Unmarshal(entry.Value, &current); err != nil {
		return fmt.Errorf("decode lease: %w", err)
	}
	if current.HolderID != holderID {
		return ErrNotHolder
	}
	if current.Expired(m.now()) {
		return ErrExpired
	}

	lease, err := marshalLease(holderID, m.now().Add(ttl))
	if err != nil {
		return err
	}

	err = m.store.Update(lockKey, lease, entry.Revision, ttl)
	if errors.Is(err, state.ErrRevisionMismatch) {
		return ErrNotHolder
	}
	return err
}

// Holder returns the current live holder of a key, if any.
func (m *Manager) Holder(key string) (string, bool, error) {
	entry, err := m.store.GetEntry(keyPrefix + key)
	if errors.Is(err, state.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var current Lease
	if err := json.Unmarshal(entry.Value, &current); err != nil {
		return "", false, fmt.Errorf("decode lease: %w", err)
	}
	if current.Expired(m.now()) {
		return "", false, nil
	}
	return current.HolderID, true, nil
}

func marshalLease(holderID string, expiry time.Time) ([]byte, error) {
	data, err := json.Marshal(Lease{HolderID: holderID, Expiry: expiry})
	if err != nil {
		return nil, fmt.Errorf("encode lease: %w", err)
	}
	return data, nil
}
