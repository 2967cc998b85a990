package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vinayprograms/taskwire/state"
)

// keyPrefix namespaces task records in the shared store.
const keyPrefix = "tasks."

// Store persists task records in the shared key-value store. All workers
// read and write the same records; the lock manager, not the store,
// serializes access to any one task.
type Store struct {
	store state.StateStore
}

// NewStore creates a task store over the given state store.
func NewStore(s state.StateStore) *Store {
	return &Store{store: s}
}

// Save writes the task record unconditionally. Callers hold the task
// lock while mutating, so last-writer-wins is safe here.
func (s *Store) Save(t *Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", t.ID, err)
	}
	return s.store.Put(keyPrefix+t.ID, data, 0)
}

// Get retrieves a task by ID.
// Returns ErrNotFound if the task does not exist.
func (s *Store) Get(id string) (*Task, error) {
	data, err := s.store.Get(keyPrefix + id)
	if errors.Is(err, state.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	return &t, nil
}

// Status returns the current status of a task. This is the direct key
// lookup external monitoring uses; it never touches the event stream.
func (s *Store) Status(id string) (Status, error) {
	t, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return t.Status, nil
}

// List returns tasks matching the given status filter, ordered by ID.
// An empty status returns all tasks.
func (s *Store) List(status Status) ([]*Task, error) {
	keys, err := s.store.Keys(keyPrefix + "*")
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	var tasks []*Task
	for _, key := range keys {
		t, err := s.Get(strings.TrimPrefix(key, keyPrefix))
		if errors.Is(err, ErrNotFound) {
			// Expired or deleted between Keys and Get.
			continue
		}
		if err != nil {
			return nil, err
		}
		if status != "" && t.Status != status {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Delete removes a task record. Used after archiving a terminal task.
func (s *Store) Delete(id string) error {
	return s.store.Delete(keyPrefix + id)
}
