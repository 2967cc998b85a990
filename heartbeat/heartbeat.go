// Package heartbeat provides worker liveness signaling over the bus.
//
// Every worker publishes a periodic heartbeat on its own subject under
// worker.heartbeat. A Monitor subscribes to the wildcard, tracks
// last-seen times, and reports workers that go quiet. Heartbeats are
// advisory: task state lives in the shared store and survives a dead
// worker regardless.
package heartbeat

import (
	"encoding/json"
	"errors"
	"time"
)

// Common errors.
var (
	ErrAlreadyStarted = errors.New("heartbeat already started")
	ErrNotStarted     = errors.New("heartbeat not started")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// SubjectPrefix is the subject prefix for worker heartbeats.
const SubjectPrefix = "worker.heartbeat."

// Worker statuses carried in heartbeats.
const (
	StatusIdle      = "idle"
	StatusPlanning  = "planning"
	StatusExecuting = "executing"
)

// Heartbeat is a single liveness report from a worker.
type Heartbeat struct {
	// WorkerID uniquely identifies the sending worker.
	WorkerID string `json:"worker_id"`

	// Timestamp when the heartbeat was generated.
	Timestamp time.Time `json:"timestamp"`

	// Status of the worker: idle, planning, or executing.
	Status string `json:"status"`

	// TasksHandled counts tasks this worker has driven to a terminal
	// state since starting.
	TasksHandled int `json:"tasks_handled"`
}

// Marshal serializes a heartbeat to JSON.
func (h *Heartbeat) Marshal() ([]byte, error) {
	return json.Marshal(h)
}

// Unmarshal deserializes a heartbeat from JSON.
func Unmarshal(data []byte) (*Heartbeat, error) {
	var h Heartbeat
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Subject returns the bus subject for this heartbeat.
func (h *Heartbeat) Subject() string {
	return SubjectPrefix + h.WorkerID
}
