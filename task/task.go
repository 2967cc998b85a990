package task

import (
	"errors"
	"time"

	"github.com/google/uuid"

	orcherrors "github.com/vinayprograms/taskwire/errors"
)

// Common errors.
var (
	// ErrNotFound indicates the requested task does not exist.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidTransition indicates a status change that the lifecycle
	// does not permit.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidTask indicates the task is missing required fields.
	ErrInvalidTask = errors.New("invalid task")
)

// Status represents the lifecycle state of a task.
type Status string

const (
	// StatusCreated indicates the task has been submitted but no worker
	// has picked it up yet.
	StatusCreated Status = "CREATED"

	// StatusPlanning indicates a worker holds the task and is
	// synthesizing its plan.
	StatusPlanning Status = "PLANNING"

	// StatusPlanned indicates a plan exists and execution has not begun.
	StatusPlanned Status = "PLANNED"

	// StatusExecuting indicates plan steps are being run. Retries re-enter
	// this state.
	StatusExecuting Status = "EXECUTING"

	// StatusCompleted indicates the task finished successfully. Terminal.
	StatusCompleted Status = "COMPLETED"

	// StatusFailed indicates the task failed permanently. Terminal.
	StatusFailed Status = "FAILED"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the status is a terminal state. Terminal
// tasks never change again; late or duplicate events against them are
// absorbed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// transitions is the full lifecycle graph. The order is monotonic: the
// only repeatable state is EXECUTING, which re-enters itself on retry.
var transitions = map[Status][]Status{
	StatusCreated:   {StatusPlanning},
	StatusPlanning:  {StatusPlanned, StatusFailed},
	StatusPlanned:   {StatusExecuting},
	StatusExecuting: {StatusExecuting, StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

// CanTransition reports whether the lifecycle permits moving from s to
// next. Backward moves and transitions out of terminal states are never
// permitted.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Task represents a unit of work moving through the lifecycle.
type Task struct {
	// ID is the unique identifier for the task.
	ID string `json:"id"`

	// Goal is the free-text objective the task was submitted with.
	Goal string `json:"goal"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Plan is the synthesized step sequence, set once planning succeeds.
	Plan []PlanStep `json:"plan,omitempty"`

	// Result is the output of the final step on success.
	Result interface{} `json:"result,omitempty"`

	// AttemptCount is the number of execution attempts so far. Persisted
	// with the task so any worker can resume the retry sequence after a
	// crash.
	AttemptCount int `json:"attempt_count"`

	// LastError records the most recent execution failure.
	LastError *orcherrors.Error `json:"last_error,omitempty"`

	// NextAttemptAt is when the next retry becomes due, if one is pending.
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`

	// CreatedAt is when the task was submitted.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the task record last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// PlanStep is one tool invocation recorded on the task. Mirrors the
// plan package's step shape so the task record is self-contained.
type PlanStep struct {
	Tool        string                 `json:"tool"`
	Params      map[string]interface{} `json:"params"`
	Description string                 `json:"description,omitempty"`
}

// New creates a task in the CREATED state with a generated ID.
func New(goal string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        uuid.NewString(),
		Goal:      goal,
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the task to the next status, enforcing the lifecycle
// graph. Returns ErrInvalidTransition when the move is not permitted.
func (t *Task) Transition(next Status) error {
	if !t.Status.CanTransition(next) {
		return ErrInvalidTransition
	}
	t.Status = next
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Validate checks the task has the fields every record needs.
func (t *Task) Validate() error {
	if t.ID == "" {
		return ErrInvalidTask
	}
	if t.Status == "" {
		return ErrInvalidTask
	}
	return nil
}
