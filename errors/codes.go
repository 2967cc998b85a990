package errors

// Category classifies errors by their nature and retry semantics.
type Category string

// Error categories define how errors should be handled.
const (
	// CategoryFatal indicates failures the process cannot recover from
	// internally. The receive loop exits and supervision restarts the
	// worker. Example: broker unreachable.
	CategoryFatal Category = "fatal"

	// CategoryExpected indicates conditions that are part of normal
	// multi-worker operation and are absorbed silently.
	// Examples: lock contention, duplicate event delivery.
	CategoryExpected Category = "expected"

	// CategoryTransient indicates temporary failures where retry may
	// succeed. Example: a tool invocation failing.
	CategoryTransient Category = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	// Example: a goal no plan can be generated for.
	CategoryPermanent Category = "permanent"

	// CategoryInternal indicates unexpected errors, bugs, or recovered
	// panics.
	CategoryInternal Category = "internal"
)

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c Category) IsRetryable() bool {
	return c == CategoryTransient
}

// Code identifies specific error types within categories.
type Code string

// Error codes for the orchestration failure taxonomy.
const (
	// CodeConnection means the broker channel is unreachable. Fatal to
	// the receive loop; the process crashes and restarts under
	// supervision rather than retrying internally.
	CodeConnection Code = "CONNECTION"

	// CodeLockContention means another live holder owns the task's lock.
	// Not an error in the operational sense; absorbed silently.
	CodeLockContention Code = "LOCK_CONTENTION"

	// CodeToolFailure means a plan step's tool invocation failed.
	// Routed through the retry coordinator.
	CodeToolFailure Code = "TOOL_FAILURE"

	// CodeToolNotFound means the plan names a tool the collaborator does
	// not provide. Retrying cannot succeed.
	CodeToolNotFound Code = "TOOL_NOT_FOUND"

	// CodePlanGeneration means the goal text was unrecognizable.
	// Immediately terminal; retrying an unparseable goal cannot succeed.
	CodePlanGeneration Code = "PLAN_GENERATION_FAILURE"

	// CodeDuplicateEvent means an event referenced a task already in a
	// terminal state. Logged and discarded, never surfaced.
	CodeDuplicateEvent Code = "DUPLICATE_EVENT"

	// CodeInvalidEvent means an event payload could not be decoded or is
	// missing required fields.
	CodeInvalidEvent Code = "INVALID_EVENT"

	// CodeInvalidTransition means a status change would violate the task
	// lifecycle ordering.
	CodeInvalidTransition Code = "INVALID_TRANSITION"

	// CodeInternal is an unexpected internal error.
	CodeInternal Code = "INTERNAL"

	// CodePanic is a panic recovered at the dispatch boundary.
	CodePanic Code = "PANIC"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c Code) DefaultCategory() Category {
	switch c {
	case CodeConnection:
		return CategoryFatal
	case CodeLockContention, CodeDuplicateEvent:
		return CategoryExpected
	case CodeToolFailure:
		return CategoryTransient
	case CodeToolNotFound, CodePlanGeneration, CodeInvalidEvent, CodeInvalidTransition:
		return CategoryPermanent
	default:
		return CategoryInternal
	}
}
