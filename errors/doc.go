// Package errors provides the structured error taxonomy for the
// orchestration kit.
//
// # Categories
//
//   - Fatal: the receive loop exits; supervision restarts the process
//     (CONNECTION)
//   - Expected: normal multi-worker conditions, absorbed silently
//     (LOCK_CONTENTION, DUPLICATE_EVENT)
//   - Transient: retry may succeed (TOOL_FAILURE)
//   - Permanent: retry cannot succeed (PLAN_GENERATION_FAILURE,
//     TOOL_NOT_FOUND)
//   - Internal: bugs and recovered panics
//
// # Usage
//
// Create a new error:
//
//	err := errors.New(errors.CodeToolFailure, "tool returned error",
//	    errors.WithTaskID(taskID), errors.WithAttempt(2))
//
// Check how to handle it:
//
//	if errors.IsRetryable(err) {
//	    // hand off to the retry coordinator
//	}
//
// Errors serialize to JSON so they can travel inside task.failed payloads.
package errors
