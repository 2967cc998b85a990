// Package retry schedules repeated execution attempts with exponential
// backoff.
//
// The delay before attempt n+1 is BaseDelay doubled per prior failure,
// capped at MaxDelay. Backoff is coordinated with the task's lock: the
// coordinator releases the lock for the whole backoff window and
// re-acquires it before retrying, so a crashed worker delays the retry
// only until another worker wins the lock.
package retry
