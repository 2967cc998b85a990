// Package worker assembles the orchestration roles into one process.
//
// A worker runs three listeners on a single receive loop: the planner
// (task.created), the executor (plan.approved), and the auditor (every
// topic). Workers are symmetric and stateless between events; all shared
// state lives in the key-value store, so any number of replicas can run
// against the same bus. The task lock, not any assignment scheme,
// decides which replica handles which event, and losing the race is
// silent.
package worker
