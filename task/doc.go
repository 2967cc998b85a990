// Package task defines the task model, its lifecycle state machine, and
// the shared store task records live in.
//
// A task moves CREATED → PLANNING → PLANNED → EXECUTING → COMPLETED or
// FAILED. The order is monotonic: no state repeats except EXECUTING,
// which re-enters itself on each retry attempt. COMPLETED and FAILED are
// terminal; events arriving for a terminal task are absorbed without
// effect.
//
// Attempt state is persisted with the task record so a retry sequence
// survives worker crashes: whichever worker next wins the task's lock
// resumes from the recorded attempt count.
package task
