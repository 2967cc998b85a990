// Package state provides the shared key-value substrate for the
// orchestration kit.
//
// # Overview
//
// StateStore is the single shared mutable resource in the system: task
// status records and lock leases both live in it. Beyond plain Get/Put it
// exposes conditional writes — Create (set-if-absent), Update
// (compare-and-set on revision), and DeleteRevision (compare-and-delete) —
// which are the primitives the lock manager builds lease-based mutual
// exclusion on. Holders span separate processes, so a language-level mutex
// cannot serve here.
//
// # Available Implementations
//
//   - NATSStore: JetStream KV bucket, shared across worker processes
//   - MemoryStore: in-memory map for testing and single-process use
//
// # Revisions
//
// Every write bumps a key's revision. A caller that read revision N and
// writes with Update(key, value, N) is guaranteed the key did not change in
// between, or the write fails with ErrRevisionMismatch and the caller must
// re-read and decide again.
package state
