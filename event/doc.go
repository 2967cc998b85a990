// Package event implements the pattern-matched event bus on top of the
// broker client.
//
// # Overview
//
// A Registry holds (topic-pattern, handler) bindings; a Dispatcher owns
// the single per-process receive loop, decodes each incoming message, and
// invokes every matching handler synchronously in a fixed order:
// exact-topic bindings first, then trailing-wildcard bindings ("task.*"),
// then universal listeners ("*"). Handler errors and panics are caught,
// logged with task id and topic, and never stop sibling handlers or the
// loop.
//
// # Delivery semantics
//
// Publish is fire-and-forget. The broker gives best-effort per-topic
// ordering and may deliver duplicates or reorder across connections;
// consumers absorb duplicates through idempotent state checks, not here.
// A closed broker channel ends Run with a CONNECTION error; the process
// is expected to crash and restart under supervision.
package event
