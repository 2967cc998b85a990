// Package bus provides broker clients for worker-to-worker messaging.
//
// # Overview
//
// The MessageBus interface is a thin publish/subscribe abstraction over a
// shared broker. It is the leaf dependency of the orchestration kit: the
// event dispatcher, heartbeats, and external submitters all talk to each
// other through it. All implementations use channel-based APIs for
// Go-idiomatic concurrent use.
//
// # Available Implementations
//
//   - NATSBus: production messaging using NATS
//   - MemoryBus: in-memory implementation for testing and single-process use
//
// # Wildcards
//
// Subscription subjects follow NATS semantics: "*" matches one dot-delimited
// token and ">" matches all remaining tokens. MemoryBus applies the same
// rules, so a firehose subscription behaves identically on both backends:
//
//	sub, _ := bus.Subscribe(bus.FirehoseSubject)
//	for msg := range sub.Messages() {
//	    // Every message on the bus
//	}
//
// # Queue Groups
//
// Queue subscriptions load-balance across members:
//
//	sub, _ := bus.QueueSubscribe("tasks.created", "planners")
//	// Only one planner in the group receives each message
//
// The orchestration workers deliberately do NOT use queue groups for task
// events: every worker sees every event and duplicate processing is resolved
// by the distributed lock, not by broker-side balancing.
package bus
