// Package bus provides broker clients for worker-to-worker messaging.
//
// The MessageBus interface is a thin abstraction over a publish/subscribe
// channel keyed by subject string. All implementations use channel-based
// APIs for Go-idiomatic concurrent use.
package bus

import (
	"errors"
	"strings"
)

// Common errors.
var (
	ErrClosed         = errors.New("bus closed")
	ErrConnection     = errors.New("broker unreachable")
	ErrInvalidSubject = errors.New("invalid subject")
)

// FirehoseSubject subscribes to every subject on the bus.
const FirehoseSubject = ">"

// Message represents a message received from the bus.
type Message struct {
	// Subject the message was published to.
	Subject string

	// Data is the message payload.
	Data []byte
}

// MessageBus provides pub/sub messaging over a shared broker.
type MessageBus interface {
	// Publish sends a message to all subscribers of a subject.
	// Fire-and-forget: there is no acknowledgment of delivery or of
	// subscriber completion.
	Publish(subject string, data []byte) error

	// Subscribe creates a subscription to a subject.
	// Subjects may contain NATS-style wildcards: "*" matches one token,
	// ">" matches all remaining tokens.
	// All matching subscribers receive all messages.
	Subscribe(subject string) (Subscription, error)

	// QueueSubscribe creates a queue subscription.
	// Messages are load-balanced across queue members.
	QueueSubscribe(subject, queue string) (Subscription, error)

	// Close shuts down the bus connection.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// Messages returns the channel for incoming messages.
	// Channel is closed when subscription ends.
	Messages() <-chan *Message

	// Unsubscribe cancels the subscription.
	Unsubscribe() error
}

// Config holds common bus configuration.
type Config struct {
	// BufferSize for subscription channels.
	// Default: 256
	BufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 256,
	}
}

// ValidateSubject checks if a subject is valid.
func ValidateSubject(subject string) error {
	if subject == "" {
		return ErrInvalidSubject
	}
	if strings.ContainsAny(subject, " \t\r\n") {
		return ErrInvalidSubject
	}
	return nil
}

// SubjectMatches reports whether a concrete subject matches a subscription
// subject, applying NATS-style wildcard rules: "*" matches exactly one
// dot-delimited token, ">" matches one or more trailing tokens.
func SubjectMatches(pattern, subject string) bool {
	if pattern == subject {
		return true
	}

	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, tok := range pt {
		if tok == ">" {
			return len(st) >= i+1
		}
		if i >= len(st) {
			return false
		}
		if tok != "*" && tok != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}
