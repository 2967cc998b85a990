package event

import (
	"strings"
	"sync"
)

// Universal is the catch-all pattern matching every topic. Used for
// auditing listeners.
const Universal = "*"

// Handler processes a dispatched event. A handler error is caught and
// logged at the dispatch boundary; it never prevents sibling handlers
// from running.
type Handler func(evt Event) error

// binding is a (topic-pattern, handler-name) registration.
type binding struct {
	pattern string
	name    string
	handler Handler
}

// Registry holds topic-pattern to handler bindings. It is constructed
// explicitly at startup and passed by reference to the dispatcher; there is
// no ambient process-wide registry. Bindings live for the process lifetime.
type Registry struct {
	mu       sync.RWMutex
	bindings []binding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register binds a handler to a topic pattern. Patterns are either an
// exact topic ("task.created"), a trailing wildcard segment ("task.*"),
// or the universal wildcard ("*"). Name identifies the handler in logs.
func (r *Registry) Register(pattern, name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = append(r.bindings, binding{pattern: pattern, name: name, handler: h})
}

// Len returns the number of registered bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}

// match reports whether a topic matches a registration pattern.
func match(pattern, topic string) bool {
	if pattern == Universal {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(topic, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == topic
}

// matches returns the bindings for a topic in dispatch order: exact-topic
// registrations first, then wildcard registrations, then universal
// listeners; registration order within each class.
func (r *Registry) matches(topic string) []binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var exact, wildcard, universal []binding
	for _, b := range r.bindings {
		switch {
		case b.pattern == topic:
			exact = append(exact, b)
		case b.pattern == Universal:
			universal = append(universal, b)
		case match(b.pattern, topic):
			wildcard = append(wildcard, b)
		}
	}

	out := make([]binding, 0, len(exact)+len(wildcard)+len(universal))
	out = append(out, exact...)
	out = append(out, wildcard...)
	out = append(out, universal...)
	return out
}
