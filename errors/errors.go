package errors

import (
	"encoding/json"
	"fmt"
	"time"
)

// Error is a structured orchestration error. It extends the standard error
// interface with the context retry and dispatch decisions need: a code from
// the failure taxonomy, a category, and the task/topic/attempt it relates to.
type Error struct {
	code      Code
	category  Category
	message   string
	cause     error
	metadata  map[string]string
	retryable *bool // nil means use default based on category
	timestamp time.Time
	taskID    string
	topic     string
	attempt   int
}

// Ensure Error implements json.Marshaler/Unmarshaler.
var (
	_ error            = (*Error)(nil)
	_ json.Marshaler   = (*Error)(nil)
	_ json.Unmarshaler = (*Error)(nil)
)

// New creates a new Error with the given code and message.
func New(code Code, message string, opts ...Option) *Error {
	e := &Error{
		code:      code,
		category:  code.DefaultCategory(),
		message:   message,
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() Code {
	return e.code
}

// Category returns the error category.
func (e *Error) Category() Category {
	return e.category
}

// Retryable returns whether this error is retryable.
func (e *Error) Retryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	return e.category.IsRetryable()
}

// Metadata returns a copy of the error metadata.
func (e *Error) Metadata() map[string]string {
	result := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		result[k] = v
	}
	return result
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Timestamp returns when the error occurred.
func (e *Error) Timestamp() time.Time {
	return e.timestamp
}

// TaskID returns the related task ID, if set.
func (e *Error) TaskID() string {
	return e.taskID
}

// Topic returns the related event topic, if set.
func (e *Error) Topic() string {
	return e.topic
}

// Attempt returns the attempt count the error occurred on, if set.
func (e *Error) Attempt() int {
	return e.attempt
}

// errorJSON is the JSON representation of an Error. Errors cross process
// boundaries inside task.failed payloads, so the round-trip must preserve
// the taxonomy fields.
type errorJSON struct {
	Code      Code              `json:"code"`
	Category  Category          `json:"category"`
	Message   string            `json:"message"`
	Cause     string            `json:"cause,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Retryable bool              `json:"retryable"`
	Timestamp string            `json:"timestamp,omitempty"`
	TaskID    string            `json:"task_id,omitempty"`
	Topic     string            `json:"topic,omitempty"`
	Attempt   int               `json:"attempt,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	j := errorJSON{
		Code:      e.code,
		Category:  e.category,
		Message:   e.message,
		Metadata:  e.metadata,
		Retryable: e.Retryable(),
		TaskID:    e.taskID,
		Topic:     e.topic,
		Attempt:   e.attempt,
	}
	if e.cause != nil {
		j.Cause = e.cause.Error()
	}
	if !e.timestamp.IsZero() {
		j.Timestamp = e.timestamp.Format(time.RFC3339Nano)
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Error) UnmarshalJSON(data []byte) error {
	var j errorJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	e.code = j.Code
	e.category = j.Category
	e.message = j.Message
	e.metadata = j.Metadata
	e.taskID = j.TaskID
	e.topic = j.Topic
	e.attempt = j.Attempt
	r := j.Retryable
	e.retryable = &r
	if j.Cause != "" {
		e.cause = fmt.Errorf("%s", j.Cause)
	}
	if j.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, j.Timestamp); err == nil {
			e.timestamp = t
		}
	}
	return nil
}

// Option is a functional option for configuring an Error.
type Option func(*Error)

// WithCategory overrides the default category.
func WithCategory(cat Category) Option {
	return func(e *Error) {
		e.category = cat
	}
}

// WithRetryable explicitly sets whether the error is retryable.
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = &retryable
	}
}

// WithCause sets the underlying cause.
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

// WithMetadata adds a metadata key-value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithTaskID associates the error with a task.
func WithTaskID(taskID string) Option {
	return func(e *Error) {
		e.taskID = taskID
	}
}

// WithTopic associates the error with an event topic.
func WithTopic(topic string) Option {
	return func(e *Error) {
		e.topic = topic
	}
}

// WithAttempt records the attempt count the error occurred on.
func WithAttempt(attempt int) Option {
	return func(e *Error) {
		e.attempt = attempt
	}
}
