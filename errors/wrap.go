package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error
// chain. If err is nil, Wrap returns nil. If err is already a structured
// Error, its taxonomy fields are preserved.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var structured *Error
	if errors.As(err, &structured) {
		wrapped := &Error{
			code:      structured.code,
			category:  structured.category,
			message:   message,
			cause:     err,
			metadata:  structured.Metadata(),
			retryable: structured.retryable,
			taskID:    structured.taskID,
			topic:     structured.topic,
			attempt:   structured.attempt,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	return New(CodeInternal, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error under a specific error code.
func WrapWithCode(err error, code Code, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// Is checks if any error in the chain has the given error code.
func Is(err error, code Code) bool {
	var structured *Error
	if errors.As(err, &structured) {
		return structured.code == code
	}
	return false
}

// IsCategory checks if any error in the chain has the given category.
func IsCategory(err error, category Category) bool {
	var structured *Error
	if errors.As(err, &structured) {
		return structured.category == category
	}
	return false
}

// IsRetryable checks if the error is retryable.
// Non-structured errors default to not retryable.
func IsRetryable(err error) bool {
	var structured *Error
	if errors.As(err, &structured) {
		return structured.Retryable()
	}
	return false
}

// IsFatal checks if the error is fatal to the receive loop.
func IsFatal(err error) bool {
	return IsCategory(err, CategoryFatal)
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if err is not a structured Error.
func GetCode(err error) Code {
	var structured *Error
	if errors.As(err, &structured) {
		return structured.code
	}
	return ""
}

// Attempt extracts the attempt count from an error, if available.
// Returns 0 if err is not a structured Error.
func Attempt(err error) int {
	var structured *Error
	if errors.As(err, &structured) {
		return structured.attempt
	}
	return 0
}

// RecoverPanic converts a recovered panic value into an Error.
func RecoverPanic(recovered interface{}) *Error {
	if recovered == nil {
		return nil
	}
	var message string
	switch v := recovered.(type) {
	case error:
		message = v.Error()
	case string:
		message = v
	default:
		message = fmt.Sprintf("%v", v)
	}
	return New(CodePanic, message, WithMetadata("panic_value", fmt.Sprintf("%T", recovered)))
}
