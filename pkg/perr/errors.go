// Package perr defines the pipeline's error taxonomy: behaviors, not
// type hierarchies. Every error surfaced across component boundaries
// carries a Class so callers (the retry manager, the facade, counters)
// can dispatch on behavior without string-matching messages.
package perr

import "fmt"

// Class identifies how an error should be handled by its observer.
type Class string

const (
	// ClassConfig is an invalid configuration, surfaced synchronously at
	// load and fatal for initialization.
	ClassConfig Class = "config"
	// ClassSerialization is handled internally — the record still reaches
	// the sink with a degraded payload; only a counter increments.
	ClassSerialization Class = "serialization"
	// ClassTransientTransport covers network/timeout/5xx/408/429 errors:
	// retryable under the retry manager, and counts as a breaker failure.
	ClassTransientTransport Class = "transient_transport"
	// ClassPermanentTransport covers 4xx (excluding 408/429) and auth
	// failures: non-retryable, but still counts as a breaker failure.
	ClassPermanentTransport Class = "permanent_transport"
	// ClassQueueFull is the drop-newest backpressure outcome: a counter
	// increments, no exception reaches the caller.
	ClassQueueFull Class = "queue_full"
	// ClassShutdown covers submissions attempted after close; the
	// caller's completion handle resolves with this status.
	ClassShutdown Class = "shutdown"
)

// Error is the pipeline's standard error shape: a classified,
// component-attributed error that may wrap a cause.
type Error struct {
	Class     Class
	Component string
	Operation string
	Message   string
	Cause     error
	Status    int // HTTP status, when the error originated from a transport response
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Operation, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// StatusCode satisfies retry.statusCoded so the retry manager's default
// classifier can dispatch on the carried HTTP status without importing
// this package.
func (e *Error) StatusCode() int { return e.Status }

// Retryable satisfies retry.retryableTagged directly from Class,
// bypassing status/message sniffing entirely when an Error is classified.
func (e *Error) Retryable() bool { return e.Class == ClassTransientTransport }

// New builds an Error of the given class.
func New(class Class, component, operation, message string) *Error {
	return &Error{Class: class, Component: component, Operation: operation, Message: message}
}

// Wrap builds an Error of the given class around cause.
func Wrap(class Class, component, operation string, cause error) *Error {
	return &Error{Class: class, Component: component, Operation: operation, Message: cause.Error(), Cause: cause}
}

// WithStatus attaches an HTTP status code and returns e for chaining.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// ClassifyTransport builds a TransientTransport or PermanentTransport
// Error from an HTTP status code per the retry contract (408/429/5xx
// retryable, other 4xx permanent).
func ClassifyTransport(component, operation string, status int, cause error) *Error {
	class := ClassPermanentTransport
	switch {
	case status == 408 || status == 429:
		class = ClassTransientTransport
	case status >= 500:
		class = ClassTransientTransport
	}
	e := Wrap(class, component, operation, cause)
	e.Status = status
	return e
}

// Shutdown builds the ClassShutdown error returned by a completion
// handle when a record is submitted after close.
func Shutdown(component string) *Error {
	return New(ClassShutdown, component, "submit", "logger is closed")
}

// QueueFull builds the ClassQueueFull error for a dropped-on-backpressure
// record. The batch manager reports drops through its DroppedQueueFull
// result and counters and does not return this error to callers.
func QueueFull(component string) *Error {
	return New(ClassQueueFull, component, "submit", "queue at capacity, dropping newest record")
}
