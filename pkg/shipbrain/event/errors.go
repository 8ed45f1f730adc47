package event

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrBusClosed  = errors.New("event bus is closed")
	ErrQueueFull  = errors.New("event queue is full")
	ErrNilPayload = errors.New("event payload is nil")
	ErrTimeout    = errors.New("timed out waiting for event")
)

// ListenerError describes a listener that failed while handling an event.
type ListenerError struct {
	EventID    string
	Kind       Kind
	ListenerID int64
	Panic      any
	Err        error
}

// Error implements error interface.
func (e *ListenerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("event %s (%s): listener %d panicked: %v", e.EventID, e.Kind, e.ListenerID, e.Panic)
	}
	return fmt.Sprintf("event %s (%s): listener %d: %v", e.EventID, e.Kind, e.ListenerID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ListenerError) Unwrap() error {
	return e.Err
}
