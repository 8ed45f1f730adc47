package errors

import (
	"fmt"
	"time"
)

// ChannelError is a failure reported by an outbound notification channel.
type ChannelError struct {
	Channel    string
	StatusCode int
	Message    string
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: status %d: %s", e.Channel, e.StatusCode, e.Message)
}

// TimeoutError indicates an operation exceeded its time budget.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Operation, e.Duration)
}

// ParamError indicates a missing or invalid action parameter.
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("param %s: %s", e.Param, e.Reason)
}
