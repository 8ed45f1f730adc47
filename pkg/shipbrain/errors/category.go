// Package errors classifies action failures and retries the transient ones.
//
// Action handlers wrap their failures with Transient, Permanent or
// NeedsOperator. The executor retries only transient failures, with
// exponential backoff and jitter, and records the rest as failed results.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryPermanent indicates retry won't help.
	// Examples: missing parameters, unknown alert id.
	CategoryPermanent Category = iota

	// CategoryTransient indicates retry will likely help.
	// Examples: notification channel timeouts, rate limits.
	CategoryTransient

	// CategoryOperator indicates an operator has to act.
	// Examples: a notification target without contact details.
	CategoryOperator
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryOperator:
		return "operator"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	Err      error
	Category Category
	// Attempts is the number of tries made before giving up.
	Attempts int
	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %v (%s, attempts: %d)", e.Context, e.Err, e.Category, e.Attempts)
	}
	return fmt.Sprintf("%v (%s, attempts: %d)", e.Err, e.Category, e.Attempts)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Transient marks err as worth retrying.
func Transient(err error, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryTransient, Context: context}
}

// Permanent marks err as final.
func Permanent(err error, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryPermanent, Context: context}
}

// NeedsOperator marks err as requiring an operator.
func NeedsOperator(err error, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryOperator, Context: context}
}

// Categorize determines how an error should be handled. Unknown errors are
// permanent.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	var chErr *ChannelError
	if errors.As(err, &chErr) {
		switch {
		case chErr.StatusCode == 429, chErr.StatusCode >= 500:
			return CategoryTransient
		case chErr.StatusCode == 404 || chErr.StatusCode == 410:
			return CategoryOperator
		default:
			return CategoryPermanent
		}
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return CategoryTransient
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}
