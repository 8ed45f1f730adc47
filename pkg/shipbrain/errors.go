package shipbrain

import "errors"

// Sentinel errors.
var (
	// ErrClosed indicates the core was used after Close.
	ErrClosed = errors.New("shipbrain core is closed")

	// ErrNotFound indicates an unknown shipment ID.
	ErrNotFound = errors.New("shipment not found")
)
