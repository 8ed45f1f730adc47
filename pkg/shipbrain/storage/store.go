// Package storage provides the key-value persistence used for best-effort
// snapshots of the memory store and the operational context.
//
// Business logic depends only on the Store interface. MemoryStore serves
// tests, SQLiteStore and FileStore serve single-process deployments.
package storage

import (
	"errors"
	"fmt"
	"time"
)

// Store persists opaque snapshot blobs grouped by namespace.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores data under (namespace, key), replacing any previous value
	// and bumping its revision.
	Put(namespace, key string, data []byte) error

	// Get retrieves a value.
	// Returns ErrNotFound if the key doesn't exist.
	Get(namespace, key string) ([]byte, error)

	// List returns metadata for every key in a namespace, ordered by key.
	// Returns an empty slice (not error) for an unknown namespace.
	List(namespace string) ([]Info, error)

	// Delete removes one key. Returns nil if it doesn't exist.
	Delete(namespace, key string) error

	// DeleteNamespace removes every key in a namespace.
	DeleteNamespace(namespace string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info describes a stored value without loading it.
type Info struct {
	Namespace string
	Key       string
	Revision  int
	UpdatedAt time.Time
	Size      int64
}

// Sentinel errors for storage operations.
var (
	// ErrNotFound indicates a key doesn't exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("snapshot store closed")

	// ErrInvalidKey indicates an empty namespace or key.
	ErrInvalidKey = errors.New("namespace and key are required")
)

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverFile   = "file"
)

// Open builds a Store for the named driver. path is ignored for the memory
// driver, is a database file for sqlite and a directory for file.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(path)
	case DriverFile:
		return NewFileStore(path)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}

func validate(namespace, key string) error {
	if namespace == "" || key == "" {
		return ErrInvalidKey
	}
	return nil
}
