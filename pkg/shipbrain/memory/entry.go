// Package memory provides the tiered fact store shared by shipbrain
// components.
//
// Every entry lives in a tier that sets its default lifetime. Expiry is
// checked on every access, so an expired entry is invisible even before
// Cleanup reclaims it. Search ranks entries by importance + 2×accessCount.
package memory

import (
	"errors"
	"time"
)

// Tier sets the default lifetime of an entry.
type Tier string

// Memory tiers.
const (
	TierShort    Tier = "short"
	TierMedium   Tier = "medium"
	TierLong     Tier = "long"
	TierSemantic Tier = "semantic"
)

// DefaultTTLs holds the lifetime of each tier.
var DefaultTTLs = map[Tier]time.Duration{
	TierShort:    30 * time.Minute,
	TierMedium:   1440 * time.Minute,
	TierLong:     43200 * time.Minute,
	TierSemantic: 525600 * time.Minute,
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := DefaultTTLs[t]
	return ok
}

// Entry is one remembered fact.
type Entry struct {
	ID           string     `json:"id"`
	Tier         Tier       `json:"tier"`
	Category     string     `json:"category"`
	Data         any        `json:"data"`
	CreatedAt    time.Time  `json:"createdAt"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	AccessCount  int        `json:"accessCount"`
	LastAccessed time.Time  `json:"lastAccessed"`
	Importance   int        `json:"importance"`
}

// Score is the search ranking of the entry.
func (e *Entry) Score() int {
	return e.Importance + 2*e.AccessCount
}

// expired reports whether the entry is past its expiry at now.
func (e *Entry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

func (e *Entry) clone() Entry {
	c := *e
	if e.ExpiresAt != nil {
		t := *e.ExpiresAt
		c.ExpiresAt = &t
	}
	return c
}

// Options controls how an entry is stored.
type Options struct {
	// Tier defaults to TierMedium.
	Tier Tier
	// Importance is clamped to 0–100. Zero means the default of 50.
	Importance int
	// TTL overrides the tier lifetime when positive.
	TTL time.Duration
	// ID replaces any entry with the same ID. Empty generates a new one.
	ID string
}

// Query filters Search results. Zero fields match everything.
type Query struct {
	Tier          Tier
	Category      string
	MinImportance int
	Limit         int
}

// Stats summarizes the store.
type Stats struct {
	Total      int            `json:"total"`
	Expired    int            `json:"expired"`
	ByTier     map[Tier]int   `json:"byTier"`
	ByCategory map[string]int `json:"byCategory"`
}

// Sentinel errors.
var (
	// ErrNotFound indicates the entry doesn't exist or has expired.
	ErrNotFound = errors.New("memory entry not found")

	// ErrNoStore indicates Persist or Restore was called without a store.
	ErrNoStore = errors.New("memory store has no snapshot backend")
)

const (
	defaultImportance = 50
	maxImportance     = 100
	consolidateBoost  = 20
)

func clampImportance(v int) int {
	switch {
	case v < 0:
		return 0
	case v > maxImportance:
		return maxImportance
	}
	return v
}
