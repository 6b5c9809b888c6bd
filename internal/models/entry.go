package models

import (
	"time"
)

// Entry represents a cache entry.
type Entry struct {
	Key       string
	Data      any
	ExpiresAt time.Time
}

// NewEntry creates a new Entry that expires ttl after now.
func NewEntry(key string, data any, now time.Time, ttl time.Duration) *Entry {
	return &Entry{
		Key:       key,
		Data:      data,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired reports whether the entry is stale at the given instant.
// An entry is still fresh at exactly ExpiresAt.
func (e *Entry) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Remaining returns how long the entry stays fresh, or 0 once expired.
func (e *Entry) Remaining(now time.Time) time.Duration {
	if e.IsExpired(now) {
		return 0
	}
	return e.ExpiresAt.Sub(now)
}
