// Package store implements persistence for cached currency rates.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrStore is returned (wrapped) when the backing store is unreachable or fails.
// "Not found" is never reported through it.
var ErrStore = errors.New("rate store failure")

// RateEntry is a cached rate for one direction of a currency pair.
type RateEntry struct {
	From      string
	To        string
	Rate      float64
	ExpiresAt time.Time
}

// Expired reports whether the entry is stale at the given instant.
func (e RateEntry) Expired(now time.Time) bool {
	return e.ExpiresAt.Before(now)
}

// RateStore is a key-value store for (from, to) -> rate with time-based expiry.
type RateStore interface {
	// Lookup returns found=false when there is no live entry for the pair.
	Lookup(ctx context.Context, from, to string) (RateEntry, bool, error)
	// Upsert overwrites the pair and resets its expiry to now + ttlHours.
	Upsert(ctx context.Context, from, to string, rate float64, ttlHours int) error
	// Ping checks connectivity with the backing store.
	Ping(ctx context.Context) error
}

// ExpiresAt computes the absolute expiry for an entry written at writeTime.
// Precision is whole epoch seconds, matching the persisted representation.
func ExpiresAt(writeTime time.Time, ttlHours int) time.Time {
	return time.Unix(writeTime.Unix()+int64(ttlHours)*3600, 0).UTC()
}
