package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

var _ RateStore = (*MemoryStore)(nil)

// MemoryStore is an in-process RateStore for single-instance deployments and tests.
// Entries past their expiry are treated as absent even before ristretto evicts them.
type MemoryStore struct {
	cache *ristretto.Cache
	now   func() time.Time
}

// NewMemoryStore creates a MemoryStore bounded to maxItems entries.
// Every entry costs 1, so maxItems is the number of pairs held.
func NewMemoryStore(maxItems int64) (*MemoryStore, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        10 * maxItems,
		MaxCost:            maxItems,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create memory rate store failed: %w", err)
	}
	return &MemoryStore{cache: c, now: time.Now}, nil
}

// Lookup returns the live entry for the pair.
func (s *MemoryStore) Lookup(_ context.Context, from, to string) (RateEntry, bool, error) {
	v, ok := s.cache.Get(memoryKey(from, to))
	if !ok {
		return RateEntry{}, false, nil
	}
	entry, ok := v.(RateEntry)
	if !ok || entry.Expired(s.now()) {
		return RateEntry{}, false, nil
	}
	return entry, true, nil
}

// Upsert stores the pair and waits until the write is visible to readers.
func (s *MemoryStore) Upsert(_ context.Context, from, to string, rate float64, ttlHours int) error {
	entry := RateEntry{From: from, To: to, Rate: rate, ExpiresAt: ExpiresAt(s.now(), ttlHours)}
	if !s.cache.SetWithTTL(memoryKey(from, to), entry, 1, time.Duration(ttlHours)*time.Hour) {
		return fmt.Errorf("%w: memory cache rejected %s/%s", ErrStore, from, to)
	}
	s.cache.Wait()
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close releases the cache's background goroutines.
func (s *MemoryStore) Close() { s.cache.Close() }

func memoryKey(from, to string) string { return from + ":" + to }
