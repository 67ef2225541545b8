package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"rateservice/internal/store"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) FetchRates(ctx context.Context, base string) (map[string]float64, error) {
	args := m.Called(ctx, base)
	rates, _ := args.Get(0).(map[string]float64)
	return rates, args.Error(1)
}

// fakeStore is an in-memory RateStore whose calls can be failed on demand.
type fakeStore struct {
	mu        sync.Mutex
	entries   map[string]store.RateEntry
	now       func() time.Time
	lookupErr error
	upsertErr error
	upserts   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[string]store.RateEntry{}, now: time.Now}
}

func (f *fakeStore) Lookup(_ context.Context, from, to string) (store.RateEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return store.RateEntry{}, false, f.lookupErr
	}
	e, ok := f.entries[from+":"+to]
	return e, ok, nil
}

func (f *fakeStore) Upsert(_ context.Context, from, to string, rate float64, ttlHours int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.entries[from+":"+to] = store.RateEntry{From: from, To: to, Rate: rate, ExpiresAt: store.ExpiresAt(f.now(), ttlHours)}
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) put(from, to string, rate float64, expiresAt time.Time) {
	f.entries[from+":"+to] = store.RateEntry{From: from, To: to, Rate: rate, ExpiresAt: expiresAt}
}
