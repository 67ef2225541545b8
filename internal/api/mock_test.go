package api

import (
	"context"
)

// mockResolver implements service.RateResolver for testing.
type mockResolver struct {
	resolveFunc func(ctx context.Context, from, to string) (float64, error)
	calls       int
}

func (m *mockResolver) Resolve(ctx context.Context, from, to string) (float64, error) {
	m.calls++
	return m.resolveFunc(ctx, from, to)
}

// mockEnqueuer implements WarmEnqueuer for testing.
type mockEnqueuer struct {
	enqueueFunc func(ctx context.Context, base string) (string, error)
}

func (m *mockEnqueuer) EnqueueWarm(ctx context.Context, base string) (string, error) {
	return m.enqueueFunc(ctx, base)
}
