package ratelimit

import (
	"context"
	"sync"
	"time"

	"metalrates/internal/provider"
)

// MinInterval wraps a provider and enforces a minimum time between calls.
// With Wait set, concurrent calls wait until the interval has elapsed since
// the last call or the context is canceled; otherwise they fail fast with
// provider.ErrRateLimited so the caller can fall back.
type MinInterval struct {
	P        provider.Provider
	Interval time.Duration
	Wait     bool

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) Fetch(ctx context.Context, req provider.Request) (provider.Quote, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		wait := time.Until(m.last.Add(m.Interval))
		m.mu.Unlock()
		if wait > 0 {
			if !m.Wait {
				return provider.Quote{}, provider.ErrRateLimited
			}
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return provider.Quote{}, ctx.Err()
			case <-t.C:
			}
		}
	}
	q, err := m.P.Fetch(ctx, req)
	if m.Interval > 0 {
		m.mu.Lock()
		m.last = time.Now()
		m.mu.Unlock()
	}
	return q, err
}
