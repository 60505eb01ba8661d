package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"metalrates/internal/logger"
	"metalrates/internal/provider"
)

// Store keeps quotes by key for a TTL. Writes are last-write-wins.
type Store interface {
	Get(ctx context.Context, key string) (provider.Quote, bool, error)
	Set(ctx context.Context, key string, q provider.Quote, ttl time.Duration) error
}

// Provider caches live quotes per metal/currency pair for a TTL. Concurrent
// misses for the same pair share one upstream call. Failures are never
// cached, so the next call retries the upstream.
type Provider struct {
	P     provider.Provider
	Store Store
	TTL   time.Duration

	sf singleflight.Group
}

func (c *Provider) Name() string { return c.P.Name() }

func (c *Provider) Fetch(ctx context.Context, req provider.Request) (provider.Quote, error) {
	if c.Store == nil || c.TTL <= 0 {
		return c.P.Fetch(ctx, req)
	}

	key := "quote:" + req.Key()
	q, ok, err := c.Store.Get(ctx, key)
	if err != nil {
		logger.Error("cache get %s: %v", key, err)
	}
	if ok {
		q.City = req.City
		return q, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		fresh, err := c.P.Fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := c.Store.Set(ctx, key, fresh, c.TTL); err != nil {
			logger.Error("cache set %s: %v", key, err)
		}
		return fresh, nil
	})
	if err != nil {
		return provider.Quote{}, err
	}
	q = v.(provider.Quote)
	q.City = req.City
	return q, nil
}

// entry stores a cached quote with expiry.
type entry struct {
	expiresAt time.Time
	quote     provider.Quote
}

// Memory is an in-process Store with a best-effort size cap.
type Memory struct {
	MaxItems int

	mu    sync.RWMutex
	items map[string]entry
}

func NewMemory(maxItems int) *Memory {
	return &Memory{MaxItems: maxItems, items: make(map[string]entry)}
}

func (m *Memory) Get(_ context.Context, key string) (provider.Quote, bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || !time.Now().Before(e.expiresAt) {
		return provider.Quote{}, false, nil
	}
	return e.quote, true, nil
}

func (m *Memory) Set(_ context.Context, key string, q provider.Quote, ttl time.Duration) error {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]entry)
	}
	m.items[key] = entry{expiresAt: now.Add(ttl), quote: q}
	if m.MaxItems > 0 && len(m.items) > m.MaxItems {
		// remove expired first, then arbitrary keys other than the one just written
		for k, v := range m.items {
			if now.After(v.expiresAt) {
				delete(m.items, k)
			}
		}
		for k := range m.items {
			if len(m.items) <= m.MaxItems {
				break
			}
			if k != key {
				delete(m.items, k)
			}
		}
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
