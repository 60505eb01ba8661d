// Package poller refreshes the dashboard snapshots on fixed intervals and
// hands them to a publisher.
package poller

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"metalrates/internal/aggregate"
	"metalrates/internal/logger"
	"metalrates/internal/market"
	"metalrates/internal/provider"
)

const (
	TopicQuotes = "quotes"
	TopicCities = "cities"
)

type Source interface {
	GetQuote(ctx context.Context, metal market.Metal, currency market.Currency, city market.City) provider.Quote
	CityRates(ctx context.Context, currency market.Currency) ([]aggregate.CityRate, error)
}

type Publisher interface {
	Publish(topic string, payload []byte)
}

// Snapshot is one published poll result. Seq orders snapshots by the time
// their poll started.
type Snapshot struct {
	Kind     string               `json:"kind"`
	Seq      uint64               `json:"seq"`
	Currency market.Currency      `json:"currency"`
	City     market.City          `json:"city,omitempty"`
	Quotes   []provider.Quote     `json:"quotes,omitempty"`
	Cities   []aggregate.CityRate `json:"cities,omitempty"`
	At       time.Time            `json:"at"`
}

type Config struct {
	QuoteInterval time.Duration
	CityInterval  time.Duration
	Currency      market.Currency
	City          market.City
}

type selection struct {
	currency market.Currency
	city     market.City
}

// Poller runs the quote and city-table loops. A poll that started before the
// latest published one of the same kind is discarded.
type Poller struct {
	src Source
	pub Publisher
	cfg Config
	now func() time.Time

	seq atomic.Uint64

	mu     sync.RWMutex
	sel    selection
	latest map[string]Snapshot
}

func New(src Source, pub Publisher, cfg Config) *Poller {
	if cfg.QuoteInterval <= 0 {
		cfg.QuoteInterval = time.Minute
	}
	if cfg.CityInterval <= 0 {
		cfg.CityInterval = 5 * time.Minute
	}
	if cfg.Currency == "" {
		cfg.Currency = market.INR
	}
	if cfg.City == "" {
		cfg.City = market.National
	}
	return &Poller{
		src:    src,
		pub:    pub,
		cfg:    cfg,
		now:    time.Now,
		sel:    selection{currency: cfg.Currency, city: cfg.City},
		latest: make(map[string]Snapshot),
	}
}

// Run polls both snapshots immediately and then on their intervals until ctx
// is canceled.
func (p *Poller) Run(ctx context.Context) {
	logger.Info("poller started: quotes every %s, cities every %s", p.cfg.QuoteInterval, p.cfg.CityInterval)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.loop(ctx, p.cfg.QuoteInterval, p.PollQuotes)
	}()
	go func() {
		defer wg.Done()
		p.loop(ctx, p.cfg.CityInterval, p.PollCities)
	}()
	wg.Wait()
	logger.Info("poller stopped")
}

func (p *Poller) loop(ctx context.Context, interval time.Duration, poll func(context.Context)) {
	poll(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll(ctx)
		}
	}
}

// SetSelection changes the polled currency and city and refreshes both
// snapshots at once.
func (p *Poller) SetSelection(ctx context.Context, currency market.Currency, city market.City) {
	p.mu.Lock()
	p.sel = selection{currency: currency, city: city}
	p.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); p.PollQuotes(ctx) }()
	go func() { defer wg.Done(); p.PollCities(ctx) }()
	wg.Wait()
}

func (p *Poller) current() selection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sel
}

// PollQuotes fetches gold and silver concurrently for the current selection.
func (p *Poller) PollQuotes(ctx context.Context) {
	seq := p.seq.Add(1)
	sel := p.current()
	quotes := make([]provider.Quote, len(market.Metals))
	var g errgroup.Group
	for i, m := range market.Metals {
		g.Go(func() error {
			quotes[i] = p.src.GetQuote(ctx, m, sel.currency, sel.city)
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		return
	}
	p.commit(Snapshot{
		Kind:     TopicQuotes,
		Seq:      seq,
		Currency: sel.currency,
		City:     sel.city,
		Quotes:   quotes,
		At:       p.now().UTC(),
	})
}

func (p *Poller) PollCities(ctx context.Context) {
	seq := p.seq.Add(1)
	sel := p.current()
	rows, err := p.src.CityRates(ctx, sel.currency)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("poll city rates %s: %v", sel.currency, err)
		}
		return
	}
	p.commit(Snapshot{
		Kind:     TopicCities,
		Seq:      seq,
		Currency: sel.currency,
		Cities:   rows,
		At:       p.now().UTC(),
	})
}

// commit stores and publishes s unless a newer snapshot of the same kind is
// already in. Publishing happens under the lock so subscribers see snapshots
// in Seq order.
func (p *Poller) commit(s Snapshot) bool {
	payload, err := json.Marshal(s)
	if err != nil {
		logger.Error("poller: marshal %s snapshot: %v", s.Kind, err)
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.latest[s.Kind]; ok && cur.Seq > s.Seq {
		logger.Debug("poller: dropping stale %s snapshot %d (have %d)", s.Kind, s.Seq, cur.Seq)
		return false
	}
	p.latest[s.Kind] = s
	if p.pub != nil {
		p.pub.Publish(s.Kind, payload)
	}
	return true
}

// Latest returns the most recent snapshot of kind.
func (p *Poller) Latest(kind string) (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.latest[kind]
	return s, ok
}
