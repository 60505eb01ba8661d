// Package rates is the dashboard-facing service. It prefers the live provider
// and falls back to synthetic data on any failure, so quote lookups never
// fail for supported parameters.
package rates

//go:generate mockgen -destination=mock_provider_test.go -package=rates metalrates/internal/provider Provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"metalrates/internal/aggregate"
	"metalrates/internal/logger"
	"metalrates/internal/market"
	"metalrates/internal/provider"
	"metalrates/internal/provider/synthetic"
	"metalrates/internal/trend"
)

// DefaultClosingDays is the row count of the closing-rates table.
const DefaultClosingDays = 10

// Service composes the live provider, the synthetic generator and the trend
// strategies.
type Service struct {
	live   provider.Provider
	synth  *synthetic.Generator
	trends *trend.Selector
	now    func() time.Time
}

type Option func(*Service)

// WithLive sets the live provider tried before the synthetic fallback.
func WithLive(p provider.Provider) Option {
	return func(s *Service) { s.live = p }
}

func WithTrendSelector(sel *trend.Selector) Option {
	return func(s *Service) {
		if sel != nil {
			s.trends = sel
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(synth *synthetic.Generator, opts ...Option) *Service {
	if synth == nil {
		synth = synthetic.New()
	}
	s := &Service{synth: synth, trends: trend.DefaultSelector(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetQuote returns the live quote when available and a synthetic one
// otherwise.
func (s *Service) GetQuote(ctx context.Context, metal market.Metal, currency market.Currency, city market.City) provider.Quote {
	req := provider.Request{Metal: metal, Currency: currency, City: city}
	if s.live != nil {
		q, err := s.live.Fetch(ctx, req)
		if err == nil {
			return q
		}
		logFallback(s.live.Name(), req, err)
	}
	return s.synth.Quote(metal, currency, city)
}

func logFallback(name string, req provider.Request, err error) {
	switch {
	case errors.Is(err, provider.ErrNoCredentials), errors.Is(err, provider.ErrRateLimited):
		logger.Debug("%s %s: %v, using synthetic quote", name, req, err)
	default:
		logger.Error("%s %s: %v, using synthetic quote", name, req, err)
	}
}

// GetHistory returns a synthetic per-gram series, oldest first.
func (s *Service) GetHistory(_ context.Context, metal market.Metal, currency market.Currency, rng market.Range, city market.City) ([]provider.HistoryPoint, error) {
	return s.synth.History(metal, currency, rng, city)
}

// GetLiveHistory is GetHistory with the newest intraday point replaced by the
// current quote. Other ranges are returned unchanged.
func (s *Service) GetLiveHistory(ctx context.Context, metal market.Metal, currency market.Currency, rng market.Range, city market.City) ([]provider.HistoryPoint, error) {
	series, err := s.GetHistory(ctx, metal, currency, rng, city)
	if err != nil || rng != market.Day {
		return series, err
	}
	q := s.GetQuote(ctx, metal, currency, city)
	return aggregate.SpliceLive(series, market.PerGram(q.Price), s.now()), nil
}

// TrendReport is the outcome of one trend evaluation.
type TrendReport struct {
	Metal    market.Metal    `json:"metal"`
	Currency market.Currency `json:"currency"`
	City     market.City     `json:"city"`
	Strategy string          `json:"strategy"`
	Trend    trend.Trend     `json:"trend"`
	Quote    provider.Quote  `json:"quote"`
}

// Trend fetches the weekly history and the quote concurrently and applies
// the strategy configured for the metal.
func (s *Service) Trend(ctx context.Context, metal market.Metal, currency market.Currency, city market.City) (TrendReport, error) {
	var (
		history []provider.HistoryPoint
		quote   provider.Quote
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = s.GetHistory(gctx, metal, currency, market.Week, city)
		return err
	})
	g.Go(func() error {
		quote = s.GetQuote(gctx, metal, currency, city)
		return nil
	})
	if err := g.Wait(); err != nil {
		return TrendReport{}, fmt.Errorf("trend %s/%s: %w", metal, currency, err)
	}

	est := s.trends.For(metal)
	return TrendReport{
		Metal:    metal,
		Currency: currency,
		City:     city,
		Strategy: est.Name(),
		Trend:    est.Estimate(history, &quote),
		Quote:    quote,
	}, nil
}

// CityRates quotes gold and silver for every supported city concurrently and
// returns rows in the fixed city order.
func (s *Service) CityRates(ctx context.Context, currency market.Currency) ([]aggregate.CityRate, error) {
	rows := make([]aggregate.CityRate, len(market.Cities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, city := range market.Cities {
		g.Go(func() error {
			gold := s.GetQuote(gctx, market.Gold, currency, city)
			silver := s.GetQuote(gctx, market.Silver, currency, city)
			rows[i] = aggregate.CityRateFrom(city, gold, silver)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Closing returns the newest days rows of daily closing rates, newest first.
func (s *Service) Closing(ctx context.Context, currency market.Currency, city market.City, days int) ([]aggregate.ClosingRate, error) {
	if days <= 0 {
		days = DefaultClosingDays
	}
	gold, err := s.GetHistory(ctx, market.Gold, currency, market.Month, city)
	if err != nil {
		return nil, err
	}
	silver, err := s.GetHistory(ctx, market.Silver, currency, market.Month, city)
	if err != nil {
		return nil, err
	}
	return aggregate.ClosingRates(gold, silver, days), nil
}
