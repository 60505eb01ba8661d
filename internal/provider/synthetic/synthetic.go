package synthetic

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"metalrates/internal/market"
	"metalrates/internal/provider"
)

const (
	// JitterAmplitude bounds the per-quote noise to +/-0.05%.
	JitterAmplitude = 0.0005
	// halfSpread places bid and ask around the synthetic spot.
	halfSpread = 0.0005

	intradayStep   = 30 * time.Minute
	intradaySteps  = 48
	intradayDelta  = 2.5
	dailyDelta     = 10.0
	weekDays       = 7
	monthDays      = 30
	walkFloorRatio = 0.1
)

// Generator produces synthetic quotes and price histories from the static
// base snapshot. It never fails for supported parameters.
type Generator struct {
	src               Source
	now               func() time.Time
	applyCityVariance bool
}

type Option func(*Generator)

func WithSource(src Source) Option {
	return func(g *Generator) {
		if src != nil {
			g.src = src
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithCityVariance makes History start from the city-adjusted price instead
// of ignoring the city.
func WithCityVariance(on bool) Option {
	return func(g *Generator) { g.applyCityVariance = on }
}

func New(opts ...Option) *Generator {
	g := &Generator{src: defaultSource(), now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Name() string { return "synthetic" }

// Fetch implements provider.Provider.
func (g *Generator) Fetch(_ context.Context, req provider.Request) (provider.Quote, error) {
	return g.Quote(req.Metal, req.Currency, req.City), nil
}

// Quote returns base * (1 + variance[city] + jitter) * factor[currency] with
// all derived fields filled in.
func (g *Generator) Quote(metal market.Metal, currency market.Currency, city market.City) provider.Quote {
	base := metal.Base()
	factor := currency.Factor()
	jitter := (g.src.Float64() - 0.5) * 2 * JitterAmplitude
	price := base.Price * (1 + city.Variance() + jitter) * factor

	now := g.now()
	open := base.PrevClose * factor
	q := provider.Quote{
		Timestamp:     now.Unix(),
		Metal:         metal,
		Currency:      currency,
		City:          city,
		Exchange:      "synthetic",
		Symbol:        provider.Symbol(metal, currency),
		PrevClose:     open,
		Open:          open,
		Low:           min(open, price),
		High:          max(open, price),
		OpenTime:      startOfDay(now).Unix(),
		Price:         price,
		Change:        base.Change * factor,
		ChangePercent: base.ChangePercent,
		Ask:           price * (1 + halfSpread),
		Bid:           price * (1 - halfSpread),
		Source:        "synthetic",
	}
	return q.WithGramPrices()
}

// History walks forward from the base per-gram price and returns the series
// oldest-first, ending at now.
func (g *Generator) History(metal market.Metal, currency market.Currency, rng market.Range, city market.City) ([]provider.HistoryPoint, error) {
	var (
		steps  int
		delta  float64
		layout string
		at     func(now time.Time, back int) time.Time
	)
	switch rng {
	case market.Day:
		steps, delta, layout = intradaySteps, intradayDelta, time.RFC3339
		at = func(now time.Time, back int) time.Time { return now.Add(-time.Duration(back) * intradayStep) }
	case market.Week, market.Month:
		steps, delta, layout = weekDays, dailyDelta, time.DateOnly
		if rng == market.Month {
			steps = monthDays
		}
		at = func(now time.Time, back int) time.Time { return now.AddDate(0, 0, -back) }
	default:
		return nil, fmt.Errorf("%w: unsupported range %q", market.ErrInvalidParam, rng)
	}

	factor := currency.Factor()
	scale := factor / market.TroyOunceGrams
	price := market.PerGram(metal.Base().Price * factor)
	if g.applyCityVariance {
		price *= 1 + city.Variance()
	}
	floor := price * walkFloorRatio

	now := g.now().UTC()
	out := make([]provider.HistoryPoint, 0, steps+1)
	for i := steps; i >= 0; i-- {
		price += (g.src.Float64()*2 - 1) * delta * scale
		if price < floor {
			price = floor
		}
		ts := at(now, i)
		out = append(out, provider.HistoryPoint{
			Date:  ts.Format(layout),
			Price: round2(price),
			At:    ts,
		})
	}
	return out, nil
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
