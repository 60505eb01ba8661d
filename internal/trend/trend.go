// Package trend classifies the short-term direction of a metal price.
//
// Two strategies are provided: SMA compares the current price with the
// simple moving average of the earliest points of a weekly series, Change
// looks only at the quote's percent change. A Selector picks a strategy per
// metal so callers never hard-code the choice.
package trend

import (
	"fmt"
	"strings"

	"metalrates/internal/market"
	"metalrates/internal/provider"
)

type Trend string

const (
	Up      Trend = "up"
	Down    Trend = "down"
	Neutral Trend = "neutral"
)

// DefaultWindow is the number of points averaged by SMA.
const DefaultWindow = 7

type Estimator interface {
	Name() string
	// Estimate classifies the trend. quote may be nil when no current price
	// is available.
	Estimate(history []provider.HistoryPoint, quote *provider.Quote) Trend
}

// SMA averages the earliest Window points of an oldest-first series.
type SMA struct {
	Window int
}

func (s SMA) Name() string { return "sma" }

func (s SMA) Estimate(history []provider.HistoryPoint, quote *provider.Quote) Trend {
	window := s.Window
	if window <= 0 {
		window = DefaultWindow
	}
	if len(history) < window || quote == nil || quote.Price <= 0 {
		return Neutral
	}
	avg, _ := Average(history[:window])
	if perGram(quote) > avg {
		return Up
	}
	return Down
}

// perGram puts the quote on the same per-gram scale as the history.
func perGram(quote *provider.Quote) float64 {
	if quote.Gram24k > 0 {
		return quote.Gram24k
	}
	return market.PerGram(quote.Price)
}

// Change follows the sign of the quote's percent change.
type Change struct{}

func (Change) Name() string { return "change" }

func (Change) Estimate(_ []provider.HistoryPoint, quote *provider.Quote) Trend {
	if quote == nil {
		return Neutral
	}
	if quote.ChangePercent >= 0 {
		return Up
	}
	return Down
}

// Average returns the mean price of points, or false for an empty slice.
func Average(points []provider.HistoryPoint) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}
	var sum float64
	for _, p := range points {
		sum += p.Price
	}
	return sum / float64(len(points)), true
}

// ByName resolves a strategy from configuration.
func ByName(name string) (Estimator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sma", "":
		return SMA{Window: DefaultWindow}, nil
	case "change":
		return Change{}, nil
	}
	return nil, fmt.Errorf("unknown trend strategy %q", name)
}

// Selector picks an Estimator per metal.
type Selector struct {
	byMetal  map[market.Metal]Estimator
	fallback Estimator
}

// NewSelector returns a selector that uses byMetal where set and fallback
// otherwise.
func NewSelector(fallback Estimator, byMetal map[market.Metal]Estimator) *Selector {
	if fallback == nil {
		fallback = SMA{Window: DefaultWindow}
	}
	m := make(map[market.Metal]Estimator, len(byMetal))
	for k, v := range byMetal {
		if v != nil {
			m[k] = v
		}
	}
	return &Selector{byMetal: m, fallback: fallback}
}

// DefaultSelector uses SMA for gold and Change for silver.
func DefaultSelector() *Selector {
	return NewSelector(SMA{Window: DefaultWindow}, map[market.Metal]Estimator{
		market.Gold:   SMA{Window: DefaultWindow},
		market.Silver: Change{},
	})
}

// Uniform applies the same strategy to every metal.
func Uniform(e Estimator) *Selector { return NewSelector(e, nil) }

func (s *Selector) For(m market.Metal) Estimator {
	if e, ok := s.byMetal[m]; ok {
		return e
	}
	return s.fallback
}

func (s *Selector) Estimate(m market.Metal, history []provider.HistoryPoint, quote *provider.Quote) Trend {
	return s.For(m).Estimate(history, quote)
}
