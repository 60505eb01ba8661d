package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metalrates/internal/market"
)

var (
	// ErrNoCredentials means the provider is not configured for live calls.
	// Callers treat it as an expected state, not a failure.
	ErrNoCredentials = errors.New("no api credentials configured")
	// ErrRateLimited is returned by limiters that refuse to wait.
	ErrRateLimited = errors.New("rate limited")
)

// Quote is the normalized shape returned by all providers. JSON names follow
// the GoldAPI wire format so a live body decodes straight into it.
type Quote struct {
	Timestamp     int64           `json:"timestamp"`
	Metal         market.Metal    `json:"metal"`
	Currency      market.Currency `json:"currency"`
	City          market.City     `json:"city,omitempty"`
	Exchange      string          `json:"exchange"`
	Symbol        string          `json:"symbol"`
	PrevClose     float64         `json:"prev_close_price"`
	Open          float64         `json:"open_price"`
	Low           float64         `json:"low_price"`
	High          float64         `json:"high_price"`
	OpenTime      int64           `json:"open_time"`
	Price         float64         `json:"price"`
	Change        float64         `json:"ch"`
	ChangePercent float64         `json:"chp"`
	Ask           float64         `json:"ask"`
	Bid           float64         `json:"bid"`
	Gram24k       float64         `json:"price_gram_24k"`
	Gram22k       float64         `json:"price_gram_22k"`
	Gram21k       float64         `json:"price_gram_21k"`
	Gram20k       float64         `json:"price_gram_20k"`
	Gram18k       float64         `json:"price_gram_18k"`
	Gram16k       float64         `json:"price_gram_16k"`
	Gram14k       float64         `json:"price_gram_14k"`
	Gram10k       float64         `json:"price_gram_10k"`
	Source        string          `json:"source"`
}

// WithGramPrices returns a copy of q with every per-gram purity price
// derived from the spot price.
func (q Quote) WithGramPrices() Quote {
	g := market.PerGram(q.Price)
	for _, p := range market.Purities {
		*q.gramField(p.Karat) = g * p.Multiplier
	}
	return q
}

// HasGramPrices reports whether all purity prices are populated.
func (q Quote) HasGramPrices() bool {
	for _, p := range market.Purities {
		if *q.gramField(p.Karat) <= 0 {
			return false
		}
	}
	return true
}

// GramPricesOrdered reports whether purer karats never cost less per gram
// than less pure ones.
func (q Quote) GramPricesOrdered() bool {
	for i := 1; i < len(market.Purities); i++ {
		if *q.gramField(market.Purities[i].Karat) > *q.gramField(market.Purities[i-1].Karat) {
			return false
		}
	}
	return true
}

// GramPrice returns the per-gram price at the given karat.
func (q Quote) GramPrice(karat int) (float64, bool) {
	f := q.gramField(karat)
	if f == nil {
		return 0, false
	}
	return *f, true
}

func (q *Quote) gramField(karat int) *float64 {
	switch karat {
	case 24:
		return &q.Gram24k
	case 22:
		return &q.Gram22k
	case 21:
		return &q.Gram21k
	case 20:
		return &q.Gram20k
	case 18:
		return &q.Gram18k
	case 16:
		return &q.Gram16k
	case 14:
		return &q.Gram14k
	case 10:
		return &q.Gram10k
	}
	return nil
}

// Symbol formats the pair symbol used on quotes, e.g. "XAU/INR".
func Symbol(m market.Metal, c market.Currency) string {
	return fmt.Sprintf("%s/%s", m, c)
}

// HistoryPoint is one sample of a price series. Price is per gram.
type HistoryPoint struct {
	Date  string    `json:"date"`
	Price float64   `json:"price"`
	At    time.Time `json:"-"`
}

// Request identifies a single quote lookup.
type Request struct {
	Metal    market.Metal
	Currency market.Currency
	City     market.City
}

// Key identifies the upstream pair; the city is not part of it because no
// live source quotes per city.
func (r Request) Key() string { return fmt.Sprintf("%s:%s", r.Metal, r.Currency) }

func (r Request) String() string { return fmt.Sprintf("%s/%s@%s", r.Metal, r.Currency, r.City) }

type Provider interface {
	Name() string
	Fetch(ctx context.Context, req Request) (Quote, error)
}
