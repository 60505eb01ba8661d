package goldapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"metalrates/internal/market"
	"metalrates/internal/provider"
)

var (
	ErrUnexpectedStatus = errors.New("goldapi: unexpected status")
	ErrMalformedQuote   = errors.New("goldapi: malformed quote")
)

const maxBody = 1 << 20

// wireQuote mirrors the upstream body. Pointers separate "absent" from zero
// for the fields that must be present.
type wireQuote struct {
	Timestamp     int64    `json:"timestamp"`
	Metal         string   `json:"metal"`
	Currency      string   `json:"currency"`
	Exchange      string   `json:"exchange"`
	Symbol        string   `json:"symbol"`
	PrevClose     float64  `json:"prev_close_price"`
	Open          float64  `json:"open_price"`
	Low           float64  `json:"low_price"`
	High          float64  `json:"high_price"`
	OpenTime      int64    `json:"open_time"`
	Price         *float64 `json:"price"`
	Change        float64  `json:"ch"`
	ChangePercent float64  `json:"chp"`
	Ask           float64  `json:"ask"`
	Bid           float64  `json:"bid"`
	Gram24k       float64  `json:"price_gram_24k"`
	Gram22k       float64  `json:"price_gram_22k"`
	Gram21k       float64  `json:"price_gram_21k"`
	Gram20k       float64  `json:"price_gram_20k"`
	Gram18k       float64  `json:"price_gram_18k"`
	Gram16k       float64  `json:"price_gram_16k"`
	Gram14k       float64  `json:"price_gram_14k"`
	Gram10k       float64  `json:"price_gram_10k"`
	Error         string   `json:"error"`
}

// GetQuote retrieves the current spot quote for metal in currency.
func (c *Client) GetQuote(ctx context.Context, metal market.Metal, currency market.Currency, opts ...Option) (provider.Quote, error) {
	var override = &Client{
		baseURL:    c.baseURL,
		apiKey:     c.apiKey,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
	}
	for _, opt := range opts {
		opt(override)
	}
	if override.apiKey == "" {
		return provider.Quote{}, provider.ErrNoCredentials
	}

	url := fmt.Sprintf("%s/%s/%s", override.baseURL, metal, currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return provider.Quote{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header
	req.Header.Set("x-access-token", override.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := override.httpClient.Do(req)
	if err != nil {
		return provider.Quote{}, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		return provider.Quote{}, fmt.Errorf("%w: %d unauthorized", ErrUnexpectedStatus, res.StatusCode)
	case res.StatusCode == http.StatusTooManyRequests:
		return provider.Quote{}, fmt.Errorf("%w: %d %w", ErrUnexpectedStatus, res.StatusCode, provider.ErrRateLimited)
	default:
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return provider.Quote{}, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, res.StatusCode, strings.TrimSpace(string(b)))
	}

	var w wireQuote
	if err := json.NewDecoder(io.LimitReader(res.Body, maxBody)).Decode(&w); err != nil {
		return provider.Quote{}, fmt.Errorf("%w: decoding: %v", ErrMalformedQuote, err)
	}
	return w.toQuote(metal, currency)
}

// Fetch implements provider.Provider. The upstream has no city notion; the
// requested city is echoed on the quote.
func (c *Client) Fetch(ctx context.Context, req provider.Request) (provider.Quote, error) {
	q, err := c.GetQuote(ctx, req.Metal, req.Currency)
	if err != nil {
		return provider.Quote{}, err
	}
	q.City = req.City
	return q, nil
}

func (w wireQuote) toQuote(metal market.Metal, currency market.Currency) (provider.Quote, error) {
	if w.Error != "" {
		return provider.Quote{}, fmt.Errorf("%w: upstream error %q", ErrMalformedQuote, w.Error)
	}
	if w.Price == nil || *w.Price <= 0 {
		return provider.Quote{}, fmt.Errorf("%w: missing or non-positive price", ErrMalformedQuote)
	}
	if w.Metal != "" && !strings.EqualFold(w.Metal, string(metal)) {
		return provider.Quote{}, fmt.Errorf("%w: metal %q, want %s", ErrMalformedQuote, w.Metal, metal)
	}
	if w.Currency != "" && !strings.EqualFold(w.Currency, string(currency)) {
		return provider.Quote{}, fmt.Errorf("%w: currency %q, want %s", ErrMalformedQuote, w.Currency, currency)
	}

	q := provider.Quote{
		Timestamp:     w.Timestamp,
		Metal:         metal,
		Currency:      currency,
		Exchange:      w.Exchange,
		Symbol:        provider.Symbol(metal, currency),
		PrevClose:     w.PrevClose,
		Open:          w.Open,
		Low:           w.Low,
		High:          w.High,
		OpenTime:      w.OpenTime,
		Price:         *w.Price,
		Change:        w.Change,
		ChangePercent: w.ChangePercent,
		Ask:           w.Ask,
		Bid:           w.Bid,
		Gram24k:       w.Gram24k,
		Gram22k:       w.Gram22k,
		Gram21k:       w.Gram21k,
		Gram20k:       w.Gram20k,
		Gram18k:       w.Gram18k,
		Gram16k:       w.Gram16k,
		Gram14k:       w.Gram14k,
		Gram10k:       w.Gram10k,
		Source:        "goldapi",
	}
	if !q.HasGramPrices() || !q.GramPricesOrdered() {
		q = q.WithGramPrices()
	}
	return q, nil
}
