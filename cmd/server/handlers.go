package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"metalrates/internal/aggregate"
	"metalrates/internal/market"
	"metalrates/internal/poller"
	"metalrates/internal/provider"
	"metalrates/internal/rates"
	"metalrates/internal/stream"
)

const maxClosingDays = 31

type server struct {
	rates   *rates.Service
	poller  *poller.Poller
	hub     *stream.Hub
	timeout time.Duration
}

// handler returns the full middleware chain around the routes.
func (s *server) handler() http.Handler {
	return withJSONHeaders(withGzip(recoverPanic(limitBody(s.routes()))))
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/quote", s.handleQuote)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/trend", s.handleTrend)
	mux.HandleFunc("GET /api/cities", s.handleCities)
	mux.HandleFunc("GET /api/closing", s.handleClosing)
	mux.HandleFunc("GET /api/poll", s.handleGetPoll)
	mux.HandleFunc("POST /api/poll", s.handleSetPoll)
	mux.HandleFunc("GET /ws", s.hub.ServeWS)
	return mux
}

// params holds the parsed common query parameters.
type params struct {
	Metal    market.Metal
	Currency market.Currency
	City     market.City
	Range    market.Range
}

func parseParams(r *http.Request) (params, error) {
	q := r.URL.Query()
	p := params{Metal: market.Gold, Currency: market.INR, City: market.National, Range: market.Day}
	var err error
	if v := q.Get("metal"); v != "" {
		if p.Metal, err = market.ParseMetal(v); err != nil {
			return p, err
		}
	}
	if v := q.Get("currency"); v != "" {
		if p.Currency, err = market.ParseCurrency(v); err != nil {
			return p, err
		}
	}
	if v := q.Get("city"); v != "" {
		if p.City, err = market.ParseCity(v); err != nil {
			return p, err
		}
	}
	if v := q.Get("range"); v != "" {
		if p.Range, err = market.ParseRange(v); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (s *server) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.timeout)
}

func (s *server) handleQuote(w http.ResponseWriter, r *http.Request) {
	p, err := parseParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	writeJSON(w, http.StatusOK, s.rates.GetQuote(ctx, p.Metal, p.Currency, p.City))
}

type historyResponse struct {
	Metal    market.Metal            `json:"metal"`
	Currency market.Currency         `json:"currency"`
	City     market.City             `json:"city"`
	Range    market.Range            `json:"range"`
	Points   []provider.HistoryPoint `json:"points"`
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	p, err := parseParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := s.ctx(r)
	defer cancel()

	var points []provider.HistoryPoint
	if live, _ := strconv.ParseBool(r.URL.Query().Get("live")); live {
		points, err = s.rates.GetLiveHistory(ctx, p.Metal, p.Currency, p.Range, p.City)
	} else {
		points, err = s.rates.GetHistory(ctx, p.Metal, p.Currency, p.Range, p.City)
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Metal:    p.Metal,
		Currency: p.Currency,
		City:     p.City,
		Range:    p.Range,
		Points:   points,
	})
}

func (s *server) handleTrend(w http.ResponseWriter, r *http.Request) {
	p, err := parseParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	report, err := s.rates.Trend(ctx, p.Metal, p.Currency, p.City)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type citiesResponse struct {
	Currency market.Currency      `json:"currency"`
	Cities   []aggregate.CityRate `json:"cities"`
}

// handleCities serves the poller's snapshot when it matches the currency and
// computes the table otherwise.
func (s *server) handleCities(w http.ResponseWriter, r *http.Request) {
	p, err := parseParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.poller != nil {
		if snap, ok := s.poller.Latest(poller.TopicCities); ok && snap.Currency == p.Currency {
			writeJSON(w, http.StatusOK, citiesResponse{Currency: p.Currency, Cities: snap.Cities})
			return
		}
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	rows, err := s.rates.CityRates(ctx, p.Currency)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, citiesResponse{Currency: p.Currency, Cities: rows})
}

type closingResponse struct {
	Currency market.Currency         `json:"currency"`
	City     market.City             `json:"city"`
	Rows     []aggregate.ClosingRate `json:"rows"`
}

func (s *server) handleClosing(w http.ResponseWriter, r *http.Request) {
	p, err := parseParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days := rates.DefaultClosingDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxClosingDays {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 31")
			return
		}
		days = n
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	rows, err := s.rates.Closing(ctx, p.Currency, p.City, days)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, closingResponse{Currency: p.Currency, City: p.City, Rows: rows})
}

type pollResponse struct {
	Quotes *poller.Snapshot `json:"quotes,omitempty"`
	Cities *poller.Snapshot `json:"cities,omitempty"`
}

func (s *server) latestSnapshots() pollResponse {
	var resp pollResponse
	if snap, ok := s.poller.Latest(poller.TopicQuotes); ok {
		resp.Quotes = &snap
	}
	if snap, ok := s.poller.Latest(poller.TopicCities); ok {
		resp.Cities = &snap
	}
	return resp
}

func (s *server) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.latestSnapshots())
}

type pollBody struct {
	Currency string `json:"currency"`
	City     string `json:"city"`
}

// handleSetPoll switches the polled currency and city and returns the fresh
// snapshots.
func (s *server) handleSetPoll(w http.ResponseWriter, r *http.Request) {
	var b pollBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	currency, err := market.ParseCurrency(b.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	city := market.National
	if b.City != "" {
		if city, err = market.ParseCity(b.City); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	s.poller.SetSelection(ctx, currency, city)
	writeJSON(w, http.StatusOK, s.latestSnapshots())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, market.ErrInvalidParam):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
