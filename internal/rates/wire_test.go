package rates

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"metalrates/internal/config"
	"metalrates/internal/market"
)

func goldAPIServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("x-access-token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"timestamp": 1760860800,
			"metal":     "XAU",
			"currency":  "USD",
			"price":     3110.35,
			"ch":        12.5,
			"chp":       0.4,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuild_NoKeyServesSynthetic(t *testing.T) {
	var hits atomic.Int32
	srv := goldAPIServer(t, &hits)

	cfg := config.Default()
	cfg.GoldAPI.BaseURL = srv.URL

	svc, closeFn, err := Build(t.Context(), cfg)
	require.NoError(t, err)
	defer closeFn()

	q := svc.GetQuote(t.Context(), market.Gold, market.USD, market.National)
	require.Equal(t, "synthetic", q.Source)
	require.Zero(t, hits.Load())
}

func TestBuild_LiveWithMemoryCache(t *testing.T) {
	var hits atomic.Int32
	srv := goldAPIServer(t, &hits)

	cfg := config.Default()
	cfg.GoldAPI.APIKey = "secret"
	cfg.GoldAPI.BaseURL = srv.URL

	svc, closeFn, err := Build(t.Context(), cfg)
	require.NoError(t, err)
	defer closeFn()

	for _, city := range []market.City{market.Mumbai, market.Delhi, market.Mumbai} {
		q := svc.GetQuote(t.Context(), market.Gold, market.USD, city)
		require.Equal(t, "goldapi", q.Source)
		require.Equal(t, city, q.City)
		require.InDelta(t, 100.0, q.Gram24k, 1e-9)
	}
	require.Equal(t, int32(1), hits.Load())
}

func TestBuild_RateLimitedFallsBack(t *testing.T) {
	var hits atomic.Int32
	srv := goldAPIServer(t, &hits)

	cfg := config.Default()
	cfg.GoldAPI.APIKey = "secret"
	cfg.GoldAPI.BaseURL = srv.URL
	cfg.GoldAPI.MaxRequestsPerMinute = 1
	cfg.Cache.TTLSeconds = 0

	svc, closeFn, err := Build(t.Context(), cfg)
	require.NoError(t, err)
	defer closeFn()

	first := svc.GetQuote(t.Context(), market.Gold, market.USD, market.National)
	second := svc.GetQuote(t.Context(), market.Gold, market.USD, market.National)
	require.Equal(t, "goldapi", first.Source)
	require.Equal(t, "synthetic", second.Source)
	require.Equal(t, int32(1), hits.Load())
}

func TestBuild_RedisCache(t *testing.T) {
	var hits atomic.Int32
	srv := goldAPIServer(t, &hits)
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.GoldAPI.APIKey = "secret"
	cfg.GoldAPI.BaseURL = srv.URL
	cfg.Cache.RedisURL = "redis://" + mr.Addr()

	svc, closeFn, err := Build(t.Context(), cfg)
	require.NoError(t, err)
	defer closeFn()

	for i := 0; i < 3; i++ {
		q := svc.GetQuote(t.Context(), market.Gold, market.USD, market.Pune)
		require.Equal(t, "goldapi", q.Source)
	}
	require.Equal(t, int32(1), hits.Load())
	require.True(t, mr.Exists("metalrates:quote:XAU:USD"))
}

func TestBuild_UnknownTrendStrategy(t *testing.T) {
	cfg := config.Default()
	cfg.Trend.Silver = "ema"
	_, closeFn, err := Build(t.Context(), cfg)
	require.Error(t, err)
	closeFn()
}
