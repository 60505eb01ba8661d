package rates

import (
	"context"
	"time"

	"metalrates/internal/config"
	"metalrates/internal/httpx"
	"metalrates/internal/logger"
	"metalrates/internal/market"
	"metalrates/internal/provider"
	"metalrates/internal/provider/cache"
	"metalrates/internal/provider/goldapi"
	"metalrates/internal/provider/ratelimit"
	"metalrates/internal/provider/synthetic"
	"metalrates/internal/trend"
)

// Build assembles a Service from cfg. The returned func releases external
// connections and is safe to call when none were opened.
func Build(ctx context.Context, cfg config.Config) (*Service, func(), error) {
	closeFn := func() {}

	sel, err := selectorFrom(cfg.Trend)
	if err != nil {
		return nil, closeFn, err
	}

	httpClient := httpx.New(time.Duration(cfg.GoldAPI.TimeoutSec) * time.Second)
	client := goldapi.New(cfg.GoldAPI.APIKey,
		goldapi.WithBaseURL(cfg.GoldAPI.BaseURL),
		goldapi.WithHTTPClient(httpClient),
	)
	synth := synthetic.New(synthetic.WithCityVariance(cfg.History.ApplyCityVariance))
	if !client.HasKey() {
		logger.Info("gold api key not set; serving synthetic rates")
		return New(synth, WithLive(client), WithTrendSelector(sel)), closeFn, nil
	}

	var p provider.Provider = client
	// Prefer token bucket with burst if RPM is set, otherwise use min-interval
	if cfg.GoldAPI.MaxRequestsPerMinute > 0 {
		p = &ratelimit.TokenBucketProvider{
			P:    p,
			TB:   ratelimit.PerMinute(cfg.GoldAPI.MaxRequestsPerMinute, cfg.GoldAPI.Burst),
			Wait: cfg.GoldAPI.WaitForToken,
		}
	} else if cfg.GoldAPI.MinRequestIntervalSec > 0 {
		p = &ratelimit.MinInterval{
			P:        p,
			Interval: time.Duration(cfg.GoldAPI.MinRequestIntervalSec) * time.Second,
			Wait:     cfg.GoldAPI.WaitForToken,
		}
	}

	if cfg.Cache.TTLSeconds > 0 {
		var store cache.Store = cache.NewMemory(cfg.Cache.MaxItems)
		if cfg.Cache.RedisURL != "" {
			rc, err := cache.ConnectRedis(ctx, cfg.Cache.RedisURL)
			if err != nil {
				logger.Error("redis unavailable, using in-memory quote cache: %v", err)
			} else {
				store = cache.NewRedis(rc, "metalrates:")
				closeFn = func() { _ = rc.Close() }
				logger.Info("quote cache: redis")
			}
		}
		p = &cache.Provider{P: p, Store: store, TTL: time.Duration(cfg.Cache.TTLSeconds) * time.Second}
	}

	return New(synth, WithLive(p), WithTrendSelector(sel)), closeFn, nil
}

func selectorFrom(cfg config.Trend) (*trend.Selector, error) {
	gold, err := trend.ByName(cfg.Gold)
	if err != nil {
		return nil, err
	}
	silver, err := trend.ByName(cfg.Silver)
	if err != nil {
		return nil, err
	}
	return trend.NewSelector(gold, map[market.Metal]trend.Estimator{
		market.Gold:   gold,
		market.Silver: silver,
	}), nil
}
