package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metalrates/internal/config"
	"metalrates/internal/logger"
	"metalrates/internal/market"
	"metalrates/internal/poller"
	"metalrates/internal/provider/cache"
	"metalrates/internal/rates"
	"metalrates/internal/stream"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Fatal("config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, closeRates, err := rates.Build(ctx, cfg)
	if err != nil {
		logger.Fatal("rates: %v", err)
	}
	defer closeRates()

	hub := stream.NewHub(stream.DefaultBuffer)
	var pub poller.Publisher = hub
	if cfg.Cache.RedisURL != "" {
		// pub/sub holds its own connection
		rc, err := cache.ConnectRedis(ctx, cfg.Cache.RedisURL)
		if err != nil {
			logger.Error("redis relay disabled: %v", err)
		} else {
			defer rc.Close()
			relay := stream.NewRelay(rc, stream.DefaultChannel, hub)
			go relay.Run(ctx)
			select {
			case <-relay.Ready():
			case <-time.After(5 * time.Second):
				logger.Error("redis relay: subscription not confirmed yet, local clients may miss early snapshots")
			case <-ctx.Done():
			}
			pub = relay
		}
	}

	// Config.Validate already accepted these.
	currency, _ := market.ParseCurrency(cfg.Poll.Currency)
	city, _ := market.ParseCity(cfg.Poll.City)
	poll := poller.New(svc, pub, poller.Config{
		QuoteInterval: time.Duration(cfg.Poll.QuoteIntervalSec) * time.Second,
		CityInterval:  time.Duration(cfg.Poll.CityIntervalSec) * time.Second,
		Currency:      currency,
		City:          city,
	})
	pollDone := make(chan struct{})
	go func() {
		poll.Run(ctx)
		close(pollDone)
	}()

	s := &server{
		rates:   svc,
		poller:  poll,
		hub:     hub,
		timeout: time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server: %v", err)
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down")
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown: %v", err)
	}
	<-pollDone
}
