// Command fetch prints one quote, history series, trend, city table or
// closing table as JSON. It uses the same configuration as the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"metalrates/internal/config"
	"metalrates/internal/logger"
	"metalrates/internal/market"
	"metalrates/internal/rates"
)

func main() {
	var (
		metalFlag    string
		currencyFlag string
		cityFlag     string
		rangeFlag    string
		view         string
		days         int
		timeout      int
		configPath   string
	)
	flag.StringVar(&metalFlag, "metal", getenv("METAL", "XAU"), "metal symbol or name (XAU, XAG, gold, silver)")
	flag.StringVar(&currencyFlag, "currency", getenv("CURRENCY", "INR"), "quote currency")
	flag.StringVar(&cityFlag, "city", getenv("CITY", string(market.National)), "city name")
	flag.StringVar(&rangeFlag, "range", "1D", "history range (1D, 1W, 1M)")
	flag.StringVar(&view, "view", "quote", "what to print: quote, history, trend, cities, closing")
	flag.IntVar(&days, "days", rates.DefaultClosingDays, "rows for -view closing")
	flag.IntVar(&timeout, "timeout", 15, "overall timeout seconds")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json or config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	metal, err := market.ParseMetal(metalFlag)
	if err != nil {
		logger.Fatal("%v", err)
	}
	currency, err := market.ParseCurrency(currencyFlag)
	if err != nil {
		logger.Fatal("%v", err)
	}
	city, err := market.ParseCity(cityFlag)
	if err != nil {
		logger.Fatal("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	svc, closeFn, err := rates.Build(ctx, cfg)
	if err != nil {
		logger.Fatal("rates: %v", err)
	}
	defer closeFn()

	var out any
	switch strings.ToLower(view) {
	case "quote":
		out = svc.GetQuote(ctx, metal, currency, city)
	case "history":
		rng, err := market.ParseRange(rangeFlag)
		if err != nil {
			logger.Fatal("%v", err)
		}
		out, err = svc.GetLiveHistory(ctx, metal, currency, rng, city)
		if err != nil {
			logger.Fatal("history: %v", err)
		}
	case "trend":
		out, err = svc.Trend(ctx, metal, currency, city)
	case "cities":
		out, err = svc.CityRates(ctx, currency)
	case "closing":
		out, err = svc.Closing(ctx, currency, city, days)
	default:
		fmt.Fprintf(os.Stderr, "unknown -view %q\n", view)
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("%s: %v", view, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		logger.Fatal("encode: %v", err)
	}
}

func getenv(key, def string) string { if v := os.Getenv(key); v != "" { return v }; return def }
