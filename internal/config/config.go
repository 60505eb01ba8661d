package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"metalrates/internal/market"
	"metalrates/internal/trend"
)

type Server struct {
	Port              string `json:"port" yaml:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
}

// GoldAPI configures the live quote source. An empty APIKey is valid and
// routes every quote to the synthetic fallback.
type GoldAPI struct {
	APIKey                string `json:"api_key" yaml:"api_key"`
	BaseURL               string `json:"base_url" yaml:"base_url"`
	TimeoutSec            int    `json:"timeout_sec" yaml:"timeout_sec"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec" yaml:"min_request_interval_sec"`
	Burst                 int    `json:"burst" yaml:"burst"`
	// WaitForToken blocks on the limiter instead of falling back at once.
	WaitForToken bool `json:"wait_for_token" yaml:"wait_for_token"`
}

type Cache struct {
	TTLSeconds int `json:"ttl_sec" yaml:"ttl_sec"`
	MaxItems   int `json:"max_items" yaml:"max_items"`
	// RedisURL switches the quote cache from memory to Redis when set.
	RedisURL string `json:"redis_url" yaml:"redis_url"`
}

type Poll struct {
	QuoteIntervalSec int    `json:"quote_interval_sec" yaml:"quote_interval_sec"`
	CityIntervalSec  int    `json:"city_interval_sec" yaml:"city_interval_sec"`
	Currency         string `json:"currency" yaml:"currency"`
	City             string `json:"city" yaml:"city"`
}

type History struct {
	ApplyCityVariance bool `json:"apply_city_variance" yaml:"apply_city_variance"`
}

type Trend struct {
	Gold   string `json:"gold" yaml:"gold"`
	Silver string `json:"silver" yaml:"silver"`
}

type Log struct {
	Level string `json:"level" yaml:"level"`
}

type Config struct {
	Server  Server  `json:"server" yaml:"server"`
	GoldAPI GoldAPI `json:"goldapi" yaml:"goldapi"`
	Cache   Cache   `json:"cache" yaml:"cache"`
	Poll    Poll    `json:"poll" yaml:"poll"`
	History History `json:"history" yaml:"history"`
	Trend   Trend   `json:"trend" yaml:"trend"`
	Log     Log     `json:"log" yaml:"log"`
}

func Default() Config {
	return Config{
		Server:  Server{Port: "8080", RequestTimeoutSec: 10},
		GoldAPI: GoldAPI{BaseURL: "https://www.goldapi.io/api", TimeoutSec: 5, Burst: 1},
		Cache:   Cache{TTLSeconds: 60, MaxItems: 1000},
		Poll: Poll{
			QuoteIntervalSec: 60,
			CityIntervalSec:  300,
			Currency:         string(market.INR),
			City:             string(market.National),
		},
		Trend: Trend{Gold: "sma", Silver: "change"},
		Log:   Log{Level: "info"},
	}
}

var defaultFiles = []string{"config.json", "config.yaml", "config.yml"}

// Load reads a .env file when present, then the JSON or YAML config at path.
// If path is empty the first existing default file is used; without one the
// defaults stand. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		for _, f := range defaultFiles {
			if _, err := os.Stat(f); err == nil {
				path = f
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := decode(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

// Validate rejects values that would only fail later at request time.
func (c Config) Validate() error {
	if _, err := market.ParseCurrency(c.Poll.Currency); err != nil {
		return fmt.Errorf("poll.currency: %w", err)
	}
	if _, err := market.ParseCity(c.Poll.City); err != nil {
		return fmt.Errorf("poll.city: %w", err)
	}
	if _, err := trend.ByName(c.Trend.Gold); err != nil {
		return fmt.Errorf("trend.gold: %w", err)
	}
	if _, err := trend.ByName(c.Trend.Silver); err != nil {
		return fmt.Errorf("trend.silver: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" { cfg.Server.Port = v }
	envInt("REQUEST_TIMEOUT_SEC", &cfg.Server.RequestTimeoutSec, 1)

	if v := os.Getenv("NEXT_PUBLIC_GOLD_API_KEY"); v != "" { cfg.GoldAPI.APIKey = v }
	if v := os.Getenv("GOLD_API_KEY"); v != "" { cfg.GoldAPI.APIKey = v }
	if v := os.Getenv("GOLD_API_BASE_URL"); v != "" { cfg.GoldAPI.BaseURL = v }
	envInt("GOLDAPI_TIMEOUT_SEC", &cfg.GoldAPI.TimeoutSec, 1)
	envInt("GOLDAPI_MAX_RPM", &cfg.GoldAPI.MaxRequestsPerMinute, 0)
	envInt("GOLDAPI_MIN_INTERVAL_SEC", &cfg.GoldAPI.MinRequestIntervalSec, 0)
	envInt("GOLDAPI_BURST", &cfg.GoldAPI.Burst, 1)
	envBool("GOLDAPI_WAIT_FOR_TOKEN", &cfg.GoldAPI.WaitForToken)

	envInt("QUOTE_CACHE_TTL_SEC", &cfg.Cache.TTLSeconds, 0)
	envInt("QUOTE_CACHE_MAX_ITEMS", &cfg.Cache.MaxItems, 1)
	if v := os.Getenv("REDIS_URL"); v != "" { cfg.Cache.RedisURL = v }

	envInt("QUOTE_POLL_SEC", &cfg.Poll.QuoteIntervalSec, 1)
	envInt("CITY_POLL_SEC", &cfg.Poll.CityIntervalSec, 1)
	if v := os.Getenv("POLL_CURRENCY"); v != "" { cfg.Poll.Currency = v }
	if v := os.Getenv("POLL_CITY"); v != "" { cfg.Poll.City = v }

	envBool("HISTORY_APPLY_CITY_VARIANCE", &cfg.History.ApplyCityVariance)
	if v := os.Getenv("TREND_GOLD"); v != "" { cfg.Trend.Gold = v }
	if v := os.Getenv("TREND_SILVER"); v != "" { cfg.Trend.Silver = v }
	if v := os.Getenv("LOG_LEVEL"); v != "" { cfg.Log.Level = v }
}

// envInt sets *dst when key holds an integer >= floor.
func envInt(key string, dst *int, floor int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var x int
	if _, err := fmt.Sscanf(v, "%d", &x); err == nil && x >= floor {
		*dst = x
	}
}

func envBool(key string, dst *bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		*dst = true
	case "0", "false", "no", "n":
		*dst = false
	}
}
