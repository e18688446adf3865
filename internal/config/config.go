package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port              string
	LogLevel          string
	AlphaBaseURL      string
	AlphaKey          string
	FinnhubBaseURL    string
	FinnhubKey        string
	RedisURL          string
	CacheTTLQuote     time.Duration
	CacheTTLSeries    time.Duration
	CacheTTLReference time.Duration
	RequestTimeout    time.Duration
	RateLimitPerMin   int
	CircuitFailLimit  int
	CircuitCooldown   time.Duration
	StoreBackend      string
	StoreKey          string
	StoreDir          string
	SQLitePath        string
	DatabaseURL       string
	DefaultSymbol     string
	DefaultRefresh    time.Duration
	MaxSeriesPoints   int
	MaxFieldDepth     int
	TablePageSize     int
	CustomSourceHosts []string
}

// fileConfig mirrors the optional YAML file. Durations are in seconds like
// their environment counterparts.
type fileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	Vendors  struct {
		AlphaVantage struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"alphavantage"`
		Finnhub struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"finnhub"`
	} `yaml:"vendors"`
	Cache struct {
		RedisURL        string `yaml:"redis_url"`
		QuoteTTLSec     int    `yaml:"quote_ttl_sec"`
		SeriesTTLSec    int    `yaml:"series_ttl_sec"`
		ReferenceTTLSec int    `yaml:"reference_ttl_sec"`
	} `yaml:"cache"`
	Store struct {
		Backend     string `yaml:"backend"`
		Key         string `yaml:"key"`
		Dir         string `yaml:"dir"`
		SQLitePath  string `yaml:"sqlite_path"`
		DatabaseURL string `yaml:"database_url"`
	} `yaml:"store"`
	Widgets struct {
		DefaultSymbol     string   `yaml:"default_symbol"`
		DefaultRefreshSec int      `yaml:"default_refresh_sec"`
		MaxSeriesPoints   int      `yaml:"max_series_points"`
		MaxFieldDepth     int      `yaml:"max_field_depth"`
		TablePageSize     int      `yaml:"table_page_size"`
		CustomSourceHosts []string `yaml:"custom_source_hosts"`
	} `yaml:"widgets"`
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
	RateLimitPerMin   int `yaml:"rate_limit_per_min"`
	CircuitFailLimit  int `yaml:"circuit_fail_limit"`
	CircuitCooldownS  int `yaml:"circuit_cooldown_sec"`
}

var StoreBackends = []string{"memory", "file", "sqlite", "redis", "postgres"}

// Load builds the configuration from the optional YAML file named by
// FINBOARD_CONFIG, then lets environment variables override it.
func Load() (Config, error) {
	fc, err := readFile(os.Getenv("FINBOARD_CONFIG"))
	if err != nil {
		return Config{}, err
	}
	w := fc.Widgets
	return Config{
		Port:              getEnv("PORT", or(fc.Port, "8080")),
		LogLevel:          getEnv("LOG_LEVEL", or(fc.LogLevel, "info")),
		AlphaBaseURL:      getEnv("ALPHA_BASE_URL", or(fc.Vendors.AlphaVantage.BaseURL, "https://www.alphavantage.co/query")),
		AlphaKey:          getEnv("ALPHA_KEY", fc.Vendors.AlphaVantage.APIKey),
		FinnhubBaseURL:    getEnv("FINNHUB_BASE_URL", or(fc.Vendors.Finnhub.BaseURL, "https://finnhub.io/api/v1")),
		FinnhubKey:        getEnv("FINNHUB_KEY", fc.Vendors.Finnhub.APIKey),
		RedisURL:          getEnv("REDIS_URL", or(fc.Cache.RedisURL, "redis://localhost:6379")),
		CacheTTLQuote:     getEnvDuration("CACHE_TTL_QUOTE", seconds(fc.Cache.QuoteTTLSec, 30)),
		CacheTTLSeries:    getEnvDuration("CACHE_TTL_SERIES", seconds(fc.Cache.SeriesTTLSec, 300)),
		CacheTTLReference: getEnvDuration("CACHE_TTL_REFERENCE", seconds(fc.Cache.ReferenceTTLSec, 3600)),
		RequestTimeout:    getEnvDuration("REQUEST_TIMEOUT", seconds(fc.RequestTimeoutSec, 12)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MIN", orInt(fc.RateLimitPerMin, 120)),
		CircuitFailLimit:  getEnvInt("CIRCUIT_FAIL_LIMIT", orInt(fc.CircuitFailLimit, 3)),
		CircuitCooldown:   getEnvDuration("CIRCUIT_COOLDOWN", seconds(fc.CircuitCooldownS, 20)),
		StoreBackend:      strings.ToLower(getEnv("STORE_BACKEND", or(fc.Store.Backend, "file"))),
		StoreKey:          getEnv("STORE_KEY", or(fc.Store.Key, "finboard-dashboard")),
		StoreDir:          getEnv("STORE_DIR", or(fc.Store.Dir, "data")),
		SQLitePath:        getEnv("SQLITE_PATH", or(fc.Store.SQLitePath, "data/finboard.db")),
		DatabaseURL:       getEnv("DATABASE_URL", fc.Store.DatabaseURL),
		DefaultSymbol:     strings.ToUpper(getEnv("DEFAULT_SYMBOL", or(w.DefaultSymbol, "AAPL"))),
		DefaultRefresh:    getEnvDuration("DEFAULT_REFRESH", seconds(w.DefaultRefreshSec, 60)),
		MaxSeriesPoints:   getEnvInt("MAX_SERIES_POINTS", orInt(w.MaxSeriesPoints, 10)),
		MaxFieldDepth:     getEnvInt("MAX_FIELD_DEPTH", orInt(w.MaxFieldDepth, 8)),
		TablePageSize:     getEnvInt("TABLE_PAGE_SIZE", orInt(w.TablePageSize, 3)),
		CustomSourceHosts: getEnvList("CUSTOM_SOURCE_HOSTS", w.CustomSourceHosts),
	}, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	known := false
	for _, b := range StoreBackends {
		if c.StoreBackend == b {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown store backend %q (want one of %s)", c.StoreBackend, strings.Join(StoreBackends, ", "))
	}
	if c.StoreBackend == "postgres" && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for the postgres store backend")
	}
	if c.StoreKey == "" {
		return errors.New("STORE_KEY must not be empty")
	}
	if c.MaxSeriesPoints <= 0 {
		return errors.New("MAX_SERIES_POINTS must be positive")
	}
	if c.TablePageSize <= 0 {
		return errors.New("TABLE_PAGE_SIZE must be positive")
	}
	return nil
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fc, nil
		}
		return fc, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fc); err != nil {
		return fc, fmt.Errorf("parse config: %w", err)
	}
	return fc, nil
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func seconds(v, def int) time.Duration {
	return time.Duration(orInt(v, def)) * time.Second
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(i) * time.Second
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
