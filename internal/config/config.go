package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all client tunables. Values are resolved in order:
// built-in defaults, then the optional YAML file, then environment
// variables. Login credentials are deliberately absent: they are read
// from the environment at invocation time and never written anywhere.
type Config struct {
	BaseURL  string `yaml:"base_url"`
	LogLevel string `yaml:"log_level"`

	// MetricsAddr, when set, serves Prometheus metrics on that address
	// for the lifetime of the invocation.
	MetricsAddr string `yaml:"metrics_addr"`

	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	SlowThresholdSeconds  int `yaml:"slow_threshold_seconds"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	PageSize int `yaml:"page_size"`

	BreakerEnabled            bool    `yaml:"breaker_enabled"`
	BreakerMinRequests        uint32  `yaml:"breaker_min_requests"`
	BreakerFailureRatio       float64 `yaml:"breaker_failure_ratio"`
	BreakerOpenTimeoutSeconds int     `yaml:"breaker_open_timeout_seconds"`
	BreakerHalfOpenMaxCalls   uint32  `yaml:"breaker_half_open_max_calls"`

	WatcherInitialDelaySeconds int     `yaml:"watcher_initial_delay_seconds"`
	WatcherMaxDelaySeconds     int     `yaml:"watcher_max_delay_seconds"`
	WatcherMultiplier          float64 `yaml:"watcher_multiplier"`
	WatcherMaxAttempts         int     `yaml:"watcher_max_attempts"`
}

func defaults() Config {
	return Config{
		BaseURL:  "http://localhost:8080",
		LogLevel: "info",

		RequestTimeoutSeconds: 30,
		SlowThresholdSeconds:  3,

		RateLimitRPS:   10,
		RateLimitBurst: 20,

		PageSize: 20,

		BreakerEnabled:            true,
		BreakerMinRequests:        10,
		BreakerFailureRatio:       0.5,
		BreakerOpenTimeoutSeconds: 30,
		BreakerHalfOpenMaxCalls:   2,

		WatcherInitialDelaySeconds: 1,
		WatcherMaxDelaySeconds:     30,
		WatcherMultiplier:          2.0,
		WatcherMaxAttempts:         10,
	}
}

// Load resolves the configuration. path may be empty, in which case
// only defaults and the environment apply; a named but missing file is
// an error.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.BaseURL = mustEnv("TIKTAX_BASE_URL", cfg.BaseURL)
	cfg.LogLevel = mustEnv("TIKTAX_LOG_LEVEL", cfg.LogLevel)
	cfg.MetricsAddr = mustEnv("TIKTAX_METRICS_ADDR", cfg.MetricsAddr)
	cfg.RequestTimeoutSeconds = mustEnvInt("TIKTAX_REQUEST_TIMEOUT_SECONDS", cfg.RequestTimeoutSeconds)
	cfg.SlowThresholdSeconds = mustEnvInt("TIKTAX_SLOW_THRESHOLD_SECONDS", cfg.SlowThresholdSeconds)
	cfg.RateLimitRPS = mustEnvFloat("TIKTAX_RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = mustEnvInt("TIKTAX_RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.PageSize = mustEnvInt("TIKTAX_PAGE_SIZE", cfg.PageSize)
	cfg.BreakerEnabled = mustEnvBool("TIKTAX_BREAKER_ENABLED", cfg.BreakerEnabled)
	cfg.WatcherMaxAttempts = mustEnvInt("TIKTAX_WATCHER_MAX_ATTEMPTS", cfg.WatcherMaxAttempts)

	return cfg, nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
