// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/vigilis/config.yaml",
	"/etc/vigilis/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults load
// first, then the config file, then environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   8480,
			Timeout:                30 * time.Second,
			CORSOrigins:            []string{"*"},
			TrustedProxies:         []string{},
			AdminRequestsPerMinute: 120,
			ShutdownTimeout:        10 * time.Second,
		},
		Redis: RedisConfig{
			Addr:        "127.0.0.1:6379",
			Password:    "",
			DB:          0,
			DialTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		RateLimit: RateLimitConfig{
			PruneProbability: 0.01,
			ImageView:        LimitClassConfig{Window: time.Minute, Limit: 100},
			SetView:          LimitClassConfig{Window: time.Minute, Limit: 30},
			Download:         LimitClassConfig{Window: time.Hour, Limit: 50},
			API:              LimitClassConfig{Window: time.Minute, Limit: 300},
			Auth:             LimitClassConfig{Window: 15 * time.Minute, Limit: 50},
			BulkView:         LimitClassConfig{Window: 5 * time.Minute, Limit: 200},
		},
		Analyzer: AnalyzerConfig{
			AutoBlockThreshold:  80,
			SuspiciousThreshold: 30,
			ForensicThreshold:   50,
			BanDuration:         24 * time.Hour,
		},
		Consent: ConsentConfig{
			URL:      "",
			Timeout:  2 * time.Second,
			CacheTTL: time.Minute,
		},
		Forensics: ForensicsConfig{
			Enabled:       false,
			WebhookURL:    "",
			Timeout:       10 * time.Second,
			RatePerSecond: 2,
			Burst:         10,
			BufferSize:    256,
		},
	}
}

// Load reads configuration with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are config paths parsed as comma-separated slices when they
// arrive as env var strings.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"server.trusted_proxies",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to config paths.
// Unmapped variables are skipped so stray environment does not pollute the
// configuration.
//
// Examples:
//   - REDIS_ADDR -> redis.addr
//   - HTTP_PORT -> server.port
//   - RATE_LIMIT_AUTH_LIMIT -> rate_limit.auth.limit
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":                 "server.host",
		"http_port":                 "server.port",
		"http_timeout":              "server.timeout",
		"http_shutdown_timeout":     "server.shutdown_timeout",
		"cors_origins":              "server.cors_origins",
		"trusted_proxies":           "server.trusted_proxies",
		"admin_requests_per_minute": "server.admin_requests_per_minute",

		// Redis mappings
		"redis_addr":         "redis.addr",
		"redis_password":     "redis.password",
		"redis_db":           "redis.db",
		"redis_dial_timeout": "redis.dial_timeout",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Rate limit mappings
		"rate_limit_prune_probability": "rate_limit.prune_probability",
		"rate_limit_image_view_window": "rate_limit.image_view.window",
		"rate_limit_image_view_limit":  "rate_limit.image_view.limit",
		"rate_limit_set_view_window":   "rate_limit.set_view.window",
		"rate_limit_set_view_limit":    "rate_limit.set_view.limit",
		"rate_limit_download_window":   "rate_limit.download.window",
		"rate_limit_download_limit":    "rate_limit.download.limit",
		"rate_limit_api_window":        "rate_limit.api.window",
		"rate_limit_api_limit":         "rate_limit.api.limit",
		"rate_limit_auth_window":       "rate_limit.auth.window",
		"rate_limit_auth_limit":        "rate_limit.auth.limit",
		"rate_limit_bulk_view_window":  "rate_limit.bulk_view.window",
		"rate_limit_bulk_view_limit":   "rate_limit.bulk_view.limit",

		// Analyzer mappings
		"analyzer_auto_block_threshold": "analyzer.auto_block_threshold",
		"analyzer_suspicious_threshold": "analyzer.suspicious_threshold",
		"analyzer_forensic_threshold":   "analyzer.forensic_threshold",
		"analyzer_ban_duration":         "analyzer.ban_duration",

		// Consent mappings
		"consent_url":       "consent.url",
		"consent_timeout":   "consent.timeout",
		"consent_cache_ttl": "consent.cache_ttl",

		// Forensics mappings
		"forensic_enabled":         "forensics.enabled",
		"forensic_webhook_url":     "forensics.webhook_url",
		"forensic_timeout":         "forensics.timeout",
		"forensic_rate_per_second": "forensics.rate_per_second",
		"forensic_burst":           "forensics.burst",
		"forensic_buffer_size":     "forensics.buffer_size",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
