// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package config

import (
	"time"
)

// Config is the root configuration for the Vigilis service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Redis     RedisConfig     `koanf:"redis"`
	Logging   LoggingConfig   `koanf:"logging"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Analyzer  AnalyzerConfig  `koanf:"analyzer"`
	Consent   ConsentConfig   `koanf:"consent"`
	Forensics ForensicsConfig `koanf:"forensics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// CORSOrigins are the origins allowed on the admin API.
	CORSOrigins []string `koanf:"cors_origins"`

	// TrustedProxies are proxy addresses whose forwarding headers are honored
	// when resolving a request identifier.
	TrustedProxies []string `koanf:"trusted_proxies"`

	// AdminRequestsPerMinute is the in-process httprate guard applied to the
	// admin routes, independent of the distributed limiter.
	AdminRequestsPerMinute int `koanf:"admin_requests_per_minute"`

	// ShutdownTimeout bounds graceful shutdown of the HTTP server.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// RedisConfig holds shared counter store connection settings.
type RedisConfig struct {
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// LimitClassConfig is one sliding-window rate-limit policy.
type LimitClassConfig struct {
	// Window is the sliding window duration.
	Window time.Duration `koanf:"window"`

	// Limit is the maximum admitted requests per identifier per window.
	Limit int64 `koanf:"limit"`
}

// RateLimitConfig holds the per-class limit policies.
//
// All six classes must be defined with positive window and limit; a missing
// or invalid class is a startup error, never a per-request one.
type RateLimitConfig struct {
	// PruneProbability is the chance (0-1) that a check also prunes expired
	// window entries. Key TTLs bound growth regardless; pruning just keeps
	// hot keys small.
	PruneProbability float64 `koanf:"prune_probability"`

	ImageView LimitClassConfig `koanf:"image_view"`
	SetView   LimitClassConfig `koanf:"set_view"`
	Download  LimitClassConfig `koanf:"download"`
	API       LimitClassConfig `koanf:"api"`
	Auth      LimitClassConfig `koanf:"auth"`
	BulkView  LimitClassConfig `koanf:"bulk_view"`
}

// AnalyzerConfig holds the scraping analyzer's fusion thresholds. Per-signal
// thresholds and deltas are owned by the signals themselves and retunable at
// runtime via the admin API.
type AnalyzerConfig struct {
	// AutoBlockThreshold is the confidence at and above which a request is
	// blocked and an automatic ban issued.
	AutoBlockThreshold int `koanf:"auto_block_threshold"`

	// SuspiciousThreshold is the confidence above which a request is marked
	// suspicious without being blocked.
	SuspiciousThreshold int `koanf:"suspicious_threshold"`

	// ForensicThreshold is the confidence above which a suspicious-activity
	// record is emitted to the forensic sink.
	ForensicThreshold int `koanf:"forensic_threshold"`

	// BanDuration is the lifetime of automatic bans.
	BanDuration time.Duration `koanf:"ban_duration"`
}

// ConsentConfig holds the tracking-consent collaborator settings.
type ConsentConfig struct {
	// URL is the consent service endpoint. When empty, every consent lookup
	// reports no consent and behavioral tracking stays off.
	URL string `koanf:"url"`

	// Timeout bounds a single consent lookup.
	Timeout time.Duration `koanf:"timeout"`

	// CacheTTL is how long a consent answer is cached in-process.
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// ForensicsConfig holds the suspicious-activity webhook settings.
type ForensicsConfig struct {
	Enabled    bool          `koanf:"enabled"`
	WebhookURL string        `koanf:"webhook_url"`
	Timeout    time.Duration `koanf:"timeout"`

	// RatePerSecond and Burst bound webhook egress.
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`

	// BufferSize is the dispatch queue depth; a full queue drops events
	// rather than blocking the request path.
	BufferSize int `koanf:"buffer_size"`
}
