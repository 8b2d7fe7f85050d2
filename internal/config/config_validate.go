// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that required configuration is present and valid.
// Invalid static configuration is fatal at process start; nothing here is
// evaluated per request.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateRedis(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	if err := c.validateAnalyzer(); err != nil {
		return err
	}
	if err := c.validateConsent(); err != nil {
		return err
	}
	if err := c.validateForensics(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.Server.AdminRequestsPerMinute <= 0 {
		return fmt.Errorf("ADMIN_REQUESTS_PER_MINUTE must be positive")
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if c.RateLimit.PruneProbability < 0 || c.RateLimit.PruneProbability > 1 {
		return fmt.Errorf("RATE_LIMIT_PRUNE_PROBABILITY must be in [0, 1]")
	}

	classes := map[string]LimitClassConfig{
		"image_view": c.RateLimit.ImageView,
		"set_view":   c.RateLimit.SetView,
		"download":   c.RateLimit.Download,
		"api":        c.RateLimit.API,
		"auth":       c.RateLimit.Auth,
		"bulk_view":  c.RateLimit.BulkView,
	}
	for name, cls := range classes {
		if cls.Window <= 0 {
			return fmt.Errorf("rate limit class %s: window must be positive", name)
		}
		if cls.Limit <= 0 {
			return fmt.Errorf("rate limit class %s: limit must be positive", name)
		}
	}
	return nil
}

func (c *Config) validateAnalyzer() error {
	a := c.Analyzer
	if a.AutoBlockThreshold < 1 || a.AutoBlockThreshold > 100 {
		return fmt.Errorf("ANALYZER_AUTO_BLOCK_THRESHOLD must be in [1, 100]")
	}
	if a.SuspiciousThreshold < 0 || a.SuspiciousThreshold > 100 {
		return fmt.Errorf("ANALYZER_SUSPICIOUS_THRESHOLD must be in [0, 100]")
	}
	if a.ForensicThreshold < 0 || a.ForensicThreshold > 100 {
		return fmt.Errorf("ANALYZER_FORENSIC_THRESHOLD must be in [0, 100]")
	}
	if a.SuspiciousThreshold > a.AutoBlockThreshold {
		return fmt.Errorf("ANALYZER_SUSPICIOUS_THRESHOLD cannot exceed ANALYZER_AUTO_BLOCK_THRESHOLD")
	}
	if a.BanDuration <= 0 {
		return fmt.Errorf("ANALYZER_BAN_DURATION must be positive")
	}
	return nil
}

func (c *Config) validateConsent() error {
	if c.Consent.URL != "" {
		if err := validateHTTPURL(c.Consent.URL, "CONSENT_URL"); err != nil {
			return err
		}
	}
	if c.Consent.Timeout <= 0 {
		return fmt.Errorf("CONSENT_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateForensics() error {
	f := c.Forensics
	if !f.Enabled {
		return nil
	}
	if f.WebhookURL == "" {
		return fmt.Errorf("FORENSIC_WEBHOOK_URL is required when FORENSIC_ENABLED=true")
	}
	if err := validateHTTPURL(f.WebhookURL, "FORENSIC_WEBHOOK_URL"); err != nil {
		return err
	}
	if f.RatePerSecond <= 0 {
		return fmt.Errorf("FORENSIC_RATE_PER_SECOND must be positive")
	}
	if f.BufferSize <= 0 {
		return fmt.Errorf("FORENSIC_BUFFER_SIZE must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal")
	}
	switch c.Logging.Format {
	case "json", "console", "":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

func validateHTTPURL(raw, name string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme", name)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", name)
	}
	return nil
}
