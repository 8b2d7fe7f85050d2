// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

// Package consent resolves per-identifier tracking consent against an
// external service. Lookups sit on the request path, so answers are cached
// briefly in-process and the upstream call runs behind a circuit breaker.
// Any failure resolves to "no consent": the system must never track
// someone because the consent service was down.
package consent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/avasquez-dev/vigilis/internal/logging"
	"github.com/avasquez-dev/vigilis/internal/metrics"
)

// Config configures the consent client.
type Config struct {
	// URL is the consent service endpoint. The identifier is appended as a
	// query parameter.
	URL string

	// Timeout bounds a single lookup.
	Timeout time.Duration

	// CacheTTL is how long an answer is reused without a fresh lookup.
	CacheTTL time.Duration
}

type cacheEntry struct {
	granted   bool
	expiresAt time.Time
}

// Client queries the consent service. Implements behavior.ConsentGate.
type Client struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[bool]

	mu    sync.RWMutex
	cache map[string]cacheEntry

	now func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}

	settings := gobreaker.Settings{
		Name:    "consent",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("consent breaker state changed")
		},
	}

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[bool](settings),
		cache:   make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// HasTrackingConsent reports whether the identifier has opted into
// behavioral tracking. Failures of any kind resolve to false.
func (c *Client) HasTrackingConsent(ctx context.Context, identifier string) bool {
	if granted, ok := c.cached(identifier); ok {
		metrics.ConsentLookups.WithLabelValues("cached").Inc()
		return granted
	}

	granted, err := c.breaker.Execute(func() (bool, error) {
		return c.lookup(ctx, identifier)
	})
	if err != nil {
		metrics.ConsentLookups.WithLabelValues("error").Inc()
		logging.Warn().Err(err).Str("identifier", identifier).Msg("consent lookup failed, treating as no consent")
		return false
	}

	c.store(identifier, granted)
	if granted {
		metrics.ConsentLookups.WithLabelValues("granted").Inc()
	} else {
		metrics.ConsentLookups.WithLabelValues("denied").Inc()
	}
	return granted
}

type consentResponse struct {
	Consent bool `json:"consent"`
}

func (c *Client) lookup(ctx context.Context, identifier string) (bool, error) {
	endpoint := c.cfg.URL + "?identifier=" + url.QueryEscape(identifier)

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("query consent service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("consent service returned status %d", resp.StatusCode)
	}

	var body consentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode consent response: %w", err)
	}
	return body.Consent, nil
}

func (c *Client) cached(identifier string) (bool, bool) {
	c.mu.RLock()
	entry, ok := c.cache[identifier]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expiresAt) {
		return false, false
	}
	return entry.granted, true
}

func (c *Client) store(identifier string, granted bool) {
	c.mu.Lock()
	c.cache[identifier] = cacheEntry{
		granted:   granted,
		expiresAt: c.now().Add(c.cfg.CacheTTL),
	}
	c.mu.Unlock()
}

// Static is a fixed-answer gate, used when no consent service is
// configured (always deny) and in tests.
type Static bool

// HasTrackingConsent implements behavior.ConsentGate.
func (s Static) HasTrackingConsent(context.Context, string) bool { return bool(s) }
