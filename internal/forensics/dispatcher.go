// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

// Package forensics delivers suspicious-activity records to an external
// webhook. Delivery is best-effort: the request path enqueues without
// blocking, and events are dropped (with a metric) rather than ever slowing
// admission down.
package forensics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/avasquez-dev/vigilis/internal/logging"
	"github.com/avasquez-dev/vigilis/internal/metrics"
)

// Event is one suspicious-activity record.
type Event struct {
	Identifier   string    `json:"identifier"`
	Confidence   int       `json:"confidence"`
	Patterns     []string  `json:"patterns"`
	ResourceType string    `json:"resource_type,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Config configures the webhook dispatcher.
type Config struct {
	WebhookURL    string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	BufferSize    int
}

// Dispatcher queues events and posts them to the configured webhook,
// rate-limited so a detection storm cannot flood the endpoint. It runs as a
// supervised service via Serve.
type Dispatcher struct {
	cfg     Config
	queue   chan Event
	client  *http.Client
	limiter *rate.Limiter
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	return &Dispatcher{
		cfg:     cfg,
		queue:   make(chan Event, cfg.BufferSize),
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
	}
}

// Record enqueues an event without blocking. When the queue is full the
// event is dropped and counted.
func (d *Dispatcher) Record(e Event) {
	select {
	case d.queue <- e:
	default:
		metrics.ForensicEventsDropped.WithLabelValues("queue_full").Inc()
		logging.Warn().Str("identifier", e.Identifier).Msg("forensic queue full, event dropped")
	}
}

// Serve drains the queue until the context is cancelled. Implements
// suture.Service.
func (d *Dispatcher) Serve(ctx context.Context) error {
	logging.Info().Str("webhook_url", d.cfg.WebhookURL).Msg("forensic dispatcher started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-d.queue:
			if !d.limiter.Allow() {
				metrics.ForensicEventsDropped.WithLabelValues("rate_limited").Inc()
				continue
			}
			if err := d.deliver(ctx, e); err != nil {
				metrics.ForensicEventsDropped.WithLabelValues("delivery_failed").Inc()
				logging.Warn().Err(err).Str("identifier", e.Identifier).Msg("forensic delivery failed")
				continue
			}
			metrics.ForensicEventsSent.Inc()
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// String names the service in supervisor logs.
func (d *Dispatcher) String() string {
	return "forensic-dispatcher"
}
