// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package analyzer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// SignalHeaders detects automation clients from request headers alone.
const SignalHeaders SignalType = "headers"

// HeadersConfig configures the header heuristics signal.
type HeadersConfig struct {
	// BotSignatures are substrings matched case-insensitively against the
	// declared client identity string.
	BotSignatures []string `json:"bot_signatures,omitempty"`

	// MinAgentLength: identity strings shorter than this count as
	// anomalous.
	MinAgentLength int `json:"min_agent_length"`

	// BotDelta is the contribution for a matched automation signature.
	BotDelta int `json:"bot_delta"`

	// MissingHeaderDelta is the contribution when language or encoding
	// negotiation headers are absent.
	MissingHeaderDelta int `json:"missing_header_delta"`

	// ShortAgentDelta is the contribution for short or templated identity
	// strings.
	ShortAgentDelta int `json:"short_agent_delta"`
}

// DefaultHeadersConfig returns sensible defaults.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		BotSignatures: []string{
			"curl", "wget", "python", "bot", "crawler", "spider",
			"headless", "phantom", "selenium", "puppeteer",
			"scrapy", "go-http-client", "libwww", "java/",
		},
		MinAgentLength:     10,
		BotDelta:           30,
		MissingHeaderDelta: 10,
		ShortAgentDelta:    10,
	}
}

// templatedAgents are identity strings automation tools send verbatim
// without filling in the usual browser detail.
var templatedAgents = map[string]struct{}{
	"mozilla/5.0": {},
	"mozilla/4.0": {},
}

// HeadersSignal evaluates request headers only. It touches no stored state,
// so it runs regardless of consent and has no fail-open concern.
type HeadersSignal struct {
	config  HeadersConfig
	enabled bool
	mu      sync.RWMutex
}

func NewHeadersSignal() *HeadersSignal {
	return &HeadersSignal{
		config:  DefaultHeadersConfig(),
		enabled: true,
	}
}

func (s *HeadersSignal) Type() SignalType       { return SignalHeaders }
func (s *HeadersSignal) ConsentDependent() bool { return false }

func (s *HeadersSignal) Evaluate(_ context.Context, _ string, meta *RequestMeta) Result {
	s.mu.RLock()
	config := s.config
	s.mu.RUnlock()

	var (
		delta    int
		patterns []string
	)

	agent := strings.ToLower(strings.TrimSpace(meta.UserAgent))
	for _, sig := range config.BotSignatures {
		if strings.Contains(agent, strings.ToLower(sig)) {
			delta += config.BotDelta
			patterns = append(patterns, "bot_signature")
			break
		}
	}

	if meta.AcceptLanguage == "" || meta.AcceptEncoding == "" {
		delta += config.MissingHeaderDelta
		patterns = append(patterns, "missing_headers")
	}

	_, templated := templatedAgents[agent]
	if len(agent) < config.MinAgentLength || templated {
		delta += config.ShortAgentDelta
		patterns = append(patterns, "anomalous_agent")
	}

	if delta == 0 {
		return Result{}
	}
	return Result{Triggered: true, Delta: delta, Patterns: patterns}
}

// Configure updates the signal configuration.
func (s *HeadersSignal) Configure(config json.RawMessage) error {
	var newConfig HeadersConfig
	if err := json.Unmarshal(config, &newConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if newConfig.MinAgentLength <= 0 {
		return fmt.Errorf("min_agent_length must be positive")
	}
	if newConfig.BotDelta < 0 || newConfig.MissingHeaderDelta < 0 || newConfig.ShortAgentDelta < 0 {
		return fmt.Errorf("deltas must be non-negative")
	}

	s.mu.Lock()
	s.config = newConfig
	s.mu.Unlock()
	return nil
}

func (s *HeadersSignal) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *HeadersSignal) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Config returns the current configuration.
func (s *HeadersSignal) Config() HeadersConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}
