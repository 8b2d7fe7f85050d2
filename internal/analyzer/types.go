// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package analyzer

import (
	"context"

	"github.com/goccy/go-json"
)

// SignalType identifies a scraping signal.
type SignalType string

// RequestMeta carries the per-request metadata signals evaluate against.
// Everything here comes straight off the inbound request; stored telemetry
// is read through the behavior tracker instead.
type RequestMeta struct {
	ResourceType   string `json:"resource_type"`
	UserAgent      string `json:"user_agent"`
	AcceptLanguage string `json:"accept_language"`
	AcceptEncoding string `json:"accept_encoding"`
	OriginAddress  string `json:"origin_address"`
}

// Result is a single signal's verdict: an additive confidence delta plus
// the pattern tags that triggered it. A non-triggered result contributes
// nothing.
type Result struct {
	Triggered bool
	Delta     int
	Patterns  []string
}

// Signal is one independent scraping heuristic. Implementations must be
// safe for concurrent use; configuration updates go through Configure.
type Signal interface {
	// Type returns the signal identifier.
	Type() SignalType

	// Evaluate inspects stored telemetry and/or request metadata and
	// returns an additive confidence delta. Implementations fail open:
	// store trouble yields a non-triggered result, never an error.
	Evaluate(ctx context.Context, identifier string, meta *RequestMeta) Result

	// ConsentDependent reports whether the signal reads consent-gated
	// telemetry and must be skipped without tracking consent.
	ConsentDependent() bool

	// Configure replaces the signal's configuration.
	Configure(config json.RawMessage) error

	// Enabled reports whether this signal is evaluated.
	Enabled() bool

	// SetEnabled enables or disables the signal.
	SetEnabled(enabled bool)
}

// Analysis is the fused decision for one request.
type Analysis struct {
	Suspicious  bool     `json:"suspicious"`
	Confidence  int      `json:"confidence"`
	Patterns    []string `json:"patterns,omitempty"`
	ShouldBlock bool     `json:"should_block"`
}
