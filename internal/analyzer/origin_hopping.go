// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package analyzer

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
)

// SignalOriginHopping detects one identifier arriving from many origin
// addresses, typical of proxy rotation.
const SignalOriginHopping SignalType = "origin_hopping"

// OriginHoppingConfig configures the origin hopping signal.
type OriginHoppingConfig struct {
	// LowerCount and UpperCount are the two-tier thresholds on distinct
	// origin addresses seen over the trailing hour.
	LowerCount int64 `json:"lower_count"`
	UpperCount int64 `json:"upper_count"`
	LowerDelta int   `json:"lower_delta"`
	UpperDelta int   `json:"upper_delta"`
}

// DefaultOriginHoppingConfig returns sensible defaults.
func DefaultOriginHoppingConfig() OriginHoppingConfig {
	return OriginHoppingConfig{
		LowerCount: 5,
		UpperCount: 10,
		LowerDelta: 20,
		UpperDelta: 35,
	}
}

// OriginCounter reads the distinct origin count from stored telemetry.
// Satisfied by *behavior.Tracker.
type OriginCounter interface {
	DistinctOriginCount(ctx context.Context, identifier string) int64
}

// OriginHoppingSignal fires when an identifier hops across origin
// addresses. Collection of origins is consent-independent, but evaluating
// them against an identifier's history is not.
type OriginHoppingSignal struct {
	config  OriginHoppingConfig
	origins OriginCounter
	enabled bool
	mu      sync.RWMutex
}

func NewOriginHoppingSignal(origins OriginCounter) *OriginHoppingSignal {
	return &OriginHoppingSignal{
		config:  DefaultOriginHoppingConfig(),
		origins: origins,
		enabled: true,
	}
}

func (s *OriginHoppingSignal) Type() SignalType       { return SignalOriginHopping }
func (s *OriginHoppingSignal) ConsentDependent() bool { return true }

func (s *OriginHoppingSignal) Evaluate(ctx context.Context, identifier string, _ *RequestMeta) Result {
	s.mu.RLock()
	config := s.config
	s.mu.RUnlock()

	count := s.origins.DistinctOriginCount(ctx, identifier)

	switch {
	case count > config.UpperCount:
		return Result{
			Triggered: true,
			Delta:     config.UpperDelta,
			Patterns:  []string{string(SignalOriginHopping)},
		}
	case count > config.LowerCount:
		return Result{
			Triggered: true,
			Delta:     config.LowerDelta,
			Patterns:  []string{string(SignalOriginHopping)},
		}
	}
	return Result{}
}

// Configure updates the signal configuration.
func (s *OriginHoppingSignal) Configure(config json.RawMessage) error {
	var newConfig OriginHoppingConfig
	if err := json.Unmarshal(config, &newConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if newConfig.LowerCount <= 0 || newConfig.UpperCount <= newConfig.LowerCount {
		return fmt.Errorf("counts must satisfy 0 < lower_count < upper_count")
	}
	if newConfig.LowerDelta < 0 || newConfig.UpperDelta < 0 {
		return fmt.Errorf("deltas must be non-negative")
	}

	s.mu.Lock()
	s.config = newConfig
	s.mu.Unlock()
	return nil
}

func (s *OriginHoppingSignal) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *OriginHoppingSignal) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Config returns the current configuration.
func (s *OriginHoppingSignal) Config() OriginHoppingConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}
