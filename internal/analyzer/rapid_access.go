// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/avasquez-dev/vigilis/internal/behavior"
)

// SignalRapidAccess detects rapid sequential access to resources of one type.
const SignalRapidAccess SignalType = "rapid_access"

// AccessTiers holds the two-tier thresholds for one resource type. Crossing
// the lower tier contributes the smaller delta, the upper tier the larger.
type AccessTiers struct {
	Lower int64 `json:"lower"`
	Upper int64 `json:"upper"`
}

// RapidAccessConfig configures the rapid access signal.
type RapidAccessConfig struct {
	// WindowSeconds is the trailing window counted against the tiers.
	WindowSeconds int `json:"window_seconds"`

	// Tiers maps a resource type to its thresholds. Resource types without
	// an entry are not evaluated.
	Tiers map[string]AccessTiers `json:"tiers"`

	// LowerDelta and UpperDelta are the confidence contributions for the
	// respective tiers.
	LowerDelta int `json:"lower_delta"`
	UpperDelta int `json:"upper_delta"`
}

// DefaultRapidAccessConfig returns sensible defaults.
func DefaultRapidAccessConfig() RapidAccessConfig {
	return RapidAccessConfig{
		WindowSeconds: 60,
		Tiers: map[string]AccessTiers{
			behavior.ResourceImage:    {Lower: 30, Upper: 60},
			behavior.ResourceSet:      {Lower: 15, Upper: 30},
			behavior.ResourceDownload: {Lower: 10, Upper: 20},
		},
		LowerDelta: 20,
		UpperDelta: 40,
	}
}

// AccessCounter reads recent access counts from stored telemetry. Satisfied
// by *behavior.Tracker.
type AccessCounter interface {
	RecentAccessCount(ctx context.Context, identifier, resourceType string, within time.Duration) int64
}

// RapidAccessSignal flags identifiers that fetch resources of one type
// faster than a human browses.
type RapidAccessSignal struct {
	config  RapidAccessConfig
	access  AccessCounter
	enabled bool
	mu      sync.RWMutex
}

func NewRapidAccessSignal(access AccessCounter) *RapidAccessSignal {
	return &RapidAccessSignal{
		config:  DefaultRapidAccessConfig(),
		access:  access,
		enabled: true,
	}
}

func (s *RapidAccessSignal) Type() SignalType       { return SignalRapidAccess }
func (s *RapidAccessSignal) ConsentDependent() bool { return true }

func (s *RapidAccessSignal) Evaluate(ctx context.Context, identifier string, meta *RequestMeta) Result {
	s.mu.RLock()
	config := s.config
	s.mu.RUnlock()

	tiers, ok := config.Tiers[meta.ResourceType]
	if !ok {
		return Result{}
	}

	window := time.Duration(config.WindowSeconds) * time.Second
	count := s.access.RecentAccessCount(ctx, identifier, meta.ResourceType, window)

	switch {
	case count > tiers.Upper:
		return Result{
			Triggered: true,
			Delta:     config.UpperDelta,
			Patterns:  []string{string(SignalRapidAccess)},
		}
	case count > tiers.Lower:
		return Result{
			Triggered: true,
			Delta:     config.LowerDelta,
			Patterns:  []string{string(SignalRapidAccess)},
		}
	}
	return Result{}
}

// Configure updates the signal configuration.
func (s *RapidAccessSignal) Configure(config json.RawMessage) error {
	var newConfig RapidAccessConfig
	if err := json.Unmarshal(config, &newConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if newConfig.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive")
	}
	if newConfig.LowerDelta < 0 || newConfig.UpperDelta < 0 {
		return fmt.Errorf("deltas must be non-negative")
	}
	for resource, tiers := range newConfig.Tiers {
		if tiers.Lower <= 0 || tiers.Upper <= tiers.Lower {
			return fmt.Errorf("tiers for %q must satisfy 0 < lower < upper", resource)
		}
	}

	s.mu.Lock()
	s.config = newConfig
	s.mu.Unlock()
	return nil
}

func (s *RapidAccessSignal) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *RapidAccessSignal) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Config returns the current configuration.
func (s *RapidAccessSignal) Config() RapidAccessConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}
