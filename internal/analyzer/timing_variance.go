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
)

// SignalTimingVariance detects scripted, metronome-like access timing.
const SignalTimingVariance SignalType = "timing_variance"

// TimingVarianceConfig configures the timing variance signal.
type TimingVarianceConfig struct {
	// WindowSeconds is the trailing window intervals are collected over.
	WindowSeconds int `json:"window_seconds"`

	// MinSamples is the minimum number of inter-access intervals required
	// before the signal fires.
	MinSamples int `json:"min_samples"`

	// MaxMeanMillis: the mean interval must be below this to indicate
	// non-human speed.
	MaxMeanMillis float64 `json:"max_mean_millis"`

	// MaxVarianceMillis: the interval variance (in ms squared) must be
	// below this to indicate scripted regularity.
	MaxVarianceMillis float64 `json:"max_variance_millis"`

	// Delta is the confidence contribution when the signal fires.
	Delta int `json:"delta"`
}

// DefaultTimingVarianceConfig returns sensible defaults.
func DefaultTimingVarianceConfig() TimingVarianceConfig {
	return TimingVarianceConfig{
		WindowSeconds:     10,
		MinSamples:        2,
		MaxMeanMillis:     500,
		MaxVarianceMillis: 2500,
		Delta:             25,
	}
}

// AccessTimesReader reads recent access timestamps from stored telemetry.
// Satisfied by *behavior.Tracker.
type AccessTimesReader interface {
	RecentAccessTimes(ctx context.Context, identifier, resourceType string, within time.Duration) []time.Time
}

// TimingVarianceSignal fires when inter-access intervals are both short and
// unnaturally regular. Humans do not click every 200ms with millisecond
// precision.
type TimingVarianceSignal struct {
	config  TimingVarianceConfig
	access  AccessTimesReader
	enabled bool
	mu      sync.RWMutex
}

func NewTimingVarianceSignal(access AccessTimesReader) *TimingVarianceSignal {
	return &TimingVarianceSignal{
		config:  DefaultTimingVarianceConfig(),
		access:  access,
		enabled: true,
	}
}

func (s *TimingVarianceSignal) Type() SignalType       { return SignalTimingVariance }
func (s *TimingVarianceSignal) ConsentDependent() bool { return true }

func (s *TimingVarianceSignal) Evaluate(ctx context.Context, identifier string, meta *RequestMeta) Result {
	s.mu.RLock()
	config := s.config
	s.mu.RUnlock()

	window := time.Duration(config.WindowSeconds) * time.Second
	times := s.access.RecentAccessTimes(ctx, identifier, meta.ResourceType, window)
	if len(times) < config.MinSamples+1 {
		return Result{}
	}

	intervals := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		intervals = append(intervals, float64(times[i].Sub(times[i-1]).Milliseconds()))
	}

	mean := 0.0
	for _, v := range intervals {
		mean += v
	}
	mean /= float64(len(intervals))

	variance := 0.0
	for _, v := range intervals {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(intervals))

	if mean < config.MaxMeanMillis && variance < config.MaxVarianceMillis {
		return Result{
			Triggered: true,
			Delta:     config.Delta,
			Patterns:  []string{string(SignalTimingVariance)},
		}
	}
	return Result{}
}

// Configure updates the signal configuration.
func (s *TimingVarianceSignal) Configure(config json.RawMessage) error {
	var newConfig TimingVarianceConfig
	if err := json.Unmarshal(config, &newConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if newConfig.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive")
	}
	if newConfig.MinSamples < 2 {
		return fmt.Errorf("min_samples must be at least 2")
	}
	if newConfig.MaxMeanMillis <= 0 || newConfig.MaxVarianceMillis <= 0 {
		return fmt.Errorf("mean and variance bounds must be positive")
	}
	if newConfig.Delta < 0 {
		return fmt.Errorf("delta must be non-negative")
	}

	s.mu.Lock()
	s.config = newConfig
	s.mu.Unlock()
	return nil
}

func (s *TimingVarianceSignal) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *TimingVarianceSignal) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Config returns the current configuration.
func (s *TimingVarianceSignal) Config() TimingVarianceConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}
