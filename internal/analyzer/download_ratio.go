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

// SignalDownloadRatio detects bulk-download behavior relative to browsing.
const SignalDownloadRatio SignalType = "download_ratio"

// DownloadRatioConfig configures the download ratio signal.
type DownloadRatioConfig struct {
	// HighRatio and LowRatio are the two thresholds on downloads ÷ views
	// over the trailing day. Crossing HighRatio contributes HighDelta,
	// crossing only LowRatio contributes LowDelta.
	HighRatio float64 `json:"high_ratio"`
	LowRatio  float64 `json:"low_ratio"`
	HighDelta int     `json:"high_delta"`
	LowDelta  int     `json:"low_delta"`
}

// DefaultDownloadRatioConfig returns sensible defaults.
func DefaultDownloadRatioConfig() DownloadRatioConfig {
	return DownloadRatioConfig{
		HighRatio: 0.8,
		LowRatio:  0.5,
		HighDelta: 30,
		LowDelta:  15,
	}
}

// RatioReader reads the view/download ratio from stored telemetry.
// Satisfied by *behavior.Tracker.
type RatioReader interface {
	ViewDownloadRatio(ctx context.Context, identifier string) float64
}

// DownloadRatioSignal fires when an identifier downloads far more than it
// browses. A zero ratio (no views recorded) contributes nothing.
type DownloadRatioSignal struct {
	config  DownloadRatioConfig
	ratios  RatioReader
	enabled bool
	mu      sync.RWMutex
}

func NewDownloadRatioSignal(ratios RatioReader) *DownloadRatioSignal {
	return &DownloadRatioSignal{
		config:  DefaultDownloadRatioConfig(),
		ratios:  ratios,
		enabled: true,
	}
}

func (s *DownloadRatioSignal) Type() SignalType       { return SignalDownloadRatio }
func (s *DownloadRatioSignal) ConsentDependent() bool { return true }

func (s *DownloadRatioSignal) Evaluate(ctx context.Context, identifier string, _ *RequestMeta) Result {
	s.mu.RLock()
	config := s.config
	s.mu.RUnlock()

	ratio := s.ratios.ViewDownloadRatio(ctx, identifier)

	switch {
	case ratio > config.HighRatio:
		return Result{
			Triggered: true,
			Delta:     config.HighDelta,
			Patterns:  []string{string(SignalDownloadRatio)},
		}
	case ratio > config.LowRatio:
		return Result{
			Triggered: true,
			Delta:     config.LowDelta,
			Patterns:  []string{string(SignalDownloadRatio)},
		}
	}
	return Result{}
}

// Configure updates the signal configuration.
func (s *DownloadRatioSignal) Configure(config json.RawMessage) error {
	var newConfig DownloadRatioConfig
	if err := json.Unmarshal(config, &newConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if newConfig.LowRatio <= 0 || newConfig.HighRatio <= newConfig.LowRatio {
		return fmt.Errorf("ratios must satisfy 0 < low_ratio < high_ratio")
	}
	if newConfig.LowDelta < 0 || newConfig.HighDelta < 0 {
		return fmt.Errorf("deltas must be non-negative")
	}

	s.mu.Lock()
	s.config = newConfig
	s.mu.Unlock()
	return nil
}

func (s *DownloadRatioSignal) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *DownloadRatioSignal) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Config returns the current configuration.
func (s *DownloadRatioSignal) Config() DownloadRatioConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}
