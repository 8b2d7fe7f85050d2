// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

// Package analyzer fuses independent scraping signals into a single
// confidence-weighted decision. Each signal contributes an additive delta,
// so no single heuristic short of an existing ban can force a block on its
// own: a privacy browser with stripped headers scores some points, but only
// convergent evidence crosses the block threshold.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/avasquez-dev/vigilis/internal/banlist"
	"github.com/avasquez-dev/vigilis/internal/behavior"
	"github.com/avasquez-dev/vigilis/internal/forensics"
	"github.com/avasquez-dev/vigilis/internal/logging"
	"github.com/avasquez-dev/vigilis/internal/metrics"
)

// Thresholds on the fused confidence value.
const (
	DefaultSuspiciousThreshold = 30
	DefaultForensicThreshold   = 50
	DefaultAutoBlockThreshold  = 80
)

// PatternBanned tags the short-circuit result for an already-banned
// identifier.
const PatternBanned = "banned"

// BanIssuer issues automatic bans. Satisfied by *banlist.Registry.
type BanIssuer interface {
	IsBanned(ctx context.Context, identifier string) bool
	Ban(ctx context.Context, identifier, reason string, duration time.Duration) banlist.BanRecord
}

// ForensicSink receives suspicious-activity records. Satisfied by
// *forensics.Dispatcher.
type ForensicSink interface {
	Record(e forensics.Event)
}

// Options carries the fusion thresholds and auto-ban duration.
type Options struct {
	SuspiciousThreshold int
	ForensicThreshold   int
	AutoBlockThreshold  int
	BanDuration         time.Duration
}

// DefaultOptions returns the standard thresholds and a 24h auto-ban.
func DefaultOptions() Options {
	return Options{
		SuspiciousThreshold: DefaultSuspiciousThreshold,
		ForensicThreshold:   DefaultForensicThreshold,
		AutoBlockThreshold:  DefaultAutoBlockThreshold,
		BanDuration:         banlist.DefaultBanDuration,
	}
}

// Analyzer runs the signal set for each request and fuses the results.
type Analyzer struct {
	bans    BanIssuer
	gate    behavior.ConsentGate
	sink    ForensicSink
	opts    Options
	signals map[SignalType]Signal
	order   []SignalType

	now func() time.Time
}

// New builds an analyzer over the given signals. A nil sink disables
// forensic emission. Signal order is fixed at construction so pattern tags
// come out deterministically.
func New(bans BanIssuer, gate behavior.ConsentGate, sink ForensicSink, opts Options, signals ...Signal) *Analyzer {
	byType := make(map[SignalType]Signal, len(signals))
	order := make([]SignalType, 0, len(signals))
	for _, s := range signals {
		byType[s.Type()] = s
		order = append(order, s.Type())
	}
	return &Analyzer{
		bans:    bans,
		gate:    gate,
		sink:    sink,
		opts:    opts,
		signals: byType,
		order:   order,
		now:     time.Now,
	}
}

// NewDefault wires the standard five signals against a behavior tracker.
func NewDefault(bans BanIssuer, gate behavior.ConsentGate, sink ForensicSink, tracker *behavior.Tracker, opts Options) *Analyzer {
	return New(bans, gate, sink, opts,
		NewRapidAccessSignal(tracker),
		NewTimingVarianceSignal(tracker),
		NewDownloadRatioSignal(tracker),
		NewOriginHoppingSignal(tracker),
		NewHeadersSignal(),
	)
}

// Analyze produces the fused decision for one request.
//
// An existing ban short-circuits to confidence 100. Otherwise
// consent-dependent signals run only with tracking consent, header
// heuristics always run, deltas are summed and clamped to [0, 100], and a
// result at or above the block threshold triggers an automatic ban — but
// only with consent, since without consent the behavioral evidence needed
// to justify one was never evaluated.
func (a *Analyzer) Analyze(ctx context.Context, identifier string, meta *RequestMeta) Analysis {
	if a.bans.IsBanned(ctx, identifier) {
		metrics.RequestsBlocked.Inc()
		return Analysis{
			Suspicious:  true,
			Confidence:  100,
			Patterns:    []string{PatternBanned},
			ShouldBlock: true,
		}
	}

	hasConsent := a.gate.HasTrackingConsent(ctx, identifier)

	confidence := 0
	var patterns []string
	for _, st := range a.order {
		sig := a.signals[st]
		if !sig.Enabled() {
			continue
		}
		if sig.ConsentDependent() && !hasConsent {
			continue
		}
		res := sig.Evaluate(ctx, identifier, meta)
		if !res.Triggered {
			continue
		}
		confidence += res.Delta
		patterns = append(patterns, res.Patterns...)
		metrics.SignalTriggers.WithLabelValues(string(st)).Inc()
	}

	if confidence > 100 {
		confidence = 100
	}
	if confidence < 0 {
		confidence = 0
	}
	metrics.AnalyzerConfidence.Observe(float64(confidence))

	result := Analysis{
		Suspicious:  confidence > a.opts.SuspiciousThreshold,
		Confidence:  confidence,
		Patterns:    patterns,
		ShouldBlock: confidence >= a.opts.AutoBlockThreshold,
	}

	if confidence > a.opts.ForensicThreshold && a.sink != nil {
		a.sink.Record(forensics.Event{
			Identifier:   identifier,
			Confidence:   confidence,
			Patterns:     patterns,
			ResourceType: meta.ResourceType,
			UserAgent:    meta.UserAgent,
			ObservedAt:   a.now(),
		})
	}

	if result.ShouldBlock {
		metrics.RequestsBlocked.Inc()
		if hasConsent {
			reason := banReason(patterns, confidence)
			a.bans.Ban(ctx, identifier, reason, a.opts.BanDuration)
			metrics.BansIssued.WithLabelValues("auto").Inc()
			logging.Warn().
				Str("identifier", identifier).
				Int("confidence", confidence).
				Strs("patterns", patterns).
				Msg("automatic ban issued")
		}
	}

	return result
}

// ConfigureSignal applies a JSON configuration to one signal.
func (a *Analyzer) ConfigureSignal(st SignalType, config json.RawMessage) error {
	sig, ok := a.signals[st]
	if !ok {
		return fmt.Errorf("unknown signal %q", st)
	}
	return sig.Configure(config)
}

// SetSignalEnabled toggles one signal.
func (a *Analyzer) SetSignalEnabled(st SignalType, enabled bool) error {
	sig, ok := a.signals[st]
	if !ok {
		return fmt.Errorf("unknown signal %q", st)
	}
	sig.SetEnabled(enabled)
	return nil
}

// SignalTypes lists the registered signals in a stable order.
func (a *Analyzer) SignalTypes() []SignalType {
	out := make([]SignalType, len(a.order))
	copy(out, a.order)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func banReason(patterns []string, confidence int) string {
	return "auto-ban: patterns=" + strings.Join(patterns, ",") +
		" confidence=" + strconv.Itoa(confidence)
}
