// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

// Package ratelimit implements sliding-window admission control per
// (identifier, limit class) against the shared counter store.
//
// Each admitted request inserts one nonce-tagged member into a sorted set
// scored by its timestamp; admission counts members inside the trailing
// window. Because insertion and counting are single atomic store operations,
// many stateless process instances can share the same counters without
// coordination. A slight over-admission under extreme concurrency is
// accepted in exchange for a lock-free check.
//
// Store failures never reject a request: the limiter fails open and reports
// the request as allowed, logging and counting the error instead.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/avasquez-dev/vigilis/internal/logging"
	"github.com/avasquez-dev/vigilis/internal/metrics"
	"github.com/avasquez-dev/vigilis/internal/store"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time

	// RetryAfter is how long the caller should wait before retrying.
	// Zero when the request is allowed.
	RetryAfter time.Duration
}

// Usage reports the current window occupancy for one (identifier, class).
type Usage struct {
	Count  int64
	Window time.Duration
}

// Limiter performs sliding-window admission checks.
type Limiter struct {
	store     store.Store
	policies  map[Class]Policy
	pruneProb float64

	// now and randFloat are injectable for deterministic tests.
	now       func() time.Time
	randFloat func() float64
}

// New creates a Limiter with the given policy table.
func New(st store.Store, policies map[Class]Policy, pruneProb float64) *Limiter {
	return &Limiter{
		store:     st,
		policies:  policies,
		pruneProb: pruneProb,
		now:       time.Now,
		randFloat: rand.Float64,
	}
}

// CheckLimit admits or rejects one request for identifier under class.
//
// customLimit, when positive, replaces the class limit as the comparison
// threshold for this call only; stored window entries are never
// reinterpreted. Store errors fail open: the decision reports Allowed with a
// conservative Remaining of 1 and the error is logged, never returned.
func (l *Limiter) CheckLimit(ctx context.Context, identifier string, class Class, customLimit int64) Decision {
	policy := l.policies[class]
	limit := policy.Limit
	if customLimit > 0 {
		limit = customLimit
	}

	now := l.now()
	windowStart := now.Add(-policy.Window)
	key := class.Key(identifier)

	// Key TTLs bound store growth on their own; the occasional prune just
	// keeps hot keys small.
	if l.pruneProb > 0 && l.randFloat() < l.pruneProb {
		if err := l.store.ZRemRangeByScore(ctx, key, 0, float64(windowStart.UnixMilli()-1)); err != nil {
			metrics.StoreErrors.WithLabelValues("ratelimit", "prune").Inc()
			logging.Warn().Err(err).Str("key", key).Msg("window prune failed")
		}
	}

	count, err := l.store.ZCount(ctx, key, float64(windowStart.UnixMilli()), float64(now.UnixMilli()))
	if err != nil {
		return l.failOpen(class, limit, now, policy, "count", err)
	}

	if count >= limit {
		metrics.AdmissionChecksTotal.WithLabelValues(string(class), "false").Inc()
		metrics.RateLimitRejections.WithLabelValues(string(class)).Inc()
		return Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    now.Add(policy.Window),
			RetryAfter: policy.Window,
		}
	}

	// A timestamp alone cannot be the member: concurrent requests in the
	// same millisecond must produce distinct window entries.
	member := strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString()
	if err := l.store.ZAddWithTTL(ctx, key, float64(now.UnixMilli()), member, policy.Window); err != nil {
		return l.failOpen(class, limit, now, policy, "insert", err)
	}

	metrics.AdmissionChecksTotal.WithLabelValues(string(class), "true").Inc()
	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - count - 1,
		ResetAt:   now.Add(policy.Window),
	}
}

func (l *Limiter) failOpen(class Class, limit int64, now time.Time, policy Policy, op string, err error) Decision {
	metrics.StoreErrors.WithLabelValues("ratelimit", op).Inc()
	metrics.AdmissionChecksTotal.WithLabelValues(string(class), "true").Inc()
	logging.Error().Err(err).Str("class", string(class)).Msg("counter store unavailable, admitting request")

	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: 1,
		ResetAt:   now.Add(policy.Window),
	}
}

// GetUsage eagerly prunes expired entries and reports the current window
// count. Serves dashboards and the analyzer, never admission.
func (l *Limiter) GetUsage(ctx context.Context, identifier string, class Class) (Usage, error) {
	policy := l.policies[class]
	now := l.now()
	key := class.Key(identifier)

	if err := l.store.ZRemRangeByScore(ctx, key, 0, float64(now.Add(-policy.Window).UnixMilli()-1)); err != nil {
		return Usage{}, err
	}
	count, err := l.store.ZCount(ctx, key, float64(now.Add(-policy.Window).UnixMilli()), float64(now.UnixMilli()))
	if err != nil {
		return Usage{}, err
	}
	return Usage{Count: count, Window: policy.Window}, nil
}

// Reset deletes the window keys for an identifier. With no classes given,
// every class is reset. Used when a requester's privilege level changes and
// when lifting an erroneous ban.
func (l *Limiter) Reset(ctx context.Context, identifier string, classes ...Class) error {
	if len(classes) == 0 {
		classes = Classes
	}
	keys := make([]string, 0, len(classes))
	for _, c := range classes {
		keys = append(keys, c.Key(identifier))
	}
	return l.store.Del(ctx, keys...)
}
