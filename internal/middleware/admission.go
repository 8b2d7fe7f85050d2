// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package middleware

import (
	"net/http"
	"strconv"

	"github.com/avasquez-dev/vigilis/internal/banlist"
	"github.com/avasquez-dev/vigilis/internal/metrics"
	"github.com/avasquez-dev/vigilis/internal/ratelimit"
)

// Admission guards a route group with the sliding-window limiter for one
// limit class. Rejections carry the standard rate-limit headers plus
// Retry-After; allowed responses expose the remaining quota.
func Admission(limiter *ratelimit.Limiter, class ratelimit.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := ratelimit.ResolveIdentifier(r)
			decision := limiter.CheckLimit(r.Context(), identifier, class, 0)

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			metrics.AdmissionChecksTotal.WithLabelValues(string(class), strconv.FormatBool(decision.Allowed)).Inc()

			if !decision.Allowed {
				metrics.RateLimitRejections.WithLabelValues(string(class)).Inc()
				w.Header().Set("Retry-After", strconv.FormatInt(int64(decision.RetryAfter.Seconds()), 10))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// BlockBanned rejects requests from banned identifiers with a deliberately
// generic response that discloses nothing about which heuristic tripped.
func BlockBanned(registry *banlist.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := ratelimit.ResolveIdentifier(r)
			if registry.IsBanned(r.Context(), identifier) {
				metrics.RequestsBlocked.Inc()
				http.Error(w, "access denied", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
