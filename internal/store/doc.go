// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

// Package store defines the shared counter store interface consumed by the
// rate limiter, behavior tracker and ban registry, together with its Redis
// implementation.
//
// The subsystem runs in many stateless request-handling processes at once, so
// all admission-affecting state lives behind this interface rather than in
// process memory. Correctness depends on the backend's atomicity, not on
// local locking: every interface method is a single atomic operation or one
// pipelined round trip.
//
// Sorted-set scores are Unix milliseconds. Keys are namespaced by the owning
// component (rl: rate limit windows, bh: behavior telemetry, banned-set for
// the ban registry) and always carry a TTL so state expires without sweeps.
package store
