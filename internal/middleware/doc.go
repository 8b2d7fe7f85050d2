// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

// Package middleware provides the HTTP middleware chain: request IDs,
// Prometheus instrumentation, ban screening, and the rate-limit admission
// guard that embedding services put in front of media routes.
package middleware
