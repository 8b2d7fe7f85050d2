// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
)

type contextKey string

// accountKey carries the authenticated account identity resolved by the
// platform's auth layer, when present.
const accountKey contextKey = "vigilis.account"

// WithAccount returns a context carrying the authenticated account ID.
// The calling layer sets this after membership resolution.
func WithAccount(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountKey, accountID)
}

// AccountFromContext returns the authenticated account ID, or "".
func AccountFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(accountKey).(string); ok {
		return v
	}
	return ""
}

var (
	trustedProxiesMu sync.RWMutex
	trustedProxies   map[string]struct{}
)

// SetTrustedProxies restricts which peers may assert a client identity via
// X-Forwarded-For and X-Real-IP. With an empty list the headers are honored
// from any peer, which is only safe when an upstream edge strips them.
func SetTrustedProxies(addrs []string) {
	trustedProxiesMu.Lock()
	defer trustedProxiesMu.Unlock()
	if len(addrs) == 0 {
		trustedProxies = nil
		return
	}
	trustedProxies = make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			trustedProxies[a] = struct{}{}
		}
	}
}

func forwardingTrusted(remoteAddr string) bool {
	trustedProxiesMu.RLock()
	defer trustedProxiesMu.RUnlock()
	if trustedProxies == nil {
		return true
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	_, ok := trustedProxies[host]
	return ok
}

// ResolveIdentifier names the requester behind r.
//
// An authenticated account identity is preferred. Without one, the network
// origin is checked in a fixed precedence order so the same requester always
// maps to the same identifier: X-Forwarded-For (first hop), then X-Real-IP,
// then the edge-provided remote address. "unknown" is the last resort.
// Forwarding headers are consulted only when the direct peer is a trusted
// proxy (or no trusted set is configured).
func ResolveIdentifier(r *http.Request) string {
	if account := AccountFromContext(r.Context()); account != "" {
		return "user:" + account
	}

	if forwardingTrusted(r.RemoteAddr) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
				return "ip:" + ip
			}
		}

		if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
			return "ip:" + rip
		}
	}

	if r.RemoteAddr != "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			// RemoteAddr without a port, use as-is.
			host = r.RemoteAddr
		}
		if host != "" {
			return "ip:" + host
		}
	}

	return "unknown"
}
