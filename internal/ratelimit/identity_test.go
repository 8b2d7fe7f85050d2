// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package ratelimit

import (
	"net/http/httptest"
	"testing"
)

func TestResolveIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		account    string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{
			name:       "account wins over all headers",
			account:    "42",
			forwarded:  "203.0.113.9",
			remoteAddr: "10.0.0.1:443",
			want:       "user:42",
		},
		{
			name:       "forwarded-for first hop",
			forwarded:  "203.0.113.9, 10.0.0.2, 10.0.0.3",
			remoteAddr: "10.0.0.1:443",
			want:       "ip:203.0.113.9",
		},
		{
			name:       "real-ip fallback",
			realIP:     "198.51.100.4",
			remoteAddr: "10.0.0.1:443",
			want:       "ip:198.51.100.4",
		},
		{
			name:       "remote addr stripped of port",
			remoteAddr: "192.0.2.7:52114",
			want:       "ip:192.0.2.7",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.0.2.7",
			want:       "ip:192.0.2.7",
		},
		{
			name: "nothing available",
			want: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/v1/analyze", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.account != "" {
				r = r.WithContext(WithAccount(r.Context(), tt.account))
			}

			if got := ResolveIdentifier(r); got != tt.want {
				t.Errorf("ResolveIdentifier() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveIdentifier_TrustedProxies(t *testing.T) {
	SetTrustedProxies([]string{"10.0.0.1"})
	t.Cleanup(func() { SetTrustedProxies(nil) })

	r := httptest.NewRequest("GET", "/v1/analyze", nil)
	r.RemoteAddr = "198.51.100.7:40222"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	r.Header.Set("X-Real-IP", "203.0.113.9")
	if got := ResolveIdentifier(r); got != "ip:198.51.100.7" {
		t.Errorf("untrusted peer should not assert a forwarded identity, got %q", got)
	}

	r.RemoteAddr = "10.0.0.1:40222"
	if got := ResolveIdentifier(r); got != "ip:203.0.113.9" {
		t.Errorf("trusted proxy forwarding ignored, got %q", got)
	}
}

func TestAccountFromContext_Absent(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if id := AccountFromContext(r.Context()); id != "" {
		t.Errorf("AccountFromContext on empty context = %q, want empty", id)
	}
}

func TestParseClass(t *testing.T) {
	for _, c := range Classes {
		got, err := ParseClass(string(c))
		if err != nil {
			t.Errorf("ParseClass(%q): %v", c, err)
		}
		if got != c {
			t.Errorf("ParseClass(%q) = %q", c, got)
		}
	}

	if _, err := ParseClass("bogus"); err == nil {
		t.Error("ParseClass should reject unknown class names")
	}
}
