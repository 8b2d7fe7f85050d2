// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/avasquez-dev/vigilis/internal/banlist"
	"github.com/avasquez-dev/vigilis/internal/ratelimit"
	"github.com/avasquez-dev/vigilis/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewRedisWithClient(client)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAdmission(t *testing.T) {
	limiter := ratelimit.New(newTestStore(t), map[ratelimit.Class]ratelimit.Policy{
		ratelimit.ClassImageView: {Window: time.Minute, Limit: 2},
	}, 0)

	handler := Admission(limiter, ratelimit.ClassImageView)(okHandler())

	do := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest("GET", "/photos/1", nil)
		r.RemoteAddr = "192.0.2.10:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	first := do()
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}
	if got := first.Header().Get("X-RateLimit-Remaining"); got != "1" {
		t.Errorf("remaining header = %q, want 1", got)
	}
	if first.Header().Get("X-RateLimit-Limit") != "2" {
		t.Error("limit header missing")
	}
	if first.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("reset header missing")
	}

	do()
	third := do()
	if third.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", third.Code)
	}
	if got := third.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
}

func TestAdmission_SeparateIdentifiers(t *testing.T) {
	limiter := ratelimit.New(newTestStore(t), map[ratelimit.Class]ratelimit.Policy{
		ratelimit.ClassImageView: {Window: time.Minute, Limit: 1},
	}, 0)

	handler := Admission(limiter, ratelimit.ClassImageView)(okHandler())

	do := func(addr string) int {
		r := httptest.NewRequest("GET", "/photos/1", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w.Code
	}

	do("192.0.2.10:1234")
	if code := do("192.0.2.10:9999"); code != http.StatusTooManyRequests {
		t.Errorf("same address different port should share quota, got %d", code)
	}
	if code := do("192.0.2.20:1234"); code != http.StatusOK {
		t.Errorf("different address should be admitted, got %d", code)
	}
}

type nopResetter struct{}

func (nopResetter) Reset(context.Context, string, ...ratelimit.Class) error { return nil }

func TestBlockBanned(t *testing.T) {
	registry := banlist.New(newTestStore(t), nopResetter{})
	handler := BlockBanned(registry)(okHandler())

	do := func(addr string) *httptest.ResponseRecorder {
		r := httptest.NewRequest("GET", "/photos/1", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	registry.Ban(context.Background(), "ip:192.0.2.10", "test", time.Hour)

	banned := do("192.0.2.10:1234")
	if banned.Code != http.StatusForbidden {
		t.Errorf("banned request status = %d, want 403", banned.Code)
	}
	// The response must not leak why.
	if body := banned.Body.String(); body != "access denied\n" {
		t.Errorf("banned response body = %q, want generic denial", body)
	}

	if code := do("192.0.2.20:1234").Code; code != http.StatusOK {
		t.Errorf("clean identifier status = %d, want 200", code)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if seen == "" {
		t.Error("request ID not set in context")
	}
	if got := w.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("response header %q != context value %q", got, seen)
	}

	// An upstream-provided ID is honored.
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Request-ID", "upstream-id")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if seen != "upstream-id" {
		t.Errorf("context ID = %q, want upstream-id", seen)
	}
}
