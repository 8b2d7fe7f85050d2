// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/avasquez-dev/vigilis/internal/store"
)

func testPolicies() map[Class]Policy {
	return map[Class]Policy{
		ClassImageView: {Window: time.Minute, Limit: 5},
		ClassSetView:   {Window: time.Minute, Limit: 30},
		ClassDownload:  {Window: time.Hour, Limit: 50},
		ClassAPI:       {Window: time.Minute, Limit: 300},
		ClassAuth:      {Window: 15 * time.Minute, Limit: 50},
		ClassBulkView:  {Window: 5 * time.Minute, Limit: 200},
	}
}

func newTestLimiter(t *testing.T) (*Limiter, *time.Time) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewRedisWithClient(client)
	t.Cleanup(func() { _ = st.Close() })

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	l := New(st, testPolicies(), 0)
	l.now = func() time.Time { return now }

	return l, &now
}

func TestCheckLimit_WindowCorrectness(t *testing.T) {
	l, now := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d := l.CheckLimit(ctx, "ip:10.0.0.1", ClassImageView, 0)
		if !d.Allowed {
			t.Fatalf("call %d should be allowed", i+1)
		}
		if want := int64(5 - i - 1); d.Remaining != want {
			t.Errorf("call %d remaining = %d, want %d", i+1, d.Remaining, want)
		}
	}

	d := l.CheckLimit(ctx, "ip:10.0.0.1", ClassImageView, 0)
	if d.Allowed {
		t.Fatal("6th call within the window should be rejected")
	}
	if d.RetryAfter != time.Minute {
		t.Errorf("RetryAfter = %v, want window duration", d.RetryAfter)
	}
	if d.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0 on rejection", d.Remaining)
	}

	// After the window passes with no further calls, admission resumes.
	*now = now.Add(61 * time.Second)
	d = l.CheckLimit(ctx, "ip:10.0.0.1", ClassImageView, 0)
	if !d.Allowed {
		t.Error("call after window elapsed should be allowed")
	}
}

func TestCheckLimit_AuthScenario(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	// 50 calls within 10 seconds all admitted with decreasing remaining.
	for i := 0; i < 50; i++ {
		d := l.CheckLimit(ctx, "ip:1.2.3.4", ClassAuth, 0)
		if !d.Allowed {
			t.Fatalf("auth call %d should be allowed", i+1)
		}
		if want := int64(49 - i); d.Remaining != want {
			t.Errorf("auth call %d remaining = %d, want %d", i+1, d.Remaining, want)
		}
	}

	d := l.CheckLimit(ctx, "ip:1.2.3.4", ClassAuth, 0)
	if d.Allowed {
		t.Fatal("51st auth call should be rejected")
	}
	if d.RetryAfter != 15*time.Minute {
		t.Errorf("RetryAfter = %v, want 900s", d.RetryAfter)
	}
}

func TestCheckLimit_IdentifierIsolation(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.CheckLimit(ctx, "ip:10.0.0.1", ClassImageView, 0)
	}
	if d := l.CheckLimit(ctx, "ip:10.0.0.1", ClassImageView, 0); d.Allowed {
		t.Fatal("identifier A should be exhausted")
	}

	if d := l.CheckLimit(ctx, "ip:10.0.0.2", ClassImageView, 0); !d.Allowed {
		t.Error("identifier B should be unaffected by A's counters")
	}
}

func TestCheckLimit_ClassIsolation(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.CheckLimit(ctx, "ip:10.0.0.1", ClassImageView, 0)
	}

	if d := l.CheckLimit(ctx, "ip:10.0.0.1", ClassSetView, 0); !d.Allowed {
		t.Error("a different class should have its own window")
	}
}

func TestCheckLimit_CustomLimitThresholdOnly(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	// Fill three entries under the default limit of 5.
	for i := 0; i < 3; i++ {
		l.CheckLimit(ctx, "user:77", ClassImageView, 0)
	}

	// A custom limit of 3 applies to this comparison only: stored entries
	// are counted as-is, so the call is rejected without rewriting history.
	d := l.CheckLimit(ctx, "user:77", ClassImageView, 3)
	if d.Allowed {
		t.Error("custom limit 3 with 3 stored entries should reject")
	}
	if d.Limit != 3 {
		t.Errorf("decision limit = %d, want custom limit 3", d.Limit)
	}

	// The default limit still applies on the next plain call.
	if d := l.CheckLimit(ctx, "user:77", ClassImageView, 0); !d.Allowed {
		t.Error("default limit call should still be admitted")
	}
}

func TestCheckLimit_FailOpen(t *testing.T) {
	l := New(&failingStore{}, testPolicies(), 0)

	d := l.CheckLimit(context.Background(), "ip:10.0.0.1", ClassImageView, 0)
	if !d.Allowed {
		t.Error("store failure must fail open")
	}
	if d.Remaining != 1 {
		t.Errorf("fail-open remaining = %d, want conservative 1", d.Remaining)
	}
}

func TestGetUsage(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.CheckLimit(ctx, "ip:10.0.0.1", ClassImageView, 0)
	}

	u, err := l.GetUsage(ctx, "ip:10.0.0.1", ClassImageView)
	if err != nil {
		t.Fatalf("GetUsage: %v", err)
	}
	if u.Count != 3 {
		t.Errorf("usage count = %d, want 3", u.Count)
	}
	if u.Window != time.Minute {
		t.Errorf("usage window = %v, want 1m", u.Window)
	}
}

func TestReset(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.CheckLimit(ctx, "user:42", ClassImageView, 0)
	}
	if d := l.CheckLimit(ctx, "user:42", ClassImageView, 0); d.Allowed {
		t.Fatal("should be exhausted before reset")
	}

	if err := l.Reset(ctx, "user:42", ClassImageView); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if d := l.CheckLimit(ctx, "user:42", ClassImageView, 0); !d.Allowed {
		t.Error("reset should clear the window")
	}
}

func TestReset_AllClasses(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	l.CheckLimit(ctx, "user:42", ClassImageView, 0)
	l.CheckLimit(ctx, "user:42", ClassAuth, 0)

	if err := l.Reset(ctx, "user:42"); err != nil {
		t.Fatalf("Reset all: %v", err)
	}

	for _, c := range []Class{ClassImageView, ClassAuth} {
		u, err := l.GetUsage(ctx, "user:42", c)
		if err != nil {
			t.Fatalf("GetUsage(%s): %v", c, err)
		}
		if u.Count != 0 {
			t.Errorf("class %s count = %d after full reset, want 0", c, u.Count)
		}
	}
}

func TestCheckLimit_PruneRemovesExpiredEntries(t *testing.T) {
	l, now := newTestLimiter(t)
	l.pruneProb = 1
	l.randFloat = func() float64 { return 0 } // always prune
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		l.CheckLimit(ctx, "ip:10.0.0.1", ClassImageView, 0)
	}

	*now = now.Add(2 * time.Minute)
	if d := l.CheckLimit(ctx, "ip:10.0.0.1", ClassImageView, 0); !d.Allowed {
		t.Fatal("entries outside the window should not count")
	}

	u, err := l.GetUsage(ctx, "ip:10.0.0.1", ClassImageView)
	if err != nil {
		t.Fatalf("GetUsage: %v", err)
	}
	if u.Count != 1 {
		t.Errorf("count after prune = %d, want 1", u.Count)
	}
}

// failingStore errors on every operation, simulating a store outage.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (f *failingStore) ZAddWithTTL(context.Context, string, float64, string, time.Duration) error {
	return errStoreDown
}
func (f *failingStore) ZCount(context.Context, string, float64, float64) (int64, error) {
	return 0, errStoreDown
}
func (f *failingStore) ZRemRangeByScore(context.Context, string, float64, float64) error {
	return errStoreDown
}
func (f *failingStore) ZScores(context.Context, string, float64, float64) ([]float64, error) {
	return nil, errStoreDown
}
func (f *failingStore) SAddWithTTL(context.Context, string, string, time.Duration) error {
	return errStoreDown
}
func (f *failingStore) SCard(context.Context, string) (int64, error) { return 0, errStoreDown }
func (f *failingStore) SIsMember(context.Context, string, string) (bool, error) {
	return false, errStoreDown
}
func (f *failingStore) SRem(context.Context, string, string) error { return errStoreDown }
func (f *failingStore) IncrWithTTL(context.Context, string, time.Duration) (int64, error) {
	return 0, errStoreDown
}
func (f *failingStore) Get(context.Context, string) (string, error) { return "", errStoreDown }
func (f *failingStore) SetWithTTL(context.Context, string, string, time.Duration) error {
	return errStoreDown
}
func (f *failingStore) Del(context.Context, ...string) error                  { return errStoreDown }
func (f *failingStore) Expire(context.Context, string, time.Duration) error   { return errStoreDown }
func (f *failingStore) Close() error                                          { return nil }
