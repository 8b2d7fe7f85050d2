// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package banlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/avasquez-dev/vigilis/internal/ratelimit"
	"github.com/avasquez-dev/vigilis/internal/store"
)

type recordingResetter struct {
	calls []string
}

func (r *recordingResetter) Reset(_ context.Context, identifier string, _ ...ratelimit.Class) error {
	r.calls = append(r.calls, identifier)
	return nil
}

func newTestRegistry(t *testing.T) (*Registry, *recordingResetter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewRedisWithClient(client)
	t.Cleanup(func() { _ = st.Close() })

	resetter := &recordingResetter{}
	return New(st, resetter), resetter, mr
}

func TestBanAndLookup(t *testing.T) {
	reg, resetter, _ := newTestRegistry(t)
	ctx := context.Background()

	if reg.IsBanned(ctx, "user:1") {
		t.Fatal("identifier should not start banned")
	}

	rec := reg.Ban(ctx, "user:1", "origin_hopping confidence=85", time.Hour)
	if !reg.IsBanned(ctx, "user:1") {
		t.Error("identifier should be banned after Ban")
	}
	if rec.Duration != time.Hour {
		t.Errorf("record duration = %v, want 1h", rec.Duration)
	}
	if rec.ExpiresAt.Sub(rec.IssuedAt) != time.Hour {
		t.Error("expiry should be issued-at plus duration")
	}

	if len(resetter.calls) != 1 || resetter.calls[0] != "user:1" {
		t.Errorf("quota reset calls = %v, want one for user:1", resetter.calls)
	}

	got, err := reg.Get(ctx, "user:1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Reason != "origin_hopping confidence=85" {
		t.Errorf("Get = %+v, want stored reason", got)
	}
}

func TestBan_DefaultDuration(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	rec := reg.Ban(context.Background(), "user:2", "manual", 0)
	if rec.Duration != DefaultBanDuration {
		t.Errorf("duration = %v, want default %v", rec.Duration, DefaultBanDuration)
	}
}

func TestBan_ExpiresWithTTL(t *testing.T) {
	reg, _, mr := newTestRegistry(t)
	ctx := context.Background()

	reg.Ban(ctx, "user:3", "scripted timing", time.Minute)
	if !reg.IsBanned(ctx, "user:3") {
		t.Fatal("should be banned before TTL lapses")
	}

	mr.FastForward(2 * time.Minute)
	if reg.IsBanned(ctx, "user:3") {
		t.Error("ban should lapse with the record's TTL")
	}

	rec, err := reg.Get(ctx, "user:3")
	if err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}
	if rec != nil {
		t.Errorf("Get after expiry = %+v, want nil", rec)
	}
}

func TestUnban(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	ctx := context.Background()

	reg.Ban(ctx, "user:4", "manual", time.Hour)
	if err := reg.Unban(ctx, "user:4"); err != nil {
		t.Fatalf("Unban: %v", err)
	}
	if reg.IsBanned(ctx, "user:4") {
		t.Error("identifier should not be banned after Unban")
	}
}

func TestIsBanned_FailOpenOnStoreError(t *testing.T) {
	reg := New(downStore{}, &recordingResetter{})

	if reg.IsBanned(context.Background(), "user:5") {
		t.Error("store error must resolve to not banned")
	}
}

func TestBan_StoreErrorDoesNotPanicOrRaise(t *testing.T) {
	reg := New(downStore{}, &recordingResetter{})

	rec := reg.Ban(context.Background(), "user:6", "manual", time.Hour)
	if reg.IsBanned(context.Background(), "user:6") {
		t.Error("failed persistence must leave the identifier unbanned")
	}
	if rec.Identifier != "user:6" {
		t.Errorf("record identifier = %q", rec.Identifier)
	}
}

type downStore struct{}

var errDown = errors.New("store down")

func (downStore) ZAddWithTTL(context.Context, string, float64, string, time.Duration) error {
	return errDown
}
func (downStore) ZCount(context.Context, string, float64, float64) (int64, error) {
	return 0, errDown
}
func (downStore) ZRemRangeByScore(context.Context, string, float64, float64) error { return errDown }
func (downStore) ZScores(context.Context, string, float64, float64) ([]float64, error) {
	return nil, errDown
}
func (downStore) SAddWithTTL(context.Context, string, string, time.Duration) error { return errDown }
func (downStore) SCard(context.Context, string) (int64, error)                     { return 0, errDown }
func (downStore) SIsMember(context.Context, string, string) (bool, error) {
	return false, errDown
}
func (downStore) SRem(context.Context, string, string) error { return errDown }
func (downStore) IncrWithTTL(context.Context, string, time.Duration) (int64, error) {
	return 0, errDown
}
func (downStore) Get(context.Context, string) (string, error) { return "", errDown }
func (downStore) SetWithTTL(context.Context, string, string, time.Duration) error {
	return errDown
}
func (downStore) Del(context.Context, ...string) error                { return errDown }
func (downStore) Expire(context.Context, string, time.Duration) error { return errDown }
func (downStore) Close() error                                        { return nil }
