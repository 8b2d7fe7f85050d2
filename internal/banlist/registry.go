// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

// Package banlist is the authoritative block-list. Membership lives in the
// shared store: a "banned-set" set plus a per-identifier details record that
// carries the reason and expires with the ban. Expiry needs no sweeper: when
// the details record's TTL lapses the ban is over, and the stale set member
// is removed lazily on the next lookup.
package banlist

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/avasquez-dev/vigilis/internal/logging"
	"github.com/avasquez-dev/vigilis/internal/metrics"
	"github.com/avasquez-dev/vigilis/internal/ratelimit"
	"github.com/avasquez-dev/vigilis/internal/store"
)

const (
	setKey = "banned-set"

	// DefaultBanDuration applies when a ban is issued without an explicit
	// duration.
	DefaultBanDuration = 24 * time.Hour
)

// BanRecord describes an active ban.
type BanRecord struct {
	Identifier string        `json:"identifier"`
	Reason     string        `json:"reason"`
	IssuedAt   time.Time     `json:"issued_at"`
	Duration   time.Duration `json:"duration"`
	ExpiresAt  time.Time     `json:"expires_at"`
}

// QuotaResetter clears an identifier's rate-limit windows. Satisfied by
// *ratelimit.Limiter.
type QuotaResetter interface {
	Reset(ctx context.Context, identifier string, classes ...ratelimit.Class) error
}

// Registry manages the block-list in the shared store.
type Registry struct {
	store  store.Store
	quotas QuotaResetter

	now func() time.Time
}

func New(st store.Store, quotas QuotaResetter) *Registry {
	return &Registry{
		store:  st,
		quotas: quotas,
		now:    time.Now,
	}
}

func detailsKey(identifier string) string {
	return setKey + ":" + identifier + ":details"
}

// IsBanned reports whether the identifier is currently banned. The details
// record is authoritative: the instant its TTL lapses the ban is over, and
// any stale "banned-set" member is dropped on the way out. Store errors fail
// open to false.
func (r *Registry) IsBanned(ctx context.Context, identifier string) bool {
	_, err := r.store.Get(ctx, detailsKey(identifier))
	if err == nil {
		return true
	}
	if err != store.ErrNotFound {
		metrics.StoreErrors.WithLabelValues("banlist", "get").Inc()
		logging.Error().Err(err).Str("identifier", identifier).Msg("ban lookup failed, treating as not banned")
		return false
	}

	if member, serr := r.store.SIsMember(ctx, setKey, identifier); serr == nil && member {
		if rmErr := r.store.SRem(ctx, setKey, identifier); rmErr != nil {
			logging.Warn().Err(rmErr).Str("identifier", identifier).Msg("failed to remove expired ban member")
		}
	}
	return false
}

// Ban adds the identifier to the block-list for the given duration (the
// default when zero or negative) and resets its rate-limit windows so an
// unban never resumes a partially consumed quota. Store errors are logged,
// never raised: a ban that fails to persist degrades to not-banned.
func (r *Registry) Ban(ctx context.Context, identifier, reason string, duration time.Duration) BanRecord {
	if duration <= 0 {
		duration = DefaultBanDuration
	}

	now := r.now()
	rec := BanRecord{
		Identifier: identifier,
		Reason:     reason,
		IssuedAt:   now,
		Duration:   duration,
		ExpiresAt:  now.Add(duration),
	}

	if err := r.store.SAddWithTTL(ctx, setKey, identifier, duration); err != nil {
		metrics.StoreErrors.WithLabelValues("banlist", "sadd").Inc()
		logging.Error().Err(err).Str("identifier", identifier).Msg("failed to persist ban membership")
		return rec
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		logging.Error().Err(err).Str("identifier", identifier).Msg("failed to encode ban record")
		return rec
	}
	if err := r.store.SetWithTTL(ctx, detailsKey(identifier), string(payload), duration); err != nil {
		metrics.StoreErrors.WithLabelValues("banlist", "set").Inc()
		logging.Error().Err(err).Str("identifier", identifier).Msg("failed to persist ban details")
	}

	if err := r.quotas.Reset(ctx, identifier); err != nil {
		logging.Warn().Err(err).Str("identifier", identifier).Msg("failed to reset quotas on ban")
	}

	logging.Info().
		Str("identifier", identifier).
		Str("reason", reason).
		Dur("duration", duration).
		Msg("identifier banned")
	return rec
}

// Unban removes the identifier from the block-list.
func (r *Registry) Unban(ctx context.Context, identifier string) error {
	if err := r.store.SRem(ctx, setKey, identifier); err != nil {
		metrics.StoreErrors.WithLabelValues("banlist", "srem").Inc()
		return err
	}
	if err := r.store.Del(ctx, detailsKey(identifier)); err != nil {
		metrics.StoreErrors.WithLabelValues("banlist", "del").Inc()
		return err
	}
	metrics.BansLifted.Inc()
	logging.Info().Str("identifier", identifier).Msg("identifier unbanned")
	return nil
}

// Get returns the active ban record for the identifier, or nil when none
// exists.
func (r *Registry) Get(ctx context.Context, identifier string) (*BanRecord, error) {
	raw, err := r.store.Get(ctx, detailsKey(identifier))
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		metrics.StoreErrors.WithLabelValues("banlist", "get").Inc()
		return nil, err
	}

	var rec BanRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
