// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

// Package behavior maintains lightweight per-identifier telemetry used as
// analyzer input. Every mutator except RecordOrigin is gated on tracking
// consent and becomes a no-op when consent is absent. All state lives in the
// shared store under the "bh:" namespace with bounded horizons, so the
// tracker itself holds nothing in memory and needs no sweeping.
//
// Read operations fail open: a store error yields a zero count or zero
// ratio, never an error to the caller.
package behavior

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/avasquez-dev/vigilis/internal/logging"
	"github.com/avasquez-dev/vigilis/internal/metrics"
	"github.com/avasquez-dev/vigilis/internal/store"
)

// Resource types tracked per identifier. Downloads feed the view/download
// ratio; everything else counts as a view.
const (
	ResourceImage    = "image"
	ResourceSet      = "set"
	ResourceDownload = "download"
)

const (
	keyPrefix     = "bh"
	accessHorizon = 5 * time.Minute
	originHorizon = time.Hour
	ratioHorizon  = 24 * time.Hour
)

// ConsentGate answers whether an identifier has opted into behavioral
// tracking. Implementations must be safe for concurrent use and must
// resolve failures to false rather than returning an error.
type ConsentGate interface {
	HasTrackingConsent(ctx context.Context, identifier string) bool
}

// Tracker records access telemetry in the shared store.
type Tracker struct {
	store store.Store
	gate  ConsentGate

	now func() time.Time
}

func New(st store.Store, gate ConsentGate) *Tracker {
	return &Tracker{
		store: st,
		gate:  gate,
		now:   time.Now,
	}
}

// SetClock overrides the tracker's time source. Intended for tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

func timesKey(identifier, resourceType string) string {
	return keyPrefix + ":" + identifier + ":" + resourceType + ":times"
}

func viewsKey(identifier string) string {
	return keyPrefix + ":" + identifier + ":views"
}

func downloadsKey(identifier string) string {
	return keyPrefix + ":" + identifier + ":downloads"
}

func originsKey(identifier string) string {
	return keyPrefix + ":" + identifier + ":ips"
}

// RecordAccess appends an access timestamp for (identifier, resourceType)
// and bumps the 24h view or download counter. No-op without consent.
func (t *Tracker) RecordAccess(ctx context.Context, identifier, resourceType string) {
	if !t.gate.HasTrackingConsent(ctx, identifier) {
		return
	}

	now := t.now()
	member := strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString()
	if err := t.store.ZAddWithTTL(ctx, timesKey(identifier, resourceType), float64(now.UnixMilli()), member, accessHorizon); err != nil {
		metrics.StoreErrors.WithLabelValues("behavior", "zadd").Inc()
		logging.Error().Err(err).Str("identifier", identifier).Msg("failed to record access time")
	}

	counter := viewsKey(identifier)
	if resourceType == ResourceDownload {
		counter = downloadsKey(identifier)
	}
	if _, err := t.store.IncrWithTTL(ctx, counter, ratioHorizon); err != nil {
		metrics.StoreErrors.WithLabelValues("behavior", "incr").Inc()
		logging.Error().Err(err).Str("identifier", identifier).Msg("failed to bump access counter")
	}
}

// RecentAccessCount counts accesses for (identifier, resourceType) within
// the trailing duration, capped by the 5-minute retention horizon.
func (t *Tracker) RecentAccessCount(ctx context.Context, identifier, resourceType string, within time.Duration) int64 {
	now := t.now()
	min := float64(now.Add(-within).UnixMilli())
	max := float64(now.UnixMilli())

	count, err := t.store.ZCount(ctx, timesKey(identifier, resourceType), min, max)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("behavior", "zcount").Inc()
		logging.Error().Err(err).Str("identifier", identifier).Msg("failed to count recent accesses")
		return 0
	}
	return count
}

// RecentAccessTimes returns access timestamps for (identifier, resourceType)
// within the trailing duration, in ascending order.
func (t *Tracker) RecentAccessTimes(ctx context.Context, identifier, resourceType string, within time.Duration) []time.Time {
	now := t.now()
	min := float64(now.Add(-within).UnixMilli())
	max := float64(now.UnixMilli())

	scores, err := t.store.ZScores(ctx, timesKey(identifier, resourceType), min, max)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("behavior", "zscores").Inc()
		logging.Error().Err(err).Str("identifier", identifier).Msg("failed to read access times")
		return nil
	}

	times := make([]time.Time, 0, len(scores))
	for _, s := range scores {
		times = append(times, time.UnixMilli(int64(s)))
	}
	return times
}

// RecordOrigin adds a network origin address to the identifier's distinct
// origin set with a 1-hour horizon. Deliberately not consent-gated: origin
// diversity is an abuse signal, not behavioral telemetry.
func (t *Tracker) RecordOrigin(ctx context.Context, identifier, address string) {
	if address == "" {
		return
	}
	if err := t.store.SAddWithTTL(ctx, originsKey(identifier), address, originHorizon); err != nil {
		metrics.StoreErrors.WithLabelValues("behavior", "sadd").Inc()
		logging.Error().Err(err).Str("identifier", identifier).Msg("failed to record origin address")
	}
}

// DistinctOriginCount reports how many distinct origin addresses the
// identifier has been seen from in the trailing hour.
func (t *Tracker) DistinctOriginCount(ctx context.Context, identifier string) int64 {
	count, err := t.store.SCard(ctx, originsKey(identifier))
	if err != nil {
		metrics.StoreErrors.WithLabelValues("behavior", "scard").Inc()
		logging.Error().Err(err).Str("identifier", identifier).Msg("failed to count origins")
		return 0
	}
	return count
}

// ViewDownloadRatio reports downloads divided by views over the trailing
// 24 hours. Zero views yields 0, not an error.
func (t *Tracker) ViewDownloadRatio(ctx context.Context, identifier string) float64 {
	views := t.counterValue(ctx, viewsKey(identifier))
	if views == 0 {
		return 0
	}
	downloads := t.counterValue(ctx, downloadsKey(identifier))
	return float64(downloads) / float64(views)
}

func (t *Tracker) counterValue(ctx context.Context, key string) int64 {
	raw, err := t.store.Get(ctx, key)
	if err != nil {
		if err != store.ErrNotFound {
			metrics.StoreErrors.WithLabelValues("behavior", "get").Inc()
			logging.Error().Err(err).Str("key", key).Msg("failed to read counter")
		}
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
