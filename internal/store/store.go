// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("store: key not found")

// Store is the narrow interface the subsystem consumes from the shared counter
// store. Every method maps to a single atomic backend operation (or one
// pipelined round trip for the *WithTTL variants) so concurrent process
// instances never interleave check-then-act sequences through this layer.
//
// Scores are Unix milliseconds throughout.
type Store interface {
	// ZAddWithTTL inserts member into the sorted set at key with the given
	// score and refreshes the key's expiry in the same round trip.
	ZAddWithTTL(ctx context.Context, key string, score float64, member string, ttl time.Duration) error

	// ZCount returns the number of members with score in [min, max].
	ZCount(ctx context.Context, key string, min, max float64) (int64, error)

	// ZRemRangeByScore removes members with score in [min, max].
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error

	// ZScores returns the scores of members with score in [min, max],
	// ascending. Used to reconstruct access timestamps for interval analysis.
	ZScores(ctx context.Context, key string, min, max float64) ([]float64, error)

	// SAddWithTTL adds member to the set at key and refreshes the key's expiry.
	SAddWithTTL(ctx context.Context, key, member string, ttl time.Duration) error

	// SCard returns the cardinality of the set at key.
	SCard(ctx context.Context, key string) (int64, error)

	// SIsMember reports whether member is in the set at key.
	SIsMember(ctx context.Context, key, member string) (bool, error)

	// SRem removes member from the set at key.
	SRem(ctx context.Context, key, member string) error

	// IncrWithTTL atomically increments the integer at key, setting the
	// key's expiry when the increment creates it. Returns the new value.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the string value at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// SetWithTTL stores value at key with the given expiry.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Del deletes the given keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Expire sets the expiry on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Close releases the underlying client.
	Close() error
}
