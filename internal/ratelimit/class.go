// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package ratelimit

import (
	"fmt"
	"time"

	"github.com/avasquez-dev/vigilis/internal/config"
)

// Class identifies a rate-limit policy.
type Class string

const (
	// ClassImageView covers single image views.
	ClassImageView Class = "image_view"

	// ClassSetView covers gallery/set page views.
	ClassSetView Class = "set_view"

	// ClassDownload covers original-file downloads.
	ClassDownload Class = "download"

	// ClassAPI covers general API calls.
	ClassAPI Class = "api"

	// ClassAuth covers authentication attempts.
	ClassAuth Class = "auth"

	// ClassBulkView covers batched/bulk listing endpoints.
	ClassBulkView Class = "bulk_view"
)

// Classes lists every limit class in a stable order.
var Classes = []Class{
	ClassImageView,
	ClassSetView,
	ClassDownload,
	ClassAPI,
	ClassAuth,
	ClassBulkView,
}

// ParseClass converts a string to a Class, or errors for unknown names.
func ParseClass(s string) (Class, error) {
	for _, c := range Classes {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown limit class %q", s)
}

// Policy is the immutable window/limit pair for one class, fixed at startup.
type Policy struct {
	Window time.Duration
	Limit  int64
}

// keyPrefix namespaces window keys in the counter store.
const keyPrefix = "rl"

// Key returns the store key for an identifier under this class.
func (c Class) Key(identifier string) string {
	return keyPrefix + ":" + string(c) + ":" + identifier
}

// PoliciesFromConfig builds the class policy table from validated config.
// Config validation guarantees every class is present and positive, so a
// missing policy here is a programming error and caught at startup.
func PoliciesFromConfig(cfg config.RateLimitConfig) map[Class]Policy {
	return map[Class]Policy{
		ClassImageView: {Window: cfg.ImageView.Window, Limit: cfg.ImageView.Limit},
		ClassSetView:   {Window: cfg.SetView.Window, Limit: cfg.SetView.Limit},
		ClassDownload:  {Window: cfg.Download.Window, Limit: cfg.Download.Limit},
		ClassAPI:       {Window: cfg.API.Window, Limit: cfg.API.Limit},
		ClassAuth:      {Window: cfg.Auth.Window, Limit: cfg.Auth.Limit},
		ClassBulkView:  {Window: cfg.BulkView.Window, Limit: cfg.BulkView.Limit},
	}
}
