// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avasquez-dev/vigilis/internal/analyzer"
	"github.com/avasquez-dev/vigilis/internal/banlist"
	"github.com/avasquez-dev/vigilis/internal/behavior"
	"github.com/avasquez-dev/vigilis/internal/logging"
	"github.com/avasquez-dev/vigilis/internal/metrics"
	"github.com/avasquez-dev/vigilis/internal/ratelimit"
)

// Handlers carries the subsystem components the HTTP surface drives.
type Handlers struct {
	Limiter  *ratelimit.Limiter
	Tracker  *behavior.Tracker
	Analyzer *analyzer.Analyzer
	Registry *banlist.Registry
}

// Analyze records the observed access into telemetry and returns the fused
// scraping decision. This is the per-request decision endpoint embedding
// services call on the hot path.
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req AnalyzeRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = ratelimit.ResolveIdentifier(r)
	}

	ctx := r.Context()
	h.Tracker.RecordAccess(ctx, identifier, req.ResourceType)
	if req.OriginAddress != "" {
		h.Tracker.RecordOrigin(ctx, identifier, req.OriginAddress)
	}

	res := h.Analyzer.Analyze(ctx, identifier, &analyzer.RequestMeta{
		ResourceType:   req.ResourceType,
		UserAgent:      req.UserAgent,
		AcceptLanguage: req.AcceptLanguage,
		AcceptEncoding: req.AcceptEncoding,
		OriginAddress:  req.OriginAddress,
	})

	rw.Success(res)
}

// UsageResponse reports current window usage for one (identifier, class).
type UsageResponse struct {
	Identifier    string `json:"identifier"`
	Class         string `json:"class"`
	Count         int64  `json:"count"`
	WindowSeconds int64  `json:"window_seconds"`
}

// Usage reports the current window count for an identifier and class.
func (h *Handlers) Usage(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	identifier := r.URL.Query().Get("identifier")
	if identifier == "" {
		rw.BadRequest("identifier query parameter is required")
		return
	}
	class, err := ratelimit.ParseClass(r.URL.Query().Get("class"))
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	usage, err := h.Limiter.GetUsage(r.Context(), identifier, class)
	if err != nil {
		logging.Error().Err(err).Str("identifier", identifier).Msg("usage lookup failed")
		rw.InternalError("usage lookup failed")
		return
	}

	rw.Success(UsageResponse{
		Identifier:    identifier,
		Class:         string(class),
		Count:         usage.Count,
		WindowSeconds: int64(usage.Window.Seconds()),
	})
}

// CreateBan issues a manual ban.
func (h *Handlers) CreateBan(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req BanRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	duration := time.Duration(req.DurationSeconds) * time.Second
	rec := h.Registry.Ban(r.Context(), req.Identifier, req.Reason, duration)
	metrics.BansIssued.WithLabelValues("manual").Inc()

	rw.Created(rec)
}

// GetBan returns the active ban record for an identifier.
func (h *Handlers) GetBan(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	identifier := chi.URLParam(r, "identifier")
	rec, err := h.Registry.Get(r.Context(), identifier)
	if err != nil {
		logging.Error().Err(err).Str("identifier", identifier).Msg("ban lookup failed")
		rw.InternalError("ban lookup failed")
		return
	}
	if rec == nil {
		rw.NotFound("no active ban for identifier")
		return
	}
	rw.Success(rec)
}

// DeleteBan lifts a ban.
func (h *Handlers) DeleteBan(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	identifier := chi.URLParam(r, "identifier")
	if err := h.Registry.Unban(r.Context(), identifier); err != nil {
		logging.Error().Err(err).Str("identifier", identifier).Msg("unban failed")
		rw.InternalError("unban failed")
		return
	}
	rw.NoContent()
}

// ResetLimits clears rate-limit windows for an identifier, used when a
// requester's tier changes or to undo an erroneous throttle.
func (h *Handlers) ResetLimits(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req ResetRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	var classes []ratelimit.Class
	if req.Class != "" {
		class, err := ratelimit.ParseClass(req.Class)
		if err != nil {
			rw.BadRequest(err.Error())
			return
		}
		classes = append(classes, class)
	}

	if err := h.Limiter.Reset(r.Context(), req.Identifier, classes...); err != nil {
		logging.Error().Err(err).Str("identifier", req.Identifier).Msg("limit reset failed")
		rw.InternalError("limit reset failed")
		return
	}
	rw.NoContent()
}

// ConfigureSignal tunes or toggles one analyzer signal.
func (h *Handlers) ConfigureSignal(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	signalType := analyzer.SignalType(chi.URLParam(r, "type"))

	var req SignalConfigRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}
	if req.Enabled == nil && len(req.Config) == 0 {
		rw.BadRequest("nothing to apply: provide enabled and/or config")
		return
	}

	if len(req.Config) > 0 {
		if err := h.Analyzer.ConfigureSignal(signalType, req.Config); err != nil {
			rw.BadRequest(err.Error())
			return
		}
	}
	if req.Enabled != nil {
		if err := h.Analyzer.SetSignalEnabled(signalType, *req.Enabled); err != nil {
			rw.BadRequest(err.Error())
			return
		}
	}

	logging.Info().Str("signal", string(signalType)).Msg("signal configuration updated")
	rw.NoContent()
}

// Health is the liveness endpoint.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "ok"})
}
