// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

// Package main is the entry point for the Vigilis server.
//
// Vigilis is the abuse-detection and access-throttling subsystem for a
// media-serving platform: a sliding-window rate limiter, a consent-gated
// behavior tracker, and a scraping analyzer that fuses independent signals
// into a confidence-weighted block decision, all backed by a shared Redis
// store so any number of server instances enforce the same limits.
//
// Configuration is loaded via Koanf with layered sources (highest priority
// wins): environment variables, config.yaml, built-in defaults. Invalid
// static configuration is fatal at startup; per-request store or consent
// failures always fail open.
//
// The process runs under a suture supervision tree and shuts down
// gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/avasquez-dev/vigilis/internal/analyzer"
	"github.com/avasquez-dev/vigilis/internal/api"
	"github.com/avasquez-dev/vigilis/internal/banlist"
	"github.com/avasquez-dev/vigilis/internal/behavior"
	"github.com/avasquez-dev/vigilis/internal/config"
	"github.com/avasquez-dev/vigilis/internal/consent"
	"github.com/avasquez-dev/vigilis/internal/forensics"
	"github.com/avasquez-dev/vigilis/internal/logging"
	"github.com/avasquez-dev/vigilis/internal/ratelimit"
	"github.com/avasquez-dev/vigilis/internal/store"
	"github.com/avasquez-dev/vigilis/internal/supervisor"
	"github.com/avasquez-dev/vigilis/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Int("port", cfg.Server.Port).Msg("starting vigilis")

	st, err := store.NewRedis(store.RedisConfig{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to store: %w", err)
	}
	defer func() { _ = st.Close() }()

	ratelimit.SetTrustedProxies(cfg.Server.TrustedProxies)
	limiter := ratelimit.New(st, ratelimit.PoliciesFromConfig(cfg.RateLimit), cfg.RateLimit.PruneProbability)
	registry := banlist.New(st, limiter)

	var gate behavior.ConsentGate
	if cfg.Consent.URL != "" {
		gate = consent.NewClient(consent.Config{
			URL:      cfg.Consent.URL,
			Timeout:  cfg.Consent.Timeout,
			CacheTTL: cfg.Consent.CacheTTL,
		})
	} else {
		logging.Warn().Msg("no consent service configured, behavioral tracking disabled")
		gate = consent.Static(false)
	}

	tracker := behavior.New(st, gate)

	var sink analyzer.ForensicSink
	var dispatcher *forensics.Dispatcher
	if cfg.Forensics.Enabled {
		dispatcher = forensics.NewDispatcher(forensics.Config{
			WebhookURL:    cfg.Forensics.WebhookURL,
			Timeout:       cfg.Forensics.Timeout,
			RatePerSecond: cfg.Forensics.RatePerSecond,
			Burst:         cfg.Forensics.Burst,
			BufferSize:    cfg.Forensics.BufferSize,
		})
		sink = dispatcher
	}

	anlz := analyzer.NewDefault(registry, gate, sink, tracker, analyzer.Options{
		SuspiciousThreshold: cfg.Analyzer.SuspiciousThreshold,
		ForensicThreshold:   cfg.Analyzer.ForensicThreshold,
		AutoBlockThreshold:  cfg.Analyzer.AutoBlockThreshold,
		BanDuration:         cfg.Analyzer.BanDuration,
	})

	router := api.NewRouter(cfg.Server, &api.Handlers{
		Limiter:  limiter,
		Tracker:  tracker,
		Analyzer: anlz,
		Registry: registry,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	if dispatcher != nil {
		tree.AddEmitService(dispatcher)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		logging.Info().Msg("shutdown complete")
		return nil
	}
	return err
}
