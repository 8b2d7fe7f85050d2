// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

package forensics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

type webhookRecorder struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (w *webhookRecorder) handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.mu.Lock()
		w.bodies = append(w.bodies, body)
		w.mu.Unlock()
		rw.WriteHeader(http.StatusNoContent)
	}
}

func (w *webhookRecorder) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.bodies)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestDispatcher_DeliversEvents(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec.handler())
	t.Cleanup(srv.Close)

	d := NewDispatcher(Config{WebhookURL: srv.URL, RatePerSecond: 100, Burst: 100})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = d.Serve(ctx) }()

	sent := Event{
		Identifier: "user:1",
		Confidence: 72,
		Patterns:   []string{"rapid_access", "missing_headers"},
		ObservedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	d.Record(sent)

	waitFor(t, func() bool { return rec.count() == 1 })

	var got Event
	rec.mu.Lock()
	err := json.Unmarshal(rec.bodies[0], &got)
	rec.mu.Unlock()
	if err != nil {
		t.Fatalf("decode delivered event: %v", err)
	}
	if got.Identifier != sent.Identifier || got.Confidence != sent.Confidence {
		t.Errorf("delivered event = %+v, want %+v", got, sent)
	}
}

func TestDispatcher_RecordNeverBlocks(t *testing.T) {
	// No Serve loop draining: the queue fills and further records drop.
	d := NewDispatcher(Config{WebhookURL: "http://127.0.0.1:1", BufferSize: 2})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Record(Event{Identifier: "user:1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}
}

func TestDispatcher_RateLimitsDelivery(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec.handler())
	t.Cleanup(srv.Close)

	// Burst of 1 at a negligible refill rate: only the first event of a
	// burst goes out, the rest are shed.
	d := NewDispatcher(Config{WebhookURL: srv.URL, RatePerSecond: 0.001, Burst: 1})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = d.Serve(ctx) }()

	for i := 0; i < 5; i++ {
		d.Record(Event{Identifier: "user:1", Confidence: 60})
	}

	waitFor(t, func() bool { return rec.count() == 1 })
	time.Sleep(50 * time.Millisecond)
	if got := rec.count(); got != 1 {
		t.Errorf("deliveries = %d, want 1 with the limiter exhausted", got)
	}
}

func TestDispatcher_SurvivesDeliveryFailure(t *testing.T) {
	var fail bool = true
	rec := &webhookRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		rec.handler()(w, r)
	}))
	t.Cleanup(srv.Close)

	d := NewDispatcher(Config{WebhookURL: srv.URL, RatePerSecond: 100, Burst: 100})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = d.Serve(ctx) }()

	d.Record(Event{Identifier: "user:1"})
	time.Sleep(50 * time.Millisecond)

	fail = false
	d.Record(Event{Identifier: "user:2"})
	waitFor(t, func() bool { return rec.count() == 1 })
}

func TestDispatcher_ServeStopsOnCancel(t *testing.T) {
	d := NewDispatcher(Config{WebhookURL: "http://127.0.0.1:1"})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Serve(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop on cancel")
	}
}
