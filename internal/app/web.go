// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/relabs-tech/airquality_monitor/internal/env"
)

// LatestReading keeps the most recent successful reading for the JSON API
// and the display.
type LatestReading struct {
	mu      sync.RWMutex
	reading env.Reading
	have    bool
}

// Publish implements ReadingSink.
func (l *LatestReading) Publish(r env.Reading) error {
	l.mu.Lock()
	l.reading = r
	l.have = true
	l.mu.Unlock()
	return nil
}

// Get returns the last reading and whether there is one yet.
func (l *LatestReading) Get() (env.Reading, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reading, l.have
}

// NewRouter wires the HTTP endpoints. The metrics handler is served on
// /metrics and on / so scrapers configured with either path work.
func NewRouter(metricsHandler http.Handler, latest *LatestReading, hub *Hub, log *zap.Logger) http.Handler {
	mux := chi.NewRouter()

	mux.Method(http.MethodGet, "/metrics", metricsHandler)
	mux.Method(http.MethodGet, "/", metricsHandler)

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.Get("/api/reading", func(w http.ResponseWriter, r *http.Request) {
		reading, ok := latest.Get()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(reading); err != nil {
			log.Warn("json encode error", zap.Error(err))
		}
	})

	if hub != nil {
		mux.Get("/ws", hub.ServeHTTP)
	}

	return mux
}

// Serve runs an HTTP server on ln until ctx is cancelled, then shuts it down
// gracefully.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		IdleTimeout:       30 * time.Second,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down metrics server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("graceful shutdown failed, forcing close", zap.Error(err))
			_ = srv.Close()
		}
		return <-errCh

	case err := <-errCh:
		return err
	}
}
