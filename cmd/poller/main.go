// Service poller periodically fetches sensor readings for the configured
// device groups from the IoT platform, normalizes them, and persists them
// with per-key dedup.  The lookback window widens under sustained failure
// so upstream outages do not leave permanent ingestion gaps.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nilstuerpedhbw/DigitalBeehive/internal/beehive"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/config"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/db"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/httpx"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/models"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/poller"
	"github.com/nilstuerpedhbw/DigitalBeehive/internal/registry"
)

func main() {
	cfg, err := config.LoadPoller()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		slog.Error("failed to load registry", "error", err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Error("invalid timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	client := httpx.NewClient(cfg.Timeout, cfg.MaxRetries)
	api := beehive.NewClient(client, cfg.BaseURL, cfg.APIKey)
	store := poller.NewStore(pool)
	p := poller.New(cfg, api, store, reg, loc)

	// Owner goroutine for the polling loop.  An in-flight cycle finishes
	// before Run returns, so the pool stays open until doneCh closes.
	pollCtx, pollCancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		p.Run(pollCtx)
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok", Service: "poller"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Healthy(r.Context(), pool); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, models.HealthResponse{Status: "unavailable", Service: "poller"})
			return
		}
		writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ready", Service: "poller"})
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("poller listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}

	pollCancel()
	<-doneCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
