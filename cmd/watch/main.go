package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"livecast/internal/platform/config"
	"livecast/internal/platform/logger"
	"livecast/internal/watch"

	"github.com/go-chi/chi/v5"
)

// The watch binary runs one guest playback session headlessly: it polls the
// platform events API for the configured slug, drives a logging renderer, and
// serves the websocket endpoint the page-side player embed relays telemetry
// through.
func main() {
	_ = config.Load()

	apiBase := config.GetEnv("API_BASE", "http://localhost:8080")
	slug := config.GetEnv("EVENT_SLUG", "")
	embedOrigin := config.GetEnv("EMBED_ORIGIN", "")
	telemetryAddr := config.GetEnv("TELEMETRY_ADDR", ":8090")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "text")

	log := logger.New(logLevel, logFormat)

	if slug == "" {
		log.Error("EVENT_SLUG is required")
		os.Exit(1)
	}

	cfg := watch.DefaultConfig()
	cfg.EmbedOrigin = embedOrigin
	cfg.PollLive = config.GetEnvDuration("POLL_LIVE", cfg.PollLive)
	cfg.PollLastRecording = config.GetEnvDuration("POLL_LAST_RECORDING", cfg.PollLastRecording)
	cfg.PollDefault = config.GetEnvDuration("POLL_DEFAULT", cfg.PollDefault)

	source := watch.NewAPIClient(apiBase, slug)
	renderer := watch.NewLogRenderer(log)
	session := watch.NewPlaybackSession(source, renderer, cfg, log)

	bridge := watch.NewTelemetryBridge(session.Messages(), embedOrigin, log)
	r := chi.NewRouter()
	// No logging middleware here: its response wrapper hides http.Hijacker,
	// which the websocket upgrade needs. The bridge logs connections itself.
	r.Get("/player/messages", bridge.ServeHTTP)

	srv := &http.Server{Addr: telemetryAddr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("telemetry server error", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("watch session starting",
		"api_base", apiBase,
		"slug", slug,
		"telemetry_addr", telemetryAddr,
	)

	if err := session.Run(ctx); err != nil {
		log.Error("watch session failed", "error", err)
		srv.Close()
		os.Exit(1)
	}

	log.Info("watch session stopped")
	srv.Close()
}
