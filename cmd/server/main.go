package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livecast/internal/event"
	"livecast/internal/platform/config"
	"livecast/internal/platform/logger"
	"livecast/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	dbPath := config.GetEnv("EVENTS_DB", "")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	var store event.Store
	if dbPath != "" {
		s, err := event.NewSQLiteStore(dbPath)
		if err != nil {
			log.Error("failed to open events database", "path", dbPath, "error", err)
			os.Exit(1)
		}
		defer s.Close()
		store = s
	} else {
		store = event.NewInMemoryStore()
	}

	repo := event.NewRepositoryWithStore(store)
	svc := event.NewService(repo)
	met := metrics.New()
	h := event.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetLiveEvents(repo.ActiveLiveCount()) }).ServeHTTP(w, r)
	})
	r.Post("/hooks/stream", h.StreamHook)
	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Route("/{slug}", func(r chi.Router) {
			r.Get("/", h.GetSnapshot)
			r.Post("/end", h.EndEvent)
			r.Post("/limit", h.SetLimit)
		})
	})

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"events_db", dbPath,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
