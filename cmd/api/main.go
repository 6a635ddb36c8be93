package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/speechwriter/internal/api"
	"github.com/nikhilbhutani/speechwriter/internal/api/handlers"
	"github.com/nikhilbhutani/speechwriter/internal/config"
	"github.com/nikhilbhutani/speechwriter/internal/document"
	"github.com/nikhilbhutani/speechwriter/internal/jobs"
	"github.com/nikhilbhutani/speechwriter/internal/llm"
	"github.com/nikhilbhutani/speechwriter/internal/prompt"
	"github.com/nikhilbhutani/speechwriter/internal/session"
	"github.com/nikhilbhutani/speechwriter/internal/speech"
	"github.com/nikhilbhutani/speechwriter/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log, err := logger.Init(cfg.Log)
	if err != nil {
		slog.Error("failed to initialise logger", "error", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx := context.Background()

	registry := llm.NewRegistry(cfg.Credentials(), cfg.RegistryOptions())
	var available []llm.Kind
	for _, d := range registry.AvailableProviders("") {
		available = append(available, d.Kind)
	}
	if len(available) == 0 {
		slog.Warn("no LLM provider configured; requests will fail until an API key is set")
	} else {
		slog.Info("LLM providers available", "providers", available)
	}

	orchestrator := speech.New(registry, prompt.Builtin(), cfg.Speech)

	// Session guard: Redis when configured, otherwise in-process.
	var (
		guard session.Guard = session.NewMemoryGuard(cfg.Session.LockTTL)
		ready handlers.Pinger
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		rg := session.NewRedisGuard(rdb, cfg.Session.LockTTL)
		if err := rg.Ping(ctx); err != nil {
			slog.Warn("redis unavailable, session guard will retry on use", "error", err)
		}
		guard, ready = rg, rg
	}

	jobOpts := cfg.JobOptions()
	jobOpts.OnFinish = handlers.ReleaseLease(guard)
	runner := jobs.NewRunner(jobOpts)

	router := api.NewRouter(cfg, api.Deps{
		UseCases:  orchestrator,
		Providers: registry,
		Runner:    runner,
		Guard:     guard,
		Extractor: document.NewTextExtractor(),
		Redis:     ready,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	if err := runner.Close(shutdownCtx); err != nil {
		slog.Warn("jobs still running at shutdown", "error", err)
	}
	slog.Info("server stopped")
}
