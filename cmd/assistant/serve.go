package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sidharth6Shah/cf-ai-personal-assistant/internal/assistant"
	"github.com/Sidharth6Shah/cf-ai-personal-assistant/internal/llm/provider"
	"github.com/Sidharth6Shah/cf-ai-personal-assistant/internal/server"
	"github.com/Sidharth6Shah/cf-ai-personal-assistant/pkg/config"
	"github.com/Sidharth6Shah/cf-ai-personal-assistant/pkg/observability"
	"github.com/Sidharth6Shah/cf-ai-personal-assistant/pkg/session"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("starting assistant v%s (provider=%s, store=%s)", Version, cfg.Provider.Name, cfg.Store.Backend)

	observability.InitMetrics()
	if err := observability.InitTracingFromEnv(); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := observability.ShutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown error: %v", err)
		}
	}()

	backend, err := session.NewBackend(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("create storage backend: %w", err)
	}
	store := session.NewStore(backend)
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("store close error: %v", err)
		}
	}()

	healthChecker := observability.InitHealthChecker()
	healthChecker.RegisterCheck(observability.StoreCheck(store.Ping))

	prov, err := provider.New(cfg.Provider.Name, cfg.ProviderOptions())
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	a := assistant.New(store, prov, assistant.Config{
		Model:            cfg.Provider.Model,
		MaxTokens:        cfg.Provider.MaxTokens,
		Temperature:      cfg.Provider.Temperature,
		InferenceTimeout: cfg.InferenceTimeout,
	})

	srv := server.New(a, server.Config{
		Addr:              cfg.Server.Addr,
		RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
		Burst:             cfg.Server.RateLimit.Burst,
	})
	obsServer := observability.NewServer(cfg.Server.MetricsPort)

	// Periodically drop idle in-memory sessions; the durable copy
	// reloads them on the next touch.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 5m", func() {
		evicted := store.EvictIdle(cfg.SessionMaxIdle)
		observability.SetActiveSessions(store.ActiveSessions())
		if evicted > 0 {
			log.Printf("evicted %d idle sessions", evicted)
		}
	}); err != nil {
		return fmt.Errorf("schedule eviction sweep: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		log.Printf("observability server listening on :%d", cfg.Server.MetricsPort)
		if err := obsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("api server shutdown error: %v", err)
		}
		if err := obsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("observability server shutdown error: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	log.Println("assistant stopped")
	return nil
}
