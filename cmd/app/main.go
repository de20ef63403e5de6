// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"llm-chat-gateway/internal/config"
	"llm-chat-gateway/internal/domain/ports/adapter"
	"llm-chat-gateway/internal/domain/ports/repository"
	aiAdapters "llm-chat-gateway/internal/infra/adapters/ai"
	pg "llm-chat-gateway/internal/infra/db/postgres"
	"llm-chat-gateway/internal/infra/logging"
	"llm-chat-gateway/internal/infra/metrics"
	"llm-chat-gateway/internal/infra/queue"
	red "llm-chat-gateway/internal/infra/redis"
	"llm-chat-gateway/internal/infra/resource"
	"llm-chat-gateway/internal/infra/store"
	"llm-chat-gateway/internal/infra/stream"
	"llm-chat-gateway/internal/infra/web"
	"llm-chat-gateway/internal/infra/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode (console logs, scripted AI without an API key)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Chat store: flat file by default, Postgres when configured ----
	var chats repository.ChatStore
	if cfg.Storage.DatabaseURL != "" {
		pool, err := pg.Connect(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connect failed")
		}
		defer pool.Close()
		pgStore := pg.NewChatStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("postgres schema failed")
		}
		chats = pgStore
		logger.Info().Msg("chat store: postgres")
	} else {
		fileStore, err := store.NewFileStore(cfg.Storage.ChatsFile, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("chat store failed")
		}
		chats = fileStore
		logger.Info().Str("path", cfg.Storage.ChatsFile).Msg("chat store: file")
	}

	// ---- Optional Redis read-through cache ----
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect failed")
		}
		defer redisClient.Close()
		chats = red.NewChatStoreCacheDecorator(chats, redisClient, cfg.Redis.TTL)
		logger.Info().Str("addr", cfg.Redis.URL).Msg("chat session cache enabled")
	}

	// ---- Resource drivers ----
	drivers := resource.NewRegistry(logger)
	drivers.Register(resource.NewFolderDriver(logger))

	// ---- AI adapter ----
	var ai adapter.AIServiceAdapter
	if cfg.AI.APIKey != "" {
		ai, err = aiAdapters.NewOpenAIAdapter(
			cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.DefaultModel,
			cfg.AI.RequestTimeout, cfg.AI.MaxToolRounds, logger,
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter failed")
		}
		logger.Info().Str("base_url", cfg.AI.BaseURL).Str("model", cfg.AI.DefaultModel).Msg("AI adapter: openai")
	} else if cfg.Runtime.Dev {
		ai = aiAdapters.NewScriptAdapter()
		logger.Warn().Msg("AI adapter: scripted (no API key, dev mode)")
	} else {
		logger.Fatal().Msg("no API key configured: set OPENAI_API_KEY or ai.api_key, or run with -dev")
	}

	// ---- Core pipeline: queue, stream registry, workers ----
	jobs := queue.New(cfg.Queue.Capacity)
	streams := stream.NewRegistry(cfg.Queue.StreamBuffer)

	pool := worker.New(jobs, streams, ai, drivers, cfg.Queue.Workers, logger)
	pool.Start(ctx)

	go func() {
		if err := streams.RunJanitor(ctx, cfg.Queue.SweepAfter/4, cfg.Queue.SweepAfter, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("janitor stopped")
		}
	}()

	// ---- HTTP server ----
	srv := web.NewServer(jobs, streams, chats, ai, drivers, web.Options{
		DefaultModel:  cfg.AI.DefaultModel,
		StreamTimeout: cfg.Queue.StreamTimeout,
		Keepalive:     cfg.Queue.Keepalive,
	}, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	cancel()
	pool.Stop()
	logger.Info().Msg("gateway stopped")
}
