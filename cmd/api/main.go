package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"videocreator/internal/adapter/repo"
	"videocreator/internal/http/handlers"
	"videocreator/internal/http/httpapi"
	"videocreator/internal/infra"
	"videocreator/internal/infra/metrics"
	"videocreator/internal/providers/ark"
	"videocreator/internal/providers/prompt"
	"videocreator/internal/storage"
	"videocreator/internal/task"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	artifacts, err := storage.NewStore(storagePath, &http.Client{Timeout: 120 * time.Second})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	arkClient, err := ark.NewClient(ark.Options{
		APIKey:  cfg.ArkAPIKey,
		BaseURL: cfg.ArkBaseURL,
		Model:   cfg.VideoEndpoint,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure ark client")
	}

	var enhancer prompt.Enhancer = prompt.NewPassthroughEnhancer()
	if cfg.LLMEndpoint != "" {
		llm, err := prompt.NewLLMEnhancer(prompt.LLMOptions{
			APIKey:  cfg.ArkAPIKey,
			BaseURL: cfg.ArkBaseURL,
			Model:   cfg.LLMEndpoint,
			Style:   cfg.EnhanceStyle,
			Timeout: cfg.EnhanceTimeout,
			OnFallback: func(reason string, err error) {
				metrics.EnhancerFallback(reason)
				logger.Warn().Err(err).Str("reason", reason).Msg("prompt enhancement fell back to original")
			},
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure prompt enhancer")
		}
		enhancer = llm
	}

	var store task.Store = task.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		store = repo.NewTaskRepository(pool)
		logger.Info().Msg("task registry backed by postgres")
	}

	manager := task.NewManager(store, arkClient, enhancer, artifacts, logger, task.Config{
		PollInterval:     cfg.PollInterval,
		Timeout:          cfg.TaskTimeout,
		PollFailureLimit: cfg.PollFailureLimit,
	})
	defer manager.Close()

	app := handlers.NewApp(manager, artifacts, logger)
	router := httpapi.NewRouter(app, logger, cfg.StaticDir)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
