// Command server runs the litscout HTTP API: federated literature search
// with LLM-scored relevance, iterative query augmentation, and a
// persistent embedding store.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"litscout/internal/api"
	"litscout/internal/api/handlers"
	"litscout/internal/augment"
	"litscout/internal/config"
	"litscout/internal/embedstore"
	"litscout/internal/llm"
	"litscout/internal/orchestrator"
	"litscout/internal/pipeline"
	"litscout/internal/providers"
	"litscout/internal/relevance"
	"litscout/internal/repository"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	repo, err := repository.NewRepository(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize repository", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer repo.Close()

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Error("failed to initialize LLM client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	manager := providers.BuildManager(cfg, logger)
	validator := relevance.NewValidator(llmClient, logger)
	orch := orchestrator.New(manager, validator, logger)
	augmenter := augment.NewAugmenter(llmClient, logger)

	store, err := embedstore.New(llmClient, cfg.VectorStore.PathPrefix, cfg.VectorStore.Compress, logger)
	if err != nil {
		logger.Error("failed to initialize embedding store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	controller := pipeline.New(orch, augmenter, store, repo, logger)

	pipelineHandler := handlers.NewPipelineHandler(controller, logger)
	healthHandler := handlers.NewHealthHandler(repo)
	router := api.NewRouter(pipelineHandler, healthHandler, logger)

	timeouts, err := cfg.GetTimeoutConfig()
	if err != nil {
		logger.Error("failed to resolve timeout config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    timeouts.Server.Read,
		WriteTimeout:   timeouts.Server.Write,
		IdleTimeout:    timeouts.Server.Idle,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Info("starting litscout server", slog.String("addr", addr), slog.String("mode", cfg.Server.Mode))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down litscout server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", slog.String("error", err.Error()))
	}
}
