package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/aivis/backend/internal/benchmark"
	"github.com/aivis/backend/internal/llm"
	"github.com/aivis/backend/internal/metrics"
	"github.com/aivis/backend/internal/storage/supabase"
	"github.com/aivis/backend/pkg/config"
	appLogger "github.com/aivis/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting benchmark worker")

	metrics.Init()

	if !cfg.SupabaseConfigured() {
		appLogger.Fatal("Worker requires Supabase credentials")
	}

	store, err := supabase.NewClient(
		cfg.Supabase.URL,
		cfg.Supabase.ServiceKey,
		cfg.Supabase.TimeoutSec,
		cfg.Supabase.PageSize,
		cfg.Supabase.MaxPages,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Supabase client", zap.Error(err))
	}

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		appLogger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		appLogger.Info("Shutdown signal received")
		cancel()
	}()

	worker := benchmark.NewWorker(store, llmClient, cfg.Worker)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Fatal("Worker failed", zap.Error(err))
	}

	appLogger.Info("Worker stopped")
}
