package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/aivis/backend/internal/blogs"
	"github.com/aivis/backend/internal/storage/supabase"
	"github.com/aivis/backend/pkg/config"
	appLogger "github.com/aivis/backend/pkg/logger"
)

// blogsync scrapes competitor blog indexes passed as arguments and upserts
// post metadata into the analytical store. Run it from a scheduled job.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: blogsync <index-url> [<index-url>...]")
		os.Exit(2)
	}

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

	if !cfg.SupabaseConfigured() {
		appLogger.Fatal("Blog sync requires Supabase credentials")
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

	ingester := blogs.NewIngester(store)
	ctx := context.Background()

	failures := 0
	for _, indexURL := range os.Args[1:] {
		count, err := ingester.IngestIndex(ctx, indexURL)
		if err != nil {
			appLogger.Error("Blog index failed",
				zap.String("url", indexURL),
				zap.Error(err),
			)
			failures++
			continue
		}
		appLogger.Info("Blog index done",
			zap.String("url", indexURL),
			zap.Int("posts", count),
		)
	}

	if failures > 0 {
		os.Exit(1)
	}
}
