package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/aivis/backend/internal/api/handlers"
	"github.com/aivis/backend/internal/cache/redis"
	"github.com/aivis/backend/internal/configsync"
	"github.com/aivis/backend/internal/datasource"
	"github.com/aivis/backend/internal/llm"
	"github.com/aivis/backend/internal/metrics"
	"github.com/aivis/backend/internal/middleware/ratelimit"
	"github.com/aivis/backend/internal/middleware/security"
	"github.com/aivis/backend/internal/middleware/validation"
	"github.com/aivis/backend/internal/storage/restapi"
	"github.com/aivis/backend/internal/storage/supabase"
	"github.com/aivis/backend/internal/trigger"
	"github.com/aivis/backend/pkg/config"
	appLogger "github.com/aivis/backend/pkg/logger"
)

const version = "1.0.0"

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

	appLogger.Info("Starting AI Visibility API Server", zap.String("version", version))

	metrics.Init()

	// The primary store is optional; without credentials the whole service
	// runs off the REST fallback.
	var supabaseClient *supabase.Client
	if cfg.SupabaseConfigured() {
		supabaseClient, err = supabase.NewClient(
			cfg.Supabase.URL,
			cfg.Supabase.ServiceKey,
			cfg.Supabase.TimeoutSec,
			cfg.Supabase.PageSize,
			cfg.Supabase.MaxPages,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Supabase client", zap.Error(err))
		}
	} else {
		appLogger.Warn("Supabase credentials missing, using REST fallback only")
	}

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(cfg.Redis)
		if err != nil {
			appLogger.Warn("Redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer cacheClient.Close()
		}
	}

	var sources []datasource.Source
	var restClient *restapi.Client
	if supabaseClient != nil {
		sources = append(sources, datasource.NewSupabaseSource(supabaseClient))
	}
	if cfg.Fallback.BaseURL != "" {
		restClient, err = restapi.NewClient(cfg.Fallback.BaseURL, cfg.Fallback.TimeoutSec)
		if err != nil {
			appLogger.Fatal("Failed to create fallback client", zap.Error(err))
		}
		sources = append(sources, datasource.NewRESTSource(restClient))
	}
	if len(sources) == 0 {
		appLogger.Fatal("No data sources configured: set Supabase credentials or a fallback URL")
	}
	chain := datasource.NewChain(cacheClient, sources...)

	var llmClient *llm.Client
	llmClient, err = llm.NewClient(cfg.LLM)
	if err != nil {
		appLogger.Warn("LLM client disabled", zap.Error(err))
		llmClient = nil
	}

	var triggerClient *trigger.Client
	triggerClient, err = trigger.NewClient(cfg.Trigger)
	if err != nil {
		appLogger.Warn("Workflow trigger disabled", zap.Error(err))
		triggerClient = nil
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.L()})
	defer limiter.Stop()
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{Logger: appLogger.L()}))

	var fallbackProbe handlers.FallbackPinger
	if restClient != nil {
		fallbackProbe = restClient
	}
	healthHandler := handlers.NewHealthHandler(version, supabaseClient != nil, fallbackProbe)
	dashboardHandler := handlers.NewDashboardHandler(chain)
	triggerHandler := handlers.NewTriggerHandler(triggerClient, cfg.Trigger.Token)

	var configHandler *handlers.ConfigHandler
	var promptLabHandler *handlers.PromptLabHandler
	var wsHandler *handlers.WebSocketHandler
	if supabaseClient != nil {
		reconciler := configsync.NewReconciler(supabaseClient)
		configHandler = handlers.NewConfigHandler(supabaseClient, reconciler, chain)
		promptLabHandler = handlers.NewPromptLabHandler(llmClient, supabaseClient)
		wsHandler = handlers.NewWebSocketHandler(supabaseClient)
	} else {
		configHandler = handlers.NewConfigHandler(nil, nil, chain)
		promptLabHandler = handlers.NewPromptLabHandler(llmClient, nil)
		wsHandler = handlers.NewWebSocketHandler(nil)
	}

	api := app.Group("/api/v1")

	api.Get("/health", healthHandler.Health)

	api.Get("/config", configHandler.Get)
	api.Put("/config", configHandler.Put)
	api.Post("/prompts/toggle", configHandler.TogglePrompt)
	api.Post("/prompts/import", configHandler.ImportCSV)

	api.Get("/dashboard", dashboardHandler.Dashboard)
	api.Get("/under-the-hood", dashboardHandler.UnderTheHood)
	api.Get("/run-costs", dashboardHandler.RunCosts)
	api.Get("/timeseries", dashboardHandler.TimeSeries)
	api.Get("/prompts/drilldown", dashboardHandler.PromptDrilldown)

	api.Get("/benchmark/runs", dashboardHandler.Runs)
	api.Post("/benchmark/trigger", triggerHandler.Trigger)
	api.Get("/benchmark/workflow-runs", triggerHandler.WorkflowRuns)

	api.Post("/prompt-lab/run", promptLabHandler.Run)

	api.Use("/benchmark/runs/:id/progress", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/benchmark/runs/:id/progress", websocket.New(wsHandler.HandleRunProgress))

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
