package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/searchai/api/internal/client"
	"github.com/searchai/api/internal/config"
	"github.com/searchai/api/internal/handler"
	"github.com/searchai/api/internal/logger"
	"github.com/searchai/api/internal/middleware"
	"github.com/searchai/api/internal/scraper"
	"github.com/searchai/api/internal/server"
	"github.com/searchai/api/internal/service"
	"github.com/searchai/api/internal/store"
	ws "github.com/searchai/api/internal/websocket"
	"github.com/searchai/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Server.LogLevel, cfg.Server.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Test Redis connection
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Warn("redis not available", "addr", cfg.Redis.Addr, "error", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	// Initialize Asynq client and inspector
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	// Open result database
	db, err := store.OpenSQLite(ctx, cfg.Store.Path)
	if err != nil {
		slog.Error("failed to open result store", "path", cfg.Store.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize external clients
	llmClient := client.NewLLMClient(&cfg.LLM)
	if !llmClient.IsConfigured() {
		slog.Info("LLM not configured, using mock summaries")
	}

	// Archive is optional - continues if not configured
	var archive client.ArchiveClient
	if cfg.Archive.Enabled() {
		s3Archive, err := client.NewS3Archive(&cfg.Archive)
		if err != nil {
			slog.Warn("archive client not initialized", "error", err)
		} else {
			archive = s3Archive
		}
	}

	var (
		engine  client.SearchEngine
		fetcher scraper.Fetcher
	)
	if strings.EqualFold(cfg.Search.Provider, "mock") {
		slog.Info("using mock search provider")
		engine = client.MockSearchEngine{}
		fetcher = scraper.Mock{}
	} else {
		engine = client.NewDuckDuckGoClient(&cfg.Search, cfg.Scraper.UserAgent)
		fetcher = scraper.New(&cfg.Scraper)
	}

	// Initialize WebSocket hub fed from Redis pub/sub
	hub := ws.NewHub()
	go hub.Run(ctx)
	go func() {
		if err := ws.Relay(ctx, redisClient, hub); err != nil {
			slog.Error("job event relay stopped", "error", err)
		}
	}()

	// Initialize services
	resultService := service.NewResultService(store.NewResultStore(db), archive)
	searchService := service.NewSearchService(
		store.NewJobStore(redisClient, cfg.Search.JobTTL),
		service.NewAsynqQueue(asynqClient, inspector, cfg.Worker.MaxRetry),
		ws.NewRedisPublisher(redisClient),
		resultService,
	)
	contextService := service.NewContextService(resultService, llmClient)
	analyzer := service.NewAnalyzer(llmClient)

	// Result retention
	if cfg.Results.RetentionDays > 0 {
		sweeper := worker.NewSweeper(resultService, cfg.Results.RetentionDays, cfg.Results.SweepSchedule)
		if err := sweeper.Start(); err != nil {
			slog.Error("failed to start result sweeper", "error", err)
			os.Exit(1)
		}
		defer sweeper.Stop()
	}

	health := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
		"sqlite": db.PingContext,
	}, map[string]bool{
		"llm":     llmClient.IsConfigured(),
		"archive": archive != nil,
		"auth":    cfg.Auth.JWTSecret != "",
	})

	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	app := server.New(server.Deps{
		Searches:      searchService,
		Results:       resultService,
		Contexts:      contextService,
		Hub:           hub,
		Health:        health,
		Auth:          middleware.NewAuthMiddleware(cfg.Auth.JWTSecret),
		RateLimiter:   middleware.NewRateLimiter(redisClient),
		SyncTimeout:   cfg.Search.SyncTimeout,
		SearchPerHour: cfg.RateLimit.SearchPerHour,
		AskPerMin:     cfg.RateLimit.AskPerMin,
		AccessLog:     true,
		Debug:         isDebug,
	})

	// Start Asynq worker server
	searchWorker := worker.NewSearchWorker(searchService, resultService, analyzer, engine, fetcher, archive, worker.Options{
		NumResults:       cfg.Search.NumResults,
		MinContentLength: cfg.Scraper.MinContentLength,
		Concurrency:      cfg.Scraper.Concurrency,
	})
	workerServer := startWorkerServer(cfg, redisOpt, searchWorker)

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		slog.Info("shutting down server")
		workerServer.Shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	slog.Info("server starting", "addr", addr, "env", cfg.Server.Env)
	if err := app.Listen(addr); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func startWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt, searchWorker *worker.SearchWorker) *asynq.Server {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			service.QueueSearch: 1,
		},
		LogLevel: asynqLogLevel,
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeSearch, searchWorker.ProcessTask)

	if err := srv.Start(mux); err != nil {
		slog.Error("asynq worker error", "error", err)
	}

	return srv
}
