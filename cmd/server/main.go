package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/placescout/api/internal/client"
	"github.com/placescout/api/internal/config"
	"github.com/placescout/api/internal/events"
	"github.com/placescout/api/internal/handler"
	"github.com/placescout/api/internal/jobstate"
	"github.com/placescout/api/internal/middleware"
	"github.com/placescout/api/internal/queue"
	"github.com/placescout/api/internal/search"
	"github.com/placescout/api/internal/service"
	"github.com/placescout/api/internal/store"
	ws "github.com/placescout/api/internal/websocket"
	"github.com/placescout/api/internal/worker"
	"github.com/placescout/api/pkg/response"
)

// queueRunner is the worker side of the configured queue driver
type queueRunner interface {
	Run(ctx context.Context) error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", zap.Error(err))
	}

	// Business records: Postgres when configured, memory otherwise
	businesses, closeStore, err := newBusinessStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	jobs := store.NewRedisJobStore(redisClient, cfg.Worker.Retention)
	machine := jobstate.NewMachine(jobs)

	// Search pipeline
	google := client.NewGoogleClient(&cfg.Google, logger)
	if !google.IsConfigured() {
		logger.Warn("google api key not set, searches will fail")
	}
	registry := client.NewRegistry(logger, google)

	runner := search.NewRunner(google, registry, businesses, search.Options{
		Separator: cfg.Search.Separator,
		Tiler:     search.NewTiler(cfg.Search.GridStep, cfg.Search.MetersPerDegree),
		Paginator: search.Paginator{
			Clock:    search.RealClock{},
			Delay:    cfg.Search.PageDelay,
			MaxPages: cfg.Search.MaxPages,
		},
		Pacer: rate.NewLimiter(rate.Every(cfg.Search.CellDelay), 1),
		Rules: search.DedupRules{
			DistanceMeters: cfg.Search.DedupDistanceMeters,
			NameThreshold:  cfg.Search.NameSimilarity,
		},
		EnrichDetails: cfg.Search.EnrichDetails,
	}, logger)

	// Initialize WebSocket hub
	hub := ws.NewHub(logger)

	publisher := events.NewRedisPublisher(redisClient, cfg.Events.Channel, logger)
	searchWorker := worker.NewSearchWorker(machine, runner, hub, publisher, logger)

	policy := queue.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		Multiplier:  cfg.Retry.Multiplier,
	}

	enqueuer, workers, closeQueue := newQueue(cfg, policy, searchWorker.ProcessTask, logger)
	defer closeQueue()

	// Initialize services and handlers
	validate := handler.NewValidator()
	searchService := service.NewSearchService(machine, jobs, enqueuer, logger)
	searchHandler := handler.NewSearchHandler(searchService, validate)
	rateLimiter := middleware.NewRateLimiter(redisClient, logger)

	app := newApp(cfg, hub, searchHandler, rateLimiter)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		return workers.Run(gctx)
	})

	g.Go(func() error {
		addr := ":" + cfg.Server.Port
		logger.Info("server starting", zap.String("addr", addr), zap.String("queue_driver", cfg.Worker.Driver))
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func newBusinessStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (search.Store, func(), error) {
	if cfg.Database.URL == "" {
		logger.Warn("database.url not set, business records are kept in memory")
		return store.NewMemoryBusinessStore(), func() {}, nil
	}

	pool, err := store.NewPool(ctx, store.DBConfig{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgresBusinessStore(pool), pool.Close, nil
}

func newQueue(cfg *config.Config, policy queue.RetryPolicy, handle queue.HandlerFunc, logger *zap.Logger) (queue.Enqueuer, queueRunner, func()) {
	if cfg.Worker.Driver == "local" {
		q := queue.NewLocalQueue(handle, logger,
			queue.WithWorkers(cfg.Worker.Concurrency),
			queue.WithRetryPolicy(policy),
		)
		return q, q, func() {}
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	asynqClient := asynq.NewClient(redisOpt)
	srv := queue.NewAsynqServer(redisOpt, queue.ServerConfig{
		Concurrency: cfg.Worker.Concurrency,
		Queue:       cfg.Worker.Queue,
		Policy:      policy,
	}, handle, logger)

	return queue.NewAsynqClient(asynqClient, cfg.Worker.Queue, policy, cfg.Worker.Retention), srv, func() {
		asynqClient.Close()
	}
}

func newApp(cfg *config.Config, hub *ws.Hub, searchHandler *handler.SearchHandler, rateLimiter *middleware.RateLimiter) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          response.FromError,
		BodyLimit:             1 * 1024 * 1024,
		DisableStartupMessage: !cfg.IsDevelopment(),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		Output: os.Stdout,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Search routes
	api := app.Group("/api")
	searchRoutes := api.Group("/search")
	searchRoutes.Post("/start", rateLimiter.SearchLimit(cfg.RateLimit.SearchPerHour), searchHandler.Start)
	searchRoutes.Get("/status/:jobId", searchHandler.Status)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))

	return app
}
