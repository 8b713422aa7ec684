package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	fiberredis "github.com/gofiber/storage/redis/v3"

	"aivisibility/internal/config"
	"aivisibility/internal/counters"
	"aivisibility/internal/db"
	"aivisibility/internal/engine"
	"aivisibility/internal/handlers/api"
	"aivisibility/internal/jobs"
	"aivisibility/internal/llm"
	"aivisibility/internal/metrics"
	"aivisibility/internal/server"
	"aivisibility/internal/validation"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	modelsCfg, err := config.LoadModels(cfg.ModelsFile)
	if err != nil {
		log.Fatalf("Failed to load models config: %v", err)
	}
	if err := modelsCfg.Validate(); err != nil {
		log.Fatalf("Invalid model rosters: %v", err)
	}
	log.Printf("Model rosters: full=%v fallback=%v", modelsCfg.Rosters.Full, modelsCfg.Rosters.Fallback)

	if !cfg.IsMockLLM() {
		if ok, msg := validation.ValidateURL(cfg.LLMBaseURL); !ok {
			log.Fatalf("Invalid LLM_BASE_URL: %s", msg)
		}
	}

	// Initialize database
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations completed successfully")

	if cfg.SeedDevData && cfg.IsDev() {
		if err := database.SeedDevData(ctx); err != nil {
			log.Printf("Warning: failed to seed dev data: %v", err)
		} else {
			log.Println("Seeded development data")
		}
	}

	health := map[string]api.Pinger{"database": database}

	// Shared counters: Redis when configured, otherwise in-process.
	var store counters.Store
	var limiterStorage fiber.Storage
	if cfg.RedisURL != "" {
		storage := fiberredis.New(fiberredis.Config{URL: cfg.RedisURL})
		redisStore := counters.NewRedisStore(storage, cfg.RunTimeout, 2*cfg.TimeoutResetInterval)
		store = redisStore
		limiterStorage = storage
		health["redis"] = redisStore
		log.Println("Using Redis for shared run counters and rate limits")
	} else {
		store = counters.NewMemoryStore()
		log.Println("REDIS_URL not set, using in-memory run counters")
	}
	defer store.Close()

	metrics.Init(database)

	client := llm.NewChatClient(cfg)
	eng := engine.New(engine.Config{
		Rosters: engine.Rosters{
			Full:     modelsCfg.Rosters.Full,
			Fallback: modelsCfg.Rosters.Fallback,
		},
		InvokeTimeout:     cfg.InvokeTimeout,
		ScoreTimeout:      cfg.ScoreTimeout,
		BatchPause:        cfg.BatchPause,
		MaxTasks:          cfg.MaxTasks,
		MaxRunsPerDomain:  cfg.MaxRunsPerDomain,
		FallbackThreshold: cfg.FallbackThreshold,
	}, store, llm.NewInvoker(client, modelsCfg), llm.NewScorer(client, cfg.ScorerModel), database)

	go jobs.NewSweeper(store, cfg.TimeoutResetInterval, cfg.AdmissionSweepInterval).Start(ctx)

	srv := server.New(cfg, limiterStorage)
	srv.RegisterRoutes(server.Deps{
		BaseContext: ctx,
		Store:       database,
		Runs:        eng,
		Health:      health,
	})

	// Graceful shutdown
	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()
	if err := srv.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
