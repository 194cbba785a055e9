package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"translation_gateway/internal/admission"
	"translation_gateway/internal/cache"
	"translation_gateway/internal/config"
	"translation_gateway/internal/health"
	"translation_gateway/internal/httpapi"
	"translation_gateway/internal/orchestrator"
	"translation_gateway/internal/providers"
	"translation_gateway/internal/queue"
	"translation_gateway/internal/quota"
	"translation_gateway/internal/ratelimit"
	"translation_gateway/internal/selector"
	"translation_gateway/internal/storage"
	"translation_gateway/internal/usage"
)

// redisPinger adapts the go-redis client to the httpapi health check.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := storage.NewDB(storage.DBConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,

		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,

		QuotaCacheSize: cfg.Database.QuotaCacheSize,
		QuotaCacheTTL:  cfg.Database.QuotaCacheTTL,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	pingCancel()

	// Provider registry from the on-disk table.
	table, err := config.LoadProviderTable(cfg.ProvidersFile)
	if err != nil {
		log.Fatalf("Failed to load provider table: %v", err)
	}

	factory := providers.NewFactory()
	registry := providers.NewRegistry()
	for i := range table.Providers {
		entry := &table.Providers[i]
		translator, err := factory.Create(providers.Config{
			ID:             entry.ID,
			Type:           entry.Type,
			BaseURL:        entry.BaseURL,
			APIKey:         entry.APIKey(),
			Model:          entry.Model,
			CostPerCharUSD: entry.CostPerCharUSD,
		})
		if err != nil {
			log.Fatalf("Failed to create provider %s: %v", entry.ID, err)
		}
		if err := registry.Add(translator, providers.Capability{
			Pairs:          entry.Pairs,
			CostPerCharUSD: entry.CostPerCharUSD,
			QualityRating:  entry.QualityRating,
			PreferredPairs: entry.PreferredPairs,
		}); err != nil {
			log.Fatalf("Failed to register provider %s: %v", entry.ID, err)
		}
	}
	defer registry.Close()

	tracker := health.NewTracker(health.DefaultConfig())
	sel := selector.New(registry, tracker)

	// Translation cache: redis in front, Postgres behind, with a
	// background sweeper evicting cold durable entries.
	cacheRepo := db.NewTranslationCacheRepository()
	store := cache.NewTieredStore(cache.NewRedisTier(redisClient), cacheRepo, cfg.Cache.FastTTL)
	sweeper := cache.NewSweeper(cacheRepo, cache.EvictionPolicy{
		StaleAfter:  cfg.Cache.StaleAfter,
		MinHits:     cfg.Cache.MinHits,
		LowHitAfter: cfg.Cache.LowHitAfter,
	}, cfg.Cache.SweepInterval)
	sweeper.Start(context.Background())

	quotaRepo := db.NewQuotaRepository()
	maintenance := storage.NewMaintenance(db, quotaRepo, cfg.Database.MaintenanceInterval)
	maintenance.Start(context.Background())

	guard := quota.NewGuard(redisClient, quotaRepo)
	limiter := ratelimit.NewRateLimiter(redisClient)
	controller := admission.NewController(limiter, guard, admission.Config{
		UserRequestsPerMinute: cfg.Admission.UserRequestsPerMinute,
		IPRequestsPerMinute:   cfg.Admission.IPRequestsPerMinute,
		Window:                cfg.Admission.Window,
	})

	// Usage pipeline: emitter -> queue -> worker -> Postgres (+S3).
	queueCfg := queue.DefaultConfig("usage")
	queueCfg.BatchSize = cfg.Usage.BatchSize
	queueCfg.BatchTimeout = cfg.Usage.BatchTimeout
	queueCfg.MaxRetries = cfg.Usage.MaxRetries
	queueCfg.RetryBackoff = cfg.Usage.RetryBackoff

	var usageQueue queue.Queue
	var dlq queue.DeadLetterQueue
	if cfg.Usage.UseRedisQueue {
		usageQueue, err = queue.NewRedisQueue(redisClient, queueCfg)
		if err != nil {
			log.Fatalf("Failed to create usage queue: %v", err)
		}
		dlq, err = queue.NewRedisDeadLetterQueue(redisClient, queueCfg)
		if err != nil {
			log.Fatalf("Failed to create dead letter queue: %v", err)
		}
	} else {
		usageQueue = queue.NewMemoryQueue(queueCfg)
		dlq = queue.NewMemoryDeadLetterQueue()
	}

	var archiver usage.Archiver
	if cfg.Usage.ArchiveEnabled {
		s3Archiver, err := usage.NewS3Archiver(context.Background(),
			cfg.Usage.S3Bucket, cfg.Usage.S3Region, cfg.Usage.S3Prefix, cfg.Usage.Instance)
		if err != nil {
			log.Fatalf("Failed to create usage archiver: %v", err)
		}
		archiver = s3Archiver
	}

	worker := usage.NewWorker(usageQueue, dlq, db.NewUsageRepository(), quotaRepo, archiver, queueCfg)
	worker.Start(context.Background())
	emitter := usage.NewEmitter(usageQueue)

	orch := orchestrator.New(store, controller, sel, registry, tracker, emitter, orchestrator.Config{
		BaseTimeout:             cfg.Orchestrator.BaseTimeout,
		PerCharTimeout:          cfg.Orchestrator.PerCharTimeout,
		MaxTimeout:              cfg.Orchestrator.MaxTimeout,
		EstimatedCostPerCharUSD: cfg.Orchestrator.EstimatedCostPerCharUSD,
		FlightTTL:               cfg.Orchestrator.FlightTTL,
	})

	mux := httpapi.NewRouter(&httpapi.Dependencies{
		Orchestrator: orch,
		Postgres:     db,
		Redis:        redisPinger{client: redisClient},
	})

	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Translation gateway listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Drain the usage queue before the process exits so nothing billed
	// in flight is lost.
	if err := worker.Stop(); err != nil {
		log.Printf("Failed to stop usage worker: %v", err)
	}
	sweeper.Stop()
	maintenance.Stop()

	log.Println("Server exited")
}
