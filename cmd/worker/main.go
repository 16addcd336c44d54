package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/config"
	amqpdelivery "github.com/dkedar7/pyshala/internal/delivery/amqp"
	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/executor"
	"github.com/dkedar7/pyshala/internal/harness"
	"github.com/dkedar7/pyshala/internal/pool"
	miniorepo "github.com/dkedar7/pyshala/internal/repository/minio"
	"github.com/dkedar7/pyshala/internal/repository/postgres"
	redisrepo "github.com/dkedar7/pyshala/internal/repository/redis"
	"github.com/dkedar7/pyshala/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting Pyshala Grading Worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// Connect to Redis
	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Invalid Redis URL", zap.Error(err))
	}
	redisClient := goredis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	// Lesson data files
	assets, err := miniorepo.NewAssetStore(ctx, miniorepo.Options{
		Endpoint:  cfg.Assets.Endpoint,
		AccessKey: cfg.Assets.AccessKey,
		SecretKey: cfg.Assets.SecretKey,
		Bucket:    cfg.Assets.Bucket,
		Region:    cfg.Assets.Region,
		Secure:    cfg.Assets.UseSSL,
	})
	if err != nil {
		logger.Fatal("Failed to connect to asset store", zap.Error(err))
	}
	logger.Info("Connected to asset store", zap.String("bucket", cfg.Assets.Bucket))

	submissionRepo := postgres.NewPostgresSubmissionRepository(dbPool)
	idempotencyStore := redisrepo.NewRedisIdempotencyStore(redisClient)

	localExec := executor.NewLocalExecutor(executor.Options{
		PythonPath:     cfg.Executor.PythonPath,
		Timeout:        cfg.Executor.Timeout,
		MaxOutputBytes: cfg.Executor.MaxOutputBytes,
		WorkRoot:       cfg.Executor.WorkRoot,
	}, logger)
	grader := harness.New(localExec, cfg.Executor.Parallelism, logger)

	processUC := usecase.NewProcessSubmissionUsecase(submissionRepo, idempotencyStore, assets, grader, logger)

	jobsChan := make(chan *domain.SubmissionMessage, cfg.Worker.PoolSize*2)

	// Prefetch matches the pool so unacked messages never sit idle in the channel.
	consumer, err := amqpdelivery.NewConsumer(cfg.RabbitMQ.URL, cfg.Worker.PoolSize, jobsChan, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AMQP consumer", zap.Error(err))
	}
	defer consumer.Close()
	logger.Info("Connected to RabbitMQ")

	workerPool := pool.NewWorkerPool(cfg.Worker.PoolSize, jobsChan, processUC, logger)
	workerPool.Start(ctx)

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error("AMQP consumer error", zap.Error(err))
			cancel()
		}
	}()

	// Prometheus metrics server
	go func() {
		metricsAddr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics server listening", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Wait for workers to finish in-flight submissions
	workerPool.Stop()

	logger.Info("Worker stopped")
}
