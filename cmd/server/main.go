package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/config"
	"github.com/dkedar7/pyshala/internal/domain"
	handler "github.com/dkedar7/pyshala/internal/delivery/http"
	"github.com/dkedar7/pyshala/internal/executor"
	"github.com/dkedar7/pyshala/internal/harness"
	"github.com/dkedar7/pyshala/internal/publisher"
	"github.com/dkedar7/pyshala/internal/repository/postgres"
	"github.com/dkedar7/pyshala/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting Pyshala API Server")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	gin.SetMode(cfg.Server.GinMode)

	// Connect to PostgreSQL
	ctx := context.Background()
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// Connect to Redis (health reporting only; the worker owns the locks)
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to ping Redis", zap.Error(err))
	}
	logger.Info("Connected to Redis")

	// Initialize RabbitMQ publisher
	pub, err := publisher.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
	}
	defer pub.Close()
	logger.Info("Connected to RabbitMQ")

	// Synchronous execution runs in-process
	localExec := executor.NewLocalExecutor(executor.Options{
		PythonPath:     cfg.Executor.PythonPath,
		Timeout:        cfg.Executor.Timeout,
		MaxOutputBytes: cfg.Executor.MaxOutputBytes,
		WorkRoot:       cfg.Executor.WorkRoot,
	}, logger)
	grader := harness.New(localExec, cfg.Executor.Parallelism, logger)

	submissionRepo := postgres.NewPostgresSubmissionRepository(dbPool)
	limits := usecase.Limits{
		MaxTimeout:   cfg.Executor.MaxTimeout,
		MaxTestCases: cfg.Server.MaxTestCases,
	}

	// Initialize use cases
	runUC := usecase.NewRunCodeUsecase(localExec, limits, logger)
	gradeUC := usecase.NewGradeCodeUsecase(grader, limits, logger)
	submitUC := usecase.NewSubmitGradingUsecase(submissionRepo, pub, limits, logger)
	getUC := usecase.NewGetSubmissionUsecase(submissionRepo, logger)

	router := handler.NewRouter(&handler.RouterDeps{
		RunUC:           runUC,
		GradeUC:         gradeUC,
		SubmitUC:        submitUC,
		GetUC:           getUC,
		Logger:          logger,
		RateLimitPerMin: cfg.Server.RateLimit,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		CORSOrigins:     cfg.Server.CORSOrigins,
		HealthChecks: map[string]handler.HealthCheck{
			"postgres": dbPool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			"python": func(ctx context.Context) error {
				_, err := localExec.Version(ctx)
				return err
			},
		},
		Runtime: domain.RuntimeInfo{
			Interpreter:      localExec.PythonPath(),
			DefaultTimeoutMs: localExec.Timeout().Milliseconds(),
			MaxTimeoutMs:     cfg.Executor.MaxTimeout.Milliseconds(),
			MaxTestCases:     cfg.Server.MaxTestCases,
		},
		RuntimeVersion: localExec.Version,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Executor.MaxTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("API server stopped")
}
