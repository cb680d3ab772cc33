package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/batch-allocation/internal/adapter/handler"
	"github.com/rl1809/batch-allocation/internal/adapter/messaging"
	"github.com/rl1809/batch-allocation/internal/adapter/storage"
	"github.com/rl1809/batch-allocation/internal/config"
	"github.com/rl1809/batch-allocation/internal/core/service"
	"github.com/rl1809/batch-allocation/internal/logging"
	"github.com/rl1809/batch-allocation/internal/metrics"
	"github.com/rl1809/batch-allocation/internal/observability"
	"github.com/rl1809/batch-allocation/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	cache, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	publisher, closePublisher := openPublisher(cfg, logger)
	defer closePublisher()

	reg := metrics.NewRegistry()
	opts := service.DefaultOptions()
	opts.QueueSize = cfg.QueueSize
	opts.LockTTL = cfg.LockTTL
	allocationService := service.NewAllocationService(repo, cache, logger, reg, opts)

	// Start publisher pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			service.PublishLoop(id, allocationService.Events(), publisher, logger, reg)
		}(i)
	}
	logger.Info("started publishers", zap.Int("count", cfg.WorkerCount))

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterAllocationServiceServer(grpcServer, handler.NewGRPCHandler(allocationService))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	mux := http.NewServeMux()
	handler.NewHTTPHandler(allocationService).Register(mux)
	mux.Handle("/metrics", reg.Handler())

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close event queue and wait for publishers
	allocationService.Close()
	wg.Wait()
	logger.Info("publishers stopped")

	return nil
}

func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (port.BatchRepository, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		repo := storage.NewMySQLAdapter(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("connected to mysql")
		return repo, func() { db.Close() }, nil

	case config.BackendPebble:
		repo, err := storage.NewPebbleAdapter(cfg.PebbleDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open pebble: %w", err)
		}
		logger.Info("opened pebble store", zap.String("dir", cfg.PebbleDir))
		return repo, func() {
			if err := repo.Close(); err != nil {
				logger.Warn("failed to close pebble", zap.Error(err))
			}
		}, nil

	case config.BackendMemory:
		logger.Warn("using in-memory store, batches are lost on restart")
		return storage.NewMemoryAdapter(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func openCache(ctx context.Context, cfg config.Config, logger *zap.Logger) (port.CacheRepository, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, sku locks are process-local")
		return storage.NewLocalCache(cfg.IdempotencyTTL), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	return storage.NewRedisAdapter(rdb, cfg.IdempotencyTTL), func() { rdb.Close() }, nil
}

func openPublisher(cfg config.Config, logger *zap.Logger) (port.EventPublisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return messaging.NewLogPublisher(logger), func() {}
	}

	kp := messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	logger.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	return kp, func() {
		if err := kp.Close(); err != nil {
			logger.Warn("failed to close kafka writer", zap.Error(err))
		}
	}
}
