package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/batch-allocation/internal/adapter/storage"
	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/core/service"
	"github.com/rl1809/batch-allocation/internal/metrics"
	"github.com/rl1809/batch-allocation/internal/port"
)

const (
	sku            = "STRESS-LAMP"
	inStockQty     = 12
	shipmentQty    = 8
	totalRequests  = 50
	queueSize      = 100
	idempotencyTTL = time.Minute
)

func main() {
	ctx := context.Background()
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	var cache port.CacheRepository = storage.NewLocalCache(idempotencyTTL)
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()

		// Clear previous test data
		rdb.Del(ctx, "lock:sku:"+sku)
		keys, _ := rdb.Keys(ctx, "alloc:stress-*").Result()
		for _, k := range keys {
			rdb.Del(ctx, k)
		}
		cache = storage.NewRedisAdapter(rdb, idempotencyTTL)
	}

	repo := storage.NewMemoryAdapter()
	opts := service.DefaultOptions()
	opts.QueueSize = queueSize
	opts.LockTries = 1000

	allocationService := service.NewAllocationService(repo, cache, zap.NewNop(), metrics.NewRegistry(), opts)
	defer allocationService.Close()

	eta := time.Now().AddDate(0, 0, 7)
	if _, err := allocationService.AddBatch(ctx, "stress-in-stock", sku, inStockQty, nil); err != nil {
		logger.Fatal("failed to add batch", zap.Error(err))
	}
	if _, err := allocationService.AddBatch(ctx, "stress-shipment", sku, shipmentQty, &eta); err != nil {
		logger.Fatal("failed to add batch", zap.Error(err))
	}

	// Drain the event queue in background
	go func() {
		for range allocationService.Events() {
		}
	}()

	var successCount, soldOutCount, errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			_, err := allocationService.Allocate(ctx, fmt.Sprintf("stress-%d", n), fmt.Sprintf("order-%d", n), sku, 1)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrOutOfStock):
				soldOutCount.Add(1)
			default:
				errorCount.Add(1)
				logger.Warn("allocation failed", zap.Int("request", n), zap.Error(err))
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	soldOut := soldOutCount.Load()
	stock := int32(inStockQty + shipmentQty)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", stock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Allocated:        %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == stock && soldOut == totalRequests-stock {
		fmt.Printf("PASS: Exactly %d lines allocated, %d sold out\n", stock, totalRequests-stock)
	} else {
		fmt.Printf("FAIL: Expected %d allocated/%d sold out, got %d/%d\n",
			stock, totalRequests-stock, success, soldOut)
	}

	// Verify no batch was oversold
	batches, err := repo.ListBySKU(ctx, sku)
	if err != nil {
		logger.Fatal("failed to list batches", zap.Error(err))
	}
	for _, b := range batches {
		fmt.Printf("Batch %-16s allocated=%d available=%d\n", b.Reference, b.AllocatedQuantity(), b.AvailableQuantity())
		if b.AvailableQuantity() < 0 {
			fmt.Printf("FAIL: batch %s oversold\n", b.Reference)
		}
	}
}
