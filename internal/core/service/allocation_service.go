package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/metrics"
	"github.com/rl1809/batch-allocation/internal/port"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrSKUBusy          = errors.New("sku is locked by another request")
)

const (
	idempotencyKeyPrefix = "alloc:"
	lockKeyPrefix        = "lock:sku:"
	tracerName           = "github.com/rl1809/batch-allocation/internal/core/service"
)

type Options struct {
	QueueSize      int
	LockTTL        time.Duration
	LockTries      int
	LockRetryDelay time.Duration
	MaxRetries     int
}

func DefaultOptions() Options {
	return Options{
		QueueSize:      1000,
		LockTTL:        5 * time.Second,
		LockTries:      200,
		LockRetryDelay: 10 * time.Millisecond,
		MaxRetries:     3,
	}
}

// AllocationService runs allocations against persisted batches. Requests for
// the same sku are serialised through the cache lock; the domain model itself
// does no locking.
type AllocationService struct {
	repo    port.BatchRepository
	cache   port.CacheRepository
	logger  *zap.Logger
	metrics *metrics.Registry
	tracer  trace.Tracer
	opts    Options

	mu     sync.RWMutex
	closed bool
	events chan domain.AllocationEvent
}

func NewAllocationService(repo port.BatchRepository, cache port.CacheRepository, logger *zap.Logger, reg *metrics.Registry, opts Options) *AllocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	return &AllocationService{
		repo:    repo,
		cache:   cache,
		logger:  logger,
		metrics: reg,
		tracer:  otel.Tracer(tracerName),
		opts:    opts,
		events:  make(chan domain.AllocationEvent, opts.QueueSize),
	}
}

func (s *AllocationService) AddBatch(ctx context.Context, ref, sku string, qty int, eta *time.Time) (*domain.Batch, error) {
	ctx, span := s.tracer.Start(ctx, "AllocationService.AddBatch", trace.WithAttributes(
		attribute.String("batch.ref", ref),
		attribute.String("batch.sku", sku),
	))
	defer span.End()

	batch, err := domain.NewBatch(ref, sku, qty, eta)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Add(ctx, batch); err != nil {
		recordError(span, err)
		return nil, err
	}

	s.logger.Info("batch added", zap.String("batch_ref", ref), zap.String("sku", sku), zap.Int("qty", qty))
	return batch, nil
}

// ListBatches returns the batches for sku in allocation order.
func (s *AllocationService) ListBatches(ctx context.Context, sku string) ([]*domain.Batch, error) {
	batches, err := s.repo.ListBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	domain.SortByETA(batches)
	return batches, nil
}

// Allocate allocates an order line and returns the chosen batch reference.
// A requestID seen before yields ErrDuplicateRequest; an empty one disables
// the check. Failed requests release their key so they can be retried.
// A line already held by one of the sku's batches returns that batch without
// touching storage or emitting an event.
func (s *AllocationService) Allocate(ctx context.Context, requestID, orderID, sku string, qty int) (string, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "AllocationService.Allocate", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.sku", sku),
		attribute.Int("order.qty", qty),
	))
	defer span.End()

	line, err := domain.NewOrderLine(orderID, sku, qty)
	if err != nil {
		recordError(span, err)
		return "", err
	}
	defer func() {
		s.metrics.AllocateLatency.Observe(time.Since(start).Seconds())
	}()

	if requestID == "" {
		requestID = uuid.NewString()
	}
	idempotencyKey := idempotencyKeyPrefix + requestID

	ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
	if err != nil {
		recordError(span, err)
		return "", fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return "", ErrDuplicateRequest
	}

	ref, existing, err := s.allocate(ctx, line)
	if err != nil {
		if clearErr := s.cache.ClearIdempotency(ctx, idempotencyKey); clearErr != nil {
			s.logger.Warn("failed to clear idempotency key", zap.String("key", idempotencyKey), zap.Error(clearErr))
		}
		if errors.Is(err, domain.ErrOutOfStock) {
			s.metrics.OutOfStock.Inc()
			s.logger.Info("out of stock", zap.String("order_id", orderID), zap.String("sku", sku), zap.Int("qty", qty))
		}
		recordError(span, err)
		return "", err
	}

	span.SetAttributes(attribute.String("batch.ref", ref))
	if existing {
		s.logger.Info("line already allocated", zap.String("order_id", orderID), zap.String("sku", sku), zap.String("batch_ref", ref))
		return ref, nil
	}

	s.metrics.Allocations.Inc()
	s.logger.Info("line allocated", zap.String("order_id", orderID), zap.String("sku", sku), zap.String("batch_ref", ref))

	s.emit(ctx, domain.NewAllocationEvent(uuid.NewString(), domain.EventAllocated, ref, line, time.Now()))
	return ref, nil
}

// allocate reports whether the line was already held, in which case nothing
// is saved.
func (s *AllocationService) allocate(ctx context.Context, line domain.OrderLine) (string, bool, error) {
	release, err := s.lockSKU(ctx, line.SKU)
	if err != nil {
		return "", false, err
	}
	defer release()

	for attempt := 1; ; attempt++ {
		batches, err := s.repo.ListBySKU(ctx, line.SKU)
		if err != nil {
			return "", false, fmt.Errorf("load batches: %w", err)
		}

		for _, b := range batches {
			if b.IsAllocated(line) {
				return b.Reference, true, nil
			}
		}

		ref, err := domain.Allocate(line, batches)
		if err != nil {
			return "", false, err
		}

		var chosen *domain.Batch
		for _, b := range batches {
			if b.Reference == ref {
				chosen = b
				break
			}
		}

		err = s.repo.Save(ctx, chosen)
		if err == nil {
			return ref, false, nil
		}
		if !errors.Is(err, port.ErrOptimisticLock) || attempt >= s.opts.MaxRetries {
			return "", false, fmt.Errorf("save batch %s: %w", ref, err)
		}

		s.metrics.SaveConflicts.Inc()
		s.logger.Warn("batch version conflict, retrying",
			zap.String("batch_ref", ref), zap.Int("attempt", attempt))
	}
}

// Deallocate removes an order line from a batch. Removing a line the batch
// does not hold is not an error.
func (s *AllocationService) Deallocate(ctx context.Context, ref, orderID, sku string, qty int) error {
	ctx, span := s.tracer.Start(ctx, "AllocationService.Deallocate", trace.WithAttributes(
		attribute.String("batch.ref", ref),
		attribute.String("order.id", orderID),
	))
	defer span.End()

	line, err := domain.NewOrderLine(orderID, sku, qty)
	if err != nil {
		recordError(span, err)
		return err
	}

	release, err := s.lockSKU(ctx, sku)
	if err != nil {
		recordError(span, err)
		return err
	}
	defer release()

	for attempt := 1; ; attempt++ {
		batch, err := s.repo.Get(ctx, ref)
		if err != nil {
			recordError(span, err)
			return err
		}
		if !batch.IsAllocated(line) {
			return nil
		}

		batch.Deallocate(line)
		err = s.repo.Save(ctx, batch)
		if err == nil {
			break
		}
		if !errors.Is(err, port.ErrOptimisticLock) || attempt >= s.opts.MaxRetries {
			recordError(span, err)
			return fmt.Errorf("save batch %s: %w", ref, err)
		}
		s.metrics.SaveConflicts.Inc()
	}

	s.metrics.Deallocations.Inc()
	s.logger.Info("line deallocated", zap.String("order_id", orderID), zap.String("batch_ref", ref))
	s.emit(ctx, domain.NewAllocationEvent(uuid.NewString(), domain.EventDeallocated, ref, line, time.Now()))
	return nil
}

func (s *AllocationService) lockSKU(ctx context.Context, sku string) (func(), error) {
	lock, err := s.cache.AcquireLock(ctx, lockKeyPrefix+sku, port.LockOptions{
		Expiry:     s.opts.LockTTL,
		Tries:      s.opts.LockTries,
		RetryDelay: s.opts.LockRetryDelay,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, port.ErrLockNotAcquired) {
			s.metrics.LockContention.Inc()
			return nil, ErrSKUBusy
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	return func() {
		// the request context may already be cancelled
		if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release sku lock", zap.String("sku", sku), zap.Error(err))
		}
	}, nil
}

func (s *AllocationService) emit(ctx context.Context, event domain.AllocationEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.logger.Warn("event dropped, service closed", zap.String("event_id", event.ID))
		return
	}

	select {
	case s.events <- event:
	case <-ctx.Done():
		s.logger.Warn("event dropped, request cancelled", zap.String("event_id", event.ID), zap.Error(ctx.Err()))
	}
}

func (s *AllocationService) Events() <-chan domain.AllocationEvent {
	return s.events
}

func (s *AllocationService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
