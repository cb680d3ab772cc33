package port

import (
	"context"
	"errors"

	"github.com/rl1809/batch-allocation/internal/core/domain"
)

var (
	ErrBatchNotFound  = errors.New("batch not found")
	ErrBatchExists    = errors.New("batch already exists")
	ErrOptimisticLock = errors.New("optimistic lock conflict")
)

type BatchRepository interface {
	// Add stores a new batch, returns ErrBatchExists if the reference is taken
	Add(ctx context.Context, batch *domain.Batch) error

	// Get loads a batch by reference, returns ErrBatchNotFound if missing
	Get(ctx context.Context, reference string) (*domain.Batch, error)

	// ListBySKU loads every batch holding the given sku
	ListBySKU(ctx context.Context, sku string) ([]*domain.Batch, error)

	// Save persists the allocation set with a version check for optimistic locking
	Save(ctx context.Context, batch *domain.Batch) error
}
