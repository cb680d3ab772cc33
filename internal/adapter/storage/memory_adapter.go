package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/port"
)

// MemoryAdapter keeps batches in process. Callers always receive copies, so
// the version check in Save behaves like the durable adapters.
type MemoryAdapter struct {
	mu      sync.RWMutex
	batches map[string]batchRecord
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{batches: make(map[string]batchRecord)}
}

func (m *MemoryAdapter) Add(ctx context.Context, batch *domain.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.batches[batch.Reference]; ok {
		return port.ErrBatchExists
	}
	m.batches[batch.Reference] = newBatchRecord(batch)
	return nil
}

func (m *MemoryAdapter) Get(ctx context.Context, reference string) (*domain.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.batches[reference]
	if !ok {
		return nil, port.ErrBatchNotFound
	}
	return rec.toDomain(), nil
}

func (m *MemoryAdapter) ListBySKU(ctx context.Context, sku string) ([]*domain.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var batches []*domain.Batch
	for _, rec := range m.batches {
		if rec.SKU == sku {
			batches = append(batches, rec.toDomain())
		}
	}
	// map iteration is random; keep results stable for tie-breaking
	sort.Slice(batches, func(i, j int) bool { return batches[i].Reference < batches[j].Reference })
	return batches, nil
}

func (m *MemoryAdapter) Save(ctx context.Context, batch *domain.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.batches[batch.Reference]
	if !ok {
		return port.ErrBatchNotFound
	}
	if cur.Version != batch.Version {
		return port.ErrOptimisticLock
	}

	rec := newBatchRecord(batch)
	rec.Version++
	m.batches[batch.Reference] = rec
	batch.Version = rec.Version
	return nil
}
