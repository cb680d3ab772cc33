package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/port"
)

const (
	batchKeyPrefix = "batch\x00"
	refKeyPrefix   = "ref\x00"
)

// PebbleAdapter stores batches in an embedded Pebble database. Batch records
// live under batch\x00<len(sku)>:<sku>\x00<ref> so a sku is one prefix scan;
// a small ref\x00<ref> index maps references back to their sku.
type PebbleAdapter struct {
	// serialises read-check-write in Add and Save
	mu sync.Mutex
	db *pebble.DB
}

func NewPebbleAdapter(dir string) (*PebbleAdapter, error) {
	opts := &pebble.Options{
		MemTableSize:          64 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 8,
	}
	db, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleAdapter{db: db}, nil
}

func (p *PebbleAdapter) Close() error { return p.db.Close() }

func batchKey(sku, ref string) []byte { return append(skuPrefix(sku), ref...) }
func refKey(ref string) []byte        { return []byte(refKeyPrefix + ref) }

// skuPrefix length-prefixes the sku so one sku can never be a prefix of
// another, even when it contains the separator byte.
func skuPrefix(sku string) []byte {
	return []byte(batchKeyPrefix + strconv.Itoa(len(sku)) + ":" + sku + "\x00")
}

// keyUpperBound returns the smallest key greater than every key with prefix b.
func keyUpperBound(b []byte) []byte {
	end := make([]byte, len(b))
	copy(end, b)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func encodeBatchRecord(rec batchRecord) ([]byte, error) { return json.Marshal(rec) }
func decodeBatchRecord(val []byte) (batchRecord, error) {
	var rec batchRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return batchRecord{}, err
	}
	return rec, nil
}

func (p *PebbleAdapter) get(key []byte) ([]byte, error) {
	v, closer, err := p.db.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func (p *PebbleAdapter) load(ref string) (batchRecord, error) {
	sku, err := p.get(refKey(ref))
	if errors.Is(err, pebble.ErrNotFound) {
		return batchRecord{}, port.ErrBatchNotFound
	}
	if err != nil {
		return batchRecord{}, fmt.Errorf("pebble get ref: %w", err)
	}

	v, err := p.get(batchKey(string(sku), ref))
	if errors.Is(err, pebble.ErrNotFound) {
		return batchRecord{}, port.ErrBatchNotFound
	}
	if err != nil {
		return batchRecord{}, fmt.Errorf("pebble get batch: %w", err)
	}
	return decodeBatchRecord(v)
}

func (p *PebbleAdapter) Add(ctx context.Context, batch *domain.Batch) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.get(refKey(batch.Reference))
	if err == nil {
		return port.ErrBatchExists
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("pebble get ref: %w", err)
	}

	val, err := encodeBatchRecord(newBatchRecord(batch))
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	wb := p.db.NewBatch()
	defer wb.Close()
	if err := wb.Set(refKey(batch.Reference), []byte(batch.SKU), nil); err != nil {
		return err
	}
	if err := wb.Set(batchKey(batch.SKU, batch.Reference), val, nil); err != nil {
		return err
	}
	return wb.Commit(pebble.Sync)
}

func (p *PebbleAdapter) Get(ctx context.Context, reference string) (*domain.Batch, error) {
	rec, err := p.load(reference)
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

func (p *PebbleAdapter) ListBySKU(ctx context.Context, sku string) ([]*domain.Batch, error) {
	prefix := skuPrefix(sku)
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()

	var batches []*domain.Batch
	for it.First(); it.Valid(); it.Next() {
		rec, err := decodeBatchRecord(it.Value())
		if err != nil {
			return nil, fmt.Errorf("decode batch %q: %w", it.Key(), err)
		}
		batches = append(batches, rec.toDomain())
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	return batches, nil
}

func (p *PebbleAdapter) Save(ctx context.Context, batch *domain.Batch) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur, err := p.load(batch.Reference)
	if err != nil {
		return err
	}
	if cur.Version != batch.Version {
		return port.ErrOptimisticLock
	}

	rec := newBatchRecord(batch)
	rec.SKU = cur.SKU
	rec.Version++
	val, err := encodeBatchRecord(rec)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	if err := p.db.Set(batchKey(rec.SKU, rec.Reference), val, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}

	batch.Version = rec.Version
	return nil
}
