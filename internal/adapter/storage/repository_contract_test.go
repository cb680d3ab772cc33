package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/port"
)

// runRepositoryContract checks the behaviour every BatchRepository must share.
// prefix keeps references unique when the backing store outlives the test.
func runRepositoryContract(t *testing.T, repo port.BatchRepository, prefix string) {
	ctx := context.Background()
	sku := prefix + "-LAMP"
	eta := time.Date(2023, 9, 26, 0, 0, 0, 0, time.UTC)

	inStock, err := domain.NewBatch(prefix+"-in-stock", sku, 100, nil)
	require.NoError(t, err)
	shipment, err := domain.NewBatch(prefix+"-shipment", sku, 50, &eta)
	require.NoError(t, err)
	other, err := domain.NewBatch(prefix+"-other", prefix+"-CHAIR", 10, nil)
	require.NoError(t, err)

	t.Run("Add and Get", func(t *testing.T) {
		require.NoError(t, repo.Add(ctx, inStock))
		require.NoError(t, repo.Add(ctx, shipment))
		require.NoError(t, repo.Add(ctx, other))

		got, err := repo.Get(ctx, shipment.Reference)
		require.NoError(t, err)
		assert.Equal(t, shipment.Reference, got.Reference)
		assert.Equal(t, sku, got.SKU)
		assert.Equal(t, 50, got.PurchasedQuantity)
		require.NotNil(t, got.ETA)
		assert.True(t, eta.Equal(*got.ETA), "eta %v != %v", got.ETA, eta)
		assert.Equal(t, 0, got.Version)
	})

	t.Run("Add duplicate reference", func(t *testing.T) {
		dup, err := domain.NewBatch(inStock.Reference, sku, 1, nil)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Add(ctx, dup), port.ErrBatchExists)
	})

	t.Run("Get missing", func(t *testing.T) {
		_, err := repo.Get(ctx, prefix+"-missing")
		assert.ErrorIs(t, err, port.ErrBatchNotFound)
	})

	t.Run("ListBySKU", func(t *testing.T) {
		batches, err := repo.ListBySKU(ctx, sku)
		require.NoError(t, err)
		refs := make([]string, 0, len(batches))
		for _, b := range batches {
			refs = append(refs, b.Reference)
		}
		assert.ElementsMatch(t, []string{inStock.Reference, shipment.Reference}, refs)

		none, err := repo.ListBySKU(ctx, prefix+"-NOTHING")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Save persists allocations and bumps version", func(t *testing.T) {
		b, err := repo.Get(ctx, inStock.Reference)
		require.NoError(t, err)

		b.Allocate(domain.OrderLine{OrderID: "o1", SKU: sku, Qty: 10})
		b.Allocate(domain.OrderLine{OrderID: "o2", SKU: sku, Qty: 5})
		require.NoError(t, repo.Save(ctx, b))
		assert.Equal(t, 1, b.Version)

		reloaded, err := repo.Get(ctx, inStock.Reference)
		require.NoError(t, err)
		assert.Equal(t, 85, reloaded.AvailableQuantity())
		assert.Equal(t, 1, reloaded.Version)
		assert.Equal(t, b.Allocations(), reloaded.Allocations())

		batches, err := repo.ListBySKU(ctx, sku)
		require.NoError(t, err)
		for _, listed := range batches {
			if listed.Reference == inStock.Reference {
				assert.Equal(t, 85, listed.AvailableQuantity())
			}
		}
	})

	t.Run("Save with stale version", func(t *testing.T) {
		first, err := repo.Get(ctx, shipment.Reference)
		require.NoError(t, err)
		second, err := repo.Get(ctx, shipment.Reference)
		require.NoError(t, err)

		first.Allocate(domain.OrderLine{OrderID: "o3", SKU: sku, Qty: 1})
		require.NoError(t, repo.Save(ctx, first))

		second.Allocate(domain.OrderLine{OrderID: "o4", SKU: sku, Qty: 1})
		assert.ErrorIs(t, repo.Save(ctx, second), port.ErrOptimisticLock)

		reloaded, err := repo.Get(ctx, shipment.Reference)
		require.NoError(t, err)
		assert.Equal(t, 49, reloaded.AvailableQuantity())
	})

	t.Run("Save deallocation", func(t *testing.T) {
		b, err := repo.Get(ctx, inStock.Reference)
		require.NoError(t, err)
		b.Deallocate(domain.OrderLine{OrderID: "o1", SKU: sku, Qty: 10})
		require.NoError(t, repo.Save(ctx, b))

		reloaded, err := repo.Get(ctx, inStock.Reference)
		require.NoError(t, err)
		assert.Equal(t, 95, reloaded.AvailableQuantity())
	})

	t.Run("Save missing batch", func(t *testing.T) {
		ghost, err := domain.NewBatch(prefix+"-ghost", sku, 1, nil)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Save(ctx, ghost), port.ErrBatchNotFound)
	})
}
