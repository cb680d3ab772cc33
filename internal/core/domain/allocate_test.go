package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	today    = datePtr("2023-09-25")
	tomorrow = datePtr("2023-09-26")
	later    = datePtr("2024-01-01")
)

func mustBatch(t *testing.T, ref, sku string, qty int, eta ...string) *Batch {
	t.Helper()
	var b *Batch
	var err error
	if len(eta) == 0 {
		b, err = NewBatch(ref, sku, qty, nil)
	} else {
		b, err = NewBatch(ref, sku, qty, datePtr(eta[0]))
	}
	require.NoError(t, err)
	return b
}

func TestAllocate_PrefersCurrentStockBatchesToShipments(t *testing.T) {
	inStock := mustBatch(t, "in-stock-batch", "RETRO-CLOCK", 100)
	shipment := mustBatch(t, "shipment-batch", "RETRO-CLOCK", 100, "2023-09-26")
	line := OrderLine{OrderID: "oref", SKU: "RETRO-CLOCK", Qty: 10}

	_, err := Allocate(line, []*Batch{shipment, inStock})
	require.NoError(t, err)

	assert.Equal(t, 90, inStock.AvailableQuantity())
	assert.Equal(t, 100, shipment.AvailableQuantity())
}

func TestAllocate_PrefersEarlierBatches(t *testing.T) {
	earliest := &Batch{Reference: "speedy-batch", SKU: "MINIMALIST-SPOON", PurchasedQuantity: 100, ETA: today}
	medium := &Batch{Reference: "normal-batch", SKU: "MINIMALIST-SPOON", PurchasedQuantity: 100, ETA: tomorrow}
	latest := &Batch{Reference: "slow-batch", SKU: "MINIMALIST-SPOON", PurchasedQuantity: 100, ETA: later}
	line := OrderLine{OrderID: "order1", SKU: "MINIMALIST-SPOON", Qty: 10}

	ref, err := Allocate(line, []*Batch{medium, earliest, latest})
	require.NoError(t, err)

	assert.Equal(t, "speedy-batch", ref)
	assert.Equal(t, 90, earliest.AvailableQuantity())
	assert.Equal(t, 100, medium.AvailableQuantity())
	assert.Equal(t, 100, latest.AvailableQuantity())
}

func TestAllocate_ReturnsAllocatedBatchRef(t *testing.T) {
	inStock := mustBatch(t, "in-stock-batch-ref", "HIGHBROW-POSTER", 100)
	shipment := mustBatch(t, "shipment-batch-ref", "HIGHBROW-POSTER", 100, "2023-09-26")
	line := OrderLine{OrderID: "oref", SKU: "HIGHBROW-POSTER", Qty: 10}

	ref, err := Allocate(line, []*Batch{inStock, shipment})
	require.NoError(t, err)

	assert.Equal(t, inStock.Reference, ref)
}

func TestAllocate_SkipsBatchesThatCannotFit(t *testing.T) {
	small := mustBatch(t, "small-in-stock", "DESK", 5)
	big := mustBatch(t, "big-shipment", "DESK", 50, "2023-09-26")
	other := mustBatch(t, "other-sku", "CHAIR", 100)
	line := OrderLine{OrderID: "o1", SKU: "DESK", Qty: 10}

	ref, err := Allocate(line, []*Batch{other, small, big})
	require.NoError(t, err)

	assert.Equal(t, "big-shipment", ref)
	assert.Equal(t, 5, small.AvailableQuantity())
	assert.Equal(t, 40, big.AvailableQuantity())
	assert.Equal(t, 100, other.AvailableQuantity())
}

func TestAllocate_DoesNotReorderCallerSlice(t *testing.T) {
	shipment := mustBatch(t, "shipment", "CLOCK", 100, "2023-09-26")
	inStock := mustBatch(t, "in-stock", "CLOCK", 100)
	batches := []*Batch{shipment, inStock}

	_, err := Allocate(OrderLine{OrderID: "o", SKU: "CLOCK", Qty: 1}, batches)
	require.NoError(t, err)

	assert.Same(t, shipment, batches[0])
	assert.Same(t, inStock, batches[1])
}

func TestAllocate_RaisesOutOfStockIfCannotAllocate(t *testing.T) {
	batch := mustBatch(t, "batch1", "SMALL-FORK", 10, "2023-09-25")
	_, err := Allocate(OrderLine{OrderID: "order1", SKU: "SMALL-FORK", Qty: 10}, []*Batch{batch})
	require.NoError(t, err)

	_, err = Allocate(OrderLine{OrderID: "order2", SKU: "SMALL-FORK", Qty: 1}, []*Batch{batch})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfStock))

	var oos *OutOfStockError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, "SMALL-FORK", oos.SKU)
	assert.Equal(t, 0, batch.AvailableQuantity())
}

func TestAllocate_OutOfStockLeavesBatchesUntouched(t *testing.T) {
	a := mustBatch(t, "a", "LAMP", 5)
	b := mustBatch(t, "b", "LAMP", 8, "2023-09-26")
	line := OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 9}

	_, err := Allocate(line, []*Batch{a, b})
	assert.ErrorIs(t, err, ErrOutOfStock)

	assert.Equal(t, 5, a.AvailableQuantity())
	assert.Equal(t, 8, b.AvailableQuantity())
}

func TestAllocate_EmptyCollection(t *testing.T) {
	_, err := Allocate(OrderLine{OrderID: "o1", SKU: "LAMP", Qty: 1}, nil)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.EqualError(t, err, "out of stock for sku LAMP")
}
