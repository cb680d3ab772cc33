package domain

import (
	"fmt"
	"sort"
	"time"
)

// Batch is a lot of stock for a single SKU. Batches are identified by
// Reference alone; two batches with the same reference are the same batch
// whatever their other fields say.
//
// A nil ETA means the batch is already in the warehouse.
type Batch struct {
	Reference         string
	SKU               string
	PurchasedQuantity int
	ETA               *time.Time
	Version           int // optimistic locking

	allocations map[OrderLine]struct{}
}

func NewBatch(ref, sku string, qty int, eta *time.Time) (*Batch, error) {
	if ref == "" || sku == "" {
		return nil, fmt.Errorf("%w: reference and sku are required", ErrInvalidBatch)
	}
	if qty <= 0 {
		return nil, fmt.Errorf("%w: purchased quantity must be positive, got %d", ErrInvalidBatch, qty)
	}

	return &Batch{
		Reference:         ref,
		SKU:               sku,
		PurchasedQuantity: qty,
		ETA:               eta,
		allocations:       make(map[OrderLine]struct{}),
	}, nil
}

func (b *Batch) CanAllocate(line OrderLine) bool {
	return b.SKU == line.SKU && b.AvailableQuantity() >= line.Qty
}

// Allocate reserves stock for line. Lines the batch cannot take are ignored,
// and allocating a line that is already held changes nothing.
func (b *Batch) Allocate(line OrderLine) {
	if !b.CanAllocate(line) {
		return
	}
	if b.allocations == nil {
		b.allocations = make(map[OrderLine]struct{})
	}
	b.allocations[line] = struct{}{}
}

func (b *Batch) Deallocate(line OrderLine) {
	delete(b.allocations, line)
}

func (b *Batch) IsAllocated(line OrderLine) bool {
	_, ok := b.allocations[line]
	return ok
}

func (b *Batch) AllocatedQuantity() int {
	total := 0
	for line := range b.allocations {
		total += line.Qty
	}
	return total
}

func (b *Batch) AvailableQuantity() int {
	return b.PurchasedQuantity - b.AllocatedQuantity()
}

// Allocations returns the allocated lines ordered by order id, qty, then sku.
func (b *Batch) Allocations() []OrderLine {
	lines := make([]OrderLine, 0, len(b.allocations))
	for line := range b.allocations {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].OrderID != lines[j].OrderID {
			return lines[i].OrderID < lines[j].OrderID
		}
		if lines[i].Qty != lines[j].Qty {
			return lines[i].Qty < lines[j].Qty
		}
		return lines[i].SKU < lines[j].SKU
	})
	return lines
}

// RestoreAllocations puts previously persisted lines back into the set
// without checking eligibility. Repositories use it when loading a batch.
func (b *Batch) RestoreAllocations(lines ...OrderLine) {
	if b.allocations == nil {
		b.allocations = make(map[OrderLine]struct{}, len(lines))
	}
	for _, line := range lines {
		b.allocations[line] = struct{}{}
	}
}

// Equal reports whether b and other are the same batch.
func (b *Batch) Equal(other *Batch) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.Reference == other.Reference
}

// ArrivesBefore orders batches for allocation: stock on hand first, then
// shipments by ETA. Batches with equal ETAs are unordered.
func (b *Batch) ArrivesBefore(other *Batch) bool {
	if b.ETA == nil {
		return other.ETA != nil
	}
	if other.ETA == nil {
		return false
	}
	return b.ETA.Before(*other.ETA)
}

// SortByETA sorts batches in place by ArrivesBefore, keeping input order
// among ties.
func SortByETA(batches []*Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].ArrivesBefore(batches[j])
	})
}
