package storage

import (
	"time"

	"github.com/rl1809/batch-allocation/internal/core/domain"
)

// batchRecord is the persisted shape of a batch shared by the memory and
// pebble adapters.
type batchRecord struct {
	Reference         string       `json:"reference"`
	SKU               string       `json:"sku"`
	PurchasedQuantity int          `json:"purchased_quantity"`
	ETA               *time.Time   `json:"eta,omitempty"`
	Version           int          `json:"version"`
	Allocations       []lineRecord `json:"allocations,omitempty"`
}

type lineRecord struct {
	OrderID string `json:"order_id"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

func newBatchRecord(b *domain.Batch) batchRecord {
	rec := batchRecord{
		Reference:         b.Reference,
		SKU:               b.SKU,
		PurchasedQuantity: b.PurchasedQuantity,
		Version:           b.Version,
	}
	if b.ETA != nil {
		eta := *b.ETA
		rec.ETA = &eta
	}
	for _, line := range b.Allocations() {
		rec.Allocations = append(rec.Allocations, lineRecord{OrderID: line.OrderID, SKU: line.SKU, Qty: line.Qty})
	}
	return rec
}

func (r batchRecord) toDomain() *domain.Batch {
	b := &domain.Batch{
		Reference:         r.Reference,
		SKU:               r.SKU,
		PurchasedQuantity: r.PurchasedQuantity,
		Version:           r.Version,
	}
	if r.ETA != nil {
		eta := *r.ETA
		b.ETA = &eta
	}
	lines := make([]domain.OrderLine, 0, len(r.Allocations))
	for _, l := range r.Allocations {
		lines = append(lines, domain.OrderLine{OrderID: l.OrderID, SKU: l.SKU, Qty: l.Qty})
	}
	b.RestoreAllocations(lines...)
	return b
}
