package domain

import "time"

type EventType string

const (
	EventAllocated   EventType = "allocated"
	EventDeallocated EventType = "deallocated"
)

// AllocationEvent records a change to a batch's allocation set. Events are
// queued by the service and published asynchronously.
type AllocationEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	BatchRef   string    `json:"batch_ref"`
	OrderID    string    `json:"order_id"`
	SKU        string    `json:"sku"`
	Qty        int       `json:"qty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewAllocationEvent(id string, typ EventType, batchRef string, line OrderLine, at time.Time) AllocationEvent {
	return AllocationEvent{
		ID:         id,
		Type:       typ,
		BatchRef:   batchRef,
		OrderID:    line.OrderID,
		SKU:        line.SKU,
		Qty:        line.Qty,
		OccurredAt: at,
	}
}
