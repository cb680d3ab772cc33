package port

import (
	"context"

	"github.com/rl1809/batch-allocation/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, event domain.AllocationEvent) error
}
