package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/batch-allocation/internal/core/domain"
)

// LogPublisher is used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (l *LogPublisher) Publish(ctx context.Context, event domain.AllocationEvent) error {
	l.logger.Info("allocation event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("batch_ref", event.BatchRef),
		zap.String("order_id", event.OrderID),
		zap.String("sku", event.SKU),
		zap.Int("qty", event.Qty),
	)
	return nil
}
