package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/metrics"
	"github.com/rl1809/batch-allocation/internal/port"
)

const publishTimeout = 5 * time.Second

// PublishLoop drains events into pub until the channel is closed. Failed
// publishes are logged and counted; the allocation they describe is already
// committed.
func PublishLoop(id int, events <-chan domain.AllocationEvent, pub port.EventPublisher, logger *zap.Logger, reg *metrics.Registry) {
	log := logger.With(zap.Int("worker", id))

	for event := range events {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)

		if err := pub.Publish(ctx, event); err != nil {
			reg.EventsFailed.Inc()
			log.Error("failed to publish event",
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)),
				zap.String("batch_ref", event.BatchRef),
				zap.Error(err))
		} else {
			reg.EventsPublished.Inc()
			log.Debug("published event", zap.String("event_id", event.ID), zap.String("type", string(event.Type)))
		}

		cancel()
	}
}
