// Package events publishes job lifecycle events for external analytics consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/placescout/api/internal/model"
)

// DefaultChannel is the Redis channel lifecycle events are published on
const DefaultChannel = "search:lifecycle"

// Publisher emits lifecycle events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, ev model.LifecycleEvent)
}

// RedisPublisher publishes events with Redis PUBLISH
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisPublisher(rdb *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel, logger: logger.Named("events")}
}

// Publish sends ev without blocking the caller on failures; errors are only logged.
func (p *RedisPublisher) Publish(ctx context.Context, ev model.LifecycleEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("failed to marshal lifecycle event", zap.String("event", ev.Event), zap.Error(err))
		return
	}

	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		p.logger.Warn("failed to publish lifecycle event (non-fatal)",
			zap.String("event", ev.Event),
			zap.String("job_id", ev.JobID),
			zap.Error(err),
		)
	}
}

// LogPublisher writes events to the log when no broker is available
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.Named("events")}
}

func (p *LogPublisher) Publish(_ context.Context, ev model.LifecycleEvent) {
	p.logger.Info("lifecycle event",
		zap.String("event", ev.Event),
		zap.String("job_id", ev.JobID),
		zap.Any("metadata", ev.Metadata),
	)
}
