package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/searchai/api/internal/model"
)

// EventsChannel is the Redis pub/sub channel carrying job events
const EventsChannel = "search:events"

// RedisPublisher publishes job events to Redis so every API instance can
// relay them to its own websocket clients.
type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(redisClient *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: redisClient}
}

// Publish sends event on EventsChannel. Failures are logged, never returned;
// live progress is best effort.
func (p *RedisPublisher) Publish(ctx context.Context, event model.JobEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal job event", "job_id", event.JobID, "error", err)
		return
	}
	if err := p.redis.Publish(ctx, EventsChannel, data).Err(); err != nil {
		slog.WarnContext(ctx, "failed to publish job event", "job_id", event.JobID, "error", err)
	}
}

// Relay forwards events from EventsChannel into hub until ctx is done
func Relay(ctx context.Context, redisClient *redis.Client, hub *Hub) error {
	sub := redisClient.Subscribe(ctx, EventsChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event model.JobEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.WarnContext(ctx, "dropping malformed job event", "error", err)
				continue
			}
			hub.Publish(ctx, event)
		}
	}
}
