// Package notify tells UI clients that an import or statement changed state.
// Delivery is best effort: callers log failures and carry on.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/royalties/internal/core"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel events are published on.
const DefaultChannel = "royalties:events"

// RedisNotifier publishes events as JSON on a Redis channel. A websocket or
// SSE gateway subscribed to the channel forwards them to browsers.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
}

var _ core.Notifier = (*RedisNotifier)(nil)

// NewRedisNotifier publishes on channel, or DefaultChannel when empty.
func NewRedisNotifier(rdb *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{rdb: rdb, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, ev core.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := n.rdb.Publish(ctx, n.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Resource, err)
	}
	return nil
}

// LogNotifier writes events to the log. Used when Redis is not configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, ev core.Event) error {
	slog.Debug("state changed",
		"resource", ev.Resource,
		"id", ev.ID,
		"status", ev.Status,
	)
	return nil
}
