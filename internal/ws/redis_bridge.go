package ws

import (
	"context"

	"todo_backend/internal/logger"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const changesChannel = "todo:changes"

// RedisBridge relays change notifications between hubs in different
// processes. Each message carries the sender's instance id so a hub does
// not react to its own publications.
type RedisBridge struct {
	rdb      *redis.Client
	hub      *Hub
	instance string
}

func NewRedisBridge(rdb *redis.Client, hub *Hub) *RedisBridge {
	return &RedisBridge{rdb: rdb, hub: hub, instance: uuid.NewString()}
}

func (b *RedisBridge) Publish(ctx context.Context) error {
	return b.rdb.Publish(ctx, changesChannel, b.instance).Err()
}

// Run subscribes and invalidates the hub for every foreign change until
// ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) {
	sub := b.rdb.Subscribe(ctx, changesChannel)
	defer sub.Close()

	logger.Info("redis bridge subscribed", "channel", changesChannel, "instance", b.instance)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Payload == b.instance {
				continue
			}
			b.hub.Invalidate()
		}
	}
}
