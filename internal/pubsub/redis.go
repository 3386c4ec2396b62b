// Package pubsub fans forum events out through redis channels.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"campushub/internal/services"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisPublisher publishes events as JSON on the forum's channel.
type RedisPublisher struct {
	rdb *redis.Client
}

var _ services.Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// Connect 解析 REDIS_URL 并确认连接可用
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, ev services.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, services.ForumChannel(ev.ForumID), payload).Err()
}

// Subscribe streams raw event payloads of one forum until ctx is done.
// The returned channel is closed when the subscription ends.
func (p *RedisPublisher) Subscribe(ctx context.Context, forumID uuid.UUID) (<-chan []byte, error) {
	sub := p.rdb.Subscribe(ctx, services.ForumChannel(forumID))
	// 等待订阅确认，避免错过紧随其后的消息
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					log.Printf("subscriber of %s is slow, dropping event", msg.Channel)
				}
			}
		}
	}()
	return out, nil
}
