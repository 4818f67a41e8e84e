package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisTopic 所有實例共用的 Redis pub/sub 頻道
const DefaultRedisTopic = "realtime:events"

// RedisBroker 透過 Redis pub/sub 分送事件
type RedisBroker struct {
	client *redis.Client
	topic  string
	sub    *redis.PubSub
}

func NewRedisBroker(client *redis.Client, topic string) *RedisBroker {
	if topic == "" {
		topic = DefaultRedisTopic
	}
	return &RedisBroker{client: client, topic: topic}
}

func (b *RedisBroker) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.topic, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBroker) Start(ctx context.Context, deliver func(Envelope)) error {
	b.sub = b.client.Subscribe(ctx, b.topic)
	// 等待訂閱確認，確保之後發布的事件不會遺失
	if _, err := b.sub.Receive(ctx); err != nil {
		_ = b.sub.Close()
		return fmt.Errorf("redis subscribe %s: %w", b.topic, err)
	}

	go func() {
		for msg := range b.sub.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("[broker] dropping malformed redis envelope: %v", err)
				continue
			}
			deliver(env)
		}
	}()
	return nil
}

func (b *RedisBroker) Close() error {
	if b.sub == nil {
		return nil
	}
	return b.sub.Close()
}
