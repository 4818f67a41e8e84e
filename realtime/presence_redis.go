package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"securechat/backend/models"

	"github.com/redis/go-redis/v9"
)

// RedisPresence 讓多個實例共享頻道成員。
// 每個頻道兩個 hash：{prefix}{channel}:count 記錄連線數，{prefix}{channel}:info 記錄成員資料。
type RedisPresence struct {
	client *redis.Client
	prefix string
}

func NewRedisPresence(client *redis.Client, prefix string) *RedisPresence {
	if prefix == "" {
		prefix = "presence:"
	}
	return &RedisPresence{client: client, prefix: prefix}
}

func (p *RedisPresence) countKey(channel string) string { return p.prefix + channel + ":count" }
func (p *RedisPresence) infoKey(channel string) string  { return p.prefix + channel + ":info" }

func (p *RedisPresence) Add(ctx context.Context, channel string, member models.PresenceMember) (bool, error) {
	info, err := json.Marshal(member)
	if err != nil {
		return false, err
	}

	pipe := p.client.TxPipeline()
	count := pipe.HIncrBy(ctx, p.countKey(channel), member.UserID, 1)
	pipe.HSet(ctx, p.infoKey(channel), member.UserID, info)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("presence add: %w", err)
	}
	return count.Val() == 1, nil
}

func (p *RedisPresence) Remove(ctx context.Context, channel string, member models.PresenceMember) (bool, error) {
	count, err := p.client.HIncrBy(ctx, p.countKey(channel), member.UserID, -1).Result()
	if err != nil {
		return false, fmt.Errorf("presence remove: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	// count < 0 代表這個成員從未加入（或已被清掉），不回報離開
	known := count == 0

	pipe := p.client.TxPipeline()
	pipe.HDel(ctx, p.countKey(channel), member.UserID)
	pipe.HDel(ctx, p.infoKey(channel), member.UserID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("presence cleanup: %w", err)
	}
	return known, nil
}

func (p *RedisPresence) Members(ctx context.Context, channel string) ([]models.PresenceMember, error) {
	raw, err := p.client.HGetAll(ctx, p.infoKey(channel)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence members: %w", err)
	}

	members := make([]models.PresenceMember, 0, len(raw))
	for userID, data := range raw {
		var member models.PresenceMember
		if err := json.Unmarshal([]byte(data), &member); err != nil {
			log.Printf("[presence] skipping malformed member %s on %s: %v", userID, channel, err)
			continue
		}
		members = append(members, member)
	}
	sortMembers(members)
	return members, nil
}
