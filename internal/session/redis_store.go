package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore Redis 会话存储，多实例共享
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore 创建 Redis 会话存储
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Open 保存会话，TTL 与会话过期时间一致
func (r *RedisStore) Open(ctx context.Context, s *Session) error {
	if s.ID == "" || s.UserID == "" {
		return ErrInvalid
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("%w: 会话已过期", ErrInvalid)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("序列化会话失败: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+s.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("保存会话失败: %w", err)
	}
	return nil
}

// Get 读取会话
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取会话失败: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("解析会话失败: %w", err)
	}
	if s.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	return &s, nil
}

// Close 关闭会话
func (r *RedisStore) Close(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.prefix+id).Err(); err != nil {
		return fmt.Errorf("关闭会话失败: %w", err)
	}
	return nil
}
