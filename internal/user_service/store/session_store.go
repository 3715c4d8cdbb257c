package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionStore 定义了登录会话的存取接口。会话记录在 Redis 中，
// 删除会话即撤销对应的令牌。
type SessionStore interface {
	Create(ctx context.Context, userID, sessionID string, ttl time.Duration) error
	Exists(ctx context.Context, userID, sessionID string) (bool, error)
	Delete(ctx context.Context, userID, sessionID string) error
}

// RedisSessionStore 是基于 Redis 的 SessionStore 实现。
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore 创建一个新的 RedisSessionStore。
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(userID, sessionID string) string {
	return fmt.Sprintf("session:%s:%s", userID, sessionID)
}

// Create 写入一条会话记录，带过期时间。
func (s *RedisSessionStore) Create(ctx context.Context, userID, sessionID string, ttl time.Duration) error {
	return s.client.Set(ctx, sessionKey(userID, sessionID), time.Now().Unix(), ttl).Err()
}

// Exists 检查会话是否仍然有效。
func (s *RedisSessionStore) Exists(ctx context.Context, userID, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKey(userID, sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete 删除会话，使对应的令牌立即失效。
func (s *RedisSessionStore) Delete(ctx context.Context, userID, sessionID string) error {
	return s.client.Del(ctx, sessionKey(userID, sessionID)).Err()
}
