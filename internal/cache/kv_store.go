package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panierscan/authcore/internal/kvstore"

	"github.com/redis/go-redis/v9"
)

// RedisKVStore 基于 Redis 的键值存储，使用原生 TTL
type RedisKVStore struct {
	client *redis.Client
	prefix string
}

// NewRedisKVStore 创建 Redis 键值存储；client 为空时使用全局客户端
func NewRedisKVStore(client *redis.Client, prefix string) *RedisKVStore {
	if client == nil {
		client = Client()
	}
	if prefix == "" {
		prefix = Prefix()
	}
	return &RedisKVStore{client: client, prefix: prefix}
}

// Get 读取键值
func (s *RedisKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, fmt.Errorf("redis get: %w", kvstore.ErrUnavailable)
	}
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.wrap("get", err)
	}
	return value, true, nil
}

// Set 写入键值
func (s *RedisKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.client == nil {
		return fmt.Errorf("redis set: %w", kvstore.ErrUnavailable)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return s.wrap("set", err)
	}
	return nil
}

// Remove 删除键
func (s *RedisKVStore) Remove(ctx context.Context, key string) error {
	if s.client == nil {
		return fmt.Errorf("redis remove: %w", kvstore.ErrUnavailable)
	}
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return s.wrap("remove", err)
	}
	return nil
}

func (s *RedisKVStore) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *RedisKVStore) wrap(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("redis %s: %w: %v", op, kvstore.ErrUnavailable, err)
}
