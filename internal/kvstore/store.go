package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable 存储不可用（连接失败、读写异常等）
var ErrUnavailable = errors.New("kv store unavailable")

// Store 持久化键值存储
// ttl 为 0 表示不过期；Get 第二个返回值表示键是否存在
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// Namespace 为所有键加前缀
func Namespace(store Store, prefix string) Store {
	if prefix == "" {
		return store
	}
	return &namespaced{inner: store, prefix: prefix}
}

type namespaced struct {
	inner  Store
	prefix string
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return n.inner.Set(ctx, n.prefix+key, value, ttl)
}

func (n *namespaced) Remove(ctx context.Context, key string) error {
	return n.inner.Remove(ctx, n.prefix+key)
}
