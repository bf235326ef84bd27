package kvstore

import (
	"context"
	"fmt"
	"time"
)

// FailingStore 所有操作均返回 ErrUnavailable，用于验证失败兜底路径
type FailingStore struct{}

func (FailingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("get: %w", ErrUnavailable)
}

func (FailingStore) Set(context.Context, string, []byte, time.Duration) error {
	return fmt.Errorf("set: %w", ErrUnavailable)
}

func (FailingStore) Remove(context.Context, string) error {
	return fmt.Errorf("remove: %w", ErrUnavailable)
}
