package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panierscan/authcore/internal/kvstore"
	"github.com/panierscan/authcore/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormKVStore 基于数据库表 kv_entries 的键值存储
type GormKVStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormKVStore 创建数据库键值存储
func NewGormKVStore(db *gorm.DB) *GormKVStore {
	return &GormKVStore{db: db, now: time.Now}
}

// SetClock 替换时钟（测试用）
func (r *GormKVStore) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	r.now = now
}

// Get 读取键值，过期条目读取时删除
func (r *GormKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.KVEntry
	result := r.db.WithContext(ctx).Where("key = ?", key).Limit(1).Find(&entry)
	if result.Error != nil {
		return nil, false, wrapUnavailable("get", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, false, nil
	}
	now := r.now()
	if entry.ExpiresAt != nil && !now.Before(*entry.ExpiresAt) {
		if err := r.db.WithContext(ctx).
			Where("key = ? AND expires_at <= ?", key, now).
			Delete(&models.KVEntry{}).Error; err != nil {
			return nil, false, wrapUnavailable("expire", err)
		}
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Set 写入键值（存在则覆盖）
func (r *GormKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := r.now()
	entry := models.KVEntry{
		Key:       key,
		Value:     value,
		UpdatedAt: now,
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		entry.ExpiresAt = &expiresAt
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return wrapUnavailable("set", err)
	}
	return nil
}

// Remove 删除键
func (r *GormKVStore) Remove(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Where("key = ?", key).Delete(&models.KVEntry{}).Error; err != nil {
		return wrapUnavailable("remove", err)
	}
	return nil
}

// PurgeExpired 清理已过期条目
func (r *GormKVStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", r.now()).
		Delete(&models.KVEntry{})
	if result.Error != nil {
		return 0, wrapUnavailable("purge", result.Error)
	}
	return result.RowsAffected, nil
}

func wrapUnavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("kv %s: %w: %v", op, kvstore.ErrUnavailable, err)
}
