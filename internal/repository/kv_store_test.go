package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/panierscan/authcore/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openRepositoryTestDB(t *testing.T, dst ...interface{}) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(dst...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func TestGormKVStoreSetOverwriteRemove(t *testing.T) {
	store := NewGormKVStore(openRepositoryTestDB(t, &models.KVEntry{}))
	ctx := context.Background()

	if err := store.Set(ctx, "a", []byte("one"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Set(ctx, "a", []byte("two"), 0); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	value, ok, err := store.Get(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if string(value) != "two" {
		t.Fatalf("want last write, got %q", value)
	}
	if err := store.Remove(ctx, "a"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "a"); ok {
		t.Fatalf("expected key removed")
	}
	if err := store.Remove(ctx, "missing"); err != nil {
		t.Fatalf("remove missing key should succeed: %v", err)
	}
}

func TestGormKVStoreExpiryAndPurge(t *testing.T) {
	db := openRepositoryTestDB(t, &models.KVEntry{})
	store := NewGormKVStore(db)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	ctx := context.Background()

	if err := store.Set(ctx, "short", []byte("x"), time.Minute); err != nil {
		t.Fatalf("set short failed: %v", err)
	}
	if err := store.Set(ctx, "other", []byte("y"), time.Minute); err != nil {
		t.Fatalf("set other failed: %v", err)
	}
	if err := store.Set(ctx, "forever", []byte("z"), 0); err != nil {
		t.Fatalf("set forever failed: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, err := store.Get(ctx, "short"); ok || err != nil {
		t.Fatalf("expected short expired, ok=%v err=%v", ok, err)
	}
	purged, err := store.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged row, got %d", purged)
	}
	var remaining int64
	db.Model(&models.KVEntry{}).Count(&remaining)
	if remaining != 1 {
		t.Fatalf("expected only non-expiring entry left, got %d", remaining)
	}
}
