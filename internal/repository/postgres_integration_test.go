//go:build integration
// +build integration

package repository

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/panierscan/authcore/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.KVEntry{},
		&models.VerificationSession{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(cleanupModels...); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresKVStoreUpsertAndExpire(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	store := NewGormKVStore(db)
	ctx := context.Background()

	if err := store.Set(ctx, "otp:pending:pg", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Set(ctx, "otp:pending:pg", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	value, ok, err := store.Get(ctx, "otp:pending:pg")
	if err != nil || !ok || string(value) != "v2" {
		t.Fatalf("unexpected get: %q %v %v", value, ok, err)
	}

	store.SetClock(func() time.Time { return time.Now().Add(2 * time.Minute) })
	if _, ok, _ := store.Get(ctx, "otp:pending:pg"); ok {
		t.Fatalf("expected entry expired")
	}
}

func TestPostgresVerificationSessionPhoneSearch(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewVerificationSessionRepository(db)
	now := time.Now()
	if err := repo.Create(&models.VerificationSession{
		SessionID:   "pg-session",
		PhoneNumber: "+243812345678",
		Purpose:     "login",
		CodeHash:    "hash",
		Status:      models.VerificationStatusPending,
		MaxAttempts: 5,
		ExpiresAt:   now.Add(10 * time.Minute),
		SentAt:      now,
	}); err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	rows, total, err := repo.ListAdmin(VerificationSessionListFilter{Page: 1, PageSize: 10, PhoneNumber: "+24381"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("want 1 row got total=%d len=%d", total, len(rows))
	}
}
