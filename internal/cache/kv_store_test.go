package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/panierscan/authcore/internal/kvstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisKVStoreRoundTripWithTTL(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	store := NewRedisKVStore(client, "test")
	ctx := context.Background()

	if err := store.Set(ctx, "otp:pending:inst", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if !mr.Exists("test:otp:pending:inst") {
		t.Fatalf("expected prefixed key in redis")
	}
	value, ok, err := store.Get(ctx, "otp:pending:inst")
	if err != nil || !ok || string(value) != "payload" {
		t.Fatalf("unexpected get: %q %v %v", value, ok, err)
	}

	mr.FastForward(61 * time.Second)
	if _, ok, err := store.Get(ctx, "otp:pending:inst"); ok || err != nil {
		t.Fatalf("expected key expired, ok=%v err=%v", ok, err)
	}
}

func TestRedisKVStoreRemoveAndMissing(t *testing.T) {
	_, client := newMiniRedisClient(t)
	store := NewRedisKVStore(client, "test")
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("missing key want false,nil got %v,%v", ok, err)
	}
	_ = store.Set(ctx, "k", []byte("v"), 0)
	if err := store.Remove(ctx, "k"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatalf("expected removed key")
	}
}

func TestRedisKVStoreWrapsConnectionErrors(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	store := NewRedisKVStore(client, "test")
	mr.Close()

	_, _, err := store.Get(context.Background(), "k")
	if !errors.Is(err, kvstore.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestOperatorAuthStateCache(t *testing.T) {
	_, client := newMiniRedisClient(t)
	UseClient(client, "test")
	t.Cleanup(func() { UseClient(nil, "") })
	ctx := context.Background()

	state := &OperatorAuthState{OperatorID: 7, Name: "ops", Roles: []string{"support"}}
	if err := SetOperatorAuthState(ctx, "hash", state); err != nil {
		t.Fatalf("set state failed: %v", err)
	}
	got, hit, err := GetOperatorAuthState(ctx, "hash")
	if err != nil || !hit {
		t.Fatalf("expected cache hit, err=%v", err)
	}
	if got.OperatorID != 7 || len(got.Roles) != 1 {
		t.Fatalf("unexpected state: %+v", got)
	}
	if err := DelOperatorAuthState(ctx, "hash"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, hit, _ := GetOperatorAuthState(ctx, "hash"); hit {
		t.Fatalf("expected cache miss after delete")
	}
}
