package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreSetGetRemove(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "a", []byte("1"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, ok, err := store.Get(ctx, "a")
	if err != nil || !ok || string(value) != "1" {
		t.Fatalf("unexpected get result: %q %v %v", value, ok, err)
	}
	if err := store.Remove(ctx, "a"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "a"); ok {
		t.Fatalf("expected key removed")
	}
}

func TestMemoryStoreExpiresLazily(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	now = now.Add(59 * time.Second)
	if _, ok, _ := store.Get(ctx, "k"); !ok {
		t.Fatalf("expected key alive before ttl")
	}
	now = now.Add(time.Second)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatalf("expected key expired at ttl")
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	raw := []byte("abc")
	_ = store.Set(ctx, "k", raw, 0)
	raw[0] = 'x'
	value, _, _ := store.Get(ctx, "k")
	if string(value) != "abc" {
		t.Fatalf("store must not alias caller buffer, got %q", value)
	}
}

func TestNamespacePrefixesKeys(t *testing.T) {
	inner := NewMemoryStore()
	ns := Namespace(inner, "otp:")
	ctx := context.Background()
	if err := ns.Set(ctx, "session:1", []byte("x"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, ok, _ := inner.Get(ctx, "otp:session:1"); !ok {
		t.Fatalf("expected prefixed key in inner store")
	}
	if Namespace(inner, "") != Store(inner) {
		t.Fatalf("empty prefix should return inner store")
	}
}

func TestFailingStoreWrapsUnavailable(t *testing.T) {
	var store Store = FailingStore{}
	_, _, err := store.Get(context.Background(), "k")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMemoryStoreHonoursCancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Set(ctx, "k", []byte("v"), 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
