package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	if err := m.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, ok, _ := m.Get(ctx, "k"); !ok || got != "v" {
		t.Fatalf("expected hit, got %q %v", got, ok)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after ttl")
	}
}

func TestMemoryMiss(t *testing.T) {
	if _, ok, err := NewMemory().Get(context.Background(), "absent"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	if _, err := NewRedis(context.Background(), "not a url", ""); err == nil {
		t.Fatalf("expected parse error")
	}
}
