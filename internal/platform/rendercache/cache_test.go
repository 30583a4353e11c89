package rendercache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	a, err := Key("chart", "Dupont", map[string]int{"w": 900})
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	b, _ := Key("chart", "Dupont", map[string]int{"w": 900})
	c, _ := Key("chart", "Martin", map[string]int{"w": 900})

	if a != b {
		t.Error("same parts must give the same key")
	}
	if a == c {
		t.Error("different parts must give different keys")
	}
	if !strings.HasPrefix(a, "chart:") || len(a) != len("chart:")+64 {
		t.Errorf("unexpected key format %q", a)
	}

	if _, err := Key("chart", func() {}); err == nil {
		t.Error("expected error for unencodable part")
	}
}

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("null cache must always miss")
	}
}

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss on empty cache")
	}
	data := []byte("png")
	if err := c.Set(ctx, "k", data, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data[0] = 'x'

	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(got) != "png" {
		t.Errorf("cache must keep its own copy, got %q", got)
	}

	_ = c.Delete(ctx, "k")
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "short", []byte("a"), time.Minute)
	_ = c.Set(ctx, "long", []byte("b"), time.Hour)
	_ = c.Set(ctx, "forever", []byte("c"), 0)

	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "short"); ok {
		t.Error("expected expired entry to miss")
	}
	if _, ok, _ := c.Get(ctx, "long"); !ok {
		t.Error("expected live entry to hit")
	}

	now = now.Add(2 * time.Hour)
	if n := c.Sweep(); n != 1 {
		t.Errorf("expected 1 swept entry, got %d", n)
	}
	if c.Len() != 1 {
		t.Errorf("expected only the non-expiring entry, got %d", c.Len())
	}
}

func TestNewRedisCache_BadURL(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), "not-a-url", "anesthesia:"); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestRedisCache_RoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, url, "anesthesia-test:")
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()

	if err := c.Set(ctx, "k", []byte("png"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(got) != "png" {
		t.Fatalf("expected hit, got %q ok=%v err=%v", got, ok, err)
	}
	_ = c.Delete(ctx, "k")
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expected miss after delete")
	}
}
