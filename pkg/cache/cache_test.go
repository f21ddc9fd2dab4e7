package cache

import (
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := New()
	c.Set("k", "v", time.Minute)

	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("Get = %v, %v; want v, true", got, ok)
	}
}

func TestGetMissing(t *testing.T) {
	c := New()
	if _, ok := c.Get("absent"); ok {
		t.Fatalf("expected miss")
	}
}

func TestExpiry(t *testing.T) {
	c := New()
	c.Set("k", "v", 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected entry to expire")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be dropped on read, len = %d", c.Len())
	}
}

func TestNonPositiveTTLStoresNothing(t *testing.T) {
	c := New()
	c.Set("k", "v", 0)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("zero ttl must not store")
	}
}

func TestDelete(t *testing.T) {
	c := New()
	c.Set("k", "v", time.Minute)
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected delete to remove entry")
	}
}

func TestNilValueIsCacheable(t *testing.T) {
	c := New()
	c.Set("k", nil, time.Minute)

	got, ok := c.Get("k")
	if !ok {
		t.Fatalf("nil value must still be a hit")
	}
	if got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}
