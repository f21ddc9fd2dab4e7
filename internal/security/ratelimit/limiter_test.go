package ratelimit

import (
	"testing"
	"time"
)

func TestBucketExhaustion(t *testing.T) {
	l := NewLimiter(3, time.Hour)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("caller-1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("caller-1") {
		t.Fatalf("expected rejection once the bucket is empty")
	}
}

func TestCallersAreIndependent(t *testing.T) {
	l := NewLimiter(1, time.Hour)
	defer l.Stop()

	if !l.Allow("a") {
		t.Fatalf("first caller should be allowed")
	}
	if !l.Allow("b") {
		t.Fatalf("second caller has their own bucket")
	}
	if l.Allow("a") {
		t.Fatalf("first caller exhausted their bucket")
	}
}

func TestTokensRefillOverTime(t *testing.T) {
	l := NewLimiter(2, 20*time.Millisecond)
	defer l.Stop()

	l.Allow("c")
	l.Allow("c")
	if l.Allow("c") {
		t.Fatalf("bucket should be empty")
	}

	time.Sleep(30 * time.Millisecond)
	if !l.Allow("c") {
		t.Fatalf("bucket should have refilled")
	}
}

func TestEmptyCallerIsNotLimited(t *testing.T) {
	l := NewLimiter(1, time.Hour)
	defer l.Stop()

	for i := 0; i < 10; i++ {
		if !l.Allow("") {
			t.Fatalf("anonymous requests are limited upstream, not here")
		}
	}
}
