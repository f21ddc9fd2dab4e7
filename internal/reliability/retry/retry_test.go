package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() *Policy {
	return &Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestSucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(), nil, "op", func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("Do = %d, %v", got, err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetriesUntilSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(), nil, "op", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("Do = %q, %v", got, err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestExhaustsAttempts(t *testing.T) {
	calls := 0
	cause := errors.New("still broken")
	_, err := Do(context.Background(), fastPolicy(), nil, "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, cause
	})
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("error must wrap the last cause, got %v", err)
	}
}

func TestCancellationStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Policy{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, Multiplier: 1}

	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, p, nil, "op", func(ctx context.Context) (int, error) {
			return 0, errors.New("fail")
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Do did not return after cancellation")
	}
}
