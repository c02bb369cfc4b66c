package storage

import (
	"context"
	"testing"
	"time"

	"github.com/oslerlabs/osler/internal/clock"
)

var (
	epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx   = context.Background()
)

func TestMemoryStorage_SetGet(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	s := NewMemoryStorage(vc)

	if err := s.Set(ctx, "key", []byte("value"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	val, err := s.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(val) != "value" {
		t.Errorf("Get = %q, want %q", val, "value")
	}
}

func TestMemoryStorage_GetMissing(t *testing.T) {
	s := NewMemoryStorage(clock.NewVirtualClock(epoch))
	val, err := s.Get(ctx, "nope")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if val != nil {
		t.Errorf("Get = %q, want nil", val)
	}
}

func TestMemoryStorage_Expiration(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	s := NewMemoryStorage(vc)

	s.Set(ctx, "key", []byte("value"), time.Minute)

	vc.Advance(59 * time.Second)
	if val, _ := s.Get(ctx, "key"); val == nil {
		t.Error("key should still exist before expiry")
	}

	vc.Advance(time.Second)
	if val, _ := s.Get(ctx, "key"); val != nil {
		t.Error("key should be gone at expiry")
	}
}

func TestMemoryStorage_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStorage(clock.NewVirtualClock(epoch))
	s.Set(ctx, "key", []byte("value"), 0)

	val, _ := s.Get(ctx, "key")
	val[0] = 'X'

	again, _ := s.Get(ctx, "key")
	if string(again) != "value" {
		t.Errorf("stored value mutated through returned slice: %q", again)
	}
}

func TestMemoryStorage_Increment(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	s := NewMemoryStorage(vc)

	n, err := s.Increment(ctx, "counter", 1, time.Minute)
	if err != nil {
		t.Fatalf("Increment error: %v", err)
	}
	if n != 1 {
		t.Errorf("first Increment = %d, want 1", n)
	}

	n, _ = s.Increment(ctx, "counter", 2, time.Minute)
	if n != 3 {
		t.Errorf("second Increment = %d, want 3", n)
	}

	// Expired counter starts fresh.
	vc.Advance(2 * time.Minute)
	n, _ = s.Increment(ctx, "counter", 1, time.Minute)
	if n != 1 {
		t.Errorf("Increment after expiry = %d, want 1", n)
	}
}

func TestMemoryStorage_CheckLimit_FreshWindow(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	s := NewMemoryStorage(vc)

	allowed, remaining, resetAt, err := s.CheckLimit(ctx, "1.2.3.4", 5, time.Hour)
	if err != nil {
		t.Fatalf("CheckLimit error: %v", err)
	}
	if !allowed {
		t.Error("first request should be allowed")
	}
	if remaining != 4 {
		t.Errorf("remaining = %d, want 4", remaining)
	}
	if !resetAt.Equal(epoch.Add(time.Hour)) {
		t.Errorf("resetAt = %v, want %v", resetAt, epoch.Add(time.Hour))
	}
}

func TestMemoryStorage_CheckLimit_Exhaustion(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	s := NewMemoryStorage(vc)

	for i := 0; i < 5; i++ {
		allowed, _, _, _ := s.CheckLimit(ctx, "client", 5, time.Hour)
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, remaining, _, _ := s.CheckLimit(ctx, "client", 5, time.Hour)
	if allowed {
		t.Error("6th request should be denied")
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0", remaining)
	}
}

func TestMemoryStorage_CheckLimit_WindowAnchoredAtFirstRequest(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	s := NewMemoryStorage(vc)

	s.CheckLimit(ctx, "client", 5, time.Hour)
	vc.Advance(30 * time.Minute)

	// Still the same window: reset stays anchored at the first request.
	_, _, resetAt, _ := s.CheckLimit(ctx, "client", 5, time.Hour)
	if !resetAt.Equal(epoch.Add(time.Hour)) {
		t.Errorf("resetAt = %v, want %v", resetAt, epoch.Add(time.Hour))
	}
}

func TestMemoryStorage_CheckLimit_FreshWindowAfterExpiry(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	s := NewMemoryStorage(vc)

	for i := 0; i < 5; i++ {
		s.CheckLimit(ctx, "client", 5, time.Hour)
	}
	if allowed, _, _, _ := s.CheckLimit(ctx, "client", 5, time.Hour); allowed {
		t.Fatal("budget should be exhausted")
	}

	vc.Advance(time.Hour + time.Second)
	allowed, remaining, _, _ := s.CheckLimit(ctx, "client", 5, time.Hour)
	if !allowed {
		t.Error("request in a fresh window should be allowed")
	}
	if remaining != 4 {
		t.Errorf("remaining = %d, want 4", remaining)
	}
}

func TestMemoryStorage_CheckLimit_SeparateKeys(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	s := NewMemoryStorage(vc)

	s.CheckLimit(ctx, "a", 1, time.Hour)
	if allowed, _, _, _ := s.CheckLimit(ctx, "a", 1, time.Hour); allowed {
		t.Error("key a should be exhausted")
	}
	if allowed, _, _, _ := s.CheckLimit(ctx, "b", 1, time.Hour); !allowed {
		t.Error("key b should be unaffected")
	}
}

func TestMemoryStorage_Cleanup(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	s := NewMemoryStorage(vc)

	s.Set(ctx, "stays", []byte("v"), 0)
	s.Set(ctx, "goes", []byte("v"), time.Second)

	vc.Advance(time.Minute)
	s.Cleanup()

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestMemoryStorage_Delete(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	s := NewMemoryStorage(vc)

	s.Set(ctx, "key", []byte("v"), 0)
	s.CheckLimit(ctx, "key", 1, time.Hour)
	s.Delete(ctx, "key")

	if val, _ := s.Get(ctx, "key"); val != nil {
		t.Error("deleted key should be gone")
	}
	if allowed, _, _, _ := s.CheckLimit(ctx, "key", 1, time.Hour); !allowed {
		t.Error("deleted key's window should be gone")
	}
}
