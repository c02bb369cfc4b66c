package limiter

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/oslerlabs/osler/internal/clock"
	"github.com/oslerlabs/osler/internal/storage"
)

// StorageLimiter applies a fixed-window budget using a storage backend.
// With the in-memory backend this is a single-process soft control; with the
// Redis backend the budget is shared across processes.
type StorageLimiter struct {
	storage storage.Storage
	clock   clock.Clock
	rate    int
	window  time.Duration
}

// NewStorageLimiter creates a Limiter backed by the given storage.
func NewStorageLimiter(st storage.Storage, rate int, window time.Duration, c clock.Clock) (*StorageLimiter, error) {
	if st == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if c == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if rate <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %d", rate)
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", window)
	}

	return &StorageLimiter{
		storage: st,
		clock:   c,
		rate:    rate,
		window:  window,
	}, nil
}

// Allow checks whether key is allowed, delegating state to the configured
// storage backend. Storage errors fail closed: abuse mitigation should not
// open up when its backend is down.
func (l *StorageLimiter) Allow(ctx context.Context, key string) Decision {
	allowed, remaining, resetAt, err := l.storage.CheckLimit(ctx, key, l.rate, l.window)
	if err != nil {
		now := l.clock.Now()
		log.Printf("storage limiter check failed for key %q: %v", key, err)
		return Decision{
			Allowed:   false,
			Remaining: 0,
			Limit:     l.rate,
			ResetAt:   now.Add(l.window),
			RetryAt:   now.Add(time.Second),
		}
	}

	d := Decision{
		Allowed:   allowed,
		Remaining: remaining,
		Limit:     l.rate,
		ResetAt:   resetAt,
	}
	if !allowed {
		d.RetryAt = resetAt
	}
	return d
}

// Close releases storage resources.
func (l *StorageLimiter) Close() error {
	return l.storage.Close()
}
