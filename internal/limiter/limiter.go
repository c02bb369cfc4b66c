package limiter

import (
	"context"
	"time"
)

// Limiter is the per-client request budget interface.
type Limiter interface {
	// Allow checks if a request identified by key is allowed.
	// Allow mutates the window state for key on every call; it must not be
	// called speculatively.
	Allow(ctx context.Context, key string) Decision
}

// Decision captures the result of a rate limit check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"` // Requests remaining after this check
	Limit     int       `json:"limit"`     // Max requests per window
	ResetAt   time.Time `json:"reset_at"`  // When the window resets
	RetryAt   time.Time `json:"retry_at"`  // Earliest time to retry (if denied)
}

// ResetInMinutes returns the number of minutes, rounded up, until the window
// resets. Used in the denial message shown to callers. Always at least 1 for
// a denied request.
func (d Decision) ResetInMinutes(now time.Time) int {
	remaining := d.ResetAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	mins := int((remaining + time.Minute - 1) / time.Minute)
	if mins < 1 {
		mins = 1
	}
	return mins
}

// Config holds the parameters for creating a limiter.
type Config struct {
	Rate   int           `json:"rate"`   // Requests allowed per window
	Window time.Duration `json:"window"` // Window duration
}
