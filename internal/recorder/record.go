package recorder

import (
	"time"
)

// TrafficRecord represents a single proxied generation request.
type TrafficRecord struct {
	Timestamp time.Time         `json:"timestamp"`
	Key       string            `json:"key"`      // client identifier (forwarded IP or "unknown")
	Endpoint  string            `json:"endpoint"` // e.g., "POST /api/generate"
	Allowed   bool              `json:"allowed"`
	Remaining int               `json:"remaining"`
	Status    int               `json:"status"` // response status sent to the caller
	Metadata  map[string]string `json:"metadata,omitempty"`
}
