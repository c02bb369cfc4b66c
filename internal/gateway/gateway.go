// Package gateway is the outbound client for the LLM provider's messages API.
// It owns the credential, the bounded retry/backoff policy for transient
// provider failures, and the mapping of provider errors onto the small set of
// categories the proxy is allowed to surface.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oslerlabs/osler/internal/clock"
)

const (
	// DefaultModel is the provider model used when the config names none.
	DefaultModel = "claude-sonnet-4-20250514"

	// MaxTokensCeiling is the provider-side token ceiling. Requested values
	// above it are clamped, absent values default to it.
	MaxTokensCeiling = 8000

	defaultBaseURL   = "https://api.anthropic.com"
	messagesPath     = "/v1/messages"
	apiVersion       = "2023-06-01"
	defaultTimeout   = 120 * time.Second
	maxRetries       = 3
	statusOverloaded = 529
)

// retryDelays are the backoff waits between transient-failure attempts.
var retryDelays = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}

// Message is one role/content pair in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the wire body for one messages call. Immutable once constructed;
// one instance serves every retry attempt.
type Request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

// Category classifies a provider failure for the proxy boundary.
type Category string

const (
	CategoryBusy           Category = "busy"
	CategoryAuthError      Category = "auth_error"
	CategoryQuotaExhausted Category = "quota_exhausted"
	CategoryOther          Category = "other"
)

// Error is a categorized provider failure. Message is safe to show to end
// users; Status is the HTTP status the proxy should respond with.
type Error struct {
	Category Category
	Message  string
	Status   int
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %s (%s)", e.Message, e.Category)
}

// Client calls the provider with bounded retry on transient failures.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	clock      clock.Clock
}

// Options configures optional Client behavior.
type Options struct {
	BaseURL        string        // provider base URL; defaults to the public API
	AttemptTimeout time.Duration // per-attempt HTTP timeout; defaults to 120s
	HTTPClient     *http.Client  // overrides AttemptTimeout when set
	Clock          clock.Clock   // defaults to the real clock
}

// New creates a gateway client. The credential never leaves this package.
func New(apiKey string, opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.AttemptTimeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		clock:      clk,
	}
}

// providerError is the provider's error envelope.
type providerError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Send issues the request, retrying up to 3 times (4 attempts total) with
// increasing backoff when the provider reports overloaded (529) or
// rate-limited (429). Non-transient errors are never retried. On success the
// provider payload is returned verbatim; the gateway does not interpret it.
func (c *Client) Send(ctx context.Context, req Request) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding provider request: %w", err)
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		payload, status, msg, err := c.attempt(ctx, body)
		if err != nil {
			return nil, err
		}
		if status == http.StatusOK {
			return payload, nil
		}

		transient := status == http.StatusTooManyRequests || status == statusOverloaded
		if transient && attempt < maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-c.clock.After(retryDelays[attempt]):
			}
			continue
		}

		return nil, categorize(status, msg)
	}

	// Unreachable: the final transient attempt returns above.
	return nil, &Error{
		Category: CategoryBusy,
		Message:  "The AI service is temporarily busy. Please try again in a minute.",
		Status:   http.StatusTooManyRequests,
	}
}

// attempt performs one HTTP call. A non-nil error means the call itself
// failed (network, encoding); provider-level failures come back as a status
// and message.
func (c *Client) attempt(ctx context.Context, body []byte) (payload []byte, status int, msg string, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, 0, "", fmt.Errorf("building provider request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, "", fmt.Errorf("calling provider: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, "", fmt.Errorf("reading provider response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		return data, resp.StatusCode, "", nil
	}

	var pe providerError
	message := ""
	if json.Unmarshal(data, &pe) == nil {
		message = pe.Error.Message
	}
	if message == "" {
		message = fmt.Sprintf("API error: %d", resp.StatusCode)
	}
	return nil, resp.StatusCode, message, nil
}

// categorize maps a non-retryable (or retry-exhausted) provider failure onto
// the user-facing error taxonomy. The auth category deliberately suggests 503
// rather than 401 so auth semantics never leak to end clients.
func categorize(status int, msg string) *Error {
	switch {
	case status == http.StatusTooManyRequests || status == statusOverloaded:
		return &Error{
			Category: CategoryBusy,
			Message:  "The AI service is temporarily busy. Please wait a minute and try again.",
			Status:   http.StatusTooManyRequests,
		}
	case status == http.StatusUnauthorized:
		return &Error{
			Category: CategoryAuthError,
			Message:  "API authentication error. Contact your administrator.",
			Status:   http.StatusServiceUnavailable,
		}
	case strings.Contains(msg, "spending") || strings.Contains(msg, "limit") || strings.Contains(msg, "credit"):
		return &Error{
			Category: CategoryQuotaExhausted,
			Message:  "The question generator is temporarily paused. Contact your administrator.",
			Status:   http.StatusServiceUnavailable,
		}
	default:
		return &Error{
			Category: CategoryOther,
			Message:  msg,
			Status:   status,
		}
	}
}

// Text extracts the concatenated text blocks from a provider payload.
func Text(payload []byte) (string, error) {
	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "", fmt.Errorf("decoding provider payload: %w", err)
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
