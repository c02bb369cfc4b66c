package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oslerlabs/osler/internal/clock"
	"github.com/oslerlabs/osler/internal/gateway"
	"github.com/oslerlabs/osler/internal/limiter"
	"github.com/oslerlabs/osler/internal/recorder"
	"github.com/oslerlabs/osler/internal/storage"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

const providerPayload = `{"content":[{"type":"text","text":"{\"questions\":[]}"}]}`

type testServer struct {
	srv           *Server
	vc            *clock.VirtualClock
	providerCalls *atomic.Int32
	rec           *recorder.Recorder
}

// newTestServer builds a proxy wired to a fake provider that always succeeds.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	var calls atomic.Int32
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(providerPayload))
	}))
	t.Cleanup(provider.Close)

	vc := clock.NewVirtualClock(epoch)
	lim, err := limiter.NewStorageLimiter(storage.NewMemoryStorage(vc), 5, time.Hour, vc)
	if err != nil {
		t.Fatalf("NewStorageLimiter error: %v", err)
	}
	gw := gateway.New("test-key", gateway.Options{BaseURL: provider.URL, Clock: vc})
	rec := recorder.New(nil)

	return &testServer{
		srv:           New(":0", lim, vc, gw, Options{Recorder: rec}),
		vc:            vc,
		providerCalls: &calls,
		rec:           rec,
	}
}

func generateBody() string {
	return `{"messages":[{"role":"user","content":"generate questions"}],"system":"sys","max_tokens":4000}`
}

func postGenerate(ts *testServer, body, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(body))
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	w := httptest.NewRecorder()
	ts.srv.mux.ServeHTTP(w, req)
	return w
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body %q: %v", w.Body.String(), err)
	}
	return body.Error
}

func TestGenerate_Success(t *testing.T) {
	ts := newTestServer(t)

	w := postGenerate(ts, generateBody(), "1.2.3.4")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Body.String() != providerPayload {
		t.Errorf("body = %q, want the provider payload verbatim", w.Body.String())
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Errorf("X-RateLimit-Remaining = %q, want 4", got)
	}
	if ts.providerCalls.Load() != 1 {
		t.Errorf("provider calls = %d, want 1", ts.providerCalls.Load())
	}
}

func TestGenerate_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/generate", nil)
	w := httptest.NewRecorder()
	ts.srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestGenerate_InvalidJSON(t *testing.T) {
	ts := newTestServer(t)

	w := postGenerate(ts, "{not json", "1.2.3.4")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if got := errorMessage(t, w); got != "Invalid request." {
		t.Errorf("error = %q", got)
	}
	if ts.providerCalls.Load() != 0 {
		t.Error("malformed requests must never reach the provider")
	}
}

func TestGenerate_MissingMessages(t *testing.T) {
	ts := newTestServer(t)

	w := postGenerate(ts, `{"messages":[]}`, "1.2.3.4")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if got := errorMessage(t, w); got != "Missing messages." {
		t.Errorf("error = %q", got)
	}
	if ts.providerCalls.Load() != 0 {
		t.Error("empty requests must never reach the provider")
	}
}

func TestGenerate_NilGatewayReportsConfigError(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	lim, _ := limiter.NewStorageLimiter(storage.NewMemoryStorage(vc), 5, time.Hour, vc)
	srv := New(":0", lim, vc, nil, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(generateBody()))
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if got := errorMessage(t, w); got != "API key not configured. Contact your administrator." {
		t.Errorf("error = %q", got)
	}
}

func TestGenerate_RateLimited(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 5; i++ {
		if w := postGenerate(ts, generateBody(), "1.2.3.4"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, w.Code)
		}
	}

	w := postGenerate(ts, generateBody(), "1.2.3.4")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	msg := errorMessage(t, w)
	if !strings.Contains(msg, "up to 5 question sets per hour") {
		t.Errorf("error = %q, want the budget description", msg)
	}
	if !strings.Contains(msg, "~60 minutes") {
		t.Errorf("error = %q, want the reset estimate", msg)
	}
	if ts.providerCalls.Load() != 5 {
		t.Errorf("provider calls = %d; a denied request must not reach the provider", ts.providerCalls.Load())
	}
}

func TestGenerate_BudgetIsPerClient(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 5; i++ {
		postGenerate(ts, generateBody(), "1.2.3.4")
	}
	if w := postGenerate(ts, generateBody(), "1.2.3.4"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("exhausted client: status = %d, want 429", w.Code)
	}
	if w := postGenerate(ts, generateBody(), "5.6.7.8"); w.Code != http.StatusOK {
		t.Errorf("other client: status = %d, want 200", w.Code)
	}
}

func TestGenerate_ForwardedForUsesFirstAddress(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 5; i++ {
		postGenerate(ts, generateBody(), "1.2.3.4, 10.0.0.1")
	}
	// Same first hop behind a different proxy chain: still the same budget.
	if w := postGenerate(ts, generateBody(), "1.2.3.4, 10.9.9.9"); w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 for the same first address", w.Code)
	}
}

func TestGenerate_ProviderAuthFailureMapped(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid x-api-key"}}`))
	}))
	t.Cleanup(provider.Close)

	vc := clock.NewVirtualClock(epoch)
	lim, _ := limiter.NewStorageLimiter(storage.NewMemoryStorage(vc), 5, time.Hour, vc)
	gw := gateway.New("bad-key", gateway.Options{BaseURL: provider.URL, Clock: vc})
	srv := New(":0", lim, vc, gw, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(generateBody()))
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 (never the provider's 401)", w.Code)
	}
	if got := errorMessage(t, w); got != "API authentication error. Contact your administrator." {
		t.Errorf("error = %q", got)
	}
}

func TestGenerate_RecorderObservesOutcomes(t *testing.T) {
	ts := newTestServer(t)

	postGenerate(ts, generateBody(), "1.2.3.4")
	postGenerate(ts, `{"messages":[]}`, "1.2.3.4")

	records := ts.rec.Records()
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Status != http.StatusOK || !records[0].Allowed || records[0].Key != "1.2.3.4" {
		t.Errorf("first record = %+v", records[0])
	}
	if records[1].Status != http.StatusBadRequest {
		t.Errorf("second record status = %d, want 400", records[1].Status)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	ts.srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestRoot_ServiceInfo(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	ts.srv.mux.ServeHTTP(w, req)

	var body map[string]string
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["service"] != "osler" {
		t.Errorf("service = %q, want osler", body["service"])
	}
}

func TestRoot_UnknownPathIs404(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	ts.srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestClientKey(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"", "unknown"},
		{"1.2.3.4", "1.2.3.4"},
		{"1.2.3.4, 10.0.0.1", "1.2.3.4"},
		{"  1.2.3.4  ,10.0.0.1", "1.2.3.4"},
		{" , 10.0.0.1", "unknown"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
		if tc.header != "" {
			req.Header.Set("X-Forwarded-For", tc.header)
		}
		if got := clientKey(req); got != tc.want {
			t.Errorf("clientKey(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
