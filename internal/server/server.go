// Package server is the HTTP proxy boundary in front of the LLM provider.
// It validates inbound shape, applies the per-client budget, forwards to the
// gateway, and never exposes the credential or raw provider internals.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/oslerlabs/osler/internal/clock"
	"github.com/oslerlabs/osler/internal/gateway"
	"github.com/oslerlabs/osler/internal/limiter"
	"github.com/oslerlabs/osler/internal/recorder"
)

// unknownClient is the sentinel key for requests with no forwarded address.
// Trivially spoofable, which is acceptable: the limiter is abuse mitigation,
// not a security boundary.
const unknownClient = "unknown"

// Server is the osler proxy server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux

	limiter limiter.Limiter
	clock   clock.Clock
	gateway *gateway.Client
	model   string

	window time.Duration

	hub *Hub
	rec *recorder.Recorder
}

// Options carries optional server collaborators.
type Options struct {
	Hub      *Hub
	Recorder *recorder.Recorder
	Model    string        // provider model; defaults to gateway.DefaultModel
	Window   time.Duration // budget window, for denial messages; defaults to one hour
}

// New creates a proxy server. gw may be nil when the credential is absent
// from process configuration; the generation endpoint then reports a
// configuration error on every request.
func New(addr string, lim limiter.Limiter, clk clock.Clock, gw *gateway.Client, opts Options) *Server {
	model := opts.Model
	if model == "" {
		model = gateway.DefaultModel
	}
	window := opts.Window
	if window <= 0 {
		window = time.Hour
	}
	s := &Server{
		limiter: lim,
		clock:   clk,
		gateway: gw,
		model:   model,
		window:  window,
		hub:     opts.Hub,
		rec:     opts.Recorder,
		mux:     http.NewServeMux(),
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: RequestLog(s.mux),
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/generate", s.handleGenerate)
	if s.hub != nil {
		s.mux.HandleFunc("/ws", s.hub.HandleWebSocket)
	}
}

// handleRoot serves service info.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "osler",
		"status":  "running",
		"time":    s.clock.Now().Format(time.RFC3339),
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// generateRequest is the inbound body shape for the generation endpoint.
type generateRequest struct {
	Messages  []gateway.Message `json:"messages"`
	System    string            `json:"system"`
	MaxTokens int               `json:"max_tokens"`
}

// handleGenerate validates the request, applies the budget, and forwards to
// the provider. The provider payload passes through verbatim on success.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}

	key := clientKey(r)
	endpoint := r.Method + " " + r.URL.Path

	if s.gateway == nil {
		// Deployment error, not a per-request one.
		s.finish(w, key, endpoint, limiter.Decision{}, http.StatusServiceUnavailable,
			"API key not configured. Contact your administrator.")
		return
	}

	decision := s.limiter.Allow(r.Context(), key)
	if !decision.Allowed {
		msg := fmt.Sprintf(
			"Rate limit reached. You can generate up to %d question sets per %s. Try again in ~%d minutes.",
			decision.Limit, windowText(s.window), decision.ResetInMinutes(s.clock.Now()))
		s.finish(w, key, endpoint, decision, http.StatusTooManyRequests, msg)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.finish(w, key, endpoint, decision, http.StatusBadRequest, "Invalid request.")
		return
	}
	if len(req.Messages) == 0 {
		s.finish(w, key, endpoint, decision, http.StatusBadRequest, "Missing messages.")
		return
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 || maxTokens > gateway.MaxTokensCeiling {
		maxTokens = gateway.MaxTokensCeiling
	}

	payload, err := s.gateway.Send(r.Context(), gateway.Request{
		Model:     s.model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  req.Messages,
	})
	if err != nil {
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) {
			s.finish(w, key, endpoint, decision, gwErr.Status, gwErr.Message)
			return
		}
		log.Printf("proxy error for key %q: %v", key, err)
		s.finish(w, key, endpoint, decision, http.StatusInternalServerError,
			"Something went wrong. Please try again.")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
	w.Write(payload)
	s.observe(key, endpoint, decision, http.StatusOK)
}

// writeError sends a structured error body.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// finish sends a structured error and observes the outcome.
func (s *Server) finish(w http.ResponseWriter, key, endpoint string, d limiter.Decision, status int, msg string) {
	s.writeError(w, status, msg)
	s.observe(key, endpoint, d, status)
}

// observe records the request and broadcasts it to connected dashboards.
func (s *Server) observe(key, endpoint string, d limiter.Decision, status int) {
	rec := recorder.TrafficRecord{
		Timestamp: s.clock.Now(),
		Key:       key,
		Endpoint:  endpoint,
		Allowed:   d.Allowed,
		Remaining: d.Remaining,
		Status:    status,
	}
	if s.rec != nil {
		if err := s.rec.Record(rec); err != nil {
			log.Printf("record error: %v", err)
		}
	}
	if s.hub != nil {
		s.hub.Broadcast(Event{Record: rec, Decision: d, Time: rec.Timestamp})
	}
}

// clientKey derives the client identifier from the first forwarded-address
// header value, trimmed, falling back to a sentinel when absent.
func clientKey(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded == "" {
		return unknownClient
	}
	first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
	if first == "" {
		return unknownClient
	}
	return first
}

// windowText renders the budget window for the denial message.
func windowText(window time.Duration) string {
	if window == time.Hour {
		return "hour"
	}
	return window.String()
}

// Start begins listening. It blocks until the server is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	log.Printf("osler proxy listening on %s", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// StartOnListener begins serving on the provided listener.
// Useful for tests that need to pick an ephemeral port.
func (s *Server) StartOnListener(ln net.Listener) error {
	log.Printf("osler proxy listening on %s", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
