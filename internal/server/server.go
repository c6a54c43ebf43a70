// Package server implements the HTTP server that exposes the document Q&A
// pipeline via a REST/SSE API: session lifecycle, streaming question
// answering, file listing, health and readiness probes, and Prometheus
// metrics. The server is started by the `askdoc serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/askdoc/askdoc-go/internal/chat"
	"github.com/askdoc/askdoc-go/internal/logging"
	"github.com/askdoc/askdoc-go/internal/registry"
	"github.com/askdoc/askdoc-go/internal/session"
)

// New constructs a Server from the provided pipeline, stores, and config.
func New(ask asker, sessions session.Store, reg registry.FileRegistry, cfg *Config) (*Server, error) {
	if ask == nil {
		return nil, fmt.Errorf("server: asker must not be nil")
	}
	if sessions == nil {
		return nil, fmt.Errorf("server: session store must not be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("server: registry must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must be long enough for streaming responses.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.AskTimeout == 0 {
		cfg.AskTimeout = 5 * time.Minute
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}

	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	registerer := cfg.MetricsRegistry
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	gatherer := cfg.MetricsGatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		asker:    ask,
		sessions: sessions,
		registry: reg,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(registerer),
	}

	if cfg.APIKey == "" {
		log.Warn("API key not configured, authentication disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	protect := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/session", protect("session", s.handleSessionCreate))
	mux.Handle("POST /api/ask", protect("ask", s.handleAsk))
	mux.Handle("GET /api/files", protect("files", s.handleFiles))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("askdoc server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleSessionCreate handles POST /api/session. It allocates a new session
// and returns its id with 201 Created.
func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessions.Create(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("session create failed", slog.Any("error", err))
		http.Error(w, "could not create session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(sessionResponse{SessionID: id}); err != nil {
		logging.FromContext(r.Context()).Error("session encode error", slog.Any("error", err))
	}
}

// handleAsk handles POST /api/ask. It streams the answer using Server-Sent
// Events so the client can render tokens as they arrive. Validation failures
// before the first streamed byte map to plain HTTP status codes; failures
// after streaming has begun are delivered in-band as SSE events.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}
	if len(req.Collections) == 0 {
		http.Error(w, "at least one collection is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// SSE headers are written lazily on the first answer chunk, so
	// validation errors from the pipeline can still use HTTP status codes.
	sw := &sseWriter{w: w, flusher: flusher}

	s.metrics.askActiveStreams.Inc()
	defer s.metrics.askActiveStreams.Dec()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AskTimeout)
	defer cancel()

	start := time.Now()
	err := s.asker.Answer(ctx, req.SessionID, req.Question, req.Collections, sw)
	outcome := "ok"
	if err != nil {
		outcome = s.writeAskError(w, sw, flusher, err)
	} else {
		fmt.Fprint(w, "event: done\ndata: [DONE]\n\n")
		flusher.Flush()
	}
	s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// writeAskError reports a pipeline failure to the client and returns the
// metric outcome label. Before any SSE frame has been sent the error maps to
// an HTTP status; afterwards it is delivered as SSE events on the open
// stream.
func (s *Server) writeAskError(w http.ResponseWriter, sw *sseWriter, flusher http.Flusher, err error) string {
	var unknownCollection *chat.UnknownCollectionError
	var partial *chat.PartialGenerationError

	if !sw.wrote {
		switch {
		case errors.Is(err, chat.ErrSessionNotFound):
			http.Error(w, "session not found", http.StatusNotFound)
			return "rejected"
		case errors.As(err, &unknownCollection):
			http.Error(w, unknownCollection.Error(), http.StatusBadRequest)
			return "rejected"
		case errors.Is(err, chat.ErrRetrievalUnavailable):
			http.Error(w, "retrieval unavailable", http.StatusServiceUnavailable)
			return "error"
		default:
			// Anything else before the first byte (e.g. the model stream
			// failed to open) is an upstream failure, not a stream event.
			http.Error(w, "generation failed", http.StatusBadGateway)
			return "error"
		}
	}
	if errors.As(err, &partial) {
		// The prefix already reached the client; mark the answer truncated.
		fmt.Fprint(w, "event: partial\ndata: true\n\n")
	}
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
	flusher.Flush()

	if partial != nil {
		return "partial"
	}
	return "error"
}

// handleFiles handles GET /api/files. It lists all ingested files so clients
// can discover valid collection names.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := s.registry.List(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("file list failed", slog.Any("error", err))
		http.Error(w, "could not list files", http.StatusInternalServerError)
		return
	}

	resp := filesResponse{Files: make([]fileEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Files = append(resp.Files, fileEntry{
			Name:       e.Name,
			SHA256:     e.SHA256,
			IngestedAt: e.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.FromContext(r.Context()).Error("files encode error", slog.Any("error", err))
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// sseWriter wraps an http.ResponseWriter to emit Server-Sent Event data
// frames. Headers are written on the first frame so handlers can fall back
// to plain HTTP errors while nothing has been streamed yet.
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter

	// flusher flushes buffered data to the client after each write.
	flusher http.Flusher

	// wrote is true once any frame (or the headers) went out.
	wrote bool
}

// writeHeaders emits the SSE response headers.
func (s *sseWriter) writeHeaders() {
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.wrote = true
}

// Write formats p as one or more SSE data lines and flushes to the client.
// Each newline in p is prefixed with "data: " so multi-line chunks never
// break the SSE frame boundary.
func (s *sseWriter) Write(p []byte) (n int, err error) {
	if !s.wrote {
		s.writeHeaders()
	}
	chunk := strings.TrimRight(string(p), "\n")
	lines := strings.Split(chunk, "\n")
	var buf strings.Builder
	for _, line := range lines {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
	if _, err = fmt.Fprint(s.w, buf.String()); err != nil {
		return 0, err
	}
	s.flusher.Flush()
	return len(p), nil
}
