package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/askdoc/askdoc-go/internal/registry"
	"github.com/askdoc/askdoc-go/internal/session"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AskTimeout bounds the full retrieve-and-generate pipeline for one
	// question. Defaults to 5 minutes if zero.
	AskTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's Prometheus metric registrations.
	// If nil, prometheus.DefaultRegisterer is used.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint.
	// If nil, prometheus.DefaultGatherer is used.
	MetricsGatherer prometheus.Gatherer
}

// asker is the interface handleAsk calls to run the question pipeline.
// *chat.Orchestrator satisfies it; tests inject a fake.
type asker interface {
	// Answer streams the answer for question to w, persisting the exchange
	// under sessionID.
	Answer(ctx context.Context, sessionID, question string, collections []string, w io.Writer) error
}

// Server is the HTTP server that exposes the question pipeline, session
// lifecycle, and file listing over REST/SSE.
type Server struct {
	// asker runs the retrieve-and-generate pipeline for POST /api/ask.
	asker asker
	// sessions backs POST /api/session.
	sessions session.Store
	// registry backs GET /api/files.
	registry registry.FileRegistry
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// SessionID identifies the conversation; empty runs the question
	// statelessly.
	SessionID string `json:"sessionId"`
	// Question is the user's natural language question.
	Question string `json:"question"`
	// Collections names the ingested files to search.
	Collections []string `json:"collections"`
}

// sessionResponse is the JSON body for POST /api/session.
type sessionResponse struct {
	// SessionID is the newly allocated session identifier.
	SessionID string `json:"sessionId"`
}

// fileEntry is one element of the GET /api/files response.
type fileEntry struct {
	// Name is the ingested file name (and its collection name).
	Name string `json:"name"`
	// SHA256 is the content hash recorded at ingestion time.
	SHA256 string `json:"sha256"`
	// IngestedAt is when the file was first ingested (RFC 3339).
	IngestedAt time.Time `json:"ingestedAt"`
}

// filesResponse is the JSON body for GET /api/files.
type filesResponse struct {
	// Files lists all ingested files ordered by name.
	Files []fileEntry `json:"files"`
}
