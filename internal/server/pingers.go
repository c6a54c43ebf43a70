package server

import (
	"context"
	"fmt"

	"github.com/askdoc/askdoc-go/internal/provider"
)

// LLMPinger probes an LLM backend using the provider's zero-cost health
// check (e.g. Ollama's GET /api/tags). It satisfies the Pinger interface and
// is used by GET /api/ready.
type LLMPinger struct {
	// healthCheck is the backend-specific reachability probe.
	healthCheck provider.HealthCheckConfig
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given health check and
// backend name.
func NewLLMPinger(hc provider.HealthCheckConfig, name string) *LLMPinger {
	return &LLMPinger{healthCheck: hc, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping probes the LLM backend for readiness. Backends without a health check
// (hosted APIs with no cheap probe endpoint) always report healthy.
func (p *LLMPinger) Ping(ctx context.Context) error {
	if p.healthCheck == nil {
		return nil
	}
	if err := p.healthCheck.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%s health check failed: %w", p.name, err)
	}
	return nil
}

// contextPinger adapts any Ping(ctx) error dependency (the Qdrant client,
// the SQLite stores) to the Pinger interface under a fixed name.
type contextPinger struct {
	name string
	ping func(ctx context.Context) error
}

// NewPinger wraps a ping function under the given dependency name.
func NewPinger(name string, ping func(ctx context.Context) error) Pinger {
	return &contextPinger{name: name, ping: ping}
}

func (p *contextPinger) Name() string { return p.name }

func (p *contextPinger) Ping(ctx context.Context) error {
	if err := p.ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
