package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/askdoc/askdoc-go/internal/embedder"
	"github.com/askdoc/askdoc-go/internal/provider"
	"github.com/askdoc/askdoc-go/internal/rag"
	"github.com/askdoc/askdoc-go/internal/registry"
	"github.com/askdoc/askdoc-go/internal/server"
	"github.com/askdoc/askdoc-go/internal/session"
)

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// buildEmbedder constructs the embedding backend from the environment and
// warns when the configured model looks like a chat model rather than an
// embedding model.
func buildEmbedder(log *slog.Logger) (rag.Embedder, uint64, error) {
	model := getEnvOrDefault("EMBEDDING_MODEL", embedder.DefaultOllamaModel)
	if embedder.LooksLikeChatModel(model) {
		log.Warn("EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", model),
		)
	}

	emb, dims, err := embedder.NewFromEnv()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	return emb, dims, nil
}

// buildQdrant connects to Qdrant using QDRANT_* environment variables.
// vectorSize must match the embedding model's dimensionality.
func buildQdrant(vectorSize uint64) (*rag.QdrantClient, error) {
	client, err := rag.NewQdrantClient(&rag.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	return client, nil
}

// openRegistry opens the file registry at ASKDOC_REGISTRY_DB or the default
// path (~/.askdoc/registry.db).
func openRegistry() (*registry.SQLiteRegistry, error) {
	path := os.Getenv("ASKDOC_REGISTRY_DB")
	if path == "" {
		var err error
		path, err = registry.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve registry path: %w", err)
		}
	}
	reg, err := registry.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	return reg, nil
}

// openSessions opens the session store at ASKDOC_SESSION_DB or the default
// path (~/.askdoc/sessions.db).
func openSessions() (*session.SQLiteStore, error) {
	path := os.Getenv("ASKDOC_SESSION_DB")
	if path == "" {
		var err error
		path, err = session.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve session store path: %w", err)
		}
	}
	store, err := session.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return store, nil
}

// buildPingers assembles the readiness probes for every external dependency
// the ask pipeline touches: the LLM backend, Qdrant, and the two SQLite
// stores.
func buildPingers(providerCfg *provider.Config, qdrant *rag.QdrantClient, sessions *session.SQLiteStore, reg *registry.SQLiteRegistry) []server.Pinger {
	var pingers []server.Pinger

	if hc := provider.NewHealthCheck(providerCfg); hc != nil {
		pingers = append(pingers, server.NewLLMPinger(hc, string(providerCfg.Backend)))
	}
	pingers = append(pingers,
		server.NewPinger("qdrant", qdrant.Ping),
		server.NewPinger("sessions", sessions.Ping),
		server.NewPinger("registry", reg.Ping),
	)
	return pingers
}
