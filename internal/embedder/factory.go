package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/askdoc/askdoc-go/internal/rag"
)

// Default embedding models and dimensionalities per provider. Collections
// are created with the matching vector size, so changing the model without
// re-ingesting breaks search.
const (
	DefaultOllamaModel      = "all-minilm"
	DefaultOllamaDimensions = 384

	DefaultOpenAIModel      = "text-embedding-3-small"
	DefaultOpenAIDimensions = 1536
)

// NewFromEnv constructs an Embedder by reading configuration from environment
// variables. EMBEDDING_PROVIDER selects the backend; when unset it follows
// MODEL_PROVIDER so a plain Ollama setup needs no extra configuration.
//
// Environment variables:
//
//	EMBEDDING_PROVIDER   = ollama | openai | azure (default: MODEL_PROVIDER, then ollama)
//	EMBEDDING_MODEL      = embedding model name (per-provider default)
//	EMBEDDING_DIMENSIONS = vector size (per-provider default)
//
//	Ollama: OLLAMA_HOST (default: http://localhost:11434)
//	OpenAI: OPENAI_API_KEY
//	Azure:  AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT,
//	        AZURE_OPENAI_EMBEDDING_DEPLOYMENT, AZURE_OPENAI_API_VERSION
func NewFromEnv() (rag.Embedder, uint64, error) {
	provider := os.Getenv("EMBEDDING_PROVIDER")
	if provider == "" {
		provider = os.Getenv("MODEL_PROVIDER")
	}
	if provider == "" {
		provider = "ollama"
	}

	switch provider {
	case "ollama":
		e := NewOllamaEmbedder(&OllamaConfig{
			Host:  envOrDefault("OLLAMA_HOST", "http://localhost:11434"),
			Model: envOrDefault("EMBEDDING_MODEL", DefaultOllamaModel),
		})
		return e, dimensionsFromEnv(DefaultOllamaDimensions), nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, 0, fmt.Errorf("embedder: OPENAI_API_KEY is required for the openai embedding provider")
		}
		e := NewOpenAIEmbedder(&OpenAIConfig{
			APIKey: apiKey,
			Model:  envOrDefault("EMBEDDING_MODEL", DefaultOpenAIModel),
		})
		return e, dimensionsFromEnv(DefaultOpenAIDimensions), nil

	case "azure":
		apiKey := os.Getenv("AZURE_OPENAI_API_KEY")
		endpoint := os.Getenv("AZURE_OPENAI_ENDPOINT")
		if apiKey == "" || endpoint == "" {
			return nil, 0, fmt.Errorf("embedder: AZURE_OPENAI_API_KEY and AZURE_OPENAI_ENDPOINT are required for the azure embedding provider")
		}
		e := NewOpenAIEmbedder(&OpenAIConfig{
			APIKey:          apiKey,
			Model:           envOrDefault("EMBEDDING_MODEL", DefaultOpenAIModel),
			AzureEndpoint:   endpoint,
			AzureDeployment: os.Getenv("AZURE_OPENAI_EMBEDDING_DEPLOYMENT"),
			AzureAPIVersion: envOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		})
		return e, dimensionsFromEnv(DefaultOpenAIDimensions), nil

	case "bedrock", "gemini":
		return nil, 0, fmt.Errorf("embedder: provider %q has no embedding backend; set EMBEDDING_PROVIDER to ollama, openai, or azure", provider)

	default:
		return nil, 0, fmt.Errorf("embedder: unknown provider %q; valid values: ollama, openai, azure", provider)
	}
}

func dimensionsFromEnv(fallback uint64) uint64 {
	if v := os.Getenv("EMBEDDING_DIMENSIONS"); v != "" {
		if d, err := strconv.ParseUint(v, 10, 64); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
