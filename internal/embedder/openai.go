package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// OpenAIEmbedder implements rag.Embedder against the OpenAI embeddings REST
// API, or an Azure OpenAI deployment when AzureEndpoint is set. Safe for
// concurrent use.
type OpenAIEmbedder struct {
	apiKey string
	model  string
	client *http.Client

	// azureEndpoint, when non-empty, switches the embedder into Azure mode:
	// requests go to the deployment URL and authenticate with the api-key
	// header instead of a bearer token.
	azureEndpoint   string
	azureDeployment string
	azureAPIVersion string
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// APIKey is the OpenAI (or Azure OpenAI) API key.
	APIKey string
	// Model is the embedding model name (e.g. "text-embedding-3-small").
	Model string

	// AzureEndpoint, when set, targets an Azure OpenAI resource instead of
	// api.openai.com (e.g. "https://myresource.openai.azure.com").
	AzureEndpoint string
	// AzureDeployment is the Azure deployment name. Defaults to Model.
	AzureDeployment string
	// AzureAPIVersion is the Azure REST API version query parameter.
	AzureAPIVersion string
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	deployment := cfg.AzureDeployment
	if deployment == "" {
		deployment = cfg.Model
	}
	return &OpenAIEmbedder{
		apiKey:          cfg.APIKey,
		model:           cfg.Model,
		client:          &http.Client{Timeout: 60 * time.Second},
		azureEndpoint:   cfg.AzureEndpoint,
		azureDeployment: deployment,
		azureAPIVersion: cfg.AzureAPIVersion,
	}
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(openAIEmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedder: marshal request: %w", err)
	}

	url := "https://api.openai.com/v1/embeddings"
	if e.azureEndpoint != "" {
		url = fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s",
			e.azureEndpoint, e.azureDeployment, e.azureAPIVersion)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.azureEndpoint != "" {
		req.Header.Set("api-key", e.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("openai embedder: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		return nil, fmt.Errorf("openai embedder: %s", msg)
	}

	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	// The API documents no ordering guarantee, so restore input order by
	// the index field.
	sort.Slice(result.Data, func(i, j int) bool {
		return result.Data[i].Index < result.Data[j].Index
	})

	embeddings := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}
