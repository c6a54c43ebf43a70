package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// payloadTextKey is the Qdrant payload field holding the chunk text.
const payloadTextKey = "text"

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// VectorSize is the dimensionality of the embeddings stored in
	// collections created by this client.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantClient implements SearchClient and VectorIndex against a Qdrant
// instance. Each ingested file lives in its own collection, so a search
// always targets exactly one collection by name.
type QdrantClient struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this client.
	cfg *QdrantConfig
}

// NewQdrantClient connects to Qdrant and returns a ready-to-use client.
func NewQdrantClient(cfg *QdrantConfig) (*QdrantClient, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantClient{client: client, cfg: cfg}, nil
}

// Search runs a nearest-neighbour query against the named collection and
// returns up to k fragments ordered ascending by distance.
func (c *QdrantClient) Search(ctx context.Context, collection string, queryVector []float32, k int) ([]Fragment, error) {
	limit := uint64(k) //nolint:gosec // k is a small positive config value
	results, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search in %q failed: %w", collection, err)
	}

	fragments := make([]Fragment, 0, len(results))
	for _, r := range results {
		f := Fragment{
			// Qdrant reports cosine similarity (higher = closer); the
			// pipeline ranks by dissimilarity, so invert it here.
			Distance:   1 - r.Score,
			Collection: collection,
		}
		if p := r.Payload; p != nil {
			if v, ok := p[payloadTextKey]; ok {
				f.Text = v.GetStringValue()
			}
		}
		fragments = append(fragments, f)
	}

	return fragments, nil
}

// EnsureCollection creates the named collection if it does not already exist.
func (c *QdrantClient) EnsureCollection(ctx context.Context, name string) error {
	exists, err := c.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     c.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", name, err)
	}

	return nil
}

// DropCollection removes the named collection. Qdrant treats deleting a
// missing collection as a no-op, so this is safe to call unconditionally.
func (c *QdrantClient) DropCollection(ctx context.Context, name string) error {
	if err := c.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("qdrant: failed to drop collection %q: %w", name, err)
	}
	return nil
}

// Upsert stores a batch of chunks with their embeddings into the named
// collection. Point IDs are the chunk indices; callers re-ingesting a file
// must drop the collection first so a shorter version leaves no trailing
// points from the previous one.
func (c *QdrantClient) Upsert(ctx context.Context, collection string, chunks []string, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("qdrant: chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(i)), //nolint:gosec // chunk index is non-negative
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(map[string]any{payloadTextKey: chunk}),
		})
	}

	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert into %q failed: %w", collection, err)
	}

	return nil
}

// Ping calls the Qdrant HealthCheck RPC; used by readiness probes.
func (c *QdrantClient) Ping(ctx context.Context) error {
	if _, err := c.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (c *QdrantClient) Close() error {
	return c.client.Close()
}
