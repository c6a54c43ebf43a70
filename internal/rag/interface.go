// Package rag defines the retrieval capabilities the question pipeline is
// built on: per-collection similarity search, embedding, and cross-collection
// result ranking. Concrete implementations (Qdrant, the HTTP embedders)
// satisfy these interfaces so the orchestrator never depends on a specific
// backend.
package rag

import (
	"context"
)

// Fragment is one retrieved chunk of document text, scored by dissimilarity
// to the query. Fragments are ephemeral — produced per request, never stored.
type Fragment struct {
	// Distance is the dissimilarity score; lower means more relevant.
	Distance float32

	// Text is the raw chunk text.
	Text string

	// Collection names the collection the fragment came from (the ingested
	// file it belongs to).
	Collection string
}

// SearchClient issues a single nearest-neighbour query against one named
// collection. Implementations must be safe to call from multiple goroutines;
// the orchestrator queries all requested collections concurrently.
type SearchClient interface {
	// Search returns up to k fragments from the named collection, ordered
	// ascending by distance.
	Search(ctx context.Context, collection string, queryVector []float32, k int) ([]Fragment, error)
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is the ingestion-side capability: it creates collections and
// stores embedded chunks. The query path never writes through this interface.
type VectorIndex interface {
	// EnsureCollection creates the named collection if it does not exist.
	EnsureCollection(ctx context.Context, name string) error

	// DropCollection removes the named collection and all its points.
	// Dropping a collection that does not exist is not an error.
	DropCollection(ctx context.Context, name string) error

	// Upsert stores a batch of text chunks with their pre-computed
	// embeddings into the named collection. embeddings[i] is the vector
	// for chunks[i].
	Upsert(ctx context.Context, collection string, chunks []string, embeddings [][]float32) error
}
