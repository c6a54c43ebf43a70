// Package ingestion implements the document ingestion pipeline. It reads
// local files, chunks the content, embeds each chunk, and upserts the
// results into the vector index. Each file gets its own collection named
// after the file, and the file is recorded in the registry so questions can
// target it. This pipeline is invoked by the `askdoc ingest` CLI command.
package ingestion

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/askdoc/askdoc-go/internal/rag"
	"github.com/askdoc/askdoc-go/internal/registry"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per document chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters to overlap between consecutive chunks.
	// Defaults to 100 if zero.
	ChunkOverlap int

	// Force re-ingests files even when their content hash is unchanged.
	Force bool
}

// Pipeline orchestrates the read → chunk → embed → upsert → register flow
// for a set of local files.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// index persists the embedded chunks, one collection per file.
	index rag.VectorIndex

	// registry records ingested files and their content hashes.
	registry registry.FileRegistry

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, index rag.VectorIndex, reg registry.FileRegistry, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("ingestion: registry must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}

	return &Pipeline{
		embedder: embedder,
		index:    index,
		registry: reg,
		cfg:      cfg,
	}, nil
}

// Ingest reads, chunks, embeds, stores, and registers all provided file
// paths. Files whose content hash matches the registry are skipped unless
// Force is set. Files are processed sequentially and the first error stops
// the run. Progress is reported via the optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, paths []string, progress func(msg string)) error {
	if progress == nil {
		progress = func(string) {}
	}

	for _, path := range paths {
		name := filepath.Base(path)

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("ingestion: read %s: %w", path, err)
		}
		hash := fmt.Sprintf("%x", sha256.Sum256(content))

		stored, err := p.registry.Hash(ctx, name)
		if err != nil {
			return fmt.Errorf("ingestion: registry lookup for %s: %w", name, err)
		}
		if !p.cfg.Force && stored == hash {
			progress(fmt.Sprintf("skipping %s (unchanged)", name))
			continue
		}

		chunks := p.chunk(string(content))
		if len(chunks) == 0 {
			progress(fmt.Sprintf("skipping %s (empty)", name))
			continue
		}
		progress(fmt.Sprintf("chunked %s into %d chunks", name, len(chunks)))

		embeddings, err := p.embedder.Embed(ctx, chunks)
		if err != nil {
			return fmt.Errorf("ingestion: embedding failed for %s: %w", name, err)
		}

		// A previous version of the file may have produced more chunks than
		// this one; dropping the collection clears them before re-populating.
		if stored != "" {
			if err := p.index.DropCollection(ctx, name); err != nil {
				return fmt.Errorf("ingestion: drop stale collection for %s: %w", name, err)
			}
		}
		if err := p.index.EnsureCollection(ctx, name); err != nil {
			return fmt.Errorf("ingestion: ensure collection for %s: %w", name, err)
		}
		if err := p.index.Upsert(ctx, name, chunks, embeddings); err != nil {
			return fmt.Errorf("ingestion: upsert failed for %s: %w", name, err)
		}

		// Register last, so a failed upsert never leaves a queryable name
		// with no vectors behind it.
		if err := p.registry.Register(ctx, name, hash); err != nil {
			return fmt.Errorf("ingestion: register %s: %w", name, err)
		}

		progress(fmt.Sprintf("ingested %d chunks from %s", len(chunks), name))
	}

	return nil
}

// chunk splits text into overlapping chunks of cfg.ChunkSize characters.
// Windows advance on rune boundaries so multi-byte characters are never
// split across chunks.
func (p *Pipeline) chunk(text string) []string {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}

	var chunks []string
	runes := []rune(text)
	size := p.cfg.ChunkSize
	overlap := p.cfg.ChunkOverlap

	for start := 0; start < len(runes); start += size - overlap {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}
