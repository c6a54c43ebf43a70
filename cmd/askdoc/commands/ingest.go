package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/askdoc/askdoc-go/internal/ingestion"
	"github.com/askdoc/askdoc-go/internal/logging"
)

// NewIngestCmd constructs the `askdoc ingest` command, which chunks and
// embeds local files into per-file vector collections.
func NewIngestCmd() *cobra.Command {
	var chunkSize int
	var chunkOverlap int
	var force bool

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest local files into the vector index",
		Long: `Read, chunk, and embed local files into the Qdrant vector index.

Each file gets its own collection named after the file, and is recorded in
the registry so questions can target it. Files whose content is unchanged
since the last ingest are skipped unless --force is set.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure (default: MODEL_PROVIDER)
  EMBEDDING_MODEL      Embedding model name (default: all-minilm)

Examples:
  askdoc ingest report.pdf
  askdoc ingest docs/*.md
  askdoc ingest --force --chunk-size 500 notes.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			emb, dims, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			qdrant, err := buildQdrant(dims)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer qdrant.Close()
			log.Info("qdrant ready", slog.Uint64("vector_size", dims))

			reg, err := openRegistry()
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer reg.Close()

			pipeline, err := ingestion.NewPipeline(emb, qdrant, reg, &ingestion.Config{
				ChunkSize:    chunkSize,
				ChunkOverlap: chunkOverlap,
				Force:        force,
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			log.Info("starting ingestion", slog.Int("files", len(args)))

			if err := pipeline.Ingest(ctx, args, func(msg string) {
				log.Info(msg)
			}); err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			log.Info("ingestion complete", slog.Int("files", len(args)))
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 1000, "Maximum characters per chunk")
	cmd.Flags().IntVar(&chunkOverlap, "overlap", 100, "Characters of overlap between consecutive chunks")
	cmd.Flags().BoolVar(&force, "force", false, "Re-ingest files even when their content is unchanged")

	return cmd
}
