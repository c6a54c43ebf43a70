package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/askdoc/askdoc-go/internal/chat"
	"github.com/askdoc/askdoc-go/internal/logging"
	"github.com/askdoc/askdoc-go/internal/provider"
)

// NewAskCmd constructs the `askdoc ask` command, which answers a single
// question against the named files and streams the response to stdout.
func NewAskCmd() *cobra.Command {
	var files []string
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about your ingested documents",
		Long: `Ask a natural language question about one or more ingested files.

The answer is grounded in the most relevant passages retrieved from the
selected files and streams to stdout as it is generated. Pass --session to
continue an existing conversation; without it the question runs statelessly.

Examples:
  askdoc ask --file report.pdf "what were the quarterly findings?"
  askdoc ask --file a.md --file b.md "how do these two designs differ?"
  askdoc ask --session 4f7c... --file report.pdf "and the year before that?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if len(files) == 0 {
				return fmt.Errorf("ask: at least one --file is required")
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			emb, dims, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			qdrant, err := buildQdrant(dims)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer qdrant.Close()

			sessions, err := openSessions()
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer sessions.Close()

			reg, err := openRegistry()
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer reg.Close()

			orchestrator, err := chat.New(&chat.Config{
				ChatModel:      chatModel,
				Embedder:       emb,
				Search:         qdrant,
				Sessions:       sessions,
				Registry:       reg,
				TopK:           getEnvInt("ASKDOC_TOP_K", 0),
				PerCollectionK: getEnvInt("ASKDOC_PER_COLLECTION_K", 0),
			})
			if err != nil {
				return fmt.Errorf("ask: failed to initialise pipeline: %w", err)
			}

			if err := orchestrator.Answer(ctx, sessionID, args[0], files, os.Stdout); err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Ingested file to search (repeatable)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session id to continue a conversation")

	return cmd
}
