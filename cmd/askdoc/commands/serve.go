package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/askdoc/askdoc-go/internal/chat"
	"github.com/askdoc/askdoc-go/internal/logging"
	"github.com/askdoc/askdoc-go/internal/provider"
	"github.com/askdoc/askdoc-go/internal/server"
	"github.com/askdoc/askdoc-go/internal/tracing"
)

// NewServeCmd constructs the `askdoc serve` command, which starts the HTTP
// server exposing the question answering API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the askdoc HTTP server",
		Long: `Start the askdoc HTTP server on localhost.

The server exposes a REST/SSE API: create sessions, ask questions against
ingested files, list files, and probe health/readiness.

Examples:
  askdoc serve
  askdoc serve --port 9090
  MODEL_PROVIDER=openai askdoc serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			emb, dims, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			qdrant, err := buildQdrant(dims)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer qdrant.Close()

			sessions, err := openSessions()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer sessions.Close()

			reg, err := openRegistry()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
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
				return fmt.Errorf("serve: failed to initialise pipeline: %w", err)
			}

			srv, err := server.New(orchestrator, sessions, reg, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: buildPingers(providerCfg, qdrant, sessions, reg),
				APIKey:  os.Getenv("ASKDOC_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
