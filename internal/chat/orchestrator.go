// Package chat implements the question pipeline: validate the request,
// retrieve relevant fragments from every requested collection, rank them
// globally, and stream a grounded model answer while keeping the session
// transcript consistent.
package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/cloudwego/eino/components/model"

	"github.com/askdoc/askdoc-go/internal/budget"
	"github.com/askdoc/askdoc-go/internal/logging"
	"github.com/askdoc/askdoc-go/internal/rag"
	"github.com/askdoc/askdoc-go/internal/registry"
	"github.com/askdoc/askdoc-go/internal/session"
)

// Config holds the dependencies required to construct an Orchestrator.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.BaseChatModel

	// Embedder converts the question into a query vector.
	Embedder rag.Embedder

	// Search runs per-collection nearest-neighbour queries.
	Search rag.SearchClient

	// Sessions persists conversation turns. May be nil for stateless use,
	// in which case every question must pass an empty session id.
	Sessions session.Store

	// Registry is the source of truth for valid collection names.
	Registry registry.FileRegistry

	// TopK is the number of fragments kept after the cross-collection
	// merge. Defaults to rag.DefaultTopK if zero.
	TopK int

	// PerCollectionK is the number of fragments requested from each
	// collection. Defaults to rag.DefaultPerCollectionK if zero.
	PerCollectionK int

	// HistoryDepth is the number of prior turns to inject per question.
	// Defaults to 10 if zero.
	HistoryDepth int

	// MaxContextTokens is the estimated token budget for the full model
	// input. History is trimmed oldest-first to fit. Defaults to
	// budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Orchestrator runs the retrieve-rank-generate pipeline for one question at
// a time per call. It is safe for concurrent use; per-session turn ordering
// is delegated to the session store.
type Orchestrator struct {
	chatModel        model.BaseChatModel
	embedder         rag.Embedder
	search           rag.SearchClient
	sessions         session.Store
	registry         registry.FileRegistry
	topK             int
	perCollectionK   int
	historyDepth     int
	maxContextTokens int
}

// New constructs an Orchestrator from the provided Config.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("chat: ChatModel must not be nil")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("chat: Embedder must not be nil")
	}
	if cfg.Search == nil {
		return nil, fmt.Errorf("chat: Search must not be nil")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("chat: Registry must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	perK := cfg.PerCollectionK
	if perK <= 0 {
		perK = rag.DefaultPerCollectionK
	}
	depth := cfg.HistoryDepth
	if depth <= 0 {
		depth = 10
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	return &Orchestrator{
		chatModel:        cfg.ChatModel,
		embedder:         cfg.Embedder,
		search:           cfg.Search,
		sessions:         cfg.Sessions,
		registry:         cfg.Registry,
		topK:             topK,
		perCollectionK:   perK,
		historyDepth:     depth,
		maxContextTokens: maxCtx,
	}, nil
}

// Answer runs the full pipeline for one question and streams the answer text
// to w chunk by chunk.
//
// Validation comes first and costs no external calls: the session must exist
// (unless sessionID is empty, which runs the question statelessly) and every
// requested collection must be registered. The question is embedded once,
// all collections are searched concurrently, and results are merged into a
// single ranked context. The user turn is persisted before generation
// starts, so a failed generation still leaves the question in the
// transcript.
//
// If the model stream fails or the client disconnects mid-answer, the text
// produced so far is persisted as a partial assistant turn and a
// *PartialGenerationError carrying that prefix is returned.
func (o *Orchestrator) Answer(ctx context.Context, sessionID, question string, collections []string, w io.Writer) error {
	log := logging.FromContext(ctx)

	if len(collections) == 0 {
		return ErrNoCollections
	}
	if sessionID != "" {
		if o.sessions == nil {
			return fmt.Errorf("chat: session %q requested but no session store configured", sessionID)
		}
		exists, err := o.sessions.Exists(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("chat: session lookup: %w", err)
		}
		if !exists {
			return ErrSessionNotFound
		}
	}
	for _, name := range collections {
		ok, err := o.registry.Contains(ctx, name)
		if err != nil {
			return fmt.Errorf("chat: registry lookup: %w", err)
		}
		if !ok {
			return &UnknownCollectionError{Name: name}
		}
	}

	vectors, err := o.embedder.Embed(ctx, []string{question})
	if err != nil {
		return fmt.Errorf("%w: embedding failed: %w", ErrRetrievalUnavailable, err)
	}
	queryVector := vectors[0]

	fragments, err := o.retrieve(ctx, queryVector, collections)
	if err != nil {
		return err
	}

	// Load history before persisting the new question so the prompt does
	// not contain it twice.
	var history []session.Turn
	if sessionID != "" {
		history, err = o.sessions.History(ctx, sessionID, o.historyDepth*2)
		if err != nil {
			return fmt.Errorf("chat: load history: %w", err)
		}
	}

	if sessionID != "" {
		if err := o.sessions.Append(ctx, sessionID, session.Turn{Role: session.RoleUser, Content: question}); err != nil {
			return fmt.Errorf("chat: persist question: %w", err)
		}
	}

	messages := buildMessages(fragments, history, question, o.maxContextTokens)
	sr, err := o.chatModel.Stream(ctx, messages)
	if err != nil {
		return fmt.Errorf("chat: stream failed: %w", err)
	}

	answer, streamErr := relay(sr, w)

	if sessionID != "" && answer != "" {
		// Persist even when the request context is already cancelled (the
		// usual cause of a mid-stream failure is a client disconnect).
		persistCtx := context.WithoutCancel(ctx)
		turn := session.Turn{Role: session.RoleAssistant, Content: answer, Partial: streamErr != nil}
		if err := o.sessions.Append(persistCtx, sessionID, turn); err != nil {
			log.Warn("failed to persist assistant turn", slog.Any("error", err))
		}
	}

	if streamErr != nil {
		return &PartialGenerationError{Partial: answer, Err: streamErr}
	}
	return nil
}

// retrieve searches every collection concurrently and merges the results
// into one globally ranked list. A single failing collection degrades
// gracefully with a warning; only when every collection fails is
// ErrRetrievalUnavailable returned.
func (o *Orchestrator) retrieve(ctx context.Context, queryVector []float32, collections []string) ([]rag.Fragment, error) {
	log := logging.FromContext(ctx)

	resultSets := make([][]rag.Fragment, len(collections))
	searchErrs := make([]error, len(collections))

	var wg sync.WaitGroup
	for i, name := range collections {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resultSets[i], searchErrs[i] = o.search.Search(ctx, name, queryVector, o.perCollectionK)
		}()
	}
	wg.Wait()

	failed := 0
	for i, err := range searchErrs {
		if err != nil {
			failed++
			log.Warn("collection search failed, continuing without it",
				slog.String("collection", collections[i]),
				slog.Any("error", err),
			)
		}
	}
	if failed == len(collections) {
		return nil, fmt.Errorf("%w: all %d collection searches failed", ErrRetrievalUnavailable, failed)
	}

	return rag.MergeTopK(resultSets, o.topK), nil
}
