// Package app provides application initialization and dependency wiring.
//
// Setup builds the full pipeline from configuration: search provider,
// crawler, chunker, model client, durable store and session manager, and
// hands back a container the CLI drives.
package app

import (
	"context"
	"fmt"

	"github.com/jiho-dev/askweb/db"
	"github.com/jiho-dev/askweb/internal/acquire"
	"github.com/jiho-dev/askweb/internal/chunk"
	"github.com/jiho-dev/askweb/internal/config"
	"github.com/jiho-dev/askweb/internal/crawl"
	"github.com/jiho-dev/askweb/internal/llm"
	"github.com/jiho-dev/askweb/internal/log"
	"github.com/jiho-dev/askweb/internal/pipeline"
	"github.com/jiho-dev/askweb/internal/query"
	"github.com/jiho-dev/askweb/internal/session"
	"github.com/jiho-dev/askweb/internal/store"
	"github.com/jiho-dev/askweb/internal/websearch"
)

// App is the application container.
type App struct {
	Config       *config.Config
	Logger       log.Logger
	LLM          *llm.Client
	Store        store.Store // nil when no durable backend is configured
	Sessions     *session.Manager
	Orchestrator *pipeline.Orchestrator
}

// Setup validates configuration and wires every component.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.ValidateLLM(); err != nil {
		return nil, err
	}

	client, err := llm.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize models: %w", err)
	}

	provider, err := websearch.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	fetcher := crawl.NewCollyFetcher(cfg.CrawlTimeout(), logger)
	crawler := crawl.NewCrawler(fetcher, cfg, logger)
	acquirer := acquire.New(provider, crawler, cfg, logger)

	var summarizer chunk.Summarizer
	if cfg.ChunkingStrategy == config.ChunkingContextual {
		summarizer = client
	}
	chunker := chunk.New(client, summarizer, cfg.ChunkSize, cfg.ChunkOverlap,
		cfg.ChunkingStrategy == config.ChunkingContextual, logger)

	durable, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(durable, cfg.SessionIdleTimeout, logger)

	orchestrator := pipeline.New(pipeline.Deps{
		Expander:  query.NewExpander(cfg.Languages, logger),
		Acquirer:  acquirer,
		Chunker:   chunker,
		Embedder:  client,
		Generator: client,
		Scorer:    client,
		Fallback:  llm.TermOverlapScorer{},
	}, cfg, logger)

	logger.Info("application ready",
		"search_provider", provider.Name(),
		"chunking", cfg.ChunkingStrategy,
		"durable_store", cfg.DurableStore)

	return &App{
		Config:       cfg,
		Logger:       logger,
		LLM:          client,
		Store:        durable,
		Sessions:     sessions,
		Orchestrator: orchestrator,
	}, nil
}

// openStore connects the configured durable backend, running migrations
// for Postgres. The none backend returns a nil store.
func openStore(ctx context.Context, cfg *config.Config, logger log.Logger) (store.Store, error) {
	switch cfg.DurableStore {
	case config.StoreNone:
		return nil, nil
	case config.StorePostgres:
		if err := db.Migrate(cfg.PostgresURL()); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		return store.NewPostgres(ctx, cfg.PostgresURL(), logger)
	case config.StoreQdrant:
		return store.NewQdrant(ctx, cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, logger)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidDurableStore, cfg.DurableStore)
	}
}

// Close releases backend resources.
func (a *App) Close() error {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			return fmt.Errorf("close durable store: %w", err)
		}
	}
	return nil
}
