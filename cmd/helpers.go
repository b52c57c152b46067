package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/castellanodev/ragserve/internal/config"
	"github.com/castellanodev/ragserve/internal/db"
	"github.com/castellanodev/ragserve/internal/embeddings"
	"github.com/castellanodev/ragserve/internal/finalize"
	"github.com/castellanodev/ragserve/internal/llm"
	"github.com/castellanodev/ragserve/internal/memory"
	"github.com/castellanodev/ragserve/internal/rag"
	"github.com/castellanodev/ragserve/internal/server"
	"github.com/castellanodev/ragserve/internal/vectordb"
	"github.com/castellanodev/ragserve/internal/websearch"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `ragserve init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}

	switch provider {
	case config.ProviderGoogle:
		apiKey := config.GoogleAPIKey()
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required for Google embeddings")
		}
		return embeddings.NewGoogleEmbedder(apiKey, embeddings.GoogleModel(cfg.EmbeddingModel)), nil
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.EmbeddingModel)), nil
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(cfg.EmbeddingModel, 768, ""), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}

// createLLMProviderFromConfig creates an LLM provider based on config settings.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	return llm.NewProvider(string(cfg.Provider), cfg.Model)
}

// newVectorStore creates the vector store named by the config for the given
// collection. The pgvector backend returns a cleanup function closing its
// connection pool; chromem needs no cleanup.
func newVectorStore(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder, collection string) (vectordb.Store, func(), error) {
	switch cfg.VectorBackend {
	case config.BackendPGVector:
		store, err := vectordb.NewPGVectorStore(ctx, cfg.Postgres.ConnString(), embedder, collection)
		if err != nil {
			return nil, nil, fmt.Errorf("creating pgvector store: %w", err)
		}
		return store, store.Close, nil
	default:
		store, err := vectordb.NewPersistentChromemStore(filepath.Join(cfg.DataDir, "vectordb"), embedder, collection)
		if err != nil {
			return nil, nil, fmt.Errorf("creating chromem store: %w", err)
		}
		return store, func() {}, nil
	}
}

// pipeline bundles the wired subsystems shared by the server and mcp commands.
type pipeline struct {
	rag       *rag.Service
	finalizer *finalize.Finalizer
	cleanup   func()
}

// buildPipeline wires embedder, vector stores, database, memory, RAG
// service and finalizer from the config.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}

	docStore, docCleanup, err := newVectorStore(ctx, cfg, embedder, "documents")
	if err != nil {
		return nil, err
	}
	memVectors, memCleanup, err := newVectorStore(ctx, cfg, embedder, "memories")
	if err != nil {
		docCleanup()
		return nil, err
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, "ragserve.db"))
	if err != nil {
		docCleanup()
		memCleanup()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	memories := memory.NewStore(database, memVectors)
	svc := rag.NewService(docStore, provider, cfg.Model, memories, logger)
	fin := finalize.New(memories, provider, cfg.Model, cfg.ReportLanguage, logger)

	return &pipeline{
		rag:       svc,
		finalizer: fin,
		cleanup: func() {
			database.Close()
			memCleanup()
			docCleanup()
		},
	}, nil
}

// buildServerOptions assembles the HTTP handler wiring. A pipeline build
// failure (missing API key, unreachable database) disables ingestion, chat,
// query and finalization instead of aborting: the server still starts and
// the affected endpoints answer 503 until a restart with the cause fixed.
func buildServerOptions(ctx context.Context, cfg *config.Config, logger *slog.Logger) (server.Options, func()) {
	opts := server.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	}
	cleanup := func() {}

	pipe, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Error("pipeline initialization failed, starting degraded", "error", err)
	} else {
		opts.RAG = pipe.rag
		opts.Finalizer = pipe.finalizer
		cleanup = pipe.cleanup
	}

	// nil when TAVILY_API_KEY is unset; /search then answers 503.
	search := websearch.NewClient(os.Getenv("TAVILY_API_KEY"))
	if search == nil {
		logger.Warn("TAVILY_API_KEY not set, web search disabled")
	}
	opts.WebSearch = search

	return opts, cleanup
}
