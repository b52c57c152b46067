// Package rag orchestrates the question answering pipeline: recall the
// user's conversation memory, retrieve matching document chunks, synthesize
// one answer with the LLM, then record the exchange back into memory.
package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/castellanodev/ragserve/internal/llm"
	"github.com/castellanodev/ragserve/internal/loader"
	"github.com/castellanodev/ragserve/internal/memory"
	"github.com/castellanodev/ragserve/internal/splitter"
	"github.com/castellanodev/ragserve/internal/vectordb"
)

const (
	// retrievalK bounds document chunks pulled into the prompt.
	retrievalK = 5
	// memoryK bounds recalled memories per question.
	memoryK = 5
)

// Service runs ingestion and question answering over one vector store.
// The memory store is optional; without it the pipeline skips recall and
// write-back but still answers.
type Service struct {
	store    vectordb.Store
	provider llm.Provider
	model    string
	memories *memory.Store
	splitter *splitter.Splitter
	logger   *slog.Logger
}

// NewService wires the pipeline. memories may be nil.
func NewService(store vectordb.Store, provider llm.Provider, model string, memories *memory.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		provider: provider,
		model:    model,
		memories: memories,
		splitter: splitter.New(splitter.DefaultChunkSize, splitter.DefaultChunkOverlap),
		logger:   logger,
	}
}

// IngestFile loads, chunks, embeds and indexes one file. It returns the
// number of chunks written; zero with a nil error means the file parsed but
// contained no usable text.
func (s *Service) IngestFile(ctx context.Context, path string) (int, error) {
	docs, err := loader.Load(path)
	if err != nil {
		return 0, err
	}

	chunks := s.splitter.SplitDocuments(docs)
	if len(chunks) == 0 {
		return 0, nil
	}

	vdocs := make([]vectordb.Document, 0, len(chunks))
	for _, chunk := range chunks {
		vdocs = append(vdocs, vectordb.Document{
			Content:  chunk.Content,
			Metadata: chunk.Metadata,
		})
	}
	if err := s.store.Add(ctx, vdocs); err != nil {
		return 0, fmt.Errorf("index %s: %w", path, err)
	}

	s.logger.Info("ingested file", "path", path, "chunks", len(vdocs))
	return len(vdocs), nil
}

// Retrieve searches the document index directly without synthesis or
// memory involvement.
func (s *Service) Retrieve(ctx context.Context, query string, k int, filter map[string]string) ([]vectordb.SearchResult, error) {
	if k <= 0 {
		k = retrievalK
	}
	return s.store.Search(ctx, query, k, filter)
}

// Answer runs the full pipeline for one question. Memory recall failures
// degrade to answering without memory; a synthesis failure returns an error
// and leaves memory untouched. The write-back after a successful answer is
// best effort.
func (s *Service) Answer(ctx context.Context, req Request) (*Result, error) {
	userID := req.UserID
	if userID == "" {
		userID = DefaultUserID
	}

	var memories []memory.Entry
	if s.memories != nil {
		entries, err := s.memories.Search(ctx, userID, req.Text, memoryK)
		if err != nil {
			s.logger.Warn("memory recall failed, continuing without", "user", userID, "error", err)
		} else {
			memories = entries
		}
	}

	sources, err := s.store.Search(ctx, req.Text, retrievalK, req.Filters)
	if err != nil {
		return nil, fmt.Errorf("retrieve documents: %w", err)
	}

	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: buildUserPrompt(req.Text, memories, sources)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}

	if s.memories != nil {
		exchange := "User: " + req.Text + "\nAssistant: " + resp.Content
		if _, err := s.memories.Add(ctx, userID, exchange, nil); err != nil {
			s.logger.Warn("memory write-back failed", "user", userID, "error", err)
		}
	}

	return &Result{
		Query:   req.Text,
		Answer:  resp.Content,
		Sources: sources,
		Filters: req.Filters,
	}, nil
}
