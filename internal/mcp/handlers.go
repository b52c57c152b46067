package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/castellanodev/ragserve/internal/rag"
	"github.com/castellanodev/ragserve/internal/vectordb"
)

func (s *Server) handleAskDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}

	result, err := s.rag.Answer(ctx, rag.Request{
		Text:   question,
		UserID: request.GetString("user_id", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to answer: %v", err)), nil
	}

	return mcp.NewToolResultText(result.Plain()), nil
}

func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	var filter map[string]string
	if source := request.GetString("source", ""); source != "" {
		filter = map[string]string{vectordb.MetaSource: source}
	}

	results, err := s.rag.Retrieve(ctx, query, limit, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No results found. Ingest documents first with `ragserve ingest` or POST /ingest."), nil
	}

	return mcp.NewToolResultText(formatSearchResults(results)), nil
}

func formatSearchResults(results []vectordb.SearchResult) string {
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "## Result %d (similarity %.2f)\n", i+1, r.Similarity)
		if source := r.Document.Metadata[vectordb.MetaSource]; source != "" {
			fmt.Fprintf(&sb, "Source: %s\n", source)
		}
		sb.WriteString(r.Document.Content)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}
