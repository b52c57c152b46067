// Package mcp exposes the document pipeline to MCP clients over stdio, so
// editor assistants can query the indexed corpus directly.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/castellanodev/ragserve/internal/rag"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server exposing question answering and document
// search tools.
type Server struct {
	rag *rag.Service
	mcp *server.MCPServer
}

// NewServer creates the MCP server around a wired pipeline.
func NewServer(svc *rag.Service) *Server {
	s := &Server{rag: svc}

	s.mcp = server.NewMCPServer(
		"ragserve",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(askDocumentsTool, s.handleAskDocuments)
	s.mcp.AddTool(searchDocumentsTool, s.handleSearchDocuments)
}

// Serve starts the MCP server on stdio. Stdout carries MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
