// Package server exposes the HTTP API. Each subsystem is optional: a
// handler whose subsystem was not initialized answers 503 instead of
// panicking, so the server stays useful when, say, only ingestion is
// configured.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/castellanodev/ragserve/internal/finalize"
	"github.com/castellanodev/ragserve/internal/rag"
	"github.com/castellanodev/ragserve/internal/websearch"
)

// Options carries the wired subsystems. Nil fields disable the matching
// endpoints with a 503.
type Options struct {
	RAG            *rag.Service
	Finalizer      *finalize.Finalizer
	WebSearch      *websearch.Client
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server is the HTTP API over the RAG pipeline.
type Server struct {
	router    *chi.Mux
	logger    *slog.Logger
	rag       *rag.Service
	finalizer *finalize.Finalizer
	search    *websearch.Client
	upgrader  websocket.Upgrader
}

// New builds the server and mounts all routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger,
		rag:       opts.RAG,
		finalizer: opts.Finalizer,
		search:    opts.WebSearch,
		upgrader: websocket.Upgrader{
			// Origin checking is handled by the CORS layer for the REST
			// endpoints; the socket accepts the same origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	}))

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/healthz", s.handleHealth())
		r.Post("/ingest", s.handleIngest())
		r.Post("/search", s.handleSearch())
		r.Post("/chat", s.handleChat())
		r.Post("/api/query", s.handleQuery())
		r.Post("/finalize", s.handleFinalize())
	})

	// The websocket stays outside the timeout group; sessions are long-lived.
	s.router.Get("/ws", s.handleWebSocket())

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
