package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/castellanodev/ragserve/internal/finalize"
	"github.com/castellanodev/ragserve/internal/loader"
	"github.com/castellanodev/ragserve/internal/rag"
	"github.com/castellanodev/ragserve/internal/websearch"
)

// maxUploadSize bounds multipart uploads (64 MiB).
const maxUploadSize = 64 << 20

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"rag":        s.rag != nil,
			"finalizer":  s.finalizer != nil,
			"web_search": s.search != nil,
		})
	}
}

type ingestResponse struct {
	Message     string `json:"message"`
	Filename    string `json:"filename"`
	ChunksAdded int    `json:"chunks_added"`
}

func (s *Server) handleIngest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rag == nil {
			s.writeError(w, http.StatusServiceUnavailable, "document ingestion is not initialized")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		file, header, err := r.FormFile("file")
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "multipart form must include a \"file\" field")
			return
		}
		defer file.Close()

		if !loader.Allowed(header.Filename) {
			s.writeError(w, http.StatusBadRequest, "file type not allowed: "+filepath.Ext(header.Filename))
			return
		}

		// The upload is staged to a temp file so the parsers can work on a
		// path; it is removed on every path out of this handler.
		tmp, err := os.CreateTemp("", "ragserve-upload-*"+filepath.Ext(header.Filename))
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to stage upload")
			return
		}
		tmpPath := tmp.Name()
		defer os.Remove(tmpPath)

		if _, err := io.Copy(tmp, file); err != nil {
			tmp.Close()
			s.writeError(w, http.StatusInternalServerError, "failed to stage upload")
			return
		}
		if err := tmp.Close(); err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to stage upload")
			return
		}

		chunks, err := s.rag.IngestFile(r.Context(), tmpPath)
		if err != nil {
			// Formats on the upload allow-list without a parser (images,
			// presentations, legacy .doc) land here too.
			s.logger.Error("ingest failed", "filename", header.Filename, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to ingest file: "+err.Error())
			return
		}

		message := "file ingested successfully"
		if chunks == 0 {
			message = "file contained no extractable text"
		}
		s.writeJSON(w, http.StatusOK, ingestResponse{
			Message:     message,
			Filename:    header.Filename,
			ChunksAdded: chunks,
		})
	}
}

type searchRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

func (s *Server) handleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.search == nil {
			s.writeError(w, http.StatusServiceUnavailable, "web search is not configured")
			return
		}

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
			s.writeError(w, http.StatusBadRequest, "body must be JSON with a non-empty \"query\"")
			return
		}

		resp, err := s.search.Search(r.Context(), req.Query, websearch.Options{
			MaxResults:  req.MaxResults,
			SearchDepth: req.SearchDepth,
		})
		if err != nil {
			s.logger.Error("web search failed", "error", err)
			s.writeError(w, http.StatusInternalServerError, "web search failed: "+err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) decodeAnswerRequest(w http.ResponseWriter, r *http.Request) (rag.Request, bool) {
	var req rag.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "body must be JSON with a non-empty \"text\"")
		return rag.Request{}, false
	}
	return req, true
}

func (s *Server) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rag == nil {
			s.writeError(w, http.StatusServiceUnavailable, "chat is not initialized")
			return
		}

		req, ok := s.decodeAnswerRequest(w, r)
		if !ok {
			return
		}

		result, err := s.rag.Answer(r.Context(), req)
		if err != nil {
			s.logger.Error("chat failed", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to answer: "+err.Error())
			return
		}
		// Plain mode is the bare answer string, JSON-encoded.
		s.writeJSON(w, http.StatusOK, result.Plain())
	}
}

func (s *Server) handleQuery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rag == nil {
			s.writeError(w, http.StatusServiceUnavailable, "query is not initialized")
			return
		}

		req, ok := s.decodeAnswerRequest(w, r)
		if !ok {
			return
		}

		result, err := s.rag.Answer(r.Context(), req)
		if err != nil {
			s.logger.Error("query failed", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to answer: "+err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, result.Sourced())
	}
}

func (s *Server) handleFinalize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.finalizer == nil {
			s.writeError(w, http.StatusServiceUnavailable, "finalization is not initialized")
			return
		}

		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			userID = rag.DefaultUserID
		}

		report, err := s.finalizer.Summarize(r.Context(), userID)
		if err != nil {
			if errors.Is(err, finalize.ErrNoMemories) {
				s.writeError(w, http.StatusNotFound, err.Error())
				return
			}
			s.logger.Error("finalize failed", "user", userID, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to generate report: "+err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, report)
	}
}
