package rag

import "github.com/castellanodev/ragserve/internal/vectordb"

// DefaultUserID scopes memory for requests that do not name a user.
const DefaultUserID = "default_user"

// Mode selects the retrieval strategy. Only hybrid is implemented; the
// other values are accepted and currently behave the same so clients can
// send them without breaking when dedicated strategies land.
type Mode string

const (
	ModeHybrid Mode = "hybrid"
	ModeLocal  Mode = "local"
	ModeGlobal Mode = "global"
	ModeNaive  Mode = "naive"
)

// Request is a question for the pipeline.
type Request struct {
	Text    string            `json:"text"`
	Mode    Mode              `json:"mode,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
	UserID  string            `json:"user_id,omitempty"`
}

// Result is a synthesized answer plus the retrieval evidence behind it.
type Result struct {
	Query   string
	Answer  string
	Sources []vectordb.SearchResult
	Filters map[string]string
}

// sourcePreviewLen bounds how much chunk content is echoed back per source.
const sourcePreviewLen = 200

// SourcePreview is a truncated view of a retrieved chunk.
type SourcePreview struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// SourcedResponse is the structured answer shape: the echoed query, source
// previews, and the filters that were applied during retrieval.
type SourcedResponse struct {
	Query   string            `json:"query"`
	Answer  string            `json:"answer"`
	Sources []SourcePreview   `json:"sources"`
	Filters map[string]string `json:"filters"`
}

// Plain returns just the answer text.
func (r *Result) Plain() string {
	return r.Answer
}

// Sourced builds the structured response. Source content is cut to a
// fixed-length preview with a trailing ellipsis.
func (r *Result) Sourced() SourcedResponse {
	sources := make([]SourcePreview, 0, len(r.Sources))
	for _, s := range r.Sources {
		sources = append(sources, SourcePreview{
			Content:  preview(s.Document.Content),
			Metadata: s.Document.Metadata,
		})
	}
	return SourcedResponse{
		Query:   r.Query,
		Answer:  r.Answer,
		Sources: sources,
		Filters: r.Filters,
	}
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) > sourcePreviewLen {
		runes = runes[:sourcePreviewLen]
	}
	return string(runes) + "..."
}
