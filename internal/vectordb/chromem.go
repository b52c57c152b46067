package vectordb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/castellanodev/ragserve/internal/embeddings"
)

// ChromemStore implements Store using chromem-go, an embedded pure-Go
// vector database. The persistent variant writes gob files under a
// directory so the index survives restarts without an external service.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
}

// NewChromemStore creates an in-memory chromem store. Used in tests and
// throwaway sessions; data is lost on exit.
func NewChromemStore(embedder embeddings.Embedder, collection string) (*ChromemStore, error) {
	db := chromem.NewDB()
	return newChromemStore(db, embedder, collection)
}

// NewPersistentChromemStore creates a chromem store backed by files under path.
func NewPersistentChromemStore(path string, embedder embeddings.Embedder, collection string) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, true)
	if err != nil {
		return nil, fmt.Errorf("open chromem db at %s: %w", path, err)
	}
	return newChromemStore(db, embedder, collection)
}

func newChromemStore(db *chromem.DB, embedder embeddings.Embedder, collection string) (*ChromemStore, error) {
	col, err := db.GetOrCreateCollection(collection, nil, embeddings.ToChromemFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("get or create collection %s: %w", collection, err)
	}
	return &ChromemStore{db: db, collection: col, embedder: embedder}, nil
}

func (s *ChromemStore) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	chromemDocs := make([]chromem.Document, 0, len(docs))
	for _, doc := range docs {
		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}
		meta := make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		chromemDocs = append(chromemDocs, chromem.Document{
			ID:       id,
			Content:  doc.Content,
			Metadata: meta,
		})
	}

	if err := s.collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, query string, k int, filter map[string]string) ([]SearchResult, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	// chromem rejects result limits above the collection size.
	if k > count {
		k = count
	}
	if k <= 0 {
		return nil, nil
	}

	var where map[string]string
	if len(filter) > 0 {
		where = filter
	}

	results, err := s.collection.Query(ctx, query, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	searchResults := make([]SearchResult, 0, len(results))
	for _, r := range results {
		searchResults = append(searchResults, SearchResult{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: r.Metadata,
			},
			Similarity: r.Similarity,
		})
	}
	return searchResults, nil
}

func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}
