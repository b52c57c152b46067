package vectordb

import "context"

// Store defines the interface for storing and searching documents by embeddings.
// Implementations embed document content through an Embedder; callers never
// handle raw vectors.
type Store interface {
	// Add embeds and writes documents to the store. An embedding failure for
	// any document in the batch fails the whole call; no partial success is
	// reported as success.
	Add(ctx context.Context, docs []Document) error

	// Search embeds the query text and returns up to k records ordered by
	// descending similarity. A non-empty filter restricts results to records
	// whose metadata matches every key/value pair exactly.
	Search(ctx context.Context, query string, k int, filter map[string]string) ([]SearchResult, error)

	// Count returns the total number of documents in the store.
	Count(ctx context.Context) (int, error)
}
