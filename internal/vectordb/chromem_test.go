package vectordb

import (
	"context"
	"math"
	"testing"
)

// mockEmbedder produces deterministic vectors from character counts so tests
// run without network access. Identical texts get identical vectors.
type mockEmbedder struct{}

func (m *mockEmbedder) Name() string    { return "mock" }
func (m *mockEmbedder) Dimensions() int { return 8 }

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, m.Dimensions())
		for j, r := range text {
			vec[(j+int(r))%len(vec)] += float32(r%13) + 1
		}
		// chromem expects normalized vectors.
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			vec[0] = 1
			norm = 1
		}
		for j := range vec {
			vec[j] = float32(float64(vec[j]) / norm)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(&mockEmbedder{}, "test_documents")
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	return store
}

func TestChromemStoreAddAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	docs := []Document{
		{ID: "a", Content: "payment service architecture"},
		{Content: "generated id document", Metadata: map[string]string{MetaSource: "notes.txt"}},
	}
	if err := store.Add(ctx, docs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("Count = %d, want 2", count)
	}
}

func TestChromemStoreSearchRanksExactMatchFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Add(ctx, []Document{
		{ID: "1", Content: "the quarterly revenue report"},
		{ID: "2", Content: "kubernetes deployment manifests"},
		{ID: "3", Content: "onboarding checklist for new hires"},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := store.Search(ctx, "the quarterly revenue report", 3, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Document.ID != "1" {
		t.Errorf("top result ID = %q, want %q", results[0].Document.ID, "1")
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("results not ordered by similarity: %f before %f", results[i-1].Similarity, results[i].Similarity)
		}
	}
}

func TestChromemStoreSearchClampsK(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Add(ctx, []Document{
		{ID: "1", Content: "alpha"},
		{ID: "2", Content: "beta"},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Requesting more results than stored must not error.
	results, err := store.Search(ctx, "alpha", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestChromemStoreSearchEmptyCollection(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Search(context.Background(), "anything", 5, nil)
	if err != nil {
		t.Fatalf("Search on empty collection: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from empty collection, want 0", len(results))
	}
}

func TestChromemStoreSearchWithFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Add(ctx, []Document{
		{ID: "1", Content: "design doc section one", Metadata: map[string]string{MetaSource: "design.md"}},
		{ID: "2", Content: "design doc section two", Metadata: map[string]string{MetaSource: "design.md"}},
		{ID: "3", Content: "meeting notes from friday", Metadata: map[string]string{MetaSource: "notes.txt"}},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := store.Search(ctx, "design", 3, map[string]string{MetaSource: "design.md"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Document.Metadata[MetaSource] != "design.md" {
			t.Errorf("result %s has source %q, want design.md", r.Document.ID, r.Document.Metadata[MetaSource])
		}
	}
}

func TestSearchSQL(t *testing.T) {
	unfiltered := searchSQL("documents", false)
	if want := "SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity FROM documents ORDER BY embedding <=> $1 LIMIT $2"; unfiltered != want {
		t.Errorf("searchSQL unfiltered = %q, want %q", unfiltered, want)
	}

	filtered := searchSQL("documents", true)
	if want := "SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity FROM documents WHERE metadata @> $3 ORDER BY embedding <=> $1 LIMIT $2"; filtered != want {
		t.Errorf("searchSQL filtered = %q, want %q", filtered, want)
	}
}
