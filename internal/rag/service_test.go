package rag

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/castellanodev/ragserve/internal/db"
	"github.com/castellanodev/ragserve/internal/llm"
	"github.com/castellanodev/ragserve/internal/loader"
	"github.com/castellanodev/ragserve/internal/memory"
	"github.com/castellanodev/ragserve/internal/vectordb"
)

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

type mockProvider struct {
	response string
	err      error
	lastReq  llm.CompletionRequest
	calls    int
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &llm.CompletionResponse{Content: m.response}, nil
}

func newTestService(t *testing.T, provider *mockProvider) (*Service, *memory.Store) {
	t.Helper()

	store, err := vectordb.NewChromemStore(&mockEmbedder{}, "test_docs")
	if err != nil {
		t.Fatalf("create vector store: %v", err)
	}

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	memVectors, err := vectordb.NewChromemStore(&mockEmbedder{}, "test_memories")
	if err != nil {
		t.Fatalf("create memory vector store: %v", err)
	}
	memories := memory.NewStore(database, memVectors)

	return NewService(store, provider, "mock-model", memories, nil), memories
}

func seedDocuments(t *testing.T, svc *Service, docs ...vectordb.Document) {
	t.Helper()
	if err := svc.store.Add(context.Background(), docs); err != nil {
		t.Fatalf("seed documents: %v", err)
	}
}

func TestAnswerStuffsRetrievedContext(t *testing.T) {
	provider := &mockProvider{response: "The deadline is Friday."}
	svc, _ := newTestService(t, provider)
	seedDocuments(t, svc, vectordb.Document{
		Content:  "the project deadline is friday at noon",
		Metadata: map[string]string{vectordb.MetaSource: "plan.txt"},
	})

	result, err := svc.Answer(context.Background(), Request{Text: "when is the deadline"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.Answer != "The deadline is Friday." {
		t.Errorf("answer = %q", result.Answer)
	}
	if len(result.Sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(result.Sources))
	}

	if len(provider.lastReq.Messages) != 2 {
		t.Fatalf("got %d messages, want system + user", len(provider.lastReq.Messages))
	}
	userMsg := provider.lastReq.Messages[1].Content
	if !strings.Contains(userMsg, "the project deadline is friday at noon") {
		t.Errorf("prompt missing retrieved chunk: %q", userMsg)
	}
	if !strings.Contains(userMsg, "when is the deadline") {
		t.Errorf("prompt missing question: %q", userMsg)
	}
}

func TestAnswerEmptyStoreStillAnswers(t *testing.T) {
	provider := &mockProvider{response: "I don't know."}
	svc, _ := newTestService(t, provider)

	result, err := svc.Answer(context.Background(), Request{Text: "anything"})
	if err != nil {
		t.Fatalf("Answer on empty store: %v", err)
	}
	if len(result.Sources) != 0 {
		t.Errorf("got %d sources, want 0", len(result.Sources))
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}
}

func TestAnswerWritesMemoryAfterSuccess(t *testing.T) {
	provider := &mockProvider{response: "hello back"}
	svc, memories := newTestService(t, provider)

	_, err := svc.Answer(context.Background(), Request{Text: "hello there", UserID: "alice"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	entries, err := memories.All(context.Background(), "alice")
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d memories, want 1", len(entries))
	}
	if entries[0].Text != "User: hello there\nAssistant: hello back" {
		t.Errorf("memory text = %q", entries[0].Text)
	}
}

func TestAnswerDefaultsUser(t *testing.T) {
	provider := &mockProvider{response: "ok"}
	svc, memories := newTestService(t, provider)

	if _, err := svc.Answer(context.Background(), Request{Text: "no user given"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	entries, err := memories.All(context.Background(), DefaultUserID)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d memories under %q, want 1", len(entries), DefaultUserID)
	}
}

func TestAnswerFailedSynthesisLeavesMemoryUntouched(t *testing.T) {
	provider := &mockProvider{err: errors.New("model overloaded")}
	svc, memories := newTestService(t, provider)

	_, err := svc.Answer(context.Background(), Request{Text: "question", UserID: "alice"})
	if err == nil {
		t.Fatal("Answer succeeded, want error")
	}

	count, err := memories.Count(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("memory count = %d after failed synthesis, want 0", count)
	}
}

func TestAnswerRecallsMemoryIntoPrompt(t *testing.T) {
	provider := &mockProvider{response: "remembered"}
	svc, memories := newTestService(t, provider)

	_, err := memories.Add(context.Background(), "alice", "User: my dog is called Rex\nAssistant: noted", nil)
	if err != nil {
		t.Fatalf("Add memory: %v", err)
	}

	_, err = svc.Answer(context.Background(), Request{Text: "what is my dog called", UserID: "alice"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	userMsg := provider.lastReq.Messages[1].Content
	if !strings.Contains(userMsg, "Relevant Memory:") {
		t.Errorf("prompt missing memory block: %q", userMsg)
	}
	if !strings.Contains(userMsg, "my dog is called Rex") {
		t.Errorf("prompt missing recalled memory: %q", userMsg)
	}
}

func TestAnswerEchoesFilters(t *testing.T) {
	provider := &mockProvider{response: "filtered answer"}
	svc, _ := newTestService(t, provider)
	seedDocuments(t, svc,
		vectordb.Document{Content: "chapter one text", Metadata: map[string]string{vectordb.MetaSource: "book.pdf"}},
		vectordb.Document{Content: "unrelated memo", Metadata: map[string]string{vectordb.MetaSource: "memo.txt"}},
	)

	filters := map[string]string{vectordb.MetaSource: "book.pdf"}
	result, err := svc.Answer(context.Background(), Request{Text: "chapter", Filters: filters})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if result.Filters[vectordb.MetaSource] != "book.pdf" {
		t.Errorf("filters not echoed: %v", result.Filters)
	}
	for _, s := range result.Sources {
		if s.Document.Metadata[vectordb.MetaSource] != "book.pdf" {
			t.Errorf("source %q leaked past filter", s.Document.Metadata[vectordb.MetaSource])
		}
	}
}

func TestSourcedTruncatesPreviews(t *testing.T) {
	long := strings.Repeat("x", 500)
	result := &Result{
		Answer: "a",
		Sources: []vectordb.SearchResult{
			{Document: vectordb.Document{Content: long}},
			{Document: vectordb.Document{Content: "short"}},
		},
	}

	sourced := result.Sourced()
	if got := sourced.Sources[0].Content; got != strings.Repeat("x", 200)+"..." {
		t.Errorf("long preview = %d chars %q...", len(got), got[:20])
	}
	if got := sourced.Sources[1].Content; got != "short..." {
		t.Errorf("short preview = %q", got)
	}
}

func TestIngestFile(t *testing.T) {
	provider := &mockProvider{}
	svc, _ := newTestService(t, provider)

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("useful content here. ", 100)), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	count, err := svc.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if count < 2 {
		t.Errorf("chunk count = %d, want at least 2", count)
	}

	stored, err := svc.store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if stored != count {
		t.Errorf("store holds %d documents, reported %d", stored, count)
	}

	results, err := svc.store.Search(context.Background(), "useful content", 1, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Document.Metadata[vectordb.MetaSource] != path {
		t.Errorf("ingested chunk missing source metadata: %+v", results)
	}
}

func TestIngestFileUnsupported(t *testing.T) {
	provider := &mockProvider{}
	svc, _ := newTestService(t, provider)

	path := filepath.Join(t.TempDir(), "image.png")
	if err := os.WriteFile(path, []byte("binary"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := svc.IngestFile(context.Background(), path)
	if !errors.Is(err, loader.ErrUnsupportedType) {
		t.Errorf("error = %v, want ErrUnsupportedType", err)
	}
}
