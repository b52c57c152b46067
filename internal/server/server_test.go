package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/castellanodev/ragserve/internal/db"
	"github.com/castellanodev/ragserve/internal/finalize"
	"github.com/castellanodev/ragserve/internal/llm"
	"github.com/castellanodev/ragserve/internal/memory"
	"github.com/castellanodev/ragserve/internal/rag"
	"github.com/castellanodev/ragserve/internal/vectordb"
)

type mockEmbedder struct{}

func (m *mockEmbedder) Name() string    { return "mock" }
func (m *mockEmbedder) Dimensions() int { return 4 }

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, m.Dimensions())
		for j, r := range text {
			vec[(j+int(r))%len(vec)] += float32(r%7) + 1
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
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llm.CompletionResponse{Content: m.response}, nil
}

func newTestServer(t *testing.T, provider llm.Provider) *Server {
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

	svc := rag.NewService(store, provider, "mock-model", memories, nil)
	fin := finalize.New(memories, provider, "mock-model", "Spanish", nil)

	return New(Options{RAG: svc, Finalizer: fin})
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &mockProvider{response: "ok"})
	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["rag"] != true || body["web_search"] != false {
		t.Errorf("subsystem flags wrong: %v", body)
	}
}

func TestUninitializedSubsystems503(t *testing.T) {
	srv := New(Options{})

	cases := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/ingest", nil},
		{http.MethodPost, "/chat", map[string]string{"text": "hi"}},
		{http.MethodPost, "/api/query", map[string]string{"text": "hi"}},
		{http.MethodPost, "/search", map[string]string{"query": "hi"}},
		{http.MethodPost, "/finalize", nil},
	}
	for _, c := range cases {
		rec := doJSON(t, srv, c.method, c.path, c.body)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s status = %d, want 503", c.method, c.path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "error") {
			t.Errorf("%s %s body = %q, want error payload", c.method, c.path, rec.Body.String())
		}
	}
}

func TestChat(t *testing.T) {
	srv := newTestServer(t, &mockProvider{response: "the answer"})

	rec := doJSON(t, srv, http.MethodPost, "/chat", map[string]string{"text": "question"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	// Plain mode is just the answer string, not an envelope object.
	var body string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body != "the answer" {
		t.Errorf("body = %q, want bare answer string", body)
	}
}

func TestChatBadRequest(t *testing.T) {
	srv := newTestServer(t, &mockProvider{response: "x"})

	rec := doJSON(t, srv, http.MethodPost, "/chat", map[string]string{"text": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty text status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("not json"))
	rec2 := httptest.NewRecorder()
	srv.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON status = %d, want 400", rec2.Code)
	}
}

func TestChatSynthesisFailure500(t *testing.T) {
	srv := newTestServer(t, &mockProvider{err: errors.New("model overloaded")})

	rec := doJSON(t, srv, http.MethodPost, "/chat", map[string]string{"text": "question"})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestQueryReturnsSourcesAndFilters(t *testing.T) {
	srv := newTestServer(t, &mockProvider{response: "answer"})

	// Seed a document through the ingest endpoint.
	uploadFile(t, srv, "notes.txt", "the launch happens in june and everyone is invited")

	rec := doJSON(t, srv, http.MethodPost, "/api/query", map[string]any{
		"text":    "when is the launch",
		"filters": map[string]string{"chunk": "0"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var body rag.SourcedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Answer != "answer" {
		t.Errorf("answer = %q", body.Answer)
	}
	if body.Query != "when is the launch" {
		t.Errorf("query not echoed: %q", body.Query)
	}
	if len(body.Sources) == 0 {
		t.Error("no sources returned")
	}
	for _, src := range body.Sources {
		if !strings.HasSuffix(src.Content, "...") {
			t.Errorf("source preview not truncated form: %q", src.Content)
		}
	}
	if body.Filters["chunk"] != "0" {
		t.Errorf("filters = %v", body.Filters)
	}

	// The wire keys are part of the API contract.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode raw body: %v", err)
	}
	for _, key := range []string{"query", "answer", "sources", "filters"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("response missing %q key", key)
		}
	}
}

func uploadFile(t *testing.T, srv http.Handler, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestIngest(t *testing.T) {
	srv := newTestServer(t, &mockProvider{response: "x"})

	rec := uploadFile(t, srv, "notes.txt", "some document content to index")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var body ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ChunksAdded != 1 {
		t.Errorf("chunks_added = %d, want 1", body.ChunksAdded)
	}
	if body.Filename != "notes.txt" {
		t.Errorf("filename = %q", body.Filename)
	}
}

func TestIngestRejectsDisallowedExtension(t *testing.T) {
	srv := newTestServer(t, &mockProvider{response: "x"})

	rec := uploadFile(t, srv, "malware.exe", "binary")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIngestAllowedButUnparseable(t *testing.T) {
	srv := newTestServer(t, &mockProvider{response: "x"})

	// Images pass the upload allow-list but no parser exists for them.
	rec := uploadFile(t, srv, "photo.png", "not an actual png")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unsupported file type") {
		t.Errorf("body = %q, want unsupported file type detail", rec.Body.String())
	}
}

func TestIngestMissingFileField(t *testing.T) {
	srv := newTestServer(t, &mockProvider{response: "x"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestFinalizeNoMemories404(t *testing.T) {
	srv := newTestServer(t, &mockProvider{response: "{}"})

	rec := doJSON(t, srv, http.MethodPost, "/finalize?user_id=nobody", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestFinalizeAfterChat(t *testing.T) {
	report := `{"conversation_summary":"resumen","key_points":["punto"],"next_steps":[]}`
	srv := newTestServer(t, &mockProvider{response: report})

	rec := doJSON(t, srv, http.MethodPost, "/chat", map[string]string{"text": "hola", "user_id": "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/finalize?user_id=alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize status = %d: %s", rec.Code, rec.Body.String())
	}

	var body finalize.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ConversationSummary != "resumen" {
		t.Errorf("summary = %q", body.ConversationSummary)
	}
}

func TestWebSocketChat(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, &mockProvider{response: "socket answer"}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(wsMessage{Type: "chat", Text: "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply wsReply
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Type != "response" || reply.Content != "socket answer" {
		t.Errorf("reply = %+v", reply)
	}

	// Malformed messages are rejected in-band without closing the socket.
	if err := conn.WriteJSON(wsMessage{Type: "chat"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Type != "error" {
		t.Errorf("expected in-band error, got %+v", reply)
	}
}
