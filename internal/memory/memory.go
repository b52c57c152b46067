// Package memory stores per-user conversation memories. Each memory is
// written twice: to SQLite for durable chronological listing and to the
// vector index for similarity recall scoped to the user.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/castellanodev/ragserve/internal/vectordb"
)

// metaUserID is the vector metadata key used to scope recall to one user.
const metaUserID = "user_id"

// Entry is a single stored memory.
type Entry struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Store persists and recalls memories.
type Store struct {
	db      *sql.DB
	vectors vectordb.Store
}

// NewStore creates a memory store over the given database and vector index.
func NewStore(database *sql.DB, vectors vectordb.Store) *Store {
	return &Store{db: database, vectors: vectors}
}

// Add stores a memory for a user. The entry is written to SQLite first;
// the vector write shares the entry ID so both sides stay in step.
func (s *Store) Add(ctx context.Context, userID, text string, metadata map[string]string) (*Entry, error) {
	entry := &Entry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Text:      text,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	metaJSON, err := json.Marshal(metadataOrEmpty(metadata))
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO memory_entries (id, user_id, text, metadata, created_at) VALUES (?, ?, ?, ?, ?)",
		entry.ID, entry.UserID, entry.Text, string(metaJSON), entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}

	docMeta := map[string]string{metaUserID: userID}
	for k, v := range metadata {
		docMeta[k] = v
	}
	err = s.vectors.Add(ctx, []vectordb.Document{{
		ID:       entry.ID,
		Content:  text,
		Metadata: docMeta,
	}})
	if err != nil {
		return nil, fmt.Errorf("index memory: %w", err)
	}

	return entry, nil
}

// Search returns up to limit memories most similar to the query, restricted
// to the given user.
func (s *Store) Search(ctx context.Context, userID, query string, limit int) ([]Entry, error) {
	results, err := s.vectors.Search(ctx, query, limit, map[string]string{metaUserID: userID})
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for _, r := range results {
		entries = append(entries, Entry{
			ID:     r.Document.ID,
			UserID: userID,
			Text:   r.Document.Content,
		})
	}
	return entries, nil
}

// All returns every memory for a user in chronological order.
func (s *Store) All(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, text, metadata, created_at FROM memory_entries WHERE user_id = ? ORDER BY created_at, id",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry    Entry
			metaJSON string
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Text, &metaJSON, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		if metaJSON != "" && metaJSON != "{}" {
			if err := json.Unmarshal([]byte(metaJSON), &entry.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal memory metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory rows: %w", err)
	}
	return entries, nil
}

// Count returns the number of memories stored for a user.
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM memory_entries WHERE user_id = ?", userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return count, nil
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
