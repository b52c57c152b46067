package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/castellanodev/ragserve/internal/embeddings"
)

var tableNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// PGVectorStore implements Store on PostgreSQL with the pgvector extension.
// Each collection maps to its own table with a jsonb metadata column;
// similarity search orders by cosine distance.
type PGVectorStore struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
	table    string
}

// NewPGVectorStore connects to PostgreSQL and ensures the collection table
// exists, sized to the embedder's dimension count. The collection name
// doubles as the table name and must be a plain lowercase identifier.
func NewPGVectorStore(ctx context.Context, connString string, embedder embeddings.Embedder, collection string) (*PGVectorStore, error) {
	if !tableNameRe.MatchString(collection) {
		return nil, fmt.Errorf("invalid collection name %q: must match %s", collection, tableNameRe)
	}

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	s := &PGVectorStore{pool: pool, embedder: embedder, table: collection}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGVectorStore) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id        text PRIMARY KEY,
		content   text NOT NULL,
		metadata  jsonb NOT NULL DEFAULT '{}',
		embedding vector(%d) NOT NULL
	)`, s.table, s.embedder.Dimensions())
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}

	idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_metadata_idx ON %s USING gin (metadata)", s.table, s.table)
	if _, err := s.pool.Exec(ctx, idx); err != nil {
		return fmt.Errorf("create metadata index: %w", err)
	}
	return nil
}

func (s *PGVectorStore) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors, expected %d", len(vectors), len(docs))
	}

	sql := fmt.Sprintf(`INSERT INTO %s (id, content, metadata, embedding) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`, s.table)

	batch := &pgx.Batch{}
	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}
		meta, err := json.Marshal(metadataOrEmpty(doc.Metadata))
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		batch.Queue(sql, id, doc.Content, meta, pgvector.NewVector(vectors[i]))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range docs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}
	return nil
}

func (s *PGVectorStore) Search(ctx context.Context, query string, k int, filter map[string]string) ([]SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}
	qvec := pgvector.NewVector(vectors[0])

	sql := searchSQL(s.table, len(filter) > 0)
	args := []any{qvec, k}
	if len(filter) > 0 {
		fjson, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("marshal filter: %w", err)
		}
		args = append(args, fjson)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.table, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			doc        Document
			metaJSON   []byte
			similarity float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metaJSON, &similarity); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		if err := json.Unmarshal(metaJSON, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		results = append(results, SearchResult{Document: doc, Similarity: float32(similarity)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

func (s *PGVectorStore) Count(ctx context.Context) (int, error) {
	var count int
	sql := fmt.Sprintf("SELECT count(*) FROM %s", s.table)
	if err := s.pool.QueryRow(ctx, sql).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table, err)
	}
	return count, nil
}

// Close releases the underlying connection pool.
func (s *PGVectorStore) Close() {
	s.pool.Close()
}

// searchSQL builds the similarity query. Cosine distance (<=>) runs from 0
// (identical) to 2, so similarity is reported as 1 - distance to match the
// convention of the other store. The optional jsonb containment clause
// implements exact-match metadata filtering.
func searchSQL(table string, filtered bool) string {
	where := ""
	if filtered {
		where = " WHERE metadata @> $3"
	}
	return fmt.Sprintf(
		"SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity FROM %s%s ORDER BY embedding <=> $1 LIMIT $2",
		table, where,
	)
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
