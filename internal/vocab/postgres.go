package vocab

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgvector "github.com/pgvector/pgvector-go"
)

// Schema returns the DDL for the vocabulary table. dims must match the
// embedding model; changing it after the first migration needs a manual
// ALTER.
func Schema(dims int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS vocabulary (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL,
    word        TEXT         NOT NULL,
    translation TEXT         NOT NULL DEFAULT '',
    context     TEXT         NOT NULL DEFAULT '',
    language    TEXT         NOT NULL,
    source_id   TEXT         NOT NULL DEFAULT '',
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (user_id, word, language)
);

CREATE INDEX IF NOT EXISTS idx_vocabulary_user_created
    ON vocabulary (user_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_vocabulary_embedding
    ON vocabulary USING hnsw (embedding vector_cosine_ops);
`, dims)
}

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy it. Vector columns need pgvector types registered on
// the connection.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL with pgvector.
type PostgresStore struct {
	db   DB
	dims int
}

var (
	_ Store          = (*PostgresStore)(nil)
	_ EmbeddingStore = (*PostgresStore)(nil)
)

// NewPostgresStore returns a store over db whose embedding column has dims
// components.
func NewPostgresStore(db DB, dims int) *PostgresStore {
	return &PostgresStore{db: db, dims: dims}
}

// Migrate applies [Schema].
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema(s.dims)); err != nil {
		return fmt.Errorf("vocab: migrate: %w", err)
	}
	return nil
}

// Upsert implements [Store]. A nil embedding keeps any stored vector.
func (s *PostgresStore) Upsert(ctx context.Context, e *Entry, embedding []float32) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e.normalize()
	if len(embedding) > 0 && len(embedding) != s.dims {
		return fmt.Errorf("vocab: embedding has %d dimensions, want %d", len(embedding), s.dims)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	var vec any
	if len(embedding) > 0 {
		vec = pgvector.NewVector(embedding)
	}

	const query = `
		INSERT INTO vocabulary (id, user_id, word, translation, context, language, source_id, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, word, language) DO UPDATE SET
			translation = EXCLUDED.translation,
			context     = EXCLUDED.context,
			source_id   = COALESCE(NULLIF(EXCLUDED.source_id, ''), vocabulary.source_id),
			embedding   = COALESCE(EXCLUDED.embedding, vocabulary.embedding)
		RETURNING id, source_id, created_at`

	err := s.db.QueryRow(ctx, query,
		e.ID, e.UserID, e.Word, e.Translation, e.Context, e.Language, e.SourceID, vec,
	).Scan(&e.ID, &e.SourceID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("vocab: upsert %q: %w", e.Word, err)
	}
	return nil
}

// List implements [Store].
func (s *PostgresStore) List(ctx context.Context, userID string, opts ListOptions) ([]Entry, error) {
	args := []any{userID}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"user_id = $1"}
	if lang := strings.ToLower(strings.TrimSpace(opts.Language)); lang != "" {
		conditions = append(conditions, "language = "+next(lang))
	}
	limit := ""
	if opts.Limit > 0 {
		limit = "LIMIT " + next(opts.Limit)
	}

	q := fmt.Sprintf(`
		SELECT id, user_id, word, translation, context, language, source_id, created_at
		FROM   vocabulary
		WHERE  %s
		ORDER  BY created_at DESC, word
		%s`, strings.Join(conditions, " AND "), limit)

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("vocab: list: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.ID, &e.UserID, &e.Word, &e.Translation, &e.Context, &e.Language, &e.SourceID, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("vocab: list: %w", err)
	}
	return entries, nil
}

// Delete implements [Store].
func (s *PostgresStore) Delete(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM vocabulary WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("vocab: delete %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Related implements [Store] by cosine distance to the stored embedding of
// word. Words saved without an embedding have no related entries.
func (s *PostgresStore) Related(ctx context.Context, userID, word, language string, limit int) ([]Related, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		WITH src AS (
			SELECT embedding FROM vocabulary
			WHERE user_id = $1 AND word = $2 AND language = $3 AND embedding IS NOT NULL
		)
		SELECT v.id, v.user_id, v.word, v.translation, v.context, v.language, v.source_id, v.created_at,
		       v.embedding <=> src.embedding AS distance
		FROM   vocabulary v, src
		WHERE  v.user_id = $1 AND v.language = $3 AND v.word <> $2 AND v.embedding IS NOT NULL
		ORDER  BY distance
		LIMIT  $4`

	rows, err := s.db.Query(ctx, query, userID, NormalizeWord(word), strings.ToLower(strings.TrimSpace(language)), limit)
	if err != nil {
		return nil, fmt.Errorf("vocab: related: %w", err)
	}
	related, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Related, error) {
		var (
			r        Related
			distance float64
		)
		err := row.Scan(&r.ID, &r.UserID, &r.Word, &r.Translation, &r.Context, &r.Language, &r.SourceID, &r.CreatedAt, &distance)
		r.Similarity = max(0, 1-distance)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("vocab: related: %w", err)
	}
	return related, nil
}

// MissingEmbeddings implements [EmbeddingStore].
func (s *PostgresStore) MissingEmbeddings(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, word, translation, context, language, source_id, created_at
		FROM   vocabulary
		WHERE  embedding IS NULL
		ORDER  BY created_at, id
		LIMIT  $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("vocab: missing embeddings: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.ID, &e.UserID, &e.Word, &e.Translation, &e.Context, &e.Language, &e.SourceID, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("vocab: missing embeddings: %w", err)
	}
	return entries, nil
}

// SetEmbedding implements [EmbeddingStore].
func (s *PostgresStore) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	if len(embedding) != s.dims {
		return fmt.Errorf("vocab: embedding has %d dimensions, want %d", len(embedding), s.dims)
	}
	tag, err := s.db.Exec(ctx, `UPDATE vocabulary SET embedding = $2 WHERE id = $1`, id, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("vocab: set embedding %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
