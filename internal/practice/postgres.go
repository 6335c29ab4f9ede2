package practice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the DDL for the pronunciation_attempts table.
const Schema = `
CREATE TABLE IF NOT EXISTS pronunciation_attempts (
    id               TEXT              PRIMARY KEY,
    user_id          TEXT              NOT NULL,
    target_text      TEXT              NOT NULL,
    transcribed_text TEXT              NOT NULL DEFAULT '',
    language         TEXT              NOT NULL DEFAULT '',
    confidence       DOUBLE PRECISION,
    accuracy_score   INTEGER           NOT NULL CHECK (accuracy_score BETWEEN 0 AND 100),
    feedback         TEXT              NOT NULL DEFAULT '',
    poor_audio       BOOLEAN           NOT NULL DEFAULT false,
    words            JSONB             NOT NULL DEFAULT '[]',
    created_at       TIMESTAMPTZ       NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_pronunciation_attempts_user_created
    ON pronunciation_attempts (user_id, created_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is an [AttemptStore] backed by PostgreSQL.
type PostgresStore struct {
	db DB
}

var _ AttemptStore = (*PostgresStore)(nil)

// NewPostgresStore returns a store over db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies [Schema].
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("practice: migrate: %w", err)
	}
	return nil
}

// Save implements [AttemptStore].
func (s *PostgresStore) Save(ctx context.Context, a *Attempt) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	words, err := json.Marshal(a.Words)
	if err != nil {
		return fmt.Errorf("practice: marshal words: %w", err)
	}
	if a.Words == nil {
		words = []byte("[]")
	}

	const query = `
		INSERT INTO pronunciation_attempts
			(id, user_id, target_text, transcribed_text, language, confidence,
			 accuracy_score, feedback, poor_audio, words, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()))
		RETURNING created_at`

	var createdAt any
	if !a.CreatedAt.IsZero() {
		createdAt = a.CreatedAt
	}
	err = s.db.QueryRow(ctx, query,
		a.ID, a.UserID, a.TargetText, a.TranscribedText, a.Language, a.Confidence,
		a.Score, a.Feedback, a.PoorAudio, words, createdAt,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("practice: save attempt: %w", err)
	}
	return nil
}

// Recent implements [AttemptStore].
func (s *PostgresStore) Recent(ctx context.Context, userID string, limit int) ([]Attempt, error) {
	q := `
		SELECT id, user_id, target_text, transcribed_text, language, confidence,
		       accuracy_score, feedback, poor_audio, words, created_at
		FROM   pronunciation_attempts
		WHERE  user_id = $1
		ORDER  BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		q += "\n\t\tLIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("practice: recent: %w", err)
	}
	attempts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Attempt, error) {
		var (
			a     Attempt
			words []byte
		)
		err := row.Scan(&a.ID, &a.UserID, &a.TargetText, &a.TranscribedText, &a.Language, &a.Confidence,
			&a.Score, &a.Feedback, &a.PoorAudio, &words, &a.CreatedAt)
		if err != nil {
			return a, err
		}
		if len(words) > 0 {
			if err := json.Unmarshal(words, &a.Words); err != nil {
				return a, fmt.Errorf("decode words: %w", err)
			}
		}
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("practice: recent: %w", err)
	}
	return attempts, nil
}

// Stats implements [AttemptStore].
func (s *PostgresStore) Stats(ctx context.Context, userID, language string) (Stats, error) {
	q := `
		SELECT count(*), COALESCE(avg(accuracy_score)::float8, 0), COALESCE(max(accuracy_score), 0)
		FROM   pronunciation_attempts
		WHERE  user_id = $1`
	args := []any{userID}
	if lang := strings.ToLower(strings.TrimSpace(language)); lang != "" {
		q += " AND language = $2"
		args = append(args, lang)
	}

	var (
		st    Stats
		count int64
	)
	if err := s.db.QueryRow(ctx, q, args...).Scan(&count, &st.Average, &st.Best); err != nil {
		return Stats{}, fmt.Errorf("practice: stats: %w", err)
	}
	st.Count = int(count)
	return st, nil
}
