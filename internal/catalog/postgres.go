package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/audiora/audiora/pkg/lyrics"
)

// Schema is the DDL for the songs and lyric_lines tables.
const Schema = `
CREATE TABLE IF NOT EXISTS songs (
    id          TEXT    PRIMARY KEY,
    title       TEXT    NOT NULL,
    artist      TEXT    NOT NULL DEFAULT '',
    language    TEXT    NOT NULL,
    duration_ms BIGINT  NOT NULL DEFAULT 0,
    audio_url   TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS lyric_lines (
    id          TEXT     PRIMARY KEY,
    song_id     TEXT     NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
    line_number INTEGER  NOT NULL,
    text        TEXT     NOT NULL,
    start_ms    BIGINT,
    end_ms      BIGINT,
    translation TEXT
);

CREATE INDEX IF NOT EXISTS idx_lyric_lines_song_number
    ON lyric_lines (song_id, line_number);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore returns a store over db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies [Schema].
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// Song implements [Store].
func (s *PostgresStore) Song(ctx context.Context, id string) (Song, error) {
	var song Song
	err := s.db.QueryRow(ctx,
		`SELECT id, title, artist, language, duration_ms, audio_url FROM songs WHERE id = $1`, id,
	).Scan(&song.ID, &song.Title, &song.Artist, &song.Language, &song.DurationMs, &song.AudioURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return Song{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return Song{}, fmt.Errorf("catalog: get song %q: %w", id, err)
	}
	return song, nil
}

// Lines implements [Store].
func (s *PostgresStore) Lines(ctx context.Context, songID string) ([]lyrics.Line, error) {
	if _, err := s.Song(ctx, songID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, line_number, text, start_ms, end_ms, translation
		FROM   lyric_lines
		WHERE  song_id = $1
		ORDER  BY line_number, id`, songID)
	if err != nil {
		return nil, fmt.Errorf("catalog: lines %q: %w", songID, err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (lyrics.Line, error) {
		var l lyrics.Line
		err := row.Scan(&l.ID, &l.LineNumber, &l.Text, &l.StartMs, &l.EndMs, &l.Translation)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: lines %q: %w", songID, err)
	}
	return lines, nil
}

// Songs implements [Store].
func (s *PostgresStore) Songs(ctx context.Context, language string) ([]Song, error) {
	q := `SELECT id, title, artist, language, duration_ms, audio_url FROM songs`
	var args []any
	if lang := strings.ToLower(strings.TrimSpace(language)); lang != "" {
		q += ` WHERE language = $1`
		args = append(args, lang)
	}
	q += ` ORDER BY artist, title`

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list songs: %w", err)
	}
	songs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Song, error) {
		var song Song
		err := row.Scan(&song.ID, &song.Title, &song.Artist, &song.Language, &song.DurationMs, &song.AudioURL)
		return song, err
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: list songs: %w", err)
	}
	return songs, nil
}

// PutSong implements [Store]. The song row is upserted, its old lines are
// deleted and the new ones inserted with one unnest statement.
func (s *PostgresStore) PutSong(ctx context.Context, song Song, lines []lyrics.Line) error {
	if err := Validate(song, lines); err != nil {
		return err
	}
	song.Language = strings.ToLower(strings.TrimSpace(song.Language))

	_, err := s.db.Exec(ctx, `
		INSERT INTO songs (id, title, artist, language, duration_ms, audio_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title       = EXCLUDED.title,
			artist      = EXCLUDED.artist,
			language    = EXCLUDED.language,
			duration_ms = EXCLUDED.duration_ms,
			audio_url   = EXCLUDED.audio_url`,
		song.ID, song.Title, song.Artist, song.Language, song.DurationMs, song.AudioURL)
	if err != nil {
		return fmt.Errorf("catalog: put song %q: %w", song.ID, err)
	}

	var (
		ids          = make([]string, len(lines))
		numbers      = make([]int32, len(lines))
		texts        = make([]string, len(lines))
		starts       = make([]*int64, len(lines))
		ends         = make([]*int64, len(lines))
		translations = make([]*string, len(lines))
	)
	for i, l := range lines {
		ids[i] = l.ID
		if ids[i] == "" {
			ids[i] = uuid.NewString()
		}
		numbers[i] = int32(l.LineNumber)
		texts[i] = l.Text
		starts[i] = l.StartMs
		ends[i] = l.EndMs
		translations[i] = l.Translation
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM lyric_lines WHERE song_id = $1`, song.ID); err != nil {
		return fmt.Errorf("catalog: clear lines for %q: %w", song.ID, err)
	}
	if len(lines) == 0 {
		return nil
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO lyric_lines (id, song_id, line_number, text, start_ms, end_ms, translation)
		SELECT u.id, $1, u.line_number, u.text, u.start_ms, u.end_ms, u.translation
		FROM   unnest($2::text[], $3::int[], $4::text[], $5::bigint[], $6::bigint[], $7::text[])
		       AS u(id, line_number, text, start_ms, end_ms, translation)`,
		song.ID, ids, numbers, texts, starts, ends, translations)
	if err != nil {
		return fmt.Errorf("catalog: put lines for %q: %w", song.ID, err)
	}
	return nil
}
