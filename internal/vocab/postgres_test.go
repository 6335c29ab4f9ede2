package vocab

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgvector "github.com/pgvector/pgvector-go"
)

func TestSchema_Dimensions(t *testing.T) {
	t.Parallel()
	ddl := Schema(768)
	for _, want := range []string{"vector(768)", "UNIQUE (user_id, word, language)", "vector_cosine_ops"} {
		if !strings.Contains(ddl, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}

func TestPostgresStore_Migrate(t *testing.T) {
	t.Parallel()
	var gotSQL string
	db := &pgtest.DB{ExecFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
		gotSQL = sql
		return pgconn.CommandTag{}, nil
	}}
	if err := NewPostgresStore(db, 4).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !strings.Contains(gotSQL, "vector(4)") {
		t.Errorf("migrate SQL lacks vector(4): %s", gotSQL)
	}
}

func TestPostgresStore_Upsert(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var gotArgs []any
	db := &pgtest.DB{QueryRowFunc: func(_ context.Context, sql string, args ...any) pgx.Row {
		gotArgs = args
		if !strings.Contains(sql, "ON CONFLICT (user_id, word, language)") {
			t.Errorf("upsert SQL lacks conflict clause: %s", sql)
		}
		return pgtest.ValuesRow("existing-id", "song-1", created)
	}}

	e := &Entry{UserID: "u1", Word: "  Corazón ", Translation: " heart ", Language: "ES", SourceID: "song-1"}
	if err := NewPostgresStore(db, 3).Upsert(context.Background(), e, []float32{0.1, 0.2, 0.3}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if e.ID != "existing-id" || !e.CreatedAt.Equal(created) {
		t.Errorf("entry = %+v, want stored id and created_at", e)
	}
	if gotArgs[2] != "corazón" || gotArgs[3] != "heart" || gotArgs[5] != "es" {
		t.Errorf("normalised args = %v", gotArgs[2:6])
	}
	if _, ok := gotArgs[7].(pgvector.Vector); !ok {
		t.Errorf("embedding arg = %T, want pgvector.Vector", gotArgs[7])
	}
}

func TestPostgresStore_Upsert_NilEmbedding(t *testing.T) {
	t.Parallel()
	var vecArg any = "unset"
	db := &pgtest.DB{QueryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
		vecArg = args[7]
		return pgtest.ValuesRow(args[0].(string), "", time.Now())
	}}
	e := &Entry{UserID: "u1", Word: "casa", Language: "es"}
	if err := NewPostgresStore(db, 3).Upsert(context.Background(), e, nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if vecArg != nil {
		t.Errorf("embedding arg = %v, want nil", vecArg)
	}
	if e.ID == "" {
		t.Error("expected generated ID")
	}
}

func TestPostgresStore_Upsert_Errors(t *testing.T) {
	t.Parallel()
	store := NewPostgresStore(&pgtest.DB{}, 3)

	if err := store.Upsert(context.Background(), &Entry{}, nil); err == nil {
		t.Error("expected validation error")
	}
	e := &Entry{UserID: "u1", Word: "casa", Language: "es"}
	if err := store.Upsert(context.Background(), e, []float32{1}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestPostgresStore_List(t *testing.T) {
	t.Parallel()
	now := time.Now()
	var gotSQL string
	var gotArgs []any
	db := &pgtest.DB{QueryFunc: func(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
		gotSQL, gotArgs = sql, args
		return &pgtest.Rows{Data: [][]any{
			{"1", "u1", "casa", "house", "", "es", "", now},
			{"2", "u1", "perro", "dog", "", "es", "s1", now.Add(-time.Minute)},
		}}, nil
	}}

	entries, err := NewPostgresStore(db, 3).List(context.Background(), "u1", ListOptions{Language: "ES", Limit: 5})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[1].Word != "perro" || entries[1].SourceID != "s1" {
		t.Fatalf("entries = %+v", entries)
	}
	if !strings.Contains(gotSQL, "language = $2") || !strings.Contains(gotSQL, "LIMIT $3") {
		t.Errorf("unexpected SQL: %s", gotSQL)
	}
	if len(gotArgs) != 3 || gotArgs[1] != "es" || gotArgs[2] != 5 {
		t.Errorf("args = %v", gotArgs)
	}
}

func TestPostgresStore_Delete(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		tag     string
		err     error
		wantErr error
	}{
		{name: "deleted", tag: "DELETE 1"},
		{name: "missing", tag: "DELETE 0", wantErr: ErrNotFound},
		{name: "db error", err: errors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db := &pgtest.DB{ExecFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
				return pgconn.NewCommandTag(tt.tag), tt.err
			}}
			err := NewPostgresStore(db, 3).Delete(context.Background(), "u1", "id")
			switch {
			case tt.err != nil:
				if !errors.Is(err, tt.err) {
					t.Fatalf("err = %v, want %v", err, tt.err)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			case err != nil:
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestPostgresStore_Related(t *testing.T) {
	t.Parallel()
	now := time.Now()
	var gotArgs []any
	db := &pgtest.DB{QueryFunc: func(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
		gotArgs = args
		if !strings.Contains(sql, "<=>") {
			t.Errorf("related SQL lacks cosine operator: %s", sql)
		}
		return &pgtest.Rows{Data: [][]any{
			{"2", "u1", "corazones", "hearts", "", "es", "", now, 0.1},
			{"3", "u1", "alma", "soul", "", "es", "", now, 1.4},
		}}, nil
	}}

	related, err := NewPostgresStore(db, 3).Related(context.Background(), "u1", "Corazón", "es", 0)
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	if len(related) != 2 {
		t.Fatalf("got %d related, want 2", len(related))
	}
	if related[0].Similarity < 0.89 || related[0].Similarity > 0.91 {
		t.Errorf("similarity[0] = %v, want 0.9", related[0].Similarity)
	}
	if related[1].Similarity != 0 {
		t.Errorf("similarity[1] = %v, want clamped 0", related[1].Similarity)
	}
	if gotArgs[1] != "corazón" || gotArgs[3] != 10 {
		t.Errorf("args = %v", gotArgs)
	}
}

func TestPostgresStore_MissingEmbeddings(t *testing.T) {
	t.Parallel()
	now := time.Now()
	var gotSQL string
	var gotArgs []any
	db := &pgtest.DB{QueryFunc: func(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
		gotSQL, gotArgs = sql, args
		return &pgtest.Rows{Data: [][]any{{"1", "u1", "casa", "house", "", "es", "", now}}}, nil
	}}
	entries, err := NewPostgresStore(db, 3).MissingEmbeddings(context.Background(), 16)
	if err != nil {
		t.Fatalf("MissingEmbeddings: %v", err)
	}
	if len(entries) != 1 || entries[0].Word != "casa" {
		t.Errorf("entries = %+v", entries)
	}
	if !strings.Contains(gotSQL, "embedding IS NULL") || gotArgs[0] != 16 {
		t.Errorf("query = %s %v", gotSQL, gotArgs)
	}
}

func TestPostgresStore_SetEmbedding(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		vec     []float32
		tag     string
		wantErr error
	}{
		{name: "stored", vec: []float32{1, 2, 3}, tag: "UPDATE 1"},
		{name: "unknown id", vec: []float32{1, 2, 3}, tag: "UPDATE 0", wantErr: ErrNotFound},
		{name: "wrong dimensions", vec: []float32{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			called := false
			db := &pgtest.DB{ExecFunc: func(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
				called = true
				if _, ok := args[1].(pgvector.Vector); !ok {
					t.Errorf("embedding arg = %T, want pgvector.Vector", args[1])
				}
				return pgconn.NewCommandTag(tt.tag), nil
			}}
			err := NewPostgresStore(db, 3).SetEmbedding(context.Background(), "id-1", tt.vec)
			switch {
			case tt.tag == "":
				if err == nil || called {
					t.Errorf("err = %v, called = %v; want rejection before the query", err, called)
				}
			case !errors.Is(err, tt.wantErr):
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
