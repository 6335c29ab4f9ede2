// Package storage opens the shared PostgreSQL pool and applies the schema of
// every store that lives in it.
//
//	pool, err := storage.Open(ctx, dsn)
//	if err != nil { … }
//	defer pool.Close()
//	err = storage.Migrate(ctx, pool, 1536)
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/audiora/audiora/internal/catalog"
	"github.com/audiora/audiora/internal/practice"
	"github.com/audiora/audiora/internal/vocab"
)

// DB is satisfied by *pgxpool.Pool and *pgx.Conn.
type DB interface {
	vocab.DB
}

// Open creates a connection pool for dsn, registers pgvector types on every
// connection and verifies connectivity.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse dsn: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	return pool, nil
}

// Migrate applies the catalog, vocabulary and practice schemas in order.
// embeddingDimensions must match the embedding model feeding the vocabulary
// store.
func Migrate(ctx context.Context, db DB, embeddingDimensions int) error {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"catalog", catalog.NewPostgresStore(db).Migrate},
		{"vocabulary", vocab.NewPostgresStore(db, embeddingDimensions).Migrate},
		{"practice", practice.NewPostgresStore(db).Migrate},
	}
	for _, s := range steps {
		if err := s.run(ctx); err != nil {
			return fmt.Errorf("storage: migrate %s: %w", s.name, err)
		}
	}
	return nil
}

// Stores bundles the PostgreSQL-backed stores sharing one pool.
type Stores struct {
	Catalog  *catalog.PostgresStore
	Vocab    *vocab.PostgresStore
	Attempts *practice.PostgresStore
}

// NewStores builds every store over db.
func NewStores(db DB, embeddingDimensions int) Stores {
	return Stores{
		Catalog:  catalog.NewPostgresStore(db),
		Vocab:    vocab.NewPostgresStore(db, embeddingDimensions),
		Attempts: practice.NewPostgresStore(db),
	}
}
