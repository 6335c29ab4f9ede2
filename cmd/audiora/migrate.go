package main

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/audiora/audiora/internal/catalog"
	"github.com/audiora/audiora/internal/config"
	"github.com/audiora/audiora/internal/observe"
	"github.com/audiora/audiora/internal/storage"
	"github.com/audiora/audiora/internal/vocab"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	var (
		seedFiles []string
		backfill  bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the PostgreSQL schema",
		Long: `Migrate applies the schema for songs, vocabulary and pronunciation
attempts to the configured PostgreSQL database. Seed files given with --seed
are imported afterwards, in addition to catalog.seed_files from the config.
With --backfill-embeddings, vocabulary saved without a vector is embedded
with the configured embeddings provider.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if backfill && cfg.Providers.Embeddings.Name == "" {
				return fmt.Errorf("--backfill-embeddings needs providers.embeddings")
			}
			if cfg.Database.PostgresDSN == "" {
				return fmt.Errorf("database.postgres_dsn is not set")
			}
			var level slog.LevelVar
			level.Set(cfg.Server.LogLevel.SlogLevel())
			slog.SetDefault(newLogger(os.Stderr, &level))

			ctx := cmd.Context()
			pool, err := storage.Open(ctx, cfg.Database.PostgresDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			dims := cfg.Database.EmbeddingDimensions
			if err := storage.Migrate(ctx, pool, dims); err != nil {
				return err
			}
			slog.Info("schema migrated", "embedding_dimensions", dims)

			stores := storage.NewStores(pool, dims)
			for _, path := range slices.Concat(cfg.Catalog.SeedFiles, seedFiles) {
				sf, err := catalog.LoadSeedFile(path)
				if err != nil {
					return err
				}
				n, err := catalog.Import(ctx, stores.Catalog, sf)
				if err != nil {
					return err
				}
				slog.Info("imported songs", "file", path, "count", n)
			}

			if !backfill {
				return nil
			}
			reg := config.NewRegistry()
			registerBuiltinProviders(reg, observe.DefaultMetrics())
			embedder, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
			if err != nil {
				return fmt.Errorf("create embeddings provider: %w", err)
			}
			if embedder.Dimensions() != dims {
				return fmt.Errorf("embeddings model %s produces %d dimensions, database.embedding_dimensions is %d",
					embedder.ModelID(), embedder.Dimensions(), dims)
			}
			svc, err := vocab.NewService(stores.Vocab, vocab.WithEmbedder(embedder))
			if err != nil {
				return err
			}
			n, err := svc.Backfill(ctx, vocab.DefaultBackfillBatch)
			slog.Info("backfilled vocabulary embeddings", "count", n)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&seedFiles, "seed", nil, "song seed files to import after migrating")
	cmd.Flags().BoolVar(&backfill, "backfill-embeddings", false, "embed vocabulary saved without a vector")
	return cmd
}
