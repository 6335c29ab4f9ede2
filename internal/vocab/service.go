package vocab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/audiora/audiora/internal/lookup"
	"github.com/audiora/audiora/pkg/provider/embeddings"
)

// ErrNoEmbeddings is returned by [Service.Backfill] when the service has no
// embedder or its store does not keep vectors.
var ErrNoEmbeddings = errors.New("vocab: embeddings are not enabled")

// DefaultBackfillBatch is the number of entries embedded per provider call.
const DefaultBackfillBatch = 64

// Option configures a [Service].
type Option func(*Service)

// WithEmbedder enables embeddings for saved words so [Store.Related] can
// rank by meaning.
func WithEmbedder(p embeddings.Provider) Option {
	return func(s *Service) { s.embedder = p }
}

// Service saves and queries vocabulary on top of a [Store].
type Service struct {
	store    Store
	embedder embeddings.Provider
}

// NewService returns a Service over store.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("vocab: store must not be nil")
	}
	s := &Service{store: store}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Save upserts e. An embedding failure is logged and the entry is saved
// without a vector; a store failure is returned, since it loses the
// learner's action.
func (s *Service) Save(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	var vec []float32
	if s.embedder != nil {
		v, err := s.embedder.Embed(ctx, embeddings.VocabularyText(e.Word, e.Translation, e.Language))
		if err != nil {
			slog.Warn("vocab: embedding failed, saving without vector",
				"word", e.Word, "language", e.Language, "err", err)
		} else {
			vec = v
		}
	}
	return s.store.Upsert(ctx, e, vec)
}

// List returns the user's entries, newest first.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) ([]Entry, error) {
	return s.store.List(ctx, userID, opts)
}

// Delete removes one of the user's entries.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.store.Delete(ctx, userID, id)
}

// Related returns the user's saved words closest to word.
func (s *Service) Related(ctx context.Context, userID, word, language string, limit int) ([]Related, error) {
	return s.store.Related(ctx, userID, word, language, limit)
}

// Saver returns a [lookup.SaveFunc] that stores tooltip words for userID,
// tagged with the song they came from.
func (s *Service) Saver(userID, sourceID string) lookup.SaveFunc {
	return func(ctx context.Context, w lookup.SavedWord) error {
		return s.Save(ctx, &Entry{
			UserID:      userID,
			Word:        w.Word,
			Translation: w.Translation,
			Context:     w.Context,
			Language:    w.Language,
			SourceID:    sourceID,
		})
	}
}

// Backfill embeds every entry saved without a vector, batch entries per
// provider call, and returns how many it filled. Entries saved while the
// embedder was down or before one was configured become reachable through
// [Store.Related] afterwards.
func (s *Service) Backfill(ctx context.Context, batch int) (int, error) {
	es, ok := s.store.(EmbeddingStore)
	if !ok || s.embedder == nil {
		return 0, ErrNoEmbeddings
	}
	if batch <= 0 {
		batch = DefaultBackfillBatch
	}

	filled := 0
	for {
		entries, err := es.MissingEmbeddings(ctx, batch)
		if err != nil || len(entries) == 0 {
			return filled, err
		}
		texts := make([]string, len(entries))
		for i, e := range entries {
			texts[i] = embeddings.VocabularyText(e.Word, e.Translation, e.Language)
		}
		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return filled, fmt.Errorf("vocab: backfill: %w", err)
		}
		if len(vecs) != len(entries) {
			return filled, fmt.Errorf("vocab: backfill: got %d vectors for %d entries", len(vecs), len(entries))
		}
		for i, e := range entries {
			if err := es.SetEmbedding(ctx, e.ID, vecs[i]); err != nil {
				return filled, err
			}
			filled++
		}
		slog.Debug("vocab: backfilled embeddings", "batch", len(entries), "total", filled)
		if len(entries) < batch {
			return filled, nil
		}
	}
}
