package vocab

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"
	"github.com/google/uuid"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store]. Related ranks by Jaro-Winkler similarity
// of the words and ignores embeddings.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry // by ID
	now     func() time.Time
}

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]*Entry), now: time.Now}
}

// Upsert implements [Store].
func (s *MemStore) Upsert(_ context.Context, e *Entry, _ []float32) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e.normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.entries {
		if cur.UserID == e.UserID && cur.Word == e.Word && cur.Language == e.Language {
			cur.Translation = e.Translation
			cur.Context = e.Context
			if e.SourceID != "" {
				cur.SourceID = e.SourceID
			}
			*e = *cur
			return nil
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = s.now().UTC()
	stored := *e
	s.entries[e.ID] = &stored
	return nil
}

// List implements [Store].
func (s *MemStore) List(_ context.Context, userID string, opts ListOptions) ([]Entry, error) {
	lang := strings.ToLower(strings.TrimSpace(opts.Language))
	s.mu.RLock()
	var out []Entry
	for _, e := range s.entries {
		if e.UserID != userID || (lang != "" && e.Language != lang) {
			continue
		}
		out = append(out, *e)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Entry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Word, b.Word)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Delete implements [Store].
func (s *MemStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

// Related implements [Store].
func (s *MemStore) Related(_ context.Context, userID, word, language string, limit int) ([]Related, error) {
	word = NormalizeWord(word)
	language = strings.ToLower(strings.TrimSpace(language))

	s.mu.RLock()
	var out []Related
	for _, e := range s.entries {
		if e.UserID != userID || e.Language != language || e.Word == word {
			continue
		}
		out = append(out, Related{Entry: *e, Similarity: matchr.JaroWinkler(word, e.Word, false)})
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Related) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.Word, b.Word)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
