// Package vocab stores the words a learner saves from lyric tooltips.
//
// Entries are unique per (user, word, language): saving the same word twice
// refreshes its translation and context instead of creating a duplicate.
// Words are stored lowercased and trimmed so "Corazón" and " corazón" collide.
//
// Two [Store] implementations exist: [PostgresStore] (pgx, with a pgvector
// embedding column powering [Store.Related]) and [MemStore] (in-process, ranks
// related words by Jaro-Winkler similarity).
package vocab

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by [Store.Delete] when no entry with the given ID
// belongs to the user.
var ErrNotFound = errors.New("vocab: entry not found")

// Entry is one saved vocabulary word.
type Entry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Word        string    `json:"word"`
	Translation string    `json:"translation"`
	Context     string    `json:"context,omitempty"`
	Language    string    `json:"language"`
	SourceID    string    `json:"source_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the required fields.
func (e *Entry) Validate() error {
	var errs []error
	if strings.TrimSpace(e.UserID) == "" {
		errs = append(errs, errors.New("vocab: user_id must not be empty"))
	}
	if strings.TrimSpace(e.Word) == "" {
		errs = append(errs, errors.New("vocab: word must not be empty"))
	}
	if strings.TrimSpace(e.Language) == "" {
		errs = append(errs, errors.New("vocab: language must not be empty"))
	}
	return errors.Join(errs...)
}

// normalize canonicalises the unique-key fields in place.
func (e *Entry) normalize() {
	e.Word = NormalizeWord(e.Word)
	e.Language = strings.ToLower(strings.TrimSpace(e.Language))
	e.Translation = strings.TrimSpace(e.Translation)
	e.Context = strings.TrimSpace(e.Context)
}

// NormalizeWord returns the stored form of a word.
func NormalizeWord(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}

// Related is an entry with its similarity to the queried word in [0, 1].
type Related struct {
	Entry
	Similarity float64 `json:"similarity"`
}

// ListOptions filters [Store.List].
type ListOptions struct {
	// Language restricts results to one language when non-empty.
	Language string

	// Limit caps the result count; 0 means no limit.
	Limit int
}

// EmbeddingStore is implemented by stores that keep embeddings. It lets
// [Service.Backfill] find and fill entries saved without a vector.
type EmbeddingStore interface {
	// MissingEmbeddings returns up to limit entries without a vector,
	// oldest first.
	MissingEmbeddings(ctx context.Context, limit int) ([]Entry, error)

	// SetEmbedding stores the vector of the entry with the given ID.
	SetEmbedding(ctx context.Context, id string, embedding []float32) error
}

// Store persists vocabulary entries. Implementations must be safe for
// concurrent use.
type Store interface {
	// Upsert inserts e or refreshes the existing entry with the same
	// (user, word, language). On return e carries the stored ID and
	// creation time. embedding may be nil.
	Upsert(ctx context.Context, e *Entry, embedding []float32) error

	// List returns a user's entries, newest first.
	List(ctx context.Context, userID string, opts ListOptions) ([]Entry, error)

	// Delete removes one of the user's entries.
	Delete(ctx context.Context, userID, id string) error

	// Related returns up to limit of the user's other entries in the same
	// language, most similar to word first.
	Related(ctx context.Context, userID, word, language string, limit int) ([]Related, error)
}
