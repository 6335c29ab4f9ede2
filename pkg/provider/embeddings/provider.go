// Package embeddings defines the Provider interface for vector embedding backends.
//
// Saved vocabulary words are embedded together with their translation so the
// vocabulary store can rank "related words" by cosine distance. All vectors
// stored in one table must come from the same model and dimensionality.
//
// Implementations must be safe for concurrent use.
package embeddings

import (
	"context"
	"fmt"
	"strings"
)

// Provider is the abstraction over any text-embedding backend.
type Provider interface {
	// Embed computes the embedding vector for a single text. The result has
	// length Dimensions().
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in one call. The i-th result corresponds to
	// texts[i]; on error no partial result is returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the fixed length of every vector this provider returns.
	Dimensions() int

	// ModelID identifies the embedding model.
	ModelID() string
}

// VocabularyText builds the text embedded for a vocabulary entry. The
// language prefix keeps homographs from different languages apart.
func VocabularyText(word, translation, language string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	if translation = strings.TrimSpace(translation); translation == "" {
		return fmt.Sprintf("%s: %s", strings.ToLower(language), word)
	}
	return fmt.Sprintf("%s: %s (%s)", strings.ToLower(language), word, translation)
}
