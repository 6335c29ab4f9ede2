// Package catalog stores songs and their lyric lines.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/audiora/audiora/pkg/lyrics"
)

// ErrNotFound is returned when a song does not exist.
var ErrNotFound = errors.New("catalog: song not found")

// Song is the metadata of one playable track.
type Song struct {
	ID         string `json:"id" yaml:"id"`
	Title      string `json:"title" yaml:"title"`
	Artist     string `json:"artist" yaml:"artist"`
	Language   string `json:"language" yaml:"language"`
	DurationMs int64  `json:"duration_ms" yaml:"duration_ms"`
	AudioURL   string `json:"audio_url,omitempty" yaml:"audio_url"`
}

// Validate checks the song and its lines. Timed lines must not end before
// they start.
func Validate(s Song, lines []lyrics.Line) error {
	var errs []error
	if strings.TrimSpace(s.ID) == "" {
		errs = append(errs, errors.New("catalog: song id must not be empty"))
	}
	if strings.TrimSpace(s.Title) == "" {
		errs = append(errs, errors.New("catalog: song title must not be empty"))
	}
	if strings.TrimSpace(s.Language) == "" {
		errs = append(errs, errors.New("catalog: song language must not be empty"))
	}
	for _, l := range lines {
		if l.Timed() && *l.EndMs < *l.StartMs {
			errs = append(errs, fmt.Errorf("catalog: line %d ends before it starts", l.LineNumber))
		}
		if (l.StartMs == nil) != (l.EndMs == nil) {
			errs = append(errs, fmt.Errorf("catalog: line %d has only one timing bound", l.LineNumber))
		}
	}
	return errors.Join(errs...)
}

// Store is the song catalog. Implementations must be safe for concurrent use.
type Store interface {
	// Song returns the song with id, or [ErrNotFound].
	Song(ctx context.Context, id string) (Song, error)

	// Lines returns the song's lyric lines ordered by line number. A song
	// without lyrics yields an empty slice; an unknown song yields
	// [ErrNotFound].
	Lines(ctx context.Context, songID string) ([]lyrics.Line, error)

	// Songs lists the catalog, optionally for one language, ordered by
	// artist and title.
	Songs(ctx context.Context, language string) ([]Song, error)

	// PutSong creates or replaces a song and all of its lines.
	PutSong(ctx context.Context, s Song, lines []lyrics.Line) error
}
