package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/audiora/audiora/pkg/lyrics"
)

// SeedFile is the top-level structure of a catalog seed YAML file.
//
// Example:
//
//	songs:
//	  - id: "la-bamba"
//	    title: "La Bamba"
//	    artist: "Ritchie Valens"
//	    language: "spanish"
//	    duration_ms: 124000
//	    lines:
//	      - text: "Para bailar la bamba"
//	        start_ms: 12000
//	        end_ms: 15500
//	        translation: "To dance the bamba"
type SeedFile struct {
	Songs []SeedSong `yaml:"songs"`
}

// SeedSong is one song with its lyrics.
type SeedSong struct {
	Song  `yaml:",inline"`
	Lines []SeedLine `yaml:"lines"`
}

// SeedLine is one lyric line. A zero LineNumber takes the line's position in
// the list, starting at 1.
type SeedLine struct {
	LineNumber  int     `yaml:"line_number"`
	Text        string  `yaml:"text"`
	StartMs     *int64  `yaml:"start_ms"`
	EndMs       *int64  `yaml:"end_ms"`
	Translation *string `yaml:"translation"`
}

// LyricLines converts the seed lines to [lyrics.Line] values.
func (s SeedSong) LyricLines() []lyrics.Line {
	out := make([]lyrics.Line, len(s.Lines))
	for i, l := range s.Lines {
		n := l.LineNumber
		if n == 0 {
			n = i + 1
		}
		out[i] = lyrics.Line{
			LineNumber:  n,
			Text:        l.Text,
			StartMs:     l.StartMs,
			EndMs:       l.EndMs,
			Translation: l.Translation,
		}
	}
	return out
}

// Unsynced returns the IDs of songs that have lyrics but no timed line, so
// the player can never highlight anything for them.
func (sf *SeedFile) Unsynced() []string {
	var ids []string
	for _, s := range sf.Songs {
		if lines := s.LyricLines(); len(lines) > 0 && len(lyrics.Timed(lines)) == 0 {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// LoadSeedFile reads and parses a seed YAML file from disk.
func LoadSeedFile(path string) (*SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open seed file %q: %w", path, err)
	}
	defer f.Close()

	sf, err := LoadSeedFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse seed file %q: %w", path, err)
	}
	return sf, nil
}

// LoadSeedFromReader parses seed YAML from an [io.Reader].
func LoadSeedFromReader(r io.Reader) (*SeedFile, error) {
	var sf SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil {
		return nil, fmt.Errorf("catalog: decode seed yaml: %w", err)
	}
	return &sf, nil
}

// Import writes every song in sf to store and returns how many were written.
// A store error aborts the import and returns the count so far.
func Import(ctx context.Context, store Store, sf *SeedFile) (int, error) {
	if sf == nil {
		return 0, fmt.Errorf("catalog: seed file must not be nil")
	}
	for _, id := range sf.Unsynced() {
		slog.Warn("catalog: song has no timed lyrics, playback will not highlight lines", "song_id", id)
	}
	for i, s := range sf.Songs {
		if err := store.PutSong(ctx, s.Song, s.LyricLines()); err != nil {
			return i, fmt.Errorf("catalog: import song %q: %w", s.ID, err)
		}
	}
	return len(sf.Songs), nil
}
