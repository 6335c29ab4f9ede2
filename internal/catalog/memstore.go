package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/audiora/audiora/pkg/lyrics"
)

var _ Store = (*MemStore)(nil)

type memSong struct {
	song  Song
	lines []lyrics.Line
}

// MemStore is an in-memory [Store].
type MemStore struct {
	mu    sync.RWMutex
	songs map[string]memSong
}

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{songs: make(map[string]memSong)}
}

// Song implements [Store].
func (s *MemStore) Song(_ context.Context, id string) (Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.songs[id]
	if !ok {
		return Song{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return m.song, nil
}

// Lines implements [Store].
func (s *MemStore) Lines(_ context.Context, songID string) ([]lyrics.Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.songs[songID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, songID)
	}
	return slices.Clone(m.lines), nil
}

// Songs implements [Store].
func (s *MemStore) Songs(_ context.Context, language string) ([]Song, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	s.mu.RLock()
	out := make([]Song, 0, len(s.songs))
	for _, m := range s.songs {
		if language == "" || m.song.Language == language {
			out = append(out, m.song)
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(out, compareSongs)
	return out, nil
}

// PutSong implements [Store].
func (s *MemStore) PutSong(_ context.Context, song Song, lines []lyrics.Line) error {
	if err := Validate(song, lines); err != nil {
		return err
	}
	song.Language = strings.ToLower(strings.TrimSpace(song.Language))
	stored := slices.Clone(lines)
	for i := range stored {
		if stored[i].ID == "" {
			stored[i].ID = uuid.NewString()
		}
	}
	lyrics.Sort(stored)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.songs[song.ID] = memSong{song: song, lines: stored}
	return nil
}

func compareSongs(a, b Song) int {
	if c := cmp.Compare(a.Artist, b.Artist); c != 0 {
		return c
	}
	return cmp.Compare(a.Title, b.Title)
}
