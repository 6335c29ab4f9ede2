package catalog

import (
	"context"
	"strings"
	"testing"
)

const seedYAML = `
songs:
  - id: "la-bamba"
    title: "La Bamba"
    artist: "Ritchie Valens"
    language: "spanish"
    duration_ms: 124000
    lines:
      - text: "Para bailar la bamba"
        start_ms: 12000
        end_ms: 15500
        translation: "To dance the bamba"
      - text: "se necesita una poca de gracia"
        start_ms: 15500
        end_ms: 19000
      - line_number: 10
        text: "(guitar solo)"
`

func TestLoadSeedFromReader(t *testing.T) {
	t.Parallel()
	sf, err := LoadSeedFromReader(strings.NewReader(seedYAML))
	if err != nil {
		t.Fatalf("LoadSeedFromReader: %v", err)
	}
	if len(sf.Songs) != 1 {
		t.Fatalf("got %d songs, want 1", len(sf.Songs))
	}
	s := sf.Songs[0]
	if s.ID != "la-bamba" || s.DurationMs != 124000 {
		t.Errorf("song = %+v", s.Song)
	}
	lines := s.LyricLines()
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[0].LineNumber != 1 || lines[1].LineNumber != 2 || lines[2].LineNumber != 10 {
		t.Errorf("line numbers = %d %d %d", lines[0].LineNumber, lines[1].LineNumber, lines[2].LineNumber)
	}
	if lines[0].Translation == nil || *lines[0].Translation != "To dance the bamba" {
		t.Errorf("translation = %v", lines[0].Translation)
	}
	if lines[2].Timed() {
		t.Error("untimed line reported as timed")
	}
}

func TestSeedFile_Unsynced(t *testing.T) {
	t.Parallel()
	sf, err := LoadSeedFromReader(strings.NewReader(seedYAML + `
  - id: "untimed"
    title: "Sin Tiempo"
    language: "spanish"
    lines:
      - text: "solo texto"
      - text: "sin marcas"
  - id: "instrumental"
    title: "Instrumental"
    language: "spanish"
`))
	if err != nil {
		t.Fatalf("LoadSeedFromReader: %v", err)
	}
	got := sf.Unsynced()
	if len(got) != 1 || got[0] != "untimed" {
		t.Errorf("Unsynced() = %v, want [untimed]", got)
	}
}

func TestLoadSeedFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := LoadSeedFromReader(strings.NewReader("songs:\n  - id: x\n    tempo: 120\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestImport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sf, err := LoadSeedFromReader(strings.NewReader(seedYAML))
	if err != nil {
		t.Fatalf("LoadSeedFromReader: %v", err)
	}
	store := NewMemStore()
	n, err := Import(ctx, store, sf)
	if err != nil || n != 1 {
		t.Fatalf("Import = %d, %v", n, err)
	}
	lines, err := store.Lines(ctx, "la-bamba")
	if err != nil || len(lines) != 3 {
		t.Fatalf("Lines = %d, %v", len(lines), err)
	}

	bad := &SeedFile{Songs: []SeedSong{sf.Songs[0], {Song: Song{ID: "broken"}}}}
	if n, err := Import(ctx, store, bad); err == nil || n != 1 {
		t.Errorf("Import(bad) = %d, %v; want 1 and an error", n, err)
	}
	if _, err := Import(ctx, store, nil); err == nil {
		t.Error("expected error for nil seed file")
	}
}
