package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/audiora/audiora/internal/auth"
	"github.com/audiora/audiora/internal/catalog"
	"github.com/audiora/audiora/internal/vocab"
	"github.com/audiora/audiora/pkg/lyrics"
	"github.com/audiora/audiora/pkg/provider/translate"
)

type translateRequest struct {
	Kind     translate.Kind `json:"kind"`
	Text     string         `json:"text"`
	Language string         `json:"language"`
	Context  string         `json:"context"`
}

// handleTranslate serves POST /api/translate. Kind defaults to "word".
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var body translateRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Kind == "" {
		body.Kind = translate.KindWord
	}
	req := translate.Request(body)
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.lookup.Lookup(r.Context(), req)
	if err != nil {
		writeTranslateError(w, err, req.Text)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type vocabularyRequest struct {
	Word        string `json:"word"`
	Translation string `json:"translation"`
	Context     string `json:"context"`
	Language    string `json:"language"`
	SourceID    string `json:"source_id"`
}

// handleSaveVocabulary serves POST /api/vocabulary.
func (s *Server) handleSaveVocabulary(w http.ResponseWriter, r *http.Request) {
	if s.vocab == nil {
		writeError(w, http.StatusServiceUnavailable, "vocabulary is not configured")
		return
	}
	var body vocabularyRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	e := &vocab.Entry{
		UserID:      auth.UserID(r.Context()),
		Word:        body.Word,
		Translation: body.Translation,
		Context:     body.Context,
		Language:    body.Language,
		SourceID:    body.SourceID,
	}
	if err := e.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.vocab.Save(r.Context(), e); err != nil {
		slog.Error("web: save vocabulary", "word", e.Word, "err", err)
		writeError(w, http.StatusInternalServerError, "could not save word")
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// handleListVocabulary serves GET /api/vocabulary?language=&limit=.
func (s *Server) handleListVocabulary(w http.ResponseWriter, r *http.Request) {
	if s.vocab == nil {
		writeError(w, http.StatusServiceUnavailable, "vocabulary is not configured")
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.vocab.List(r.Context(), auth.UserID(r.Context()), vocab.ListOptions{
		Language: r.URL.Query().Get("language"),
		Limit:    limit,
	})
	if err != nil {
		slog.Error("web: list vocabulary", "err", err)
		writeError(w, http.StatusInternalServerError, "could not list vocabulary")
		return
	}
	if entries == nil {
		entries = []vocab.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleRelatedVocabulary serves GET /api/vocabulary/related?word=&language=&limit=.
func (s *Server) handleRelatedVocabulary(w http.ResponseWriter, r *http.Request) {
	if s.vocab == nil {
		writeError(w, http.StatusServiceUnavailable, "vocabulary is not configured")
		return
	}
	q := r.URL.Query()
	word, language := strings.TrimSpace(q.Get("word")), strings.TrimSpace(q.Get("language"))
	if word == "" || language == "" {
		writeError(w, http.StatusBadRequest, "word and language are required")
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	related, err := s.vocab.Related(r.Context(), auth.UserID(r.Context()), word, language, limit)
	if err != nil {
		slog.Error("web: related vocabulary", "word", word, "err", err)
		writeError(w, http.StatusInternalServerError, "could not find related words")
		return
	}
	if related == nil {
		related = []vocab.Related{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"related": related})
}

// handleDeleteVocabulary serves DELETE /api/vocabulary/{id}.
func (s *Server) handleDeleteVocabulary(w http.ResponseWriter, r *http.Request) {
	if s.vocab == nil {
		writeError(w, http.StatusServiceUnavailable, "vocabulary is not configured")
		return
	}
	err := s.vocab.Delete(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	switch {
	case errors.Is(err, vocab.ErrNotFound):
		writeError(w, http.StatusNotFound, "entry not found")
	case err != nil:
		slog.Error("web: delete vocabulary", "id", r.PathValue("id"), "err", err)
		writeError(w, http.StatusInternalServerError, "could not delete entry")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleSongs serves GET /api/songs?language=.
func (s *Server) handleSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.catalog.Songs(r.Context(), r.URL.Query().Get("language"))
	if err != nil {
		slog.Error("web: list songs", "err", err)
		writeError(w, http.StatusInternalServerError, "could not list songs")
		return
	}
	if songs == nil {
		songs = []catalog.Song{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"songs": songs})
}

type lyricsResponse struct {
	Song  catalog.Song  `json:"song"`
	Lines []lyrics.Line `json:"lines"`
}

// handleLyrics serves GET /api/songs/{id}/lyrics.
func (s *Server) handleLyrics(w http.ResponseWriter, r *http.Request) {
	song, lines, ok := s.loadSong(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, lyricsResponse{Song: song, Lines: lines})
}

type activeLineResponse struct {
	Index int          `json:"index"`
	Line  *lyrics.Line `json:"line"`
}

// handleActiveLine serves GET /api/songs/{id}/active?position_ms=.
func (s *Server) handleActiveLine(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.ParseInt(r.URL.Query().Get("position_ms"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "position_ms must be an integer")
		return
	}
	_, lines, ok := s.loadSong(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, activeLine(lyrics.ActiveIndex(pos, lines), lines))
}

func activeLine(idx int, lines []lyrics.Line) activeLineResponse {
	res := activeLineResponse{Index: idx}
	if idx >= 0 && idx < len(lines) {
		res.Line = &lines[idx]
	}
	return res
}

// loadSong resolves the {id} path value. On failure it writes the response
// and returns false.
func (s *Server) loadSong(w http.ResponseWriter, r *http.Request) (catalog.Song, []lyrics.Line, bool) {
	id := r.PathValue("id")
	song, err := s.catalog.Song(r.Context(), id)
	if err == nil {
		var lines []lyrics.Line
		if lines, err = s.catalog.Lines(r.Context(), id); err == nil {
			if lines == nil {
				lines = []lyrics.Line{}
			}
			return song, lines, true
		}
	}
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "song not found")
	} else {
		slog.Error("web: load song", "song_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "could not load song")
	}
	return catalog.Song{}, nil, false
}
