package web

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/audiora/audiora/internal/auth"
	"github.com/audiora/audiora/internal/practice"
	"github.com/audiora/audiora/internal/pronounce"
	"github.com/audiora/audiora/pkg/audio"
)

type evaluateResponse struct {
	*practice.Attempt
	Saved bool `json:"saved"`
}

// handleEvaluate serves POST /api/pronunciation. The multipart form carries
// the WAV recording in "audio" and the expected text in "target".
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if s.practice == nil {
		writeError(w, http.StatusServiceUnavailable, "pronunciation scoring is not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	target := strings.TrimSpace(r.FormValue("target"))
	language := strings.TrimSpace(r.FormValue("language"))
	if target == "" || language == "" {
		writeError(w, http.StatusBadRequest, "target and language are required")
		return
	}
	f, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read audio")
		return
	}
	rec, err := audio.DecodeWAV(data)
	if err == nil {
		err = rec.Validate()
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := s.practice.Evaluate(r.Context(), auth.UserID(r.Context()), target, language, rec)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, evaluateResponse{Attempt: a, Saved: true})
	case errors.Is(err, practice.ErrNotSaved):
		writeJSON(w, http.StatusOK, evaluateResponse{Attempt: a, Saved: false})
	case errors.Is(err, pronounce.ErrNoSpeechDetected):
		writeError(w, http.StatusUnprocessableEntity, "no speech detected")
	default:
		slog.Error("web: evaluate pronunciation", "language", language, "err", err)
		writeError(w, http.StatusBadGateway, "could not score pronunciation")
	}
}

// handleStats serves GET /api/pronunciation/stats?language=.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.practice == nil {
		writeError(w, http.StatusServiceUnavailable, "pronunciation scoring is not configured")
		return
	}
	stats, err := s.practice.Stats(r.Context(), auth.UserID(r.Context()), r.URL.Query().Get("language"))
	if err != nil {
		slog.Error("web: pronunciation stats", "err", err)
		writeError(w, http.StatusInternalServerError, "could not load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleRecent serves GET /api/pronunciation/recent?limit=.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if s.practice == nil {
		writeError(w, http.StatusServiceUnavailable, "pronunciation scoring is not configured")
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	attempts, err := s.practice.Recent(r.Context(), auth.UserID(r.Context()), limit)
	if err != nil {
		slog.Error("web: recent attempts", "err", err)
		writeError(w, http.StatusInternalServerError, "could not load attempts")
		return
	}
	if attempts == nil {
		attempts = []practice.Attempt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

// handleReference serves GET /api/pronunciation/reference?text=&language=
// as a WAV file.
func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	if s.practice == nil {
		writeError(w, http.StatusServiceUnavailable, "pronunciation scoring is not configured")
		return
	}
	q := r.URL.Query()
	text, language := strings.TrimSpace(q.Get("text")), strings.TrimSpace(q.Get("language"))
	if text == "" || language == "" {
		writeError(w, http.StatusBadRequest, "text and language are required")
		return
	}
	wav, err := s.practice.Reference(r.Context(), text, language)
	switch {
	case errors.Is(err, practice.ErrNoSynthesizer):
		writeError(w, http.StatusServiceUnavailable, "reference audio is not configured")
		return
	case err != nil:
		slog.Error("web: reference audio", "language", language, "err", err)
		writeError(w, http.StatusBadGateway, "could not synthesise reference audio")
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}
