package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/audiora/audiora/internal/lookup"
	"github.com/audiora/audiora/pkg/provider/translate"
)

const (
	maxBodyBytes  = 1 << 20
	maxAudioBytes = 16 << 20

	defaultListLimit = 50
	maxListLimit     = 500
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	// Text is the untranslated input, for clients that show it as the
	// fallback when translation fails.
	Text string `json:"text,omitempty"`
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a size-limited JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// limitParam parses the "limit" query parameter, clamped to maxListLimit.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit %q must be a positive integer", raw)
	}
	return min(n, maxListLimit), nil
}

// translateStatus maps a translation failure to the status returned to API
// callers.
func translateStatus(err error) int {
	switch translate.KindOf(err) {
	case translate.ErrOffline:
		return http.StatusServiceUnavailable
	case translate.ErrRateLimited:
		return http.StatusTooManyRequests
	case translate.ErrServer, translate.ErrClient, translate.ErrMalformedResponse:
		return http.StatusBadGateway
	case translate.ErrCancelled:
		// Client went away; nobody reads the status.
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func writeTranslateError(w http.ResponseWriter, err error, text string) {
	writeJSON(w, translateStatus(err), errorResponse{
		Error: lookup.FailureOf(err).Message(),
		Kind:  translate.KindOf(err).String(),
		Text:  text,
	})
}
