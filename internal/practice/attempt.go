// Package practice runs pronunciation practice: it transcribes a learner's
// recording, scores it against the target phrase with [pronounce.Scorer] and
// keeps the attempts for the progress dashboard.
package practice

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/audiora/audiora/internal/pronounce"
)

// Attempt is one scored recording. It is not mutated after scoring.
type Attempt struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"user_id"`
	TargetText      string                 `json:"target_text"`
	TranscribedText string                 `json:"transcribed_text"`
	Language        string                 `json:"language"`
	Confidence      *float64               `json:"confidence,omitempty"`
	Score           int                    `json:"accuracy_score"`
	Feedback        string                 `json:"feedback"`
	PoorAudio       bool                   `json:"poor_audio"`
	Words           []pronounce.WordResult `json:"words,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// Validate checks the fields a store needs.
func (a *Attempt) Validate() error {
	var errs []error
	if strings.TrimSpace(a.UserID) == "" {
		errs = append(errs, errors.New("practice: user_id must not be empty"))
	}
	if strings.TrimSpace(a.TargetText) == "" {
		errs = append(errs, errors.New("practice: target_text must not be empty"))
	}
	if a.Score < 0 || a.Score > 100 {
		errs = append(errs, errors.New("practice: accuracy_score must be within [0, 100]"))
	}
	return errors.Join(errs...)
}

// Stats summarises a user's attempts.
type Stats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Best    int     `json:"best"`
}

// AttemptStore persists attempts. Implementations must be safe for
// concurrent use.
type AttemptStore interface {
	// Save stores a. An empty ID is assigned; a zero CreatedAt is set to now.
	Save(ctx context.Context, a *Attempt) error

	// Recent returns the user's attempts, newest first. A non-positive limit
	// returns all of them.
	Recent(ctx context.Context, userID string, limit int) ([]Attempt, error)

	// Stats aggregates the user's attempts, optionally for one language.
	Stats(ctx context.Context, userID, language string) (Stats, error)
}
