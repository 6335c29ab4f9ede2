package practice

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var _ AttemptStore = (*MemStore)(nil)

// MemStore is an in-memory [AttemptStore].
type MemStore struct {
	mu       sync.RWMutex
	attempts []Attempt
	now      func() time.Time
}

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{now: time.Now}
}

// Save implements [AttemptStore].
func (s *MemStore) Save(_ context.Context, a *Attempt) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	stored := *a
	stored.Words = slices.Clone(a.Words)
	s.attempts = append(s.attempts, stored)
	return nil
}

// Recent implements [AttemptStore].
func (s *MemStore) Recent(_ context.Context, userID string, limit int) ([]Attempt, error) {
	s.mu.RLock()
	out := lo.Filter(s.attempts, func(a Attempt, _ int) bool { return a.UserID == userID })
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Attempt) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats implements [AttemptStore].
func (s *MemStore) Stats(_ context.Context, userID, language string) (Stats, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	var sum int
	for _, a := range s.attempts {
		if a.UserID != userID || (language != "" && a.Language != language) {
			continue
		}
		st.Count++
		sum += a.Score
		st.Best = max(st.Best, a.Score)
	}
	if st.Count > 0 {
		st.Average = float64(sum) / float64(st.Count)
	}
	return st, nil
}
