package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/audiora/audiora/internal/observe"
	"github.com/audiora/audiora/pkg/provider/translate"
)

// Phase is the visible state of the lookup popup.
type Phase int

const (
	// PhaseHidden means no popup is shown.
	PhaseHidden Phase = iota
	// PhaseLoading means the popup is shown and a translation is pending.
	PhaseLoading
	// PhaseLoaded means the popup shows a translation.
	PhaseLoaded
	// PhaseErrored means the lookup failed and the popup shows the original word.
	PhaseErrored
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseHidden:
		return "hidden"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseErrored:
		return "errored"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Failure is the user-facing category of a failed lookup.
type Failure string

const (
	FailureNone        Failure = ""
	FailureOffline     Failure = "offline"
	FailureRateLimited Failure = "rate-limited"
	FailureGeneric     Failure = "generic-failure"
)

// Message returns the text shown to the user for f.
func (f Failure) Message() string {
	switch f {
	case FailureOffline:
		return "You appear to be offline. Check your connection and try again."
	case FailureRateLimited:
		return "Too many lookups right now. Please wait a moment."
	case FailureGeneric:
		return "Translation unavailable."
	default:
		return ""
	}
}

// FailureOf classifies a translation error for display.
func FailureOf(err error) Failure {
	switch translate.KindOf(err) {
	case translate.ErrOffline:
		return FailureOffline
	case translate.ErrRateLimited:
		return FailureRateLimited
	default:
		return FailureGeneric
	}
}

// Dismissal names the countdown that will hide the popup.
type Dismissal string

const (
	DismissNone     Dismissal = ""
	DismissAutoHide Dismissal = "auto-hide"
	DismissGrace    Dismissal = "grace-period"
	DismissConfirm  Dismissal = "confirm"
)

// State is a snapshot of a [Session].
type State struct {
	Phase Phase `json:"phase"`
	// Word is the most recently hovered word.
	Word     string `json:"word,omitempty"`
	Context  string `json:"context,omitempty"`
	Language string `json:"language,omitempty"`
	// DebouncedWord is the word the current translation belongs to.
	DebouncedWord string `json:"debouncedWord,omitempty"`
	// Translation is the translated word, or the original word after a failure.
	Translation string  `json:"translation,omitempty"`
	Cached      bool    `json:"cached,omitempty"`
	Failure     Failure `json:"failure,omitempty"`
	Message     string  `json:"message,omitempty"`
	// Position is where the popup should be drawn.
	Position Point `json:"position"`
	Flipped  bool  `json:"flipped,omitempty"`
	Hovered  bool  `json:"hovered,omitempty"`
	Saving   bool  `json:"saving,omitempty"`
	// Saved is true while the add-to-vocabulary confirmation is shown.
	Saved     bool      `json:"saved,omitempty"`
	Dismissal Dismissal `json:"dismissal,omitempty"`
	// Version increases with every change.
	Version uint64 `json:"version"`
}

// Visible reports whether the popup is shown.
func (s State) Visible() bool { return s.Phase != PhaseHidden }

// ShowRequest opens or retargets the popup.
type ShowRequest struct {
	Word     string `json:"word"`
	Context  string `json:"context"`
	Language string `json:"language"`
	Anchor   Point  `json:"anchor"`
	// Popup and Container are optional. When both are set the popup is
	// placed with [Place]; otherwise it is drawn at Anchor.
	Popup     Size `json:"popup"`
	Container Rect `json:"container"`
}

// SavedWord is handed to a [SaveFunc].
type SavedWord struct {
	Word        string
	Translation string
	Context     string
	Language    string
}

// SaveFunc persists a word to the user's vocabulary.
type SaveFunc func(ctx context.Context, w SavedWord) error

// Timings are the popup's countdowns.
type Timings struct {
	WordDebounce   time.Duration `yaml:"word_debounce" toml:"word_debounce"`
	AutoHide       time.Duration `yaml:"auto_hide" toml:"auto_hide"`
	GracePeriod    time.Duration `yaml:"grace_period" toml:"grace_period"`
	ConfirmDisplay time.Duration `yaml:"confirm_display" toml:"confirm_display"`
}

// DefaultTimings returns the standard popup timings.
func DefaultTimings() Timings {
	return Timings{
		WordDebounce:   time.Second,
		AutoHide:       7 * time.Second,
		GracePeriod:    3 * time.Second,
		ConfirmDisplay: 2 * time.Second,
	}
}

func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	if t.WordDebounce <= 0 {
		t.WordDebounce = d.WordDebounce
	}
	if t.AutoHide <= 0 {
		t.AutoHide = d.AutoHide
	}
	if t.GracePeriod <= 0 {
		t.GracePeriod = d.GracePeriod
	}
	if t.ConfirmDisplay <= 0 {
		t.ConfirmDisplay = d.ConfirmDisplay
	}
	return t
}

var (
	ErrSessionClosed      = errors.New("lookup: session closed")
	ErrNotVisible         = errors.New("lookup: popup not visible")
	ErrNoSaver            = errors.New("lookup: no vocabulary store configured")
	ErrTranslationPending = errors.New("lookup: translation not ready")
	ErrSaveInProgress     = errors.New("lookup: save already in progress")
)

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithClock sets the clock driving the countdowns.
func WithClock(c Clock) SessionOption {
	return func(s *Session) { s.clock = c }
}

// WithTimings overrides the countdowns. Zero fields keep their defaults.
func WithTimings(t Timings) SessionOption {
	return func(s *Session) { s.timings = t }
}

// WithOnChange registers a callback run after every state change. It runs
// with the session lock held and must not call back into the Session.
func WithOnChange(fn func(State)) SessionOption {
	return func(s *Session) { s.onChange = fn }
}

// WithOnClose registers a callback run exactly once per visible-to-hidden
// transition. It runs with the session lock held and must not call back
// into the Session.
func WithOnClose(fn func()) SessionOption {
	return func(s *Session) { s.onClose = fn }
}

// WithSaver sets the add-to-vocabulary action.
func WithSaver(fn SaveFunc) SessionOption {
	return func(s *Session) { s.save = fn }
}

// WithBaseContext sets the parent context of every lookup.
func WithBaseContext(ctx context.Context) SessionOption {
	return func(s *Session) { s.parent = ctx }
}

// Session drives one word-lookup popup. A popup is opened by [Session.Show]
// and hidden by one of its countdowns, by [Session.Hide], or by
// [Session.Close]. The Session can be shown again after it hides.
//
// Only the most recently started lookup can change the state: starting a
// new lookup or hiding the popup cancels the previous lookup's context and
// its result is discarded. At most one of the auto-hide and grace-period
// countdowns is pending at any time.
//
// All methods are safe for concurrent use.
type Session struct {
	svc      *Service
	clock    Clock
	timings  Timings
	onChange func(State)
	onClose  func()
	save     SaveFunc
	parent   context.Context
	metrics  *observe.Metrics

	mu           sync.Mutex
	state        State
	ctx          context.Context
	cancel       context.CancelFunc
	cancelLookup context.CancelFunc
	saveSeq      uint64
	closed       bool

	wordDebounce *Debouncer
	autoHide     *Debouncer
	grace        *Debouncer
	confirm      *Debouncer

	// lookupDone, if set, runs after a lookup goroutine finishes.
	lookupDone func()
}

// NewSession creates a hidden Session.
func NewSession(svc *Service, opts ...SessionOption) (*Session, error) {
	if svc == nil {
		return nil, errors.New("lookup: service must not be nil")
	}
	s := &Session{svc: svc, metrics: svc.metrics}
	for _, o := range opts {
		o(s)
	}
	if s.clock == nil {
		s.clock = RealClock
	}
	if s.parent == nil {
		s.parent = context.Background()
	}
	s.timings = s.timings.withDefaults()
	s.ctx, s.cancel = context.WithCancel(s.parent)

	s.wordDebounce = NewDebouncer(s.clock, &s.mu, s.timings.WordDebounce, s.wordSettled)
	s.autoHide = NewDebouncer(s.clock, &s.mu, s.timings.AutoHide, s.hideLocked)
	s.grace = NewDebouncer(s.clock, &s.mu, s.timings.GracePeriod, s.hideLocked)
	s.confirm = NewDebouncer(s.clock, &s.mu, s.timings.ConfirmDisplay, s.hideLocked)
	return s, nil
}

// State returns a snapshot of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Show opens the popup for req.Word, or retargets an open popup. The
// translation is requested once the word has been stable for the debounce
// delay. Every call restarts the auto-hide countdown.
func (s *Session) Show(req ShowRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	opening := s.state.Phase == PhaseHidden
	changed := opening || req.Word != s.state.Word ||
		req.Language != s.state.Language || req.Context != s.state.Context

	if opening {
		s.state = State{Version: s.state.Version}
		s.metrics.ActiveLookupSessions.Add(s.ctx, 1)
	}
	s.state.Word = req.Word
	s.state.Context = req.Context
	s.state.Language = req.Language
	s.state.Position = req.Anchor
	s.state.Flipped = false
	if req.Popup.Width > 0 && req.Container.Width > 0 {
		s.state.Position, s.state.Flipped = Place(req.Anchor, req.Popup, req.Container, DefaultPopupOffset)
	}

	if changed {
		s.cancelLookupLocked()
		s.state.Phase = PhaseLoading
		s.state.Translation = ""
		s.state.Cached = false
		s.state.Failure = FailureNone
		s.state.Message = ""
		s.state.Saved = false
		s.state.Saving = false
		s.saveSeq++
		s.confirm.Cancel()
		s.wordDebounce.Call()
	}
	if !s.state.Hovered && !s.state.Saving && !s.state.Saved {
		s.startAutoHide()
	}
	s.notify()
	return nil
}

// PointerEnter pauses dismissal while the pointer is over the popup.
func (s *Session) PointerEnter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Visible() || s.state.Hovered {
		return
	}
	s.state.Hovered = true
	if !s.state.Saving && !s.state.Saved {
		s.cancelDismissTimers()
	}
	s.notify()
}

// PointerLeave starts the grace-period countdown.
func (s *Session) PointerLeave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Visible() || !s.state.Hovered {
		return
	}
	s.state.Hovered = false
	if !s.state.Saving && !s.state.Saved {
		s.autoHide.Cancel()
		s.grace.Call()
	}
	s.notify()
}

// Hide closes the popup immediately.
func (s *Session) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hideLocked()
}

// Close hides the popup and releases the Session. Further calls to Show fail
// with [ErrSessionClosed]. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.hideLocked()
	s.closed = true
	s.cancel()
}

// AddToVocabulary saves the current translation. Dismissal countdowns are
// suspended while the save runs. On success the confirmation is shown and
// the popup hides after the confirmation delay; on failure the auto-hide
// countdown restarts.
func (s *Session) AddToVocabulary(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrSessionClosed
	case !s.state.Visible():
		s.mu.Unlock()
		return ErrNotVisible
	case s.save == nil:
		s.mu.Unlock()
		return ErrNoSaver
	case s.state.Saving:
		s.mu.Unlock()
		return ErrSaveInProgress
	case s.state.Phase != PhaseLoaded:
		s.mu.Unlock()
		return ErrTranslationPending
	}
	s.cancelDismissTimers()
	s.state.Saving = true
	s.saveSeq++
	seq := s.saveSeq
	w := SavedWord{
		Word:        s.state.DebouncedWord,
		Translation: s.state.Translation,
		Context:     s.state.Context,
		Language:    s.state.Language,
	}
	s.notify()
	s.mu.Unlock()

	err := s.save(ctx, w)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.saveSeq {
		// The popup hid or moved on to another word while saving.
		return err
	}
	s.state.Saving = false
	if err != nil {
		if !s.state.Hovered {
			s.startAutoHide()
		}
		s.notify()
		return fmt.Errorf("lookup: add to vocabulary: %w", err)
	}
	s.state.Saved = true
	s.confirm.Call()
	s.notify()
	return nil
}

// wordSettled runs with s.mu held once the hovered word is stable.
func (s *Session) wordSettled() {
	if !s.state.Visible() {
		return
	}
	s.state.DebouncedWord = s.state.Word
	req := translate.Request{
		Kind:     translate.KindWord,
		Text:     s.state.Word,
		Language: s.state.Language,
		Context:  s.state.Context,
	}
	s.cancelLookupLocked()

	if text, ok := s.svc.Cached(req); ok {
		s.metrics.RecordCacheLookup(s.ctx, string(req.Kind), true)
		s.state.Phase = PhaseLoaded
		s.state.Translation = text
		s.state.Cached = true
		s.notify()
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelLookup = cancel
	s.state.Phase = PhaseLoading
	s.notify()
	go s.runLookup(ctx, req)
}

func (s *Session) runLookup(ctx context.Context, req translate.Request) {
	if s.lookupDone != nil {
		defer s.lookupDone()
	}
	res, err := s.svc.Lookup(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		// Superseded or hidden.
		return
	}
	s.cancelLookupLocked()

	if err != nil {
		if translate.IsCancelled(err) {
			return
		}
		f := FailureOf(err)
		slog.Debug("lookup: showing original word", "word", req.Text, "failure", f)
		s.state.Phase = PhaseErrored
		s.state.Translation = req.Text
		s.state.Failure = f
		s.state.Message = f.Message()
		s.notify()
		return
	}
	s.state.Phase = PhaseLoaded
	s.state.Translation = res.Text
	s.state.Cached = res.Cached
	s.notify()
}

// hideLocked runs with s.mu held.
func (s *Session) hideLocked() {
	if !s.state.Visible() {
		return
	}
	s.cancelPendingTimers()
	s.cancelLookupLocked()
	s.saveSeq++
	s.state = State{Version: s.state.Version}
	s.metrics.ActiveLookupSessions.Add(s.ctx, -1)
	s.notify()
	if s.onClose != nil {
		s.onClose()
	}
}

func (s *Session) startAutoHide() {
	s.grace.Cancel()
	s.autoHide.Call()
}

func (s *Session) cancelDismissTimers() {
	s.autoHide.Cancel()
	s.grace.Cancel()
}

func (s *Session) cancelPendingTimers() {
	s.wordDebounce.Cancel()
	s.autoHide.Cancel()
	s.grace.Cancel()
	s.confirm.Cancel()
}

func (s *Session) cancelLookupLocked() {
	if s.cancelLookup != nil {
		s.cancelLookup()
		s.cancelLookup = nil
	}
}

func (s *Session) dismissal() Dismissal {
	switch {
	case s.confirm.Pending():
		return DismissConfirm
	case s.grace.Pending():
		return DismissGrace
	case s.autoHide.Pending():
		return DismissAutoHide
	default:
		return DismissNone
	}
}

func (s *Session) notify() {
	s.state.Version++
	s.state.Dismissal = s.dismissal()
	if s.onChange != nil {
		s.onChange(s.state)
	}
}
