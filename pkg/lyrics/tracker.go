package lyrics

import (
	"sync"

	"github.com/audiora/audiora/pkg/audio"
)

// Tracker follows an [audio.Transport] and reports active-line changes.
//
// The callback runs synchronously on the goroutine that delivered the
// transport event and only when the active index differs from the previous
// one. On [audio.EventEnded] the index resets to -1.
type Tracker struct {
	lines    []Line
	onChange func(index int)

	mu     sync.Mutex
	active int
	unsub  func()
}

// NewTracker subscribes to transport and calls onChange whenever the active
// line changes. lines must already be ordered by line number and must not be
// mutated afterwards. Call [Tracker.Stop] to unsubscribe.
func NewTracker(transport audio.Transport, lines []Line, onChange func(index int)) *Tracker {
	t := &Tracker{
		lines:    lines,
		onChange: onChange,
		active:   -1,
	}
	t.unsub = transport.Subscribe(t.handle)
	t.update(transport.CurrentTimeMs())
	return t
}

// Active returns the most recently computed active index.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Lines returns the tracked lines.
func (t *Tracker) Lines() []Line {
	return t.lines
}

// Stop unsubscribes from the transport. It is safe to call more than once.
func (t *Tracker) Stop() {
	t.mu.Lock()
	unsub := t.unsub
	t.unsub = nil
	t.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (t *Tracker) handle(ev audio.Event) {
	switch ev.Type {
	case audio.EventEnded:
		t.set(-1)
	case audio.EventTimeUpdate, audio.EventLoadedMetadata:
		t.update(ev.PositionMs)
	}
}

func (t *Tracker) update(positionMs int64) {
	t.set(ActiveIndex(positionMs, t.lines))
}

func (t *Tracker) set(idx int) {
	t.mu.Lock()
	if idx == t.active {
		t.mu.Unlock()
		return
	}
	t.active = idx
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(idx)
	}
}
