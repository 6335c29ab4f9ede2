// Package audio defines the playback transport abstraction and the PCM
// helpers used by the pronunciation pipeline.
//
// The two primary abstractions are:
//
//   - [Transport] — a playback clock (current position, duration, play/pause/seek)
//     that emits [Event] values on time updates, end of media and metadata load.
//   - [Recording] — a captured utterance as raw 16-bit little-endian PCM.
//
// The browser owns the real audio element; [RemoteTransport] mirrors it on the
// server from the positions the client reports.
package audio

import (
	"maps"
	"slices"
	"sync"
)

// EventType classifies notifications emitted by a [Transport].
type EventType int

const (
	// EventTimeUpdate is emitted whenever the playback position changes.
	EventTimeUpdate EventType = iota

	// EventEnded is emitted when playback reaches the end of the media.
	EventEnded

	// EventLoadedMetadata is emitted once the media duration is known.
	EventLoadedMetadata
)

// String returns the human-readable name of the event type.
func (e EventType) String() string {
	switch e {
	case EventTimeUpdate:
		return "timeupdate"
	case EventEnded:
		return "ended"
	case EventLoadedMetadata:
		return "loadedmetadata"
	default:
		return "unknown"
	}
}

// Event describes a transport state change.
type Event struct {
	// Type is the kind of change.
	Type EventType

	// PositionMs is the playback position at the time of the event.
	PositionMs int64

	// DurationMs is the media duration, or 0 when not yet known.
	DurationMs int64
}

// Transport is the playback clock that drives lyric synchronisation.
//
// Implementations must be safe for concurrent use. Subscribers are called
// synchronously in the order they were registered.
type Transport interface {
	// CurrentTimeMs returns the current playback position in milliseconds.
	CurrentTimeMs() int64

	// DurationMs returns the media duration in milliseconds, or 0 if unknown.
	DurationMs() int64

	// Play resumes playback.
	Play()

	// Pause halts playback, keeping the current position.
	Pause()

	// Seek moves the playback position to ms. Negative values clamp to 0.
	Seek(ms int64)

	// Subscribe registers fn to receive every subsequent [Event]. The returned
	// function removes the subscription.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// RemoteTransport is a [Transport] whose clock is driven by reports from a
// remote player (typically the browser's audio element over a WebSocket).
// Play, Pause and Seek only update the mirrored state; the remote side is
// expected to confirm the new position with a subsequent report.
type RemoteTransport struct {
	mu       sync.Mutex
	position int64
	duration int64
	playing  bool
	nextID   int
	subs     map[int]func(Event)
}

var _ Transport = (*RemoteTransport)(nil)

// NewRemoteTransport returns a paused transport positioned at 0.
func NewRemoteTransport() *RemoteTransport {
	return &RemoteTransport{subs: make(map[int]func(Event))}
}

// CurrentTimeMs implements [Transport].
func (t *RemoteTransport) CurrentTimeMs() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

// DurationMs implements [Transport].
func (t *RemoteTransport) DurationMs() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.duration
}

// Playing reports whether the mirrored player is currently playing.
func (t *RemoteTransport) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

// Play implements [Transport].
func (t *RemoteTransport) Play() {
	t.mu.Lock()
	t.playing = true
	t.mu.Unlock()
}

// Pause implements [Transport].
func (t *RemoteTransport) Pause() {
	t.mu.Lock()
	t.playing = false
	t.mu.Unlock()
}

// Seek implements [Transport]. Seeking emits a time update so that listeners
// resynchronise immediately.
func (t *RemoteTransport) Seek(ms int64) {
	t.ReportTime(ms)
}

// Subscribe implements [Transport].
func (t *RemoteTransport) Subscribe(fn func(Event)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// ReportTime records a playback position reported by the remote player and
// emits [EventTimeUpdate].
func (t *RemoteTransport) ReportTime(ms int64) {
	if ms < 0 {
		ms = 0
	}
	t.mu.Lock()
	t.position = ms
	if t.duration > 0 && t.position > t.duration {
		t.position = t.duration
	}
	ev := Event{Type: EventTimeUpdate, PositionMs: t.position, DurationMs: t.duration}
	t.mu.Unlock()
	t.emit(ev)
}

// ReportMetadata records the media duration and emits [EventLoadedMetadata].
func (t *RemoteTransport) ReportMetadata(durationMs int64) {
	t.mu.Lock()
	t.duration = max(durationMs, 0)
	ev := Event{Type: EventLoadedMetadata, PositionMs: t.position, DurationMs: t.duration}
	t.mu.Unlock()
	t.emit(ev)
}

// ReportEnded marks playback as finished and emits [EventEnded].
func (t *RemoteTransport) ReportEnded() {
	t.mu.Lock()
	t.playing = false
	if t.duration > 0 {
		t.position = t.duration
	}
	ev := Event{Type: EventEnded, PositionMs: t.position, DurationMs: t.duration}
	t.mu.Unlock()
	t.emit(ev)
}

// emit delivers ev to a snapshot of the current subscribers without holding
// the lock, so subscribers may call back into the transport.
func (t *RemoteTransport) emit(ev Event) {
	t.mu.Lock()
	// ids grow monotonically, so sorting preserves registration order.
	fns := make([]func(Event), 0, len(t.subs))
	for _, id := range slices.Sorted(maps.Keys(t.subs)) {
		fns = append(fns, t.subs[id])
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
