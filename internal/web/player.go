package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/audiora/audiora/internal/auth"
	"github.com/audiora/audiora/internal/catalog"
	"github.com/audiora/audiora/internal/lookup"
	"github.com/audiora/audiora/pkg/audio"
	"github.com/audiora/audiora/pkg/lyrics"
)

const (
	playerReadLimit    = 64 << 10
	playerWriteTimeout = 5 * time.Second
	playerSaveTimeout  = 10 * time.Second
	maxQueuedErrors    = 8
)

// Client-to-server message types on the player socket.
const (
	msgTimeUpdate    = "timeupdate"
	msgMetadata      = "metadata"
	msgEnded         = "ended"
	msgHover         = "hover"
	msgPopupEnter    = "popup_enter"
	msgPopupLeave    = "popup_leave"
	msgAddVocabulary = "add_vocabulary"
	msgClose         = "close"
)

// Server-to-client message types on the player socket.
const (
	msgReady      = "ready"
	msgActiveLine = "active_line"
	msgTooltip    = "tooltip"
	msgError      = "error"
)

// clientMessage is one event from the browser. Hover messages carry the
// embedded show request; timing messages carry position and duration.
type clientMessage struct {
	Type       string `json:"type"`
	PositionMs int64  `json:"position_ms,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	lookup.ShowRequest
}

type serverMessage struct {
	Type    string        `json:"type"`
	Song    *catalog.Song `json:"song,omitempty"`
	Lines   []lyrics.Line `json:"lines,omitempty"`
	Index   *int          `json:"index,omitempty"`
	Line    *lyrics.Line  `json:"line,omitempty"`
	Tooltip *lookup.State `json:"tooltip,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// outbox buffers messages for the socket writer without ever blocking the
// producer. Only the newest active line and tooltip state are kept.
type outbox struct {
	mu      sync.Mutex
	active  *serverMessage
	tooltip *serverMessage
	errs    []serverMessage
	wake    chan struct{}
}

func newOutbox() *outbox {
	return &outbox{wake: make(chan struct{}, 1)}
}

func (o *outbox) put(m serverMessage) {
	o.mu.Lock()
	switch m.Type {
	case msgActiveLine:
		o.active = &m
	case msgTooltip:
		o.tooltip = &m
	default:
		if len(o.errs) == maxQueuedErrors {
			o.errs = o.errs[1:]
		}
		o.errs = append(o.errs, m)
	}
	o.mu.Unlock()
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *outbox) take() []serverMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []serverMessage
	if o.active != nil {
		out = append(out, *o.active)
		o.active = nil
	}
	if o.tooltip != nil {
		out = append(out, *o.tooltip)
		o.tooltip = nil
	}
	out = append(out, o.errs...)
	o.errs = nil
	return out
}

// player is one connected playback page.
type player struct {
	conn      *websocket.Conn
	song      catalog.Song
	lines     []lyrics.Line
	transport *audio.RemoteTransport
	tracker   *lyrics.Tracker
	session   *lookup.Session
	out       *outbox
	saves     sync.WaitGroup
	log       *slog.Logger
}

// handlePlayer serves the player WebSocket at GET /api/songs/{id}/play.
//
// The client reports playback (timeupdate, metadata, ended) and pointer
// activity (hover, popup_enter, popup_leave, add_vocabulary, close). The
// server answers with a ready message holding the song and its lyrics, then
// pushes active_line and tooltip updates as they happen.
func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	song, lines, ok := s.loadSong(w, r)
	if !ok {
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		slog.Warn("web: player upgrade failed", "song_id", song.ID, "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(playerReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	userID := auth.UserID(ctx)
	p := &player{
		conn:      conn,
		song:      song,
		lines:     lines,
		transport: audio.NewRemoteTransport(),
		out:       newOutbox(),
		log:       slog.With("song_id", song.ID, "user_id", userID),
	}

	opts := []lookup.SessionOption{
		lookup.WithTimings(s.Timings()),
		lookup.WithBaseContext(ctx),
		lookup.WithOnChange(func(st lookup.State) {
			p.out.put(serverMessage{Type: msgTooltip, Tooltip: &st})
		}),
	}
	if s.vocab != nil {
		opts = append(opts, lookup.WithSaver(s.vocab.Saver(userID, song.ID)))
	}
	p.session, err = lookup.NewSession(s.lookup, opts...)
	if err != nil {
		p.log.Error("web: create lookup session", "err", err)
		_ = conn.Close(websocket.StatusInternalError, "session unavailable")
		return
	}
	defer p.session.Close()

	s.metrics.ActivePlayers.Add(ctx, 1)
	defer s.metrics.ActivePlayers.Add(context.WithoutCancel(ctx), -1)

	if err := p.write(ctx, serverMessage{Type: msgReady, Song: &song, Lines: lines}); err != nil {
		p.log.Debug("web: player write ready", "err", err)
		return
	}

	p.tracker = lyrics.NewTracker(p.transport, lines, func(idx int) {
		msg := activeLine(idx, lines)
		p.out.put(serverMessage{Type: msgActiveLine, Index: &msg.Index, Line: msg.Line})
	})
	defer p.tracker.Stop()

	p.log.Info("web: player connected")
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		defer cancel()
		p.writeLoop(ctx)
	}()

	err = p.readLoop(ctx)
	cancel()
	<-writeDone
	p.saves.Wait()

	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		p.log.Info("web: player disconnected")
	case errors.Is(err, context.Canceled):
		p.log.Info("web: player closed")
	default:
		p.log.Warn("web: player connection lost", "err", err)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (p *player) readLoop(ctx context.Context) error {
	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, p.conn, &msg); err != nil {
			return err
		}
		p.handle(ctx, msg)
	}
}

func (p *player) handle(ctx context.Context, msg clientMessage) {
	switch msg.Type {
	case msgTimeUpdate:
		p.transport.ReportTime(msg.PositionMs)
	case msgMetadata:
		p.transport.ReportMetadata(msg.DurationMs)
	case msgEnded:
		p.transport.ReportEnded()
	case msgHover:
		req := msg.ShowRequest
		if req.Language == "" {
			req.Language = p.song.Language
		}
		if req.Context == "" {
			if idx := p.tracker.Active(); idx >= 0 {
				req.Context = p.lines[idx].Text
			}
		}
		if err := p.session.Show(req); err != nil {
			p.sendError(err)
		}
	case msgPopupEnter:
		p.session.PointerEnter()
	case msgPopupLeave:
		p.session.PointerLeave()
	case msgAddVocabulary:
		// Saves run off the read loop so playback reports keep flowing.
		p.saves.Go(func() {
			saveCtx, cancel := context.WithTimeout(ctx, playerSaveTimeout)
			defer cancel()
			if err := p.session.AddToVocabulary(saveCtx); err != nil && ctx.Err() == nil {
				p.sendError(err)
			}
		})
	case msgClose:
		p.session.Hide()
	default:
		p.out.put(serverMessage{Type: msgError, Error: "unknown message type " + msg.Type})
	}
}

func (p *player) sendError(err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, lookup.ErrNotVisible):
		msg = "no word is shown"
	case errors.Is(err, lookup.ErrTranslationPending):
		msg = "translation is still loading"
	case errors.Is(err, lookup.ErrSaveInProgress):
		msg = "already saving"
	case errors.Is(err, lookup.ErrNoSaver):
		msg = "vocabulary is not available"
	default:
		p.log.Warn("web: player action failed", "err", err)
	}
	p.out.put(serverMessage{Type: msgError, Error: msg})
}

func (p *player) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.out.wake:
		}
		for _, msg := range p.out.take() {
			if err := p.write(ctx, msg); err != nil {
				if ctx.Err() == nil {
					p.log.Debug("web: player write failed", "err", err)
				}
				return
			}
		}
	}
}

func (p *player) write(ctx context.Context, msg serverMessage) error {
	ctx, cancel := context.WithTimeout(ctx, playerWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, p.conn, msg)
}
