// Package mcptools exposes Audiora's lookup, lyric sync and scoring engines
// as Model Context Protocol tools, so assistants can translate lyrics and
// coach pronunciation through the same code paths as the web player.
//
// Tools:
//   - "lookup_word"          translates one word using its lyric line as context.
//   - "translate_line"       translates a whole lyric line.
//   - "active_line"          resolves the lyric line playing at a position.
//   - "score_pronunciation"  scores a transcript against a target text.
//   - "list_vocabulary"      lists saved words (only when vocabulary is configured).
//
// Translation results share the lookup service's cache with the web API.
package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/audiora/audiora/internal/catalog"
	"github.com/audiora/audiora/internal/lookup"
	"github.com/audiora/audiora/internal/observe"
	"github.com/audiora/audiora/internal/pronounce"
	"github.com/audiora/audiora/internal/vocab"
	"github.com/audiora/audiora/pkg/lyrics"
	"github.com/audiora/audiora/pkg/provider/translate"
)

// ServerName is the implementation name announced to MCP clients.
const ServerName = "audiora"

// Deps are the engines behind the tools. Lookup and Catalog are required.
type Deps struct {
	Lookup  *lookup.Service
	Catalog catalog.Store

	// Scorer returns the scorer to use for each call, so hot-reloaded
	// thresholds apply. Nil uses a scorer with default thresholds.
	Scorer func() *pronounce.Scorer

	// Vocab enables list_vocabulary for UserID.
	Vocab  *vocab.Service
	UserID string
}

// Option configures [NewServer].
type Option func(*options)

type options struct {
	version string
	metrics *observe.Metrics
}

// WithVersion sets the version announced to clients.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithMetrics records tool calls to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// NewServer builds an MCP server with every tool registered. Serve it with
// Run over a transport such as [mcp.StdioTransport].
func NewServer(deps Deps, opts ...Option) (*mcp.Server, error) {
	if deps.Lookup == nil {
		return nil, errors.New("mcptools: lookup service must not be nil")
	}
	if deps.Catalog == nil {
		return nil, errors.New("mcptools: catalog must not be nil")
	}
	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	if deps.Scorer == nil {
		sc := pronounce.NewScorer()
		deps.Scorer = func() *pronounce.Scorer { return sc }
	}

	t := &toolset{deps: deps, metrics: o.metrics}
	srv := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: o.version}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "lookup_word",
		Description: "Translate a single word from a song lyric. Pass the lyric line as context for a better translation.",
	}, instrument(t.metrics, "lookup_word", t.lookupWord))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "translate_line",
		Description: "Translate a full lyric line into the learner's language.",
	}, instrument(t.metrics, "translate_line", t.translateLine))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "active_line",
		Description: "Return the lyric line of a song that is playing at the given position in milliseconds.",
	}, instrument(t.metrics, "active_line", t.activeLine))

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "score_pronunciation",
		Description: "Score how closely a speech transcript matches the target text, from 0 to 100, with feedback.",
	}, instrument(t.metrics, "score_pronunciation", t.scorePronunciation))

	if deps.Vocab != nil {
		mcp.AddTool(srv, &mcp.Tool{
			Name:        "list_vocabulary",
			Description: "List the words the learner saved from song lyrics, newest first.",
		}, instrument(t.metrics, "list_vocabulary", t.listVocabulary))
	}
	return srv, nil
}

// instrument wraps h with the tool-call counter and latency histogram.
func instrument[In, Out any](m *observe.Metrics, name string, h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		res, out, err := h(ctx, req, in)
		m.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.RecordToolCall(ctx, name, status)
		return res, out, err
	}
}

type toolset struct {
	deps    Deps
	metrics *observe.Metrics
}

type lookupWordArgs struct {
	Word     string `json:"word" jsonschema:"the word to translate"`
	Language string `json:"language" jsonschema:"language of the word, as a name or ISO code"`
	Context  string `json:"context,omitempty" jsonschema:"the lyric line the word appears in"`
}

type translateLineArgs struct {
	Text     string `json:"text" jsonschema:"the lyric line to translate"`
	Language string `json:"language" jsonschema:"language of the line, as a name or ISO code"`
}

type translation struct {
	Translation string `json:"translation"`
	Cached      bool   `json:"cached"`
}

func (t *toolset) lookupWord(ctx context.Context, _ *mcp.CallToolRequest, in lookupWordArgs) (*mcp.CallToolResult, translation, error) {
	return t.translate(ctx, translate.Request{
		Kind:     translate.KindWord,
		Text:     strings.TrimSpace(in.Word),
		Language: in.Language,
		Context:  in.Context,
	})
}

func (t *toolset) translateLine(ctx context.Context, _ *mcp.CallToolRequest, in translateLineArgs) (*mcp.CallToolResult, translation, error) {
	return t.translate(ctx, translate.Request{
		Kind:     translate.KindLine,
		Text:     in.Text,
		Language: in.Language,
	})
}

func (t *toolset) translate(ctx context.Context, req translate.Request) (*mcp.CallToolResult, translation, error) {
	if err := req.Validate(); err != nil {
		return nil, translation{}, err
	}
	res, err := t.deps.Lookup.Lookup(ctx, req)
	if err != nil {
		return nil, translation{}, fmt.Errorf("%s (%s)", lookup.FailureOf(err).Message(), translate.KindOf(err))
	}
	return nil, translation{Translation: res.Text, Cached: res.Cached}, nil
}

type activeLineArgs struct {
	SongID     string `json:"song_id" jsonschema:"catalog id of the song"`
	PositionMs int64  `json:"position_ms" jsonschema:"playback position in milliseconds"`
}

type activeLineResult struct {
	Index       int    `json:"index"`
	LineNumber  int    `json:"line_number,omitempty"`
	Text        string `json:"text,omitempty"`
	Translation string `json:"translation,omitempty"`
}

func (t *toolset) activeLine(ctx context.Context, _ *mcp.CallToolRequest, in activeLineArgs) (*mcp.CallToolResult, activeLineResult, error) {
	lines, err := t.deps.Catalog.Lines(ctx, in.SongID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, activeLineResult{}, fmt.Errorf("unknown song %q", in.SongID)
		}
		return nil, activeLineResult{}, err
	}
	idx := lyrics.ActiveIndex(in.PositionMs, lines)
	out := activeLineResult{Index: idx}
	if idx >= 0 {
		l := lines[idx]
		out.LineNumber = l.LineNumber
		out.Text = l.Text
		if l.Translation != nil {
			out.Translation = *l.Translation
		}
	}
	return nil, out, nil
}

type scoreArgs struct {
	Target     string   `json:"target" jsonschema:"the text the learner tried to say"`
	Transcript string   `json:"transcript" jsonschema:"what the speech recogniser heard"`
	Language   string   `json:"language" jsonschema:"language of the target text"`
	Confidence *float64 `json:"confidence,omitempty" jsonschema:"recogniser confidence between 0 and 1"`
}

type scoreResult struct {
	Score     int                    `json:"score"`
	Feedback  string                 `json:"feedback"`
	PoorAudio bool                   `json:"poor_audio"`
	Words     []pronounce.WordResult `json:"words,omitempty"`
}

func (t *toolset) scorePronunciation(_ context.Context, _ *mcp.CallToolRequest, in scoreArgs) (*mcp.CallToolResult, scoreResult, error) {
	if strings.TrimSpace(in.Target) == "" {
		return nil, scoreResult{}, errors.New("target must not be empty")
	}
	res, err := t.deps.Scorer().Score(in.Target, in.Transcript, in.Language, in.Confidence)
	if err != nil {
		return nil, scoreResult{}, err
	}
	return nil, scoreResult{
		Score:     res.Score,
		Feedback:  res.Feedback,
		PoorAudio: res.PoorAudio,
		Words:     res.Words,
	}, nil
}

type listVocabularyArgs struct {
	Language string `json:"language,omitempty" jsonschema:"only list words in this language"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of words, default 50"`
}

type savedWord struct {
	Word        string `json:"word"`
	Translation string `json:"translation"`
	Language    string `json:"language"`
	Context     string `json:"context,omitempty"`
	SavedAt     string `json:"saved_at"`
}

type vocabularyResult struct {
	Entries []savedWord `json:"entries"`
}

func (t *toolset) listVocabulary(ctx context.Context, _ *mcp.CallToolRequest, in listVocabularyArgs) (*mcp.CallToolResult, vocabularyResult, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}
	entries, err := t.deps.Vocab.List(ctx, t.deps.UserID, vocab.ListOptions{Language: in.Language, Limit: limit})
	if err != nil {
		return nil, vocabularyResult{}, err
	}
	out := vocabularyResult{Entries: make([]savedWord, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, savedWord{
			Word:        e.Word,
			Translation: e.Translation,
			Language:    e.Language,
			Context:     e.Context,
			SavedAt:     e.CreatedAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}
