package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/audiora/audiora/pkg/provider/embeddings"
	"github.com/audiora/audiora/pkg/provider/llm"
	"github.com/audiora/audiora/pkg/provider/stt"
	"github.com/audiora/audiora/pkg/provider/translate"
	"github.com/audiora/audiora/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by the Create methods for a name
// nobody registered.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Deps are providers built earlier that a later factory may wrap, such as
// the LLM behind LLM translation.
type Deps struct {
	LLM llm.Provider
}

// TranslateFactory builds a translator. Unlike the other kinds it also sees
// the lookup settings and [Deps].
type TranslateFactory func(entry ProviderEntry, lookup LookupConfig, deps Deps) (translate.Provider, error)

// Factory builds one provider from its config entry.
type Factory[T any] func(ProviderEntry) (T, error)

// factories is one kind's name table.
type factories[F any] struct {
	kind   string
	byName map[string]F
}

func newFactories[F any](kind string) factories[F] {
	return factories[F]{kind: kind, byName: make(map[string]F)}
}

func (f factories[F]) lookup(name string) (F, error) {
	fn, ok := f.byName[name]
	if !ok {
		return fn, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, name)
	}
	return fn, nil
}

// Registry resolves provider names from the config file to constructors.
// The command registers every built-in backend at start-up; tests register
// mocks. It is safe for concurrent use, and a later registration under the
// same name replaces the earlier one.
type Registry struct {
	mu         sync.RWMutex
	translate  factories[TranslateFactory]
	llm        factories[Factory[llm.Provider]]
	stt        factories[Factory[stt.Transcriber]]
	tts        factories[Factory[tts.Provider]]
	embeddings factories[Factory[embeddings.Provider]]
}

// NewRegistry returns a registry with nothing registered.
func NewRegistry() *Registry {
	return &Registry{
		translate:  newFactories[TranslateFactory]("translate"),
		llm:        newFactories[Factory[llm.Provider]]("llm"),
		stt:        newFactories[Factory[stt.Transcriber]]("stt"),
		tts:        newFactories[Factory[tts.Provider]]("tts"),
		embeddings: newFactories[Factory[embeddings.Provider]]("embeddings"),
	}
}

func register[F any](r *Registry, f factories[F], name string, fn F) {
	r.mu.Lock()
	f.byName[name] = fn
	r.mu.Unlock()
}

func find[F any](r *Registry, f factories[F], name string) (F, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return f.lookup(name)
}

func build[T any](r *Registry, f factories[Factory[T]], entry ProviderEntry) (T, error) {
	fn, err := find(r, f, entry.Name)
	if err != nil {
		var zero T
		return zero, err
	}
	return fn(entry)
}

// RegisterTranslate adds or replaces a translator factory. The other
// Register methods do the same for their kind.
func (r *Registry) RegisterTranslate(name string, fn TranslateFactory) {
	register(r, r.translate, name, fn)
}

func (r *Registry) RegisterLLM(name string, fn Factory[llm.Provider]) { register(r, r.llm, name, fn) }

func (r *Registry) RegisterSTT(name string, fn Factory[stt.Transcriber]) {
	register(r, r.stt, name, fn)
}

func (r *Registry) RegisterTTS(name string, fn Factory[tts.Provider]) { register(r, r.tts, name, fn) }

func (r *Registry) RegisterEmbeddings(name string, fn Factory[embeddings.Provider]) {
	register(r, r.embeddings, name, fn)
}

// CreateTranslate builds the translator named by entry.
func (r *Registry) CreateTranslate(entry ProviderEntry, lookup LookupConfig, deps Deps) (translate.Provider, error) {
	fn, err := find(r, r.translate, entry.Name)
	if err != nil {
		return nil, err
	}
	return fn(entry, lookup, deps)
}

// CreateLLM, CreateSTT, CreateTTS and CreateEmbeddings build the provider
// named by entry, or fail with [ErrProviderNotRegistered].
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return build(r, r.llm, entry)
}

func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Transcriber, error) {
	return build(r, r.stt, entry)
}

func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	return build(r, r.tts, entry)
}

func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	return build(r, r.embeddings, entry)
}

// Names lists the registered names of one kind ("translate", "llm", "stt",
// "tts" or "embeddings") in sorted order. Unknown kinds list nothing.
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case r.translate.kind:
		return slices.Sorted(maps.Keys(r.translate.byName))
	case r.llm.kind:
		return slices.Sorted(maps.Keys(r.llm.byName))
	case r.stt.kind:
		return slices.Sorted(maps.Keys(r.stt.byName))
	case r.tts.kind:
		return slices.Sorted(maps.Keys(r.tts.byName))
	case r.embeddings.kind:
		return slices.Sorted(maps.Keys(r.embeddings.byName))
	}
	return nil
}
