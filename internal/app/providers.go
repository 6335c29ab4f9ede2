package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/audiora/audiora/internal/config"
	"github.com/audiora/audiora/internal/observe"
	"github.com/audiora/audiora/internal/resilience"
	"github.com/audiora/audiora/pkg/provider/embeddings"
	"github.com/audiora/audiora/pkg/provider/llm"
	"github.com/audiora/audiora/pkg/provider/stt"
	"github.com/audiora/audiora/pkg/provider/translate"
	"github.com/audiora/audiora/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Slots with fallbacks hold the failover wrapper
// from the resilience package.
type Providers struct {
	Translate  translate.Provider
	LLM        llm.Provider
	STT        stt.Transcriber
	TTS        tts.Provider
	Embeddings embeddings.Provider

	// Chains records the provider names per kind in failover order, for
	// the startup summary.
	Chains map[string][]string
}

// chainChecker is implemented by the resilience failover wrappers; Check
// fails while every provider in the chain has an open breaker.
type chainChecker interface {
	Check(ctx context.Context) error
}

type named[T any] struct {
	name  string
	value T
}

// BuildProviders instantiates every provider named in cfg through reg. The
// LLM is built first so the "llm" translation backend can wrap it.
// Unregistered names are skipped with a warning; factory errors abort.
func BuildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	ps := &Providers{Chains: make(map[string][]string)}
	metrics := observe.DefaultMetrics()
	fb := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, _, to resilience.State) {
				metrics.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
	}

	llms, err := createChain(ps, "llm", cfg.Providers.LLM, reg.CreateLLM)
	if err != nil {
		return nil, err
	}
	if len(llms) > 0 {
		ps.LLM = llms[0].value
		if len(llms) > 1 {
			f := resilience.NewLLMFallback(llms[0].value, llms[0].name, fb)
			for _, p := range llms[1:] {
				f.AddFallback(p.name, p.value)
			}
			ps.LLM = f
		}
	}

	translators, err := createChain(ps, "translate", cfg.Providers.Translate, func(e config.ProviderEntry) (translate.Provider, error) {
		return reg.CreateTranslate(e, cfg.Lookup, config.Deps{LLM: ps.LLM})
	})
	if err != nil {
		return nil, err
	}
	if len(translators) > 0 {
		ps.Translate = translators[0].value
		if len(translators) > 1 {
			f := resilience.NewTranslateFallback(translators[0].value, translators[0].name, fb)
			for _, p := range translators[1:] {
				f.AddFallback(p.name, p.value)
			}
			ps.Translate = f
		}
	}

	transcribers, err := createChain(ps, "stt", cfg.Providers.STT, reg.CreateSTT)
	if err != nil {
		return nil, err
	}
	if len(transcribers) > 0 {
		ps.STT = transcribers[0].value
		if len(transcribers) > 1 {
			f := resilience.NewSTTFallback(transcribers[0].value, transcribers[0].name, fb)
			for _, p := range transcribers[1:] {
				f.AddFallback(p.name, p.value)
			}
			ps.STT = f
		}
	}

	synths, err := createChain(ps, "tts", cfg.Providers.TTS, reg.CreateTTS)
	if err != nil {
		return nil, err
	}
	if len(synths) > 0 {
		ps.TTS = synths[0].value
		if len(synths) > 1 {
			f := resilience.NewTTSFallback(synths[0].value, synths[0].name, fb)
			for _, p := range synths[1:] {
				if err := f.AddFallback(p.name, p.value); err != nil {
					return nil, fmt.Errorf("app: %w", err)
				}
			}
			ps.TTS = f
		}
	}

	embedders, err := createChain(ps, "embeddings", cfg.Providers.Embeddings, reg.CreateEmbeddings)
	if err != nil {
		return nil, err
	}
	if len(embedders) > 0 {
		if len(embedders) > 1 {
			slog.Warn("embeddings fallbacks are ignored; vectors from different models are not comparable",
				"primary", embedders[0].name)
		}
		ps.Embeddings = embedders[0].value
	}

	return ps, nil
}

// createChain builds entry and its fallbacks, in order.
func createChain[T any](ps *Providers, kind string, entry config.ProviderEntry, create func(config.ProviderEntry) (T, error)) ([]named[T], error) {
	var chain []named[T]
	for _, e := range append([]config.ProviderEntry{entry}, entry.Fallbacks...) {
		if e.Name == "" {
			continue
		}
		p, err := create(e)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("provider not registered, skipping", "kind", kind, "name", e.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("app: create %s provider %q: %w", kind, e.Name, err)
		}
		slog.Info("provider created", "kind", kind, "name", e.Name, "model", e.Model)
		chain = append(chain, named[T]{name: e.Name, value: p})
		ps.Chains[kind] = append(ps.Chains[kind], e.Name)
	}
	return chain, nil
}

// unconfiguredTranslator fails every lookup so the popup shows a client
// error instead of the server refusing to start.
type unconfiguredTranslator struct{}

func (unconfiguredTranslator) Translate(context.Context, translate.Request) (string, error) {
	return "", &translate.Error{Kind: translate.ErrClient, Message: "no translation provider is configured"}
}
