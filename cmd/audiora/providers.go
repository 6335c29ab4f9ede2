package main

import (
	"context"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/audiora/audiora/internal/config"
	"github.com/audiora/audiora/internal/health"
	"github.com/audiora/audiora/internal/observe"
	"github.com/audiora/audiora/pkg/provider/embeddings"
	oaembed "github.com/audiora/audiora/pkg/provider/embeddings/openai"
	"github.com/audiora/audiora/pkg/provider/llm"
	"github.com/audiora/audiora/pkg/provider/llm/anyllm"
	"github.com/audiora/audiora/pkg/provider/stt"
	"github.com/audiora/audiora/pkg/provider/stt/deepgram"
	oaistt "github.com/audiora/audiora/pkg/provider/stt/openai"
	"github.com/audiora/audiora/pkg/provider/stt/whisper"
	"github.com/audiora/audiora/pkg/provider/translate"
	"github.com/audiora/audiora/pkg/provider/translate/httpapi"
	"github.com/audiora/audiora/pkg/provider/translate/llmtranslate"
	"github.com/audiora/audiora/pkg/provider/tts"
	"github.com/audiora/audiora/pkg/provider/tts/coqui"
	"github.com/audiora/audiora/pkg/provider/tts/elevenlabs"
)

// registerBuiltinProviders adds every bundled provider to reg. Translation
// retries are counted on metrics.
func registerBuiltinProviders(reg *config.Registry, metrics *observe.Metrics) {
	registerTranslators(reg, metrics)
	registerLLMs(reg)
	registerTranscribers(reg)
	registerSynthesizers(reg)
	registerEmbedders(reg)

	for _, kind := range []string{"translate", "llm", "stt", "tts", "embeddings"} {
		slog.Debug("providers registered", "kind", kind, "names", reg.Names(kind))
	}
}

func registerTranslators(reg *config.Registry, metrics *observe.Metrics) {
	reg.RegisterTranslate("httpapi", func(e config.ProviderEntry, lk config.LookupConfig, _ config.Deps) (translate.Provider, error) {
		opts := []httpapi.Option{
			httpapi.WithAttemptTimeout(lk.RequestTimeout),
			httpapi.WithRetryPolicy(lk.Retry.Policy()),
			httpapi.WithDebounce(lk.APIDebounceMin, lk.APIDebounceMax),
			httpapi.WithRetryHook(func(retry int, err error) {
				kind := translate.KindOf(err).String()
				metrics.RecordRetry(context.Background(), kind)
				slog.Debug("translation retry", "attempt", retry, "kind", kind, "err", err)
			}),
		}
		if u := options(e).str("probe_url"); u != "" {
			opts = append(opts, httpapi.WithConnectivity(health.NewProbe(u, nil)))
		}
		return httpapi.New(e.BaseURL, e.APIKey, opts...)
	})
	reg.RegisterTranslate("llm", func(_ config.ProviderEntry, lk config.LookupConfig, deps config.Deps) (translate.Provider, error) {
		return llmtranslate.New(deps.LLM, llmtranslate.WithTargetLanguage(lk.TargetLanguage))
	})
}

func registerLLMs(reg *config.Registry) {
	for _, backend := range anyllm.Backends() {
		reg.RegisterLLM(backend, func(e config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			// A local ollama server takes no key.
			if e.APIKey != "" && backend != "ollama" {
				opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
			}
			if e.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
			}
			return anyllm.New(backend, e.Model, opts...)
		})
	}
}

func registerTranscribers(reg *config.Registry) {
	reg.RegisterSTT("deepgram", func(e config.ProviderEntry) (stt.Transcriber, error) {
		var opts []deepgram.Option
		if e.Model != "" {
			opts = append(opts, deepgram.WithModel(e.Model))
		}
		if lang := options(e).str("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(e.APIKey, opts...)
	})
	reg.RegisterSTT("whisper", func(e config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if e.Model != "" {
			opts = append(opts, whisper.WithModel(e.Model))
		}
		if lang := options(e).str("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(e.BaseURL, opts...)
	})
	reg.RegisterSTT("whisper-native", func(e config.ProviderEntry) (stt.Transcriber, error) {
		model := e.Model
		if model == "" {
			model = options(e).str("model_path")
		}
		var opts []whisper.NativeOption
		if lang := options(e).str("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(model, opts...)
	})
	reg.RegisterSTT("openai", func(e config.ProviderEntry) (stt.Transcriber, error) {
		var opts []oaistt.Option
		if e.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(e.BaseURL))
		}
		return oaistt.New(e.APIKey, e.Model, opts...)
	})
}

func registerSynthesizers(reg *config.Registry) {
	reg.RegisterTTS("elevenlabs", func(e config.ProviderEntry) (tts.Provider, error) {
		o := options(e)
		var opts []elevenlabs.Option
		if e.Model != "" {
			opts = append(opts, elevenlabs.WithModel(e.Model))
		}
		if f := o.str("output_format"); f != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(f))
		}
		if v := o.str("voice"); v != "" {
			opts = append(opts, elevenlabs.WithVoice(v))
		}
		if s, ok := o.number("stability"); ok {
			sim, _ := o.number("similarity_boost")
			opts = append(opts, elevenlabs.WithVoiceSettings(s, sim))
		}
		return elevenlabs.New(e.APIKey, opts...)
	})
	reg.RegisterTTS("coqui", func(e config.ProviderEntry) (tts.Provider, error) {
		o := options(e)
		var opts []coqui.Option
		if lang := o.str("language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if rate := o.integer("output_sample_rate"); rate > 0 {
			opts = append(opts, coqui.WithOutputSampleRate(rate))
		}
		return coqui.New(e.BaseURL, opts...)
	})
}

func registerEmbedders(reg *config.Registry) {
	reg.RegisterEmbeddings("openai", func(e config.ProviderEntry) (embeddings.Provider, error) {
		o := options(e)
		var opts []oaembed.Option
		if e.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(e.BaseURL))
		}
		if org := o.str("organization"); org != "" {
			opts = append(opts, oaembed.WithOrganization(org))
		}
		if n := o.integer("dimensions"); n > 0 {
			opts = append(opts, oaembed.WithDimensions(n))
		}
		if n := o.integer("batch_size"); n > 0 {
			opts = append(opts, oaembed.WithBatchSize(n))
		}
		return oaembed.New(e.APIKey, e.Model, opts...)
	})
}

// providerOptions reads the free-form options block of a provider entry.
type providerOptions map[string]any

func options(e config.ProviderEntry) providerOptions { return e.Options }

func (o providerOptions) str(key string) string {
	s, _ := o[key].(string)
	return s
}

// integer accepts the integer types YAML (int) and TOML (int64) decode to, and
// truncates floats.
func (o providerOptions) integer(key string) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (o providerOptions) number(key string) (float64, bool) {
	switch v := o[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
